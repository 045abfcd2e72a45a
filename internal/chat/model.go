package chat

import "os"

// Gemini image model IDs
//
// | Model Name                   | API Model ID                   | Use Case                        |
// |------------------------------|--------------------------------|---------------------------------|
// | Gemini 3 Pro Image (Preview) | gemini-3-pro-image-preview     | High fidelity renders, 2K/4K    |
// | Gemini 2.5 Flash Image       | gemini-2.5-flash-image         | Fast drafts, 1K only            |
const (
	// ModelGemini3ProImage supports the imageSize tiers used for paid renders.
	ModelGemini3ProImage = "gemini-3-pro-image-preview"

	// ModelGemini25FlashImage is cheaper but ignores imageSize.
	ModelGemini25FlashImage = "gemini-2.5-flash-image"

	// ModelGemini25FlashLite is used only for the key validation ping.
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
)

// DefaultImageModel is the image model used when GEMINI_IMAGE_MODEL is unset.
const DefaultImageModel = ModelGemini3ProImage

// GetImageModelName returns the image model to use, resolved from:
// 1. GEMINI_IMAGE_MODEL environment variable (if set)
// 2. Default: gemini-3-pro-image-preview
func GetImageModelName() string {
	if env := os.Getenv("GEMINI_IMAGE_MODEL"); env != "" {
		return env
	}
	return DefaultImageModel
}
