package filehandler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/fpang/sketch-render/internal/render"
)

// DefaultThumbnailMaxDimension is the maximum dimension (width or height) for thumbnails.
const DefaultThumbnailMaxDimension = 512

// thumbnailQuality is the JPEG quality for previews.
const thumbnailQuality = 80

// GenerateThumbnail decodes img and returns a JPEG no larger than
// maxDimension on either side. Transparent areas are flattened onto white.
func GenerateThumbnail(img *render.Image, maxDimension int) (*render.Image, error) {
	if img.IsZero() {
		return nil, fmt.Errorf("%w: no image to thumbnail", render.ErrInvalidInput)
	}
	if maxDimension <= 0 {
		maxDimension = DefaultThumbnailMaxDimension
	}

	src, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := calculateThumbnailDimensions(origWidth, origHeight, maxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	log.Debug().
		Str("format", format).
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Thumbnail generated")

	return &render.Image{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}

// calculateThumbnailDimensions calculates new dimensions maintaining aspect ratio.
func calculateThumbnailDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newHeight := max(1, int(float64(height)*float64(maxDimension)/float64(width)))
		return maxDimension, newHeight
	}

	newWidth := max(1, int(float64(width)*float64(maxDimension)/float64(height)))
	return newWidth, maxDimension
}
