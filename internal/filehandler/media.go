// Package filehandler moves images across the process boundary: it loads and
// verifies sketches from disk or uploads, produces preview thumbnails, and
// writes renders and export bundles.
package filehandler

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fpang/sketch-render/internal/render"
)

// MaxImageBytes caps a single sketch upload.
const MaxImageBytes = 20 << 20

// ErrTooLarge is returned for images over MaxImageBytes.
var ErrTooLarge = errors.New("image exceeds size limit")

// ErrUnsupportedFormat is returned when the bytes are not a decodable image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// SupportedImageExtensions defines the file extensions accepted as sketches.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// formatMIME maps image.DecodeConfig format names to MIME types.
var formatMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// remoteMIME lists the inline formats the image API accepts. Anything else is
// converted to PNG on the way in.
var remoteMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// GetMIMEType returns the MIME type for a given file extension.
func GetMIMEType(ext string) (string, error) {
	if mimeType, ok := SupportedImageExtensions[strings.ToLower(ext)]; ok {
		return mimeType, nil
	}
	return "", fmt.Errorf("%w: extension %s", ErrUnsupportedFormat, ext)
}

// IsImage returns true if the file extension corresponds to a supported image.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// Sniff decodes the image header and returns the MIME type and dimensions.
func Sniff(data []byte) (mimeType string, width, height int, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	mimeType, ok := formatMIME[format]
	if !ok {
		return "", 0, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return mimeType, cfg.Width, cfg.Height, nil
}

// LoadImageFile reads a sketch from disk. The MIME type comes from the
// decoded header, not the extension.
func LoadImageFile(path string) (*render.Image, error) {
	log.Debug().Str("path", path).Msg("Loading image file")

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if info.Size() > MaxImageBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, filepath.Base(path), info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return DecodeUpload(f, SupportedImageExtensions[strings.ToLower(filepath.Ext(path))])
}

// DecodeUpload reads an image from r and verifies that it decodes. declared
// is the client's claimed MIME type and is only used for logging a mismatch.
// JPEG, PNG and WebP bytes are kept as they are; other formats are re-encoded
// as PNG (the first frame, for GIF).
func DecodeUpload(r io.Reader, declared string) (*render.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", render.ErrInvalidInput)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, MaxImageBytes)
	}

	mimeType, width, height, err := Sniff(data)
	if err != nil {
		return nil, err
	}
	if declared != "" && !strings.EqualFold(declared, mimeType) {
		log.Debug().Str("declared", declared).Str("detected", mimeType).Msg("Declared MIME type differs from content")
	}

	if !remoteMIME[mimeType] {
		converted, err := toPNG(data)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("from", mimeType).Int("size_bytes", len(converted)).Msg("Converted image to PNG")
		data, mimeType = converted, "image/png"
	}

	log.Info().
		Str("mime_type", mimeType).
		Int("width", width).
		Int("height", height).
		Int("size_bytes", len(data)).
		Msg("Image loaded successfully")

	return &render.Image{Data: data, MIMEType: mimeType}, nil
}

func toPNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	if buf.Len() > MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes after conversion to PNG", ErrTooLarge, buf.Len())
	}
	return buf.Bytes(), nil
}
