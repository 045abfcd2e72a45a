package render

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Image is an encoded image payload tagged with its MIME type. It is used for
// both the uploaded sketch and the rendered result.
type Image struct {
	Data     []byte
	MIMEType string
}

// IsZero reports whether img carries no bytes.
func (img *Image) IsZero() bool {
	return img == nil || len(img.Data) == 0
}

// Clone returns a deep copy so callers cannot alias session-owned bytes.
func (img *Image) Clone() *Image {
	if img == nil {
		return nil
	}
	data := make([]byte, len(img.Data))
	copy(data, img.Data)
	return &Image{Data: data, MIMEType: img.MIMEType}
}

// Extension returns a file extension (with dot) for the MIME type.
func (img *Image) Extension() string {
	switch strings.ToLower(img.MIMEType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tif"
	case "image/heic":
		return ".heic"
	case "image/heif":
		return ".heif"
	default:
		return ".png"
	}
}

// DataURI encodes img as a base64 data URI.
func (img *Image) DataURI() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ParseDataURI decodes a base64 data URI such as the one produced by a
// browser FileReader.
func ParseDataURI(uri string) (*Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data URI", ErrInvalidInput)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: data URI has no payload", ErrInvalidInput)
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, fmt.Errorf("%w: data URI is not base64 encoded", ErrInvalidInput)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode data URI: %v", ErrInvalidInput, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: data URI is empty", ErrInvalidInput)
	}
	return &Image{Data: data, MIMEType: mime}, nil
}
