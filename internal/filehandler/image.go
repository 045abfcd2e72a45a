package filehandler

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// ImageMetadata is the capture information found in a sketch photo. Most
// screen exports carry none; photos of paper sketches usually do.
type ImageMetadata struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	DateTaken time.Time `json:"dateTaken,omitzero"`
	HasDate   bool      `json:"-"`

	CameraMake  string `json:"cameraMake,omitempty"`
	CameraModel string `json:"cameraModel,omitempty"`
}

// ExtractImageMetadata reads dimensions and, when present, EXIF capture
// fields. Missing EXIF is not an error.
func ExtractImageMetadata(data []byte) (*ImageMetadata, error) {
	_, width, height, err := Sniff(data)
	if err != nil {
		return nil, err
	}
	meta := &ImageMetadata{Width: width, Height: height}

	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata in image")
		return meta, nil
	}

	// Priority: DateTimeOriginal > CreateDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		meta.DateTaken = exifData.DateTimeOriginal()
		meta.HasDate = true
	case !exifData.CreateDate().IsZero():
		meta.DateTaken = exifData.CreateDate()
		meta.HasDate = true
	}

	meta.CameraMake = strings.TrimSpace(exifData.Make)
	meta.CameraModel = strings.TrimSpace(exifData.Model)

	log.Debug().
		Bool("has_date", meta.HasDate).
		Str("camera", meta.Camera()).
		Msg("Image metadata extraction complete")

	return meta, nil
}

// Camera returns "make model", or "" when neither is known.
func (m *ImageMetadata) Camera() string {
	return strings.TrimSpace(m.CameraMake + " " + m.CameraModel)
}

// String summarises the metadata on one line.
func (m *ImageMetadata) String() string {
	s := fmt.Sprintf("%dx%d", m.Width, m.Height)
	if cam := m.Camera(); cam != "" {
		s += ", " + cam
	}
	if m.HasDate {
		s += ", taken " + m.DateTaken.Format("2006-01-02 15:04")
	}
	return s
}
