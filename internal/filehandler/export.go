package filehandler

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/sketch-render/internal/render"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
const zipMethodZstd = zstd.ZipMethodWinZip

// ManifestName is the metadata entry inside an export bundle.
const ManifestName = "render.json"

// ResultFileName returns the download name for a render taken at t.
func ResultFileName(img *render.Image, t time.Time) string {
	return "render-" + t.Format("20060102-150405") + img.Extension()
}

// WriteResult writes the render bytes unchanged into dir and returns the path.
// The directory is created if needed; an existing file is never overwritten.
func WriteResult(dir string, img *render.Image, now time.Time) (string, error) {
	if img.IsZero() {
		return "", fmt.Errorf("%w: no render to save", render.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	base := ResultFileName(img, now)
	path := filepath.Join(dir, base)
	for i := 2; ; i++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			ext := filepath.Ext(base)
			path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base[:len(base)-len(ext)], i, ext))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		if _, err := f.Write(img.Data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", path, err)
		}
		break
	}

	log.Info().Str("path", path).Int("bytes", len(img.Data)).Msg("Render saved")
	return path, nil
}

// Bundle is the content of an export archive.
type Bundle struct {
	Source   *render.Image
	Result   *render.Image
	Options  render.Options
	Prompt   string
	Edits    int
	Created  time.Time
	Metadata *ImageMetadata
}

// Manifest is the JSON document stored as render.json.
type Manifest struct {
	Created time.Time      `json:"created"`
	Options render.Options `json:"options"`
	Prompt  string         `json:"prompt,omitempty"`
	Edits   int            `json:"edits"`
	Source  string         `json:"source,omitempty"`
	Result  string         `json:"result"`
	Sketch  *ImageMetadata `json:"sketch,omitempty"`
}

// WriteBundle writes a zstd-compressed ZIP holding the sketch, the render and
// a manifest with the options and prompt that produced it.
func WriteBundle(w io.Writer, b Bundle) error {
	if b.Result.IsZero() {
		return fmt.Errorf("%w: no render to export", render.ErrInvalidInput)
	}
	if b.Created.IsZero() {
		b.Created = time.Now()
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zipMethodZstd, zstd.ZipCompressor(zstd.WithEncoderLevel(zstd.SpeedBetterCompression)))

	manifest := Manifest{
		Created: b.Created.UTC(),
		Options: b.Options,
		Prompt:  b.Prompt,
		Edits:   b.Edits,
		Result:  "render" + b.Result.Extension(),
		Sketch:  b.Metadata,
	}
	if !b.Source.IsZero() {
		manifest.Source = "sketch" + b.Source.Extension()
		if err := addZipEntry(zw, manifest.Source, b.Source.Data, b.Created); err != nil {
			return err
		}
	}
	if err := addZipEntry(zw, manifest.Result, b.Result.Data, b.Created); err != nil {
		return err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := addZipEntry(zw, ManifestName, data, b.Created); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize zip: %w", err)
	}
	return nil
}

func addZipEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zipMethodZstd,
		Modified: modified,
	}
	fw, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", name, err)
	}
	return nil
}
