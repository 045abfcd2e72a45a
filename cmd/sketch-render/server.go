package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/sketch-render/internal/filehandler"
	"github.com/fpang/sketch-render/internal/render"
	"github.com/fpang/sketch-render/internal/session"
)

// server exposes one session controller over HTTP.
type server struct {
	session   *session.Controller
	exportDir string

	// pickFile opens the native file dialog. Replaced in tests.
	pickFile func() (string, error)
	now      func() time.Time
}

func newServer(ctrl *session.Controller, exportDir string) *server {
	return &server{
		session:   ctrl,
		exportDir: exportDir,
		pickFile:  pickSketchFile,
		now:       time.Now,
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/catalog", s.handleCatalog)
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/api/options", s.handleOptions)
	mux.HandleFunc("/api/image", s.handleUpload)
	mux.HandleFunc("/api/image/", s.handleImage)
	mux.HandleFunc("/api/pick", s.handlePick)
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/edit", s.handleEdit)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/api/export/save", s.handleExportSave)
	return mux
}

// GET /api/catalog
func (s *server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, render.BuildCatalog())
}

// GET /api/session
func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, s.session.Snapshot())
}

// POST /api/options {"key": "style", "value": "watercolor"}
func (s *server) handleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Numbers and strings are both accepted for value.
	value := string(req.Value)
	var str string
	if err := json.Unmarshal(req.Value, &str); err == nil {
		value = str
	}

	if err := s.session.SetOption(render.OptionKey(req.Key), value); err != nil {
		httpError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.session.Snapshot())
}

// POST /api/image (multipart, field "file")
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, filehandler.MaxImageBytes*2)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		s.uploadDataURI(w, r)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpError(w, http.StatusRequestEntityTooLarge, "image exceeds size limit")
			return
		}
		httpError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	img, err := filehandler.DecodeUpload(file, header.Header.Get("Content-Type"))
	if err != nil {
		httpError(w, statusFor(err), err.Error())
		return
	}
	s.load(w, img, header.Filename)
}

// uploadDataURI accepts {"dataUri": "data:image/png;base64,..."}, the form a
// browser FileReader produces.
func (s *server) uploadDataURI(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DataURI string `json:"dataUri"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	parsed, err := render.ParseDataURI(req.DataURI)
	if err != nil {
		httpError(w, statusFor(err), err.Error())
		return
	}
	img, err := filehandler.DecodeUpload(bytes.NewReader(parsed.Data), parsed.MIMEType)
	if err != nil {
		httpError(w, statusFor(err), err.Error())
		return
	}
	s.load(w, img, req.Name)
}

// POST /api/pick
// Opens a native file dialog and loads the chosen sketch.
func (s *server) handlePick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path, err := s.pickFile()
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			respondJSON(w, http.StatusOK, map[string]any{"canceled": true})
			return
		}
		log.Error().Err(err).Msg("File picker failed")
		httpError(w, http.StatusInternalServerError, "file picker failed")
		return
	}

	img, err := filehandler.LoadImageFile(path)
	if err != nil {
		httpError(w, statusFor(err), err.Error())
		return
	}
	s.load(w, img, path)
}

func (s *server) load(w http.ResponseWriter, img *render.Image, name string) {
	if err := s.session.LoadImage(img.Data, img.MIMEType); err != nil {
		httpError(w, statusFor(err), err.Error())
		return
	}
	log.Info().Str("name", name).Msg("Sketch received")
	respondJSON(w, http.StatusOK, s.session.Snapshot())
}

// POST /api/render
func (s *server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.session.StartGeneration(r.Context()); err != nil {
		httpError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, s.session.Snapshot())
}

// POST /api/edit {"command": "..."}
func (s *server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.session.StartEdit(r.Context(), req.Command); err != nil {
		httpError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, s.session.Snapshot())
}

// GET /api/image/source, /api/image/result; ?thumb=N for a preview.
func (s *server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := s.session.Snapshot()
	var img *render.Image
	switch strings.TrimPrefix(r.URL.Path, "/api/image/") {
	case "source":
		img = snap.Source
	case "result":
		img = snap.Result
	default:
		httpError(w, http.StatusNotFound, "unknown image")
		return
	}
	if img.IsZero() {
		httpError(w, http.StatusNotFound, "no image")
		return
	}

	if thumb := r.URL.Query().Get("thumb"); thumb != "" {
		maxDim, err := strconv.Atoi(thumb)
		if err != nil || maxDim <= 0 {
			httpError(w, http.StatusBadRequest, "thumb must be a positive integer")
			return
		}
		preview, err := filehandler.GenerateThumbnail(img, maxDim)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to generate thumbnail")
			httpError(w, http.StatusInternalServerError, "thumbnail generation failed")
			return
		}
		img = preview
	}

	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img.Data)
}

// GET /api/export; ?bundle=1 for a ZIP with the sketch and a manifest.
func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := s.session.Snapshot()
	if snap.Result.IsZero() {
		httpError(w, http.StatusNotFound, "no render to export")
		return
	}

	if r.URL.Query().Get("bundle") == "" {
		w.Header().Set("Content-Type", snap.Result.MIMEType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "render"+snap.Result.Extension()))
		w.Write(snap.Result.Data)
		return
	}

	bundle := filehandler.Bundle{
		Source:  snap.Source,
		Result:  snap.Result,
		Options: snap.RenderOptions(),
		Prompt:  snap.Prompt,
		Edits:   snap.Edits,
		Created: s.now(),
	}
	if !snap.Source.IsZero() {
		if meta, err := filehandler.ExtractImageMetadata(snap.Source.Data); err == nil {
			bundle.Metadata = meta
		}
	}

	// Build in memory so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := filehandler.WriteBundle(&buf, bundle); err != nil {
		log.Error().Err(err).Msg("Failed to build export bundle")
		httpError(w, statusFor(err), "export failed")
		return
	}
	name := "render-" + bundle.Created.Format("20060102-150405") + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}

// POST /api/export/save
func (s *server) handleExportSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := s.session.Snapshot()
	if snap.Result.IsZero() {
		httpError(w, http.StatusNotFound, "no render to save")
		return
	}
	path, err := filehandler.WriteResult(s.exportDir, snap.Result, s.now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to save render")
		httpError(w, statusFor(err), "save failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"path": path})
}

func pickSketchFile() (string, error) {
	return zenity.SelectFile(
		zenity.Title("Select a sketch"),
		zenity.FileFilters{
			{
				Name: "Images",
				Patterns: []string{
					"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp",
					"*.bmp", "*.tif", "*.tiff",
				},
			},
		},
	)
}
