package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/ncruces/zenity"

	"github.com/fpang/sketch-render/internal/filehandler"
	"github.com/fpang/sketch-render/internal/render"
	"github.com/fpang/sketch-render/internal/session"
)

type stubRenderer struct {
	result *render.Image
	err    error
	gate   chan struct{}
}

func (s *stubRenderer) Generate(ctx context.Context, req render.GenerationRequest) (*render.Image, error) {
	if s.gate != nil {
		<-s.gate
	}
	return s.result, s.err
}

func (s *stubRenderer) Edit(ctx context.Context, req render.EditRequest) (*render.Image, error) {
	return s.result, s.err
}

type stubAuth struct{ selected bool }

func (a *stubAuth) HasSelectedKey(context.Context) bool { return a.selected }
func (a *stubAuth) SelectKey(context.Context) error     { return errors.New("declined") }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T, r session.Renderer) (*server, http.Handler) {
	t.Helper()
	ctrl := session.New(r, &stubAuth{selected: true})
	t.Cleanup(ctrl.Wait)
	s := newServer(ctrl, t.TempDir())
	s.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	s.pickFile = func() (string, error) { return "", zenity.ErrCanceled }
	return s, withRequestID(withLogging(s.routes()))
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		data, _ := json.Marshal(body)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func upload(t *testing.T, h http.Handler, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "sketch.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/image", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var snap map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return snap
}

func TestCatalogEndpoint(t *testing.T) {
	_, h := newTestServer(t, &stubRenderer{})
	w := do(t, h, http.MethodGet, "/api/catalog", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var cat render.Catalog
	if err := json.Unmarshal(w.Body.Bytes(), &cat); err != nil {
		t.Fatal(err)
	}
	if len(cat.Styles) != len(render.Styles) || cat.Defaults.PreserveDetails != render.DefaultPreserveDetails {
		t.Errorf("catalog = %+v", cat)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := newTestServer(t, &stubRenderer{})
	for _, path := range []string{"/api/render", "/api/edit", "/api/options", "/api/export/save"} {
		if w := do(t, h, http.MethodGet, path, nil); w.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s = %d", path, w.Code)
		}
	}
}

func TestOptionsEndpoint(t *testing.T) {
	_, h := newTestServer(t, &stubRenderer{})

	w := do(t, h, http.MethodPost, "/api/options", map[string]any{"key": "preserveDetails", "value": 70})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	opts := decodeSnapshot(t, w)["options"].(map[string]any)
	if opts["preserveDetails"].(float64) != 70 {
		t.Errorf("preserveDetails = %v", opts["preserveDetails"])
	}

	w = do(t, h, http.MethodPost, "/api/options", map[string]any{"key": "style", "value": "baroque"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid style status = %d", w.Code)
	}
}

func TestRenderFlow(t *testing.T) {
	result := &render.Image{Data: pngBytes(t, 64, 32), MIMEType: "image/png"}
	s, h := newTestServer(t, &stubRenderer{result: result})

	if w := do(t, h, http.MethodPost, "/api/render", nil); w.Code != http.StatusBadRequest {
		t.Errorf("render without sketch = %d", w.Code)
	}

	w := upload(t, h, pngBytes(t, 40, 40))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body)
	}
	if decodeSnapshot(t, w)["hasSource"] != true {
		t.Error("hasSource should be true after upload")
	}

	if w := do(t, h, http.MethodPost, "/api/render", nil); w.Code != http.StatusAccepted {
		t.Fatalf("render status = %d: %s", w.Code, w.Body)
	}
	s.session.Wait()

	snap := decodeSnapshot(t, do(t, h, http.MethodGet, "/api/session", nil))
	if snap["phase"] != "idle" || snap["hasResult"] != true {
		t.Fatalf("snapshot = %v", snap)
	}

	w = do(t, h, http.MethodGet, "/api/image/result", nil)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), result.Data) {
		t.Errorf("result image = %d, %d bytes", w.Code, w.Body.Len())
	}

	w = do(t, h, http.MethodGet, "/api/image/result?thumb=16", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("thumbnail = %d %s", w.Code, w.Header().Get("Content-Type"))
	}

	if w := do(t, h, http.MethodPost, "/api/edit", map[string]string{"command": "add trees"}); w.Code != http.StatusAccepted {
		t.Fatalf("edit status = %d: %s", w.Code, w.Body)
	}
	s.session.Wait()
	if got := s.session.Snapshot().Edits; got != 1 {
		t.Errorf("edits = %d", got)
	}
}

func TestRenderWhileBusyConflicts(t *testing.T) {
	gate := make(chan struct{})
	s, h := newTestServer(t, &stubRenderer{result: &render.Image{Data: []byte{1}, MIMEType: "image/png"}, gate: gate})
	upload(t, h, pngBytes(t, 8, 8))

	if w := do(t, h, http.MethodPost, "/api/render", nil); w.Code != http.StatusAccepted {
		t.Fatalf("first render = %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/render", nil); w.Code != http.StatusConflict {
		t.Errorf("second render = %d, want 409", w.Code)
	}
	close(gate)
	s.session.Wait()
}

func TestRemoteFailureShownInSession(t *testing.T) {
	s, h := newTestServer(t, &stubRenderer{err: errors.New("Requested entity was not found.")})
	upload(t, h, pngBytes(t, 8, 8))
	do(t, h, http.MethodPost, "/api/render", nil)
	s.session.Wait()

	snap := decodeSnapshot(t, do(t, h, http.MethodGet, "/api/session", nil))
	if snap["error"] != session.CredentialErrorMessage {
		t.Errorf("error = %v", snap["error"])
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	_, h := newTestServer(t, &stubRenderer{})
	if w := upload(t, h, []byte("not an image")); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestPickCanceled(t *testing.T) {
	_, h := newTestServer(t, &stubRenderer{})
	w := do(t, h, http.MethodPost, "/api/pick", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"canceled":true`) {
		t.Errorf("pick = %d %s", w.Code, w.Body)
	}
}

func TestPickLoadsFile(t *testing.T) {
	s, h := newTestServer(t, &stubRenderer{})
	path := filepath.Join(t.TempDir(), "plan.png")
	if err := os.WriteFile(path, pngBytes(t, 12, 12), 0o644); err != nil {
		t.Fatal(err)
	}
	s.pickFile = func() (string, error) { return path, nil }

	if w := do(t, h, http.MethodPost, "/api/pick", nil); w.Code != http.StatusOK {
		t.Fatalf("pick = %d %s", w.Code, w.Body)
	}
	if !s.session.Snapshot().HasSource {
		t.Error("picked file was not loaded")
	}
}

func TestExportEndpoints(t *testing.T) {
	result := &render.Image{Data: []byte("jpeg-bytes"), MIMEType: "image/jpeg"}
	s, h := newTestServer(t, &stubRenderer{result: result})

	if w := do(t, h, http.MethodGet, "/api/export", nil); w.Code != http.StatusNotFound {
		t.Errorf("export before render = %d", w.Code)
	}

	upload(t, h, pngBytes(t, 8, 8))
	do(t, h, http.MethodPost, "/api/render", nil)
	s.session.Wait()

	w := do(t, h, http.MethodGet, "/api/export", nil)
	if w.Code != http.StatusOK || w.Body.String() != "jpeg-bytes" {
		t.Fatalf("export = %d %q", w.Code, w.Body)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="render.jpg"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	w = do(t, h, http.MethodGet, "/api/export?bundle=1", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("bundle = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("bundle is not a zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["sketch.png"] || !names["render.jpg"] || !names["render.json"] {
		t.Errorf("bundle entries = %v", names)
	}

	w = do(t, h, http.MethodPost, "/api/export/save", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d %s", w.Code, w.Body)
	}
	var saved map[string]string
	json.Unmarshal(w.Body.Bytes(), &saved)
	data, err := os.ReadFile(saved["path"])
	if err != nil || string(data) != "jpeg-bytes" {
		t.Errorf("saved file = %q, %v", data, err)
	}
	if filepath.Base(saved["path"]) != "render-20260501-120000.jpg" {
		t.Errorf("saved name = %q", filepath.Base(saved["path"]))
	}
}

func TestUnknownImage(t *testing.T) {
	_, h := newTestServer(t, &stubRenderer{})
	if w := do(t, h, http.MethodGet, "/api/image/other", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/image/source", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing source = %d", w.Code)
	}
}

func TestUploadDataURI(t *testing.T) {
	s, h := newTestServer(t, &stubRenderer{})
	src := &render.Image{Data: pngBytes(t, 10, 10), MIMEType: "image/png"}

	w := do(t, h, http.MethodPost, "/api/image", map[string]string{"dataUri": src.DataURI(), "name": "sketch.png"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	got := s.session.Snapshot().Source
	if got == nil || !bytes.Equal(got.Data, src.Data) || got.MIMEType != "image/png" {
		t.Errorf("source = %+v", got)
	}

	if w := do(t, h, http.MethodPost, "/api/image", map[string]string{"dataUri": "not-a-uri"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad data URI status = %d", w.Code)
	}
}

func TestBundleManifestDescribesRender(t *testing.T) {
	result := &render.Image{Data: []byte("jpeg-bytes"), MIMEType: "image/jpeg"}
	s, h := newTestServer(t, &stubRenderer{result: result})

	upload(t, h, pngBytes(t, 8, 8))
	do(t, h, http.MethodPost, "/api/render", nil)
	s.session.Wait()
	rendered := s.session.Snapshot().Prompt

	// Changing the form after the render must not leak into its manifest.
	if w := do(t, h, http.MethodPost, "/api/options", map[string]any{"key": "style", "value": "watercolor"}); w.Code != http.StatusOK {
		t.Fatalf("options = %d %s", w.Code, w.Body)
	}

	w := do(t, h, http.MethodGet, "/api/export?bundle=1", nil)
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("bundle is not a zip: %v", err)
	}
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	var m filehandler.Manifest
	for _, f := range zr.File {
		if f.Name != filehandler.ManifestName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("manifest: %v", err)
		}
	}
	if m.Options.Style != render.StylePhotorealistic {
		t.Errorf("manifest style = %s, want the style of the render", m.Options.Style)
	}
	if m.Prompt == "" || m.Prompt != rendered {
		t.Errorf("manifest prompt = %q", m.Prompt)
	}
}
