package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fpang/sketch-render/internal/render"
)

var sketch = &render.Image{Data: []byte("sketch-bytes"), MIMEType: "image/png"}

// newTestClient creates a client pointing at a test HTTP server.
func newTestClient(server *httptest.Server, keys KeySource) *GeminiImageClient {
	return NewGeminiImageClient(keys,
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithModel("test-image-model"),
	)
}

func imageResponse(data []byte, mime string) geminiResponse {
	return geminiResponse{
		Candidates: []geminiCandidate{{
			Content: geminiContent{
				Role: "model",
				Parts: []geminiPart{
					{Text: "Here is your render."},
					{InlineData: &geminiBlobData{MIMEType: mime, Data: base64.StdEncoding.EncodeToString(data)}},
				},
			},
		}},
	}
}

func TestGenerateSendsImageConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/models/test-image-model:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		cfg := req.GenerationConfig
		if cfg == nil || cfg.ImageConfig == nil {
			t.Error("expected generationConfig.imageConfig")
			return
		}
		if cfg.ImageConfig.AspectRatio != "16:9" || cfg.ImageConfig.ImageSize != "2K" {
			t.Errorf("imageConfig = %+v", cfg.ImageConfig)
		}
		if len(cfg.ResponseModalities) != 2 {
			t.Errorf("responseModalities = %v", cfg.ResponseModalities)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "be an architect" {
			t.Errorf("unexpected system instruction: %+v", req.SystemInstruction)
		}

		parts := req.Contents[0].Parts
		if len(parts) != 2 {
			t.Errorf("expected 2 parts, got %d", len(parts))
			return
		}
		if parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/png" {
			t.Errorf("first part should be the sketch: %+v", parts[0])
		}
		if parts[1].Text != "render it" {
			t.Errorf("prompt part = %q", parts[1].Text)
		}

		json.NewEncoder(w).Encode(imageResponse([]byte("rendered"), "image/jpeg"))
	}))
	defer server.Close()

	client := newTestClient(server, StaticKey("test-key"))
	img, err := client.Generate(context.Background(), render.GenerationRequest{
		Image:             sketch,
		Prompt:            "render it",
		SystemInstruction: "be an architect",
		AspectRatio:       render.AspectCinematic,
		ImageSize:         render.Size2K,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(img.Data) != "rendered" || img.MIMEType != "image/jpeg" {
		t.Errorf("unexpected image: %+v", img)
	}
}

func TestEditOmitsImageConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.GenerationConfig.ImageConfig != nil {
			t.Errorf("edit should not send imageConfig: %+v", req.GenerationConfig.ImageConfig)
		}
		if got := req.Contents[0].Parts[1].Text; got != "add trees" {
			t.Errorf("command part = %q", got)
		}
		json.NewEncoder(w).Encode(imageResponse([]byte("edited"), "image/png"))
	}))
	defer server.Close()

	client := newTestClient(server, StaticKey("test-key"))
	img, err := client.Edit(context.Background(), render.EditRequest{Image: sketch, Command: "add trees"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(img.Data) != "edited" {
		t.Errorf("unexpected image: %q", img.Data)
	}
}

func TestGenerateSurfacesAPIErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(geminiResponse{Error: &geminiError{
			Code:    404,
			Message: "Requested entity was not found.",
			Status:  "NOT_FOUND",
		}})
	}))
	defer server.Close()

	client := newTestClient(server, StaticKey("test-key"))
	_, err := client.Generate(context.Background(), render.GenerationRequest{Image: sketch, Prompt: "p"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != 404 || apiErr.Status != "NOT_FOUND" {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
	if !strings.Contains(err.Error(), "Requested entity was not found") {
		t.Errorf("remote message lost: %v", err)
	}
}

func TestGenerateNonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server, StaticKey("test-key"))
	_, err := client.Generate(context.Background(), render.GenerationRequest{Image: sketch, Prompt: "p"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != http.StatusBadGateway || !strings.Contains(apiErr.Message, "upstream exploded") {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
}

func TestGenerateTextOnlyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{{Text: "I cannot draw that."}}},
		}}})
	}))
	defer server.Close()

	client := newTestClient(server, StaticKey("test-key"))
	_, err := client.Generate(context.Background(), render.GenerationRequest{Image: sketch, Prompt: "p"})
	if !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
	if !strings.Contains(err.Error(), "I cannot draw that.") {
		t.Errorf("model text should be included: %v", err)
	}
}

type countingKeys struct {
	key   string
	calls int
}

func (k *countingKeys) APIKey(context.Context) (string, error) {
	k.calls++
	return k.key, nil
}

func TestKeyReadPerCall(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("x-goog-api-key"))
		json.NewEncoder(w).Encode(imageResponse([]byte("ok"), "image/png"))
	}))
	defer server.Close()

	keys := &countingKeys{key: "first"}
	client := newTestClient(server, keys)
	ctx := context.Background()

	if _, err := client.Generate(ctx, render.GenerationRequest{Image: sketch, Prompt: "p"}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	keys.key = "second"
	if _, err := client.Edit(ctx, render.EditRequest{Image: sketch, Command: "c"}); err != nil {
		t.Fatalf("second call: %v", err)
	}

	if keys.calls != 2 {
		t.Errorf("expected key lookup per call, got %d", keys.calls)
	}
	if len(seen) != 2 || seen[0] != "first" || seen[1] != "second" {
		t.Errorf("keys sent = %v", seen)
	}
}

func TestNoKeyMakesNoRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a key")
	}))
	defer server.Close()

	client := newTestClient(server, StaticKey(""))
	_, err := client.Generate(context.Background(), render.GenerationRequest{Image: sketch, Prompt: "p"})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewBackendSelection(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{BackendREST, false},
		{BackendSDK, false},
		{"grpc", true},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			client, err := New(tc.backend, StaticKey("k"), "m")
			if tc.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("expected client")
			}
		})
	}
}

func TestGetImageModelName(t *testing.T) {
	t.Setenv("GEMINI_IMAGE_MODEL", "")
	if got := GetImageModelName(); got != DefaultImageModel {
		t.Errorf("default model = %q", got)
	}
	t.Setenv("GEMINI_IMAGE_MODEL", ModelGemini25FlashImage)
	if got := GetImageModelName(); got != ModelGemini25FlashImage {
		t.Errorf("override model = %q", got)
	}
}
