package chat

// gemini_image.go calls the Gemini image models through the REST
// generateContent endpoint. Image parts travel inline as base64 and the
// requested framing and resolution go in generationConfig.imageConfig.

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/sketch-render/internal/render"
)

// DefaultBaseURL is the Gemini REST API base URL.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiImageClient renders and edits images via the Gemini REST API.
type GeminiImageClient struct {
	keys       KeySource
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a GeminiImageClient.
type Option func(*GeminiImageClient)

// WithModel overrides the image model. An empty model keeps the default.
func WithModel(model string) Option {
	return func(c *GeminiImageClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at another endpoint (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *GeminiImageClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *GeminiImageClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewGeminiImageClient creates a REST client for Gemini image generation.
func NewGeminiImageClient(keys KeySource, opts ...Option) *GeminiImageClient {
	c := &GeminiImageClient{
		keys:    keys,
		model:   GetImageModelName(),
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // 4K renders regularly take over a minute
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model ID the client sends requests to.
func (c *GeminiImageClient) Model() string {
	return c.model
}

// --- REST API request/response types ---

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobData `json:"inlineData,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type geminiBlobData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate renders the sketch in req and returns the first image part.
func (c *GeminiImageClient) Generate(ctx context.Context, req render.GenerationRequest) (*render.Image, error) {
	if req.Image.IsZero() {
		return nil, fmt.Errorf("%w: generation request has no image", render.ErrInvalidInput)
	}
	log.Info().
		Str("model", c.model).
		Int("image_bytes", len(req.Image.Data)).
		Str("image_mime", req.Image.MIMEType).
		Str("aspect_ratio", string(req.AspectRatio)).
		Str("image_size", string(req.ImageSize)).
		Msg("Sending sketch to Gemini for rendering")

	return c.generateContent(ctx, req.Image, req.Prompt, req.SystemInstruction, &geminiImageConfig{
		AspectRatio: string(req.AspectRatio),
		ImageSize:   string(req.ImageSize),
	})
}

// Edit applies a free-text command to a prior render.
func (c *GeminiImageClient) Edit(ctx context.Context, req render.EditRequest) (*render.Image, error) {
	if req.Image.IsZero() {
		return nil, fmt.Errorf("%w: edit request has no image", render.ErrInvalidInput)
	}
	log.Info().
		Str("model", c.model).
		Int("image_bytes", len(req.Image.Data)).
		Str("command", truncateString(req.Command, 80)).
		Msg("Sending render to Gemini for editing")

	return c.generateContent(ctx, req.Image, req.Command, req.SystemInstruction, nil)
}

func (c *GeminiImageClient) generateContent(ctx context.Context, img *render.Image, text, systemInstruction string, imageConfig *geminiImageConfig) (*render.Image, error) {
	startTime := time.Now()

	apiKey, err := c.keys.APIKey(ctx)
	if err != nil {
		return nil, err
	}

	req := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        imageConfig,
		},
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{
					InlineData: &geminiBlobData{
						MIMEType: img.MIMEType,
						Data:     base64.StdEncoding.EncodeToString(img.Data),
					},
				},
				{Text: text},
			},
		}},
	}
	if systemInstruction != "" {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: systemInstruction}},
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var geminiResp geminiResponse
	parseErr := json.Unmarshal(respBody, &geminiResp)

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", truncateString(string(respBody), 500)).
			Msg("Gemini image API returned error")
		if parseErr == nil && geminiResp.Error != nil {
			return nil, apiErrorFrom(geminiResp.Error)
		}
		return nil, &APIError{
			Code:    resp.StatusCode,
			Status:  http.StatusText(resp.StatusCode),
			Message: truncateString(string(respBody), 200),
		}
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", parseErr)
	}
	if geminiResp.Error != nil {
		return nil, apiErrorFrom(geminiResp.Error)
	}

	var out *render.Image
	var modelText strings.Builder
	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && out == nil {
				decoded, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode image data: %w", err)
				}
				if len(decoded) > 0 {
					out = &render.Image{Data: decoded, MIMEType: part.InlineData.MIMEType}
				}
			}
			modelText.WriteString(part.Text)
		}
	}

	if out == nil {
		return nil, fmt.Errorf("%w (text: %s)", ErrNoImage, truncateString(modelText.String(), 200))
	}

	log.Info().
		Int("output_bytes", len(out.Data)).
		Str("output_mime", out.MIMEType).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini image call complete")

	return out, nil
}

func apiErrorFrom(e *geminiError) *APIError {
	return &APIError{Code: e.Code, Status: e.Status, Message: e.Message}
}
