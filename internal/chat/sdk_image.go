package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/sketch-render/internal/render"
)

// SDKImageClient renders and edits images through the genai SDK. A genai
// client is built per call because the key can change between calls.
type SDKImageClient struct {
	keys        KeySource
	model       string
	httpOptions genai.HTTPOptions
	httpClient  *http.Client
}

// SDKOption configures an SDKImageClient.
type SDKOption func(*SDKImageClient)

// WithSDKHTTPOptions sets the endpoint and API version used by the SDK.
func WithSDKHTTPOptions(opts genai.HTTPOptions) SDKOption {
	return func(c *SDKImageClient) {
		c.httpOptions = opts
	}
}

// WithSDKHTTPClient replaces the HTTP client the SDK sends requests with.
func WithSDKHTTPClient(hc *http.Client) SDKOption {
	return func(c *SDKImageClient) {
		c.httpClient = hc
	}
}

// NewSDKImageClient creates an SDK-backed image client.
func NewSDKImageClient(keys KeySource, model string, opts ...SDKOption) *SDKImageClient {
	if model == "" {
		model = GetImageModelName()
	}
	c := &SDKImageClient{keys: keys, model: model}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sdkHTTPOptions splits a REST base URL such as https://host/v1beta into the
// SDK's base URL and API version.
func sdkHTTPOptions(baseURL string) genai.HTTPOptions {
	base := strings.TrimRight(baseURL, "/")
	if i := strings.LastIndex(base, "/"); i > len("https://") && strings.HasPrefix(base[i+1:], "v1") {
		return genai.HTTPOptions{BaseURL: base[:i] + "/", APIVersion: base[i+1:]}
	}
	return genai.HTTPOptions{BaseURL: base + "/"}
}

// Model returns the model ID the client sends requests to.
func (c *SDKImageClient) Model() string {
	return c.model
}

// Generate renders the sketch in req.
func (c *SDKImageClient) Generate(ctx context.Context, req render.GenerationRequest) (*render.Image, error) {
	if req.Image.IsZero() {
		return nil, fmt.Errorf("%w: generation request has no image", render.ErrInvalidInput)
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: string(req.AspectRatio),
			ImageSize:   string(req.ImageSize),
		},
	}
	return c.call(ctx, req.Image, req.Prompt, req.SystemInstruction, config)
}

// Edit applies a free-text command to a prior render.
func (c *SDKImageClient) Edit(ctx context.Context, req render.EditRequest) (*render.Image, error) {
	if req.Image.IsZero() {
		return nil, fmt.Errorf("%w: edit request has no image", render.ErrInvalidInput)
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	return c.call(ctx, req.Image, req.Command, req.SystemInstruction, config)
}

func (c *SDKImageClient) call(ctx context.Context, img *render.Image, text, systemInstruction string, config *genai.GenerateContentConfig) (*render.Image, error) {
	apiKey, err := c.keys.APIKey(ctx)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  c.httpClient,
		HTTPOptions: c.httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, img.MIMEType),
			genai.NewPartFromText(text),
		}, genai.RoleUser),
	}

	log.Debug().
		Str("model", c.model).
		Int("image_bytes", len(img.Data)).
		Msg("Calling Gemini image model via SDK")

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		if apiErr, ok := asGenaiAPIError(err); ok {
			return nil, &APIError{Code: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	var modelText string
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				log.Info().
					Int("output_bytes", len(part.InlineData.Data)).
					Str("output_mime", part.InlineData.MIMEType).
					Dur("duration", time.Since(start)).
					Msg("Gemini image call complete")
				return &render.Image{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}, nil
			}
			modelText += part.Text
		}
	}

	return nil, fmt.Errorf("%w (text: %s)", ErrNoImage, truncateString(modelText, 200))
}

// asGenaiAPIError matches the SDK error whether it is returned by value or
// by pointer.
func asGenaiAPIError(err error) (*genai.APIError, bool) {
	var ptr *genai.APIError
	if errors.As(err, &ptr) {
		return ptr, true
	}
	var val genai.APIError
	if errors.As(err, &val) {
		return &val, true
	}
	return nil, false
}
