// Package chat talks to the Gemini image models. Two backends are provided:
// a direct REST client and one built on the genai SDK. Both render a sketch
// from a prepared request and apply follow-up edits to a prior render.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/fpang/sketch-render/internal/render"
)

// ErrNoAPIKey is returned when no key is available at call time.
var ErrNoAPIKey = errors.New("no Gemini API key configured")

// ErrNoImage is returned when the model answered without an image part.
var ErrNoImage = errors.New("no image returned in response")

// KeySource supplies the API key for each call. It is consulted per call so
// a key selected after start-up applies to the next request.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a KeySource that always returns the same key.
type StaticKey string

// APIKey implements KeySource.
func (k StaticKey) APIKey(context.Context) (string, error) {
	if k == "" {
		return "", ErrNoAPIKey
	}
	return string(k), nil
}

// ImageClient is the contract both backends satisfy.
type ImageClient interface {
	Generate(ctx context.Context, req render.GenerationRequest) (*render.Image, error)
	Edit(ctx context.Context, req render.EditRequest) (*render.Image, error)
}

// APIError carries the remote error body. Message is kept verbatim so callers
// can match on known remote conditions.
type APIError struct {
	Code    int
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s (code: %d)", e.Message, e.Code)
}

// Backend names accepted by New.
const (
	BackendREST = "rest"
	BackendSDK  = "sdk"
)

// New returns the image client for the named backend.
func New(backend string, keys KeySource, model string, opts ...Option) (ImageClient, error) {
	switch backend {
	case "", BackendREST:
		return NewGeminiImageClient(keys, append([]Option{WithModel(model)}, opts...)...), nil
	case BackendSDK:
		// The REST options carry the endpoint and timeout; the SDK reuses them.
		rest := NewGeminiImageClient(keys, opts...)
		sdkOpts := []SDKOption{WithSDKHTTPClient(rest.httpClient)}
		if rest.baseURL != DefaultBaseURL {
			sdkOpts = append(sdkOpts, WithSDKHTTPOptions(sdkHTTPOptions(rest.baseURL)))
		}
		return NewSDKImageClient(keys, model, sdkOpts...), nil
	default:
		return nil, fmt.Errorf("unknown Gemini backend %q (want %q or %q)", backend, BackendREST, BackendSDK)
	}
}

// truncateString truncates a string to maxLen, appending "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
