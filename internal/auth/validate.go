package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/sketch-render/internal/metrics"
)

// validationModel is a cheap text model; the ping only proves the key works.
const validationModel = "gemini-2.5-flash-lite"

// ValidationError represents a specific type of API key validation failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates the API quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateKey builds a genai client for key and validates it.
func ValidateKey(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return &ValidationError{Type: ErrTypeNoKey, Message: "API key is empty"}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &ValidationError{Type: ErrTypeUnknown, Message: "Failed to create Gemini client", Err: err}
	}
	return ValidateAPIKey(ctx, client)
}

// ValidateAPIKey verifies that the API key is valid by making a minimal API call.
// It returns nil if the key is valid, or a ValidationError with a specific type
// indicating the nature of the failure.
func ValidateAPIKey(ctx context.Context, client *genai.Client) error {
	log.Debug().Msg("Validating API key with Gemini API")

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, validationModel, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	if err != nil {
		valErr := classifyError(err)
		emitValidationMetric(valErr.Type.String(), elapsed)
		return valErr
	}

	if resp == nil || len(resp.Candidates) == 0 {
		log.Warn().Msg("API key validation returned empty response")
		emitValidationMetric("empty_response", elapsed)
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "API returned empty response",
		}
	}

	emitValidationMetric("success", elapsed)
	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

func emitValidationMetric(result string, elapsed time.Duration) {
	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()
}

// errorPatterns classify SDK errors that carry no API status, by substring
// of the lower-cased error text. First match wins.
var errorPatterns = []struct {
	typ     ValidationErrorType
	message string
	needles []string
}{
	{ErrTypeInvalidKey, "API key is invalid or has been revoked",
		[]string{"api key not valid", "invalid api key", "api_key_invalid", "permission denied"}},
	{ErrTypeQuotaExceeded, "API quota exceeded or rate limited",
		[]string{"quota", "resource exhausted", "rate limit"}},
	{ErrTypeNetworkError, "Network error - check your internet connection",
		[]string{"connection", "network", "timeout", "dial", "no such host", "unreachable"}},
}

// classifyError maps a validation failure to a ValidationError.
func classifyError(err error) *ValidationError {
	if err == nil {
		return nil
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr.Code, apiErr.Message, err)
	}
	var apiErrVal genai.APIError
	if errors.As(err, &apiErrVal) {
		return classifyAPIError(apiErrVal.Code, apiErrVal.Message, err)
	}

	text := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		for _, needle := range p.needles {
			if strings.Contains(text, needle) {
				log.Error().Err(err).Str("type", p.typ.String()).Msg("API key validation failed")
				return &ValidationError{Type: p.typ, Message: p.message, Err: err}
			}
		}
	}

	log.Error().Err(err).Msg("Unknown error during API validation")
	return &ValidationError{Type: ErrTypeUnknown, Message: "Failed to validate API key", Err: err}
}

// classifyAPIError categorizes an API error by HTTP status code.
func classifyAPIError(code int, message string, err error) *ValidationError {
	v := &ValidationError{Type: ErrTypeUnknown, Message: message, Err: err}
	switch {
	case code == 400:
		v.Type, v.Message = ErrTypeInvalidKey, "Bad request - API key may be malformed"
	case code == 401 || code == 403:
		v.Type, v.Message = ErrTypeInvalidKey, "API key is invalid, expired, or lacks permissions"
	case code == 429:
		v.Type, v.Message = ErrTypeQuotaExceeded, "API rate limit exceeded - try again later"
	case code >= 500 && code <= 504:
		v.Type, v.Message = ErrTypeNetworkError, "Gemini API server error - try again later"
	}
	log.Error().Int("code", code).Str("type", v.Type.String()).Str("message", message).Msg("Gemini API rejected validation call")
	return v
}
