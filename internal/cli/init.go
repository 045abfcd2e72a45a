// Package cli holds start-up helpers shared by the sketch-render commands.
package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/sketch-render/internal/auth"
	"github.com/fpang/sketch-render/internal/chat"
	"github.com/fpang/sketch-render/internal/config"
	"github.com/fpang/sketch-render/internal/render"
)

// MustValidateCatalog exits when an option table is incomplete.
func MustValidateCatalog() {
	if err := render.ValidateCatalog(); err != nil {
		log.Fatal().Err(err).Msg("Option catalog is inconsistent")
	}
}

// InitKeyring resolves the starting API key and returns a keyring that
// prompts through prompter when a paid tier needs a key. A missing key is not
// fatal; a configured key that fails validation is.
func InitKeyring(ctx context.Context, cfg config.Config, prompter auth.Prompter) *auth.Keyring {
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		if !errors.Is(err, auth.ErrNoKey) {
			log.Fatal().Err(err).Msg("failed to retrieve API key")
		}
		log.Warn().Msg("No API key configured; a key will be requested when a render needs one")
	}

	var validate auth.Validator
	if cfg.ValidateKeys {
		validate = auth.ValidateKey
		if apiKey != "" {
			if err := auth.ValidateKey(ctx, apiKey); err != nil {
				HandleValidationError(err)
			}
			log.Info().Msg("API key validation complete - ready for operations")
		}
	}

	return auth.NewKeyring(apiKey, prompter, validate)
}

// InitImageClient builds the image client for the configured backend.
// Exits fatally on an unknown backend.
func InitImageClient(cfg config.Config, keys chat.KeySource) chat.ImageClient {
	model := cfg.ImageModel
	if model == "" {
		model = chat.GetImageModelName()
	}

	var opts []chat.Option
	if cfg.BaseURL != "" {
		opts = append(opts, chat.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RemoteTimeout > 0 {
		opts = append(opts, chat.WithHTTPClient(&http.Client{Timeout: cfg.RemoteTimeout}))
	}

	client, err := chat.New(cfg.Backend, keys, model, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini image client")
	}
	log.Info().Str("model", model).Str("backend", cfg.Backend).Msg("Gemini image client initialized")
	return client
}
