package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrDeclined is returned by SelectKey when the user does not provide a key.
var ErrDeclined = errors.New("API key selection declined")

// Prompter asks the user for an API key. Implementations return ErrDeclined
// when the user cancels.
type Prompter interface {
	PromptKey(ctx context.Context) (string, error)
}

// Validator checks a candidate key before it is stored.
type Validator func(ctx context.Context, key string) error

// Keyring holds the API key selected for this process. It answers the
// "has a key been selected" query, runs the selection prompt, and serves the
// current key to the remote clients on every call.
type Keyring struct {
	mu       sync.RWMutex
	key      string
	prompter Prompter
	validate Validator
}

// NewKeyring creates a keyring seeded with initial, which may be empty.
// validate may be nil to store keys unchecked.
func NewKeyring(initial string, prompter Prompter, validate Validator) *Keyring {
	return &Keyring{
		key:      strings.TrimSpace(initial),
		prompter: prompter,
		validate: validate,
	}
}

// HasSelectedKey reports whether a key is available.
func (k *Keyring) HasSelectedKey(context.Context) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.key != ""
}

// SelectKey prompts for a key, validates it and stores it. The previous key
// is kept when the prompt is declined or the new key fails validation.
func (k *Keyring) SelectKey(ctx context.Context) error {
	if k.prompter == nil {
		return fmt.Errorf("%w: no prompter configured", ErrDeclined)
	}

	key, err := k.prompter.PromptKey(ctx)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrDeclined
	}

	if k.validate != nil {
		if err := k.validate(ctx, key); err != nil {
			log.Warn().Err(err).Msg("Selected API key failed validation")
			return err
		}
	}

	k.Set(key)
	log.Info().Msg("API key selected")
	return nil
}

// Set stores key directly.
func (k *Keyring) Set(key string) {
	k.mu.Lock()
	k.key = strings.TrimSpace(key)
	k.mu.Unlock()
}

// APIKey returns the current key, or ErrNoKey.
func (k *Keyring) APIKey(context.Context) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.key == "" {
		return "", ErrNoKey
	}
	return k.key, nil
}
