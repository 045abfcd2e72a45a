// Package jobs issues identifiers for render submissions.
package jobs

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/rs/zerolog/log"
)

// GenerateID creates a new cryptographically random submission ID with the
// given prefix. The prefix should include a trailing dash, e.g. "gen-", "edit-".
func GenerateID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msgf("Failed to generate random %s submission ID", prefix)
	}
	return prefix + hex.EncodeToString(b)
}
