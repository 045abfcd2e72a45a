// Package auth resolves the Gemini API key and gates paid render tiers
// behind an explicit key selection.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".sketch-render"
	credentialFile = "credentials.gpg"
	passphraseFile = ".gpg-passphrase"
)

// ErrNoKey is returned by GetAPIKey when no source yields a key.
var ErrNoKey = errors.New("API key not found")

// GetAPIKey retrieves the Gemini API key from available sources.
// Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. GPG-encrypted file at ~/.sketch-render/credentials.gpg
func GetAPIKey() (string, error) {
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	key, err := getFromGPG()
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from GPG encrypted file")
		return key, nil
	}

	log.Debug().Err(err).Msg("No stored API key")
	return "", fmt.Errorf("%w: set GEMINI_API_KEY or store one in ~/%s/%s", ErrNoKey, credentialDir, credentialFile)
}

// getFromGPG decrypts the API key from the GPG-encrypted credentials file.
func getFromGPG() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet"}
	if passphrasePath, ok := usablePassphraseFile(); ok {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
	}
	args = append(args, credPath)

	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// usablePassphraseFile returns the passphrase file next to the credentials
// when it exists and is readable only by its owner.
func usablePassphraseFile() (string, bool) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", false
	}
	path := filepath.Join(filepath.Dir(credPath), passphraseFile)
	fi, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if mode := fi.Mode().Perm(); mode&0077 != 0 {
		log.Warn().
			Str("passphrase_file", path).
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Passphrase file has insecure permissions (should be 0600); skipping")
		return "", false
	}
	return path, true
}

// getCredentialPath returns the full path to the credentials file.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, credentialDir, credentialFile), nil
}
