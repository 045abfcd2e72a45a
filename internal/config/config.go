// Package config loads process settings from the environment, with optional
// .env files in the working directory.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds settings shared by the sketch-render commands. The API key is
// not part of it; auth.GetAPIKey resolves that separately.
type Config struct {
	ImageModel     string
	Backend        string
	BaseURL        string
	Host           string
	Port           int
	ExportDir      string
	MetricsEnabled bool
	ValidateKeys   bool
	// RemoteTimeout bounds one HTTP exchange with the image API. Zero keeps
	// the client default.
	RemoteTimeout time.Duration
}

// Load reads .env and .env.local (when present) and then the environment.
// Variables already set in the environment win over file values.
func Load() Config {
	for _, name := range []string{".env", ".env.local"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("file", name).Msg("Failed to parse env file")
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		ImageModel:     getEnv("GEMINI_IMAGE_MODEL", ""),
		Backend:        strings.ToLower(getEnv("GEMINI_BACKEND", "rest")),
		BaseURL:        getEnv("GEMINI_BASE_URL", ""),
		Host:           getEnv("HOST", "127.0.0.1"),
		Port:           getEnvInt("PORT", 8080),
		ExportDir:      getEnv("EXPORT_DIR", defaultExportDir()),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		ValidateKeys:   getEnvBool("VALIDATE_KEYS", true),
		RemoteTimeout:  time.Duration(getEnvInt("REMOTE_TIMEOUT_SECONDS", 0)) * time.Second,
	}
}

func defaultExportDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "renders"
	}
	return filepath.Join(home, "Pictures", "sketch-render")
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("Invalid integer in environment, using default")
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Bool("default", def).Msg("Invalid boolean in environment, using default")
		return def
	}
	return b
}
