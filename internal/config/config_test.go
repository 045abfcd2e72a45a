package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_IMAGE_MODEL", "GEMINI_BACKEND", "GEMINI_BASE_URL", "HOST", "PORT",
		"EXPORT_DIR", "METRICS_ENABLED", "VALIDATE_KEYS", "REMOTE_TIMEOUT_SECONDS",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	c := FromEnv()
	if c.Backend != "rest" {
		t.Errorf("Backend = %q, want rest", c.Backend)
	}
	if c.Port != 8080 || c.Host != "127.0.0.1" {
		t.Errorf("listen = %s:%d", c.Host, c.Port)
	}
	if c.MetricsEnabled {
		t.Error("metrics should be off by default")
	}
	if !c.ValidateKeys {
		t.Error("key validation should be on by default")
	}
	if c.RemoteTimeout != 0 {
		t.Errorf("RemoteTimeout = %v, want 0", c.RemoteTimeout)
	}
	if want := filepath.Join(home, "Pictures", "sketch-render"); c.ExportDir != want {
		t.Errorf("ExportDir = %q, want %q", c.ExportDir, want)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_BACKEND", "SDK")
	t.Setenv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image")
	t.Setenv("PORT", "9090")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("VALIDATE_KEYS", "0")
	t.Setenv("REMOTE_TIMEOUT_SECONDS", "45")
	t.Setenv("EXPORT_DIR", "/tmp/out")

	c := FromEnv()
	if c.Backend != "sdk" {
		t.Errorf("Backend = %q, want sdk", c.Backend)
	}
	if c.ImageModel != "gemini-2.5-flash-image" {
		t.Errorf("ImageModel = %q", c.ImageModel)
	}
	if c.Port != 9090 {
		t.Errorf("Port = %d", c.Port)
	}
	if !c.MetricsEnabled || c.ValidateKeys {
		t.Errorf("flags = metrics:%v validate:%v", c.MetricsEnabled, c.ValidateKeys)
	}
	if c.RemoteTimeout != 45*time.Second {
		t.Errorf("RemoteTimeout = %v", c.RemoteTimeout)
	}
	if c.ExportDir != "/tmp/out" {
		t.Errorf("ExportDir = %q", c.ExportDir)
	}
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("METRICS_ENABLED", "maybe")

	c := FromEnv()
	if c.Port != 8080 {
		t.Errorf("Port = %d, want default", c.Port)
	}
	if c.MetricsEnabled {
		t.Error("invalid bool should fall back to default")
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=7070\nGEMINI_BACKEND=sdk\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	// godotenv does not override variables that are set, even to empty.
	os.Unsetenv("PORT")
	os.Unsetenv("GEMINI_BACKEND")
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("GEMINI_BACKEND")
	})

	c := Load()
	if c.Port != 7070 || c.Backend != "sdk" {
		t.Errorf("Load() = port %d backend %q", c.Port, c.Backend)
	}
}
