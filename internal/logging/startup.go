package logging

import (
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects process identity, the remote model configuration,
// local paths and feature flags, then emits a single structured event. Secrets
// are never registered here; only whether a key was found.
type StartupLogger struct {
	name         string
	version      string
	initDuration time.Duration

	model    string
	backend  string
	listen   string
	paths    map[string]string
	features map[string]bool
	config   map[string]string
}

// NewStartupLogger creates a StartupLogger for the given command
// (e.g. "sketch-render", "render-cli").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:     name,
		paths:    make(map[string]string),
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// Version sets the build version string.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// Model records the image model and backend.
func (s *StartupLogger) Model(model, backend string) *StartupLogger {
	s.model = model
	s.backend = backend
	return s
}

// Listen records the HTTP listen address.
func (s *StartupLogger) Listen(addr string) *StartupLogger {
	s.listen = addr
	return s
}

// Path registers a filesystem location used by the process.
func (s *StartupLogger) Path(label, path string) *StartupLogger {
	s.paths[label] = path
	return s
}

// Feature registers a boolean feature flag (e.g. "apiKey", "metrics").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long start-up took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits a single structured INFO log event with all collected information.
func (s *StartupLogger) Log() {
	s.event(log.Info()).Msg("Startup complete")
}

func (s *StartupLogger) event(evt *zerolog.Event) *zerolog.Event {
	proc := zerolog.Dict().
		Str("name", s.name).
		Int("pid", os.Getpid()).
		Str("goVersion", runtime.Version()).
		Str("os", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.version != "" {
		proc = proc.Str("version", s.version)
	}
	evt = evt.Dict("process", proc)

	if s.model != "" {
		evt = evt.Dict("remote", zerolog.Dict().
			Str("model", s.model).
			Str("backend", s.backend))
	}
	if s.listen != "" {
		evt = evt.Str("listen", s.listen)
	}
	if len(s.paths) > 0 {
		evt = evt.Dict("paths", dictFromMap(s.paths))
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(s.features) {
			d = d.Bool(k, s.features[k])
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}
	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}
	return evt
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for _, k := range sortedKeys(m) {
		d = d.Str(k, m[k])
	}
	return d
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
