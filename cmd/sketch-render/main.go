package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/sketch-render/internal/auth"
	"github.com/fpang/sketch-render/internal/cli"
	"github.com/fpang/sketch-render/internal/config"
	"github.com/fpang/sketch-render/internal/logging"
	"github.com/fpang/sketch-render/internal/metrics"
	"github.com/fpang/sketch-render/internal/session"
)

//go:embed all:frontend_dist
var frontendFS embed.FS

var version = "dev"

// CLI flags
var (
	portFlag      int
	hostFlag      string
	modelFlag     string
	backendFlag   string
	exportDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "sketch-render",
	Short: "Local studio for turning architectural sketches into renders",
	Long: `Sketch Render starts a local web server with a single-page studio.
Load a sketch, pick a style, lighting and environment, and Gemini renders it.
Follow-up commands refine the latest render.

Examples:
  sketch-render
  sketch-render --port 9090
  sketch-render --model gemini-2.5-flash-image --backend sdk`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default from PORT or 8080)")
	rootCmd.Flags().StringVar(&hostFlag, "host", "", "Interface to bind (default from HOST or 127.0.0.1)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini image model (default from GEMINI_IMAGE_MODEL)")
	rootCmd.Flags().StringVar(&backendFlag, "backend", "", "Gemini backend: rest or sdk")
	rootCmd.Flags().StringVar(&exportDirFlag, "export-dir", "", "Directory for saved renders")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	start := time.Now()
	logging.Init()

	cli.MustValidateCatalog()

	cfg := config.Load()
	if portFlag != 0 {
		cfg.Port = portFlag
	}
	if hostFlag != "" {
		cfg.Host = hostFlag
	}
	if modelFlag != "" {
		cfg.ImageModel = modelFlag
	}
	if backendFlag != "" {
		cfg.Backend = strings.ToLower(backendFlag)
	}
	if exportDirFlag != "" {
		cfg.ExportDir = exportDirFlag
	}

	if cfg.MetricsEnabled {
		metrics.SetOutput(os.Stdout)
	}
	metrics.SetService("sketch-render")

	ctx := context.Background()
	keys := cli.InitKeyring(ctx, cfg, auth.DialogPrompter{Title: "Gemini API key for high resolution renders"})
	client := cli.InitImageClient(cfg, keys)

	ctrl := session.New(client, keys)
	srv := newServer(ctrl, cfg.ExportDir)

	mux := srv.routes()

	// Frontend static files (SPA fallback)
	frontendSub, err := fs.Sub(frontendFS, "frontend_dist")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to access embedded frontend")
	}
	fileServer := http.FileServer(http.FS(frontendSub))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' blob: data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; connect-src 'self'")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		path := r.URL.Path
		if path != "/" {
			f, err := frontendSub.Open(strings.TrimPrefix(path, "/"))
			if err != nil {
				r.URL.Path = "/"
			} else {
				f.Close()
			}
		}
		fileServer.ServeHTTP(w, r)
	})

	handler := withRequestID(withLogging(withCORS(mux)))

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown did not complete")
		}
	}()

	logging.NewStartupLogger("sketch-render").
		Version(version).
		Model(cfg.ImageModel, cfg.Backend).
		Listen(addr).
		Path("export", cfg.ExportDir).
		Feature("metrics", cfg.MetricsEnabled).
		Feature("validate_keys", cfg.ValidateKeys).
		Feature("key_selected", keys.HasSelectedKey(ctx)).
		InitDuration(time.Since(start)).
		Log()
	fmt.Printf("\n  Sketch Render: http://%s\n\n", addr)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}

	// Let an in-flight render settle before exiting.
	ctrl.Wait()
}
