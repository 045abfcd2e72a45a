package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/sketch-render/internal/auth"
	"github.com/fpang/sketch-render/internal/cli"
	"github.com/fpang/sketch-render/internal/config"
	"github.com/fpang/sketch-render/internal/logging"
	"github.com/fpang/sketch-render/internal/metrics"
	"github.com/fpang/sketch-render/internal/session"
)

var version = "dev"

// CLI flags
var (
	modelFlag   string
	backendFlag string
)

var rootCmd = &cobra.Command{
	Use:   "render-mcp",
	Short: "Model Context Protocol server for sketch rendering",
	Long: `Render MCP serves sketch rendering as MCP tools over stdio. A client loads a
sketch with render_sketch and refines the result with edit_render; both act on
one session that lives as long as the process.

Logs go to stderr; stdout carries the protocol.`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini image model (default from GEMINI_IMAGE_MODEL)")
	rootCmd.Flags().StringVar(&backendFlag, "backend", "", "Gemini backend: rest or sdk")
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
	if modelFlag != "" {
		cfg.ImageModel = modelFlag
	}
	if backendFlag != "" {
		cfg.Backend = strings.ToLower(backendFlag)
	}
	if cfg.MetricsEnabled {
		metrics.SetOutput(os.Stderr)
	}
	metrics.SetService("render-mcp")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdin belongs to the protocol, so keys are asked for in a dialog.
	keys := cli.InitKeyring(ctx, cfg, auth.DialogPrompter{Title: "Gemini API key for high resolution renders"})
	client := cli.InitImageClient(cfg, keys)
	tools := newToolset(session.New(client, keys), cfg.ExportDir)

	server := mcp.NewServer(&mcp.Implementation{Name: "sketch-render", Version: version}, nil)
	tools.register(server)

	logging.NewStartupLogger("render-mcp").
		Version(version).
		Model(cfg.ImageModel, cfg.Backend).
		Path("export", cfg.ExportDir).
		Feature("metrics", cfg.MetricsEnabled).
		InitDuration(time.Since(start)).
		Log()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
	log.Info().Msg("MCP session closed")
}
