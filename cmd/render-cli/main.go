package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/sketch-render/internal/auth"
	"github.com/fpang/sketch-render/internal/cli"
	"github.com/fpang/sketch-render/internal/config"
	"github.com/fpang/sketch-render/internal/filehandler"
	"github.com/fpang/sketch-render/internal/logging"
	"github.com/fpang/sketch-render/internal/metrics"
	"github.com/fpang/sketch-render/internal/render"
	"github.com/fpang/sketch-render/internal/session"
)

var version = "dev"

// CLI flags
var (
	inputFlag       string
	outputFlag      string
	bundleFlag      string
	styleFlag       string
	lightingFlag    string
	environmentFlag string
	aspectFlag      string
	sizeFlag        string
	detailsFlag     int
	instructionFlag string
	editFlags       []string
	modelFlag       string
	backendFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "render-cli",
	Short: "Render an architectural sketch from the command line",
	Long: `Render CLI sends one sketch to Gemini with the chosen options, then applies
each --edit command to the result in order, and writes the final render.

Examples:
  render-cli -i plan.png -o render.png
  render-cli -i elevation.jpg --style watercolor --lighting warm
  render-cli -i plan.png --size 2K --edit "add people walking" --edit "make it rain"
  render-cli -i plan.png --bundle render.zip`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Sketch image to render")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (default: timestamped file in EXPORT_DIR)")
	rootCmd.Flags().StringVar(&bundleFlag, "bundle", "", "Also write a ZIP with the sketch, render and options")
	rootCmd.Flags().StringVar(&styleFlag, "style", "", "Render style: "+joinIDs(render.Styles))
	rootCmd.Flags().StringVar(&lightingFlag, "lighting", "", "Lighting: "+joinIDs(render.Lightings))
	rootCmd.Flags().StringVar(&environmentFlag, "environment", "", "Environment: "+joinIDs(render.Environments))
	rootCmd.Flags().StringVar(&aspectFlag, "aspect", "", "Aspect ratio: "+joinIDs(render.AspectRatios))
	rootCmd.Flags().StringVar(&sizeFlag, "size", "", "Resolution: "+joinIDs(render.ImageSizes)+" (2K and 4K need a paid key)")
	rootCmd.Flags().IntVar(&detailsFlag, "details", render.DefaultPreserveDetails, "How closely to follow the sketch lines, 50-100")
	rootCmd.Flags().StringVar(&instructionFlag, "instruction", "", "Additional instructions for the render")
	rootCmd.Flags().StringArrayVar(&editFlags, "edit", nil, "Edit command applied after rendering (repeatable)")
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
	metrics.SetService("render-cli")

	if detailsFlag < 50 || detailsFlag > 100 {
		log.Fatal().Int("details", detailsFlag).Msg("--details must be between 50 and 100")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stdin := auth.NewLineReader(os.Stdin)
	inputPath := inputFlag
	if inputPath == "" {
		inputPath = cli.PromptLine(ctx, stdin, os.Stderr, "Sketch", "")
		if inputPath == "" {
			log.Fatal().Msg("No sketch given")
		}
	}
	inputPath = cli.ValidateAndResolveFile(inputPath)

	keys := cli.InitKeyring(ctx, cfg, auth.TerminalPrompter{In: stdin})
	client := cli.InitImageClient(cfg, keys)
	ctrl := session.New(client, keys)

	img, err := filehandler.LoadImageFile(inputPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", inputPath).Msg("Failed to load sketch")
	}
	if err := ctrl.LoadImage(img.Data, img.MIMEType); err != nil {
		log.Fatal().Err(err).Msg("Failed to load sketch")
	}

	for key, value := range optionFlags() {
		if err := ctrl.SetOption(key, value); err != nil {
			log.Fatal().Err(err).Msg("Invalid option")
		}
	}

	logging.NewStartupLogger("render-cli").
		Version(version).
		Model(cfg.ImageModel, cfg.Backend).
		Path("input", inputPath).
		Config("style", string(ctrl.Options().Style)).
		Config("image_size", string(ctrl.Options().ImageSize)).
		Config("edits", strconv.Itoa(len(editFlags))).
		InitDuration(time.Since(start)).
		Log()

	fmt.Fprintf(os.Stderr, "Rendering %s ...\n", filepath.Base(inputPath))
	step := time.Now()
	check(ctrl, ctrl.SubmitGeneration(ctx), "render")
	fmt.Fprintf(os.Stderr, "  rendered in %s\n", cli.FormatDurationShort(time.Since(step)))

	for i, command := range editFlags {
		fmt.Fprintf(os.Stderr, "Edit %d/%d: %s\n", i+1, len(editFlags), command)
		step = time.Now()
		check(ctrl, ctrl.SubmitEdit(ctx, command), "edit")
		fmt.Fprintf(os.Stderr, "  applied in %s\n", cli.FormatDurationShort(time.Since(step)))
	}

	snap := ctrl.Snapshot()
	outPath, err := writeOutput(snap.Result, outputFlag, cfg.ExportDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write render")
	}
	fmt.Printf("%s\n", outPath)

	if bundleFlag != "" {
		if err := writeBundle(bundleFlag, snap); err != nil {
			log.Fatal().Err(err).Msg("Failed to write bundle")
		}
		fmt.Fprintf(os.Stderr, "Bundle written to %s\n", bundleFlag)
	}

	fmt.Fprintf(os.Stderr, "Done in %s\n", cli.FormatDurationShort(time.Since(start)))
}

// optionFlags returns the options given on the command line.
func optionFlags() map[render.OptionKey]string {
	opts := map[render.OptionKey]string{}
	set := func(key render.OptionKey, v string) {
		if v != "" {
			opts[key] = v
		}
	}
	set(render.KeyStyle, styleFlag)
	set(render.KeyLighting, lightingFlag)
	set(render.KeyEnvironment, environmentFlag)
	set(render.KeyAspectRatio, aspectFlag)
	set(render.KeyImageSize, sizeFlag)
	set(render.KeyCustomInstruction, instructionFlag)
	opts[render.KeyPreserveDetails] = strconv.Itoa(detailsFlag)
	return opts
}

// check exits when a submission did not produce a render.
func check(ctrl *session.Controller, err error, what string) {
	switch {
	case errors.Is(err, session.ErrAuthorizationDeclined):
		log.Fatal().Msg("This resolution needs a paid API key; none was provided")
	case err != nil:
		log.Fatal().Err(err).Msgf("Cannot start %s", what)
	}
	if msg := ctrl.Snapshot().LastError; msg != "" {
		log.Fatal().Str("error", msg).Msgf("The %s failed", what)
	}
}

func writeOutput(result *render.Image, out, exportDir string) (string, error) {
	if out == "" {
		return filehandler.WriteResult(exportDir, result, time.Now())
	}
	if ext := filepath.Ext(out); ext != "" && !strings.EqualFold(ext, result.Extension()) {
		log.Warn().Str("path", out).Str("mime_type", result.MIMEType).Msg("Output extension does not match the render format; bytes are written unchanged")
	}
	if err := os.WriteFile(out, result.Data, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func writeBundle(path string, snap session.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bundle := filehandler.Bundle{
		Source:  snap.Source,
		Result:  snap.Result,
		Options: snap.RenderOptions(),
		Prompt:  snap.Prompt,
		Edits:   snap.Edits,
		Created: time.Now(),
	}
	if meta, err := filehandler.ExtractImageMetadata(snap.Source.Data); err == nil {
		bundle.Metadata = meta
	}
	if err := filehandler.WriteBundle(f, bundle); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func joinIDs[T ~string](ids []T) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
