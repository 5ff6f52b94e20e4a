package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"thaitanloi365/go-face-redact/config"
	"thaitanloi365/go-face-redact/facebluring"
	"thaitanloi365/go-face-redact/logger"
	"thaitanloi365/go-face-redact/media"
	"thaitanloi365/go-face-redact/pipeline"
)

var version = "dev"

var (
	cfg = mustLoadConfig()
	log *logrus.Logger
)

func mustLoadConfig() *config.Config {
	c, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return c
}

var rootCmd = &cobra.Command{
	Use:           "go-face-redact",
	Short:         "Blur faces in images and videos",
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		log, err = logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		if err != nil {
			return err
		}
		return cfg.Validate()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// The version needs neither logging nor a valid configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Float64Var(&cfg.Confidence, "confidence", cfg.Confidence, "Detection confidence threshold (0.20-0.95)")
	flags.StringVar(&cfg.Range, "range", cfg.Range, "Primary detector range: short or full")
	flags.BoolVar(&cfg.GroupMode, "group", cfg.GroupMode, "Run the complementary range and cascade passes")
	flags.BoolVar(&cfg.DebugOverlay, "debug", cfg.DebugOverlay, "Outline detected faces on previews")
	flags.StringSliceVar(&cfg.CascadeDirs, "cascade-dir", cfg.CascadeDirs, "Directories searched for cascade files")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")

	rootCmd.AddCommand(blurCmd, serveCmd, versionCmd)
}

// newPipeline wires the detectors and media backends selected by cfg.
func newPipeline() (*pipeline.Pipeline, facebluring.Config, error) {
	detection, err := cfg.Detection()
	if err != nil {
		return nil, detection, err
	}
	preview, err := cfg.Preview()
	if err != nil {
		return nil, detection, err
	}

	locator := facebluring.NewPathLocator(cfg.CascadeDirs...)
	backend, fallback := backends(cfg, locator, log)
	return &pipeline.Pipeline{
		Detectors: facebluring.PigoDetectors(locator),
		Fallback:  fallback,
		Media:     backend,
		Muxer:     media.NewFFmpegMuxer(cfg.FFmpeg, log),
		Preview:   preview,
		Log:       log,
	}, detection, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
