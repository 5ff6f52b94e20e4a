// Package config loads run defaults from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"thaitanloi365/go-face-redact/facebluring"
)

// Confidence bounds accepted from users.
const (
	MinConfidence = 0.20
	MaxConfidence = 0.95
)

type Config struct {
	Confidence   float64
	Range        string
	GroupMode    bool
	DebugOverlay bool

	CascadeDirs []string // searched in order for model resources
	FFmpeg      string
	FFprobe     string

	PreviewMaxWidth int
	OverlayColor    string

	LogLevel  string
	LogFormat string // text or json
	Addr      string
}

// Load reads the given .env files, or ./.env when none are named, and then
// the environment. Missing .env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	return &Config{
		Confidence:      getEnvAsFloat("FACEBLUR_CONFIDENCE", 0.5),
		Range:           getEnv("FACEBLUR_RANGE", "short"),
		GroupMode:       getEnvAsBool("FACEBLUR_GROUP_MODE", true),
		DebugOverlay:    getEnvAsBool("FACEBLUR_DEBUG_OVERLAY", false),
		CascadeDirs:     getEnvAsPathList("FACEBLUR_CASCADE_DIRS", defaultCascadeDirs()),
		FFmpeg:          getEnv("FACEBLUR_FFMPEG", "ffmpeg"),
		FFprobe:         getEnv("FACEBLUR_FFPROBE", "ffprobe"),
		PreviewMaxWidth: getEnvAsInt("FACEBLUR_PREVIEW_MAX_WIDTH", 800),
		OverlayColor:    getEnv("FACEBLUR_OVERLAY_COLOR", facebluring.DefaultOverlayColor),
		LogLevel:        getEnv("FACEBLUR_LOG_LEVEL", "info"),
		LogFormat:       getEnv("FACEBLUR_LOG_FORMAT", "text"),
		Addr:            getEnv("FACEBLUR_ADDR", "127.0.0.1:8080"),
	}, nil
}

// Validate checks user-facing ranges.
func (c *Config) Validate() error {
	if c.Confidence < MinConfidence || c.Confidence > MaxConfidence {
		return fmt.Errorf("confidence %.2f outside [%.2f, %.2f]", c.Confidence, MinConfidence, MaxConfidence)
	}
	if _, err := facebluring.ParseRangeMode(c.Range); err != nil {
		return err
	}
	if c.PreviewMaxWidth <= 0 {
		return fmt.Errorf("preview max width must be positive, got %d", c.PreviewMaxWidth)
	}
	if _, err := facebluring.ParseColor(c.OverlayColor); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Detection returns the detection parameters of a run.
func (c *Config) Detection() (facebluring.Config, error) {
	mode, err := facebluring.ParseRangeMode(c.Range)
	if err != nil {
		return facebluring.Config{}, err
	}
	return facebluring.Config{
		Confidence:   c.Confidence,
		Range:        mode,
		GroupMode:    c.GroupMode,
		DebugOverlay: c.DebugOverlay,
	}, nil
}

// Preview returns the preview rendering options.
func (c *Config) Preview() (facebluring.PreviewOptions, error) {
	opts := facebluring.DefaultPreviewOptions()
	col, err := facebluring.ParseColor(c.OverlayColor)
	if err != nil {
		return opts, err
	}
	opts.BoxColor = col
	opts.MaxWidth = c.PreviewMaxWidth
	return opts, nil
}

// defaultCascadeDirs are ./cascade and the cascade directory next to the
// executable.
func defaultCascadeDirs() []string {
	dirs := []string{filepath.Join(".", "cascade")}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "cascade"))
	}
	return dirs
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsPathList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var dirs []string
	for _, d := range filepath.SplitList(value) {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
