package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"thaitanloi365/go-face-redact/facebluring"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Confidence != 0.5 || cfg.Range != "short" || !cfg.GroupMode || cfg.DebugOverlay {
		t.Fatalf("unexpected detection defaults: %+v", cfg)
	}
	if cfg.Addr != "127.0.0.1:8080" {
		t.Fatalf("Addr = %q, want loopback by default", cfg.Addr)
	}
	if cfg.PreviewMaxWidth != 800 || cfg.OverlayColor != facebluring.DefaultOverlayColor {
		t.Fatalf("unexpected preview defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	t.Setenv("FACEBLUR_CONFIDENCE", "0.7")
	t.Setenv("FACEBLUR_RANGE", "full")
	t.Setenv("FACEBLUR_GROUP_MODE", "false")
	t.Setenv("FACEBLUR_DEBUG_OVERLAY", "1")
	t.Setenv("FACEBLUR_CASCADE_DIRS", a+string(os.PathListSeparator)+" "+string(os.PathListSeparator)+b)
	t.Setenv("FACEBLUR_PREVIEW_MAX_WIDTH", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatal(err)
	}
	det, err := cfg.Detection()
	if err != nil {
		t.Fatal(err)
	}
	want := facebluring.Config{Confidence: 0.7, Range: facebluring.FullRange, GroupMode: false, DebugOverlay: true}
	if det != want {
		t.Fatalf("Detection() = %+v, want %+v", det, want)
	}
	if len(cfg.CascadeDirs) != 2 || cfg.CascadeDirs[0] != a || cfg.CascadeDirs[1] != b {
		t.Fatalf("CascadeDirs = %v", cfg.CascadeDirs)
	}
	if cfg.PreviewMaxWidth != 800 {
		t.Fatalf("malformed int should keep default, got %d", cfg.PreviewMaxWidth)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("FACEBLUR_ADDR=:9999\nFACEBLUR_LOG_FORMAT=json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables that are already set.
	t.Setenv("FACEBLUR_ADDR", "")
	os.Unsetenv("FACEBLUR_ADDR")
	t.Setenv("FACEBLUR_LOG_FORMAT", "text")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("LogFormat = %q, environment must win over .env", cfg.LogFormat)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, _ := Load(filepath.Join(t.TempDir(), "absent.env"))
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"confidence too low", func(c *Config) { c.Confidence = 0.1 }, "confidence"},
		{"confidence too high", func(c *Config) { c.Confidence = 0.96 }, "confidence"},
		{"bad range", func(c *Config) { c.Range = "medium" }, "range"},
		{"bad width", func(c *Config) { c.PreviewMaxWidth = 0 }, "width"},
		{"bad colour", func(c *Config) { c.OverlayColor = "yellow" }, "colour"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}

	for _, c := range []float64{MinConfidence, MaxConfidence} {
		cfg := base()
		cfg.Confidence = c
		if err := cfg.Validate(); err != nil {
			t.Errorf("confidence %v rejected: %v", c, err)
		}
	}
}
