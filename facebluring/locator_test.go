package facebluring

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPathLocator_FirstMatchWins(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	for _, dir := range []string{first, second} {
		if err := os.WriteFile(filepath.Join(dir, PigoCascadeName), []byte(dir), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := NewPathLocator("", first, second).Locate(PigoCascadeName)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != filepath.Join(first, PigoCascadeName) {
		t.Errorf("got %s, want file in %s", got, first)
	}
}

func TestPathLocator_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, HaarCascadeName), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := NewPathLocator(dir).Locate(HaarCascadeName)
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("got %v, want ErrResourceNotFound", err)
	}
}

func TestPigoFallback_MissingResource(t *testing.T) {
	_, err := PigoFallback(NewPathLocator(t.TempDir()))()
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("got %v, want ErrResourceNotFound", err)
	}

	_, err = PigoFallback(nil)()
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("nil locator: got %v, want ErrResourceNotFound", err)
	}
}

func TestPigoDetectors_MissingResource(t *testing.T) {
	_, err := PigoDetectors(NewPathLocator(t.TempDir()))(FullRange)
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("got %v, want ErrResourceNotFound", err)
	}
}

func TestPigoConfig_Sizes(t *testing.T) {
	short := PigoRangeConfig(ShortRange).withDefaults()
	full := PigoRangeConfig(FullRange).withDefaults()

	sMin, sMax := short.sizes(1920, 1080)
	fMin, fMax := full.sizes(1920, 1080)

	if sMin <= fMin {
		t.Errorf("short range min face %d should exceed full range %d", sMin, fMin)
	}
	if sMax <= fMax {
		t.Errorf("short range max face %d should exceed full range %d", sMax, fMax)
	}
	if fMin != 21 {
		t.Errorf("full range min: got %d, want 21", fMin)
	}

	tinyMin, tinyMax := full.sizes(100, 50)
	if tinyMin != 20 || tinyMax < tinyMin {
		t.Errorf("tiny image sizes: got %d..%d", tinyMin, tinyMax)
	}
}
