package facebluring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Resource names understood by the bundled loaders.
const (
	// PigoCascadeName is the PICO face finder cascade shipped with pigo.
	PigoCascadeName = "facefinder"
	// HaarCascadeName is the OpenCV frontal face Haar cascade.
	HaarCascadeName = "haarcascade_frontalface_default.xml"
)

// ErrResourceNotFound is returned when no location holds a resource.
var ErrResourceNotFound = errors.New("resource not found")

// ResourceLocator resolves a model resource name to a readable file path.
type ResourceLocator interface {
	Locate(name string) (string, error)
}

// PathLocator looks for resources in Dirs, in order.
type PathLocator struct {
	Dirs []string
}

// NewPathLocator returns a PathLocator over dirs, skipping empty entries.
func NewPathLocator(dirs ...string) *PathLocator {
	l := &PathLocator{}
	for _, d := range dirs {
		if d != "" {
			l.Dirs = append(l.Dirs, d)
		}
	}
	return l
}

// Locate returns the first regular file named name found in Dirs.
func (l *PathLocator) Locate(name string) (string, error) {
	for _, dir := range l.Dirs {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched %d locations)", ErrResourceNotFound, name, len(l.Dirs))
}

func readResource(locator ResourceLocator, name string) ([]byte, error) {
	if locator == nil {
		return nil, fmt.Errorf("%w: %s (no locator)", ErrResourceNotFound, name)
	}
	path, err := locator.Locate(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can not read %s: %w", path, err)
	}
	return data, nil
}
