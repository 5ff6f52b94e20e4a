package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind is the media class of an input file.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".webp": true, ".tiff": true, ".tif": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".webm": true, ".flv": true, ".wmv": true,
}

// Classify returns the Kind of path from its extension.
func Classify(path string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExtensions[ext]:
		return KindImage, nil
	case videoExtensions[ext]:
		return KindVideo, nil
	}
	return KindImage, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// OutputPath derives the output file for input: "<base>_blurred.mp4" for
// videos and "<base>_blurred<ext>" for images. WebP has no encoder, so WebP
// inputs produce PNG.
func OutputPath(input string) (string, error) {
	kind, err := Classify(input)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)

	switch {
	case kind == KindVideo:
		ext = ".mp4"
	case strings.EqualFold(ext, ".webp"):
		ext = ".png"
	}
	return base + "_blurred" + ext, nil
}

// TempPath is the silent intermediate video written next to output.
func TempPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + "_temp.mp4"
}
