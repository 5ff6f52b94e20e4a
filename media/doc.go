// Package media reads and writes video frames and muxes audio.
//
// Frames travel as *image.NRGBA buffers. A FrameSource yields frames in
// stream order until io.EOF; a FrameSink accepts them in the same order.
// Each buffer returned by a source is freshly allocated and belongs to the
// caller.
//
// The default Backend drives the ffmpeg and ffprobe binaries over raw RGBA
// pipes. Building with the gocv tag adds GocvBackend, which uses OpenCV's
// VideoCapture and VideoWriter instead.
package media
