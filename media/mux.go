package media

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// AudioCodec and AudioBitrate are applied to the re-encoded audio track.
const (
	AudioCodec   = "aac"
	AudioBitrate = "192k"
)

// FFmpegMuxer copies a processed video stream and re-encodes the audio of
// the original input into one file.
type FFmpegMuxer struct {
	Binary string
	Log    logrus.FieldLogger
}

// NewFFmpegMuxer returns a muxer using binary, or "ffmpeg" from PATH.
func NewFFmpegMuxer(binary string, log logrus.FieldLogger) *FFmpegMuxer {
	if binary == "" {
		binary = "ffmpeg"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FFmpegMuxer{Binary: binary, Log: log}
}

// Available runs "ffmpeg -version".
func (m *FFmpegMuxer) Available(ctx context.Context) error {
	if err := exec.CommandContext(ctx, m.Binary, "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg unavailable: %w", err)
	}
	return nil
}

// Mux writes output from the first video stream of video and the optional
// first audio stream of original, stopping at the shorter input.
func (m *FFmpegMuxer) Mux(ctx context.Context, video, original, output string) error {
	cmd := exec.CommandContext(ctx, m.Binary, MuxArgs(video, original, output)...)
	tail := newOutputTail(20)
	cmd.Stderr = tail

	m.Log.WithFields(logrus.Fields{"video": video, "audio": original, "output": output}).Debug("muxing audio")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg mux failed: %w (%s)", err, tail)
	}
	return nil
}

// MuxArgs builds the ffmpeg argument list used by Mux.
func MuxArgs(video, original, output string) []string {
	return []string{
		"-y",
		"-i", video,
		"-i", original,
		"-c:v", "copy",
		"-c:a", AudioCodec, "-b:a", AudioBitrate,
		"-map", "0:v:0",
		"-map", "1:a:0?",
		"-shortest",
		output,
	}
}
