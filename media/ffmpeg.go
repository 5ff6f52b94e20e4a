package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// FFmpeg is a Backend driving the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	Log         logrus.FieldLogger
}

// NewFFmpeg returns an FFmpeg backend. Empty paths fall back to the binaries
// found on PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string, log logrus.FieldLogger) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Log: log}
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the first video stream's metadata with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames:stream_tags=rotate:stream_side_data=rotation:format=duration",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %s: %w (%s)", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (Metadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Metadata{}, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return Metadata{}, errors.New("no video stream")
	}

	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return Metadata{}, fmt.Errorf("invalid video dimensions %dx%d", s.Width, s.Height)
	}

	md := Metadata{Width: s.Width, Height: s.Height}

	// The decoder applies the display rotation, so quarter turns swap the
	// size of the frames it emits.
	rotation := 0
	if r, err := strconv.Atoi(s.Tags.Rotate); err == nil {
		rotation = r
	}
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			rotation = int(math.Round(sd.Rotation))
		}
	}
	md.Rotation = ((rotation % 360) + 360) % 360
	if md.Rotation == 90 || md.Rotation == 270 {
		md.Width, md.Height = md.Height, md.Width
	}
	md.FPS = parseRate(s.AvgFrameRate)
	if md.FPS <= 0 {
		md.FPS = parseRate(s.RFrameRate)
	}

	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		md.FrameCount = n
	} else if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && d > 0 && md.FPS > 0 {
		md.FrameCount = int(math.Round(d * md.FPS))
	}
	return md, nil
}

// parseRate parses ffprobe rationals such as "30000/1001".
func parseRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// OpenSource implements Backend.
func (f *FFmpeg) OpenSource(ctx context.Context, path string) (FrameSource, error) {
	md, err := f.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, f.FFmpegPath, decoderArgs(path)...)
	tail := newOutputTail(50)
	cmd.Stderr = tail
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start decoder: %w", err)
	}
	f.Log.WithFields(logrus.Fields{
		"path":   path,
		"width":  md.Width,
		"height": md.Height,
		"fps":    md.FPS,
		"frames": md.FrameCount,
	}).Debug("decoder started")

	return &rawSource{cmd: cmd, out: stdout, tail: tail, md: md}, nil
}

// CreateSink implements Backend.
func (f *FFmpeg) CreateSink(ctx context.Context, path string, md Metadata) (FrameSink, error) {
	md = md.Normalized()
	cmd := exec.CommandContext(ctx, f.FFmpegPath, encoderArgs(path, md)...)
	tail := newOutputTail(50)
	cmd.Stderr = tail
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}
	f.Log.WithField("path", path).Debug("encoder started")

	return &rawSink{cmd: cmd, in: stdin, tail: tail, md: md}, nil
}

func decoderArgs(path string) []string {
	return []string{
		"-v", "error",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
}

func encoderArgs(path string, md Metadata) []string {
	return []string{
		"-v", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", md.Width, md.Height),
		"-r", strconv.FormatFloat(md.FPS, 'f', -1, 64),
		"-i", "-",
		"-an",
		"-c:v", "mpeg4",
		"-q:v", "2",
		"-pix_fmt", "yuv420p",
		path,
	}
}

type rawSource struct {
	cmd  *exec.Cmd
	out  io.ReadCloser
	tail *outputTail
	md   Metadata
	eof  bool
}

func (s *rawSource) Metadata() Metadata { return s.md }

func (s *rawSource) Read() (*image.NRGBA, error) {
	if s.eof {
		return nil, io.EOF
	}
	frame := image.NewNRGBA(image.Rect(0, 0, s.md.Width, s.md.Height))
	if _, err := io.ReadFull(s.out, frame.Pix); err != nil {
		s.eof = true
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated frame: %s", s.tail)
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return frame, nil
}

func (s *rawSource) Close() error {
	if !s.eof && s.cmd.Process != nil {
		// Stopped early: the decoder would block on a full pipe.
		s.cmd.Process.Kill()
		s.cmd.Wait()
		return nil
	}
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("decoder process failed: %w (%s)", err, s.tail)
	}
	return nil
}

type rawSink struct {
	cmd  *exec.Cmd
	in   io.WriteCloser
	tail *outputTail
	md   Metadata
}

func (s *rawSink) Write(frame *image.NRGBA) error {
	b := frame.Bounds()
	if b.Dx() != s.md.Width || b.Dy() != s.md.Height {
		return fmt.Errorf("frame is %dx%d, sink expects %dx%d", b.Dx(), b.Dy(), s.md.Width, s.md.Height)
	}

	rowSize := s.md.Width * 4
	if frame.Stride == rowSize {
		start := frame.PixOffset(b.Min.X, b.Min.Y)
		_, err := s.in.Write(frame.Pix[start : start+rowSize*s.md.Height])
		return s.wrap(err)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := frame.PixOffset(b.Min.X, y)
		if _, err := s.in.Write(frame.Pix[start : start+rowSize]); err != nil {
			return s.wrap(err)
		}
	}
	return nil
}

func (s *rawSink) wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("write frame: %w (%s)", err, s.tail)
}

func (s *rawSink) Close() error {
	s.in.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("encoder process failed: %w (%s)", err, s.tail)
	}
	return nil
}
