package facebluring

import (
	"errors"
	"image"
	"testing"

	"thaitanloi365/go-face-redact/geometry"
)

type stubDetector struct {
	boxes       []RelativeBox
	confidences []float64
	closed      bool
}

func (d *stubDetector) Detect(img image.Image, confidence float64) ([]RelativeBox, error) {
	d.confidences = append(d.confidences, confidence)
	return d.boxes, nil
}

func (d *stubDetector) Close() error {
	d.closed = true
	return nil
}

type stubCascade struct {
	rects   []image.Rectangle
	minSide int
	closed  bool
}

func (c *stubCascade) DetectMultiScale(img image.Image, minSide int) ([]image.Rectangle, error) {
	c.minSide = minSide
	return c.rects, nil
}

func (c *stubCascade) Close() error {
	c.closed = true
	return nil
}

// stubFactory hands out one stub per range mode and records what was opened.
type stubFactory struct {
	byMode map[RangeMode]*stubDetector
	opened []RangeMode
}

func newStubFactory(short, full []RelativeBox) *stubFactory {
	return &stubFactory{byMode: map[RangeMode]*stubDetector{
		ShortRange: {boxes: short},
		FullRange:  {boxes: full},
	}}
}

func (f *stubFactory) open(mode RangeMode) (Detector, error) {
	f.opened = append(f.opened, mode)
	return f.byMode[mode], nil
}

func blankImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img
}

func TestFusion_GroupModeOffRunsPrimaryOnly(t *testing.T) {
	factory := newStubFactory(
		[]RelativeBox{{XMin: 0.1, YMin: 0.1, Width: 0.1, Height: 0.1}},
		[]RelativeBox{{XMin: 0.6, YMin: 0.6, Width: 0.1, Height: 0.1}},
	)
	cascade := &stubCascade{rects: []image.Rectangle{image.Rect(300, 10, 320, 30)}}
	loaderCalled := false
	loader := func() (CascadeClassifier, error) {
		loaderCalled = true
		return cascade, nil
	}

	cfg := Config{Confidence: 0.5, Range: ShortRange}
	f, err := NewFusion(cfg, factory.open, loader, nil)
	if err != nil {
		t.Fatalf("NewFusion failed: %v", err)
	}
	defer f.Close()

	boxes, err := f.Detect(blankImage(400, 400))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(factory.opened) != 1 || factory.opened[0] != ShortRange {
		t.Errorf("opened detectors: got %v, want [short]", factory.opened)
	}
	if loaderCalled || f.HasFallback() {
		t.Error("cascade fallback must not load without group mode")
	}
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1: %+v", len(boxes), boxes)
	}
	// 40x40 at (40,40) padded by 12/16 px per side.
	want := geometry.Box{X: 28, Y: 24, Width: 64, Height: 72}
	if boxes[0] != want {
		t.Errorf("box: got %+v, want %+v", boxes[0], want)
	}
}

func TestFusion_GroupModeMergesAllPasses(t *testing.T) {
	factory := newStubFactory(
		[]RelativeBox{{XMin: 0.1, YMin: 0.1, Width: 0.1, Height: 0.1}},
		[]RelativeBox{{XMin: 0.6, YMin: 0.6, Width: 0.1, Height: 0.1}},
	)
	cascade := &stubCascade{rects: []image.Rectangle{image.Rect(300, 10, 320, 30)}}

	cfg := Config{Confidence: 0.5, Range: FullRange, GroupMode: true}
	f, err := NewFusion(cfg, factory.open, func() (CascadeClassifier, error) { return cascade, nil }, nil)
	if err != nil {
		t.Fatalf("NewFusion failed: %v", err)
	}

	boxes, err := f.Detect(blankImage(400, 400))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(boxes) != 3 {
		t.Fatalf("got %d boxes, want 3: %+v", len(boxes), boxes)
	}

	// Primary is full range, so its box comes first.
	if boxes[0].X != 240-12 {
		t.Errorf("first box should come from the primary pass, got %+v", boxes[0])
	}

	full, short := factory.byMode[FullRange], factory.byMode[ShortRange]
	if len(full.confidences) != 1 || full.confidences[0] != 0.5 {
		t.Errorf("primary confidence: got %v, want [0.5]", full.confidences)
	}
	if len(short.confidences) != 1 || short.confidences[0] < 0.349 || short.confidences[0] > 0.351 {
		t.Errorf("secondary confidence: got %v, want [0.35]", short.confidences)
	}
	if cascade.minSide != 20 {
		t.Errorf("cascade min side: got %d, want 20", cascade.minSide)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !full.closed || !short.closed || !cascade.closed {
		t.Error("Close must release every pass")
	}
}

func TestFusion_OverlappingDetectionsKeepFirst(t *testing.T) {
	// Relative to a 1000x1000 image: 100x100 and 100x50 boxes at the same
	// origin, IoU 0.5.
	factory := newStubFactory([]RelativeBox{
		{XMin: 0.4, YMin: 0.4, Width: 0.1, Height: 0.1},
		{XMin: 0.4, YMin: 0.4, Width: 0.1, Height: 0.05},
	}, nil)

	f, err := NewFusion(Config{Confidence: 0.5}, factory.open, nil, nil)
	if err != nil {
		t.Fatalf("NewFusion failed: %v", err)
	}
	defer f.Close()

	boxes, err := f.Detect(blankImage(1000, 1000))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}
	want := geometry.Pad(geometry.Box{X: 400, Y: 400, Width: 100, Height: 100}, 1000, 1000, geometry.DefaultPadding)
	if boxes[0] != want {
		t.Errorf("kept box: got %+v, want first-seen %+v", boxes[0], want)
	}
}

func TestFusion_DropsDegenerateAndKeepsBoxesInside(t *testing.T) {
	factory := newStubFactory([]RelativeBox{
		{XMin: 0.5, YMin: 0.5, Width: 0, Height: 0.2},
		{XMin: 0.5, YMin: 0.5, Width: 0.2, Height: -0.1},
		{XMin: 0.9, YMin: 0.9, Width: 0.3, Height: 0.3},
		{XMin: 1.5, YMin: 1.5, Width: 0.1, Height: 0.1},
	}, nil)

	f, err := NewFusion(Config{Confidence: 0.5}, factory.open, nil, nil)
	if err != nil {
		t.Fatalf("NewFusion failed: %v", err)
	}
	defer f.Close()

	boxes, err := f.Detect(blankImage(200, 100))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1: %+v", len(boxes), boxes)
	}
	b := boxes[0]
	if b.X < 0 || b.Y < 0 || b.X+b.Width > 200 || b.Y+b.Height > 100 || b.Empty() {
		t.Errorf("box %+v escapes the 200x100 image", b)
	}
}

func TestFusion_FallbackLoadErrorIsSilent(t *testing.T) {
	factory := newStubFactory(nil, nil)
	loader := func() (CascadeClassifier, error) {
		return nil, ErrResourceNotFound
	}

	f, err := NewFusion(Config{Confidence: 0.5, GroupMode: true}, factory.open, loader, nil)
	if err != nil {
		t.Fatalf("NewFusion should ignore fallback errors, got %v", err)
	}
	defer f.Close()

	if f.HasFallback() {
		t.Error("fallback should be disabled")
	}
	boxes, err := f.Detect(blankImage(64, 64))
	if err != nil || len(boxes) != 0 {
		t.Errorf("Detect = %v, %v; want no boxes", boxes, err)
	}
}

func TestFusion_PrimaryOpenError(t *testing.T) {
	boom := errors.New("boom")
	factory := func(RangeMode) (Detector, error) { return nil, boom }

	_, err := NewFusion(DefaultConfig(), factory, nil, nil)
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped boom", err)
	}
}

func TestFusion_SecondaryOpenErrorClosesPrimary(t *testing.T) {
	primary := &stubDetector{}
	factory := func(mode RangeMode) (Detector, error) {
		if mode == ShortRange {
			return primary, nil
		}
		return nil, errors.New("no full range model")
	}

	if _, err := NewFusion(Config{GroupMode: true}, factory, nil, nil); err == nil {
		t.Fatal("expected error")
	}
	if !primary.closed {
		t.Error("primary detector leaked")
	}
}

func TestFusion_SmallFaceMinSide(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{400, 300, 20},
		{1920, 1080, 21},
		{4000, 3000, 60},
	}
	for _, tt := range tests {
		cascade := &stubCascade{}
		factory := newStubFactory(nil, nil)
		f, err := NewFusion(Config{GroupMode: true}, factory.open, func() (CascadeClassifier, error) { return cascade, nil }, nil)
		if err != nil {
			t.Fatalf("NewFusion failed: %v", err)
		}
		img := image.NewNRGBA(image.Rect(0, 0, tt.w, tt.h))
		if _, err := f.Detect(img); err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if cascade.minSide != tt.want {
			t.Errorf("%dx%d: min side %d, want %d", tt.w, tt.h, cascade.minSide, tt.want)
		}
		f.Close()
	}
}

func TestConfig_SecondaryConfidence(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.5, 0.35},
		{0.3, 0.2},
		{0.2, 0.2},
		{0.95, 0.8},
	}
	for _, tt := range tests {
		got := Config{Confidence: tt.in}.SecondaryConfidence()
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("SecondaryConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseRangeMode(t *testing.T) {
	for in, want := range map[string]RangeMode{"short": ShortRange, "FULL": FullRange, " full ": FullRange} {
		got, err := ParseRangeMode(in)
		if err != nil || got != want {
			t.Errorf("ParseRangeMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseRangeMode("medium"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if ShortRange.Complement() != FullRange || FullRange.Complement() != ShortRange {
		t.Error("Complement is not an involution")
	}
}
