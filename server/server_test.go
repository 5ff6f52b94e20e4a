package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"

	"thaitanloi365/go-face-redact/facebluring"
	"thaitanloi365/go-face-redact/logger"
	"thaitanloi365/go-face-redact/pipeline"
)

type nopDetector struct{}

func (nopDetector) Detect(image.Image, float64) ([]facebluring.RelativeBox, error) { return nil, nil }
func (nopDetector) Close() error                                                  { return nil }

// newTestServer serves a pipeline whose detectors wait for gate to close.
func newTestServer(t *testing.T, gate chan struct{}) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	p := &pipeline.Pipeline{
		Detectors: func(facebluring.RangeMode) (facebluring.Detector, error) {
			if gate != nil {
				<-gate
			}
			return nopDetector{}, nil
		},
		Preview: facebluring.DefaultPreviewOptions(),
		Log:     logger.Discard(),
	}
	srv := New(ctx, p, facebluring.DefaultConfig(), logger.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portrait.png")
	if err := imaging.Save(image.NewNRGBA(image.Rect(0, 0, 16, 12)), path); err != nil {
		t.Fatal(err)
	}
	return path
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_StreamsRunEvents(t *testing.T) {
	srv, ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return srv.Hub().ClientCount() == 1 })

	input := writeInput(t)
	resp := postJSON(t, ts.URL+"/runs", StartRequest{Input: input})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /runs = %d", resp.StatusCode)
	}

	var got []Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v (after %v)", err, got)
		}
		got = append(got, m)
		if m.Type == "completed" || m.Type == "error" {
			break
		}
	}

	last := got[len(got)-1]
	if last.Type != "completed" || last.Output != strings.TrimSuffix(input, ".png")+"_blurred.png" {
		t.Fatalf("last message = %+v", last)
	}

	var preview *Message
	for i := range got {
		if got[i].Type == "preview" {
			preview = &got[i]
		}
	}
	if preview == nil {
		t.Fatalf("no preview in %v", got)
	}
	data, err := base64.StdEncoding.DecodeString(preview.Preview)
	if err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("preview is not an image: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 12 {
		t.Fatalf("preview bounds = %v", img.Bounds())
	}
}

func TestServer_OneRunAtATime(t *testing.T) {
	gate := make(chan struct{})
	srv, ts := newTestServer(t, gate)
	input := writeInput(t)

	if resp := postJSON(t, ts.URL+"/runs", StartRequest{Input: input}); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first POST /runs = %d", resp.StatusCode)
	}
	if resp := postJSON(t, ts.URL+"/runs", StartRequest{Input: input}); resp.StatusCode != http.StatusConflict {
		t.Fatalf("second POST /runs = %d, want 409", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/runs/current")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var st RunStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Input != input || st.State == "completed" {
		t.Fatalf("status = %+v", st)
	}

	if resp := postJSON(t, ts.URL+"/runs/cancel", nil); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /runs/cancel = %d", resp.StatusCode)
	}
	close(gate)
	srv.Current().Wait()

	if resp := postJSON(t, ts.URL+"/runs/cancel", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cancel after finish = %d, want 404", resp.StatusCode)
	}
}

func TestServer_RejectsBadRequests(t *testing.T) {
	_, ts := newTestServer(t, nil)

	low := 0.05
	bad := "medium"
	tests := []struct {
		name string
		body any
	}{
		{"missing input", StartRequest{}},
		{"confidence below range", StartRequest{Input: "a.png", Confidence: &low}},
		{"unknown range", StartRequest{Input: "a.png", Range: &bad}},
		{"not json", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := postJSON(t, ts.URL+"/runs", tt.body); resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}

	resp, err := http.Get(ts.URL + "/runs/current")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /runs/current = %d, want 404", resp.StatusCode)
	}
}

func TestStartRequest_OverridesDefaults(t *testing.T) {
	conf := 0.6
	full := "full"
	off := false
	on := true
	params, err := StartRequest{Input: "in.jpg", Confidence: &conf, Range: &full, Group: &off, Debug: &on}.params(facebluring.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	want := facebluring.Config{Confidence: 0.6, Range: facebluring.FullRange, GroupMode: false, DebugOverlay: true}
	if params.Detection != want || params.Input != "in.jpg" {
		t.Fatalf("params = %+v", params)
	}
}

func TestServer_RefusesUnsafeRequests(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	input := writeInput(t)
	body, _ := json.Marshal(StartRequest{Input: input})

	send := func(t *testing.T, contentType, origin string, payload []byte) int {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/runs", bytes.NewReader(payload))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", contentType)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	t.Run("plain text body", func(t *testing.T) {
		if got := send(t, "text/plain", "", body); got != http.StatusUnsupportedMediaType {
			t.Fatalf("status = %d, want 415", got)
		}
	})
	t.Run("foreign origin", func(t *testing.T) {
		if got := send(t, "application/json", "http://attacker.example", body); got != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", got)
		}
	})
	t.Run("output outside input directory", func(t *testing.T) {
		elsewhere, _ := json.Marshal(StartRequest{Input: input, Output: filepath.Join(t.TempDir(), "x.png")})
		if got := send(t, "application/json", "", elsewhere); got != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", got)
		}
	})
	t.Run("foreign websocket origin", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
		header := http.Header{"Origin": []string{"http://attacker.example"}}
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		if err == nil {
			conn.Close()
			t.Fatal("cross-origin websocket was accepted")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Fatalf("handshake response = %v, want 403", resp)
		}
	})

	if srv.Current() != nil {
		t.Fatal("a refused request started a run")
	}

	t.Run("same origin accepted", func(t *testing.T) {
		if got := send(t, "application/json; charset=utf-8", ts.URL, body); got != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", got)
		}
		srv.Current().Wait()
	})
}
