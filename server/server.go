// Package server exposes pipeline runs over HTTP and streams their
// notifications to websocket viewers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"thaitanloi365/go-face-redact/config"
	"thaitanloi365/go-face-redact/facebluring"
	"thaitanloi365/go-face-redact/pipeline"
)

// Upgrader upgrades viewer connections from the bridge's own origin or from
// clients that send no Origin.
var Upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// sameOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests whose origin host is the host they hit.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// Server runs at most one pipeline run at a time.
type Server struct {
	ctx      context.Context
	pipeline *pipeline.Pipeline
	defaults facebluring.Config
	hub      *Hub
	log      logrus.FieldLogger

	mu      sync.Mutex
	current *pipeline.Run
}

// New returns a Server whose runs and hub live as long as ctx. The hub is
// started here.
func New(ctx context.Context, p *pipeline.Pipeline, defaults facebluring.Config, log logrus.FieldLogger) *Server {
	s := &Server{
		ctx:      ctx,
		pipeline: p,
		defaults: defaults,
		hub:      NewHub(log),
		log:      log,
	}
	go s.hub.Run(ctx)
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

// Current returns the active or last run, or nil.
func (s *Server) Current() *pipeline.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	mux.HandleFunc("POST /runs", sameOriginOnly(s.handleStart))
	mux.HandleFunc("POST /runs/cancel", sameOriginOnly(s.handleCancel))
	mux.HandleFunc("GET /runs/current", s.handleCurrent)
	return mux
}

// StartRequest is the body of POST /runs. Unset detection fields keep the
// server defaults.
type StartRequest struct {
	Input      string   `json:"input"`
	Output     string   `json:"output,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Range      *string  `json:"range,omitempty"`
	Group      *bool    `json:"group,omitempty"`
	Debug      *bool    `json:"debug,omitempty"`
}

func (req StartRequest) params(defaults facebluring.Config) (pipeline.Params, error) {
	if req.Input == "" {
		return pipeline.Params{}, errors.New("input is required")
	}
	if req.Output != "" && !sameDir(req.Input, req.Output) {
		return pipeline.Params{}, errors.New("output must be in the input's directory")
	}
	cfg := defaults
	if req.Confidence != nil {
		c := *req.Confidence
		if c < config.MinConfidence || c > config.MaxConfidence {
			return pipeline.Params{}, fmt.Errorf("confidence %.2f outside [%.2f, %.2f]", c, config.MinConfidence, config.MaxConfidence)
		}
		cfg.Confidence = c
	}
	if req.Range != nil {
		mode, err := facebluring.ParseRangeMode(*req.Range)
		if err != nil {
			return pipeline.Params{}, err
		}
		cfg.Range = mode
	}
	if req.Group != nil {
		cfg.GroupMode = *req.Group
	}
	if req.Debug != nil {
		cfg.DebugOverlay = *req.Debug
	}
	return pipeline.Params{Input: req.Input, Output: req.Output, Detection: cfg}, nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, errors.New("body must be application/json"))
		return
	}
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	params, err := req.params(s.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	if s.current != nil && !s.current.State().Terminal() {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, errors.New("a run is already in progress"))
		return
	}
	run := s.pipeline.Start(s.ctx, params)
	s.current = run
	s.mu.Unlock()

	go s.forward(run)
	writeJSON(w, http.StatusAccepted, statusOf(run))
}

// forward relays every event of run to the hub.
func (s *Server) forward(run *pipeline.Run) {
	for e := range run.Events() {
		msg, err := newMessage(e)
		if err != nil {
			s.log.WithError(err).Warn("could not encode event")
			continue
		}
		data, err := json.Marshal(msg)
		if err != nil {
			s.log.WithError(err).Warn("could not encode event")
			continue
		}
		s.hub.Broadcast(data)
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	run := s.Current()
	if run == nil || run.State().Terminal() {
		writeError(w, http.StatusNotFound, errors.New("no active run"))
		return
	}
	run.Cancel()
	writeJSON(w, http.StatusAccepted, statusOf(run))
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	run := s.Current()
	if run == nil {
		writeError(w, http.StatusNotFound, errors.New("no run yet"))
		return
	}
	writeJSON(w, http.StatusOK, statusOf(run))
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	connection, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	connection.SetReadLimit(512)

	s.hub.Register(connection)
	defer s.hub.Unregister(connection)

	// Viewers only listen; reading detects when they go away.
	for {
		if _, _, err := connection.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("viewer connection closed")
			}
			return
		}
	}
}

// sameOriginOnly rejects cross-origin browser requests to state-changing
// endpoints.
func sameOriginOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sameOrigin(r) {
			writeError(w, http.StatusForbidden, errors.New("cross-origin request refused"))
			return
		}
		next(w, r)
	}
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return false
	}
	return filepath.Dir(absA) == filepath.Dir(absB)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
