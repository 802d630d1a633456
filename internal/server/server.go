// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/scribeflow/platform/internal/capture"
	"github.com/scribeflow/platform/internal/config"
	"github.com/scribeflow/platform/internal/errors"
	"github.com/scribeflow/platform/internal/trace"
)

// Recorder is the microphone dependency. Nil on headless deployments;
// the recording endpoints then report a validation error.
type Recorder interface {
	Start() error
	Stop() ([]byte, error)
	Recording() bool
}

// CaptureResponse is the JSON body returned by the capture endpoints.
type CaptureResponse struct {
	CaptureID string `json:"capture_id"`
	Path      string `json:"path"`
	Tier      string `json:"tier"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Elapsed   string `json:"elapsed"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type settingsRequest struct {
	EnrichEnabled *bool `json:"enrich_enabled,omitempty"`
	MaxRetries    *int  `json:"max_retries,omitempty"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a request is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	pipe     *capture.Pipeline
	recorder Recorder
	cfg      *config.Config

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New creates a new server. recorder may be nil.
func New(pipe *capture.Pipeline, recorder Recorder, cfg *config.Config) *Server {
	s := &Server{
		pipe:     pipe,
		recorder: recorder,
		cfg:      cfg,
		conns:    make(map[*websocket.Conn]struct{}),
	}

	go s.broadcastProgress()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket progress stream
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/capture/audio", s.handleCaptureAudio)
	mux.HandleFunc("POST /api/capture/image", s.handleCaptureImage)
	mux.HandleFunc("POST /api/capture/multimodal", s.handleCaptureMultimodal)
	mux.HandleFunc("POST /api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("POST /api/recording/stop", s.handleRecordingStop)
	mux.HandleFunc("POST /api/settings", s.handleSettings)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	recording := false
	if s.recorder != nil {
		recording = s.recorder.Recording()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"busy":      s.pipe.Busy(),
		"recording": recording,
	})
}

func (s *Server) handleCaptureAudio(w http.ResponseWriter, r *http.Request) {
	audio, mime, err := readPart(r, "audio")
	if err != nil {
		writeError(w, err)
		return
	}
	s.runCapture(w, r, func(ctx context.Context) (*capture.Outcome, error) {
		return s.pipe.CaptureAudio(ctx, audio, mime)
	})
}

func (s *Server) handleCaptureImage(w http.ResponseWriter, r *http.Request) {
	image, mime, err := readPart(r, "image")
	if err != nil {
		writeError(w, err)
		return
	}
	s.runCapture(w, r, func(ctx context.Context) (*capture.Outcome, error) {
		return s.pipe.CaptureImage(ctx, image, mime)
	})
}

func (s *Server) handleCaptureMultimodal(w http.ResponseWriter, r *http.Request) {
	audio, audioMime, err := readPart(r, "audio")
	if err != nil {
		writeError(w, err)
		return
	}
	image, imageMime, err := readPart(r, "image")
	if err != nil {
		writeError(w, err)
		return
	}
	s.runCapture(w, r, func(ctx context.Context) (*capture.Outcome, error) {
		return s.pipe.CaptureMultimodal(ctx, audio, audioMime, image, imageMime)
	})
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeError(w, errors.New(errors.CodeValidation, "no audio device available"))
		return
	}
	if err := s.recorder.Start(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recording_started"})
}

// handleRecordingStop ends the recording and feeds the clip straight into
// the audio capture pipeline.
func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeError(w, errors.New(errors.CodeValidation, "no audio device available"))
		return
	}
	clip, err := s.recorder.Stop()
	if err != nil {
		writeError(w, err)
		return
	}
	s.runCapture(w, r, func(ctx context.Context) (*capture.Outcome, error) {
		return s.pipe.CaptureAudio(ctx, clip, "audio/wav")
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxSettingsBytes)).Decode(&req); err != nil {
		writeError(w, errors.Wrap(err, errors.CodeValidation, "decode settings"))
		return
	}
	if req.EnrichEnabled != nil {
		s.cfg.SetEnrichEnabled(*req.EnrichEnabled)
	}
	if req.MaxRetries != nil {
		s.cfg.SetMaxRetries(*req.MaxRetries)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// runCapture executes one capture on the request context, so a client
// disconnect cancels the run before anything is written.
func (s *Server) runCapture(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) (*capture.Outcome, error)) {
	ctx, span := trace.StartSpan(r.Context(), "http_capture")
	defer span.End()

	out, err := fn(ctx)
	if err != nil {
		span.SetAttr("error", err.Error())
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CaptureResponse{
		CaptureID: out.CaptureID,
		Path:      out.Path,
		Tier:      out.Result.Tier.String(),
		Title:     out.Result.SmartTitle,
		Summary:   out.Result.Summary,
		Elapsed:   out.Elapsed,
	})
}

// readPart extracts one upload: the named multipart field, or the raw body
// when the request is not multipart.
func readPart(r *http.Request, field string) ([]byte, string, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/") {
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			return nil, "", errors.Wrap(err, errors.CodeValidation, "parse multipart form")
		}
		file, header, err := r.FormFile(field)
		if err != nil {
			return nil, "", errors.Wrapf(err, errors.CodeValidation, "missing %q upload", field)
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes))
		if err != nil {
			return nil, "", errors.Wrap(err, errors.CodeValidation, "read upload")
		}
		return data, header.Header.Get("Content-Type"), nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, MaxUploadBytes))
	if err != nil {
		return nil, "", errors.Wrap(err, errors.CodeValidation, "read request body")
	}
	return data, ct, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	ctx := r.Context()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	rl := &rateLimiter{}
	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}
		// The stream is one-way; inbound messages are only pings, bounded
		// by the rate limiter.
		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(ctx, conn, map[string]string{"type": "error", "error": "rate limit exceeded"})
		}
	}
}

// broadcastProgress fans pipeline events out to every connected client.
func (s *Server) broadcastProgress() {
	for evt := range s.pipe.Events() {
		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn, e capture.Event) {
				_ = wsjson.Write(context.Background(), c, e)
			}(conn, evt)
		}
		s.mu.RUnlock()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	writeJSON(w, statusFor(err, code), errorResponse{Error: err.Error(), Code: code.String()})
}

func statusFor(err error, code errors.Code) int {
	if err == capture.ErrBusy {
		return http.StatusConflict
	}
	switch code {
	case errors.CodeValidation:
		return http.StatusBadRequest
	case errors.CodeAuth:
		return http.StatusUnauthorized
	case errors.CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
