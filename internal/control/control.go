// ABOUTME: Local HTTP control API for a running narration
// ABOUTME: Exposes status, transport controls and Prometheus metrics over chi
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/harperreed/narrator-go/internal/logger"
	"github.com/harperreed/narrator-go/internal/metrics"
	"github.com/harperreed/narrator-go/pkg/narrator"
)

// Controller is the narrator surface the API drives
type Controller interface {
	Status() narrator.Status
	Pause() error
	Resume() error
	Stop() error
	Next() error
	Previous() error
	Seek(index int) error
	SetVolume(volume int)
	SetMuted(muted bool)
}

// Config holds control server configuration
type Config struct {
	Addr    string
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Server serves the control API
type Server struct {
	ctrl   Controller
	config Config
	log    *slog.Logger
	router chi.Router
}

// StatusResponse is the JSON body of GET /status
type StatusResponse struct {
	State        string  `json:"state"`
	Summary      string  `json:"summary"`
	SessionID    string  `json:"session_id,omitempty"`
	Span         int     `json:"span"`
	Spans        int     `json:"spans"`
	Text         string  `json:"text,omitempty"`
	FirstAudioMs int64   `json:"first_audio_ms"`
	Bytes        int64   `json:"bytes"`
	ElapsedSec   float64 `json:"elapsed_sec"`
	Volume       int     `json:"volume"`
	Muted        bool    `json:"muted"`
	Error        string  `json:"error,omitempty"`
}

// NewStatusResponse converts a narrator status
func NewStatusResponse(st narrator.Status) StatusResponse {
	resp := StatusResponse{
		State:        string(st.State),
		Summary:      st.Summary(),
		SessionID:    st.SessionID,
		Spans:        st.Total,
		Text:         st.Text,
		FirstAudioMs: st.FirstAudio.Milliseconds(),
		Bytes:        st.Bytes,
		ElapsedSec:   st.Elapsed.Seconds(),
		Volume:       st.Volume,
		Muted:        st.Muted,
	}
	if st.Total > 0 {
		resp.Span = st.Index + 1
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

// New creates the control server
func New(ctrl Controller, config Config) *Server {
	s := &Server{
		ctrl:   ctrl,
		config: config,
		log:    logger.WithComponent(config.Logger, "control"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(s.log))
	if config.Metrics != nil {
		r.Use(metrics.RequestMiddleware(config.Metrics))
		r.Method(http.MethodGet, "/metrics", config.Metrics.Handler())
	}

	r.Get("/status", s.handleStatus)
	r.Post("/pause", s.action(ctrl.Pause))
	r.Post("/resume", s.action(ctrl.Resume))
	r.Post("/stop", s.action(ctrl.Stop))
	r.Post("/next", s.action(ctrl.Next))
	r.Post("/previous", s.action(ctrl.Previous))
	r.Post("/seek/{span}", s.handleSeek)
	r.Post("/volume/{level}", s.handleVolume)
	r.Post("/mute", s.handleMute(true))
	r.Post("/unmute", s.handleMute(false))
	s.router = r

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on config.Addr until ctx ends
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	s.log.Info("control api listening", "addr", s.config.Addr)

	select {
	case <-ctx.Done():
	case err := <-errChan:
		return fmt.Errorf("control api failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewStatusResponse(s.ctrl.Status()))
}

func (s *Server) action(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, NewStatusResponse(s.ctrl.Status()))
	}
}

// handleSeek moves to a 1-based span number
func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	span, err := strconv.Atoi(chi.URLParam(r, "span"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "span must be a number"})
		return
	}
	if err := s.ctrl.Seek(span - 1); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewStatusResponse(s.ctrl.Status()))
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, narrator.ErrNotPlaying):
		code = http.StatusConflict
	case errors.Is(err, narrator.ErrSpanRange):
		code = http.StatusBadRequest
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil || level < 0 || level > 100 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "volume must be 0-100"})
		return
	}
	s.ctrl.SetVolume(level)
	s.writeJSON(w, http.StatusOK, NewStatusResponse(s.ctrl.Status()))
}

func (s *Server) handleMute(muted bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.ctrl.SetMuted(muted)
		s.writeJSON(w, http.StatusOK, NewStatusResponse(s.ctrl.Status()))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("failed to write response", slog.String("error", err.Error()))
	}
}
