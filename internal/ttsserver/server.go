// ABOUTME: Stand-in TTS service for development and integration tests
// ABOUTME: Streams a WAV tone over HTTP and websocket, optionally advertised via mDNS
package ttsserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/harperreed/narrator-go/internal/discovery"
	"github.com/harperreed/narrator-go/internal/logger"
	"github.com/harperreed/narrator-go/pkg/audio"
	"github.com/harperreed/narrator-go/pkg/audio/wav"
)

const (
	DefaultAddr         = ":8000"
	DefaultSampleRate   = 24000
	DefaultChannels     = 1
	DefaultFrequency    = 440.0
	DefaultChunkBytes   = 4800
	DefaultCharDuration = 60 * time.Millisecond
	DefaultMaxDuration  = 30 * time.Second

	minDuration   = 200 * time.Millisecond
	maxTextLength = 1 << 20
)

// Config holds server configuration
type Config struct {
	Addr         string
	Name         string
	EnableMDNS   bool
	SampleRate   int
	Channels     int
	Frequency    float64
	ChunkBytes   int           // bytes per write
	ChunkDelay   time.Duration // pause between writes
	CharDuration time.Duration // audio produced per character of text
	MaxDuration  time.Duration
	Logger       *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Name == "" {
		c.Name = "narrator-testserver"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = DefaultChannels
	}
	if c.Frequency <= 0 {
		c.Frequency = DefaultFrequency
	}
	if c.ChunkBytes <= 0 {
		c.ChunkBytes = DefaultChunkBytes
	}
	if c.CharDuration <= 0 {
		c.CharDuration = DefaultCharDuration
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the test TTS service
type Server struct {
	config   Config
	log      *slog.Logger
	router   chi.Router
	upgrader websocket.Upgrader

	httpServer  *http.Server
	mdnsManager *discovery.Manager

	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a server
func New(config Config) *Server {
	config.applyDefaults()

	s := &Server{
		config: config,
		log:    logger.WithComponent(config.Logger, "ttsserver"),
		upgrader: websocket.Upgrader{
			// local development service; browsers and CLIs both connect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		stopChan: make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(s.log))
	r.Post("/tts", s.handleTTS)
	r.Get("/tts/ws", s.handleWebSocket)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	s.router = r

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Format returns the audio format the server produces
func (s *Server) Format() audio.Format {
	return audio.Format{
		Codec:      "pcm",
		SampleRate: s.config.SampleRate,
		Channels:   s.config.Channels,
		BitDepth:   16,
	}
}

// Duration returns how much audio is produced for text
func (s *Server) Duration(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * s.config.CharDuration
	return max(minDuration, min(d, s.config.MaxDuration))
}

// Start serves until Stop is called or ctx ends
func (s *Server) Start(ctx context.Context) error {
	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        portOf(s.config.Addr),
			Logger:      s.config.Logger,
		})
		if err := s.mdnsManager.Advertise(ctx); err != nil {
			s.log.Warn("failed to start mDNS advertisement", "error", err)
		}
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.log.Info("tts test server listening", "addr", s.config.Addr,
		"rate", s.config.SampleRate, "channels", s.config.Channels)

	var serverErr error
	select {
	case <-s.stopChan:
	case <-ctx.Done():
	case err := <-errChan:
		serverErr = err
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("http server shutdown error", "error", err)
	}
	s.log.Info("tts test server stopped")

	if serverErr != nil {
		return fmt.Errorf("http server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTextLength)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxTextLength); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
	}

	text := strings.TrimSpace(r.FormValue("text"))
	if text == "" {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	err := s.generate(r.Context(), text, func(chunk []byte) error {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		return rc.Flush()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("stream aborted", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	kind, msg, err := conn.ReadMessage()
	if err != nil {
		s.log.Debug("websocket closed before text", "error", err)
		return
	}
	text := strings.TrimSpace(string(msg))
	if kind != websocket.TextMessage || text == "" {
		conn.WriteMessage(websocket.TextMessage, []byte("expected a text message"))
		return
	}

	err = s.generate(r.Context(), text, func(chunk []byte) error {
		return conn.WriteMessage(websocket.BinaryMessage, chunk)
	})
	if err != nil {
		s.log.Warn("websocket stream aborted", "error", err)
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))

	// wait for the client's close reply so it sees a clean shutdown
	conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// generate writes a streaming WAV header followed by paced tone chunks
func (s *Server) generate(ctx context.Context, text string, write func([]byte) error) error {
	format := s.Format()
	tone := NewTone(format, s.config.Frequency, s.Duration(text))

	s.log.Debug("synthesizing", "chars", utf8.RuneCountInString(text), "frames", tone.Remaining())

	if err := write(wav.EncodeHeader(format, wav.StreamingDataSize)); err != nil {
		return err
	}

	for tone.Remaining() > 0 {
		if s.config.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.ChunkDelay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		chunk := make([]byte, s.config.ChunkBytes)
		n := tone.Read(chunk)
		if n == 0 {
			break
		}
		if err := write(chunk[:n]); err != nil {
			return err
		}
	}
	return nil
}

// portOf extracts the port from a listen address, defaulting to 8000
func portOf(addr string) int {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return 8000
	}
	var port int
	if _, err := fmt.Sscanf(addr[i+1:], "%d", &port); err != nil || port <= 0 {
		return 8000
	}
	return port
}
