// ABOUTME: HTTP source posting text to a TTS service
// ABOUTME: Streams the WAV response body into the player as it arrives
package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/harperreed/narrator-go/internal/version"
	"github.com/harperreed/narrator-go/pkg/stream"
)

// StatusError is returned when the service answers with a non-2xx status
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tts request failed: HTTP %d", e.Code)
	}
	return fmt.Sprintf("tts request failed: HTTP %d: %s", e.Code, e.Body)
}

// HTTP posts a multipart form with a text field to <url>/tts
type HTTP struct {
	endpoint  string
	client    *http.Client
	chunkSize int
	log       *slog.Logger
}

// NewHTTP creates an HTTP source
func NewHTTP(cfg Config) *HTTP {
	base := cfg.URL
	if base == "" {
		base = DefaultURL
	}

	// no overall client timeout: responses stream for as long as speech lasts
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Timeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: cfg.Timeout}).DialContext
		transport.ResponseHeaderTimeout = cfg.Timeout
	}

	return &HTTP{
		endpoint:  strings.TrimRight(base, "/") + "/tts",
		client:    &http.Client{Transport: transport},
		chunkSize: cfg.ChunkSize,
		log:       logger(cfg.Logger),
	}
}

// Stream requests speech for text and feeds the response to sink
func (h *HTTP) Stream(ctx context.Context, text string, sink stream.Sink) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("text", text); err != nil {
		return fmt.Errorf("build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	h.log.Debug("posting text", "url", h.endpoint, "chars", len(text))

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := make([]byte, 256)
		n, _ := resp.Body.Read(snippet)
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet[:n]))}
	}

	total, err := pump(ctx, resp.Body, sink, h.chunkSize)
	if err != nil {
		return err
	}
	h.log.Debug("response finished", "bytes", total, "elapsed", time.Since(start))
	return nil
}
