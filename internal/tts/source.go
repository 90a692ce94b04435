// ABOUTME: Audio sources that fetch synthesized speech for the narrator
// ABOUTME: Shared transport selection and the reader-to-sink pump
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/harperreed/narrator-go/pkg/narrator"
	"github.com/harperreed/narrator-go/pkg/stream"
)

const (
	// DefaultURL is where the TTS service listens unless configured
	DefaultURL = "http://localhost:8000"

	// DefaultChunkSize is the read size when copying a response into the player
	DefaultChunkSize = 8192

	TransportHTTP      = "http"
	TransportWebSocket = "ws"
)

// ErrUnknownTransport is returned for transports other than http and ws
var ErrUnknownTransport = errors.New("unknown transport")

// Config selects and configures a source
type Config struct {
	URL       string
	Transport string        // "http" (default) or "ws"
	Timeout   time.Duration // connect and response-header timeout
	ChunkSize int
	Logger    *slog.Logger
}

// New builds the source for cfg.Transport
func New(cfg Config) (narrator.Source, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid tts url: %w", err)
	}

	switch strings.ToLower(cfg.Transport) {
	case "", TransportHTTP:
		return NewHTTP(cfg), nil
	case TransportWebSocket, "websocket":
		return NewWebSocket(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
}

// pump copies r into sink in chunks of at most size bytes and completes the
// sink at EOF
func pump(ctx context.Context, r io.Reader, sink stream.Sink, size int) (int64, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		buf := make([]byte, size)
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if serr := sink.AddChunk(buf[:n]); serr != nil {
				return total, fmt.Errorf("deliver chunk: %w", serr)
			}
		}
		if errors.Is(err, io.EOF) {
			return total, sink.Complete()
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return total, cerr
			}
			return total, fmt.Errorf("read audio: %w", err)
		}
	}
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", "tts")
}
