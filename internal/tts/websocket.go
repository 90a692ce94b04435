// ABOUTME: WebSocket source for TTS services that stream over a socket
// ABOUTME: Sends the text once and treats binary frames as audio chunks
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harperreed/narrator-go/internal/version"
	"github.com/harperreed/narrator-go/pkg/stream"
)

// ErrServer is returned when the service sends a text frame instead of audio
var ErrServer = errors.New("tts server error")

// WebSocket dials <url>/tts/ws, sends the text and reads binary frames until
// the server closes the connection normally
type WebSocket struct {
	endpoint string
	dialer   *websocket.Dialer
	log      *slog.Logger
}

// NewWebSocket creates a websocket source
func NewWebSocket(cfg Config) *WebSocket {
	dialer := *websocket.DefaultDialer
	if cfg.Timeout > 0 {
		dialer.HandshakeTimeout = cfg.Timeout
	}

	return &WebSocket{
		endpoint: websocketURL(cfg.URL),
		dialer:   &dialer,
		log:      logger(cfg.Logger),
	}
}

// websocketURL maps an http(s) base URL to the ws(s) stream endpoint
func websocketURL(base string) string {
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/tts/ws"
	return u.String()
}

// Stream requests speech for text and feeds each binary frame to sink
func (w *WebSocket) Stream(ctx context.Context, text string, sink stream.Sink) error {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, _, err := w.dialer.DialContext(ctx, w.endpoint, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.endpoint, err)
	}

	// unblock ReadMessage when the context ends
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
		conn.Close()
	}()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	w.log.Debug("sent text", "url", w.endpoint, "chars", len(text))

	var total int64
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				w.log.Debug("stream closed by server", "bytes", total)
				return sink.Complete()
			}
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return fmt.Errorf("read frame: %w", err)
		}

		switch kind {
		case websocket.BinaryMessage:
			total += int64(len(data))
			if err := sink.AddChunk(data); err != nil {
				return fmt.Errorf("deliver chunk: %w", err)
			}
		case websocket.TextMessage:
			return fmt.Errorf("%w: %s", ErrServer, data)
		}
	}
}
