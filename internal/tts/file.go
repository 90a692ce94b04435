// ABOUTME: Source that replays a WAV file or stdin through the player
// ABOUTME: Optional pacing simulates a slow network producer
package tts

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harperreed/narrator-go/pkg/stream"
)

// File streams a local WAV file. The text argument is ignored.
type File struct {
	Path      string        // "-" reads stdin
	ChunkSize int           // bytes per AddChunk (default: DefaultChunkSize)
	Pace      time.Duration // delay between chunks
}

// Stream feeds the file to sink
func (f *File) Stream(ctx context.Context, _ string, sink stream.Sink) error {
	var r io.Reader
	if f.Path == "-" {
		r = os.Stdin
	} else {
		fh, err := os.Open(f.Path)
		if err != nil {
			return fmt.Errorf("open audio file: %w", err)
		}
		defer fh.Close()
		r = fh
	}

	if f.Pace > 0 {
		r = &pacedReader{ctx: ctx, r: r, delay: f.Pace}
	}
	_, err := pump(ctx, r, sink, f.ChunkSize)
	return err
}

// pacedReader sleeps before every read after the first
type pacedReader struct {
	ctx   context.Context
	r     io.Reader
	delay time.Duration
	reads int
}

func (p *pacedReader) Read(b []byte) (int, error) {
	if p.reads > 0 {
		select {
		case <-p.ctx.Done():
			return 0, p.ctx.Err()
		case <-time.After(p.delay):
		}
	}
	p.reads++
	return p.r.Read(b)
}
