// ABOUTME: Tests for WAV header parsing
// ABOUTME: Covers marker validation, split delivery and header encoding
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/harperreed/narrator-go/pkg/audio"
)

func testHeader(rate, channels int) []byte {
	return EncodeHeader(audio.Format{Codec: "pcm", SampleRate: rate, Channels: channels, BitDepth: 16}, StreamingDataSize)
}

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(testHeader(24000, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", h.Channels)
	}
	if h.SampleRate != 24000 {
		t.Errorf("expected 24000 Hz, got %d", h.SampleRate)
	}
	if h.DataSize != StreamingDataSize {
		t.Errorf("expected streaming data size, got %#x", h.DataSize)
	}

	f := h.Format()
	if f.Codec != "pcm" || f.BitDepth != 16 || f.FrameSize() != 2 {
		t.Errorf("unexpected format %+v", f)
	}
}

func TestParseHeaderErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b []byte) []byte
		want   error
	}{
		{"short", func(b []byte) []byte { return b[:43] }, ErrMalformedContainer},
		{"bad riff", func(b []byte) []byte { copy(b[0:4], "RIFX"); return b }, ErrMalformedContainer},
		{"bad wave", func(b []byte) []byte { copy(b[8:12], "AVI "); return b }, ErrMalformedContainer},
		{"zero channels", func(b []byte) []byte { binary.LittleEndian.PutUint16(b[22:], 0); return b }, ErrMalformedContainer},
		{"zero rate", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[24:], 0); return b }, ErrMalformedContainer},
		{"float format", func(b []byte) []byte { binary.LittleEndian.PutUint16(b[20:], 3); return b }, ErrUnsupportedFormat},
		{"24-bit", func(b []byte) []byte { binary.LittleEndian.PutUint16(b[34:], 24); return b }, ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(tt.mutate(testHeader(22050, 2)))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseHeaderLenientFields(t *testing.T) {
	b := testHeader(16000, 1)
	// producers that leave the format tag and bit depth empty are accepted
	binary.LittleEndian.PutUint16(b[20:], 0)
	binary.LittleEndian.PutUint16(b[34:], 0)

	h, err := ParseHeader(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Format().BitDepth != 16 {
		t.Errorf("expected 16-bit default, got %d", h.Format().BitDepth)
	}

	binary.LittleEndian.PutUint16(b[20:], FormatExtensible)
	if _, err := ParseHeader(b); err != nil {
		t.Errorf("extensible tag rejected: %v", err)
	}
}

func TestHeaderReaderSplitAtEveryOffset(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6}
	stream := append(testHeader(48000, 2), payload...)

	for split := 0; split <= HeaderSize; split++ {
		var hr HeaderReader

		first, done, err := hr.Feed(stream[:split])
		if err != nil {
			t.Fatalf("split %d: unexpected error: %v", split, err)
		}

		var got []byte
		if done {
			got = append(got, first...)
		}

		rest, done, err := hr.Feed(stream[split:])
		if err != nil {
			t.Fatalf("split %d: unexpected error: %v", split, err)
		}
		if !done {
			t.Fatalf("split %d: header not complete after all bytes", split)
		}
		got = append(got, rest...)

		if !bytes.Equal(got, payload) {
			t.Errorf("split %d: expected payload %v, got %v", split, payload, got)
		}

		h, ok := hr.Header()
		if !ok || h.SampleRate != 48000 || h.Channels != 2 {
			t.Errorf("split %d: unexpected header %+v (ok=%v)", split, h, ok)
		}
	}
}

func TestHeaderReaderByteAtATime(t *testing.T) {
	stream := append(testHeader(24000, 1), 0xAA, 0xBB)

	var hr HeaderReader
	var payload []byte
	for i := range stream {
		p, done, err := hr.Feed(stream[i : i+1])
		if err != nil {
			t.Fatalf("byte %d: unexpected error: %v", i, err)
		}
		if i < HeaderSize-1 && done {
			t.Fatalf("header reported complete after %d bytes", i+1)
		}
		payload = append(payload, p...)
	}

	if !bytes.Equal(payload, []byte{0xAA, 0xBB}) {
		t.Errorf("unexpected payload %v", payload)
	}
	if hr.Buffered() != HeaderSize {
		t.Errorf("expected %d buffered bytes, got %d", HeaderSize, hr.Buffered())
	}
}

func TestHeaderReaderMalformed(t *testing.T) {
	b := testHeader(24000, 1)
	copy(b[0:4], "JUNK")

	var hr HeaderReader
	if _, _, err := hr.Feed(b[:20]); err != nil {
		t.Fatalf("error before header complete: %v", err)
	}
	_, done, err := hr.Feed(b[20:])
	if !errors.Is(err, ErrMalformedContainer) {
		t.Errorf("expected ErrMalformedContainer, got %v", err)
	}
	if done {
		t.Error("malformed header reported done")
	}
}

func TestEncodeHeaderSizes(t *testing.T) {
	b := EncodeHeader(audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16}, 1000)

	if got := binary.LittleEndian.Uint32(b[4:8]); got != 1036 {
		t.Errorf("expected RIFF size 1036, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[28:32]); got != 44100*4 {
		t.Errorf("expected byte rate %d, got %d", 44100*4, got)
	}
	if got := binary.LittleEndian.Uint16(b[32:34]); got != 4 {
		t.Errorf("expected block align 4, got %d", got)
	}
	if string(b[36:40]) != "data" {
		t.Errorf("expected data marker, got %q", b[36:40])
	}
}
