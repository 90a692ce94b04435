// ABOUTME: Tests for PCM encoder
// ABOUTME: Tests 16-bit encoding, clamping and round trips through the decoder
package encode

import (
	"encoding/binary"
	"testing"

	"github.com/harperreed/narrator-go/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	if _, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 24000, Channels: 1, BitDepth: 16}); err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	if _, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 24000, Channels: 1, BitDepth: 24}); err == nil {
		t.Error("expected error for 24-bit encoder")
	}
	if _, err := NewPCM(audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16}); err == nil {
		t.Error("expected error for wrong codec")
	}
}

func TestPCMEncode(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 24000, Channels: 1, BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}

	tests := []struct {
		input    float32
		expected int16
	}{
		{0, 0},
		{0.5, 16384},
		{-1, -32768},
		{2, 32767},
		{-2, -32768},
	}

	input := make([]float32, len(tests))
	for i, tt := range tests {
		input[i] = tt.input
	}

	out, err := encoder.Encode(input)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(out) != len(input)*2 {
		t.Fatalf("expected %d bytes, got %d", len(input)*2, len(out))
	}

	for i, tt := range tests {
		got := int16(binary.LittleEndian.Uint16(out[i*2:]))
		if got != tt.expected {
			t.Errorf("sample %d (%v): expected %d, got %d", i, tt.input, tt.expected, got)
		}
	}
}

func TestPutPCM16(t *testing.T) {
	dst := make([]byte, 8)
	n := PutPCM16(dst, []float32{0.25, -0.25})
	if n != 4 {
		t.Errorf("expected 4 bytes written, got %d", n)
	}
	if got := int16(binary.LittleEndian.Uint16(dst[2:])); got != -8192 {
		t.Errorf("expected -8192, got %d", got)
	}
	if dst[4] != 0 || dst[5] != 0 {
		t.Error("wrote past the samples")
	}
}
