// ABOUTME: Canonical 44-byte WAV header parser and writer
// ABOUTME: Validates RIFF/WAVE markers and extracts channels and sample rate
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/harperreed/narrator-go/pkg/audio"
)

const (
	// HeaderSize is the length of the canonical header
	HeaderSize = 44

	// StreamingDataSize marks a data chunk of unknown length
	StreamingDataSize = 0xFFFFFFFF

	FormatPCM        = 1
	FormatExtensible = 0xFFFE
)

var (
	// ErrMalformedContainer is returned when the header markers or fields are invalid
	ErrMalformedContainer = errors.New("malformed container")

	// ErrUnsupportedFormat is returned for non 16-bit PCM payloads
	ErrUnsupportedFormat = audio.ErrUnsupportedFormat
)

// Header holds the fields of a canonical WAV header
type Header struct {
	AudioFormat   uint16 // 0 when the producer left it unset
	Channels      int
	SampleRate    int
	BitsPerSample int // 0 when the producer left it unset
	DataSize      uint32
}

// Format returns the PCM format described by the header.
func (h Header) Format() audio.Format {
	bits := h.BitsPerSample
	if bits == 0 {
		bits = 16
	}
	return audio.Format{
		Codec:      "pcm",
		SampleRate: h.SampleRate,
		Channels:   h.Channels,
		BitDepth:   bits,
	}
}

// ParseHeader validates and decodes the first HeaderSize bytes of b
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header is %d bytes, need %d", ErrMalformedContainer, len(b), HeaderSize)
	}

	if string(b[0:4]) != "RIFF" {
		return Header{}, fmt.Errorf("%w: expected RIFF marker, got %q", ErrMalformedContainer, b[0:4])
	}
	if string(b[8:12]) != "WAVE" {
		return Header{}, fmt.Errorf("%w: expected WAVE marker, got %q", ErrMalformedContainer, b[8:12])
	}

	h := Header{
		AudioFormat:   binary.LittleEndian.Uint16(b[20:22]),
		Channels:      int(binary.LittleEndian.Uint16(b[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(b[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(b[34:36])),
		DataSize:      binary.LittleEndian.Uint32(b[40:44]),
	}

	if h.Channels < 1 {
		return Header{}, fmt.Errorf("%w: channel count is zero", ErrMalformedContainer)
	}
	if h.SampleRate <= 0 {
		return Header{}, fmt.Errorf("%w: invalid sample rate %d", ErrMalformedContainer, h.SampleRate)
	}

	if h.AudioFormat != 0 && h.AudioFormat != FormatPCM && h.AudioFormat != FormatExtensible {
		return Header{}, fmt.Errorf("%w: format tag 0x%04x", ErrUnsupportedFormat, h.AudioFormat)
	}
	if h.BitsPerSample != 0 && h.BitsPerSample != 16 {
		return Header{}, fmt.Errorf("%w: %d-bit PCM (supported: 16)", ErrUnsupportedFormat, h.BitsPerSample)
	}

	return h, nil
}

// EncodeHeader writes a canonical header for 16-bit PCM in format.
// Pass StreamingDataSize when the payload length is unknown.
func EncodeHeader(format audio.Format, dataSize uint32) []byte {
	bits := format.BitDepth
	if bits == 0 {
		bits = 16
	}
	blockAlign := format.Channels * bits / 8
	byteRate := format.SampleRate * blockAlign

	riffSize := uint32(StreamingDataSize)
	if dataSize != StreamingDataSize {
		riffSize = 36 + dataSize
	}

	b := make([]byte, HeaderSize)
	copy(b[0:4], "RIFF")
	binary.LittleEndian.PutUint32(b[4:8], riffSize)
	copy(b[8:12], "WAVE")
	copy(b[12:16], "fmt ")
	binary.LittleEndian.PutUint32(b[16:20], 16)
	binary.LittleEndian.PutUint16(b[20:22], FormatPCM)
	binary.LittleEndian.PutUint16(b[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(b[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(b[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(b[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(b[34:36], uint16(bits))
	copy(b[36:40], "data")
	binary.LittleEndian.PutUint32(b[40:44], dataSize)
	return b
}

// HeaderReader accumulates a header that may arrive split across chunks.
// The zero value is ready to use.
type HeaderReader struct {
	buf    [HeaderSize]byte
	n      int
	header Header
	done   bool
}

// Feed consumes chunk. Once the header is complete, the bytes of chunk that
// follow it are returned as payload and done is true. Chunks fed after that
// are returned unchanged.
func (r *HeaderReader) Feed(chunk []byte) (payload []byte, done bool, err error) {
	if r.done {
		return chunk, true, nil
	}

	k := copy(r.buf[r.n:], chunk)
	r.n += k
	if r.n < HeaderSize {
		return nil, false, nil
	}

	h, err := ParseHeader(r.buf[:])
	if err != nil {
		return nil, false, err
	}
	r.header = h
	r.done = true
	return chunk[k:], true, nil
}

// Header returns the parsed header once it is complete
func (r *HeaderReader) Header() (Header, bool) {
	return r.header, r.done
}

// Buffered returns how many header bytes have been seen
func (r *HeaderReader) Buffered() int {
	return r.n
}
