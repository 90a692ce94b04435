// ABOUTME: Document audio size estimation from a played sample
// ABOUTME: Extrapolates bytes per character of the last span to the whole text
package narrator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrNoSample is returned when no span has finished yet
var ErrNoSample = errors.New("no audio sample yet: play a span first")

// Estimate is a projected audio size for a document
type Estimate struct {
	SampleBytes  int64
	SampleChars  int
	TotalChars   int
	BytesPerChar float64
	Bytes        int64
}

// NewEstimate projects totalChars of text from a sample of sampleBytes audio
// produced for sampleChars characters
func NewEstimate(sampleBytes int64, sampleChars, totalChars int) (Estimate, error) {
	if sampleBytes <= 0 || sampleChars <= 0 {
		return Estimate{}, ErrNoSample
	}
	if totalChars < 0 {
		return Estimate{}, fmt.Errorf("invalid character count %d", totalChars)
	}

	ratio := float64(sampleBytes) / float64(sampleChars)
	return Estimate{
		SampleBytes:  sampleBytes,
		SampleChars:  sampleChars,
		TotalChars:   totalChars,
		BytesPerChar: ratio,
		Bytes:        int64(math.Round(float64(totalChars) * ratio)),
	}, nil
}

// String formats the size as MB when at least one megabyte, else KB
func (e Estimate) String() string {
	kb := float64(e.Bytes) / 1024
	mb := kb / 1024

	size := fmt.Sprintf("%.2f KB", kb)
	if mb >= 1 {
		size = fmt.Sprintf("%.2f MB", mb)
	}
	return fmt.Sprintf("%s (%s bytes)", size, groupDigits(e.Bytes))
}

// groupDigits inserts thousands separators
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := s[0] == '-'
	if neg {
		s = s[1:]
	}

	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
