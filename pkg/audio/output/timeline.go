// ABOUTME: Frame-accurate timeline that renders scheduled buffers for pull-based devices
// ABOUTME: Fills gaps with silence and releases buffers once rendered
package output

import (
	"math"
	"sort"
	"sync"

	"github.com/harperreed/narrator-go/pkg/audio"
)

type timelineEntry struct {
	start   int64 // first device frame
	samples [][]float32
}

func (e timelineEntry) end() int64 {
	return e.start + int64(len(e.samples[0]))
}

// Timeline maps buffers scheduled on the output clock onto device frames.
//
// Start times are requested in clock seconds. A buffer whose start has
// already been rendered begins at the current render position instead, and
// the difference is carried forward so later back-to-back buffers stay
// contiguous and the clock keeps reporting requested time.
type Timeline struct {
	mu       sync.Mutex
	rate     int
	channels int
	position int64 // frames rendered so far
	offset   int64 // device frame minus requested frame
	entries  []timelineEntry
	clock    *Clock
	volume   int
	muted    bool
}

// NewTimeline creates a timeline rendering at rate with the given device channels
func NewTimeline(rate, channels int) *Timeline {
	return &Timeline{
		rate:     rate,
		channels: channels,
		clock:    NewClock(rate),
		volume:   100,
	}
}

// Rate returns the device frame rate
func (t *Timeline) Rate() int {
	return t.rate
}

// Channels returns the device channel count
func (t *Timeline) Channels() int {
	return t.channels
}

// Add schedules buf. Its samples must already be at the timeline rate.
func (t *Timeline) Add(buf audio.Buffer) {
	if buf.Frames() == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	start := int64(math.Round(buf.StartAt*float64(t.rate))) + t.offset
	if start < t.position {
		t.offset += t.position - start
		start = t.position
	}

	e := timelineEntry{start: start, samples: buf.Samples}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].start > start })
	t.entries = append(t.entries, timelineEntry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = e
}

// Render fills out with the next len(out)/channels interleaved frames and
// advances the render position. Overlapping buffers are mixed.
func (t *Timeline) Render(out []float32) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	frames := len(out) / t.channels
	out = out[:frames*t.channels]
	for i := range out {
		out[i] = 0
	}

	end := t.position + int64(frames)
	gain := getVolumeMultiplier(t.volume, t.muted)

	keep := t.entries[:0]
	for _, e := range t.entries {
		eEnd := e.end()
		if e.start < end && eEnd > t.position {
			from := max(e.start, t.position)
			to := min(eEnd, end)
			srcChannels := len(e.samples)

			for f := from; f < to; f++ {
				src := int(f - e.start)
				dst := int(f-t.position) * t.channels
				for ch := 0; ch < t.channels; ch++ {
					// mono sources fill every device channel
					sc := min(ch, srcChannels-1)
					out[dst+ch] += e.samples[sc][src] * gain
				}
			}
		}
		if eEnd > end {
			keep = append(keep, e)
		}
	}
	for i := len(keep); i < len(t.entries); i++ {
		t.entries[i] = timelineEntry{}
	}
	t.entries = keep
	t.position = end

	return frames
}

// Now returns the clock time of the audible frame, given the number of
// rendered frames the device still holds
func (t *Timeline) Now(latency int64) float64 {
	t.mu.Lock()
	frames := t.position - latency - t.offset
	t.mu.Unlock()
	return t.clock.Observe(frames)
}

// Position returns the number of frames rendered
func (t *Timeline) Position() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// Pending returns the number of scheduled frames not yet rendered
func (t *Timeline) Pending() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var last int64
	for _, e := range t.entries {
		last = max(last, e.end())
	}
	return max(0, last-t.position)
}

// Clear drops every scheduled buffer
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

// SetVolume sets the volume (0-100)
func (t *Timeline) SetVolume(volume int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume = clampVolume(volume)
}

// SetMuted sets mute state
func (t *Timeline) SetMuted(muted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.muted = muted
}

// Volume returns the current volume
func (t *Timeline) Volume() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

// Muted returns the mute state
func (t *Timeline) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}
