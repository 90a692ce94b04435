// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Works on per-channel float32 blocks and interpolates across block boundaries
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64   // read position relative to the first frame of the next block
	lastFrame  []float32 // one sample per channel
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]float32, channels),
	}
}

// Resample converts one block of per-channel input to the output rate.
// The last input frame is retained so consecutive blocks join without a click.
func (r *Resampler) Resample(input [][]float32) [][]float32 {
	output := make([][]float32, r.channels)
	if len(input) < r.channels || len(input[0]) == 0 {
		return output
	}
	frames := len(input[0])

	// With a primed resampler index 0 is the previous block's last frame
	sample := func(ch, idx int) float32 {
		if r.primed {
			if idx == 0 {
				return r.lastFrame[ch]
			}
			return input[ch][idx-1]
		}
		return input[ch][idx]
	}

	total := frames
	if r.primed {
		total++
	}

	expected := int(float64(total)/r.ratio) + 1
	for ch := range output {
		output[ch] = make([]float32, 0, expected)
	}

	for r.position < float64(total-1) {
		idx := int(r.position)
		frac := float32(r.position - float64(idx))

		for ch := 0; ch < r.channels; ch++ {
			s1 := sample(ch, idx)
			s2 := sample(ch, idx+1)
			output[ch] = append(output[ch], s1*(1-frac)+s2*frac)
		}

		r.position += r.ratio
	}

	// Rebase so the last frame of this block becomes index 0 of the next
	r.position -= float64(total - 1)
	for ch := 0; ch < r.channels; ch++ {
		r.lastFrame[ch] = input[ch][frames-1]
	}
	r.primed = true

	return output
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.primed = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// InputRate returns the input sample rate
func (r *Resampler) InputRate() int {
	return r.inputRate
}

// OutputRate returns the output sample rate
func (r *Resampler) OutputRate() int {
	return r.outputRate
}
