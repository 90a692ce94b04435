// ABOUTME: Audio output package for scheduled playback
// ABOUTME: Provides the Output interface, the shared Timeline and device backends
// Package output provides audio devices with a monotonic output clock.
//
// Callers schedule decoded buffers at absolute start times; a Timeline turns
// those into frames on demand for pull-based devices and fills gaps with
// silence. Backends:
//   - Oto: ebitengine/oto persistent player (default)
//   - Beep: gopxl/beep speaker
//   - Malgo: miniaudio data callback
//   - PortAudio: gordonklaus/portaudio (build with -tags portaudio)
//   - Virtual: no hardware; manual or wall-clock driven
//
// Example:
//
//	out, err := output.New("oto")
//	err = out.Open(format)
//	buf.StartAt = max(out.Now(), window)
//	err = out.Schedule(buf)
package output
