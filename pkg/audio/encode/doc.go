// ABOUTME: Audio encoder package for device and wire PCM
// ABOUTME: Provides the Encoder interface and the 16-bit PCM implementation
// Package encode converts normalised float32 samples back into 16-bit PCM.
//
// Output backends and the test TTS server use PutPCM16 to fill buffers in
// place. Encoder allocates per call and suits custom narrator sources.
//
// Example:
//
//	encoder, err := encode.NewPCM(format)
//	data, err := encoder.Encode(interleaved)
package encode
