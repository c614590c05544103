// ABOUTME: Audio encoder package for writing rendered audio
// ABOUTME: Provides the Encoder interface and a WAV file encoder
// Package encode writes stereo float frames to files.
//
// Supports: WAV (16-bit and 24-bit PCM)
//
// Example:
//
//	enc, err := encode.NewWAV(f, 48000, 16)
//	err = enc.Write(frames)
//	err = enc.Close()
package encode
