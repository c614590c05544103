// ABOUTME: Audio resampling package
// ABOUTME: Provides linear interpolation rate conversion for device voices
// Package resample converts pulled stereo frames between sample rates.
//
// The device mixer keeps one Resampler per streamed voice; pitch changes are expressed
// as a rate change through SetRates.
//
// Example:
//
//	r := resample.New(44100, 48000)
//	n, ok := r.Read(out, stream.ReadFrames)
package resample
