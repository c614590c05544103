// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Status, Vector3, Format, PCM and sample conversion functions
// Package audio provides the fundamental types shared by devices, sources and the
// synchronization coordinator.
//
//   - Status: playback status of a source (stopped, paused, playing)
//   - Vector3: source position
//   - PCM: a fully decoded stereo buffer used by static sounds
//
// Example:
//
//	status, err := audio.ParseStatus("playing")
//	frames := audio.DurationToFrames(10*time.Second, 48000)
package audio
