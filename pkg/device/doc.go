// ABOUTME: Playback device package
// ABOUTME: Provides the Device interface, the software Mixer and speaker backends
// Package device provides the playback layer used by sound sources.
//
// A Device hands out source handles, stores per-source attributes, reports live
// playback state and performs batched play/pause calls. The Mixer is an in-process
// implementation; Oto and Beep render a Mixer to the speakers, and Recorder wraps any
// Device to log its control calls.
//
// Example:
//
//	dev, err := device.NewOto(device.MixerConfig{SampleRate: 48000})
//	h, err := dev.GenSource()
//	dev.PlayV([]device.Handle{h})
package device
