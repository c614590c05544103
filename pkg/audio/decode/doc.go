// ABOUTME: Audio decoder package for file-backed sources
// ABOUTME: Provides the seekable Decoder interface and MP3, FLAC, WAV and tone implementations
// Package decode provides seekable audio decoders.
//
// Supports: MP3, FLAC, WAV (loaded into memory), in-memory PCM, generated tones
//
// All decoders produce stereo float32 frames at the file's native sample rate. Mono
// input is duplicated to both channels.
//
// Example:
//
//	dec, err := decode.Open("track.flac")
//	err = dec.Seek(10 * time.Second)
//	n, err := dec.ReadFrames(frames)
package decode
