// ABOUTME: Decoder interface definition and file helpers
// ABOUTME: Opens supported files by extension and drains decoders into PCM buffers
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
)

// ErrUnsupportedFormat is returned for files no decoder handles
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decoder produces stereo frames from an encoded source
type Decoder interface {
	// ReadFrames fills dst and returns the frames written. It returns io.EOF once the
	// source is exhausted and no frames were written.
	ReadFrames(dst [][2]float32) (int, error)

	// Seek moves the read position to offset from the start
	Seek(offset time.Duration) error

	// SampleRate returns the native sample rate
	SampleRate() int

	// Duration returns the total length, zero if unknown
	Duration() time.Duration

	// Close releases decoder resources
	Close() error
}

// Open picks a decoder for path by its extension
func Open(path string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".mp3", ".flac":
	case ".wav":
		pcm, err := LoadWAV(path)
		if err != nil {
			return nil, err
		}
		return NewPCM(pcm), nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: .mp3, .flac, .wav)", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	var dec Decoder
	if ext == ".mp3" {
		dec, err = NewMP3(f)
	} else {
		dec, err = NewFLAC(f)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return dec, nil
}

// ReadAll drains dec into a PCM buffer. The decoder is left open.
func ReadAll(dec Decoder) (*audio.PCM, error) {
	pcm := &audio.PCM{SampleRate: dec.SampleRate()}
	if d := dec.Duration(); d > 0 {
		pcm.Frames = make([][2]float32, 0, audio.DurationToFrames(d, pcm.SampleRate))
	}

	buf := make([][2]float32, 4096)
	for {
		n, err := dec.ReadFrames(buf)
		pcm.Frames = append(pcm.Frames, buf[:n]...)
		if err == io.EOF {
			return pcm, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode error: %w", err)
		}
	}
}

// Load decodes a whole supported file into memory
func Load(path string) (*audio.PCM, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return LoadWAV(path)
	}

	dec, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return ReadAll(dec)
}
