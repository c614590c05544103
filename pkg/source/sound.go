// ABOUTME: Source that plays a fully decoded in-memory buffer
// ABOUTME: Adds looping and a playing offset that synchronized starts move directly
package source

import (
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/device"
)

// Sound is a source playing a static PCM buffer
type Sound struct {
	*Source

	buffer *audio.PCM
}

// NewSound creates a sound playing pcm (which may be nil and set later)
func NewSound(dev device.Device, pcm *audio.PCM, config Config) (*Sound, error) {
	src, err := New(dev, config)
	if err != nil {
		return nil, err
	}
	s := &Sound{Source: src}
	if pcm != nil {
		s.SetBuffer(pcm)
	}
	return s, nil
}

// SetBuffer replaces the buffer. Playback stops first.
func (s *Sound) SetBuffer(pcm *audio.PCM) {
	s.Stop()
	s.buffer = pcm
	s.dev.SetBuffer(s.handle, pcm)
}

// Buffer returns the current buffer
func (s *Sound) Buffer() *audio.PCM {
	return s.buffer
}

// Duration returns the buffer length
func (s *Sound) Duration() time.Duration {
	return s.buffer.Duration()
}

// SetLoop makes the sound restart when it reaches the end
func (s *Sound) SetLoop(loop bool) {
	s.dev.SetBool(s.handle, device.ParamLooping, loop)
}

// Loop reports whether the sound loops
func (s *Sound) Loop() bool {
	return s.dev.Bool(s.handle, device.ParamLooping)
}

// SetPlayingOffset moves the playback cursor. Offsets past the end are reported by the
// device and leave the cursor where it was.
func (s *Sound) SetPlayingOffset(offset time.Duration) {
	s.dev.SetOffset(s.handle, offset)
}

// PlayingOffset returns the playback cursor
func (s *Sound) PlayingOffset() time.Duration {
	return s.dev.Offset(s.handle)
}

// PrepareForOffset moves the cursor. The buffer is already in memory, so the sound is
// ready as soon as this returns.
func (s *Sound) PrepareForOffset(offset time.Duration) {
	s.SetPlayingOffset(offset)
}

// Clone creates a new sound sharing the buffer, with a fresh handle and the same
// attributes and looping
func (s *Sound) Clone() (*Sound, error) {
	src, err := s.Source.Clone()
	if err != nil {
		return nil, err
	}
	c := &Sound{Source: src}
	if s.buffer != nil {
		c.SetBuffer(s.buffer)
	}
	c.SetLoop(s.Loop())
	return c, nil
}

// Close stops playback and frees the handle
func (s *Sound) Close() error {
	if s.handle == 0 {
		return nil
	}
	s.Stop()
	s.buffer = nil
	return s.Source.Close()
}
