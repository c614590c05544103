// ABOUTME: In-memory PCM decoder
// ABOUTME: Serves frames from a decoded buffer so loaded files can be streamed and seeked
package decode

import (
	"io"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
)

// PCMDecoder reads from an in-memory buffer
type PCMDecoder struct {
	pcm *audio.PCM
	pos int
}

// NewPCM creates a decoder over pcm
func NewPCM(pcm *audio.PCM) *PCMDecoder {
	return &PCMDecoder{pcm: pcm}
}

// ReadFrames copies the next frames
func (d *PCMDecoder) ReadFrames(dst [][2]float32) (int, error) {
	if d.pos >= len(d.pcm.Frames) {
		return 0, io.EOF
	}
	n := copy(dst, d.pcm.Frames[d.pos:])
	d.pos += n
	return n, nil
}

// Seek moves to offset. Offsets past the end leave the decoder at the end.
func (d *PCMDecoder) Seek(offset time.Duration) error {
	pos := int(audio.DurationToFrames(offset, d.pcm.SampleRate))
	if pos < 0 {
		pos = 0
	}
	if pos > len(d.pcm.Frames) {
		pos = len(d.pcm.Frames)
	}
	d.pos = pos
	return nil
}

// SampleRate returns the buffer rate
func (d *PCMDecoder) SampleRate() int {
	return d.pcm.SampleRate
}

// Duration returns the buffer length
func (d *PCMDecoder) Duration() time.Duration {
	return d.pcm.Duration()
}

// Close releases nothing
func (d *PCMDecoder) Close() error {
	return nil
}
