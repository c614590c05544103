// ABOUTME: Sine tone generator decoder
// ABOUTME: Produces a deterministic tone used when no file is given and in tests
package decode

import (
	"io"
	"math"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
)

// ToneDecoder generates a sine wave at half amplitude
type ToneDecoder struct {
	frequency  float64
	sampleRate int
	total      int64 // zero means endless
	pos        int64
}

// NewTone creates a tone of the given frequency and length. A zero length never ends.
func NewTone(frequency float64, sampleRate int, length time.Duration) *ToneDecoder {
	return &ToneDecoder{
		frequency:  frequency,
		sampleRate: sampleRate,
		total:      audio.DurationToFrames(length, sampleRate),
	}
}

// ReadFrames generates the next frames
func (d *ToneDecoder) ReadFrames(dst [][2]float32) (int, error) {
	n := len(dst)
	if d.total > 0 {
		left := d.total - d.pos
		if left <= 0 {
			return 0, io.EOF
		}
		if int64(n) > left {
			n = int(left)
		}
	}

	for i := 0; i < n; i++ {
		t := float64(d.pos+int64(i)) / float64(d.sampleRate)
		sample := float32(math.Sin(2*math.Pi*d.frequency*t) * 0.5)
		dst[i] = [2]float32{sample, sample}
	}
	d.pos += int64(n)
	return n, nil
}

// Seek moves to offset
func (d *ToneDecoder) Seek(offset time.Duration) error {
	pos := audio.DurationToFrames(offset, d.sampleRate)
	if pos < 0 {
		pos = 0
	}
	if d.total > 0 && pos > d.total {
		pos = d.total
	}
	d.pos = pos
	return nil
}

// SampleRate returns the generator rate
func (d *ToneDecoder) SampleRate() int {
	return d.sampleRate
}

// Duration returns the tone length, zero for endless tones
func (d *ToneDecoder) Duration() time.Duration {
	return audio.FramesToDuration(d.total, d.sampleRate)
}

// Close releases nothing
func (d *ToneDecoder) Close() error {
	return nil
}
