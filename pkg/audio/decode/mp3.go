// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 streams to stereo float frames with byte-accurate seeking
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always outputs 16-bit stereo
const mp3BytesPerFrame = 4

// MP3Decoder decodes MP3 audio
type MP3Decoder struct {
	r       io.ReadSeeker
	decoder *mp3.Decoder
	buf     []byte
}

// NewMP3 creates an MP3 decoder reading from r. If r is an io.Closer, Close closes it.
func NewMP3(r io.ReadSeeker) (*MP3Decoder, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	return &MP3Decoder{r: r, decoder: decoder}, nil
}

// ReadFrames decodes the next frames
func (d *MP3Decoder) ReadFrames(dst [][2]float32) (int, error) {
	need := len(dst) * mp3BytesPerFrame
	if cap(d.buf) < need {
		d.buf = make([]byte, need)
	}
	buf := d.buf[:need]

	n, err := io.ReadFull(d.decoder, buf)
	frames := n / mp3BytesPerFrame
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(buf[i*4:]))
		right := int16(binary.LittleEndian.Uint16(buf[i*4+2:]))
		dst[i] = [2]float32{audio.Int16ToFloat(left), audio.Int16ToFloat(right)}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if frames == 0 {
			return 0, io.EOF
		}
		return frames, nil
	}
	if err != nil {
		return frames, fmt.Errorf("mp3 decode error: %w", err)
	}
	return frames, nil
}

// Seek moves to offset
func (d *MP3Decoder) Seek(offset time.Duration) error {
	pos := audio.DurationToFrames(offset, d.SampleRate()) * mp3BytesPerFrame
	if _, err := d.decoder.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek error: %w", err)
	}
	return nil
}

// SampleRate returns the stream rate
func (d *MP3Decoder) SampleRate() int {
	return d.decoder.SampleRate()
}

// Duration returns the stream length
func (d *MP3Decoder) Duration() time.Duration {
	length := d.decoder.Length()
	if length <= 0 {
		return 0
	}
	return audio.FramesToDuration(length/mp3BytesPerFrame, d.SampleRate())
}

// Close closes the underlying reader if it can be closed
func (d *MP3Decoder) Close() error {
	if c, ok := d.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
