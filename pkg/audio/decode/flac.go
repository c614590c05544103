// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frames to stereo float frames with sample-accurate seeking
package decode

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct {
	stream   *flac.Stream
	bitDepth int

	// decoded frames not yet returned
	pending [][2]float32
	// frames to drop after a seek landed before the target
	skip uint64
}

// NewFLAC creates a FLAC decoder reading from r. Close closes r if it can be closed.
func NewFLAC(r io.ReadSeeker) (*FLACDecoder, error) {
	stream, err := flac.NewSeek(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	return &FLACDecoder{
		stream:   stream,
		bitDepth: int(stream.Info.BitsPerSample),
	}, nil
}

// ReadFrames decodes the next frames
func (d *FLACDecoder) ReadFrames(dst [][2]float32) (int, error) {
	n := 0
	for n < len(dst) {
		if len(d.pending) == 0 {
			if err := d.parseNext(); err != nil {
				if errors.Is(err, io.EOF) {
					if n == 0 {
						return 0, io.EOF
					}
					return n, nil
				}
				return n, fmt.Errorf("flac decode error: %w", err)
			}
			continue
		}

		copied := copy(dst[n:], d.pending)
		d.pending = d.pending[copied:]
		n += copied
	}
	return n, nil
}

// parseNext decodes one FLAC frame into pending
func (d *FLACDecoder) parseNext() error {
	frame, err := d.stream.ParseNext()
	if err != nil {
		return err
	}
	if len(frame.Subframes) == 0 {
		return nil
	}

	left := frame.Subframes[0].Samples
	right := left
	if len(frame.Subframes) > 1 {
		right = frame.Subframes[1].Samples
	}

	frames := make([][2]float32, len(left))
	for i := range left {
		frames[i] = [2]float32{
			audio.IntToFloat(left[i], d.bitDepth),
			audio.IntToFloat(right[i], d.bitDepth),
		}
	}

	if d.skip > 0 {
		drop := d.skip
		if drop > uint64(len(frames)) {
			drop = uint64(len(frames))
		}
		frames = frames[drop:]
		d.skip -= drop
	}
	d.pending = frames
	return nil
}

// Seek moves to offset
func (d *FLACDecoder) Seek(offset time.Duration) error {
	target := uint64(audio.DurationToFrames(offset, d.SampleRate()))
	start, err := d.stream.Seek(target)
	if err != nil {
		return fmt.Errorf("flac seek error: %w", err)
	}
	d.pending = nil
	d.skip = 0
	if target > start {
		d.skip = target - start
	}
	return nil
}

// SampleRate returns the stream rate
func (d *FLACDecoder) SampleRate() int {
	return int(d.stream.Info.SampleRate)
}

// Duration returns the stream length
func (d *FLACDecoder) Duration() time.Duration {
	return audio.FramesToDuration(int64(d.stream.Info.NSamples), d.SampleRate())
}

// Close releases the stream and its reader
func (d *FLACDecoder) Close() error {
	return d.stream.Close()
}
