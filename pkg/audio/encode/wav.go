// ABOUTME: WAV audio encoder
// ABOUTME: Encodes stereo float frames to 16-bit or 24-bit PCM WAV files
package encode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag
const wavFormatPCM = 1

// WAVEncoder writes PCM WAV files
type WAVEncoder struct {
	encoder  *wav.Encoder
	bitDepth int
	buf      *goaudio.IntBuffer
}

// NewWAV creates a stereo WAV encoder writing to w
func NewWAV(w io.WriteSeeker, sampleRate, bitDepth int) (*WAVEncoder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", bitDepth)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	return &WAVEncoder{
		encoder:  wav.NewEncoder(w, sampleRate, bitDepth, 2, wavFormatPCM),
		bitDepth: bitDepth,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// Write encodes frames
func (e *WAVEncoder) Write(frames [][2]float32) error {
	need := len(frames) * 2
	if cap(e.buf.Data) < need {
		e.buf.Data = make([]int, need)
	}
	e.buf.Data = e.buf.Data[:need]

	for i, frame := range frames {
		e.buf.Data[i*2] = e.sample(frame[0])
		e.buf.Data[i*2+1] = e.sample(frame[1])
	}

	if err := e.encoder.Write(e.buf); err != nil {
		return fmt.Errorf("wav encode error: %w", err)
	}
	return nil
}

func (e *WAVEncoder) sample(s float32) int {
	if e.bitDepth == 24 {
		switch {
		case s >= 1:
			return audio.Max24Bit
		case s <= -1:
			return audio.Min24Bit
		}
		return int(s * audio.Max24Bit)
	}
	return int(audio.FloatToInt16(s))
}

// Close writes the final headers. The writer itself is not closed.
func (e *WAVEncoder) Close() error {
	if err := e.encoder.Close(); err != nil {
		return fmt.Errorf("failed to finish WAV file: %w", err)
	}
	return nil
}
