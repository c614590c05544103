// ABOUTME: WAV file loader
// ABOUTME: Reads a whole WAV file into a stereo float PCM buffer
package decode

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// LoadWAV reads a WAV file into memory
func LoadWAV(path string) (*audio.PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid WAV file %s", ErrUnsupportedFormat, path)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV data: %w", err)
	}

	return FromIntBuffer(buf, int(d.BitDepth))
}

// FromIntBuffer converts interleaved integer samples to stereo float frames. Mono input
// is duplicated; channels past the second are dropped.
func FromIntBuffer(buf *goaudio.IntBuffer, bitDepth int) (*audio.PCM, error) {
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: missing channel layout", ErrUnsupportedFormat)
	}
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	pcm := &audio.PCM{
		Frames:     make([][2]float32, frames),
		SampleRate: buf.Format.SampleRate,
	}

	for i := 0; i < frames; i++ {
		left := audio.IntToFloat(int32(buf.Data[i*channels]), bitDepth)
		right := left
		if channels > 1 {
			right = audio.IntToFloat(int32(buf.Data[i*channels+1]), bitDepth)
		}
		pcm.Frames[i] = [2]float32{left, right}
	}
	return pcm, nil
}
