// ABOUTME: Beep speaker output for the software mixer
// ABOUTME: Exposes the Mixer as a beep.Streamer played by the beep speaker
package device

import (
	"fmt"
	"log"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Beep is a Mixer rendered through the beep speaker package
type Beep struct {
	*Mixer

	block [][2]float32
}

// NewBeep initializes the speaker and starts streaming a new mixer
func NewBeep(config MixerConfig) (*Beep, error) {
	if config.BufferSize == 0 {
		config.BufferSize = 100 * time.Millisecond
	}
	mixer := NewMixer(config)

	sr := beep.SampleRate(mixer.SampleRate())
	if err := speaker.Init(sr, sr.N(config.BufferSize)); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}

	b := &Beep{Mixer: mixer}
	speaker.Play(b)

	log.Printf("Audio output initialized: %dHz, 2 channels (beep, %v buffer)", mixer.SampleRate(), config.BufferSize)

	return b, nil
}

// Stream implements beep.Streamer. The mixer never runs dry: silence is a valid block.
func (b *Beep) Stream(samples [][2]float64) (int, bool) {
	if cap(b.block) < len(samples) {
		b.block = make([][2]float32, len(samples))
	}
	block := b.block[:len(samples)]

	b.Mix(block)

	for i, frame := range block {
		samples[i][0] = float64(clip(frame[0]))
		samples[i][1] = float64(clip(frame[1]))
	}
	return len(samples), true
}

// Err implements beep.Streamer
func (b *Beep) Err() error {
	return nil
}

// Close removes the mixer from the speaker
func (b *Beep) Close() error {
	speaker.Clear()
	return nil
}
