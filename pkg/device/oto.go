// ABOUTME: Oto-based speaker output for the software mixer
// ABOUTME: Pulls mixed float32 blocks from the Mixer through an oto player
package device

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Oto is a Mixer rendered to the default output device with oto
type Oto struct {
	*Mixer

	otoCtx *oto.Context
	player *oto.Player
	block  [][2]float32
}

// NewOto creates the oto context and starts pulling from a new mixer
func NewOto(config MixerConfig) (*Oto, error) {
	if config.BufferSize == 0 {
		config.BufferSize = 20 * time.Millisecond
	}
	mixer := NewMixer(config)

	op := &oto.NewContextOptions{
		SampleRate:   mixer.SampleRate(),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   config.BufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o := &Oto{
		Mixer:  mixer,
		otoCtx: ctx,
	}
	o.player = ctx.NewPlayer(o)
	o.player.Play()

	log.Printf("Audio output initialized: %dHz, 2 channels (oto, %v buffer)", mixer.SampleRate(), config.BufferSize)

	return o, nil
}

// Read renders the next block for oto (float32 little-endian, interleaved stereo)
func (o *Oto) Read(p []byte) (int, error) {
	frames := len(p) / 8
	if cap(o.block) < frames {
		o.block = make([][2]float32, frames)
	}
	block := o.block[:frames]

	o.Mix(block)

	for i, frame := range block {
		binary.LittleEndian.PutUint32(p[i*8:], math.Float32bits(clip(frame[0])))
		binary.LittleEndian.PutUint32(p[i*8+4:], math.Float32bits(clip(frame[1])))
	}
	return frames * 8, nil
}

// Close stops the oto player and suspends the context
func (o *Oto) Close() error {
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	return nil
}

func clip(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
