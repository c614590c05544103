// ABOUTME: Real-time mixer with no audio output
// ABOUTME: Renders and discards blocks on a clock so playback advances without speakers
package device

import (
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Null pulls blocks from a Mixer at the pace of a clock and drops them
type Null struct {
	*Mixer

	ticker *clock.Ticker
	stop   chan struct{}
	once   sync.Once
	done   chan struct{}
}

// NewNull starts rendering a new mixer in BufferSize blocks (default: 20ms). A nil clock
// means the real clock.
func NewNull(config MixerConfig, clk clock.Clock) *Null {
	if config.BufferSize == 0 {
		config.BufferSize = 20 * time.Millisecond
	}
	if clk == nil {
		clk = clock.New()
	}
	mixer := NewMixer(config)

	n := &Null{
		Mixer:  mixer,
		ticker: clk.Ticker(config.BufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	block := make([][2]float32, int(int64(mixer.SampleRate())*int64(config.BufferSize)/int64(time.Second)))
	go n.run(block)

	log.Printf("Audio output initialized: %dHz, 2 channels (null, %v blocks)", mixer.SampleRate(), config.BufferSize)

	return n
}

func (n *Null) run(block [][2]float32) {
	defer close(n.done)
	defer n.ticker.Stop()

	for {
		select {
		case <-n.ticker.C:
			n.Mix(block)
		case <-n.stop:
			return
		}
	}
}

// Close stops rendering
func (n *Null) Close() error {
	n.once.Do(func() { close(n.stop) })
	<-n.done
	return nil
}
