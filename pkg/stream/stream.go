// ABOUTME: Streamed sound source fed by its own decode goroutine
// ABOUTME: Primes a ring buffer at a requested offset and reports readiness for group starts
package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/syncsource-go/pkg/device"
	"github.com/Resonate-Protocol/syncsource-go/pkg/filter"
	"github.com/Resonate-Protocol/syncsource-go/pkg/source"
)

// Config configures a stream
type Config struct {
	// Name labels the stream (default: short id)
	Name string

	// Filters is the filter attachment table (default: filter.Default)
	Filters *filter.Table

	// BufferSize is the decoded audio held ahead of the device (default: 1s)
	BufferSize time.Duration

	// Prime is the audio that must be buffered before the stream reports ready
	// (default: 250ms, at most BufferSize)
	Prime time.Duration

	// ChunkSize is the number of frames decoded per read (default: 1024)
	ChunkSize int

	// FeedInterval is how often a full buffer is rechecked for space (default: 10ms)
	FeedInterval time.Duration
}

// Stream is a source whose audio is decoded in the background while it plays
type Stream struct {
	*source.Source

	dec    decode.Decoder
	ring   *RingBuffer
	config Config

	loop atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	// done is closed when the newest feeder exits, which is after every older one
	done       chan struct{}
	ready      chan struct{}
	baseOffset time.Duration
	closed     bool
}

// New creates a stream playing dec on dev and starts priming it at offset zero.
// The stream owns dec and closes it in Close.
func New(dev device.Device, dec decode.Decoder, config Config) (*Stream, error) {
	if config.BufferSize == 0 {
		config.BufferSize = time.Second
	}
	if config.Prime == 0 {
		config.Prime = 250 * time.Millisecond
	}
	if config.Prime > config.BufferSize {
		config.Prime = config.BufferSize
	}
	if config.ChunkSize == 0 {
		config.ChunkSize = 1024
	}
	if config.FeedInterval == 0 {
		config.FeedInterval = 10 * time.Millisecond
	}

	src, err := source.New(dev, source.Config{Name: config.Name, Filters: config.Filters})
	if err != nil {
		return nil, err
	}

	s := &Stream{
		Source: src,
		dec:    dec,
		ring:   NewRingBuffer(int(audio.DurationToFrames(config.BufferSize, dec.SampleRate()))),
		config: config,
	}
	s.mu.Lock()
	s.restart(0)
	s.mu.Unlock()

	log.Printf("Stream %s: %dHz, %v long", s.Name(), dec.SampleRate(), dec.Duration())

	return s, nil
}

// ReadFrames hands buffered frames to the device. It reports false once the decoder is
// exhausted and the buffer has drained.
func (s *Stream) ReadFrames(dst [][2]float32) (int, bool) {
	n := s.ring.Read(dst)
	if n < len(dst) && s.ring.Drained() {
		return n, false
	}
	return n, true
}

// SampleRate returns the decoder rate
func (s *Stream) SampleRate() int {
	return s.dec.SampleRate()
}

// Duration returns the decoder length, zero if unknown
func (s *Stream) Duration() time.Duration {
	return s.dec.Duration()
}

// Ready returns a channel that is closed once the last requested offset is primed. A
// channel from before a later PrepareForOffset may close without that offset being primed.
func (s *Stream) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// PrepareForOffset discards buffered audio and starts priming from offset. It does not
// wait for the decoder; the seek runs on the new feeder.
func (s *Stream) PrepareForOffset(offset time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restart(offset)
}

// IsReadyForOffset reports whether priming has finished, without blocking
func (s *Stream) IsReadyForOffset() bool {
	select {
	case <-s.Ready():
		return true
	default:
		return false
	}
}

// Play starts or resumes the stream. A stream that played to the end starts over.
// Play blocks until the buffer is primed.
func (s *Stream) Play() {
	if s.Status() == audio.StatusStopped && s.ring.Drained() {
		s.PrepareForOffset(0)
	}
	for {
		ready := s.Ready()
		<-ready
		if s.Ready() == ready {
			break
		}
	}
	s.Source.Play()
}

// Stop stops playback and rewinds to the start
func (s *Stream) Stop() {
	s.Source.Stop()
	s.PrepareForOffset(0)
}

// SetPlayingOffset jumps to offset. Playback continues from there once primed.
func (s *Stream) SetPlayingOffset(offset time.Duration) {
	s.PrepareForOffset(offset)
}

// PlayingOffset returns the position of the audio handed to the device
func (s *Stream) PlayingOffset() time.Duration {
	s.mu.Lock()
	base := s.baseOffset
	s.mu.Unlock()

	offset := base + audio.FramesToDuration(s.ring.Consumed(), s.SampleRate())
	if total := s.Duration(); s.loop.Load() && total > 0 {
		offset %= total
	}
	return offset
}

// SetLoop makes the stream restart from the beginning at the end of the decoder
func (s *Stream) SetLoop(loop bool) {
	s.loop.Store(loop)
}

// Loop reports whether the stream loops
func (s *Stream) Loop() bool {
	return s.loop.Load()
}

// Close stops the decode goroutine, frees the handle and closes the decoder. It waits for
// a decoder read in progress to return before closing the decoder.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	done := s.done
	s.mu.Unlock()

	s.Source.Stop()
	s.Device().SetStream(s.Handle(), nil)
	err := s.Source.Close()

	if done != nil {
		<-done
	}
	if cerr := s.dec.Close(); err == nil {
		err = cerr
	}
	return err
}

// restart replaces the running feeder with one priming from offset (must hold s.mu). The
// old feeder is cancelled, not awaited: the new one waits for it before touching the
// decoder, and the ring drops whatever the old one still writes.
func (s *Stream) restart(offset time.Duration) {
	if s.closed {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	gen := s.ring.Reset()
	s.baseOffset = offset

	// Rebinding drops audio the device pulled ahead of the old position
	s.Device().SetStream(s.Handle(), s)

	ctx, cancel := context.WithCancel(context.Background())
	prev := s.done
	s.cancel = cancel
	s.ready = make(chan struct{})
	s.done = make(chan struct{})
	go s.feed(ctx, gen, offset, prev, s.ready, s.done)
}

// feed seeks to offset and decodes into the ring buffer until cancelled or the decoder
// ends. Ready is closed when priming completes or the feeder exits.
func (s *Stream) feed(ctx context.Context, gen uint64, offset time.Duration, prev <-chan struct{}, ready, done chan struct{}) {
	defer close(done)

	primed := false
	markReady := func() {
		if !primed {
			primed = true
			close(ready)
		}
	}
	defer markReady()

	if prev != nil {
		<-prev
	}
	if ctx.Err() != nil {
		return
	}

	if err := s.dec.Seek(offset); err != nil {
		// Nothing can be played from here: report ready so a group start is not held up
		log.Printf("Stream %s: seek to %v failed: %v", s.Name(), offset, err)
		s.ring.End(gen)
		return
	}

	primeFrames := audio.DurationToFrames(s.config.Prime, s.dec.SampleRate())
	var buffered int64

	ticker := time.NewTicker(s.config.FeedInterval)
	defer ticker.Stop()

	chunk := make([][2]float32, s.config.ChunkSize)
	for {
		if ctx.Err() != nil {
			return
		}

		free := s.ring.Free()
		if free == 0 {
			markReady()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			continue
		}
		if free > len(chunk) {
			free = len(chunk)
		}

		n, err := s.dec.ReadFrames(chunk[:free])
		if n > 0 {
			if s.ring.WriteGen(gen, chunk[:n]) == 0 && ctx.Err() != nil {
				return
			}
			buffered += int64(n)
			if buffered >= primeFrames {
				markReady()
			}
		}

		switch {
		case errors.Is(err, io.EOF):
			if !s.loop.Load() {
				s.ring.End(gen)
				return
			}
			if err := s.dec.Seek(0); err != nil {
				log.Printf("Stream %s: loop seek failed: %v", s.Name(), err)
				s.ring.End(gen)
				return
			}
		case err != nil:
			log.Printf("Stream %s: decode error: %v", s.Name(), err)
			s.ring.End(gen)
			return
		case n == 0:
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}
