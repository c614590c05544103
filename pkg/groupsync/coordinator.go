// ABOUTME: Synchronized status changes across groups of sound sources
// ABOUTME: Stops independently, resynchronizes stopped members at an offset and batches play/pause
package groupsync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/device"
	"github.com/benbjohnson/clock"
)

// Member is a source that can take part in a synchronized status change
type Member interface {
	Handle() device.Handle
	Status() audio.Status
	Stop()
	PrepareForOffset(offset time.Duration)
	IsReadyForOffset() bool
}

// Batcher changes the status of many device handles in one call
type Batcher interface {
	PlayV(hs []device.Handle)
	PauseV(hs []device.Handle)
}

// Config configures a coordinator
type Config struct {
	// PollInterval is the wait between readiness passes (default: 5ms)
	PollInterval time.Duration

	// Clock drives the readiness wait (default: the real clock)
	Clock clock.Clock
}

// Coordinator starts, pauses and stops groups of members together. It holds no lock over
// members: callers must serialize calls that share members (see Group).
type Coordinator struct {
	dev      Batcher
	interval time.Duration
	clock    clock.Clock
}

// New creates a coordinator issuing batched calls to dev
func New(dev Batcher, config Config) *Coordinator {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Millisecond
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	return &Coordinator{
		dev:      dev,
		interval: config.PollInterval,
		clock:    config.Clock,
	}
}

// Synchronize moves members to status from where each of them currently is. Stopping
// needs no coordination. If any member is stopped it has no position to join the others
// at, so the whole group restarts together from offset zero.
func (c *Coordinator) Synchronize(ctx context.Context, status audio.Status, members ...Member) error {
	if status == audio.StatusStopped {
		stopAll(members)
		return nil
	}
	if err := checkStatus(status); err != nil {
		return err
	}

	for _, m := range members {
		if m.Status() == audio.StatusStopped {
			log.Printf("Group sync: stopped member in group of %d, resynchronizing %v at 0", len(members), status)
			return c.SynchronizeAt(ctx, status, 0, members...)
		}
	}

	return c.transition(status, members)
}

// SynchronizeAt moves members to status at offset. Every member is prepared for offset,
// then the change waits until all of them report ready in a single pass. There is no
// timeout: a member that never becomes ready blocks until ctx is done, in which case no
// member changes status and ctx's error is returned.
func (c *Coordinator) SynchronizeAt(ctx context.Context, status audio.Status, offset time.Duration, members ...Member) error {
	if status == audio.StatusStopped {
		stopAll(members)
		return nil
	}
	if err := checkStatus(status); err != nil {
		return err
	}

	for _, m := range members {
		m.PrepareForOffset(offset)
	}

	if err := c.rendezvous(ctx, members); err != nil {
		return err
	}

	return c.transition(status, members)
}

// rendezvous waits until one pass over members finds every one of them ready
func (c *Coordinator) rendezvous(ctx context.Context, members []Member) error {
	for !allReady(members) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.interval):
		}
	}
	return nil
}

// allReady polls members in order and gives up at the first one that is not ready
func allReady(members []Member) bool {
	for _, m := range members {
		if !m.IsReadyForOffset() {
			return false
		}
	}
	return true
}

// transition issues one batched device call covering every member
func (c *Coordinator) transition(status audio.Status, members []Member) error {
	if err := checkStatus(status); err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	handles := make([]device.Handle, len(members))
	for i, m := range members {
		handles[i] = m.Handle()
	}

	if status == audio.StatusPlaying {
		c.dev.PlayV(handles)
	} else {
		c.dev.PauseV(handles)
	}
	return nil
}

func stopAll(members []Member) {
	for _, m := range members {
		m.Stop()
	}
}

func checkStatus(status audio.Status) error {
	switch status {
	case audio.StatusStopped, audio.StatusPaused, audio.StatusPlaying:
		return nil
	}
	return fmt.Errorf("%w: %v", audio.ErrUnknownStatus, status)
}
