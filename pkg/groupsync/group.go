// ABOUTME: Named set of sources controlled together
// ABOUTME: Serializes group operations and reports per-member state for UIs and remotes
package groupsync

import (
	"context"
	"sync"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/filter"
	"github.com/google/uuid"
)

// Inspectable is a member that can describe itself in a snapshot
type Inspectable interface {
	Member
	ID() uuid.UUID
	Name() string
	Volume() float32
	Pitch() float32
	Filter() filter.Filter
}

type offsetter interface {
	PlayingOffset() time.Duration
}

// MemberState describes one member at snapshot time
type MemberState struct {
	ID       uuid.UUID
	Name     string
	Status   audio.Status
	Offset   time.Duration
	Volume   float32
	Pitch    float32
	Filtered bool
}

// Group is an ordered member set. Its operations run one at a time, which gives the
// coordinator the external serialization it needs.
type Group struct {
	name  string
	coord *Coordinator

	// opMu serializes status changes; mu guards the member list
	opMu    sync.Mutex
	mu      sync.RWMutex
	members []Member
}

// NewGroup creates a group driven by coord
func NewGroup(name string, coord *Coordinator, members ...Member) *Group {
	return &Group{
		name:    name,
		coord:   coord,
		members: append([]Member(nil), members...),
	}
}

// Name returns the group name
func (g *Group) Name() string {
	return g.name
}

// Add appends a member
func (g *Group) Add(m Member) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, m)
}

// Remove drops a member, reporting whether it was present
func (g *Group) Remove(m Member) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, existing := range g.members {
		if existing == m {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return true
		}
	}
	return false
}

// Members returns a copy of the member list
func (g *Group) Members() []Member {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Member(nil), g.members...)
}

// Find returns the member with the given id
func (g *Group) Find(id uuid.UUID) (Inspectable, bool) {
	for _, m := range g.Members() {
		if in, ok := m.(Inspectable); ok && in.ID() == id {
			return in, true
		}
	}
	return nil, false
}

// Status summarizes the group: playing if any member plays, else paused if any member is
// paused, else stopped
func (g *Group) Status() audio.Status {
	return summarize(g.Members())
}

func summarize(members []Member) audio.Status {
	status := audio.StatusStopped
	for _, m := range members {
		switch m.Status() {
		case audio.StatusPlaying:
			return audio.StatusPlaying
		case audio.StatusPaused:
			status = audio.StatusPaused
		}
	}
	return status
}

// Play starts every member together
func (g *Group) Play(ctx context.Context) error {
	return g.Synchronize(ctx, audio.StatusPlaying)
}

// Pause pauses every member together
func (g *Group) Pause(ctx context.Context) error {
	return g.Synchronize(ctx, audio.StatusPaused)
}

// Stop stops every member
func (g *Group) Stop(ctx context.Context) error {
	return g.Synchronize(ctx, audio.StatusStopped)
}

// Synchronize moves the group to status from the members' current positions
func (g *Group) Synchronize(ctx context.Context, status audio.Status) error {
	g.opMu.Lock()
	defer g.opMu.Unlock()
	return g.coord.Synchronize(ctx, status, g.Members()...)
}

// SynchronizeAt moves the group to status at offset
func (g *Group) SynchronizeAt(ctx context.Context, status audio.Status, offset time.Duration) error {
	g.opMu.Lock()
	defer g.opMu.Unlock()
	return g.coord.SynchronizeAt(ctx, status, offset, g.Members()...)
}

// Seek moves every member to offset. A playing group is paused while members seek and
// resumes together; otherwise the group ends up paused at offset.
func (g *Group) Seek(ctx context.Context, offset time.Duration) error {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	members := g.Members()
	target := audio.StatusPaused
	if summarize(members) == audio.StatusPlaying {
		target = audio.StatusPlaying
		if err := g.coord.transition(audio.StatusPaused, members); err != nil {
			return err
		}
	}
	return g.coord.SynchronizeAt(ctx, target, offset, members...)
}

// Snapshot describes every member
func (g *Group) Snapshot() []MemberState {
	members := g.Members()
	states := make([]MemberState, 0, len(members))
	for _, m := range members {
		state := MemberState{Status: m.Status()}
		if in, ok := m.(Inspectable); ok {
			state.ID = in.ID()
			state.Name = in.Name()
			state.Volume = in.Volume()
			state.Pitch = in.Pitch()
			state.Filtered = in.Filter() != nil
		}
		if o, ok := m.(offsetter); ok {
			state.Offset = o.PlayingOffset()
		}
		states = append(states, state)
	}
	return states
}
