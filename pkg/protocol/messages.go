// ABOUTME: Control protocol message types
// ABOUTME: JSON envelopes for group commands, source settings and group state
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/groupsync"
)

// Message types
const (
	TypeClientHello  = "client/hello"
	TypeGroupCommand = "group/command"
	TypeSourceSet    = "source/set"
	TypeServerHello  = "server/hello"
	TypeGroupState   = "group/state"
	TypeServerError  = "server/error"
)

// Group commands
const (
	CommandPlay  = "play"
	CommandPause = "pause"
	CommandStop  = "stop"
	CommandSeek  = "seek"
)

// Message is the top-level protocol message envelope
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is the first message a controller sends
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
}

// ServerHello answers client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
}

// GroupCommand asks the server to change the group's status
type GroupCommand struct {
	Command  string `json:"command"`             // play, pause, stop, seek
	OffsetMs *int64 `json:"offset_ms,omitempty"` // required for seek, optional for play
}

// Offset returns the command offset, if one was given
func (c GroupCommand) Offset() (time.Duration, bool) {
	if c.OffsetMs == nil {
		return 0, false
	}
	return time.Duration(*c.OffsetMs) * time.Millisecond, true
}

// Validate checks the command name and offset
func (c GroupCommand) Validate() error {
	switch c.Command {
	case CommandPlay, CommandPause, CommandStop:
	case CommandSeek:
		if c.OffsetMs == nil {
			return fmt.Errorf("seek requires offset_ms")
		}
	default:
		return fmt.Errorf("unknown command %q", c.Command)
	}
	if c.OffsetMs != nil && *c.OffsetMs < 0 {
		return fmt.Errorf("negative offset_ms %d", *c.OffsetMs)
	}
	return nil
}

// SourceSet changes attributes of one source. Omitted fields are left alone.
type SourceSet struct {
	ID      string   `json:"id"`
	Volume  *float32 `json:"volume,omitempty"` // 0-100
	Pitch   *float32 `json:"pitch,omitempty"`
	LowPass *bool    `json:"lowpass,omitempty"`
}

// SourceState describes one source in group/state
type SourceState struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	OffsetMs int64   `json:"offset_ms"`
	Volume   float32 `json:"volume"`
	Pitch    float32 `json:"pitch"`
	Filtered bool    `json:"filtered"`
}

// GroupState is broadcast after every change
type GroupState struct {
	Group   string        `json:"group"`
	Status  string        `json:"status"`
	Sources []SourceState `json:"sources"`
}

// ServerError reports a rejected request
type ServerError struct {
	Message string `json:"message"`
}

// NewGroupState builds group/state from a group snapshot
func NewGroupState(g *groupsync.Group) GroupState {
	snap := g.Snapshot()
	state := GroupState{
		Group:   g.Name(),
		Status:  g.Status().String(),
		Sources: make([]SourceState, len(snap)),
	}
	for i, m := range snap {
		state.Sources[i] = SourceState{
			ID:       m.ID.String(),
			Name:     m.Name,
			Status:   m.Status.String(),
			OffsetMs: m.Offset.Milliseconds(),
			Volume:   m.Volume,
			Pitch:    m.Pitch,
			Filtered: m.Filtered,
		}
	}
	return state
}

// DecodePayload re-decodes a generic payload into v
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}
