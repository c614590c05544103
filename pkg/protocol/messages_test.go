// ABOUTME: Tests for control protocol message types
// ABOUTME: Verifies command validation, payload decoding and group state snapshots
package protocol

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/device"
	"github.com/Resonate-Protocol/syncsource-go/pkg/filter"
	"github.com/Resonate-Protocol/syncsource-go/pkg/groupsync"
	"github.com/Resonate-Protocol/syncsource-go/pkg/source"
)

func ms(v int64) *int64 { return &v }

func TestGroupCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     GroupCommand
		wantErr bool
	}{
		{"play", GroupCommand{Command: CommandPlay}, false},
		{"play at offset", GroupCommand{Command: CommandPlay, OffsetMs: ms(1500)}, false},
		{"pause", GroupCommand{Command: CommandPause}, false},
		{"stop", GroupCommand{Command: CommandStop}, false},
		{"seek", GroupCommand{Command: CommandSeek, OffsetMs: ms(0)}, false},
		{"seek without offset", GroupCommand{Command: CommandSeek}, true},
		{"negative offset", GroupCommand{Command: CommandSeek, OffsetMs: ms(-1)}, true},
		{"unknown", GroupCommand{Command: "rewind"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGroupCommandOffset(t *testing.T) {
	if _, ok := (GroupCommand{Command: CommandPlay}).Offset(); ok {
		t.Error("expected no offset")
	}
	got, ok := GroupCommand{Command: CommandSeek, OffsetMs: ms(2500)}.Offset()
	if !ok || got != 2500*time.Millisecond {
		t.Errorf("expected 2.5s, got %v (%v)", got, ok)
	}
}

func TestGroupCommandOmitsOffset(t *testing.T) {
	data, err := json.Marshal(Message{Type: TypeGroupCommand, Payload: GroupCommand{Command: CommandPause}})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	want := `{"type":"group/command","payload":{"command":"pause"}}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

func TestDecodePayload(t *testing.T) {
	raw := []byte(`{"type":"source/set","payload":{"id":"abc","volume":40,"lowpass":true}}`)

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	var set SourceSet
	if err := DecodePayload(msg.Payload, &set); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if set.ID != "abc" || set.Volume == nil || *set.Volume != 40 {
		t.Errorf("unexpected source/set %+v", set)
	}
	if set.Pitch != nil {
		t.Error("expected pitch to stay unset")
	}
	if set.LowPass == nil || !*set.LowPass {
		t.Error("expected lowpass on")
	}

	if err := DecodePayload("not an object", &set); err == nil {
		t.Error("expected error decoding a string into a struct")
	}
}

func TestNewGroupState(t *testing.T) {
	mixer := device.NewMixer(device.MixerConfig{SampleRate: 1000, OnError: func(string, error) {}})
	pcm := &audio.PCM{Frames: make([][2]float32, 3000), SampleRate: 1000}

	var members []groupsync.Member
	var sounds []*source.Sound
	for _, name := range []string{"drums", "bass"} {
		s, err := source.NewSound(mixer, pcm, source.Config{Name: name, Filters: filter.NewTable()})
		if err != nil {
			t.Fatalf("NewSound failed: %v", err)
		}
		sounds = append(sounds, s)
		members = append(members, s)
	}
	sounds[1].SetVolume(25)

	g := groupsync.NewGroup("band", groupsync.New(mixer, groupsync.Config{}), members...)
	if err := g.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	mixer.Mix(make([][2]float32, 1200))

	state := NewGroupState(g)
	if state.Group != "band" || state.Status != "playing" {
		t.Errorf("unexpected group header %q %q", state.Group, state.Status)
	}
	if len(state.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(state.Sources))
	}
	if state.Sources[0].Name != "drums" || state.Sources[0].ID != sounds[0].ID().String() {
		t.Errorf("unexpected identity %+v", state.Sources[0])
	}
	if state.Sources[0].OffsetMs != 1200 || state.Sources[0].Status != "playing" {
		t.Errorf("unexpected playback %+v", state.Sources[0])
	}
	if v := state.Sources[1].Volume; v < 24.99 || v > 25.01 {
		t.Errorf("expected volume 25, got %v", v)
	}
}
