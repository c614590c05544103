// ABOUTME: Integration tests for the control server
// ABOUTME: Tests startup, handshake, group commands, source settings and errors over websockets
package control

import (
	"fmt"
	"testing"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/device"
	"github.com/Resonate-Protocol/syncsource-go/pkg/filter"
	"github.com/Resonate-Protocol/syncsource-go/pkg/groupsync"
	"github.com/Resonate-Protocol/syncsource-go/pkg/protocol"
	"github.com/Resonate-Protocol/syncsource-go/pkg/source"
	"github.com/gorilla/websocket"
)

type rig struct {
	mixer  *device.Mixer
	sounds []*source.Sound
	group  *groupsync.Group
	lp     *filter.LowPass
}

func newRig(t *testing.T) *rig {
	t.Helper()
	mixer := device.NewMixer(device.MixerConfig{SampleRate: 1000, OnError: func(op string, err error) {
		t.Errorf("device error in %s: %v", op, err)
	}})
	table := filter.NewTable()

	pcm := &audio.PCM{Frames: make([][2]float32, 10000), SampleRate: 1000}
	r := &rig{mixer: mixer}
	var members []groupsync.Member
	for _, name := range []string{"left", "right"} {
		s, err := source.NewSound(mixer, pcm, source.Config{Name: name, Filters: table})
		if err != nil {
			t.Fatalf("NewSound failed: %v", err)
		}
		r.sounds = append(r.sounds, s)
		members = append(members, s)
	}
	r.group = groupsync.NewGroup("test", groupsync.New(mixer, groupsync.Config{PollInterval: time.Millisecond}), members...)

	lp, err := filter.NewLowPass(mixer, table)
	if err != nil {
		t.Fatalf("NewLowPass failed: %v", err)
	}
	r.lp = lp
	return r
}

func startServer(t *testing.T, config ServerConfig) *Server {
	t.Helper()
	server, err := NewServer(config)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	errChan := make(chan error, 1)
	go func() { errChan <- server.Start() }()
	time.Sleep(100 * time.Millisecond)

	t.Cleanup(func() {
		server.Stop()
		select {
		case err := <-errChan:
			if err != nil {
				t.Errorf("server error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop within timeout")
		}
	})
	return server
}

func connect(t *testing.T, port int) *protocol.Client {
	t.Helper()
	c := protocol.NewClient(protocol.Config{ServerAddr: fmt.Sprintf("localhost:%d", port), Name: "test"})
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func nextState(t *testing.T, c *protocol.Client) protocol.GroupState {
	t.Helper()
	select {
	case state := <-c.States:
		return state
	case err := <-c.Errors:
		t.Fatalf("unexpected server error: %s", err.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for group/state")
	}
	return protocol.GroupState{}
}

func TestNewServer(t *testing.T) {
	r := newRig(t)

	tests := []struct {
		name      string
		config    ServerConfig
		expectErr bool
	}{
		{"valid config", ServerConfig{Port: 18930, Name: "Test", Group: r.group}, false},
		{"missing group", ServerConfig{Port: 18930}, true},
		{"defaults", ServerConfig{Group: r.group}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.config)
			if tt.expectErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if server.config.Port == 0 || server.config.Name == "" {
				t.Error("expected defaults to be applied")
			}
			if server.config.StateInterval <= 0 || server.config.CommandTimeout <= 0 {
				t.Error("expected default intervals")
			}
			if server.ID() == "" {
				t.Error("expected a server id")
			}
		})
	}
}

func TestServerHandshake(t *testing.T) {
	r := newRig(t)
	server := startServer(t, ServerConfig{Port: 18931, Name: "Test Server", Group: r.group})

	c := connect(t, 18931)
	hello := c.Server()
	if hello.Name != "Test Server" || hello.ServerID != server.ID() {
		t.Errorf("unexpected server/hello %+v", hello)
	}

	state := nextState(t, c)
	if state.Group != "test" || state.Status != "stopped" || len(state.Sources) != 2 {
		t.Errorf("unexpected initial state %+v", state)
	}

	if clients := server.Clients(); len(clients) != 1 || clients[0].Name != "test" {
		t.Errorf("expected one registered client, got %v", clients)
	}
}

func TestServerRejectsMissingHello(t *testing.T) {
	r := newRig(t)
	startServer(t, ServerConfig{Port: 18932, Group: r.group})

	conn, _, err := websocket.DefaultDialer.Dial("ws://localhost:18932/control", nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(protocol.Message{Type: protocol.TypeGroupCommand, Payload: protocol.GroupCommand{Command: "play"}})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
}

func TestServerGroupCommands(t *testing.T) {
	r := newRig(t)
	startServer(t, ServerConfig{Port: 18933, Group: r.group, StateInterval: time.Hour})

	c := connect(t, 18933)
	nextState(t, c)

	if err := c.PlayAt(2 * time.Second); err != nil {
		t.Fatalf("PlayAt failed: %v", err)
	}
	state := nextState(t, c)
	if state.Status != "playing" {
		t.Fatalf("expected playing, got %+v", state)
	}
	for _, src := range state.Sources {
		if src.OffsetMs != 2000 {
			t.Errorf("%s: expected 2000ms, got %d", src.Name, src.OffsetMs)
		}
	}

	r.mixer.Mix(make([][2]float32, 500))

	c.Pause()
	state = nextState(t, c)
	if state.Status != "paused" || state.Sources[0].OffsetMs != 2500 {
		t.Errorf("expected paused at 2500ms, got %+v", state)
	}

	c.Seek(7 * time.Second)
	state = nextState(t, c)
	if state.Status != "paused" || state.Sources[1].OffsetMs != 7000 {
		t.Errorf("expected paused at 7000ms, got %+v", state)
	}

	c.Play()
	state = nextState(t, c)
	if state.Status != "playing" || state.Sources[0].OffsetMs != 7000 {
		t.Errorf("expected resume at 7000ms, got %+v", state)
	}

	c.Stop()
	state = nextState(t, c)
	if state.Status != "stopped" {
		t.Errorf("expected stopped, got %+v", state)
	}
}

func TestServerSourceSet(t *testing.T) {
	r := newRig(t)
	startServer(t, ServerConfig{Port: 18934, Group: r.group, LowPass: r.lp, StateInterval: time.Hour})

	c := connect(t, 18934)
	nextState(t, c)

	volume, on := float32(30), true
	err := c.SetSource(protocol.SourceSet{ID: r.sounds[1].ID().String(), Volume: &volume, LowPass: &on})
	if err != nil {
		t.Fatalf("SetSource failed: %v", err)
	}
	state := nextState(t, c)
	if !state.Sources[1].Filtered || state.Sources[0].Filtered {
		t.Errorf("expected only the second source filtered, got %+v", state.Sources)
	}
	if v := r.sounds[1].Volume(); v < 29.99 || v > 30.01 {
		t.Errorf("expected volume 30, got %v", v)
	}
	if r.sounds[1].Filter() != filter.Filter(r.lp) {
		t.Error("expected the configured low-pass on the source")
	}

	off := false
	c.SetSource(protocol.SourceSet{ID: r.sounds[1].ID().String(), LowPass: &off})
	state = nextState(t, c)
	if state.Sources[1].Filtered {
		t.Error("expected filter removed")
	}

	loud := float32(250)
	c.SetSource(protocol.SourceSet{ID: r.sounds[0].ID().String(), Volume: &loud})
	state = nextState(t, c)
	if v := state.Sources[0].Volume; v < 99.99 || v > 100.01 {
		t.Errorf("expected volume clamped to 100, got %v", v)
	}
}

func TestServerReportsErrors(t *testing.T) {
	r := newRig(t)
	startServer(t, ServerConfig{Port: 18935, Group: r.group, StateInterval: time.Hour})

	c := connect(t, 18935)
	nextState(t, c)

	on, zero := true, float32(0)
	requests := []protocol.SourceSet{
		{ID: "not-a-uuid"},
		{ID: "00000000-0000-0000-0000-000000000001"},
		{ID: r.sounds[0].ID().String(), LowPass: &on},
		{ID: r.sounds[0].ID().String(), Pitch: &zero},
	}
	for _, set := range requests {
		if err := c.SetSource(set); err != nil {
			t.Fatalf("SetSource failed: %v", err)
		}
		select {
		case serverErr := <-c.Errors:
			if serverErr.Message == "" {
				t.Error("expected an error message")
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("expected server/error for %+v", set)
		}
	}
}

func TestServerBroadcastsWhilePlaying(t *testing.T) {
	r := newRig(t)
	startServer(t, ServerConfig{Port: 18936, Group: r.group, StateInterval: 20 * time.Millisecond})

	c := connect(t, 18936)
	nextState(t, c)

	c.Play()
	nextState(t, c)

	// Periodic refreshes keep arriving without further commands
	for i := 0; i < 3; i++ {
		if state := nextState(t, c); state.Status != "playing" {
			t.Errorf("expected playing refresh, got %v", state.Status)
		}
	}
}
