// ABOUTME: Tests for groups of real sources on the software mixer
// ABOUTME: Tests group play, pause, seek, stop and snapshots with sounds and streams
package groupsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/syncsource-go/pkg/device"
	"github.com/Resonate-Protocol/syncsource-go/pkg/filter"
	"github.com/Resonate-Protocol/syncsource-go/pkg/source"
	"github.com/Resonate-Protocol/syncsource-go/pkg/stream"
)

const rate = 1000

func newRig(t *testing.T) (*device.Mixer, *device.Recorder, *Coordinator) {
	t.Helper()
	mixer := device.NewMixer(device.MixerConfig{SampleRate: rate, OnError: func(op string, err error) {
		t.Errorf("device error in %s: %v", op, err)
	}})
	rec := device.NewRecorder(mixer)
	return mixer, rec, New(rec, Config{PollInterval: time.Millisecond})
}

func ramp(frames int) *audio.PCM {
	pcm := &audio.PCM{Frames: make([][2]float32, frames), SampleRate: rate}
	for i := range pcm.Frames {
		pcm.Frames[i] = [2]float32{float32(i), 0}
	}
	return pcm
}

func newSounds(t *testing.T, dev device.Device, n int) []*source.Sound {
	t.Helper()
	var sounds []*source.Sound
	for i := 0; i < n; i++ {
		s, err := source.NewSound(dev, ramp(5000), source.Config{Filters: filter.NewTable()})
		if err != nil {
			t.Fatalf("NewSound failed: %v", err)
		}
		sounds = append(sounds, s)
	}
	return sounds
}

func asMembers(sounds []*source.Sound) []Member {
	out := make([]Member, len(sounds))
	for i, s := range sounds {
		out[i] = s
	}
	return out
}

func TestGroupPlayFromStoppedStartsTogether(t *testing.T) {
	mixer, rec, coord := newRig(t)
	sounds := newSounds(t, rec, 3)
	sounds[1].SetPlayingOffset(2 * time.Second)

	g := NewGroup("test", coord, asMembers(sounds)...)
	rec.Reset()

	if err := g.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if rec.Count(device.OpPlayV) != 1 || len(rec.Calls()) != 1 {
		t.Fatalf("expected a single batched play, got %v", rec.Calls())
	}
	if got := len(rec.Calls()[0].Handles); got != 3 {
		t.Errorf("expected 3 handles in the batch, got %d", got)
	}

	mixer.Mix(make([][2]float32, 250))
	for i, s := range sounds {
		if got := s.PlayingOffset(); got != 250*time.Millisecond {
			t.Errorf("sound %d: expected 250ms, got %v", i, got)
		}
	}
	if g.Status() != audio.StatusPlaying {
		t.Errorf("expected group playing, got %v", g.Status())
	}
}

func TestGroupPauseAndResume(t *testing.T) {
	mixer, rec, coord := newRig(t)
	sounds := newSounds(t, rec, 2)
	g := NewGroup("test", coord, asMembers(sounds)...)
	ctx := context.Background()

	g.Play(ctx)
	mixer.Mix(make([][2]float32, 100))

	rec.Reset()
	if err := g.Pause(ctx); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if rec.Count(device.OpPauseV) != 1 {
		t.Errorf("expected one batched pause, got %v", rec.Calls())
	}
	if g.Status() != audio.StatusPaused {
		t.Errorf("expected paused, got %v", g.Status())
	}

	mixer.Mix(make([][2]float32, 100))
	if err := g.Play(ctx); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	mixer.Mix(make([][2]float32, 50))

	for i, s := range sounds {
		if got := s.PlayingOffset(); got != 150*time.Millisecond {
			t.Errorf("sound %d: expected resume at 150ms, got %v", i, got)
		}
	}
}

func TestGroupSeekWhilePlaying(t *testing.T) {
	mixer, rec, coord := newRig(t)
	sounds := newSounds(t, rec, 2)
	g := NewGroup("test", coord, asMembers(sounds)...)
	ctx := context.Background()

	g.Play(ctx)
	mixer.Mix(make([][2]float32, 100))

	rec.Reset()
	if err := g.Seek(ctx, 3*time.Second); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}

	calls := rec.Calls()
	if len(calls) != 2 || calls[0].Op != device.OpPauseV || calls[1].Op != device.OpPlayV {
		t.Fatalf("expected pausev then playv, got %v", calls)
	}
	for i, s := range sounds {
		if got := s.PlayingOffset(); got != 3*time.Second {
			t.Errorf("sound %d: expected 3s, got %v", i, got)
		}
	}
	if g.Status() != audio.StatusPlaying {
		t.Errorf("expected group still playing, got %v", g.Status())
	}
}

func TestGroupSeekWhileStoppedCues(t *testing.T) {
	mixer, rec, coord := newRig(t)
	sounds := newSounds(t, rec, 2)
	g := NewGroup("test", coord, asMembers(sounds)...)
	ctx := context.Background()

	if err := g.Seek(ctx, time.Second); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if g.Status() != audio.StatusPaused {
		t.Fatalf("expected group cued in pause, got %v", g.Status())
	}

	rec.Reset()
	g.Play(ctx)
	if rec.Count(device.OpPlayV) != 1 {
		t.Errorf("expected one batched play, got %v", rec.Calls())
	}
	mixer.Mix(make([][2]float32, 10))
	for i, s := range sounds {
		if got := s.PlayingOffset(); got != 1010*time.Millisecond {
			t.Errorf("sound %d: expected 1.01s, got %v", i, got)
		}
	}
}

func TestGroupStop(t *testing.T) {
	_, rec, coord := newRig(t)
	sounds := newSounds(t, rec, 3)
	g := NewGroup("test", coord, asMembers(sounds)...)
	ctx := context.Background()

	g.Play(ctx)
	rec.Reset()
	if err := g.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if rec.Count(device.OpStop) != 3 || rec.Count(device.OpPlayV)+rec.Count(device.OpPauseV) != 0 {
		t.Errorf("expected three individual stops and no batches, got %v", rec.Calls())
	}
	if g.Status() != audio.StatusStopped {
		t.Errorf("expected stopped, got %v", g.Status())
	}
}

func TestGroupMembership(t *testing.T) {
	_, rec, coord := newRig(t)
	sounds := newSounds(t, rec, 3)
	g := NewGroup("test", coord, sounds[0], sounds[1])

	g.Add(sounds[2])
	if len(g.Members()) != 3 {
		t.Fatalf("expected 3 members, got %d", len(g.Members()))
	}

	found, ok := g.Find(sounds[1].ID())
	if !ok || found.Handle() != sounds[1].Handle() {
		t.Error("expected to find the second sound by id")
	}

	if !g.Remove(sounds[1]) {
		t.Error("expected removal to succeed")
	}
	if g.Remove(sounds[1]) {
		t.Error("expected second removal to report absence")
	}
	if _, ok := g.Find(sounds[1].ID()); ok {
		t.Error("expected removed sound to be gone")
	}
}

func TestGroupSnapshot(t *testing.T) {
	mixer, rec, coord := newRig(t)
	sounds := newSounds(t, rec, 2)
	sounds[0].SetVolume(50)
	lp, err := filter.NewLowPass(mixer, nil)
	if err != nil {
		t.Fatalf("NewLowPass failed: %v", err)
	}
	defer lp.Close()
	sounds[1].SetFilter(lp)

	g := NewGroup("test", coord, asMembers(sounds)...)
	g.Play(context.Background())
	mixer.Mix(make([][2]float32, 500))

	snap := g.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap))
	}
	if snap[0].ID != sounds[0].ID() || snap[0].Name != sounds[0].Name() {
		t.Error("expected identity in snapshot")
	}
	if snap[0].Volume < 49.99 || snap[0].Volume > 50.01 {
		t.Errorf("expected volume 50, got %v", snap[0].Volume)
	}
	if snap[0].Status != audio.StatusPlaying || snap[0].Offset != 500*time.Millisecond {
		t.Errorf("unexpected playback state %v at %v", snap[0].Status, snap[0].Offset)
	}
	if snap[0].Filtered || !snap[1].Filtered {
		t.Error("expected only the second sound filtered")
	}
}

// gatedDecoder holds back decoding until released
type gatedDecoder struct {
	*decode.PCMDecoder
	gate chan struct{}
}

func (d *gatedDecoder) ReadFrames(dst [][2]float32) (int, error) {
	<-d.gate
	return d.PCMDecoder.ReadFrames(dst)
}

func TestGroupWaitsForSlowStream(t *testing.T) {
	mixer, rec, coord := newRig(t)

	dec := &gatedDecoder{PCMDecoder: decode.NewPCM(ramp(3000)), gate: make(chan struct{})}
	slow, err := stream.New(rec, dec, stream.Config{Filters: filter.NewTable(), FeedInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("stream.New failed: %v", err)
	}
	released := false
	defer func() {
		if !released {
			close(dec.gate)
		}
		slow.Close()
	}()

	sound := newSounds(t, rec, 1)[0]
	g := NewGroup("test", coord, sound, slow)

	done := make(chan error, 1)
	go func() { done <- g.SynchronizeAt(context.Background(), audio.StatusPlaying, 2*time.Second) }()

	time.Sleep(20 * time.Millisecond)
	if rec.Count(device.OpPlayV) != 0 {
		t.Fatal("expected no play while the stream is still priming")
	}

	close(dec.gate)
	released = true

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SynchronizeAt failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("group start never happened")
	}

	if rec.Count(device.OpPlayV) != 1 {
		t.Errorf("expected one batched play, got %v", rec.Calls())
	}

	out := make([][2]float32, 1)
	mixer.Mix(out)
	// Both voices start at frame 2000 of identical ramps
	if out[0][0] != 4000 {
		t.Errorf("expected both sources at 2s, got mixed sample %v", out[0][0])
	}
}

func TestGroupCommandsReturnWhileDecoderBlocked(t *testing.T) {
	_, rec, coord := newRig(t)

	dec := &gatedDecoder{PCMDecoder: decode.NewPCM(ramp(3000)), gate: make(chan struct{})}
	slow, err := stream.New(rec, dec, stream.Config{Filters: filter.NewTable(), FeedInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("stream.New failed: %v", err)
	}
	defer func() {
		close(dec.gate)
		slow.Close()
	}()

	g := NewGroup("test", coord, slow)
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = g.SynchronizeAt(ctx, audio.StatusPlaying, time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected SynchronizeAt to give up at its deadline, took %v", elapsed)
	}
	if rec.Count(device.OpPlayV) != 0 {
		t.Error("expected no play after a failed rendezvous")
	}

	start = time.Now()
	if err := g.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("expected Stop to return while the decoder is blocked, took %v", elapsed)
	}
}
