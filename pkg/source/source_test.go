// ABOUTME: Tests for sources and static sounds
// ABOUTME: Tests attributes, live status, filter rebinding, copying and offsets
package source

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/device"
	"github.com/Resonate-Protocol/syncsource-go/pkg/filter"
)

func newMixer() *device.Mixer {
	return device.NewMixer(device.MixerConfig{
		SampleRate: 1000,
		OnError:    func(string, error) {},
	})
}

func newSource(t *testing.T, dev device.Device) *Source {
	t.Helper()
	s, err := New(dev, Config{Filters: filter.NewTable()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func tone(frames int) *audio.PCM {
	pcm := &audio.PCM{Frames: make([][2]float32, frames), SampleRate: 1000}
	for i := range pcm.Frames {
		pcm.Frames[i] = [2]float32{0.5, 0.5}
	}
	return pcm
}

func TestAttributes(t *testing.T) {
	mixer := newMixer()
	s := newSource(t, mixer)

	s.SetPitch(1.25)
	s.SetVolume(40)
	s.SetPosition(audio.Vector3{X: 1, Y: -2, Z: 3})
	s.SetRelativeToListener(true)
	s.SetMinDistance(5)
	s.SetAttenuation(0.5)

	if !approx(s.Pitch(), 1.25) {
		t.Errorf("expected pitch 1.25, got %v", s.Pitch())
	}
	if !approx(s.Volume(), 40) {
		t.Errorf("expected volume 40, got %v", s.Volume())
	}
	if got := mixer.Float(s.Handle(), device.ParamGain); !approx(got, 0.4) {
		t.Errorf("expected device gain 0.4, got %v", got)
	}
	if s.Position() != (audio.Vector3{X: 1, Y: -2, Z: 3}) {
		t.Errorf("unexpected position %v", s.Position())
	}
	if !s.IsRelativeToListener() {
		t.Error("expected relative to listener")
	}
	if !approx(s.MinDistance(), 5) {
		t.Errorf("expected min distance 5, got %v", s.MinDistance())
	}
	if !approx(s.Attenuation(), 0.5) {
		t.Errorf("expected attenuation 0.5, got %v", s.Attenuation())
	}
}

func TestOutOfRangeValuesPassThrough(t *testing.T) {
	s := newSource(t, newMixer())

	s.SetVolume(250)
	if !approx(s.Volume(), 250) {
		t.Errorf("expected volume passed through unchanged, got %v", s.Volume())
	}
	s.SetPitch(-1)
	if !approx(s.Pitch(), -1) {
		t.Errorf("expected pitch passed through unchanged, got %v", s.Pitch())
	}
}

func TestStatusFollowsDevice(t *testing.T) {
	mixer := newMixer()
	s, err := NewSound(mixer, tone(100), Config{Filters: filter.NewTable()})
	if err != nil {
		t.Fatalf("NewSound failed: %v", err)
	}

	steps := []struct {
		name   string
		action func()
		want   audio.Status
	}{
		{"fresh", func() {}, audio.StatusStopped},
		{"play", s.Play, audio.StatusPlaying},
		{"pause", s.Pause, audio.StatusPaused},
		{"resume", s.Play, audio.StatusPlaying},
		{"stop", s.Stop, audio.StatusStopped},
		{"play again", s.Play, audio.StatusPlaying},
		{"run to end", func() { mixer.Mix(make([][2]float32, 200)) }, audio.StatusStopped},
	}

	for _, step := range steps {
		step.action()
		if got := s.Status(); got != step.want {
			t.Errorf("%s: expected %v, got %v", step.name, step.want, got)
		}
	}
}

func TestStatusOfInitialVoiceIsStopped(t *testing.T) {
	mixer := newMixer()
	s := newSource(t, mixer)

	if mixer.State(s.Handle()) != device.StateInitial {
		t.Fatal("expected initial device state")
	}
	if s.Status() != audio.StatusStopped {
		t.Errorf("expected initial to read as stopped, got %v", s.Status())
	}
}

func TestStatusOfUnknownStateIsStopped(t *testing.T) {
	mixer := newMixer()
	s := newSource(t, mixer)
	h := s.Handle()
	mixer.DeleteSource(h)

	if got := mixer.State(h); got != device.StateUndefined {
		t.Fatalf("expected undefined state, got %v", got)
	}
	if s.Status() != audio.StatusStopped {
		t.Errorf("expected undefined to read as stopped, got %v", s.Status())
	}
}

type traceFilter struct {
	name string
	log  *[]string
}

func (f *traceFilter) Bind(h device.Handle) {
	*f.log = append(*f.log, fmt.Sprintf("bind %s", f.name))
}

func (f *traceFilter) Unbind(h device.Handle) {
	*f.log = append(*f.log, fmt.Sprintf("unbind %s", f.name))
}

func TestSetFilterRebindsInOrder(t *testing.T) {
	var calls []string
	a := &traceFilter{name: "A", log: &calls}
	b := &traceFilter{name: "B", log: &calls}

	s := newSource(t, newMixer())
	s.SetFilter(a)
	calls = calls[:0]

	s.SetFilter(b)

	if len(calls) != 2 || calls[0] != "unbind A" || calls[1] != "bind B" {
		t.Errorf("expected [unbind A bind B], got %v", calls)
	}
	if s.Filter() != b {
		t.Error("expected B attached")
	}

	s.SetFilter(nil)
	if s.Filter() != nil {
		t.Error("expected filter cleared")
	}
}

func TestLowPassOnSource(t *testing.T) {
	mixer := newMixer()
	table := filter.NewTable()
	s, err := New(mixer, Config{Filters: table})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	lp, err := filter.NewLowPass(mixer, table)
	if err != nil {
		t.Fatalf("NewLowPass failed: %v", err)
	}

	s.SetFilter(lp)
	if got := mixer.DirectFilter(s.Handle()); got != lp.Handle() {
		t.Fatalf("expected low-pass bound, got %d", got)
	}

	lp.Close()
	if s.Filter() != nil {
		t.Error("expected closed filter to be detached from the source")
	}
	if got := mixer.DirectFilter(s.Handle()); got != 0 {
		t.Errorf("expected device slot cleared, got %d", got)
	}
}

func TestCopyAttributesKeepsHandle(t *testing.T) {
	mixer := newMixer()
	a := newSource(t, mixer)
	b := newSource(t, mixer)

	a.SetVolume(25)
	a.SetPitch(2)
	a.SetPosition(audio.Vector3{X: 4})

	handle := b.Handle()
	b.CopyAttributes(a)

	if b.Handle() != handle {
		t.Error("expected handle unchanged")
	}
	if !approx(b.Volume(), 25) || !approx(b.Pitch(), 2) || b.Position().X != 4 {
		t.Errorf("expected attributes copied, got volume %v pitch %v position %v", b.Volume(), b.Pitch(), b.Position())
	}
}

func TestCloneGetsFreshHandle(t *testing.T) {
	var calls []string
	mixer := newMixer()
	a := newSource(t, mixer)
	a.SetVolume(75)
	a.SetFilter(&traceFilter{name: "A", log: &calls})

	c, err := a.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	if c.Handle() == a.Handle() {
		t.Error("expected a distinct handle")
	}
	if c.ID() == a.ID() {
		t.Error("expected a distinct identity")
	}
	if !approx(c.Volume(), 75) {
		t.Errorf("expected volume copied, got %v", c.Volume())
	}
	if c.Filter() != nil {
		t.Error("expected filter not copied")
	}

	// The clone is independent of the original
	c.SetVolume(10)
	if !approx(a.Volume(), 75) {
		t.Errorf("expected original untouched, got %v", a.Volume())
	}
}

func TestCloseFreesHandle(t *testing.T) {
	var calls []string
	mixer := newMixer()
	s := newSource(t, mixer)
	h := s.Handle()
	s.SetFilter(&traceFilter{name: "A", log: &calls})

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if mixer.State(h) != device.StateUndefined {
		t.Error("expected device handle freed")
	}
	if calls[len(calls)-1] != "unbind A" {
		t.Errorf("expected filter unbound on close, got %v", calls)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestDefaultHooks(t *testing.T) {
	s := newSource(t, newMixer())
	s.PrepareForOffset(10 * time.Second)
	if !s.IsReadyForOffset() {
		t.Error("expected a plain source to be ready immediately")
	}
}

func TestSoundPlayingOffset(t *testing.T) {
	mixer := newMixer()
	s, err := NewSound(mixer, tone(2000), Config{Filters: filter.NewTable()})
	if err != nil {
		t.Fatalf("NewSound failed: %v", err)
	}

	if got := s.Duration(); got != 2*time.Second {
		t.Errorf("expected 2s duration, got %v", got)
	}

	s.PrepareForOffset(500 * time.Millisecond)
	if !s.IsReadyForOffset() {
		t.Error("expected sound ready immediately")
	}
	mixer.PlayV([]device.Handle{s.Handle()})
	if got := s.PlayingOffset(); got != 500*time.Millisecond {
		t.Errorf("expected start at 500ms, got %v", got)
	}

	mixer.Mix(make([][2]float32, 100))
	if got := s.PlayingOffset(); got != 600*time.Millisecond {
		t.Errorf("expected 600ms after 100 frames, got %v", got)
	}
}

func TestSoundLoopAndClone(t *testing.T) {
	mixer := newMixer()
	s, err := NewSound(mixer, tone(10), Config{Filters: filter.NewTable()})
	if err != nil {
		t.Fatalf("NewSound failed: %v", err)
	}
	s.SetLoop(true)
	s.SetVolume(60)

	c, err := s.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	if !c.Loop() {
		t.Error("expected loop copied")
	}
	if c.Buffer() != s.Buffer() {
		t.Error("expected buffer shared")
	}
	if !approx(c.Volume(), 60) {
		t.Errorf("expected volume copied, got %v", c.Volume())
	}

	c.Play()
	mixer.Mix(make([][2]float32, 35))
	if c.Status() != audio.StatusPlaying {
		t.Errorf("expected looping clone still playing, got %v", c.Status())
	}
	if s.Status() != audio.StatusStopped {
		t.Errorf("expected original untouched, got %v", s.Status())
	}
}
