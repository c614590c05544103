// ABOUTME: Group player application orchestration
// ABOUTME: Opens the device, loads sources into one group and serves remote control
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/internal/ui"
	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/syncsource-go/pkg/audio/encode"
	"github.com/Resonate-Protocol/syncsource-go/pkg/control"
	"github.com/Resonate-Protocol/syncsource-go/pkg/device"
	"github.com/Resonate-Protocol/syncsource-go/pkg/filter"
	"github.com/Resonate-Protocol/syncsource-go/pkg/groupsync"
	"github.com/Resonate-Protocol/syncsource-go/pkg/source"
	"github.com/Resonate-Protocol/syncsource-go/pkg/stream"
	"github.com/google/uuid"
)

// Device backends
const (
	DeviceOto  = "oto"
	DeviceBeep = "beep"
	DeviceNull = "null"
)

// ErrUnknownDevice is returned for a backend name that is not oto, beep or null
var ErrUnknownDevice = errors.New("unknown device")

// Config holds player configuration
type Config struct {
	// Inputs are file paths or tone:<hz>[:<duration>] arguments. Empty plays three tones.
	Inputs []string

	Device     string
	SampleRate int
	Loop       bool

	// Static loads every file fully into memory instead of streaming it
	Static bool

	Name          string
	Port          int
	EnableControl bool
	EnableMDNS    bool

	// Trace logs every device control call
	Trace bool

	// ToneLength is the length of tone inputs without an explicit duration (default: 30s)
	ToneLength time.Duration
}

// Member is what the player keeps for each group member
type Member interface {
	groupsync.Inspectable
	control.Adjustable
	io.Closer
}

// Player owns the device, the sources and the control server
type Player struct {
	config  Config
	mixer   *device.Mixer
	output  io.Closer
	dev     *device.Recorder
	table   *filter.Table
	lowpass *filter.LowPass
	members []Member
	group   *groupsync.Group
	server  *control.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens the device and loads every input
func New(config Config) (*Player, error) {
	if config.SampleRate == 0 {
		config.SampleRate = 48000
	}
	if config.Device == "" {
		config.Device = DeviceOto
	}
	if config.Name == "" {
		config.Name = "SyncSource"
	}
	if config.Port == 0 {
		config.Port = control.DefaultPort
	}
	if config.ToneLength <= 0 {
		config.ToneLength = 30 * time.Second
	}
	if len(config.Inputs) == 0 {
		config.Inputs = []string{"tone:220", "tone:330", "tone:440"}
	}

	mixer, output, err := openDevice(config.Device, device.MixerConfig{SampleRate: config.SampleRate})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		config: config,
		mixer:  mixer,
		output: output,
		dev:    device.NewRecorder(mixer),
		table:  filter.NewTable(),
		ctx:    ctx,
		cancel: cancel,
	}
	p.dev.Trace = config.Trace

	if err := p.load(); err != nil {
		p.Close()
		return nil, err
	}

	groupMembers := make([]groupsync.Member, len(p.members))
	for i, m := range p.members {
		groupMembers[i] = m
	}
	p.group = groupsync.NewGroup(config.Name, groupsync.New(p.dev, groupsync.Config{}), groupMembers...)

	if config.EnableControl {
		p.server, err = control.NewServer(control.ServerConfig{
			Port:       config.Port,
			Name:       config.Name,
			Group:      p.group,
			LowPass:    p.lowpass,
			EnableMDNS: config.EnableMDNS,
		})
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create control server: %w", err)
		}
	}

	log.Printf("Player ready: %d sources on %s at %dHz", len(p.members), config.Device, config.SampleRate)
	return p, nil
}

// openDevice returns the mixer and whatever drives it
func openDevice(name string, config device.MixerConfig) (*device.Mixer, io.Closer, error) {
	switch name {
	case DeviceOto:
		o, err := device.NewOto(config)
		if err != nil {
			return nil, nil, err
		}
		return o.Mixer, o, nil
	case DeviceBeep:
		b, err := device.NewBeep(config)
		if err != nil {
			return nil, nil, err
		}
		return b.Mixer, b, nil
	case DeviceNull:
		n := device.NewNull(config, nil)
		return n.Mixer, n, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
}

func (p *Player) load() error {
	lp, err := filter.NewLowPass(p.dev, p.table)
	if err != nil {
		return fmt.Errorf("failed to create low-pass filter: %w", err)
	}
	lp.SetHighFrequencyGain(0.2)
	p.lowpass = lp

	for _, input := range p.config.Inputs {
		m, err := p.open(input)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", input, err)
		}
		p.members = append(p.members, m)
		log.Printf("Loaded source %s (%s)", m.Name(), m.ID())
	}
	return nil
}

func (p *Player) open(input string) (Member, error) {
	if arg, ok := strings.CutPrefix(input, "tone:"); ok {
		freq, length, err := ParseTone(arg, p.config.ToneLength)
		if err != nil {
			return nil, err
		}
		tone := decode.NewTone(freq, p.config.SampleRate, length)
		if !p.config.Static {
			return p.openStream(input, tone)
		}
		if length == 0 {
			return nil, fmt.Errorf("endless tone %s cannot be loaded into memory", input)
		}
		pcm, err := decode.ReadAll(tone)
		if err != nil {
			return nil, err
		}
		return p.openSound(input, pcm)
	}

	name := filepath.Base(input)
	if p.config.Static || strings.EqualFold(filepath.Ext(input), ".wav") {
		pcm, err := decode.Load(input)
		if err != nil {
			return nil, err
		}
		return p.openSound(name, pcm)
	}

	dec, err := decode.Open(input)
	if err != nil {
		return nil, err
	}
	return p.openStream(name, dec)
}

func (p *Player) openSound(name string, pcm *audio.PCM) (Member, error) {
	s, err := source.NewSound(p.dev, pcm, source.Config{Name: name, Filters: p.table})
	if err != nil {
		return nil, err
	}
	s.SetLoop(p.config.Loop)
	return s, nil
}

func (p *Player) openStream(name string, dec decode.Decoder) (Member, error) {
	s, err := stream.New(p.dev, dec, stream.Config{Name: name, Filters: p.table})
	if err != nil {
		dec.Close()
		return nil, err
	}
	s.SetLoop(p.config.Loop)
	return s, nil
}

// ParseTone parses "<hz>[:<duration>]"
func ParseTone(arg string, length time.Duration) (float64, time.Duration, error) {
	freqText, durText, hasDur := strings.Cut(arg, ":")
	freq, err := strconv.ParseFloat(freqText, 64)
	if err != nil || freq <= 0 {
		return 0, 0, fmt.Errorf("invalid tone frequency %q", freqText)
	}
	if hasDur {
		length, err = time.ParseDuration(durText)
		if err != nil || length < 0 {
			return 0, 0, fmt.Errorf("invalid tone duration %q", durText)
		}
	}
	return freq, length, nil
}

// Start runs the control server in the background
func (p *Player) Start() {
	if p.server == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.server.Start(); err != nil {
			log.Printf("Control server error: %v", err)
		}
	}()
}

func (p *Player) commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(p.ctx, 10*time.Second)
}

func (p *Player) notify() {
	if p.server != nil {
		p.server.Notify()
	}
}

// Play starts the group from where its members are
func (p *Player) Play() error {
	ctx, cancel := p.commandContext()
	defer cancel()
	defer p.notify()
	return p.group.Play(ctx)
}

// Pause pauses the group
func (p *Player) Pause() error {
	ctx, cancel := p.commandContext()
	defer cancel()
	defer p.notify()
	return p.group.Pause(ctx)
}

// Stop stops the group
func (p *Player) Stop() error {
	ctx, cancel := p.commandContext()
	defer cancel()
	defer p.notify()
	return p.group.Stop(ctx)
}

// Seek moves the group to offset
func (p *Player) Seek(offset time.Duration) error {
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := p.commandContext()
	defer cancel()
	defer p.notify()
	return p.group.Seek(ctx, offset)
}

func (p *Player) member(id uuid.UUID) (Member, error) {
	for _, m := range p.members {
		if m.ID() == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", control.ErrUnknownSource, id)
}

// SetVolume sets one member's volume (0-100)
func (p *Player) SetVolume(id uuid.UUID, volume float32) error {
	m, err := p.member(id)
	if err != nil {
		return err
	}
	m.SetVolume(min(max(volume, 0), 100))
	p.notify()
	return nil
}

// SetLowPass attaches or removes the shared low-pass filter
func (p *Player) SetLowPass(id uuid.UUID, on bool) error {
	m, err := p.member(id)
	if err != nil {
		return err
	}
	if on {
		m.SetFilter(p.lowpass)
	} else {
		m.SetFilter(nil)
	}
	p.notify()
	return nil
}

// State reports the group for the UI
func (p *Player) State() ui.State {
	state := ui.State{
		Group:      p.group.Name(),
		Status:     p.group.Status(),
		Sources:    p.group.Snapshot(),
		Device:     p.config.Device,
		SampleRate: p.config.SampleRate,
		Rendered:   audio.FramesToDuration(p.mixer.Rendered(), p.mixer.SampleRate()),
	}
	if p.server != nil {
		state.ControlPort = p.config.Port
		state.Controllers = len(p.server.Clients())
	}
	return state
}

// Render plays the group from the start for length into a WAV file, driving the mixer
// directly. It needs the null device and in-memory sources, so every block is complete.
func (p *Player) Render(w io.WriteSeeker, length time.Duration, bitDepth int) error {
	if p.config.Device != DeviceNull || !p.config.Static {
		return fmt.Errorf("render needs static sources on the %s device", DeviceNull)
	}

	enc, err := encode.NewWAV(w, p.config.SampleRate, bitDepth)
	if err != nil {
		return err
	}
	if err := p.renderTo(enc, length); err != nil {
		return err
	}

	log.Printf("Rendered %v at %dHz/%d-bit", audio.FramesToDuration(p.mixer.Rendered(), p.config.SampleRate), p.config.SampleRate, bitDepth)
	return enc.Close()
}

// renderTo mixes up to length of the group into enc, stopping early once every source ended
func (p *Player) renderTo(enc encode.Encoder, length time.Duration) error {
	// Stop the real-time pump; rendering drives the mixer itself
	if err := p.output.Close(); err != nil {
		return err
	}

	ctx, cancel := p.commandContext()
	err := p.group.SynchronizeAt(ctx, audio.StatusPlaying, 0)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to start group: %w", err)
	}

	total := audio.DurationToFrames(length, p.config.SampleRate)
	block := make([][2]float32, 1024)
	for done := int64(0); done < total; {
		n := min(int64(len(block)), total-done)
		p.mixer.Mix(block[:n])
		if err := enc.Write(block[:n]); err != nil {
			return err
		}
		done += n
		if p.group.Status() == audio.StatusStopped {
			break
		}
	}
	return nil
}

// Close stops the server and releases every source and the device
func (p *Player) Close() {
	p.cancel()

	if p.server != nil {
		p.server.Stop()
	}
	p.wg.Wait()

	for _, m := range p.members {
		if err := m.Close(); err != nil {
			log.Printf("Error closing source %s: %v", m.Name(), err)
		}
	}
	p.members = nil

	if p.lowpass != nil {
		p.lowpass.Close()
	}
	if p.output != nil {
		if err := p.output.Close(); err != nil {
			log.Printf("Error closing device: %v", err)
		}
	}
}
