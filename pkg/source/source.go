// ABOUTME: Sound source owning one device playback handle
// ABOUTME: Attribute accessors, live status, filter attachment and synchronization hooks
package source

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/device"
	"github.com/Resonate-Protocol/syncsource-go/pkg/filter"
	"github.com/google/uuid"
)

// Config configures a new source
type Config struct {
	// Name labels the source in logs and group snapshots (default: short id)
	Name string

	// Filters is the attachment table used by SetFilter (default: filter.Default)
	Filters *filter.Table
}

// Source is one controllable audio emitter. It exclusively owns its device handle from
// New until Close.
type Source struct {
	id      uuid.UUID
	name    string
	dev     device.Device
	handle  device.Handle
	filters *filter.Table
}

// New allocates a device handle for a new source
func New(dev device.Device, config Config) (*Source, error) {
	if config.Filters == nil {
		config.Filters = filter.Default
	}

	h, err := dev.GenSource()
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	id := uuid.New()
	if config.Name == "" {
		config.Name = id.String()[:8]
	}

	return &Source{
		id:      id,
		name:    config.Name,
		dev:     dev,
		handle:  h,
		filters: config.Filters,
	}, nil
}

// ID returns the source identity
func (s *Source) ID() uuid.UUID {
	return s.id
}

// Name returns the source label
func (s *Source) Name() string {
	return s.name
}

// Handle returns the device handle
func (s *Source) Handle() device.Handle {
	return s.handle
}

// Device returns the device the handle lives on
func (s *Source) Device() device.Device {
	return s.dev
}

// SetPitch sets the playback pitch (1 is unchanged)
func (s *Source) SetPitch(pitch float32) {
	s.dev.SetFloat(s.handle, device.ParamPitch, pitch)
}

// Pitch returns the playback pitch
func (s *Source) Pitch() float32 {
	return s.dev.Float(s.handle, device.ParamPitch)
}

// SetVolume sets the volume on a 0-100 scale
func (s *Source) SetVolume(volume float32) {
	s.dev.SetFloat(s.handle, device.ParamGain, volume*0.01)
}

// Volume returns the volume on a 0-100 scale
func (s *Source) Volume() float32 {
	return s.dev.Float(s.handle, device.ParamGain) * 100
}

// SetPosition sets the 3D position
func (s *Source) SetPosition(pos audio.Vector3) {
	s.dev.SetVector(s.handle, device.ParamPosition, pos)
}

// Position returns the 3D position
func (s *Source) Position() audio.Vector3 {
	return s.dev.Vector(s.handle, device.ParamPosition)
}

// SetRelativeToListener makes the position relative to the listener
func (s *Source) SetRelativeToListener(relative bool) {
	s.dev.SetBool(s.handle, device.ParamSourceRelative, relative)
}

// IsRelativeToListener reports whether the position is relative to the listener
func (s *Source) IsRelativeToListener() bool {
	return s.dev.Bool(s.handle, device.ParamSourceRelative)
}

// SetMinDistance sets the distance under which the source plays at full volume
func (s *Source) SetMinDistance(distance float32) {
	s.dev.SetFloat(s.handle, device.ParamReferenceDistance, distance)
}

// MinDistance returns the full-volume distance
func (s *Source) MinDistance() float32 {
	return s.dev.Float(s.handle, device.ParamReferenceDistance)
}

// SetAttenuation sets the distance attenuation factor
func (s *Source) SetAttenuation(attenuation float32) {
	s.dev.SetFloat(s.handle, device.ParamRolloffFactor, attenuation)
}

// Attenuation returns the distance attenuation factor
func (s *Source) Attenuation() float32 {
	return s.dev.Float(s.handle, device.ParamRolloffFactor)
}

// Status queries the device. Initial and stopped both read as stopped, as does any state
// the device should never report.
func (s *Source) Status() audio.Status {
	switch s.dev.State(s.handle) {
	case device.StatePlaying:
		return audio.StatusPlaying
	case device.StatePaused:
		return audio.StatusPaused
	default:
		return audio.StatusStopped
	}
}

// SetFilter replaces the source's filter. Nil clears it.
func (s *Source) SetFilter(f filter.Filter) {
	s.filters.Attach(s.id, s.handle, f)
}

// Filter returns the attached filter, nil if none
func (s *Source) Filter() filter.Filter {
	return s.filters.Filter(s.id)
}

// CopyAttributes copies every attribute of from onto s. The handle and filter of s are
// left as they are.
func (s *Source) CopyAttributes(from *Source) {
	s.SetPitch(from.Pitch())
	s.SetVolume(from.Volume())
	s.SetPosition(from.Position())
	s.SetRelativeToListener(from.IsRelativeToListener())
	s.SetMinDistance(from.MinDistance())
	s.SetAttenuation(from.Attenuation())
}

// Clone creates a new source on the same device with a fresh handle and the attributes
// of s. The filter is not carried over.
func (s *Source) Clone() (*Source, error) {
	c, err := New(s.dev, Config{Name: s.name, Filters: s.filters})
	if err != nil {
		return nil, err
	}
	c.CopyAttributes(s)
	return c, nil
}

// Play starts or resumes the source
func (s *Source) Play() {
	s.dev.Play(s.handle)
}

// Pause pauses the source
func (s *Source) Pause() {
	s.dev.Pause(s.handle)
}

// Stop stops the source and rewinds it
func (s *Source) Stop() {
	s.dev.Stop(s.handle)
}

// PrepareForOffset is called before a synchronized start at offset. A plain source has
// nothing to prepare.
func (s *Source) PrepareForOffset(offset time.Duration) {}

// IsReadyForOffset reports whether the last PrepareForOffset has completed
func (s *Source) IsReadyForOffset() bool {
	return true
}

// Close detaches the filter and frees the device handle
func (s *Source) Close() error {
	if s.handle == 0 {
		return nil
	}
	s.filters.Detach(s.id)
	s.dev.SetBuffer(s.handle, nil)
	s.dev.DeleteSource(s.handle)
	s.handle = 0
	return nil
}
