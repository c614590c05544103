// ABOUTME: Software mixing device
// ABOUTME: Keeps voice state and renders all playing voices block by block under one lock
package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/audio/resample"
)

// MixerConfig configures a software mixer
type MixerConfig struct {
	// SampleRate is the output rate in Hz (default: 48000)
	SampleRate int

	// BufferSize is the backend buffer length (default: 20ms)
	BufferSize time.Duration

	// OnError receives failed calls (default: LogErrors)
	OnError ErrorHandler
}

type voice struct {
	state       State
	gain        float32
	pitch       float32
	position    audio.Vector3
	relative    bool
	looping     bool
	refDistance float32
	rolloff     float32

	buffer    *audio.PCM
	cursor    float64
	offsetSet bool

	stream    Stream
	resampler *resample.Resampler

	filter  FilterHandle
	lowpass [2]float32
}

type filterState struct {
	gain   float32
	gainHF float32
}

// Mixer is an in-process Device. Every state change and every rendered block happens
// under the same lock, so a PlayV takes effect for all listed voices on the same block.
type Mixer struct {
	mu      sync.Mutex
	rate    int
	onError ErrorHandler

	nextSource Handle
	nextFilter FilterHandle
	voices     map[Handle]*voice
	filters    map[FilterHandle]*filterState

	scratch  [][2]float32
	rendered int64
}

// NewMixer creates a mixer device
func NewMixer(config MixerConfig) *Mixer {
	if config.SampleRate == 0 {
		config.SampleRate = 48000
	}
	if config.OnError == nil {
		config.OnError = LogErrors
	}

	return &Mixer{
		rate:    config.SampleRate,
		onError: config.OnError,
		voices:  make(map[Handle]*voice),
		filters: make(map[FilterHandle]*filterState),
	}
}

// SampleRate returns the output rate
func (m *Mixer) SampleRate() int {
	return m.rate
}

// Rendered returns the number of frames rendered so far (the device clock)
func (m *Mixer) Rendered() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rendered
}

// GenSource allocates a voice
func (m *Mixer) GenSource() (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSource++
	h := m.nextSource
	m.voices[h] = &voice{
		state:       StateInitial,
		gain:        1,
		pitch:       1,
		refDistance: 1,
		rolloff:     1,
	}
	return h, nil
}

// DeleteSource frees a voice
func (m *Mixer) DeleteSource(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.voices[h]; !ok {
		m.report("DeleteSource", h, ErrInvalidHandle)
		return
	}
	delete(m.voices, h)
}

// SetFloat writes a scalar attribute
func (m *Mixer) SetFloat(h Handle, p Param, value float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("SetFloat", h)
	if v == nil {
		return
	}

	switch p {
	case ParamPitch:
		v.pitch = value
	case ParamGain:
		v.gain = value
	case ParamReferenceDistance:
		v.refDistance = value
	case ParamRolloffFactor:
		v.rolloff = value
	default:
		m.report("SetFloat", h, fmt.Errorf("%w: %v", ErrInvalidParam, p))
	}
}

// Float reads a scalar attribute
func (m *Mixer) Float(h Handle, p Param) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("Float", h)
	if v == nil {
		return 0
	}

	switch p {
	case ParamPitch:
		return v.pitch
	case ParamGain:
		return v.gain
	case ParamReferenceDistance:
		return v.refDistance
	case ParamRolloffFactor:
		return v.rolloff
	}
	m.report("Float", h, fmt.Errorf("%w: %v", ErrInvalidParam, p))
	return 0
}

// SetVector writes a vector attribute
func (m *Mixer) SetVector(h Handle, p Param, value audio.Vector3) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("SetVector", h)
	if v == nil {
		return
	}
	if p != ParamPosition {
		m.report("SetVector", h, fmt.Errorf("%w: %v", ErrInvalidParam, p))
		return
	}
	v.position = value
}

// Vector reads a vector attribute
func (m *Mixer) Vector(h Handle, p Param) audio.Vector3 {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("Vector", h)
	if v == nil {
		return audio.Vector3{}
	}
	if p != ParamPosition {
		m.report("Vector", h, fmt.Errorf("%w: %v", ErrInvalidParam, p))
		return audio.Vector3{}
	}
	return v.position
}

// SetBool writes a flag attribute
func (m *Mixer) SetBool(h Handle, p Param, value bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("SetBool", h)
	if v == nil {
		return
	}

	switch p {
	case ParamSourceRelative:
		v.relative = value
	case ParamLooping:
		v.looping = value
	default:
		m.report("SetBool", h, fmt.Errorf("%w: %v", ErrInvalidParam, p))
	}
}

// Bool reads a flag attribute
func (m *Mixer) Bool(h Handle, p Param) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("Bool", h)
	if v == nil {
		return false
	}

	switch p {
	case ParamSourceRelative:
		return v.relative
	case ParamLooping:
		return v.looping
	}
	m.report("Bool", h, fmt.Errorf("%w: %v", ErrInvalidParam, p))
	return false
}

// State returns the live voice state, StateUndefined for unknown handles
func (m *Mixer) State(h Handle) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("State", h)
	if v == nil {
		return StateUndefined
	}
	return v.state
}

// SetBuffer attaches a static buffer, replacing any stream. Nil detaches.
func (m *Mixer) SetBuffer(h Handle, pcm *audio.PCM) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("SetBuffer", h)
	if v == nil {
		return
	}
	v.buffer = pcm
	v.stream = nil
	v.resampler = nil
	v.cursor = 0
}

// SetStream attaches a pulled stream, replacing any buffer. Nil detaches.
func (m *Mixer) SetStream(h Handle, s Stream) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("SetStream", h)
	if v == nil {
		return
	}
	v.stream = s
	v.buffer = nil
	v.cursor = 0
	v.resampler = nil
	if s != nil {
		v.resampler = resample.New(s.SampleRate(), m.rate)
	}
}

// SetOffset moves the buffer cursor of a voice. Streamed voices seek on their own. An
// offset outside the buffer is reported and leaves the cursor where it was.
func (m *Mixer) SetOffset(h Handle, offset time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("SetOffset", h)
	if v == nil || v.buffer == nil {
		return
	}
	frames := float64(audio.DurationToFrames(offset, v.buffer.SampleRate))
	if frames < 0 || frames >= float64(len(v.buffer.Frames)) {
		m.report("SetOffset", h, fmt.Errorf("%w: offset %v of %v", ErrInvalidValue, offset, v.buffer.Duration()))
		return
	}
	v.cursor = frames
	v.offsetSet = true
}

// Offset returns the buffer cursor of a voice
func (m *Mixer) Offset(h Handle) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("Offset", h)
	if v == nil || v.buffer == nil {
		return 0
	}
	return audio.FramesToDuration(int64(v.cursor), v.buffer.SampleRate)
}

// Play starts one voice
func (m *Mixer) Play(h Handle) {
	m.PlayV([]Handle{h})
}

// Pause pauses one voice
func (m *Mixer) Pause(h Handle) {
	m.PauseV([]Handle{h})
}

// Stop stops one voice and rewinds it
func (m *Mixer) Stop(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("Stop", h)
	if v == nil {
		return
	}
	v.state = StateStopped
	v.cursor = 0
	v.offsetSet = false
	v.lowpass = [2]float32{}
	if v.resampler != nil {
		v.resampler.Reset()
	}
}

// PlayV starts every listed voice. If any handle is invalid no voice changes.
func (m *Mixer) PlayV(hs []Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	voices, ok := m.voiceList("PlayV", hs)
	if !ok {
		return
	}
	for _, v := range voices {
		switch v.state {
		case StatePlaying:
		case StatePaused:
			v.state = StatePlaying
		default:
			if !v.offsetSet {
				v.cursor = 0
			}
			if v.resampler != nil {
				v.resampler.Reset()
			}
			v.state = StatePlaying
		}
		v.offsetSet = false
	}
}

// PauseV pauses every listed voice. A voice that was not playing is held at its cursor,
// so the next play starts there. If any handle is invalid no voice changes.
//
// Unlike alSourcePausev, which leaves Initial and Stopped sources alone, this moves them
// to Paused so a group can cue members at an offset without starting them.
func (m *Mixer) PauseV(hs []Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	voices, ok := m.voiceList("PauseV", hs)
	if !ok {
		return
	}
	for _, v := range voices {
		switch v.state {
		case StatePlaying:
		case StateInitial, StateStopped:
			if v.resampler != nil {
				v.resampler.Reset()
			}
		default:
			continue
		}
		v.state = StatePaused
		v.offsetSet = false
	}
}

// GenFilter allocates a low-pass filter object
func (m *Mixer) GenFilter() (FilterHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextFilter++
	f := m.nextFilter
	m.filters[f] = &filterState{gain: 1, gainHF: 1}
	return f, nil
}

// DeleteFilter frees a filter and detaches it from every voice using it
func (m *Mixer) DeleteFilter(f FilterHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.filters[f]; !ok {
		m.onError("DeleteFilter", fmt.Errorf("%w: %d", ErrInvalidFilter, f))
		return
	}
	delete(m.filters, f)
	for _, v := range m.voices {
		if v.filter == f {
			v.filter = 0
		}
	}
}

// SetFilterFloat writes a filter attribute
func (m *Mixer) SetFilterFloat(f FilterHandle, p Param, value float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fs, ok := m.filters[f]
	if !ok {
		m.onError("SetFilterFloat", fmt.Errorf("%w: %d", ErrInvalidFilter, f))
		return
	}
	switch p {
	case ParamLowpassGain:
		fs.gain = value
	case ParamLowpassGainHF:
		fs.gainHF = value
	default:
		m.onError("SetFilterFloat", fmt.Errorf("%w: %v", ErrInvalidParam, p))
	}
}

// FilterFloat reads a filter attribute
func (m *Mixer) FilterFloat(f FilterHandle, p Param) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	fs, ok := m.filters[f]
	if !ok {
		m.onError("FilterFloat", fmt.Errorf("%w: %d", ErrInvalidFilter, f))
		return 0
	}
	switch p {
	case ParamLowpassGain:
		return fs.gain
	case ParamLowpassGainHF:
		return fs.gainHF
	}
	m.onError("FilterFloat", fmt.Errorf("%w: %v", ErrInvalidParam, p))
	return 0
}

// SetDirectFilter binds a filter to a voice's direct path. Zero unbinds.
func (m *Mixer) SetDirectFilter(h Handle, f FilterHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("SetDirectFilter", h)
	if v == nil {
		return
	}
	if f != 0 {
		if _, ok := m.filters[f]; !ok {
			m.onError("SetDirectFilter", fmt.Errorf("%w: %d", ErrInvalidFilter, f))
			return
		}
	}
	v.filter = f
	v.lowpass = [2]float32{}
}

// DirectFilter returns the filter bound to a voice, zero if none
func (m *Mixer) DirectFilter(h Handle) FilterHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voice("DirectFilter", h)
	if v == nil {
		return 0
	}
	return v.filter
}

// Mix renders one block of all playing voices into out
func (m *Mixer) Mix(out [][2]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range out {
		out[i] = [2]float32{}
	}
	if cap(m.scratch) < len(out) {
		m.scratch = make([][2]float32, len(out))
	}
	scratch := m.scratch[:len(out)]

	for _, v := range m.voices {
		if v.state != StatePlaying {
			continue
		}

		var n int
		switch {
		case v.buffer != nil:
			n = m.renderBuffer(v, scratch)
		case v.stream != nil:
			n = m.renderStream(v, scratch)
		default:
			// Nothing attached: a playing voice with no data finishes immediately
			v.state = StateStopped
			continue
		}

		m.applyFilter(v, scratch[:n])
		for i := 0; i < n; i++ {
			out[i][0] += scratch[i][0] * v.gain
			out[i][1] += scratch[i][1] * v.gain
		}
	}

	m.rendered += int64(len(out))
}

// renderBuffer interpolates a static buffer at the voice pitch
func (m *Mixer) renderBuffer(v *voice, dst [][2]float32) int {
	frames := v.buffer.Frames
	total := float64(len(frames))
	step := float64(v.buffer.SampleRate) * float64(v.pitch) / float64(m.rate)
	if step <= 0 {
		step = 1
	}

	for i := range dst {
		if v.cursor >= total {
			if !v.looping || total == 0 {
				v.state = StateStopped
				v.cursor = 0
				return i
			}
			v.cursor -= total
		}

		idx := int(v.cursor)
		next := idx + 1
		if next >= len(frames) {
			if v.looping {
				next = 0
			} else {
				next = idx
			}
		}
		frac := float32(v.cursor - float64(idx))
		dst[i][0] = frames[idx][0]*(1-frac) + frames[next][0]*frac
		dst[i][1] = frames[idx][1]*(1-frac) + frames[next][1]*frac
		v.cursor += step
	}
	return len(dst)
}

// renderStream pulls from a stream through the voice resampler
func (m *Mixer) renderStream(v *voice, dst [][2]float32) int {
	v.resampler.SetRates(v.stream.SampleRate(), m.rate, v.pitch)
	n, ok := v.resampler.Read(dst, v.stream.ReadFrames)
	if !ok {
		v.state = StateStopped
		v.resampler.Reset()
	}
	return n
}

// applyFilter runs the bound one-pole low-pass over a rendered block
func (m *Mixer) applyFilter(v *voice, block [][2]float32) {
	if v.filter == 0 {
		return
	}
	fs, ok := m.filters[v.filter]
	if !ok {
		return
	}

	coeff := fs.gainHF
	if coeff < 0 {
		coeff = 0
	} else if coeff > 1 {
		coeff = 1
	}
	for i := range block {
		for ch := 0; ch < 2; ch++ {
			v.lowpass[ch] += coeff * (block[i][ch] - v.lowpass[ch])
			block[i][ch] = v.lowpass[ch] * fs.gain
		}
	}
}

// voice looks up a voice (must hold m.mu)
func (m *Mixer) voice(op string, h Handle) *voice {
	v, ok := m.voices[h]
	if !ok {
		m.report(op, h, ErrInvalidHandle)
		return nil
	}
	return v
}

// voiceList resolves all handles or none (must hold m.mu)
func (m *Mixer) voiceList(op string, hs []Handle) ([]*voice, bool) {
	voices := make([]*voice, 0, len(hs))
	for _, h := range hs {
		v, ok := m.voices[h]
		if !ok {
			m.report(op, h, ErrInvalidHandle)
			return nil, false
		}
		voices = append(voices, v)
	}
	return voices, true
}

// report forwards a failure to the error handler (must hold m.mu)
func (m *Mixer) report(op string, h Handle, err error) {
	m.onError(op, fmt.Errorf("source %d: %w", h, err))
}
