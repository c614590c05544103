// ABOUTME: Call-recording device wrapper
// ABOUTME: Logs every playback control call in order before forwarding it
package device

import (
	"log"
	"sync"
)

// Control call names recorded by Recorder
const (
	OpPlay   = "play"
	OpPause  = "pause"
	OpStop   = "stop"
	OpPlayV  = "playv"
	OpPauseV = "pausev"
)

// Call is one recorded control call
type Call struct {
	Op      string
	Handles []Handle
}

// Recorder wraps a Device and records its playback control calls
type Recorder struct {
	Device

	// Trace logs each call as it is recorded
	Trace bool

	mu    sync.Mutex
	calls []Call
}

// NewRecorder wraps dev
func NewRecorder(dev Device) *Recorder {
	return &Recorder{Device: dev}
}

func (r *Recorder) record(op string, hs ...Handle) {
	handles := make([]Handle, len(hs))
	copy(handles, hs)

	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: op, Handles: handles})
	r.mu.Unlock()

	if r.Trace {
		log.Printf("Device call: %s %v", op, handles)
	}
}

// Play records and forwards a single play
func (r *Recorder) Play(h Handle) {
	r.record(OpPlay, h)
	r.Device.Play(h)
}

// Pause records and forwards a single pause
func (r *Recorder) Pause(h Handle) {
	r.record(OpPause, h)
	r.Device.Pause(h)
}

// Stop records and forwards a single stop
func (r *Recorder) Stop(h Handle) {
	r.record(OpStop, h)
	r.Device.Stop(h)
}

// PlayV records and forwards a batched play
func (r *Recorder) PlayV(hs []Handle) {
	r.record(OpPlayV, hs...)
	r.Device.PlayV(hs)
}

// PauseV records and forwards a batched pause
func (r *Recorder) PauseV(hs []Handle) {
	r.record(OpPauseV, hs...)
	r.Device.PauseV(hs)
}

// Calls returns a copy of the recorded calls
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]Call, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// Count returns how many calls of op were recorded
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
