// ABOUTME: Playback device abstraction
// ABOUTME: Handles, raw device states, attribute params and the Device capability set
package device

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
)

var (
	// ErrInvalidHandle is reported when a call names a source the device does not know
	ErrInvalidHandle = errors.New("invalid source handle")

	// ErrInvalidFilter is reported when a call names a filter the device does not know
	ErrInvalidFilter = errors.New("invalid filter handle")

	// ErrInvalidParam is reported when a param does not apply to the call
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrInvalidValue is reported when a value is out of range for the call
	ErrInvalidValue = errors.New("invalid value")
)

// Handle names one playback resource on a device. Zero is never a valid handle.
type Handle uint32

// FilterHandle names one filter object on a device. Zero means "no filter".
type FilterHandle uint32

// State is the raw playback state reported by a device
type State int

const (
	StateUndefined State = iota
	StateInitial
	StatePlaying
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "undefined"
	}
}

// Param selects a source or filter attribute
type Param int

const (
	ParamPitch Param = iota + 1
	ParamGain
	ParamPosition
	ParamSourceRelative
	ParamLooping
	ParamReferenceDistance
	ParamRolloffFactor

	ParamLowpassGain
	ParamLowpassGainHF
)

func (p Param) String() string {
	switch p {
	case ParamPitch:
		return "pitch"
	case ParamGain:
		return "gain"
	case ParamPosition:
		return "position"
	case ParamSourceRelative:
		return "source-relative"
	case ParamLooping:
		return "looping"
	case ParamReferenceDistance:
		return "reference-distance"
	case ParamRolloffFactor:
		return "rolloff-factor"
	case ParamLowpassGain:
		return "lowpass-gain"
	case ParamLowpassGainHF:
		return "lowpass-gain-hf"
	default:
		return fmt.Sprintf("Param(%d)", int(p))
	}
}

// Stream feeds a voice from a producer that lives outside the device, such as a decode
// goroutine. ReadFrames returns false once the producer is finished.
type Stream interface {
	ReadFrames(dst [][2]float32) (int, bool)
	SampleRate() int
}

// Device is the playback capability set consumed by sources, filters and the
// synchronization coordinator. Attribute setters never return errors: failures are
// passed to the device's ErrorHandler.
type Device interface {
	GenSource() (Handle, error)
	DeleteSource(h Handle)

	SetFloat(h Handle, p Param, v float32)
	Float(h Handle, p Param) float32
	SetVector(h Handle, p Param, v audio.Vector3)
	Vector(h Handle, p Param) audio.Vector3
	SetBool(h Handle, p Param, v bool)
	Bool(h Handle, p Param) bool

	// State queries the live state; it is never cached by callers
	State(h Handle) State

	SetBuffer(h Handle, pcm *audio.PCM)
	SetStream(h Handle, s Stream)
	SetOffset(h Handle, offset time.Duration)
	Offset(h Handle) time.Duration

	Play(h Handle)
	Pause(h Handle)
	Stop(h Handle)

	// PlayV and PauseV change every listed handle in one step
	PlayV(hs []Handle)
	PauseV(hs []Handle)

	GenFilter() (FilterHandle, error)
	DeleteFilter(f FilterHandle)
	SetFilterFloat(f FilterHandle, p Param, v float32)
	FilterFloat(f FilterHandle, p Param) float32
	SetDirectFilter(h Handle, f FilterHandle)
}

// ErrorHandler receives device call failures
type ErrorHandler func(op string, err error)

// LogErrors is the default ErrorHandler
func LogErrors(op string, err error) {
	log.Printf("Device error in %s: %v", op, err)
}
