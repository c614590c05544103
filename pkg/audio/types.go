// ABOUTME: Audio type definitions
// ABOUTME: Defines playback status, positions, formats and decoded PCM buffers
package audio

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// ErrUnknownStatus is returned by ParseStatus for names outside the status set
var ErrUnknownStatus = errors.New("unknown playback status")

// Status is the playback status of a sound source
type Status int

const (
	StatusStopped Status = iota
	StatusPaused
	StatusPlaying
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPaused:
		return "paused"
	case StatusPlaying:
		return "playing"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus parses the wire name of a status
func ParseStatus(name string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "stopped", "stop":
		return StatusStopped, nil
	case "paused", "pause":
		return StatusPaused, nil
	case "playing", "play":
		return StatusPlaying, nil
	}
	return StatusStopped, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
}

// Vector3 is a position in 3D space
type Vector3 struct {
	X, Y, Z float32
}

// Format describes a device output format
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// PCM holds fully decoded stereo audio
type PCM struct {
	Frames     [][2]float32
	SampleRate int
}

// Duration returns the playing time of the buffer
func (p *PCM) Duration() time.Duration {
	if p == nil {
		return 0
	}
	return FramesToDuration(int64(len(p.Frames)), p.SampleRate)
}

// FramesToDuration converts a frame count at sampleRate to a duration
func FramesToDuration(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(sampleRate))
}

// DurationToFrames converts a duration to a frame count at sampleRate
func DurationToFrames(d time.Duration, sampleRate int) int64 {
	return int64(d) * int64(sampleRate) / int64(time.Second)
}

// Int16ToFloat maps a 16-bit sample to [-1, 1)
func Int16ToFloat(sample int16) float32 {
	return float32(sample) / 32768.0
}

// FloatToInt16 maps a float sample to 16-bit with clipping
func FloatToInt16(sample float32) int16 {
	if sample >= 1 {
		return 32767
	}
	if sample <= -1 {
		return -32768
	}
	return int16(sample * 32767)
}

// IntToFloat maps an integer sample of the given bit depth to [-1, 1)
func IntToFloat(sample int32, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		return 0
	}
	return float32(float64(sample) / float64(int64(1)<<(bitDepth-1)))
}
