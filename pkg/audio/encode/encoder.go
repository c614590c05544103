// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all audio encoders
package encode

// Encoder writes stereo float frames to an encoded destination
type Encoder interface {
	// Write encodes frames
	Write(frames [][2]float32) error

	// Close flushes headers and releases encoder resources
	Close() error
}
