// ABOUTME: Thread-safe ring buffer of stereo frames
// ABOUTME: Sits between a stream's decode goroutine and the device pulling audio
package stream

import "sync"

// RingBuffer provides a thread-safe circular buffer for stereo frames. Every Reset starts
// a new generation; writes and end marks from an older generation are dropped.
type RingBuffer struct {
	buffer   [][2]float32
	readPos  int
	writePos int
	size     int
	count    int   // frames currently in buffer
	consumed int64 // frames read since the last reset
	gen      uint64
	ended    bool
	mu       sync.Mutex
}

// NewRingBuffer creates a ring buffer with given capacity (in frames)
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		buffer: make([][2]float32, capacity),
		size:   capacity,
	}
}

// Write adds frames to the current generation and returns how many fit
func (rb *RingBuffer) Write(frames [][2]float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.write(frames)
}

// WriteGen adds frames only if gen is still the current generation
func (rb *RingBuffer) WriteGen(gen uint64, frames [][2]float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if gen != rb.gen {
		return 0
	}
	return rb.write(frames)
}

func (rb *RingBuffer) write(frames [][2]float32) int {
	written := 0
	for i := 0; i < len(frames) && rb.count < rb.size; i++ {
		rb.buffer[rb.writePos] = frames[i]
		rb.writePos = (rb.writePos + 1) % rb.size
		rb.count++
		written++
	}
	return written
}

// End marks that gen will write no more frames
func (rb *RingBuffer) End(gen uint64) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if gen == rb.gen {
		rb.ended = true
	}
}

// Ended reports whether the current generation was marked ended
func (rb *RingBuffer) Ended() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.ended
}

// Drained reports whether the current generation ended and every frame was read
func (rb *RingBuffer) Drained() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.ended && rb.count == 0
}

// Read retrieves frames from the ring buffer
func (rb *RingBuffer) Read(frames [][2]float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for i := 0; i < len(frames) && rb.count > 0; i++ {
		frames[i] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
		rb.count--
		read++
	}

	// Zero-fill remaining if underrun
	for i := read; i < len(frames); i++ {
		frames[i] = [2]float32{}
	}

	rb.consumed += int64(read)
	return read
}

// Available returns the number of frames available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of free slots in the buffer
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.count
}

// Consumed returns the frames read since the last reset
func (rb *RingBuffer) Consumed() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.consumed
}

// Reset drops all buffered frames and starts a new generation, which it returns
func (rb *RingBuffer) Reset() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.readPos = 0
	rb.writePos = 0
	rb.count = 0
	rb.consumed = 0
	rb.ended = false
	rb.gen++
	return rb.gen
}
