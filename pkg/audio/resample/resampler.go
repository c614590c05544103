// ABOUTME: Linear resampler for streamed stereo frames
// ABOUTME: Converts a pulled frame source to the device rate, including pitch shifts
package resample

// Source pulls frames into dst. It returns the number of frames written and false once the
// source has nothing more to give. A short read with true is an underrun, not the end.
type Source func(dst [][2]float32) (int, bool)

// Resampler performs linear interpolation between a source rate and an output rate
type Resampler struct {
	ratio     float64
	position  float64
	current   [2]float32
	next      [2]float32
	primed    bool
	draining  bool
	exhausted bool

	buf    [][2]float32
	bufPos int
	bufLen int
	ended  bool
}

// New creates a resampler converting inputRate to outputRate
func New(inputRate, outputRate int) *Resampler {
	r := &Resampler{buf: make([][2]float32, 512)}
	r.SetRates(inputRate, outputRate, 1)
	return r
}

// SetRates updates the conversion ratio; pitch scales the input rate
func (r *Resampler) SetRates(inputRate, outputRate int, pitch float32) {
	if inputRate <= 0 || outputRate <= 0 || pitch <= 0 {
		r.ratio = 1
		return
	}
	r.ratio = float64(inputRate) * float64(pitch) / float64(outputRate)
}

// Ratio returns input frames consumed per output frame
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// Read fills out with interpolated frames pulled from src. It returns the frames written
// and false once src is exhausted.
func (r *Resampler) Read(out [][2]float32, src Source) (int, bool) {
	if !r.primed {
		r.primed = true
		frame, ok := r.pull(src)
		if !ok {
			r.exhausted = true
		}
		r.current = frame
		if frame, ok = r.pull(src); ok {
			r.next = frame
		} else {
			r.next = r.current
			r.draining = true
		}
	}

	for i := range out {
		if r.exhausted {
			return i, false
		}

		frac := float32(r.position)
		out[i][0] = r.current[0]*(1-frac) + r.next[0]*frac
		out[i][1] = r.current[1]*(1-frac) + r.next[1]*frac

		r.position += r.ratio
		for r.position >= 1 {
			r.position--
			if r.draining {
				r.exhausted = true
				break
			}
			r.current = r.next
			frame, ok := r.pull(src)
			if !ok {
				// Hold the last frame for one more step, then stop
				frame = r.current
				r.draining = true
			}
			r.next = frame
		}
	}

	return len(out), true
}

// pull returns the next input frame, refilling the scratch buffer from src when empty
func (r *Resampler) pull(src Source) ([2]float32, bool) {
	if r.bufPos >= r.bufLen {
		if r.ended {
			return [2]float32{}, false
		}
		n, ok := src(r.buf)
		r.bufPos, r.bufLen = 0, n
		if !ok {
			r.ended = true
		}
		if n == 0 {
			if r.ended {
				return [2]float32{}, false
			}
			// Underrun: emit silence and try again on the next frame
			return [2]float32{}, true
		}
	}

	frame := r.buf[r.bufPos]
	r.bufPos++
	return frame, true
}

// Reset drops buffered input and interpolation state
func (r *Resampler) Reset() {
	r.position = 0
	r.current = [2]float32{}
	r.next = [2]float32{}
	r.primed = false
	r.draining = false
	r.exhausted = false
	r.bufPos, r.bufLen = 0, 0
	r.ended = false
}
