package recorder

import "github.com/oov/audio/resampler"

const resampleQuality = 10

// resampleFunc converts one chunk of mono samples to the sink rate. The
// returned slice is reused by the next call.
type resampleFunc func(in []float32) []float32

func newResampleFunction(sourceRate, sinkRate int) resampleFunc {
	if sourceRate == sinkRate {
		return func(in []float32) []float32 { return in }
	}

	r := resampler.New(1, sourceRate, sinkRate, resampleQuality)
	var buf []float32
	return func(in []float32) []float32 {
		// Headroom for the rounding of the rate ratio.
		need := len(in)*sinkRate/sourceRate + 16
		if cap(buf) < need {
			buf = make([]float32, need)
		}
		out := buf[:need]

		written := 0
		for len(in) > 0 && written < len(out) {
			read, w := r.ProcessFloat32(0, in, out[written:])
			if read == 0 && w == 0 {
				break
			}
			in = in[read:]
			written += w
		}
		return out[:written]
	}
}
