package audio

import "math"

// Downmix averages interleaved multi-channel samples into mono int16 samples.
// Input values are expected in 16-bit range; results are clamped.
func Downmix(interleaved []int, channels int) []int16 {
	if channels <= 1 {
		out := make([]int16, len(interleaved))
		for i, v := range interleaved {
			out[i] = clamp16(int64(v))
		}
		return out
	}
	frames := len(interleaved) / channels
	out := make([]int16, frames)
	for i := range frames {
		var sum int64
		for c := range channels {
			sum += int64(interleaved[i*channels+c])
		}
		out[i] = clamp16(sum / int64(channels))
	}
	return out
}

// Resample converts mono samples from srcRate to dstRate using linear
// interpolation. If the rates match or are invalid the input is returned
// unchanged.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	ratio := float64(srcRate) / float64(dstRate)
	last := len(samples) - 1
	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx > last {
			idx = last
		}
		frac := pos - float64(idx)
		s0 := float64(samples[idx])
		s1 := s0
		if idx < last {
			s1 = float64(samples[idx+1])
		}
		out[i] = int16(s0*(1-frac) + s1*frac)
	}
	return out
}

// RMS returns the root-mean-square energy of samples in 16-bit PCM units
// (0–32767). Returns 0 for an empty slice.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func clamp16(v int64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
