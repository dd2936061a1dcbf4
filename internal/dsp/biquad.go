package dsp

import "math"

// Biquad holds the coefficients of a second-order IIR section, normalized
// so that a0 == 1. Coefficients are shared across channels; each channel
// carries its own BiquadState.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// BiquadState is one channel's filter memory, evaluated in transposed
// direct form II.
type BiquadState struct {
	z1, z2 float64
}

// Process advances the filter by one sample and returns the output.
func (s *BiquadState) Process(c *Biquad, in float64) float64 {
	out := c.B0*in + s.z1
	s.z1 = c.B1*in - c.A1*out + s.z2
	s.z2 = c.B2*in - c.A2*out
	return out
}

// Reset clears the filter memory.
func (s *BiquadState) Reset() {
	s.z1, s.z2 = 0, 0
}

// Filter runs the section over samples in place with fresh state.
func (c *Biquad) Filter(samples []float64) {
	var state BiquadState
	for i, x := range samples {
		samples[i] = state.Process(c, x)
	}
}

// The constructors below build the classic RBJ cookbook sections. Gains are
// in dB, frequencies in Hz; shelves use the maximum slope that stays
// monotonic (S = 1).

// PeakingEQ returns a peaking (bell) section centered on freq.
func PeakingEQ(sampleRate int, freq, q, gainDB float64) Biquad {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / float64(sampleRate)
	alpha := math.Sin(w0) / (2 * q)
	cosw := math.Cos(w0)

	a0 := 1 + alpha/a
	return Biquad{
		B0: (1 + alpha*a) / a0,
		B1: -2 * cosw / a0,
		B2: (1 - alpha*a) / a0,
		A1: -2 * cosw / a0,
		A2: (1 - alpha/a) / a0,
	}
}

// LowShelf returns a shelving section boosting or cutting below freq.
func LowShelf(sampleRate int, freq, gainDB float64) Biquad {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / float64(sampleRate)
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / 2 * math.Sqrt2
	beta := 2 * math.Sqrt(a) * alpha

	a0 := (a + 1) + (a-1)*cosw + beta
	return Biquad{
		B0: a * ((a + 1) - (a-1)*cosw + beta) / a0,
		B1: 2 * a * ((a - 1) - (a+1)*cosw) / a0,
		B2: a * ((a + 1) - (a-1)*cosw - beta) / a0,
		A1: -2 * ((a - 1) + (a+1)*cosw) / a0,
		A2: ((a + 1) + (a-1)*cosw - beta) / a0,
	}
}

// HighShelf returns a shelving section boosting or cutting above freq.
func HighShelf(sampleRate int, freq, gainDB float64) Biquad {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / float64(sampleRate)
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / 2 * math.Sqrt2
	beta := 2 * math.Sqrt(a) * alpha

	a0 := (a + 1) - (a-1)*cosw + beta
	return Biquad{
		B0: a * ((a + 1) + (a-1)*cosw + beta) / a0,
		B1: -2 * a * ((a - 1) + (a+1)*cosw) / a0,
		B2: a * ((a + 1) + (a-1)*cosw - beta) / a0,
		A1: 2 * ((a - 1) - (a+1)*cosw) / a0,
		A2: ((a + 1) - (a-1)*cosw - beta) / a0,
	}
}
