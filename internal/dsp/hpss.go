package dsp

import (
	"math"
	"sort"
)

// Harmonic/percussive separation parameters. Median filtering along the
// time axis enhances sustained (harmonic) energy, along the frequency axis
// transient (percussive) energy; Wiener masks split the original spectrum.
const (
	hpssFFTSize    = 2048
	hpssHop        = 512
	hpssTimeKernel = 17   // frames - harmonic median width, odd
	hpssFreqKernel = 17   // bins - percussive median width, odd
	hpssMaskPower  = 2.0  // Wiener mask exponent
	hpssEpsilon    = 1e-9 // mask denominator guard
)

// hpss separates x into harmonic and percussive components of equal length.
func hpss(p fftProvider, x []float64) (harmonic, percussive []float64, err error) {
	s := newSTFT(p, hpssFFTSize, hpssHop)
	spec := s.analyze(x)
	mag := magnitudes(spec)

	enhH := medianAcrossTime(mag, hpssTimeKernel)
	enhP := medianAcrossFreq(mag, hpssFreqKernel)

	specH := make([][]complex128, len(spec))
	specP := make([][]complex128, len(spec))
	for t := range spec {
		bins := len(spec[t])
		specH[t] = make([]complex128, bins)
		specP[t] = make([]complex128, bins)
		for k := 0; k < bins; k++ {
			h2 := pow(enhH[t][k], hpssMaskPower)
			p2 := pow(enhP[t][k], hpssMaskPower)
			den := h2 + p2 + hpssEpsilon
			specH[t][k] = spec[t][k] * complex(h2/den, 0)
			specP[t][k] = spec[t][k] * complex(p2/den, 0)
		}
	}

	harmonic = s.synthesize(specH, len(x))
	percussive = s.synthesize(specP, len(x))
	return harmonic, percussive, nil
}

// medianAcrossTime filters each frequency bin with a median over nearby
// frames. The window shrinks at the edges instead of padding.
func medianAcrossTime(mag [][]float64, kernel int) [][]float64 {
	nf := len(mag)
	out := make([][]float64, nf)
	half := kernel / 2
	scratch := make([]float64, 0, kernel)
	for t := 0; t < nf; t++ {
		bins := len(mag[t])
		out[t] = make([]float64, bins)
		lo := t - half
		if lo < 0 {
			lo = 0
		}
		hi := t + half
		if hi > nf-1 {
			hi = nf - 1
		}
		for k := 0; k < bins; k++ {
			scratch = scratch[:0]
			for tt := lo; tt <= hi; tt++ {
				scratch = append(scratch, mag[tt][k])
			}
			out[t][k] = median(scratch)
		}
	}
	return out
}

// medianAcrossFreq filters each frame with a median over nearby bins.
func medianAcrossFreq(mag [][]float64, kernel int) [][]float64 {
	out := make([][]float64, len(mag))
	half := kernel / 2
	scratch := make([]float64, 0, kernel)
	for t := range mag {
		bins := len(mag[t])
		out[t] = make([]float64, bins)
		for k := 0; k < bins; k++ {
			lo := k - half
			if lo < 0 {
				lo = 0
			}
			hi := k + half
			if hi > bins-1 {
				hi = bins - 1
			}
			scratch = scratch[:0]
			for kk := lo; kk <= hi; kk++ {
				scratch = append(scratch, mag[t][kk])
			}
			out[t][k] = median(scratch)
		}
	}
	return out
}

// median mutates its argument (sorts in place).
func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sort.Float64s(v)
	mid := len(v) / 2
	if len(v)%2 == 1 {
		return v[mid]
	}
	return 0.5 * (v[mid-1] + v[mid])
}

// pow is a fast path for the common mask exponent 2.
func pow(x, p float64) float64 {
	if p == 2.0 {
		return x * x
	}
	return math.Pow(x, p)
}
