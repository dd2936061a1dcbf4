package fingerprint

import "math"

// The three spectral features all read the same mean power spectrum; the
// spectrum is computed once per extraction and passed in.

const rolloffFraction = 0.85 // fraction of cumulative energy under the rolloff point

// spectralCentroid is the power-weighted mean frequency as a fraction of
// Nyquist.
func spectralCentroid(power []float64, sampleRate int) float64 {
	nyquist := float64(sampleRate) / 2
	binHz := nyquist / float64(len(power)-1)

	var num, den float64
	for k, p := range power {
		num += float64(k) * binHz * p
		den += p
	}
	if den <= 1e-12 {
		return DefaultSpectralCentroid
	}
	return num / den / nyquist
}

// spectralRolloff is the frequency below which rolloffFraction of the
// energy sits, as a fraction of Nyquist.
func spectralRolloff(power []float64, sampleRate int) float64 {
	var total float64
	for _, p := range power {
		total += p
	}
	if total <= 1e-12 {
		return DefaultSpectralRolloff
	}

	target := rolloffFraction * total
	var cum float64
	for k, p := range power {
		cum += p
		if cum >= target {
			return float64(k) / float64(len(power)-1)
		}
	}
	return 1.0
}

// spectralFlatness is the geometric over arithmetic mean of the power
// spectrum: near 1 for noise, near 0 for tonal material.
func spectralFlatness(power []float64) float64 {
	if len(power) == 0 {
		return DefaultSpectralFlatness
	}
	const eps = 1e-12
	var logSum, sum float64
	for _, p := range power {
		logSum += math.Log(p + eps)
		sum += p + eps
	}
	n := float64(len(power))
	arith := sum / n
	if arith <= eps {
		return DefaultSpectralFlatness
	}
	return math.Exp(logSum/n) / arith
}
