package dsp

import "math"

// Synthetic signal generators shared by the package tests. Levels are in
// dBFS, sample counts are explicit so tests can align signals to frame
// boundaries.

// makeSine generates a sine at the given frequency and dBFS level.
func makeSine(freq, levelDB float64, samples, sampleRate int) []float64 {
	amp := math.Pow(10.0, levelDB/20.0)
	out := make([]float64, samples)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = amp * math.Sin(2.0*math.Pi*freq*t)
	}
	return out
}

// makeNoise generates deterministic white noise at the given dBFS level.
// A fixed-seed LCG keeps runs reproducible without math/rand seeding.
func makeNoise(levelDB float64, samples int) []float64 {
	amp := math.Pow(10.0, levelDB/20.0)
	rngState := uint32(12345)
	nextRandom := func() float64 {
		// LCG parameters from Numerical Recipes
		rngState = rngState*1664525 + 1013904223
		return (float64(rngState)/float64(0xFFFFFFFF))*2.0 - 1.0
	}
	out := make([]float64, samples)
	for i := range out {
		out[i] = amp * nextRandom()
	}
	return out
}

// makeClicks generates a single-sample impulse train at the given interval.
func makeClicks(intervalSamples int, level float64, samples int) []float64 {
	out := make([]float64, samples)
	for i := 0; i < samples; i += intervalSamples {
		out[i] = level
	}
	return out
}

// mix sums signals sample by sample, truncating to the shortest.
func mix(signals ...[]float64) []float64 {
	if len(signals) == 0 {
		return nil
	}
	n := len(signals[0])
	for _, s := range signals[1:] {
		if len(s) < n {
			n = len(s)
		}
	}
	out := make([]float64, n)
	for _, s := range signals {
		for i := 0; i < n; i++ {
			out[i] += s[i]
		}
	}
	return out
}

func energyOf(x []float64) float64 {
	var e float64
	for _, s := range x {
		e += s * s
	}
	return e
}
