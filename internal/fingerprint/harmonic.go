package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/earmark-audio/earmark/internal/dsp"
)

// The harmonic features call through the numeric backend. A failed backend
// call substitutes the neutral value rather than propagating: a zero
// percussive part, an all-unvoiced pitch track, a uniform chroma matrix.

// harmonicRatio is the harmonic share of total separated energy.
func harmonicRatio(b dsp.Backend, x []float64, sampleRate int) float64 {
	h, p, err := b.SeparateHarmonicPercussive(x, sampleRate)
	if err != nil {
		h, p = dsp.NeutralSeparation(x)
	}
	hRMS, pRMS := dsp.RMS(h), dsp.RMS(p)
	if hRMS+pRMS <= 1e-9 {
		return DefaultHarmonicRatio
	}
	return hRMS / (hRMS + pRMS)
}

// pitchStability maps the coefficient of variation of voiced pitch frames
// through 1/(1+CV*scale). The scale makes it deliberately more sensitive
// than the generic stability measures.
func pitchStability(b dsp.Backend, x []float64, sampleRate int) float64 {
	f0, err := b.TrackPitch(x, sampleRate, pitchFMin, pitchFMax)
	if err != nil {
		f0 = dsp.NeutralPitch(len(x) / analysisHop)
	}

	var voiced []float64
	for _, f := range f0 {
		if f > 0 {
			voiced = append(voiced, f)
		}
	}
	if len(voiced) < 2 {
		return DefaultPitchStability
	}

	mean := stat.Mean(voiced, nil)
	std := stat.StdDev(voiced, nil)
	if mean <= 0 || math.IsNaN(std) {
		return DefaultPitchStability
	}
	cv := std / mean
	return 1.0 / (1.0 + cv*pitchStabilityScale)
}

// chromaEnergyFeature is the mean chroma magnitude normalized against the
// empirical ceiling.
func chromaEnergyFeature(b dsp.Backend, x []float64, sampleRate int) float64 {
	chroma, err := b.ChromaEnergy(x, sampleRate)
	if err != nil {
		chroma = dsp.UniformChroma(len(x)/analysisHop + 1)
	}
	if len(chroma) == 0 {
		return DefaultChromaEnergy
	}

	var sum float64
	var n int
	for _, row := range chroma {
		for _, e := range row {
			sum += e
			n++
		}
	}
	if n == 0 {
		return DefaultChromaEnergy
	}
	return clamp(sum/float64(n)/chromaCeiling, 0, 1)
}
