package dsp

import "math"

const (
	chromaFFTSize = 4096
	chromaHop     = 1024
	chromaFMin    = 55.0   // A1, below this bin mapping is unreliable
	chromaFMax    = 5000.0 // harmonics above add mostly noise
)

// chromaEnergy folds spectral energy into a 12 x frames pitch-class matrix.
// Rows are classes C..B, columns are analysis frames. Each frame is scaled
// so its strongest class reads 1, which keeps the values comparable across
// frames of very different level; silent frames report a uniform 1/12.
func chromaEnergy(p fftProvider, x []float64, sr int) [][]float64 {
	s := newSTFT(p, chromaFFTSize, chromaHop)
	spectra := s.analyze(x)

	out := make([][]float64, 12)
	for pc := range out {
		out[pc] = make([]float64, len(spectra))
	}

	binHz := float64(sr) / chromaFFTSize
	classes := make([]float64, 12)
	for t, frame := range spectra {
		for c := range classes {
			classes[c] = 0
		}
		var peak float64
		for k := 1; k < len(frame); k++ {
			f := float64(k) * binHz
			if f < chromaFMin || f > chromaFMax {
				continue
			}
			// MIDI note number; 69 is A4 at 440 Hz.
			midi := 12*math.Log2(f/440.0) + 69
			pc := ((int(math.Round(midi)) % 12) + 12) % 12
			e := real(frame[k])*real(frame[k]) + imag(frame[k])*imag(frame[k])
			classes[pc] += e
			if classes[pc] > peak {
				peak = classes[pc]
			}
		}
		if peak > 1e-12 {
			for c := range classes {
				out[c][t] = classes[c] / peak
			}
		} else {
			for c := range classes {
				out[c][t] = 1.0 / 12.0
			}
		}
	}
	return out
}
