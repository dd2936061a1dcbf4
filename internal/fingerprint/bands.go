package fingerprint

const numBands = 7

// Band edges in Hz: sub-bass, bass, low-mid, mid, high-mid, presence, air.
// The top edge caps at Nyquist for low sample rates.
var bandEdgesHz = [numBands + 1]float64{20, 60, 250, 500, 2000, 4000, 6000, 20000}

// meanPowerSpectrum averages the squared magnitudes across frames, giving
// the long-term power distribution the band and spectral features share.
func meanPowerSpectrum(mag [][]float64) []float64 {
	if len(mag) == 0 {
		return nil
	}
	power := make([]float64, len(mag[0]))
	for _, frame := range mag {
		for k, m := range frame {
			power[k] += m * m
		}
	}
	inv := 1.0 / float64(len(mag))
	for k := range power {
		power[k] *= inv
	}
	return power
}

// bandEnergies integrates the mean power spectrum over the seven bands.
// ok is false when the spectrum carries no usable energy.
func bandEnergies(power []float64, sampleRate int) (e [numBands]float64, ok bool) {
	if len(power) < 2 || sampleRate <= 0 {
		return e, false
	}
	nyquist := float64(sampleRate) / 2
	binHz := nyquist / float64(len(power)-1)

	var total float64
	for k := 1; k < len(power); k++ {
		f := float64(k) * binHz
		for b := 0; b < numBands; b++ {
			lo, hi := bandEdgesHz[b], bandEdgesHz[b+1]
			if hi > nyquist {
				hi = nyquist
			}
			if f >= lo && f < hi {
				e[b] += power[k]
				total += power[k]
				break
			}
		}
	}
	return e, total > 1e-12
}

// bandPercents converts band energies to percentages of their total.
func bandPercents(e [numBands]float64) [numBands]float64 {
	var total float64
	for _, v := range e {
		total += v
	}
	var pct [numBands]float64
	if total <= 0 {
		return pct
	}
	for b, v := range e {
		pct[b] = 100 * v / total
	}
	return pct
}

// bassMidRatio compares the bass band (60-250 Hz) against the mid band
// (500-2000 Hz). A missing mid band reads as the neutral 1.0.
func bassMidRatio(e [numBands]float64) float64 {
	bass, mid := e[1], e[3]
	if mid <= 1e-12 {
		return DefaultBassMidRatio
	}
	return bass / mid
}
