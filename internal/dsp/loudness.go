package dsp

import "math"

// Loudness measurement parameters per ITU-R BS.1770-4 / EBU R128.
const (
	loudnessBlockMS  = 400   // ms - momentary block length
	loudnessHopMS    = 100   // ms - block hop (75% overlap)
	absoluteGateLUFS = -70.0 // LUFS - absolute gate on momentary blocks
	relativeGateLU   = 10.0  // LU - relative gate below ungated mean

	// SilenceLUFS is reported when every block falls under the gates.
	SilenceLUFS = -120.0
)

// kWeightingFilters returns the two-stage K-weighting cascade for the given
// sample rate: a high shelf modelling the acoustic effect of the head, then
// the RLB high pass. Coefficients derive from the BS.1770-4 analog
// prototypes, so any sample rate works.
func kWeightingFilters(sampleRate int) (pre, rlb Biquad) {
	fs := float64(sampleRate)

	f0 := 1681.974450955533
	gain := 3.999843853973347
	q := 0.7071752369554196

	k := math.Tan(math.Pi * f0 / fs)
	vh := math.Pow(10, gain/20)
	vb := math.Pow(vh, 0.4996667741545416)

	a0 := 1 + k/q + k*k
	pre.B0 = (vh + vb*k/q + k*k) / a0
	pre.B1 = 2 * (k*k - vh) / a0
	pre.B2 = (vh - vb*k/q + k*k) / a0
	pre.A1 = 2 * (k*k - 1) / a0
	pre.A2 = (1 - k/q + k*k) / a0

	f0 = 38.13547087602444
	q = 0.5003270373238773

	k = math.Tan(math.Pi * f0 / fs)

	a0 = 1 + k/q + k*k
	rlb.B0 = 1 / a0
	rlb.B1 = -2 / a0
	rlb.B2 = 1 / a0
	rlb.A1 = 2 * (k*k - 1) / a0
	rlb.A2 = (1 - k/q + k*k) / a0

	return pre, rlb
}

// blockPowers K-weights every channel and returns the mean-square power of
// each 400 ms block at a 100 ms hop, channels summed. Signals shorter than
// one block yield a single block covering all samples.
func blockPowers(channels [][]float64, sampleRate int) []float64 {
	if len(channels) == 0 || len(channels[0]) == 0 || sampleRate <= 0 {
		return nil
	}

	n := len(channels[0])
	pre, rlb := kWeightingFilters(sampleRate)

	// Per-sample power summed over channels, filters run per channel.
	power := make([]float64, n)
	for _, ch := range channels {
		var preState, rlbState BiquadState
		for i, sample := range ch {
			filtered := preState.Process(&pre, sample)
			filtered = rlbState.Process(&rlb, filtered)
			power[i] += filtered * filtered
		}
	}

	blockSize := sampleRate * loudnessBlockMS / 1000
	hopSize := sampleRate * loudnessHopMS / 1000
	if blockSize > n {
		blockSize = n
	}
	if hopSize < 1 {
		hopSize = 1
	}

	var blocks []float64
	for start := 0; start+blockSize <= n; start += hopSize {
		var sum float64
		for _, p := range power[start : start+blockSize] {
			sum += p
		}
		blocks = append(blocks, sum/float64(blockSize))
	}
	return blocks
}

func powerToLUFS(p float64) float64 {
	if p <= 0 {
		return SilenceLUFS
	}
	return -0.691 + 10*math.Log10(p)
}

// IntegratedLUFS measures gated integrated loudness per EBU R128: an
// absolute gate at -70 LUFS, then a relative gate 10 LU under the mean of
// the surviving blocks. Returns SilenceLUFS when nothing passes.
func IntegratedLUFS(channels [][]float64, sampleRate int) float64 {
	blocks := blockPowers(channels, sampleRate)
	if len(blocks) == 0 {
		return SilenceLUFS
	}

	var (
		sum   float64
		count int
	)
	for _, p := range blocks {
		if powerToLUFS(p) > absoluteGateLUFS {
			sum += p
			count++
		}
	}
	if count == 0 {
		return SilenceLUFS
	}

	relativeThreshold := powerToLUFS(sum/float64(count)) - relativeGateLU

	sum = 0
	count = 0
	for _, p := range blocks {
		if powerToLUFS(p) > relativeThreshold {
			sum += p
			count++
		}
	}
	if count == 0 {
		return SilenceLUFS
	}
	return powerToLUFS(sum / float64(count))
}

// MomentaryLoudness returns the ungated per-block loudness series, one LUFS
// value per 100 ms hop.
func MomentaryLoudness(channels [][]float64, sampleRate int) []float64 {
	blocks := blockPowers(channels, sampleRate)
	out := make([]float64, len(blocks))
	for i, p := range blocks {
		out[i] = powerToLUFS(p)
	}
	return out
}

// CrestFactorDB is the peak-to-RMS ratio in dB. Silence reports 0.
func CrestFactorDB(x []float64) float64 {
	rms := RMS(x)
	peak := PeakAbs(x)
	if rms <= 1e-9 || peak <= 1e-9 {
		return 0
	}
	return 20 * math.Log10(peak/rms)
}

// True peak interpolation per BS.1770-4 Annex 2: 4x oversampling through a
// windowed-sinc polyphase filter.
const (
	truePeakOversample = 4 // x - oversampling factor
	truePeakHalfTaps   = 6 // samples - interpolator reach each side
)

// TruePeakDB returns the inter-sample peak across all channels in dBTP.
// Silence reports SilenceLUFS.
func TruePeakDB(channels [][]float64) float64 {
	var peak float64
	for _, ch := range channels {
		for i, s := range ch {
			if a := math.Abs(s); a > peak {
				peak = a
			}
			for phase := 1; phase < truePeakOversample; phase++ {
				frac := float64(phase) / truePeakOversample
				var v, norm float64
				for k := -truePeakHalfTaps; k < truePeakHalfTaps; k++ {
					idx := i + k
					if idx < 0 || idx >= len(ch) {
						continue
					}
					t := float64(k) - frac
					w := sincHann(t)
					v += ch[idx] * w
					norm += w
				}
				if norm > 1e-9 {
					v /= norm
				}
				if a := math.Abs(v); a > peak {
					peak = a
				}
			}
		}
	}
	if peak <= 0 {
		return SilenceLUFS
	}
	return 20 * math.Log10(peak)
}

// sincHann is a Hann-windowed sinc tap at offset t samples.
func sincHann(t float64) float64 {
	if math.Abs(t) >= truePeakHalfTaps {
		return 0
	}
	window := 0.5 * (1 + math.Cos(math.Pi*t/truePeakHalfTaps))
	if math.Abs(t) < 1e-12 {
		return window
	}
	return window * math.Sin(math.Pi*t) / (math.Pi * t)
}
