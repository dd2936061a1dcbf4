package dsp

import "math"

// Pitch tracking parameters. Frames whose normalized autocorrelation peak
// falls under the voicing threshold, or whose energy sits near the noise
// floor, report 0 (unvoiced).
const (
	pitchFrameSize       = 2048
	pitchHop             = 512
	pitchVoicingMin      = 0.30  // normalized autocorrelation peak
	pitchEnergyFloor     = 0.005 // frame RMS under this is silence
	pitchMaxCandidateLag = 4     // parabolic refinement needs lag-1..lag+1
)

// trackPitch estimates f0 per frame via normalized autocorrelation over the
// lag band implied by [fMin, fMax], with parabolic peak refinement.
func trackPitch(x []float64, sr int, fMin, fMax float64) []float64 {
	minLag := int(float64(sr) / fMax)
	maxLag := int(float64(sr) / fMin)
	if minLag < pitchMaxCandidateLag {
		minLag = pitchMaxCandidateLag
	}
	if maxLag > pitchFrameSize-2 {
		maxLag = pitchFrameSize - 2
	}

	nFrames := 1
	if len(x) > pitchFrameSize {
		nFrames = 1 + (len(x)-pitchFrameSize)/pitchHop
	}

	f0 := make([]float64, nFrames)
	frame := make([]float64, pitchFrameSize)
	ac := make([]float64, maxLag+2)

	for t := 0; t < nFrames; t++ {
		start := t * pitchHop
		n := copy(frame, x[start:min(start+pitchFrameSize, len(x))])
		for i := n; i < pitchFrameSize; i++ {
			frame[i] = 0
		}

		// Remove DC so sustained offsets do not masquerade as pitch.
		var mean float64
		for _, s := range frame[:n] {
			mean += s
		}
		if n > 0 {
			mean /= float64(n)
		}
		var energy float64
		for i := 0; i < n; i++ {
			frame[i] -= mean
			energy += frame[i] * frame[i]
		}
		if n == 0 || math.Sqrt(energy/float64(n)) < pitchEnergyFloor {
			continue // unvoiced
		}

		for lag := minLag; lag <= maxLag+1 && lag < n; lag++ {
			var sum float64
			for i := 0; i+lag < n; i++ {
				sum += frame[i] * frame[i+lag]
			}
			ac[lag] = sum
		}

		bestLag, bestVal := 0, 0.0
		for lag := minLag; lag <= maxLag && lag < n-1; lag++ {
			if ac[lag] > bestVal && ac[lag] >= ac[lag-1] && ac[lag] >= ac[lag+1] {
				bestVal = ac[lag]
				bestLag = lag
			}
		}
		if bestLag == 0 || bestVal/energy < pitchVoicingMin {
			continue // unvoiced
		}

		// Parabolic interpolation around the peak for sub-sample lag.
		refined := float64(bestLag)
		y1, y2, y3 := ac[bestLag-1], ac[bestLag], ac[bestLag+1]
		den := y1 - 2*y2 + y3
		if math.Abs(den) > 1e-12 {
			delta := 0.5 * (y1 - y3) / den
			if delta > -1 && delta < 1 {
				refined += delta
			}
		}

		f := float64(sr) / refined
		if f >= fMin && f <= fMax {
			f0[t] = f
		}
	}
	return f0
}
