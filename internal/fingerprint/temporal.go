package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/earmark-audio/earmark/internal/dsp"
)

// Tempo and onset analysis parameters.
const (
	tempoMinBPM = 40.0  // BPM - lower tempo bound
	tempoMaxBPM = 200.0 // BPM - upper tempo bound

	onsetThresholdSigma = 1.0 // std devs above mean flux to call an onset
	onsetMinGapSecs     = 0.1 // s - merge onsets closer than this

	minBeatsForRhythm = 3 // fewer detected beats than this is "unknown", not "stable"
)

// onsetEnvelope is the rectified spectral flux per frame: the summed
// magnitude increase against the previous frame.
func onsetEnvelope(mag [][]float64) []float64 {
	if len(mag) < 2 {
		return nil
	}
	env := make([]float64, len(mag))
	for t := 1; t < len(mag); t++ {
		var flux float64
		for k, m := range mag[t] {
			if d := m - mag[t-1][k]; d > 0 {
				flux += d
			}
		}
		env[t] = flux
	}
	return env
}

// detectOnsets peak-picks the envelope with an adaptive threshold and a
// minimum gap, returning frame indices.
func detectOnsets(env []float64, frameRate float64) []int {
	if len(env) < 3 {
		return nil
	}
	mean := stat.Mean(env, nil)
	std := stat.StdDev(env, nil)
	if math.IsNaN(std) {
		return nil
	}
	threshold := mean + onsetThresholdSigma*std
	minGap := int(onsetMinGapSecs * frameRate)
	if minGap < 1 {
		minGap = 1
	}

	var onsets []int
	last := -minGap
	for t := 1; t < len(env)-1; t++ {
		if env[t] <= threshold || env[t] < env[t-1] || env[t] < env[t+1] {
			continue
		}
		if t-last < minGap {
			continue
		}
		onsets = append(onsets, t)
		last = t
	}
	return onsets
}

// tempoFromEnvelope finds the strongest periodicity in the onset envelope
// by autocorrelation over the lag band implied by [tempoMinBPM,
// tempoMaxBPM], refined by parabolic interpolation.
func tempoFromEnvelope(env []float64, frameRate float64) float64 {
	minLag := int(60.0 / tempoMaxBPM * frameRate)
	maxLag := int(60.0/tempoMinBPM*frameRate) + 1
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(env)-1 {
		maxLag = len(env) - 2
	}
	if maxLag <= minLag {
		return DefaultTempoBPM
	}

	mean := stat.Mean(env, nil)
	centered := make([]float64, len(env))
	for i, e := range env {
		centered[i] = e - mean
	}

	ac := make([]float64, maxLag+2)
	for lag := minLag - 1; lag <= maxLag+1 && lag < len(centered); lag++ {
		if lag < 0 {
			continue
		}
		var sum float64
		for i := 0; i+lag < len(centered); i++ {
			sum += centered[i] * centered[i+lag]
		}
		ac[lag] = sum
	}

	bestLag, bestVal := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		if ac[lag] > bestVal {
			bestVal = ac[lag]
			bestLag = lag
		}
	}
	if bestLag == 0 || bestVal <= 0 {
		return DefaultTempoBPM
	}

	refined := float64(bestLag)
	if bestLag > 0 && bestLag+1 < len(ac) {
		y1, y2, y3 := ac[bestLag-1], ac[bestLag], ac[bestLag+1]
		den := y1 - 2*y2 + y3
		if math.Abs(den) > 1e-12 {
			delta := 0.5 * (y1 - y3) / den
			if delta > -1 && delta < 1 {
				refined += delta
			}
		}
	}

	bpm := 60.0 * frameRate / refined
	return clamp(bpm, tempoMinBPM, tempoMaxBPM)
}

// rhythmStability maps the spread of inter-onset intervals to [0,1].
// Fewer than minBeatsForRhythm onsets reads 0: not enough evidence, which
// is distinct from "perfectly stable".
func rhythmStability(onsets []int) float64 {
	if len(onsets) < minBeatsForRhythm {
		return 0.0
	}
	intervals := make([]float64, len(onsets)-1)
	for i := 1; i < len(onsets); i++ {
		intervals[i-1] = float64(onsets[i] - onsets[i-1])
	}
	mean := stat.Mean(intervals, nil)
	if mean <= 0 {
		return 0.0
	}
	std := stat.StdDev(intervals, nil)
	if math.IsNaN(std) {
		std = 0
	}
	cv := std / mean
	if cv > 1 {
		return 0.0
	}
	return 1 - cv
}

// silenceRatio is the fraction of short frames sitting more than
// silenceFloorDB under the loudest frame.
func silenceRatio(x []float64, sampleRate int) float64 {
	frame := int(silenceFrameSecs * float64(sampleRate))
	if frame < 1 || len(x) < frame {
		return DefaultSilenceRatio
	}

	var levels []float64
	peak := -math.MaxFloat64
	for start := 0; start+frame <= len(x); start += frame {
		db := dsp.LinearToDB(dsp.RMS(x[start : start+frame]))
		levels = append(levels, db)
		if db > peak {
			peak = db
		}
	}

	var silent int
	for _, db := range levels {
		if db < peak-silenceFloorDB {
			silent++
		}
	}
	return float64(silent) / float64(len(levels))
}
