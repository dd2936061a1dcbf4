package mastering

import (
	"math"

	"github.com/earmark-audio/earmark/internal/dsp"
)

// Shared processing primitives. Each branch assembles its chain from these;
// none of them allocates a new buffer, everything works on the chunk in
// place. Filter state is fresh per call, which is what makes chunks
// independent and the crossfade necessary.

const (
	// Tone stage centers. The five shaping moves cover the ranges the
	// fingerprint's band balance measures, so a deficit in a band maps
	// directly onto the stage that repairs it.
	subBassHz    = 40.0    // Hz - sub-bass bell center
	subBassQ     = 1.1     // narrow enough to leave the bass shelf alone
	subBassScale = 0.6     // sub-bass runs at this fraction of the bass boost
	bassShelfHz  = 100.0   // Hz - bass shelf corner
	warmthHz     = 250.0   // Hz - low-mid body bell
	warmthQ      = 0.9     // wide, warmth moves should never sound surgical
	presenceHz   = 3500.0  // Hz - articulation bell
	presenceQ    = 0.8     // wide
	airShelfHz   = 11000.0 // Hz - high shelf corner for sheen

	// Limiter timing.
	limiterLookaheadSecs = 0.005 // s - gain reduction engages this far ahead of a peak
	limiterReleaseSecs   = 0.050 // s - recovery time constant back toward unity

	// Expander detector.
	expanderWindowSecs = 0.050 // s - RMS detector window
	expanderSlope      = 0.4   // dB of gain per dB of window level above the chunk mean
	expanderFloorDB    = -70.0 // dB - windows below this stay untouched

	// Level floor shared by the RMS helpers.
	levelFloorDB = -120.0 // dB - reported for silent material
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// smoothstep ramps from 0 at lo to 1 at hi with zero slope at both ends,
// so a feature-driven modulation responds continuously to its feature.
func smoothstep(lo, hi, x float64) float64 {
	t := clamp((x-lo)/(hi-lo), 0, 1)
	return t * t * (3 - 2*t)
}

// applyGain scales every channel by a flat gain.
func applyGain(chunk [][]float64, gainDB float64) {
	if gainDB == 0 {
		return
	}
	g := dsp.DBToLinear(gainDB)
	for _, ch := range chunk {
		for i := range ch {
			ch[i] *= g
		}
	}
}

// peakingBoost runs a bell filter over each channel with fresh state.
func peakingBoost(chunk [][]float64, sampleRate int, freq, q, gainDB float64) {
	bq := dsp.PeakingEQ(sampleRate, freq, q, gainDB)
	for _, ch := range chunk {
		bq.Filter(ch)
	}
}

// lowShelfBoost runs a low shelf over each channel with fresh state.
func lowShelfBoost(chunk [][]float64, sampleRate int, freq, gainDB float64) {
	bq := dsp.LowShelf(sampleRate, freq, gainDB)
	for _, ch := range chunk {
		bq.Filter(ch)
	}
}

// highShelfBoost runs a high shelf over each channel with fresh state.
func highShelfBoost(chunk [][]float64, sampleRate int, freq, gainDB float64) {
	bq := dsp.HighShelf(sampleRate, freq, gainDB)
	for _, ch := range chunk {
		bq.Filter(ch)
	}
}

// stereoWiden scales the side signal by 1+amount in the mid/side domain.
// Mono and multichannel chunks pass through untouched; width only means
// something for a stereo pair.
func stereoWiden(chunk [][]float64, amount float64) {
	if len(chunk) != 2 || amount == 0 {
		return
	}
	left, right := chunk[0], chunk[1]
	scale := 1 + amount
	for i := range left {
		mid := (left[i] + right[i]) / 2
		side := (left[i] - right[i]) / 2 * scale
		left[i] = mid + side
		right[i] = mid - side
	}
}

// softClipChunk leaves samples under the threshold untouched and maps the
// region above it onto a tanh curve that saturates at the ceiling. The
// curve meets the linear region with slope one, so the knee is inaudible
// as a discontinuity; output magnitude never exceeds the ceiling.
func softClipChunk(chunk [][]float64, thresholdDB, ceilingDB float64) {
	threshold := dsp.DBToLinear(thresholdDB)
	ceiling := dsp.DBToLinear(ceilingDB)
	span := ceiling - threshold
	for _, ch := range chunk {
		for i, x := range ch {
			a := math.Abs(x)
			if a <= threshold {
				continue
			}
			var shaped float64
			if span > 1e-9 {
				shaped = threshold + span*math.Tanh((a-threshold)/span)
			} else {
				shaped = ceiling
			}
			if x < 0 {
				shaped = -shaped
			}
			ch[i] = shaped
		}
	}
}

// limitPeaks is a lookahead brickwall. A sliding maximum of the
// cross-channel peak envelope over the lookahead window lets the gain
// reach its reduced value before the peak arrives; attack is instant in
// the lookahead domain and release is a first-order glide back to unity.
// No sample leaves above the ceiling.
func limitPeaks(chunk [][]float64, sampleRate int, ceilingDB float64) {
	if len(chunk) == 0 || len(chunk[0]) == 0 {
		return
	}
	n := len(chunk[0])
	ceiling := dsp.DBToLinear(ceilingDB)

	look := int(limiterLookaheadSecs * float64(sampleRate))
	if look < 1 {
		look = 1
	}

	env := make([]float64, n)
	for _, ch := range chunk {
		for i, x := range ch {
			if a := math.Abs(x); a > env[i] {
				env[i] = a
			}
		}
	}

	// Monotonic deque over [i, i+look] keeps the forward sliding maximum
	// linear in the chunk length.
	target := make([]float64, n)
	dq := make([]int, 0, look+1)
	for i := n - 1; i >= 0; i-- {
		for len(dq) > 0 && dq[0] > i+look {
			dq = dq[1:]
		}
		for len(dq) > 0 && env[dq[len(dq)-1]] <= env[i] {
			dq = dq[:len(dq)-1]
		}
		dq = append(dq, i)

		if m := env[dq[0]]; m > ceiling {
			target[i] = ceiling / m
		} else {
			target[i] = 1
		}
	}

	release := math.Exp(-1 / (limiterReleaseSecs * float64(sampleRate)))
	gain := 1.0
	for i := 0; i < n; i++ {
		if t := target[i]; t < gain {
			gain = t
		} else {
			gain = t + (gain-t)*release
		}
		for _, ch := range chunk {
			ch[i] *= gain
		}
	}
}

// expand nudges louder stretches up and quieter stretches down relative to
// the chunk's mean level, working on 50 ms RMS windows with the gain
// interpolated between window centers. Per-window gain never moves more
// than half the lift in either direction, which bounds the crest increase
// at liftDB. Windows under the detector floor are left alone so pauses and
// noise beds do not pump.
func expand(chunk [][]float64, sampleRate int, liftDB float64) {
	if liftDB <= 0 || len(chunk) == 0 || len(chunk[0]) == 0 {
		return
	}
	n := len(chunk[0])
	win := int(expanderWindowSecs * float64(sampleRate))
	if win < 1 {
		win = 1
	}
	nw := (n + win - 1) / win

	levels := make([]float64, nw)
	for j := 0; j < nw; j++ {
		start := j * win
		end := start + win
		if end > n {
			end = n
		}
		var sum float64
		for _, ch := range chunk {
			for _, x := range ch[start:end] {
				sum += x * x
			}
		}
		count := float64((end - start) * len(chunk))
		levels[j] = dsp.LinearToDB(math.Sqrt(sum / count))
	}

	var mean float64
	voiced := 0
	for _, l := range levels {
		if l > expanderFloorDB {
			mean += l
			voiced++
		}
	}
	if voiced == 0 {
		return
	}
	mean /= float64(voiced)

	half := liftDB / 2
	gains := make([]float64, nw)
	for j, l := range levels {
		if l <= expanderFloorDB {
			continue
		}
		gains[j] = clamp(expanderSlope*(l-mean), -half, half)
	}

	for i := 0; i < n; i++ {
		pos := (float64(i) - float64(win)/2) / float64(win)
		j0 := int(math.Floor(pos))
		frac := pos - float64(j0)
		j1 := j0 + 1
		if j0 < 0 {
			j0, j1, frac = 0, 0, 0
		}
		if j1 >= nw {
			j1 = nw - 1
		}
		if j0 >= nw {
			j0 = nw - 1
		}
		g := dsp.DBToLinear(gains[j0]*(1-frac) + gains[j1]*frac)
		for _, ch := range chunk {
			ch[i] *= g
		}
	}
}

// chunkRMSDB returns the chunk's overall RMS level for progress reporting.
func chunkRMSDB(chunk [][]float64) float64 {
	var sum float64
	count := 0
	for _, ch := range chunk {
		for _, x := range ch {
			sum += x * x
		}
		count += len(ch)
	}
	if count == 0 {
		return levelFloorDB
	}
	rms := math.Sqrt(sum / float64(count))
	if db := dsp.LinearToDB(rms); db > levelFloorDB {
		return db
	}
	return levelFloorDB
}
