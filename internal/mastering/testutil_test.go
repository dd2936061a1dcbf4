package mastering

import (
	"math"

	"github.com/earmark-audio/earmark/internal/dsp"
	"github.com/earmark-audio/earmark/internal/fingerprint"
)

const testSR = 44100

// sineChunk synthesizes frames of a sine at the given level, duplicated
// across channels.
func sineChunk(freq, levelDB float64, frames, channels int) [][]float64 {
	amp := dsp.DBToLinear(levelDB)
	base := make([]float64, frames)
	for i := range base {
		base[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(testSR))
	}
	chunk := make([][]float64, channels)
	for c := range chunk {
		chunk[c] = append([]float64(nil), base...)
	}
	return chunk
}

// constChunk fills every channel with a single value.
func constChunk(value float64, frames, channels int) [][]float64 {
	chunk := make([][]float64, channels)
	for c := range chunk {
		chunk[c] = make([]float64, frames)
		for i := range chunk[c] {
			chunk[c][i] = value
		}
	}
	return chunk
}

func cloneChunk(chunk [][]float64) [][]float64 {
	out := make([][]float64, len(chunk))
	for c, ch := range chunk {
		out[c] = append([]float64(nil), ch...)
	}
	return out
}

// chunkPeakDB returns the absolute peak across all channels in dB.
func chunkPeakDB(chunk [][]float64) float64 {
	var peak float64
	for _, ch := range chunk {
		for _, x := range ch {
			if a := math.Abs(x); a > peak {
				peak = a
			}
		}
	}
	return dsp.LinearToDB(peak)
}

// segmentRMSDB measures one channel's RMS level over a frame range.
func segmentRMSDB(ch []float64, from, to int) float64 {
	var sum float64
	for _, x := range ch[from:to] {
		sum += x * x
	}
	return dsp.LinearToDB(math.Sqrt(sum / float64(to-from)))
}

func stageNames(trace []Stage) []string {
	names := make([]string, len(trace))
	for i, s := range trace {
		names[i] = s.Name
	}
	return names
}

func findStage(trace []Stage, name string) (Stage, bool) {
	for _, s := range trace {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// neutralFingerprint returns a fingerprint whose derived tone and width
// targets are all zero, so branch traces stay minimal and level math is
// exact. Loudness -20 leaves a 6 dB makeup cap.
func neutralFingerprint() fingerprint.Fingerprint {
	fp := fingerprint.Default()
	fp.Loudness = -20
	fp.AirPct = 6
	return fp
}
