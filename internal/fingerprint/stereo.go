package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/earmark-audio/earmark/internal/audio"
)

// stereoWidth is the side share of mid/side energy: 0 for mono or
// identical channels, toward 1 as the channels decorrelate. Mono input is
// exactly 0, never an approximation.
func stereoWidth(buf *audio.Buffer) float64 {
	if buf.Channels() < 2 {
		return 0.0
	}
	left, right := buf.Data[0], buf.Data[1]

	var midE, sideE float64
	for i := range left {
		mid := (left[i] + right[i]) / 2
		side := (left[i] - right[i]) / 2
		midE += mid * mid
		sideE += side * side
	}
	if midE+sideE <= 1e-12 {
		return 0.0
	}
	return sideE / (midE + sideE)
}

// phaseCorrelation is the Pearson correlation of the two channels.
// Silence, mono input, and constant channels all read 1: nothing there to
// decorrelate.
func phaseCorrelation(buf *audio.Buffer) float64 {
	if buf.Channels() < 2 {
		return 1.0
	}
	r := stat.Correlation(buf.Data[0], buf.Data[1], nil)
	if math.IsNaN(r) {
		return 1.0
	}
	return clamp(r, -1, 1)
}
