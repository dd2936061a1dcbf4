package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/earmark-audio/earmark/internal/dsp"
)

const (
	crestVariationRangeDB = 6.0 // dB - crest std mapping to dynamic_range_variation 1.0
	loudnessVarMaxDB      = 10.0
)

// frameStats holds the per-frame measurements the variation features share.
type frameStats struct {
	crestDB []float64
	rmsDB   []float64
	peaks   []float64
}

// variationFrames measures 500 ms frames. At least two frames are needed
// for any spread statistic.
func variationFrames(x []float64, sampleRate int) frameStats {
	frame := int(variationFrameSecs * float64(sampleRate))
	if frame < 1 {
		return frameStats{}
	}
	var fs frameStats
	for start := 0; start+frame <= len(x); start += frame {
		seg := x[start : start+frame]
		fs.crestDB = append(fs.crestDB, dsp.CrestFactorDB(seg))
		fs.rmsDB = append(fs.rmsDB, dsp.LinearToDB(dsp.RMS(seg)))
		fs.peaks = append(fs.peaks, dsp.PeakAbs(seg))
	}
	return fs
}

// dynamicRangeVariation is the std of per-frame crest factors scaled
// against crestVariationRangeDB.
func dynamicRangeVariation(fs frameStats) float64 {
	if len(fs.crestDB) < 2 {
		return DefaultDynamicRangeVar
	}
	std := stat.StdDev(fs.crestDB, nil)
	if math.IsNaN(std) {
		return DefaultDynamicRangeVar
	}
	return clamp(std/crestVariationRangeDB, 0, 1)
}

// loudnessVariationStd is the std of per-frame RMS levels in dB.
func loudnessVariationStd(fs frameStats) float64 {
	if len(fs.rmsDB) < 2 {
		return DefaultLoudnessVarStd
	}
	std := stat.StdDev(fs.rmsDB, nil)
	if math.IsNaN(std) {
		return DefaultLoudnessVarStd
	}
	return clamp(std, 0, loudnessVarMaxDB)
}

// peakConsistency maps the coefficient of variation of per-frame peaks to
// [0,1]: 1 means every frame peaks at the same level.
func peakConsistency(fs frameStats) float64 {
	if len(fs.peaks) < 2 {
		return DefaultPeakConsistency
	}
	mean := stat.Mean(fs.peaks, nil)
	if mean <= 1e-9 {
		return DefaultPeakConsistency
	}
	std := stat.StdDev(fs.peaks, nil)
	if math.IsNaN(std) {
		return DefaultPeakConsistency
	}
	cv := std / mean
	if cv > 1 {
		return 0
	}
	return 1 - cv
}
