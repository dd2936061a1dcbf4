package mastering

import (
	"github.com/earmark-audio/earmark/internal/dsp"
	"github.com/earmark-audio/earmark/internal/fingerprint"
)

const (
	// Loud-branch dynamics.
	hyperCompressedCrestDB = 8.0 // dB - under this crest, expansion cannot win anything back
	expansionMaxLiftDB     = 2.0 // dB - cap on restored crest

	// Loud-branch tone and safety.
	headroomCutDB    = -1.5 // dB - pre-EQ cut so tone boosts do not eat the ceiling
	loudToneScale    = 0.5  // compressed-loud runs presence and air at half strength
	dynamicToneScale = 0.35 // dynamic-loud keeps its hands even further off
	limiterCeilingDB = -1.0 // dB - loud-branch output ceiling

	// Quiet-branch gain staging.
	makeupSafetyDB     = 1.0  // dB - margin held back under the makeup cap
	quietPeakTargetDB  = -1.0 // dB - peak normalize aims here
	normalizeMaxLiftDB = 20.0 // dB - the target never asks for more lift than this over the input peak

	// Adaptive soft clip. Threshold and ceiling slide between a hard and a
	// gentle setting as the protection score rises; the score itself is a
	// blend of smoothstep ramps, so two nearly identical tracks always
	// clip nearly identically.
	clipThresholdHardDB   = -8.0 // dB - knee for material that tolerates saturation
	clipThresholdGentleDB = -3.0 // dB - knee for material that must stay clean
	clipCeilingHardDB     = -1.2 // dB
	clipCeilingGentleDB   = -0.8 // dB

	// Protection score breakpoints, one ramp per fingerprint feature.
	clipHarmonicLo  = 0.4 // harmonic ratio - tonal material exposes saturation
	clipHarmonicHi  = 0.8
	clipVariationLo = 0.2 // dynamic range variation - preserved dynamics deserve care
	clipVariationHi = 0.6
	clipFlatnessLo  = 0.2 // spectral flatness - noisy material masks saturation
	clipFlatnessHi  = 0.5
	clipBassLo      = 20.0 // % bass energy - heavy bass intermodulates when clipped
	clipBassHi      = 40.0

	// Stages whose computed amount lands under this are skipped and left
	// out of the trace.
	stageEpsilonDB = 0.01 // dB
)

// Branch is one material class's processing chain.
//
// Apply masters a single chunk in place and returns it together with the
// trace of stages that actually ran. peakDB is the global peak of the whole
// input track, not of the chunk, so every gain decision derived from it is
// identical across chunks. intensity in [0, 1] scales the corrective moves;
// safety stages (limiter, soft clip) run at full strength regardless.
type Branch interface {
	Name() string
	Apply(chunk [][]float64, fp fingerprint.Fingerprint, peakDB, intensity float64, sampleRate int) ([][]float64, []Stage)

	// NormalizeOutput reports whether the pipeline should apply its
	// constant output gain after this branch. The quiet branch normalizes
	// itself and returns false.
	NormalizeOutput() bool
}

// ForClass builds the processing branch for a material class around the
// fingerprint-derived targets.
func ForClass(class MaterialClass, targets fingerprint.MasteringTargets) Branch {
	switch class {
	case CompressedLoud:
		return &compressedLoudBranch{targets: targets}
	case DynamicLoud:
		return &dynamicLoudBranch{targets: targets}
	default:
		return &quietBranch{targets: targets}
	}
}

// widenStage applies stereo width and records it. Amounts too small to
// hear, and mono chunks, produce no stage.
func widenStage(chunk [][]float64, amount float64) []Stage {
	if amount < 1e-4 || len(chunk) != 2 {
		return nil
	}
	stereoWiden(chunk, amount)
	return []Stage{{Name: "width", Params: map[string]float64{"amount": amount}}}
}

// presenceAirStages applies the two top-end tone moves shared by the loud
// branches.
func presenceAirStages(chunk [][]float64, sampleRate int, presenceDB, airDB float64) []Stage {
	var trace []Stage
	if presenceDB > stageEpsilonDB {
		peakingBoost(chunk, sampleRate, presenceHz, presenceQ, presenceDB)
		trace = append(trace, Stage{Name: "presence", Params: map[string]float64{"gain_db": presenceDB, "freq_hz": presenceHz}})
	}
	if airDB > stageEpsilonDB {
		highShelfBoost(chunk, sampleRate, airShelfHz, airDB)
		trace = append(trace, Stage{Name: "air", Params: map[string]float64{"gain_db": airDB, "freq_hz": airShelfHz}})
	}
	return trace
}

// compressedLoudBranch restores a little dynamic life to crushed masters.
// It never adds loudness: expansion, a touch of width and top end, then a
// safety limiter.
type compressedLoudBranch struct {
	targets fingerprint.MasteringTargets
}

func (b *compressedLoudBranch) Name() string          { return CompressedLoud.String() }
func (b *compressedLoudBranch) NormalizeOutput() bool { return true }

func (b *compressedLoudBranch) Apply(chunk [][]float64, fp fingerprint.Fingerprint, peakDB, intensity float64, sampleRate int) ([][]float64, []Stage) {
	var trace []Stage

	// Hyper-compressed material has no transient structure left for the
	// expander to work with; skip rather than pump the noise floor.
	if fp.CrestDB >= hyperCompressedCrestDB {
		lift := b.targets.TargetCrestDB - fp.CrestDB
		if lift > expansionMaxLiftDB {
			lift = expansionMaxLiftDB
		}
		lift *= intensity
		if lift > stageEpsilonDB {
			expand(chunk, sampleRate, lift)
			trace = append(trace, Stage{Name: "expand", Params: map[string]float64{"lift_db": lift}})
		}
	}

	trace = append(trace, widenStage(chunk, b.targets.WidthAmount*intensity)...)

	applyGain(chunk, headroomCutDB)
	trace = append(trace, Stage{Name: "headroom", Params: map[string]float64{"gain_db": headroomCutDB}})

	trace = append(trace, presenceAirStages(chunk, sampleRate,
		b.targets.PresenceBoostDB*loudToneScale*intensity,
		b.targets.AirBoostDB*loudToneScale*intensity)...)

	limitPeaks(chunk, sampleRate, limiterCeilingDB)
	trace = append(trace, Stage{Name: "limiter", Params: map[string]float64{"ceiling_db": limiterCeilingDB}})

	return chunk, trace
}

// dynamicLoudBranch handles hot material that kept its transients. The
// dynamics pass through untouched; only width and a restrained top-end
// polish are applied under the same safety limiter.
type dynamicLoudBranch struct {
	targets fingerprint.MasteringTargets
}

func (b *dynamicLoudBranch) Name() string          { return DynamicLoud.String() }
func (b *dynamicLoudBranch) NormalizeOutput() bool { return true }

func (b *dynamicLoudBranch) Apply(chunk [][]float64, fp fingerprint.Fingerprint, peakDB, intensity float64, sampleRate int) ([][]float64, []Stage) {
	var trace []Stage

	trace = append(trace, widenStage(chunk, b.targets.WidthAmount*intensity)...)

	applyGain(chunk, headroomCutDB)
	trace = append(trace, Stage{Name: "headroom", Params: map[string]float64{"gain_db": headroomCutDB}})

	trace = append(trace, presenceAirStages(chunk, sampleRate,
		b.targets.PresenceBoostDB*dynamicToneScale*intensity,
		b.targets.AirBoostDB*dynamicToneScale*intensity)...)

	limitPeaks(chunk, sampleRate, limiterCeilingDB)
	trace = append(trace, Stage{Name: "limiter", Params: map[string]float64{"ceiling_db": limiterCeilingDB}})

	return chunk, trace
}

// quietBranch gives under-leveled material the full chain: makeup gain,
// five tone moves, an adaptive soft clip, width, and its own peak
// normalize. It reports NormalizeOutput false because the normalize here
// already lands the level.
type quietBranch struct {
	targets fingerprint.MasteringTargets
}

func (b *quietBranch) Name() string          { return Quiet.String() }
func (b *quietBranch) NormalizeOutput() bool { return false }

func (b *quietBranch) Apply(chunk [][]float64, fp fingerprint.Fingerprint, peakDB, intensity float64, sampleRate int) ([][]float64, []Stage) {
	var trace []Stage

	makeup := b.targets.MakeupCapDB - makeupSafetyDB
	if makeup < 0 {
		makeup = 0
	}
	makeup *= intensity
	if makeup > stageEpsilonDB {
		applyGain(chunk, makeup)
		trace = append(trace, Stage{Name: "makeup", Params: map[string]float64{"gain_db": makeup}})
	}

	trace = append(trace, b.toneStages(chunk, sampleRate, intensity)...)

	protect, thresholdDB, ceilingDB := clipSettings(fp)
	softClipChunk(chunk, thresholdDB, ceilingDB)
	trace = append(trace, Stage{Name: "soft_clip", Params: map[string]float64{
		"protect":      protect,
		"threshold_db": thresholdDB,
		"ceiling_db":   ceilingDB,
	}})

	width := b.targets.WidthAmount * intensity
	trace = append(trace, widenStage(chunk, width)...)

	normalize := b.normalizeGain(peakDB, makeup, ceilingDB, width) * intensity
	applyGain(chunk, normalize)
	trace = append(trace, Stage{Name: "normalize", Params: map[string]float64{"gain_db": normalize}})

	return chunk, trace
}

// toneStages runs the five shaping moves driven by the band-balance
// targets. Cuts are passed through as readily as boosts; the epsilon only
// filters amounts too small to matter.
func (b *quietBranch) toneStages(chunk [][]float64, sampleRate int, intensity float64) []Stage {
	var trace []Stage

	bass := b.targets.BassBoostDB * intensity
	if abs(bass) > stageEpsilonDB {
		lowShelfBoost(chunk, sampleRate, bassShelfHz, bass)
		trace = append(trace, Stage{Name: "bass", Params: map[string]float64{"gain_db": bass, "freq_hz": bassShelfHz}})

		sub := bass * subBassScale
		peakingBoost(chunk, sampleRate, subBassHz, subBassQ, sub)
		trace = append(trace, Stage{Name: "sub_bass", Params: map[string]float64{"gain_db": sub, "freq_hz": subBassHz}})
	}

	warmth := b.targets.WarmthBoostDB * intensity
	if abs(warmth) > stageEpsilonDB {
		peakingBoost(chunk, sampleRate, warmthHz, warmthQ, warmth)
		trace = append(trace, Stage{Name: "warmth", Params: map[string]float64{"gain_db": warmth, "freq_hz": warmthHz}})
	}

	presence := b.targets.PresenceBoostDB * intensity
	if abs(presence) > stageEpsilonDB {
		peakingBoost(chunk, sampleRate, presenceHz, presenceQ, presence)
		trace = append(trace, Stage{Name: "presence", Params: map[string]float64{"gain_db": presence, "freq_hz": presenceHz}})
	}

	air := b.targets.AirBoostDB * intensity
	if abs(air) > stageEpsilonDB {
		highShelfBoost(chunk, sampleRate, airShelfHz, air)
		trace = append(trace, Stage{Name: "air", Params: map[string]float64{"gain_db": air, "freq_hz": airShelfHz}})
	}

	return trace
}

// normalizeGain computes the final level move from quantities that are
// global to the track, so every chunk receives the same gain. The target
// adapts to the input: material can come up to the peak target, but never
// by more than normalizeMaxLiftDB over where it started. The post-clip
// peak estimate assumes makeup carried the input peak toward the clip
// ceiling and width spent its worst-case headroom.
func (b *quietBranch) normalizeGain(peakDB, makeupDB, clipCeilingDB, width float64) float64 {
	targetDB := quietPeakTargetDB
	if t := peakDB + normalizeMaxLiftDB; t < targetDB {
		targetDB = t
	}

	estDB := peakDB + makeupDB
	if estDB > clipCeilingDB {
		estDB = clipCeilingDB
	}
	estDB += dsp.LinearToDB(1 + width)

	return targetDB - estDB
}

// clipSettings derives the adaptive soft clip parameters from the
// fingerprint. Four feature ramps blend into one protection score in
// [0, 1]; at 0 the clip is hard and low, at 1 it is gentle and high.
func clipSettings(fp fingerprint.Fingerprint) (protect, thresholdDB, ceilingDB float64) {
	protect = (smoothstep(clipHarmonicLo, clipHarmonicHi, fp.HarmonicRatio) +
		smoothstep(clipVariationLo, clipVariationHi, fp.DynamicRangeVariation) +
		(1 - smoothstep(clipFlatnessLo, clipFlatnessHi, fp.SpectralFlatness)) +
		smoothstep(clipBassLo, clipBassHi, fp.BassPct)) / 4

	thresholdDB = clipThresholdHardDB + (clipThresholdGentleDB-clipThresholdHardDB)*protect
	ceilingDB = clipCeilingHardDB + (clipCeilingGentleDB-clipCeilingHardDB)*protect
	return protect, thresholdDB, ceilingDB
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
