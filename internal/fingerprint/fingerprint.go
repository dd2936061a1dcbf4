// Package fingerprint extracts a fixed set of 25 perceptual audio features
// used to drive adaptive mastering. It provides full-track batch extraction,
// a windowed sampled analyzer for long files, and incremental streaming
// analyzers for live use.
package fingerprint

import "math"

// Version identifies the fingerprint format. Cached fingerprints written
// with a different version are recomputed.
const Version = "1.0"

// Defaults substituted when a feature computation fails. Each value is a
// neutral reading for typical recorded music, so a partially failed
// extraction still drives sensible mastering decisions.
const (
	DefaultLoudness         = -23.0 // LUFS - broadcast reference level
	DefaultCrestDB          = 12.0  // dB - moderately dynamic material
	DefaultBassMidRatio     = 1.0   // balanced low end
	DefaultSubBassPct       = 5.0   // % of spectral energy, 20-60 Hz
	DefaultBassPct          = 20.0  // % of spectral energy, 60-250 Hz
	DefaultLowMidPct        = 15.0  // % of spectral energy, 250-500 Hz
	DefaultMidPct           = 30.0  // % of spectral energy, 500-2000 Hz
	DefaultHighMidPct       = 15.0  // % of spectral energy, 2-4 kHz
	DefaultPresencePct      = 10.0  // % of spectral energy, 4-6 kHz
	DefaultAirPct           = 5.0   // % of spectral energy, 6-20 kHz
	DefaultTempoBPM         = 120.0 // BPM - common popular-music tempo
	DefaultRhythmStability  = 0.5
	DefaultTransientDensity = 0.3
	DefaultSilenceRatio     = 0.0
	DefaultSpectralCentroid = 0.5 // fraction of Nyquist
	DefaultSpectralRolloff  = 0.8 // fraction of Nyquist
	DefaultSpectralFlatness = 0.3
	DefaultHarmonicRatio    = 0.7
	DefaultPitchStability   = 0.5
	DefaultChromaEnergy     = 0.5
	DefaultDynamicRangeVar  = 0.3
	DefaultLoudnessVarStd   = 2.0 // dB
	DefaultPeakConsistency  = 0.7
	DefaultStereoWidth      = 0.5
	DefaultPhaseCorrelation = 1.0 // fully correlated
)

// Fingerprint is the 25-scalar perceptual profile of one track. It is
// created whole by extraction and never partially mutated; recomputation
// replaces the entire record.
type Fingerprint struct {
	// Dynamics
	Loudness     float64 `json:"loudness"`       // LUFS, integrated
	CrestDB      float64 `json:"crest_db"`       // peak-to-RMS, dB
	BassMidRatio float64 `json:"bass_mid_ratio"` // bass band energy over mid band energy

	// Frequency band energy shares, percent of total
	SubBassPct  float64 `json:"sub_bass_pct"`
	BassPct     float64 `json:"bass_pct"`
	LowMidPct   float64 `json:"low_mid_pct"`
	MidPct      float64 `json:"mid_pct"`
	HighMidPct  float64 `json:"high_mid_pct"`
	PresencePct float64 `json:"presence_pct"`
	AirPct      float64 `json:"air_pct"`

	// Temporal
	TempoBPM         float64 `json:"tempo_bpm"`
	RhythmStability  float64 `json:"rhythm_stability"`  // 0 = too few beats to tell
	TransientDensity float64 `json:"transient_density"` // onsets/s against a 10 Hz ceiling
	SilenceRatio     float64 `json:"silence_ratio"`     // frames > 40 dB under peak

	// Spectral, each a 0-1 fraction
	SpectralCentroid float64 `json:"spectral_centroid"`
	SpectralRolloff  float64 `json:"spectral_rolloff"`
	SpectralFlatness float64 `json:"spectral_flatness"`

	// Harmonic
	HarmonicRatio  float64 `json:"harmonic_ratio"`
	PitchStability float64 `json:"pitch_stability"`
	ChromaEnergy   float64 `json:"chroma_energy"`

	// Variation
	DynamicRangeVariation float64 `json:"dynamic_range_variation"`
	LoudnessVariationStd  float64 `json:"loudness_variation_std"` // dB
	PeakConsistency       float64 `json:"peak_consistency"`

	// Stereo
	StereoWidth      float64 `json:"stereo_width"`      // 0 for mono input
	PhaseCorrelation float64 `json:"phase_correlation"` // Pearson r of L/R, 1 on silence
}

// Default returns a fingerprint with every field at its documented default.
func Default() Fingerprint {
	return Fingerprint{
		Loudness:              DefaultLoudness,
		CrestDB:               DefaultCrestDB,
		BassMidRatio:          DefaultBassMidRatio,
		SubBassPct:            DefaultSubBassPct,
		BassPct:               DefaultBassPct,
		LowMidPct:             DefaultLowMidPct,
		MidPct:                DefaultMidPct,
		HighMidPct:            DefaultHighMidPct,
		PresencePct:           DefaultPresencePct,
		AirPct:                DefaultAirPct,
		TempoBPM:              DefaultTempoBPM,
		RhythmStability:       DefaultRhythmStability,
		TransientDensity:      DefaultTransientDensity,
		SilenceRatio:          DefaultSilenceRatio,
		SpectralCentroid:      DefaultSpectralCentroid,
		SpectralRolloff:       DefaultSpectralRolloff,
		SpectralFlatness:      DefaultSpectralFlatness,
		HarmonicRatio:         DefaultHarmonicRatio,
		PitchStability:        DefaultPitchStability,
		ChromaEnergy:          DefaultChromaEnergy,
		DynamicRangeVariation: DefaultDynamicRangeVar,
		LoudnessVariationStd:  DefaultLoudnessVarStd,
		PeakConsistency:       DefaultPeakConsistency,
		StereoWidth:           DefaultStereoWidth,
		PhaseCorrelation:      DefaultPhaseCorrelation,
	}
}

// Clamped returns a copy with every field forced into its documented range.
// Extraction applies this once before handing the record out.
func (fp Fingerprint) Clamped() Fingerprint {
	fp.Loudness = clamp(fp.Loudness, -120, 0)
	fp.CrestDB = clamp(fp.CrestDB, 0, 40)
	fp.BassMidRatio = clamp(fp.BassMidRatio, 0, 10)
	fp.SubBassPct = clamp(fp.SubBassPct, 0, 100)
	fp.BassPct = clamp(fp.BassPct, 0, 100)
	fp.LowMidPct = clamp(fp.LowMidPct, 0, 100)
	fp.MidPct = clamp(fp.MidPct, 0, 100)
	fp.HighMidPct = clamp(fp.HighMidPct, 0, 100)
	fp.PresencePct = clamp(fp.PresencePct, 0, 100)
	fp.AirPct = clamp(fp.AirPct, 0, 100)
	fp.TempoBPM = clamp(fp.TempoBPM, 40, 200)
	fp.RhythmStability = clamp(fp.RhythmStability, 0, 1)
	fp.TransientDensity = clamp(fp.TransientDensity, 0, 1)
	fp.SilenceRatio = clamp(fp.SilenceRatio, 0, 1)
	fp.SpectralCentroid = clamp(fp.SpectralCentroid, 0, 1)
	fp.SpectralRolloff = clamp(fp.SpectralRolloff, 0, 1)
	fp.SpectralFlatness = clamp(fp.SpectralFlatness, 0, 1)
	fp.HarmonicRatio = clamp(fp.HarmonicRatio, 0, 1)
	fp.PitchStability = clamp(fp.PitchStability, 0, 1)
	fp.ChromaEnergy = clamp(fp.ChromaEnergy, 0, 1)
	fp.DynamicRangeVariation = clamp(fp.DynamicRangeVariation, 0, 1)
	fp.LoudnessVariationStd = clamp(fp.LoudnessVariationStd, 0, 10)
	fp.PeakConsistency = clamp(fp.PeakConsistency, 0, 1)
	fp.StereoWidth = clamp(fp.StereoWidth, 0, 1)
	fp.PhaseCorrelation = clamp(fp.PhaseCorrelation, -1, 1)
	return fp
}

// vector flattens the record for mean aggregation and correlation checks.
// Order matches the field declaration order.
func (fp Fingerprint) vector() [25]float64 {
	return [25]float64{
		fp.Loudness, fp.CrestDB, fp.BassMidRatio,
		fp.SubBassPct, fp.BassPct, fp.LowMidPct, fp.MidPct,
		fp.HighMidPct, fp.PresencePct, fp.AirPct,
		fp.TempoBPM, fp.RhythmStability, fp.TransientDensity, fp.SilenceRatio,
		fp.SpectralCentroid, fp.SpectralRolloff, fp.SpectralFlatness,
		fp.HarmonicRatio, fp.PitchStability, fp.ChromaEnergy,
		fp.DynamicRangeVariation, fp.LoudnessVariationStd, fp.PeakConsistency,
		fp.StereoWidth, fp.PhaseCorrelation,
	}
}

func fromVector(v [25]float64) Fingerprint {
	return Fingerprint{
		Loudness: v[0], CrestDB: v[1], BassMidRatio: v[2],
		SubBassPct: v[3], BassPct: v[4], LowMidPct: v[5], MidPct: v[6],
		HighMidPct: v[7], PresencePct: v[8], AirPct: v[9],
		TempoBPM: v[10], RhythmStability: v[11], TransientDensity: v[12], SilenceRatio: v[13],
		SpectralCentroid: v[14], SpectralRolloff: v[15], SpectralFlatness: v[16],
		HarmonicRatio: v[17], PitchStability: v[18], ChromaEnergy: v[19],
		DynamicRangeVariation: v[20], LoudnessVariationStd: v[21], PeakConsistency: v[22],
		StereoWidth: v[23], PhaseCorrelation: v[24],
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
