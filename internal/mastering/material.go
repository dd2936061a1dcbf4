package mastering

// MaterialClass is the coarse category that selects a processing branch.
// The split mirrors how mastering engineers triage material: already-hot
// tracks need restraint, quiet tracks need lift and tone.
type MaterialClass int

const (
	// CompressedLoud is hot material whose dynamics were already crushed
	// upstream. The branch tries to win a little crest back, not to add
	// more loudness.
	CompressedLoud MaterialClass = iota

	// DynamicLoud is hot material that kept its transients. Dynamics pass
	// through untouched; only tone and width are polished.
	DynamicLoud

	// Quiet is everything that never reached the loudness threshold:
	// demos, field recordings, bedroom mixes. Gets the full chain.
	Quiet
)

// String returns the class name used in logs and reports.
func (c MaterialClass) String() string {
	switch c {
	case CompressedLoud:
		return "compressed-loud"
	case DynamicLoud:
		return "dynamic-loud"
	case Quiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ClassifierConfig holds the two decision thresholds. Defaults sit where
// streaming-era masters cluster: hotter than -12 LUFS is "loud", and a
// loud track with less than 13 dB of crest has little dynamic life left.
type ClassifierConfig struct {
	LoudThresholdLUFS float64 // LUFS - above this the track counts as loud
	CrestThresholdDB  float64 // dB - loud tracks under this are compressed-loud
}

// DefaultClassifierConfig returns the stock thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		LoudThresholdLUFS: -12.0,
		CrestThresholdDB:  13.0,
	}
}

// Classify maps integrated loudness and crest factor to a material class.
// The loudness comparison is strictly greater-than: a track sitting
// exactly on the threshold is not loud, so it falls through to Quiet.
func Classify(loudness, crest float64, cfg ClassifierConfig) MaterialClass {
	switch {
	case loudness > cfg.LoudThresholdLUFS && crest < cfg.CrestThresholdDB:
		return CompressedLoud
	case loudness > cfg.LoudThresholdLUFS:
		return DynamicLoud
	default:
		return Quiet
	}
}
