package fingerprint

// Target derivation tuning. Boosts are bounded so a wildly unusual
// fingerprint can never request destructive correction.
const (
	targetLUFSBase      = -14.0 // LUFS - streaming delivery reference
	targetLUFSDynamic   = -16.0 // LUFS - preserve headroom for dynamic material
	targetLUFSDense     = -12.0 // LUFS - already-dense material is left hot
	dynamicCrestDB      = 14.0  // dB - crest above this counts as dynamic
	denseCrestDB        = 8.0   // dB - crest below this counts as dense
	targetCrestLiftDB   = 2.0   // dB - max crest increase requested
	targetCrestCeilDB   = 14.0  // dB - never target more crest than this
	bassReferencePct    = 25.0  // % - combined sub+bass share considered balanced
	bassBoostPerPct     = 0.1   // dB per % deficit
	bassBoostMaxDB      = 2.0
	bassCutMaxDB        = -1.5
	warmthReferencePct  = 15.0 // % - low-mid share considered balanced
	warmthBoostPerPct   = 0.1  // dB per % deficit
	warmthBoostMaxDB    = 1.5
	warmthCutMaxDB      = -1.0
	presenceRefCentroid = 0.5 // darker than this earns presence
	presencePerUnit     = 4.0 // dB per unit of centroid deficit
	presenceBoostMaxDB  = 2.0
	presenceCutMaxDB    = -0.5
	airReferencePct     = 6.0  // % - air share considered balanced
	airBoostPerPct      = 0.25 // dB per % deficit
	airBoostMaxDB       = 1.5
	widthReference      = 0.5  // width below this earns expansion
	widthPerUnit        = 0.6  // expansion per unit of width deficit
	widthMaxAmount      = 0.3
	widthPhaseFloor     = 0.2 // phase correlation below this halves expansion
	makeupMaxDB         = 12.0
)

// MasteringTargets are the concrete correction amounts one fingerprint
// implies. Pure derivation: equal fingerprints always yield equal targets,
// so targets are cached alongside the fingerprint but never stored
// independently.
type MasteringTargets struct {
	TargetLUFS      float64 `json:"target_lufs"`
	TargetCrestDB   float64 `json:"target_crest_db"`
	BassBoostDB     float64 `json:"bass_boost_db"`
	WarmthBoostDB   float64 `json:"warmth_boost_db"`
	PresenceBoostDB float64 `json:"presence_boost_db"`
	AirBoostDB      float64 `json:"air_boost_db"`
	WidthAmount     float64 `json:"width_amount"`
	MakeupCapDB     float64 `json:"makeup_cap_db"`
}

// DeriveTargets maps a fingerprint to its mastering targets.
func DeriveTargets(fp Fingerprint) MasteringTargets {
	return MasteringTargets{
		TargetLUFS:      targetLoudness(fp),
		TargetCrestDB:   targetCrest(fp),
		BassBoostDB:     bassBoost(fp),
		WarmthBoostDB:   warmthBoost(fp),
		PresenceBoostDB: presenceBoost(fp),
		AirBoostDB:      airBoost(fp),
		WidthAmount:     widthAmount(fp),
		MakeupCapDB:     makeupCap(fp),
	}
}

// targetLoudness keeps dynamic material quieter and dense material hotter
// than the streaming reference.
func targetLoudness(fp Fingerprint) float64 {
	switch {
	case fp.CrestDB > dynamicCrestDB:
		return targetLUFSDynamic
	case fp.CrestDB < denseCrestDB:
		return targetLUFSDense
	default:
		return targetLUFSBase
	}
}

// targetCrest asks for a bounded lift over the measured crest.
func targetCrest(fp Fingerprint) float64 {
	target := fp.CrestDB + targetCrestLiftDB
	if target > targetCrestCeilDB {
		target = targetCrestCeilDB
	}
	if target < fp.CrestDB {
		target = fp.CrestDB
	}
	return target
}

func bassBoost(fp Fingerprint) float64 {
	deficit := bassReferencePct - (fp.SubBassPct + fp.BassPct)
	return clamp(deficit*bassBoostPerPct, bassCutMaxDB, bassBoostMaxDB)
}

func warmthBoost(fp Fingerprint) float64 {
	deficit := warmthReferencePct - fp.LowMidPct
	return clamp(deficit*warmthBoostPerPct, warmthCutMaxDB, warmthBoostMaxDB)
}

func presenceBoost(fp Fingerprint) float64 {
	deficit := presenceRefCentroid - fp.SpectralCentroid
	return clamp(deficit*presencePerUnit, presenceCutMaxDB, presenceBoostMaxDB)
}

func airBoost(fp Fingerprint) float64 {
	deficit := airReferencePct - fp.AirPct
	return clamp(deficit*airBoostPerPct, 0, airBoostMaxDB)
}

// widthAmount expands narrow mixes, backing off when the channels are
// already drifting out of phase.
func widthAmount(fp Fingerprint) float64 {
	amount := clamp((widthReference-fp.StereoWidth)*widthPerUnit, 0, widthMaxAmount)
	if fp.PhaseCorrelation < widthPhaseFloor {
		amount /= 2
	}
	return amount
}

// makeupCap bounds makeup gain by the distance to the streaming reference.
func makeupCap(fp Fingerprint) float64 {
	return clamp(targetLUFSBase-fp.Loudness, 0, makeupMaxDB)
}
