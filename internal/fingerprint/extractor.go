package fingerprint

import (
	"log/slog"
	"math"
	"time"

	"github.com/earmark-audio/earmark/internal/audio"
	"github.com/earmark-audio/earmark/internal/dsp"
)

// Extractor computes fingerprints through a numeric backend. Safe for
// concurrent use: it holds no mutable state.
type Extractor struct {
	backend dsp.Backend
	cfg     Config
	log     *slog.Logger
}

func NewExtractor(backend dsp.Backend, cfg Config, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		backend: backend,
		cfg:     cfg.Sanitize(),
		log:     log.With("component", "fingerprint"),
	}
}

// Extract computes the full 25-field fingerprint of buf. The record is
// always complete: any sub-feature whose computation fails lands at its
// documented default without disturbing its siblings.
func (e *Extractor) Extract(buf *audio.Buffer) Fingerprint {
	fp := Default()
	if buf == nil || buf.Frames() == 0 {
		return fp
	}

	start := time.Now()
	mono := buf.Mono()
	sr := buf.SampleRate

	// One shared short-time spectrum feeds the band, spectral, and onset
	// features; computing it per feature would triple the FFT cost.
	var mag [][]float64
	var power []float64
	e.safely("spectrum", func() {
		mag = dsp.Spectrogram(mono, analysisFFTSize, analysisHop)
		power = meanPowerSpectrum(mag)
	})

	// Dynamics
	fp.Loudness = e.scalar("loudness", DefaultLoudness, func() float64 {
		return dsp.IntegratedLUFS(buf.Data, sr)
	})
	fp.CrestDB = e.scalar("crest_db", DefaultCrestDB, func() float64 {
		return dsp.CrestFactorDB(mono)
	})

	// Frequency bands share one integration pass; they fail as a family.
	e.safely("bands", func() {
		energies, ok := bandEnergies(power, sr)
		if !ok {
			return
		}
		pct := bandPercents(energies)
		fp.SubBassPct = pct[0]
		fp.BassPct = pct[1]
		fp.LowMidPct = pct[2]
		fp.MidPct = pct[3]
		fp.HighMidPct = pct[4]
		fp.PresencePct = pct[5]
		fp.AirPct = pct[6]
		fp.BassMidRatio = bassMidRatio(energies)
	})

	// Spectral
	if len(power) > 0 {
		fp.SpectralCentroid = e.scalar("spectral_centroid", DefaultSpectralCentroid, func() float64 {
			return spectralCentroid(power, sr)
		})
		fp.SpectralRolloff = e.scalar("spectral_rolloff", DefaultSpectralRolloff, func() float64 {
			return spectralRolloff(power, sr)
		})
		fp.SpectralFlatness = e.scalar("spectral_flatness", DefaultSpectralFlatness, func() float64 {
			return spectralFlatness(power)
		})
	}

	// Temporal
	frameRate := float64(sr) / analysisHop
	var env []float64
	var onsets []int
	e.safely("onsets", func() {
		env = onsetEnvelope(mag)
		onsets = detectOnsets(env, frameRate)
	})
	if len(env) > 0 {
		fp.TempoBPM = e.scalar("tempo_bpm", DefaultTempoBPM, func() float64 {
			return tempoFromEnvelope(env, frameRate)
		})
	}
	fp.RhythmStability = e.scalar("rhythm_stability", DefaultRhythmStability, func() float64 {
		return rhythmStability(onsets)
	})
	fp.TransientDensity = e.scalar("transient_density", DefaultTransientDensity, func() float64 {
		return clamp(float64(len(onsets))/buf.Duration()/transientCeilingHz, 0, 1)
	})
	fp.SilenceRatio = e.scalar("silence_ratio", DefaultSilenceRatio, func() float64 {
		return silenceRatio(mono, sr)
	})

	// Harmonic, through the backend
	fp.HarmonicRatio = e.scalar("harmonic_ratio", DefaultHarmonicRatio, func() float64 {
		return harmonicRatio(e.backend, mono, sr)
	})
	fp.PitchStability = e.scalar("pitch_stability", DefaultPitchStability, func() float64 {
		return pitchStability(e.backend, mono, sr)
	})
	fp.ChromaEnergy = e.scalar("chroma_energy", DefaultChromaEnergy, func() float64 {
		return chromaEnergyFeature(e.backend, mono, sr)
	})

	// Variation
	fs := variationFrames(mono, sr)
	fp.DynamicRangeVariation = e.scalar("dynamic_range_variation", DefaultDynamicRangeVar, func() float64 {
		return dynamicRangeVariation(fs)
	})
	fp.LoudnessVariationStd = e.scalar("loudness_variation_std", DefaultLoudnessVarStd, func() float64 {
		return loudnessVariationStd(fs)
	})
	fp.PeakConsistency = e.scalar("peak_consistency", DefaultPeakConsistency, func() float64 {
		return peakConsistency(fs)
	})

	// Stereo
	fp.StereoWidth = e.scalar("stereo_width", DefaultStereoWidth, func() float64 {
		return stereoWidth(buf)
	})
	fp.PhaseCorrelation = e.scalar("phase_correlation", DefaultPhaseCorrelation, func() float64 {
		return phaseCorrelation(buf)
	})

	e.log.Debug("extracted fingerprint",
		"duration_secs", buf.Duration(),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return fp.Clamped()
}

// scalar runs one sub-feature computation, substituting def when it panics
// or produces a non-finite value. Sibling features are unaffected.
func (e *Extractor) scalar(name string, def float64, fn func() float64) (v float64) {
	v = def
	defer func() {
		if r := recover(); r != nil {
			e.log.Debug("feature fell back to default", "feature", name, "cause", r)
			v = def
		}
	}()
	got := fn()
	if math.IsNaN(got) || math.IsInf(got, 0) {
		return def
	}
	return got
}

// safely runs a shared source computation whose dependents keep their
// defaults if it panics.
func (e *Extractor) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Debug("source computation failed", "source", name, "cause", r)
		}
	}()
	fn()
}
