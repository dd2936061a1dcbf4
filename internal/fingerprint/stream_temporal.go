package fingerprint

import (
	"math"

	"github.com/earmark-audio/earmark/internal/dsp"
)

// TemporalEstimate is the current streaming view of the temporal family.
type TemporalEstimate struct {
	TempoBPM         float64
	RhythmStability  float64
	TransientDensity float64
	SilenceRatio     float64
}

type loudnessEntry struct {
	db      float64
	samples int
}

// TemporalStream re-analyzes a rolling audio window for onset features
// every windowful of new audio, and separately keeps a longer per-frame
// loudness history purely for the silence ratio, updated O(1) per frame.
type TemporalStream struct {
	sr int

	window []float64 // rolling analysis buffer, capped at streamTemporalSecs
	fresh  int       // new samples since the last re-analysis
	est    TemporalEstimate
	ran    int // re-analyses performed

	loudness    []loudnessEntry // ring, newest last
	loudSamples int
}

func NewTemporalStream(sampleRate int) *TemporalStream {
	s := &TemporalStream{sr: sampleRate}
	s.est = TemporalEstimate{
		TempoBPM:         DefaultTempoBPM,
		RhythmStability:  DefaultRhythmStability,
		TransientDensity: DefaultTransientDensity,
		SilenceRatio:     DefaultSilenceRatio,
	}
	return s
}

// Reset discards all accumulated state.
func (s *TemporalStream) Reset() {
	*s = *NewTemporalStream(s.sr)
}

// Update consumes one frame of mono audio and returns the current
// estimate. Onset re-analysis triggers once per window of new audio, not
// per call.
func (s *TemporalStream) Update(frame []float64) TemporalEstimate {
	windowSize := int(streamTemporalSecs * float64(s.sr))

	s.window = append(s.window, frame...)
	if over := len(s.window) - windowSize; over > 0 {
		s.window = s.window[over:]
	}
	s.fresh += len(frame)

	s.pushLoudness(frame)

	if s.fresh >= windowSize && len(s.window) >= windowSize {
		s.reanalyze()
		s.fresh = 0
	}

	return s.Estimate()
}

// Estimate returns the last onset analysis plus a live silence ratio.
func (s *TemporalStream) Estimate() TemporalEstimate {
	est := s.est
	est.SilenceRatio = s.silenceRatio()
	return est
}

func (s *TemporalStream) reanalyze() {
	mag := dsp.Spectrogram(s.window, analysisFFTSize, analysisHop)
	frameRate := float64(s.sr) / analysisHop
	env := onsetEnvelope(mag)
	onsets := detectOnsets(env, frameRate)

	if len(env) > 0 {
		s.est.TempoBPM = tempoFromEnvelope(env, frameRate)
	}
	s.est.RhythmStability = rhythmStability(onsets)
	s.est.TransientDensity = clamp(
		float64(len(onsets))/streamTemporalSecs/transientCeilingHz, 0, 1)
	s.ran++
}

// pushLoudness appends this frame's level and evicts entries beyond the
// loudness history horizon.
func (s *TemporalStream) pushLoudness(frame []float64) {
	if len(frame) == 0 {
		return
	}
	s.loudness = append(s.loudness, loudnessEntry{
		db:      dsp.LinearToDB(dsp.RMS(frame)),
		samples: len(frame),
	})
	s.loudSamples += len(frame)

	limit := int(streamLoudnessRingSec * float64(s.sr))
	for len(s.loudness) > 1 && s.loudSamples-s.loudness[0].samples >= limit {
		s.loudSamples -= s.loudness[0].samples
		s.loudness = s.loudness[1:]
	}
}

func (s *TemporalStream) silenceRatio() float64 {
	if len(s.loudness) == 0 {
		return DefaultSilenceRatio
	}
	peak := -math.MaxFloat64
	for _, e := range s.loudness {
		if e.db > peak {
			peak = e.db
		}
	}
	var silent int
	for _, e := range s.loudness {
		if e.db < peak-silenceFloorDB {
			silent++
		}
	}
	return float64(silent) / float64(len(s.loudness))
}

// Confidence rises with the number of completed re-analyses.
func (s *TemporalStream) Confidence() float64 {
	return math.Min(1, float64(s.ran)/streamConfidenceRamp)
}
