package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/earmark-audio/earmark/internal/dsp"
)

// Streaming analyzer parameters.
const (
	streamChunkSecs       = 0.5  // s - audio accumulated before each harmonic analysis
	streamConfidenceRamp  = 5    // analyses until confidence reaches 1
	pitchReservoirSize    = 200  // voiced pitch values kept for stability
	streamSpectraForRoll  = 20   // recent magnitude spectra retained for rolloff
	streamTemporalSecs    = 2.0  // s - rolling buffer re-analyzed for tempo/rhythm
	streamLoudnessRingSec = 10.0 // s - per-frame loudness history for silence ratio
)

// HarmonicEstimate is the current streaming view of the harmonic family.
type HarmonicEstimate struct {
	HarmonicRatio  float64
	PitchStability float64
	ChromaEnergy   float64
}

// HarmonicStream folds fixed-size chunks of audio into running harmonic
// statistics. A single goroutine drives it; concurrent Update calls on one
// instance are not supported.
type HarmonicStream struct {
	backend dsp.Backend
	sr      int
	seed    int64

	buf       []float64
	chunkSize int

	analyses  int
	ratioSum  float64
	chromaSum float64
	pitches   *reservoir
}

func NewHarmonicStream(backend dsp.Backend, sampleRate int, cfg Config) *HarmonicStream {
	s := &HarmonicStream{
		backend: backend,
		sr:      sampleRate,
		seed:    cfg.ReservoirSeed,
	}
	s.init()
	return s
}

func (s *HarmonicStream) init() {
	s.buf = nil
	s.chunkSize = int(streamChunkSecs * float64(s.sr))
	s.analyses = 0
	s.ratioSum = 0
	s.chromaSum = 0
	s.pitches = newReservoir(pitchReservoirSize, s.seed)
}

// Reset discards all accumulated state.
func (s *HarmonicStream) Reset() { s.init() }

// Update consumes one frame of mono audio and returns the current
// estimate. The batch harmonic computation runs once per complete chunk.
func (s *HarmonicStream) Update(frame []float64) HarmonicEstimate {
	s.buf = append(s.buf, frame...)
	for len(s.buf) >= s.chunkSize {
		chunk := s.buf[:s.chunkSize]
		s.analyzeChunk(chunk)
		s.buf = s.buf[s.chunkSize:]
	}
	return s.Estimate()
}

func (s *HarmonicStream) analyzeChunk(chunk []float64) {
	h, p, err := s.backend.SeparateHarmonicPercussive(chunk, s.sr)
	if err != nil {
		h, p = dsp.NeutralSeparation(chunk)
	}
	hRMS, pRMS := dsp.RMS(h), dsp.RMS(p)
	if hRMS+pRMS > 1e-9 {
		s.ratioSum += hRMS / (hRMS + pRMS)
	} else {
		s.ratioSum += DefaultHarmonicRatio
	}

	f0, err := s.backend.TrackPitch(chunk, s.sr, pitchFMin, pitchFMax)
	if err != nil {
		f0 = dsp.NeutralPitch(len(chunk) / analysisHop)
	}
	for _, f := range f0 {
		if f > 0 {
			s.pitches.add(f)
		}
	}

	chroma, err := s.backend.ChromaEnergy(chunk, s.sr)
	if err != nil {
		chroma = dsp.UniformChroma(len(chunk)/analysisHop + 1)
	}
	var sum float64
	var n int
	for _, row := range chroma {
		for _, e := range row {
			sum += e
			n++
		}
	}
	if n > 0 {
		s.chromaSum += sum / float64(n)
	}

	s.analyses++
}

// Estimate returns the running means plus a pitch stability computed from
// the uniform reservoir, never from a recency window.
func (s *HarmonicStream) Estimate() HarmonicEstimate {
	est := HarmonicEstimate{
		HarmonicRatio:  DefaultHarmonicRatio,
		PitchStability: DefaultPitchStability,
		ChromaEnergy:   DefaultChromaEnergy,
	}
	if s.analyses == 0 {
		return est
	}
	est.HarmonicRatio = clamp(s.ratioSum/float64(s.analyses), 0, 1)
	est.ChromaEnergy = clamp(s.chromaSum/float64(s.analyses)/chromaCeiling, 0, 1)

	voiced := s.pitches.sample()
	if len(voiced) >= 2 {
		mean := stat.Mean(voiced, nil)
		std := stat.StdDev(voiced, nil)
		if mean > 0 && !math.IsNaN(std) {
			est.PitchStability = clamp(1.0/(1.0+std/mean*pitchStabilityScale), 0, 1)
		}
	}
	return est
}

// Confidence rises with accumulated evidence: 0 before the first analysis,
// 1 after streamConfidenceRamp chunks.
func (s *HarmonicStream) Confidence() float64 {
	return math.Min(1, float64(s.analyses)/streamConfidenceRamp)
}
