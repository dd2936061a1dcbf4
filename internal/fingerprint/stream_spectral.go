package fingerprint

import (
	"math"

	"github.com/earmark-audio/earmark/internal/dsp"
)

// SpectralEstimate is the current streaming view of the spectral family.
type SpectralEstimate struct {
	Centroid float64
	Rolloff  float64
	Flatness float64
}

// SpectralStream keeps O(1) running sums for centroid and flatness per
// spectral frame. Rolloff inherently needs a cumulative-energy pass, so it
// reads a bounded ring of recent magnitude spectra instead; the ring never
// grows past streamSpectraForRoll entries.
type SpectralStream struct {
	sr int

	buf    []float64
	frames int

	centroidNum float64
	centroidDen float64
	flatnessSum float64

	recent [][]float64 // ring, newest last
}

func NewSpectralStream(sampleRate int) *SpectralStream {
	return &SpectralStream{sr: sampleRate}
}

// Reset discards all accumulated state.
func (s *SpectralStream) Reset() {
	*s = SpectralStream{sr: s.sr}
}

// Update consumes one frame of mono audio; every complete FFT window
// becomes one spectral frame.
func (s *SpectralStream) Update(frame []float64) SpectralEstimate {
	s.buf = append(s.buf, frame...)
	for len(s.buf) >= analysisFFTSize {
		window := s.buf[:analysisFFTSize]
		s.analyzeWindow(window)
		s.buf = s.buf[analysisFFTSize:]
	}
	return s.Estimate()
}

func (s *SpectralStream) analyzeWindow(window []float64) {
	mag := dsp.Spectrogram(window, analysisFFTSize, analysisHop)
	if len(mag) == 0 {
		return
	}
	spectrum := mag[0]

	power := make([]float64, len(spectrum))
	binHz := float64(s.sr) / 2 / float64(len(spectrum)-1)
	var num, den float64
	for k, m := range spectrum {
		p := m * m
		power[k] = p
		num += float64(k) * binHz * p
		den += p
	}
	if den > 1e-12 {
		s.centroidNum += num
		s.centroidDen += den
		s.flatnessSum += spectralFlatness(power)
	} else {
		s.flatnessSum += DefaultSpectralFlatness
	}
	s.frames++

	s.recent = append(s.recent, power)
	if len(s.recent) > streamSpectraForRoll {
		s.recent = s.recent[1:]
	}
}

// Estimate returns the running view; rolloff recomputes cumulative energy
// over the retained spectra.
func (s *SpectralStream) Estimate() SpectralEstimate {
	est := SpectralEstimate{
		Centroid: DefaultSpectralCentroid,
		Rolloff:  DefaultSpectralRolloff,
		Flatness: DefaultSpectralFlatness,
	}
	if s.frames == 0 {
		return est
	}

	if s.centroidDen > 1e-12 {
		nyquist := float64(s.sr) / 2
		est.Centroid = clamp(s.centroidNum/s.centroidDen/nyquist, 0, 1)
	}
	est.Flatness = clamp(s.flatnessSum/float64(s.frames), 0, 1)

	if len(s.recent) > 0 {
		avg := make([]float64, len(s.recent[0]))
		for _, p := range s.recent {
			for k, v := range p {
				avg[k] += v
			}
		}
		est.Rolloff = clamp(spectralRolloff(avg, s.sr), 0, 1)
	}
	return est
}

// Confidence rises with the number of spectral frames analyzed.
func (s *SpectralStream) Confidence() float64 {
	return math.Min(1, float64(s.frames)/streamConfidenceRamp)
}
