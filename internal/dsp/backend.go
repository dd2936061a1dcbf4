// Package dsp implements the numeric analysis backend (harmonic/percussive
// separation, pitch tracking, chroma energy) plus shared signal utilities:
// STFT, loudness measurement, and true peak. Two backend implementations
// exist, differing only in FFT provider; selection happens once per process.
package dsp

import (
	"fmt"
	"log/slog"
	"math"
)

// Backend exposes the three analysis primitives the feature extractors
// depend on. Implementations are not safe for concurrent use; callers that
// parallelise must create one backend per worker.
//
// Failures are recoverable by contract: callers substitute the neutral
// values (NeutralSeparation, NeutralPitch, UniformChroma) and continue.
type Backend interface {
	Name() string

	// SeparateHarmonicPercussive splits a mono signal into harmonic and
	// percussive components of the same length.
	SeparateHarmonicPercussive(x []float64, sr int) (harmonic, percussive []float64, err error)

	// TrackPitch estimates the fundamental frequency per analysis frame,
	// restricted to [fMin, fMax] Hz. Unvoiced frames are 0.
	TrackPitch(x []float64, sr int, fMin, fMax float64) ([]float64, error)

	// ChromaEnergy returns a 12 x frames pitch-class energy matrix; rows
	// are classes C through B, columns are analysis frames.
	ChromaEnergy(x []float64, sr int) ([][]float64, error)
}

// backend binds the shared algorithms to one FFT provider.
type backend struct {
	name     string
	provider fftProvider
}

// NewAccelBackend returns the gonum-based backend with FFT plan reuse.
func NewAccelBackend() Backend {
	return &backend{name: "gonum", provider: newAccelProvider()}
}

// NewPortableBackend returns the fallback backend on go-dsp's FFT.
func NewPortableBackend() Backend {
	return &backend{name: "portable", provider: portableProvider{}}
}

// Select chooses the process-wide backend exactly once: probe the optimized
// provider with a known transform round-trip and bind the portable fallback
// on any anomaly. Callers never branch on which backend came back.
func Select(log *slog.Logger) Backend {
	if err := probeAccel(); err != nil {
		log.Warn("optimized DSP backend failed probe, using portable fallback", "error", err)
		return NewPortableBackend()
	}
	log.Debug("DSP backend selected", "backend", "gonum")
	return NewAccelBackend()
}

// probeAccel round-trips a known signal through the optimized provider and
// checks the reconstruction against tolerance. A panic inside the provider
// counts as a probe failure.
func probeAccel() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()

	const n = 64
	p := newAccelProvider()
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * 5 * float64(i) / n)
	}
	c := p.Forward(x)
	if len(c) != n/2+1 {
		return fmt.Errorf("probe spectrum has %d bins, want %d", len(c), n/2+1)
	}
	y := p.Inverse(c, n)
	for i := range x {
		d := x[i] - y[i]
		if math.IsNaN(d) || math.Abs(d) > 1e-9 {
			return fmt.Errorf("probe round-trip error %g at sample %d", d, i)
		}
	}
	return nil
}

func (b *backend) Name() string { return b.name }

func (b *backend) SeparateHarmonicPercussive(x []float64, sr int) ([]float64, []float64, error) {
	if len(x) == 0 {
		return nil, nil, fmt.Errorf("empty signal")
	}
	if sr <= 0 {
		return nil, nil, fmt.Errorf("invalid sample rate %d", sr)
	}
	return hpss(b.provider, x)
}

func (b *backend) TrackPitch(x []float64, sr int, fMin, fMax float64) ([]float64, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if sr <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sr)
	}
	if fMin <= 0 || fMax <= fMin || fMax > float64(sr)/2 {
		return nil, fmt.Errorf("invalid pitch range [%g, %g] at %d Hz", fMin, fMax, sr)
	}
	return trackPitch(x, sr, fMin, fMax), nil
}

func (b *backend) ChromaEnergy(x []float64, sr int) ([][]float64, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if sr <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sr)
	}
	return chromaEnergy(b.provider, x, sr), nil
}

// NeutralSeparation is the recovery value for a failed separation: the
// full signal counted as harmonic, zero percussive component.
func NeutralSeparation(x []float64) (harmonic, percussive []float64) {
	harmonic = make([]float64, len(x))
	copy(harmonic, x)
	percussive = make([]float64, len(x))
	return harmonic, percussive
}

// NeutralPitch is the recovery value for failed pitch tracking: every frame
// unvoiced.
func NeutralPitch(frames int) []float64 {
	return make([]float64, frames)
}

// UniformChroma is the recovery value for failed chroma analysis: energy
// spread evenly over all twelve pitch classes in every frame.
func UniformChroma(frames int) [][]float64 {
	c := make([][]float64, 12)
	for pc := range c {
		c[pc] = make([]float64, frames)
		for t := range c[pc] {
			c[pc][t] = 1.0 / 12.0
		}
	}
	return c
}
