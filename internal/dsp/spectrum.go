package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// fftProvider computes real-input transforms. Forward returns the half
// spectrum (n/2+1 bins for even n); Inverse reconstructs a real signal of
// length n from it. Providers are not safe for concurrent use; each STFT
// owns its provider instance.
type fftProvider interface {
	Name() string
	Forward(x []float64) []complex128
	Inverse(c []complex128, n int) []float64
}

// accelProvider wraps gonum's real FFT with per-size plan reuse, so repeated
// frames of the same length share twiddle-factor tables.
type accelProvider struct {
	plans map[int]*fourier.FFT
}

func newAccelProvider() *accelProvider {
	return &accelProvider{plans: make(map[int]*fourier.FFT)}
}

func (p *accelProvider) Name() string { return "gonum" }

func (p *accelProvider) plan(n int) *fourier.FFT {
	if f, ok := p.plans[n]; ok {
		return f
	}
	f := fourier.NewFFT(n)
	p.plans[n] = f
	return f
}

func (p *accelProvider) Forward(x []float64) []complex128 {
	return p.plan(len(x)).Coefficients(nil, x)
}

func (p *accelProvider) Inverse(c []complex128, n int) []float64 {
	seq := p.plan(n).Sequence(nil, c)
	// gonum's transform pair is unnormalised: forward then inverse scales
	// by n.
	scale := 1.0 / float64(n)
	for i := range seq {
		seq[i] *= scale
	}
	return seq
}

// portableProvider uses go-dsp's radix-2/Bluestein FFT. No plan state, a
// little slower, identical results within floating-point tolerance.
type portableProvider struct{}

func (portableProvider) Name() string { return "radix2" }

func (portableProvider) Forward(x []float64) []complex128 {
	full := fft.FFTReal(x)
	half := make([]complex128, len(x)/2+1)
	copy(half, full[:len(x)/2+1])
	return half
}

func (portableProvider) Inverse(c []complex128, n int) []float64 {
	full := make([]complex128, n)
	copy(full, c)
	// Rebuild the upper bins from Hermitian symmetry.
	for k := 1; k < n-len(c)+1; k++ {
		full[n-k] = cmplx.Conj(full[k])
	}
	res := fft.IFFT(full)
	out := make([]float64, n)
	for i := range out {
		out[i] = real(res[i])
	}
	return out
}

// stft slices a signal into windowed frames and transforms each one.
type stft struct {
	provider fftProvider
	size     int
	hop      int
	win      []float64
}

func newSTFT(p fftProvider, size, hop int) *stft {
	return &stft{provider: p, size: size, hop: hop, win: window.Hann(size)}
}

// frames returns the number of analysis frames for a signal of length n.
// Signals shorter than one window still produce a single zero-padded frame.
func (s *stft) frames(n int) int {
	if n <= s.size {
		return 1
	}
	return 1 + (n-s.size)/s.hop
}

// analyze returns the complex half spectra, frames x (size/2+1).
func (s *stft) analyze(x []float64) [][]complex128 {
	nf := s.frames(len(x))
	spec := make([][]complex128, nf)
	frame := make([]float64, s.size)
	for t := 0; t < nf; t++ {
		start := t * s.hop
		for i := 0; i < s.size; i++ {
			if start+i < len(x) {
				frame[i] = x[start+i] * s.win[i]
			} else {
				frame[i] = 0
			}
		}
		spec[t] = s.provider.Forward(frame)
	}
	return spec
}

// synthesize reconstructs a signal of length n from modified half spectra by
// weighted overlap-add, dividing by the accumulated squared window so the
// analysis windowing cancels.
func (s *stft) synthesize(spec [][]complex128, n int) []float64 {
	out := make([]float64, n)
	norm := make([]float64, n)
	for t, c := range spec {
		frame := s.provider.Inverse(c, s.size)
		start := t * s.hop
		for i := 0; i < s.size && start+i < n; i++ {
			out[start+i] += frame[i] * s.win[i]
			norm[start+i] += s.win[i] * s.win[i]
		}
	}
	for i := range out {
		if norm[i] > 1e-12 {
			out[i] /= norm[i]
		}
	}
	return out
}

// magnitudes converts complex spectra to magnitude spectra.
func magnitudes(spec [][]complex128) [][]float64 {
	mag := make([][]float64, len(spec))
	for t, row := range spec {
		m := make([]float64, len(row))
		for k, c := range row {
			m[k] = cmplx.Abs(c)
		}
		mag[t] = m
	}
	return mag
}

// Spectrogram computes a Hann-windowed magnitude spectrogram
// (frames x fftSize/2+1). It is a shared analysis utility independent of
// backend selection; signals shorter than one window are zero-padded to a
// single frame.
func Spectrogram(x []float64, fftSize, hop int) [][]float64 {
	s := newSTFT(newAccelProvider(), fftSize, hop)
	return magnitudes(s.analyze(x))
}

// HannWindow returns an n-point Hann window.
func HannWindow(n int) []float64 {
	return window.Hann(n)
}

// LinearToDB converts linear amplitude to decibels, floored at -120 dB so
// digital silence stays finite.
func LinearToDB(x float64) float64 {
	if x < 1e-6 {
		return -120.0
	}
	return 20.0 * math.Log10(x)
}

// DBToLinear converts decibels to linear amplitude.
func DBToLinear(db float64) float64 {
	return math.Pow(10.0, db/20.0)
}

// RMS returns the root-mean-square of a signal, 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, s := range x {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(x)))
}

// PeakAbs returns the largest absolute sample value.
func PeakAbs(x []float64) float64 {
	peak := 0.0
	for _, s := range x {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}
