package fingerprint

import (
	"errors"
	"io"
	"log/slog"
	"math"

	"github.com/earmark-audio/earmark/internal/audio"
	"github.com/earmark-audio/earmark/internal/dsp"
)

// Synthetic signal builders shared by the package tests.

// makeSine generates a mono sine at the given dBFS level.
func makeSine(freq, levelDB float64, samples, sampleRate int) []float64 {
	amp := math.Pow(10.0, levelDB/20.0)
	out := make([]float64, samples)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = amp * math.Sin(2.0*math.Pi*freq*t)
	}
	return out
}

// makeNoise generates deterministic white noise at the given dBFS level
// using a fixed-seed LCG, so runs are reproducible.
func makeNoise(levelDB float64, samples int) []float64 {
	amp := math.Pow(10.0, levelDB/20.0)
	rngState := uint32(2024)
	out := make([]float64, samples)
	for i := range out {
		rngState = rngState*1664525 + 1013904223
		out[i] = amp * ((float64(rngState)/float64(0xFFFFFFFF))*2.0 - 1.0)
	}
	return out
}

// makeBeat overlays short noise bursts at the given tempo over a quiet
// bass tone, which gives the temporal features a clear periodic onset
// pattern.
func makeBeat(bpm float64, samples, sampleRate int) []float64 {
	out := makeSine(110.0, -24.0, samples, sampleRate)
	burst := makeNoise(-6.0, sampleRate/50) // 20 ms
	interval := int(60.0 / bpm * float64(sampleRate))
	for start := 0; start < samples; start += interval {
		for i, b := range burst {
			if start+i >= samples {
				break
			}
			out[start+i] += b
		}
	}
	return out
}

func monoBuffer(x []float64, sampleRate int) *audio.Buffer {
	return &audio.Buffer{Data: [][]float64{x}, SampleRate: sampleRate}
}

func stereoBuffer(left, right []float64, sampleRate int) *audio.Buffer {
	return &audio.Buffer{Data: [][]float64{left, right}, SampleRate: sampleRate}
}

func testExtractor(b dsp.Backend) *Extractor {
	if b == nil {
		b = dsp.NewPortableBackend()
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExtractor(b, DefaultConfig(), log)
}

// failingBackend errors on every call, forcing the neutral-value paths.
type failingBackend struct{}

var errBackendDown = errors.New("backend down")

func (failingBackend) Name() string { return "failing" }

func (failingBackend) SeparateHarmonicPercussive(x []float64, sr int) ([]float64, []float64, error) {
	return nil, nil, errBackendDown
}

func (failingBackend) TrackPitch(x []float64, sr int, fMin, fMax float64) ([]float64, error) {
	return nil, errBackendDown
}

func (failingBackend) ChromaEnergy(x []float64, sr int) ([][]float64, error) {
	return nil, errBackendDown
}

// panickyBackend panics on every call; extraction must treat that as a
// sub-feature failure, not a crash.
type panickyBackend struct{}

func (panickyBackend) Name() string { return "panicky" }

func (panickyBackend) SeparateHarmonicPercussive(x []float64, sr int) ([]float64, []float64, error) {
	panic("separation exploded")
}

func (panickyBackend) TrackPitch(x []float64, sr int, fMin, fMax float64) ([]float64, error) {
	panic("pitch exploded")
}

func (panickyBackend) ChromaEnergy(x []float64, sr int) ([][]float64, error) {
	panic("chroma exploded")
}
