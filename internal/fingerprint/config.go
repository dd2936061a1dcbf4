package fingerprint

import "runtime"

// Analysis framing shared by the batch extractors.
const (
	analysisFFTSize = 2048 // samples - STFT window for spectral features
	analysisHop     = 512  // samples - STFT hop

	variationFrameSecs = 0.5  // s - frame length for variation features
	silenceFrameSecs   = 0.05 // s - frame length for the silence ratio
	silenceFloorDB     = 40.0 // dB - below peak counts as silence

	pitchFMin = 65.0   // Hz - C2, lower pitch tracking bound
	pitchFMax = 2093.0 // Hz - C7, upper pitch tracking bound

	chromaCeiling       = 0.4  // empirical mean-chroma ceiling for normalization
	pitchStabilityScale = 10.0 // CV multiplier, more sensitive than generic stability
	transientCeilingHz  = 10.0 // onsets/s mapping to transient_density 1.0
)

// Config tunes the sampled and streaming analyzers. Zero values select the
// documented defaults via Sanitize.
type Config struct {
	WindowSecs    float64 // s - sampled analysis window length
	StrideSecs    float64 // s - distance between sampled window starts
	Workers       int     // sampled analysis workers, 0 = NumCPU
	ReservoirSeed int64   // streaming pitch reservoir seed, 0 = time-based
}

// DefaultConfig is the validated operating point: 5 s windows every 10 s
// keep sampled output correlating at 0.85 or better with full batch
// analysis on representative material.
func DefaultConfig() Config {
	return Config{
		WindowSecs:    5.0,
		StrideSecs:    10.0,
		Workers:       0,
		ReservoirSeed: 0,
	}
}

// Sanitize clamps nonsense values back to the defaults.
func (c Config) Sanitize() Config {
	def := DefaultConfig()
	if c.WindowSecs <= 0 {
		c.WindowSecs = def.WindowSecs
	}
	if c.StrideSecs < c.WindowSecs {
		c.StrideSecs = c.WindowSecs
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return c
}
