package fingerprint

import (
	"encoding/json"
	"math"
	"testing"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	fp := Default()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"loudness", fp.Loudness, -23.0},
		{"crest_db", fp.CrestDB, 12.0},
		{"bass_mid_ratio", fp.BassMidRatio, 1.0},
		{"mid_pct", fp.MidPct, 30.0},
		{"tempo_bpm", fp.TempoBPM, 120.0},
		{"silence_ratio", fp.SilenceRatio, 0.0},
		{"harmonic_ratio", fp.HarmonicRatio, 0.7},
		{"phase_correlation", fp.PhaseCorrelation, 1.0},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s default = %g, want %g", tt.name, tt.got, tt.want)
		}
	}

	// Band shares of the default record describe a full spectrum.
	sum := fp.SubBassPct + fp.BassPct + fp.LowMidPct + fp.MidPct +
		fp.HighMidPct + fp.PresencePct + fp.AirPct
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("default band percentages sum to %g, want 100", sum)
	}
}

func TestClampedForcesDocumentedRanges(t *testing.T) {
	fp := Fingerprint{
		Loudness:             3.0,   // above full scale
		CrestDB:              -2.0,  // negative crest is impossible
		BassMidRatio:         99.0,  // above the 10x cap
		TempoBPM:             500.0, // above the audible tempo band
		RhythmStability:      1.7,
		SpectralCentroid:     -0.4,
		PhaseCorrelation:     -3.0,
		LoudnessVariationStd: math.NaN(),
	}
	got := fp.Clamped()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"loudness", got.Loudness, 0},
		{"crest_db", got.CrestDB, 0},
		{"bass_mid_ratio", got.BassMidRatio, 10},
		{"tempo_bpm", got.TempoBPM, 200},
		{"rhythm_stability", got.RhythmStability, 1},
		{"spectral_centroid", got.SpectralCentroid, 0},
		{"phase_correlation", got.PhaseCorrelation, -1},
		{"loudness_variation_std", got.LoudnessVariationStd, 0}, // NaN lands at the range floor
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("clamped %s = %g, want %g", tt.name, tt.got, tt.want)
		}
	}
}

func TestVectorRoundTrip(t *testing.T) {
	fp := Default()
	fp.Loudness = -17.5
	fp.AirPct = 8.25
	fp.PhaseCorrelation = -0.5

	if got := fromVector(fp.vector()); got != fp {
		t.Errorf("vector round trip changed the record:\ngot  %+v\nwant %+v", got, fp)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	fp := Default()
	fp.TempoBPM = 87.5
	fp.StereoWidth = 0.42

	data, err := json.Marshal(fp)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var got Fingerprint
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got != fp {
		t.Errorf("JSON round trip changed the record:\ngot  %+v\nwant %+v", got, fp)
	}

	// Sidecar readers depend on the snake_case field names.
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal to map failed: %v", err)
	}
	for _, key := range []string{"loudness", "crest_db", "tempo_bpm", "stereo_width", "phase_correlation"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("serialized fingerprint missing key %q", key)
		}
	}
	if len(raw) != 25 {
		t.Errorf("serialized fingerprint has %d keys, want 25", len(raw))
	}
}
