package logging

import (
	"strings"
	"testing"

	"github.com/earmark-audio/earmark/internal/fingerprint"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth int
		indent   string
		want     string
	}{
		{
			name:     "short_text_no_wrap",
			text:     "Hello world",
			maxWidth: 20,
			indent:   "  ",
			want:     "Hello world",
		},
		{
			name:     "long_text_wraps",
			text:     "The low end carries most of the spectral energy in this mix",
			maxWidth: 30,
			indent:   "  ",
			want:     "The low end carries most of\n  the spectral energy in this\n  mix",
		},
		{
			name:     "single_long_word",
			text:     "supercalifragilisticexpialidocious",
			maxWidth: 10,
			indent:   "  ",
			want:     "supercalifragilisticexpialidocious",
		},
		{
			name:     "empty_input",
			text:     "",
			maxWidth: 20,
			indent:   "  ",
			want:     "",
		},
		{
			name:     "exact_fit",
			text:     "exactly twenty chars",
			maxWidth: 20,
			indent:   "  ",
			want:     "exactly twenty chars",
		},
		{
			name:     "multiple_wraps",
			text:     "one two three four five six seven eight nine ten",
			maxWidth: 15,
			indent:   "    ",
			want:     "one two three\n    four five six\n    seven eight\n    nine ten",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapText(tt.text, tt.maxWidth, tt.indent)
			if got != tt.want {
				t.Errorf("wrapText() = %q, want %q", got, tt.want)
			}
		})
	}
}

// quietSource returns a fingerprint that fires no note at all: moderate
// loudness, healthy dynamics, balanced spectrum, clean stereo.
func quietSource() fingerprint.Fingerprint {
	fp := fingerprint.Default()
	fp.Loudness = -16
	fp.CrestDB = 12
	fp.StereoWidth = 0.4
	return fp
}

func TestNoteHyperCompressed(t *testing.T) {
	tests := []struct {
		name     string
		crest    float64
		wantNote bool
	}{
		{"brickwalled 5 dB", 5.0, true},
		{"just below gate 7.9 dB", 7.9, true},
		{"at gate 8 dB", 8.0, false},
		{"dynamic 14 dB", 14.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := quietSource()
			fp.CrestDB = tt.crest
			note := noteHyperCompressed(fp, 2)
			if (note != nil) != tt.wantNote {
				t.Fatalf("noteHyperCompressed() note=%v, want note=%v", note != nil, tt.wantNote)
			}
			if note != nil && note.RuleID != "hyper_compressed" {
				t.Errorf("RuleID = %q, want %q", note.RuleID, "hyper_compressed")
			}
		})
	}
}

func TestNoteVeryQuiet(t *testing.T) {
	tests := []struct {
		name     string
		loudness float64
		wantNote bool
	}{
		{"whisper -45 LUFS", -45.0, true},
		{"boundary -35 LUFS", -35.0, false},
		{"normal -16 LUFS", -16.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := quietSource()
			fp.Loudness = tt.loudness
			note := noteVeryQuiet(fp, 2)
			if (note != nil) != tt.wantNote {
				t.Fatalf("noteVeryQuiet() note=%v, want note=%v", note != nil, tt.wantNote)
			}
			if note != nil && !strings.Contains(note.Message, "-45.0 LUFS") {
				t.Errorf("Message %q should quote the measured loudness", note.Message)
			}
		})
	}
}

func TestNotePhaseRisk(t *testing.T) {
	tests := []struct {
		name     string
		phase    float64
		channels int
		wantNote bool
	}{
		{"inverted stereo", -0.8, 2, true},
		{"weak correlation", 0.1, 2, true},
		{"boundary 0.2", 0.2, 2, false},
		{"healthy stereo", 0.7, 2, false},
		{"mono never fires", -0.8, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := quietSource()
			fp.PhaseCorrelation = tt.phase
			note := notePhaseRisk(fp, tt.channels)
			if (note != nil) != tt.wantNote {
				t.Errorf("notePhaseRisk() note=%v, want note=%v", note != nil, tt.wantNote)
			}
		})
	}
}

func TestNoteBassHeavyAndMuddy(t *testing.T) {
	fp := quietSource()
	fp.SubBassPct = 18
	fp.BassPct = 30
	if note := noteBassHeavy(fp, 2); note == nil {
		t.Error("48% low end should fire bass_heavy")
	} else if !strings.Contains(note.Message, "48%") {
		t.Errorf("Message %q should quote the combined share", note.Message)
	}

	fp = quietSource()
	fp.LowMidPct = 30
	if note := noteMuddy(fp, 2); note == nil {
		t.Error("30% low mids should fire muddy")
	}

	if note := noteMuddy(quietSource(), 2); note != nil {
		t.Errorf("default low mids should not fire muddy, got %q", note.RuleID)
	}
}

func TestNoteNoiseLike(t *testing.T) {
	fp := quietSource()
	fp.SpectralFlatness = 0.7
	fp.HarmonicRatio = 0.2
	if noteNoiseLike(fp, 2) == nil {
		t.Error("flat spectrum with low harmonicity should fire noise_like")
	}

	// Harmonic content vetoes the note even when the spectrum is flat.
	fp.HarmonicRatio = 0.6
	if noteNoiseLike(fp, 2) != nil {
		t.Error("harmonic material should not fire noise_like")
	}
}

func TestNoteNarrowStereoExcludedByPhaseRisk(t *testing.T) {
	fp := quietSource()
	fp.StereoWidth = 0.05
	fp.PhaseCorrelation = 0.1

	notes := GenerateSourceNotes(fp, 2)

	var ids []string
	for _, n := range notes {
		ids = append(ids, n.RuleID)
	}
	if !containsRule(notes, "phase_risk") {
		t.Fatalf("expected phase_risk to fire, got %v", ids)
	}
	if containsRule(notes, "narrow_stereo") {
		t.Errorf("narrow_stereo should be suppressed by phase_risk, got %v", ids)
	}
}

func TestNoteMuddyExcludedByBassHeavy(t *testing.T) {
	fp := quietSource()
	fp.SubBassPct = 20
	fp.BassPct = 25
	fp.LowMidPct = 30

	notes := GenerateSourceNotes(fp, 2)
	if !containsRule(notes, "bass_heavy") {
		t.Fatal("expected bass_heavy to fire")
	}
	if containsRule(notes, "muddy") {
		t.Error("muddy should be suppressed when bass_heavy fires")
	}
}

func TestGenerateSourceNotesClean(t *testing.T) {
	notes := GenerateSourceNotes(quietSource(), 2)
	if len(notes) != 0 {
		var ids []string
		for _, n := range notes {
			ids = append(ids, n.RuleID)
		}
		t.Errorf("clean source should produce no notes, got %v", ids)
	}
}

func TestGenerateSourceNotesSortedAndCapped(t *testing.T) {
	// Fires hyper_compressed, very_quiet, phase_risk, noise_like,
	// bass_heavy, harsh, and long_silence. Exclusions then drop muddy and
	// narrow_stereo, and the cap trims the seven survivors to five.
	fp := fingerprint.Fingerprint{
		Loudness:         -40,
		CrestDB:          5,
		SubBassPct:       20,
		BassPct:          25,
		LowMidPct:        30,
		SpectralCentroid: 0.8,
		SpectralFlatness: 0.6,
		HarmonicRatio:    0.2,
		StereoWidth:      0.05,
		PhaseCorrelation: 0.1,
		SilenceRatio:     0.5,
	}

	notes := GenerateSourceNotes(fp, 2)

	if len(notes) != MaxSourceNotes {
		t.Fatalf("got %d notes, want cap of %d", len(notes), MaxSourceNotes)
	}
	for i := 1; i < len(notes); i++ {
		if notes[i].Priority > notes[i-1].Priority {
			t.Errorf("notes not sorted by priority: %d before %d", notes[i-1].Priority, notes[i].Priority)
		}
	}
	// The cap should keep the high-priority observations.
	if !containsRule(notes, "hyper_compressed") || !containsRule(notes, "very_quiet") {
		t.Error("cap should preserve the highest-priority notes")
	}
	if containsRule(notes, "long_silence") {
		t.Error("lowest-priority note should be the one dropped by the cap")
	}
}

func containsRule(notes []SourceNote, id string) bool {
	for _, n := range notes {
		if n.RuleID == id {
			return true
		}
	}
	return false
}
