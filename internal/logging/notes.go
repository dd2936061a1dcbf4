package logging

import (
	"fmt"
	"sort"
	"strings"

	"github.com/earmark-audio/earmark/internal/fingerprint"
)

// SourceNote represents a single observation about the source material
// derived from its fingerprint, worded for the report's Notes section.
type SourceNote struct {
	Priority int    // Higher = more important (1-10)
	Message  string // Human-readable observation (1-2 sentences)
	RuleID   string // Identifier for testing/logging (e.g., "hyper_compressed")
}

// MaxSourceNotes is the maximum number of notes to include.
const MaxSourceNotes = 5

// GenerateSourceNotes inspects a fingerprint and returns prioritised
// observations about the source. Channels is the decoded channel count;
// stereo-image rules stay quiet for mono input.
func GenerateSourceNotes(fp fingerprint.Fingerprint, channels int) []SourceNote {
	var notes []SourceNote
	firedRules := make(map[string]bool)

	rules := []func(fingerprint.Fingerprint, int) *SourceNote{
		noteHyperCompressed,
		noteVeryQuiet,
		notePhaseRisk,
		noteNoiseLike,
		noteBassHeavy,
		noteMuddy,
		noteHarsh,
		noteDark,
		noteNarrowStereo,
		noteLongSilence,
	}

	for _, rule := range rules {
		if note := rule(fp, channels); note != nil {
			notes = append(notes, *note)
			firedRules[note.RuleID] = true
		}
	}

	// Apply mutual exclusion
	notes = applyExclusions(notes, firedRules)

	// Sort by priority (descending), keeping rule order for ties
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Priority > notes[j].Priority
	})

	// Cap at maximum
	if len(notes) > MaxSourceNotes {
		notes = notes[:MaxSourceNotes]
	}

	return notes
}

// applyExclusions removes notes that are redundant when a more specific note
// has already fired. For example, "narrow_stereo" is suppressed when
// "phase_risk" fires because the phase problem already explains the image.
func applyExclusions(notes []SourceNote, fired map[string]bool) []SourceNote {
	var result []SourceNote
	for _, note := range notes {
		switch note.RuleID {
		case "narrow_stereo":
			if fired["phase_risk"] {
				continue
			}
		case "muddy":
			if fired["bass_heavy"] {
				continue
			}
		}
		result = append(result, note)
	}
	return result
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	words := strings.Fields(text)
	var lines []string
	currentLine := ""

	for _, word := range words {
		if currentLine == "" {
			currentLine = word
		} else if len(currentLine)+1+len(word) <= maxWidth {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return strings.Join(lines, "\n"+indent)
}

// noteHyperCompressed fires when the crest factor is below 8 dB.
// That is the floor under which the dynamics stage gives up: material this
// dense has no transient structure left to rebuild.
func noteHyperCompressed(fp fingerprint.Fingerprint, _ int) *SourceNote {
	if fp.CrestDB >= 8.0 {
		return nil
	}
	return &SourceNote{
		Priority: 8,
		RuleID:   "hyper_compressed",
		Message:  fmt.Sprintf("The source is brickwall-limited (%.1f dB crest). Dynamics this dense cannot be rebuilt, so the dynamics stage is skipped - a less limited mix would master better.", fp.CrestDB),
	}
}

// noteVeryQuiet fires when integrated loudness sits below -35 LUFS.
// The normaliser never lifts a track by more than 20 dB, so a source this
// quiet will still land short of the usual target.
func noteVeryQuiet(fp fingerprint.Fingerprint, _ int) *SourceNote {
	if fp.Loudness >= -35.0 {
		return nil
	}
	return &SourceNote{
		Priority: 8,
		RuleID:   "very_quiet",
		Message:  fmt.Sprintf("The source is very quiet (%.1f LUFS). The lift is capped at 20 dB and the noise floor rises with it - re-exporting at a healthier level would give a cleaner result.", fp.Loudness),
	}
}

// notePhaseRisk fires when left/right correlation drops below 0.2 on stereo
// input. Below that line the width enhancement is halved to protect mono
// playback.
func notePhaseRisk(fp fingerprint.Fingerprint, channels int) *SourceNote {
	if channels != 2 || fp.PhaseCorrelation >= 0.2 {
		return nil
	}
	return &SourceNote{
		Priority: 7,
		RuleID:   "phase_risk",
		Message:  "Left and right channels are weakly correlated, which cancels on mono playback. Width enhancement runs at half strength; check the mix for out-of-phase tracks.",
	}
}

// noteNoiseLike fires when the spectrum is mostly noise with little harmonic
// content (flatness above 0.5 and harmonic ratio below 0.4). Saturation
// artifacts are masked by material like this, so the soft clipper runs at
// its harder setting.
func noteNoiseLike(fp fingerprint.Fingerprint, _ int) *SourceNote {
	if fp.SpectralFlatness <= 0.5 || fp.HarmonicRatio >= 0.4 {
		return nil
	}
	return &SourceNote{
		Priority: 6,
		RuleID:   "noise_like",
		Message:  "Much of the spectrum is noise-like rather than pitched. Clipping artifacts will be masked, so peak control leans on the harder clip setting.",
	}
}

// noteBassHeavy fires when sub-bass and bass together carry more than 40%
// of the spectral energy. The bass correction then works as a cut.
func noteBassHeavy(fp fingerprint.Fingerprint, _ int) *SourceNote {
	lowEnd := fp.SubBassPct + fp.BassPct
	if lowEnd <= 40.0 {
		return nil
	}
	return &SourceNote{
		Priority: 5,
		RuleID:   "bass_heavy",
		Message:  fmt.Sprintf("The low end carries %.0f%% of the spectral energy. The bass correction will pull it down rather than lift it.", lowEnd),
	}
}

// noteMuddy fires when low-mid energy (250-500 Hz) exceeds 25% of the
// total, which reads as congestion. The warmth stage cuts there instead of
// boosting.
func noteMuddy(fp fingerprint.Fingerprint, _ int) *SourceNote {
	if fp.LowMidPct <= 25.0 {
		return nil
	}
	return &SourceNote{
		Priority: 5,
		RuleID:   "muddy",
		Message:  fmt.Sprintf("Energy piles up in the low mids (%.0f%% between 250 and 500 Hz), which tends to sound congested. The warmth stage cuts there to open the mix up.", fp.LowMidPct),
	}
}

// noteHarsh fires when the spectral centroid sits above 0.7 of Nyquist.
// The presence correction then eases the upper mids back.
func noteHarsh(fp fingerprint.Fingerprint, _ int) *SourceNote {
	if fp.SpectralCentroid <= 0.7 {
		return nil
	}
	return &SourceNote{
		Priority: 5,
		RuleID:   "harsh",
		Message:  "The spectrum tilts very bright, which risks harshness on small speakers. Presence is eased back instead of boosted.",
	}
}

// noteDark fires when the centroid is low and the air band is nearly empty
// (centroid below 0.2 of Nyquist, air share below 2%). The air shelf then
// gets its full lift.
func noteDark(fp fingerprint.Fingerprint, _ int) *SourceNote {
	if fp.SpectralCentroid >= 0.2 || fp.AirPct >= 2.0 {
		return nil
	}
	return &SourceNote{
		Priority: 4,
		RuleID:   "dark",
		Message:  "There is almost no energy above 6 kHz, so the track reads as dark. The air shelf applies its full lift; if the top end was filtered off upstream, restoring it there will sound better than EQ here.",
	}
}

// noteNarrowStereo fires when stereo input measures nearly mono
// (width below 0.15). Suppressed when phase_risk fires.
func noteNarrowStereo(fp fingerprint.Fingerprint, channels int) *SourceNote {
	if channels != 2 || fp.StereoWidth >= 0.15 {
		return nil
	}
	return &SourceNote{
		Priority: 4,
		RuleID:   "narrow_stereo",
		Message:  "The stereo image is very narrow, close to mono. Width enhancement will open it slightly, but panning decisions in the mix matter more.",
	}
}

// noteLongSilence fires when more than 30% of frames sit 40 dB under the
// peak. Loudness readings then understate the audible material.
func noteLongSilence(fp fingerprint.Fingerprint, _ int) *SourceNote {
	if fp.SilenceRatio <= 0.3 {
		return nil
	}
	return &SourceNote{
		Priority: 3,
		RuleID:   "long_silence",
		Message:  fmt.Sprintf("About %.0f%% of the track is effectively silent, so the integrated loudness reads lower than the audible material. Consider trimming leading or trailing silence.", fp.SilenceRatio*100),
	}
}
