// Package logging handles generation of mastering reports for processed audio files

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/earmark-audio/earmark/internal/audio"
	"github.com/earmark-audio/earmark/internal/fingerprint"
	"github.com/earmark-audio/earmark/internal/mastering"
)

// ============================================================================
// Fingerprint Interpretation Functions
// ============================================================================
// These functions interpret fingerprint values and return human-readable
// descriptions of the source material. Thresholds follow EBU R 128 loudness
// conventions and common mastering practice.

// interpretLoudness describes the overall programme level.
// Streaming platforms normalise to about -14 LUFS; broadcast sits at -23;
// loudness-war masters push past -8.
func interpretLoudness(lufs float64) string {
	switch {
	case lufs < -30:
		return "very quiet, likely unmastered"
	case lufs < -23:
		return "quiet, below broadcast level"
	case lufs < -16:
		return "moderate, below streaming level"
	case lufs < -11:
		return "streaming level, modern master"
	case lufs < -8:
		return "loud, heavily limited"
	default:
		return "very loud, loudness-war master"
	}
}

// interpretCrest describes peak-to-RMS headroom.
// Brickwalled pop sits under 8 dB; unprocessed acoustic material can
// exceed 16 dB.
func interpretCrest(db float64) string {
	switch {
	case db < 6:
		return "brickwalled, no transient headroom"
	case db < 9:
		return "heavily compressed"
	case db < 12:
		return "controlled, typical pop master"
	case db < 16:
		return "dynamic"
	default:
		return "very dynamic, unprocessed or classical"
	}
}

// interpretBassBalance describes the bass-to-mid energy ratio.
func interpretBassBalance(ratio float64) string {
	switch {
	case ratio < 0.5:
		return "thin low end"
	case ratio < 0.8:
		return "light low end"
	case ratio < 1.5:
		return "balanced low end"
	case ratio < 2.5:
		return "bass-forward"
	default:
		return "bass-dominant"
	}
}

// interpretCentroid describes spectral "brightness" based on centre of gravity.
// The value is a fraction of Nyquist, so it is comparable across sample rates.
func interpretCentroid(frac float64) string {
	switch {
	case frac < 0.15:
		return "very dark"
	case frac < 0.3:
		return "warm, rolled-off top"
	case frac < 0.5:
		return "balanced"
	case frac < 0.65:
		return "bright"
	default:
		return "very bright, potentially harsh"
	}
}

// interpretFlatness describes how noise-like the spectrum is.
// 0 is a pure tone; 1 is white noise.
func interpretFlatness(flatness float64) string {
	switch {
	case flatness < 0.1:
		return "strongly tonal"
	case flatness < 0.3:
		return "tonal with broadband texture"
	case flatness < 0.5:
		return "mixed tonal and noise content"
	default:
		return "noise-like"
	}
}

// interpretHarmonicity describes the harmonic-to-percussive energy split.
func interpretHarmonicity(ratio float64) string {
	switch {
	case ratio < 0.3:
		return "percussion-dominant"
	case ratio < 0.5:
		return "rhythm-forward"
	case ratio < 0.7:
		return "mixed harmonic and percussive"
	default:
		return "harmony-dominant"
	}
}

// interpretTempo describes the detected tempo in common musical terms.
func interpretTempo(bpm float64) string {
	switch {
	case bpm < 70:
		return "slow"
	case bpm < 100:
		return "moderate"
	case bpm < 130:
		return "uptempo"
	case bpm < 160:
		return "fast"
	default:
		return "very fast"
	}
}

// interpretRhythm describes beat interval regularity.
// Zero means the detector found too few beats to judge.
func interpretRhythm(stability float64) string {
	switch {
	case stability < 0.2:
		return "free time or too few beats to tell"
	case stability < 0.5:
		return "loose timing"
	case stability < 0.8:
		return "steady"
	default:
		return "metronomic"
	}
}

// interpretTransients describes onset density against a 10 Hz ceiling.
func interpretTransients(density float64) string {
	switch {
	case density < 0.15:
		return "sparse onsets"
	case density < 0.4:
		return "moderate onset activity"
	case density < 0.7:
		return "busy"
	default:
		return "dense, percussive"
	}
}

// interpretLoudnessVariation describes how much the short-term level moves.
// High values usually mean distinct sections (verse/chorus, movements).
func interpretLoudnessVariation(stdDB float64) string {
	switch {
	case stdDB < 1:
		return "very consistent level"
	case stdDB < 2.5:
		return "consistent level"
	case stdDB < 4.5:
		return "varied level"
	default:
		return "very varied, distinct sections"
	}
}

// interpretWidth describes the side-to-mid energy balance.
func interpretWidth(width float64) string {
	switch {
	case width < 0.05:
		return "essentially mono"
	case width < 0.2:
		return "narrow"
	case width < 0.45:
		return "moderate width"
	case width < 0.7:
		return "wide"
	default:
		return "very wide"
	}
}

// interpretPhase describes left/right correlation and mono compatibility.
// Correlation below zero cancels on mono playback.
func interpretPhase(correlation float64) string {
	switch {
	case correlation < 0:
		return "out of phase, cancels in mono"
	case correlation < 0.2:
		return "phase trouble, poor mono compatibility"
	case correlation < 0.5:
		return "loose correlation"
	case correlation < 0.85:
		return "healthy stereo"
	default:
		return "tight correlation, near mono"
	}
}

// =============================================================================
// Report Section Formatting Helpers
// =============================================================================

// writeSection writes a section header with title and dashed underline.
// The underline length matches the title length.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// LevelSummary holds the loudness measurements taken on one side of the
// mastering pass.
type LevelSummary struct {
	LoudnessLUFS float64
	TruePeakDB   float64
	CrestDB      float64
}

// ReportData contains all the information needed to generate a mastering report
type ReportData struct {
	InputPath     string
	OutputPath    string
	StartTime     time.Time
	EndTime       time.Time
	AnalysisTime  time.Duration // fingerprint resolution (cache lookup or extraction)
	MasteringTime time.Duration
	FingerprintAt time.Time // when the fingerprint was extracted; before StartTime means a cache hit
	Metadata      *audio.Metadata
	Fingerprint   fingerprint.Fingerprint
	Targets       fingerprint.MasteringTargets
	Class         mastering.MaterialClass
	Thresholds    mastering.ClassifierConfig
	Intensity     float64
	Stages        []mastering.Stage
	Input         LevelSummary
	Output        LevelSummary
}

// ReportPath returns the report file written alongside an output file.
func ReportPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".report.txt"
}

// GenerateReport creates a detailed mastering report and saves it alongside
// the output file. The report filename will be <output>.report.txt.
//
// Report structure:
// 1. Header - file info and timestamp
// 2. Processing Summary - timings and fingerprint provenance
// 3. Material Classification - branch selection and the thresholds behind it
// 4. Fingerprint tables - all 25 values, grouped, with interpretations
// 5. Mastering Targets - derived correction amounts
// 6. Processing Chain - the stage trace with parameters
// 7. Output Measurements - Input vs Output loudness, true peak, crest
// 8. Notes - source-material observations
func GenerateReport(data ReportData) error {
	f, err := os.Create(ReportPath(data.OutputPath))
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	writeReportHeader(f, data)
	writeProcessingSummary(f, data)
	writeClassification(f, data)
	writeFingerprintTables(f, data.Fingerprint)
	writeTargets(f, data.Targets)
	writeProcessingChain(f, data.Stages)
	writeOutputMeasurements(f, data.Input, data.Output)
	writeNotes(f, data.Fingerprint, channelCount(data.Metadata))

	return nil
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// channelName returns a human-readable channel name
func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}

func channelCount(meta *audio.Metadata) int {
	if meta == nil {
		return 0
	}
	return meta.Channels
}

// =============================================================================
// Report Section Writers
// =============================================================================

// writeReportHeader outputs the report header with file info and timestamp.
func writeReportHeader(w io.Writer, data ReportData) {
	fmt.Fprintln(w, "Earmark Mastering Report")
	fmt.Fprintln(w, "========================")
	fmt.Fprintf(w, "Input: %s\n", filepath.Base(data.InputPath))
	fmt.Fprintf(w, "Output: %s\n", filepath.Base(data.OutputPath))
	fmt.Fprintf(w, "Processed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	if data.Metadata != nil {
		m := data.Metadata
		fmt.Fprintf(w, "Duration: %s\n", formatDuration(time.Duration(m.Duration*float64(time.Second))))
		fmt.Fprintf(w, "Format: %s, %d Hz, %s, %d-bit\n", strings.ToUpper(m.Format), m.SampleRate, channelName(m.Channels), m.BitDepth)
	}
	fmt.Fprintln(w, "")
}

// writeProcessingSummary outputs timings and where the fingerprint came from.
func writeProcessingSummary(w io.Writer, data ReportData) {
	writeSection(w, "Processing Summary")

	provenance := "computed this run"
	if !data.FingerprintAt.IsZero() && data.FingerprintAt.Before(data.StartTime) {
		provenance = fmt.Sprintf("cached (extracted %s)", data.FingerprintAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "Fingerprint: %s\n", provenance)
	fmt.Fprintf(w, "Analysis:    %s\n", formatDuration(data.AnalysisTime))
	fmt.Fprintf(w, "Mastering:   %s\n", formatDuration(data.MasteringTime))

	totalTime := data.EndTime.Sub(data.StartTime)
	fmt.Fprintf(w, "Total:       %s", formatDuration(totalTime))

	if data.Metadata != nil && data.Metadata.Duration > 0 && totalTime > 0 {
		audioDuration := time.Duration(data.Metadata.Duration * float64(time.Second))
		rtf := float64(audioDuration) / float64(totalTime)
		fmt.Fprintf(w, " (%.0fx real-time)", rtf)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "")
}

// writeClassification outputs the selected branch and the values that chose it.
func writeClassification(w io.Writer, data ReportData) {
	writeSection(w, "Material Classification")

	fmt.Fprintf(w, "Class:     %s\n", data.Class)
	fmt.Fprintf(w, "Loudness:  %s LUFS (loud above %.1f)\n",
		formatMetricLUFS(data.Fingerprint.Loudness, 1), data.Thresholds.LoudThresholdLUFS)
	fmt.Fprintf(w, "Crest:     %s dB (dynamic above %.1f)\n",
		formatMetricDB(data.Fingerprint.CrestDB, 1), data.Thresholds.CrestThresholdDB)
	fmt.Fprintf(w, "Intensity: %s\n", formatMetricPercent(data.Intensity))
	fmt.Fprintln(w, "")
}

// writeFingerprintTables outputs all 25 fingerprint values, grouped the way
// the record itself groups them.
func writeFingerprintTables(w io.Writer, fp fingerprint.Fingerprint) {
	writeSection(w, "Dynamics")
	dyn := NewMetricTable("Value")
	dyn.AddRow("Integrated Loudness", []string{formatMetricLUFS(fp.Loudness, 1)}, "LUFS", interpretLoudness(fp.Loudness))
	dyn.AddRow("Crest Factor", []string{formatMetricDB(fp.CrestDB, 1)}, "dB", interpretCrest(fp.CrestDB))
	dyn.AddMetricRow("Bass/Mid Ratio", 2, "", interpretBassBalance(fp.BassMidRatio), fp.BassMidRatio)
	fmt.Fprintln(w, dyn.String())

	writeSection(w, "Tonal Balance")
	bands := NewMetricTable("Share")
	bands.AddMetricRow("Sub Bass (20-60 Hz)", 1, "%", "", fp.SubBassPct)
	bands.AddMetricRow("Bass (60-250 Hz)", 1, "%", "", fp.BassPct)
	bands.AddMetricRow("Low Mid (250-500 Hz)", 1, "%", "", fp.LowMidPct)
	bands.AddMetricRow("Mid (500-2000 Hz)", 1, "%", "", fp.MidPct)
	bands.AddMetricRow("High Mid (2-4 kHz)", 1, "%", "", fp.HighMidPct)
	bands.AddMetricRow("Presence (4-6 kHz)", 1, "%", "", fp.PresencePct)
	bands.AddMetricRow("Air (6-20 kHz)", 1, "%", "", fp.AirPct)
	fmt.Fprintln(w, bands.String())

	writeSection(w, "Rhythm & Energy")
	rhythm := NewMetricTable("Value")
	rhythm.AddMetricRow("Tempo", 0, "BPM", interpretTempo(fp.TempoBPM), fp.TempoBPM)
	rhythm.AddMetricRow("Rhythm Stability", 2, "", interpretRhythm(fp.RhythmStability), fp.RhythmStability)
	rhythm.AddMetricRow("Transient Density", 2, "", interpretTransients(fp.TransientDensity), fp.TransientDensity)
	rhythm.AddMetricRow("Silence Ratio", 2, "", "", fp.SilenceRatio)
	fmt.Fprintln(w, rhythm.String())

	writeSection(w, "Spectral Shape")
	spectral := NewMetricTable("Value")
	spectral.AddMetricRow("Centroid", 3, "", interpretCentroid(fp.SpectralCentroid), fp.SpectralCentroid)
	spectral.AddMetricRow("Rolloff", 3, "", "", fp.SpectralRolloff)
	spectral.AddMetricRow("Flatness", 3, "", interpretFlatness(fp.SpectralFlatness), fp.SpectralFlatness)
	fmt.Fprintln(w, spectral.String())

	writeSection(w, "Harmonic Content")
	harm := NewMetricTable("Value")
	harm.AddMetricRow("Harmonic Ratio", 2, "", interpretHarmonicity(fp.HarmonicRatio), fp.HarmonicRatio)
	harm.AddMetricRow("Pitch Stability", 2, "", "", fp.PitchStability)
	harm.AddMetricRow("Chroma Energy", 2, "", "", fp.ChromaEnergy)
	fmt.Fprintln(w, harm.String())

	writeSection(w, "Level Variation")
	vari := NewMetricTable("Value")
	vari.AddMetricRow("Dynamic Range Variation", 2, "", "", fp.DynamicRangeVariation)
	vari.AddMetricRow("Loudness Variation", 1, "dB", interpretLoudnessVariation(fp.LoudnessVariationStd), fp.LoudnessVariationStd)
	vari.AddMetricRow("Peak Consistency", 2, "", "", fp.PeakConsistency)
	fmt.Fprintln(w, vari.String())

	writeSection(w, "Stereo Image")
	stereo := NewMetricTable("Value")
	stereo.AddMetricRow("Stereo Width", 2, "", interpretWidth(fp.StereoWidth), fp.StereoWidth)
	stereo.AddMetricRow("Phase Correlation", 2, "", interpretPhase(fp.PhaseCorrelation), fp.PhaseCorrelation)
	fmt.Fprintln(w, stereo.String())
}

// writeTargets outputs the correction amounts derived from the fingerprint.
// Boosts are signed; zero means the fingerprint asked for nothing there.
func writeTargets(w io.Writer, t fingerprint.MasteringTargets) {
	writeSection(w, "Mastering Targets")

	fmt.Fprintf(w, "Bass Boost:      %s dB\n", formatMetricSigned(t.BassBoostDB, 1))
	fmt.Fprintf(w, "Warmth:          %s dB\n", formatMetricSigned(t.WarmthBoostDB, 1))
	fmt.Fprintf(w, "Presence:        %s dB\n", formatMetricSigned(t.PresenceBoostDB, 1))
	fmt.Fprintf(w, "Air:             %s dB\n", formatMetricSigned(t.AirBoostDB, 1))
	fmt.Fprintf(w, "Width:           %s\n", formatMetric(t.WidthAmount, 2))
	fmt.Fprintf(w, "Makeup Cap:      %s dB\n", formatMetric(t.MakeupCapDB, 1))
	fmt.Fprintf(w, "Target Loudness: %s LUFS\n", formatMetric(t.TargetLUFS, 1))
	fmt.Fprintf(w, "Target Crest:    %s dB\n", formatMetric(t.TargetCrestDB, 1))
	fmt.Fprintln(w, "")
}

// writeProcessingChain outputs the stage trace in execution order.
func writeProcessingChain(w io.Writer, stages []mastering.Stage) {
	writeSection(w, "Processing Chain")

	if len(stages) == 0 {
		fmt.Fprintln(w, "passthrough (no stages applied)")
		fmt.Fprintln(w, "")
		return
	}
	for i, st := range stages {
		fmt.Fprintf(w, "%d. %s\n", i+1, st.String())
	}
	fmt.Fprintln(w, "")
}

// writeOutputMeasurements outputs the Input vs Output comparison table.
func writeOutputMeasurements(w io.Writer, in, out LevelSummary) {
	writeSection(w, "Output Measurements")

	table := NewMetricTable("Input", "Output")
	table.AddRow("Integrated Loudness",
		[]string{formatMetricLUFS(in.LoudnessLUFS, 1), formatMetricLUFS(out.LoudnessLUFS, 1)},
		"LUFS", "")
	table.AddRow("True Peak",
		[]string{formatMetricDB(in.TruePeakDB, 1), formatMetricDB(out.TruePeakDB, 1)},
		"dBTP", "")
	table.AddRow("Crest Factor",
		[]string{formatMetricDB(in.CrestDB, 1), formatMetricDB(out.CrestDB, 1)},
		"dB", "")
	fmt.Fprintln(w, table.String())
}

// writeNotes outputs source-material observations, highest priority first.
// Omitted entirely when nothing fired.
func writeNotes(w io.Writer, fp fingerprint.Fingerprint, channels int) {
	notes := GenerateSourceNotes(fp, channels)
	if len(notes) == 0 {
		return
	}

	writeSection(w, "Notes")
	for _, n := range notes {
		fmt.Fprintf(w, "- %s\n", wrapText(n.Message, 76, "  "))
	}
	fmt.Fprintln(w, "")
}
