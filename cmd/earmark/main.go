package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/earmark-audio/earmark/internal/audio"
	"github.com/earmark-audio/earmark/internal/cache"
	"github.com/earmark-audio/earmark/internal/cli"
	"github.com/earmark-audio/earmark/internal/dsp"
	"github.com/earmark-audio/earmark/internal/fingerprint"
	"github.com/earmark-audio/earmark/internal/logging"
	"github.com/earmark-audio/earmark/internal/mastering"
	"github.com/earmark-audio/earmark/internal/ui"
)

var (
	version = "0.1.0"
)

const (
	stageFingerprint = "Fingerprinting"
	stageMaster      = "Mastering"
)

// CLI defines the command-line interface
type CLI struct {
	Version    bool    `short:"v" help:"Show version information"`
	Output     string  `short:"o" type:"path" help:"Output file path (default: <input>_mastered.wav)"`
	Intensity  float64 `short:"i" default:"1.0" help:"Processing intensity from 0.0 (passthrough) to 1.0 (full)"`
	ClearCache bool    `help:"Drop the cached fingerprint for the input before processing"`
	Report     bool    `help:"Write a detailed mastering report next to the output"`
	NoUI       bool    `name:"no-ui" help:"Run headless with plain log output instead of the TUI"`
	Debug      bool    `help:"Enable debug logging"`
	Input      string  `arg:"" name:"input" help:"Audio file to master (WAV or MP3)" type:"existingfile" optional:""`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("earmark"),
		kong.Description("Fingerprint-driven adaptive audio mastering"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	// Handle version flag
	if cliArgs.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	// Validate input
	if cliArgs.Input == "" {
		cli.PrintError("No input file specified")
		ctx.PrintUsage(false)
		os.Exit(1)
	}
	if math.IsNaN(cliArgs.Intensity) {
		cliArgs.Intensity = 1.0
	}
	cliArgs.Intensity = min(max(cliArgs.Intensity, 0), 1)

	outputPath := cliArgs.Output
	if outputPath == "" {
		outputPath = defaultOutputPath(cliArgs.Input)
	}
	if filepath.Clean(outputPath) == filepath.Clean(cliArgs.Input) {
		cli.PrintError("Output path must differ from the input path")
		os.Exit(1)
	}

	log, closeLog := logging.Setup(cliArgs.Debug, cliArgs.NoUI)
	defer closeLog()

	// .env is optional; a variable already set in the environment wins
	_ = godotenv.Load()

	runCtx := context.Background()

	var store *cache.Store
	if dsn := os.Getenv("EARMARK_DATABASE_URL"); dsn != "" {
		var err error
		store, err = cache.OpenStore(runCtx, dsn)
		if err != nil {
			log.Warn("fingerprint store unavailable, continuing without it", "error", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	backend := dsp.Select(log)
	extractor := fingerprint.NewExtractor(backend, fingerprint.DefaultConfig(), log)
	svc := cache.NewService(extractor, store, log)

	if cliArgs.ClearCache {
		if err := svc.Clear(runCtx, cliArgs.Input); err != nil {
			cli.PrintError(fmt.Sprintf("Failed to clear cached fingerprint: %v", err))
			os.Exit(1)
		}
		log.Info("cached fingerprint cleared", "path", cliArgs.Input)
	}

	if cliArgs.NoUI {
		runHeadless(runCtx, cliArgs, outputPath, svc, log)
		return
	}
	runTUI(runCtx, cliArgs, outputPath, svc, log)
}

// runTUI drives the Bubbletea interface while a background goroutine does
// the actual work and reports through the program's message queue.
func runTUI(ctx context.Context, cliArgs *CLI, outputPath string, svc *cache.Service, log *slog.Logger) {
	model := ui.NewModel([]string{cliArgs.Input})
	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		fileStart := time.Now()
		p.Send(ui.FileStartMsg{
			FileIndex:  0,
			FileName:   cliArgs.Input,
			OutputPath: outputPath,
		})

		progress := func(stage int, name string, fraction, levelDB float64) {
			p.Send(ui.ProgressMsg{
				Stage:     stage,
				StageName: name,
				Progress:  fraction,
				LevelDB:   levelDB,
			})
		}

		r, err := processFile(ctx, svc, cliArgs.Input, outputPath, cliArgs.Intensity, cliArgs.Report, log, progress)
		if err != nil {
			log.Error("mastering failed", "path", cliArgs.Input, "error", err)
			p.Send(ui.FileCompleteMsg{FileIndex: 0, Error: err})
			p.Send(ui.AllCompleteMsg{})
			return
		}

		if cliArgs.Report {
			if err := logging.GenerateReport(buildReportData(cliArgs, outputPath, fileStart, r)); err != nil {
				log.Warn("report generation failed", "error", err)
			}
		}

		p.Send(ui.FileCompleteMsg{
			FileIndex:  0,
			Class:      r.class,
			InputLUFS:  r.inputLUFS,
			OutputLUFS: r.outputLUFS,
			OutputPath: outputPath,
		})
		p.Send(ui.AllCompleteMsg{})
	}()

	finalModel, err := p.Run()
	if err != nil {
		cli.PrintError(fmt.Sprintf("UI error: %v", err))
		os.Exit(1)
	}
	if m, ok := finalModel.(ui.Model); ok && m.FailedFiles > 0 {
		os.Exit(1)
	}
}

// runHeadless masters the file without the TUI, logging progress instead.
func runHeadless(ctx context.Context, cliArgs *CLI, outputPath string, svc *cache.Service, log *slog.Logger) {
	fileStart := time.Now()
	log.Info("mastering", "input", cliArgs.Input, "output", outputPath, "intensity", cliArgs.Intensity)

	lastStage := 0
	progress := func(stage int, name string, fraction, levelDB float64) {
		if stage != lastStage {
			log.Info("stage started", "stage", fmt.Sprintf("%d/2", stage), "name", name)
			lastStage = stage
		}
		log.Debug("progress", "stage", name, "pct", int(fraction*100+0.5), "level_db", levelDB)
	}

	r, err := processFile(ctx, svc, cliArgs.Input, outputPath, cliArgs.Intensity, cliArgs.Report, log, progress)
	if err != nil {
		cli.PrintError(fmt.Sprintf("Mastering failed: %v", err))
		os.Exit(1)
	}

	if cliArgs.Report {
		if err := logging.GenerateReport(buildReportData(cliArgs, outputPath, fileStart, r)); err != nil {
			log.Warn("report generation failed", "error", err)
		} else {
			log.Info("report written", "path", logging.ReportPath(outputPath))
		}
	}

	log.Info("mastering complete",
		"class", r.class.String(),
		"input_lufs", r.inputLUFS,
		"output_lufs", r.outputLUFS,
		"elapsed", time.Since(fileStart).Round(time.Millisecond),
		"output", outputPath)
}

// result carries the measurements main needs once a file is mastered
type result struct {
	class         mastering.MaterialClass
	stages        []mastering.Stage
	entry         cache.Entry
	meta          *audio.Metadata
	inputLUFS     float64
	inputPeakDB   float64
	outputLUFS    float64
	outputPeakDB  float64
	outputCrestDB float64
	analysisTime  time.Duration
	masteringTime time.Duration
}

// processFile runs the full decode, fingerprint, master, verify sequence
// for one input file. The measure flag adds the true-peak and crest scans
// needed by the report, which are skipped otherwise.
func processFile(ctx context.Context, svc *cache.Service, inputPath, outputPath string, intensity float64, measure bool, log *slog.Logger, progress func(stage int, name string, fraction, levelDB float64)) (*result, error) {
	progress(1, stageFingerprint, 0, 0)

	buf, meta, err := audio.Decode(inputPath)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", inputPath, err)
	}

	analysisStart := time.Now()
	entry, err := svc.GetOrCompute(ctx, inputPath, buf)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", inputPath, err)
	}
	r := &result{
		entry:        entry,
		meta:         meta,
		inputLUFS:    entry.Fingerprint.Loudness,
		analysisTime: time.Since(analysisStart),
	}
	progress(1, stageFingerprint, 1, 0)

	if measure {
		r.inputPeakDB = dsp.TruePeakDB(buf.Data)
	}

	if buf.Channels() == 1 {
		log.Info("mono input promoted to stereo")
		buf = buf.PromoteToStereo()
	}

	w, err := audio.NewWriter(outputPath, buf.SampleRate, buf.Channels())
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", outputPath, err)
	}

	cfg := mastering.DefaultConfig(buf.SampleRate, buf.Channels())
	cfg.Intensity = intensity

	masteringStart := time.Now()
	class, stages, err := mastering.Master(ctx, buf, entry.Fingerprint, cfg, log, w, func(_ string, fraction, levelDB float64) {
		progress(2, stageMaster, fraction, levelDB)
	})
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("master %s: %w", inputPath, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize %s: %w", outputPath, err)
	}
	r.class = class
	r.stages = stages
	r.masteringTime = time.Since(masteringStart)

	// Verify the output by decoding it back, and measure levels from what
	// actually landed on disk
	out, _, err := audio.Decode(outputPath)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", outputPath, err)
	}
	r.outputLUFS = dsp.IntegratedLUFS(out.Data, out.SampleRate)
	if measure {
		r.outputPeakDB = dsp.TruePeakDB(out.Data)
		r.outputCrestDB = dsp.CrestFactorDB(out.Mono())
	}

	return r, nil
}

// buildReportData assembles the report payload from a finished run
func buildReportData(cliArgs *CLI, outputPath string, start time.Time, r *result) logging.ReportData {
	return logging.ReportData{
		InputPath:     cliArgs.Input,
		OutputPath:    outputPath,
		StartTime:     start,
		EndTime:       time.Now(),
		AnalysisTime:  r.analysisTime,
		MasteringTime: r.masteringTime,
		FingerprintAt: r.entry.ExtractedAt,
		Metadata:      r.meta,
		Fingerprint:   r.entry.Fingerprint,
		Targets:       r.entry.Targets,
		Class:         r.class,
		Thresholds:    mastering.DefaultClassifierConfig(),
		Intensity:     cliArgs.Intensity,
		Stages:        r.stages,
		Input: logging.LevelSummary{
			LoudnessLUFS: r.inputLUFS,
			TruePeakDB:   r.inputPeakDB,
			CrestDB:      r.entry.Fingerprint.CrestDB,
		},
		Output: logging.LevelSummary{
			LoudnessLUFS: r.outputLUFS,
			TruePeakDB:   r.outputPeakDB,
			CrestDB:      r.outputCrestDB,
		},
	}
}

// defaultOutputPath derives the output name when -o is not given
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_mastered.wav"
}
