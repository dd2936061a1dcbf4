// Package mastering turns a fingerprint into mastered audio. A material
// classifier picks one of three processing branches, a factory binds the
// branch to the fingerprint-derived targets, and a chunked pipeline runs
// the track through the branch with crossfaded seams between chunks.
//
// Chunks are processed with fresh filter state, so consecutive chunks are
// independent; the raised-cosine crossfade at each seam is what keeps the
// joins inaudible. Every per-track gain decision is derived from global
// quantities (the fingerprint, the track's input peak), never from chunk
// content, so the same chain lands on every chunk.
package mastering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/earmark-audio/earmark/internal/audio"
	"github.com/earmark-audio/earmark/internal/dsp"
	"github.com/earmark-audio/earmark/internal/fingerprint"
)

const (
	defaultChunkSecs        = 30.0 // s - branch processing window
	defaultCrossfadeSamples = 4410 // samples - 0.1 s at 44.1 kHz
	outputTargetDB          = -0.3 // dB - final peak target applied after the loud branches
)

// Config drives the chunk loop. Channels and SampleRate come from the
// decoded format; the pipeline trusts them and never infers geometry from
// array dimensions.
type Config struct {
	ChunkSecs        float64 // s - chunk length cut from the input
	CrossfadeSamples int     // samples - seam blend length, 0 disables crossfading
	Intensity        float64 // 0..1 - processing strength passed to the branch
	SampleRate       int     // Hz
	Channels         int
}

// DefaultConfig returns the stock pipeline settings for a decoded format.
func DefaultConfig(sampleRate, channels int) Config {
	return Config{
		ChunkSecs:        defaultChunkSecs,
		CrossfadeSamples: defaultCrossfadeSamples,
		Intensity:        1.0,
		SampleRate:       sampleRate,
		Channels:         channels,
	}
}

// Sanitize brings out-of-range settings back to usable values.
func (c Config) Sanitize() Config {
	if c.ChunkSecs <= 0 {
		c.ChunkSecs = defaultChunkSecs
	}
	if c.CrossfadeSamples < 0 {
		c.CrossfadeSamples = 0
	}
	if math.IsNaN(c.Intensity) {
		c.Intensity = 1
	}
	c.Intensity = clamp(c.Intensity, 0, 1)
	return c
}

// ChunkWriter receives mastered chunks in order. *audio.Writer satisfies
// it; tests substitute their own sinks.
type ChunkWriter interface {
	WriteChunk(data [][]float64) error
}

// ProgressFunc observes the pipeline: a stage label, the fraction of
// frames completed in [0, 1], and the RMS level of the chunk just written.
type ProgressFunc func(stage string, fraction, levelDB float64)

// Pipeline masters one track chunk by chunk through a branch.
type Pipeline struct {
	branch Branch
	fp     fingerprint.Fingerprint
	cfg    Config
	log    *slog.Logger

	// tail holds a copy of the last written chunk's final samples. It is
	// replaced only after a successful write, so a failed write leaves
	// the seam state exactly where the output file ends.
	tail [][]float64
}

// NewPipeline builds a pipeline around a branch. The config is sanitized
// on the way in.
func NewPipeline(branch Branch, fp fingerprint.Fingerprint, cfg Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		branch: branch,
		fp:     fp,
		cfg:    cfg.Sanitize(),
		log:    log.With("component", "mastering"),
	}
}

// Run masters buf into w and returns the stage trace of the first chunk,
// which is representative because branch parameters never vary across
// chunks. The output carries exactly as many frames as the input for any
// combination of chunk size, crossfade length, and remainder chunk.
func (p *Pipeline) Run(ctx context.Context, buf *audio.Buffer, w ChunkWriter, progress ProgressFunc) ([]Stage, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, errors.New("mastering: no audio to process")
	}
	if buf.Channels() != p.cfg.Channels {
		return nil, fmt.Errorf("mastering: buffer has %d channels, format says %d", buf.Channels(), p.cfg.Channels)
	}

	frames := buf.Frames()
	chunkFrames := int(p.cfg.ChunkSecs * float64(p.cfg.SampleRate))
	if chunkFrames < 1 {
		chunkFrames = frames
	}
	peakDB := dsp.LinearToDB(buf.Peak())

	outputGain := 1.0
	if p.branch.NormalizeOutput() {
		outputGain = dsp.DBToLinear(outputTargetDB - limiterCeilingDB)
	}

	p.tail = nil
	var trace []Stage
	for start := 0; start < frames; start += chunkFrames {
		select {
		case <-ctx.Done():
			return trace, ctx.Err()
		default:
		}

		end := start + chunkFrames
		if end > frames {
			end = frames
		}
		chunk := copyChunk(buf, start, end)

		processed, stages := p.branch.Apply(chunk, p.fp, peakDB, p.cfg.Intensity, p.cfg.SampleRate)
		if trace == nil {
			trace = stages
		}
		if err := checkShape(processed, p.cfg.Channels, end-start); err != nil {
			return trace, err
		}

		if outputGain != 1 {
			for _, ch := range processed {
				for i := range ch {
					ch[i] *= outputGain
				}
			}
		}

		if p.cfg.CrossfadeSamples > 0 && p.tail != nil {
			crossfadeHead(processed, p.tail)
		}

		if err := w.WriteChunk(processed); err != nil {
			return trace, fmt.Errorf("mastering: write chunk at frame %d: %w", start, err)
		}
		if p.cfg.CrossfadeSamples > 0 {
			p.tail = copyTail(processed, p.cfg.CrossfadeSamples)
		}

		levelDB := chunkRMSDB(processed)
		p.log.Debug("chunk mastered",
			"start", start,
			"frames", end-start,
			"rms_db", levelDB)
		if progress != nil {
			progress("mastering", float64(end)/float64(frames), levelDB)
		}
	}
	return trace, nil
}

// Master classifies the track, derives its targets, and runs the full
// pipeline in one call.
func Master(ctx context.Context, buf *audio.Buffer, fp fingerprint.Fingerprint, cfg Config, log *slog.Logger, w ChunkWriter, progress ProgressFunc) (MaterialClass, []Stage, error) {
	class := Classify(fp.Loudness, fp.CrestDB, DefaultClassifierConfig())
	branch := ForClass(class, fingerprint.DeriveTargets(fp))
	trace, err := NewPipeline(branch, fp, cfg, log).Run(ctx, buf, w, progress)
	return class, trace, err
}

// copyChunk deep-copies a frame range so the branch can process in place
// without touching the decoded source.
func copyChunk(buf *audio.Buffer, from, to int) [][]float64 {
	out := make([][]float64, len(buf.Data))
	for c, ch := range buf.Data {
		out[c] = append([]float64(nil), ch[from:to]...)
	}
	return out
}

// copyTail snapshots the last n frames of a written chunk.
func copyTail(chunk [][]float64, n int) [][]float64 {
	frames := len(chunk[0])
	if n > frames {
		n = frames
	}
	if n == 0 {
		return nil
	}
	out := make([][]float64, len(chunk))
	for c, ch := range chunk {
		out[c] = append([]float64(nil), ch[frames-n:]...)
	}
	return out
}

// crossfadeHead blends the head of the current chunk against the committed
// tail with a raised-cosine ramp. The ramp spans the shorter of the tail
// and the chunk; the weights stay strictly inside (0, 1) so even a
// one-sample window blends instead of replacing.
func crossfadeHead(chunk, tail [][]float64) {
	n := len(tail[0])
	if frames := len(chunk[0]); frames < n {
		n = frames
	}
	for i := 0; i < n; i++ {
		alpha := 0.5 * (1 - math.Cos(math.Pi*float64(i+1)/float64(n+1)))
		for c := range chunk {
			chunk[c][i] = tail[c][i]*(1-alpha) + chunk[c][i]*alpha
		}
	}
}

// checkShape guards the chunk-assembly boundary. A branch that returns the
// wrong geometry fails the run before anything reaches the writer or the
// persisted tail.
func checkShape(chunk [][]float64, channels, frames int) error {
	if len(chunk) != channels {
		return fmt.Errorf("mastering: branch returned %d channels, want %d", len(chunk), channels)
	}
	for c, ch := range chunk {
		if len(ch) != frames {
			return fmt.Errorf("mastering: branch returned %d frames on channel %d, want %d", len(ch), c, frames)
		}
	}
	return nil
}
