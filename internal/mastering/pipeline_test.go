package mastering

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/earmark-audio/earmark/internal/audio"
	"github.com/earmark-audio/earmark/internal/dsp"
	"github.com/earmark-audio/earmark/internal/fingerprint"
)

var errSinkFull = errors.New("sink full")

// memWriter collects chunks in memory. fail, when positive, rejects the
// nth WriteChunk call.
type memWriter struct {
	chunks [][][]float64
	fail   int
}

func (w *memWriter) WriteChunk(data [][]float64) error {
	if w.fail > 0 && len(w.chunks)+1 == w.fail {
		return errSinkFull
	}
	w.chunks = append(w.chunks, cloneChunk(data))
	return nil
}

func (w *memWriter) frames() int {
	total := 0
	for _, c := range w.chunks {
		if len(c) > 0 {
			total += len(c[0])
		}
	}
	return total
}

func (w *memWriter) channel(c int) []float64 {
	var out []float64
	for _, chunk := range w.chunks {
		out = append(out, chunk[c]...)
	}
	return out
}

// identityBranch passes audio through untouched so pipeline mechanics can
// be observed in isolation.
type identityBranch struct {
	normalize bool
}

func (b identityBranch) Name() string          { return "identity" }
func (b identityBranch) NormalizeOutput() bool { return b.normalize }

func (b identityBranch) Apply(chunk [][]float64, _ fingerprint.Fingerprint, _, _ float64, _ int) ([][]float64, []Stage) {
	return chunk, []Stage{{Name: "identity"}}
}

// lopsidedBranch drops a channel to exercise the shape guard.
type lopsidedBranch struct{}

func (lopsidedBranch) Name() string          { return "lopsided" }
func (lopsidedBranch) NormalizeOutput() bool { return false }

func (lopsidedBranch) Apply(chunk [][]float64, _ fingerprint.Fingerprint, _, _ float64, _ int) ([][]float64, []Stage) {
	return chunk[:1], nil
}

// rampBuffer fills a stereo buffer with distinct per-channel values so
// ordering and channel identity are checkable after the run.
func rampBuffer(frames, sampleRate int) *audio.Buffer {
	buf := audio.NewBuffer(2, frames, sampleRate)
	for i := 0; i < frames; i++ {
		buf.Data[0][i] = float64(i)
		buf.Data[1][i] = -float64(i)
	}
	return buf
}

func identityConfig(sampleRate int, chunkSecs float64, crossfade int) Config {
	return Config{
		ChunkSecs:        chunkSecs,
		CrossfadeSamples: crossfade,
		Intensity:        1.0,
		SampleRate:       sampleRate,
		Channels:         2,
	}
}

func TestRunPreservesSampleCount(t *testing.T) {
	const sr = 1000

	lengths := []struct {
		name   string
		frames int
	}{
		{"shorter than a chunk", 500},
		{"exact multiple", 2000},
		{"with remainder", 2007},
	}
	crossfades := []int{0, 20, 3000}

	for _, l := range lengths {
		for _, cf := range crossfades {
			t.Run(fmt.Sprintf("%s crossfade %d", l.name, cf), func(t *testing.T) {
				buf := rampBuffer(l.frames, sr)
				w := &memWriter{}
				p := NewPipeline(identityBranch{}, fingerprint.Default(), identityConfig(sr, 1.0, cf), nil)

				if _, err := p.Run(context.Background(), buf, w, nil); err != nil {
					t.Fatalf("Run: %v", err)
				}
				if got := w.frames(); got != l.frames {
					t.Fatalf("wrote %d frames, want %d", got, l.frames)
				}
			})
		}
	}
}

func TestRunChunksAtConfiguredSize(t *testing.T) {
	const sr = 1000
	buf := rampBuffer(2500, sr)
	w := &memWriter{}
	p := NewPipeline(identityBranch{}, fingerprint.Default(), identityConfig(sr, 1.0, 0), nil)

	if _, err := p.Run(context.Background(), buf, w, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(w.chunks) != 3 {
		t.Fatalf("wrote %d chunks, want 3", len(w.chunks))
	}
	for i, want := range []int{1000, 1000, 500} {
		if got := len(w.chunks[i][0]); got != want {
			t.Errorf("chunk %d has %d frames, want %d", i, got, want)
		}
	}
}

func TestRunKeepsChannelsApart(t *testing.T) {
	const sr = 1000
	for _, frames := range []int{1, 2} {
		for _, cf := range []int{0, 2000} {
			buf := rampBuffer(frames, sr)
			// Frame 0 of a ramp is zero on both channels; force distinct
			// values so a swap cannot pass unnoticed.
			buf.Data[0][0], buf.Data[1][0] = 0.25, -0.75
			w := &memWriter{}
			p := NewPipeline(identityBranch{}, fingerprint.Default(), identityConfig(sr, 1.0, cf), nil)

			if _, err := p.Run(context.Background(), buf, w, nil); err != nil {
				t.Fatalf("Run: %v", err)
			}
			left, right := w.channel(0), w.channel(1)
			if len(left) != frames {
				t.Fatalf("%d-frame clip: wrote %d frames", frames, len(left))
			}
			for i := range left {
				if left[i] != buf.Data[0][i] || right[i] != buf.Data[1][i] {
					t.Fatalf("%d frames, crossfade %d: channels swapped or altered at frame %d", frames, cf, i)
				}
			}
		}
	}
}

func TestRunZeroCrossfadeWritesVerbatim(t *testing.T) {
	const sr = 1000
	buf := rampBuffer(2500, sr)
	w := &memWriter{}
	p := NewPipeline(identityBranch{}, fingerprint.Default(), identityConfig(sr, 1.0, 0), nil)

	if _, err := p.Run(context.Background(), buf, w, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for c := 0; c < 2; c++ {
		got := w.channel(c)
		for i := range got {
			if got[i] != buf.Data[c][i] {
				t.Fatalf("channel %d differs at frame %d: %v != %v", c, i, got[i], buf.Data[c][i])
			}
		}
	}
}

func TestRunCrossfadeBlendsSeam(t *testing.T) {
	const sr = 1000
	const frames = 2000
	buf := audio.NewBuffer(2, frames, sr)
	for c := range buf.Data {
		for i := 0; i < 1000; i++ {
			buf.Data[c][i] = 1.0
		}
		for i := 1000; i < frames; i++ {
			buf.Data[c][i] = -1.0
		}
	}

	const cf = 10
	w := &memWriter{}
	p := NewPipeline(identityBranch{}, fingerprint.Default(), identityConfig(sr, 1.0, cf), nil)
	if _, err := p.Run(context.Background(), buf, w, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out := w.channel(0)
	if len(out) != frames {
		t.Fatalf("wrote %d frames, want %d", len(out), frames)
	}

	// The second chunk's head starts near the previous tail value (+1) and
	// ramps toward its own content (-1); past the window it is untouched.
	seam := out[1000:]
	if seam[0] <= 0 {
		t.Fatalf("seam start = %v, want tail-dominated (> 0)", seam[0])
	}
	for i := 1; i < cf; i++ {
		if seam[i] >= seam[i-1] {
			t.Fatalf("seam not monotonic at %d: %v >= %v", i, seam[i], seam[i-1])
		}
	}
	if seam[cf] != -1 {
		t.Fatalf("sample past the window = %v, want untouched -1", seam[cf])
	}

	// First chunk is never blended.
	if out[0] != 1 || out[999] != 1 {
		t.Fatal("first chunk was modified")
	}
}

func TestRunTailSurvivesWriteFailure(t *testing.T) {
	const sr = 1000
	buf := rampBuffer(3000, sr)
	w := &memWriter{fail: 2}
	p := NewPipeline(identityBranch{}, fingerprint.Default(), identityConfig(sr, 1.0, 5), nil)

	_, err := p.Run(context.Background(), buf, w, nil)
	if !errors.Is(err, errSinkFull) {
		t.Fatalf("err = %v, want %v", err, errSinkFull)
	}
	if len(w.chunks) != 1 {
		t.Fatalf("wrote %d chunks, want 1", len(w.chunks))
	}

	// The tail still belongs to the chunk that landed, frames 995..999.
	if p.tail == nil {
		t.Fatal("tail cleared by the failed write")
	}
	for i, want := range []float64{995, 996, 997, 998, 999} {
		if p.tail[0][i] != want {
			t.Fatalf("tail[0][%d] = %v, want %v", i, p.tail[0][i], want)
		}
	}
}

func TestRunShapeGuard(t *testing.T) {
	const sr = 1000
	buf := rampBuffer(2000, sr)
	w := &memWriter{}
	p := NewPipeline(lopsidedBranch{}, fingerprint.Default(), identityConfig(sr, 1.0, 10), nil)

	_, err := p.Run(context.Background(), buf, w, nil)
	if err == nil {
		t.Fatal("malformed branch output got through")
	}
	if !strings.Contains(err.Error(), "channels") {
		t.Fatalf("err = %v, want a channel shape complaint", err)
	}
	if len(w.chunks) != 0 {
		t.Fatal("malformed chunk reached the writer")
	}
	if p.tail != nil {
		t.Fatal("malformed chunk reached the tail")
	}
}

func TestRunChannelCountMismatch(t *testing.T) {
	const sr = 1000
	buf := audio.NewBuffer(1, 500, sr)
	p := NewPipeline(identityBranch{}, fingerprint.Default(), identityConfig(sr, 1.0, 0), nil)

	if _, err := p.Run(context.Background(), buf, &memWriter{}, nil); err == nil {
		t.Fatal("mono buffer accepted by a stereo-configured pipeline")
	}
}

func TestRunHonorsContext(t *testing.T) {
	const sr = 1000
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := rampBuffer(2000, sr)
	w := &memWriter{}
	p := NewPipeline(identityBranch{}, fingerprint.Default(), identityConfig(sr, 1.0, 0), nil)

	_, err := p.Run(ctx, buf, w, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(w.chunks) != 0 {
		t.Fatal("chunks written after cancellation")
	}
}

func TestRunEmptyBuffer(t *testing.T) {
	p := NewPipeline(identityBranch{}, fingerprint.Default(), identityConfig(1000, 1.0, 0), nil)
	if _, err := p.Run(context.Background(), nil, &memWriter{}, nil); err == nil {
		t.Fatal("nil buffer accepted")
	}
	if _, err := p.Run(context.Background(), audio.NewBuffer(2, 0, 1000), &memWriter{}, nil); err == nil {
		t.Fatal("empty buffer accepted")
	}
}

func TestRunAppliesOutputGainOnce(t *testing.T) {
	const sr = 1000
	buf := audio.NewBuffer(2, 2500, sr)
	for c := range buf.Data {
		for i := range buf.Data[c] {
			buf.Data[c][i] = 0.5
		}
	}

	w := &memWriter{}
	p := NewPipeline(identityBranch{normalize: true}, fingerprint.Default(), identityConfig(sr, 1.0, 0), nil)
	if _, err := p.Run(context.Background(), buf, w, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := 0.5 * dsp.DBToLinear(outputTargetDB-limiterCeilingDB)
	for c := 0; c < 2; c++ {
		for i, x := range w.channel(c) {
			if math.Abs(x-want) > 1e-12 {
				t.Fatalf("channel %d frame %d = %v, want %v", c, i, x, want)
			}
		}
	}
}

func TestRunReportsProgress(t *testing.T) {
	const sr = 1000
	buf := rampBuffer(2500, sr)
	w := &memWriter{}
	p := NewPipeline(identityBranch{}, fingerprint.Default(), identityConfig(sr, 1.0, 0), nil)

	var fractions []float64
	progress := func(stage string, fraction, levelDB float64) {
		if stage != "mastering" {
			t.Errorf("stage = %q, want mastering", stage)
		}
		fractions = append(fractions, fraction)
	}
	if _, err := p.Run(context.Background(), buf, w, progress); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fractions) != 3 {
		t.Fatalf("progress called %d times, want 3", len(fractions))
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] <= fractions[i-1] {
			t.Fatal("progress fractions not increasing")
		}
	}
	if last := fractions[len(fractions)-1]; last != 1 {
		t.Fatalf("final fraction = %v, want 1", last)
	}
}

func TestConfigSanitize(t *testing.T) {
	cfg := Config{ChunkSecs: -3, CrossfadeSamples: -10, Intensity: 1.8}.Sanitize()
	if cfg.ChunkSecs != defaultChunkSecs {
		t.Errorf("ChunkSecs = %v, want default %v", cfg.ChunkSecs, defaultChunkSecs)
	}
	if cfg.CrossfadeSamples != 0 {
		t.Errorf("CrossfadeSamples = %v, want 0", cfg.CrossfadeSamples)
	}
	if cfg.Intensity != 1 {
		t.Errorf("Intensity = %v, want clamped to 1", cfg.Intensity)
	}

	if got := (Config{Intensity: -0.5}).Sanitize().Intensity; got != 0 {
		t.Errorf("negative intensity = %v, want 0", got)
	}
}

func TestMasterEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("masters two seconds of audio")
	}

	const frames = 2 * testSR
	buf := audio.NewBuffer(2, frames, testSR)
	amp := dsp.DBToLinear(-20)
	for c := range buf.Data {
		for i := range buf.Data[c] {
			buf.Data[c][i] = amp * math.Sin(2*math.Pi*441*float64(i)/float64(testSR))
		}
	}

	fp := neutralFingerprint()
	w := &memWriter{}
	cfg := DefaultConfig(testSR, 2)
	cfg.ChunkSecs = 0.5

	class, trace, err := Master(context.Background(), buf, fp, cfg, nil, w, nil)
	if err != nil {
		t.Fatalf("Master: %v", err)
	}
	if class != Quiet {
		t.Fatalf("class = %v, want %v", class, Quiet)
	}
	if len(trace) == 0 {
		t.Fatal("empty stage trace")
	}
	if got := w.frames(); got != frames {
		t.Fatalf("wrote %d frames, want %d", got, frames)
	}

	var peak float64
	for c := 0; c < 2; c++ {
		for _, x := range w.channel(c) {
			if a := math.Abs(x); a > peak {
				peak = a
			}
		}
	}
	if peakDB := dsp.LinearToDB(peak); math.Abs(peakDB-quietPeakTargetDB) > 0.5 {
		t.Fatalf("output peak = %.2f dB, want near %v", peakDB, quietPeakTargetDB)
	}
}
