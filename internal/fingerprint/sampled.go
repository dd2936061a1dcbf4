package fingerprint

import (
	"sync"

	"github.com/earmark-audio/earmark/internal/audio"
)

// Sampled windows shorter than this fraction of the configured window are
// dropped rather than analyzed; a sliver of a window adds noise, not
// signal.
const minWindowFraction = 0.5

// ExtractSampled trades accuracy for throughput on long files: it analyzes
// regularly spaced windows in parallel and aggregates by per-field mean.
// The mean is commutative, so worker scheduling cannot change the result.
// A signal shorter than one window is analyzed whole.
func (e *Extractor) ExtractSampled(buf *audio.Buffer) Fingerprint {
	if buf == nil || buf.Frames() == 0 {
		return Default()
	}

	sr := buf.SampleRate
	window := int(e.cfg.WindowSecs * float64(sr))
	stride := int(e.cfg.StrideSecs * float64(sr))
	frames := buf.Frames()

	if frames <= window {
		return e.Extract(buf)
	}

	var starts []int
	for start := 0; start < frames; start += stride {
		end := start + window
		if end > frames {
			end = frames
		}
		if end-start >= int(minWindowFraction*float64(window)) {
			starts = append(starts, start)
		}
	}
	if len(starts) == 0 {
		return Default()
	}

	workers := e.cfg.Workers
	if workers > len(starts) {
		workers = len(starts)
	}

	// Each job owns one result slot, and the reduction below walks the
	// slots in window order. Worker count and scheduling therefore cannot
	// change the aggregate, not even in the last float bit.
	jobs := make(chan int, len(starts))
	results := make([][25]float64, len(starts))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				start := starts[j]
				end := start + window
				if end > frames {
					end = frames
				}
				results[j] = e.Extract(buf.Slice(start, end)).vector()
			}
		}()
	}
	for j := range starts {
		jobs <- j
	}
	close(jobs)
	wg.Wait()

	var sum [25]float64
	for _, v := range results {
		for i, x := range v {
			sum[i] += x
		}
	}
	n := len(results)
	for i := range sum {
		sum[i] /= float64(n)
	}

	e.log.Debug("sampled extraction aggregated",
		"windows", n, "window_secs", e.cfg.WindowSecs, "stride_secs", e.cfg.StrideSecs)

	return fromVector(sum).Clamped()
}
