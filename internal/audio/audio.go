// Package audio provides audio buffers and WAV/MP3 file I/O for the
// fingerprinting and mastering pipelines. Samples are held as float64 in
// [-1, 1], one slice per channel.
package audio

import (
	"fmt"
	"math"
)

// Buffer holds decoded PCM audio with one sample slice per channel.
// All channel slices have equal length.
type Buffer struct {
	Data       [][]float64
	SampleRate int
}

// NewBuffer allocates a zeroed buffer with the given shape.
func NewBuffer(channels, frames, sampleRate int) *Buffer {
	data := make([][]float64, channels)
	for ch := range data {
		data[ch] = make([]float64, frames)
	}
	return &Buffer{Data: data, SampleRate: sampleRate}
}

// Channels returns the channel count.
func (b *Buffer) Channels() int {
	return len(b.Data)
}

// Frames returns the per-channel sample count.
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Mono returns a single-channel mixdown (equal-weight channel average).
// A mono buffer returns its own channel without copying.
func (b *Buffer) Mono() []float64 {
	if b.Channels() == 1 {
		return b.Data[0]
	}
	frames := b.Frames()
	mix := make([]float64, frames)
	scale := 1.0 / float64(b.Channels())
	for _, ch := range b.Data {
		for i, s := range ch {
			mix[i] += s * scale
		}
	}
	return mix
}

// PromoteToStereo returns a two-channel view of the buffer. Mono input is
// duplicated into both channels; stereo input is returned unchanged.
// More than two channels is rejected upstream at decode time.
func (b *Buffer) PromoteToStereo() *Buffer {
	if b.Channels() == 2 {
		return b
	}
	left := b.Data[0]
	right := make([]float64, len(left))
	copy(right, left)
	return &Buffer{Data: [][]float64{left, right}, SampleRate: b.SampleRate}
}

// Slice returns a view of frames [from, to) sharing the underlying arrays.
func (b *Buffer) Slice(from, to int) *Buffer {
	data := make([][]float64, b.Channels())
	for ch := range b.Data {
		data[ch] = b.Data[ch][from:to]
	}
	return &Buffer{Data: data, SampleRate: b.SampleRate}
}

// Peak returns the largest absolute sample value across all channels.
func (b *Buffer) Peak() float64 {
	peak := 0.0
	for _, ch := range b.Data {
		for _, s := range ch {
			if a := math.Abs(s); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// RMS returns the root-mean-square level across all channels.
func (b *Buffer) RMS() float64 {
	var sum float64
	var n int
	for _, ch := range b.Data {
		for _, s := range ch {
			sum += s * s
		}
		n += len(ch)
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// Interleave flattens channel-planar samples into frame-interleaved order.
// The channel count is taken from the declared channels argument, never
// inferred from slice lengths: for clips shorter than the channel count the
// dimensions are ambiguous and guessing swaps channels.
func Interleave(data [][]float64, channels int) ([]float64, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if len(data) != channels {
		return nil, fmt.Errorf("channel mismatch: buffer has %d channels, format declares %d", len(data), channels)
	}
	frames := len(data[0])
	for ch, s := range data {
		if len(s) != frames {
			return nil, fmt.Errorf("ragged channel %d: %d frames, expected %d", ch, len(s), frames)
		}
	}
	out := make([]float64, frames*channels)
	for ch, s := range data {
		for i, v := range s {
			out[i*channels+ch] = v
		}
	}
	return out, nil
}

// Deinterleave splits frame-interleaved samples into channel-planar slices
// using the declared channel count. Trailing partial frames are dropped.
func Deinterleave(samples []float64, channels int) [][]float64 {
	if channels <= 0 {
		return nil
	}
	frames := len(samples) / channels
	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = make([]float64, frames)
		for i := 0; i < frames; i++ {
			out[ch][i] = samples[i*channels+ch]
		}
	}
	return out
}
