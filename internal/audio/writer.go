package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Output bit depth. Mastered output is always written as 24-bit PCM.
const (
	outputBitDepth = 24
	pcmFormat      = 1 // WAV audio format tag for linear PCM
)

// Writer streams processed chunks into a 24-bit PCM WAV file. The channel
// count is fixed at construction and every chunk is checked against it;
// Close finalises the RIFF header.
type Writer struct {
	f        *os.File
	enc      *wav.Encoder
	path     string
	channels int
	written  int // frames accepted so far
}

// NewWriter creates the output file and prepares a 24-bit PCM encoder.
func NewWriter(path string, sampleRate, channels int) (*Writer, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported output channel count %d", channels)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	enc := wav.NewEncoder(f, sampleRate, outputBitDepth, channels, pcmFormat)
	return &Writer{f: f, enc: enc, path: path, channels: channels}, nil
}

// WriteChunk encodes one channel-planar chunk. Samples outside [-1, 1] are
// clamped at the 24-bit boundary.
func (w *Writer) WriteChunk(data [][]float64) error {
	interleaved, err := Interleave(data, w.channels)
	if err != nil {
		return fmt.Errorf("chunk assembly: %w", err)
	}

	const fullScale = 1 << (outputBitDepth - 1) // 8388608
	ints := make([]int, len(interleaved))
	for i, s := range interleaved {
		v := int(s * fullScale)
		if v > fullScale-1 {
			v = fullScale - 1
		} else if v < -fullScale {
			v = -fullScale
		}
		ints[i] = v
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: w.channels, SampleRate: w.enc.SampleRate},
		Data:           ints,
		SourceBitDepth: outputBitDepth,
	}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write audio chunk: %w", err)
	}
	w.written += len(interleaved) / w.channels
	return nil
}

// FramesWritten returns the number of frames accepted so far.
func (w *Writer) FramesWritten() int {
	return w.written
}

// Path returns the output file path.
func (w *Writer) Path() string {
	return w.path
}

// Close finalises the WAV header and closes the file.
// Safe to call multiple times - subsequent calls are no-ops.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		w.f = nil
		return fmt.Errorf("failed to finalise output file: %w", err)
	}
	err := w.f.Close()
	w.f = nil
	if err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}
