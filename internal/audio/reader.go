package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// Metadata contains audio file metadata captured at decode time.
type Metadata struct {
	Duration   float64 // seconds
	SampleRate int
	Channels   int
	BitDepth   int
	Format     string // "wav" or "mp3"
}

// Decode reads an entire audio file into a Buffer. WAV (any PCM bit depth)
// and MP3 are supported; anything else is rejected before processing starts.
func Decode(path string) (*Buffer, *Metadata, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWAV(path)
	case ".mp3":
		return decodeMP3(path)
	default:
		return nil, nil, fmt.Errorf("unsupported audio format %q (need .wav or .mp3)", filepath.Ext(path))
	}
}

// decodeWAV reads a PCM WAV file via go-audio, converting integer samples
// to float64 in [-1, 1].
func decodeWAV(path string) (*Buffer, *Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, nil, fmt.Errorf("not a valid WAV file: %s", path)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode WAV data: %w", err)
	}

	channels := pcm.Format.NumChannels
	if channels < 1 || channels > 2 {
		return nil, nil, fmt.Errorf("unsupported channel layout: %d channels in %s", channels, path)
	}

	bitDepth := int(dec.BitDepth)
	if pcm.SourceBitDepth > 0 {
		bitDepth = pcm.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, nil, fmt.Errorf("unsupported bit depth %d in %s", bitDepth, path)
	}

	// Full-scale divisor for signed PCM at the source depth.
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))

	frames := len(pcm.Data) / channels
	buf := NewBuffer(channels, frames, pcm.Format.SampleRate)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf.Data[ch][i] = float64(pcm.Data[i*channels+ch]) * scale
		}
	}

	meta := &Metadata{
		Duration:   buf.Duration(),
		SampleRate: buf.SampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
		Format:     "wav",
	}
	return buf, meta, nil
}

// decodeMP3 reads an MP3 file via go-mp3, which always yields interleaved
// 16-bit little-endian stereo at the stream's sample rate.
func decodeMP3(path string) (*Buffer, *Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode MP3 stream: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read MP3 samples: %w", err)
	}

	// 4 bytes per frame: L and R int16.
	frames := len(raw) / 4
	buf := NewBuffer(2, frames, dec.SampleRate())
	const scale = 1.0 / 32768.0
	for i := 0; i < frames; i++ {
		l := int16(uint16(raw[i*4]) | uint16(raw[i*4+1])<<8)
		r := int16(uint16(raw[i*4+2]) | uint16(raw[i*4+3])<<8)
		buf.Data[0][i] = float64(l) * scale
		buf.Data[1][i] = float64(r) * scale
	}

	meta := &Metadata{
		Duration:   buf.Duration(),
		SampleRate: buf.SampleRate,
		Channels:   2,
		BitDepth:   16,
		Format:     "mp3",
	}
	return buf, meta, nil
}
