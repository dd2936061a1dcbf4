package ui

import (
	"github.com/earmark-audio/earmark/internal/mastering"
)

// ProgressMsg represents a progress update from the processing goroutine
type ProgressMsg struct {
	Stage     int     // 1 fingerprint, 2 mastering
	StageName string  // "Fingerprinting" or "Mastering"
	Progress  float64 // 0.0 to 1.0
	LevelDB   float64 // Current audio level in dB
}

// FileStartMsg indicates a new file has started processing
type FileStartMsg struct {
	FileIndex  int
	FileName   string
	OutputPath string
}

// FileCompleteMsg indicates a file has finished processing
type FileCompleteMsg struct {
	FileIndex  int
	Class      mastering.MaterialClass
	InputLUFS  float64
	OutputLUFS float64
	OutputPath string
	Error      error
}

// AllCompleteMsg indicates all files have been processed
type AllCompleteMsg struct{}
