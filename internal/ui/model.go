// Package ui provides the Bubbletea terminal user interface for earmark
package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/earmark-audio/earmark/internal/mastering"
)

// FileStatus represents the processing status of a file
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusFingerprinting
	StatusMastering
	StatusComplete
	StatusError
)

// Spinner animation frames shown while a stage is running
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickMsg drives the spinner and elapsed-time display between progress
// updates. Mastering reports once per chunk, which can be tens of seconds
// apart on long files, so the clock cannot rely on ProgressMsg alone.
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// FileProgress tracks the progress of a single file
type FileProgress struct {
	InputPath    string
	OutputPath   string
	Status       FileStatus
	CurrentStage int    // 1 fingerprint, 2 mastering
	StageName    string // Display name of the current stage
	Progress     float64
	StartTime    time.Time
	ElapsedTime  time.Duration
	CurrentLevel float64 // Current audio level in dB
	PeakLevel    float64 // Peak level seen this stage in dB
	Class        mastering.MaterialClass
	InputLUFS    float64
	OutputLUFS   float64
	Error        error
}

// Model is the Bubble Tea model for the UI
type Model struct {
	Files          []FileProgress
	CurrentIndex   int
	TotalFiles     int
	CompletedFiles int
	FailedFiles    int
	StartTime      time.Time
	Done           bool
	ProgressChan   chan tea.Msg
	Width          int
	Height         int
	spinnerFrame   int
}

// NewModel creates a new UI model for the given input files
func NewModel(inputFiles []string) Model {
	files := make([]FileProgress, len(inputFiles))
	for i, path := range inputFiles {
		files[i] = FileProgress{
			InputPath:    path,
			Status:       StatusQueued,
			CurrentLevel: -60,
			PeakLevel:    -60,
		}
	}

	return Model{
		Files:        files,
		CurrentIndex: -1,
		TotalFiles:   len(inputFiles),
		StartTime:    time.Now(),
		ProgressChan: make(chan tea.Msg, 100),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForProgress(), tickCmd())
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tickMsg:
		if m.Done {
			return m, nil
		}
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
			file := &m.Files[m.CurrentIndex]
			if !file.StartTime.IsZero() && file.Status != StatusComplete && file.Status != StatusError {
				file.ElapsedTime = time.Since(file.StartTime)
			}
		}
		return m, tickCmd()

	case FileStartMsg:
		m.CurrentIndex = msg.FileIndex
		if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
			file := &m.Files[m.CurrentIndex]
			file.Status = StatusFingerprinting
			file.StartTime = time.Now()
			file.OutputPath = msg.OutputPath
		}
		return m, m.waitForProgress()

	case ProgressMsg:
		m.updateFileProgress(msg)
		return m, m.waitForProgress()

	case FileCompleteMsg:
		if msg.FileIndex >= 0 && msg.FileIndex < len(m.Files) {
			file := &m.Files[msg.FileIndex]
			if msg.Error != nil {
				file.Status = StatusError
				file.Error = msg.Error
				m.FailedFiles++
			} else {
				file.Status = StatusComplete
				file.Class = msg.Class
				file.InputLUFS = msg.InputLUFS
				file.OutputLUFS = msg.OutputLUFS
				if msg.OutputPath != "" {
					file.OutputPath = msg.OutputPath
				}
				m.CompletedFiles++
			}
			if !file.StartTime.IsZero() {
				file.ElapsedTime = time.Since(file.StartTime)
			}
		}
		return m, m.waitForProgress()

	case AllCompleteMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.Width == 0 {
		return fmt.Sprintf("Initializing...\nFiles: %d\nCurrent: %d\n", len(m.Files), m.CurrentIndex)
	}

	if m.Done {
		return renderCompletionSummary(m)
	}

	return renderProcessingView(m)
}

// updateFileProgress applies a progress update to the current file
func (m *Model) updateFileProgress(msg ProgressMsg) {
	if m.CurrentIndex < 0 || m.CurrentIndex >= len(m.Files) {
		return
	}

	file := &m.Files[m.CurrentIndex]

	// Stage transitions reset the stage clock and the peak meter
	if msg.Stage != file.CurrentStage {
		file.StartTime = time.Now()
		file.PeakLevel = -60
	}

	file.CurrentStage = msg.Stage
	file.StageName = msg.StageName
	file.Progress = msg.Progress
	file.ElapsedTime = time.Since(file.StartTime)
	file.CurrentLevel = msg.LevelDB
	if msg.LevelDB > file.PeakLevel {
		file.PeakLevel = msg.LevelDB
	}

	switch msg.Stage {
	case 1:
		file.Status = StatusFingerprinting
	case 2:
		file.Status = StatusMastering
	}
}

// waitForProgress returns a command that waits for the next progress message
func (m Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		return <-m.ProgressChan
	}
}
