package logging

import (
	"io"
	"log/slog"
	"os"
)

// DebugLogName is the file that receives log output while the TUI owns the
// terminal. It lands in the working directory next to the output files.
const DebugLogName = "earmark-debug.log"

// Setup builds the process-wide logger and installs it as the slog default.
// Headless runs log to stderr. Under the TUI, stdout and stderr belong to
// the terminal UI, so output goes to DebugLogName instead; if that file
// cannot be created the logger discards output rather than fighting the UI
// for the terminal. The returned function closes the log file and is safe
// to call in every case.
func Setup(debug, headless bool) (*slog.Logger, func()) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var log *slog.Logger
	closeFn := func() {}

	switch {
	case headless:
		log = slog.New(slog.NewTextHandler(os.Stderr, opts))
	default:
		f, err := os.Create(DebugLogName)
		if err != nil {
			log = slog.New(slog.NewTextHandler(io.Discard, opts))
		} else {
			log = slog.New(slog.NewTextHandler(f, opts))
			closeFn = func() { f.Close() }
		}
	}

	slog.SetDefault(log)
	return log, closeFn
}
