package cache

import (
	"encoding/json"
	"os"
	"time"

	"github.com/earmark-audio/earmark/internal/fingerprint"
)

// sidecarSuffix is appended to the audio path, keeping the cache record
// next to the file it describes.
const sidecarSuffix = ".earmark.json"

// Entry is one cached analysis: everything needed to master the track
// again without re-reading its audio.
type Entry struct {
	Version      string                       `json:"version"`
	Signature    string                       `json:"signature"`
	ExtractedAt  time.Time                    `json:"extracted_at"`
	DurationSecs float64                      `json:"duration_secs"`
	SampleRate   int                          `json:"sample_rate"`
	Fingerprint  fingerprint.Fingerprint      `json:"fingerprint"`
	Targets      fingerprint.MasteringTargets `json:"targets"`
}

// SidecarPath returns the cache file co-located with an audio file.
func SidecarPath(audioPath string) string {
	return audioPath + sidecarSuffix
}

// loadSidecar reads and validates the sidecar. Unreadable, unparsable,
// wrong-version and wrong-signature files all report ErrMiss; a stale
// sidecar is a cache miss, never a failure.
func loadSidecar(audioPath, sig string) (Entry, error) {
	raw, err := os.ReadFile(SidecarPath(audioPath))
	if err != nil {
		return Entry{}, ErrMiss
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, ErrMiss
	}
	if e.Version != fingerprint.Version || e.Signature != sig {
		return Entry{}, ErrMiss
	}
	return e, nil
}

// saveSidecar writes the entry as indented JSON so the record stays
// inspectable with any text tool.
func saveSidecar(audioPath string, e Entry) error {
	raw, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(SidecarPath(audioPath), raw, 0o644)
}
