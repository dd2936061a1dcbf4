// Package cache persists computed fingerprints across runs. Lookups walk
// three tiers: a shared Postgres store, a JSON sidecar next to the audio
// file, and recomputation. Both stored tiers are validated against a
// content signature and a format version, so any change to the file or
// the fingerprint format silently falls through to recompute.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/earmark-audio/earmark/internal/audio"
	"github.com/earmark-audio/earmark/internal/fingerprint"
)

// ErrMiss reports a stale or absent cache entry. Callers inside the
// service treat it as "try the next tier"; it never reaches users.
var ErrMiss = errors.New("cache miss")

// sampledThresholdSecs is the track length beyond which the compute tier
// switches from the batch extractor to the sampled analyzer.
const sampledThresholdSecs = 180.0

// Analyzer is the compute tier. *fingerprint.Extractor satisfies it.
type Analyzer interface {
	Extract(buf *audio.Buffer) fingerprint.Fingerprint
	ExtractSampled(buf *audio.Buffer) fingerprint.Fingerprint
}

// entryStore is the persistent tier as the service sees it.
type entryStore interface {
	Load(ctx context.Context, path, sig string) (Entry, error)
	Save(ctx context.Context, path string, e Entry) error
	Delete(ctx context.Context, path string) error
}

// Service answers fingerprint lookups through the tiered cache.
type Service struct {
	analyzer Analyzer
	store    entryStore // nil runs sidecar-only
	log      *slog.Logger
}

// NewService wires the tiers together. A nil store disables the Postgres
// tier; the service then works sidecar-only, which is the mode for every
// run without a configured database.
func NewService(analyzer Analyzer, store *Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		analyzer: analyzer,
		log:      log.With("component", "cache"),
	}
	if store != nil {
		s.store = store
	} else {
		s.log.Debug("no fingerprint store configured, running sidecar-only")
	}
	return s
}

// GetOrCompute resolves the fingerprint for path. The store answers
// first, then the sidecar (which backfills the store), then the
// extractor runs over buf. Cache writes are best-effort: a failed store
// or sidecar write logs a warning but never fails a call that produced a
// fingerprint.
func (s *Service) GetOrCompute(ctx context.Context, path string, buf *audio.Buffer) (Entry, error) {
	sig, err := Signature(path)
	if err != nil {
		return Entry{}, err
	}

	if s.store != nil {
		e, err := s.store.Load(ctx, path, sig)
		switch {
		case err == nil:
			s.log.Debug("fingerprint store hit", "path", path)
			return e, nil
		case !errors.Is(err, ErrMiss):
			s.log.Warn("fingerprint store lookup failed", "path", path, "error", err)
		}
	}

	if e, err := loadSidecar(path, sig); err == nil {
		s.log.Debug("sidecar hit", "path", path)
		s.backfill(ctx, path, e)
		return e, nil
	}

	if buf == nil || buf.Frames() == 0 {
		return Entry{}, fmt.Errorf("fingerprint for %s not cached and no audio provided", path)
	}

	var fp fingerprint.Fingerprint
	if buf.Duration() > sampledThresholdSecs {
		fp = s.analyzer.ExtractSampled(buf)
	} else {
		fp = s.analyzer.Extract(buf)
	}
	e := Entry{
		Version:      fingerprint.Version,
		Signature:    sig,
		ExtractedAt:  time.Now().UTC(),
		DurationSecs: buf.Duration(),
		SampleRate:   buf.SampleRate,
		Fingerprint:  fp,
		Targets:      fingerprint.DeriveTargets(fp),
	}

	if err := saveSidecar(path, e); err != nil {
		s.log.Warn("sidecar write failed", "path", path, "error", err)
	}
	s.backfill(ctx, path, e)
	return e, nil
}

// backfill pushes an entry into the store tier, best-effort.
func (s *Service) backfill(ctx context.Context, path string, e Entry) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, path, e); err != nil {
		s.log.Warn("fingerprint store write failed", "path", path, "error", err)
	}
}

// Clear removes the cached fingerprint for path from every tier. Store
// purge failures are logged, not returned; a missing sidecar is fine.
func (s *Service) Clear(ctx context.Context, path string) error {
	if err := os.Remove(SidecarPath(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove sidecar: %w", err)
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, path); err != nil {
			s.log.Warn("fingerprint store purge failed", "path", path, "error", err)
		}
	}
	return nil
}
