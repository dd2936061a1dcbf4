package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/earmark-audio/earmark/internal/fingerprint"
)

// storeSchema holds one row per track path. Each fingerprint field gets
// its own column so rows stay queryable with plain SQL; mastering targets
// are not stored, they are re-derived from the fingerprint on load.
const storeSchema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	path                    TEXT PRIMARY KEY,
	signature               TEXT NOT NULL,
	version                 TEXT NOT NULL,
	extracted_at            TIMESTAMPTZ NOT NULL,
	duration_secs           DOUBLE PRECISION NOT NULL,
	sample_rate             INTEGER NOT NULL,
	loudness                DOUBLE PRECISION NOT NULL,
	crest_db                DOUBLE PRECISION NOT NULL,
	bass_mid_ratio          DOUBLE PRECISION NOT NULL,
	sub_bass_pct            DOUBLE PRECISION NOT NULL,
	bass_pct                DOUBLE PRECISION NOT NULL,
	low_mid_pct             DOUBLE PRECISION NOT NULL,
	mid_pct                 DOUBLE PRECISION NOT NULL,
	high_mid_pct            DOUBLE PRECISION NOT NULL,
	presence_pct            DOUBLE PRECISION NOT NULL,
	air_pct                 DOUBLE PRECISION NOT NULL,
	tempo_bpm               DOUBLE PRECISION NOT NULL,
	rhythm_stability        DOUBLE PRECISION NOT NULL,
	transient_density       DOUBLE PRECISION NOT NULL,
	silence_ratio           DOUBLE PRECISION NOT NULL,
	spectral_centroid       DOUBLE PRECISION NOT NULL,
	spectral_rolloff        DOUBLE PRECISION NOT NULL,
	spectral_flatness       DOUBLE PRECISION NOT NULL,
	harmonic_ratio          DOUBLE PRECISION NOT NULL,
	pitch_stability         DOUBLE PRECISION NOT NULL,
	chroma_energy           DOUBLE PRECISION NOT NULL,
	dynamic_range_variation DOUBLE PRECISION NOT NULL,
	loudness_variation_std  DOUBLE PRECISION NOT NULL,
	peak_consistency        DOUBLE PRECISION NOT NULL,
	stereo_width            DOUBLE PRECISION NOT NULL,
	phase_correlation       DOUBLE PRECISION NOT NULL
)`

// fingerprintColumns lists the feature columns in Fingerprint field
// order. fingerprintFields must walk the identical order; the SELECT and
// upsert statements are generated from this single list.
var fingerprintColumns = []string{
	"loudness", "crest_db", "bass_mid_ratio",
	"sub_bass_pct", "bass_pct", "low_mid_pct", "mid_pct",
	"high_mid_pct", "presence_pct", "air_pct",
	"tempo_bpm", "rhythm_stability", "transient_density", "silence_ratio",
	"spectral_centroid", "spectral_rolloff", "spectral_flatness",
	"harmonic_ratio", "pitch_stability", "chroma_energy",
	"dynamic_range_variation", "loudness_variation_std", "peak_consistency",
	"stereo_width", "phase_correlation",
}

// fingerprintFields returns pointers to the struct fields in column
// order. database/sql dereferences pointers on write, so the same slice
// serves Scan and Exec.
func fingerprintFields(fp *fingerprint.Fingerprint) []any {
	return []any{
		&fp.Loudness, &fp.CrestDB, &fp.BassMidRatio,
		&fp.SubBassPct, &fp.BassPct, &fp.LowMidPct, &fp.MidPct,
		&fp.HighMidPct, &fp.PresencePct, &fp.AirPct,
		&fp.TempoBPM, &fp.RhythmStability, &fp.TransientDensity, &fp.SilenceRatio,
		&fp.SpectralCentroid, &fp.SpectralRolloff, &fp.SpectralFlatness,
		&fp.HarmonicRatio, &fp.PitchStability, &fp.ChromaEnergy,
		&fp.DynamicRangeVariation, &fp.LoudnessVariationStd, &fp.PeakConsistency,
		&fp.StereoWidth, &fp.PhaseCorrelation,
	}
}

var (
	selectStmt = buildSelect()
	upsertStmt = buildUpsert()
)

func buildSelect() string {
	return "SELECT signature, version, extracted_at, duration_secs, sample_rate, " +
		strings.Join(fingerprintColumns, ", ") +
		" FROM fingerprints WHERE path = $1"
}

func buildUpsert() string {
	cols := append(
		[]string{"path", "signature", "version", "extracted_at", "duration_secs", "sample_rate"},
		fingerprintColumns...)

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	// Everything except the key is refreshed on conflict.
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	return fmt.Sprintf(
		"INSERT INTO fingerprints (%s) VALUES (%s) ON CONFLICT (path) DO UPDATE SET %s",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(sets, ", "))
}

// Store is the shared Postgres tier. Writes are idempotent upserts keyed
// by path, so concurrent processes resolve last-writer-wins without
// transactions.
type Store struct {
	db *sql.DB
}

// OpenStore connects via the pgx stdlib driver and ensures the schema
// exists. The caller owns Close.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open fingerprint store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("reach fingerprint store: %w", err)
	}
	if _, err := db.ExecContext(ctx, storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure fingerprint schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load fetches the row for path. A missing row, a different format
// version or a stale signature all report ErrMiss. Targets are derived
// from the loaded fingerprint, never read from the store.
func (s *Store) Load(ctx context.Context, path, sig string) (Entry, error) {
	var e Entry
	dest := append(
		[]any{&e.Signature, &e.Version, &e.ExtractedAt, &e.DurationSecs, &e.SampleRate},
		fingerprintFields(&e.Fingerprint)...)

	err := s.db.QueryRowContext(ctx, selectStmt, path).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("store lookup: %w", err)
	}
	if e.Version != fingerprint.Version || e.Signature != sig {
		return Entry{}, ErrMiss
	}
	e.Targets = fingerprint.DeriveTargets(e.Fingerprint)
	return e, nil
}

// Save upserts the row for path.
func (s *Store) Save(ctx context.Context, path string, e Entry) error {
	args := append(
		[]any{path, e.Signature, e.Version, e.ExtractedAt, e.DurationSecs, e.SampleRate},
		fingerprintFields(&e.Fingerprint)...)

	if _, err := s.db.ExecContext(ctx, upsertStmt, args...); err != nil {
		return fmt.Errorf("store upsert: %w", err)
	}
	return nil
}

// Delete removes the row for path, if any.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM fingerprints WHERE path = $1", path); err != nil {
		return fmt.Errorf("store delete: %w", err)
	}
	return nil
}
