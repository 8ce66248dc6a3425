package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/msdrg/internal/encounterio"
	"github.com/gyeh/msdrg/internal/normalize"
	embedsql "github.com/gyeh/msdrg/internal/sql"
)

// PreflightResult holds the context resolved before any row is grouped.
type PreflightResult struct {
	// Input is the path passed to Preflight, stored as-is.
	Input       string
	InputSHA256 string
	InputSize   int64
	// NumRows is the row count from Parquet metadata, or -1 for CSV.
	NumRows            int64
	CatalogFingerprint string
	// RunID tags every result row of this run. When AlreadyGrouped is set it
	// is the earlier complete run instead.
	RunID uuid.UUID
	// AlreadyGrouped is true when the database already holds a complete run
	// for the same input and catalog and force mode is off.
	AlreadyGrouped bool
}

// Preflight hashes the input, validates its header or schema and, when pool
// is non-nil, registers the run.
func Preflight(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, input, fingerprint, label string, force bool) (*PreflightResult, error) {
	start := time.Now()

	sha, err := normalize.FileHash(input)
	if err != nil {
		return nil, fmt.Errorf("preflight hash: %w", err)
	}

	stat, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("preflight stat: %w", err)
	}

	reader, err := encounterio.Open(input)
	if err != nil {
		return nil, fmt.Errorf("preflight open: %w", err)
	}
	numRows := reader.NumRows()
	reader.Close()

	pf := &PreflightResult{
		Input:              input,
		InputSHA256:        sha,
		InputSize:          stat.Size(),
		NumRows:            numRows,
		CatalogFingerprint: fingerprint,
		RunID:              uuid.New(),
	}

	log.Info().
		Str("file", filepath.Base(input)).
		Str("sha256", sha).
		Int64("rows", numRows).
		Dur("duration", time.Since(start)).
		Msg("preflight complete")

	if pool == nil {
		return pf, nil
	}

	if !force {
		var prior uuid.UUID
		err := pool.QueryRow(ctx, embedsql.LookupCompleteRun, sha, fingerprint).Scan(&prior)
		switch {
		case err == nil:
			pf.RunID = prior
			pf.AlreadyGrouped = true
			return pf, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("preflight lookup run: %w", err)
		}
	}

	if _, err := pool.Exec(ctx, embedsql.RegisterRun, pf.RunID, nilIfEmpty(label), filepath.Base(input), sha, fingerprint); err != nil {
		return nil, fmt.Errorf("preflight register run: %w", err)
	}
	return pf, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
