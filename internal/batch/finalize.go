package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/msdrg/internal/sql"
)

// Finalize records the run's counts, marks it complete and runs ANALYZE.
func Finalize(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, runID uuid.UUID, gr *GroupResult) (time.Duration, error) {
	start := time.Now()

	if _, err := pool.Exec(ctx, embedsql.CompleteRun, runID,
		gr.RowsRead, gr.RowsClassified, gr.RowsPreMDC, gr.RowsUngroupable, gr.RowsFailed); err != nil {
		return 0, fmt.Errorf("complete run: %w", err)
	}
	log.Info().Str("run_id", runID.String()).Msg("run marked complete")

	if _, err := pool.Exec(ctx, embedsql.AnalyzeResults); err != nil {
		return 0, fmt.Errorf("analyze results: %w", err)
	}
	log.Info().Msg("ANALYZE complete")

	return time.Since(start), nil
}

// UpdateStatus updates the grouping run status.
func UpdateStatus(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID, status string) error {
	_, err := pool.Exec(ctx, embedsql.UpdateRunStatus, runID, status)
	return err
}
