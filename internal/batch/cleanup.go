package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/msdrg/internal/sql"
)

// Cleanup deletes result rows of a failed run.
func Cleanup(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, runID uuid.UUID) error {
	start := time.Now()

	tag, err := pool.Exec(ctx, embedsql.DeleteRunResults, runID)
	if err != nil {
		return err
	}

	log.Info().
		Int64("rows_deleted", tag.RowsAffected()).
		Dur("duration", time.Since(start)).
		Msg("result cleanup complete")

	return nil
}
