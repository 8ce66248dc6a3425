package batch

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/msdrg/internal/db"
	"github.com/gyeh/msdrg/internal/encounterio"
	"github.com/gyeh/msdrg/internal/model"
)

const writeBatchSize = 512

// Sink consumes result rows until the channel is closed and returns how many
// it stored.
type Sink interface {
	Consume(ctx context.Context, rows <-chan *model.ResultRow) (int64, error)
	Name() string
}

// FileSink writes results to a CSV or Parquet file chosen by extension.
type FileSink struct {
	Path string
}

func (s FileSink) Name() string { return s.Path }

func (s FileSink) Consume(ctx context.Context, rows <-chan *model.ResultRow) (int64, error) {
	w, err := encounterio.Create(s.Path)
	if err != nil {
		return 0, err
	}
	var written int64
	buf := make([]model.ResultRow, 0, writeBatchSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := w.Write(buf); err != nil {
			return err
		}
		written += int64(len(buf))
		buf = buf[:0]
		return nil
	}
	for row := range rows {
		buf = append(buf, *row)
		if len(buf) == cap(buf) {
			if err := flush(); err != nil {
				w.Close()
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		w.Close()
		return written, err
	}
	if err := w.Close(); err != nil {
		return written, err
	}
	return written, ctx.Err()
}

// PostgresSink COPY-loads results into drg.grouping_results.
type PostgresSink struct {
	Pool *pgxpool.Pool
}

func (s PostgresSink) Name() string { return "postgres:drg.grouping_results" }

func (s PostgresSink) Consume(ctx context.Context, rows <-chan *model.ResultRow) (int64, error) {
	src := db.NewChannelSource(rows)
	n, err := s.Pool.CopyFrom(ctx,
		pgx.Identifier{"drg", "grouping_results"},
		model.ResultColumns(),
		src,
	)
	if err != nil {
		// the producer sees the cancelled context and stops sending
		return n, fmt.Errorf("copy results after %d rows: %w", src.Rows(), err)
	}
	return n, nil
}
