package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/msdrg/internal/config"
	"github.com/gyeh/msdrg/internal/grouper"
	"github.com/gyeh/msdrg/internal/model"
)

// Pipeline phases reported in PipelineError.
const (
	PhasePreflight = "preflight"
	PhaseGroup     = "group"
	PhaseWrite     = "write"
	PhaseFinalize  = "finalize"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run executes the batch pipeline: preflight → group/write → finalize.
// Results go to cfg.Output when set and to drg.grouping_results through pool
// otherwise. Per-encounter failures are recorded in the output and counted in
// the summary; only infrastructure failures return an error.
func Run(ctx context.Context, eng *grouper.Engine, pool *pgxpool.Pool, log zerolog.Logger, cfg *config.Config) (*model.BatchSummary, error) {
	totalStart := time.Now()

	var sink Sink
	switch {
	case cfg.Output != "":
		sink = FileSink{Path: cfg.Output}
		pool = nil
	case pool != nil:
		sink = PostgresSink{Pool: pool}
	default:
		return nil, &PipelineError{Phase: PhasePreflight, Err: errors.New("no output file or database configured")}
	}

	// Phase 1: Preflight
	log.Info().Str("input", cfg.Input).Str("destination", sink.Name()).Msg("starting preflight")
	pf, err := Preflight(ctx, pool, log, cfg.Input, eng.Catalog().Fingerprint(), cfg.RunLabel, cfg.Force)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePreflight, Err: err}
	}

	summary := &model.BatchSummary{
		RunID:              pf.RunID.String(),
		RunLabel:           cfg.RunLabel,
		Input:              pf.Input,
		InputSHA256:        pf.InputSHA256,
		CatalogFingerprint: pf.CatalogFingerprint,
		Destination:        sink.Name(),
	}

	if pf.AlreadyGrouped {
		log.Info().
			Str("run_id", pf.RunID.String()).
			Str("sha256", pf.InputSHA256).
			Msg("input already grouped with this catalog, skipping (use --force to regroup)")
		summary.AlreadyGrouped = true
		summary.DurationTotal = time.Since(totalStart)
		return summary, nil
	}

	// Phase 2: Group and write
	if pool != nil {
		if err := UpdateStatus(ctx, pool, pf.RunID, "grouping"); err != nil {
			return nil, &PipelineError{Phase: PhaseGroup, Err: err}
		}
	}
	gr, err := Group(ctx, eng, sink, log, pf, cfg.Workers, cfg.Verbose)
	if err != nil {
		if pool != nil {
			// ctx may be cancelled already; record the failure regardless
			bg := context.WithoutCancel(ctx)
			_ = UpdateStatus(bg, pool, pf.RunID, "failed")
			if cerr := Cleanup(bg, pool, log, pf.RunID); cerr != nil {
				log.Warn().Err(cerr).Msg("result cleanup failed (non-fatal)")
			}
		}
		var pe *PipelineError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, &PipelineError{Phase: PhaseGroup, Err: err}
	}

	// Phase 3: Finalize
	if pool != nil {
		log.Info().Msg("finalizing")
		summary.DurationFinalize, err = Finalize(ctx, pool, log, pf.RunID, gr)
		if err != nil {
			_ = UpdateStatus(context.WithoutCancel(ctx), pool, pf.RunID, "failed")
			return nil, &PipelineError{Phase: PhaseFinalize, Err: err}
		}
	}

	summary.RowsRead = gr.RowsRead
	summary.RowsClassified = gr.RowsClassified
	summary.RowsPreMDC = gr.RowsPreMDC
	summary.RowsUngroupable = gr.RowsUngroupable
	summary.RowsFailed = gr.RowsFailed
	summary.RowsWritten = gr.RowsWritten
	summary.DRGCounts = gr.DRGCounts
	summary.DurationGroup = gr.Duration
	summary.DurationTotal = time.Since(totalStart)

	log.Info().
		Int64("rows_read", summary.RowsRead).
		Int64("rows_classified", summary.RowsClassified).
		Int64("rows_pre_mdc", summary.RowsPreMDC).
		Int64("rows_ungroupable", summary.RowsUngroupable).
		Int64("rows_failed", summary.RowsFailed).
		Int64("rows_written", summary.RowsWritten).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("batch pipeline complete")

	return summary, nil
}
