package batch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/msdrg/internal/encounterio"
	"github.com/gyeh/msdrg/internal/grouper"
	"github.com/gyeh/msdrg/internal/model"
)

const readBatchSize = 1024

// GroupResult holds metrics from the group phase.
type GroupResult struct {
	RowsRead        int64
	RowsClassified  int64
	RowsPreMDC      int64
	RowsUngroupable int64
	RowsFailed      int64
	RowsWritten     int64
	DRGCounts       map[string]int64
	Duration        time.Duration
}

func (g *GroupResult) count(res grouper.Grouped) {
	if res.Err != nil {
		g.RowsFailed++
		return
	}
	switch res.Result.Outcome {
	case grouper.Classified:
		g.RowsClassified++
	case grouper.PreMDCAssigned:
		g.RowsPreMDC++
	case grouper.Ungroupable:
		g.RowsUngroupable++
	}
	g.DRGCounts[res.Result.DRG]++
}

// Group streams encounters from the input in chunks, groups each chunk
// concurrently and hands result rows to sink through a channel, in input
// order. A failing encounter becomes an error row; a failing read or sink
// aborts the phase.
func Group(ctx context.Context, eng *grouper.Engine, sink Sink, log zerolog.Logger, pf *PreflightResult, workers int, verbose bool) (*GroupResult, error) {
	start := time.Now()

	reader, err := encounterio.Open(pf.Input)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseGroup, Err: fmt.Errorf("group open: %w", err)}
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan *model.ResultRow, readBatchSize)
	errCh := make(chan error, 1)
	gr := &GroupResult{DRGCounts: make(map[string]int64)}

	// Producer goroutine: read → group → push to channel
	go func() {
		defer close(ch)
		buf := make([]model.EncounterRow, readBatchSize)
		encs := make([]grouper.Encounter, 0, readBatchSize)
		idx := make([]int, 0, readBatchSize)

		for {
			n, readErr := reader.Read(buf)
			if n > 0 {
				gr.RowsRead += int64(n)
				results := make([]grouper.Grouped, n)
				encs, idx = encs[:0], idx[:0]
				for i := 0; i < n; i++ {
					enc, convErr := toEncounter(&buf[i])
					if convErr != nil {
						results[i] = grouper.Grouped{Err: convErr}
						continue
					}
					encs = append(encs, enc)
					idx = append(idx, i)
				}
				grouped, gerr := eng.GroupAll(ctx, encs, workers)
				if gerr != nil {
					errCh <- gerr
					return
				}
				for j, g := range grouped {
					results[idx[j]] = g
				}

				for i := 0; i < n; i++ {
					gr.count(results[i])
					if results[i].Err != nil {
						log.Debug().Err(results[i].Err).Int64("row", buf[i].RowNumber).Str("encounter", buf[i].EncounterID).Msg("encounter not grouped")
					}
					select {
					case ch <- toResultRow(pf.RunID, &buf[i], results[i], verbose):
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					}
				}
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				errCh <- fmt.Errorf("read input at row %d: %w", gr.RowsRead, readErr)
				return
			}
		}
		errCh <- nil
	}()

	// Consumer: sink reads from the channel until the producer closes it
	written, sinkErr := sink.Consume(ctx, ch)
	if sinkErr != nil {
		cancel()
	}

	prodErr := <-errCh
	if sinkErr != nil {
		return nil, &PipelineError{Phase: PhaseWrite, Err: sinkErr}
	}
	if prodErr != nil {
		return nil, &PipelineError{Phase: PhaseGroup, Err: prodErr}
	}

	gr.RowsWritten = written
	gr.Duration = time.Since(start)
	log.Info().
		Int64("rows_read", gr.RowsRead).
		Int64("rows_written", gr.RowsWritten).
		Int64("rows_failed", gr.RowsFailed).
		Str("duration", gr.Duration.String()).
		Float64("rows_per_sec", float64(gr.RowsRead)/gr.Duration.Seconds()).
		Msg("grouping complete")

	return gr, nil
}
