package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/msdrg/internal/catalog"
	embedsql "github.com/gyeh/msdrg/internal/sql"
)

// PublishResult reports what PublishCatalog stored.
type PublishResult struct {
	Fingerprint      string
	AlreadyPublished bool
	DRGs             int64
	Diagnoses        int64
	CCs              int64
	Duration         time.Duration
}

// PublishCatalog copies the catalog's DRG list, diagnosis index and CC/MCC
// table into the drg schema under its fingerprint, in one transaction. A
// catalog already published is left alone unless force is set, in which case
// it is replaced.
func PublishCatalog(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, cat *catalog.Catalog, force bool) (*PublishResult, error) {
	start := time.Now()
	fp := cat.Fingerprint()
	st := cat.Stats()
	res := &PublishResult{Fingerprint: fp}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if force {
		if _, err := tx.Exec(ctx, embedsql.DeleteCatalog, fp); err != nil {
			return nil, fmt.Errorf("delete catalog: %w", err)
		}
	}
	tag, err := tx.Exec(ctx, embedsql.RegisterCatalog, fp, st.DRGs, st.Diagnoses, st.CCs+st.MCCs, st.Groups)
	if err != nil {
		return nil, fmt.Errorf("register catalog: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Info().Str("fingerprint", fp[:12]).Msg("catalog already published, skipping (use --force to replace)")
		res.AlreadyPublished = true
		res.Duration = time.Since(start)
		return res, nil
	}

	drgs := cat.DRGNumbers()
	res.DRGs, err = tx.CopyFrom(ctx,
		pgx.Identifier{"drg", "drgs"},
		[]string{"fingerprint", "drg", "mdc", "drg_type", "variant", "description"},
		pgx.CopyFromSlice(len(drgs), func(i int) ([]any, error) {
			d, _ := cat.DRG(drgs[i])
			var variant *string
			if d.Split {
				v := d.Variant.String()
				variant = &v
			}
			return []any{fp, d.Number, nilIfEmpty(string(d.MDC)), d.Type.String(), variant, d.Description}, nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("copy drgs: %w", err)
	}

	codes := cat.DiagnosisCodes()
	res.Diagnoses, err = tx.CopyFrom(ctx,
		pgx.Identifier{"drg", "diagnoses"},
		[]string{"fingerprint", "code", "description", "mdcs", "direct_drg"},
		pgx.CopyFromSlice(len(codes), func(i int) ([]any, error) {
			d, _ := cat.Diagnosis(codes[i])
			mdcs := make([]string, 0, len(d.Assignments))
			for _, m := range d.MDCs() {
				mdcs = append(mdcs, string(m))
			}
			return []any{fp, d.Code, d.Description, mdcs, nilIfEmpty(d.DirectDRG)}, nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("copy diagnoses: %w", err)
	}

	ccs := cat.CCCodes()
	res.CCs, err = tx.CopyFrom(ctx,
		pgx.Identifier{"drg", "cc_mcc"},
		[]string{"fingerprint", "code", "level", "pdx_collection", "alive_only"},
		pgx.CopyFromSlice(len(ccs), func(i int) ([]any, error) {
			e, _ := cat.CC(ccs[i])
			return []any{fp, e.Code, e.Level.String(), nilIfEmpty(e.Collection), e.AliveOnly}, nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("copy cc_mcc: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	res.Duration = time.Since(start)
	log.Info().
		Str("fingerprint", fp[:12]).
		Int64("drgs", res.DRGs).
		Int64("diagnoses", res.Diagnoses).
		Int64("cc_mcc", res.CCs).
		Dur("duration", res.Duration).
		Msg("catalog published")
	return res, nil
}
