package model

import (
	"strconv"

	"github.com/google/uuid"
)

// ResultRow is the output representation of one grouped (or failed)
// encounter. It is written to CSV and Parquet files and COPY-loaded into
// drg.grouping_results.
type ResultRow struct {
	RunID   uuid.UUID `parquet:"-"`
	RowHash []byte    `parquet:"-"`

	RowNumber   int64  `parquet:"row_number"`
	EncounterID string `parquet:"encounter_id"`
	DRG         string `parquet:"drg"`
	MDC         string `parquet:"mdc"`
	DRGType     string `parquet:"drg_type"`
	Severity    string `parquet:"severity"`
	SeverityDx  string `parquet:"severity_dx"`
	Path        string `parquet:"path"`
	Procedure   string `parquet:"procedure"`
	Outcome     string `parquet:"outcome"`
	Description string `parquet:"description"`
	Error       string `parquet:"error"`
	Notes       string `parquet:"notes"`
}

// OutcomeError marks rows that could not be grouped at all.
const OutcomeError = "error"

// ResultCSVColumns returns the header of CSV result files.
func ResultCSVColumns() []string {
	return []string{
		"row_number",
		"encounter_id",
		"drg",
		"mdc",
		"drg_type",
		"severity",
		"severity_dx",
		"path",
		"procedure",
		"outcome",
		"description",
		"error",
		"notes",
	}
}

// CSVRecord returns the row values in ResultCSVColumns order.
func (r *ResultRow) CSVRecord() []string {
	return []string{
		strconv.FormatInt(r.RowNumber, 10),
		r.EncounterID,
		r.DRG,
		r.MDC,
		r.DRGType,
		r.Severity,
		r.SeverityDx,
		r.Path,
		r.Procedure,
		r.Outcome,
		r.Description,
		r.Error,
		r.Notes,
	}
}

// ResultColumns returns the ordered column names for COPY into
// drg.grouping_results.
func ResultColumns() []string {
	return []string{
		"run_id",
		"row_number",
		"row_hash",
		"encounter_id",
		"drg",
		"mdc",
		"drg_type",
		"severity",
		"severity_dx",
		"path",
		"procedure",
		"outcome",
		"description",
		"error",
		"notes",
	}
}

// CopyValues returns the row values in the same order as ResultColumns(),
// suitable for pgx CopyFromSource. Empty optional fields become NULL.
func (r *ResultRow) CopyValues() []any {
	return []any{
		r.RunID,
		r.RowNumber,
		r.RowHash,
		r.EncounterID,
		Ptr(r.DRG),
		Ptr(r.MDC),
		Ptr(r.DRGType),
		Ptr(r.Severity),
		Ptr(r.SeverityDx),
		Ptr(r.Path),
		Ptr(r.Procedure),
		r.Outcome,
		Ptr(r.Description),
		Ptr(r.Error),
		Ptr(r.Notes),
	}
}
