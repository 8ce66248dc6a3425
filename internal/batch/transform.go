package batch

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/gyeh/msdrg/internal/catalog"
	"github.com/gyeh/msdrg/internal/grouper"
	"github.com/gyeh/msdrg/internal/model"
	"github.com/gyeh/msdrg/internal/normalize"
)

// toEncounter maps an input row onto the grouping contract. Rows the reader
// flagged as invalid are rejected here.
func toEncounter(row *model.EncounterRow) (grouper.Encounter, error) {
	if row.Invalid != "" {
		return grouper.Encounter{}, errors.New(row.Invalid)
	}
	return grouper.Encounter{
		ID:          row.EncounterID,
		PrincipalDx: row.PrincipalDx,
		SecondaryDx: normalize.SplitCodes(model.Value(row.SecondaryDx)),
		Procedures:  normalize.SplitCodes(model.Value(row.Procedures)),
		Age:         int(row.Age),
		Sex:         normalize.Sex(model.Value(row.Sex)),
		Discharge:   catalog.Discharge(normalize.Discharge(model.Value(row.DischargeStatus))),
	}, nil
}

// rowHash identifies an input row by its position and content.
func rowHash(row *model.EncounterRow) []byte {
	return normalize.RowHashFromValues(row.RowNumber,
		row.EncounterID,
		row.PrincipalDx,
		model.Value(row.SecondaryDx),
		model.Value(row.Procedures),
		strconv.Itoa(int(row.Age)),
		model.Value(row.Sex),
		model.Value(row.DischargeStatus),
	)
}

// toResultRow builds the output row for one grouped or failed encounter.
// Trace notes are kept only when verbose is set.
func toResultRow(runID uuid.UUID, row *model.EncounterRow, g grouper.Grouped, verbose bool) *model.ResultRow {
	out := &model.ResultRow{
		RunID:       runID,
		RowHash:     rowHash(row),
		RowNumber:   row.RowNumber,
		EncounterID: row.EncounterID,
	}
	if g.Err != nil {
		out.Outcome = model.OutcomeError
		out.Error = g.Err.Error()
		return out
	}
	res := g.Result
	out.DRG = res.DRG
	out.MDC = string(res.MDC)
	out.Outcome = string(res.Outcome)
	out.Path = string(res.Path)
	out.Procedure = res.Procedure
	out.Description = res.Description
	if res.DRG != "" {
		out.DRGType = res.Type.String()
		out.Severity = res.Severity.String()
		out.SeverityDx = res.SeverityDx
	}
	if verbose {
		out.Notes = strings.Join(res.Trace, " | ")
	}
	return out
}
