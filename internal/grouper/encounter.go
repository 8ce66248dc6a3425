package grouper

import (
	"strconv"
	"strings"

	"github.com/gyeh/msdrg/internal/catalog"
	"github.com/gyeh/msdrg/internal/normalize"
)

// Encounter is one inpatient stay to classify. The engine never modifies the
// caller's value.
type Encounter struct {
	ID          string
	PrincipalDx string
	// SecondaryDx is ordered; the first code reaching the highest severity is
	// reported as the contributing diagnosis.
	SecondaryDx []string
	Procedures  []string
	Age         int
	Sex         string
	Discharge   catalog.Discharge
}

// Validate checks the encounter against the grouping interface contract.
func (e Encounter) Validate() error {
	if strings.TrimSpace(e.PrincipalDx) == "" {
		return &InvalidEncounterError{Field: "principal_dx", Value: e.PrincipalDx, Reason: "must not be empty"}
	}
	if e.Age < 0 {
		return &InvalidEncounterError{Field: "age", Value: strconv.Itoa(e.Age), Reason: "must not be negative"}
	}
	switch e.Sex {
	case "M", "F", "U":
	default:
		return &InvalidEncounterError{Field: "sex", Value: e.Sex, Reason: "must be M, F or U"}
	}
	if _, ok := catalog.ParseDischarge(string(e.Discharge)); !ok {
		return &InvalidEncounterError{Field: "discharge", Value: string(e.Discharge), Reason: "must be alive, expired or transferred"}
	}
	return nil
}

// normalized returns a copy with codes cleaned up, empty codes dropped and
// procedures de-duplicated in first-seen order.
func (e Encounter) normalized() Encounter {
	out := e
	out.PrincipalDx = normalize.Code(e.PrincipalDx)
	out.SecondaryDx = normalize.Codes(e.SecondaryDx)
	out.Procedures = normalize.Dedupe(normalize.Codes(e.Procedures))
	out.Discharge, _ = catalog.ParseDischarge(string(e.Discharge))
	return out
}

// hasSecondary reports whether any secondary diagnosis is in set.
func (e Encounter) hasSecondary(set map[string]struct{}) bool {
	for _, code := range e.SecondaryDx {
		if _, ok := set[code]; ok {
			return true
		}
	}
	return false
}
