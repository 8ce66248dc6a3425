package grouper

import (
	"fmt"

	"github.com/gyeh/msdrg/internal/catalog"
)

// severity is the outcome of a CC/MCC scan.
type severity struct {
	level catalog.Severity
	dx    string
	notes []string
}

// scan computes encounter severity from the secondary diagnoses. A secondary
// equal to the principal diagnosis never counts. Entries whose PDX exclusion
// list names the principal diagnosis, alive-only entries for an expired
// patient, and entries excluded for any DRG in drgs are skipped. The first
// diagnosis to reach the final level is reported.
func (r *run) scan(drgs []string) severity {
	var s severity
	pdx := r.enc.PrincipalDx
	for _, code := range r.enc.SecondaryDx {
		if code == pdx {
			continue
		}
		e, ok := r.cat.CC(code)
		if !ok {
			continue
		}
		if e.ExcludedFor(pdx) {
			s.notes = append(s.notes, fmt.Sprintf("%s %s excluded: principal diagnosis %s is in PDX collection %s", code, e.Level, pdx, e.Collection))
			continue
		}
		if e.AliveOnly && r.enc.Discharge == catalog.Expired {
			s.notes = append(s.notes, fmt.Sprintf("%s %s not counted: applies only when discharged alive", code, e.Level))
			continue
		}
		if drg := r.excludingDRG(drgs, code); drg != "" {
			s.notes = append(s.notes, fmt.Sprintf("%s %s excluded for DRG %s", code, e.Level, drg))
			continue
		}
		if e.Level > s.level {
			s.level, s.dx = e.Level, code
		}
	}
	return s
}

func (r *run) excludingDRG(drgs []string, code string) string {
	for _, drg := range drgs {
		if r.cat.DRGExclusions(drg, code) {
			return drg
		}
	}
	return ""
}
