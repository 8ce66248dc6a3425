package catalog

import (
	"regexp"
	"strings"
)

var (
	dxIndexHeader = regexp.MustCompile(`(?i)I10\s+Dx\s+MDC`)
	dxDRGList     = `(\d{3}(?:\s*[-,/]\s*\d{3})*)`
	dxRecord      = regexp.MustCompile(`^(\S+)\s+(\d{2}|PRE)\s+` + dxDRGList + `(?:\s+(\S.*))?$`)
	dxContinued   = regexp.MustCompile(`^\s+(\d{2}|PRE)\s+` + dxDRGList + `(?:\s+(\S.*))?$`)
)

// dxRecordState is the diagnosis index record being assembled; a record may
// name a code range and be followed by continuation lines.
type dxRecordState struct {
	codes       []string
	description string
	assignments []Assignment
	direct      string
}

// ParseDiagnosisIndex parses the diagnosis/MDC/DRG index (Appendix B). Code
// ranges are expanded to exact codes. A code listed under several MDCs keeps
// every MDC in order of appearance, whether the extra MDCs come from
// continuation lines or from a later repeat of the code.
func ParseDiagnosisIndex(src Source) (map[string]*Diagnosis, error) {
	if len(src.Data) == 0 {
		return nil, &ParseError{Family: FamilyDiagnosisIndex, Source: src.Name, Err: ErrMissingSource}
	}

	index := make(map[string]*Diagnosis)
	var cur *dxRecordState
	flush := func() {
		if cur == nil {
			return
		}
		for _, code := range cur.codes {
			d, ok := index[code]
			if !ok {
				d = &Diagnosis{Code: code, Description: cur.description}
				index[code] = d
			}
			d.merge(cur.assignments, cur.direct)
		}
		cur = nil
	}

	inData := false
	sc := newLineScanner(src.Data)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		n := sc.line
		if strings.TrimSpace(line) == "" || isPageLayout(line) {
			continue
		}
		if dxIndexHeader.MatchString(line) {
			inData = true
			continue
		}
		if !inData {
			continue
		}

		if m := dxRecord.FindStringSubmatch(line); m != nil && line[0] != ' ' && line[0] != '\t' {
			flush()
			codes, err := expandCodeToken(m[1], diagnosisCode)
			if err != nil {
				return nil, parseErr(FamilyDiagnosisIndex, src.Name, n, "%v", err)
			}
			cur = &dxRecordState{codes: codes, description: strings.TrimSpace(m[4])}
			if err := cur.add(m[2], m[3]); err != nil {
				return nil, parseErr(FamilyDiagnosisIndex, src.Name, n, "%v", err)
			}
			continue
		}
		if cur == nil {
			return nil, parseErr(FamilyDiagnosisIndex, src.Name, n, "unrecognized line %q", line)
		}
		if m := dxContinued.FindStringSubmatch(line); m != nil {
			if err := cur.add(m[1], m[2]); err != nil {
				return nil, parseErr(FamilyDiagnosisIndex, src.Name, n, "%v", err)
			}
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			cur.description = strings.TrimSpace(cur.description + " " + strings.TrimSpace(line))
			continue
		}
		return nil, parseErr(FamilyDiagnosisIndex, src.Name, n, "unrecognized line %q", line)
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Family: FamilyDiagnosisIndex, Source: src.Name, Err: err}
	}
	flush()
	if !inData {
		return nil, parseErr(FamilyDiagnosisIndex, src.Name, 0, "header line not found")
	}
	if len(index) == 0 {
		return nil, parseErr(FamilyDiagnosisIndex, src.Name, 0, "no diagnosis records")
	}
	return index, nil
}

func (r *dxRecordState) add(mdcCol, drgCol string) error {
	mdc, err := parseMDC(mdcCol)
	if err != nil {
		return err
	}
	drgs, err := expandDRGList(drgCol)
	if err != nil {
		return err
	}
	if mdc == PreMDC {
		if r.direct == "" {
			r.direct = drgs[0]
		}
		return nil
	}
	r.assignments = append(r.assignments, Assignment{MDC: mdc, DRGs: drgs})
	return nil
}

// merge appends assignments for MDCs not yet recorded and extends the DRG
// lists of MDCs already present, keeping first-seen order.
func (d *Diagnosis) merge(assignments []Assignment, direct string) {
	if d.DirectDRG == "" {
		d.DirectDRG = direct
	}
	for _, a := range assignments {
		i := -1
		for j := range d.Assignments {
			if d.Assignments[j].MDC == a.MDC {
				i = j
				break
			}
		}
		if i < 0 {
			d.Assignments = append(d.Assignments, Assignment{MDC: a.MDC, DRGs: append([]string(nil), a.DRGs...)})
			continue
		}
		for _, drg := range a.DRGs {
			if !containsString(d.Assignments[i].DRGs, drg) {
				d.Assignments[i].DRGs = append(d.Assignments[i].DRGs, drg)
			}
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
