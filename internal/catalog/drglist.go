package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	drgListHeader = regexp.MustCompile(`(?i)^\s*DRG\s+MDC\s+(MS|TYPE)\s+DESCRIPTION`)
	// DRG column (single or compact family), optional MDC, M/P type, description.
	drgListRecord = regexp.MustCompile(`^(\d{3}(?:[-/]\d{3}){0,2})\s+(?:(\d{2}|PRE)\s+)?([MP])\s+(\S.*)$`)
	// Last severity phrase in a description, e.g. "with MCC", "without CC/MCC".
	severityPhrase = regexp.MustCompile(`(?i)\s+(with|without)\s+(CC/MCC|CC or MCC|MCC|CC)\b`)
)

// pendingDRG is a DRG list record whose description may still grow through
// continuation lines.
type pendingDRG struct {
	numbers []string
	mdc     MDC
	typ     DRGType
	text    string
	line    int
}

// ParseDRGList parses the MS-DRG list (Appendix A). Compact family notation
// such as "193/194/195" or "193-195" yields three records suffixed with MCC,
// CC and without CC/MCC.
func ParseDRGList(src Source) (map[string]DRG, error) {
	if len(src.Data) == 0 {
		return nil, &ParseError{Family: FamilyDRGList, Source: src.Name, Err: ErrMissingSource}
	}

	drgs := make(map[string]DRG)
	var cur *pendingDRG
	flush := func() error {
		if cur == nil {
			return nil
		}
		for _, d := range cur.records() {
			if _, dup := drgs[d.Number]; dup {
				return parseErr(FamilyDRGList, src.Name, cur.line, "duplicate DRG %s", d.Number)
			}
			drgs[d.Number] = d
		}
		cur = nil
		return nil
	}

	inData := false
	sc := newLineScanner(src.Data)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		n := sc.line
		if strings.TrimSpace(line) == "" || isPageLayout(line) {
			continue
		}
		if drgListHeader.MatchString(line) {
			inData = true
			continue
		}
		if !inData {
			continue
		}

		if m := drgListRecord.FindStringSubmatch(line); m != nil {
			if err := flush(); err != nil {
				return nil, err
			}
			numbers, err := expandDRGList(m[1])
			if err != nil {
				return nil, parseErr(FamilyDRGList, src.Name, n, "%v", err)
			}
			if len(numbers) != 1 && len(numbers) != 3 {
				return nil, parseErr(FamilyDRGList, src.Name, n, "compact DRG notation %q must name three DRGs", m[1])
			}
			mdc, err := parseMDC(m[2])
			if err != nil {
				return nil, parseErr(FamilyDRGList, src.Name, n, "%v", err)
			}
			typ := Medical
			if m[3] == "P" {
				typ = Surgical
			}
			cur = &pendingDRG{numbers: numbers, mdc: mdc, typ: typ, text: strings.TrimSpace(m[4]), line: n}
			continue
		}

		// Continuation lines are indented and carry description text only.
		if cur != nil && (line[0] == ' ' || line[0] == '\t') {
			cur.text += " " + strings.TrimSpace(line)
			continue
		}
		return nil, parseErr(FamilyDRGList, src.Name, n, "unrecognized line %q", line)
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Family: FamilyDRGList, Source: src.Name, Err: err}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if !inData {
		return nil, parseErr(FamilyDRGList, src.Name, 0, "header line not found")
	}
	if len(drgs) == 0 {
		return nil, parseErr(FamilyDRGList, src.Name, 0, "no DRG records")
	}
	return drgs, nil
}

func (p *pendingDRG) records() []DRG {
	if len(p.numbers) == 3 {
		base := p.text
		suffixes := []struct {
			text string
			sev  Severity
		}{
			{"with MCC", SeverityMCC},
			{"with CC", SeverityCC},
			{"without CC/MCC", SeverityNone},
		}
		out := make([]DRG, 3)
		for i, num := range p.numbers {
			out[i] = DRG{
				Number:      num,
				MDC:         p.mdc,
				Type:        p.typ,
				Variant:     suffixes[i].sev,
				Split:       true,
				Base:        base,
				Description: fmt.Sprintf("%s %s", base, suffixes[i].text),
			}
		}
		return out
	}

	d := DRG{Number: p.numbers[0], MDC: p.mdc, Type: p.typ, Base: p.text, Description: p.text}
	d.Variant, d.Split, d.Base = severityOf(p.text)
	return []DRG{d}
}

// severityOf derives the variant a description names, its base text, and
// whether the description carries a severity phrase at all.
func severityOf(desc string) (Severity, bool, string) {
	locs := severityPhrase.FindAllStringSubmatchIndex(desc, -1)
	if len(locs) == 0 {
		return SeverityNone, false, desc
	}
	loc := locs[len(locs)-1]
	base := strings.TrimSpace(desc[:loc[0]])
	if strings.EqualFold(desc[loc[2]:loc[3]], "without") {
		return SeverityNone, true, base
	}
	switch strings.ToUpper(desc[loc[4]:loc[5]]) {
	case "MCC":
		return SeverityMCC, true, base
	default:
		return SeverityCC, true, base
	}
}
