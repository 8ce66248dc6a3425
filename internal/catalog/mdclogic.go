package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	mdcHeader    = regexp.MustCompile(`(?i)^\s*(?:MDC\s+(\d{2})|(PRE-MDC))\b[\s:-]*(.*)$`)
	groupHeader  = regexp.MustCompile(`(?i)^\s*DRGs?\s+(\d{3}(?:\s*[-,/]\s*\d{3})*)\b[\s:-]*(.*)$`)
	andLine      = regexp.MustCompile(`(?i)^\s*and\s+(\S+)`)
	dischargeRow = regexp.MustCompile(`(?i)^\s*DISCHARGE\s+STATUS\s+(.+)$`)
)

// logicSection is the code list a line inside a DRG group belongs to.
type logicSection int

const (
	sectionNone logicSection = iota
	sectionOR
	sectionNonOR
	sectionPrincipal
	sectionSecondary
	sectionAnyDx
)

var sectionHeaders = map[string]logicSection{
	"OPERATING ROOM PROCEDURES":        sectionOR,
	"OR PROCEDURES":                    sectionOR,
	"NON-OPERATING ROOM PROCEDURES":    sectionNonOR,
	"NON-OR PROCEDURES":                sectionNonOR,
	"PRINCIPAL DIAGNOSIS":              sectionPrincipal,
	"SECONDARY DIAGNOSIS":              sectionSecondary,
	"SECONDARY DIAGNOSES":              sectionSecondary,
	"PRINCIPAL OR SECONDARY DIAGNOSIS": sectionAnyDx,
	"PRINCIPAL OR SECONDARY DIAGNOSES": sectionAnyDx,
}

func (s logicSection) codeKind() codeKind {
	if s == sectionOR || s == sectionNonOR {
		return procedureCode
	}
	return diagnosisCode
}

// DecisionTables holds the parsed MDC decision indexes and the Pre-MDC
// triggers in declaration order.
type DecisionTables struct {
	MDCs     map[MDC]*MDCIndex
	Triggers []*Group
}

// logicParser is the per-source state of the MDC logic grammar.
type logicParser struct {
	src    Source
	tables *DecisionTables
	owner  map[MDC]string

	mdc     *MDCIndex
	pre     bool
	group   *Group
	content bool
	section logicSection

	// last procedure line, for "and" combinations
	lastCode  string
	lastNew   bool
	lastCombo int
}

// ParseMDCLogic parses one or more per-MDC logic files. Each file may hold
// several MDC sections. A DRG header opens a decision group; consecutive DRG
// headers with nothing between them form one severity family. Surgical groups
// are ranked in declaration order within their MDC.
func ParseMDCLogic(srcs ...Source) (*DecisionTables, error) {
	if len(srcs) == 0 {
		return nil, &ParseError{Family: FamilyMDCLogic, Err: ErrMissingSource}
	}
	tables := &DecisionTables{MDCs: make(map[MDC]*MDCIndex)}
	owner := make(map[MDC]string)
	for _, src := range srcs {
		if len(src.Data) == 0 {
			return nil, &ParseError{Family: FamilyMDCLogic, Source: src.Name, Err: ErrMissingSource}
		}
		p := &logicParser{src: src, tables: tables, owner: owner, lastCombo: -1}
		if err := p.run(); err != nil {
			return nil, err
		}
	}
	if len(tables.MDCs) == 0 && len(tables.Triggers) == 0 {
		return nil, parseErr(FamilyMDCLogic, srcs[0].Name, 0, "no MDC sections found")
	}
	for _, x := range tables.MDCs {
		x.index()
	}
	return tables, nil
}

func (p *logicParser) run() error {
	sc := newLineScanner(p.src.Data)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if strings.TrimSpace(line) == "" || isPageLayout(line) {
			continue
		}
		if err := p.line(line, sc.line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return &ParseError{Family: FamilyMDCLogic, Source: p.src.Name, Err: err}
	}
	return p.closeGroup()
}

func (p *logicParser) line(line string, n int) error {
	if m := mdcHeader.FindStringSubmatch(line); m != nil {
		if p.repeatsCurrent(m[1], m[2] != "") {
			// page header; the open group continues on the next page
			return nil
		}
		if err := p.closeGroup(); err != nil {
			return err
		}
		return p.openMDC(m[1], m[2] != "", strings.TrimSpace(m[3]), n)
	}
	if m := groupHeader.FindStringSubmatch(line); m != nil {
		return p.openGroup(m[1], strings.TrimSpace(m[2]), n)
	}

	key := strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(line), ":"))
	if sec, ok := sectionHeaders[key]; ok {
		if p.group == nil {
			return p.errorf(n, "section %q outside a DRG group", key)
		}
		p.section, p.content = sec, true
		p.lastCode, p.lastCombo = "", -1
		return nil
	}
	if key == "SURGICAL" || key == "MEDICAL" {
		return nil
	}
	if m := dischargeRow.FindStringSubmatch(line); m != nil {
		if p.group == nil {
			return p.errorf(n, "discharge condition outside a DRG group")
		}
		statuses, err := parseDischargeCondition(m[1])
		if err != nil {
			return p.errorf(n, "%v", err)
		}
		p.group.Discharge = append(p.group.Discharge, statuses...)
		p.content = true
		return nil
	}
	if m := andLine.FindStringSubmatch(line); m != nil && looksLikeCode(m[1], procedureCode) {
		return p.combine(m[1], n)
	}

	tok := strings.Fields(line)[0]
	if (p.mdc != nil || p.pre) && (looksLikeCode(tok, diagnosisCode) || looksLikeCode(tok, procedureCode)) {
		return p.code(tok, n)
	}
	// preamble, sub-headings and wrapped descriptions
	return nil
}

// repeatsCurrent reports whether an MDC header names the section already open
// in this source.
func (p *logicParser) repeatsCurrent(num string, pre bool) bool {
	if pre {
		return p.pre
	}
	mdc, err := parseMDC(num)
	return err == nil && p.mdc != nil && p.mdc.MDC == mdc
}

func (p *logicParser) openMDC(num string, pre bool, title string, n int) error {
	mdc := PreMDC
	if !pre {
		var err error
		if mdc, err = parseMDC(num); err != nil {
			return p.errorf(n, "%v", err)
		}
	}
	if prev, dup := p.owner[mdc]; dup {
		return p.errorf(n, "MDC %s already defined in %s", mdc, prev)
	}
	p.owner[mdc] = p.src.Name
	p.group, p.section = nil, sectionNone
	if mdc == PreMDC {
		p.mdc, p.pre = nil, true
		return nil
	}
	p.pre = false
	p.mdc = &MDCIndex{MDC: mdc, Title: title}
	p.tables.MDCs[mdc] = p.mdc
	return nil
}

func (p *logicParser) openGroup(list, title string, n int) error {
	if p.mdc == nil && !p.pre {
		return p.errorf(n, "DRG group outside an MDC section")
	}
	drgs, err := expandDRGList(list)
	if err != nil {
		return p.errorf(n, "%v", err)
	}
	if p.group != nil && !p.content {
		p.group.Target.DRGs = append(p.group.Target.DRGs, drgs...)
		return nil
	}
	if err := p.closeGroup(); err != nil {
		return err
	}
	mdc := PreMDC
	if p.mdc != nil {
		mdc = p.mdc.MDC
	}
	if _, sev, base := severityOf(title); sev {
		title = base
	}
	p.group = &Group{
		MDC:        mdc,
		Title:      title,
		Target:     Target{DRGs: drgs},
		Procedures: make(map[string]struct{}),
		NonOR:      make(map[string]struct{}),
		Principal:  make(map[string]struct{}),
		Secondary:  make(map[string]struct{}),
		AnyDx:      make(map[string]struct{}),
		Source:     p.src.Name,
		Line:       n,
	}
	p.content, p.section = false, sectionNone
	p.lastCode, p.lastCombo = "", -1
	return nil
}

// closeGroup validates the open group and files it under its MDC.
func (p *logicParser) closeGroup() error {
	g := p.group
	p.group = nil
	if g == nil {
		return nil
	}
	empty := len(g.Procedures) == 0 && len(g.Combinations) == 0 && len(g.NonOR) == 0 &&
		len(g.Principal) == 0 && len(g.Secondary) == 0 && len(g.AnyDx) == 0
	if empty && len(g.Discharge) == 0 {
		return p.errorf(g.Line, "DRG group %s lists no codes", g.Target)
	}
	if len(g.Procedures) > 0 || len(g.Combinations) > 0 {
		g.Kind = SurgicalGroup
	}
	if g.MDC == PreMDC {
		g.Rank = len(p.tables.Triggers) + 1
		p.tables.Triggers = append(p.tables.Triggers, g)
		return nil
	}
	if g.Kind == SurgicalGroup {
		rank := 1
		for _, prev := range p.mdc.Groups {
			if prev.Kind == SurgicalGroup {
				rank++
			}
		}
		g.Rank = rank
	}
	p.mdc.Groups = append(p.mdc.Groups, g)
	return nil
}

func (p *logicParser) code(tok string, n int) error {
	if p.group == nil {
		return p.errorf(n, "code %s outside a DRG group", tok)
	}
	if p.section == sectionNone {
		return p.errorf(n, "code %s outside a code section", tok)
	}
	kind := p.section.codeKind()
	if !looksLikeCode(tok, kind) {
		return p.errorf(n, "code %s does not belong in this section", tok)
	}
	codes, err := expandCodeToken(tok, kind)
	if err != nil {
		return p.errorf(n, "%v", err)
	}
	var set map[string]struct{}
	switch p.section {
	case sectionOR:
		set = p.group.Procedures
	case sectionNonOR:
		set = p.group.NonOR
	case sectionPrincipal:
		set = p.group.Principal
	case sectionSecondary:
		set = p.group.Secondary
	case sectionAnyDx:
		set = p.group.AnyDx
	}
	p.lastCode, p.lastNew, p.lastCombo = "", false, -1
	if len(codes) == 1 && p.section == sectionOR {
		_, seen := set[codes[0]]
		p.lastCode, p.lastNew = codes[0], !seen
	}
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return nil
}

// combine turns the previous OR procedure line into a combination that only
// qualifies when every member is present.
func (p *logicParser) combine(tok string, n int) error {
	if p.group == nil || p.section != sectionOR {
		return p.errorf(n, "procedure combination outside OPERATING ROOM PROCEDURES")
	}
	codes, err := expandCodeToken(tok, procedureCode)
	if err != nil {
		return p.errorf(n, "%v", err)
	}
	if len(codes) != 1 {
		return p.errorf(n, "procedure combination member %s is a range", tok)
	}
	g := p.group
	switch {
	case p.lastCombo >= 0:
		g.Combinations[p.lastCombo] = append(g.Combinations[p.lastCombo], codes[0])
	case p.lastCode != "":
		if p.lastNew {
			delete(g.Procedures, p.lastCode)
		}
		g.Combinations = append(g.Combinations, []string{p.lastCode, codes[0]})
		p.lastCombo = len(g.Combinations) - 1
		p.lastCode = ""
	default:
		return p.errorf(n, "combination %s has no preceding procedure", tok)
	}
	return nil
}

// parseDischargeCondition reads "ALIVE", "EXPIRED OR TRANSFERRED" and similar.
// Alive covers every status except expired.
func parseDischargeCondition(s string) ([]Discharge, error) {
	var out []Discharge
	add := func(d Discharge) {
		for _, have := range out {
			if have == d {
				return
			}
		}
		out = append(out, d)
	}
	for _, word := range strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool { return r == ',' || r == ' ' || r == '/' }) {
		switch word {
		case "OR":
		case "ALIVE":
			add(Alive)
			add(Transferred)
		case "EXPIRED", "DIED":
			add(Expired)
		case "TRANSFERRED":
			add(Transferred)
		default:
			return nil, fmt.Errorf("unknown discharge status %q", word)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty discharge condition")
	}
	return out, nil
}

func (p *logicParser) errorf(n int, format string, args ...any) error {
	return parseErr(FamilyMDCLogic, p.src.Name, n, format, args...)
}
