package grouper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gyeh/msdrg/internal/catalog"
)

// Engine classifies encounters against a catalog. It holds no mutable state
// and may be shared by any number of goroutines.
type Engine struct {
	cat *catalog.Catalog
}

// New returns an engine bound to cat.
func New(cat *catalog.Catalog) *Engine {
	return &Engine{cat: cat}
}

// Catalog returns the catalog the engine groups against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.cat
}

// stage is one step of the grouping pipeline. Each stage returns the next.
type stage int

const (
	stageValidate stage = iota
	stagePreMDC
	stageMDC
	stageSeverity
	stagePath
	stageVariant
	stageDischarge
	stageDone
)

// candidate is a target a decision path proposes, in priority order.
type candidate struct {
	group     *catalog.Group // nil for diagnosis index fallback targets
	target    catalog.Target
	procedure string
	drg       string
	severity  severity
}

// run is the state of one grouping call.
type run struct {
	cat *catalog.Catalog
	enc Encounter
	// raw principal diagnosis, for errors when normalization leaves nothing
	rawPDX string

	dx         *catalog.Diagnosis
	mdc        catalog.MDC
	index      *catalog.MDCIndex
	sev        severity
	path       Path
	forceMed   bool
	candidates []candidate

	res Result
	err error
}

// Group classifies one encounter. It returns an *InvalidEncounterError for
// malformed input and an *UnknownDiagnosisError when the principal diagnosis
// is not indexed; every other outcome, ungroupable included, is a Result.
func (e *Engine) Group(enc Encounter) (Result, error) {
	if err := enc.Validate(); err != nil {
		return Result{}, err
	}
	r := &run{cat: e.cat, enc: enc.normalized(), rawPDX: strings.TrimSpace(enc.PrincipalDx)}
	r.res.EncounterID = enc.ID

	for st := stageValidate; st != stageDone; {
		switch st {
		case stageValidate:
			st = r.validate()
		case stagePreMDC:
			st = r.preMDC()
		case stageMDC:
			st = r.selectMDC()
		case stageSeverity:
			st = r.scoreSeverity()
		case stagePath:
			st = r.selectPath()
		case stageVariant:
			st = r.resolveVariants()
		case stageDischarge:
			st = r.applyDischarge()
		default:
			panic(fmt.Sprintf("grouper: unknown stage %d", st))
		}
	}
	if r.err != nil {
		return Result{}, r.err
	}
	return r.res, nil
}

func (r *run) note(format string, args ...any) {
	r.res.Trace = append(r.res.Trace, fmt.Sprintf(format, args...))
}

func (r *run) validate() stage {
	dx, ok := r.cat.Diagnosis(r.enc.PrincipalDx)
	if !ok {
		code := r.enc.PrincipalDx
		if code == "" {
			code = r.rawPDX
		}
		r.err = &UnknownDiagnosisError{Code: code}
		return stageDone
	}
	r.dx = dx
	r.note("principal diagnosis %s: %s", dx.Code, dx.Description)
	return stagePreMDC
}

func (r *run) preMDC() stage {
	for _, trig := range r.cat.PreMDCTriggers() {
		proc, ok := r.qualifies(trig, true)
		if !ok || !trig.AcceptsDischarge(r.enc.Discharge) {
			continue
		}
		why := "diagnosis requirements met"
		if proc != "" {
			why = "procedure " + proc
		}
		r.res.Procedure = proc
		if len(trig.Target.DRGs) == 1 {
			r.note("Pre-MDC trigger %s (%s): %s; MDC and CC/MCC logic bypassed", trig.Target, trig.Title, why)
			r.finish(trig.Target.DRGs[0], catalog.PreMDC, PathPreMDC, PreMDCAssigned)
			return stageDone
		}
		r.note("Pre-MDC trigger %s (%s): %s", trig.Target, trig.Title, why)
		c := r.resolve(candidate{group: trig, target: trig.Target, procedure: proc})
		r.res.Severity, r.res.SeverityDx = c.severity.level, c.severity.dx
		r.note("Pre-MDC severity %s selects DRG %s", c.severity.level, c.drg)
		r.finish(c.drg, catalog.PreMDC, PathPreMDC, PreMDCAssigned)
		return stageDone
	}
	if r.dx.DirectDRG != "" {
		r.note("Pre-MDC: principal diagnosis %s assigns DRG %s directly", r.dx.Code, r.dx.DirectDRG)
		r.finish(r.dx.DirectDRG, catalog.PreMDC, PathPreMDC, PreMDCAssigned)
		return stageDone
	}
	r.note("no Pre-MDC trigger matched")
	return stageMDC
}

func (r *run) selectMDC() stage {
	mdcs := r.dx.MDCs()
	if len(mdcs) == 0 {
		r.note("principal diagnosis %s has no MDC assignment", r.dx.Code)
		r.ungroupable()
		return stageDone
	}
	r.mdc = mdcs[0]
	if len(mdcs) > 1 {
		r.note("MDC %s selected as first of %d candidates %v; age and site based selection not performed", r.mdc, len(mdcs), mdcs)
	} else {
		r.note("MDC %s selected from principal diagnosis", r.mdc)
	}
	r.index, _ = r.cat.MDC(r.mdc)
	return stageSeverity
}

func (r *run) scoreSeverity() stage {
	r.sev = r.scan(nil)
	for _, n := range r.sev.notes {
		r.note("%s", n)
	}
	if r.sev.dx != "" {
		r.note("severity %s from secondary diagnosis %s", r.sev.level, r.sev.dx)
	} else {
		r.note("severity None: no qualifying CC/MCC secondary diagnosis")
	}
	r.res.Severity, r.res.SeverityDx = r.sev.level, r.sev.dx
	return stagePath
}

func (r *run) selectPath() stage {
	r.candidates = nil
	if !r.forceMed && r.index != nil {
		matched := false
		seen := make(map[*catalog.Group]bool)
		for _, proc := range r.enc.Procedures {
			for _, g := range r.index.SurgicalGroups(proc) {
				matched = true
				if seen[g] {
					continue
				}
				if p, ok := r.qualifies(g, false); ok {
					seen[g] = true
					r.candidates = append(r.candidates, candidate{group: g, target: g.Target, procedure: p})
				}
			}
		}
		if len(r.candidates) > 0 {
			sort.SliceStable(r.candidates, func(i, j int) bool {
				return r.candidates[i].group.Rank < r.candidates[j].group.Rank
			})
			r.path = PathSurgical
			top := r.candidates[0]
			r.note("surgical path: procedure %s ranks %d in MDC %s hierarchy, target %s", top.procedure, top.group.Rank, r.mdc, top.target)
			return stageVariant
		}
		if matched {
			r.note("surgical path dead end: OR procedures in MDC %s do not satisfy any group; falling back to medical", r.mdc)
		}
	}

	r.path = PathMedical
	if r.index != nil {
		for _, g := range r.index.MedicalGroups(r.enc.PrincipalDx) {
			if _, ok := r.qualifies(g, false); ok {
				r.candidates = append(r.candidates, candidate{group: g, target: g.Target})
			}
		}
	}
	if len(r.candidates) > 0 {
		r.note("medical path: principal diagnosis %s leads to %s", r.enc.PrincipalDx, r.candidates[0].target)
		return stageVariant
	}
	if t, ok := r.indexFamily(); ok {
		r.candidates = append(r.candidates, candidate{target: t})
		r.note("medical path: MDC %s logic does not list %s; diagnosis index family %s used", r.mdc, r.enc.PrincipalDx, t)
		return stageVariant
	}
	r.note("medical path dead end: no target for %s in MDC %s", r.enc.PrincipalDx, r.mdc)
	r.ungroupable()
	return stageDone
}

func (r *run) resolveVariants() stage {
	for i := range r.candidates {
		r.candidates[i] = r.resolve(r.candidates[i])
	}
	return stageDischarge
}

func (r *run) applyDischarge() stage {
	for i, c := range r.candidates {
		if c.group != nil && !c.group.AcceptsDischarge(r.enc.Discharge) {
			r.note("target %s requires discharge status %v; patient %s", c.target, c.group.Discharge, r.enc.Discharge)
			continue
		}
		if i > 0 || (c.group != nil && len(c.group.Discharge) > 0) {
			r.note("discharge status %s accepted by %s", r.enc.Discharge, c.target)
		}
		if len(c.target.DRGs) > 1 {
			r.note("severity %s selects DRG %s from %s", c.severity.level, c.drg, c.target)
		}
		if c.severity.level != r.sev.level {
			r.note("severity %s after DRG-specific exclusions for %s", c.severity.level, c.target)
		}
		r.res.Procedure = c.procedure
		r.res.Severity, r.res.SeverityDx = c.severity.level, c.severity.dx
		r.finish(c.drg, r.mdc, r.path, Classified)
		return stageDone
	}
	if r.path == PathSurgical {
		r.note("no surgical target accepts discharge status %s; falling back to medical", r.enc.Discharge)
		r.forceMed = true
		return stagePath
	}
	r.note("no medical target accepts discharge status %s", r.enc.Discharge)
	r.ungroupable()
	return stageDone
}

// qualifies checks a group's code requirements against the encounter and
// returns the procedure that satisfied it, if any. Inside an MDC non-OR
// procedures only constrain medical groups; Pre-MDC triggers accept them as
// qualifying procedures.
func (r *run) qualifies(g *catalog.Group, trigger bool) (string, bool) {
	if len(g.Principal) > 0 {
		if _, ok := g.Principal[r.enc.PrincipalDx]; !ok {
			return "", false
		}
	}
	if len(g.Secondary) > 0 && !r.enc.hasSecondary(g.Secondary) {
		return "", false
	}
	if len(g.AnyDx) > 0 {
		if _, ok := g.AnyDx[r.enc.PrincipalDx]; !ok && !r.enc.hasSecondary(g.AnyDx) {
			return "", false
		}
	}

	needsProc := len(g.Procedures) > 0 || len(g.Combinations) > 0 || (len(g.NonOR) > 0 && (trigger || g.Kind == catalog.MedicalGroup))
	if !needsProc {
		has := len(g.Principal) > 0 || len(g.Secondary) > 0 || len(g.AnyDx) > 0
		return "", has
	}
	for _, proc := range r.enc.Procedures {
		if _, ok := g.Procedures[proc]; ok {
			return proc, true
		}
		if trigger || g.Kind == catalog.MedicalGroup {
			if _, ok := g.NonOR[proc]; ok {
				return proc, true
			}
		}
	}
	for _, combo := range g.Combinations {
		if r.hasAll(combo) {
			return strings.Join(combo, "+"), true
		}
	}
	return "", false
}

func (r *run) hasAll(codes []string) bool {
	for _, want := range codes {
		found := false
		for _, p := range r.enc.Procedures {
			if p == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// indexFamily builds a medical target from the diagnosis index DRGs listed
// for the selected MDC: the first medical DRG and the members of its severity
// family.
func (r *run) indexFamily() (catalog.Target, bool) {
	var first catalog.DRG
	found := false
	for _, num := range r.dx.DRGsFor(r.mdc) {
		d, ok := r.cat.DRG(num)
		if ok && d.Type == catalog.Medical {
			first, found = d, true
			break
		}
	}
	if !found {
		return catalog.Target{}, false
	}
	if !first.Split {
		return catalog.Target{DRGs: []string{first.Number}}, true
	}
	var t catalog.Target
	for _, num := range r.dx.DRGsFor(r.mdc) {
		d, ok := r.cat.DRG(num)
		if ok && d.Split && d.Type == catalog.Medical && d.Base == first.Base && d.MDC == first.MDC {
			t.DRGs = append(t.DRGs, num)
		}
	}
	return t, true
}

// resolve picks the DRG of a candidate target. Families use the encounter
// severity recomputed without diagnoses excluded for any family member; the
// chosen member is the one with the greatest variant not above it.
func (r *run) resolve(c candidate) candidate {
	c.severity = r.sev
	if c.group != nil && c.group.MDC == catalog.PreMDC {
		c.severity = r.scan(c.target.DRGs)
	} else if r.hasDRGExclusions(c.target) {
		c.severity = r.scan(c.target.DRGs)
	}
	if len(c.target.DRGs) == 1 {
		c.drg = c.target.DRGs[0]
		return c
	}

	best, lowest := "", ""
	bestVar, lowestVar := catalog.SeverityNone, catalog.SeverityMCC+1
	for _, num := range c.target.DRGs {
		d, _ := r.cat.DRG(num)
		if d.Variant <= c.severity.level && (best == "" || d.Variant > bestVar) {
			best, bestVar = num, d.Variant
		}
		if d.Variant < lowestVar {
			lowest, lowestVar = num, d.Variant
		}
	}
	if best == "" {
		best = lowest
	}
	c.drg = best
	return c
}

func (r *run) hasDRGExclusions(t catalog.Target) bool {
	for _, num := range t.DRGs {
		for _, code := range r.enc.SecondaryDx {
			if r.cat.DRGExclusions(num, code) {
				return true
			}
		}
	}
	return false
}

func (r *run) finish(num string, mdc catalog.MDC, path Path, out Outcome) {
	d, _ := r.cat.DRG(num)
	r.res.DRG = num
	r.res.MDC = mdc
	r.res.Type = d.Type
	if d.Split {
		r.res.Variant = d.Variant
	}
	r.res.Path = path
	r.res.Outcome = out
	r.res.Description = d.Description
	r.note("assigned DRG %s: %s", num, d.Description)
}

func (r *run) ungroupable() {
	r.res.DRG = UngroupableDRG
	r.res.MDC = r.mdc
	r.res.Path = r.path
	r.res.Outcome = Ungroupable
	r.res.Procedure = ""
	r.res.Description = "Ungroupable"
	if d, ok := r.cat.DRG(UngroupableDRG); ok {
		r.res.Description = d.Description
	}
	r.note("ungroupable")
}
