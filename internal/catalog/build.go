package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gyeh/msdrg/internal/normalize"
)

// Sources carries the raw text of the four definition families.
type Sources struct {
	DRGs      Source
	Diagnoses Source
	CCs       Source
	MDCLogic  []Source
}

// Files names the definition files inside a data directory. MDCLogic entries
// may be glob patterns; matches are read in lexical order.
type Files struct {
	DRGs      string   `yaml:"drgs"`
	Diagnoses string   `yaml:"diagnoses"`
	CCs       string   `yaml:"ccs"`
	MDCLogic  []string `yaml:"mdc_logic"`
}

// DefaultFiles is the layout of a published definitions release.
var DefaultFiles = Files{
	DRGs:      "appendix_A.txt",
	Diagnoses: "appendix_B.txt",
	CCs:       "appendix_C.txt",
	MDCLogic:  []string{"mdcs_*.txt"},
}

// Catalog is the immutable, queryable result of a successful build. All
// accessors are safe for concurrent use.
type Catalog struct {
	drgs        map[string]DRG
	diagnoses   map[string]*Diagnosis
	ccs         *CCTable
	mdcs        map[MDC]*MDCIndex
	triggers    []*Group
	procedures  map[string]struct{}
	fingerprint string
}

// Stats summarizes catalog contents.
type Stats struct {
	DRGs           int
	Diagnoses      int
	CCs            int
	MCCs           int
	AliveOnly      int
	PDXCollections int
	DRGExclusions  int
	MDCs           int
	Groups         int
	SurgicalGroups int
	Triggers       int
	Procedures     int
}

// Build parses the four families concurrently and cross-checks them. Either
// every table is built and consistent or an error is returned and nothing is.
func Build(ctx context.Context, src Sources) (*Catalog, error) {
	var (
		drgs      map[string]DRG
		diagnoses map[string]*Diagnosis
		ccs       *CCTable
		tables    *DecisionTables
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var g errgroup.Group
	g.Go(func() (err error) {
		drgs, err = ParseDRGList(src.DRGs)
		return err
	})
	g.Go(func() (err error) {
		diagnoses, err = ParseDiagnosisIndex(src.Diagnoses)
		return err
	})
	g.Go(func() (err error) {
		ccs, err = ParseCCIndex(src.CCs)
		return err
	})
	g.Go(func() (err error) {
		tables, err = ParseMDCLogic(src.MDCLogic...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &Catalog{
		drgs:       drgs,
		diagnoses:  diagnoses,
		ccs:        ccs,
		mdcs:       tables.MDCs,
		triggers:   tables.Triggers,
		procedures: make(map[string]struct{}),
	}
	if err := c.crossCheck(src); err != nil {
		return nil, err
	}
	for _, grp := range c.allGroups() {
		for code := range grp.Procedures {
			c.procedures[code] = struct{}{}
		}
		for code := range grp.NonOR {
			c.procedures[code] = struct{}{}
		}
		for _, combo := range grp.Combinations {
			for _, code := range combo {
				c.procedures[code] = struct{}{}
			}
		}
	}
	c.fingerprint = fingerprint(src)
	return c, nil
}

// crossCheck verifies references between families: every decision target and
// every direct or indexed DRG must exist, and multi-DRG targets must be
// severity families.
func (c *Catalog) crossCheck(src Sources) error {
	for _, grp := range c.allGroups() {
		name := grp.Source
		for _, num := range grp.Target.DRGs {
			d, ok := c.drgs[num]
			if !ok {
				return parseErr(FamilyMDCLogic, name, grp.Line, "DRG %s is not in the DRG list", num)
			}
			if len(grp.Target.DRGs) > 1 && !d.Split {
				return parseErr(FamilyMDCLogic, name, grp.Line, "DRG %s in family %s has no severity variant", num, grp.Target)
			}
		}
	}
	for _, code := range sortedDiagnosisKeys(c.diagnoses) {
		d := c.diagnoses[code]
		if d.DirectDRG != "" {
			if _, ok := c.drgs[d.DirectDRG]; !ok {
				return parseErr(FamilyDiagnosisIndex, src.Diagnoses.Name, 0, "%s: direct DRG %s is not in the DRG list", code, d.DirectDRG)
			}
		}
		for _, a := range d.Assignments {
			for _, num := range a.DRGs {
				if _, ok := c.drgs[num]; !ok {
					return parseErr(FamilyDiagnosisIndex, src.Diagnoses.Name, 0, "%s: DRG %s is not in the DRG list", code, num)
				}
			}
		}
	}
	for _, num := range sortedKeys(setOf(c.ccs.DRGExclusions)) {
		if _, ok := c.drgs[num]; !ok {
			return parseErr(FamilyCCIndex, src.CCs.Name, 0, "Part 3 DRG %s is not in the DRG list", num)
		}
	}
	return nil
}

// allGroups returns triggers first, then MDC groups in MDC order.
func (c *Catalog) allGroups() []*Group {
	out := append([]*Group(nil), c.triggers...)
	for _, m := range c.MDCs() {
		out = append(out, c.mdcs[m].Groups...)
	}
	return out
}

func fingerprint(src Sources) string {
	all := append([]Source{src.DRGs, src.Diagnoses, src.CCs}, src.MDCLogic...)
	names := make([]string, len(all))
	blobs := make([][]byte, len(all))
	for i, s := range all {
		names[i], blobs[i] = s.Name, s.Data
	}
	return normalize.ContentHash(names, blobs)
}

// Load reads the definition files from dir and builds the catalog. A missing
// file fails the family it belongs to.
func Load(ctx context.Context, dir string, files Files, log zerolog.Logger) (*Catalog, error) {
	start := time.Now()
	var src Sources
	var err error
	if src.DRGs, err = readSource(FamilyDRGList, dir, files.DRGs); err != nil {
		return nil, err
	}
	if src.Diagnoses, err = readSource(FamilyDiagnosisIndex, dir, files.Diagnoses); err != nil {
		return nil, err
	}
	if src.CCs, err = readSource(FamilyCCIndex, dir, files.CCs); err != nil {
		return nil, err
	}
	for _, pattern := range files.MDCLogic {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, &ParseError{Family: FamilyMDCLogic, Source: pattern, Err: err}
		}
		if len(matches) == 0 {
			return nil, &ParseError{Family: FamilyMDCLogic, Source: pattern, Err: ErrMissingSource}
		}
		sort.Strings(matches)
		for _, m := range matches {
			s, err := readSource(FamilyMDCLogic, "", m)
			if err != nil {
				return nil, err
			}
			src.MDCLogic = append(src.MDCLogic, s)
		}
	}
	log.Info().Str("dir", dir).Int("mdc_files", len(src.MDCLogic)).Msg("definition files read")

	cat, err := Build(ctx, src)
	if err != nil {
		return nil, err
	}
	st := cat.Stats()
	log.Info().
		Int("drgs", st.DRGs).
		Int("diagnoses", st.Diagnoses).
		Int("cc_mcc", st.CCs+st.MCCs).
		Int("mdcs", st.MDCs).
		Int("triggers", st.Triggers).
		Str("fingerprint", cat.Fingerprint()[:12]).
		Dur("duration", time.Since(start)).
		Msg("catalog built")
	return cat, nil
}

func readSource(f Family, dir, name string) (Source, error) {
	if name == "" {
		return Source{}, &ParseError{Family: f, Err: ErrMissingSource}
	}
	path := name
	if dir != "" {
		path = filepath.Join(dir, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Source{}, &ParseError{Family: f, Source: filepath.Base(path), Err: fmt.Errorf("%w: %v", ErrMissingSource, err)}
		}
		return Source{}, &ParseError{Family: f, Source: filepath.Base(path), Err: err}
	}
	return Source{Name: filepath.Base(path), Data: data}, nil
}

// DRG returns the DRG record for a 3-digit number.
func (c *Catalog) DRG(num string) (DRG, bool) {
	d, ok := c.drgs[num]
	return d, ok
}

// Diagnosis returns the index entry for an exact diagnosis code.
func (c *Catalog) Diagnosis(code string) (*Diagnosis, bool) {
	d, ok := c.diagnoses[code]
	return d, ok
}

// CC returns the CC/MCC entry for an exact diagnosis code.
func (c *Catalog) CC(code string) (*CCEntry, bool) {
	e, ok := c.ccs.Entries[code]
	return e, ok
}

// MDC returns the decision index of one MDC.
func (c *Catalog) MDC(m MDC) (*MDCIndex, bool) {
	x, ok := c.mdcs[m]
	return x, ok
}

// MDCs lists the MDCs that have decision logic, in ascending order.
func (c *Catalog) MDCs() []MDC {
	out := make([]MDC, 0, len(c.mdcs))
	for m := range c.mdcs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PreMDCTriggers returns the Pre-MDC triggers in declaration order. Callers
// must not modify the returned groups.
func (c *Catalog) PreMDCTriggers() []*Group {
	return c.triggers
}

// DRGExclusions reports whether code is excluded as a CC/MCC for drg.
func (c *Catalog) DRGExclusions(drg, code string) bool {
	_, ok := c.ccs.DRGExclusions[drg][code]
	return ok
}

// Procedure reports whether code appears anywhere in the decision logic.
func (c *Catalog) Procedure(code string) bool {
	_, ok := c.procedures[code]
	return ok
}

// DRGNumbers lists every DRG number in ascending order.
func (c *Catalog) DRGNumbers() []string {
	out := make([]string, 0, len(c.drgs))
	for num := range c.drgs {
		out = append(out, num)
	}
	sort.Strings(out)
	return out
}

// DiagnosisCodes lists every indexed diagnosis code in ascending order.
func (c *Catalog) DiagnosisCodes() []string {
	return sortedDiagnosisKeys(c.diagnoses)
}

// CCCodes lists every CC/MCC code in ascending order.
func (c *Catalog) CCCodes() []string {
	out := make([]string, 0, len(c.ccs.Entries))
	for code := range c.ccs.Entries {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Fingerprint is the hex SHA-256 of the source texts the catalog was built from.
func (c *Catalog) Fingerprint() string {
	return c.fingerprint
}

// Stats counts catalog contents.
func (c *Catalog) Stats() Stats {
	st := Stats{
		DRGs:           len(c.drgs),
		Diagnoses:      len(c.diagnoses),
		PDXCollections: len(c.ccs.Collections),
		DRGExclusions:  len(c.ccs.DRGExclusions),
		MDCs:           len(c.mdcs),
		Triggers:       len(c.triggers),
		Procedures:     len(c.procedures),
	}
	for _, e := range c.ccs.Entries {
		if e.Level == SeverityMCC {
			st.MCCs++
		} else {
			st.CCs++
		}
		if e.AliveOnly {
			st.AliveOnly++
		}
	}
	for _, x := range c.mdcs {
		st.Groups += len(x.Groups)
		for _, g := range x.Groups {
			if g.Kind == SurgicalGroup {
				st.SurgicalGroups++
			}
		}
	}
	return st
}

func sortedDiagnosisKeys(m map[string]*Diagnosis) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setOf[V any](m map[string]V) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}
