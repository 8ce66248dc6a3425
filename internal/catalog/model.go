package catalog

import "strings"

// MDC is a Major Diagnostic Category code, e.g. "05". PreMDC marks DRGs and
// triggers that are assigned before any MDC is chosen.
type MDC string

const PreMDC MDC = "PRE"

func (m MDC) String() string {
	if m == PreMDC {
		return "Pre-MDC"
	}
	return string(m)
}

// DRGType distinguishes medical from surgical (procedure-driven) DRGs.
type DRGType int

const (
	Medical DRGType = iota
	Surgical
)

func (t DRGType) String() string {
	if t == Surgical {
		return "Surgical"
	}
	return "Medical"
}

// Severity is the CC/MCC level of a secondary diagnosis or a DRG variant.
// Values are ordered: SeverityMCC > SeverityCC > SeverityNone.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityCC
	SeverityMCC
)

func (s Severity) String() string {
	switch s {
	case SeverityMCC:
		return "MCC"
	case SeverityCC:
		return "CC"
	default:
		return "None"
	}
}

// DRG is one entry of the MS-DRG list.
type DRG struct {
	Number string
	MDC    MDC
	Type   DRGType
	// Variant is the lowest severity this member of a severity family accepts.
	// Only meaningful when Split is true.
	Variant Severity
	Split   bool
	// Base is the description with any severity suffix removed; members of the
	// same family share it.
	Base        string
	Description string
}

// Assignment is one MDC a diagnosis can group to, with the DRGs listed for it.
type Assignment struct {
	MDC  MDC
	DRGs []string
}

// Diagnosis is a diagnosis index entry keyed by an exact ICD-10-CM code.
type Diagnosis struct {
	Code        string
	Description string
	// Assignments are kept in order of appearance; the first is the default MDC.
	Assignments []Assignment
	// DirectDRG is set for diagnoses that determine a Pre-MDC DRG on their own.
	DirectDRG string
}

// MDCs returns the candidate MDCs in order of appearance.
func (d *Diagnosis) MDCs() []MDC {
	out := make([]MDC, 0, len(d.Assignments))
	for _, a := range d.Assignments {
		out = append(out, a.MDC)
	}
	return out
}

// DRGsFor returns the DRGs the index lists for the diagnosis in mdc.
func (d *Diagnosis) DRGsFor(mdc MDC) []string {
	for _, a := range d.Assignments {
		if a.MDC == mdc {
			return a.DRGs
		}
	}
	return nil
}

// CCEntry is a secondary diagnosis that can raise encounter severity.
type CCEntry struct {
	Code        string
	Level       Severity
	Description string
	// Collection is the PDX exclusion collection number, empty when none.
	Collection string
	// Excludes holds principal diagnoses for which this code does not count.
	Excludes map[string]struct{}
	// AliveOnly codes count only when the patient was discharged alive.
	AliveOnly bool
}

// ExcludedFor reports whether pdx is on the entry's PDX exclusion list.
func (e *CCEntry) ExcludedFor(pdx string) bool {
	_, ok := e.Excludes[pdx]
	return ok
}

// GroupKind says whether a decision group is reached through procedures.
type GroupKind int

const (
	MedicalGroup GroupKind = iota
	SurgicalGroup
)

func (k GroupKind) String() string {
	if k == SurgicalGroup {
		return "surgical"
	}
	return "medical"
}

// Discharge is an encounter discharge status.
type Discharge string

const (
	Alive       Discharge = "alive"
	Expired     Discharge = "expired"
	Transferred Discharge = "transferred"
)

// ParseDischarge maps a case-insensitive status name onto a Discharge.
func ParseDischarge(s string) (Discharge, bool) {
	switch d := Discharge(strings.ToLower(strings.TrimSpace(s))); d {
	case Alive, Expired, Transferred:
		return d, true
	}
	return "", false
}

// Target is the DRG, or ordered severity family of DRGs, a decision leads to.
type Target struct {
	DRGs []string
}

func (t Target) String() string {
	return strings.Join(t.DRGs, "/")
}

// Group is one node of an MDC decision tree, or a Pre-MDC trigger when its MDC
// is PreMDC. A group declares the DRG family it leads to plus the code lists
// that qualify an encounter for it.
type Group struct {
	MDC   MDC
	Kind  GroupKind
	Title string
	// Rank is the 1-based surgical hierarchy position within the MDC, or the
	// declaration position for Pre-MDC triggers. Zero for medical groups.
	Rank   int
	Target Target

	// Procedures are OR procedures that qualify on their own.
	Procedures map[string]struct{}
	// Combinations qualify only when every code is present.
	Combinations [][]string
	// NonOR procedures are listed for the group but do not select the surgical
	// path inside an MDC. Pre-MDC triggers accept them.
	NonOR map[string]struct{}

	Principal map[string]struct{}
	Secondary map[string]struct{}
	// AnyDx is satisfied by the principal or any secondary diagnosis.
	AnyDx map[string]struct{}

	// Discharge restricts the group to the listed statuses; empty means any.
	Discharge []Discharge

	// Source and Line locate the DRG header in the logic files.
	Source string
	Line   int
}

// AcceptsDischarge reports whether d satisfies the group's discharge condition.
func (g *Group) AcceptsDischarge(d Discharge) bool {
	if len(g.Discharge) == 0 {
		return true
	}
	for _, want := range g.Discharge {
		if want == d {
			return true
		}
	}
	return false
}

// MDCIndex is the decision index of one MDC.
type MDCIndex struct {
	MDC    MDC
	Title  string
	Groups []*Group

	surgical map[string][]*Group
	medical  map[string][]*Group
}

// SurgicalGroups returns the surgical groups listing code as an OR procedure,
// alone or as part of a combination, in hierarchy order.
func (x *MDCIndex) SurgicalGroups(code string) []*Group {
	return x.surgical[code]
}

// MedicalGroups returns the medical groups whose principal diagnosis list
// contains pdx, in declaration order.
func (x *MDCIndex) MedicalGroups(pdx string) []*Group {
	return x.medical[pdx]
}

func (x *MDCIndex) index() {
	x.surgical = make(map[string][]*Group)
	x.medical = make(map[string][]*Group)
	for _, g := range x.Groups {
		if g.Kind == SurgicalGroup {
			seen := make(map[string]bool)
			add := func(code string) {
				if !seen[code] {
					seen[code] = true
					x.surgical[code] = append(x.surgical[code], g)
				}
			}
			for _, code := range sortedKeys(g.Procedures) {
				add(code)
			}
			for _, combo := range g.Combinations {
				for _, code := range combo {
					add(code)
				}
			}
			continue
		}
		for _, code := range sortedKeys(g.Principal) {
			x.medical[code] = append(x.medical[code], g)
		}
	}
}
