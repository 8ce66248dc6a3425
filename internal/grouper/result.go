package grouper

import "github.com/gyeh/msdrg/internal/catalog"

// UngroupableDRG is reported when no decision path yields a DRG.
const UngroupableDRG = "999"

// Outcome is the terminal state a grouping call reached.
type Outcome string

const (
	Classified     Outcome = "classified"
	PreMDCAssigned Outcome = "pre-mdc"
	Ungroupable    Outcome = "ungroupable"
)

// Path is the decision path that produced the DRG.
type Path string

const (
	PathNone     Path = ""
	PathPreMDC   Path = "pre-mdc"
	PathSurgical Path = "surgical"
	PathMedical  Path = "medical"
)

// Result is the classification of one encounter with the trace of decisions
// that produced it.
type Result struct {
	EncounterID string
	DRG         string
	MDC         catalog.MDC
	Type        catalog.DRGType
	// Variant is the severity member selected; SeverityNone for DRGs outside a
	// severity family.
	Variant catalog.Severity
	// Severity is the encounter severity after exclusions, and SeverityDx the
	// first secondary diagnosis at that level.
	Severity    catalog.Severity
	SeverityDx  string
	Path        Path
	Procedure   string
	Outcome     Outcome
	Description string
	Trace       []string
}
