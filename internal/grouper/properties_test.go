package grouper

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/gyeh/msdrg/internal/catalog"
)

// secondarySets are the secondary diagnosis lists the catalog-wide checks
// combine with every principal diagnosis.
var secondarySets = [][]string{
	nil,
	{"E119"},
	{"N179"},
	{"E871", "N179"},
	{"I5021"},
	{"I469", "E1100"},
}

func TestEveryIndexedDiagnosisGroups(t *testing.T) {
	e := testEngine(t)
	for _, code := range e.Catalog().DiagnosisCodes() {
		for _, sdx := range secondarySets {
			for _, dis := range []catalog.Discharge{catalog.Alive, catalog.Expired} {
				in := enc(code, sdx, nil)
				in.Discharge = dis
				res, err := e.Group(in)
				var ude *UnknownDiagnosisError
				if errors.As(err, &ude) {
					t.Fatalf("%s: indexed diagnosis reported unknown", code)
				}
				if err != nil {
					t.Fatalf("%s %v: %v", code, sdx, err)
				}
				if _, ok := e.Catalog().DRG(res.DRG); !ok && res.DRG != UngroupableDRG {
					t.Errorf("%s %v: DRG %s not in catalog", code, sdx, res.DRG)
				}
			}
		}
	}
}

func TestPreMDCTriggerOverridesEveryDiagnosis(t *testing.T) {
	e := testEngine(t)
	for _, code := range e.Catalog().DiagnosisCodes() {
		res := mustGroup(t, e, enc(code, []string{"J9601"}, []string{"5A1522G", "02703DZ"}))
		if res.DRG != "003" || res.Outcome != PreMDCAssigned {
			t.Errorf("%s: got DRG %s outcome %s", code, res.DRG, res.Outcome)
		}
	}
}

func TestAddingMCCNeverLowersSeverity(t *testing.T) {
	e := testEngine(t)
	for _, code := range e.Catalog().DiagnosisCodes() {
		for _, sdx := range secondarySets {
			before := mustGroup(t, e, enc(code, sdx, nil))
			after := mustGroup(t, e, enc(code, append(append([]string(nil), sdx...), "J9601"), nil))
			if after.Severity < before.Severity {
				t.Errorf("%s %v: severity fell from %s to %s", code, sdx, before.Severity, after.Severity)
			}
			if before.Outcome == Classified && after.Outcome == Classified &&
				before.MDC == after.MDC && before.Type == after.Type && after.Variant < before.Variant {
				t.Errorf("%s %v: variant fell from %s to %s", code, sdx, before.Variant, after.Variant)
			}
		}
	}
}

func TestThreeWaySplitsMatchSeverityExactly(t *testing.T) {
	e := testEngine(t)
	// each principal diagnosis leads to a with MCC / with CC / without family
	for _, pdx := range []string{"J150", "J189", "I959", "E119"} {
		for _, tt := range []struct {
			sdx  []string
			want catalog.Severity
		}{
			{nil, catalog.SeverityNone},
			{[]string{"N179"}, catalog.SeverityCC},
			{[]string{"N179", "J9601"}, catalog.SeverityMCC},
		} {
			res := mustGroup(t, e, enc(pdx, tt.sdx, nil))
			if res.Severity != tt.want || res.Variant != tt.want {
				t.Errorf("%s %v: severity %s variant %s, want %s", pdx, tt.sdx, res.Severity, res.Variant, tt.want)
			}
		}
	}
}

func TestGroupIsDeterministic(t *testing.T) {
	e := testEngine(t)
	var encs []Encounter
	for _, code := range e.Catalog().DiagnosisCodes() {
		encs = append(encs,
			enc(code, []string{"E1100", "I5021"}, nil),
			enc(code, nil, []string{"0210093", "02703ZZ"}),
		)
	}
	first := make([]Result, len(encs))
	for i, in := range encs {
		first[i] = mustGroup(t, e, in)
		again := mustGroup(t, e, in)
		if !reflect.DeepEqual(first[i], again) {
			t.Fatalf("%s: results differ between calls:\n%+v\n%+v", in.PrincipalDx, first[i], again)
		}
	}

	out, err := e.GroupAll(context.Background(), encs, 4)
	if err != nil {
		t.Fatalf("GroupAll: %v", err)
	}
	for i, g := range out {
		if g.Err != nil {
			t.Fatalf("row %d: %v", i, g.Err)
		}
		if !reflect.DeepEqual(first[i], g.Result) {
			t.Errorf("row %d: GroupAll differs from Group", i)
		}
	}
}
