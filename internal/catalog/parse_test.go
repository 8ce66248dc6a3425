package catalog

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func src(name, text string) Source {
	return Source{Name: name, Data: []byte(text)}
}

func TestParseDRGList(t *testing.T) {
	text := `Appendix A
DRG  MDC  MS  Description
001       P   Heart Transplant with MCC
002  PRE  P   Heart Transplant without MCC
193/194/195 04 M Simple Pneumonia and Pleurisy
204  04   M   Respiratory Signs
              and Symptoms
:-------------------------------------------
314  05   M   Other Circulatory System Diagnoses with CC or MCC
`
	drgs, err := ParseDRGList(src("a.txt", text))
	if err != nil {
		t.Fatalf("ParseDRGList: %v", err)
	}
	if len(drgs) != 7 {
		t.Fatalf("expected 7 DRGs, got %d", len(drgs))
	}

	d := drgs["001"]
	if d.MDC != PreMDC || d.Type != Surgical || !d.Split || d.Variant != SeverityMCC {
		t.Errorf("unexpected 001: %+v", d)
	}
	if d.Base != "Heart Transplant" {
		t.Errorf("001 base = %q", d.Base)
	}

	want := map[string]Severity{"193": SeverityMCC, "194": SeverityCC, "195": SeverityNone}
	for num, sev := range want {
		d := drgs[num]
		if d.MDC != "04" || d.Type != Medical || !d.Split || d.Variant != sev {
			t.Errorf("unexpected %s: %+v", num, d)
		}
		if d.Base != "Simple Pneumonia and Pleurisy" {
			t.Errorf("%s base = %q", num, d.Base)
		}
	}
	if got := drgs["195"].Description; got != "Simple Pneumonia and Pleurisy without CC/MCC" {
		t.Errorf("195 description = %q", got)
	}

	if got := drgs["204"]; got.Description != "Respiratory Signs and Symptoms" || got.Split {
		t.Errorf("continuation not joined: %+v", got)
	}
	if got := drgs["314"]; got.Variant != SeverityCC || !got.Split {
		t.Errorf("'with CC or MCC' should be the CC variant: %+v", got)
	}
}

func TestParseDRGList_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
	}{
		{"duplicate", "DRG MDC MS Description\n001 PRE P A\n001 PRE P B\n", 3},
		{"garbage", "DRG MDC MS Description\n001 PRE P A\nnot a record\n", 3},
		{"pair", "DRG MDC MS Description\n193/194 04 M Pneumonia\n", 2},
		{"no header", "001 PRE P A\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDRGList(src("a.txt", tt.text))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if pe.Family != FamilyDRGList || pe.Line != tt.line {
				t.Errorf("got family %s line %d, want line %d", pe.Family, pe.Line, tt.line)
			}
		})
	}
}

func TestParseDRGList_Missing(t *testing.T) {
	_, err := ParseDRGList(Source{Name: "a.txt"})
	if !errors.Is(err, ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
}

func TestParseDiagnosisIndex(t *testing.T) {
	text := `I10 Dx       MDC  MS-DRG    Description
A000-A002    06   371-373   Cholera
R0600        04   204       Dyspnea, unspecified
             05   314-316
J18.9        04   193/194/195 Pneumonia, unspecified organism
                            organism continued
T8601        PRE  014       Rejection of bone marrow transplant
R0600        23   947,948   Dyspnea again
R0600        04   205
`
	idx, err := ParseDiagnosisIndex(src("b.txt", text))
	if err != nil {
		t.Fatalf("ParseDiagnosisIndex: %v", err)
	}
	for _, code := range []string{"A000", "A001", "A002"} {
		d, ok := idx[code]
		if !ok {
			t.Fatalf("range not expanded: %s missing", code)
		}
		if !reflect.DeepEqual(d.DRGsFor("06"), []string{"371", "372", "373"}) {
			t.Errorf("%s DRGs = %v", code, d.DRGsFor("06"))
		}
	}
	if _, ok := idx["A00"]; ok {
		t.Error("range prefix must not be a lookup key")
	}

	r := idx["R0600"]
	if !reflect.DeepEqual(r.MDCs(), []MDC{"04", "05", "23"}) {
		t.Errorf("R0600 MDCs = %v", r.MDCs())
	}
	if !reflect.DeepEqual(r.DRGsFor("04"), []string{"204", "205"}) {
		t.Errorf("R0600 MDC 04 DRGs = %v", r.DRGsFor("04"))
	}
	if !reflect.DeepEqual(r.DRGsFor("23"), []string{"947", "948"}) {
		t.Errorf("R0600 MDC 23 DRGs = %v", r.DRGsFor("23"))
	}

	j := idx["J189"]
	if j == nil || !strings.HasSuffix(j.Description, "organism continued") {
		t.Errorf("J189 = %+v", j)
	}
	if got := idx["T8601"]; got.DirectDRG != "014" || len(got.Assignments) != 0 {
		t.Errorf("T8601 = %+v", got)
	}
}

func TestParseDiagnosisIndex_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"bad code", "I10 Dx MDC MS-DRG\n123 04 204 Bad\n"},
		{"bad mdc", "I10 Dx MDC MS-DRG\nR0600 31 204 Bad\n"},
		{"orphan continuation", "I10 Dx MDC MS-DRG\n     04 204\n"},
		{"empty", "I10 Dx MDC MS-DRG\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDiagnosisIndex(src("b.txt", tt.text))
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Family != FamilyDiagnosisIndex {
				t.Fatalf("expected diagnosis-index ParseError, got %v", err)
			}
		})
	}
}

const ccText = `Part 1
I10 Dx   Lev  PDX Exclusions  Description
E1100    CC   0011:3 codes    Type 2 diabetes mellitus
                              with hyperosmolarity
N179     CC                   Acute kidney failure
I469     MCC  0300:1 code     Cardiac arrest

PDX Collection 0011
     E1100-E1101  Type 2 diabetes mellitus
     E119         Type 2 diabetes mellitus without complications
PDX Collection 300
     I469         Cardiac arrest

Part 2
Codes that count only when discharged alive.
I469     Cardiac arrest

Part 3
MDC 05 DRGs 280-282 Acute Myocardial Infarction
     I469
     N179
`

func TestParseCCIndex(t *testing.T) {
	tbl, err := ParseCCIndex(src("c.txt", ccText))
	if err != nil {
		t.Fatalf("ParseCCIndex: %v", err)
	}
	if len(tbl.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(tbl.Entries))
	}
	e := tbl.Entries["E1100"]
	if e.Level != SeverityCC || e.Collection != "11" || e.AliveOnly {
		t.Errorf("unexpected E1100: %+v", e)
	}
	for _, pdx := range []string{"E1100", "E1101", "E119"} {
		if !e.ExcludedFor(pdx) {
			t.Errorf("E1100 should be excluded for PDX %s", pdx)
		}
	}
	if e.ExcludedFor("J189") {
		t.Error("E1100 should count for PDX J189")
	}
	if n := tbl.Entries["N179"]; n.Excludes != nil || n.ExcludedFor("N179") {
		t.Errorf("N179 has no collection: %+v", n)
	}
	if i := tbl.Entries["I469"]; i.Level != SeverityMCC || !i.AliveOnly {
		t.Errorf("unexpected I469: %+v", i)
	}
	for _, drg := range []string{"280", "281", "282"} {
		if _, ok := tbl.DRGExclusions[drg]["N179"]; !ok {
			t.Errorf("N179 should be excluded for DRG %s", drg)
		}
	}
	if _, ok := tbl.DRGExclusions["283"]; ok {
		t.Error("DRG 283 has no exclusions")
	}
}

func TestParseCCIndex_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"undefined collection", strings.Replace(ccText, "PDX Collection 300\n", "PDX Collection 301\n", 1), "undefined PDX collection"},
		{"count mismatch", strings.Replace(ccText, "0011:3 codes", "0011:4 codes", 1), "expects 4"},
		{"two levels", strings.Replace(ccText, "N179     CC ", "E1100    MCC", 1), "more than one severity"},
		{"alive-only unknown", strings.Replace(ccText, "I469     Cardiac arrest\n\nPart 3", "J9601    Respiratory failure\n\nPart 3", 1), "alive-only"},
		{"no records", "Part 1\nI10 Dx Lev\n", "no CC/MCC records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCCIndex(src("c.txt", tt.text))
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Family != FamilyCCIndex {
				t.Fatalf("expected cc-index ParseError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

const logicText = `Definitions manual preamble.

MDC 05 DISEASES AND DISORDERS OF THE CIRCULATORY SYSTEM

SURGICAL
DRG 231 Coronary Bypass with PTCA with MCC
DRG 232 Coronary Bypass with PTCA without MCC
  OPERATING ROOM PROCEDURES
    0210093   Bypass coronary artery
      and 02703ZZ  Dilation of coronary artery
DRG 246 Percutaneous Cardiovascular Procedures with MCC
DRG 247 Percutaneous Cardiovascular Procedures without MCC
  OPERATING ROOM PROCEDURES
    02703DZ*  Dilation of coronary artery with intraluminal device
    0270346   Dilation of coronary artery bifurcation
  NON-OPERATING ROOM PROCEDURES
    B2111ZZ   Fluoroscopy of coronary arteries

MEDICAL
DRG 283 Acute Myocardial Infarction, Expired with MCC
DRG 284 Acute Myocardial Infarction, Expired with CC
DRG 285 Acute Myocardial Infarction, Expired without CC/MCC
  PRINCIPAL DIAGNOSIS
    I21.01-I21.02  STEMI
  DISCHARGE STATUS EXPIRED
DRG 302 Atherosclerosis with MCC
DRG 303 Atherosclerosis without MCC
  PRINCIPAL DIAGNOSIS
    I2510     Atherosclerotic heart disease
`

func TestParseMDCLogic(t *testing.T) {
	pre := src("mdcs_00.txt", `PRE-MDC
DRG 003 ECMO or Tracheostomy
  NON-OPERATING ROOM PROCEDURES
    5A1522F   Extracorporeal oxygenation
  OPERATING ROOM PROCEDURES
    0B110F4   Tracheostomy
      and 5A1955Z  Ventilation > 96 hours
DRG 011 Tracheostomy for Face, Mouth and Neck Diagnoses
  OPERATING ROOM PROCEDURES
    0B110F4   Tracheostomy
  PRINCIPAL OR SECONDARY DIAGNOSIS
    C01       Malignant neoplasm of base of tongue
`)
	tables, err := ParseMDCLogic(pre, src("mdcs_05.txt", logicText))
	if err != nil {
		t.Fatalf("ParseMDCLogic: %v", err)
	}

	if len(tables.Triggers) != 2 {
		t.Fatalf("expected 2 Pre-MDC triggers, got %d", len(tables.Triggers))
	}
	ecmo := tables.Triggers[0]
	if ecmo.Rank != 1 || ecmo.Target.String() != "003" {
		t.Errorf("unexpected first trigger: rank %d target %s", ecmo.Rank, ecmo.Target)
	}
	if _, ok := ecmo.NonOR["5A1522F"]; !ok {
		t.Error("5A1522F missing from non-OR procedures")
	}
	if len(ecmo.Procedures) != 0 || !reflect.DeepEqual(ecmo.Combinations, [][]string{{"0B110F4", "5A1955Z"}}) {
		t.Errorf("combination not formed: procs %v combos %v", ecmo.Procedures, ecmo.Combinations)
	}
	if _, ok := tables.Triggers[1].AnyDx["C01"]; !ok {
		t.Error("C01 missing from principal-or-secondary list")
	}

	x := tables.MDCs["05"]
	if x == nil || x.Title != "DISEASES AND DISORDERS OF THE CIRCULATORY SYSTEM" {
		t.Fatalf("MDC 05 index = %+v", x)
	}
	if len(x.Groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(x.Groups))
	}
	cabg, pci := x.Groups[0], x.Groups[1]
	if cabg.Kind != SurgicalGroup || cabg.Rank != 1 || cabg.Target.String() != "231/232" {
		t.Errorf("unexpected CABG group: kind %s rank %d target %s", cabg.Kind, cabg.Rank, cabg.Target)
	}
	if cabg.Title != "Coronary Bypass with PTCA" {
		t.Errorf("severity suffix not stripped from title: %q", cabg.Title)
	}
	if pci.Rank != 2 || len(pci.Procedures) != 2 || len(pci.NonOR) != 1 {
		t.Errorf("unexpected PCI group: %+v", pci)
	}

	if got := x.SurgicalGroups("02703ZZ"); len(got) != 1 || got[0] != cabg {
		t.Errorf("combination member not indexed: %v", got)
	}
	if got := x.SurgicalGroups("B2111ZZ"); len(got) != 0 {
		t.Error("non-OR procedures must not select the surgical path")
	}

	ami := x.Groups[2]
	if ami.Kind != MedicalGroup || ami.Rank != 0 {
		t.Errorf("unexpected AMI group kind %s rank %d", ami.Kind, ami.Rank)
	}
	if !reflect.DeepEqual(ami.Discharge, []Discharge{Expired}) || ami.AcceptsDischarge(Alive) {
		t.Errorf("unexpected discharge condition %v", ami.Discharge)
	}
	if got := x.MedicalGroups("I2102"); len(got) != 1 || got[0] != ami {
		t.Errorf("I2102 medical groups = %v", got)
	}
	if got := x.MedicalGroups("I2510"); len(got) != 1 || got[0].Target.String() != "302/303" {
		t.Errorf("I2510 medical groups = %v", got)
	}
}

func TestParseMDCLogic_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"group before mdc", "DRG 303 Atherosclerosis\n  PRINCIPAL DIAGNOSIS\n    I2510 x\n", "outside an MDC"},
		{"empty group", "MDC 05 CIRC\nDRG 303 Atherosclerosis\n  PRINCIPAL DIAGNOSIS\nDRG 304 Next\n  PRINCIPAL DIAGNOSIS\n    I10 x\n", "lists no codes"},
		{"code outside section", "MDC 05 CIRC\nDRG 303 Atherosclerosis\n    I2510 x\n", "outside a code section"},
		{"wrong section", "MDC 05 CIRC\nDRG 246 PCI\n  OPERATING ROOM PROCEDURES\n    I2510 x\n", "does not belong"},
		{"and without procedure", "MDC 05 CIRC\nDRG 246 PCI\n  OPERATING ROOM PROCEDURES\n    and 02703ZZ x\n", "no preceding procedure"},
		{"bad discharge", "MDC 05 CIRC\nDRG 283 AMI\n  DISCHARGE STATUS SLEEPING\n", "unknown discharge status"},
		{"duplicate mdc", "MDC 05 CIRC\nDRG 303 A\n  PRINCIPAL DIAGNOSIS\n    I2510 x\nMDC 04 RESP\nMDC 05 AGAIN\n", "already defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMDCLogic(src("mdcs.txt", tt.text))
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Family != FamilyMDCLogic {
				t.Fatalf("expected mdc-logic ParseError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseMDCLogic_HierarchyIsDeclarationOrder(t *testing.T) {
	text := `MDC 05 CIRC
DRG 246 PCI with MCC
DRG 247 PCI without MCC
  OPERATING ROOM PROCEDURES
    02703DZ  Dilation
DRG 231 CABG with MCC
DRG 232 CABG without MCC
  OPERATING ROOM PROCEDURES
    0210093  Bypass
    02703DZ  Dilation
`
	tables, err := ParseMDCLogic(src("mdcs.txt", text))
	if err != nil {
		t.Fatalf("ParseMDCLogic: %v", err)
	}
	got := tables.MDCs["05"].SurgicalGroups("02703DZ")
	if len(got) != 2 || got[0].Target.String() != "246/247" || got[1].Target.String() != "231/232" {
		t.Fatalf("hierarchy re-sorted: %v", got)
	}
	if got[0].Rank != 1 || got[1].Rank != 2 {
		t.Errorf("ranks = %d, %d", got[0].Rank, got[1].Rank)
	}
}

func TestParsers_SkipRepeatedPageHeaders(t *testing.T) {
	drgs, err := ParseDRGList(src("a.txt", `Appendix A  List of MS-DRGs Version 43.0
DRG  MDC  MS  Description
302  05   M   Atherosclerosis with MCC
Appendix A  List of MS-DRGs Version 43.0
:-------------------------------------------
DRG  MDC  MS  Description
303  05   M   Atherosclerosis
              without MCC
`))
	if err != nil {
		t.Fatalf("ParseDRGList: %v", err)
	}
	if len(drgs) != 2 || drgs["303"].Description != "Atherosclerosis without MCC" {
		t.Errorf("unexpected DRGs: %+v", drgs)
	}

	idx, err := ParseDiagnosisIndex(src("b.txt", `I10 Dx       MDC  MS-DRG    Description
I2510        05   302-303   Atherosclerotic heart disease
Appendix B  Diagnosis Code/MDC/MS-DRG Index
MS-DRG v43.0 Definitions
I10 Dx       MDC  MS-DRG    Description
J189         04   193-195   Pneumonia, unspecified organism
`))
	if err != nil {
		t.Fatalf("ParseDiagnosisIndex: %v", err)
	}
	if len(idx) != 2 || idx["J189"] == nil {
		t.Errorf("unexpected index: %v", idx)
	}

	tbl, err := ParseCCIndex(src("c.txt", `Part 1
I10 Dx   Lev  PDX Exclusions  Description
E1100    CC                   Type 2 diabetes mellitus
Appendix C  Complications or Comorbidities Exclusion list
N179     CC                   Acute kidney failure
`))
	if err != nil {
		t.Fatalf("ParseCCIndex: %v", err)
	}
	if len(tbl.Entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(tbl.Entries))
	}

	tables, err := ParseMDCLogic(src("mdcs_05.txt", `MDC 05 DISEASES AND DISORDERS OF THE CIRCULATORY SYSTEM
DRG 302 Atherosclerosis with MCC
DRG 303 Atherosclerosis without MCC
  PRINCIPAL DIAGNOSIS
    I2510   Atherosclerotic heart disease
:-------------------------------------------
MDC 05 DISEASES AND DISORDERS OF THE CIRCULATORY SYSTEM
    I2511   Atherosclerotic heart disease with angina
`))
	if err != nil {
		t.Fatalf("ParseMDCLogic: %v", err)
	}
	x := tables.MDCs["05"]
	if len(x.Groups) != 1 || len(x.Groups[0].Principal) != 2 {
		t.Fatalf("page break split the group: %+v", x.Groups)
	}
	if _, ok := x.Groups[0].Principal["I2511"]; !ok {
		t.Error("code after the page header not filed under the open group")
	}
}
