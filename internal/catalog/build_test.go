package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func loadTestdata(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Load(context.Background(), "testdata", DefaultFiles, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cat
}

func readTestdata(t *testing.T) Sources {
	t.Helper()
	read := func(name string) Source {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return Source{Name: name, Data: data}
	}
	return Sources{
		DRGs:      read("appendix_A.txt"),
		Diagnoses: read("appendix_B.txt"),
		CCs:       read("appendix_C.txt"),
		MDCLogic:  []Source{read("mdcs_00_pre.txt"), read("mdcs_04.txt"), read("mdcs_05.txt"), read("mdcs_10.txt")},
	}
}

func TestLoad_Testdata(t *testing.T) {
	cat := loadTestdata(t)

	st := cat.Stats()
	if st.DRGs != 33 {
		t.Errorf("DRGs = %d, want 33", st.DRGs)
	}
	if st.MDCs != 3 || st.Triggers != 2 {
		t.Errorf("MDCs = %d triggers = %d", st.MDCs, st.Triggers)
	}
	if st.CCs != 3 || st.MCCs != 3 || st.AliveOnly != 1 {
		t.Errorf("CC/MCC stats = %+v", st)
	}

	d, ok := cat.DRG("003")
	if !ok || d.MDC != PreMDC || d.Split {
		t.Errorf("DRG 003 = %+v", d)
	}
	if !strings.HasSuffix(d.Description, "with Major O.R. Procedures") {
		t.Errorf("DRG 003 continuation lost: %q", d.Description)
	}

	dx, ok := cat.Diagnosis("I2510")
	if !ok || dx.MDCs()[0] != "05" {
		t.Fatalf("I2510 = %+v", dx)
	}
	if _, ok := cat.Diagnosis("I251"); ok {
		t.Error("prefix lookup must not match")
	}
	if r, _ := cat.Diagnosis("R0600"); len(r.MDCs()) != 2 {
		t.Errorf("R0600 MDCs = %v", r.MDCs())
	}

	cc, ok := cat.CC("E1100")
	if !ok || cc.Level != SeverityCC {
		t.Errorf("E1100 = %+v", cc)
	}
	if _, ok := cat.CC("E119"); ok {
		t.Error("E119 is not a CC/MCC")
	}
	if !cat.DRGExclusions("281", "I5021") || cat.DRGExclusions("302", "I5021") {
		t.Error("Part 3 exclusions wrong")
	}

	trig := cat.PreMDCTriggers()
	if len(trig) != 2 || trig[0].Target.String() != "001/002" || trig[1].Target.String() != "003" {
		t.Errorf("triggers = %v", trig)
	}
	if !cat.Procedure("5A1522F") || !cat.Procedure("02703ZZ") || cat.Procedure("0000000") {
		t.Error("procedure index wrong")
	}
	if got := cat.MDCs(); len(got) != 3 || got[0] != "04" || got[2] != "10" {
		t.Errorf("MDCs = %v", got)
	}
	if len(cat.Fingerprint()) != 64 {
		t.Errorf("fingerprint = %q", cat.Fingerprint())
	}
}

func TestBuild_FingerprintStable(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, readTestdata(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := Build(ctx, readTestdata(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint differs between identical builds")
	}

	src := readTestdata(t)
	src.CCs.Data = append(src.CCs.Data, '\n')
	c, err := Build(ctx, src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.Fingerprint() == a.Fingerprint() {
		t.Error("fingerprint ignores source changes")
	}
}

func TestBuild_FailsWhole(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Sources)
		family Family
	}{
		{"missing drg list", func(s *Sources) { s.DRGs.Data = nil }, FamilyDRGList},
		{"missing mdc logic", func(s *Sources) { s.MDCLogic = nil }, FamilyMDCLogic},
		{"unknown target", func(s *Sources) {
			s.MDCLogic[3].Data = []byte(strings.Replace(string(s.MDCLogic[3].Data), "DRG 639", "DRG 640", 1))
		}, FamilyMDCLogic},
		{"unknown index DRG", func(s *Sources) {
			s.Diagnoses.Data = []byte(strings.Replace(string(s.Diagnoses.Data), "302-303", "302-304", 1))
		}, FamilyDiagnosisIndex},
		{"unknown part 3 DRG", func(s *Sources) {
			s.CCs.Data = []byte(strings.Replace(string(s.CCs.Data), "DRGs 280-285", "DRGs 280-286", 1))
		}, FamilyCCIndex},
		{"family member without variant", func(s *Sources) {
			s.MDCLogic[1].Data = []byte(strings.Replace(string(s.MDCLogic[1].Data), "DRG 204 Respiratory", "DRG 014\nDRG 204 Respiratory", 1))
		}, FamilyMDCLogic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := readTestdata(t)
			tt.mutate(&src)
			cat, err := Build(context.Background(), src)
			if cat != nil {
				t.Fatal("partial catalog returned")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if pe.Family != tt.family {
				t.Errorf("family = %s, want %s (%v)", pe.Family, tt.family, err)
			}
		})
	}
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, readTestdata(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"appendix_A.txt", "appendix_B.txt", "mdcs_05.txt"} {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	_, err := Load(context.Background(), dir, DefaultFiles, zerolog.Nop())
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Family != FamilyCCIndex {
		t.Fatalf("expected cc-index ParseError, got %v", err)
	}
	if !errors.Is(err, ErrMissingSource) {
		t.Errorf("expected ErrMissingSource in chain: %v", err)
	}
}
