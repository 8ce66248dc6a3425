package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	ccPart       = regexp.MustCompile(`(?i)^\s*Part\s+([123])\b`)
	ccHeader     = regexp.MustCompile(`(?i)I10\s+Dx\s+Lev`)
	ccRecord     = regexp.MustCompile(`^\s*(\S+)\s+(CC|MCC)(?:\s+(\d{1,4}):(\d+)\s+codes?)?(?:\s+(\S.*))?$`)
	ccCollection = regexp.MustCompile(`(?i)^\s*PDX\s+Collection\s+(\d{1,4})\b`)
	ccDRGHeader  = regexp.MustCompile(`(?i)^\s*MDC\s+(\d{2})\s+DRGs?\s+(\d{3}(?:\s*[-,]\s*\d{3})*)\b\s*(.*)$`)
)

// CCTable is the parsed CC/MCC index (Appendix C).
type CCTable struct {
	Entries map[string]*CCEntry
	// Collections maps a PDX collection number to the principal diagnoses it lists.
	Collections map[string]map[string]struct{}
	// DRGExclusions maps a DRG to secondary diagnoses that never count as
	// CC/MCC for it.
	DRGExclusions map[string]map[string]struct{}
}

// ccCollectionRef is a Part 1 reference to a PDX collection awaiting resolution.
type ccCollectionRef struct {
	entry *CCEntry
	count int
	line  int
}

// ParseCCIndex parses the CC/MCC index. Part 1 lists CC/MCC codes with their
// PDX exclusion collection; collection blocks may appear anywhere in Part 1.
// Part 2 lists codes that only count when the patient is discharged alive.
// Part 3 lists secondary diagnoses excluded for specific DRGs.
func ParseCCIndex(src Source) (*CCTable, error) {
	if len(src.Data) == 0 {
		return nil, &ParseError{Family: FamilyCCIndex, Source: src.Name, Err: ErrMissingSource}
	}

	t := &CCTable{
		Entries:       make(map[string]*CCEntry),
		Collections:   make(map[string]map[string]struct{}),
		DRGExclusions: make(map[string]map[string]struct{}),
	}
	var (
		refs       []ccCollectionRef
		aliveOnly  = make(map[string]int)
		part       int
		inData     bool
		collection map[string]struct{}
		drgs       []string
	)

	sc := newLineScanner(src.Data)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		n := sc.line
		if strings.TrimSpace(line) == "" || isPageLayout(line) {
			continue
		}
		if m := ccPart.FindStringSubmatch(line); m != nil {
			part, _ = strconv.Atoi(m[1])
			inData, collection, drgs = false, nil, nil
			continue
		}
		fields := strings.Fields(line)

		switch part {
		case 1:
			if ccHeader.MatchString(line) {
				inData = true
				continue
			}
			if m := ccCollection.FindStringSubmatch(line); m != nil {
				num := collectionKey(m[1])
				if _, dup := t.Collections[num]; dup {
					return nil, parseErr(FamilyCCIndex, src.Name, n, "PDX collection %s defined twice", num)
				}
				collection = make(map[string]struct{})
				t.Collections[num] = collection
				continue
			}
			if !inData {
				continue
			}
			if m := ccRecord.FindStringSubmatch(line); m != nil && looksLikeCode(m[1], diagnosisCode) {
				collection = nil
				codes, err := expandCodeToken(m[1], diagnosisCode)
				if err != nil {
					return nil, parseErr(FamilyCCIndex, src.Name, n, "%v", err)
				}
				level := SeverityCC
				if m[2] == "MCC" {
					level = SeverityMCC
				}
				for _, code := range codes {
					if _, dup := t.Entries[code]; dup {
						return nil, parseErr(FamilyCCIndex, src.Name, n, "code %s has more than one severity level", code)
					}
					e := &CCEntry{Code: code, Level: level, Description: strings.TrimSpace(m[5])}
					if m[3] != "" {
						e.Collection = collectionKey(m[3])
						count, _ := strconv.Atoi(m[4])
						refs = append(refs, ccCollectionRef{entry: e, count: count, line: n})
					}
					t.Entries[code] = e
				}
				continue
			}
			if collection != nil && looksLikeCode(fields[0], diagnosisCode) {
				codes, err := expandCodeToken(fields[0], diagnosisCode)
				if err != nil {
					return nil, parseErr(FamilyCCIndex, src.Name, n, "%v", err)
				}
				for _, code := range codes {
					collection[code] = struct{}{}
				}
				continue
			}
			if line[0] == ' ' || line[0] == '\t' {
				// wrapped description text
				continue
			}
			return nil, parseErr(FamilyCCIndex, src.Name, n, "unrecognized line %q", line)

		case 2:
			if !looksLikeCode(fields[0], diagnosisCode) {
				continue
			}
			codes, err := expandCodeToken(fields[0], diagnosisCode)
			if err != nil {
				return nil, parseErr(FamilyCCIndex, src.Name, n, "%v", err)
			}
			for _, code := range codes {
				aliveOnly[code] = n
			}

		case 3:
			if m := ccDRGHeader.FindStringSubmatch(line); m != nil {
				list, err := expandDRGList(m[2])
				if err != nil {
					return nil, parseErr(FamilyCCIndex, src.Name, n, "%v", err)
				}
				drgs = list
				for _, drg := range drgs {
					if t.DRGExclusions[drg] == nil {
						t.DRGExclusions[drg] = make(map[string]struct{})
					}
				}
				continue
			}
			if drgs == nil || !looksLikeCode(fields[0], diagnosisCode) {
				continue
			}
			codes, err := expandCodeToken(fields[0], diagnosisCode)
			if err != nil {
				return nil, parseErr(FamilyCCIndex, src.Name, n, "%v", err)
			}
			for _, drg := range drgs {
				for _, code := range codes {
					t.DRGExclusions[drg][code] = struct{}{}
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Family: FamilyCCIndex, Source: src.Name, Err: err}
	}
	if len(t.Entries) == 0 {
		return nil, parseErr(FamilyCCIndex, src.Name, 0, "no CC/MCC records in Part 1")
	}

	for _, ref := range refs {
		set, ok := t.Collections[ref.entry.Collection]
		if !ok {
			return nil, parseErr(FamilyCCIndex, src.Name, ref.line, "code %s references undefined PDX collection %s", ref.entry.Code, ref.entry.Collection)
		}
		if ref.count > 0 && ref.count != len(set) {
			return nil, parseErr(FamilyCCIndex, src.Name, ref.line, "PDX collection %s lists %d codes, %s expects %d", ref.entry.Collection, len(set), ref.entry.Code, ref.count)
		}
		ref.entry.Excludes = set
	}
	for code, n := range aliveOnly {
		e, ok := t.Entries[code]
		if !ok {
			return nil, parseErr(FamilyCCIndex, src.Name, n, "alive-only code %s has no CC/MCC level", code)
		}
		e.AliveOnly = true
	}
	return t, nil
}

// collectionKey zero-pads collection numbers so "2" and "0002" agree.
func collectionKey(s string) string {
	n, _ := strconv.Atoi(s)
	return strconv.FormatInt(int64(n), 10)
}
