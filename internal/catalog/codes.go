package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gyeh/msdrg/internal/normalize"
)

// maxRangeSize bounds a single code range expansion.
const maxRangeSize = 10000

// pcsAlphabet is the ICD-10-PCS character set: digits then letters without I and O.
const pcsAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

var (
	drgNumber = regexp.MustCompile(`^\d{1,3}$`)
	dxCode    = regexp.MustCompile(`^[A-Z][0-9][A-Z0-9]{1,5}$`)
	pcsCode   = regexp.MustCompile(`^[0-9A-HJ-NP-Z]{7}$`)
	// running titles repeated at every page break
	pageTitle = regexp.MustCompile(`(?i)^\s*(?:appendix\s+[a-z]\b|ms-drg\s+(?:v\d|version\s+\d|definitions\s+manual))`)
)

// codeKind selects the code system a token is validated against.
type codeKind int

const (
	diagnosisCode codeKind = iota
	procedureCode
)

func (k codeKind) pattern() *regexp.Regexp {
	if k == procedureCode {
		return pcsCode
	}
	return dxCode
}

// expandCodeRange expands an inclusive range such as "E1100-E1109" or
// "0B110F4-0B110K4" into exact codes. The endpoints must share a prefix and a
// suffix; the differing middle is either a run of digits of equal width or a
// single ICD-10-PCS character.
func expandCodeRange(lo, hi string) ([]string, error) {
	lo, hi = normalize.Code(lo), normalize.Code(hi)
	if len(lo) != len(hi) {
		return nil, fmt.Errorf("range %s-%s: endpoints differ in length", lo, hi)
	}
	if lo == hi {
		return []string{lo}, nil
	}
	p := 0
	for p < len(lo) && lo[p] == hi[p] {
		p++
	}
	s := len(lo)
	for s > p && lo[s-1] == hi[s-1] {
		s--
	}
	prefix, suffix := lo[:p], lo[s:]
	a, b := lo[p:s], hi[p:s]

	if isDigits(a) && isDigits(b) {
		// widen the numeric middle leftwards over shared digits, e.g. E1109-E1110
		for p > 0 && isDigits(lo[p-1:p]) {
			p--
		}
		prefix, a, b = lo[:p], lo[p:s], hi[p:s]
		from, _ := strconv.Atoi(a)
		to, _ := strconv.Atoi(b)
		if from > to {
			return nil, fmt.Errorf("range %s-%s: start after end", lo, hi)
		}
		if to-from+1 > maxRangeSize {
			return nil, fmt.Errorf("range %s-%s: expands to more than %d codes", lo, hi, maxRangeSize)
		}
		out := make([]string, 0, to-from+1)
		for n := from; n <= to; n++ {
			out = append(out, fmt.Sprintf("%s%0*d%s", prefix, len(a), n, suffix))
		}
		return out, nil
	}

	if len(a) == 1 {
		from, to := strings.IndexByte(pcsAlphabet, a[0]), strings.IndexByte(pcsAlphabet, b[0])
		if from < 0 || to < 0 {
			return nil, fmt.Errorf("range %s-%s: character outside code alphabet", lo, hi)
		}
		if from > to {
			return nil, fmt.Errorf("range %s-%s: start after end", lo, hi)
		}
		out := make([]string, 0, to-from+1)
		for i := from; i <= to; i++ {
			out = append(out, prefix+string(pcsAlphabet[i])+suffix)
		}
		return out, nil
	}
	return nil, fmt.Errorf("range %s-%s: unsupported notation", lo, hi)
}

// expandCodeToken expands a single code or an "A-B" range token and checks
// every resulting code against the code system.
func expandCodeToken(tok string, kind codeKind) ([]string, error) {
	tok = stripFootnote(tok)
	var codes []string
	if lo, hi, ok := strings.Cut(tok, "-"); ok {
		var err error
		if codes, err = expandCodeRange(lo, hi); err != nil {
			return nil, err
		}
	} else {
		codes = []string{normalize.Code(tok)}
	}
	for _, c := range codes {
		if !kind.matches(c) {
			return nil, fmt.Errorf("malformed code %q", tok)
		}
	}
	return codes, nil
}

// looksLikeCode reports whether tok is written as a code or code range of
// kind. Unlike expandCodeToken it does not upper-case, so prose words such
// as "List" are rejected.
func looksLikeCode(tok string, kind codeKind) bool {
	tok = stripFootnote(tok)
	lo, hi, isRange := strings.Cut(tok, "-")
	if !kind.matches(strings.ReplaceAll(lo, ".", "")) {
		return false
	}
	return !isRange || kind.matches(strings.ReplaceAll(hi, ".", ""))
}

// matches also requires a digit in procedure codes; every ICD-10-PCS code has
// one, while seven-letter words like "SYSTEMS" fit the alphabet.
func (k codeKind) matches(s string) bool {
	if !k.pattern().MatchString(s) {
		return false
	}
	return k != procedureCode || strings.ContainsAny(s, "0123456789")
}

// expandDRGList expands "371-373, 380" or "193/194/195" into zero-padded DRG
// numbers, preserving order.
func expandDRGList(s string) ([]string, error) {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '/' || r == ' ' }) {
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			if !drgNumber.MatchString(lo) || !drgNumber.MatchString(hi) {
				return nil, fmt.Errorf("malformed DRG range %q", part)
			}
			from, _ := strconv.Atoi(lo)
			to, _ := strconv.Atoi(hi)
			if from > to {
				return nil, fmt.Errorf("DRG range %q: start after end", part)
			}
			for n := from; n <= to; n++ {
				out = append(out, fmt.Sprintf("%03d", n))
			}
			continue
		}
		if !drgNumber.MatchString(part) {
			return nil, fmt.Errorf("malformed DRG number %q", part)
		}
		n, _ := strconv.Atoi(part)
		out = append(out, fmt.Sprintf("%03d", n))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty DRG list")
	}
	return out, nil
}

// parseMDC normalises an MDC column value. Blank, "PRE" and "00" all denote Pre-MDC.
func parseMDC(s string) (MDC, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "", "PRE", "PRE-MDC", "00":
		return PreMDC, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 25 {
		return "", fmt.Errorf("malformed MDC %q", s)
	}
	return MDC(fmt.Sprintf("%02d", n)), nil
}

// stripFootnote removes trailing footnote markers such as "*" or "^".
func stripFootnote(tok string) string {
	return strings.TrimRight(tok, "*^+#")
}

// isPageLayout reports rulers and running page titles carried over from the
// published text. They may appear anywhere, including between the lines of a
// record.
func isPageLayout(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, ":") || strings.HasPrefix(t, "|") || pageTitle.MatchString(t)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
