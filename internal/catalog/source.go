package catalog

import (
	"bufio"
	"bytes"
)

// Source is the raw text of one definitions file. Name is used in error
// messages only.
type Source struct {
	Name string
	Data []byte
}

// lineScanner is a bufio.Scanner that tracks the 1-based line number.
type lineScanner struct {
	*bufio.Scanner
	line int
}

func newLineScanner(data []byte) *lineScanner {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &lineScanner{Scanner: sc}
}

func (s *lineScanner) Scan() bool {
	ok := s.Scanner.Scan()
	if ok {
		s.line++
	}
	return ok
}
