package encounterio

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gyeh/msdrg/internal/model"
)

// CSVReader streams encounter rows from a CSV file with a header row.
// Columns are matched by name, case-insensitively, in any order.
type CSVReader struct {
	file   *os.File
	csv    *csv.Reader
	colIdx map[string]int
	rowNum int64
}

// OpenCSV opens path and reads its header.
func OpenCSV(path string) (*CSVReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	bufReader := bufio.NewReaderSize(file, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := bufReader.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		bufReader.Discard(3)
	}

	reader := csv.NewReader(bufReader)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	r := &CSVReader{file: file, csv: reader, colIdx: make(map[string]int)}
	if err := r.readHeader(); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func (r *CSVReader) readHeader() error {
	header, err := r.csv.Read()
	if err != nil {
		return fmt.Errorf("read header row: %w", err)
	}
	present := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := r.colIdx[name]; dup {
			return fmt.Errorf("duplicate column %q", name)
		}
		r.colIdx[name] = i
		present[name] = true
	}
	return checkColumns(present)
}

// NumRows is unknown for CSV input.
func (r *CSVReader) NumRows() int64 { return -1 }

// Read reads up to len(rows) records. Blank lines are skipped and do not
// advance the row number.
func (r *CSVReader) Read(rows []model.EncounterRow) (int, error) {
	n := 0
	for n < len(rows) {
		rec, err := r.csv.Read()
		if err == io.EOF {
			return n, io.EOF
		}
		if err != nil {
			return n, fmt.Errorf("read csv row %d: %w", r.rowNum+1, err)
		}
		if blank(rec) {
			continue
		}
		r.rowNum++
		rows[n] = r.toRow(rec)
		n++
	}
	return n, nil
}

func (r *CSVReader) toRow(rec []string) model.EncounterRow {
	field := func(name string) string {
		i, ok := r.colIdx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	row := model.EncounterRow{
		RowNumber:       r.rowNum,
		EncounterID:     field("encounter_id"),
		PrincipalDx:     field("principal_dx"),
		SecondaryDx:     model.Ptr(field("secondary_dx")),
		Procedures:      model.Ptr(field("procedures")),
		Sex:             model.Ptr(field("sex")),
		DischargeStatus: model.Ptr(field("discharge_status")),
	}
	age, err := strconv.ParseInt(field("age"), 10, 32)
	if err != nil {
		row.Invalid = fmt.Sprintf("age %q is not an integer", field("age"))
	}
	row.Age = int32(age)
	return row
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Close releases the file.
func (r *CSVReader) Close() error {
	return r.file.Close()
}

// CSVWriter writes result rows as CSV with a header row.
type CSVWriter struct {
	file *os.File
	buf  *bufio.Writer
	w    *csv.Writer
}

// CreateCSV creates (or truncates) path and writes the header.
func CreateCSV(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	buf := bufio.NewWriterSize(f, 256*1024)
	w := csv.NewWriter(buf)
	if err := w.Write(model.ResultCSVColumns()); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &CSVWriter{file: f, buf: buf, w: w}, nil
}

func (c *CSVWriter) Write(rows []model.ResultRow) error {
	for i := range rows {
		if err := c.w.Write(rows[i].CSVRecord()); err != nil {
			return fmt.Errorf("write csv row %d: %w", rows[i].RowNumber, err)
		}
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (c *CSVWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.file.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := c.buf.Flush(); err != nil {
		c.file.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	return c.file.Close()
}
