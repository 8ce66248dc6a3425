package encounterio

import (
	"path/filepath"
	"strings"

	"github.com/gyeh/msdrg/internal/model"
)

// RowReader streams encounter rows from an input file.
type RowReader interface {
	// Read reads up to len(rows) records into rows. It returns io.EOF, possibly
	// together with n > 0, once the input is exhausted.
	Read(rows []model.EncounterRow) (int, error)
	// NumRows returns the row count when the format records it, or -1.
	NumRows() int64
	Close() error
}

// ResultWriter writes grouped rows to an output file.
type ResultWriter interface {
	Write(rows []model.ResultRow) error
	Close() error
}

// IsParquet reports whether path names a Parquet file.
func IsParquet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".parquet")
}

// Open opens an encounter file, choosing the format by extension: .parquet
// is Parquet and anything else is CSV. The header or schema is validated
// before Open returns.
func Open(path string) (RowReader, error) {
	if IsParquet(path) {
		r, err := OpenParquet[model.EncounterRow](path)
		if err != nil {
			return nil, err
		}
		if err := ValidateSchema(r.Schema()); err != nil {
			r.Close()
			return nil, err
		}
		return &parquetEncounters{r}, nil
	}
	r, err := OpenCSV(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Create creates a result file, choosing the format by extension.
func Create(path string) (ResultWriter, error) {
	if IsParquet(path) {
		w, err := CreateParquet[model.ResultRow](path)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	w, err := CreateCSV(path)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// parquetEncounters numbers rows as they are read; the row number is not
// stored in the file.
type parquetEncounters struct {
	*ParquetReader[model.EncounterRow]
}

func (p *parquetEncounters) Read(rows []model.EncounterRow) (int, error) {
	start := p.read
	n, err := p.ParquetReader.Read(rows)
	for i := 0; i < n; i++ {
		rows[i].RowNumber = start + int64(i) + 1
		rows[i].Invalid = ""
	}
	return n, err
}
