package encounterio

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/msdrg/internal/model"
)

// ValidateSchema checks that the Parquet schema contains every required
// encounter column.
func ValidateSchema(schema *parquet.Schema) error {
	columns := make(map[string]bool)
	for _, field := range schema.Fields() {
		columns[strings.ToLower(field.Name())] = true
	}
	return checkColumns(columns)
}

func checkColumns(columns map[string]bool) error {
	var missing []string
	for _, col := range model.RequiredEncounterColumns() {
		if !columns[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
