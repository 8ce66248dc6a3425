package model

// Column describes one input column.
type Column struct {
	Name     string
	Required bool
}

// EncounterColumns lists the input columns in canonical order.
var EncounterColumns = []Column{
	{Name: "encounter_id", Required: true},
	{Name: "principal_dx", Required: true},
	{Name: "secondary_dx"},
	{Name: "procedures"},
	{Name: "age", Required: true},
	{Name: "sex"},
	{Name: "discharge_status"},
}

// EncounterColumnNames returns the column names in canonical order.
func EncounterColumnNames() []string {
	cols := make([]string, len(EncounterColumns))
	for i, c := range EncounterColumns {
		cols[i] = c.Name
	}
	return cols
}

// RequiredEncounterColumns returns the names of columns every input must have.
func RequiredEncounterColumns() []string {
	var cols []string
	for _, c := range EncounterColumns {
		if c.Required {
			cols = append(cols, c.Name)
		}
	}
	return cols
}
