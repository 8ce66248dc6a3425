package model

// EncounterRow mirrors the input schema for a single encounter. Code lists
// are ';'-separated so CSV and Parquet inputs share one layout.
type EncounterRow struct {
	EncounterID     string  `parquet:"encounter_id"`
	PrincipalDx     string  `parquet:"principal_dx"`
	SecondaryDx     *string `parquet:"secondary_dx,optional"`
	Procedures      *string `parquet:"procedures,optional"`
	Age             int32   `parquet:"age"`
	Sex             *string `parquet:"sex,optional"`
	DischargeStatus *string `parquet:"discharge_status,optional"`

	// RowNumber is the 1-based data row position in the input file.
	RowNumber int64 `parquet:"-"`
	// Invalid describes a field that could not be read. The row is reported
	// as failed instead of grouped.
	Invalid string `parquet:"-"`
}

// Value returns *p, or "" for nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ptr returns a pointer to s, or nil when s is empty.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
