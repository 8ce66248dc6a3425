package grouper

import "fmt"

// UnknownDiagnosisError is returned when the principal diagnosis is not in the
// diagnosis index. No DRG is assigned.
type UnknownDiagnosisError struct {
	Code string
}

func (e *UnknownDiagnosisError) Error() string {
	return fmt.Sprintf("unknown principal diagnosis %q", e.Code)
}

// InvalidEncounterError reports an encounter that violates the input contract.
type InvalidEncounterError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidEncounterError) Error() string {
	return fmt.Sprintf("invalid encounter: %s %q %s", e.Field, e.Value, e.Reason)
}
