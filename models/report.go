package models

import "fmt"

// ViolationKind klassifiziert einen Integritätsbefund.
type ViolationKind string

const (
	KindInvalidVersion  ViolationKind = "INVALID_VERSION"
	KindInvalidSchema   ViolationKind = "INVALID_SCHEMA"
	KindDuplicateID     ViolationKind = "DUPLICATE_ID"
	KindMissingRef      ViolationKind = "MISSING_REF"
	KindMissingEvidence ViolationKind = "MISSING_EVIDENCE"
	KindMissingPage     ViolationKind = "MISSING_PAGE"
)

// SeverityBlocker ist die einzige Schwere in diesem Design: jeder Befund
// invalidiert den gesamten Datensatz.
const SeverityBlocker = "BLOCKER"

// Violation ist ein einzelner maschinenlesbarer Integritätsbefund.
type Violation struct {
	Severity string        `json:"severity"`
	Kind     ViolationKind `json:"kind"`
	Location string        `json:"location"`
	Message  string        `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s | %s | %s | %s", v.Severity, v.Kind, v.Location, v.Message)
}

// ValidationReport sammelt alle Befunde eines Dokuments. Ein leerer Report
// bedeutet: Datensatz ist valide (Alles-oder-Nichts-Gate).
type ValidationReport struct {
	DocID      string      `json:"doc_id"`
	Violations []Violation `json:"violations"`
}

// Valid meldet, ob der Report keinen Befund enthält.
func (r *ValidationReport) Valid() bool {
	return len(r.Violations) == 0
}

// Add hängt einen BLOCKER-Befund an den Report an.
func (r *ValidationReport) Add(kind ViolationKind, location, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{
		Severity: SeverityBlocker,
		Kind:     kind,
		Location: location,
		Message:  fmt.Sprintf(format, args...),
	})
}
