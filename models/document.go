package models

import (
	"time"
)

// Status beschreibt die Lebenszyklus-Stufe eines Dokuments in der Pipeline.
type Status string

const (
	StatusIndexed            Status = "indexed"
	StatusTriagedExtractable Status = "triaged_extractable"
	StatusTriagedMaybe       Status = "triaged_maybe"
	StatusTriagedNoData      Status = "triaged_no_data"
	StatusExtractedRaw       Status = "extracted_raw"
	StatusValidatedOK        Status = "validated_ok"
	StatusNeedsReview        Status = "needs_review"
	StatusApproved           Status = "approved"
	StatusRejected           Status = "rejected"
)

// transitions ist die einzige Quelle der Wahrheit für erlaubte Statuswechsel.
// Strikter DAG mit genau einer Rückkante: needs_review -> extracted_raw
// (manuelle Re-Extraktion nach Review).
var transitions = map[Status][]Status{
	StatusIndexed:            {StatusTriagedExtractable, StatusTriagedMaybe, StatusTriagedNoData},
	StatusTriagedExtractable: {StatusExtractedRaw},
	StatusExtractedRaw:       {StatusValidatedOK, StatusNeedsReview},
	StatusNeedsReview:        {StatusExtractedRaw, StatusRejected},
	StatusValidatedOK:        {StatusApproved, StatusRejected},
}

// CanTransition meldet, ob der Wechsel from -> to laut Zustandsmaschine erlaubt ist.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal meldet, ob ein Status keine automatisierte Weiterverarbeitung mehr zulässt.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusTriagedMaybe, StatusTriagedNoData:
		return true
	}
	return false
}

// Document repräsentiert den Registry-Eintrag eines Quelldokuments.
// doc_id ist der SHA-256-Hash des PDF-Inhalts; identische Dateien kollabieren
// damit auf einen Eintrag. Einträge werden nie gelöscht (Audit).
type Document struct {
	DocID     string    `json:"doc_id" gorm:"primaryKey"`
	PDFPath   string    `json:"pdf_path"`
	Status    Status    `json:"status" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TriageLabel string `json:"triage_label,omitempty" gorm:"index"`
	Notes       string `json:"notes,omitempty" gorm:"type:text"`

	// Advisory-Lock für nebenläufige Worker; die eigentliche Serialisierung
	// läuft über die CAS-Transition, nicht über diese Felder.
	LockOwner string     `json:"lock_owner,omitempty"`
	LockTS    *time.Time `json:"lock_ts,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Document) TableName() string {
	return "docs"
}
