package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"retroscan/models"
)

// BackendError zeigt an, dass der externe Extraktions-Aufruf fehlgeschlagen ist
// oder nicht-parsebare Ausgabe geliefert hat. Bewusst getrennt von
// Validierungsbefunden: das Dokument bleibt im Vor-Extraktions-Status und ist
// beim nächsten Orchestrator-Lauf erneut dran.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("extraction backend %s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Driver komponiert den gerankten Seitenkontext und delegiert an das Backend.
type Driver struct {
	Backend Backend
	Logger  *zap.Logger
	Timeout time.Duration
}

// NewDriver erstellt einen Extraction-Driver.
func NewDriver(backend Backend, logger *zap.Logger, timeout time.Duration) *Driver {
	return &Driver{Backend: backend, Logger: logger, Timeout: timeout}
}

// Extract baut den Prompt aus den gerankten Seiten und dem Schema, ruft das
// Backend unter Timeout auf und dekodiert das Ergebnis versionsgetaggt.
// Wohlgeformtes JSON mit unbekannter schema_version ist KEIN Backend-Fehler;
// es läuft weiter in die Validierung, die die Version als Befund ausweist.
func (d *Driver) Extract(ctx context.Context, docID string, pages []models.RankedPage, schemaJSON string) (*models.ExtractionRecord, error) {
	if len(pages) == 0 {
		return nil, &BackendError{Backend: d.Backend.Name(), Err: errors.New("no ranked pages to extract from")}
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	prompt := buildPrompt(docID, pages, schemaJSON)
	d.Logger.Info("Calling extraction backend",
		zap.String("doc_id", docID),
		zap.String("backend", d.Backend.Name()),
		zap.Int("context_pages", len(pages)))

	raw, err := d.Backend.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, &BackendError{Backend: d.Backend.Name(), Err: err}
	}

	rec, err := models.DecodeRecord([]byte(raw))
	if err != nil {
		var unknown *models.UnknownVersionError
		if errors.As(err, &unknown) {
			d.Logger.Warn("Backend returned unsupported schema version",
				zap.String("doc_id", docID),
				zap.String("schema_version", unknown.Version))
			return rec, nil
		}
		return nil, &BackendError{Backend: d.Backend.Name(), Err: err}
	}

	if rec.DocID == "" {
		rec.DocID = docID
	}
	return rec, nil
}

// buildPrompt formuliert den Instruktionsvertrag für das Backend. Das Backend
// soll die Regeln einhalten, garantiert ist das nicht -- das Gate ist der Validator.
func buildPrompt(docID string, pages []models.RankedPage, schemaJSON string) string {
	var ctxBlob strings.Builder
	for i, p := range pages {
		if i > 0 {
			ctxBlob.WriteString("\n---\n")
		}
		fmt.Fprintf(&ctxBlob, "Page %d:\n%s", p.PageNumber, p.Text)
	}

	return fmt.Sprintf(`You are a scientific data extractor. Extract structured retrofit/overheating claims from the following pages according to the provided JSON schema.

CRITICAL VALIDATION RULES:
1. Referential integrity: every measurement MUST reference an existing comparison_id; every comparison MUST reference existing unit_id, scenario_id, baseline_condition_id and retrofit_condition_id.
2. Uniqueness: all IDs (unit_id, scenario_id, condition_id, comparison_id) MUST be unique.
3. Roles: baseline conditions carry condition_role="baseline", retrofit conditions condition_role="retrofit".
4. No invention: do NOT invent numeric values. If a value is missing, do not emit the measurement.
5. Evidence: every unit, scenario, condition and measurement MUST cite a page number.

Set "doc_id": "%s".

TEXT:
%s

SCHEMA:
%s

Return ONLY valid JSON.`, docID, ctxBlob.String(), schemaJSON)
}
