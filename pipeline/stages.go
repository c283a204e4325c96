package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"retroscan/extraction"
	"retroscan/models"
	"retroscan/registry"
	"retroscan/retrieval"
	"retroscan/storage"
	"retroscan/triage"
	"retroscan/validation"
)

// Stages bündelt die Stage-Funktionen der Pipeline mit ihren Abhängigkeiten.
type Stages struct {
	Registry *registry.Registry
	Pages    *storage.PageSource
	Ranker   *retrieval.Ranker
	Driver   *extraction.Driver
	Schema   *validation.SchemaChecker
	Store    storage.ArtifactStore
	Logger   *zap.Logger

	Queries []string
	TopK    int
}

// TriageStage klassifiziert den Volltext und meldet den Ziel-Status.
// Leerer Text ist ein Stage-Fehler: Status bleibt, Retry beim nächsten Lauf.
func (s *Stages) TriageStage(_ context.Context, doc models.Document) (models.Status, error) {
	fullText, err := s.Pages.FullText(doc.DocID)
	if err != nil {
		return "", fmt.Errorf("load pages: %w", err)
	}
	if fullText == "" {
		return "", fmt.Errorf("no page text available for %s", doc.DocID)
	}

	label := triage.Classify(fullText)
	if err := s.Registry.SetTriageLabel(doc.DocID, string(label)); err != nil {
		return "", fmt.Errorf("persist triage label: %w", err)
	}

	s.Logger.Info("Document triaged",
		zap.String("doc_id", doc.DocID),
		zap.String("label", string(label)))
	return triage.StatusFor(label), nil
}

// ExtractStage: Retrieval -> Backend -> Roh-Artefakt. Ein neuer Kandidat
// ersetzt das Roh-Artefakt vollständig (supersede, nie patchen).
func (s *Stages) ExtractStage(ctx context.Context, doc models.Document) (models.Status, error) {
	pages, err := s.Pages.Load(doc.DocID)
	if err != nil {
		return "", fmt.Errorf("load pages: %w", err)
	}

	ranked, err := s.Ranker.Rank(ctx, doc.DocID, pages, s.Queries, s.TopK)
	if err != nil {
		return "", fmt.Errorf("rank pages: %w", err)
	}

	rec, err := s.Driver.Extract(ctx, doc.DocID, ranked, s.Schema.SchemaJSON())
	if err != nil {
		return "", err
	}

	if err := storage.PutJSON(ctx, s.Store, storage.RawExtractionKey(doc.DocID), rec); err != nil {
		return "", fmt.Errorf("persist raw extraction: %w", err)
	}
	return models.StatusExtractedRaw, nil
}

// ValidateStage liest das Roh-Artefakt, lässt Schema-Check und
// Integritäts-Validator laufen und persistiert den Report in jedem Fall.
// Null Befunde -> Kopie in den Valid-Store und validated_ok, sonst needs_review.
func (s *Stages) ValidateStage(ctx context.Context, doc models.Document) (models.Status, error) {
	rawData, err := s.Store.Get(ctx, storage.RawExtractionKey(doc.DocID))
	if err != nil {
		return "", fmt.Errorf("load raw extraction: %w", err)
	}

	report := &models.ValidationReport{DocID: doc.DocID}
	s.Schema.Check(rawData, report)

	rec, err := models.DecodeRecord(rawData)
	if rec != nil {
		integrity := validation.Validate(rec)
		report.Violations = append(report.Violations, integrity.Violations...)
	} else if err != nil {
		// Artefakt ist syntaktisch kaputt; das dokumentiert der Report.
		report.Add(models.KindInvalidSchema, "(root)", "raw artifact is not decodable: %v", err)
	}

	if err := storage.PutJSON(ctx, s.Store, storage.ValidationReportKey(doc.DocID), report); err != nil {
		return "", fmt.Errorf("persist validation report: %w", err)
	}

	if !report.Valid() {
		s.Logger.Info("Validation found violations",
			zap.String("doc_id", doc.DocID),
			zap.Int("violations", len(report.Violations)))
		return models.StatusNeedsReview, nil
	}

	// Valide: Kandidat wird unverändert in den Valid-Store übernommen.
	var pretty json.RawMessage = rawData
	if err := storage.PutJSON(ctx, s.Store, storage.ValidExtractionKey(doc.DocID), pretty); err != nil {
		return "", fmt.Errorf("persist valid extraction: %w", err)
	}
	s.Logger.Info("Validation passed", zap.String("doc_id", doc.DocID))
	return models.StatusValidatedOK, nil
}

// RunAll fährt einen kompletten Pipeline-Durchlauf: Triage, Extraktion,
// Validierung -- in dieser Reihenfolge, jeweils über den Orchestrator.
func RunAll(ctx context.Context, o *Orchestrator, s *Stages) map[string]Stats {
	results := make(map[string]Stats)

	stats, err := o.RunStage(ctx, "triage", models.StatusIndexed, s.TriageStage)
	if err != nil {
		o.Logger.Error("Triage stage aborted", zap.Error(err))
	}
	results["triage"] = stats

	stats, err = o.RunStage(ctx, "extract", models.StatusTriagedExtractable, s.ExtractStage)
	if err != nil {
		o.Logger.Error("Extract stage aborted", zap.Error(err))
	}
	results["extract"] = stats

	stats, err = o.RunStage(ctx, "validate", models.StatusExtractedRaw, s.ValidateStage)
	if err != nil {
		o.Logger.Error("Validate stage aborted", zap.Error(err))
	}
	results["validate"] = stats

	return results
}
