package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"retroscan/models"
	"retroscan/registry"
)

var stageCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_documents_total",
		Help: "Documents handled per stage, by outcome.",
	},
	[]string{"stage", "outcome"},
)

func init() {
	prometheus.MustRegister(stageCounter)
}

// Stats fasst das Ergebnis eines Stage-Laufs zusammen.
type Stats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// StageFunc transformiert ein einzelnes Dokument und nennt den Folgestatus.
// Fehler lassen den Dokumentstatus unangetastet (at-least-once Retry-Semantik);
// partielle Status-Commits gibt es nicht.
type StageFunc func(ctx context.Context, doc models.Document) (models.Status, error)

// Orchestrator treibt Dokumente durch die Registry-Zustände. Die Registry ist
// der einzige Serialisierungspunkt: der Zuschlag für ein Dokument fällt über
// die optimistische Transition, nicht über ein zweites Lesen.
type Orchestrator struct {
	Registry    *registry.Registry
	Logger      *zap.Logger
	WorkerCount int
	DocTimeout  time.Duration
}

// NewOrchestrator erstellt den Orchestrator.
func NewOrchestrator(reg *registry.Registry, logger *zap.Logger, workers int, docTimeout time.Duration) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{Registry: reg, Logger: logger, WorkerCount: workers, DocTimeout: docTimeout}
}

// RunStage zieht alle Dokumente im Filter-Status und lässt die Stage-Funktion
// in einem begrenzten Worker-Pool über sie laufen. Pro Dokument gilt ein
// Timeout; ein fehlgeschlagenes Dokument blockiert nie die übrigen
// (Fehlerisolation pro Dokument, nicht pro Batch).
func (o *Orchestrator) RunStage(ctx context.Context, stageName string, filter models.Status, stage StageFunc) (Stats, error) {
	docs, err := o.Registry.ListByStatus(filter)
	if err != nil {
		return Stats{}, err
	}
	log := o.Logger.With(zap.String("stage", stageName))
	log.Info("Stage run starting", zap.Int("candidates", len(docs)))

	var (
		mu        sync.Mutex
		stats     Stats
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, o.WorkerCount)
	)

	for _, doc := range docs {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(doc models.Document) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome := o.runOne(ctx, log, filter, stage, doc)
			stageCounter.WithLabelValues(stageName, outcome).Inc()

			mu.Lock()
			switch outcome {
			case "processed":
				stats.Processed++
			case "skipped":
				stats.Skipped++
			default:
				stats.Failed++
			}
			mu.Unlock()
		}(doc)
	}

	wg.Wait()
	log.Info("Stage run finished",
		zap.Int("processed", stats.Processed),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

// runOne verarbeitet genau ein Dokument und liefert das Outcome-Label.
// Stage-Fehler werden hier an der Grenze gefangen und gezählt; sie erreichen
// die Batch-Schleife nie.
func (o *Orchestrator) runOne(ctx context.Context, log *zap.Logger, expected models.Status, stage StageFunc, doc models.Document) string {
	docCtx := ctx
	if o.DocTimeout > 0 {
		var cancel context.CancelFunc
		docCtx, cancel = context.WithTimeout(ctx, o.DocTimeout)
		defer cancel()
	}

	next, err := stage(docCtx, doc)
	if err != nil {
		log.Warn("Stage failed, document left unchanged",
			zap.String("doc_id", doc.DocID),
			zap.Error(err))
		return "failed"
	}

	if err := o.Registry.Transition(doc.DocID, expected, next); err != nil {
		if errors.Is(err, registry.ErrConflict) {
			// Ein anderer Worker hat das Dokument inzwischen bewegt:
			// überspringen, nicht blind wiederholen.
			log.Info("Transition lost to concurrent worker, skipping",
				zap.String("doc_id", doc.DocID))
			return "skipped"
		}
		log.Error("Transition failed",
			zap.String("doc_id", doc.DocID),
			zap.Error(err))
		return "failed"
	}
	return "processed"
}
