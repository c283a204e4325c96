package registry

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"retroscan/models"
)

var (
	// ErrNotFound: das referenzierte Dokument existiert nicht in der Registry.
	ErrNotFound = errors.New("document not found")
	// ErrConflict: die optimistische Vorbedingung der Transition schlug fehl.
	// Der Aufrufer muss neu lesen und neu entscheiden, nicht blind wiederholen.
	ErrConflict = errors.New("status precondition failed")
	// ErrIllegalTransition: der gewünschte Wechsel verletzt die Zustandsmaschine.
	ErrIllegalTransition = errors.New("transition not allowed by state machine")
)

// Registry ist die einzige geteilte, veränderliche Ressource der Pipeline.
// Alle Stufen serialisieren sich über Transition; direkte Status-Writes sind
// nicht vorgesehen.
type Registry struct {
	DB       *gorm.DB
	Logger   *zap.Logger
	WorkerID string
}

// New erstellt eine Registry über einer GORM-Verbindung.
func New(db *gorm.DB, logger *zap.Logger, workerID string) *Registry {
	return &Registry{DB: db, Logger: logger, WorkerID: workerID}
}

// Migrate legt die docs-Tabelle an bzw. zieht sie nach.
func (r *Registry) Migrate() error {
	return r.DB.AutoMigrate(&models.Document{})
}

// Register legt ein Dokument im Status indexed an. Erneutes Registrieren einer
// bekannten doc_id ist ein No-op und lässt den bestehenden Eintrag unberührt.
func (r *Registry) Register(docID, sourcePath string) (*models.Document, error) {
	doc := models.Document{
		DocID:   docID,
		PDFPath: sourcePath,
		Status:  models.StatusIndexed,
	}
	res := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doc_id"}},
		DoNothing: true,
	}).Create(&doc)
	if res.Error != nil {
		return nil, fmt.Errorf("register %s: %w", docID, res.Error)
	}
	if res.RowsAffected == 0 {
		// Bereits vorhanden: bestehenden Eintrag zurückgeben.
		return r.Get(docID)
	}
	r.Logger.Info("Document registered", zap.String("doc_id", docID), zap.String("pdf_path", sourcePath))
	return &doc, nil
}

// Get liest einen Registry-Eintrag.
func (r *Registry) Get(docID string) (*models.Document, error) {
	var doc models.Document
	if err := r.DB.First(&doc, "doc_id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// ListByStatus liefert alle Dokumente eines Status, deterministisch nach doc_id
// sortiert (Abfrage-Oberfläche für Orchestrator und Review-Tools).
func (r *Registry) ListByStatus(status models.Status) ([]models.Document, error) {
	var docs []models.Document
	if err := r.DB.Where("status = ?", status).Order("doc_id asc").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// Transition führt den atomaren Statuswechsel expected -> next aus.
// Die Vorbedingung steckt im WHERE der UPDATE-Anweisung (Compare-and-Swap auf
// (doc_id, status)); zwei Worker, die um dasselbe Dokument rennen, werden so
// aufgelöst, dass genau einer gewinnt und der Verlierer ErrConflict erhält.
func (r *Registry) Transition(docID string, expected, next models.Status) error {
	if !models.CanTransition(expected, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, expected, next)
	}

	now := time.Now().UTC()
	res := r.DB.Model(&models.Document{}).
		Where("doc_id = ? AND status = ?", docID, expected).
		Updates(map[string]any{
			"status":     next,
			"updated_at": now,
			"lock_owner": r.WorkerID,
			"lock_ts":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("transition %s: %w", docID, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(docID); err != nil {
			return err
		}
		return ErrConflict
	}

	r.Logger.Info("Status transition",
		zap.String("doc_id", docID),
		zap.String("from", string(expected)),
		zap.String("to", string(next)))
	return nil
}

// SetTriageLabel persistiert das advisory Triage-Label neben dem Statuswechsel.
func (r *Registry) SetTriageLabel(docID, label string) error {
	res := r.DB.Model(&models.Document{}).
		Where("doc_id = ?", docID).
		Update("triage_label", label)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendNote hängt eine Bemerkung (z.B. Review-Begründung) an den Eintrag an.
func (r *Registry) AppendNote(docID, note string) error {
	doc, err := r.Get(docID)
	if err != nil {
		return err
	}
	if doc.Notes != "" {
		note = doc.Notes + "\n" + note
	}
	return r.DB.Model(&models.Document{}).
		Where("doc_id = ?", docID).
		Update("notes", note).Error
}
