package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrArtifactNotFound: unter dem Schlüssel liegt kein Artefakt.
var ErrArtifactNotFound = errors.New("artifact not found")

// Schlüssel-Layout des Artefakt-Stores. Ein neuer Kandidat ersetzt das Artefakt
// unter seinem Schlüssel vollständig; in-place-Mutation gibt es nicht.
func RawExtractionKey(docID string) string {
	return fmt.Sprintf("extractions_raw/%s.json", docID)
}

func ValidExtractionKey(docID string) string {
	return fmt.Sprintf("extractions_valid/%s.json", docID)
}

func ApprovedExtractionKey(docID string) string {
	return fmt.Sprintf("extractions_approved/%s.json", docID)
}

func ValidationReportKey(docID string) string {
	return fmt.Sprintf("validation_reports/%s.json", docID)
}

// RetrievalAuditKey ist append-only: der Unix-Zeitstempel im Schlüssel sorgt
// dafür, dass jeder Retrieval-Aufruf sein eigenes Audit-Artefakt bekommt.
func RetrievalAuditKey(docID string, unix int64) string {
	return fmt.Sprintf("snippets/%s/retrieval_%d.json", docID, unix)
}

// ArtifactStore ist der pfadadressierbare Blob-Store für Extraktions-Artefakte.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// PutJSON serialisiert v und legt es unter key ab.
func PutJSON(ctx context.Context, store ArtifactStore, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", key, err)
	}
	return store.Put(ctx, key, data)
}

// GetJSON liest das Artefakt unter key und dekodiert es nach out.
func GetJSON(ctx context.Context, store ArtifactStore, key string, out any) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode artifact %s: %w", key, err)
	}
	return nil
}

// LocalStore legt Artefakte im lokalen Dateisystem ab (Entwicklung und Tests).
type LocalStore struct {
	Root string
}

// NewLocalStore erstellt einen Store unterhalb von root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

func (s *LocalStore) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactNotFound
		}
		return nil, err
	}
	return data, nil
}
