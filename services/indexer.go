package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"retroscan/registry"
)

// Indexer entdeckt PDFs im Quellverzeichnis und registriert sie in der
// Registry. doc_id ist der SHA-256-Hash des Dateiinhalts; identische Dateien
// (auch unter verschiedenen Namen) kollabieren auf einen Eintrag.
type Indexer struct {
	Registry *registry.Registry
	Logger   *zap.Logger
	PDFDir   string
}

// NewIndexer erstellt einen Indexer über dem PDF-Verzeichnis.
func NewIndexer(reg *registry.Registry, logger *zap.Logger, pdfDir string) *Indexer {
	return &Indexer{Registry: reg, Logger: logger, PDFDir: pdfDir}
}

// Run scannt das Verzeichnis und registriert jede PDF idempotent.
// Liefert die Anzahl neu aufgenommener Dokumente.
func (ix *Indexer) Run() (int, error) {
	entries, err := os.ReadDir(ix.PDFDir)
	if err != nil {
		return 0, fmt.Errorf("read pdf dir %s: %w", ix.PDFDir, err)
	}

	var added int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(ix.PDFDir, entry.Name())

		docID, err := hashFile(path)
		if err != nil {
			ix.Logger.Warn("Skipping unreadable PDF", zap.String("path", path), zap.Error(err))
			continue
		}

		if _, err := ix.Registry.Get(docID); err == nil {
			continue
		}
		if _, err := ix.Registry.Register(docID, path); err != nil {
			ix.Logger.Error("Registration failed", zap.String("path", path), zap.Error(err))
			continue
		}
		added++
	}

	ix.Logger.Info("Index run finished", zap.Int("new_documents", added))
	return added, nil
}

// hashFile berechnet den SHA-256-Hash eines Dateiinhalts in Streaming-Form.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
