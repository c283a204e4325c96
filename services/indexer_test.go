package services

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"retroscan/models"
	"retroscan/registry"
)

func newTestIndexer(t *testing.T) (*Indexer, *registry.Registry, string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Eine einzige Verbindung, sonst sieht jede Pool-Verbindung ihre eigene
	// in-memory Datenbank.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	reg := registry.New(db, zap.NewNop(), "worker-test")
	require.NoError(t, reg.Migrate())

	pdfDir := t.TempDir()
	return NewIndexer(reg, zap.NewNop(), pdfDir), reg, pdfDir
}

func TestIndexerRegistersNewPDFs(t *testing.T) {
	ix, reg, pdfDir := newTestIndexer(t)
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "study_a.pdf"), []byte("pdf content a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "study_b.PDF"), []byte("pdf content b"), 0o644))
	// Nicht-PDFs werden ignoriert.
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "readme.txt"), []byte("ignore"), 0o644))

	added, err := ix.Run()
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	sum := sha256.Sum256([]byte("pdf content a"))
	doc, err := reg.Get(hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	assert.Equal(t, models.StatusIndexed, doc.Status)
	assert.Equal(t, filepath.Join(pdfDir, "study_a.pdf"), doc.PDFPath)
}

func TestIndexerRunIsIdempotent(t *testing.T) {
	ix, _, pdfDir := newTestIndexer(t)
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "study_a.pdf"), []byte("pdf content"), 0o644))

	added, err := ix.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = ix.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestIndexerCollapsesIdenticalContent(t *testing.T) {
	ix, reg, pdfDir := newTestIndexer(t)
	// Gleicher Inhalt unter zwei Namen -> eine doc_id.
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "copy1.pdf"), []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "copy2.pdf"), []byte("same bytes"), 0o644))

	added, err := ix.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	docs, err := reg.ListByStatus(models.StatusIndexed)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
