package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"retroscan/models"
	"retroscan/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
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
	return reg
}

func TestRunStageAdvancesDocuments(t *testing.T) {
	reg := newTestRegistry(t)
	for _, id := range []string{"a", "b", "c"} {
		_, err := reg.Register(id, "pdfs/"+id+".pdf")
		require.NoError(t, err)
	}

	o := NewOrchestrator(reg, zap.NewNop(), 2, time.Second)
	stage := func(_ context.Context, _ models.Document) (models.Status, error) {
		return models.StatusTriagedNoData, nil
	}

	stats, err := o.RunStage(context.Background(), "triage", models.StatusIndexed, stage)
	require.NoError(t, err)
	assert.Equal(t, Stats{Processed: 3}, stats)

	docs, err := reg.ListByStatus(models.StatusTriagedNoData)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestRunStageFailureLeavesStatusUntouched(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Register("a", "pdfs/a.pdf")
	require.NoError(t, err)

	o := NewOrchestrator(reg, zap.NewNop(), 1, time.Second)
	stage := func(_ context.Context, _ models.Document) (models.Status, error) {
		return "", errors.New("page text missing")
	}

	stats, err := o.RunStage(context.Background(), "triage", models.StatusIndexed, stage)
	require.NoError(t, err)
	assert.Equal(t, Stats{Failed: 1}, stats)

	// Beim nächsten Lauf ist das Dokument wieder dran.
	doc, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusIndexed, doc.Status)
}

func TestRunStageSkipsOnLostRace(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Register("a", "pdfs/a.pdf")
	require.NoError(t, err)

	o := NewOrchestrator(reg, zap.NewNop(), 1, time.Second)
	// Die Stage simuliert einen konkurrierenden Worker, der das Dokument
	// zwischen Listen und Committen bereits bewegt hat.
	stage := func(_ context.Context, doc models.Document) (models.Status, error) {
		require.NoError(t, reg.Transition(doc.DocID, models.StatusIndexed, models.StatusTriagedExtractable))
		return models.StatusTriagedNoData, nil
	}

	stats, err := o.RunStage(context.Background(), "triage", models.StatusIndexed, stage)
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 1}, stats)

	doc, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusTriagedExtractable, doc.Status)
}

func TestRunStageEmptyCandidateSet(t *testing.T) {
	reg := newTestRegistry(t)

	o := NewOrchestrator(reg, zap.NewNop(), 1, time.Second)
	called := false
	stage := func(_ context.Context, _ models.Document) (models.Status, error) {
		called = true
		return models.StatusTriagedNoData, nil
	}

	stats, err := o.RunStage(context.Background(), "triage", models.StatusIndexed, stage)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.False(t, called)
}
