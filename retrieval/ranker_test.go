package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"retroscan/models"
	"retroscan/storage"
)

func newTestRanker(t *testing.T) (*Ranker, string) {
	t.Helper()
	dir := t.TempDir()
	return NewRanker(zap.NewNop(), storage.NewLocalStore(dir)), dir
}

func TestRankEmptyPageSet(t *testing.T) {
	r, _ := newTestRanker(t)

	ranked, err := r.Rank(context.Background(), "doc1", nil, []string{"overheating"}, 5)
	require.NoError(t, err)
	assert.Nil(t, ranked)
}

func TestRankRelevanceOrdering(t *testing.T) {
	r, _ := newTestRanker(t)
	pages := []models.Page{
		{PageNumber: 1, Text: "economic analysis of housing stock and policy"},
		{PageNumber: 2, Text: "cool roof retrofit reduced overheating hours substantially"},
		{PageNumber: 3, Text: "references and acknowledgements"},
	}

	ranked, err := r.Rank(context.Background(), "doc1", pages, []string{"cool roof overheating"}, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, 2, ranked[0].PageNumber)
	assert.Greater(t, ranked[0].Score, 0.0)
	// Seiten ohne Query-Treffer bekommen Score 0.
	assert.Equal(t, 0.0, ranked[1].Score)
	assert.Equal(t, 0.0, ranked[2].Score)
}

func TestRankMaxPoolingAcrossQueries(t *testing.T) {
	r, _ := newTestRanker(t)
	// Seite 1 ist stark für die erste Query, Seite 2 stark für die zweite.
	// Seite 3 trifft BEIDE Queries schwach: die Summe ihrer Einzelscores
	// übersteigt den stärksten Einzelscore der Themen-Seiten, ihr Maximum
	// nicht. Unter Max-Pooling landet sie deshalb hinter beiden; eine
	// Summen-Bildung würde sie fälschlich nach vorn sortieren.
	pages := []models.Page{
		{PageNumber: 1, Text: "shading shading shading shading"},
		{PageNumber: 2, Text: "insulation insulation insulation insulation"},
		{PageNumber: 3, Text: "shading insulation window wall"},
	}
	queries := []string{"shading", "insulation"}

	ranked, err := r.Rank(context.Background(), "doc1", pages, queries, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, 3, ranked[2].PageNumber)
	assert.Greater(t, ranked[0].Score, ranked[2].Score)
	assert.Greater(t, ranked[1].Score, ranked[2].Score)
	// Die schwache Doppel-Treffer-Seite hat trotzdem einen positiven Score.
	assert.Greater(t, ranked[2].Score, 0.0)
}

func TestRankTopKTruncation(t *testing.T) {
	r, _ := newTestRanker(t)
	pages := []models.Page{
		{PageNumber: 1, Text: "retrofit retrofit retrofit"},
		{PageNumber: 2, Text: "retrofit retrofit"},
		{PageNumber: 3, Text: "retrofit"},
		{PageNumber: 4, Text: "unrelated"},
	}

	ranked, err := r.Rank(context.Background(), "doc1", pages, []string{"retrofit"}, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, 1, ranked[0].PageNumber)
	assert.Equal(t, 2, ranked[1].PageNumber)
}

func TestRankTieKeepsDocumentOrder(t *testing.T) {
	r, _ := newTestRanker(t)
	// Identischer Text -> identischer Score; die Dokumentreihenfolge bleibt.
	pages := []models.Page{
		{PageNumber: 7, Text: "overheating in dwellings"},
		{PageNumber: 2, Text: "overheating in dwellings"},
		{PageNumber: 5, Text: "overheating in dwellings"},
	}

	ranked, err := r.Rank(context.Background(), "doc1", pages, []string{"overheating"}, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, 7, ranked[0].PageNumber)
	assert.Equal(t, 2, ranked[1].PageNumber)
	assert.Equal(t, 5, ranked[2].PageNumber)
}

func TestRankWritesAuditArtifact(t *testing.T) {
	r, dir := newTestRanker(t)
	pages := []models.Page{
		{PageNumber: 1, Text: "overheating hours before and after retrofit"},
	}

	_, err := r.Rank(context.Background(), "doc42", pages, []string{"overheating"}, 1)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "snippets", "doc42"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Jeder Aufruf protokolliert separat (append-only).
	_, err = r.Rank(context.Background(), "doc42", pages, []string{"overheating"}, 1)
	require.NoError(t, err)
	entries, err = os.ReadDir(filepath.Join(dir, "snippets", "doc42"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestTokenizeNormalizes(t *testing.T) {
	terms := tokenize("Cool-Roof, Überhitzung: 26.5°C!")
	assert.Equal(t, []string{"cool", "roof", "überhitzung", "26", "5", "c"}, terms)
}
