package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"retroscan/models"
)

// stubBackend liefert eine feste Antwort bzw. einen festen Fehler.
type stubBackend struct {
	response string
	err      error
}

func (s stubBackend) Name() string { return "stub" }

func (s stubBackend) GenerateJSON(_ context.Context, _ string) (string, error) {
	return s.response, s.err
}

func rankedPages() []models.RankedPage {
	return []models.RankedPage{
		{Page: models.Page{PageNumber: 1, Text: "cool roof retrofit"}, Score: 2.5},
		{Page: models.Page{PageNumber: 3, Text: "overheating hours"}, Score: 1.1},
	}
}

func TestExtractWithMockBackend(t *testing.T) {
	d := NewDriver(MockBackend{}, zap.NewNop(), time.Second)

	rec, err := d.Extract(context.Background(), "doc1", rankedPages(), "{}")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "doc1", rec.DocID)
	assert.Equal(t, "1.0.0", rec.SchemaVersion)
	require.Len(t, rec.Comparisons, 1)
	assert.Equal(t, rec.Comparisons[0].ComparisonID, rec.Measurements[0].ComparisonID)
}

func TestExtractBackendFailure(t *testing.T) {
	d := NewDriver(stubBackend{err: errors.New("quota exceeded")}, zap.NewNop(), time.Second)

	_, err := d.Extract(context.Background(), "doc1", rankedPages(), "{}")
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "stub", backendErr.Backend)
}

func TestExtractMalformedResponse(t *testing.T) {
	d := NewDriver(stubBackend{response: "this is not json"}, zap.NewNop(), time.Second)

	_, err := d.Extract(context.Background(), "doc1", rankedPages(), "{}")
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
}

func TestExtractUnknownVersionIsNotABackendError(t *testing.T) {
	// Wohlgeformt, aber unbekannte Version: der Datensatz läuft weiter in die
	// Validierung, die die Version als Befund ausweist.
	d := NewDriver(stubBackend{response: `{"schema_version":"9.9.9","doc_id":"doc1","units":[],"scenarios":[],"conditions":[],"comparisons":[],"measurements":[]}`}, zap.NewNop(), time.Second)

	rec, err := d.Extract(context.Background(), "doc1", rankedPages(), "{}")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "9.9.9", rec.SchemaVersion)
}

func TestExtractNoPages(t *testing.T) {
	d := NewDriver(MockBackend{}, zap.NewNop(), time.Second)

	_, err := d.Extract(context.Background(), "doc1", nil, "{}")
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
}

func TestExtractWithoutTimeout(t *testing.T) {
	// Timeout 0 heißt kein Deadline-Limit, nicht sofortiger Abbruch.
	d := NewDriver(MockBackend{}, zap.NewNop(), 0)

	rec, err := d.Extract(context.Background(), "doc1", rankedPages(), "{}")
	require.NoError(t, err)
	assert.Equal(t, "doc1", rec.DocID)
}

func TestExtractFillsMissingDocID(t *testing.T) {
	d := NewDriver(stubBackend{response: `{"schema_version":"1.0.0","doc_id":"","units":[],"scenarios":[],"conditions":[],"comparisons":[],"measurements":[]}`}, zap.NewNop(), time.Second)

	rec, err := d.Extract(context.Background(), "doc7", rankedPages(), "{}")
	require.NoError(t, err)
	assert.Equal(t, "doc7", rec.DocID)
}

func TestBuildPromptContainsPagesAndSchema(t *testing.T) {
	prompt := buildPrompt("doc1", rankedPages(), `{"type":"object"}`)
	assert.Contains(t, prompt, "Page 1:")
	assert.Contains(t, prompt, "Page 3:")
	assert.Contains(t, prompt, "cool roof retrofit")
	assert.Contains(t, prompt, `"doc_id": "doc1"`)
	assert.Contains(t, prompt, `{"type":"object"}`)
}
