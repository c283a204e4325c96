package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"retroscan/models"
	"retroscan/storage"
)

// BM25-Parameter (übliche Defaults).
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Ranker wählt die relevanteste Seitenteilmenge für die Extraktion aus.
// Der Index wird pro Aufruf frisch über der Seitenmenge gebaut; kanonischer
// Zustand entsteht hier nicht, nur ein Audit-Artefakt pro Auswahl.
type Ranker struct {
	Logger *zap.Logger
	Store  storage.ArtifactStore
}

// NewRanker erstellt einen Ranker, der seine Auswahl im Artefakt-Store protokolliert.
func NewRanker(logger *zap.Logger, store storage.ArtifactStore) *Ranker {
	return &Ranker{Logger: logger, Store: store}
}

// auditRecord ist das unveränderliche Protokoll einer Retrieval-Auswahl.
type auditRecord struct {
	DocID         string    `json:"doc_id"`
	Queries       []string  `json:"queries"`
	SelectedPages []int     `json:"selected_pages"`
	Scores        []float64 `json:"scores"`
	Timestamp     time.Time `json:"timestamp"`
}

// Rank bewertet jede Seite gegen alle Queries und behält pro Seite den
// MAXIMALEN Score (Max-Pooling: eine Seite, die für irgendein Thema stark
// relevant ist, schlägt eine Seite, die für viele Themen schwach relevant ist).
// Sortierung: Score absteigend, bei Gleichstand ursprüngliche Seitenreihenfolge;
// danach Kappung auf topK. Leere Seitenmenge -> leeres Ergebnis, kein Fehler.
func (r *Ranker) Rank(ctx context.Context, docID string, pages []models.Page, queries []string, topK int) ([]models.RankedPage, error) {
	if len(pages) == 0 {
		return nil, nil
	}

	idx := buildIndex(pages)

	maxScores := make([]float64, len(pages))
	for _, query := range queries {
		for i := range pages {
			if score := idx.score(i, tokenize(query)); score > maxScores[i] {
				maxScores[i] = score
			}
		}
	}

	ranked := make([]models.RankedPage, len(pages))
	for i, p := range pages {
		ranked[i] = models.RankedPage{Page: p, Score: maxScores[i]}
	}
	// Stabil: Seiten mit gleichem Score behalten ihre Dokumentreihenfolge.
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	audit := auditRecord{
		DocID:     docID,
		Queries:   queries,
		Timestamp: time.Now().UTC(),
	}
	for _, p := range ranked {
		audit.SelectedPages = append(audit.SelectedPages, p.PageNumber)
		audit.Scores = append(audit.Scores, p.Score)
	}
	key := storage.RetrievalAuditKey(docID, audit.Timestamp.UnixNano())
	if err := storage.PutJSON(ctx, r.Store, key, audit); err != nil {
		// Das Audit-Protokoll ist Pflicht für die Reproduzierbarkeit der
		// Extraktion; ohne Protokoll keine Auswahl.
		return nil, err
	}

	r.Logger.Debug("Retrieval selection",
		zap.String("doc_id", docID),
		zap.Ints("pages", audit.SelectedPages))
	return ranked, nil
}

// index ist ein Bag-of-Words-Index mit BM25-Scoring über der Seitenmenge.
type index struct {
	termFreqs []map[string]int
	docLens   []int
	avgDocLen float64
	docFreq   map[string]int
	total     int
}

func buildIndex(pages []models.Page) *index {
	idx := &index{
		termFreqs: make([]map[string]int, len(pages)),
		docLens:   make([]int, len(pages)),
		docFreq:   make(map[string]int),
		total:     len(pages),
	}
	var totalLen int
	for i, p := range pages {
		terms := tokenize(p.Text)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t := range tf {
			idx.docFreq[t]++
		}
		idx.termFreqs[i] = tf
		idx.docLens[i] = len(terms)
		totalLen += len(terms)
	}
	if idx.total > 0 {
		idx.avgDocLen = float64(totalLen) / float64(idx.total)
	}
	return idx
}

func (idx *index) score(doc int, queryTerms []string) float64 {
	if idx.docLens[doc] == 0 || idx.avgDocLen == 0 {
		return 0
	}
	var score float64
	for _, term := range queryTerms {
		tf := float64(idx.termFreqs[doc][term])
		if tf == 0 {
			continue
		}
		df := float64(idx.docFreq[term])
		idf := math.Log(1 + (float64(idx.total)-df+0.5)/(df+0.5))
		weight := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(idx.docLens[doc])/idx.avgDocLen))
		score += idf * weight
	}
	return score
}

// tokenize normalisiert (NFKC) und zerlegt Text in kleingeschriebene
// alphanumerische Terme.
func tokenize(text string) []string {
	text = norm.NFKC.String(strings.ToLower(text))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
