package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"retroscan/models"
)

// PageSource liest den seitenweisen Rohtext, den der externe
// PDF-Extraktionsschritt unter pages_text/<doc_id>/page_NNN.txt ablegt.
type PageSource struct {
	Root string
}

// NewPageSource erstellt eine Quelle über dem pages_text-Verzeichnis.
func NewPageSource(root string) *PageSource {
	return &PageSource{Root: root}
}

// Load liefert alle Seiten eines Dokuments, nach Seitennummer sortiert.
// Ein fehlendes Verzeichnis bedeutet: der externe Schritt ist noch nicht
// gelaufen -> ErrArtifactNotFound.
func (p *PageSource) Load(docID string) ([]models.Page, error) {
	dir := filepath.Join(p.Root, docID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pages for %s: %w", docID, ErrArtifactNotFound)
		}
		return nil, err
	}

	var pages []models.Page
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "page_") || !strings.HasSuffix(name, ".txt") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "page_"), ".txt"))
		if err != nil {
			continue
		}
		text, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		pages = append(pages, models.Page{PageNumber: num, Text: string(text)})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })
	return pages, nil
}

// FullText konkateniert alle Seiten zu einem Volltext (Input für die Triage).
func (p *PageSource) FullText(docID string) (string, error) {
	pages, err := p.Load(docID)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, page := range pages {
		sb.WriteString(page.Text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
