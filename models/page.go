package models

// Page ist der Rohtext einer einzelnen PDF-Seite (Output des externen
// Text-Extraktionsschritts).
type Page struct {
	PageNumber int    `json:"page"`
	Text       string `json:"text"`
}

// RankedPage ist eine Seite mit ihrem Relevanz-Score aus dem Retrieval.
type RankedPage struct {
	Page
	Score float64 `json:"score"`
}
