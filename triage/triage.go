package triage

import (
	"regexp"

	"retroscan/models"
)

// Label ist das advisory Triage-Ergebnis. Es steuert nur den ersten
// Statuswechsel; das eigentliche Gate ist die nachgelagerte Validierung.
type Label string

const (
	LabelExtractable Label = "extractable"
	LabelMaybe       Label = "maybe"
	LabelNoData      Label = "no_data"
)

// Vokabulare aus dem Projektkontext: Interventions- und Outcome-Begriffe der
// Retrofit/Overheating-Literatur.
var (
	interventionRe = regexp.MustCompile(`(?i)retrofit|renovat|refurbish|adaptation|passive cooling|shading|cool roof|PCM|green roof|insulation|natural ventilation`)
	outcomeRe      = regexp.MustCompile(`(?i)overheating|discomfort hours|degree-hours|operative temperature|indoor temperature|TM52|ASHRAE|EN 16798`)
)

// Classify ordnet dem konkatenierten Volltext eines Dokuments ein Label zu.
// Deterministische, reine Funktion: beide Vokabulare treffen -> extractable,
// nur Intervention -> maybe, sonst no_data.
func Classify(fullText string) Label {
	hasIntervention := interventionRe.MatchString(fullText)
	hasOutcome := outcomeRe.MatchString(fullText)

	switch {
	case hasIntervention && hasOutcome:
		return LabelExtractable
	case hasIntervention:
		return LabelMaybe
	default:
		return LabelNoData
	}
}

// StatusFor mappt ein Label auf den zugehörigen Registry-Status.
func StatusFor(label Label) models.Status {
	switch label {
	case LabelExtractable:
		return models.StatusTriagedExtractable
	case LabelMaybe:
		return models.StatusTriagedMaybe
	default:
		return models.StatusTriagedNoData
	}
}
