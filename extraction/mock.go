package extraction

import (
	"context"
	"encoding/json"
	"regexp"

	"retroscan/models"
)

var docIDRe = regexp.MustCompile(`"doc_id"\s*:\s*"([^"]+)"`)

// MockBackend liefert deterministisch einen validen Beispiel-Datensatz und
// erlaubt damit Pipeline-Läufe ohne API-Schlüssel.
type MockBackend struct{}

func (MockBackend) Name() string { return "mock" }

// GenerateJSON baut einen referentiell geschlossenen Minimal-Datensatz.
// Die doc_id wird aus dem Prompt übernommen, damit das Artefakt zum Dokument passt.
func (MockBackend) GenerateJSON(_ context.Context, prompt string) (string, error) {
	docID := "MOCK_DOC"
	if m := docIDRe.FindStringSubmatch(prompt); m != nil {
		docID = m[1]
	}

	page1, page2, page3 := 1, 2, 3
	baseline, retrofitted := 500.0, 100.0
	rec := models.ExtractionRecord{
		SchemaVersion: "1.0.0",
		ProjectID:     "MOCK_PROJ",
		ReferenceID:   "MOCK_REF",
		DocID:         docID,
		Study: &models.Study{
			StudyType:   "simulation",
			StudyDesign: "Case study of retrofit",
			Notes:       "Mock extraction",
		},
		Building: &models.Building{
			BuildingType:    "residential",
			LocationCountry: "UK",
			HVACStatus:      "mixed_mode",
		},
		Units: []models.Unit{{
			UnitID:    "U1",
			UnitType:  "building",
			UnitLabel: "Semi-detached house",
			Evidence:  &models.Evidence{Page: &page1, Quote: "a semi-detached house in London"},
		}},
		Scenarios: []models.Scenario{{
			ScenarioID:    "S1",
			ScenarioLabel: "Typical Summer",
			HeatContext:   "typical_summer",
			TimeWindow: &models.TimeWindow{
				TimeWindowType:    "seasonal_summer",
				Definition:        "June to August",
				OccupiedHoursRule: "24h",
			},
			Evidence: &models.Evidence{Page: &page2, Quote: "Summer period (Jun-Aug)"},
		}},
		Conditions: []models.Condition{
			{
				ConditionID:    "C0",
				ConditionRole:  "baseline",
				PackageLabel:   "Existing",
				StrategyFamily: []string{"other"},
				Evidence:       &models.Evidence{Page: &page1, Quote: "Baseline condition"},
			},
			{
				ConditionID:    "C1",
				ConditionRole:  "retrofit",
				PackageLabel:   "Cool Roof",
				StrategyFamily: []string{"cool_roof"},
				Evidence:       &models.Evidence{Page: &page2, Quote: "Cool roof installation"},
			},
		},
		Comparisons: []models.Comparison{{
			ComparisonID:        "K1",
			UnitID:              "U1",
			ScenarioID:          "S1",
			BaselineConditionID: "C0",
			RetrofitConditionID: "C1",
			ComparatorType:      "before_after_same_building_controlled",
			BoundaryMatchLevel:  "high",
		}},
		Measurements: []models.Measurement{{
			ComparisonID:        "K1",
			OutcomeFamily:       "A",
			Metric:              "overheating_hours",
			ComfortStandard:     "TM52",
			ThresholdDefinition: "Criterion 1",
			AggregationPeriod:   "occupied",
			BaselineValue:       &baseline,
			RetrofitValue:       &retrofitted,
			Unit:                "h",
			NumericSource:       "text",
			IsPrimary:           true,
			PrimaryRuleApplied:  "standard_priority",
			Evidence:            &models.Evidence{Page: &page3, Quote: "Hours reduced from 500 to 100"},
		}},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
