package models

import (
	"encoding/json"
	"fmt"
)

// SupportedSchemaVersions enumeriert die Versionen, die der Decoder und der
// Integritäts-Validator akzeptieren.
var SupportedSchemaVersions = []string{"1.0.0", "1.1.0"}

// SchemaVersionSupported meldet, ob eine Version im unterstützten Satz liegt.
func SchemaVersionSupported(v string) bool {
	for _, s := range SupportedSchemaVersions {
		if s == v {
			return true
		}
	}
	return false
}

// UnknownVersionError zeigt an, dass ein Extraktions-JSON zwar wohlgeformt war,
// aber eine nicht unterstützte schema_version trägt. Der Datensatz wird trotzdem
// best-effort dekodiert, damit der Validator die Version als Befund ausweisen kann.
type UnknownVersionError struct {
	Version string
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("unsupported schema_version %q", e.Version)
}

// Evidence ist eine Seiten-/Zitat-Belegstelle. Page ist ein Pointer, damit
// "fehlt" vom Wert 0 unterscheidbar bleibt.
type Evidence struct {
	Page  *int   `json:"page"`
	Quote string `json:"quote,omitempty"`
}

// Study beschreibt das Studiendesign der Quelle.
type Study struct {
	StudyType   string `json:"study_type,omitempty"`
	StudyDesign string `json:"study_design,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Building beschreibt das untersuchte Gebäude.
type Building struct {
	BuildingType    string `json:"building_type,omitempty"`
	LocationCountry string `json:"location_country,omitempty"`
	HVACStatus      string `json:"hvac_status,omitempty"`
}

// Unit ist die räumliche Untersuchungseinheit (Gebäude, Wohnung, Raum).
type Unit struct {
	UnitID    string    `json:"unit_id"`
	UnitType  string    `json:"unit_type,omitempty"`
	UnitLabel string    `json:"unit_label,omitempty"`
	Evidence  *Evidence `json:"evidence,omitempty"`
}

// TimeWindow definiert den Auswertungszeitraum eines Szenarios.
type TimeWindow struct {
	TimeWindowType    string `json:"time_window_type,omitempty"`
	Definition        string `json:"definition,omitempty"`
	OccupiedHoursRule string `json:"occupied_hours_rule,omitempty"`
}

// Scenario ist ein klimatischer/zeitlicher Auswertungskontext.
type Scenario struct {
	ScenarioID    string      `json:"scenario_id"`
	ScenarioLabel string      `json:"scenario_label,omitempty"`
	HeatContext   string      `json:"heat_context,omitempty"`
	TimeWindow    *TimeWindow `json:"time_window,omitempty"`
	Evidence      *Evidence   `json:"evidence,omitempty"`
}

// Condition ist ein Gebäudezustand, entweder baseline oder retrofit.
type Condition struct {
	ConditionID    string    `json:"condition_id"`
	ConditionRole  string    `json:"condition_role,omitempty"`
	PackageLabel   string    `json:"package_label,omitempty"`
	StrategyFamily []string  `json:"strategy_family,omitempty"`
	Evidence       *Evidence `json:"evidence,omitempty"`
}

// Comparison verknüpft Unit, Szenario und ein Baseline/Retrofit-Paar.
// Bewusst ohne eigene Evidence: der Beleg hängt an den referenzierten Entitäten.
type Comparison struct {
	ComparisonID        string `json:"comparison_id"`
	UnitID              string `json:"unit_id"`
	ScenarioID          string `json:"scenario_id"`
	BaselineConditionID string `json:"baseline_condition_id"`
	RetrofitConditionID string `json:"retrofit_condition_id"`
	ComparatorType      string `json:"comparator_type,omitempty"`
	BoundaryMatchLevel  string `json:"boundary_match_level,omitempty"`
}

// Measurement ist ein numerisches Vorher/Nachher-Ergebnis einer Comparison.
type Measurement struct {
	ComparisonID        string    `json:"comparison_id"`
	OutcomeFamily       string    `json:"outcome_family,omitempty"`
	Metric              string    `json:"metric_A,omitempty"`
	ComfortStandard     string    `json:"comfort_standard,omitempty"`
	ThresholdDefinition string    `json:"threshold_definition,omitempty"`
	AggregationPeriod   string    `json:"aggregation_period,omitempty"`
	BaselineValue       *float64  `json:"baseline_value"`
	RetrofitValue       *float64  `json:"retrofit_value"`
	Unit                string    `json:"unit,omitempty"`
	NumericSource       string    `json:"numeric_source_quality,omitempty"`
	IsPrimary           bool      `json:"is_primary,omitempty"`
	PrimaryRuleApplied  string    `json:"primary_rule_applied,omitempty"`
	Evidence            *Evidence `json:"evidence,omitempty"`
}

// ExtractionRecord ist der graphförmige Kandidaten-Datensatz eines Dokuments.
// Er wird als Artefakt pro doc_id gespeichert und ist erst nach bestandener
// Integritätsprüfung vertrauenswürdig.
type ExtractionRecord struct {
	SchemaVersion string        `json:"schema_version"`
	ProjectID     string        `json:"project_id,omitempty"`
	ReferenceID   string        `json:"reference_id,omitempty"`
	DocID         string        `json:"doc_id"`
	Study         *Study        `json:"study,omitempty"`
	Building      *Building     `json:"building,omitempty"`
	Units         []Unit        `json:"units"`
	Scenarios     []Scenario    `json:"scenarios"`
	Conditions    []Condition   `json:"conditions"`
	Comparisons   []Comparison  `json:"comparisons"`
	Measurements  []Measurement `json:"measurements"`
}

// DecodeRecord dekodiert ein Extraktions-JSON versionsgetaggt in die typisierte
// Struktur. Unbekannte Versionen liefern den best-effort dekodierten Datensatz
// zusammen mit einem *UnknownVersionError zurück; syntaktisch kaputtes JSON
// liefert (nil, err).
func DecodeRecord(data []byte) (*ExtractionRecord, error) {
	var probe struct {
		SchemaVersion string `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("extraction record is not valid JSON: %w", err)
	}

	var rec ExtractionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("extraction record does not match schema shape: %w", err)
	}

	// 1.0.0 und 1.1.0 teilen sich die Struktur; 1.1.0 erlaubt lediglich
	// zusätzliche optionale Felder.
	if !SchemaVersionSupported(probe.SchemaVersion) {
		return &rec, &UnknownVersionError{Version: probe.SchemaVersion}
	}
	return &rec, nil
}
