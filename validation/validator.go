package validation

import (
	"fmt"

	"retroscan/models"
)

// Validate prüft einen Kandidaten-Datensatz auf strukturelle, referentielle und
// Beleg-Integrität. Reine, totale, deterministische Funktion: wirft nie,
// liefert immer einen Report. Die Regelkategorien laufen unabhängig und ohne
// Kurzschluss, damit ein Reviewer alle Probleme auf einmal sieht. Jeder Befund
// ist BLOCKER: ein einziger invalidiert den gesamten Datensatz.
func Validate(rec *models.ExtractionRecord) *models.ValidationReport {
	report := &models.ValidationReport{}
	if rec == nil {
		report.Add(models.KindInvalidSchema, "(root)", "extraction record is missing")
		return report
	}
	report.DocID = rec.DocID

	checkVersion(rec, report)
	checkUniqueness(rec, report)
	checkReferences(rec, report)
	checkEvidence(rec, report)

	return report
}

func checkVersion(rec *models.ExtractionRecord, report *models.ValidationReport) {
	if !models.SchemaVersionSupported(rec.SchemaVersion) {
		report.Add(models.KindInvalidVersion, "schema_version",
			"version %q is not supported (supported: %v)", rec.SchemaVersion, models.SupportedSchemaVersions)
	}
}

// checkUniqueness stellt sicher, dass innerhalb jeder Entitäts-Sammlung keine
// zwei Einträge dieselbe ID tragen. Der Befund zeigt auf das zweite Vorkommen.
func checkUniqueness(rec *models.ExtractionRecord, report *models.ValidationReport) {
	collections := []struct {
		name string
		ids  []string
	}{
		{"units", unitIDs(rec)},
		{"scenarios", scenarioIDs(rec)},
		{"conditions", conditionIDs(rec)},
		{"comparisons", comparisonIDs(rec)},
	}

	for _, c := range collections {
		seen := make(map[string]bool, len(c.ids))
		for i, id := range c.ids {
			if seen[id] {
				report.Add(models.KindDuplicateID, fmt.Sprintf("%s[%d]", c.name, i),
					"ID %q is duplicated within %s", id, c.name)
				continue
			}
			seen[id] = true
		}
	}
}

// checkReferences prüft, dass jeder Fremdschlüssel auf eine existierende
// Entität der richtigen Sammlung zeigt: genau ein MISSING_REF pro gebrochener
// Referenz.
func checkReferences(rec *models.ExtractionRecord, report *models.ValidationReport) {
	units := idSet(unitIDs(rec))
	scenarios := idSet(scenarioIDs(rec))
	conditions := idSet(conditionIDs(rec))
	comparisons := idSet(comparisonIDs(rec))

	for i, k := range rec.Comparisons {
		if !units[k.UnitID] {
			report.Add(models.KindMissingRef, fmt.Sprintf("comparisons[%d].unit_id", i),
				"%q not found in units", k.UnitID)
		}
		if !scenarios[k.ScenarioID] {
			report.Add(models.KindMissingRef, fmt.Sprintf("comparisons[%d].scenario_id", i),
				"%q not found in scenarios", k.ScenarioID)
		}
		if !conditions[k.BaselineConditionID] {
			report.Add(models.KindMissingRef, fmt.Sprintf("comparisons[%d].baseline_condition_id", i),
				"%q not found in conditions", k.BaselineConditionID)
		}
		if !conditions[k.RetrofitConditionID] {
			report.Add(models.KindMissingRef, fmt.Sprintf("comparisons[%d].retrofit_condition_id", i),
				"%q not found in conditions", k.RetrofitConditionID)
		}
	}

	for i, m := range rec.Measurements {
		if !comparisons[m.ComparisonID] {
			report.Add(models.KindMissingRef, fmt.Sprintf("measurements[%d].comparison_id", i),
				"%q not found in comparisons", m.ComparisonID)
		}
	}
}

// checkEvidence verlangt für Units, Szenarien, Conditions und Measurements ein
// Evidence-Objekt mit Seitenangabe. Comparisons sind ausgenommen: ihr Beleg
// hängt an den referenzierten Entitäten.
func checkEvidence(rec *models.ExtractionRecord, report *models.ValidationReport) {
	check := func(collection string, i int, ev *models.Evidence) {
		switch {
		case ev == nil:
			report.Add(models.KindMissingEvidence, fmt.Sprintf("%s[%d]", collection, i),
				"missing evidence object")
		case ev.Page == nil:
			report.Add(models.KindMissingPage, fmt.Sprintf("%s[%d].evidence", collection, i),
				"missing page number")
		}
	}

	for i, u := range rec.Units {
		check("units", i, u.Evidence)
	}
	for i, s := range rec.Scenarios {
		check("scenarios", i, s.Evidence)
	}
	for i, c := range rec.Conditions {
		check("conditions", i, c.Evidence)
	}
	for i, m := range rec.Measurements {
		check("measurements", i, m.Evidence)
	}
}

func unitIDs(rec *models.ExtractionRecord) []string {
	ids := make([]string, len(rec.Units))
	for i, u := range rec.Units {
		ids[i] = u.UnitID
	}
	return ids
}

func scenarioIDs(rec *models.ExtractionRecord) []string {
	ids := make([]string, len(rec.Scenarios))
	for i, s := range rec.Scenarios {
		ids[i] = s.ScenarioID
	}
	return ids
}

func conditionIDs(rec *models.ExtractionRecord) []string {
	ids := make([]string, len(rec.Conditions))
	for i, c := range rec.Conditions {
		ids[i] = c.ConditionID
	}
	return ids
}

func comparisonIDs(rec *models.ExtractionRecord) []string {
	ids := make([]string, len(rec.Comparisons))
	for i, k := range rec.Comparisons {
		ids[i] = k.ComparisonID
	}
	return ids
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
