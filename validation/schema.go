package validation

import (
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"

	"retroscan/models"
)

// SchemaChecker prüft rohes Extraktions-JSON gegen das extern geladene
// JSON-Schema, bevor die Integritätsregeln laufen. Schema-Verstöße sind Daten,
// keine Exceptions: sie landen als INVALID_SCHEMA-Befunde im Report.
type SchemaChecker struct {
	loader gojsonschema.JSONLoader
	raw    string
}

// LoadSchemaChecker lädt das Schema-Dokument von Platte.
func LoadSchemaChecker(path string) (*SchemaChecker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	loader := gojsonschema.NewStringLoader(string(data))
	// Früh scheitern, wenn das Schema-Dokument selbst kaputt ist.
	if _, err := gojsonschema.NewSchema(loader); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return &SchemaChecker{loader: loader, raw: string(data)}, nil
}

// SchemaJSON liefert das rohe Schema-Dokument (für den Extraktions-Prompt).
func (c *SchemaChecker) SchemaJSON() string {
	return c.raw
}

// Check validiert das rohe JSON und hängt Feld-Befunde an den Report an.
func (c *SchemaChecker) Check(rawJSON []byte, report *models.ValidationReport) {
	result, err := gojsonschema.Validate(c.loader, gojsonschema.NewBytesLoader(rawJSON))
	if err != nil {
		report.Add(models.KindInvalidSchema, "(root)", "schema validation failed: %v", err)
		return
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		report.Add(models.KindInvalidSchema, field, "%s", desc.Description())
	}
}
