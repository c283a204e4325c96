package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Dokument-Quellen (externe Kollaborateure befüllen diese Verzeichnisse)
	PDFDir       string `envconfig:"PDF_DIR" default:"pdfs"`
	PagesTextDir string `envconfig:"PAGES_TEXT_DIR" default:"pages_text"`

	// Artefakt-Store: "local" oder "s3"
	ArtifactBackend string `envconfig:"ARTIFACT_BACKEND" default:"local"`
	ArtifactDir     string `envconfig:"ARTIFACT_DIR" default:"artifacts"`

	StratoS3Key    string `envconfig:"STRATO_S3_KEY"`
	StratoS3Secret string `envconfig:"STRATO_S3_SECRET"`
	StratoS3URL    string `envconfig:"STRATO_S3_URL"`
	StratoS3Region string `envconfig:"STRATO_S3_REGION"`
	StratoS3Bucket string `envconfig:"STRATO_S3_BUCKET"`

	// Extraktion (Gemini-Backend bzw. deterministischer Mock)
	GeminiAPIKey      string        `envconfig:"GEMINI_API_KEY"`
	ExtractionModel   string        `envconfig:"EXTRACTION_MODEL" default:"gemini-1.5-pro"`
	ExtractionMock    bool          `envconfig:"EXTRACTION_MOCK" default:"false"`
	ExtractionTimeout time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"120s"`
	SchemaPath        string        `envconfig:"SCHEMA_PATH" default:"schemas/core_extraction.schema.json"`

	// Retrieval
	RetrievalTopK    int    `envconfig:"RETRIEVAL_TOP_K" default:"15"`
	RetrievalQueries string `envconfig:"RETRIEVAL_QUERIES" default:""`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 2 * * *"`
	WorkerCount  int    `envconfig:"WORKER_COUNT" default:"5"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// QueryTemplates liefert die Retrieval-Queries aus der Umgebung oder den
// eingebauten Default-Satz für Retrofit/Overheating-Literatur.
func (c *Config) QueryTemplates() []string {
	if strings.TrimSpace(c.RetrievalQueries) != "" {
		var out []string
		for _, q := range strings.Split(c.RetrievalQueries, ";") {
			if q = strings.TrimSpace(q); q != "" {
				out = append(out, q)
			}
		}
		return out
	}
	return []string{
		"overheating hours before and after retrofit",
		"indoor operative temperature baseline retrofit comparison",
		"passive cooling shading cool roof insulation intervention",
		"degree hours discomfort TM52 EN 16798 criteria",
		"simulation results summer period occupied hours",
	}
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
