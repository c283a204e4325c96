package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"retroscan/models"
	"retroscan/storage"
)

// ExportConfig ist bewusst eigenständig: der Export läuft als Cron-Job
// außerhalb des Servers und braucht nur einen Ausschnitt der Umgebung.
type ExportConfig struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	ArtifactBackend string `envconfig:"ARTIFACT_BACKEND" default:"local"`
	ArtifactDir     string `envconfig:"ARTIFACT_DIR" default:"artifacts"`

	StratoS3Key    string `envconfig:"STRATO_S3_KEY"`
	StratoS3Secret string `envconfig:"STRATO_S3_SECRET"`
	StratoS3URL    string `envconfig:"STRATO_S3_URL"`
	StratoS3Region string `envconfig:"STRATO_S3_REGION"`
	StratoS3Bucket string `envconfig:"STRATO_S3_BUCKET"`

	ExportDir   string `envconfig:"EXPORT_DIR" default:"exports"`
	KeepExports int    `envconfig:"KEEP_EXPORTS" default:"4"`
}

func main() {
	log.Println("Starte Export-Prozess...")

	_ = godotenv.Load()
	var cfg ExportConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Fehler beim Laden der Konfiguration: %v", err)
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Fehler beim Verbinden mit der Registry: %v", err)
	}

	var docs []models.Document
	if err := db.Where("status = ?", models.StatusApproved).Order("doc_id asc").Find(&docs).Error; err != nil {
		log.Fatalf("Fehler beim Lesen der Registry: %v", err)
	}
	log.Printf("%d freigegebene Dokumente gefunden", len(docs))

	ctx := context.Background()
	store, s3Client, err := createStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Fehler beim Erstellen des Artefakt-Stores: %v", err)
	}

	// 1. Freigegebene Artefakte einsammeln und flach klopfen
	csvData, rows, err := buildCSV(ctx, store, docs)
	if err != nil {
		log.Fatalf("Fehler beim Erstellen des CSV-Exports: %v", err)
	}
	log.Printf("%d Messungs-Zeilen exportiert", rows)

	// 2. Komprimieren und ablegen
	fileName := fmt.Sprintf("measurements-%s.csv.gz", time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	compressed, err := gzipBytes(csvData)
	if err != nil {
		log.Fatalf("Fehler beim Komprimieren: %v", err)
	}

	if s3Client != nil {
		if err := uploadToS3(ctx, s3Client, cfg, fileName, compressed); err != nil {
			log.Fatalf("Fehler beim Hochladen nach S3: %v", err)
		}
		log.Printf("Export erfolgreich nach s3://%s/%s/%s hochgeladen", cfg.StratoS3Bucket, cfg.ExportDir, fileName)

		// 3. Alte Exporte rotieren
		if err := rotateExports(ctx, s3Client, cfg); err != nil {
			log.Fatalf("Fehler bei der Rotation alter Exporte: %v", err)
		}
	} else {
		path := filepath.Join(cfg.ExportDir, fileName)
		if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
			log.Fatalf("Fehler beim Anlegen des Export-Verzeichnisses: %v", err)
		}
		if err := os.WriteFile(path, compressed, 0o644); err != nil {
			log.Fatalf("Fehler beim Schreiben des Exports: %v", err)
		}
		log.Printf("Export erfolgreich nach %s geschrieben", path)
	}

	log.Println("Export-Prozess erfolgreich abgeschlossen.")
}

func createStore(ctx context.Context, cfg ExportConfig) (storage.ArtifactStore, *s3.Client, error) {
	if cfg.ArtifactBackend != "s3" {
		return storage.NewLocalStore(cfg.ArtifactDir), nil, nil
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: cfg.StratoS3URL}, nil
	})
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.StratoS3Key, cfg.StratoS3Secret, "")),
		awsconfig.WithRegion(cfg.StratoS3Region),
	)
	if err != nil {
		return nil, nil, err
	}
	client := s3.NewFromConfig(awsCfg)
	return storage.NewS3Store(client, cfg.StratoS3Bucket), client, nil
}

// buildCSV liest jedes freigegebene Artefakt und schreibt pro Messung eine
// Zeile. Dokumente ohne Artefakt brechen den Lauf ab: ein freigegebenes
// Dokument ohne freigegebenes Artefakt ist ein Zustandsfehler.
func buildCSV(ctx context.Context, store storage.ArtifactStore, docs []models.Document) ([]byte, int, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"doc_id", "comparison_id", "unit_id", "scenario_id",
		"baseline_condition_id", "retrofit_condition_id",
		"outcome_family", "metric", "unit",
		"baseline_value", "retrofit_value",
		"comfort_standard", "aggregation_period", "is_primary", "evidence_page",
	}
	if err := w.Write(header); err != nil {
		return nil, 0, err
	}

	var rows int
	for _, doc := range docs {
		var rec models.ExtractionRecord
		if err := storage.GetJSON(ctx, store, storage.ApprovedExtractionKey(doc.DocID), &rec); err != nil {
			return nil, 0, fmt.Errorf("approved artifact for %s: %w", doc.DocID, err)
		}

		comparisons := make(map[string]models.Comparison, len(rec.Comparisons))
		for _, cmp := range rec.Comparisons {
			comparisons[cmp.ComparisonID] = cmp
		}

		for _, m := range rec.Measurements {
			cmp := comparisons[m.ComparisonID]
			row := []string{
				doc.DocID, m.ComparisonID, cmp.UnitID, cmp.ScenarioID,
				cmp.BaselineConditionID, cmp.RetrofitConditionID,
				m.OutcomeFamily, m.Metric, m.Unit,
				formatValue(m.BaselineValue), formatValue(m.RetrofitValue),
				m.ComfortStandard, m.AggregationPeriod, strconv.FormatBool(m.IsPrimary),
				formatPage(m.Evidence),
			}
			if err := w.Write(row); err != nil {
				return nil, 0, err
			}
			rows++
		}
	}

	w.Flush()
	return buf.Bytes(), rows, w.Error()
}

func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func formatPage(ev *models.Evidence) string {
	if ev == nil || ev.Page == nil {
		return ""
	}
	return strconv.Itoa(*ev.Page)
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func uploadToS3(ctx context.Context, client *s3.Client, cfg ExportConfig, name string, data []byte) error {
	key := cfg.ExportDir + "/" + name
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(cfg.StratoS3Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func rotateExports(ctx context.Context, client *s3.Client, cfg ExportConfig) error {
	output, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(cfg.StratoS3Bucket),
		Prefix: aws.String(cfg.ExportDir + "/"),
	})
	if err != nil {
		return err
	}

	if len(output.Contents) <= cfg.KeepExports {
		log.Printf("Weniger als %d Exporte vorhanden, keine Rotation nötig.", cfg.KeepExports)
		return nil
	}

	sort.Slice(output.Contents, func(i, j int) bool {
		return output.Contents[i].LastModified.After(*output.Contents[j].LastModified)
	})

	for _, obj := range output.Contents[cfg.KeepExports:] {
		log.Printf("Lösche alten Export: %s", *obj.Key)
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(cfg.StratoS3Bucket),
			Key:    obj.Key,
		})
		if err != nil {
			log.Printf("Fehler beim Löschen von %s: %v", *obj.Key, err)
		}
	}

	return nil
}
