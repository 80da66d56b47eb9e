package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"claim-dossier/storage"
)

type BackupConfig struct {
	PostgresHost     string `envconfig:"POSTGRES_HOST" required:"true"`
	PostgresUser     string `envconfig:"POSTGRES_USER" required:"true"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	PostgresDB       string `envconfig:"POSTGRES_DB" required:"true"`
	BackupBucket     string `envconfig:"BACKUP_S3_BUCKET" required:"true"`
	BackupEndpoint   string `envconfig:"BACKUP_S3_ENDPOINT" required:"true"`
	BackupAccessKey  string `envconfig:"BACKUP_S3_ACCESS_KEY" required:"true"`
	BackupSecretKey  string `envconfig:"BACKUP_S3_SECRET_KEY" required:"true"`
	BackupRegion     string `envconfig:"BACKUP_S3_REGION" required:"true"`
	BackupPrefix     string `envconfig:"BACKUP_PREFIX" default:"backups/"`
	KeepBackups      int    `envconfig:"KEEP_BACKUPS" default:"4"`
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()
	logging.Info("Starte Backup-Prozess...")

	var cfg BackupConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logging.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}
	ctx := context.Background()

	// 1. Datenbank-Dump erstellen (Papers, Jobs, Ergebnisse, Chunks)
	dumpData, err := createDump(ctx, cfg)
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des DB-Dumps", zap.Error(err))
	}

	// 2. S3-Ziel
	client, err := storage.NewS3Client(ctx, storage.S3Settings{
		URL:    cfg.BackupEndpoint,
		Region: cfg.BackupRegion,
		Key:    cfg.BackupAccessKey,
		Secret: cfg.BackupSecretKey,
	})
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des S3-Clients", zap.Error(err))
	}
	bucket := storage.NewBucket(client, cfg.BackupBucket, cfg.BackupEndpoint, logging)

	// 3. Backup hochladen
	key := fmt.Sprintf("%sbackup-%s.sql.gz", cfg.BackupPrefix, time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	link, err := bucket.Put(ctx, key, dumpData, "application/gzip")
	if err != nil {
		logging.Fatal("Fehler beim Hochladen nach S3", zap.Error(err))
	}
	logging.Info("Backup erfolgreich hochgeladen", zap.String("url", link), zap.Int("bytes", len(dumpData)))

	// 4. Alte Backups rotieren
	deleted, err := bucket.Rotate(ctx, cfg.BackupPrefix, cfg.KeepBackups)
	if err != nil {
		logging.Fatal("Fehler bei der Rotation alter Backups", zap.Error(err))
	}
	logging.Info("Backup-Prozess erfolgreich abgeschlossen.", zap.Int("deleted", deleted))
}

func createDump(ctx context.Context, cfg BackupConfig) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.PostgresHost,
		"-U", cfg.PostgresUser,
		"-d", cfg.PostgresDB,
		"-w", // Passwort wird über PGPASSWORD bereitgestellt
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.PostgresPassword))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if _, err := io.Copy(gzipWriter, stdout); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
