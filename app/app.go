// Package app baut die Abhängigkeiten des Prozesses aus der Konfiguration zusammen.
// Server und CLI teilen sich diese Verdrahtung.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"claim-dossier/config"
	"claim-dossier/llm"
	"claim-dossier/providers"
	"claim-dossier/providers/europepmc"
	"claim-dossier/providers/pubmed"
	"claim-dossier/providers/semanticscholar"
	"claim-dossier/providers/unpaywall"
	"claim-dossier/queue"
	"claim-dossier/services"
	"claim-dossier/storage"
	"claim-dossier/vectorindex"
)

// OpenDB verbindet sich mit PostgreSQL.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
}

// OpenRedis verbindet sich mit Redis und prüft die Verbindung.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Providers erzeugt die aktivierten Such-Provider; unbekannte Namen werden geloggt und übersprungen.
func Providers(cfg *config.Config, log *zap.Logger) []providers.Provider {
	var enabled []providers.Provider
	for _, name := range cfg.Providers() {
		switch name {
		case "pubmed":
			enabled = append(enabled, pubmed.NewFetcher(cfg, log))
		case "europepmc":
			enabled = append(enabled, europepmc.NewFetcher(cfg, log))
		case "semanticscholar":
			enabled = append(enabled, semanticscholar.NewFetcher(cfg, log))
		default:
			log.Warn("Unknown provider in config", zap.String("provider_name", name))
		}
	}
	return enabled
}

// VectorIndex wählt die Index-Implementierung nach VECTOR_STORE.
func VectorIndex(cfg *config.Config, db *gorm.DB, log *zap.Logger) (vectorindex.Index, error) {
	switch cfg.VectorStore {
	case "", "postgres":
		return vectorindex.NewPGVector(db, cfg.EmbeddingDimensions, log), nil
	case "memory":
		log.Warn("In-memory vector index: chunks are lost on restart")
		return vectorindex.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_STORE %q", cfg.VectorStore)
	}
}

// Migrate legt alle Tabellen an, inklusive pgvector-Chunks.
func Migrate(ctx context.Context, store *storage.Store, index vectorindex.Index) error {
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("auto-migration: %w", err)
	}
	if pg, ok := index.(*vectorindex.PGVector); ok {
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("pgvector migration: %w", err)
		}
	}
	return nil
}

// Archive liefert das S3-Archiv für Dossiers oder nil, wenn keins konfiguriert ist.
func Archive(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage.Bucket, error) {
	if !cfg.ArchiveEnabled() {
		return nil, nil
	}
	client, err := storage.NewS3Client(ctx, storage.S3Settings{
		URL:    cfg.S3URL,
		Region: cfg.S3Region,
		Key:    cfg.S3Key,
		Secret: cfg.S3Secret,
	})
	if err != nil {
		return nil, err
	}
	return storage.NewBucket(client, cfg.S3Bucket, cfg.S3URL, log), nil
}

// DossierService verdrahtet die komplette Pipeline.
func DossierService(cfg *config.Config, store *storage.Store, index vectorindex.Index, archive *storage.Bucket, log *zap.Logger) *services.DossierService {
	client := llm.NewClient(llm.Options{
		BaseURL:         cfg.LLMBaseURL,
		APIKey:          cfg.LLMAPIKey,
		CompletionModel: cfg.LLMModel,
		EmbeddingModel:  cfg.EmbeddingModel,
		Dimensions:      cfg.EmbeddingDimensions,
		Temperature:     cfg.LLMTemperature,
		Timeout:         cfg.LLMTimeout,
	}, log)

	svc := &services.DossierService{
		Store:     store,
		Search:    services.NewSearchService(Providers(cfg, log), cfg.SearchMaxResults, cfg.SearchTimeout, log),
		Chunker:   services.NewChunker(cfg.ChunkMaxTokens, cfg.ChunkOverlapTokens),
		Embedder:  services.NewEmbeddingService(client, cfg.EmbeddingBatchSize, log),
		Index:     index,
		Extractor: services.NewEvidenceExtractor(client, log),
		Verdicts:  services.NewVerdictSynthesizer(client, log),
		Options: services.DossierOptions{
			MaxEvidencePapers: cfg.EvidenceMaxPapers,
			ChunksPerPaper:    cfg.EvidenceChunksPerPaper,
			MinSimilarity:     cfg.RetrievalMinSimilarity,
			FullTextLookups:   cfg.UnpaywallMaxPerRun,
		},
		Logger: log,
	}
	if up := unpaywall.NewFetcher(cfg, log); up.Enabled() {
		svc.FullText = up
	}
	if archive != nil {
		svc.Archive = archive
	}
	return svc
}

// Pool baut den Worker-Pool um die Pipeline.
func Pool(cfg *config.Config, q *queue.Queue, store *storage.Store, svc *services.DossierService, name string, log *zap.Logger) *queue.Pool {
	return &queue.Pool{
		Queue: q,
		Jobs:  store,
		Handler: func(ctx context.Context, req services.JobRequest) error {
			_, err := svc.Run(ctx, req, nil)
			return err
		},
		Concurrency: cfg.WorkerConcurrency,
		JobTimeout:  cfg.JobTimeout,
		MaxAttempts: cfg.JobMaxAttempts,
		Name:        name,
		Logger:      log,
	}
}
