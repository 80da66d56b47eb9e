package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"claim-dossier/llm"
	"claim-dossier/models"
)

// EmbeddingService berechnet Embeddings in sequentiellen Batches.
type EmbeddingService struct {
	Embedder  llm.Embedder
	BatchSize int
	Logger    *zap.Logger
}

func NewEmbeddingService(embedder llm.Embedder, batchSize int, logger *zap.Logger) *EmbeddingService {
	if batchSize <= 0 {
		batchSize = 96
	}
	return &EmbeddingService{Embedder: embedder, BatchSize: batchSize, Logger: logger}
}

// EmbedTexts liefert genau einen Vektor pro Text, in Eingabereihenfolge.
func (s *EmbeddingService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.BatchSize {
		end := min(start+s.BatchSize, len(texts))
		vectors, err := s.Embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors", start, end, len(vectors))
		}
		for _, v := range vectors {
			if dim := s.Embedder.Dimension(); dim > 0 && len(v) != dim {
				return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(v), dim)
			}
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// EmbedChunks setzt die Vektoren für Chunks beliebig vieler Papers. Die Texte laufen
// gemeinsam durch EmbedTexts, die Batch-Grenzen hängen also nicht an Paper-Grenzen.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	for i := range chunks {
		chunks[i].Embedding = models.Vector(vectors[i])
	}
	return nil
}
