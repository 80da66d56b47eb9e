package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"claim-dossier/models"
)

func TestEmbedChunksBatchesAcrossPapers(t *testing.T) {
	emb := &fakeEmbedder{dim: 8}
	svc := NewEmbeddingService(emb, 2, zap.NewNop())
	chunks := []models.Chunk{
		{PaperID: 1, ChunkIndex: 0, Content: "vitamin d"},
		{PaperID: 1, ChunkIndex: 1, Content: "common cold"},
		{PaperID: 2, ChunkIndex: 0, Content: "placebo"},
		{PaperID: 3, ChunkIndex: 0, Content: "adults"},
		{PaperID: 3, ChunkIndex: 1, Content: "winter"},
	}
	if err := svc.EmbedChunks(context.Background(), chunks); err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
	if emb.calls != 3 || emb.texts != 5 {
		t.Fatalf("calls = %d texts = %d, want 3 and 5", emb.calls, emb.texts)
	}
	for i, c := range chunks {
		if len(c.Embedding) != 8 {
			t.Fatalf("chunk %d has no embedding: %+v", i, c)
		}
	}
}

func TestEmbedChunksPropagatesError(t *testing.T) {
	svc := NewEmbeddingService(&fakeEmbedder{dim: 8, err: errors.New("rate limited")}, 0, zap.NewNop())
	err := svc.EmbedChunks(context.Background(), []models.Chunk{{Content: "x"}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestEmbedTextsRejectsWrongDimension(t *testing.T) {
	svc := NewEmbeddingService(&wrongDimEmbedder{}, 0, zap.NewNop())
	if _, err := svc.EmbedTexts(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected dimension error")
	}
}

type wrongDimEmbedder struct{}

func (wrongDimEmbedder) Dimension() int { return 4 }

func (wrongDimEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, 3)
	}
	return out, nil
}
