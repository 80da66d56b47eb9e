package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"claim-dossier/models"
)

// PGVector stores chunks in Postgres using the pgvector extension.
type PGVector struct {
	db        *gorm.DB
	dimension int
	logger    *zap.Logger
}

func NewPGVector(db *gorm.DB, dimension int, logger *zap.Logger) *PGVector {
	return &PGVector{db: db, dimension: dimension, logger: logger}
}

// Migrate creates the extension, the chunks table and the HNSW cosine index.
// The embedding column is fixed-dimension, so the table is created here rather than by AutoMigrate.
func (p *PGVector) Migrate(ctx context.Context) error {
	if p.dimension <= 0 {
		return errors.New("invalid dimension")
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
  id BIGSERIAL PRIMARY KEY,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  paper_id BIGINT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
  chunk_index INTEGER NOT NULL,
  content TEXT NOT NULL,
  estimated_tokens INTEGER NOT NULL DEFAULT 0,
  embedding vector(%d) NOT NULL,
  UNIQUE (paper_id, chunk_index)
)`, p.dimension),
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if err := p.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Insert writes chunks once; existing (paper_id, chunk_index) rows are left untouched.
func (p *PGVector) Insert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		if len(c.Embedding) != p.dimension {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(c.Embedding), p.dimension)
		}
	}
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "paper_id"}, {Name: "chunk_index"}},
			DoNothing: true,
		}).
		CreateInBatches(chunks, 100).Error
}

func (p *PGVector) Search(ctx context.Context, q Query) ([]models.ChunkMatch, error) {
	if len(q.Embedding) == 0 {
		return nil, errors.New("vector must not be empty")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	args := map[string]any{
		"q":     models.Vector(q.Embedding).String(),
		"min":   q.MinSimilarity,
		"limit": limit,
	}
	filter := ""
	if len(q.PaperIDs) > 0 {
		filter = "AND paper_id IN @papers"
		args["papers"] = q.PaperIDs
	}

	var out []models.ChunkMatch
	err := p.db.WithContext(ctx).Raw(`
SELECT id AS chunk_id, paper_id, chunk_index, content, 1 - (embedding <=> CAST(@q AS vector)) AS similarity
FROM chunks
WHERE 1 - (embedding <=> CAST(@q AS vector)) >= @min `+filter+`
ORDER BY embedding <=> CAST(@q AS vector)
LIMIT @limit`, args).Scan(&out).Error
	return out, err
}

// SearchGrouped ranks chunks per paper with a window function so at most perPaper rows per paper leave the database.
func (p *PGVector) SearchGrouped(ctx context.Context, q Query, perPaper int) ([]PaperMatches, error) {
	if len(q.Embedding) == 0 {
		return nil, errors.New("vector must not be empty")
	}
	if perPaper <= 0 {
		perPaper = 1
	}
	args := map[string]any{
		"q":   models.Vector(q.Embedding).String(),
		"min": q.MinSimilarity,
		"per": perPaper,
	}
	filter := ""
	if len(q.PaperIDs) > 0 {
		filter = "WHERE paper_id IN @papers"
		args["papers"] = q.PaperIDs
	}

	var rows []models.ChunkMatch
	err := p.db.WithContext(ctx).Raw(`
SELECT chunk_id, paper_id, chunk_index, content, similarity FROM (
  SELECT id AS chunk_id, paper_id, chunk_index, content,
         1 - (embedding <=> CAST(@q AS vector)) AS similarity,
         ROW_NUMBER() OVER (PARTITION BY paper_id ORDER BY embedding <=> CAST(@q AS vector)) AS rn
  FROM chunks `+filter+`
) ranked
WHERE rn <= @per AND similarity >= @min
ORDER BY similarity DESC`, args).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return groupMatches(rows, perPaper, q.Limit), nil
}

func (p *PGVector) IndexedPaperIDs(ctx context.Context, paperIDs []uint) (map[uint]bool, error) {
	out := map[uint]bool{}
	if len(paperIDs) == 0 {
		return out, nil
	}
	var ids []uint
	err := p.db.WithContext(ctx).Model(&models.Chunk{}).
		Where("paper_id IN ?", paperIDs).
		Distinct().Pluck("paper_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
