package models

import "time"

// Chunk ist ein Abstract-Fragment mit Embedding. Chunks werden einmal geschrieben und nie verändert.
// Die Tabelle legt vectorindex.PGVector.Migrate an (feste Vektor-Dimension).
type Chunk struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	CreatedAt       time.Time `json:"created_at"`
	PaperID         uint      `json:"paper_id"`
	ChunkIndex      int       `json:"chunk_index"`
	Content         string    `json:"content" gorm:"type:text;not null"`
	EstimatedTokens int       `json:"estimated_tokens"`
	Embedding       Vector    `json:"-" gorm:"type:vector"`
}

// TableName gibt explizit den Tabellennamen an.
func (Chunk) TableName() string {
	return "chunks"
}

// TextChunk ist das Ergebnis des Chunkers, noch ohne Embedding.
type TextChunk struct {
	Content         string `json:"content"`
	ChunkIndex      int    `json:"chunk_index"`
	EstimatedTokens int    `json:"estimated_tokens"`
}

// ChunkMatch ist ein Treffer der Ähnlichkeitssuche.
type ChunkMatch struct {
	ChunkID    uint    `json:"chunk_id"`
	PaperID    uint    `json:"paper_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}
