// Package vectorindex stores chunk embeddings and answers cosine-similarity queries.
package vectorindex

import (
	"context"
	"sort"

	"claim-dossier/models"
)

// Query selects chunks similar to Embedding.
type Query struct {
	Embedding     []float32
	Limit         int     // chunks for Search, papers for SearchGrouped
	MinSimilarity float64 // inclusive lower bound, cosine similarity
	PaperIDs      []uint  // optional restriction
}

// PaperMatches are the top chunks of one paper, best first.
type PaperMatches struct {
	PaperID uint
	Best    float64
	Chunks  []models.ChunkMatch
}

// Index persists embeddings and supports similarity search.
type Index interface {
	Insert(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, q Query) ([]models.ChunkMatch, error)
	SearchGrouped(ctx context.Context, q Query, perPaper int) ([]PaperMatches, error)
	IndexedPaperIDs(ctx context.Context, paperIDs []uint) (map[uint]bool, error)
}

const defaultLimit = 20

// groupMatches folds matches (best first per paper) into per-paper groups,
// keeps at most perPaper chunks each and returns the limit best papers.
func groupMatches(matches []models.ChunkMatch, perPaper, limit int) []PaperMatches {
	byPaper := map[uint]*PaperMatches{}
	var order []uint
	for _, m := range matches {
		g, ok := byPaper[m.PaperID]
		if !ok {
			g = &PaperMatches{PaperID: m.PaperID}
			byPaper[m.PaperID] = g
			order = append(order, m.PaperID)
		}
		if len(g.Chunks) >= perPaper {
			continue
		}
		if len(g.Chunks) == 0 || m.Similarity > g.Best {
			g.Best = m.Similarity
		}
		g.Chunks = append(g.Chunks, m)
	}

	out := make([]PaperMatches, 0, len(order))
	for _, id := range order {
		g := byPaper[id]
		sort.SliceStable(g.Chunks, func(i, j int) bool { return g.Chunks[i].Similarity > g.Chunks[j].Similarity })
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Best == out[j].Best {
			return out[i].PaperID < out[j].PaperID
		}
		return out[i].Best > out[j].Best
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
