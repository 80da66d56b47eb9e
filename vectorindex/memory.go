package vectorindex

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"claim-dossier/models"
)

// Memory is a simple in-memory index using brute-force cosine similarity.
type Memory struct {
	mu     sync.RWMutex
	nextID uint
	chunks []models.Chunk
	keys   map[[2]uint]bool
}

func NewMemory() *Memory { return &Memory{keys: map[[2]uint]bool{}} }

// Insert stores chunks; a (paper, index) pair that already exists is skipped.
func (m *Memory) Insert(ctx context.Context, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return errors.New("chunk without embedding")
		}
		key := [2]uint{c.PaperID, uint(c.ChunkIndex)}
		if m.keys[key] {
			continue
		}
		m.nextID++
		c.ID = m.nextID
		m.keys[key] = true
		m.chunks = append(m.chunks, c)
	}
	return nil
}

func (m *Memory) Search(ctx context.Context, q Query) ([]models.ChunkMatch, error) {
	matches := m.scored(q)
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *Memory) SearchGrouped(ctx context.Context, q Query, perPaper int) ([]PaperMatches, error) {
	if perPaper <= 0 {
		perPaper = 1
	}
	return groupMatches(m.scored(q), perPaper, q.Limit), nil
}

func (m *Memory) IndexedPaperIDs(ctx context.Context, paperIDs []uint) (map[uint]bool, error) {
	want := make(map[uint]bool, len(paperIDs))
	for _, id := range paperIDs {
		want[id] = true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[uint]bool{}
	for _, c := range m.chunks {
		if want[c.PaperID] {
			out[c.PaperID] = true
		}
	}
	return out, nil
}

// scored returns all chunks passing the filters, most similar first.
func (m *Memory) scored(q Query) []models.ChunkMatch {
	var allowed map[uint]bool
	if len(q.PaperIDs) > 0 {
		allowed = make(map[uint]bool, len(q.PaperIDs))
		for _, id := range q.PaperIDs {
			allowed[id] = true
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ChunkMatch
	for _, c := range m.chunks {
		if allowed != nil && !allowed[c.PaperID] {
			continue
		}
		sim := cosine(c.Embedding, q.Embedding)
		if sim < q.MinSimilarity {
			continue
		}
		out = append(out, models.ChunkMatch{
			ChunkID:    c.ID,
			PaperID:    c.PaperID,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Similarity: sim,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
