package vectorstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used when no database is configured and
// in tests. Records survive for the lifetime of the process only.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	index   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// StoreBatch inserts records, replacing any with a matching ID.
func (s *MemoryStore) StoreBatch(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if i, ok := s.index[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.index[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

// Search returns the topK records by cosine similarity to queryVec, highest
// first. Ties are broken by record ID so results are deterministic. A
// non-empty ids slice restricts the search to those records.
func (s *MemoryStore) Search(ctx context.Context, queryVec []float32, topK int, ids []string) ([]SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var allowed map[string]bool
	if len(ids) > 0 {
		allowed = make(map[string]bool, len(ids))
		for _, id := range ids {
			allowed[id] = true
		}
	}

	hits := make([]SearchHit, 0, len(s.records))
	for _, r := range s.records {
		if allowed != nil && !allowed[r.ID] {
			continue
		}
		hits = append(hits, SearchHit{
			ID:    r.ID,
			URL:   r.URL,
			Title: r.Title,
			Text:  r.Text,
			Score: CosineSimilarity(queryVec, r.Embedding),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}
