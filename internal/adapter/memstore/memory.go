package memstore

import (
	"sort"
	"sync"

	"github.com/darshil0/DineAI/internal/port"
)

// MemoryStore is an in-memory vector store scanned by brute force. Records
// keep insertion order, which is also the tie-break order for queries.
type MemoryStore[M any] struct {
	mu         sync.RWMutex
	records    []port.VectorRecord[M]
	index      map[string]int
	generation uint64
}

var _ port.VectorStore[struct{}] = (*MemoryStore[struct{}])(nil)

func NewMemoryStore[M any]() *MemoryStore[M] {
	return &MemoryStore[M]{
		index: make(map[string]int),
	}
}

func (s *MemoryStore[M]) Upsert(records []port.VectorRecord[M]) {
	if len(records) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		rec.Embedding = cloneVector(rec.Embedding)
		if i, ok := s.index[rec.ID]; ok {
			s.records[i] = rec
			continue
		}
		s.index[rec.ID] = len(s.records)
		s.records = append(s.records, rec)
	}
	s.generation++
}

func (s *MemoryStore[M]) Query(query []float32, topK int) []port.VectorMatch[M] {
	if topK < 1 {
		return nil
	}

	s.mu.RLock()
	matches := make([]port.VectorMatch[M], len(s.records))
	for i, rec := range s.records {
		matches[i] = port.VectorMatch[M]{
			Record: port.VectorRecord[M]{
				ID:        rec.ID,
				Embedding: cloneVector(rec.Embedding),
				Metadata:  rec.Metadata,
			},
			Score: CosineSimilarity(query, rec.Embedding),
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK]
}

func (s *MemoryStore[M]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Generation changes whenever the stored records change.
func (s *MemoryStore[M]) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *MemoryStore[M]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = make(map[string]int)
	s.generation++
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
