package matrix

import (
	"context"
	"sort"
	"sync"
)

// Store is the external home of matrices. Implementations must treat the
// values they receive and return as immutable.
type Store interface {
	Get(ctx context.Context, id string) (*Matrix, error)
	Save(ctx context.Context, m *Matrix) error
	List(ctx context.Context) ([]Summary, error)
}

// Summary is a listing entry.
type Summary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

func summarize(m *Matrix) Summary {
	return Summary{ID: m.ID, Title: m.Title, Rows: len(m.Rows), Columns: len(m.Columns)}
}

// InMemoryStore is a threadsafe in-memory store for tests and the CLI.
type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*Matrix
}

func NewInMemoryStore(seed ...*Matrix) *InMemoryStore {
	s := &InMemoryStore{byID: make(map[string]*Matrix)}
	for _, m := range seed {
		s.byID[m.ID] = m
	}
	return s
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*Matrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *InMemoryStore) Save(ctx context.Context, m *Matrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[m.ID] = m
	return nil
}

func (s *InMemoryStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, summarize(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
