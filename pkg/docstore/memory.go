package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store backed by maps. It is the reference
// implementation used in tests and for local, non-durable deployments.
// Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Record),
	}
}

// Create persists rec under a generated UUID and returns it.
func (s *MemoryStore) Create(ctx context.Context, collection string, rec Record) (string, error) {
	id := uuid.New().String()
	if err := s.CreateWithID(ctx, collection, id, rec); err != nil {
		return "", err
	}
	return id, nil
}

// CreateWithID persists rec under the given id.
func (s *MemoryStore) CreateWithID(_ context.Context, collection, id string, rec Record) error {
	if collection == "" {
		return ErrInvalidCollection
	}
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Record)
		s.collections[collection] = coll
	}
	if _, exists := coll[id]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateID, collection, id)
	}
	coll[id] = cloneRecord(rec)
	return nil
}

// Get fetches one record. Missing documents return (nil, nil).
func (s *MemoryStore) Get(_ context.Context, collection, id string) (Record, error) {
	if collection == "" {
		return nil, ErrInvalidCollection
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

// Query runs a linear scan with conjunctive filters, ordering and limit.
func (s *MemoryStore) Query(_ context.Context, q Query) ([]Doc, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var docs []Doc
	for id, rec := range s.collections[q.Collection] {
		if matchesFilters(rec, q.Filters) {
			docs = append(docs, Doc{ID: id, Record: cloneRecord(rec)})
		}
	}
	s.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			c := compareValues(docs[i].Record[q.OrderBy], docs[j].Record[q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

// Update sets fields on an existing record.
func (s *MemoryStore) Update(_ context.Context, collection, id string, fields Record) error {
	if collection == "" {
		return ErrInvalidCollection
	}
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("update %s/%s: document not found", collection, id)
	}
	for k, v := range fields {
		rec[k] = cloneValue(v)
	}
	return nil
}

// Delete removes one document; missing documents are a no-op.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	if collection == "" {
		return ErrInvalidCollection
	}
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

// BatchDelete removes many documents in one lock acquisition.
func (s *MemoryStore) BatchDelete(_ context.Context, collection string, ids []string) error {
	if collection == "" {
		return ErrInvalidCollection
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.collections[collection], id)
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func matchesFilters(rec Record, filters []Filter) bool {
	for _, f := range filters {
		v, ok := rec[f.Field]
		if !ok {
			return false
		}
		cmp := compareValues(v, f.Value)
		switch f.Op {
		case OpEqual:
			if cmp != 0 {
				return false
			}
		case OpGreaterOrEqual:
			if cmp < 0 {
				return false
			}
		case OpLessOrEqual:
			if cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders two field values. Strings compare lexicographically,
// numbers numerically (after normalization to float64), booleans with
// false < true. Mismatched or unsupported types compare by their string
// forms so ordering stays total.
func compareValues(a, b any) int {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneRecord(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []float32:
		out := make([]float32, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
