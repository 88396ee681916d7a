package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for document store operations.
var (
	// ErrInvalidCollection is returned for an empty collection name.
	ErrInvalidCollection = errors.New("collection name cannot be empty")

	// ErrInvalidID is returned for an empty document id.
	ErrInvalidID = errors.New("document id cannot be empty")

	// ErrInvalidFilter indicates a malformed query filter.
	ErrInvalidFilter = errors.New("invalid query filter")

	// ErrDuplicateID is returned when creating a document whose id exists.
	ErrDuplicateID = errors.New("document id already exists")
)

// Record is a flat JSON-compatible document body.
type Record = map[string]any

// Doc pairs a document id with its record body.
type Doc struct {
	ID     string
	Record Record
}

// Op is a filter comparison operator.
type Op string

const (
	// OpEqual matches fields equal to the filter value.
	OpEqual Op = "=="

	// OpGreaterOrEqual matches fields >= the filter value (inclusive).
	OpGreaterOrEqual Op = ">="

	// OpLessOrEqual matches fields <= the filter value (inclusive).
	OpLessOrEqual Op = "<="
)

// Filter is one conjunctive condition on a top-level record field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a filtered, ordered, limited read over one collection.
// Filters are ANDed. OrderBy names a top-level field; Descending controls
// direction. Limit <= 0 means no limit.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Validate checks the query for errors before it reaches a backend.
func (q Query) Validate() error {
	if q.Collection == "" {
		return ErrInvalidCollection
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("%w: filter field cannot be empty", ErrInvalidFilter)
		}
		switch f.Op {
		case OpEqual, OpGreaterOrEqual, OpLessOrEqual:
		default:
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidFilter, f.Op)
		}
	}
	return nil
}

// Store is the generic persistent collection interface.
//
// Get returns (nil, nil) for a missing document; absence is not an error.
// Write failures propagate unchanged to the caller.
type Store interface {
	// Create persists a record under a generated id and returns the id.
	Create(ctx context.Context, collection string, rec Record) (string, error)

	// CreateWithID persists a record under a caller-supplied id.
	CreateWithID(ctx context.Context, collection, id string, rec Record) error

	// Get fetches one record by id. Missing documents return (nil, nil).
	Get(ctx context.Context, collection, id string) (Record, error)

	// Query runs a filtered read. See Query for semantics.
	Query(ctx context.Context, q Query) ([]Doc, error)

	// Update sets the given fields on an existing record, leaving other
	// fields untouched. Updating a missing document is an error.
	Update(ctx context.Context, collection, id string, fields Record) error

	// Delete removes one document. Deleting a missing document is a no-op.
	Delete(ctx context.Context, collection, id string) error

	// BatchDelete removes many documents in one batch. Best-effort: the
	// batch is not transactional across backends.
	BatchDelete(ctx context.Context, collection string, ids []string) error

	// Close releases backend resources.
	Close() error
}

// TimestampLayout is the fixed-width UTC layout used for persisted
// timestamps. Fixed-width nanosecond precision makes lexicographic
// comparison equal to chronological comparison, which is what backs
// inclusive range filters on timestamp fields.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp renders t in TimestampLayout (always UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a TimestampLayout string.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}
