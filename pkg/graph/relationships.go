package graph

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextos/pkg/docstore"
)

// RelationshipCollection is the document collection edges live in.
const RelationshipCollection = "relationships"

// DefaultRelationshipLimit caps FindRelationships when no limit is given.
const DefaultRelationshipLimit = 100

// ReinforcementIncrement is the fixed weight bump applied when an edge is
// observed again. The caller's requested weight is deliberately ignored on
// reinforcement so repeated observations grow an edge slowly instead of
// letting one enthusiastic caller saturate it.
const ReinforcementIncrement = 0.1

// DefaultDecisionWeight is the initial weight for edges created from a
// decision trace.
const DefaultDecisionWeight = 0.5

// RelationshipStore manages deduplicated, reinforcement-weighted edges.
type RelationshipStore struct {
	docs   docstore.Store
	logger *zap.Logger
}

// NewRelationshipStore creates a relationship store.
func NewRelationshipStore(docs docstore.Store, logger *zap.Logger) (*RelationshipStore, error) {
	if docs == nil {
		return nil, fmt.Errorf("document store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationshipStore{docs: docs, logger: logger.Named("relationships")}, nil
}

// CreateRelationship creates the edge or, when one already exists for the
// (source, target, type) triple, reinforces it: the stored weight rises by
// ReinforcementIncrement, capped at 1.0, and the existing id is returned.
func (s *RelationshipStore) CreateRelationship(ctx context.Context, rel *ContextRelationship) (string, error) {
	if rel == nil {
		return "", fmt.Errorf("relationship cannot be nil")
	}
	if rel.SourceID == "" || rel.TargetID == "" {
		return "", ErrEmptyID
	}
	if !rel.Type.Valid() {
		return "", ErrInvalidRelType
	}
	if rel.Weight < 0 || rel.Weight > 1 {
		return "", ErrInvalidWeight
	}

	existing, err := s.findTriple(ctx, rel.SourceID, rel.TargetID, rel.Type)
	if err != nil {
		return "", err
	}
	if existing != nil {
		reinforced := existing.Weight + ReinforcementIncrement
		if reinforced > 1.0 {
			reinforced = 1.0
		}
		if err := s.docs.Update(ctx, RelationshipCollection, existing.ID, docstore.Record{
			"weight": reinforced,
		}); err != nil {
			return "", fmt.Errorf("reinforcing relationship %s: %w", existing.ID, err)
		}
		s.logger.Debug("relationship reinforced",
			zap.String("id", existing.ID),
			zap.Float64("weight", reinforced))
		return existing.ID, nil
	}

	rel.CreatedAt = time.Now().UTC()
	id, err := s.docs.Create(ctx, RelationshipCollection, relationshipToRecord(rel))
	if err != nil {
		return "", fmt.Errorf("creating relationship: %w", err)
	}
	rel.ID = id

	s.logger.Debug("relationship created",
		zap.String("id", id),
		zap.String("source_id", rel.SourceID),
		zap.String("target_id", rel.TargetID),
		zap.String("type", string(rel.Type)))
	return id, nil
}

// CreateRelationshipFromDecision creates (or reinforces) an edge whose
// provenance is the given decision trace. A weight of 0 falls back to
// DefaultDecisionWeight.
func (s *RelationshipStore) CreateRelationshipFromDecision(ctx context.Context, sourceID, targetID string, relType RelationType, decisionTraceID string, weight float64) (string, error) {
	if weight == 0 {
		weight = DefaultDecisionWeight
	}
	return s.CreateRelationship(ctx, &ContextRelationship{
		SourceID:        sourceID,
		TargetID:        targetID,
		Type:            relType,
		Weight:          weight,
		DecisionTraceID: decisionTraceID,
	})
}

// GetRelationship fetches one edge. Missing ids return (nil, nil).
func (s *RelationshipStore) GetRelationship(ctx context.Context, id string) (*ContextRelationship, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	rec, err := s.docs.Get(ctx, RelationshipCollection, id)
	if err != nil {
		return nil, fmt.Errorf("fetching relationship %s: %w", id, err)
	}
	if rec == nil {
		return nil, nil
	}
	return relationshipFromDoc(docstore.Doc{ID: id, Record: rec})
}

// FindRelationships returns edges matching the filter. A zero Limit uses
// DefaultRelationshipLimit; a negative Limit disables the cap entirely.
func (s *RelationshipStore) FindRelationships(ctx context.Context, f RelationshipFilter) ([]*ContextRelationship, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, ErrInvalidRelType
	}
	if f.MinWeight < 0 || f.MinWeight > 1 {
		return nil, ErrInvalidWeight
	}

	limit := f.Limit
	switch {
	case limit == 0:
		limit = DefaultRelationshipLimit
	case limit < 0:
		limit = 0 // no cap at the store layer
	}

	q := docstore.Query{
		Collection: RelationshipCollection,
		Limit:      limit,
	}
	if f.SourceID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "source_id", Op: docstore.OpEqual, Value: f.SourceID})
	}
	if f.TargetID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "target_id", Op: docstore.OpEqual, Value: f.TargetID})
	}
	if f.Type != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "type", Op: docstore.OpEqual, Value: string(f.Type)})
	}
	if f.MinWeight > 0 {
		q.Filters = append(q.Filters, docstore.Filter{Field: "weight", Op: docstore.OpGreaterOrEqual, Value: f.MinWeight})
	}

	docs, err := s.docs.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}

	rels := make([]*ContextRelationship, 0, len(docs))
	for _, doc := range docs {
		rel, err := relationshipFromDoc(doc)
		if err != nil {
			s.logger.Warn("skipping malformed relationship record",
				zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// GetEntityRelationships returns the edges touching an entity, grouped by
// direction. Two independent queries, one per direction. The scan is
// unbounded: cascade deletion and graph traversal both depend on seeing
// every edge, so no default limit applies here.
func (s *RelationshipStore) GetEntityRelationships(ctx context.Context, entityID string) (*EntityRelationships, error) {
	if entityID == "" {
		return nil, ErrEmptyID
	}

	outgoing, err := s.FindRelationships(ctx, RelationshipFilter{SourceID: entityID, Limit: -1})
	if err != nil {
		return nil, err
	}
	incoming, err := s.FindRelationships(ctx, RelationshipFilter{TargetID: entityID, Limit: -1})
	if err != nil {
		return nil, err
	}
	return &EntityRelationships{Outgoing: outgoing, Incoming: incoming}, nil
}

// UpdateRelationshipWeight sets an edge's weight directly, clamped to
// [0,1] before persisting.
func (s *RelationshipStore) UpdateRelationshipWeight(ctx context.Context, id string, weight float64) error {
	if id == "" {
		return ErrEmptyID
	}

	if weight < 0 {
		weight = 0
	} else if weight > 1 {
		weight = 1
	}

	if err := s.docs.Update(ctx, RelationshipCollection, id, docstore.Record{
		"weight": weight,
	}); err != nil {
		return fmt.Errorf("updating relationship weight %s: %w", id, err)
	}
	return nil
}

// DeleteRelationship removes one edge.
func (s *RelationshipStore) DeleteRelationship(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if err := s.docs.Delete(ctx, RelationshipCollection, id); err != nil {
		return fmt.Errorf("deleting relationship %s: %w", id, err)
	}
	return nil
}

// DeleteRelationshipsForEntity removes every edge where the entity is
// source or target in one batch, returning the count deleted.
func (s *RelationshipStore) DeleteRelationshipsForEntity(ctx context.Context, entityID string) (int, error) {
	if entityID == "" {
		return 0, ErrEmptyID
	}

	both, err := s.GetEntityRelationships(ctx, entityID)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, rel := range append(both.Outgoing, both.Incoming...) {
		if !seen[rel.ID] {
			seen[rel.ID] = true
			ids = append(ids, rel.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.docs.BatchDelete(ctx, RelationshipCollection, ids); err != nil {
		return 0, fmt.Errorf("batch deleting relationships for %s: %w", entityID, err)
	}
	return len(ids), nil
}

func (s *RelationshipStore) findTriple(ctx context.Context, sourceID, targetID string, relType RelationType) (*ContextRelationship, error) {
	docs, err := s.docs.Query(ctx, docstore.Query{
		Collection: RelationshipCollection,
		Filters: []docstore.Filter{
			{Field: "source_id", Op: docstore.OpEqual, Value: sourceID},
			{Field: "target_id", Op: docstore.OpEqual, Value: targetID},
			{Field: "type", Op: docstore.OpEqual, Value: string(relType)},
		},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("looking up relationship: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return relationshipFromDoc(docs[0])
}

// relationshipToRecord writes the persisted shape. source_id, target_id
// and type are first-class fields precisely because the dedup lookup and
// both directional scans filter on them.
func relationshipToRecord(rel *ContextRelationship) docstore.Record {
	return docstore.Record{
		"source_id":         rel.SourceID,
		"target_id":         rel.TargetID,
		"type":              string(rel.Type),
		"weight":            rel.Weight,
		"decision_trace_id": rel.DecisionTraceID,
		"created_at":        docstore.FormatTimestamp(rel.CreatedAt),
	}
}

func relationshipFromDoc(doc docstore.Doc) (*ContextRelationship, error) {
	rel := &ContextRelationship{ID: doc.ID}

	if v, ok := doc.Record["source_id"].(string); ok {
		rel.SourceID = v
	}
	if v, ok := doc.Record["target_id"].(string); ok {
		rel.TargetID = v
	}
	if v, ok := doc.Record["type"].(string); ok {
		rel.Type = RelationType(v)
	}
	if v, ok := toWeight(doc.Record["weight"]); ok {
		rel.Weight = v
	}
	if v, ok := doc.Record["decision_trace_id"].(string); ok {
		rel.DecisionTraceID = v
	}
	if raw, ok := doc.Record["created_at"].(string); ok {
		ts, err := docstore.ParseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		rel.CreatedAt = ts
	}

	if !rel.Type.Valid() {
		return nil, fmt.Errorf("relationship %s: %w: %q", doc.ID, ErrInvalidRelType, rel.Type)
	}
	return rel, nil
}

func toWeight(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
