package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextos/pkg/docstore"
)

// EntityCollection is the document collection entities live in.
const EntityCollection = "entities"

// DefaultEntityLimit caps FindEntities results when no limit is given.
const DefaultEntityLimit = 50

// EntityStore manages deduplicated graph nodes.
type EntityStore struct {
	docs   docstore.Store
	rels   *RelationshipStore
	logger *zap.Logger
}

// NewEntityStore creates an entity store. The relationship store is needed
// for cascade deletes and must not be nil.
func NewEntityStore(docs docstore.Store, rels *RelationshipStore, logger *zap.Logger) (*EntityStore, error) {
	if docs == nil {
		return nil, fmt.Errorf("document store cannot be nil")
	}
	if rels == nil {
		return nil, fmt.Errorf("relationship store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityStore{docs: docs, rels: rels, logger: logger.Named("entities")}, nil
}

// CreateEntity creates the entity or, when one already exists for the
// (type, normalized name) pair, merges attributes into the existing record
// and returns its id. At most one entity ever exists per pair.
func (s *EntityStore) CreateEntity(ctx context.Context, entity *ContextEntity) (string, error) {
	if entity == nil {
		return "", fmt.Errorf("entity cannot be nil")
	}
	if err := entity.Validate(); err != nil {
		return "", err
	}

	existing, err := s.findByTypeAndName(ctx, entity.Type, entity.Name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if len(entity.Attributes) > 0 {
			if err := s.mergeAttributes(ctx, existing, entity.Attributes); err != nil {
				return "", err
			}
		}
		return existing.ID, nil
	}

	now := time.Now().UTC()
	entity.CreatedAt = now
	entity.UpdatedAt = now
	rec := entityToRecord(entity)

	id, err := s.docs.Create(ctx, EntityCollection, rec)
	if err != nil {
		return "", fmt.Errorf("creating entity: %w", err)
	}
	entity.ID = id

	s.logger.Debug("entity created",
		zap.String("id", id),
		zap.String("type", string(entity.Type)),
		zap.String("name", entity.Name))
	return id, nil
}

// GetEntityByID fetches one entity. Missing ids return (nil, nil).
func (s *EntityStore) GetEntityByID(ctx context.Context, id string) (*ContextEntity, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	rec, err := s.docs.Get(ctx, EntityCollection, id)
	if err != nil {
		return nil, fmt.Errorf("fetching entity %s: %w", id, err)
	}
	if rec == nil {
		return nil, nil
	}
	return entityFromDoc(docstore.Doc{ID: id, Record: rec})
}

// FindEntities returns entities matching the filter, most recently updated
// first. Exact type and name push down to the store; NameContains is a
// case-insensitive substring post-filter.
func (s *EntityStore) FindEntities(ctx context.Context, f EntityFilter) ([]*ContextEntity, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, ErrInvalidEntityType
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultEntityLimit
	}

	q := docstore.Query{
		Collection: EntityCollection,
		OrderBy:    "updated_at",
		Descending: true,
	}
	if f.Type != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "type", Op: docstore.OpEqual, Value: string(f.Type)})
	}
	if f.Name != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "name_normalized", Op: docstore.OpEqual, Value: NormalizeName(f.Name)})
	}
	// Substring matching happens here, not in the store, so the store
	// limit only applies when there is no post-filter to starve.
	if f.NameContains == "" {
		q.Limit = limit
	}

	docs, err := s.docs.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}

	needle := strings.ToLower(f.NameContains)
	entities := make([]*ContextEntity, 0, len(docs))
	for _, doc := range docs {
		entity, err := entityFromDoc(doc)
		if err != nil {
			s.logger.Warn("skipping malformed entity record",
				zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(entity.Name), needle) {
			continue
		}
		entities = append(entities, entity)
		if len(entities) >= limit {
			break
		}
	}
	return entities, nil
}

// UpdateEntity applies the update to an existing entity. A new name also
// refreshes the normalized lookup key; attributes merge-replace shallowly
// (nested maps are overwritten, not deep-merged).
func (s *EntityStore) UpdateEntity(ctx context.Context, id string, update EntityUpdate) error {
	if id == "" {
		return ErrEmptyID
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return ErrEmptyName
	}

	entity, err := s.GetEntityByID(ctx, id)
	if err != nil {
		return err
	}
	if entity == nil {
		return fmt.Errorf("update entity %s: not found", id)
	}

	fields := docstore.Record{
		"updated_at": docstore.FormatTimestamp(time.Now().UTC()),
	}
	if update.Name != nil {
		fields["name"] = *update.Name
		fields["name_normalized"] = NormalizeName(*update.Name)
	}
	if update.Attributes != nil {
		merged := entity.Attributes
		if merged == nil {
			merged = make(map[string]any, len(update.Attributes))
		}
		for k, v := range update.Attributes {
			merged[k] = v
		}
		fields["attributes"] = merged
	}

	if err := s.docs.Update(ctx, EntityCollection, id, fields); err != nil {
		return fmt.Errorf("updating entity %s: %w", id, err)
	}
	return nil
}

// DeleteEntity removes the entity. When deleteRelationships is true every
// relationship where the entity appears as source or target is deleted
// first, so no dangling edges survive the node.
func (s *EntityStore) DeleteEntity(ctx context.Context, id string, deleteRelationships bool) error {
	if id == "" {
		return ErrEmptyID
	}

	if deleteRelationships {
		count, err := s.rels.DeleteRelationshipsForEntity(ctx, id)
		if err != nil {
			return fmt.Errorf("cascading relationship delete for %s: %w", id, err)
		}
		if count > 0 {
			s.logger.Debug("cascade deleted relationships",
				zap.String("entity_id", id), zap.Int("count", count))
		}
	}

	if err := s.docs.Delete(ctx, EntityCollection, id); err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}
	return nil
}

// GetOrCreateEntity finds or creates the entity for (type, name) and
// returns the full hydrated record. This is the extractor's workhorse.
func (s *EntityStore) GetOrCreateEntity(ctx context.Context, entityType EntityType, name string, attributes map[string]any) (*ContextEntity, error) {
	id, err := s.CreateEntity(ctx, &ContextEntity{
		Type:       entityType,
		Name:       name,
		Attributes: attributes,
	})
	if err != nil {
		return nil, err
	}

	entity, err := s.GetEntityByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("entity %s vanished after create", id)
	}
	return entity, nil
}

func (s *EntityStore) findByTypeAndName(ctx context.Context, entityType EntityType, name string) (*ContextEntity, error) {
	docs, err := s.docs.Query(ctx, docstore.Query{
		Collection: EntityCollection,
		Filters: []docstore.Filter{
			{Field: "type", Op: docstore.OpEqual, Value: string(entityType)},
			{Field: "name_normalized", Op: docstore.OpEqual, Value: NormalizeName(name)},
		},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("looking up entity: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return entityFromDoc(docs[0])
}

func (s *EntityStore) mergeAttributes(ctx context.Context, entity *ContextEntity, attrs map[string]any) error {
	merged := entity.Attributes
	if merged == nil {
		merged = make(map[string]any, len(attrs))
	}
	for k, v := range attrs {
		merged[k] = v
	}
	if err := s.docs.Update(ctx, EntityCollection, entity.ID, docstore.Record{
		"attributes": merged,
		"updated_at": docstore.FormatTimestamp(time.Now().UTC()),
	}); err != nil {
		return fmt.Errorf("merging attributes into %s: %w", entity.ID, err)
	}
	return nil
}

// entityToRecord writes the persisted shape including the shadow fields
// backing dedup and ordering: name_normalized, created_at, updated_at.
func entityToRecord(entity *ContextEntity) docstore.Record {
	return docstore.Record{
		"type":            string(entity.Type),
		"name":            entity.Name,
		"name_normalized": NormalizeName(entity.Name),
		"attributes":      entity.Attributes,
		"created_at":      docstore.FormatTimestamp(entity.CreatedAt),
		"updated_at":      docstore.FormatTimestamp(entity.UpdatedAt),
	}
}

func entityFromDoc(doc docstore.Doc) (*ContextEntity, error) {
	entity := &ContextEntity{ID: doc.ID}

	if t, ok := doc.Record["type"].(string); ok {
		entity.Type = EntityType(t)
	}
	if n, ok := doc.Record["name"].(string); ok {
		entity.Name = n
	}
	if attrs, ok := doc.Record["attributes"].(map[string]any); ok {
		entity.Attributes = attrs
	}
	if raw, ok := doc.Record["created_at"].(string); ok {
		ts, err := docstore.ParseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entity.CreatedAt = ts
	}
	if raw, ok := doc.Record["updated_at"].(string); ok {
		ts, err := docstore.ParseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		entity.UpdatedAt = ts
	}

	if !entity.Type.Valid() {
		return nil, fmt.Errorf("entity %s: %w: %q", doc.ID, ErrInvalidEntityType, entity.Type)
	}
	return entity, nil
}
