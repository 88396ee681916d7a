package graph

import (
	"errors"
	"strings"
	"time"
)

// Common errors for graph operations.
var (
	ErrEmptyName         = errors.New("entity name cannot be empty")
	ErrInvalidEntityType = errors.New("invalid entity type")
	ErrInvalidRelType    = errors.New("invalid relationship type")
	ErrEmptyID           = errors.New("id cannot be empty")
	ErrInvalidWeight     = errors.New("weight must be between 0.0 and 1.0")
)

// EntityType classifies a graph node.
type EntityType string

const (
	EntityProduct    EntityType = "product"
	EntityBrand      EntityType = "brand"
	EntityCustomer   EntityType = "customer"
	EntityCampaign   EntityType = "campaign"
	EntityCompetitor EntityType = "competitor"
	EntityRegulation EntityType = "regulation"
	EntityAgent      EntityType = "agent"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityProduct, EntityBrand, EntityCustomer, EntityCampaign,
		EntityCompetitor, EntityRegulation, EntityAgent:
		return true
	}
	return false
}

// RelationType classifies a graph edge.
type RelationType string

const (
	RelInfluences   RelationType = "influences"
	RelTriggers     RelationType = "triggers"
	RelDependsOn    RelationType = "depends_on"
	RelCompetesWith RelationType = "competes_with"
	RelRegulates    RelationType = "regulates"
	RelDecidedBy    RelationType = "decided_by"
)

// Valid reports whether t is a known relationship type.
func (t RelationType) Valid() bool {
	switch t {
	case RelInfluences, RelTriggers, RelDependsOn, RelCompetesWith,
		RelRegulates, RelDecidedBy:
		return true
	}
	return false
}

// ContextEntity is a deduplicated node representing a business object.
// Name keeps the caller's casing for display; uniqueness is computed on
// the lowercased, trimmed form.
type ContextEntity struct {
	ID         string         `json:"id,omitempty"`
	Type       EntityType     `json:"type"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
	CreatedAt  time.Time      `json:"-"`
	UpdatedAt  time.Time      `json:"-"`
}

// Validate checks the entity before any store call.
func (e *ContextEntity) Validate() error {
	if !e.Type.Valid() {
		return ErrInvalidEntityType
	}
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// ContextRelationship is a directed, typed, weighted edge between two
// entities. Weight lives in [0,1] and is monotonically non-decreasing
// under reinforcement. DecisionTraceID is an optional non-owning
// provenance link to the decision that observed this edge.
type ContextRelationship struct {
	ID              string       `json:"id,omitempty"`
	SourceID        string       `json:"sourceId"`
	TargetID        string       `json:"targetId"`
	Type            RelationType `json:"type"`
	Weight          float64      `json:"weight"`
	DecisionTraceID string       `json:"decisionTraceId,omitempty"`
	CreatedAt       time.Time    `json:"-"`
}

// NormalizeName computes the case-insensitive lookup key for entity
// deduplication: lowercased with surrounding whitespace trimmed.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// EntityFilter selects entities in FindEntities. Type and Name push down
// to the store as equality filters (Name matched case-insensitively via
// the normalized shadow field); NameContains is a case-insensitive
// substring post-filter since the store has no pattern queries.
type EntityFilter struct {
	Type         EntityType
	Name         string
	NameContains string
	Limit        int
}

// RelationshipFilter selects relationships in FindRelationships. MinWeight
// is an inclusive lower bound on edge weight. Limit caps results: zero
// uses DefaultRelationshipLimit, negative disables the cap.
type RelationshipFilter struct {
	SourceID  string
	TargetID  string
	Type      RelationType
	MinWeight float64
	Limit     int
}

// EntityRelationships groups the edges touching one entity by direction.
type EntityRelationships struct {
	Outgoing []*ContextRelationship `json:"outgoing"`
	Incoming []*ContextRelationship `json:"incoming"`
}

// EntityUpdate carries the mutable fields of UpdateEntity. A nil Name
// leaves the name (and its normalized key) alone; Attributes, when
// non-nil, shallow-merges into the stored attributes.
type EntityUpdate struct {
	Name       *string
	Attributes map[string]any
}
