package graphquery

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextos/pkg/decisionlog"
	"github.com/fyrsmithlabs/contextos/pkg/graph"
)

const (
	// DefaultMaxDepth bounds FindRelatedEntities traversal by default.
	DefaultMaxDepth = 2

	// DefaultMinWeight prunes traversal paths by default.
	DefaultMinWeight = 0.3

	// DefaultHistoryLimit caps GetEntityDecisionHistory by default.
	DefaultHistoryLimit = 20

	// DefaultPathMaxDepth bounds FindShortestPath by default.
	DefaultPathMaxDepth = 5

	// contextRelatedMinWeight is the 1-hop threshold GetEntityContext uses.
	contextRelatedMinWeight = 0.1

	// contextDecisionLimit caps decisions inside GetEntityContext.
	contextDecisionLimit = 10
)

// TraversalResult is one entity discovered by FindRelatedEntities: the
// entity, its BFS depth, and the product of edge weights along the
// discovery path.
type TraversalResult struct {
	Entity *graph.ContextEntity `json:"entity"`
	Depth  int                  `json:"depth"`
	Weight float64              `json:"weight"`
}

// PathResult is a shortest path between two entities. Relationships holds
// the edge crossed at each hop, so len(Relationships) == len(Path) - 1.
type PathResult struct {
	Path          []*graph.ContextEntity       `json:"path"`
	Relationships []*graph.ContextRelationship `json:"relationships"`
}

// EntityContext is the read-optimized bundle GetEntityContext returns.
type EntityContext struct {
	Entity          *graph.ContextEntity         `json:"entity"`
	Relationships   *graph.EntityRelationships   `json:"relationships"`
	RelatedEntities []TraversalResult            `json:"relatedEntities"`
	RecentDecisions []*decisionlog.DecisionTrace `json:"recentDecisions"`
}

// Engine answers graph read queries. It sits above the entity,
// relationship and decision stores and never writes.
type Engine struct {
	entities  *graph.EntityStore
	rels      *graph.RelationshipStore
	decisions *decisionlog.Store
	logger    *zap.Logger
}

// NewEngine creates a graph query engine.
func NewEngine(entities *graph.EntityStore, rels *graph.RelationshipStore, decisions *decisionlog.Store, logger *zap.Logger) (*Engine, error) {
	if entities == nil {
		return nil, fmt.Errorf("entity store cannot be nil")
	}
	if rels == nil {
		return nil, fmt.Errorf("relationship store cannot be nil")
	}
	if decisions == nil {
		return nil, fmt.Errorf("decision store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		entities:  entities,
		rels:      rels,
		decisions: decisions,
		logger:    logger.Named("graphquery"),
	}, nil
}

// FindRelatedEntities walks the graph breadth-first from entityID over
// both edge directions, accumulating the product of edge weights per
// path. A neighbor is expanded only while the accumulated weight stays at
// or above minWeight and its depth is below maxDepth; each entity is kept
// at its first (shallowest) discovery. Results sort by weight descending,
// then depth ascending. maxDepth == 0 returns an empty list; negative
// maxDepth and non-positive minWeight fall back to the defaults.
func (e *Engine) FindRelatedEntities(ctx context.Context, entityID string, maxDepth int, minWeight float64) ([]TraversalResult, error) {
	if entityID == "" {
		return nil, graph.ErrEmptyID
	}
	if maxDepth < 0 {
		maxDepth = DefaultMaxDepth
	}
	if minWeight <= 0 {
		minWeight = DefaultMinWeight
	}

	type frontier struct {
		id     string
		depth  int
		weight float64
	}

	visited := map[string]bool{entityID: true}
	queue := []frontier{{id: entityID, depth: 0, weight: 1.0}}
	results := []TraversalResult{}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node.depth >= maxDepth {
			continue
		}

		edges, err := e.rels.GetEntityRelationships(ctx, node.id)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", node.id, err)
		}

		for _, rel := range append(edges.Outgoing, edges.Incoming...) {
			neighbor := rel.TargetID
			if neighbor == node.id {
				neighbor = rel.SourceID
			}
			if visited[neighbor] {
				continue
			}
			acc := node.weight * rel.Weight
			if acc < minWeight {
				continue
			}
			visited[neighbor] = true

			entity, err := e.entities.GetEntityByID(ctx, neighbor)
			if err != nil {
				return nil, err
			}
			if entity == nil {
				continue
			}

			results = append(results, TraversalResult{
				Entity: entity,
				Depth:  node.depth + 1,
				Weight: acc,
			})
			queue = append(queue, frontier{id: neighbor, depth: node.depth + 1, weight: acc})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Weight != results[j].Weight {
			return results[i].Weight > results[j].Weight
		}
		return results[i].Depth < results[j].Depth
	})
	return results, nil
}

// GetEntityDecisionHistory returns the decisions referenced as provenance
// by any relationship touching the entity, newest first, truncated to
// limit. The limit applies after the full relationship scan; it does not
// bound the scan itself.
func (e *Engine) GetEntityDecisionHistory(ctx context.Context, entityID string, limit int) ([]*decisionlog.DecisionTrace, error) {
	if entityID == "" {
		return nil, graph.ErrEmptyID
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	edges, err := e.rels.GetEntityRelationships(ctx, entityID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var traces []*decisionlog.DecisionTrace
	for _, rel := range append(edges.Outgoing, edges.Incoming...) {
		if rel.DecisionTraceID == "" || seen[rel.DecisionTraceID] {
			continue
		}
		seen[rel.DecisionTraceID] = true

		trace, err := e.decisions.GetDecisionByID(ctx, rel.DecisionTraceID)
		if err != nil {
			return nil, err
		}
		if trace == nil {
			continue
		}
		traces = append(traces, trace)
	}

	sort.SliceStable(traces, func(i, j int) bool {
		return traces[i].Timestamp.After(traces[j].Timestamp)
	})
	if len(traces) > limit {
		traces = traces[:limit]
	}
	return traces, nil
}

// FindShortestPath returns a minimum-hop path from sourceID to targetID
// over both edge directions, or nil when none exists within maxDepth
// hops. Edge weight is ignored: this is a connectivity query. The
// degenerate sourceID == targetID case returns a single-node path with no
// relationships.
func (e *Engine) FindShortestPath(ctx context.Context, sourceID, targetID string, maxDepth int) (*PathResult, error) {
	if sourceID == "" || targetID == "" {
		return nil, graph.ErrEmptyID
	}
	if maxDepth <= 0 {
		maxDepth = DefaultPathMaxDepth
	}

	source, err := e.entities.GetEntityByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, nil
	}

	if sourceID == targetID {
		return &PathResult{
			Path:          []*graph.ContextEntity{source},
			Relationships: []*graph.ContextRelationship{},
		}, nil
	}

	type parentLink struct {
		id  string
		rel *graph.ContextRelationship
	}

	parents := map[string]parentLink{sourceID: {}}
	queue := []string{sourceID}
	depths := map[string]int{sourceID: 0}
	found := false

	for len(queue) > 0 && !found {
		node := queue[0]
		queue = queue[1:]
		if depths[node] >= maxDepth {
			continue
		}

		edges, err := e.rels.GetEntityRelationships(ctx, node)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", node, err)
		}

		for _, rel := range append(edges.Outgoing, edges.Incoming...) {
			neighbor := rel.TargetID
			if neighbor == node {
				neighbor = rel.SourceID
			}
			if _, visited := parents[neighbor]; visited {
				continue
			}
			parents[neighbor] = parentLink{id: node, rel: rel}
			depths[neighbor] = depths[node] + 1
			if neighbor == targetID {
				found = true
				break
			}
			queue = append(queue, neighbor)
		}
	}

	if !found {
		return nil, nil
	}

	// Walk parent pointers backward from the target.
	var ids []string
	var rels []*graph.ContextRelationship
	for id := targetID; id != sourceID; id = parents[id].id {
		ids = append(ids, id)
		rels = append(rels, parents[id].rel)
	}
	ids = append(ids, sourceID)

	path := make([]*graph.ContextEntity, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		entity, err := e.entities.GetEntityByID(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		if entity == nil {
			return nil, fmt.Errorf("path entity %s vanished during traversal", ids[i])
		}
		path = append(path, entity)
	}
	// Reverse relationships to source->target order.
	for i, j := 0, len(rels)-1; i < j; i, j = i+1, j-1 {
		rels[i], rels[j] = rels[j], rels[i]
	}

	return &PathResult{Path: path, Relationships: rels}, nil
}

// GetEntityContext composes one read-optimized bundle: the entity, its
// direct relationships, 1-hop related entities above a permissive weight
// threshold, and its most recent decisions. Returns (nil, nil) only when
// the entity itself does not exist.
func (e *Engine) GetEntityContext(ctx context.Context, entityID string) (*EntityContext, error) {
	if entityID == "" {
		return nil, graph.ErrEmptyID
	}

	entity, err := e.entities.GetEntityByID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}

	relationships, err := e.rels.GetEntityRelationships(ctx, entityID)
	if err != nil {
		return nil, err
	}
	related, err := e.FindRelatedEntities(ctx, entityID, 1, contextRelatedMinWeight)
	if err != nil {
		return nil, err
	}
	decisions, err := e.GetEntityDecisionHistory(ctx, entityID, contextDecisionLimit)
	if err != nil {
		return nil, err
	}

	return &EntityContext{
		Entity:          entity,
		Relationships:   relationships,
		RelatedEntities: related,
		RecentDecisions: decisions,
	}, nil
}
