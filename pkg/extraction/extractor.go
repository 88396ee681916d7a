package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextos/pkg/decisionlog"
	"github.com/fyrsmithlabs/contextos/pkg/graph"
)

// Extractor materializes entities and decided_by relationships from
// decision traces. Safe for concurrent use; the memo cache is the only
// in-process shared state and is internally locked.
type Extractor struct {
	entities   *graph.EntityStore
	rels       *graph.RelationshipStore
	categories []Category
	cache      *lru.Cache[string, []string]
	logger     *zap.Logger
	metrics    *Metrics
}

// NewExtractor creates an extractor over the given graph stores.
func NewExtractor(entities *graph.EntityStore, rels *graph.RelationshipStore, cfg Config, logger *zap.Logger) (*Extractor, error) {
	if entities == nil {
		return nil, fmt.Errorf("entity store cannot be nil")
	}
	if rels == nil {
		return nil, fmt.Errorf("relationship store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []string](size)
	if err != nil {
		return nil, fmt.Errorf("creating memo cache: %w", err)
	}

	categories := cfg.Categories
	if len(categories) == 0 {
		categories = DefaultCategories()
	}

	return &Extractor{
		entities:   entities,
		rels:       rels,
		categories: categories,
		cache:      cache,
		logger:     logger.Named("extraction"),
		metrics:    NewMetrics(logger),
	}, nil
}

// ExtractEntitiesFromDecision finds or creates the entities a decision
// implicates and connects each to the acting agent. Returns the ids of
// all entities touched, the agent entity first.
//
// Memoized per decision id: a cache hit returns the prior ids without
// touching the stores. After an eviction the decision re-extracts; the
// stores' own dedup turns that into reinforcement, not duplication.
func (e *Extractor) ExtractEntitiesFromDecision(ctx context.Context, trace *decisionlog.DecisionTrace) ([]string, error) {
	if trace == nil {
		return nil, fmt.Errorf("trace cannot be nil")
	}
	if trace.ID == "" {
		return nil, fmt.Errorf("trace id cannot be empty")
	}
	if trace.AgentID == "" {
		return nil, decisionlog.ErrEmptyAgentID
	}

	if ids, ok := e.cache.Get(trace.ID); ok {
		e.metrics.RecordCacheHit(ctx)
		return ids, nil
	}

	start := time.Now()
	search := buildSearchString(trace)

	agent, err := e.entities.GetOrCreateEntity(ctx, graph.EntityAgent, trace.AgentID, nil)
	if err != nil {
		return nil, fmt.Errorf("materializing agent entity: %w", err)
	}
	ids := []string{agent.ID}

	// Dedup candidates within one run so a name appearing under several
	// input fields does not reinforce its own decided_by edge.
	seen := make(map[string]bool)
	for _, cat := range e.categories {
		if !containsAny(search, cat.Keywords) {
			continue
		}
		for _, name := range candidateNames(trace.Inputs, cat.Fields) {
			key := string(cat.Type) + "\x00" + graph.NormalizeName(name)
			if seen[key] {
				continue
			}
			seen[key] = true

			entity, err := e.entities.GetOrCreateEntity(ctx, cat.Type, name, nil)
			if err != nil {
				return nil, fmt.Errorf("materializing %s entity %q: %w", cat.Type, name, err)
			}
			if _, err := e.rels.CreateRelationshipFromDecision(ctx, agent.ID, entity.ID,
				graph.RelDecidedBy, trace.ID, graph.DefaultDecisionWeight); err != nil {
				return nil, fmt.Errorf("linking agent to %s entity %q: %w", cat.Type, name, err)
			}
			ids = append(ids, entity.ID)
		}
	}

	e.cache.Add(trace.ID, ids)
	e.metrics.RecordExtraction(ctx, time.Since(start), len(ids))

	e.logger.Debug("entities extracted",
		zap.String("decision_id", trace.ID),
		zap.Int("entities", len(ids)))
	return ids, nil
}

// ClearCache drops all memoized results. Correctness is unaffected; only
// recomputation cost changes.
func (e *Extractor) ClearCache() {
	e.cache.Purge()
}

// CacheLen reports the current number of memoized decisions.
func (e *Extractor) CacheLen() int {
	return e.cache.Len()
}

func buildSearchString(trace *decisionlog.DecisionTrace) string {
	parts := []string{trace.Task, trace.Reasoning}
	if len(trace.Inputs) > 0 {
		if data, err := json.Marshal(trace.Inputs); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// candidateNames scans inputs for allowlisted field names with non-empty
// string values, descending one level into nested maps.
func candidateNames(inputs map[string]any, fields []string) []string {
	var names []string
	for k, v := range inputs {
		switch val := v.(type) {
		case string:
			if fieldAllowed(k, fields) && strings.TrimSpace(val) != "" {
				names = append(names, val)
			}
		case map[string]any:
			for nk, nv := range val {
				if str, ok := nv.(string); ok && fieldAllowed(nk, fields) && strings.TrimSpace(str) != "" {
					names = append(names, str)
				}
			}
		}
	}
	return names
}

func fieldAllowed(name string, fields []string) bool {
	for _, f := range fields {
		if strings.EqualFold(name, f) {
			return true
		}
	}
	return false
}
