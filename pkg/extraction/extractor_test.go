package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextos/pkg/decisionlog"
	"github.com/fyrsmithlabs/contextos/pkg/docstore"
	"github.com/fyrsmithlabs/contextos/pkg/graph"
)

func newTestExtractor(t *testing.T) (*Extractor, *graph.EntityStore, *graph.RelationshipStore) {
	t.Helper()
	docs := docstore.NewMemoryStore()
	rels, err := graph.NewRelationshipStore(docs, zap.NewNop())
	require.NoError(t, err)
	entities, err := graph.NewEntityStore(docs, rels, zap.NewNop())
	require.NoError(t, err)
	extractor, err := NewExtractor(entities, rels, Config{}, zap.NewNop())
	require.NoError(t, err)
	return extractor, entities, rels
}

func TestExtractEntitiesFromDecision(t *testing.T) {
	extractor, entities, rels := newTestExtractor(t)
	ctx := context.Background()

	trace := &decisionlog.DecisionTrace{
		ID:        "trace-1",
		AgentID:   "ember",
		Task:      "discount product",
		Reasoning: "inventory is over target",
		Inputs:    map[string]any{"productName": "Blue Dream", "percent": 15},
	}
	ids, err := extractor.ExtractEntitiesFromDecision(ctx, trace)
	require.NoError(t, err)
	require.Len(t, ids, 2, "agent plus one product")

	agent, err := entities.GetEntityByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, graph.EntityAgent, agent.Type)
	assert.Equal(t, "ember", agent.Name)

	product, err := entities.GetEntityByID(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, graph.EntityProduct, product.Type)
	assert.Equal(t, "Blue Dream", product.Name)

	edges, err := rels.FindRelationships(ctx, graph.RelationshipFilter{SourceID: agent.ID})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, product.ID, edges[0].TargetID)
	assert.Equal(t, graph.RelDecidedBy, edges[0].Type)
	assert.Equal(t, graph.DefaultDecisionWeight, edges[0].Weight)
	assert.Equal(t, "trace-1", edges[0].DecisionTraceID)
}

func TestExtract_KeywordGate(t *testing.T) {
	docs := docstore.NewMemoryStore()
	rels, err := graph.NewRelationshipStore(docs, zap.NewNop())
	require.NoError(t, err)
	entities, err := graph.NewEntityStore(docs, rels, zap.NewNop())
	require.NoError(t, err)
	extractor, err := NewExtractor(entities, rels, Config{
		Categories: []Category{{
			Type:     graph.EntityCampaign,
			Keywords: []string{"promotion"},
			Fields:   []string{"title"},
		}},
	}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()

	// The gating keyword appears nowhere in the trace, so the allowlisted
	// field is never consulted.
	ids, err := extractor.ExtractEntitiesFromDecision(ctx, &decisionlog.DecisionTrace{
		ID:        "trace-gate",
		AgentID:   "ember",
		Task:      "send weekly report",
		Reasoning: "routine reporting",
		Inputs:    map[string]any{"title": "Summer Sale"},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 1, "only the agent entity")

	// With the keyword present the same inputs yield the campaign.
	ids, err = extractor.ExtractEntitiesFromDecision(ctx, &decisionlog.DecisionTrace{
		ID:        "trace-gate-open",
		AgentID:   "ember",
		Task:      "schedule promotion",
		Reasoning: "weekly push",
		Inputs:    map[string]any{"title": "Summer Sale"},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestExtract_NestedInputsAndFieldSpellings(t *testing.T) {
	extractor, entities, _ := newTestExtractor(t)
	ctx := context.Background()

	ids, err := extractor.ExtractEntitiesFromDecision(ctx, &decisionlog.DecisionTrace{
		ID:      "trace-nested",
		AgentID: "ember",
		Task:    "launch campaign for product",
		Inputs: map[string]any{
			"campaign_name": "Summer Sale",
			"details":       map[string]any{"product_name": "Green Crack"},
			"ignored":       map[string]any{"note": "not an entity"},
		},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	products, err := entities.FindEntities(ctx, graph.EntityFilter{Type: graph.EntityProduct})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Green Crack", products[0].Name)

	campaigns, err := entities.FindEntities(ctx, graph.EntityFilter{Type: graph.EntityCampaign})
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "Summer Sale", campaigns[0].Name)
}

func TestExtract_DedupWithinRun(t *testing.T) {
	extractor, _, rels := newTestExtractor(t)
	ctx := context.Background()

	// The same product appears under two allowlisted fields; one entity,
	// one edge at the initial weight.
	ids, err := extractor.ExtractEntitiesFromDecision(ctx, &decisionlog.DecisionTrace{
		ID:      "trace-dup",
		AgentID: "ember",
		Task:    "restock product",
		Inputs: map[string]any{
			"productName": "Blue Dream",
			"sku":         "blue dream",
		},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	edges, err := rels.FindRelationships(ctx, graph.RelationshipFilter{SourceID: ids[0]})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, graph.DefaultDecisionWeight, edges[0].Weight)
}

func TestExtract_Memoization(t *testing.T) {
	extractor, entities, rels := newTestExtractor(t)
	ctx := context.Background()

	trace := &decisionlog.DecisionTrace{
		ID:      "trace-memo",
		AgentID: "ember",
		Task:    "discount product",
		Inputs:  map[string]any{"productName": "Blue Dream"},
	}

	first, err := extractor.ExtractEntitiesFromDecision(ctx, trace)
	require.NoError(t, err)
	assert.Equal(t, 1, extractor.CacheLen())

	// Second call is served from the memo: same ids, no reinforcement.
	second, err := extractor.ExtractEntitiesFromDecision(ctx, trace)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	edges, err := rels.FindRelationships(ctx, graph.RelationshipFilter{SourceID: first[0]})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, graph.DefaultDecisionWeight, edges[0].Weight)

	// After the memo is dropped, re-extraction hits the stores again; their
	// dedup turns it into reinforcement rather than duplicates.
	extractor.ClearCache()
	assert.Equal(t, 0, extractor.CacheLen())

	third, err := extractor.ExtractEntitiesFromDecision(ctx, trace)
	require.NoError(t, err)
	assert.Equal(t, first, third)

	products, err := entities.FindEntities(ctx, graph.EntityFilter{Type: graph.EntityProduct})
	require.NoError(t, err)
	assert.Len(t, products, 1)

	edges, err = rels.FindRelationships(ctx, graph.RelationshipFilter{SourceID: first[0]})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.InDelta(t, graph.DefaultDecisionWeight+graph.ReinforcementIncrement, edges[0].Weight, 1e-9)
}

func TestExtract_CacheEviction(t *testing.T) {
	docs := docstore.NewMemoryStore()
	rels, err := graph.NewRelationshipStore(docs, zap.NewNop())
	require.NoError(t, err)
	entities, err := graph.NewEntityStore(docs, rels, zap.NewNop())
	require.NoError(t, err)
	extractor, err := NewExtractor(entities, rels, Config{CacheSize: 2}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []string{"t1", "t2", "t3"} {
		_, err := extractor.ExtractEntitiesFromDecision(ctx, &decisionlog.DecisionTrace{
			ID:      id,
			AgentID: "ember",
			Task:    "noop",
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, extractor.CacheLen(), "cache never exceeds its capacity")
}

func TestExtract_Validation(t *testing.T) {
	extractor, _, _ := newTestExtractor(t)
	ctx := context.Background()

	_, err := extractor.ExtractEntitiesFromDecision(ctx, nil)
	assert.Error(t, err)

	_, err = extractor.ExtractEntitiesFromDecision(ctx, &decisionlog.DecisionTrace{AgentID: "a", Task: "t"})
	assert.Error(t, err, "unlogged trace without id")

	_, err = extractor.ExtractEntitiesFromDecision(ctx, &decisionlog.DecisionTrace{ID: "x", Task: "t"})
	assert.ErrorIs(t, err, decisionlog.ErrEmptyAgentID)
}
