package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRelationship_Reinforcement(t *testing.T) {
	_, rels := newTestStores(t)
	ctx := context.Background()

	id, err := rels.CreateRelationship(ctx, &ContextRelationship{
		SourceID: "a", TargetID: "b", Type: RelInfluences, Weight: 0.5,
	})
	require.NoError(t, err)

	// Same triple again: the caller's weight is ignored, the stored weight
	// rises by the fixed increment.
	again, err := rels.CreateRelationship(ctx, &ContextRelationship{
		SourceID: "a", TargetID: "b", Type: RelInfluences, Weight: 0.99,
	})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	rel, err := rels.GetRelationship(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, rel.Weight, 1e-9)

	// A different type between the same pair is a distinct edge.
	other, err := rels.CreateRelationship(ctx, &ContextRelationship{
		SourceID: "a", TargetID: "b", Type: RelTriggers, Weight: 0.3,
	})
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	// So is the reverse direction.
	reverse, err := rels.CreateRelationship(ctx, &ContextRelationship{
		SourceID: "b", TargetID: "a", Type: RelInfluences, Weight: 0.3,
	})
	require.NoError(t, err)
	assert.NotEqual(t, id, reverse)
}

func TestCreateRelationship_ReinforcementCapped(t *testing.T) {
	_, rels := newTestStores(t)
	ctx := context.Background()

	id, err := rels.CreateRelationship(ctx, &ContextRelationship{
		SourceID: "a", TargetID: "b", Type: RelInfluences, Weight: 0.95,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = rels.CreateRelationship(ctx, &ContextRelationship{
			SourceID: "a", TargetID: "b", Type: RelInfluences, Weight: 0.5,
		})
		require.NoError(t, err)
	}

	rel, err := rels.GetRelationship(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rel.Weight, "weight saturates at 1.0")
}

func TestCreateRelationship_Validation(t *testing.T) {
	_, rels := newTestStores(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		rel     *ContextRelationship
		wantErr error
	}{
		{"missing source", &ContextRelationship{TargetID: "b", Type: RelInfluences, Weight: 0.5}, ErrEmptyID},
		{"missing target", &ContextRelationship{SourceID: "a", Type: RelInfluences, Weight: 0.5}, ErrEmptyID},
		{"bad type", &ContextRelationship{SourceID: "a", TargetID: "b", Type: "likes", Weight: 0.5}, ErrInvalidRelType},
		{"weight below range", &ContextRelationship{SourceID: "a", TargetID: "b", Type: RelInfluences, Weight: -0.1}, ErrInvalidWeight},
		{"weight above range", &ContextRelationship{SourceID: "a", TargetID: "b", Type: RelInfluences, Weight: 1.1}, ErrInvalidWeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rels.CreateRelationship(ctx, tt.rel)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateRelationshipFromDecision(t *testing.T) {
	_, rels := newTestStores(t)
	ctx := context.Background()

	id, err := rels.CreateRelationshipFromDecision(ctx, "agent", "product", RelDecidedBy, "trace-1", 0)
	require.NoError(t, err)

	rel, err := rels.GetRelationship(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, DefaultDecisionWeight, rel.Weight, "zero weight falls back to the default")
	assert.Equal(t, "trace-1", rel.DecisionTraceID)

	id2, err := rels.CreateRelationshipFromDecision(ctx, "agent", "campaign", RelDecidedBy, "trace-2", 0.8)
	require.NoError(t, err)
	rel2, err := rels.GetRelationship(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, 0.8, rel2.Weight)
}

func TestFindRelationships(t *testing.T) {
	_, rels := newTestStores(t)
	ctx := context.Background()

	seed := []*ContextRelationship{
		{SourceID: "a", TargetID: "b", Type: RelInfluences, Weight: 0.9},
		{SourceID: "a", TargetID: "c", Type: RelTriggers, Weight: 0.4},
		{SourceID: "b", TargetID: "c", Type: RelInfluences, Weight: 0.6},
	}
	for _, rel := range seed {
		_, err := rels.CreateRelationship(ctx, rel)
		require.NoError(t, err)
	}

	got, err := rels.FindRelationships(ctx, RelationshipFilter{SourceID: "a"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = rels.FindRelationships(ctx, RelationshipFilter{Type: RelInfluences})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = rels.FindRelationships(ctx, RelationshipFilter{MinWeight: 0.6})
	require.NoError(t, err)
	assert.Len(t, got, 2, "min weight bound is inclusive")

	_, err = rels.FindRelationships(ctx, RelationshipFilter{Type: "likes"})
	assert.ErrorIs(t, err, ErrInvalidRelType)

	_, err = rels.FindRelationships(ctx, RelationshipFilter{MinWeight: 1.5})
	assert.ErrorIs(t, err, ErrInvalidWeight)
}

func TestGetEntityRelationships(t *testing.T) {
	_, rels := newTestStores(t)
	ctx := context.Background()

	_, err := rels.CreateRelationship(ctx, &ContextRelationship{SourceID: "x", TargetID: "y", Type: RelInfluences, Weight: 0.5})
	require.NoError(t, err)
	_, err = rels.CreateRelationship(ctx, &ContextRelationship{SourceID: "z", TargetID: "x", Type: RelTriggers, Weight: 0.5})
	require.NoError(t, err)

	both, err := rels.GetEntityRelationships(ctx, "x")
	require.NoError(t, err)
	require.Len(t, both.Outgoing, 1)
	require.Len(t, both.Incoming, 1)
	assert.Equal(t, "y", both.Outgoing[0].TargetID)
	assert.Equal(t, "z", both.Incoming[0].SourceID)
}

func TestUpdateRelationshipWeight_Clamps(t *testing.T) {
	_, rels := newTestStores(t)
	ctx := context.Background()

	id, err := rels.CreateRelationship(ctx, &ContextRelationship{
		SourceID: "a", TargetID: "b", Type: RelInfluences, Weight: 0.5,
	})
	require.NoError(t, err)

	tests := []struct {
		in   float64
		want float64
	}{
		{0.7, 0.7},
		{1.8, 1.0},
		{-0.3, 0.0},
	}
	for _, tt := range tests {
		require.NoError(t, rels.UpdateRelationshipWeight(ctx, id, tt.in))
		rel, err := rels.GetRelationship(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, rel.Weight)
	}
}

func TestDeleteRelationshipsForEntity(t *testing.T) {
	_, rels := newTestStores(t)
	ctx := context.Background()

	_, err := rels.CreateRelationship(ctx, &ContextRelationship{SourceID: "x", TargetID: "y", Type: RelInfluences, Weight: 0.5})
	require.NoError(t, err)
	_, err = rels.CreateRelationship(ctx, &ContextRelationship{SourceID: "y", TargetID: "x", Type: RelTriggers, Weight: 0.5})
	require.NoError(t, err)
	keepID, err := rels.CreateRelationship(ctx, &ContextRelationship{SourceID: "y", TargetID: "z", Type: RelInfluences, Weight: 0.5})
	require.NoError(t, err)

	count, err := rels.DeleteRelationshipsForEntity(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	kept, err := rels.GetRelationship(ctx, keepID)
	require.NoError(t, err)
	assert.NotNil(t, kept, "edges not touching the entity survive")

	count, err = rels.DeleteRelationshipsForEntity(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestFindRelationships_LimitSemantics(t *testing.T) {
	_, rels := newTestStores(t)
	ctx := context.Background()

	total := DefaultRelationshipLimit + 50
	for i := 0; i < total; i++ {
		_, err := rels.CreateRelationship(ctx, &ContextRelationship{
			SourceID: "hub",
			TargetID: fmt.Sprintf("spoke-%d", i),
			Type:     RelInfluences,
			Weight:   0.5,
		})
		require.NoError(t, err)
	}

	capped, err := rels.FindRelationships(ctx, RelationshipFilter{SourceID: "hub"})
	require.NoError(t, err)
	assert.Len(t, capped, DefaultRelationshipLimit, "zero limit falls back to the default cap")

	all, err := rels.FindRelationships(ctx, RelationshipFilter{SourceID: "hub", Limit: -1})
	require.NoError(t, err)
	assert.Len(t, all, total, "negative limit disables the cap")

	some, err := rels.FindRelationships(ctx, RelationshipFilter{SourceID: "hub", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, some, 10)
}

func TestDeleteRelationshipsForEntity_HighDegree(t *testing.T) {
	_, rels := newTestStores(t)
	ctx := context.Background()

	outgoing := DefaultRelationshipLimit + 50
	incoming := 20
	for i := 0; i < outgoing; i++ {
		_, err := rels.CreateRelationship(ctx, &ContextRelationship{
			SourceID: "hub",
			TargetID: fmt.Sprintf("out-%d", i),
			Type:     RelInfluences,
			Weight:   0.5,
		})
		require.NoError(t, err)
	}
	for i := 0; i < incoming; i++ {
		_, err := rels.CreateRelationship(ctx, &ContextRelationship{
			SourceID: fmt.Sprintf("in-%d", i),
			TargetID: "hub",
			Type:     RelTriggers,
			Weight:   0.5,
		})
		require.NoError(t, err)
	}

	both, err := rels.GetEntityRelationships(ctx, "hub")
	require.NoError(t, err)
	assert.Len(t, both.Outgoing, outgoing, "directional scans see every edge")
	assert.Len(t, both.Incoming, incoming)

	count, err := rels.DeleteRelationshipsForEntity(ctx, "hub")
	require.NoError(t, err)
	assert.Equal(t, outgoing+incoming, count)

	left, err := rels.FindRelationships(ctx, RelationshipFilter{SourceID: "hub", Limit: -1})
	require.NoError(t, err)
	assert.Empty(t, left, "no outgoing edges survive the delete")

	left, err = rels.FindRelationships(ctx, RelationshipFilter{TargetID: "hub", Limit: -1})
	require.NoError(t, err)
	assert.Empty(t, left, "no incoming edges survive the delete")
}

func TestGetRelationship_Missing(t *testing.T) {
	_, rels := newTestStores(t)

	rel, err := rels.GetRelationship(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, rel)
}
