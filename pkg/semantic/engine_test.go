package semantic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextos/pkg/decisionlog"
	"github.com/fyrsmithlabs/contextos/pkg/docstore"
)

// axisEmbedder maps topic keywords to orthogonal axes so similarity in
// tests is exact: texts sharing a topic score 1.0, mixed-topic texts score
// partway, unrelated texts score 0.
type axisEmbedder struct {
	calls int
}

func (e *axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	lower := strings.ToLower(text)
	vec := make([]float32, 3)
	if strings.Contains(lower, "discount") {
		vec[0] = 1
	}
	if strings.Contains(lower, "loyalty") {
		vec[1] = 1
	}
	if strings.Contains(lower, "competitor") {
		vec[2] = 1
	}
	return vec, nil
}

func (e *axisEmbedder) Dimensions() int { return 3 }

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider unavailable")
}

func (failingEmbedder) Dimensions() int { return 3 }

func newTestEngine(t *testing.T, embedder Embedder) (*Engine, *decisionlog.Store) {
	t.Helper()
	decisions, err := decisionlog.NewStore(docstore.NewMemoryStore(), zap.NewNop())
	require.NoError(t, err)
	engine, err := NewEngine(decisions, embedder, Config{}, zap.NewNop())
	require.NoError(t, err)
	return engine, decisions
}

func logTrace(t *testing.T, decisions *decisionlog.Store, task, reasoning string) *decisionlog.DecisionTrace {
	t.Helper()
	trace := &decisionlog.DecisionTrace{AgentID: "ember", Task: task, Reasoning: reasoning}
	_, err := decisions.LogDecision(context.Background(), trace)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	return trace
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestIsZeroVector(t *testing.T) {
	assert.True(t, IsZeroVector(nil))
	assert.True(t, IsZeroVector([]float32{0, 0, 0}))
	assert.False(t, IsZeroVector([]float32{0, 0.1, 0}))
}

func TestGenerateEmbedding_FallsBackToZeroVector(t *testing.T) {
	engine, _ := newTestEngine(t, failingEmbedder{})

	vec := engine.GenerateEmbedding(context.Background(), "anything")
	require.Len(t, vec, 3)
	assert.True(t, IsZeroVector(vec), "failures degrade to a vector that matches nothing")
}

func TestSemanticSearchDecisions(t *testing.T) {
	engine, decisions := newTestEngine(t, &axisEmbedder{})
	ctx := context.Background()

	logTrace(t, decisions, "apply discount to slow stock", "clear inventory")
	logTrace(t, decisions, "tune discount for loyalty members", "split topic")
	logTrace(t, decisions, "watch competitor pricing", "unrelated")

	got, err := engine.SemanticSearchDecisions(ctx, "discount strategy", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Pure-topic match outranks the mixed one; both clear the threshold,
	// the competitor decision scores 0 and is dropped.
	assert.Equal(t, "apply discount to slow stock", got[0].Decision.Task)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
	assert.Equal(t, "tune discount for loyalty members", got[1].Decision.Task)
	assert.InDelta(t, 0.7071, got[1].Similarity, 1e-3)

	t.Run("limit truncates", func(t *testing.T) {
		got, err := engine.SemanticSearchDecisions(ctx, "discount strategy", 1, 0.5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
	})

	t.Run("threshold filters", func(t *testing.T) {
		got, err := engine.SemanticSearchDecisions(ctx, "discount strategy", 5, 0.9)
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := engine.SemanticSearchDecisions(ctx, "   ", 5, 0.5)
		assert.Error(t, err)
	})

	t.Run("no matches", func(t *testing.T) {
		got, err := engine.SemanticSearchDecisions(ctx, "loyalty program", 5, 0.9)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSemanticSearch_ReusesStoredEmbeddings(t *testing.T) {
	embedder := &axisEmbedder{}
	engine, decisions := newTestEngine(t, embedder)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		trace := logTrace(t, decisions, "apply discount", "stock")
		require.True(t, engine.StoreDecisionEmbedding(ctx, trace))
	}

	embedder.calls = 0
	_, err := engine.SemanticSearchDecisions(ctx, "discount", 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.calls, "only the query is embedded when every decision has a stored vector")
}

func TestStoreDecisionEmbedding(t *testing.T) {
	engine, decisions := newTestEngine(t, &axisEmbedder{})
	ctx := context.Background()

	trace := logTrace(t, decisions, "apply discount", "stock")
	require.True(t, engine.StoreDecisionEmbedding(ctx, trace))
	assert.NotEmpty(t, trace.Embedding)

	stored, err := decisions.GetDecisionByID(ctx, trace.ID)
	require.NoError(t, err)
	require.Len(t, stored.Embedding, 3)
	assert.Equal(t, float32(1), stored.Embedding[0])

	assert.False(t, engine.StoreDecisionEmbedding(ctx, nil))
	assert.False(t, engine.StoreDecisionEmbedding(ctx, &decisionlog.DecisionTrace{}))
}

func TestStoreDecisionEmbedding_SkipsZeroVector(t *testing.T) {
	engine, decisions := newTestEngine(t, failingEmbedder{})
	ctx := context.Background()

	trace := logTrace(t, decisions, "apply discount", "stock")
	assert.False(t, engine.StoreDecisionEmbedding(ctx, trace))

	stored, err := decisions.GetDecisionByID(ctx, trace.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Embedding)
}

func TestBackfillEmbeddings(t *testing.T) {
	engine, decisions := newTestEngine(t, &axisEmbedder{})
	ctx := context.Background()

	var traces []*decisionlog.DecisionTrace
	for i := 0; i < 5; i++ {
		traces = append(traces, logTrace(t, decisions, "apply discount", "stock"))
	}
	require.True(t, engine.StoreDecisionEmbedding(ctx, traces[0]))
	require.True(t, engine.StoreDecisionEmbedding(ctx, traces[1]))

	count, err := engine.BackfillEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	window, err := decisions.QueryDecisions(ctx, decisionlog.Filter{Limit: 10})
	require.NoError(t, err)
	for _, trace := range window {
		assert.NotEmpty(t, trace.Embedding)
	}

	count, err = engine.BackfillEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "backfill is idempotent")
}

func TestBackfillEmbeddings_Limit(t *testing.T) {
	engine, decisions := newTestEngine(t, &axisEmbedder{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		logTrace(t, decisions, "apply discount", "stock")
	}

	count, err := engine.BackfillEmbeddings(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
