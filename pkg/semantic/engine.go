package semantic

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextos/pkg/decisionlog"
)

const (
	// DefaultSearchWindow is how many recent decisions a search scans.
	DefaultSearchWindow = 100

	// DefaultSearchLimit caps search results when no limit is given.
	DefaultSearchLimit = 5

	// DefaultMinSimilarity filters search results when none is given.
	DefaultMinSimilarity = 0.5

	// DefaultBackfillLimit caps BackfillEmbeddings when no limit is given.
	DefaultBackfillLimit = 50
)

// ScoredDecision pairs a decision with its similarity to a query.
type ScoredDecision struct {
	Decision   *decisionlog.DecisionTrace `json:"decision"`
	Similarity float64                    `json:"similarity"`
}

// Config holds semantic engine tuning.
type Config struct {
	// SearchWindow is the number of recent decisions scanned per search.
	// Zero uses DefaultSearchWindow.
	SearchWindow int `json:"search_window"`
}

// Engine embeds decision text and answers similarity queries over the
// decision log.
type Engine struct {
	decisions *decisionlog.Store
	embedder  Embedder
	window    int
	logger    *zap.Logger
	metrics   *Metrics
}

// NewEngine creates a semantic query engine.
func NewEngine(decisions *decisionlog.Store, embedder Embedder, cfg Config, logger *zap.Logger) (*Engine, error) {
	if decisions == nil {
		return nil, fmt.Errorf("decision store cannot be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if embedder.Dimensions() <= 0 {
		return nil, fmt.Errorf("embedder dimensions must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	window := cfg.SearchWindow
	if window <= 0 {
		window = DefaultSearchWindow
	}

	return &Engine{
		decisions: decisions,
		embedder:  embedder,
		window:    window,
		logger:    logger.Named("semantic"),
		metrics:   NewMetrics(logger),
	}, nil
}

// GenerateEmbedding embeds text, absorbing failure: any error (or an
// empty result) yields the zero vector of the embedder's dimensionality,
// logged but never propagated. Callers always get a usable vector; a zero
// vector simply never matches anything.
func (e *Engine) GenerateEmbedding(ctx context.Context, text string) []float32 {
	start := time.Now()
	vec, err := e.embedder.Embed(ctx, text)
	e.metrics.RecordEmbedding(ctx, time.Since(start), err)
	if err != nil || len(vec) == 0 {
		e.logger.Warn("embedding generation failed, falling back to zero vector",
			zap.Int("text_len", len(text)),
			zap.Error(err))
		return make([]float32, e.embedder.Dimensions())
	}
	return vec
}

// SemanticSearchDecisions embeds the query and scores it against the most
// recent window of decisions, reusing stored embeddings where present and
// synthesizing the rest on the fly. Results with similarity below
// minSimilarity are dropped; the rest sort descending and truncate to
// limit. Non-positive limit and minSimilarity use the defaults.
func (e *Engine) SemanticSearchDecisions(ctx context.Context, query string, limit int, minSimilarity float64) ([]ScoredDecision, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	start := time.Now()
	queryVec := e.GenerateEmbedding(ctx, query)

	window, err := e.decisions.QueryDecisions(ctx, decisionlog.Filter{Limit: e.window})
	if err != nil {
		return nil, fmt.Errorf("fetching search window: %w", err)
	}

	var scored []ScoredDecision
	for _, trace := range window {
		vec := trace.Embedding
		if len(vec) == 0 {
			vec = e.GenerateEmbedding(ctx, decisionText(trace))
		}
		sim := CosineSimilarity(queryVec, vec)
		if sim < minSimilarity {
			continue
		}
		scored = append(scored, ScoredDecision{Decision: trace, Similarity: sim})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	e.metrics.RecordSearch(ctx, time.Since(start), len(window), len(scored))
	e.logger.Debug("semantic search completed",
		zap.Int("window", len(window)),
		zap.Int("results", len(scored)))
	return scored, nil
}

// StoreDecisionEmbedding computes and persists an embedding onto the
// decision record for reuse. This is a non-critical path: failures are
// logged and swallowed, and the returned bool only reports whether the
// embedding was stored.
func (e *Engine) StoreDecisionEmbedding(ctx context.Context, trace *decisionlog.DecisionTrace) bool {
	if trace == nil || trace.ID == "" {
		return false
	}

	vec := e.GenerateEmbedding(ctx, decisionText(trace))
	if IsZeroVector(vec) {
		// Nothing worth persisting; the fallback vector matches nothing.
		return false
	}
	if err := e.decisions.StoreEmbedding(ctx, trace.ID, vec); err != nil {
		e.logger.Warn("failed to store decision embedding",
			zap.String("decision_id", trace.ID),
			zap.Error(err))
		return false
	}
	trace.Embedding = vec
	return true
}

// BackfillEmbeddings finds recent decisions lacking a stored embedding and
// stores one for each, up to limit. Returns the number backfilled. For
// migration and catch-up use.
func (e *Engine) BackfillEmbeddings(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}

	// The store has no "field absent" filter, so scan a recent window and
	// post-filter. 2x the limit keeps the scan proportionate.
	scan := limit * 2
	if scan < DefaultSearchWindow {
		scan = DefaultSearchWindow
	}
	window, err := e.decisions.QueryDecisions(ctx, decisionlog.Filter{Limit: scan})
	if err != nil {
		return 0, fmt.Errorf("fetching backfill window: %w", err)
	}

	count := 0
	for _, trace := range window {
		if len(trace.Embedding) > 0 {
			continue
		}
		if e.StoreDecisionEmbedding(ctx, trace) {
			count++
		}
		if count >= limit {
			break
		}
	}

	e.logger.Info("embedding backfill completed",
		zap.Int("scanned", len(window)),
		zap.Int("backfilled", count))
	return count, nil
}

// decisionText synthesizes the embeddable text of a decision: task,
// reasoning, agent, outcome, original prompt and evaluator names, in that
// order.
func decisionText(trace *decisionlog.DecisionTrace) string {
	parts := []string{trace.Task, trace.Reasoning, trace.AgentID, string(trace.Outcome)}
	if trace.OriginalPrompt != "" {
		parts = append(parts, trace.OriginalPrompt)
	}
	for _, ev := range trace.Evaluators {
		parts = append(parts, ev.Name)
	}
	return strings.Join(parts, " ")
}
