package decisionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextos/pkg/docstore"
)

const (
	// Collection is the document collection decision traces live in.
	Collection = "decisions"

	// DefaultQueryLimit caps query results when the filter gives no limit.
	DefaultQueryLimit = 50

	// DefaultRecentLimit caps GetRecentAgentDecisions by default.
	DefaultRecentLimit = 5

	// maxInputValueLen bounds string values persisted inside Inputs.
	// Long prompts and payloads are truncated for storage; the full text
	// belongs to the caller, not the audit log.
	maxInputValueLen = 4096
)

// Store is the append-only decision trace store.
type Store struct {
	docs   docstore.Store
	logger *zap.Logger
}

// NewStore creates a decision log over the given document store.
func NewStore(docs docstore.Store, logger *zap.Logger) (*Store, error) {
	if docs == nil {
		return nil, fmt.Errorf("document store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{docs: docs, logger: logger.Named("decisionlog")}, nil
}

// LogDecision assigns an id and timestamp, persists the trace, and returns
// the id. Storage errors propagate unchanged: silently dropping a trace
// would break the audit guarantee.
func (s *Store) LogDecision(ctx context.Context, trace *DecisionTrace) (string, error) {
	if trace == nil {
		return "", fmt.Errorf("trace cannot be nil")
	}
	if err := trace.Validate(); err != nil {
		return "", err
	}

	trace.ID = uuid.New().String()
	trace.Timestamp = time.Now().UTC()
	if trace.Outcome == "" {
		trace.Outcome = OutcomePending
	}
	trace.Inputs = truncateInputs(trace.Inputs)

	rec, err := traceToRecord(trace)
	if err != nil {
		return "", err
	}
	if err := s.docs.CreateWithID(ctx, Collection, trace.ID, rec); err != nil {
		return "", fmt.Errorf("persisting decision: %w", err)
	}

	s.logger.Debug("decision logged",
		zap.String("id", trace.ID),
		zap.String("agent_id", trace.AgentID),
		zap.String("outcome", string(trace.Outcome)))
	return trace.ID, nil
}

// QueryDecisions returns traces matching the filter, newest first.
func (s *Store) QueryDecisions(ctx context.Context, f Filter) ([]*DecisionTrace, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	q := docstore.Query{
		Collection: Collection,
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      limit,
	}
	if f.AgentID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "agent_id", Op: docstore.OpEqual, Value: f.AgentID})
	}
	if f.BrandID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "brand_id", Op: docstore.OpEqual, Value: f.BrandID})
	}
	if f.UserID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "user_id", Op: docstore.OpEqual, Value: f.UserID})
	}
	if f.Outcome != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "outcome", Op: docstore.OpEqual, Value: string(f.Outcome)})
	}
	if !f.StartDate.IsZero() {
		q.Filters = append(q.Filters, docstore.Filter{Field: "timestamp", Op: docstore.OpGreaterOrEqual, Value: docstore.FormatTimestamp(f.StartDate)})
	}
	if !f.EndDate.IsZero() {
		q.Filters = append(q.Filters, docstore.Filter{Field: "timestamp", Op: docstore.OpLessOrEqual, Value: docstore.FormatTimestamp(f.EndDate)})
	}

	docs, err := s.docs.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}

	traces := make([]*DecisionTrace, 0, len(docs))
	for _, doc := range docs {
		trace, err := traceFromDoc(doc)
		if err != nil {
			s.logger.Warn("skipping malformed decision record",
				zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		traces = append(traces, trace)
	}
	return traces, nil
}

// GetDecisionByID fetches one trace. Missing ids return (nil, nil).
func (s *Store) GetDecisionByID(ctx context.Context, id string) (*DecisionTrace, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	rec, err := s.docs.Get(ctx, Collection, id)
	if err != nil {
		return nil, fmt.Errorf("fetching decision %s: %w", id, err)
	}
	if rec == nil {
		return nil, nil
	}
	return traceFromDoc(docstore.Doc{ID: id, Record: rec})
}

// GetRecentAgentDecisions returns the newest traces for one agent.
func (s *Store) GetRecentAgentDecisions(ctx context.Context, agentID string, limit int) ([]*DecisionTrace, error) {
	if agentID == "" {
		return nil, ErrEmptyAgentID
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.QueryDecisions(ctx, Filter{AgentID: agentID, Limit: limit})
}

// LinkDecisions appends targetID to the source trace's forward links.
// Idempotent: linking an already-linked target has no additional effect.
// Links are append-only; nothing ever removes one.
func (s *Store) LinkDecisions(ctx context.Context, sourceID, targetID string) error {
	if sourceID == "" || targetID == "" {
		return ErrEmptyID
	}

	source, err := s.GetDecisionByID(ctx, sourceID)
	if err != nil {
		return err
	}
	if source == nil {
		return fmt.Errorf("link source %s: decision not found", sourceID)
	}

	for _, id := range source.LinkedDecisions {
		if id == targetID {
			return nil
		}
	}
	linked := append(source.LinkedDecisions, targetID)

	if err := s.docs.Update(ctx, Collection, sourceID, docstore.Record{
		"linkedDecisions": linked,
	}); err != nil {
		return fmt.Errorf("linking decisions: %w", err)
	}
	return nil
}

// GetDecisionChain returns every trace reachable from startID by following
// linkedDecisions depth-first, the start included. Each id is visited at
// most once, so cycles terminate. Missing links are skipped.
func (s *Store) GetDecisionChain(ctx context.Context, startID string) ([]*DecisionTrace, error) {
	if startID == "" {
		return nil, ErrEmptyID
	}

	visited := make(map[string]bool)
	stack := []string{startID}
	var chain []*DecisionTrace

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		trace, err := s.GetDecisionByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if trace == nil {
			continue
		}
		chain = append(chain, trace)

		// Push in reverse so links are visited in recorded order.
		for i := len(trace.LinkedDecisions) - 1; i >= 0; i-- {
			if !visited[trace.LinkedDecisions[i]] {
				stack = append(stack, trace.LinkedDecisions[i])
			}
		}
	}
	return chain, nil
}

// StoreEmbedding persists an embedding vector onto the decision record so
// the semantic engine can reuse it instead of re-embedding.
func (s *Store) StoreEmbedding(ctx context.Context, id string, embedding []float32) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding cannot be empty")
	}
	if err := s.docs.Update(ctx, Collection, id, docstore.Record{
		"embedding": embedding,
	}); err != nil {
		return fmt.Errorf("storing embedding for %s: %w", id, err)
	}
	return nil
}

// traceToRecord converts a trace to its persisted shape. Beyond the
// canonical fields it writes the shadow fields the query layer filters on:
// agent_id, brand_id, user_id and the fixed-width timestamp. These must
// stay in sync with the canonical fields on every write.
func traceToRecord(trace *DecisionTrace) (docstore.Record, error) {
	data, err := json.Marshal(trace)
	if err != nil {
		return nil, fmt.Errorf("marshaling trace: %w", err)
	}
	var rec docstore.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling trace record: %w", err)
	}

	rec["timestamp"] = docstore.FormatTimestamp(trace.Timestamp)
	rec["agent_id"] = trace.AgentID
	rec["brand_id"] = trace.Metadata.BrandID
	rec["user_id"] = trace.Metadata.UserID
	return rec, nil
}

func traceFromDoc(doc docstore.Doc) (*DecisionTrace, error) {
	data, err := json.Marshal(doc.Record)
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}
	var trace DecisionTrace
	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, fmt.Errorf("unmarshaling trace: %w", err)
	}
	trace.ID = doc.ID

	if raw, ok := doc.Record["timestamp"].(string); ok {
		ts, err := docstore.ParseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		trace.Timestamp = ts
	}
	return &trace, nil
}

// truncateInputs caps string values (one nested level deep) so oversized
// prompts and payloads don't bloat the stored trace.
func truncateInputs(inputs map[string]any) map[string]any {
	if inputs == nil {
		return nil
	}
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		switch t := v.(type) {
		case string:
			out[k] = truncate(t)
		case map[string]any:
			nested := make(map[string]any, len(t))
			for nk, nv := range t {
				if str, ok := nv.(string); ok {
					nested[nk] = truncate(str)
				} else {
					nested[nk] = nv
				}
			}
			out[k] = nested
		default:
			out[k] = v
		}
	}
	return out
}

func truncate(s string) string {
	if len(s) <= maxInputValueLen {
		return s
	}
	return s[:maxInputValueLen]
}
