// Package decisionlog provides the append-only decision trace store.
//
// A DecisionTrace is an immutable audit record of one automated decision:
// who decided (agentId), what was being done (task), why (reasoning), and
// how it ended (outcome). Traces are written once via LogDecision; the
// only later mutations are appending forward links (LinkDecisions) and
// attaching a reusable embedding (StoreEmbedding).
//
// The log's integrity is the product: write failures always propagate to
// the caller, unlike the best-effort enrichment layers built on top of it
// (entity extraction, embeddings).
package decisionlog
