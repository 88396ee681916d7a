// Package extraction derives graph entities and relationships from
// decision traces using keyword heuristics.
//
// Given a trace, the extractor builds a lowercase search string from the
// task, reasoning and serialized inputs, tests each entity category's
// keyword list against it, and harvests candidate entity names from the
// trace inputs using a per-category field-name allowlist (one nested map
// level deep). Every candidate is found-or-created in the entity store and
// connected to the acting agent with a decided_by edge carrying the trace
// id as provenance.
//
// Results are memoized per decision id in a bounded LRU cache (true LRU
// eviction), so re-processing a cached decision is a no-op. Extraction is
// best-effort enrichment: it never runs on the decision logging path and
// its failures never invalidate an already-logged trace.
package extraction
