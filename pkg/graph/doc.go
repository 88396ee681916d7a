// Package graph owns the entity/relationship knowledge graph.
//
// Entities are deduplicated business objects (products, brands, customers,
// campaigns, competitors, regulations, agents): at most one entity exists
// per (type, case-insensitively normalized name) pair, and creating an
// existing pair merges attributes into the survivor instead of duplicating
// it. Relationships are directed, typed, weighted edges deduplicated per
// (source, target, type) triple; repeat observations reinforce the
// existing edge's weight instead of adding parallel edges.
//
// EntityStore and RelationshipStore jointly own the graph: deleting an
// entity cascades to every edge touching it. A relationship's
// decisionTraceId is a non-owning provenance reference into the decision
// log; nothing cascades across that boundary.
package graph
