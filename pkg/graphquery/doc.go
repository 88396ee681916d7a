// Package graphquery provides read-side traversal over the entity graph
// and its decision provenance.
//
// FindRelatedEntities is a weighted breadth-first expansion: each path
// accumulates the product of its edge weights, neighbors below the weight
// threshold are pruned, and the first (shallowest) discovery of an entity
// wins. The result deliberately favors strongly-connected, shallow
// relationships over distant weak ones; it is a relevance heuristic, not
// an all-paths enumeration. FindShortestPath, by contrast, ignores weight
// entirely: it answers connectivity, not cost.
package graphquery
