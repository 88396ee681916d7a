// Package semantic answers natural-language similarity queries over the
// decision log.
//
// Embedding generation is delegated to an external Embedder; this package
// never errors on embedding failure. Instead it falls back to a zero
// vector, which can never score as similar to anything — semantic search
// is advisory, so the failure mode is "irrelevant", not "broken".
//
// Search scans a fixed window of the most recent decisions (not the full
// corpus) and scores each by cosine similarity, reusing embeddings stored
// on the decision records where present and synthesizing them on the fly
// otherwise. Linear scan-and-score is a deliberate scale/cost tradeoff
// for corpora in the tens of thousands of decisions.
package semantic
