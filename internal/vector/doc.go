// Package vector holds the embedding primitives shared by every vector
// store backend: the float32 blob codec, cosine similarity, and the
// linear-scan top-k ranking.
package vector
