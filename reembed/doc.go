// Package reembed regenerates the embedding vectors of every item in
// a stash, typically after switching embedding models. Items are
// processed in batches with retry and progress reporting; items that
// cannot carry a vector are skipped.
package reembed
