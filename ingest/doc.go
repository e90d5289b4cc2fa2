// Package ingest provides bulk loading of text into a stash.
//
// The Pipeline saves snippets synchronously, then generates and
// attaches embeddings on a worker pool in the background so callers
// are never blocked on the embedding service. Errors during async
// embedding are logged but do not fail the ingestion.
package ingest
