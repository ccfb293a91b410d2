// Package index stores embedded chunks and answers nearest-neighbor queries.
//
// Index is the storage contract shared by every implementation. FlatIndex
// keeps vectors in a slice and scans them linearly; the badger subpackage
// keeps them in an in-memory BadgerDB. Both normalize vectors on insert and
// score a query by dot product, which equals cosine similarity.
//
// Builder turns documents into index entries: it chunks them, assigns
// chunk IDs in ingestion order, embeds the chunks concurrently on a
// bounded worker pool and commits everything that embedded successfully
// in a single AddAll call.
package index
