// Package ingestion provides bulk loading of texts into an index.
//
// The Pipeline type splits its input into batches and encodes the batches
// concurrently on a worker pool. Encoded batches are appended to the index
// strictly in input order, so position i of the input always lands at
// position first+i of the index regardless of which batch finishes first.
//
// When a batch fails to encode, every batch before it is still appended and
// Ingest returns their positions together with the error. Nothing after the
// failed batch is appended.
package ingestion
