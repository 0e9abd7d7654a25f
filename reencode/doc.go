// Package reencode rebuilds an index from journaled text under a new
// configuration.
//
// Changing the waveform length, the encoder mode or the embedding model
// invalidates every stored waveform. A Reencoder walks the source journal in
// position order, encodes each batch of documents with the target index's
// encoder, and appends the results to the target. Encoding is retried with
// exponential backoff, progress is written to an io.Writer, and an optional
// checkpoint repository makes an interrupted run resumable.
//
// Entries without text (those imported from array files) cannot be
// re-encoded and are skipped.
package reencode
