// Package resonance scores the similarity of two waveforms by comparing
// their dominant frequency components.
//
// Both waveforms are transformed with an unnormalized DFT. Each magnitude
// spectrum is scaled by its own maximum, then the K bins where the query is
// loudest are compared: the magnitude term rewards energy in the same bins
// and the phase term rewards aligned phase in those bins.
//
//	score = Σ q̂[b]·m̂[b] + λ·Σ cos(φq[b] - φm[b])
//
// For a linear scan, Prepare the query once and call Query.Score for every
// stored waveform so the query spectrum is computed a single time.
package resonance
