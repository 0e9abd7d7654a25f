package core

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Epsilon guards every normalizing division in the encoding and scoring paths.
const Epsilon = 1e-8

// ID is a unique identifier for journaled documents.
// It is generated from the document text using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Waveform is a fixed-length sequence of complex samples representing encoded text.
// Waveforms produced by an encoder are never mutated afterwards.
type Waveform []complex128

// Len returns the number of samples in the waveform.
func (w Waveform) Len() int {
	return len(w)
}

// Energy returns the combined L2 energy over the real and imaginary channels.
func (w Waveform) Energy() float64 {
	var sum float64
	for _, v := range w {
		sum += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(sum)
}

// Document is the text that produced a stored waveform.
type Document struct {
	Id         ID
	Position   int       // Position of the waveform in the memory store
	Text       string    // Original text; empty for entries imported from an array file
	InsertedAt time.Time // When the entry was appended
}

// Entry pairs a journaled document with its waveform.
type Entry struct {
	Document Document
	Wave     Waveform
}

// Result is a single ranked match from a resonance search.
type Result struct {
	Position int
	Score    float64
}

// Hit is a search result enriched with its journaled document.
// Document is nil when no journal is attached.
type Hit struct {
	Result
	Document *Document
	Verbatim bool // Document contains every non-stop-word of the query
}

// Checkpoint records how far a long-running processor has progressed.
type Checkpoint struct {
	ProcessorType string
	Position      int // Next source position to process
	UpdatedAt     time.Time
}
