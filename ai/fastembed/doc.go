// Package fastembed provides a local embedding backend built on ONNX
// sentence-embedding models (all-MiniLM-L6-v2 by default).
//
// Models are downloaded into ai.Config.CacheDir on first use. The package
// requires cgo; without it NewProvider returns ErrNotAvailable.
package fastembed
