//go:build !cgo

package fastembed

import (
	"github.com/poiesic/cic/ai"
)

// NewProvider always fails in binaries built without cgo; the ONNX runtime
// cannot be loaded.
func NewProvider(_ *ai.Config) (ai.AIProvider, error) {
	return nil, ErrNotAvailable
}
