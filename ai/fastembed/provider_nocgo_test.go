//go:build !cgo

package fastembed

import (
	"testing"

	"github.com/poiesic/cic/ai"
	"github.com/stretchr/testify/assert"
)

func TestNewProvider_NotAvailable(t *testing.T) {
	provider, err := NewProvider(ai.DefaultConfig())
	assert.ErrorIs(t, err, ErrNotAvailable)
	assert.Nil(t, provider)
}
