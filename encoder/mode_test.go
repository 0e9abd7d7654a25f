package encoder

import (
	"testing"

	"github.com/poiesic/cic/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"embed", ModeEmbed, false},
		{"char", ModeChar, false},
		{"  CHAR ", ModeChar, false},
		{"Embed", ModeEmbed, false},
		{"", 0, true},
		{"wavelet", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
				assert.Contains(t, err.Error(), tt.input)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "embed", ModeEmbed.String())
	assert.Equal(t, "char", ModeChar.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())

	for _, m := range []Mode{ModeEmbed, ModeChar} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
}
