package encoder

import (
	"fmt"
	"strings"

	"github.com/poiesic/cic/core"
)

// Mode selects the text-to-waveform construction.
type Mode int

const (
	// ModeEmbed projects a sentence embedding onto a bank of sinusoids.
	ModeEmbed Mode = iota
	// ModeChar builds the waveform from the characters of the text alone.
	ModeChar
)

// String returns the canonical lowercase name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeEmbed:
		return "embed"
	case ModeChar:
		return "char"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name into a Mode. Matching ignores case and
// surrounding whitespace.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "embed":
		return ModeEmbed, nil
	case "char":
		return ModeChar, nil
	default:
		return 0, fmt.Errorf("%w: unknown encoder mode %q (use \"char\" or \"embed\")", core.ErrInvalidConfiguration, s)
	}
}
