package index

import (
	"time"

	"github.com/poiesic/cic/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
// EntryScored is called once per stored waveform, in position order.
type SearchMonitor interface {
	Start(query string)
	AfterQueryEncoding(wave core.Waveform, elapsed time.Duration)
	EntryScored(position int, score float64)
	Finish(results []core.Result, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                      {}
func (n *noopMonitor) AfterQueryEncoding(_ core.Waveform, _ time.Duration) {}
func (n *noopMonitor) EntryScored(_ int, _ float64)                        {}
func (n *noopMonitor) Finish(_ []core.Result, _ time.Duration)             {}
