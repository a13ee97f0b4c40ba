package volume

import (
	"math"
	"sync"

	"github.com/airvol/airvol/pkg/log"
	"github.com/airvol/airvol/pkg/metrics"
)

// Gate suppresses sink writes below a change threshold. It remembers
// the last applied value; sink failures still advance that memory so
// retry is driven by future sample divergence, not immediate redispatch.
type Gate struct {
	sink      Sink
	threshold float64

	mu   sync.Mutex
	last float64
	has  bool
}

// NewGate creates a gate in front of sink. A threshold of zero applies
// every sample.
func NewGate(sink Sink, threshold float64) *Gate {
	return &Gate{
		sink:      sink,
		threshold: threshold,
	}
}

// Apply forwards percent to the sink unless the change from the last
// applied value is below the threshold. It reports whether the sink
// was called.
func (g *Gate) Apply(percent int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	logger := log.WithComponent("volume")

	if g.has && math.Abs(g.last-float64(percent)) < g.threshold {
		metrics.VolumeSuppressedTotal.Inc()
		logger.Debug().
			Int("percent", percent).
			Float64("last", g.last).
			Msg("change below threshold, skipping")
		return false
	}

	if err := g.sink.Apply(percent); err != nil {
		metrics.VolumeSinkErrorsTotal.Inc()
		logger.Error().
			Err(err).
			Int("percent", percent).
			Msg("sink apply failed")
	} else {
		metrics.VolumeAppliedTotal.Inc()
		metrics.VolumePercent.Set(float64(percent))
	}

	// Advance even on failure
	g.last = float64(percent)
	g.has = true
	return true
}

// Last returns the last applied value, if any.
func (g *Gate) Last() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int(g.last), g.has
}
