package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airvol/airvol/pkg/types"
)

func TestSelectEmpty(t *testing.T) {
	s := New(types.ForcedConfig{}, nil)
	assert.Nil(t, s.Select())
	assert.Nil(t, s.Current())
}

func TestOnCandidateStores(t *testing.T) {
	s := New(types.ForcedConfig{}, nil)

	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, LastSeen: time.Now()})

	target := s.Select()
	require.NotNil(t, target)
	assert.Equal(t, "10.0.0.5", target.IP)
	assert.Equal(t, 81, target.WSPort)
	assert.Empty(t, target.Name)
	assert.False(t, target.Forced)
}

func TestEnrichmentNeverLosesFields(t *testing.T) {
	s := New(types.ForcedConfig{}, nil)
	first := time.Now()

	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, Name: "Studio", Path: "/ws2", LastSeen: first})

	// Re-announce without name/path must not discard them.
	later := first.Add(time.Second)
	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, LastSeen: later})

	target := s.Select()
	require.NotNil(t, target)
	assert.Equal(t, "Studio", target.Name)
	assert.Equal(t, "/ws2", target.Path)
	assert.Equal(t, later, target.LastSeen)
}

func TestEnrichmentFillsAbsentFields(t *testing.T) {
	s := New(types.ForcedConfig{}, nil)
	first := time.Now()

	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, LastSeen: first})
	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, Name: "Studio", LastSeen: first.Add(time.Second)})
	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, Path: "/stream", LastSeen: first.Add(2 * time.Second)})

	target := s.Select()
	require.NotNil(t, target)
	assert.Equal(t, "Studio", target.Name)
	assert.Equal(t, "/stream", target.Path)
}

func TestEnrichmentKeepsNewerTimestamp(t *testing.T) {
	s := New(types.ForcedConfig{}, nil)
	newer := time.Now()

	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, LastSeen: newer})
	// Out-of-order datagram with an older timestamp must not rewind.
	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, LastSeen: newer.Add(-time.Minute)})

	target := s.Select()
	require.NotNil(t, target)
	assert.Equal(t, newer, target.LastSeen)
}

func TestReplacementFiresCallback(t *testing.T) {
	s := New(types.ForcedConfig{}, nil)

	var replacements int
	s.OnReplace(func(old, next *types.Target) {
		replacements++
	})

	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, LastSeen: time.Now()})
	assert.Equal(t, 1, replacements) // nil -> first target is a replacement

	// Same device: enrichment, no callback.
	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, LastSeen: time.Now()})
	assert.Equal(t, 1, replacements)

	// Different port means a different device.
	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 82, LastSeen: time.Now()})
	assert.Equal(t, 2, replacements)

	s.OnCandidate(types.Target{IP: "10.0.0.6", WSPort: 82, LastSeen: time.Now()})
	assert.Equal(t, 2+1, replacements)

	target := s.Select()
	require.NotNil(t, target)
	assert.Equal(t, "10.0.0.6", target.IP)
}

func TestForcedNameFilter(t *testing.T) {
	s := New(types.ForcedConfig{Name: "Studio"}, nil)

	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, Name: "Other", LastSeen: time.Now()})
	assert.Nil(t, s.Current(), "mismatched name must not become current")

	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, Name: "Studio", LastSeen: time.Now()})
	require.NotNil(t, s.Current())
	assert.Equal(t, "Studio", s.Current().Name)
}

func TestForcedIPSynthesis(t *testing.T) {
	s := New(types.ForcedConfig{IP: "192.168.1.10"}, nil)

	target := s.Select()
	require.NotNil(t, target)
	assert.Equal(t, "192.168.1.10", target.IP)
	assert.Equal(t, types.DefaultFallbackPort, target.WSPort)
	assert.True(t, target.Forced)
	assert.False(t, target.Stale(time.Now().Add(time.Hour), types.DefaultStaleTargetTTL),
		"forced targets are exempt from staleness")
}

func TestForcedIPWithForcedPort(t *testing.T) {
	s := New(types.ForcedConfig{IP: "192.168.1.10", Port: 8080}, nil)

	target := s.Select()
	require.NotNil(t, target)
	assert.Equal(t, 8080, target.WSPort)
}

func TestForcedIPAdoptsAnnouncedPort(t *testing.T) {
	s := New(types.ForcedConfig{IP: "192.168.1.10"}, nil)

	s.OnCandidate(types.Target{IP: "192.168.1.10", WSPort: 9000, Path: "/vol", LastSeen: time.Now()})

	target := s.Select()
	require.NotNil(t, target)
	assert.Equal(t, 9000, target.WSPort)
	assert.Equal(t, "/vol", target.Path)
	assert.True(t, target.Forced)
}

func TestForcedIPIgnoresOtherDevices(t *testing.T) {
	s := New(types.ForcedConfig{IP: "192.168.1.10"}, nil)

	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, LastSeen: time.Now()})

	target := s.Select()
	require.NotNil(t, target)
	assert.Equal(t, "192.168.1.10", target.IP, "foreign candidates are filtered under a forced IP")
}

func TestStaleness(t *testing.T) {
	s := New(types.ForcedConfig{}, nil)

	s.OnCandidate(types.Target{IP: "10.0.0.5", WSPort: 81, LastSeen: time.Now().Add(-time.Minute)})

	target := s.Select()
	require.NotNil(t, target)
	assert.True(t, target.Stale(time.Now(), types.DefaultStaleTargetTTL))
	assert.False(t, target.Stale(time.Now(), 2*time.Minute))
}

func TestStartConsumesChannel(t *testing.T) {
	s := New(types.ForcedConfig{}, nil)

	ch := make(chan types.Target, 4)
	s.Start(ch)
	defer s.Stop()

	ch <- types.Target{IP: "10.0.0.5", WSPort: 81, LastSeen: time.Now()}

	assert.Eventually(t, func() bool {
		return s.Current() != nil
	}, 2*time.Second, 10*time.Millisecond)
}
