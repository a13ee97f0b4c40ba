package selector

import (
	"sync"
	"time"

	"github.com/airvol/airvol/pkg/events"
	"github.com/airvol/airvol/pkg/log"
	"github.com/airvol/airvol/pkg/types"
)

// Selector owns the single current target. Discovery candidates flow
// in through OnCandidate (or a channel via Start); the connection
// supervisor reads snapshots through Select. All access to the stored
// target goes through the selector mutex, so the supervisor can never
// observe a torn update.
type Selector struct {
	forced types.ForcedConfig

	mu      sync.Mutex
	current *types.Target

	// onReplace fires after the current target is replaced by a
	// different device (not on enrichment of the same device).
	onReplace func(old, next *types.Target)

	broker   *events.Broker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a selector with the given forced overrides.
func New(forced types.ForcedConfig, broker *events.Broker) *Selector {
	return &Selector{
		forced: forced,
		broker: broker,
		stopCh: make(chan struct{}),
	}
}

// OnReplace registers the replacement callback. The supervisor uses it
// to fall back to discovering unless a session is in flight. Must be
// called before Start.
func (s *Selector) OnReplace(fn func(old, next *types.Target)) {
	s.onReplace = fn
}

// Start consumes candidates from ch until Stop is called or ch closes.
func (s *Selector) Start(ch <-chan types.Target) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case candidate, ok := <-ch:
				if !ok {
					return
				}
				s.OnCandidate(candidate)
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the candidate loop. Idempotent.
func (s *Selector) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// Select returns a snapshot of the target the supervisor should
// connect to, or nil when none is known. Under a forced IP it always
// returns a synthesized target, exempt from staleness.
func (s *Selector) Select() *types.Target {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forced.IP != "" {
		synth := s.synthesizeLocked()
		if s.current == nil || !sameShape(s.current, synth) {
			s.current = synth
		} else {
			s.current.LastSeen = synth.LastSeen
		}
		snapshot := *s.current
		return &snapshot
	}

	if s.current == nil {
		return nil
	}
	snapshot := *s.current
	return &snapshot
}

// Current returns a snapshot of the stored target without forced
// synthesis, for observation.
func (s *Selector) Current() *types.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	snapshot := *s.current
	return &snapshot
}

// synthesizeLocked builds the forced target. The port prefers the
// forced value, then a port announced for the same IP, then the
// fallback. Caller holds the mutex.
func (s *Selector) synthesizeLocked() *types.Target {
	port := s.forced.Port
	path := ""
	name := s.forced.Name

	if s.current != nil && s.current.IP == s.forced.IP {
		if port == 0 {
			port = s.current.WSPort
		}
		path = s.current.Path
		if name == "" {
			name = s.current.Name
		}
	}
	if port == 0 {
		port = types.DefaultFallbackPort
	}

	return &types.Target{
		IP:       s.forced.IP,
		WSPort:   port,
		Name:     name,
		Path:     path,
		LastSeen: time.Now(),
		Forced:   true,
	}
}

// sameShape compares everything except the freshness timestamp.
func sameShape(a, b *types.Target) bool {
	return a.IP == b.IP && a.WSPort == b.WSPort &&
		a.Name == b.Name && a.Path == b.Path && a.Forced == b.Forced
}

// OnCandidate folds a discovery candidate into the current target.
// Same-device candidates enrich monotonically; a different device
// replaces the current target outright.
func (s *Selector) OnCandidate(candidate types.Target) {
	logger := log.WithComponent("selector")

	// Defense in depth: discovery filters these too.
	if !s.forced.MatchesName(candidate.Name) || !s.forced.MatchesIP(candidate.IP) {
		logger.Debug().Str("target", candidate.String()).Msg("candidate rejected by forced filter")
		return
	}

	var replaced bool
	var old *types.Target

	s.mu.Lock()
	if s.current != nil && s.current.SameDevice(&candidate) {
		// Monotonic enrichment: never discard known name/path.
		if s.current.Name == "" && candidate.Name != "" {
			s.current.Name = candidate.Name
		}
		if s.current.Path == "" && candidate.Path != "" {
			s.current.Path = candidate.Path
		}
		if candidate.LastSeen.After(s.current.LastSeen) {
			s.current.LastSeen = candidate.LastSeen
		}
	} else {
		old = s.current
		fresh := candidate
		s.current = &fresh
		replaced = true
	}
	snapshot := *s.current
	s.mu.Unlock()

	if replaced {
		logger.Info().
			Str("old", old.String()).
			Str("new", snapshot.String()).
			Msg("current target replaced")
		if s.broker != nil {
			s.broker.Publish(&events.Event{
				Type:    events.EventTargetReplaced,
				Message: snapshot.String(),
			})
		}
		if s.onReplace != nil {
			s.onReplace(old, &snapshot)
		}
	}
}
