package supervisor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/airvol/airvol/pkg/events"
	"github.com/airvol/airvol/pkg/log"
	"github.com/airvol/airvol/pkg/metrics"
	"github.com/airvol/airvol/pkg/types"
	"github.com/airvol/airvol/pkg/volume"
)

const (
	// noTargetSleep is the pause between loop iterations while waiting
	// for a target to appear or refresh.
	noTargetSleep = 500 * time.Millisecond

	// backoffJitterMax is the additive jitter on reconnect delays.
	backoffJitterMax = 500 * time.Millisecond

	// defaultWatchdogTick is how often the watchdog duty checks
	// elapsed time since the last received message.
	defaultWatchdogTick = time.Second
)

// TargetSource yields the target to connect to. Implemented by
// pkg/selector; faked in tests.
type TargetSource interface {
	Select() *types.Target
}

// Config holds supervisor timings and forced overrides.
type Config struct {
	Forced            types.ForcedConfig
	StaleTTL          time.Duration
	HeartbeatInterval time.Duration
	WatchdogTimeout   time.Duration
	ConnectTimeout    time.Duration
	RetryMin          time.Duration
	RetryMax          time.Duration

	// WatchdogTick overrides the watchdog polling granularity.
	// Zero means one second.
	WatchdogTick time.Duration
}

// Supervisor is the connection state machine. It pulls the current
// target each loop iteration, tries candidate URLs in order, and while
// connected runs heartbeat and watchdog duties alongside message
// reception. Exactly one session is alive at any time.
type Supervisor struct {
	cfg    Config
	source TargetSource
	gate   *volume.Gate
	broker *events.Broker
	dialer *websocket.Dialer

	mu    sync.Mutex
	state types.ConnectionState

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a supervisor in the Idle state.
func New(cfg Config, source TargetSource, gate *volume.Gate, broker *events.Broker) *Supervisor {
	if cfg.WatchdogTick <= 0 {
		cfg.WatchdogTick = defaultWatchdogTick
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:    cfg,
		source: source,
		gate:   gate,
		broker: broker,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout},
		state:  types.ConnectionState{Kind: types.StateIdle},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the supervisor loop.
func (s *Supervisor) Start() {
	if s.cfg.Forced.IP != "" {
		// Nothing to discover under a forced IP.
		s.setState(types.ConnectionState{Kind: types.StateConnecting, Endpoint: s.cfg.Forced.IP})
	} else {
		s.setState(types.ConnectionState{Kind: types.StateDiscovering})
	}

	s.wg.Add(1)
	go s.run()
}

// Stop cancels the loop and any in-flight session, then waits for all
// duties to terminate. Idempotent, safe from any goroutine.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.setState(types.ConnectionState{Kind: types.StateIdle})
		logger := log.WithComponent("supervisor")
		logger.Info().Msg("supervisor stopped")
	})
}

// State returns the current connection state.
func (s *Supervisor) State() types.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnTargetReplaced is the selector replacement hook. A replacement
// while connected or connecting is deliberately ignored: the live
// session runs to natural failure and the next loop iteration picks up
// the new target.
func (s *Supervisor) OnTargetReplaced(old, next *types.Target) {
	s.mu.Lock()
	kind := s.state.Kind
	s.mu.Unlock()

	if kind == types.StateConnected || kind == types.StateConnecting {
		return
	}
	s.setState(types.ConnectionState{Kind: types.StateDiscovering})
}

func (s *Supervisor) setState(state types.ConnectionState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	logger := log.WithComponent("supervisor")
	logger.Info().
		Str("state", state.String()).
		Msg("state changed")
	metrics.SetConnectionState(string(state.Kind))
	if s.broker != nil {
		s.broker.PublishState(state)
	}
}

func (s *Supervisor) run() {
	defer s.wg.Done()

	logger := log.WithComponent("supervisor")
	delay := s.cfg.RetryMin

	for s.ctx.Err() == nil {
		target := s.source.Select()
		if target == nil {
			if s.cfg.Forced.IP == "" {
				s.setState(types.ConnectionState{Kind: types.StateWaitingForTarget})
			}
			s.sleep(noTargetSleep)
			continue
		}

		if target.Stale(time.Now(), s.cfg.StaleTTL) {
			s.setState(types.ConnectionState{Kind: types.StateWaitingForTarget})
			s.sleep(noTargetSleep)
			continue
		}

		opened := false
		for _, url := range candidateURLs(target, s.cfg.Forced.Port) {
			if s.ctx.Err() != nil {
				return
			}
			s.setState(types.ConnectionState{Kind: types.StateConnecting, Endpoint: url})
			if s.attempt(target, url) {
				opened = true
				break
			}
		}

		if opened {
			// A transport was open; whatever ended it, retry promptly.
			delay = s.cfg.RetryMin
			metrics.ReconnectDelaySeconds.Set(delay.Seconds())
			continue
		}

		s.setState(types.ConnectionState{Kind: types.StateReconnecting, Delay: delay})
		metrics.ReconnectDelaySeconds.Set(delay.Seconds())
		logger.Debug().Dur("delay", delay).Msg("all candidates failed, backing off")

		s.sleep(delay + time.Duration(rand.Int63n(int64(backoffJitterMax))))
		delay = nextDelay(delay, s.cfg.RetryMin, s.cfg.RetryMax)
	}
}

// attempt dials one candidate URL and, on success, runs the session to
// completion. It reports whether the transport opened at all: an open
// transport resets backoff even though the session inevitably ends.
func (s *Supervisor) attempt(target *types.Target, url string) bool {
	logger := log.WithComponent("supervisor")

	timer := metrics.NewTimer()
	conn, resp, err := s.dialer.DialContext(s.ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		metrics.ConnectAttemptsTotal.WithLabelValues("refused").Inc()
		logger.Debug().Err(err).Str("url", url).Msg("connect failed")
		return false
	}
	timer.ObserveDuration(metrics.ConnectDuration)
	metrics.ConnectAttemptsTotal.WithLabelValues("opened").Inc()

	s.setState(types.ConnectionState{Kind: types.StateConnected, Endpoint: url})
	logger.Info().Str("url", url).Msg("connected")

	cause := s.runSession(target, conn)
	metrics.SessionsEndedTotal.WithLabelValues(cause).Inc()
	logger.Info().Str("url", url).Str("cause", cause).Msg("session ended")
	return true
}

// sleep waits for d or until the supervisor is stopped.
func (s *Supervisor) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
	case <-t.C:
	}
}
