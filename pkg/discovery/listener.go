package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/airvol/airvol/pkg/events"
	"github.com/airvol/airvol/pkg/log"
	"github.com/airvol/airvol/pkg/metrics"
	"github.com/airvol/airvol/pkg/types"
)

const (
	// readTimeout bounds each socket receive so the loop can observe
	// stop requests; Stop completes within about one timeout.
	readTimeout = 500 * time.Millisecond

	// sleepSlice bounds each send-loop sleep for the same reason.
	sleepSlice = 250 * time.Millisecond

	// candidateBuffer is the depth of the candidates channel.
	candidateBuffer = 16
)

// probe is the fixed discovery payload broadcast by the send loop.
type probe struct {
	Type    string `json:"type"`
	Service string `json:"service"`
}

// Config holds discovery listener configuration.
type Config struct {
	Service  string
	Port     int
	Interval time.Duration
	Jitter   time.Duration // symmetric, applied as interval +/- [0,Jitter]
	Forced   types.ForcedConfig
}

// Listener owns the UDP broadcast socket. It periodically transmits a
// discovery probe and continuously parses announce responses,
// publishing validated candidates on the Candidates channel.
type Listener struct {
	cfg    Config
	broker *events.Broker
	out    chan types.Target

	mu      sync.Mutex
	conn    *net.UDPConn
	running bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewListener creates a listener. Start opens the socket.
func NewListener(cfg Config, broker *events.Broker) *Listener {
	return &Listener{
		cfg:    cfg,
		broker: broker,
		out:    make(chan types.Target, candidateBuffer),
		stopCh: make(chan struct{}),
	}
}

// Candidates returns the channel of validated announce candidates.
func (l *Listener) Candidates() <-chan types.Target {
	return l.out
}

// Addr returns the bound socket address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Start opens the broadcast socket and launches the send and receive
// loops. A bind failure is fatal for discovery but not for the caller:
// the supervisor still functions under a forced IP.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("discovery listener already running")
	}

	lc := net.ListenConfig{Control: reuseAndBroadcast}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", l.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to bind discovery socket: %w", err)
	}

	l.conn = pc.(*net.UDPConn)
	l.running = true

	logger := log.WithComponent("discovery")
	logger.Info().
		Str("addr", l.conn.LocalAddr().String()).
		Str("service", l.cfg.Service).
		Msg("discovery listener started")

	l.wg.Add(2)
	go l.sendLoop()
	go l.recvLoop()
	return nil
}

// Stop tears down the socket and terminates both loops. Idempotent and
// safe to call from any goroutine, in any state.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)

		l.mu.Lock()
		if l.conn != nil {
			l.conn.Close()
			l.conn = nil
		}
		l.running = false
		l.mu.Unlock()

		l.wg.Wait()
		logger := log.WithComponent("discovery")
		logger.Info().Msg("discovery listener stopped")
	})
}

// reuseAndBroadcast enables SO_REUSEADDR and SO_BROADCAST before bind.
func reuseAndBroadcast(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
			sockErr = e
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

func (l *Listener) sendLoop() {
	defer l.wg.Done()

	logger := log.WithComponent("discovery")

	payload, err := json.Marshal(probe{Type: "discover", Service: l.cfg.Service})
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode probe")
		return
	}

	dest := &net.UDPAddr{IP: net.IPv4bcast, Port: l.cfg.Port}

	for {
		l.sendProbe(payload, dest)
		if !l.sleep(l.jitteredInterval()) {
			return
		}
	}
}

func (l *Listener) sendProbe(payload []byte, dest *net.UDPAddr) {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return
	}

	if _, err := conn.WriteToUDP(payload, dest); err != nil {
		logger := log.WithComponent("discovery")
		logger.Warn().
			Err(err).
			Str("dest", dest.String()).
			Msg("probe send failed")
		return
	}
	metrics.DiscoveryProbesTotal.Inc()
}

// jitteredInterval returns the probe interval with symmetric random
// jitter applied.
func (l *Listener) jitteredInterval() time.Duration {
	interval := l.cfg.Interval
	if l.cfg.Jitter > 0 {
		interval += time.Duration(rand.Int63n(int64(2*l.cfg.Jitter))) - l.cfg.Jitter
	}
	if interval < 0 {
		interval = 0
	}
	return interval
}

// sleep waits for d in short slices, returning false on stop.
func (l *Listener) sleep(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > sleepSlice {
			remaining = sleepSlice
		}
		select {
		case <-l.stopCh:
			return false
		case <-time.After(remaining):
		}
	}
}

func (l *Listener) recvLoop() {
	defer l.wg.Done()

	logger := log.WithComponent("discovery")
	buf := make([]byte, 2048)

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		l.mu.Lock()
		conn := l.conn
		l.mu.Unlock()
		if conn == nil {
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			logger.Error().Err(err).Msg("failed to set read deadline")
			return
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			logger.Warn().Err(err).Msg("receive failed")
			continue
		}

		l.handleDatagram(buf[:n], addr)
	}
}

func (l *Listener) handleDatagram(data []byte, addr *net.UDPAddr) {
	logger := log.WithComponent("discovery")

	target, reason := parseAnnounce(data, addr.IP.String(), l.cfg.Service, time.Now())
	if reason == dropSelf {
		metrics.DiscoveryDatagramsTotal.WithLabelValues("self").Inc()
		return
	}
	if target == nil {
		metrics.DiscoveryDatagramsTotal.WithLabelValues("malformed").Inc()
		logger.Debug().
			Str("from", addr.String()).
			Str("reason", reason).
			Msg("datagram dropped")
		return
	}

	// Discovery-side forced filters; the selector applies them again.
	if !l.cfg.Forced.MatchesName(target.Name) {
		metrics.DiscoveryDatagramsTotal.WithLabelValues("filtered").Inc()
		logger.Debug().
			Str("name", target.Name).
			Str("want", l.cfg.Forced.Name).
			Msg("candidate dropped by forced name filter")
		return
	}
	if !l.cfg.Forced.MatchesIP(target.IP) {
		metrics.DiscoveryDatagramsTotal.WithLabelValues("filtered").Inc()
		logger.Debug().
			Str("ip", target.IP).
			Str("want", l.cfg.Forced.IP).
			Msg("candidate dropped by forced ip filter")
		return
	}

	metrics.DiscoveryDatagramsTotal.WithLabelValues("accepted").Inc()
	logger.Debug().
		Str("target", target.String()).
		Msg("candidate accepted")

	l.broker.Publish(&events.Event{
		Type:    events.EventTargetCandidate,
		Message: fmt.Sprintf("discovered %s", target),
		Metadata: map[string]string{
			"ip":   target.IP,
			"port": fmt.Sprintf("%d", target.WSPort),
		},
	})

	select {
	case l.out <- *target:
	default:
		// Selector is behind; the next announce will catch it up.
		logger.Debug().Str("target", target.String()).Msg("candidate queue full, dropped")
	}
}
