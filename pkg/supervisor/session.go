package supervisor

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/airvol/airvol/pkg/events"
	"github.com/airvol/airvol/pkg/log"
	"github.com/airvol/airvol/pkg/metrics"
	"github.com/airvol/airvol/pkg/types"
	"github.com/airvol/airvol/pkg/volume"
)

// heartbeatPayload is the fixed keepalive frame sent to the device.
var heartbeatPayload = []byte(`{"hb":1}`)

// Session end causes, used as log fields and metric labels.
const (
	causeRead      = "read"
	causeHeartbeat = "heartbeat"
	causeWatchdog  = "watchdog"
	causeStop      = "stop"
)

// runSession runs the three session duties until one of them ends the
// session, then joins all of them before returning. No message from
// this session can be processed after runSession returns, which is
// what keeps attempt epochs strictly ordered.
func (s *Supervisor) runSession(target *types.Target, conn *websocket.Conn) string {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	base := log.WithTarget(target.IP, target.WSPort)
	logger := base.With().Str("component", "session").Logger()

	// lastRecv starts at connection-open time so a peer that never
	// speaks still trips the watchdog.
	var lastMu sync.Mutex
	lastRecv := time.Now()

	touch := func() {
		lastMu.Lock()
		lastRecv = time.Now()
		lastMu.Unlock()
	}
	sinceLast := func() time.Duration {
		lastMu.Lock()
		defer lastMu.Unlock()
		return time.Since(lastRecv)
	}

	causeCh := make(chan string, 3)
	end := func(cause string) {
		causeCh <- cause
		cancel()
	}

	var wg sync.WaitGroup
	wg.Add(3)

	// Receive duty: messages are handled in arrival order, one at a time.
	go func() {
		defer wg.Done()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				logger.Debug().Err(err).Msg("read ended")
				end(causeRead)
				return
			}
			touch()
			if msgType == websocket.BinaryMessage && !utf8.Valid(data) {
				logger.Debug().Int("bytes", len(data)).Msg("non-text binary frame dropped")
				continue
			}
			s.handleMessage(data)
		}
	}()

	// Heartbeat duty.
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.TextMessage, heartbeatPayload); err != nil {
					logger.Warn().Err(err).Msg("heartbeat send failed")
					end(causeHeartbeat)
					return
				}
				metrics.HeartbeatsSentTotal.Inc()
			}
		}
	}()

	// Watchdog duty: the transport can stay "open" while the peer is
	// gone; silence beyond the timeout presumes the peer unresponsive.
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.cfg.WatchdogTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if elapsed := sinceLast(); elapsed > s.cfg.WatchdogTimeout {
					metrics.WatchdogTripsTotal.Inc()
					logger.Warn().Dur("silent_for", elapsed).Msg("watchdog tripped, closing connection")
					end(causeWatchdog)
					return
				}
			}
		}
	}()

	// First duty to end cancels the rest; closing the transport
	// unblocks the reader.
	<-ctx.Done()
	conn.Close()
	wg.Wait()

	if s.ctx.Err() != nil {
		return causeStop
	}
	select {
	case cause := <-causeCh:
		return cause
	default:
		return causeStop
	}
}

// handleMessage feeds one inbound frame through the volume gate.
func (s *Supervisor) handleMessage(data []byte) {
	sample, ok := volume.Interpret(data)
	if !ok {
		logger := log.WithComponent("session")
		logger.Debug().
			Int("bytes", len(data)).
			Msg("payload ignored")
		return
	}

	applied := s.gate.Apply(sample.Percent)
	if s.broker == nil {
		return
	}
	evType := events.EventVolumeSkipped
	if applied {
		evType = events.EventVolumeApplied
	}
	s.broker.Publish(&events.Event{
		Type:    evType,
		Percent: sample.Percent,
		Metadata: map[string]string{
			"source_key": sample.SourceKey,
		},
	})
}
