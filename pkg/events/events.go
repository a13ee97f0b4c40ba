package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/airvol/airvol/pkg/types"
)

// EventType represents the type of event
type EventType string

const (
	EventStateChanged    EventType = "connection.state"
	EventTargetCandidate EventType = "discovery.candidate"
	EventTargetReplaced  EventType = "target.replaced"
	EventVolumeApplied   EventType = "volume.applied"
	EventVolumeSkipped   EventType = "volume.skipped"
	EventLogLine         EventType = "log.line"
)

// Event is a single notification to UI/log collaborators.
// State is set for EventStateChanged, Percent for volume events.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	State     *types.ConnectionState
	Percent   int
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker fans events out to subscribers without ever blocking the
// publisher. It is the concrete EventSink handed to the discovery
// listener and connection supervisor.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker. Idempotent.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	default:
		// Broker buffer full, drop rather than block the core
	}
}

// PublishState publishes a connection state transition.
func (b *Broker) PublishState(state types.ConnectionState) {
	b.Publish(&Event{
		Type:    EventStateChanged,
		Message: state.String(),
		State:   &state,
	})
}

// PublishLog publishes a plain log line event.
func (b *Broker) PublishLog(msg string) {
	b.Publish(&Event{
		Type:    EventLogLine,
		Message: msg,
	})
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
