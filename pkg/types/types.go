package types

import (
	"fmt"
	"time"
)

// Default protocol constants. All of them can be overridden through the
// config file; the connection-level timings match the device firmware.
const (
	DefaultServiceName       = "airvol"
	DefaultDiscoveryPort     = 8989
	DefaultFallbackPort      = 81
	DefaultDiscoverInterval  = 5 * time.Second
	DefaultDiscoverJitter    = 1 * time.Second
	DefaultStaleTargetTTL    = 20 * time.Second
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultWatchdogTimeout   = 12 * time.Second
	DefaultConnectTimeout    = 5 * time.Second
	DefaultRetryMin          = 1 * time.Second
	DefaultRetryMax          = 30 * time.Second
	DefaultVolumeThreshold   = 0.5
	DefaultSinkTimeout       = 5 * time.Second
)

// Target is a discovered or forced streaming endpoint.
// Two targets are the same device when IP and WSPort match.
type Target struct {
	IP       string
	WSPort   int
	Name     string // optional, empty when unannounced
	Path     string // optional, must start with "/" when set
	LastSeen time.Time
	Forced   bool // synthesized from forced config, exempt from staleness
}

// SameDevice reports whether t and other describe the same endpoint.
func (t *Target) SameDevice(other *Target) bool {
	return t != nil && other != nil && t.IP == other.IP && t.WSPort == other.WSPort
}

// Stale reports whether the target has not been seen within ttl.
// Forced targets are always fresh.
func (t *Target) Stale(now time.Time, ttl time.Duration) bool {
	if t.Forced {
		return false
	}
	return now.Sub(t.LastSeen) > ttl
}

func (t *Target) String() string {
	if t == nil {
		return "<none>"
	}
	if t.Name != "" {
		return fmt.Sprintf("%s (%s:%d)", t.Name, t.IP, t.WSPort)
	}
	return fmt.Sprintf("%s:%d", t.IP, t.WSPort)
}

// StateKind identifies a connection supervisor state.
type StateKind string

const (
	StateIdle             StateKind = "idle"
	StateDiscovering      StateKind = "discovering"
	StateConnecting       StateKind = "connecting"
	StateConnected        StateKind = "connected"
	StateWaitingForTarget StateKind = "waiting_for_target"
	StateReconnecting     StateKind = "reconnecting"
	StateError            StateKind = "error"
)

// ConnectionState is the supervisor's externally observable state.
// Exactly one instance exists, owned by the supervisor.
type ConnectionState struct {
	Kind     StateKind
	Endpoint string        // set for connecting/connected
	Delay    time.Duration // set for reconnecting
	Reason   string        // set for error
}

func (s ConnectionState) String() string {
	switch s.Kind {
	case StateConnecting, StateConnected:
		return fmt.Sprintf("%s %s", s.Kind, s.Endpoint)
	case StateReconnecting:
		return fmt.Sprintf("%s in %s", s.Kind, s.Delay)
	case StateError:
		return fmt.Sprintf("%s: %s", s.Kind, s.Reason)
	default:
		return string(s.Kind)
	}
}

// ForcedConfig holds operator overrides read once at startup.
// A non-empty IP disables discovery-driven target selection.
type ForcedConfig struct {
	IP   string
	Port int
	Name string
}

// Any reports whether at least one override is set.
func (f ForcedConfig) Any() bool {
	return f.IP != "" || f.Port != 0 || f.Name != ""
}

// MatchesName reports whether name passes the forced-name filter.
func (f ForcedConfig) MatchesName(name string) bool {
	return f.Name == "" || f.Name == name
}

// MatchesIP reports whether ip passes the forced-IP filter.
func (f ForcedConfig) MatchesIP(ip string) bool {
	return f.IP == "" || f.IP == ip
}

// VolumeSample is a decoded volume level. Ephemeral, never persisted.
type VolumeSample struct {
	Percent   int    // 0..100
	SourceKey string // JSON key the value was decoded from
}
