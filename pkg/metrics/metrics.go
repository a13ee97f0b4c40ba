package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Discovery metrics
	DiscoveryDatagramsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airvol_discovery_datagrams_total",
			Help: "Total UDP datagrams seen by the discovery listener, by result",
		},
		[]string{"result"}, // accepted, self, filtered, malformed
	)

	DiscoveryProbesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "airvol_discovery_probes_total",
			Help: "Total discovery probes broadcast",
		},
	)

	// Connection metrics
	ConnectAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airvol_connect_attempts_total",
			Help: "Total connection attempts by result",
		},
		[]string{"result"}, // opened, refused
	)

	SessionsEndedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airvol_sessions_ended_total",
			Help: "Total ended sessions by terminating duty",
		},
		[]string{"cause"}, // read, heartbeat, watchdog, stop
	)

	HeartbeatsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "airvol_heartbeats_sent_total",
			Help: "Total heartbeat frames sent",
		},
	)

	WatchdogTripsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "airvol_watchdog_trips_total",
			Help: "Total sessions forcibly closed by the watchdog",
		},
	)

	ReconnectDelaySeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "airvol_reconnect_delay_seconds",
			Help: "Current retry backoff delay in seconds",
		},
	)

	ConnectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airvol_connection_state",
			Help: "Current supervisor state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	ConnectDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airvol_connect_duration_seconds",
			Help:    "Time taken to open a transport in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Volume metrics
	VolumeAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "airvol_volume_applied_total",
			Help: "Total volume changes applied to the sink",
		},
	)

	VolumeSinkErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "airvol_volume_sink_errors_total",
			Help: "Total volume changes the sink failed to apply",
		},
	)

	VolumeSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "airvol_volume_suppressed_total",
			Help: "Total volume samples suppressed by the change gate",
		},
	)

	VolumePercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "airvol_volume_percent",
			Help: "Last volume percent applied to the sink",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(DiscoveryDatagramsTotal)
	prometheus.MustRegister(DiscoveryProbesTotal)
	prometheus.MustRegister(ConnectAttemptsTotal)
	prometheus.MustRegister(SessionsEndedTotal)
	prometheus.MustRegister(HeartbeatsSentTotal)
	prometheus.MustRegister(WatchdogTripsTotal)
	prometheus.MustRegister(ReconnectDelaySeconds)
	prometheus.MustRegister(ConnectionState)
	prometheus.MustRegister(ConnectDuration)
	prometheus.MustRegister(VolumeAppliedTotal)
	prometheus.MustRegister(VolumeSinkErrorsTotal)
	prometheus.MustRegister(VolumeSuppressedTotal)
	prometheus.MustRegister(VolumePercent)
}

// SetConnectionState marks state as the single active supervisor state.
func SetConnectionState(state string) {
	for _, s := range []string{
		"idle", "discovering", "connecting", "connected",
		"waiting_for_target", "reconnecting", "error",
	} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		ConnectionState.WithLabelValues(s).Set(v)
	}
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
