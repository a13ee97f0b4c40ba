/*
Package config loads and validates airvol configuration.

Configuration is layered: compiled-in protocol defaults, then an
optional YAML file, then AIRVOL_* environment variables, then
command-line flags (applied by cmd/airvol). The forced-override values
end up in types.ForcedConfig and are immutable for the process
lifetime once the daemon starts.

Example file:

	service: airvol
	discovery:
	  port: 8989
	  interval: 5s
	  stale_ttl: 20s
	connection:
	  heartbeat_interval: 5s
	  watchdog_timeout: 12s
	  retry_min: 1s
	  retry_max: 30s
	forced:
	  ip: 10.0.0.5
	  name: Studio
	volume:
	  threshold: 0.5
	  sink_command: "pactl set-sink-volume @DEFAULT_SINK@ {pct}%"
	  sink_timeout: 5s
	metrics:
	  addr: ":9090"
	log:
	  level: info
	  json: true
*/
package config
