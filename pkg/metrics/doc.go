/*
Package metrics exposes Prometheus metrics for airvol.

Collectors cover the resilience-relevant edges of the system: discovery
datagram outcomes, connection attempt results, session termination
causes (read failure, heartbeat failure, watchdog trip, explicit stop),
the current backoff delay, and volume gate decisions.

Metrics are package-level collectors registered in init(), served via
Handler() when a metrics listen address is configured. The daemon runs
fine with the listener disabled; collectors are then updated but never
scraped.
*/
package metrics
