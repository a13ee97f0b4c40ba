/*
Package discovery implements the UDP broadcast discovery protocol.

The Listener owns one broadcast socket with SO_REUSEADDR and
SO_BROADCAST set, and runs two loops: a send loop that transmits the
probe {"type":"discover","service":"airvol"} at a jittered interval,
and a receive loop that parses announce/response datagrams into target
candidates.

Parsing is deliberately tolerant: the port may arrive as ws_port,
wsPort or port, as a number or a numeric string (fractional values are
rounded); the device name as name or device_name; the path as ws_path
or path (accepted only with a leading slash); a missing ip falls back
to the UDP sender address. Datagrams failing validation are dropped
with a debug log line and never surface as errors.

Forced-name and forced-IP filters apply here, before candidates are
published; pkg/selector applies them again on its side of the channel.

Stop closes the socket under the listener mutex so in-flight reads see
a cleanly closed descriptor, and returns once both loops have exited,
bounded by the receive timeout and sleep slice.
*/
package discovery
