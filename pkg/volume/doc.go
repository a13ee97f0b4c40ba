/*
Package volume decodes streaming payloads into volume percentages and
gates sink writes below a change threshold.

Interpret accepts JSON objects carrying percent/pct/volume_percent
(0-100, numeric or numeric string) or raw (0-4095, linearly rescaled).
Anything else is ignored without error; the device firmware mixes
payload shapes across versions.

Gate sits between the connection's receive duty and the Sink. The
threshold (default 0.5) suppresses sink churn from sub-integer noise in
upstream percent computations. A failed sink write still advances the
gate's memory: the next divergent sample retries naturally.

Two sinks ship with the daemon: ExecSink runs an operator-configured
command with {pct} substitution, LogSink only logs. The mechanism that
actually changes system volume is a collaborator concern; anything
implementing Sink plugs in.
*/
package volume
