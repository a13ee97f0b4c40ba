/*
Package log provides structured logging for airvol using zerolog.

The package wraps zerolog behind a global logger initialized once via
Init, with component-scoped child loggers for the discovery listener,
the connection supervisor and the volume gate. Console output is the
default for interactive use; JSON output is intended for collection.

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	disc := log.WithComponent("discovery")
	disc.Info().Str("addr", addr).Msg("listening for announcements")

	sess := log.WithTarget("10.0.0.5", 81)
	sess.Warn().Msg("watchdog tripped")

All log output is fire-and-forget with respect to the core loops: a
slow writer never blocks discovery or the connection session.
*/
package log
