/*
Package selector owns the current connection target.

Candidates arrive from the discovery listener over a bounded channel.
A candidate matching the current target's ip and port is merged by
monotonic enrichment: lastSeen refreshes, and name/path fill in only
when previously absent. Any other candidate replaces the current
target outright and fires the registered replacement callback; the
supervisor uses that callback to go back to discovering unless a
session is already in flight, which is left to fail naturally.

Under a forced IP the selector synthesizes the target instead of using
discovery: port preference is forced port, then a port announced for
the same IP, then the fallback (81). Synthesized targets are marked
Forced and never go stale.
*/
package selector
