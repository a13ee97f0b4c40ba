/*
Package supervisor maintains the streaming connection to the current
target.

The supervisor is a single loop that each iteration pulls a target
snapshot from its TargetSource, skips it while stale, builds the
ordered candidate URL list (forced port first, announced path before
/ws before /, port-major) and tries each candidate. An attempt that
never opens a transport counts toward backoff; an attempt whose
transport opened resets the retry delay to its minimum no matter how
the session later ends.

While connected, three duties run concurrently:

  - receive: reads frames in arrival order and feeds them through the
    volume gate; a read error ends the session
  - heartbeat: sends {"hb":1} every heartbeat interval; a send error
    ends the session
  - watchdog: ends the session when no message has been received
    within the watchdog timeout, because a transport can stay open
    long after the peer has gone away

The first duty to end cancels the rest, and the session joins all
three before returning. That join is the epoch boundary: no frame from
one attempt can be processed after the next attempt has started, and
Stop never leaves duties running.

States (idle, discovering, connecting, connected, waiting_for_target,
reconnecting, error) are published to the event broker and mirrored
into the connection state metric on every transition.
*/
package supervisor
