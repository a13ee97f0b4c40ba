/*
Package events provides the event fan-out between the airvol core and
its UI/log collaborators.

The Broker is the concrete EventSink: the discovery listener and the
connection supervisor publish connection state transitions, target
changes and volume decisions into it, and collaborators (status bar,
overlay, log writer) subscribe to buffered channels. Publishing never
blocks: a full broker buffer or a slow subscriber drops events rather
than stalling the network loops.

The core takes the broker as an injected dependency, never a global,
so tests can observe state transitions without a display subsystem.
*/
package events
