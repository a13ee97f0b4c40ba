/*
Package types defines the shared data model for airvol.

The package contains only declarations: the Target endpoint model, the
ConnectionState observed by event consumers, the immutable ForcedConfig
overrides, and the protocol default constants. It has no dependencies on
other airvol packages so that every layer can import it.

Ownership rules (enforced by the owning packages, documented here):

  - Target: owned by pkg/selector; other packages only hold snapshots.
  - ConnectionState: owned by pkg/supervisor; consumers observe it
    through the event broker.
  - ForcedConfig: read once at startup, never mutated afterwards.
*/
package types
