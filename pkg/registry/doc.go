// Package registry manages agent session lifecycle: registration with
// deduplication by (machine, cwd, pid), heartbeat refresh, pid liveness
// probing, and enriched session listings. Registration and removal emit
// session_registered / session_unregistered events on the broadcast channel.
package registry
