// Package sweeper runs the periodic stale-session sweep: sessions whose
// heartbeat is older than the session timeout are removed and announced as
// session_expired events on the broadcast channel.
package sweeper
