/*
Package storage provides BoltDB-backed persistence for the event bus state.

The package implements the Store interface using BoltDB (bbolt), providing
ACID transactions for sessions, events, and webhooks. All records are
serialized as JSON and kept in separate buckets:

	sessions   key = session id (string)
	events     key = event id (8-byte big-endian), value ordered by id
	webhooks   key = webhook id (8-byte big-endian)

Event ids come from the events bucket's persistent sequence, so they stay
strictly increasing across restarts and retention trimming. Appending an
event and trimming rows past the retention limit happen in one write
transaction, so readers never observe more than MaxEvents rows.

Writes are serialized by BoltDB's single-writer lock; reads run concurrently
through MVCC snapshots. The store is safe for use from multiple goroutines.

Records written by older schema versions decode cleanly: a session without a
pid field yields a nil pid, and an event without a channel is read back on
the "all" channel.
*/
package storage
