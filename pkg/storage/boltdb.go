package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/evansenter/agent-event-bus/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketSessions = []byte("sessions")
	bucketEvents   = []byte("events")
	bucketWebhooks = []byte("webhooks")
)

// BoltStore implements Store using BoltDB. A single writer transaction at a
// time serializes all mutations; reads run concurrently.
type BoltStore struct {
	db        *bolt.DB
	maxEvents int
}

// NewBoltStore opens (or creates) the database at path with the default
// event retention limit.
func NewBoltStore(path string) (*BoltStore, error) {
	return NewBoltStoreWithLimit(path, DefaultMaxEvents)
}

// NewBoltStoreWithLimit opens the database with a custom event retention
// limit. The parent directory is created if absent.
func NewBoltStoreWithLimit(path string, maxEvents int) (*BoltStore, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketSessions,
			bucketEvents,
			bucketWebhooks,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, maxEvents: maxEvents}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// itob returns an 8-byte big-endian representation of v, so bucket keys sort
// in id order.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// decodeSession tolerates records written by older schema versions: fields
// absent from the stored JSON (pid) decode to their zero values.
func decodeSession(data []byte) (*types.Session, error) {
	var session types.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// decodeEvent defaults the channel on records that predate channel routing.
func decodeEvent(data []byte) (*types.Event, error) {
	var event types.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if event.Channel == "" {
		event.Channel = types.ChannelAll
	}
	return &event, nil
}

// Session operations

// AddSession upserts a session by id.
func (s *BoltStore) AddSession(session *types.Session) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		return b.Put([]byte(session.ID), data)
	})
}

// GetSession retrieves a session by id. Returns ErrNotFound if absent.
func (s *BoltStore) GetSession(id string) (*types.Session, error) {
	var session *types.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var err error
		session, err = decodeSession(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession removes a session. Returns true if a row was removed.
func (s *BoltStore) DeleteSession(id string) (bool, error) {
	removed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b.Get([]byte(id)) == nil {
			return nil
		}
		removed = true
		return b.Delete([]byte(id))
	})
	return removed, err
}

// ListSessions returns all sessions in unspecified order.
func (s *BoltStore) ListSessions() ([]*types.Session, error) {
	var sessions []*types.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		return b.ForEach(func(k, v []byte) error {
			session, err := decodeSession(v)
			if err != nil {
				return err
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	return sessions, err
}

// SessionCount returns the number of registered sessions.
func (s *BoltStore) SessionCount() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketSessions).Stats().KeyN
		return nil
	})
	return count, err
}

// FindSessionByKey returns the session matching the (machine, cwd, pid)
// triple exactly. A nil pid never matches anything: sessions without a pid
// have no dedup identity.
func (s *BoltStore) FindSessionByKey(machine, cwd string, pid *int) (*types.Session, error) {
	if pid == nil {
		return nil, nil
	}

	var found *types.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		return b.ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			session, err := decodeSession(v)
			if err != nil {
				return err
			}
			if session.Machine == machine && session.Cwd == cwd &&
				session.PID != nil && *session.PID == *pid {
				found = session
			}
			return nil
		})
	})
	return found, err
}

// UpdateHeartbeat sets last_heartbeat to max(previous, t). Returns true if
// the session exists.
func (s *BoltStore) UpdateHeartbeat(id string, t time.Time) (bool, error) {
	updated := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		session, err := decodeSession(data)
		if err != nil {
			return err
		}
		if t.After(session.LastHeartbeat) {
			session.LastHeartbeat = t
		}
		out, err := json.Marshal(session)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(id), out); err != nil {
			return err
		}
		updated = true
		return nil
	})
	return updated, err
}

// CleanupStale removes every session whose heartbeat is older than timeout
// and returns the removed sessions so the caller can emit lifecycle events.
// A timeout of zero uses the default.
func (s *BoltStore) CleanupStale(timeout time.Duration) ([]*types.Session, error) {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}

	now := time.Now().UTC()
	var removed []*types.Session
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)

		// Collect first: deleting while iterating a bucket is unsafe.
		var staleIDs [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			session, err := decodeSession(v)
			if err != nil {
				return err
			}
			if now.Sub(session.LastHeartbeat) > timeout {
				key := make([]byte, len(k))
				copy(key, k)
				staleIDs = append(staleIDs, key)
				removed = append(removed, session)
			}
			return nil
		}); err != nil {
			return err
		}

		for _, id := range staleIDs {
			if err := b.Delete(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Event operations

// AddEvent assigns the next event id, persists the event, and trims rows
// beyond the retention limit, all in one transaction.
func (s *BoltStore) AddEvent(eventType, payload, sessionID, channel string) (*types.Event, error) {
	if channel == "" {
		channel = types.ChannelAll
	}
	if sessionID == "" {
		sessionID = types.SystemSessionID
	}

	var event *types.Event
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)

		// The bucket sequence survives restarts and trimming, keeping ids
		// strictly increasing for the lifetime of the database file.
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id := int64(seq)

		event = &types.Event{
			ID:        id,
			EventType: eventType,
			Payload:   payload,
			SessionID: sessionID,
			Timestamp: time.Now().UTC(),
			Channel:   channel,
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if err := b.Put(itob(id), data); err != nil {
			return err
		}

		// Trim everything at or below max_id - maxEvents.
		cutoff := id - int64(s.maxEvents)
		if cutoff <= 0 {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil && btoi(k) <= cutoff; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add event: %w", err)
	}
	return event, nil
}

// GetEvents returns events with id > sinceID in ascending id order,
// optionally restricted to the given channels and truncated to limit.
// A limit of zero or less means no limit; nil or empty channels means no
// channel filter.
func (s *BoltStore) GetEvents(sinceID int64, limit int, channels []string) ([]*types.Event, error) {
	var channelSet map[string]bool
	if len(channels) > 0 {
		channelSet = make(map[string]bool, len(channels))
		for _, ch := range channels {
			channelSet[ch] = true
		}
	}

	var events []*types.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(itob(sinceID + 1)); k != nil; k, v = c.Next() {
			event, err := decodeEvent(v)
			if err != nil {
				return err
			}
			if channelSet != nil && !channelSet[event.Channel] {
				continue
			}
			events = append(events, event)
			if limit > 0 && len(events) >= limit {
				return nil
			}
		}
		return nil
	})
	return events, err
}

// GetLastEventID returns the highest event id, or 0 if the log is empty.
func (s *BoltStore) GetLastEventID() (int64, error) {
	var last int64
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		if k, _ := c.Last(); k != nil {
			last = btoi(k)
		}
		return nil
	})
	return last, err
}

// Webhook operations

// AddWebhook registers a new webhook. It starts active.
func (s *BoltStore) AddWebhook(url string, channelFilter *string, eventTypes []string, secret string) (*types.Webhook, error) {
	var webhook *types.Webhook
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWebhooks)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		webhook = &types.Webhook{
			ID:            int64(seq),
			URL:           url,
			ChannelFilter: channelFilter,
			EventTypes:    eventTypes,
			Secret:        secret,
			Active:        true,
			CreatedAt:     time.Now().UTC(),
		}

		data, err := json.Marshal(webhook)
		if err != nil {
			return err
		}
		return b.Put(itob(webhook.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add webhook: %w", err)
	}
	return webhook, nil
}

// GetWebhook retrieves a webhook by id. Returns ErrNotFound if absent.
func (s *BoltStore) GetWebhook(id int64) (*types.Webhook, error) {
	var webhook types.Webhook
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketWebhooks).Get(itob(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &webhook)
	})
	if err != nil {
		return nil, err
	}
	return &webhook, nil
}

// ListWebhooks returns all webhooks, or only the active ones.
func (s *BoltStore) ListWebhooks(activeOnly bool) ([]*types.Webhook, error) {
	var webhooks []*types.Webhook
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWebhooks)
		return b.ForEach(func(k, v []byte) error {
			var webhook types.Webhook
			if err := json.Unmarshal(v, &webhook); err != nil {
				return err
			}
			if activeOnly && !webhook.Active {
				return nil
			}
			webhooks = append(webhooks, &webhook)
			return nil
		})
	})
	return webhooks, err
}

// DeleteWebhook removes a webhook. Returns true if a row was removed.
func (s *BoltStore) DeleteWebhook(id int64) (bool, error) {
	removed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWebhooks)
		if b.Get(itob(id)) == nil {
			return nil
		}
		removed = true
		return b.Delete(itob(id))
	})
	return removed, err
}

// SetWebhookActive toggles a webhook. Returns true if the webhook exists.
func (s *BoltStore) SetWebhookActive(id int64, active bool) (bool, error) {
	updated := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWebhooks)
		data := b.Get(itob(id))
		if data == nil {
			return nil
		}
		var webhook types.Webhook
		if err := json.Unmarshal(data, &webhook); err != nil {
			return err
		}
		webhook.Active = active
		out, err := json.Marshal(&webhook)
		if err != nil {
			return err
		}
		if err := b.Put(itob(id), out); err != nil {
			return err
		}
		updated = true
		return nil
	})
	return updated, err
}
