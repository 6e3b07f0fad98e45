package storage

import (
	"errors"
	"time"

	"github.com/evansenter/agent-event-bus/pkg/types"
)

// ErrNotFound is returned when a session or webhook lookup misses. Callers
// translate it into success=false results rather than failures.
var ErrNotFound = errors.New("not found")

// Default retention and liveness limits.
const (
	// DefaultMaxEvents bounds the event log; the lowest-id rows are trimmed.
	DefaultMaxEvents = 10000

	// DefaultSessionTimeout is how long a session may go without a
	// heartbeat before it is considered stale.
	DefaultSessionTimeout = 600 * time.Second
)

// Store defines the interface for event bus state persistence.
type Store interface {
	// Sessions
	AddSession(session *types.Session) error
	GetSession(id string) (*types.Session, error)
	DeleteSession(id string) (bool, error)
	ListSessions() ([]*types.Session, error)
	SessionCount() (int, error)
	FindSessionByKey(machine, cwd string, pid *int) (*types.Session, error)
	UpdateHeartbeat(id string, t time.Time) (bool, error)
	CleanupStale(timeout time.Duration) ([]*types.Session, error)

	// Events
	AddEvent(eventType, payload, sessionID, channel string) (*types.Event, error)
	GetEvents(sinceID int64, limit int, channels []string) ([]*types.Event, error)
	GetLastEventID() (int64, error)

	// Webhooks
	AddWebhook(url string, channelFilter *string, eventTypes []string, secret string) (*types.Webhook, error)
	GetWebhook(id int64) (*types.Webhook, error)
	ListWebhooks(activeOnly bool) ([]*types.Webhook, error)
	DeleteWebhook(id int64) (bool, error)
	SetWebhookActive(id int64, active bool) (bool, error)

	// Utility
	Close() error
}
