package eventlog

import (
	"errors"
	"fmt"

	"github.com/evansenter/agent-event-bus/pkg/log"
	"github.com/evansenter/agent-event-bus/pkg/metrics"
	"github.com/evansenter/agent-event-bus/pkg/storage"
	"github.com/evansenter/agent-event-bus/pkg/types"
	"github.com/rs/zerolog"
)

// ErrEmptyEventType rejects publishes without an event type.
var ErrEmptyEventType = errors.New("event_type must not be empty")

// Dispatcher receives committed events for asynchronous webhook delivery.
// Enqueue must not block the publish path.
type Dispatcher interface {
	Enqueue(event *types.Event)
}

// EventLog is the publish and query surface of the bus. Publishing persists
// the event first; webhook dispatch proceeds concurrently and never affects
// the publish result.
type EventLog struct {
	store      storage.Store
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// New creates an event log. The dispatcher may be nil, in which case events
// are stored but not delivered to webhooks.
func New(store storage.Store, dispatcher Dispatcher) *EventLog {
	return &EventLog{
		store:      store,
		dispatcher: dispatcher,
		logger:     log.WithComponent("eventlog"),
	}
}

// Publish appends an event, assigns its id, and hands it to the webhook
// dispatcher. An empty session id is recorded as the system session; an
// empty channel defaults to the broadcast channel.
func (l *EventLog) Publish(eventType, payload, sessionID, channel string) (*types.Event, error) {
	if eventType == "" {
		return nil, ErrEmptyEventType
	}
	if channel == "" {
		channel = types.ChannelAll
	}
	if sessionID == "" {
		sessionID = types.SystemSessionID
	}

	event, err := l.store.AddEvent(eventType, payload, sessionID, channel)
	if err != nil {
		return nil, err
	}

	metrics.EventsPublished.Inc()
	l.logger.Debug().
		Int64("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("channel", event.Channel).
		Msg("Event published")

	if l.dispatcher != nil {
		l.dispatcher.Enqueue(event)
	}
	return event, nil
}

// Events returns events after sinceID in ascending id order. When a session
// id is given without an explicit channel list, the query defaults to the
// channels that session listens on: the broadcast channel, its direct
// channel, and its repo and machine channels.
func (l *EventLog) Events(sinceID int64, sessionID string, channels []string, limit int) ([]*types.Event, error) {
	if sessionID != "" && channels == nil {
		session, err := l.store.GetSession(sessionID)
		if err != nil {
			if err == storage.ErrNotFound {
				return nil, fmt.Errorf("unknown session %s", sessionID)
			}
			return nil, err
		}
		channels = []string{
			types.ChannelAll,
			types.SessionChannel(session.ID),
			types.RepoChannel(session.Repo),
			types.MachineChannel(session.Machine),
		}
	}
	return l.store.GetEvents(sinceID, limit, channels)
}
