package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/evansenter/agent-event-bus/pkg/log"
	"github.com/evansenter/agent-event-bus/pkg/metrics"
	"github.com/evansenter/agent-event-bus/pkg/storage"
	"github.com/evansenter/agent-event-bus/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Publisher emits events onto the bus. Satisfied by eventlog.EventLog.
type Publisher interface {
	Publish(eventType, payload, sessionID, channel string) (*types.Event, error)
}

// Registry manages session lifecycle: registration with dedup by
// (machine, cwd, pid), heartbeats, and enriched listings.
type Registry struct {
	store     storage.Store
	publisher Publisher
	logger    zerolog.Logger

	hostname func() (string, error)
	now      func() time.Time
}

// New creates a session registry. The publisher may be nil, in which case no
// lifecycle events are emitted.
func New(store storage.Store, publisher Publisher) *Registry {
	return &Registry{
		store:     store,
		publisher: publisher,
		logger:    log.WithComponent("registry"),
		hostname:  os.Hostname,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new session. An empty name defaults to the repo derived
// from cwd; an empty machine defaults to the local hostname. When a pid is
// given and another session holds the same (machine, cwd, pid) triple, that
// session is deleted first so the new registration supersedes it.
func (r *Registry) Register(name, cwd string, pid *int, machine string) (*types.Session, error) {
	if machine == "" {
		host, err := r.hostname()
		if err != nil {
			host = "unknown"
		}
		machine = host
	}

	repo := RepoFromCwd(cwd)
	if name == "" {
		name = repo
	}

	if pid != nil {
		prev, err := r.store.FindSessionByKey(machine, cwd, pid)
		if err != nil {
			return nil, fmt.Errorf("failed to check for existing session: %w", err)
		}
		if prev != nil {
			if _, err := r.store.DeleteSession(prev.ID); err != nil {
				return nil, fmt.Errorf("failed to supersede session %s: %w", prev.ID, err)
			}
			r.logger.Info().
				Str("old_session_id", prev.ID).
				Str("machine", machine).
				Str("cwd", cwd).
				Msg("Superseding existing session with same machine/cwd/pid")
		}
	}

	now := r.now()
	session := &types.Session{
		ID:            uuid.New().String(),
		Name:          name,
		Machine:       machine,
		Cwd:           cwd,
		Repo:          repo,
		RegisteredAt:  now,
		LastHeartbeat: now,
		PID:           pid,
	}

	if err := r.store.AddSession(session); err != nil {
		return nil, fmt.Errorf("failed to add session: %w", err)
	}

	metrics.SessionsRegistered.Inc()
	r.logger.Info().
		Str("session_id", session.ID).
		Str("name", session.Name).
		Str("repo", session.Repo).
		Msg("Session registered")

	r.emit("session_registered", session)
	return session, nil
}

// Unregister removes a session and emits session_unregistered. Unregistering
// an unknown id returns false without error.
func (r *Registry) Unregister(sessionID string) (bool, error) {
	session, err := r.store.GetSession(sessionID)
	if err != nil {
		if err == storage.ErrNotFound {
			return false, nil
		}
		return false, err
	}

	removed, err := r.store.DeleteSession(sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	if removed {
		r.logger.Info().Str("session_id", sessionID).Msg("Session unregistered")
		r.emit("session_unregistered", session)
	}
	return removed, nil
}

// Heartbeat refreshes a session's last_heartbeat. Returns true if the
// session exists.
func (r *Registry) Heartbeat(sessionID string) (bool, error) {
	return r.store.UpdateHeartbeat(sessionID, r.now())
}

// List returns all sessions enriched with age, idle time, and a liveness
// probe of the registered pid.
func (r *Registry) List() ([]types.SessionView, error) {
	sessions, err := r.store.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := r.now()
	views := make([]types.SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, types.SessionView{
			SessionID:   s.ID,
			Name:        s.Name,
			Repo:        s.Repo,
			Machine:     s.Machine,
			PID:         s.PID,
			AgeSeconds:  int64(now.Sub(s.RegisteredAt).Seconds()),
			IdleSeconds: int64(now.Sub(s.LastHeartbeat).Seconds()),
			Alive:       pidAlive(s.PID),
		})
	}
	return views, nil
}

// emit publishes a lifecycle event with the session summary as payload.
// Failures are logged and swallowed: lifecycle events are advisory.
func (r *Registry) emit(eventType string, session *types.Session) {
	if r.publisher == nil {
		return
	}
	payload, err := json.Marshal(types.RegisterResult{
		SessionID: session.ID,
		Name:      session.Name,
		Repo:      session.Repo,
		Machine:   session.Machine,
	})
	if err != nil {
		return
	}
	if _, err := r.publisher.Publish(eventType, string(payload), session.ID, types.ChannelAll); err != nil {
		r.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("session_id", session.ID).
			Msg("Failed to publish lifecycle event")
	}
}
