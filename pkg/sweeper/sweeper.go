package sweeper

import (
	"encoding/json"
	"time"

	"github.com/evansenter/agent-event-bus/pkg/log"
	"github.com/evansenter/agent-event-bus/pkg/metrics"
	"github.com/evansenter/agent-event-bus/pkg/storage"
	"github.com/evansenter/agent-event-bus/pkg/types"
	"github.com/rs/zerolog"
)

// Publisher emits events onto the bus. Satisfied by eventlog.EventLog.
type Publisher interface {
	Publish(eventType, payload, sessionID, channel string) (*types.Event, error)
}

// Sweeper periodically removes sessions whose heartbeat is older than the
// session timeout and announces each removal as a session_expired event.
// Errors are logged and the loop continues; the sweeper never terminates the
// process.
type Sweeper struct {
	store     storage.Store
	publisher Publisher
	interval  time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
	stopCh    chan struct{}
}

// New creates a sweeper. Zero interval and timeout use the defaults
// (30s sweep, 600s session timeout).
func New(store storage.Store, publisher Publisher, interval, timeout time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = storage.DefaultSessionTimeout
	}
	return &Sweeper{
		store:     store,
		publisher: publisher,
		interval:  interval,
		timeout:   timeout,
		logger:    log.WithComponent("sweeper"),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop stops the sweeper.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("Sweeper started")

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			s.logger.Info().Msg("Sweeper stopped")
			return
		}
	}
}

// Sweep performs one cleanup cycle.
func (s *Sweeper) Sweep() {
	metrics.SweepCycles.Inc()

	removed, err := s.store.CleanupStale(s.timeout)
	if err != nil {
		s.logger.Error().Err(err).Msg("Stale session cleanup failed")
		return
	}

	for _, session := range removed {
		metrics.SessionsExpired.Inc()
		s.logger.Info().
			Str("session_id", session.ID).
			Str("name", session.Name).
			Time("last_heartbeat", session.LastHeartbeat).
			Msg("Session expired")
		s.announce(session)
	}

	if count, err := s.store.SessionCount(); err == nil {
		metrics.SessionsActive.Set(float64(count))
	}
}

func (s *Sweeper) announce(session *types.Session) {
	if s.publisher == nil {
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
	if _, err := s.publisher.Publish("session_expired", string(payload), types.SystemSessionID, types.ChannelAll); err != nil {
		s.logger.Error().Err(err).
			Str("session_id", session.ID).
			Msg("Failed to publish session_expired event")
	}
}
