package sweeper

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/evansenter/agent-event-bus/pkg/eventlog"
	"github.com/evansenter/agent-event-bus/pkg/storage"
	"github.com/evansenter/agent-event-bus/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addSession(t *testing.T, store storage.Store, id string, heartbeatAge time.Duration) {
	t.Helper()
	ts := time.Now().UTC().Add(-heartbeatAge)
	require.NoError(t, store.AddSession(&types.Session{
		ID:            id,
		Name:          id,
		Machine:       "localhost",
		Cwd:           "/home/user/" + id,
		Repo:          id,
		RegisteredAt:  ts,
		LastHeartbeat: ts,
	}))
}

func TestSweepRemovesStaleSessions(t *testing.T) {
	store := newTestStore(t)
	events := eventlog.New(store, nil)

	addSession(t, store, "fresh", 0)
	addSession(t, store, "stale", 601*time.Second)

	s := New(store, events, 0, 0)
	s.Sweep()

	_, err := store.GetSession("fresh")
	assert.NoError(t, err)
	_, err = store.GetSession("stale")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSweepEmitsExpiredEvents(t *testing.T) {
	store := newTestStore(t)
	events := eventlog.New(store, nil)

	addSession(t, store, "stale", 601*time.Second)

	s := New(store, events, 0, 0)
	s.Sweep()

	published, err := store.GetEvents(0, 0, []string{types.ChannelAll})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "session_expired", published[0].EventType)
	assert.Equal(t, types.SystemSessionID, published[0].SessionID)
	assert.Contains(t, published[0].Payload, "stale")
}

func TestSweepWithNothingStale(t *testing.T) {
	store := newTestStore(t)
	events := eventlog.New(store, nil)

	addSession(t, store, "fresh", 0)

	s := New(store, events, 0, 0)
	s.Sweep()

	published, err := store.GetEvents(0, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, published)
}

func TestSweepRespectsCustomTimeout(t *testing.T) {
	store := newTestStore(t)
	events := eventlog.New(store, nil)

	addSession(t, store, "idle", 60*time.Second)

	s := New(store, events, 0, 30*time.Second)
	s.Sweep()

	_, err := store.GetSession("idle")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStartStop(t *testing.T) {
	store := newTestStore(t)

	s := New(store, nil, 10*time.Millisecond, 0)
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()
}
