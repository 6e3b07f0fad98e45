package router

import (
	"testing"
	"time"

	"github.com/evansenter/agent-event-bus/pkg/types"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func makeEvent(eventType, channel string) *types.Event {
	return &types.Event{
		ID:        1,
		EventType: eventType,
		Payload:   "test",
		SessionID: "test",
		Timestamp: time.Now().UTC(),
		Channel:   channel,
	}
}

func makeWebhook(filter *string, eventTypes []string) *types.Webhook {
	return &types.Webhook{
		ID:            1,
		URL:           "https://test.com",
		ChannelFilter: filter,
		EventTypes:    eventTypes,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		webhook *types.Webhook
		event   *types.Event
		want    bool
	}{
		{
			name:    "no filters matches everything",
			webhook: makeWebhook(nil, nil),
			event:   makeEvent("test", "all"),
			want:    true,
		},
		{
			name:    "exact channel match",
			webhook: makeWebhook(strPtr("repo:myrepo"), nil),
			event:   makeEvent("test", "repo:myrepo"),
			want:    true,
		},
		{
			name:    "exact channel mismatch",
			webhook: makeWebhook(strPtr("repo:myrepo"), nil),
			event:   makeEvent("test", "repo:other"),
			want:    false,
		},
		{
			name:    "prefix filter matches",
			webhook: makeWebhook(strPtr("session:"), nil),
			event:   makeEvent("test", "session:abc-123"),
			want:    true,
		},
		{
			name:    "prefix filter mismatch",
			webhook: makeWebhook(strPtr("session:"), nil),
			event:   makeEvent("test", "repo:myrepo"),
			want:    false,
		},
		{
			name:    "prefix filter does not match broadcast",
			webhook: makeWebhook(strPtr("session:"), nil),
			event:   makeEvent("test", "all"),
			want:    false,
		},
		{
			name:    "bare colon matches any prefixed channel",
			webhook: makeWebhook(strPtr(":"), nil),
			event:   makeEvent("test", ":anything"),
			want:    true,
		},
		{
			name:    "bare colon does not match unprefixed channel",
			webhook: makeWebhook(strPtr(":"), nil),
			event:   makeEvent("test", "all"),
			want:    false,
		},
		{
			name:    "event type match",
			webhook: makeWebhook(nil, []string{"task_completed", "help_needed"}),
			event:   makeEvent("task_completed", "all"),
			want:    true,
		},
		{
			name:    "event type mismatch",
			webhook: makeWebhook(nil, []string{"task_completed", "help_needed"}),
			event:   makeEvent("greeting", "all"),
			want:    false,
		},
		{
			name:    "event type is case-sensitive",
			webhook: makeWebhook(nil, []string{"Greeting"}),
			event:   makeEvent("greeting", "all"),
			want:    false,
		},
		{
			name:    "combined filters both match",
			webhook: makeWebhook(strPtr("session:"), []string{"greeting"}),
			event:   makeEvent("greeting", "session:abc"),
			want:    true,
		},
		{
			name:    "combined filters wrong channel",
			webhook: makeWebhook(strPtr("session:"), []string{"greeting"}),
			event:   makeEvent("greeting", "all"),
			want:    false,
		},
		{
			name:    "combined filters wrong type",
			webhook: makeWebhook(strPtr("session:"), []string{"greeting"}),
			event:   makeEvent("task_completed", "session:abc"),
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.webhook, tt.event))
		})
	}
}

func TestInactiveWebhookNeverMatches(t *testing.T) {
	webhook := makeWebhook(nil, nil)
	webhook.Active = false

	assert.False(t, Matches(webhook, makeEvent("test", "all")))
}

func TestMatchingWebhooks(t *testing.T) {
	catchAll := makeWebhook(nil, nil)
	sessionOnly := makeWebhook(strPtr("session:"), nil)
	sessionOnly.ID = 2
	inactive := makeWebhook(nil, nil)
	inactive.ID = 3
	inactive.Active = false

	hooks := []*types.Webhook{catchAll, sessionOnly, inactive}

	matched := MatchingWebhooks(hooks, makeEvent("test", "session:xyz"))
	assert.Len(t, matched, 2)

	matched = MatchingWebhooks(hooks, makeEvent("test", "all"))
	assert.Len(t, matched, 1)
	assert.Equal(t, catchAll.ID, matched[0].ID)
}
