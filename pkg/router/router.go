package router

import (
	"strings"

	"github.com/evansenter/agent-event-bus/pkg/types"
)

// Matches reports whether a webhook should receive an event: the webhook is
// active, its channel filter matches the event channel, and its event-type
// list (if any) contains the event type.
func Matches(w *types.Webhook, e *types.Event) bool {
	if !w.Active {
		return false
	}
	return channelMatches(w.ChannelFilter, e.Channel) && typeMatches(w.EventTypes, e.EventType)
}

// channelMatches evaluates the three filter cases in order: nil matches any
// channel, a filter ending in ":" is a prefix filter, anything else is exact
// equality. The trailing-colon rule is strict, so "repo:myrepo" stays an
// exact match.
func channelMatches(filter *string, channel string) bool {
	if filter == nil {
		return true
	}
	f := *filter
	if strings.HasSuffix(f, ":") {
		return strings.HasPrefix(channel, f)
	}
	return channel == f
}

// typeMatches is case-sensitive membership; an empty list matches any type.
func typeMatches(eventTypes []string, eventType string) bool {
	if len(eventTypes) == 0 {
		return true
	}
	for _, t := range eventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// MatchingWebhooks filters hooks down to those that match the event, in
// unspecified order.
func MatchingWebhooks(hooks []*types.Webhook, e *types.Event) []*types.Webhook {
	var matched []*types.Webhook
	for _, w := range hooks {
		if Matches(w, e) {
			matched = append(matched, w)
		}
	}
	return matched
}
