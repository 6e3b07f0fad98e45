package types

import (
	"fmt"
	"time"
)

// SystemSessionID is the session id recorded on events published without a
// session id and on the sweeper's session_expired events. Registration and
// unregistration events carry the affected session's own id.
const SystemSessionID = "system"

// ChannelAll is the default broadcast channel.
const ChannelAll = "all"

// SessionChannel returns the direct channel for a session.
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// RepoChannel returns the channel shared by sessions of one repository.
func RepoChannel(repo string) string {
	return "repo:" + repo
}

// MachineChannel returns the channel shared by sessions on one host.
func MachineChannel(machine string) string {
	return "machine:" + machine
}

// Session represents a registered agent process.
type Session struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Machine       string    `json:"machine"`
	Cwd           string    `json:"cwd"`
	Repo          string    `json:"repo"`
	RegisteredAt  time.Time `json:"registered_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	PID           *int      `json:"pid,omitempty"`
}

// Key returns the dedup identity of the session. Sessions without a pid have
// no dedup identity.
func (s *Session) Key() string {
	if s.PID == nil {
		return ""
	}
	return fmt.Sprintf("%s|%s|%d", s.Machine, s.Cwd, *s.PID)
}

// SessionView is a session enriched with liveness information for listings.
type SessionView struct {
	SessionID   string `json:"session_id"`
	Name        string `json:"name"`
	Repo        string `json:"repo"`
	Machine     string `json:"machine"`
	PID         *int   `json:"pid,omitempty"`
	AgeSeconds  int64  `json:"age_seconds"`
	IdleSeconds int64  `json:"idle_seconds"`
	Alive       bool   `json:"alive"`
}

// Event is an immutable, numbered message on the bus. The id is assigned by
// the store and is strictly increasing in insertion order.
type Event struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"`
	Payload   string    `json:"payload"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel"`
}

// Webhook is an outbound subscription that forwards matching events to a URL.
type Webhook struct {
	ID            int64     `json:"id"`
	URL           string    `json:"url"`
	ChannelFilter *string   `json:"channel_filter,omitempty"`
	EventTypes    []string  `json:"event_types,omitempty"`
	Secret        string    `json:"secret,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// WebhookView is a webhook listing entry with the secret redacted.
type WebhookView struct {
	ID         int64     `json:"id"`
	URL        string    `json:"url"`
	Channel    *string   `json:"channel,omitempty"`
	EventTypes []string  `json:"event_types,omitempty"`
	Active     bool      `json:"active"`
	HasSecret  bool      `json:"has_secret"`
	CreatedAt  time.Time `json:"created_at"`
}

// View returns the redacted listing form of the webhook.
func (w *Webhook) View() WebhookView {
	return WebhookView{
		ID:         w.ID,
		URL:        w.URL,
		Channel:    w.ChannelFilter,
		EventTypes: w.EventTypes,
		Active:     w.Active,
		HasSecret:  w.Secret != "",
		CreatedAt:  w.CreatedAt,
	}
}

// RegisterResult is returned by the register_session tool.
type RegisterResult struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Repo      string `json:"repo"`
	Machine   string `json:"machine"`
}

// AckResult is the generic success/failure result for session operations.
type AckResult struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
}

// PublishResult is returned by the publish_event tool.
type PublishResult struct {
	EventID int64 `json:"event_id"`
}

// NotifyResult is returned by the notify tool.
type NotifyResult struct {
	Success bool `json:"success"`
}

// RegisterWebhookResult is returned by the register_webhook tool.
type RegisterWebhookResult struct {
	WebhookID  int64     `json:"webhook_id"`
	URL        string    `json:"url"`
	Channel    *string   `json:"channel,omitempty"`
	EventTypes []string  `json:"event_types,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// WebhookAckResult is the success/failure result for webhook operations.
type WebhookAckResult struct {
	Success   bool  `json:"success"`
	WebhookID int64 `json:"webhook_id,omitempty"`
}
