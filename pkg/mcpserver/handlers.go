package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/evansenter/agent-event-bus/pkg/notify"
	"github.com/evansenter/agent-event-bus/pkg/types"
	"github.com/mark3labs/mcp-go/mcp"
)

// jsonResult marshals a typed result into the tool call's text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// devNotify surfaces tool calls as desktop notifications in dev mode.
func (s *Server) devNotify(tool, summary string) {
	if s.devMode {
		notify.Send("🔧 "+tool, summary, false)
	}
}

func (s *Server) handleRegisterSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cwd, err := req.RequireString("cwd")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := req.GetString("name", "")

	var pid *int
	if p := req.GetInt("pid", 0); p > 0 {
		pid = &p
	}

	session, err := s.registry.Register(name, cwd, pid, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.devNotify("register_session", session.Name)
	return jsonResult(types.RegisterResult{
		SessionID: session.ID,
		Name:      session.Name,
		Repo:      session.Repo,
		Machine:   session.Machine,
	})
}

func (s *Server) handleUnregisterSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	removed, err := s.registry.Unregister(sessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(types.AckResult{Success: removed, SessionID: sessionID})
}

func (s *Server) handleHeartbeat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ok, err := s.registry.Heartbeat(sessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(types.AckResult{Success: ok})
}

func (s *Server) handleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	views, err := s.registry.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(views)
}

func (s *Server) handlePublishEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eventType, err := req.RequireString("event_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload, err := req.RequireString("payload")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	event, err := s.events.Publish(eventType, payload,
		req.GetString("session_id", ""), req.GetString("channel", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.devNotify("publish_event", eventType)
	return jsonResult(types.PublishResult{EventID: event.ID})
}

func (s *Server) handleGetEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sinceID := int64(req.GetInt("since_id", 0))
	sessionID := req.GetString("session_id", "")
	channels := req.GetStringSlice("channels", nil)
	limit := req.GetInt("limit", 0)

	events, err := s.events.Events(sinceID, sessionID, channels, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if events == nil {
		events = []*types.Event{}
	}
	return jsonResult(events)
}

func (s *Server) handleNotify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ok := notify.Send(title, message, req.GetBool("sound", false))
	return jsonResult(types.NotifyResult{Success: ok})
}

func (s *Server) handleRegisterWebhook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := validateWebhookURL(rawURL); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var channelFilter *string
	if ch := req.GetString("channel", ""); ch != "" {
		channelFilter = &ch
	}
	eventTypes := req.GetStringSlice("event_types", nil)
	secret := req.GetString("secret", "")

	webhook, err := s.store.AddWebhook(rawURL, channelFilter, eventTypes, secret)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.devNotify("register_webhook", webhook.URL)
	return jsonResult(types.RegisterWebhookResult{
		WebhookID:  webhook.ID,
		URL:        webhook.URL,
		Channel:    webhook.ChannelFilter,
		EventTypes: webhook.EventTypes,
		CreatedAt:  webhook.CreatedAt,
	})
}

func (s *Server) handleListWebhooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hooks, err := s.store.ListWebhooks(req.GetBool("active_only", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	views := make([]types.WebhookView, 0, len(hooks))
	for _, w := range hooks {
		views = append(views, w.View())
	}
	return jsonResult(views)
}

func (s *Server) handleUnregisterWebhook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("webhook_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	removed, err := s.store.DeleteWebhook(int64(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(types.WebhookAckResult{Success: removed, WebhookID: int64(id)})
}

func (s *Server) handleSetWebhookActive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("webhook_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	active, err := req.RequireBool("active")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	updated, err := s.store.SetWebhookActive(int64(id), active)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(types.WebhookAckResult{Success: updated, WebhookID: int64(id)})
}

// validateWebhookURL requires an absolute http or https URL.
func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook url must be absolute http(s): %s", raw)
	}
	return nil
}
