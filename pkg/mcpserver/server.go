package mcpserver

import (
	"os"

	"github.com/evansenter/agent-event-bus/pkg/eventlog"
	"github.com/evansenter/agent-event-bus/pkg/log"
	"github.com/evansenter/agent-event-bus/pkg/registry"
	"github.com/evansenter/agent-event-bus/pkg/storage"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Server exposes the event bus as an MCP tool server over stdio. All
// dependencies are injected; the package holds no mutable globals.
type Server struct {
	registry *registry.Registry
	events   *eventlog.EventLog
	store    storage.Store
	logger   zerolog.Logger
	devMode  bool

	mcp *server.MCPServer
}

// NewServer wires the tool surface onto the given core components. Dev-mode
// tool notifications are enabled when the DEV_MODE environment variable is
// set.
func NewServer(reg *registry.Registry, events *eventlog.EventLog, store storage.Store, version string) *Server {
	s := &Server{
		registry: reg,
		events:   events,
		store:    store,
		logger:   log.WithComponent("mcp"),
		devMode:  os.Getenv("DEV_MODE") != "",
	}

	s.mcp = server.NewMCPServer(
		"agent-event-bus",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

// ServeStdio runs the server on stdin/stdout until the stream closes.
func (s *Server) ServeStdio() error {
	s.logger.Info().Msg("Serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("register_session",
		mcp.WithDescription("Register this agent session with the event bus"),
		mcp.WithString("cwd", mcp.Required(), mcp.Description("Absolute working directory of the agent")),
		mcp.WithString("name", mcp.Description("Display name; defaults to the repo derived from cwd")),
		mcp.WithNumber("pid", mcp.Description("OS process id, used for dedup and liveness")),
	), s.handleRegisterSession)

	s.mcp.AddTool(mcp.NewTool("unregister_session",
		mcp.WithDescription("Remove a session from the event bus"),
		mcp.WithString("session_id", mcp.Required()),
	), s.handleUnregisterSession)

	s.mcp.AddTool(mcp.NewTool("heartbeat",
		mcp.WithDescription("Refresh a session's liveness timestamp"),
		mcp.WithString("session_id", mcp.Required()),
	), s.handleHeartbeat)

	s.mcp.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List all registered sessions with age and liveness"),
	), s.handleListSessions)

	s.mcp.AddTool(mcp.NewTool("publish_event",
		mcp.WithDescription("Publish an event onto the bus"),
		mcp.WithString("event_type", mcp.Required(), mcp.Description("Short event type, e.g. task_completed")),
		mcp.WithString("payload", mcp.Required(), mcp.Description("Opaque payload string")),
		mcp.WithString("session_id", mcp.Description("Publishing session id")),
		mcp.WithString("channel", mcp.Description("Routing channel; defaults to all")),
	), s.handlePublishEvent)

	s.mcp.AddTool(mcp.NewTool("get_events",
		mcp.WithDescription("Read events after a given id, oldest first"),
		mcp.WithNumber("since_id", mcp.Description("Only return events with id greater than this")),
		mcp.WithString("session_id", mcp.Description("Scope the read to channels this session listens on")),
		mcp.WithArray("channels", mcp.Description("Explicit channel filter"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithNumber("limit", mcp.Description("Maximum number of events to return")),
	), s.handleGetEvents)

	s.mcp.AddTool(mcp.NewTool("notify",
		mcp.WithDescription("Send a desktop notification on the bus host"),
		mcp.WithString("title", mcp.Required()),
		mcp.WithString("message", mcp.Required()),
		mcp.WithBoolean("sound", mcp.Description("Play the default notification sound")),
	), s.handleNotify)

	s.mcp.AddTool(mcp.NewTool("register_webhook",
		mcp.WithDescription("Register an outbound webhook for matching events"),
		mcp.WithString("url", mcp.Required(), mcp.Description("Absolute HTTP(S) URL to POST events to")),
		mcp.WithString("channel", mcp.Description("Channel filter; a trailing colon makes it a prefix filter")),
		mcp.WithArray("event_types", mcp.Description("Only deliver these event types"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("secret", mcp.Description("HMAC-SHA256 signing key")),
	), s.handleRegisterWebhook)

	s.mcp.AddTool(mcp.NewTool("list_webhooks",
		mcp.WithDescription("List registered webhooks; secrets are redacted"),
		mcp.WithBoolean("active_only"),
	), s.handleListWebhooks)

	s.mcp.AddTool(mcp.NewTool("unregister_webhook",
		mcp.WithDescription("Delete a webhook"),
		mcp.WithNumber("webhook_id", mcp.Required()),
	), s.handleUnregisterWebhook)

	s.mcp.AddTool(mcp.NewTool("set_webhook_active",
		mcp.WithDescription("Enable or disable a webhook"),
		mcp.WithNumber("webhook_id", mcp.Required()),
		mcp.WithBoolean("active", mcp.Required()),
	), s.handleSetWebhookActive)
}
