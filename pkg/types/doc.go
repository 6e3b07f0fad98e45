// Package types defines the shared data model for the agent event bus:
// sessions, events, webhooks, and the typed results returned by the tool
// surface. Every entity is JSON-tagged with snake_case names; the same
// encoding is used for storage serialization, tool results, and the outbound
// webhook payload.
package types
