// Package log provides structured logging for the event bus built on zerolog.
//
// The package maintains a global logger configured once at startup via Init,
// with component-scoped child loggers created through WithComponent. Output
// goes to stderr because the MCP stdio transport owns stdout.
package log
