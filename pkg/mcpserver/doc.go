// Package mcpserver exposes the event bus as an MCP tool server over stdio.
// Each tool maps onto a registry, event log, or store operation and returns
// a typed JSON result; webhook secrets never appear in listings.
package mcpserver
