// Package config loads event bus configuration from an optional YAML file
// and environment variables. Environment variables take precedence over the
// file, and both fall back to the documented defaults. Timeouts and intervals
// are expressed in seconds in both sources.
package config
