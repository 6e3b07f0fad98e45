// Package metrics defines the prometheus collectors for the event bus:
// session registrations and expirations, published events, webhook delivery
// outcomes and latency, and sweep cycles. Serve exposes them on an optional
// /metrics listener.
package metrics
