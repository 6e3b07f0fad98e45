// Package dispatch delivers published events to matching webhooks over HTTP.
//
// Deliveries are fanned out to a bounded worker pool so the publish path
// never waits on the network. Each delivery POSTs the event as JSON, signs
// the body with HMAC-SHA256 when the webhook has a secret, and retries
// transient failures with exponential backoff up to the configured attempt
// budget. Webhooks disabled mid-flight are re-checked before every attempt
// and abandoned.
package dispatch
