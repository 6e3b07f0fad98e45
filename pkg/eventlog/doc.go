// Package eventlog implements the publish path and id-paginated reads of the
// event bus. Publish returns as soon as the event is durable; matching
// webhooks are notified asynchronously through the dispatcher.
package eventlog
