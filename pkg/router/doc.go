// Package router computes which webhooks should receive a published event,
// combining the channel filter (any / prefix / exact) with the optional
// event-type list. Inactive webhooks never match.
package router
