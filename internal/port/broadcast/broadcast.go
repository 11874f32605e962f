// Package broadcast defines the port for pushing real-time events to
// connected dashboard clients.
package broadcast

import "context"

// Event types published over the broadcast port. Dashboard clients switch on
// these strings.
const (
	EventValidationStarted   = "validation.started"
	EventValidationAttempt   = "validation.attempt"
	EventValidationCompleted = "validation.completed"
	EventPromiseUpdated      = "promise.updated"
)

// Broadcaster fans an event out to every connected client.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
