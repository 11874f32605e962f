// Package messagequeue defines the port for durable event publishing.
package messagequeue

import "context"

// Handler consumes one message delivered on a subscription. Returning an
// error naks the message so the broker redelivers it.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue publishes and subscribes to durable subjects.
type Queue interface {
	// Publish writes data to the subject, blocking until acknowledged.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe delivers messages matching subject to handler until the
	// returned cancel function is called.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error
}

// Subjects published by the VoteGuard services.
const (
	SubjectEvaluationCompleted = "evaluations.completed" // a reloop run finished with an accepted response
	SubjectEvaluationRejected  = "evaluations.rejected"  // a reloop run terminated on a reject decision
	SubjectPromiseUpdated      = "promises.updated"      // a promise record changed
)
