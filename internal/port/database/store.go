// Package database defines the persistence port (interface).
package database

import (
	"context"

	"github.com/VoteVerify/voteguard/internal/domain/promise"
)

// Store is the port interface for the promise dataset and validation audit log.
type Store interface {
	// Promises
	CreatePromise(ctx context.Context, p *promise.Promise) error
	GetPromise(ctx context.Context, id string) (*promise.Promise, error)
	ListPromises(ctx context.Context) ([]promise.Promise, error)
	UpdatePromise(ctx context.Context, p *promise.Promise) error
	DeletePromise(ctx context.Context, id string) error

	// Validation audit log
	CreateValidationRun(ctx context.Context, run *promise.ValidationRun) error
	ListValidationRuns(ctx context.Context, promiseID string) ([]promise.ValidationRun, error)
}
