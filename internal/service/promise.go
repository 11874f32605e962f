package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/VoteVerify/voteguard/internal/domain/promise"
	"github.com/VoteVerify/voteguard/internal/port/broadcast"
	"github.com/VoteVerify/voteguard/internal/port/database"
	"github.com/VoteVerify/voteguard/internal/port/messagequeue"
)

// PromiseService owns the promise dataset: CRUD plus the audit log of
// validation runs recorded against each promise.
type PromiseService struct {
	store database.Store
	queue messagequeue.Queue    // optional
	hub   broadcast.Broadcaster // optional
}

// NewPromiseService creates a promise service. queue and hub may be nil.
func NewPromiseService(store database.Store, queue messagequeue.Queue, hub broadcast.Broadcaster) *PromiseService {
	return &PromiseService{store: store, queue: queue, hub: hub}
}

// Create registers a new promise.
func (s *PromiseService) Create(ctx context.Context, req *promise.CreateRequest) (*promise.Promise, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &promise.Promise{
		ID:         uuid.NewString(),
		Politician: req.Politician,
		Party:      req.Party,
		Text:       req.Text,
		Category:   req.Category,
		Industry:   req.Industry,
		Status:     req.Status,
		DateMade:   req.DateMade,
		Sources:    req.Sources,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.CreatePromise(ctx, p); err != nil {
		return nil, fmt.Errorf("create promise: %w", err)
	}

	slog.Info("promise created", "promise_id", p.ID, "politician", p.Politician)
	return p, nil
}

// Get retrieves one promise by ID.
func (s *PromiseService) Get(ctx context.Context, id string) (*promise.Promise, error) {
	return s.store.GetPromise(ctx, id)
}

// List returns all tracked promises.
func (s *PromiseService) List(ctx context.Context) ([]promise.Promise, error) {
	return s.store.ListPromises(ctx)
}

// Update applies the mutable fields of an update request and notifies
// subscribers of the change.
func (s *PromiseService) Update(ctx context.Context, id string, req *promise.UpdateRequest) (*promise.Promise, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.store.GetPromise(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Industry != nil {
		p.Industry = *req.Industry
	}
	if req.Sources != nil {
		p.Sources = *req.Sources
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdatePromise(ctx, p); err != nil {
		return nil, fmt.Errorf("update promise: %w", err)
	}

	s.publishUpdated(ctx, p)
	return p, nil
}

// Delete removes a promise and its audit trail.
func (s *PromiseService) Delete(ctx context.Context, id string) error {
	return s.store.DeletePromise(ctx, id)
}

// Runs lists the validation runs recorded against a promise, newest first.
func (s *PromiseService) Runs(ctx context.Context, promiseID string) ([]promise.ValidationRun, error) {
	if _, err := s.store.GetPromise(ctx, promiseID); err != nil {
		return nil, err
	}
	return s.store.ListValidationRuns(ctx, promiseID)
}

func (s *PromiseService) publishUpdated(ctx context.Context, p *promise.Promise) {
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventPromiseUpdated, p)
	}
	if s.queue == nil {
		return
	}

	data, err := json.Marshal(messagequeue.PromiseUpdatedPayload{
		PromiseID: p.ID,
		Status:    string(p.Status),
	})
	if err != nil {
		slog.Error("marshal promise update", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectPromiseUpdated, data); err != nil {
		slog.Error("publish promise update", "promise_id", p.ID, "error", err)
	}
}
