package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VoteVerify/voteguard/internal/domain"
	"github.com/VoteVerify/voteguard/internal/domain/promise"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Promises ---

func (s *Store) CreatePromise(ctx context.Context, p *promise.Promise) error {
	sourcesJSON, err := json.Marshal(p.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO promises (id, politician, party, text, category, industry, status, date_made, sources, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Politician, p.Party, p.Text, p.Category, p.Industry, string(p.Status), p.DateMade, sourcesJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create promise: %w", err)
	}
	return nil
}

func (s *Store) GetPromise(ctx context.Context, id string) (*promise.Promise, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, politician, party, text, category, industry, status, date_made, sources, created_at, updated_at
		 FROM promises WHERE id = $1`, id)

	p, err := scanPromise(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get promise %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get promise %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) ListPromises(ctx context.Context) ([]promise.Promise, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, politician, party, text, category, industry, status, date_made, sources, created_at, updated_at
		 FROM promises ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list promises: %w", err)
	}
	defer rows.Close()

	var promises []promise.Promise
	for rows.Next() {
		p, err := scanPromise(rows)
		if err != nil {
			return nil, err
		}
		promises = append(promises, p)
	}
	return promises, rows.Err()
}

func (s *Store) UpdatePromise(ctx context.Context, p *promise.Promise) error {
	sourcesJSON, err := json.Marshal(p.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE promises SET politician = $2, party = $3, text = $4, category = $5, industry = $6,
		 status = $7, date_made = $8, sources = $9, updated_at = $10
		 WHERE id = $1`,
		p.ID, p.Politician, p.Party, p.Text, p.Category, p.Industry, string(p.Status), p.DateMade, sourcesJSON, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update promise %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update promise %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) DeletePromise(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM promises WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promise %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete promise %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Validation runs ---

func (s *Store) CreateValidationRun(ctx context.Context, run *promise.ValidationRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO validation_runs (id, promise_id, success, action, attempts, bias_score, hallucination_score,
		 satisfaction_score, best_attempt, warning, error, outcome, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		run.ID, run.PromiseID, run.Success, run.Action, run.Attempts, run.BiasScore, run.HallucinationScore,
		run.SatisfactionScore, run.BestAttempt, run.Warning, run.Error, run.Outcome, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create validation run: %w", err)
	}
	return nil
}

func (s *Store) ListValidationRuns(ctx context.Context, promiseID string) ([]promise.ValidationRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, promise_id, success, action, attempts, bias_score, hallucination_score,
		        satisfaction_score, best_attempt, warning, error, outcome, created_at
		 FROM validation_runs WHERE promise_id = $1 ORDER BY created_at DESC`, promiseID)
	if err != nil {
		return nil, fmt.Errorf("list validation runs: %w", err)
	}
	defer rows.Close()

	var runs []promise.ValidationRun
	for rows.Next() {
		var r promise.ValidationRun
		if err := rows.Scan(&r.ID, &r.PromiseID, &r.Success, &r.Action, &r.Attempts, &r.BiasScore,
			&r.HallucinationScore, &r.SatisfactionScore, &r.BestAttempt, &r.Warning, &r.Error,
			&r.Outcome, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan validation run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Scanners ---

type scannable interface {
	Scan(dest ...any) error
}

func scanPromise(row scannable) (promise.Promise, error) {
	var p promise.Promise
	var sourcesJSON []byte
	err := row.Scan(&p.ID, &p.Politician, &p.Party, &p.Text, &p.Category, &p.Industry, &p.Status,
		&p.DateMade, &sourcesJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if sourcesJSON != nil {
		if err := json.Unmarshal(sourcesJSON, &p.Sources); err != nil {
			return p, fmt.Errorf("unmarshal sources: %w", err)
		}
	}
	return p, nil
}
