package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"VoteService/internal/core/votes"
)

const (
	defaultOperationTimeout = 5 * time.Second
	defaultBreakerThreshold = 3
	defaultBreakerOpenFor   = 10 * time.Second
)

type postgresVoteRepo struct {
	db        *sql.DB
	breaker   *circuitBreaker
	logger    *slog.Logger
	opTimeout time.Duration
}

// RepoOption configures the vote repository
type RepoOption func(*repoConfig)

type repoConfig struct {
	logger           *slog.Logger
	opTimeout        time.Duration
	breakerThreshold int
	breakerOpenFor   time.Duration
}

// WithOperationTimeout bounds every storage round trip
func WithOperationTimeout(d time.Duration) RepoOption {
	return func(c *repoConfig) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// WithCircuitBreaker sets how many consecutive connectivity failures open the
// circuit and how long it stays open
func WithCircuitBreaker(threshold int, openFor time.Duration) RepoOption {
	return func(c *repoConfig) {
		if threshold > 0 {
			c.breakerThreshold = threshold
		}
		if openFor > 0 {
			c.breakerOpenFor = openFor
		}
	}
}

// WithLogger sets the repository logger
func WithLogger(logger *slog.Logger) RepoOption {
	return func(c *repoConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewVoteRepository creates a new PostgreSQL vote repository.
// The *sql.DB pool is the only shared resource; size it with SetMaxOpenConns so
// callers queue for a connection when it is saturated.
func NewVoteRepository(db *sql.DB, opts ...RepoOption) votes.Repository {
	cfg := repoConfig{
		logger:           slog.Default(),
		opTimeout:        defaultOperationTimeout,
		breakerThreshold: defaultBreakerThreshold,
		breakerOpenFor:   defaultBreakerOpenFor,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &postgresVoteRepo{
		db:        db,
		logger:    cfg.logger,
		opTimeout: cfg.opTimeout,
		breaker:   newCircuitBreaker(cfg.breakerThreshold, cfg.breakerOpenFor, cfg.logger),
	}
}

const voteColumns = `id, user_id, item_id, item_kind, direction, created_at`

// CastOrChangeVote creates the row or overwrites its direction in one statement.
// created_at and id are left untouched on conflict.
func (r *postgresVoteRepo) CastOrChangeVote(ctx context.Context, userID string, sel votes.Selector, dir votes.Direction) (*votes.Vote, error) {
	query := `
		INSERT INTO votes (user_id, item_id, item_kind, direction, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, item_id, item_kind)
		DO UPDATE SET direction = EXCLUDED.direction
		RETURNING ` + voteColumns

	var vote *votes.Vote
	err := r.run(ctx, "cast vote", func(ctx context.Context) error {
		var scanErr error
		vote, scanErr = scanVote(r.db.QueryRowContext(ctx, query, userID, sel.ItemID, sel.ItemKind, dir))
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

// UpdateVote changes the direction of an existing row only
func (r *postgresVoteRepo) UpdateVote(ctx context.Context, userID string, sel votes.Selector, dir votes.Direction) (*votes.Vote, error) {
	query := `
		UPDATE votes
		SET direction = $4
		WHERE user_id = $1 AND item_id = $2 AND item_kind = $3
		RETURNING ` + voteColumns

	var vote *votes.Vote
	err := r.run(ctx, "update vote", func(ctx context.Context) error {
		var scanErr error
		vote, scanErr = scanVote(r.db.QueryRowContext(ctx, query, userID, sel.ItemID, sel.ItemKind, dir))
		if errors.Is(scanErr, sql.ErrNoRows) {
			return votes.ErrVoteNotFound
		}
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

// RemoveVote deletes the row for the tuple.
// Idempotent: a second call finds nothing and returns false.
func (r *postgresVoteRepo) RemoveVote(ctx context.Context, sel votes.Selector, userID string) (bool, error) {
	query := `
		DELETE FROM votes
		WHERE user_id = $1 AND item_id = $2 AND item_kind = $3
	`

	var removed bool
	err := r.run(ctx, "remove vote", func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, userID, sel.ItemID, sel.ItemKind)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		removed = rowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// HasVoted checks whether the tuple has a row
func (r *postgresVoteRepo) HasVoted(ctx context.Context, sel votes.Selector, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM votes
			WHERE user_id = $1 AND item_id = $2 AND item_kind = $3
		)
	`

	var exists bool
	err := r.run(ctx, "has voted", func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, query, userID, sel.ItemID, sel.ItemKind).Scan(&exists)
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// GetVote retrieves the user's vote on the item
func (r *postgresVoteRepo) GetVote(ctx context.Context, sel votes.Selector, userID string) (*votes.Vote, error) {
	query := `
		SELECT ` + voteColumns + `
		FROM votes
		WHERE user_id = $1 AND item_id = $2 AND item_kind = $3
	`

	var vote *votes.Vote
	err := r.run(ctx, "get vote", func(ctx context.Context) error {
		var scanErr error
		vote, scanErr = scanVote(r.db.QueryRowContext(ctx, query, userID, sel.ItemID, sel.ItemKind))
		if errors.Is(scanErr, sql.ErrNoRows) {
			return votes.ErrVoteNotFound
		}
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

// Score counts up and down rows for the selector in a single aggregate.
// COUNT over no rows is 0, so an unvoted item scores {0, 0, 0}.
func (r *postgresVoteRepo) Score(ctx context.Context, sel votes.Selector) (votes.Score, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE direction = 'up'),
			COUNT(*) FILTER (WHERE direction = 'down')
		FROM votes
		WHERE item_id = $1 AND item_kind = $2
	`

	var up, down int64
	err := r.run(ctx, "vote score", func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, query, sel.ItemID, sel.ItemKind).Scan(&up, &down)
	})
	if err != nil {
		return votes.Score{}, err
	}
	return votes.NewScore(up, down), nil
}

// run executes one storage round trip behind the circuit breaker and the
// per-operation timeout, and wraps failures in a *votes.StorageError.
// votes.ErrVoteNotFound passes through unwrapped.
func (r *postgresVoteRepo) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := r.breaker.canAttempt(); err != nil {
		return votes.NewStorageError(op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	err := fn(ctx)
	switch {
	case err == nil, errors.Is(err, votes.ErrVoteNotFound):
		r.breaker.recordSuccess()
		return err
	case errors.Is(err, context.Canceled):
		// caller went away; says nothing about storage health
		r.breaker.recordInconclusive()
		return votes.NewStorageError(op, err)
	}

	err = classify(err)
	switch {
	case votes.IsConnectivityError(err):
		r.breaker.recordFailure(err)
	case errors.Is(err, context.DeadlineExceeded):
		// Most often queued behind a saturated pool or a slow statement.
		// A dead host shows up as a dial error instead.
		r.breaker.recordInconclusive()
	default:
		r.breaker.recordSuccess()
	}

	r.logger.Debug("storage operation failed", "op", op, "error", err)
	return votes.NewStorageError(op, err)
}

// connError marks a driver failure as lost connectivity
type connError struct {
	err error
}

func (e *connError) Error() string      { return e.err.Error() }
func (e *connError) Unwrap() error      { return e.err }
func (e *connError) Connectivity() bool { return true }

// classify tags connection-class failures so the breaker can tell an outage
// from a rejected statement
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08": // connection_exception
			return &connError{err: err}
		case pqErr.Code == "57P01", pqErr.Code == "57P02", pqErr.Code == "57P03": // shutdown / cannot connect now
			return &connError{err: err}
		}
		return err
	}
	if errors.Is(err, sql.ErrConnDone) {
		return &connError{err: err}
	}
	return err
}

// scanVote maps one row to a Vote
func scanVote(row *sql.Row) (*votes.Vote, error) {
	var vote votes.Vote
	err := row.Scan(
		&vote.ID, &vote.UserID, &vote.ItemID, &vote.ItemKind,
		&vote.Direction, &vote.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &vote, nil
}
