package votes

import "context"

// Service defines the business logic interface for votes.
// Every identity-bound method rejects an empty userID with ErrUnauthenticated
// before touching storage.
type Service interface {
	// Vote casts a vote or changes the direction of an existing one.
	// It is a single upsert; there is no hasVoted pre-check.
	Vote(ctx context.Context, userID string, input VoteInput) (*Vote, error)

	// ChangeVote changes the direction of an existing vote only.
	// Returns a nil vote (and no error) when the caller has not voted on the item.
	ChangeVote(ctx context.Context, userID string, input VoteInput) (*Vote, error)

	// Unvote removes the caller's vote. Returns false if there was nothing to remove.
	Unvote(ctx context.Context, userID string, sel Selector) (bool, error)

	// HasVoted reports whether the caller has a vote on the item
	HasVoted(ctx context.Context, userID string, sel Selector) (bool, error)

	// CurrentVote returns the caller's vote on the item, or nil if there is none
	CurrentVote(ctx context.Context, userID string, sel Selector) (*Vote, error)

	// Score tallies the item's votes. Scores are public, no identity required.
	Score(ctx context.Context, sel Selector) (Score, error)
}

// Repository defines the data access interface for votes.
// Implementations own the votes table exclusively and wrap every driver
// failure in a *StorageError.
type Repository interface {
	// CastOrChangeVote inserts the (user, item) row or overwrites its direction
	// in one atomic statement keyed by the unique tuple
	CastOrChangeVote(ctx context.Context, userID string, sel Selector, dir Direction) (*Vote, error)

	// UpdateVote overwrites the direction of an existing row.
	// Returns ErrVoteNotFound if the row does not exist.
	UpdateVote(ctx context.Context, userID string, sel Selector, dir Direction) (*Vote, error)

	// RemoveVote physically deletes the row; reports whether a row was removed
	RemoveVote(ctx context.Context, sel Selector, userID string) (bool, error)

	// HasVoted is an existence check for the tuple
	HasVoted(ctx context.Context, sel Selector, userID string) (bool, error)

	// GetVote retrieves the user's vote on the item.
	// Returns ErrVoteNotFound if the row does not exist.
	GetVote(ctx context.Context, sel Selector, userID string) (*Vote, error)

	// Score aggregates up and down rows for the selector; absent rows count as zero
	Score(ctx context.Context, sel Selector) (Score, error)
}
