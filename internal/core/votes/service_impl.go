package votes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// voteService implements the Service interface on top of a Repository
type voteService struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new vote service instance
func NewService(repo Repository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &voteService{
		repo:   repo,
		logger: logger,
	}
}

// Vote casts a new vote or changes an existing one.
// State transitions:
//   - No vote -> Voted(direction)
//   - Voted(a) -> Voted(b), created_at kept
//
// The repository upsert makes the decision atomically, so two racing requests
// for the same tuple can never both insert.
func (s *voteService) Vote(ctx context.Context, userID string, input VoteInput) (*Vote, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	vote, err := s.repo.CastOrChangeVote(ctx, userID, input.Selector(), input.Direction)
	if err != nil {
		s.logger.Error("failed to cast vote",
			"error", err,
			"user", userID,
			"item", input.ItemID,
			"kind", input.ItemKind,
			"direction", input.Direction)
		return nil, fmt.Errorf("vote: %w", err)
	}

	s.logger.Info("vote cast",
		"user", userID,
		"item", input.ItemID,
		"kind", input.ItemKind,
		"direction", vote.Direction)

	return vote, nil
}

// ChangeVote only flips the direction of a vote that already exists
func (s *voteService) ChangeVote(ctx context.Context, userID string, input VoteInput) (*Vote, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	vote, err := s.repo.UpdateVote(ctx, userID, input.Selector(), input.Direction)
	if errors.Is(err, ErrVoteNotFound) {
		s.logger.Debug("no vote to change",
			"user", userID,
			"item", input.ItemID,
			"kind", input.ItemKind)
		return nil, nil
	}
	if err != nil {
		s.logger.Error("failed to change vote",
			"error", err,
			"user", userID,
			"item", input.ItemID,
			"kind", input.ItemKind)
		return nil, fmt.Errorf("update vote: %w", err)
	}

	return vote, nil
}

// Unvote returns the tuple to the no-vote state
func (s *voteService) Unvote(ctx context.Context, userID string, sel Selector) (bool, error) {
	if userID == "" {
		return false, ErrUnauthenticated
	}
	if err := sel.Validate(); err != nil {
		return false, err
	}

	removed, err := s.repo.RemoveVote(ctx, sel, userID)
	if err != nil {
		s.logger.Error("failed to remove vote",
			"error", err,
			"user", userID,
			"item", sel.ItemID,
			"kind", sel.ItemKind)
		return false, fmt.Errorf("unvote: %w", err)
	}

	if removed {
		s.logger.Info("vote removed",
			"user", userID,
			"item", sel.ItemID,
			"kind", sel.ItemKind)
	}

	return removed, nil
}

func (s *voteService) HasVoted(ctx context.Context, userID string, sel Selector) (bool, error) {
	if userID == "" {
		return false, ErrUnauthenticated
	}
	if err := sel.Validate(); err != nil {
		return false, err
	}

	voted, err := s.repo.HasVoted(ctx, sel, userID)
	if err != nil {
		return false, fmt.Errorf("has voted: %w", err)
	}
	return voted, nil
}

func (s *voteService) CurrentVote(ctx context.Context, userID string, sel Selector) (*Vote, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	vote, err := s.repo.GetVote(ctx, sel, userID)
	if errors.Is(err, ErrVoteNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vote: %w", err)
	}
	return vote, nil
}

func (s *voteService) Score(ctx context.Context, sel Selector) (Score, error) {
	if err := sel.Validate(); err != nil {
		return Score{}, err
	}

	score, err := s.repo.Score(ctx, sel)
	if err != nil {
		return Score{}, fmt.Errorf("vote score: %w", err)
	}
	return score, nil
}
