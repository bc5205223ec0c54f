package votes

import (
	"context"
	"errors"
	"fmt"

	"VoteService/internal/bus"
)

// Bus addresses served by the vote service
const (
	AddressVote       = "vote"
	AddressUpdateVote = "update-vote"
	AddressUnvote     = "unvote"
	AddressHasVoted   = "has-voted"
	AddressGetVote    = "get-vote"
	AddressVoteScore  = "vote-score"
)

// UserIDKey is the metadata key carrying the caller identity
const UserIDKey = "user-id"

// RegisterHandlers binds every vote address on b to service.
// Fails if any address is already bound; addresses bound by this call are
// released again so a failed registration leaves b unchanged.
func RegisterHandlers(b *bus.Bus, service Service) error {
	handlers := []struct {
		handler bus.Handler
		address string
	}{
		{address: AddressVote, handler: voteHandler(service.Vote)},
		{address: AddressUpdateVote, handler: voteHandler(service.ChangeVote)},
		{address: AddressUnvote, handler: selectorHandler(service.Unvote)},
		{address: AddressHasVoted, handler: selectorHandler(service.HasVoted)},
		{address: AddressGetVote, handler: selectorHandler(service.CurrentVote)},
		{address: AddressVoteScore, handler: scoreHandler(service)},
	}

	for i, h := range handlers {
		if err := b.Register(h.address, h.handler); err != nil {
			for _, bound := range handlers[:i] {
				b.Unregister(bound.address)
			}
			return fmt.Errorf("failed to register vote handlers: %w", err)
		}
	}
	return nil
}

func voteHandler(fn func(context.Context, string, VoteInput) (*Vote, error)) bus.Handler {
	return func(ctx context.Context, msg *bus.Message) (any, error) {
		input, ok := msg.Body.(VoteInput)
		if !ok {
			return nil, badPayload(msg)
		}
		vote, err := fn(ctx, msg.Metadata.Get(UserIDKey), input)
		if err != nil {
			return nil, toReply(err)
		}
		return vote, nil
	}
}

func selectorHandler[T any](fn func(context.Context, string, Selector) (T, error)) bus.Handler {
	return func(ctx context.Context, msg *bus.Message) (any, error) {
		sel, ok := msg.Body.(Selector)
		if !ok {
			return nil, badPayload(msg)
		}
		res, err := fn(ctx, msg.Metadata.Get(UserIDKey), sel)
		if err != nil {
			return nil, toReply(err)
		}
		return res, nil
	}
}

func scoreHandler(service Service) bus.Handler {
	return func(ctx context.Context, msg *bus.Message) (any, error) {
		sel, ok := msg.Body.(Selector)
		if !ok {
			return nil, badPayload(msg)
		}
		score, err := service.Score(ctx, sel)
		if err != nil {
			return nil, toReply(err)
		}
		return score, nil
	}
}

func badPayload(msg *bus.Message) error {
	return bus.Fail(bus.CodeInvalidRequest,
		fmt.Sprintf("unexpected payload %T for %q", msg.Body, msg.Address), nil)
}

// toReply maps service errors onto bus failure codes, keeping the cause
func toReply(err error) error {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return bus.Fail(bus.CodeUnauthenticated, "authentication required", err)
	case errors.Is(err, ErrInvalidDirection), errors.Is(err, ErrInvalidItemKind):
		return bus.Fail(bus.CodeInvalidRequest, err.Error(), err)
	case IsStorageError(err):
		return bus.Fail(bus.CodeStorage, "storage unavailable", err)
	default:
		return bus.Fail(bus.CodeInternal, err.Error(), err)
	}
}
