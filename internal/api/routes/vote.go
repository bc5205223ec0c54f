package routes

import (
	"VoteService/internal/api/handlers/vote"
	"VoteService/internal/api/middleware"
	"VoteService/internal/bus"

	"github.com/go-chi/chi/v5"
)

// RegisterVoteRoutes registers vote XRPC endpoints on the router.
// Every endpoint forwards to the request bus; none touches the vote service directly.
func RegisterVoteRoutes(r chi.Router, b *bus.Bus, authMiddleware *middleware.AuthMiddleware) {
	// Initialize handlers
	castHandler := vote.NewCastVoteHandler(b)
	changeHandler := vote.NewChangeVoteHandler(b)
	removeHandler := vote.NewRemoveVoteHandler(b)
	queryHandler := vote.NewQueryHandler(b)

	// Procedure endpoints (POST) - require authentication
	r.With(authMiddleware.RequireAuth).Post("/xrpc/vote.cast", castHandler.HandleCastVote)
	r.With(authMiddleware.RequireAuth).Post("/xrpc/vote.change", changeHandler.HandleChangeVote)
	r.With(authMiddleware.RequireAuth).Post("/xrpc/vote.remove", removeHandler.HandleRemoveVote)

	// Query endpoints (GET)
	r.With(authMiddleware.RequireAuth).Get("/xrpc/vote.hasVoted", queryHandler.HandleHasVoted)
	r.With(authMiddleware.RequireAuth).Get("/xrpc/vote.get", queryHandler.HandleGetVote)

	// Scores are public
	r.With(authMiddleware.OptionalAuth).Get("/xrpc/vote.score", queryHandler.HandleScore)
}
