package vote

import (
	"net/http"

	"VoteService/internal/api/handlers"
	"VoteService/internal/bus"
	"VoteService/internal/core/votes"
)

// QueryHandler serves the read-only vote endpoints
type QueryHandler struct {
	bus *bus.Bus
}

// NewQueryHandler creates a new vote query handler
func NewQueryHandler(b *bus.Bus) *QueryHandler {
	return &QueryHandler{bus: b}
}

// HandleHasVoted reports whether the caller voted on an item
// GET /xrpc/vote.hasVoted?itemId=42&itemKind=comment
func (h *QueryHandler) HandleHasVoted(w http.ResponseWriter, r *http.Request) {
	sel, ok := selectorFromQuery(w, r)
	if !ok {
		return
	}

	voted, err := bus.RequestAs[bool](r.Context(), h.bus, votes.AddressHasVoted, sel, identity(r))
	if err != nil {
		handleBusError(w, votes.AddressHasVoted, err)
		return
	}

	handlers.WriteJSON(w, map[string]interface{}{"voted": voted})
}

// HandleGetVote returns the caller's current vote on an item
// GET /xrpc/vote.get?itemId=42&itemKind=comment
func (h *QueryHandler) HandleGetVote(w http.ResponseWriter, r *http.Request) {
	sel, ok := selectorFromQuery(w, r)
	if !ok {
		return
	}

	vote, err := bus.RequestAs[*votes.Vote](r.Context(), h.bus, votes.AddressGetVote, sel, identity(r))
	if err != nil {
		handleBusError(w, votes.AddressGetVote, err)
		return
	}

	handlers.WriteJSON(w, map[string]interface{}{"vote": vote})
}

// HandleScore returns the live tally for an item. Public.
// GET /xrpc/vote.score?itemId=42&itemKind=wish
func (h *QueryHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	sel, ok := selectorFromQuery(w, r)
	if !ok {
		return
	}

	score, err := bus.RequestAs[votes.Score](r.Context(), h.bus, votes.AddressVoteScore, sel, nil)
	if err != nil {
		handleBusError(w, votes.AddressVoteScore, err)
		return
	}

	handlers.WriteJSON(w, score)
}
