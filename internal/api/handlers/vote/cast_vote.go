package vote

import (
	"net/http"

	"VoteService/internal/api/handlers"
	"VoteService/internal/bus"
	"VoteService/internal/core/votes"
)

// CastVoteHandler handles vote creation and direction changes
type CastVoteHandler struct {
	bus *bus.Bus
}

// NewCastVoteHandler creates a new cast vote handler
func NewCastVoteHandler(b *bus.Bus) *CastVoteHandler {
	return &CastVoteHandler{bus: b}
}

// HandleCastVote creates a vote or overwrites the direction of an existing one
// POST /xrpc/vote.cast
//
// Request body: { "itemId": 42, "itemKind": "comment" | "wish", "direction": "up" | "down" }
func (h *CastVoteHandler) HandleCastVote(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeVoteInput(w, r)
	if !ok {
		return
	}

	vote, err := bus.RequestAs[*votes.Vote](r.Context(), h.bus, votes.AddressVote, input, identity(r))
	if err != nil {
		handleBusError(w, votes.AddressVote, err)
		return
	}

	handlers.WriteJSON(w, vote)
}
