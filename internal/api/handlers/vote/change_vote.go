package vote

import (
	"net/http"

	"VoteService/internal/api/handlers"
	"VoteService/internal/bus"
	"VoteService/internal/core/votes"
)

// ChangeVoteHandler flips the direction of an existing vote
type ChangeVoteHandler struct {
	bus *bus.Bus
}

// NewChangeVoteHandler creates a new change vote handler
func NewChangeVoteHandler(b *bus.Bus) *ChangeVoteHandler {
	return &ChangeVoteHandler{bus: b}
}

// HandleChangeVote changes an existing vote only
// POST /xrpc/vote.change
//
// Response: { "vote": Vote | null }; null means the caller had no vote on the item
func (h *ChangeVoteHandler) HandleChangeVote(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeVoteInput(w, r)
	if !ok {
		return
	}

	vote, err := bus.RequestAs[*votes.Vote](r.Context(), h.bus, votes.AddressUpdateVote, input, identity(r))
	if err != nil {
		handleBusError(w, votes.AddressUpdateVote, err)
		return
	}

	handlers.WriteJSON(w, map[string]interface{}{"vote": vote})
}
