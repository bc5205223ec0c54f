package vote

import (
	"net/http"

	"VoteService/internal/api/handlers"
	"VoteService/internal/bus"
	"VoteService/internal/core/votes"
)

// RemoveVoteHandler handles vote removal
type RemoveVoteHandler struct {
	bus *bus.Bus
}

// NewRemoveVoteHandler creates a new remove vote handler
func NewRemoveVoteHandler(b *bus.Bus) *RemoveVoteHandler {
	return &RemoveVoteHandler{bus: b}
}

// HandleRemoveVote removes the caller's vote on an item
// POST /xrpc/vote.remove
//
// Request body: { "itemId": 42, "itemKind": "comment" }
// Removing a vote that does not exist succeeds with removed=false.
func (h *RemoveVoteHandler) HandleRemoveVote(w http.ResponseWriter, r *http.Request) {
	sel, ok := decodeSelectorBody(w, r)
	if !ok {
		return
	}

	removed, err := bus.RequestAs[bool](r.Context(), h.bus, votes.AddressUnvote, sel, identity(r))
	if err != nil {
		handleBusError(w, votes.AddressUnvote, err)
		return
	}

	handlers.WriteJSON(w, map[string]interface{}{"removed": removed})
}
