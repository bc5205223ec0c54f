package vote

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"VoteService/internal/api/handlers"
	"VoteService/internal/api/middleware"
	"VoteService/internal/bus"
	"VoteService/internal/core/votes"
)

// handleBusError converts router failures to XRPC error responses
func handleBusError(w http.ResponseWriter, address string, err error) {
	switch bus.CodeOf(err) {
	case bus.CodeUnauthenticated:
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
	case bus.CodeInvalidRequest:
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", replyMessage(err))
	case bus.CodeStorage:
		slog.Warn("vote storage unavailable", "address", address, "error", err)
		handlers.WriteError(w, http.StatusServiceUnavailable, "StorageUnavailable", "Vote storage is unavailable, try again later")
	case bus.CodeTimeout:
		handlers.WriteError(w, http.StatusGatewayTimeout, "Timeout", "The vote service did not reply in time")
	default:
		// Internal server error - log the actual error for debugging
		slog.Error("vote handler error", "address", address, "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
	}
}

func replyMessage(err error) string {
	var re *bus.ReplyError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return err.Error()
}

// identity builds the router metadata for the caller.
// Anonymous callers get no user-id entry; the vote service decides whether that is allowed.
func identity(r *http.Request) bus.Metadata {
	md := bus.Metadata{}
	if userID := middleware.GetUserID(r); userID != "" {
		md[votes.UserIDKey] = userID
	}
	return md
}

// VoteInput is the JSON body for vote.cast and vote.change
type VoteInput struct {
	ItemKind  string `json:"itemKind"`
	Direction string `json:"direction"`
	ItemID    int64  `json:"itemId"`
}

// SelectorInput is the JSON body for vote.remove
type SelectorInput struct {
	ItemKind string `json:"itemKind"`
	ItemID   int64  `json:"itemId"`
}

func decodeVoteInput(w http.ResponseWriter, r *http.Request) (votes.VoteInput, bool) {
	var req VoteInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return votes.VoteInput{}, false
	}
	if req.ItemKind == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "itemKind is required")
		return votes.VoteInput{}, false
	}
	if req.Direction == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "direction is required")
		return votes.VoteInput{}, false
	}
	return votes.VoteInput{
		ItemID:    req.ItemID,
		ItemKind:  votes.ItemKind(req.ItemKind),
		Direction: votes.Direction(req.Direction),
	}, true
}

func decodeSelectorBody(w http.ResponseWriter, r *http.Request) (votes.Selector, bool) {
	var req SelectorInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return votes.Selector{}, false
	}
	if req.ItemKind == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "itemKind is required")
		return votes.Selector{}, false
	}
	return votes.Selector{ItemID: req.ItemID, ItemKind: votes.ItemKind(req.ItemKind)}, true
}

// selectorFromQuery reads ?itemId=&itemKind= for the query endpoints
func selectorFromQuery(w http.ResponseWriter, r *http.Request) (votes.Selector, bool) {
	q := r.URL.Query()

	rawID := q.Get("itemId")
	if rawID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "itemId is required")
		return votes.Selector{}, false
	}
	itemID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "itemId must be an integer")
		return votes.Selector{}, false
	}

	kind := q.Get("itemKind")
	if kind == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "itemKind is required")
		return votes.Selector{}, false
	}

	return votes.Selector{ItemID: itemID, ItemKind: votes.ItemKind(kind)}, true
}
