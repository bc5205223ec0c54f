package votes

import (
	"time"
)

// Direction is the polarity of a vote
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether d is "up" or "down"
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// ItemKind identifies the type of thing being voted on
type ItemKind string

const (
	ItemKindComment ItemKind = "comment"
	ItemKindWish    ItemKind = "wish"
)

// Valid reports whether k is a known item kind
func (k ItemKind) Valid() bool {
	return k == ItemKindComment || k == ItemKindWish
}

// Vote represents a single user's ballot on an item.
// At most one Vote exists per (UserID, ItemID, ItemKind); the database enforces it
// with the unique_user_item constraint.
type Vote struct {
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UserID    string    `json:"userId" db:"user_id"`
	ItemKind  ItemKind  `json:"itemKind" db:"item_kind"`
	Direction Direction `json:"direction" db:"direction"`
	ItemID    int64     `json:"itemId" db:"item_id"`
	ID        int64     `json:"id" db:"id"`
}

// Selector identifies a voting target independent of any user
type Selector struct {
	ItemKind ItemKind `json:"itemKind"`
	ItemID   int64    `json:"itemId"`
}

// Validate checks the selector addresses a known item kind
func (s Selector) Validate() error {
	if !s.ItemKind.Valid() {
		return ErrInvalidItemKind
	}
	return nil
}

// VoteInput is the payload for casting or changing a vote.
// The voter is never part of the payload; it travels as request metadata.
type VoteInput struct {
	ItemKind  ItemKind  `json:"itemKind"`
	Direction Direction `json:"direction"`
	ItemID    int64     `json:"itemId"`
}

// Selector returns the voting target of the input
func (in VoteInput) Selector() Selector {
	return Selector{ItemID: in.ItemID, ItemKind: in.ItemKind}
}

// Validate checks item kind and direction
func (in VoteInput) Validate() error {
	if !in.ItemKind.Valid() {
		return ErrInvalidItemKind
	}
	if !in.Direction.Valid() {
		return ErrInvalidDirection
	}
	return nil
}

// Score is the live tally for a selector. It is computed on every query and never stored.
type Score struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
	Net  int64 `json:"net"`
}

// NewScore builds a Score from raw counts
func NewScore(up, down int64) Score {
	return Score{Up: up, Down: down, Net: up - down}
}
