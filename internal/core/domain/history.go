package domain

import (
	"fmt"
	"time"
)

type EventKind string

const (
	EventIssue  EventKind = "issue"
	EventReturn EventKind = "return"
	EventManual EventKind = "manual"
)

// HistoryEntry is an append-only audit record of one stock mutation.
type HistoryEntry struct {
	ID                int64     `json:"id"`
	Scope             ScopeKey  `json:"scope"`
	RequirementLineID *int64    `json:"requirement_line_id,omitempty"`
	EventKind         EventKind `json:"event_kind"`
	PreviousQty       int       `json:"previous_qty"`
	ChangeQty         int       `json:"change_qty"`
	NewQty            int       `json:"new_qty"`
	Shortfall         int       `json:"shortfall,omitempty"`
	Reason            string    `json:"reason"`
	Reference         string    `json:"reference"`
	ActorID           *int64    `json:"actor_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// RemovedQty is the quantity an issue entry actually took out of stock.
// A floored issue removed less than it asked for.
func (h HistoryEntry) RemovedQty() int {
	return -h.ChangeQty - h.Shortfall
}

func OrderReference(orderID int64) string {
	return fmt.Sprintf("ORDER:%d", orderID)
}

func OrderReversalReference(orderID int64) string {
	return fmt.Sprintf("ORDER:%d:REVERSE", orderID)
}
