package domain

import "github.com/google/uuid"

// LineError reports a requirement line that could not touch stock.
type LineError struct {
	LineID     int64  `json:"line_id"`
	ArticleRef string `json:"article_ref"`
	Scope      string `json:"scope,omitempty"`
	Error      string `json:"error"`
}

// Shortfall reports an issue that demanded more than was on hand.
type Shortfall struct {
	LineID     int64  `json:"line_id"`
	ArticleRef string `json:"article_ref"`
	Demanded   int    `json:"demanded"`
	Missing    int    `json:"missing"`
}

// Summary is the outcome of one material pass over one order.
type Summary struct {
	OrderID      int64       `json:"order_id"`
	OrderNumber  string      `json:"order_number"`
	Material     Material    `json:"material"`
	Direction    Direction   `json:"direction"`
	Processed    int         `json:"processed"`
	Skipped      int         `json:"skipped"`
	Errors       []LineError `json:"errors"`
	Shortfalls   []Shortfall `json:"shortfalls,omitempty"`
	BelowMinimum []string    `json:"below_minimum,omitempty"`
}

func NewSummary(orderID int64, material Material, direction Direction) Summary {
	return Summary{
		OrderID:   orderID,
		Material:  material,
		Direction: direction,
		Errors:    []LineError{},
	}
}

// OrderSummary aggregates the material passes of one order.
type OrderSummary struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Direction   Direction `json:"direction"`
	Materials   []Summary `json:"materials"`
}

func (s OrderSummary) Processed() int {
	n := 0
	for _, m := range s.Materials {
		n += m.Processed
	}
	return n
}

func (s OrderSummary) Skipped() int {
	n := 0
	for _, m := range s.Materials {
		n += m.Skipped
	}
	return n
}

func (s OrderSummary) ErrorCount() int {
	n := 0
	for _, m := range s.Materials {
		n += len(m.Errors)
	}
	return n
}

// StockChangedEvent is published after a pass that mutated stock. Delivery is
// best effort.
type StockChangedEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	OrderID      int64     `json:"order_id"`
	OrderNumber  string    `json:"order_number"`
	Material     Material  `json:"material"`
	Direction    Direction `json:"direction"`
	Processed    int       `json:"processed"`
	BelowMinimum []string  `json:"below_minimum,omitempty"`
}
