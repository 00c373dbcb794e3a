package domain

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusArchived   OrderStatus = "archived"
)

// Order is the read-only view of a production order. Its status is owned by
// the order lifecycle; reconciliation only reads it.
type Order struct {
	ID     int64
	Number string
	Status OrderStatus
	System *string // production system label, e.g. "Aluprof MB-86" or "PVC Gealan"
}

// IssueEligible reports whether stock may be issued for the order.
func (o Order) IssueEligible() bool {
	return o.Status == OrderStatusCompleted
}
