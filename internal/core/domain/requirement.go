package domain

type LineStatus string

const (
	LineStatusPending   LineStatus = "pending"
	LineStatusConfirmed LineStatus = "confirmed"
	LineStatusCompleted LineStatus = "completed"
)

// RequirementLine is one demanded quantity of one article for one order.
//
// ArticleID is the profile, steel or hardware article depending on Material.
// ColorID is only meaningful for profiles.
type RequirementLine struct {
	ID               int64
	OrderID          int64
	Material         Material
	ArticleID        int64
	ArticleRef       string // human article number, used in error reports
	ColorID          *int64
	QuantityDemanded int
	Status           LineStatus
}

// Outstanding reports whether the line still needs a forward issue.
// Confirmed lines are not yet completed.
func (l RequirementLine) Outstanding() bool {
	return l.Status != LineStatusCompleted
}
