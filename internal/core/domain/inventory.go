package domain

import (
	"fmt"
	"time"
)

// DefaultColorID is used for profile requirements that carry no color.
const DefaultColorID int64 = 0

const (
	WarehouseAlu = "alu"
	WarehousePVC = "pvc"

	SubWarehouseProduction = "production"
)

// ScopeKey identifies one stock record inside a material catalog.
//
// Profiles use ArticleID+ColorID, steel uses ArticleID only and hardware uses
// ArticleID+WarehouseType+SubWarehouse (empty SubWarehouse is the unscoped default).
type ScopeKey struct {
	Material      Material `json:"material"`
	ArticleID     int64    `json:"article_id"`
	ColorID       int64    `json:"color_id,omitempty"`
	WarehouseType string   `json:"warehouse_type,omitempty"`
	SubWarehouse  string   `json:"sub_warehouse,omitempty"`
}

func (k ScopeKey) String() string {
	switch k.Material {
	case MaterialProfiles:
		return fmt.Sprintf("profiles/%d/color:%d", k.ArticleID, k.ColorID)
	case MaterialHardware:
		sub := k.SubWarehouse
		if sub == "" {
			sub = "main"
		}
		return fmt.Sprintf("hardware/%d/%s/%s", k.ArticleID, k.WarehouseType, sub)
	default:
		return fmt.Sprintf("%s/%d", k.Material, k.ArticleID)
	}
}

type StockRecord struct {
	ID              int64
	Scope           ScopeKey
	CurrentQuantity int
	Version         int // optimistic locking
	MinQuantity     *int
	MaxQuantity     *int
	UpdatedByID     *int64
	UpdatedAt       time.Time
}

// BelowMinimum reports whether qty falls under the record's threshold.
func (s StockRecord) BelowMinimum(qty int) bool {
	return s.MinQuantity != nil && qty < *s.MinQuantity
}

// Adjustment is the outcome of applying a signed change to a quantity.
type Adjustment struct {
	PreviousQty int
	ChangeQty   int
	NewQty      int
	Shortfall   int
}

// Adjust applies change to previous and floors the result at zero. The part
// of a negative change that could not be covered is returned as Shortfall.
func Adjust(previous, change int) Adjustment {
	adj := Adjustment{PreviousQty: previous, ChangeQty: change, NewQty: previous + change}
	if adj.NewQty < 0 {
		adj.Shortfall = -adj.NewQty
		adj.NewQty = 0
	}
	return adj
}
