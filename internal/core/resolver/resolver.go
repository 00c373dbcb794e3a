// Package resolver maps requirement lines to the stock records they draw
// from. Everything here is pure so routing can be tested without storage.
package resolver

import (
	"strings"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

var aluminumMarkers = []string{"alu", "aluminum", "aluminium"}

// WarehouseType routes hardware consumption by the order's production system
// label. Labels mentioning aluminum in any case go to "alu", everything else,
// including a missing label, goes to "pvc".
func WarehouseType(system *string) string {
	if system == nil {
		return domain.WarehousePVC
	}
	label := strings.ToLower(*system)
	for _, marker := range aluminumMarkers {
		if strings.Contains(label, marker) {
			return domain.WarehouseAlu
		}
	}
	return domain.WarehousePVC
}

func ProfileScope(line domain.RequirementLine) domain.ScopeKey {
	color := domain.DefaultColorID
	if line.ColorID != nil {
		color = *line.ColorID
	}
	return domain.ScopeKey{
		Material:  domain.MaterialProfiles,
		ArticleID: line.ArticleID,
		ColorID:   color,
	}
}

func SteelScope(line domain.RequirementLine) domain.ScopeKey {
	return domain.ScopeKey{
		Material:  domain.MaterialSteel,
		ArticleID: line.ArticleID,
	}
}

// HardwareScopes returns the candidate records for a hardware line in order
// of preference: the production sub-location first, then the unscoped default.
func HardwareScopes(order domain.Order, line domain.RequirementLine) []domain.ScopeKey {
	wt := WarehouseType(order.System)
	return []domain.ScopeKey{
		{
			Material:      domain.MaterialHardware,
			ArticleID:     line.ArticleID,
			WarehouseType: wt,
			SubWarehouse:  domain.SubWarehouseProduction,
		},
		{
			Material:      domain.MaterialHardware,
			ArticleID:     line.ArticleID,
			WarehouseType: wt,
		},
	}
}
