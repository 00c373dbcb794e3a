package service

import (
	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/core/resolver"
)

// Material is the per-catalog capability the engine needs: which stock
// records a requirement line may draw from, in order of preference.
type Material interface {
	Kind() domain.Material
	Scopes(order domain.Order, line domain.RequirementLine) []domain.ScopeKey
	IssueReason(order domain.Order) string
	ReturnReason(order domain.Order) string
}

type ProfileMaterial struct{}

func (ProfileMaterial) Kind() domain.Material { return domain.MaterialProfiles }

func (ProfileMaterial) Scopes(_ domain.Order, line domain.RequirementLine) []domain.ScopeKey {
	return []domain.ScopeKey{resolver.ProfileScope(line)}
}

func (ProfileMaterial) IssueReason(order domain.Order) string {
	return "profile goods issue, order " + order.Number
}

func (ProfileMaterial) ReturnReason(order domain.Order) string {
	return "profile goods issue reversed, order " + order.Number
}

type SteelMaterial struct{}

func (SteelMaterial) Kind() domain.Material { return domain.MaterialSteel }

func (SteelMaterial) Scopes(_ domain.Order, line domain.RequirementLine) []domain.ScopeKey {
	return []domain.ScopeKey{resolver.SteelScope(line)}
}

func (SteelMaterial) IssueReason(order domain.Order) string {
	return "steel goods issue, order " + order.Number
}

func (SteelMaterial) ReturnReason(order domain.Order) string {
	return "steel goods issue reversed, order " + order.Number
}

// HardwareMaterial routes fittings to the alu or pvc warehouse by the order's
// production system and prefers the production sub-location.
type HardwareMaterial struct{}

func (HardwareMaterial) Kind() domain.Material { return domain.MaterialHardware }

func (HardwareMaterial) Scopes(order domain.Order, line domain.RequirementLine) []domain.ScopeKey {
	return resolver.HardwareScopes(order, line)
}

func (HardwareMaterial) IssueReason(order domain.Order) string {
	return "hardware goods issue (" + resolver.WarehouseType(order.System) + "), order " + order.Number
}

func (HardwareMaterial) ReturnReason(order domain.Order) string {
	return "hardware goods issue reversed, order " + order.Number
}

func DefaultMaterials() []Material {
	return []Material{ProfileMaterial{}, SteelMaterial{}, HardwareMaterial{}}
}
