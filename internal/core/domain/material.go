package domain

import "fmt"

// Material selects one of the independent material catalogs.
type Material string

const (
	MaterialProfiles Material = "profiles"
	MaterialSteel    Material = "steel"
	MaterialHardware Material = "hardware"
)

// Materials lists every catalog in the order they are reconciled.
var Materials = []Material{MaterialProfiles, MaterialSteel, MaterialHardware}

func ParseMaterial(s string) (Material, error) {
	switch Material(s) {
	case MaterialProfiles, MaterialSteel, MaterialHardware:
		return Material(s), nil
	}
	return "", fmt.Errorf("unknown material %q", s)
}

type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)
