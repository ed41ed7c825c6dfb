package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PathSeparator joins catalog path segments for display.
const PathSeparator = " > "

// Surface is one physical area that needs a priced material assignment.
type Surface struct {
	// Position is the free-form label, e.g. "floor" or "north wall".
	Position string `json:"position" yaml:"position" mapstructure:"position"`
	// Category is the top-level catalog node.
	Category string `json:"category" yaml:"category" mapstructure:"category"`
	// MaterialType narrows the category.
	MaterialType string `json:"material_type,omitempty" yaml:"material_type" mapstructure:"material_type"`
	// Subtype narrows the material type.
	Subtype string `json:"subtype,omitempty" yaml:"subtype" mapstructure:"subtype"`
	// Variant pins the surface to a single catalog leaf.
	Variant string `json:"variant,omitempty" yaml:"variant" mapstructure:"variant"`
	// Area is the surface area in square meters.
	Area float64 `json:"area" yaml:"area" mapstructure:"area"`
}

// Path returns the catalog constraint for this surface. Levels stop at the
// first empty field.
func (s Surface) Path() []string {
	var path []string
	for _, part := range []string{s.Category, s.MaterialType, s.Subtype, s.Variant} {
		if part == "" {
			break
		}
		path = append(path, part)
	}
	return path
}

// HasGap reports whether a level is set below an empty one, e.g. a Subtype
// without a MaterialType. Path drops such levels.
func (s Surface) HasGap() bool {
	parts := []string{s.Category, s.MaterialType, s.Subtype, s.Variant}
	empty := false
	for _, part := range parts {
		if part == "" {
			empty = true
		} else if empty {
			return true
		}
	}
	return false
}

// CatalogVariant is a priced catalog leaf.
type CatalogVariant struct {
	// Path is the full category > material type > subtype > variant path.
	Path []string `json:"path"`
	// UnitMaterial is the material cost per square meter.
	UnitMaterial decimal.Decimal `json:"unit_material"`
	// UnitLabor is the labor cost per square meter.
	UnitLabor decimal.Decimal `json:"unit_labor"`
	// Complete is false when the leaf has no material price.
	Complete bool `json:"complete"`
}

// UnitTotal returns the combined material and labor cost per square meter.
func (v CatalogVariant) UnitTotal() decimal.Decimal {
	return v.UnitMaterial.Add(v.UnitLabor)
}

// PathString returns the path joined with PathSeparator.
func (v CatalogVariant) PathString() string {
	return strings.Join(v.Path, PathSeparator)
}

// HasPrefix returns true if prefix is a leading subsequence of the variant path.
func (v CatalogVariant) HasPrefix(prefix []string) bool {
	if len(prefix) > len(v.Path) {
		return false
	}
	for i, part := range prefix {
		if v.Path[i] != part {
			return false
		}
	}
	return true
}
