package tools

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/quoteflow/internal/catalog"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// Names of the catalog tools.
const (
	GetCategories         = "get_categories"
	GetMaterialTypes      = "get_material_types"
	GetMaterialSubtypes   = "get_material_subtypes"
	GetInternalPrice      = "get_internal_price"
	SearchMaterials       = "search_materials"
	GetMaterialPriceRange = "get_material_price_ranges"
)

// TreeSource returns the current catalog tree. catalog.Watcher.Tree fits.
type TreeSource func() *catalog.Tree

// StaticTree returns a TreeSource for a fixed tree.
func StaticTree(t *catalog.Tree) TreeSource {
	return func() *catalog.Tree { return t }
}

// pathArgs names a catalog node level by level, or as a path list.
type pathArgs struct {
	Category     string   `mapstructure:"category"`
	MaterialType string   `mapstructure:"material_type"`
	Subtype      string   `mapstructure:"subtype"`
	Variant      string   `mapstructure:"variant"`
	Path         []string `mapstructure:"path"`
}

func (a pathArgs) path() []string {
	if len(a.Path) > 0 {
		return a.Path
	}
	s := models.Surface{Category: a.Category, MaterialType: a.MaterialType, Subtype: a.Subtype, Variant: a.Variant}
	return s.Path()
}

func decodePath(args map[string]any, minDepth int) ([]string, error) {
	var a pathArgs
	if err := Decode(args, &a); err != nil {
		return nil, err
	}
	p := a.path()
	if len(p) < minDepth {
		return nil, fmt.Errorf("%w: need at least %d path levels, got %d", ErrInvalidArgs, minDepth, len(p))
	}
	return p, nil
}

// RegisterCatalogTools adds the read-only pricing tools backed by src.
func RegisterCatalogTools(r *Registry, src TreeSource) error {
	tools := []Tool{
		{
			Name:        GetCategories,
			Description: "List the top-level material categories.",
			Handler: func(context.Context, map[string]any) (any, error) {
				return src().Categories(), nil
			},
		},
		{
			Name:        GetMaterialTypes,
			Description: "List the material types in a category.",
			Params: []Param{
				{Name: "category", Type: "string", Description: "Category name", Required: true},
			},
			Handler: childrenHandler(src, 1),
		},
		{
			Name:        GetMaterialSubtypes,
			Description: "List the subtypes of a material type.",
			Params: []Param{
				{Name: "category", Type: "string", Description: "Category name", Required: true},
				{Name: "material_type", Type: "string", Description: "Material type name", Required: true},
			},
			Handler: childrenHandler(src, 2),
		},
		{
			Name:        GetInternalPrice,
			Description: "Get unit material and labor prices for every variant under a catalog path.",
			Params: []Param{
				{Name: "category", Type: "string", Description: "Category name", Required: true},
				{Name: "material_type", Type: "string", Description: "Material type name"},
				{Name: "subtype", Type: "string", Description: "Subtype name"},
				{Name: "variant", Type: "string", Description: "Variant name"},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				p, err := decodePath(args, 1)
				if err != nil {
					return nil, err
				}
				return src().Variants(p)
			},
		},
		{
			Name:        SearchMaterials,
			Description: "Search variants and subtypes by name.",
			Params: []Param{
				{Name: "query", Type: "string", Description: "Text to look for", Required: true},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				var a struct {
					Query string `mapstructure:"query"`
				}
				if err := Decode(args, &a); err != nil {
					return nil, err
				}
				if a.Query == "" {
					return nil, fmt.Errorf("%w: query is required", ErrInvalidArgs)
				}
				found := src().Search(a.Query)
				if found == nil {
					found = []models.CatalogVariant{}
				}
				return found, nil
			},
		},
		{
			Name:        GetMaterialPriceRange,
			Description: "Get min and max unit prices under a catalog path.",
			Params: []Param{
				{Name: "category", Type: "string", Description: "Category name", Required: true},
				{Name: "material_type", Type: "string", Description: "Material type name"},
				{Name: "subtype", Type: "string", Description: "Subtype name"},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				p, err := decodePath(args, 1)
				if err != nil {
					return nil, err
				}
				return src().PriceRange(p)
			},
		},
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func childrenHandler(src TreeSource, depth int) HandlerFunc {
	return func(_ context.Context, args map[string]any) (any, error) {
		p, err := decodePath(args, depth)
		if err != nil {
			return nil, err
		}
		return src().Children(p[:depth])
	}
}
