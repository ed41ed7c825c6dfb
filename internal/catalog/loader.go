package catalog

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// Price keys recognised on variant objects. The Vietnamese keys are the ones
// used by the original price list export.
var (
	MaterialKeys = []string{"material", "Vật tư"}
	LaborKeys    = []string{"labor", "Nhân công"}
)

// Load reads a catalog file. JSON and YAML are both accepted.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes nested catalog objects. Any object holding a material or
// labor key is a variant; every other object is an interior node.
func Parse(data []byte) (*Tree, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidCatalog)
	}

	type frame struct {
		path []string
		obj  map[string]any
	}

	var prices []LeafPrice
	stack := []frame{{obj: raw}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for name, val := range f.obj {
			path := append(append([]string(nil), f.path...), name)
			child, ok := asObject(val)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not an object", ErrInvalidCatalog, strings.Join(path, models.PathSeparator))
			}
			if !isVariant(child) {
				stack = append(stack, frame{path: path, obj: child})
				continue
			}
			lp, err := leafPrice(path, child)
			if err != nil {
				return nil, err
			}
			prices = append(prices, lp)
		}
	}
	return Build(prices)
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func isVariant(obj map[string]any) bool {
	for _, keys := range [][]string{MaterialKeys, LaborKeys} {
		for _, k := range keys {
			if _, ok := obj[k]; ok {
				return true
			}
		}
	}
	return false
}

func leafPrice(path []string, obj map[string]any) (LeafPrice, error) {
	lp := LeafPrice{Path: path}
	var err error
	if lp.Material, err = priceField(path, obj, MaterialKeys); err != nil {
		return LeafPrice{}, err
	}
	if lp.Labor, err = priceField(path, obj, LaborKeys); err != nil {
		return LeafPrice{}, err
	}
	return lp, nil
}

// priceField returns the first non-null price among keys, or nil.
func priceField(path []string, obj map[string]any, keys []string) (*decimal.Decimal, error) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		d, err := toDecimal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q field %q: %v", ErrInvalidCatalog, strings.Join(path, models.PathSeparator), k, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("%w: %q field %q is negative", ErrInvalidCatalog, strings.Join(path, models.PathSeparator), k)
		}
		return &d, nil
	}
	return nil, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case uint64:
		return decimal.NewFromString(strconv.FormatUint(n, 10))
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(n), ",", ""))
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported price type %T", v)
	}
}
