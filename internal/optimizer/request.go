package optimizer

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// ToolName is the budget-proposal tool handled by the Optimizer.
const ToolName = "propose_options_for_budget"

// rawSurface accepts either named levels or a path list.
type rawSurface struct {
	Position     string   `mapstructure:"position"`
	Category     string   `mapstructure:"category"`
	MaterialType string   `mapstructure:"material_type"`
	Subtype      string   `mapstructure:"subtype"`
	Variant      string   `mapstructure:"variant"`
	Path         []string `mapstructure:"path"`
	Area         float64  `mapstructure:"area"`
}

func (r rawSurface) surface() models.Surface {
	s := models.Surface{
		Position:     r.Position,
		Category:     r.Category,
		MaterialType: r.MaterialType,
		Subtype:      r.Subtype,
		Variant:      r.Variant,
		Area:         r.Area,
	}
	if len(r.Path) > 0 && s.Category == "" {
		levels := []*string{&s.Category, &s.MaterialType, &s.Subtype, &s.Variant}
		for i, part := range r.Path {
			if i >= len(levels) {
				break
			}
			*levels[i] = part
		}
	}
	return s
}

type rawRequest struct {
	Budget   decimal.Decimal `mapstructure:"budget"`
	Surfaces any             `mapstructure:"surfaces"`
	RoomSize string          `mapstructure:"room_size"`
}

// ParseRequest builds a Request from tool arguments. Surfaces may be a list,
// a map keyed by position, or derived from room_size.
func ParseRequest(args map[string]any, room RoomCategories) (Request, error) {
	var raw rawRequest
	if err := decode(args, &raw); err != nil {
		return Request{}, fmt.Errorf("decode %s arguments: %w", ToolName, err)
	}

	req := Request{Budget: raw.Budget}

	switch v := raw.Surfaces.(type) {
	case nil:
	case []any:
		var list []rawSurface
		if err := decode(v, &list); err != nil {
			return Request{}, fmt.Errorf("decode surfaces: %w", err)
		}
		for _, r := range list {
			req.Surfaces = append(req.Surfaces, r.surface())
		}
	case map[string]any:
		positions := make([]string, 0, len(v))
		for k := range v {
			positions = append(positions, k)
		}
		sort.Strings(positions)
		for _, pos := range positions {
			var r rawSurface
			if err := decode(v[pos], &r); err != nil {
				return Request{}, fmt.Errorf("decode surface %q: %w", pos, err)
			}
			if r.Position == "" {
				r.Position = pos
			}
			req.Surfaces = append(req.Surfaces, r.surface())
		}
	default:
		return Request{}, fmt.Errorf("decode surfaces: unsupported type %T", raw.Surfaces)
	}

	if len(req.Surfaces) == 0 && raw.RoomSize != "" {
		surfaces, err := RoomSurfaces(raw.RoomSize, room)
		if err != nil {
			return Request{}, err
		}
		req.Surfaces = surfaces
	}

	return req, nil
}

func decode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			decimalHook,
			areaHook,
		),
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHook converts numbers and numeric strings into decimal.Decimal.
func decimalHook(from, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return ParseAmount(v)
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	default:
		return data, nil
	}
}

// areaHook strips a trailing unit such as "m2" or "m²" from string areas.
func areaHook(from, to reflect.Type, data any) (any, error) {
	s, ok := data.(string)
	if !ok || to.Kind() != reflect.Float64 {
		return data, nil
	}
	s = strings.TrimSpace(strings.ToLower(s))
	for _, unit := range []string{"m²", "m2", "sqm"} {
		s = strings.TrimSuffix(s, unit)
	}
	return strings.TrimSpace(s), nil
}

// amountUnits are the multiplier words accepted by ParseAmount.
var amountUnits = []struct {
	words      []string
	multiplier int64
}{
	{[]string{"tỷ", "ty", "billion", "b"}, 1_000_000_000},
	{[]string{"triệu", "trieu", "tr", "million", "m"}, 1_000_000},
	{[]string{"nghìn", "ngàn", "nghin", "ngan", "k", "thousand"}, 1_000},
}

// ParseAmount parses a money amount such as "20,000,000", "300 triệu",
// "1.5 tỷ" or "50k".
func ParseAmount(s string) (decimal.Decimal, error) {
	text := strings.ToLower(strings.TrimSpace(s))
	text = strings.TrimSuffix(text, "vnd")
	text = strings.TrimSuffix(text, "đ")
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty amount", ErrInvalidBudget)
	}

	multiplier := int64(1)
	for _, u := range amountUnits {
		matched := false
		for _, w := range u.words {
			if strings.HasSuffix(text, w) {
				text = strings.TrimSpace(strings.TrimSuffix(text, w))
				multiplier = u.multiplier
				matched = true
				break
			}
		}
		if matched {
			break
		}
	}

	if multiplier == 1 {
		// Thousands separators: "20,000,000" or "20.000.000".
		text = strings.ReplaceAll(text, ",", "")
		if dot := strings.LastIndex(text, "."); strings.Count(text, ".") > 1 || (dot >= 0 && len(text)-dot-1 == 3) {
			text = strings.ReplaceAll(text, ".", "")
		}
	} else {
		text = strings.ReplaceAll(text, ",", ".")
	}
	text = strings.ReplaceAll(text, " ", "")

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidBudget, s)
	}
	return d.Mul(decimal.NewFromInt(multiplier)), nil
}
