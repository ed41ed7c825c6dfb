package interpret

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/quoteflow/internal/optimizer"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// surfacePattern matches "position (category - material type - subtype, 24m2)".
var surfacePattern = regexp.MustCompile(`([^,;:()]*?)\s*\(([^()]+)\)`)

// connectorPattern finds the words that separate a position label from the
// text before it.
var connectorPattern = regexp.MustCompile(`(?i)(?:^|\s)(?:cho|for|và|and|với|with)\s`)

var areaPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)

// ParseSurfaces extracts surfaces written as
// "position (category - material type - subtype, area)". Entries without
// exactly one comma inside the parentheses are skipped.
func ParseSurfaces(text string) []models.Surface {
	var out []models.Surface
	for _, m := range surfacePattern.FindAllStringSubmatch(text, -1) {
		parts := strings.Split(m[2], ",")
		if len(parts) != 2 {
			continue
		}
		s := models.Surface{Position: position(m[1]), Area: parseArea(parts[1])}

		levels := []*string{&s.Category, &s.MaterialType, &s.Subtype, &s.Variant}
		for i, part := range strings.Split(parts[0], " - ") {
			if i >= len(levels) {
				break
			}
			*levels[i] = strings.TrimSpace(part)
		}
		if s.Category == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func position(prefix string) string {
	if locs := connectorPattern.FindAllStringIndex(prefix, -1); len(locs) > 0 {
		prefix = prefix[locs[len(locs)-1][1]:]
	}
	return strings.TrimSpace(prefix)
}

func parseArea(s string) float64 {
	m := areaPattern.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return v
}

// budgetPattern finds an amount with a unit word, or a bare number of at
// least six digits.
var budgetPattern = regexp.MustCompile(`(?i)(\d[\d.,]*)\s*(tỷ|triệu|trieu|tr|nghìn|ngàn|k|billion|million|thousand|vnd|đ)(?:$|[^\p{L}])|(\d{1,3}(?:[.,]\d{3}){2,}|\d{6,})`)

var parenthesized = regexp.MustCompile(`\([^()]*\)`)

// ExtractBudget finds the first money amount in text outside parentheses.
func ExtractBudget(text string) (decimal.Decimal, bool) {
	text = parenthesized.ReplaceAllString(text, " ")
	for _, m := range budgetPattern.FindAllStringSubmatch(text, -1) {
		raw := m[3]
		if raw == "" {
			raw = m[1] + " " + m[2]
		}
		amount, err := optimizer.ParseAmount(raw)
		if err == nil && amount.IsPositive() {
			return amount, true
		}
	}
	return decimal.Decimal{}, false
}

var roomPattern = regexp.MustCompile(`\d+(?:\.\d+)?\s*[xX×]\s*\d+(?:\.\d+)?\s*[xX×]\s*\d+(?:\.\d+)?`)

// ExtractRoomSize returns an "LxWxH" room size found in text.
func ExtractRoomSize(text string) (string, bool) {
	m := roomPattern.FindString(text)
	return m, m != ""
}

// ParsePath reads a catalog path written as "A - B - C" after the last
// connector word ("for", "cho") or colon in text. It returns nil when text
// has none of these markers.
func ParsePath(text string) []string {
	marked := strings.Contains(text, " - ")
	if locs := connectorPattern.FindAllStringIndex(text, -1); len(locs) > 0 {
		text = text[locs[len(locs)-1][1]:]
		marked = true
	}
	if i := strings.LastIndex(text, ":"); i >= 0 {
		text = text[i+1:]
		marked = true
	}
	if !marked {
		return nil
	}
	var path []string
	for _, part := range strings.Split(text, " - ") {
		part = strings.Trim(strings.TrimSpace(part), ".?!")
		if part == "" {
			return nil
		}
		path = append(path, part)
	}
	return path
}

func surfacesArg(surfaces []models.Surface) []any {
	out := make([]any, len(surfaces))
	for i, s := range surfaces {
		m := map[string]any{"position": s.Position, "category": s.Category, "area": s.Area}
		if s.MaterialType != "" {
			m["material_type"] = s.MaterialType
		}
		if s.Subtype != "" {
			m["subtype"] = s.Subtype
		}
		if s.Variant != "" {
			m["variant"] = s.Variant
		}
		out[i] = m
	}
	return out
}

func pathArgs(path []string) map[string]any {
	args := map[string]any{}
	for i, key := range []string{"category", "material_type", "subtype", "variant"} {
		if i >= len(path) {
			break
		}
		args[key] = path[i]
	}
	return args
}
