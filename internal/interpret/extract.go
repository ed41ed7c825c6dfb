package interpret

import (
	"github.com/tidwall/gjson"
)

// ExtractJSON returns the last balanced top-level JSON object in text that
// parses. Braces inside JSON strings are ignored.
func ExtractJSON(text string) (map[string]any, bool) {
	var last string
	depth, start := 0, -1
	inString, escaped := false, false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				if candidate := text[start : i+1]; gjson.Valid(candidate) {
					last = candidate
				}
			}
		}
	}

	if last == "" {
		return nil, false
	}
	obj, ok := gjson.Parse(last).Value().(map[string]any)
	return obj, ok
}
