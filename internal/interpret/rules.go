// Package interpret maps subtask text to tool calls, either with an LLM or
// with ordered regexp rules for offline use.
package interpret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ShayCichocki/quoteflow/internal/executor"
	"github.com/ShayCichocki/quoteflow/internal/optimizer"
	"github.com/ShayCichocki/quoteflow/internal/tools"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

var (
	// ErrNoMatch is returned when no rule or model output names a tool.
	ErrNoMatch = errors.New("no tool matches subtask")
	// ErrMissingInfo is returned when a tool matched but required details
	// are absent from the subtask.
	ErrMissingInfo = errors.New("subtask is missing required information")
)

// ArgsFunc builds tool arguments from a subtask and its rule match.
type ArgsFunc func(text string, match []string) (map[string]any, error)

// Rule maps subtasks matching Pattern to Tool.
type Rule struct {
	Pattern *regexp.Regexp
	Tool    string
	Args    ArgsFunc
}

// Rules interprets subtasks with the first matching rule.
type Rules struct {
	rules []Rule
}

// NewRules creates a Rules interpreter. Rules are tried in order.
func NewRules(rules ...Rule) *Rules {
	return &Rules{rules: rules}
}

// DefaultRules covers the built-in pricing tools in English and Vietnamese.
func DefaultRules() *Rules {
	return NewRules(
		Rule{
			Pattern: regexp.MustCompile(`(?i)(ngân sách|budget|đề xuất phương án|propose)`),
			Tool:    optimizer.ToolName,
			Args:    budgetArgs,
		},
		Rule{
			Pattern: regexp.MustCompile(`(?i)(khoảng giá|price ranges?)`),
			Tool:    tools.GetMaterialPriceRange,
			Args:    pathArgsFunc(1),
		},
		Rule{
			Pattern: regexp.MustCompile(`(?i)(?:tìm kiếm|search)(?:\s+(?:vật liệu|materials?))?(?:\s+for)?\s+(.+)`),
			Tool:    tools.SearchMaterials,
			Args: func(_ string, m []string) (map[string]any, error) {
				q := strings.Trim(strings.TrimSpace(m[1]), `"'.?!`)
				if q == "" {
					return nil, fmt.Errorf("%w: search query", ErrMissingInfo)
				}
				return map[string]any{"query": q}, nil
			},
		},
		Rule{
			Pattern: regexp.MustCompile(`(?i)(báo giá đã lưu|saved quotes?)`),
			Tool:    tools.GetSavedQuotes,
			Args: func(text string, _ []string) (map[string]any, error) {
				if m := projectPattern.FindStringSubmatch(text); m != nil {
					return map[string]any{"project_name": m[1]}, nil
				}
				return map[string]any{}, nil
			},
		},
		Rule{
			Pattern: regexp.MustCompile(`(?i)(phân loại|subtypes?)`),
			Tool:    tools.GetMaterialSubtypes,
			Args:    pathArgsFunc(2),
		},
		Rule{
			Pattern: regexp.MustCompile(`(?i)(loại vật liệu|material types?)`),
			Tool:    tools.GetMaterialTypes,
			Args:    pathArgsFunc(1),
		},
		Rule{
			Pattern: regexp.MustCompile(`(?i)(danh mục|categories)`),
			Tool:    tools.GetCategories,
		},
		Rule{
			Pattern: regexp.MustCompile(`(?i)(giá|price)`),
			Tool:    tools.GetInternalPrice,
			Args:    pathArgsFunc(1),
		},
	)
}

var projectPattern = regexp.MustCompile(`(?i)(?:project|dự án)\s+([a-zA-Z0-9_-]+)`)

// Interpret implements executor.Interpreter.
func (r *Rules) Interpret(_ context.Context, text string, _ map[string]any, _ []models.TaskResult) (executor.ToolCall, error) {
	for _, rule := range r.rules {
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		call := executor.ToolCall{Name: rule.Tool, Args: map[string]any{}}
		if rule.Args != nil {
			args, err := rule.Args(text, m)
			if err != nil {
				return executor.ToolCall{Name: rule.Tool}, err
			}
			call.Args = args
		}
		return call, nil
	}
	return executor.ToolCall{}, fmt.Errorf("%w: %q", ErrNoMatch, text)
}

func budgetArgs(text string, _ []string) (map[string]any, error) {
	budget, ok := ExtractBudget(text)
	if !ok {
		return nil, fmt.Errorf("%w: budget", ErrMissingInfo)
	}
	args := map[string]any{"budget": budget.String()}

	if surfaces := ParseSurfaces(text); len(surfaces) > 0 {
		args["surfaces"] = surfacesArg(surfaces)
		return args, nil
	}
	if size, ok := ExtractRoomSize(text); ok {
		args["room_size"] = size
		return args, nil
	}
	return nil, fmt.Errorf("%w: surfaces or room size", ErrMissingInfo)
}

func pathArgsFunc(minDepth int) ArgsFunc {
	return func(text string, _ []string) (map[string]any, error) {
		path := ParsePath(text)
		if surfaces := ParseSurfaces(text); len(surfaces) > 0 {
			path = surfaces[0].Path()
		}
		if len(path) < minDepth {
			return nil, fmt.Errorf("%w: catalog path", ErrMissingInfo)
		}
		return pathArgs(path), nil
	}
}
