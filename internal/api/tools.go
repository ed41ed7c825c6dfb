package api

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/quoteflow/internal/tools"
)

// ToolDefinitions returns the tool schemas for Claude API calls.
func ToolDefinitions(ts []tools.Tool) []anthropic.ToolUnionParam {
	defs := make([]anthropic.ToolUnionParam, 0, len(ts))
	for _, t := range ts {
		props := make(map[string]any, len(t.Params))
		var required []string
		for _, p := range t.Params {
			typ := p.Type
			if typ == "" {
				typ = "string"
			}
			props[p.Name] = map[string]any{
				"type":        typ,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		defs = append(defs, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		})
	}
	return defs
}
