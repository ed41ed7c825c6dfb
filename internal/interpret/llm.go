package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/quoteflow/internal/api"
	"github.com/ShayCichocki/quoteflow/internal/executor"
	"github.com/ShayCichocki/quoteflow/internal/logging"
	"github.com/ShayCichocki/quoteflow/internal/optimizer"
	"github.com/ShayCichocki/quoteflow/internal/tools"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// ErrDeclined is returned when the model answers with an error object.
var ErrDeclined = errors.New("model declined subtask")

// Completer runs one completion. *api.Client implements it.
type Completer interface {
	Complete(ctx context.Context, req api.Request) (api.Reply, error)
}

// LLMOption configures an LLM interpreter.
type LLMOption func(*LLM)

// WithNativeTools offers tools through the API tool schema as well as in
// the prompt.
func WithNativeTools(enabled bool) LLMOption {
	return func(l *LLM) { l.native = enabled }
}

// WithLLMLogger sets the logger.
func WithLLMLogger(log logrus.FieldLogger) LLMOption {
	return func(l *LLM) { l.logger = log }
}

// LLM interprets subtasks by asking a model for a {"name", "args"} object.
type LLM struct {
	client Completer
	tools  []tools.Tool
	defs   []anthropic.ToolUnionParam
	native bool
	logger logrus.FieldLogger
}

// NewLLM creates an LLM interpreter offering ts.
func NewLLM(client Completer, ts []tools.Tool, opts ...LLMOption) *LLM {
	l := &LLM{
		client: client,
		tools:  ts,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.native {
		l.defs = api.ToolDefinitions(ts)
	}
	return l
}

const systemPrompt = `You convert one pricing subtask into a single tool call.
Reply with exactly one JSON object {"name": "<tool>", "args": {...}}.
If no tool fits, reply {}. If required details are missing, reply {"error": "<what is missing>"}.
Money amounts are plain numbers in VND ("300 triệu" is 300000000).
Surfaces written as "position (category - material type - subtype, 24m2)" become
{"position", "category", "material_type", "subtype", "area"} objects.`

// Interpret implements executor.Interpreter.
func (l *LLM) Interpret(ctx context.Context, text string, shared map[string]any, recent []models.TaskResult) (executor.ToolCall, error) {
	reply, err := l.client.Complete(ctx, api.Request{
		System: systemPrompt,
		Prompt: l.prompt(text, shared, recent),
		Tools:  l.defs,
	})
	if err != nil {
		return executor.ToolCall{}, err
	}

	var obj map[string]any
	if reply.ToolUse != nil {
		input, _ := gjson.ParseBytes(reply.ToolUse.Input).Value().(map[string]any)
		obj = map[string]any{"name": reply.ToolUse.Name, "args": input}
	} else {
		var ok bool
		obj, ok = ExtractJSON(reply.Text)
		if !ok {
			l.logger.WithField("reply", truncate(reply.Text)).Debug("no JSON object in model reply")
			return executor.ToolCall{}, fmt.Errorf("%w: no JSON object in reply", ErrNoMatch)
		}
	}

	return toolCall(text, obj)
}

func toolCall(text string, obj map[string]any) (executor.ToolCall, error) {
	if msg, ok := obj["error"]; ok {
		return executor.ToolCall{}, fmt.Errorf("%w: %v", ErrDeclined, msg)
	}
	name, _ := obj["name"].(string)
	if name == "" {
		return executor.ToolCall{}, fmt.Errorf("%w: reply names no tool", ErrNoMatch)
	}
	args, _ := obj["args"].(map[string]any)
	if args == nil {
		args, _ = obj["arguments"].(map[string]any)
	}
	if args == nil {
		args = map[string]any{}
	}

	// Fill budget proposals the model left incomplete from the text itself.
	if name == optimizer.ToolName {
		if _, ok := args["surfaces"]; !ok {
			if filled, err := budgetArgs(text, nil); err == nil {
				for k, v := range filled {
					if _, exists := args[k]; !exists {
						args[k] = v
					}
				}
			}
		}
	}

	return executor.ToolCall{Name: name, Args: args}, nil
}

func (l *LLM) prompt(text string, shared map[string]any, recent []models.TaskResult) string {
	var b strings.Builder

	b.WriteString("## Available tools\n")
	for _, t := range l.tools {
		fmt.Fprintf(&b, "- %s: %s", t.Name, t.Description)
		if len(t.Params) > 0 {
			var params []string
			for _, p := range t.Params {
				param := p.Name
				if p.Required {
					param += "*"
				}
				params = append(params, param)
			}
			fmt.Fprintf(&b, " (args: %s)", strings.Join(params, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "- %s: Propose the material combination that best fits a budget. (args: budget*, surfaces or room_size)\n", optimizer.ToolName)

	b.WriteString("\n## Context from earlier steps\n")
	if len(shared) == 0 {
		b.WriteString("none\n")
	} else {
		b.WriteString(toJSON(shared))
		b.WriteString("\n")
	}

	b.WriteString("\n## Previous results\n")
	if len(recent) == 0 {
		b.WriteString("none\n")
	} else {
		b.WriteString(toJSON(recent))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n## Subtask\n%s\n", text)
	return b.String()
}

func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func truncate(s string) string {
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}
