// Package anthropic adapts the decision-oracle contract to the Anthropic
// Messages API with native tool use.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/jewelryops/opsagent/oracle"
)

// Options configure the Anthropic oracle adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Oracle wraps the Anthropic Messages API behind the oracle.Oracle interface.
type Oracle struct {
	client *anthropic.Client
	opts   Options
}

var _ oracle.Oracle = (*Oracle)(nil)

// New creates an Anthropic oracle using the official client. An empty APIKey
// falls back to the ANTHROPIC_API_KEY environment variable.
func New(optFns ...func(o *Options)) *Oracle {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Oracle{client: &client, opts: opts}
}

// NewFromClient creates an Anthropic oracle from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Oracle {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   1024,
	}
}

// Decide implements oracle.Oracle. Tool-use blocks map to proposed calls;
// a text-only response terminates the turn as the reply.
func (o *Oracle) Decide(ctx context.Context, dc oracle.Context) (oracle.Decision, error) {
	params := anthropic.MessageNewParams{
		Model:       o.opts.Model,
		Messages:    buildMessages(dc),
		MaxTokens:   o.opts.MaxTokens,
		Temperature: anthropic.Float(o.opts.Temperature),
	}
	if system := buildSystem(dc); len(system) > 0 {
		params.System = system
	}
	if len(dc.Tools) > 0 {
		params.Tools = buildTools(dc)
	}

	resp, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return oracle.Decision{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var decision oracle.Decision
	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args, err := json.Marshal(toolBlock.Input)
			if err != nil {
				args = []byte("{}")
			}
			decision.Calls = append(decision.Calls, oracle.ToolCall{
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}
	if len(decision.Calls) == 0 {
		decision.Reply = text
	} else {
		decision.Rationale = text
	}
	return decision, nil
}

// Summarize implements oracle.Oracle via a plain completion.
func (o *Oracle) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       o.opts.Model,
		MaxTokens:   o.opts.MaxTokens,
		Temperature: anthropic.Float(o.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return text, nil
}

func buildSystem(dc oracle.Context) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if dc.System != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: dc.System})
	}
	if brief := dc.Brief(); brief != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: brief})
	}
	return blocks
}

func buildMessages(dc oracle.Context) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, t := range dc.RecentTurns {
		if t.UserMessage != "" {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.UserMessage)))
		}
		if t.Reply != "" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Reply)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(dc.UserMessage)))
	if obs := dc.Observations(); obs != "" {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(obs)))
	}
	return messages
}

func buildTools(dc oracle.Context) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(dc.Tools))
	for i, d := range dc.Tools {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if d.Parameters != nil {
			if properties, ok := d.Parameters["properties"]; ok {
				schema.Properties = properties
			}
			schema.Required = requiredFields(d.Parameters["required"])
		}
		tools[i] = anthropic.ToolUnionParamOfTool(schema, d.Name)
	}
	return tools
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		var out []string
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
