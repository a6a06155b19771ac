// Package openai adapts the decision-oracle contract to the OpenAI Chat
// Completions API with native function/tool calling.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/jewelryops/opsagent/oracle"
)

// Options configure the OpenAI oracle adapter. Fields mirror a minimal
// subset of Chat Completion parameters; extend via functional options.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Oracle wraps the OpenAI Chat Completions API behind the oracle.Oracle
// interface.
type Oracle struct {
	client *openai.Client
	opts   Options
}

var _ oracle.Oracle = (*Oracle)(nil)

// New creates an OpenAI oracle using the official client, configured from
// the environment (OPENAI_API_KEY).
func New(optFns ...func(o *Options)) *Oracle {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI oracle from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Decide implements oracle.Oracle. Tool-call responses map to proposed
// calls; plain text terminates the turn as the reply.
func (o *Oracle) Decide(ctx context.Context, dc oracle.Context) (oracle.Decision, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(dc),
		Model:               o.opts.Model,
		Temperature:         openai.Float(o.opts.Temperature),
		MaxCompletionTokens: openai.Int(o.opts.MaxCompletionTokens),
	}
	if len(dc.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(dc.Tools))
		for i, d := range dc.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        d.Name,
					Description: openai.String(d.Description),
					Parameters:  openai.FunctionParameters(d.Parameters),
				},
			}
		}
		params.Tools = tools
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return oracle.Decision{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return oracle.Decision{}, fmt.Errorf("openai: no choices returned")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return oracle.Decision{Reply: msg.Content}, nil
	}
	decision := oracle.Decision{Rationale: msg.Content}
	for _, tc := range msg.ToolCalls {
		decision.Calls = append(decision.Calls, oracle.ToolCall{
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return decision, nil
}

// Summarize implements oracle.Oracle via a plain completion.
func (o *Oracle) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:               o.opts.Model,
		Temperature:         openai.Float(o.opts.Temperature),
		MaxCompletionTokens: openai.Int(o.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildMessages flattens the decision context into chat messages: system
// prompt and brief, the recent-turn window as user/assistant pairs, the
// current message, and this turn's observations.
func buildMessages(dc oracle.Context) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if dc.System != "" {
		messages = append(messages, openai.SystemMessage(dc.System))
	}
	if brief := dc.Brief(); brief != "" {
		messages = append(messages, openai.SystemMessage(brief))
	}
	for _, t := range dc.RecentTurns {
		if t.UserMessage != "" {
			messages = append(messages, openai.UserMessage(t.UserMessage))
		}
		if t.Reply != "" {
			messages = append(messages, openai.AssistantMessage(t.Reply))
		}
	}
	messages = append(messages, openai.UserMessage(dc.UserMessage))
	if obs := dc.Observations(); obs != "" {
		messages = append(messages, openai.UserMessage(obs))
	}
	return messages
}
