// Package anthropic adapts the official Anthropic SDK to the LLMProvider
// interface. Streaming uses the SDK's event accumulator, so the assembled
// response matches the non-streaming path exactly.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/vaultpilot/vaultpilot/pkg/providers"
)

const defaultBaseURL = "https://api.anthropic.com"

type Provider struct {
	client  *anthropicsdk.Client
	baseURL string
}

func NewProvider(apiKey string) *Provider {
	return NewProviderWithBaseURL(apiKey, "")
}

func NewProviderWithBaseURL(apiKey, apiBase string) *Provider {
	baseURL := normalizeBaseURL(apiBase)
	client := anthropicsdk.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &Provider{
		client:  &client,
		baseURL: baseURL,
	}
}

func (p *Provider) GetDefaultModel() string {
	return "claude-sonnet-4.6"
}

func (p *Provider) Chat(
	ctx context.Context,
	messages []providers.Message,
	tools []providers.ToolDefinition,
	model string,
	options map[string]any,
) (*providers.LLMResponse, error) {
	params, err := buildParams(messages, tools, model, options)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	return parseResponse(resp), nil
}

func (p *Provider) ChatStream(
	ctx context.Context,
	messages []providers.Message,
	tools []providers.ToolDefinition,
	model string,
	options map[string]any,
	onDelta providers.StreamHandler,
) (*providers.LLMResponse, error) {
	params, err := buildParams(messages, tools, model, options)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	var accumulated anthropicsdk.Message
	for stream.Next() {
		event := stream.Current()

		if err := accumulated.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulating stream event: %w", err)
		}

		if onDelta != nil {
			switch e := event.AsAny().(type) {
			case anthropicsdk.ContentBlockDeltaEvent:
				if td := e.Delta.AsTextDelta(); td.Text != "" {
					onDelta(td.Text)
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic streaming API call: %w", err)
	}

	return parseResponse(&accumulated), nil
}

func buildParams(
	messages []providers.Message,
	tools []providers.ToolDefinition,
	model string,
	options map[string]any,
) (anthropicsdk.MessageNewParams, error) {
	var system []anthropicsdk.TextBlockParam
	var outMessages []anthropicsdk.MessageParam

	// The Anthropic API wants all tool_result blocks for one assistant turn
	// in a single user message, so consecutive tool results are folded
	// together.
	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		switch {
		case msg.Role == "system":
			system = append(system, anthropicsdk.TextBlockParam{Text: providers.ContentToString(msg.Content)})

		case isToolResult(msg):
			var toolBlocks []anthropicsdk.ContentBlockParamUnion
			for i < len(messages) && isToolResult(messages[i]) {
				toolBlocks = append(toolBlocks, anthropicsdk.NewToolResultBlock(
					messages[i].ToolCallID,
					providers.ContentToString(messages[i].Content),
					false,
				))
				i++
			}
			i-- // outer loop will increment
			outMessages = append(outMessages, anthropicsdk.NewUserMessage(toolBlocks...))

		case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			var blocks []anthropicsdk.ContentBlockParamUnion
			if text := providers.ContentToString(msg.Content); text != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(text))
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				if raw := tc.RawArguments(); raw != "" {
					_ = json.Unmarshal([]byte(raw), &args)
				}
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			outMessages = append(outMessages, anthropicsdk.NewAssistantMessage(blocks...))

		case msg.Role == "assistant":
			outMessages = append(outMessages,
				anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(providers.ContentToString(msg.Content))))

		default:
			outMessages = append(outMessages,
				anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(providers.ContentToString(msg.Content))))
		}
	}

	maxTokens := int64(4096)
	if mt, ok := options["max_tokens"].(int); ok {
		maxTokens = int64(mt)
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		Messages:  outMessages,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if temp, ok := options["temperature"].(float64); ok {
		params.Temperature = anthropicsdk.Float(temp)
	}
	if len(tools) > 0 {
		params.Tools = translateTools(tools)
	}

	return params, nil
}

func translateTools(tools []providers.ToolDefinition) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		tool := anthropicsdk.ToolParam{
			Name: t.Function.Name,
			InputSchema: anthropicsdk.ToolInputSchemaParam{
				Properties: t.Function.Parameters["properties"],
			},
		}
		if desc := t.Function.Description; desc != "" {
			tool.Description = anthropicsdk.String(desc)
		}
		if req, ok := t.Function.Parameters["required"].([]string); ok {
			tool.InputSchema.Required = req
		} else if req, ok := t.Function.Parameters["required"].([]any); ok {
			required := make([]string, 0, len(req))
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
			tool.InputSchema.Required = required
		}
		result = append(result, anthropicsdk.ToolUnionParam{OfTool: &tool})
	}
	return result
}

func parseResponse(resp *anthropicsdk.Message) *providers.LLMResponse {
	var content string
	var toolCalls []providers.ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			toolCalls = append(toolCalls, providers.ToolCall{
				ID:   tu.ID,
				Type: "function",
				Name: tu.Name,
				Function: &providers.FunctionCall{
					Name:      tu.Name,
					Arguments: string(tu.Input),
				},
			})
		}
	}

	finishReason := "stop"
	switch resp.StopReason {
	case anthropicsdk.StopReasonToolUse:
		finishReason = "tool_calls"
	case anthropicsdk.StopReasonMaxTokens:
		finishReason = "length"
	}

	return &providers.LLMResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: finishReason,
		Usage: &providers.UsageInfo{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

func isToolResult(msg providers.Message) bool {
	return msg.Role == "tool" || (msg.Role == "user" && msg.ToolCallID != "")
}

func normalizeBaseURL(apiBase string) string {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	base = strings.TrimSuffix(base, "/v1")
	if base == "" {
		return defaultBaseURL
	}
	return base
}
