package providers

import (
	"context"
	"strings"
)

// ToolCall is a model-issued request to invoke a named capability.
// Function.Arguments carries the raw JSON argument payload as produced by the
// model; it is parsed (and may fail to parse) at execution time, not here.
type ToolCall struct {
	ID       string        `json:"id"`
	Type     string        `json:"type,omitempty"`
	Name     string        `json:"name,omitempty"`
	Function *FunctionCall `json:"function,omitempty"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// RawArguments returns the argument payload for the call.
func (tc ToolCall) RawArguments() string {
	if tc.Function == nil {
		return ""
	}
	return tc.Function.Arguments
}

type LLMResponse struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"`
	Usage        *UsageInfo `json:"usage,omitempty"`
}

type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Message is one entry of the conversation buffer. Content is either a string
// or []any of multipart content (text + images). ToolCallID back-references
// the tool call a "tool" role message answers.
type Message struct {
	Role       string     `json:"role"`
	Content    any        `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// StreamHandler receives text fragments as they arrive from the model.
type StreamHandler func(delta string)

// LLMProvider is the outbound boundary to a model endpoint. ChatStream
// delivers text deltas through onDelta as they arrive and returns the fully
// assembled response, identical to what Chat would return.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]any) (*LLMResponse, error)
	ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]any, onDelta StreamHandler) (*LLMResponse, error)
	GetDefaultModel() string
}

// ToolDefinition is the function-calling wire contract with the provider.
type ToolDefinition struct {
	Type     string                 `json:"type"`
	Function ToolFunctionDefinition `json:"function"`
}

type ToolFunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ContentToString extracts text from Content. For multipart content it joins
// the text parts with newlines and ignores everything else.
func ContentToString(content any) string {
	if content == nil {
		return ""
	}
	if s, ok := content.(string); ok {
		return s
	}
	if parts, ok := content.([]any); ok {
		var texts []string
		for _, part := range parts {
			partMap, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if partType, _ := partMap["type"].(string); partType == "text" {
				if text, ok := partMap["text"].(string); ok {
					texts = append(texts, text)
				}
			}
		}
		return strings.Join(texts, "\n")
	}
	return ""
}
