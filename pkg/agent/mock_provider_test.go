package agent

import (
	"context"
	"sync"

	"github.com/vaultpilot/vaultpilot/pkg/providers"
)

type mockProvider struct {
	mu            sync.Mutex
	callCount     int
	responses     []providers.LLMResponse
	responseIndex int
	err           error
	lastMessages  []providers.Message
}

func (m *mockProvider) Chat(
	ctx context.Context,
	messages []providers.Message,
	tools []providers.ToolDefinition,
	model string,
	opts map[string]any,
) (*providers.LLMResponse, error) {
	return m.ChatStream(ctx, messages, tools, model, opts, nil)
}

func (m *mockProvider) ChatStream(
	_ context.Context,
	messages []providers.Message,
	_ []providers.ToolDefinition,
	_ string,
	_ map[string]any,
	onDelta providers.StreamHandler,
) (*providers.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.lastMessages = messages

	if m.err != nil {
		return nil, m.err
	}

	if len(m.responses) == 0 {
		resp := providers.LLMResponse{Content: "Mock response"}
		if onDelta != nil {
			onDelta(resp.Content)
		}
		return &resp, nil
	}

	if m.responseIndex >= len(m.responses) {
		m.responseIndex = len(m.responses) - 1
	}
	resp := m.responses[m.responseIndex]
	m.responseIndex++

	if onDelta != nil && resp.Content != "" && len(resp.ToolCalls) == 0 {
		onDelta(resp.Content)
	}
	return &resp, nil
}

func (m *mockProvider) GetDefaultModel() string {
	return "mock-model"
}

func toolCall(id, name, arguments string) providers.ToolCall {
	return providers.ToolCall{
		ID:   id,
		Type: "function",
		Name: name,
		Function: &providers.FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}
}
