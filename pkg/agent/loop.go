package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vaultpilot/vaultpilot/pkg/config"
	"github.com/vaultpilot/vaultpilot/pkg/logger"
	"github.com/vaultpilot/vaultpilot/pkg/providers"
	"github.com/vaultpilot/vaultpilot/pkg/tools"
)

// Loop drives the reason-act-observe cycle: one model request at a
// time, tool calls executed sequentially in the order the model listed
// them, observations appended to history in execution order.
type Loop struct {
	provider      providers.LLMProvider
	tools         *tools.Registry
	builder       *ContextBuilder
	model         string
	maxIterations int

	mu             sync.Mutex
	listeners      map[int]EventListener
	nextListenerID int
	usage          providers.UsageInfo
}

func NewLoop(cfg *config.Config, provider providers.LLMProvider, registry *tools.Registry, builder *ContextBuilder) *Loop {
	model := cfg.Provider.Model
	if model == "" {
		model = provider.GetDefaultModel()
	}
	maxIterations := cfg.Agent.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 25
	}
	return &Loop{
		provider:      provider,
		tools:         registry,
		builder:       builder,
		model:         model,
		maxIterations: maxIterations,
		listeners:     make(map[int]EventListener),
	}
}

// AddListener registers an event listener and returns a function that
// removes it.
func (l *Loop) AddListener(listener EventListener) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextListenerID
	l.nextListenerID++
	l.listeners[id] = listener
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Usage returns the token usage accumulated across all runs.
func (l *Loop) Usage() providers.UsageInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage
}

func (l *Loop) emit(event Event) {
	l.mu.Lock()
	listeners := make([]EventListener, 0, len(l.listeners))
	for _, listener := range l.listeners {
		listeners = append(listeners, listener)
	}
	l.mu.Unlock()

	for _, listener := range listeners {
		listener.OnEvent(event)
	}
}

func (l *Loop) addUsage(usage *providers.UsageInfo) {
	if usage == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.usage.PromptTokens += usage.PromptTokens
	l.usage.CompletionTokens += usage.CompletionTokens
	l.usage.TotalTokens += usage.TotalTokens
}

// Run processes one user message. It returns the final assistant text
// and the updated history (without the system prompt). A request-level
// failure aborts the run; individual tool failures become observations
// the model sees on its next turn.
func (l *Loop) Run(ctx context.Context, history []providers.Message, userMessage string) (string, []providers.Message, error) {
	history = append(history, providers.Message{Role: "user", Content: userMessage})

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		logger.DebugCF("agent", "LLM iteration",
			map[string]any{
				"iteration": iteration,
				"max":       l.maxIterations,
				"messages":  len(history),
			})

		messages := l.builder.BuildMessages(history)
		defs := l.tools.ToProviderDefs()

		response, err := l.provider.ChatStream(ctx, messages, defs, l.model, nil, func(delta string) {
			l.emit(Event{Type: EventTextDelta, Data: TextDeltaData{Text: delta}})
		})
		if err != nil {
			logger.ErrorCF("agent", "LLM call failed",
				map[string]any{
					"iteration": iteration,
					"error":     err.Error(),
				})
			err = fmt.Errorf("model request failed: %w", err)
			l.emit(Event{Type: EventError, Data: ErrorData{Err: err}})
			return "", history, err
		}
		l.addUsage(response.Usage)

		if len(response.ToolCalls) == 0 {
			history = append(history, providers.Message{
				Role:    "assistant",
				Content: response.Content,
			})
			logger.InfoCF("agent", "LLM response without tool calls (direct answer)",
				map[string]any{
					"iteration":     iteration,
					"content_chars": len(response.Content),
				})
			l.emit(Event{Type: EventResponseComplete, Data: ResponseCompleteData{Content: response.Content}})
			return response.Content, history, nil
		}

		toolNames := make([]string, 0, len(response.ToolCalls))
		for _, tc := range response.ToolCalls {
			toolNames = append(toolNames, tc.Name)
		}
		logger.InfoCF("agent", "LLM requested tool calls",
			map[string]any{
				"tools":     toolNames,
				"count":     len(response.ToolCalls),
				"iteration": iteration,
			})

		history = append(history, providers.Message{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, tc := range response.ToolCalls {
			l.emit(Event{Type: EventToolCallStarted, Data: ToolCallStartedData{ID: tc.ID, Name: tc.Name}})

			result := l.executeToolCall(ctx, tc)

			l.emit(Event{Type: EventToolCallCompleted, Data: ToolCallCompletedData{
				ID:      tc.ID,
				Name:    tc.Name,
				Result:  result.ForLLM,
				IsError: result.IsError,
			}})

			contentForLLM := result.ForLLM
			if contentForLLM == "" && result.Err != nil {
				contentForLLM = result.Err.Error()
			}
			history = append(history, providers.Message{
				Role:       "tool",
				Content:    contentForLLM,
				ToolCallID: tc.ID,
			})
		}
	}

	err := fmt.Errorf("agent run did not finish within %d iterations", l.maxIterations)
	l.emit(Event{Type: EventError, Data: ErrorData{Err: err}})
	return "", history, err
}

// executeToolCall parses the raw argument payload and dispatches the
// call. A parse failure is an observation for the model, not a failure
// of the run.
func (l *Loop) executeToolCall(ctx context.Context, tc providers.ToolCall) *tools.ToolResult {
	raw := tc.RawArguments()
	args := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			logger.WarnCF("agent", "Tool arguments failed to parse",
				map[string]any{
					"tool":  tc.Name,
					"error": err.Error(),
				})
			return tools.ErrorResult(fmt.Sprintf("failed to parse arguments for %s: %v", tc.Name, err)).WithError(err)
		}
	}
	return l.tools.Execute(ctx, tc.Name, args)
}
