package agent

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vaultpilot/vaultpilot/pkg/config"
	"github.com/vaultpilot/vaultpilot/pkg/logger"
	"github.com/vaultpilot/vaultpilot/pkg/providers"
	"github.com/vaultpilot/vaultpilot/pkg/tools"
)

// AttachedDoc is a note the user pinned into the conversation context.
type AttachedDoc struct {
	Path    string
	Content string
}

// ContextBuilder assembles the message list sent to the model: system
// prompt, attached notes, and as much recent history as fits the
// context window.
type ContextBuilder struct {
	vaultPath     string
	mode          func() config.AgentMode
	registry      *tools.Registry
	contextWindow int

	mu       sync.Mutex
	attached []AttachedDoc
}

func NewContextBuilder(vaultPath string, mode func() config.AgentMode, registry *tools.Registry, contextWindow int) *ContextBuilder {
	return &ContextBuilder{
		vaultPath:     vaultPath,
		mode:          mode,
		registry:      registry,
		contextWindow: contextWindow,
	}
}

// AttachDocument pins a note into every subsequent request's context.
// Attaching a path twice replaces the earlier content.
func (cb *ContextBuilder) AttachDocument(path, content string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for i, doc := range cb.attached {
		if doc.Path == path {
			cb.attached[i].Content = content
			return
		}
	}
	cb.attached = append(cb.attached, AttachedDoc{Path: path, Content: content})
}

// DetachDocument removes a pinned note. Unknown paths are ignored.
func (cb *ContextBuilder) DetachDocument(path string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for i, doc := range cb.attached {
		if doc.Path == path {
			cb.attached = append(cb.attached[:i], cb.attached[i+1:]...)
			return
		}
	}
}

// AttachedDocuments returns the currently pinned notes.
func (cb *ContextBuilder) AttachedDocuments() []AttachedDoc {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	out := make([]AttachedDoc, len(cb.attached))
	copy(out, cb.attached)
	return out
}

func (cb *ContextBuilder) BuildSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are VaultPilot, an assistant that works inside the user's note vault.\n")
	fmt.Fprintf(&sb, "Vault path: %s\n", cb.vaultPath)
	fmt.Fprintf(&sb, "Current date: %s\n", time.Now().Format("2006-01-02"))

	if cb.mode() == config.ModeAsk {
		sb.WriteString("\nYou are in ask mode: answer questions about the vault but do not modify it. File modification tools will refuse.\n")
	} else {
		sb.WriteString("\nYou are in agent mode: you may modify the vault. Every edit or new note requires the user's confirmation before it is written.\n")
	}

	if cb.registry != nil && cb.registry.Count() > 0 {
		sb.WriteString("\n## Available tools\n")
		for _, line := range cb.registry.GetSummaries() {
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\nWhen a note's exact content matters, read it before editing. Line numbers in edits refer to the note as it currently is.\n")
	}

	attached := cb.AttachedDocuments()
	if len(attached) > 0 {
		sb.WriteString("\n## Attached notes\n")
		sb.WriteString("The user attached these notes to the conversation:\n")
		for _, doc := range attached {
			fmt.Fprintf(&sb, "\n### %s\n\n%s\n", doc.Path, doc.Content)
		}
	}

	return sb.String()
}

// BuildMessages prepends the system prompt to the history, dropping the
// oldest history entries when the estimated token count exceeds the
// context window.
func (cb *ContextBuilder) BuildMessages(history []providers.Message) []providers.Message {
	system := providers.Message{Role: "system", Content: cb.BuildSystemPrompt()}

	budget := cb.contextWindow
	if budget <= 0 {
		return append([]providers.Message{system}, history...)
	}

	used := estimateTokens(providers.ContentToString(system.Content))
	keepFrom := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := messageTokens(history[i])
		// The newest message is kept even when it alone busts the budget;
		// sending the model nothing but the system prompt is never right.
		if used+cost > budget && i < len(history)-1 {
			break
		}
		used += cost
		keepFrom = i
	}

	// Never orphan tool observations: a "tool" message without its
	// assistant tool-call message confuses the provider.
	for keepFrom < len(history) && history[keepFrom].Role == "tool" {
		keepFrom++
	}

	if keepFrom > 0 {
		logger.DebugCF("agent", "History truncated to fit context window",
			map[string]any{
				"dropped": keepFrom,
				"kept":    len(history) - keepFrom,
				"tokens":  used,
			})
	}

	return append([]providers.Message{system}, history[keepFrom:]...)
}

func messageTokens(msg providers.Message) int {
	cost := estimateTokens(providers.ContentToString(msg.Content))
	for _, tc := range msg.ToolCalls {
		cost += estimateTokens(tc.RawArguments())
	}
	// Per-message framing overhead
	return cost + 4
}
