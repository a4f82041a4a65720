package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/vaultpilot/vaultpilot/pkg/agent"
	"github.com/vaultpilot/vaultpilot/pkg/config"
	"github.com/vaultpilot/vaultpilot/pkg/confirm"
	"github.com/vaultpilot/vaultpilot/pkg/edit"
	"github.com/vaultpilot/vaultpilot/pkg/logger"
	"github.com/vaultpilot/vaultpilot/pkg/providers"
	"github.com/vaultpilot/vaultpilot/pkg/providers/factory"
	"github.com/vaultpilot/vaultpilot/pkg/tools"
	"github.com/vaultpilot/vaultpilot/pkg/vault"
	"github.com/vaultpilot/vaultpilot/pkg/vecstore"
)

func newChatCmd() *cobra.Command {
	var (
		message       string
		modeOverride  string
		modelOverride string
		debug         bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the vault agent",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if debug {
				logger.SetLevel(logger.DEBUG)
			}
			return chatCmd(message, modeOverride, modelOverride)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Send a single message and exit")
	cmd.Flags().StringVar(&modeOverride, "mode", "", "Agent mode: ask or agent")
	cmd.Flags().StringVar(&modelOverride, "model", "", "Override the configured model")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

// chatSession holds the wired-up agent plus the bits of state the REPL
// mutates between turns.
type chatSession struct {
	cfg     *config.Config
	store   vault.Store
	gateway *confirm.Gateway
	builder *agent.ContextBuilder
	loop    *agent.Loop

	mu      sync.Mutex
	mode    config.AgentMode
	history []providers.Message

	// Confirmation prompts and the REPL never run concurrently: the REPL
	// blocks inside loop.Run while a prompt is outstanding.
	ask func(prompt string) (string, error)
}

func (s *chatSession) currentMode() config.AgentMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *chatSession) setMode(mode config.AgentMode) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

func chatCmd(message, modeOverride, modelOverride string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if modeOverride != "" {
		cfg.Agent.Mode = modeOverride
	}
	if modelOverride != "" {
		cfg.Provider.Model = modelOverride
	}

	session, err := newChatSession(cfg)
	if err != nil {
		return err
	}

	if message != "" {
		session.ask = stdinAsk
		removePrompts := session.installConfirmPrompts()
		defer removePrompts()
		return session.runTurn(context.Background(), message)
	}

	return session.repl()
}

func newChatSession(cfg *config.Config) (*chatSession, error) {
	store := vault.NewDirStore(cfg.ResolvedVaultPath())
	gateway := confirm.NewGateway(store)

	session := &chatSession{
		cfg:     cfg,
		store:   store,
		gateway: gateway,
		mode:    cfg.Mode(),
	}

	index := vecstore.NewIndex(filepath.Join(config.DataDir(), "index.gob"))
	if err := index.Load(); err != nil {
		logger.WarnCF("chat", "Could not load vector index", map[string]any{"error": err.Error()})
	}
	embedder := vecstore.NewHTTPEmbedder(cfg.Embeddings.BaseURL, cfg.Embeddings.APIKey, cfg.Embeddings.Model)
	indexer := vecstore.NewIndexer(store, index, embedder, 0)

	registry := tools.NewRegistry()
	registry.Register(tools.NewVaultSearchTool(indexer))
	registry.Register(tools.NewReadFileTool(store))
	registry.Register(tools.NewListVaultTool(store))
	registry.Register(tools.NewEditFileTool(store, gateway, session.currentMode))
	registry.Register(tools.NewCreateFileTool(store, gateway, session.currentMode))

	provider, err := factory.CreateProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	session.builder = agent.NewContextBuilder(cfg.ResolvedVaultPath(), session.currentMode, registry, cfg.Agent.ContextWindow)
	session.loop = agent.NewLoop(cfg, provider, registry, session.builder)
	session.loop.AddListener(agent.ListenerFunc(printEvent))

	logger.InfoCF("chat", "Agent initialized", map[string]any{
		"vault": cfg.ResolvedVaultPath(),
		"model": cfg.Provider.Model,
		"tools": registry.Count(),
		"mode":  string(session.currentMode()),
	})

	return session, nil
}

func printEvent(event agent.Event) {
	switch event.Type {
	case agent.EventTextDelta:
		if d, ok := event.Data.(agent.TextDeltaData); ok {
			fmt.Print(d.Text)
		}
	case agent.EventToolCallStarted:
		if d, ok := event.Data.(agent.ToolCallStartedData); ok {
			fmt.Printf("\n[%s]\n", d.Name)
		}
	case agent.EventToolCallCompleted:
		if d, ok := event.Data.(agent.ToolCallCompletedData); ok && d.IsError {
			fmt.Printf("[%s failed]\n", d.Name)
		}
	}
}

// runTurn sends one user message through the loop. Streamed output is
// printed by the event listener; the final content is already on screen by
// the time Run returns.
func (s *chatSession) runTurn(ctx context.Context, message string) error {
	_, history, err := s.loop.Run(ctx, s.history, message)
	if err != nil {
		return err
	}
	s.history = history
	fmt.Println()
	return nil
}

func (s *chatSession) repl() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".vaultpilot_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	// The REPL sits outside Readline while a turn runs, so the prompt
	// goroutine may borrow the same instance.
	s.ask = func(prompt string) (string, error) {
		rl.SetPrompt(prompt)
		defer rl.SetPrompt("you> ")
		return rl.Readline()
	}
	removePrompts := s.installConfirmPrompts()
	defer removePrompts()

	fmt.Printf("VaultPilot %s (vault: %s, mode: %s)\n", formatVersion(), s.cfg.ResolvedVaultPath(), s.currentMode())
	fmt.Println("  /mode ask|agent  - switch agent mode")
	fmt.Println("  /attach <note>   - pin a note into the context")
	fmt.Println("  /detach <note>   - unpin a note")
	fmt.Println("  /tokens          - show token usage")
	fmt.Println("  /quit            - exit")
	fmt.Println()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" || input == "/quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		if strings.HasPrefix(input, "/") {
			s.handleSlashCommand(input)
			continue
		}

		if err := s.runTurn(context.Background(), input); err != nil {
			fmt.Printf("\nError: %v\n", err)
		}
	}
}

func (s *chatSession) handleSlashCommand(input string) {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/mode":
		switch arg {
		case string(config.ModeAsk):
			s.setMode(config.ModeAsk)
			fmt.Println("Switched to ask mode. The agent will not modify the vault.")
		case string(config.ModeAgent):
			s.setMode(config.ModeAgent)
			fmt.Println("Switched to agent mode. Edits still require confirmation.")
		default:
			fmt.Println("Usage: /mode ask|agent")
		}
	case "/attach":
		if arg == "" {
			fmt.Println("Usage: /attach <note path>")
			return
		}
		content, err := s.store.Read(arg)
		if err != nil {
			fmt.Printf("Could not read %s: %v\n", arg, err)
			return
		}
		s.builder.AttachDocument(arg, content)
		fmt.Printf("Attached %s\n", arg)
	case "/detach":
		if arg == "" {
			fmt.Println("Usage: /detach <note path>")
			return
		}
		s.builder.DetachDocument(arg)
		fmt.Printf("Detached %s\n", arg)
	case "/tokens":
		usage := s.loop.Usage()
		fmt.Printf("Tokens: %d prompt, %d completion, %d total\n",
			usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
	}
}

// installConfirmPrompts wires interactive y/N prompts to the confirmation
// gateway. Listeners fire under the gateway's lock, so the prompt itself
// always runs on a fresh goroutine.
func (s *chatSession) installConfirmPrompts() (remove func()) {
	removeEdit := s.gateway.OnEditChange(func(p *confirm.PendingEdit) {
		if p != nil {
			go s.promptEdit(p)
		}
	})
	removeCreate := s.gateway.OnCreateChange(func(p *confirm.PendingCreate) {
		if p != nil {
			go s.promptCreate(p)
		}
	})
	return func() {
		removeEdit()
		removeCreate()
	}
}

func (s *chatSession) promptEdit(p *confirm.PendingEdit) {
	fmt.Printf("\nProposed edit to %s:\n%s\n", p.Path, edit.FormatDiff(p.Diff))
	answer, err := s.ask("Apply this edit? [y/N]: ")
	if err != nil || !isYes(answer) {
		s.gateway.RejectEdit(rejectReason(answer))
		return
	}
	s.gateway.AcceptEdit()
}

func (s *chatSession) promptCreate(p *confirm.PendingCreate) {
	fmt.Printf("\nProposed new note %s:\n\n%s\n", p.Path, p.Content)
	answer, err := s.ask("Create this note? [y/N]: ")
	if err != nil || !isYes(answer) {
		s.gateway.RejectCreate(rejectReason(answer))
		return
	}
	s.gateway.AcceptCreate()
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// rejectReason turns the prompt answer into a rejection reason; anything
// beyond a plain "n" is passed through so the model sees why.
func rejectReason(answer string) string {
	answer = strings.TrimSpace(answer)
	switch strings.ToLower(answer) {
	case "", "n", "no":
		return "declined at the prompt"
	}
	return answer
}

// stdinAsk reads one answer line without readline, for one-shot mode.
func stdinAsk(prompt string) (string, error) {
	fmt.Print(prompt)
	var answer string
	if _, err := fmt.Fscanln(os.Stdin, &answer); err != nil {
		return "", err
	}
	return answer, nil
}
