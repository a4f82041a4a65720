// Package confirm gates mutating vault tools behind an explicit user
// decision. A mutating tool registers a pending confirmation and suspends on
// its result; nothing touches the vault until an external Accept call, and a
// Reject resolves the tool with a normal (negative) observation rather than
// an error.
package confirm

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaultpilot/vaultpilot/pkg/edit"
	"github.com/vaultpilot/vaultpilot/pkg/logger"
	"github.com/vaultpilot/vaultpilot/pkg/vault"
)

// PendingEdit is a prepared, not-yet-applied edit to an existing note.
type PendingEdit struct {
	ID           string
	Path         string
	Instructions string
	Diff         []edit.DiffLine
	NewContent   string
	CreatedAt    time.Time

	result chan string
}

// PendingCreate is a prepared, not-yet-applied note creation.
type PendingCreate struct {
	ID        string
	Path      string
	Content   string
	CreatedAt time.Time

	result chan string
}

// EditListener observes the pending-edit slot; it fires with the new record
// on registration and with nil once the slot empties.
type EditListener func(*PendingEdit)

// CreateListener observes the pending-create slot.
type CreateListener func(*PendingCreate)

// Gateway owns at most one pending confirmation of each kind. The pending
// record and its resolver are exclusively the gateway's between registration
// and resolution.
type Gateway struct {
	mu    sync.Mutex
	store vault.Store

	pendingEdit   *PendingEdit
	pendingCreate *PendingCreate

	editListeners   map[int]EditListener
	createListeners map[int]CreateListener
	nextListenerID  int
}

func NewGateway(store vault.Store) *Gateway {
	return &Gateway{
		store:           store,
		editListeners:   make(map[int]EditListener),
		createListeners: make(map[int]CreateListener),
	}
}

// RequestEdit registers a pending edit and returns the channel its eventual
// resolution arrives on. A second request while one is outstanding is an
// error, not a queue.
func (g *Gateway) RequestEdit(path, instructions string, diff []edit.DiffLine, newContent string) (<-chan string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pendingEdit != nil {
		return nil, fmt.Errorf("an edit to %q is already awaiting confirmation", g.pendingEdit.Path)
	}

	g.pendingEdit = &PendingEdit{
		ID:           uuid.NewString(),
		Path:         path,
		Instructions: instructions,
		Diff:         diff,
		NewContent:   newContent,
		CreatedAt:    time.Now(),
		result:       make(chan string, 1),
	}

	logger.InfoCF("confirm", "Edit awaiting confirmation",
		map[string]any{"path": path, "id": g.pendingEdit.ID})

	g.notifyEditLocked()
	return g.pendingEdit.result, nil
}

// RequestCreate registers a pending note creation.
func (g *Gateway) RequestCreate(path, content string) (<-chan string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pendingCreate != nil {
		return nil, fmt.Errorf("a creation of %q is already awaiting confirmation", g.pendingCreate.Path)
	}

	g.pendingCreate = &PendingCreate{
		ID:        uuid.NewString(),
		Path:      path,
		Content:   content,
		CreatedAt: time.Now(),
		result:    make(chan string, 1),
	}

	logger.InfoCF("confirm", "Creation awaiting confirmation",
		map[string]any{"path": path, "id": g.pendingCreate.ID})

	g.notifyCreateLocked()
	return g.pendingCreate.result, nil
}

// AcceptEdit applies the pending edit to the vault and resolves the waiting
// tool. With nothing pending it is a no-op.
func (g *Gateway) AcceptEdit() {
	g.mu.Lock()
	pending := g.pendingEdit
	g.pendingEdit = nil
	if pending != nil {
		g.notifyEditLocked()
	}
	g.mu.Unlock()

	if pending == nil {
		return
	}

	if err := g.store.Write(pending.Path, pending.NewContent); err != nil {
		logger.ErrorCF("confirm", "Applying accepted edit failed",
			map[string]any{"path": pending.Path, "error": err.Error()})
		pending.result <- fmt.Sprintf("Failed to apply edits to %s: %v", pending.Path, err)
		return
	}

	pending.result <- fmt.Sprintf("Successfully applied edits to %s:\n\n%s",
		pending.Path, edit.FormatDiff(pending.Diff))
}

// RejectEdit resolves the waiting tool with a rejection observation and
// leaves the vault untouched.
func (g *Gateway) RejectEdit(reason string) {
	g.mu.Lock()
	pending := g.pendingEdit
	g.pendingEdit = nil
	if pending != nil {
		g.notifyEditLocked()
	}
	g.mu.Unlock()

	if pending == nil {
		return
	}
	pending.result <- rejectionMessage("edits to "+pending.Path, reason)
}

// AcceptCreate creates the pending note, ensuring its folder exists first.
func (g *Gateway) AcceptCreate() {
	g.mu.Lock()
	pending := g.pendingCreate
	g.pendingCreate = nil
	if pending != nil {
		g.notifyCreateLocked()
	}
	g.mu.Unlock()

	if pending == nil {
		return
	}

	if dir := parentFolder(pending.Path); dir != "" {
		if err := g.store.EnsureDirectory(dir); err != nil {
			pending.result <- fmt.Sprintf("Failed to create %s: %v", pending.Path, err)
			return
		}
	}
	if err := g.store.Create(pending.Path, pending.Content); err != nil {
		logger.ErrorCF("confirm", "Applying accepted creation failed",
			map[string]any{"path": pending.Path, "error": err.Error()})
		pending.result <- fmt.Sprintf("Failed to create %s: %v", pending.Path, err)
		return
	}

	pending.result <- fmt.Sprintf("Successfully created %s", pending.Path)
}

func (g *Gateway) RejectCreate(reason string) {
	g.mu.Lock()
	pending := g.pendingCreate
	g.pendingCreate = nil
	if pending != nil {
		g.notifyCreateLocked()
	}
	g.mu.Unlock()

	if pending == nil {
		return
	}
	pending.result <- rejectionMessage("creation of "+pending.Path, reason)
}

// GetPendingEdit returns the current pending edit, or nil.
func (g *Gateway) GetPendingEdit() *PendingEdit {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingEdit
}

func (g *Gateway) GetPendingCreate() *PendingCreate {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingCreate
}

// OnEditChange registers a listener for the pending-edit slot and returns a
// function that removes it.
func (g *Gateway) OnEditChange(l EditListener) (remove func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextListenerID
	g.nextListenerID++
	g.editListeners[id] = l
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.editListeners, id)
	}
}

func (g *Gateway) OnCreateChange(l CreateListener) (remove func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextListenerID
	g.nextListenerID++
	g.createListeners[id] = l
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.createListeners, id)
	}
}

func (g *Gateway) notifyEditLocked() {
	for _, l := range g.editListeners {
		l(g.pendingEdit)
	}
}

func (g *Gateway) notifyCreateLocked() {
	for _, l := range g.createListeners {
		l(g.pendingCreate)
	}
}

func rejectionMessage(what, reason string) string {
	if reason != "" {
		return fmt.Sprintf("The user rejected the %s. Reason: %s", what, reason)
	}
	return fmt.Sprintf("The user rejected the %s.", what)
}

func parentFolder(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}
