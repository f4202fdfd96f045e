package commands

import (
	"sync"

	"github.com/karta-graph/karta/internal/apperr"
)

// Manager owns the undo and redo stacks. Calls are serialized
// internally; the service facade adds its own lock around everything
// that also reads the graph.
type Manager struct {
	mu   sync.Mutex
	env  *Env
	undo []Command
	redo []Command
}

// NewManager returns a manager with empty history.
func NewManager(env *Env) *Manager {
	return &Manager{env: env}
}

// Execute applies cmd and pushes it onto the undo stack. Every fresh
// apply clears the redo stack. When Apply fails with nothing changed,
// the history is left untouched.
func (m *Manager) Execute(cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := cmd.Apply(m.env); err != nil {
		return err
	}
	m.undo = append(m.undo, cmd)
	m.redo = nil
	return nil
}

// Undo reverses the most recent command, moves it to the redo stack and
// returns it so the caller can announce what was undone. An empty stack
// returns ErrNotFound. A command whose Undo fails stays on the undo
// stack; retrying is safe because every inverse tolerates pieces that
// are already back in place.
func (m *Manager) Undo() (Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return nil, apperr.NotFoundf("nothing to undo")
	}
	cmd := m.undo[len(m.undo)-1]
	if err := cmd.Undo(m.env); err != nil {
		return nil, err
	}
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, cmd)
	return cmd, nil
}

// Redo reinstates the most recently undone command and returns it.
func (m *Manager) Redo() (Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redo) == 0 {
		return nil, apperr.NotFoundf("nothing to redo")
	}
	cmd := m.redo[len(m.redo)-1]
	if err := cmd.Redo(m.env); err != nil {
		return nil, err
	}
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, cmd)
	return cmd, nil
}

// History returns the command kinds on each stack, most recent first.
func (m *Manager) History() (undo, redo []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	undo = make([]string, 0, len(m.undo))
	for i := len(m.undo) - 1; i >= 0; i-- {
		undo = append(undo, m.undo[i].Kind())
	}
	redo = make([]string, 0, len(m.redo))
	for i := len(m.redo) - 1; i >= 0; i-- {
		redo = append(redo, m.redo[i].Kind())
	}
	return undo, redo
}
