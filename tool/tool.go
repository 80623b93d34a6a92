// Package tool defines the functions the assistant's model may call while
// answering a question, and the manager that registers and dispatches them.
package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Tool is one callable function surfaced to the model.
type Tool interface {
	// Name is the function name the model calls.
	Name() string
	// Definition is the schema handed to the model.
	Definition() llms.Tool
	// Execute runs one call. The returned text goes back to the model as the
	// tool result.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Sourcer is implemented by tools that can report which documents backed
// their most recent execution.
type Sourcer interface {
	LastSources() []string
	ResetSources()
}

// Manager holds the registered tools and routes calls by name.
type Manager struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{tools: make(map[string]Tool)}
}

// Register adds a tool. Names must be unique.
func (m *Manager) Register(t Tool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := t.Name()
	if _, exists := m.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	m.tools[name] = t
	m.order = append(m.order, name)
	return nil
}

// Definitions returns every tool schema in registration order.
func (m *Manager) Definitions() []llms.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	defs := make([]llms.Tool, 0, len(m.order))
	for _, name := range m.order {
		defs = append(defs, m.tools[name].Definition())
	}
	return defs
}

// Execute dispatches one tool call by name.
func (m *Manager) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.RLock()
	t, ok := m.tools[name]
	m.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("tool %q not found", name)
	}
	return t.Execute(ctx, args)
}

// LastSources returns the sources recorded by the first tool, in registration
// order, whose latest run produced any.
func (m *Manager) LastSources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, name := range m.order {
		if s, ok := m.tools[name].(Sourcer); ok {
			if sources := s.LastSources(); len(sources) > 0 {
				return sources
			}
		}
	}
	return nil
}

// ResetSources clears recorded sources on every tool that tracks them.
func (m *Manager) ResetSources() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, name := range m.order {
		if s, ok := m.tools[name].(Sourcer); ok {
			s.ResetSources()
		}
	}
}

func argInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
