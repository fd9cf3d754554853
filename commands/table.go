package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// Handler runs a host command with its single JSON argument.
type Handler func(ctx context.Context, arg json.RawMessage) (any, error)

// Table maps host command names to handlers.
type Table struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{handlers: make(map[string]Handler)}
}

// Register adds a command. Names are registered at most once.
func (t *Table) Register(name string, h Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handlers[name]; ok {
		return fmt.Errorf("%w: %s", ErrCommandExists, name)
	}
	t.handlers[name] = h
	return nil
}

// Execute runs the named command.
func (t *Table) Execute(ctx context.Context, name string, arg json.RawMessage) (any, error) {
	t.mu.RLock()
	h, ok := t.handlers[name]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return h(ctx, arg)
}

// Names returns the registered command names, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
