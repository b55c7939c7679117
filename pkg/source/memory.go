package source

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// Memory keeps the latest pushed snapshot of every entity. Nothing survives a
// restart.
type Memory struct {
	mu     sync.RWMutex
	states map[string]types.EntityState
}

// NewMemory returns an empty Memory source.
func NewMemory() *Memory {
	return &Memory{states: map[string]types.EntityState{}}
}

// GetState implements Source.
func (m *Memory) GetState(ctx context.Context, entityID string) (types.EntityState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[entityID]
	if !ok {
		return types.EntityState{}, ErrEntityNotFound
	}
	return st, nil
}

// ListStates implements Source.
func (m *Memory) ListStates(ctx context.Context) ([]types.EntityState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.EntityState, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	return out, nil
}

// PutState implements Source. The snapshot replaces any previous one.
func (m *Memory) PutState(ctx context.Context, st types.EntityState) error {
	if strings.TrimSpace(st.EntityID) == "" {
		return errors.New("entity_id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.EntityID] = st
	return nil
}

// Close implements Source.
func (m *Memory) Close() error {
	return nil
}
