package store

import (
	"context"
	"sync"

	"github.com/signalsfoundry/scenario-editor/model"
)

// Memory is an in-process Store. Scenarios are copied on the way in and
// out.
type Memory struct {
	mu        sync.RWMutex
	scenarios map[string]*model.Scenario
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{scenarios: make(map[string]*model.Scenario)}
}

// List implements Store.
func (m *Memory) List(ctx context.Context) ([]model.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]model.Summary, 0, len(m.scenarios))
	for _, s := range m.scenarios {
		out = append(out, model.Summary{ID: s.ID, Name: s.Name})
	}
	m.mu.RUnlock()
	sortSummaries(out)
	return out, nil
}

// Load implements Store.
func (m *Memory) Load(ctx context.Context, id string) (*model.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenarios[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Save implements Store.
func (m *Memory) Save(ctx context.Context, s *model.Scenario) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(s.ID); err != nil {
		return err
	}
	c := s.Clone()
	c.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[c.ID] = c
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenarios[id]; !ok {
		return ErrNotFound
	}
	delete(m.scenarios, id)
	return nil
}
