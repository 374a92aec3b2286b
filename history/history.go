// Package history implements a bounded linear undo/redo stack of scenario
// snapshots.
package history

import (
	"reflect"
	"sync"

	"github.com/signalsfoundry/scenario-editor/model"
)

// DefaultLimit is the number of snapshots kept before the oldest is
// evicted.
const DefaultLimit = 50

// Target is what undo and redo restore into.
type Target interface {
	Restore(model.Snapshot)
	ClearSelection()
}

// MetricsRecorder receives history depth updates.
type MetricsRecorder interface {
	SetHistory(entries, cursor int)
}

// Option customises Manager construction.
type Option func(*Manager)

// WithLimit overrides DefaultLimit. Values below 1 are ignored.
func WithLimit(n int) Option {
	return func(m *Manager) {
		if n >= 1 {
			m.limit = n
		}
	}
}

// WithMetricsRecorder attaches an optional recorder for depth and cursor.
func WithMetricsRecorder(r MetricsRecorder) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

// Manager records snapshots and moves a cursor over them. The entry at the
// cursor is always the current state.
type Manager struct {
	mu      sync.Mutex
	entries []model.Snapshot
	cursor  int
	limit   int

	replaying    bool
	programmatic int

	metrics MetricsRecorder
}

// NewManager returns a manager whose only entry is initial.
func NewManager(initial model.Snapshot, opts ...Option) *Manager {
	m := &Manager{limit: DefaultLimit}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.entries = []model.Snapshot{initial.Clone()}
	m.report()
	return m
}

// Record appends snap after the cursor, discarding any redo branch. It is
// ignored while replaying or during a programmatic update, and when snap
// equals the current entry. It reports whether an entry was added.
func (m *Manager) Record(snap model.Snapshot) bool {
	m.mu.Lock()
	if m.replaying || m.programmatic > 0 {
		m.mu.Unlock()
		return false
	}
	if reflect.DeepEqual(m.entries[m.cursor], snap) {
		m.mu.Unlock()
		return false
	}

	m.entries = append(m.entries[:m.cursor+1], snap.Clone())
	m.cursor = len(m.entries) - 1
	if over := len(m.entries) - m.limit; over > 0 {
		m.entries = append([]model.Snapshot(nil), m.entries[over:]...)
		m.cursor -= over
	}
	m.mu.Unlock()
	m.report()
	return true
}

// Undo restores the previous entry into t. At the oldest entry it does
// nothing and returns false.
func (m *Manager) Undo(t Target) bool {
	return m.step(t, -1)
}

// Redo restores the next entry into t. At the newest entry it does
// nothing and returns false.
func (m *Manager) Redo(t Target) bool {
	return m.step(t, +1)
}

func (m *Manager) step(t Target, delta int) bool {
	m.mu.Lock()
	next := m.cursor + delta
	if m.replaying || next < 0 || next >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.cursor = next
	snap := m.entries[next].Clone()
	m.replaying = true
	m.mu.Unlock()

	// Restore fires change notifications that call back into Record; the
	// replaying flag turns those into no-ops.
	defer func() {
		m.mu.Lock()
		m.replaying = false
		m.mu.Unlock()
		m.report()
	}()
	if t != nil {
		t.Restore(snap)
		t.ClearSelection()
	}
	return true
}

// Reset discards every entry and starts over from snap.
func (m *Manager) Reset(snap model.Snapshot) {
	m.mu.Lock()
	m.entries = []model.Snapshot{snap.Clone()}
	m.cursor = 0
	m.mu.Unlock()
	m.report()
}

// RunProgrammatic runs fn with recording suppressed. Calls may nest.
func (m *Manager) RunProgrammatic(fn func()) {
	m.mu.Lock()
	m.programmatic++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.programmatic--
		m.mu.Unlock()
	}()
	fn()
}

// Replaying reports whether an undo or redo is being applied.
func (m *Manager) Replaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaying
}

// Programmatic reports whether a programmatic update is running.
func (m *Manager) Programmatic() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.programmatic > 0
}

// Suppressed reports whether changes happening now are replays or
// programmatic updates rather than operator edits.
func (m *Manager) Suppressed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaying || m.programmatic > 0
}

// CanUndo reports whether Undo would move the cursor.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor > 0
}

// CanRedo reports whether Redo would move the cursor.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor < len(m.entries)-1
}

// Len returns the number of stored entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Cursor returns the index of the current entry.
func (m *Manager) Cursor() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// Current returns a copy of the entry at the cursor.
func (m *Manager) Current() model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.cursor].Clone()
}

func (m *Manager) report() {
	if m.metrics == nil {
		return
	}
	m.mu.Lock()
	entries, cursor := len(m.entries), m.cursor
	m.mu.Unlock()
	m.metrics.SetHistory(entries, cursor)
}
