// Package store persists scenarios as JSON documents. Backends implement
// Store; decorators add caching, circuit breaking and instrumentation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/signalsfoundry/scenario-editor/model"
)

var (
	// ErrNotFound is returned when no scenario is stored under the key.
	ErrNotFound = errors.New("store: scenario not found")
	// ErrUnavailable marks a transient backend failure; retrying later may
	// succeed.
	ErrUnavailable = errors.New("store: backend unavailable")
	// ErrInvalidID is returned for an empty scenario key.
	ErrInvalidID = errors.New("store: empty scenario id")
)

// Store is the scenario storage contract.
type Store interface {
	// List returns a summary of every stored scenario, ordered by id.
	List(ctx context.Context) ([]model.Summary, error)
	// Load returns the scenario stored under id, or ErrNotFound.
	Load(ctx context.Context, id string) (*model.Scenario, error)
	// Save stores s under s.ID, replacing any previous version.
	Save(ctx context.Context, s *model.Scenario) error
	// Delete removes the scenario stored under id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// IOError wraps a backend failure with the operation and key involved.
type IOError struct {
	Op  string
	ID  string
	Err error
}

func (e *IOError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidID) {
		return false
	}
	if errors.Is(err, context.Canceled) || model.IsValidationError(err) {
		return false
	}
	return true
}

// Encode renders a scenario as its persisted JSON document.
func Encode(s *model.Scenario) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Decode parses a persisted JSON document and normalizes the result.
func Decode(data []byte) (*model.Scenario, error) {
	var s model.Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	s.Normalize()
	return &s, nil
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	return nil
}

func sortSummaries(out []model.Summary) {
	slices.SortFunc(out, func(a, b model.Summary) int {
		return strings.Compare(a.ID, b.ID)
	})
}
