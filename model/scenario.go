package model

import (
	"math"

	"github.com/brunoga/deep"
)

// ScenarioType decides which node data is authoritative and whether
// explicit edges may exist.
type ScenarioType string

const (
	ScenarioRealistic ScenarioType = "realistic"
	ScenarioCustom    ScenarioType = "custom"
)

// Valid reports whether t is a known scenario type.
func (t ScenarioType) Valid() bool {
	return t == ScenarioRealistic || t == ScenarioCustom
}

// Viewport is the pan/zoom state of the rendering surface.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom" validate:"gt=0"`
}

// DefaultViewport is the placeholder used before the surface reports one.
var DefaultViewport = Viewport{X: 0, Y: 0, Zoom: 1}

// Valid reports whether the viewport is a real, finite surface state.
func (v Viewport) Valid() bool {
	for _, f := range []float64{v.X, v.Y, v.Zoom} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return v.Zoom > 0
}

// Scenario is the persisted unit: a typed graph plus its viewport.
type Scenario struct {
	ID           string       `json:"id" validate:"required"`
	Name         string       `json:"name"`
	ScenarioType ScenarioType `json:"scenarioType" validate:"required,oneof=realistic custom"`
	Nodes        []Node       `json:"nodes" validate:"dive"`
	Edges        []Edge       `json:"edges" validate:"dive"`
	Viewport     Viewport     `json:"viewport"`
}

// Summary is the listing view of a stored scenario.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Snapshot is one immutable history entry.
type Snapshot struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Viewport Viewport `json:"viewport"`
}

// NewScenario returns an empty scenario of the given type.
func NewScenario(id, name string, typ ScenarioType) *Scenario {
	if !typ.Valid() {
		typ = ScenarioCustom
	}
	return &Scenario{
		ID:           id,
		Name:         name,
		ScenarioType: typ,
		Nodes:        []Node{},
		Edges:        []Edge{},
		Viewport:     DefaultViewport,
	}
}

// Normalize repairs a decoded scenario in place: nil slices become empty,
// realistic scenarios lose their edges, and an unusable viewport is reset.
func (s *Scenario) Normalize() {
	if !s.ScenarioType.Valid() {
		s.ScenarioType = ScenarioCustom
	}
	if s.Nodes == nil {
		s.Nodes = []Node{}
	}
	if s.Edges == nil || s.ScenarioType == ScenarioRealistic {
		s.Edges = []Edge{}
	}
	if !s.Viewport.Valid() {
		s.Viewport = DefaultViewport
	}
}

// Clone returns a deep copy of the scenario.
func (s *Scenario) Clone() *Scenario {
	if s == nil {
		return nil
	}
	c := deep.MustCopy(*s)
	return &c
}

// Snapshot captures the history-relevant part of the scenario.
func (s *Scenario) Snapshot() Snapshot {
	return Snapshot{
		Nodes:    deep.MustCopy(s.Nodes),
		Edges:    deep.MustCopy(s.Edges),
		Viewport: s.Viewport,
	}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return deep.MustCopy(s)
}
