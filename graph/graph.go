// Package graph holds the live scenario being edited: nodes, edges, the
// scenario type and the viewport. Mutators are total; an invalid target
// is a no-op that returns false.
package graph

import (
	"sync"

	"github.com/brunoga/deep"
	"github.com/google/uuid"

	"github.com/signalsfoundry/scenario-editor/model"
	"github.com/signalsfoundry/scenario-editor/movement"
)

// EventType indicates what kind of change happened in the graph.
type EventType int

const (
	EventNodeAdded EventType = iota
	EventNodeRemoved
	EventNodeUpdated
	EventEdgeAdded
	EventEdgeRemoved
	EventEdgeUpdated
	EventScenarioTypeChanged
	EventRenamed
	EventViewportChanged
	EventRestored
	EventLoaded
)

var eventNames = [...]string{
	EventNodeAdded:           "node_added",
	EventNodeRemoved:         "node_removed",
	EventNodeUpdated:         "node_updated",
	EventEdgeAdded:           "edge_added",
	EventEdgeRemoved:         "edge_removed",
	EventEdgeUpdated:         "edge_updated",
	EventScenarioTypeChanged: "scenario_type_changed",
	EventRenamed:             "renamed",
	EventViewportChanged:     "viewport_changed",
	EventRestored:            "restored",
	EventLoaded:              "loaded",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Structural reports whether the change is a node or edge edit, the kind
// that belongs in undo history.
func (t EventType) Structural() bool {
	return t <= EventEdgeUpdated
}

// Event is emitted to subscribers after every applied mutation.
type Event struct {
	Type EventType
	// ID is the node or edge the event concerns, if any.
	ID string
}

// Graph is an in-memory, thread-safe scenario.
type Graph struct {
	mu sync.RWMutex

	id       string
	name     string
	typ      model.ScenarioType
	nodes    []model.Node
	edges    []model.Edge
	viewport model.Viewport

	subs    map[int]func(Event)
	nextSub int
}

// New constructs a graph holding a copy of s. A nil s yields an empty
// custom scenario.
func New(s *model.Scenario) *Graph {
	g := &Graph{subs: make(map[int]func(Event))}
	g.load(s)
	return g
}

// Load replaces the whole graph with a copy of s.
func (g *Graph) Load(s *model.Scenario) {
	g.mu.Lock()
	g.load(s)
	g.notifyLocked(Event{Type: EventLoaded})
}

func (g *Graph) load(s *model.Scenario) {
	if s == nil {
		s = model.NewScenario("", "", model.ScenarioCustom)
	}
	c := s.Clone()
	c.Normalize()
	g.id, g.name, g.typ = c.ID, c.Name, c.ScenarioType
	g.nodes, g.edges, g.viewport = c.Nodes, c.Edges, c.Viewport
}

// Scenario returns a deep copy of the current state.
func (g *Graph) Scenario() *model.Scenario {
	g.mu.RLock()
	s := &model.Scenario{
		ID:           g.id,
		Name:         g.name,
		ScenarioType: g.typ,
		Nodes:        deep.MustCopy(g.nodes),
		Edges:        deep.MustCopy(g.edges),
		Viewport:     g.viewport,
	}
	g.mu.RUnlock()
	s.Normalize()
	return s
}

// Snapshot returns a deep copy of the history-relevant state.
func (g *Graph) Snapshot() model.Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return model.Snapshot{
		Nodes:    deep.MustCopy(g.nodes),
		Edges:    deep.MustCopy(g.edges),
		Viewport: g.viewport,
	}
}

// ID returns the scenario key.
func (g *Graph) ID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.id
}

// SetID rebinds the scenario to a new key, as for save-as.
func (g *Graph) SetID(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.id = id
}

// Name returns the scenario display name.
func (g *Graph) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.name
}

// Type returns the scenario type.
func (g *Graph) Type() model.ScenarioType {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.typ
}

// Viewport returns the stored viewport.
func (g *Graph) Viewport() model.Viewport {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.viewport
}

// Counts returns the number of nodes and edges.
func (g *Graph) Counts() (nodes, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes), len(g.edges)
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (model.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i := g.nodeIndex(id)
	if i < 0 {
		return model.Node{}, false
	}
	return deep.MustCopy(g.nodes[i]), true
}

// Edge returns a copy of the edge with the given id.
func (g *Graph) Edge(id string) (model.Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i := g.edgeIndex(id)
	if i < 0 {
		return model.Edge{}, false
	}
	return deep.MustCopy(g.edges[i]), true
}

// Nodes returns a copy of all nodes in insertion order.
func (g *Graph) Nodes() []model.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return deep.MustCopy(g.nodes)
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []model.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return deep.MustCopy(g.edges)
}

// Subscribe registers a callback for graph events. It returns an
// unsubscribe function.
func (g *Graph) Subscribe(fn func(Event)) (unsubscribe func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.subs, id)
	}
}

// notifyLocked releases the write lock and then delivers ev. Subscribers
// run outside the lock so they may read the graph.
func (g *Graph) notifyLocked(ev Event) {
	subs := make([]func(Event), 0, len(g.subs))
	for i := 0; i < g.nextSub; i++ {
		if fn, ok := g.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	g.mu.Unlock()

	for _, sub := range subs {
		sub(ev)
	}
}

func (g *Graph) nodeIndex(id string) int {
	for i := range g.nodes {
		if g.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (g *Graph) edgeIndex(id string) int {
	for i := range g.edges {
		if g.edges[i].ID == id {
			return i
		}
	}
	return -1
}

// AddNode inserts a copy of n. An empty id is replaced by a generated one.
// It returns the node id, or false when the kind is unknown or the id is
// taken.
func (g *Graph) AddNode(n model.Node) (string, bool) {
	if !n.Kind.Valid() {
		return "", false
	}
	n = deep.MustCopy(n)
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	g.mu.Lock()
	if g.nodeIndex(n.ID) >= 0 {
		g.mu.Unlock()
		return "", false
	}
	g.nodes = append(g.nodes, n)
	g.notifyLocked(Event{Type: EventNodeAdded, ID: n.ID})
	return n.ID, true
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id string) bool {
	g.mu.Lock()
	i := g.nodeIndex(id)
	if i < 0 {
		g.mu.Unlock()
		return false
	}
	g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)

	kept := g.edges[:0]
	for _, e := range g.edges {
		if !e.Touches(id) {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.notifyLocked(Event{Type: EventNodeRemoved, ID: id})
	return true
}

// UpdateNodeData merges a field-level patch into a node. Satellite data
// only applies to SAT nodes and ground data only to GS and UE nodes. A patch
// naming an unknown movement pattern is rejected without changing the node.
func (g *Graph) UpdateNodeData(id string, p model.NodePatch) bool {
	g.mu.Lock()
	i := g.nodeIndex(id)
	if i < 0 || (p.Movement != nil && !movement.ValidPatch(*p.Movement)) {
		g.mu.Unlock()
		return false
	}
	n := &g.nodes[i]

	n.Name = p.Name.Merge(n.Name)
	if pos, ok := p.Position.Value(); ok {
		n.Position = pos
	}
	if p.Satellite != nil && n.Kind == model.KindSatellite {
		if n.Satellite == nil {
			n.Satellite = &model.SatelliteData{}
		}
		p.Satellite.Apply(n.Satellite)
	}
	if p.Ground != nil && n.Kind != model.KindSatellite {
		if n.Ground == nil {
			n.Ground = &model.GroundData{}
		}
		p.Ground.Apply(n.Ground)
	}
	if p.Movement != nil {
		n.Movement = movement.Apply(n.Movement, *p.Movement)
	}
	g.notifyLocked(Event{Type: EventNodeUpdated, ID: id})
	return true
}

// AddEdge inserts a copy of e. Edges are only accepted in custom scenarios,
// between two distinct existing nodes, and at most once per ordered pair.
func (g *Graph) AddEdge(e model.Edge) (string, bool) {
	if e.Source == "" || e.Target == "" || e.Source == e.Target {
		return "", false
	}
	e = deep.MustCopy(e)
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	g.mu.Lock()
	if g.typ != model.ScenarioCustom ||
		g.nodeIndex(e.Source) < 0 || g.nodeIndex(e.Target) < 0 ||
		g.edgeIndex(e.ID) >= 0 || g.hasLink(e.Source, e.Target) {
		g.mu.Unlock()
		return "", false
	}
	g.edges = append(g.edges, e)
	g.notifyLocked(Event{Type: EventEdgeAdded, ID: e.ID})
	return e.ID, true
}

func (g *Graph) hasLink(source, target string) bool {
	for _, e := range g.edges {
		if e.Source == source && e.Target == target {
			return true
		}
	}
	return false
}

// RemoveEdge deletes an edge.
func (g *Graph) RemoveEdge(id string) bool {
	g.mu.Lock()
	i := g.edgeIndex(id)
	if i < 0 {
		g.mu.Unlock()
		return false
	}
	g.edges = append(g.edges[:i], g.edges[i+1:]...)
	g.notifyLocked(Event{Type: EventEdgeRemoved, ID: id})
	return true
}

// UpdateEdgeData merges a patch into an edge's link attributes.
func (g *Graph) UpdateEdgeData(id string, p model.EdgePatch) bool {
	g.mu.Lock()
	i := g.edgeIndex(id)
	if i < 0 {
		g.mu.Unlock()
		return false
	}
	p.Apply(&g.edges[i])
	g.notifyLocked(Event{Type: EventEdgeUpdated, ID: id})
	return true
}

// SetScenarioType switches between realistic and custom. Moving to
// realistic deletes every edge. It returns false when t is unknown or
// already current.
func (g *Graph) SetScenarioType(t model.ScenarioType) bool {
	if !t.Valid() {
		return false
	}
	g.mu.Lock()
	if g.typ == t {
		g.mu.Unlock()
		return false
	}
	g.typ = t
	if t == model.ScenarioRealistic {
		g.edges = []model.Edge{}
	}
	g.notifyLocked(Event{Type: EventScenarioTypeChanged})
	return true
}

// SetName renames the scenario.
func (g *Graph) SetName(name string) bool {
	g.mu.Lock()
	if g.name == name {
		g.mu.Unlock()
		return false
	}
	g.name = name
	g.notifyLocked(Event{Type: EventRenamed})
	return true
}

// SetViewport stores the surface pan and zoom. Non-finite values and a
// non-positive zoom are rejected.
func (g *Graph) SetViewport(v model.Viewport) bool {
	if !v.Valid() {
		return false
	}
	g.mu.Lock()
	if g.viewport == v {
		g.mu.Unlock()
		return false
	}
	g.viewport = v
	g.notifyLocked(Event{Type: EventViewportChanged})
	return true
}

// Restore replaces nodes, edges and viewport with a copy of snap. The
// scenario type is kept; a realistic scenario drops any edges in snap.
func (g *Graph) Restore(snap model.Snapshot) {
	c := snap.Clone()
	if c.Nodes == nil {
		c.Nodes = []model.Node{}
	}
	if c.Edges == nil {
		c.Edges = []model.Edge{}
	}
	if !c.Viewport.Valid() {
		c.Viewport = model.DefaultViewport
	}

	g.mu.Lock()
	if g.typ == model.ScenarioRealistic {
		c.Edges = []model.Edge{}
	}
	g.nodes, g.edges, g.viewport = c.Nodes, c.Edges, c.Viewport
	g.notifyLocked(Event{Type: EventRestored})
}
