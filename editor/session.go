// Package editor hosts the editing session: the live scenario graph, its
// undo history, selection, and the auto-save wiring between them.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/scenario-editor/geo"
	"github.com/signalsfoundry/scenario-editor/graph"
	"github.com/signalsfoundry/scenario-editor/history"
	"github.com/signalsfoundry/scenario-editor/internal/logging"
	"github.com/signalsfoundry/scenario-editor/internal/persistence"
	"github.com/signalsfoundry/scenario-editor/internal/store"
	"github.com/signalsfoundry/scenario-editor/model"
	"github.com/signalsfoundry/scenario-editor/movement"
	"github.com/signalsfoundry/scenario-editor/orbit"
	"github.com/signalsfoundry/scenario-editor/timectrl"
)

// ErrUnknownTemplate is returned by New for a template name that does not
// exist.
var ErrUnknownTemplate = errors.New("editor: unknown template")

// MetricsRecorder receives scenario size updates.
type MetricsRecorder interface {
	SetScenarioCounts(nodes, edges int)
}

// Selection is the node or edge the operator is working on. It is never
// part of history.
type Selection struct {
	NodeID string
	EdgeID string
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return s.NodeID == "" && s.EdgeID == "" }

// PathPoint names one end of a movement path.
type PathPoint int

const (
	PathStart PathPoint = iota
	PathEnd
)

// Option customises Session construction.
type Option func(*Session)

// WithLogger attaches a structured logger to the session and its
// coordinator.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches a recorder for scenario size.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock replaces the wall clock for auto-save debouncing and ground
// track evaluation.
func WithClock(c timectrl.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithHistoryOptions forwards options to the undo history.
func WithHistoryOptions(opts ...history.Option) Option {
	return func(s *Session) { s.histOpts = append(s.histOpts, opts...) }
}

// WithPersistenceOptions forwards options to the persistence coordinator.
func WithPersistenceOptions(opts ...persistence.Option) Option {
	return func(s *Session) { s.persistOpts = append(s.persistOpts, opts...) }
}

// Session is one editing flow over one scenario at a time.
type Session struct {
	graph *graph.Graph
	hist  *history.Manager
	coord *persistence.Coordinator

	log         logging.Logger
	metrics     MetricsRecorder
	clock       timectrl.Clock
	histOpts    []history.Option
	persistOpts []persistence.Option

	mu          sync.Mutex
	selection   Selection
	trackers    map[string]*orbit.Tracker
	unsubscribe func()
	closed      bool
}

// NewSession builds a session over st holding an empty ephemeral
// scenario until Open or New is called.
func NewSession(st store.Store, opts ...Option) *Session {
	s := &Session{
		log:      logging.Noop(),
		clock:    timectrl.Wall(),
		trackers: make(map[string]*orbit.Tracker),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.graph = graph.New(model.NewScenario(persistence.NewSessionKey(), "", model.ScenarioCustom))
	s.hist = history.NewManager(s.graph.Snapshot(), s.histOpts...)
	s.coord = persistence.New(st, append([]persistence.Option{
		persistence.WithClock(s.clock),
		persistence.WithLogger(s.log),
	}, append(s.persistOpts, persistence.WithGuard(s.hist))...)...)
	s.unsubscribe = s.graph.Subscribe(s.onChange)
	s.reportCounts()
	return s
}

// onChange runs after every applied graph mutation. It must not take s.mu:
// mutators may hold it while the graph notifies.
func (s *Session) onChange(ev graph.Event) {
	switch {
	case ev.Type.Structural():
		s.hist.Record(s.graph.Snapshot())
		s.reportCounts()
	case ev.Type == graph.EventRestored || ev.Type == graph.EventLoaded:
		s.reportCounts()
	}
	s.scheduleAutoSave()
}

func (s *Session) scheduleAutoSave() {
	s.coord.ScheduleAutoSave(s.graph.ID(), s.graph.Scenario())
}

func (s *Session) reportCounts() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetScenarioCounts(s.graph.Counts())
}

// Open loads the scenario stored under id, or starts a fresh one when id
// is empty or unknown. History restarts at the loaded state.
func (s *Session) Open(ctx context.Context, id string) error {
	sc, err := s.coord.Open(ctx, id)
	if err != nil {
		return err
	}
	s.load(sc)
	s.log.Info(logging.ContextWithScenarioID(ctx, sc.ID), "session opened",
		logging.String("scenario_type", string(sc.ScenarioType)))
	return nil
}

// New starts a scenario from a named template. An empty id yields an
// ephemeral session key. Nothing is written until the first save.
func (s *Session) New(ctx context.Context, template, id string) error {
	if id == "" {
		id = persistence.NewSessionKey()
	}
	sc, ok := model.FromTemplate(template, id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
	}
	s.load(sc)
	s.log.Info(logging.ContextWithScenarioID(ctx, id), "session started from template",
		logging.String("template", template))
	return nil
}

func (s *Session) load(sc *model.Scenario) {
	s.coord.ResetViewportGate()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.RunProgrammatic(func() { s.graph.Load(sc) })
	s.hist.Reset(s.graph.Snapshot())
	s.selection = Selection{}
	s.trackers = make(map[string]*orbit.Tracker)
}

// ID returns the key of the open scenario.
func (s *Session) ID() string { return s.graph.ID() }

// Scenario returns a copy of the open scenario.
func (s *Session) Scenario() *model.Scenario { return s.graph.Scenario() }

// Graph exposes the live graph for read access and subscription.
func (s *Session) Graph() *graph.Graph { return s.graph }

// Coordinator exposes the persistence coordinator.
func (s *Session) Coordinator() *persistence.Coordinator { return s.coord }

// AddNode inserts a node and returns its id.
func (s *Session) AddNode(n model.Node) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.AddNode(n)
}

// RemoveNode deletes a node and its edges, dropping them from the
// selection.
func (s *Session) RemoveNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.graph.RemoveNode(id) {
		return false
	}
	delete(s.trackers, id)
	if s.selection.NodeID == id {
		s.selection.NodeID = ""
	}
	if s.selection.EdgeID != "" {
		if _, ok := s.graph.Edge(s.selection.EdgeID); !ok {
			s.selection.EdgeID = ""
		}
	}
	return true
}

// UpdateNodeData merges a field-level patch into a node.
func (s *Session) UpdateNodeData(id string, p model.NodePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.UpdateNodeData(id, p)
}

// MoveNode sets a node's canvas position.
func (s *Session) MoveNode(id string, pos model.Position) bool {
	return s.UpdateNodeData(id, model.NodePatch{Position: model.Set(pos)})
}

// SetMovementPattern switches a node's movement pattern.
func (s *Session) SetMovementPattern(id string, pattern model.PatternType) bool {
	return s.UpdateNodeData(id, model.NodePatch{
		Movement: &model.MovementPatch{Pattern: model.Set(pattern)},
	})
}

// AddEdge links two nodes. Only custom scenarios accept edges.
func (s *Session) AddEdge(e model.Edge) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.AddEdge(e)
}

// RemoveEdge deletes an edge.
func (s *Session) RemoveEdge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.graph.RemoveEdge(id) {
		return false
	}
	if s.selection.EdgeID == id {
		s.selection.EdgeID = ""
	}
	return true
}

// UpdateEdgeData merges a patch into an edge.
func (s *Session) UpdateEdgeData(id string, p model.EdgePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.UpdateEdgeData(id, p)
}

// SetScenarioType switches the scenario type. The change is not undoable:
// history restarts from the new state, and the change is auto-saved.
func (s *Session) SetScenarioType(t model.ScenarioType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed bool
	s.hist.RunProgrammatic(func() { changed = s.graph.SetScenarioType(t) })
	if !changed {
		return false
	}
	s.hist.Reset(s.graph.Snapshot())
	if s.selection.EdgeID != "" {
		if _, ok := s.graph.Edge(s.selection.EdgeID); !ok {
			s.selection.EdgeID = ""
		}
	}
	s.reportCounts()
	s.scheduleAutoSave()
	return true
}

// Rename changes the scenario's display name.
func (s *Session) Rename(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.SetName(name)
}

// ReportViewport records the rendering surface's pan and zoom. The first
// valid report enables auto-save. Viewport changes are saved but never
// recorded in history.
func (s *Session) ReportViewport(v model.Viewport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.coord.ReportViewport(v) {
		return false
	}
	s.graph.SetViewport(v)
	return true
}

// Select makes a node the current selection.
func (s *Session) Select(nodeID string) bool {
	if _, ok := s.graph.Node(nodeID); !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = Selection{NodeID: nodeID}
	return true
}

// SelectEdge makes an edge the current selection.
func (s *Session) SelectEdge(edgeID string) bool {
	if _, ok := s.graph.Edge(edgeID); !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = Selection{EdgeID: edgeID}
	return true
}

// Selection returns the current selection.
func (s *Session) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// ClearSelection drops the current selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = Selection{}
}

// replayTarget adapts the session for history replay. It runs while the
// session lock is held by Undo or Redo.
type replayTarget struct{ s *Session }

func (r replayTarget) Restore(snap model.Snapshot) { r.s.graph.Restore(snap) }
func (r replayTarget) ClearSelection()             { r.s.selection = Selection{} }

// Undo restores the previous history entry. At the oldest entry it does
// nothing and returns false.
func (s *Session) Undo() bool {
	return s.step(s.hist.Undo)
}

// Redo re-applies the next history entry. At the newest entry it does
// nothing and returns false.
func (s *Session) Redo() bool {
	return s.step(s.hist.Redo)
}

func (s *Session) step(fn func(history.Target) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn(replayTarget{s}) {
		return false
	}
	s.scheduleAutoSave()
	return true
}

// CanUndo reports whether Undo would change anything.
func (s *Session) CanUndo() bool { return s.hist.CanUndo() }

// CanRedo reports whether Redo would change anything.
func (s *Session) CanRedo() bool { return s.hist.CanRedo() }

// History exposes the undo history for inspection.
func (s *Session) History() *history.Manager { return s.hist }

// PlaceNode commits the geographic point under a screen position as a
// GS or UE node's location. It returns false when the point is off the
// globe or the node cannot carry ground data.
func (s *Session) PlaceNode(id string, screen geo.Point, proj geo.Projection) bool {
	n, ok := s.graph.Node(id)
	if !ok || n.Kind == model.KindSatellite {
		return false
	}
	ll := geo.ScreenToGeo(s.graph.Viewport(), screen, proj)
	if ll == nil {
		return false
	}
	return s.UpdateNodeData(id, model.NodePatch{Ground: &model.GroundPatch{
		Latitude:  model.SetFloat(ll.Lat),
		Longitude: model.SetFloat(ll.Lon),
	}})
}

// PlacePathPoint commits the geographic point under a screen position as
// the start or end of a node's movement path.
func (s *Session) PlacePathPoint(id string, which PathPoint, screen geo.Point, proj geo.Projection) bool {
	n, ok := s.graph.Node(id)
	if !ok || n.Movement == nil || n.Movement.Pattern == model.PatternStatic {
		return false
	}
	ll := geo.ScreenToGeo(s.graph.Viewport(), screen, proj)
	if ll == nil {
		return false
	}
	p := model.MovementPatch{}
	switch which {
	case PathStart:
		p.StartLon, p.StartLat = model.SetFloat(ll.Lon), model.SetFloat(ll.Lat)
	case PathEnd:
		p.EndLon, p.EndLat = model.SetFloat(ll.Lon), model.SetFloat(ll.Lat)
	default:
		return false
	}
	return s.UpdateNodeData(id, model.NodePatch{Movement: &p})
}

// NodeLocation projects a GS or UE node onto the canvas. It returns nil
// when the node has no complete location or sits on the hidden side.
func (s *Session) NodeLocation(id string, proj geo.Projection) *geo.Point {
	n, ok := s.graph.Node(id)
	if !ok || n.Ground == nil || n.Ground.Latitude == nil || n.Ground.Longitude == nil {
		return nil
	}
	return geo.GeoToCanvas(geo.LonLat{Lon: *n.Ground.Longitude, Lat: *n.Ground.Latitude}, proj)
}

// OrbitParams derives display values for a SAT node. A validation error
// is returned alongside the last good values, which stay in place until
// the input is fixed.
func (s *Session) OrbitParams(id string) (*orbit.Params, error) {
	n, ok := s.graph.Node(id)
	if !ok || n.Kind != model.KindSatellite {
		return nil, model.NewValidationError("node", "%q is not a satellite", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[id]
	if !ok {
		t = &orbit.Tracker{}
		s.trackers[id] = t
	}
	return t.Update(orbit.InputFrom(n.Satellite))
}

// SubSatellitePoint places a SAT node on the globe at the session clock's
// current time.
func (s *Session) SubSatellitePoint(id string) (*orbit.SubPoint, error) {
	n, ok := s.graph.Node(id)
	if !ok || n.Kind != model.KindSatellite {
		return nil, model.NewValidationError("node", "%q is not a satellite", id)
	}
	return orbit.GroundTrack(orbit.InputFrom(n.Satellite), s.clock.Now())
}

// MovementSpeed returns the speed a node moves at, if it moves.
func (s *Session) MovementSpeed(id string) (float64, bool) {
	n, ok := s.graph.Node(id)
	if !ok {
		return 0, false
	}
	return movement.EffectiveSpeedKmh(n.Movement)
}

// MovementLeg returns how long one pass along a node's path takes.
func (s *Session) MovementLeg(id string) (time.Duration, bool) {
	n, ok := s.graph.Node(id)
	if !ok {
		return 0, false
	}
	return movement.LegDuration(n.Movement)
}

// Validate checks the open scenario, including each node's movement.
func (s *Session) Validate() error {
	sc := s.graph.Scenario()
	if err := model.Validate(sc); err != nil {
		return err
	}
	for _, n := range sc.Nodes {
		if err := movement.Validate(n.Movement); err != nil {
			return fmt.Errorf("node %q: %w", n.ID, err)
		}
	}
	return nil
}

// Save writes the open scenario now.
func (s *Session) Save(ctx context.Context) error {
	return s.coord.Save(ctx, s.graph.ID(), s.graph.Scenario())
}

// SaveAs writes the open scenario under a new key and keeps editing it
// there. The previous key is left as it was last written.
func (s *Session) SaveAs(ctx context.Context, id string) error {
	if id == "" {
		return store.ErrInvalidID
	}
	s.mu.Lock()
	old := s.graph.ID()
	s.coord.Cancel(old)
	s.graph.SetID(id)
	s.mu.Unlock()
	if err := s.Save(ctx); err != nil {
		s.mu.Lock()
		s.graph.SetID(old)
		s.mu.Unlock()
		return err
	}
	return nil
}

// Delete removes the open scenario from the store. The in-memory copy
// stays open.
func (s *Session) Delete(ctx context.Context) error {
	return s.coord.Delete(ctx, s.graph.ID())
}

// List returns summaries of the stored scenarios.
func (s *Session) List(ctx context.Context) ([]model.Summary, error) {
	return s.coord.List(ctx)
}

// Close stops observing the graph and flushes any pending auto-save.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.unsubscribe()
	s.mu.Unlock()
	return s.coord.Close(ctx)
}
