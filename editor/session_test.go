package editor

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/scenario-editor/geo"
	"github.com/signalsfoundry/scenario-editor/internal/persistence"
	"github.com/signalsfoundry/scenario-editor/internal/store"
	"github.com/signalsfoundry/scenario-editor/model"
	"github.com/signalsfoundry/scenario-editor/timectrl"
)

type countingStore struct {
	*store.Memory

	mu    sync.Mutex
	saves int
}

func (c *countingStore) Save(ctx context.Context, s *model.Scenario) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.Memory.Save(ctx, s)
}

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

type countsRecorder struct{ nodes, edges int }

func (r *countsRecorder) SetScenarioCounts(nodes, edges int) { r.nodes, r.edges = nodes, edges }

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, opts ...Option) (*Session, *countingStore, *timectrl.TimeController) {
	t.Helper()
	st := &countingStore{Memory: store.NewMemory()}
	tc := timectrl.NewTimeController(epoch)
	s := NewSession(st, append([]Option{WithClock(tc)}, opts...)...)
	if err := s.Open(context.Background(), "scn"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.ReportViewport(model.DefaultViewport)
	return s, st, tc
}

func gs(id string) model.Node {
	return model.Node{ID: id, Kind: model.KindGroundStation, Name: id}
}

func TestEditsAreUndoableExactly(t *testing.T) {
	s, _, _ := newTestSession(t)

	before := s.Graph().Snapshot()
	s.AddNode(gs("a"))
	s.AddNode(gs("b"))
	afterB := s.Graph().Snapshot()
	s.AddEdge(model.Edge{ID: "ab", Source: "a", Target: "b"})
	afterEdge := s.Graph().Snapshot()

	if !s.Undo() {
		t.Fatalf("Undo returned false")
	}
	if got := s.Graph().Snapshot(); !reflect.DeepEqual(got, afterB) {
		t.Fatalf("undo did not restore previous state: %+v", got)
	}
	s.Undo()
	s.Undo()
	if got := s.Graph().Snapshot(); !reflect.DeepEqual(got, before) {
		t.Fatalf("undo to start = %+v", got)
	}
	if s.Undo() {
		t.Fatalf("Undo at boundary returned true")
	}
	s.Redo()
	s.Redo()
	s.Redo()
	if got := s.Graph().Snapshot(); !reflect.DeepEqual(got, afterEdge) {
		t.Fatalf("redo to end = %+v", got)
	}
	if s.Redo() {
		t.Fatalf("Redo at boundary returned true")
	}
}

func TestNewEditDiscardsRedoBranch(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.AddNode(gs("a"))
	s.AddNode(gs("b"))
	s.Undo()
	s.AddNode(gs("c"))
	if s.CanRedo() {
		t.Fatalf("redo still possible after new edit")
	}
	if _, ok := s.Graph().Node("b"); ok {
		t.Fatalf("undone node reappeared")
	}
}

func TestUndoClearsSelection(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.AddNode(gs("a"))
	s.AddNode(gs("b"))
	if !s.Select("a") {
		t.Fatalf("Select failed")
	}
	s.Undo()
	if !s.Selection().Empty() {
		t.Fatalf("selection survived undo: %+v", s.Selection())
	}
	s.SelectEdge("missing")
	if !s.Selection().Empty() {
		t.Fatalf("selected an unknown edge")
	}
}

func TestRemoveNodeDropsSelectionAndEdges(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.AddNode(gs("a"))
	s.AddNode(gs("b"))
	s.AddEdge(model.Edge{ID: "ab", Source: "a", Target: "b"})
	s.SelectEdge("ab")

	if !s.RemoveNode("a") {
		t.Fatalf("RemoveNode failed")
	}
	if _, edges := s.Graph().Counts(); edges != 0 {
		t.Fatalf("incident edge not removed")
	}
	if !s.Selection().Empty() {
		t.Fatalf("selection still points at removed edge")
	}
	if s.RemoveNode("a") {
		t.Fatalf("second RemoveNode returned true")
	}
}

func TestOpenDoesNotRecordHistory(t *testing.T) {
	st := store.NewMemory()
	seed := model.NewScenario("seeded", "Seeded", model.ScenarioCustom)
	seed.Nodes = append(seed.Nodes, gs("x"))
	if err := st.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := NewSession(st, WithClock(timectrl.NewTimeController(epoch)))
	if err := s.Open(context.Background(), "seeded"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.CanUndo() || s.History().Len() != 1 {
		t.Fatalf("load was recorded: len=%d", s.History().Len())
	}
	if _, ok := s.Graph().Node("x"); !ok {
		t.Fatalf("stored node missing after Open")
	}
}

func TestOpenUnknownAndEmptyIDs(t *testing.T) {
	s := NewSession(store.NewMemory())
	ctx := context.Background()
	if err := s.Open(ctx, ""); err != nil {
		t.Fatalf("Open(empty): %v", err)
	}
	if !persistence.IsSessionKey(s.ID()) {
		t.Fatalf("ephemeral id = %q", s.ID())
	}
	if err := s.Open(ctx, "brand-new"); err != nil {
		t.Fatalf("Open(unknown): %v", err)
	}
	if s.ID() != "brand-new" {
		t.Fatalf("id = %q", s.ID())
	}
}

func TestNewFromTemplate(t *testing.T) {
	s := NewSession(store.NewMemory())
	ctx := context.Background()
	if err := s.New(ctx, "custom-demo", ""); err != nil {
		t.Fatalf("New: %v", err)
	}
	if nodes, edges := s.Graph().Counts(); nodes != 3 || edges != 2 {
		t.Fatalf("counts = %d,%d", nodes, edges)
	}
	if s.CanUndo() {
		t.Fatalf("template load recorded in history")
	}
	if err := s.New(ctx, "nope", "x"); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("New(nope) err = %v", err)
	}
}

func TestScenarioTypeChangeResetsHistory(t *testing.T) {
	s, st, tc := newTestSession(t)
	s.AddNode(gs("a"))
	s.AddNode(gs("b"))
	s.AddEdge(model.Edge{ID: "ab", Source: "a", Target: "b"})
	tc.Advance(time.Second)
	saved := st.count()

	if !s.SetScenarioType(model.ScenarioRealistic) {
		t.Fatalf("SetScenarioType failed")
	}
	if _, edges := s.Graph().Counts(); edges != 0 {
		t.Fatalf("edges survived switch to realistic")
	}
	if s.CanUndo() {
		t.Fatalf("type change is undoable")
	}
	if _, ok := s.AddEdge(model.Edge{Source: "a", Target: "b"}); ok {
		t.Fatalf("edge accepted in realistic mode")
	}
	tc.Advance(time.Second)
	if st.count() != saved+1 {
		t.Fatalf("type change not auto-saved")
	}
	if s.SetScenarioType(model.ScenarioRealistic) {
		t.Fatalf("no-op type change returned true")
	}
}

func TestBurstOfEditsWritesOnce(t *testing.T) {
	s, st, tc := newTestSession(t)
	for i := 0; i < 10; i++ {
		s.AddNode(model.Node{Kind: model.KindUserTerminal})
		tc.Advance(30 * time.Millisecond)
	}
	if st.count() != 0 {
		t.Fatalf("wrote during burst")
	}
	tc.Advance(persistence.DefaultQuietPeriod)
	if st.count() != 1 {
		t.Fatalf("writes = %d, want 1", st.count())
	}
	stored, err := st.Load(context.Background(), "scn")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(stored.Nodes) != 10 {
		t.Fatalf("stored %d nodes, want final state", len(stored.Nodes))
	}
}

func TestNoAutoSaveBeforeViewportReported(t *testing.T) {
	st := &countingStore{Memory: store.NewMemory()}
	tc := timectrl.NewTimeController(epoch)
	s := NewSession(st, WithClock(tc))
	if err := s.Open(context.Background(), "scn"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.AddNode(gs("a"))
	tc.Advance(time.Second)
	if st.count() != 0 {
		t.Fatalf("auto-saved before the surface reported a viewport")
	}
	if s.ReportViewport(model.Viewport{Zoom: math.NaN()}) {
		t.Fatalf("NaN viewport accepted")
	}
	s.ReportViewport(model.Viewport{X: 3, Y: 4, Zoom: 2})
	tc.Advance(time.Second)
	if st.count() != 1 {
		t.Fatalf("viewport report did not save, writes = %d", st.count())
	}
}

func TestNewFromTemplateWaitsForViewport(t *testing.T) {
	s, st, tc := newTestSession(t)
	stored := model.Viewport{X: 40, Y: -12, Zoom: 3}
	s.ReportViewport(stored)
	tc.Advance(time.Second)
	writes := st.count()

	if err := s.New(context.Background(), "empty-custom", "scn"); err != nil {
		t.Fatalf("New: %v", err)
	}
	s.AddNode(gs("a"))
	tc.Advance(time.Second)
	if st.count() != writes {
		t.Fatalf("auto-saved template state before the surface reported a viewport")
	}

	s.ReportViewport(stored)
	tc.Advance(time.Second)
	if st.count() != writes+1 {
		t.Fatalf("writes = %d, want %d after viewport report", st.count(), writes+1)
	}
	got, err := st.Load(context.Background(), "scn")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Viewport != stored || len(got.Nodes) != 1 {
		t.Fatalf("stored %+v with %d nodes", got.Viewport, len(got.Nodes))
	}
}

func TestUndoIsAutoSavedAfterReplay(t *testing.T) {
	s, st, tc := newTestSession(t)
	s.AddNode(gs("a"))
	tc.Advance(time.Second)
	s.Undo()
	tc.Advance(time.Second)
	if st.count() != 2 {
		t.Fatalf("writes = %d, want edit and undo saved", st.count())
	}
	stored, _ := st.Load(context.Background(), "scn")
	if len(stored.Nodes) != 0 {
		t.Fatalf("stored state does not reflect undo")
	}
}

func TestViewportChangeSavesWithoutHistory(t *testing.T) {
	s, st, tc := newTestSession(t)
	s.ReportViewport(model.Viewport{X: 10, Y: 20, Zoom: 1.5})
	if s.CanUndo() {
		t.Fatalf("viewport change recorded in history")
	}
	tc.Advance(time.Second)
	if st.count() != 1 {
		t.Fatalf("viewport change not auto-saved")
	}
}

func TestPlaceNodeCommitsCoordinates(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.AddNode(gs("g"))
	s.AddNode(model.Node{ID: "sat", Kind: model.KindSatellite})
	proj := geo.Equirectangular{Width: 360, Height: 180}

	if !s.PlaceNode("g", geo.Point{X: 190, Y: 70}, proj) {
		t.Fatalf("PlaceNode failed")
	}
	n, _ := s.Graph().Node("g")
	if math.Abs(*n.Ground.Longitude-10) > 1e-9 || math.Abs(*n.Ground.Latitude-20) > 1e-9 {
		t.Fatalf("placed at %v,%v", *n.Ground.Longitude, *n.Ground.Latitude)
	}
	if s.PlaceNode("sat", geo.Point{X: 10, Y: 10}, proj) {
		t.Fatalf("placed a satellite on the ground")
	}
	ortho := geo.OrthographicFor(200, 200, geo.LonLat{})
	if s.PlaceNode("g", geo.Point{X: 0, Y: 0}, ortho) {
		t.Fatalf("placed a point outside the globe")
	}
	p := s.NodeLocation("g", proj)
	if p == nil || math.Abs(p.X-190) > 1e-9 || math.Abs(p.Y-70) > 1e-9 {
		t.Fatalf("NodeLocation = %+v", p)
	}
}

func TestPlacePathPoint(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.AddNode(gs("g"))
	proj := geo.Equirectangular{Width: 360, Height: 180}
	if s.PlacePathPoint("g", PathStart, geo.Point{X: 180, Y: 90}, proj) {
		t.Fatalf("placed a path point on a static node")
	}
	if !s.SetMovementPattern("g", model.PatternLinear) {
		t.Fatalf("SetMovementPattern failed")
	}
	s.PlacePathPoint("g", PathStart, geo.Point{X: 180, Y: 90}, proj)
	s.PlacePathPoint("g", PathEnd, geo.Point{X: 190, Y: 90}, proj)
	n, _ := s.Graph().Node("g")
	ep := n.Movement.Linear.PathEndpoints
	if *ep.StartLon != 0 || *ep.StartLat != 0 || *ep.EndLon != 10 || *ep.EndLat != 0 {
		t.Fatalf("endpoints = %+v", ep)
	}
	if !s.UpdateNodeData("g", model.NodePatch{Movement: &model.MovementPatch{SpeedKmh: model.SetFloat(60)}}) {
		t.Fatalf("speed update failed")
	}
	if v, ok := s.MovementSpeed("g"); !ok || v != 60 {
		t.Fatalf("MovementSpeed = %v,%v", v, ok)
	}
	if d, ok := s.MovementLeg("g"); !ok || d <= 0 {
		t.Fatalf("MovementLeg = %v,%v", d, ok)
	}
}

func TestOrbitParamsKeepLastGoodValues(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.AddNode(model.Node{ID: "sat", Kind: model.KindSatellite})

	if p, err := s.OrbitParams("sat"); p != nil || err != nil {
		t.Fatalf("idle = %+v, %v", p, err)
	}
	s.UpdateNodeData("sat", model.NodePatch{Satellite: &model.SatellitePatch{
		InputMode: model.Set(model.InputTLE),
		TLE:       model.Set(model.ISSLine1 + "\n" + model.ISSLine2),
	}})
	good, err := s.OrbitParams("sat")
	if err != nil || good == nil {
		t.Fatalf("valid TLE: %+v, %v", good, err)
	}
	if good.PeriodMin < 92 || good.PeriodMin > 94 {
		t.Fatalf("ISS period = %v", good.PeriodMin)
	}

	s.UpdateNodeData("sat", model.NodePatch{Satellite: &model.SatellitePatch{TLE: model.Set("garbage")}})
	kept, err := s.OrbitParams("sat")
	if !model.IsValidationError(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if kept == nil || *kept != *good {
		t.Fatalf("last good values lost: %+v", kept)
	}

	if _, err := s.OrbitParams("missing"); err == nil {
		t.Fatalf("expected error for unknown node")
	}
}

func TestSubSatellitePointUsesSessionClock(t *testing.T) {
	s, _, _ := newTestSession(t, WithClock(timectrl.NewTimeController(time.Date(2021, 10, 2, 14, 0, 0, 0, time.UTC))))
	s.AddNode(model.Node{ID: "sat", Kind: model.KindSatellite, Satellite: &model.SatelliteData{
		InputMode: model.InputTLE,
		TLE:       model.ISSLine1 + "\n" + model.ISSLine2,
	}})
	sp, err := s.SubSatellitePoint("sat")
	if err != nil || sp == nil {
		t.Fatalf("SubSatellitePoint: %+v, %v", sp, err)
	}
	if math.Abs(sp.Latitude) > 52 {
		t.Fatalf("ISS latitude %v exceeds inclination", sp.Latitude)
	}
}

func TestSaveAsAndDelete(t *testing.T) {
	s, st, _ := newTestSession(t)
	ctx := context.Background()
	s.AddNode(gs("a"))
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.SaveAs(ctx, "copy"); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if s.ID() != "copy" {
		t.Fatalf("id after SaveAs = %q", s.ID())
	}
	list, err := s.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("List = %+v, %v", list, err)
	}
	if err := s.SaveAs(ctx, ""); !errors.Is(err, store.ErrInvalidID) {
		t.Fatalf("SaveAs(empty) err = %v", err)
	}
	if err := s.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Load(ctx, "copy"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("copy still stored: %v", err)
	}
	if _, err := st.Load(ctx, "scn"); err != nil {
		t.Fatalf("original lost: %v", err)
	}
}

func TestCloseFlushesPendingEdit(t *testing.T) {
	s, st, tc := newTestSession(t)
	s.AddNode(gs("a"))
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if st.count() != 1 {
		t.Fatalf("pending edit not flushed")
	}
	s.AddNode(gs("b"))
	tc.Advance(time.Second)
	if st.count() != 1 {
		t.Fatalf("edit after Close was saved")
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestMetricsFollowCounts(t *testing.T) {
	rec := &countsRecorder{}
	s, _, _ := newTestSession(t, WithMetrics(rec))
	s.AddNode(gs("a"))
	s.AddNode(gs("b"))
	s.AddEdge(model.Edge{Source: "a", Target: "b"})
	if rec.nodes != 2 || rec.edges != 1 {
		t.Fatalf("counts = %d,%d", rec.nodes, rec.edges)
	}
	s.Undo()
	if rec.edges != 0 {
		t.Fatalf("counts not updated on undo: %d", rec.edges)
	}
}

func TestValidateReportsMovementErrors(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.AddNode(gs("a"))
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	s.SetMovementPattern("a", model.PatternLinear)
	s.UpdateNodeData("a", model.NodePatch{Movement: &model.MovementPatch{SpeedKmh: model.SetFloat(-5)}})
	if err := s.Validate(); !model.IsValidationError(err) {
		t.Fatalf("Validate err = %v, want validation error", err)
	}
}
