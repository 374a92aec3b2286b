package editor

import (
	"errors"
	"strings"
	"testing"

	"github.com/signalsfoundry/scenario-editor/model"
)

const sampleScript = `{
  "steps": [
    {"op": "viewport", "viewport": {"x": 0, "y": 0, "zoom": 1}},
    {"op": "rename", "value": "Scripted"},
    {"op": "addNode", "node": {"id": "gs", "kind": "GS", "name": "Gateway"}},
    {"op": "addNode", "node": {"id": "ue", "kind": "UE"}},
    {"op": "updateNode", "id": "gs", "fields": {"latitude": "48.1", "longitude": "11.6", "altitudeMeters": "520"}},
    {"op": "updateNode", "id": "gs", "fields": {"altitudeMeters": ""}},
    {"op": "addEdge", "edge": {"id": "link", "source": "gs", "target": "ue"}},
    {"op": "updateEdge", "id": "link", "fields": {"frequency": "2.4e9", "channelModel": "awgn"}},
    {"op": "pattern", "id": "ue", "value": "LINEAR"},
    {"op": "updateNode", "id": "ue", "fields": {"speedKmh": "30", "pathBehavior": "bounce", "position": "12, 34"}},
    {"op": "addNode", "node": {"id": "tmp", "kind": "SAT"}},
    {"op": "undo"},
    {"op": "redo"},
    {"op": "removeNode", "id": "tmp"}
  ]
}`

func TestApplyScript(t *testing.T) {
	s, _, _ := newTestSession(t)
	sc, err := ParseScript(strings.NewReader(sampleScript))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if err := s.Apply(sc); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got := s.Scenario()
	if got.Name != "Scripted" || len(got.Nodes) != 2 || len(got.Edges) != 1 {
		t.Fatalf("scenario = %+v", got)
	}
	g, _ := s.Graph().Node("gs")
	if g.Ground == nil || *g.Ground.Latitude != 48.1 || *g.Ground.Longitude != 11.6 {
		t.Fatalf("ground = %+v", g.Ground)
	}
	if g.Ground.AltitudeMeters != nil {
		t.Fatalf("empty altitude did not clear the field: %v", *g.Ground.AltitudeMeters)
	}
	ue, _ := s.Graph().Node("ue")
	if ue.Movement == nil || ue.Movement.Linear == nil || *ue.Movement.Linear.SpeedKmh != 30 ||
		ue.Movement.Linear.PathBehavior != model.BehaviorBounce {
		t.Fatalf("movement = %+v", ue.Movement)
	}
	if ue.Position != (model.Position{X: 12, Y: 34}) {
		t.Fatalf("position = %+v", ue.Position)
	}
	e, _ := s.Graph().Edge("link")
	if e.ChannelModel != "awgn" || e.Frequency == nil || *e.Frequency != 2.4e9 {
		t.Fatalf("edge = %+v", e)
	}
}

func TestParseScriptRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"unknown op":    `{"steps": [{"op": "explode"}]}`,
		"missing op":    `{"steps": [{"id": "x"}]}`,
		"unknown field": `{"steps": [{"op": "undo", "bogus": 1}]}`,
		"not json":      `steps:`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseScript(strings.NewReader(raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestApplyStopsAtRejectedStep(t *testing.T) {
	s, _, _ := newTestSession(t)
	sc := &Script{Steps: []Step{
		{Op: "addNode", Node: &model.Node{ID: "a", Kind: model.KindGroundStation}},
		{Op: "addNode", Node: &model.Node{ID: "a", Kind: model.KindGroundStation}},
		{Op: "addNode", Node: &model.Node{ID: "b", Kind: model.KindGroundStation}},
	}}
	err := s.Apply(sc)
	var se *StepError
	if !errors.As(err, &se) || se.Index != 1 || !errors.Is(err, ErrRejected) {
		t.Fatalf("Apply err = %v", err)
	}
	if _, ok := s.Graph().Node("b"); ok {
		t.Fatalf("steps after the failure were applied")
	}
}

func TestApplyBoundaryUndoIsNotAFailure(t *testing.T) {
	s, _, _ := newTestSession(t)
	if err := s.Apply(&Script{Steps: []Step{{Op: "undo"}, {Op: "redo"}}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestNodePatchFromFields(t *testing.T) {
	if _, err := NodePatchFromFields(model.KindGroundStation, map[string]string{"tle": "x"}); !model.IsValidationError(err) {
		t.Fatalf("orbital field on GS err = %v", err)
	}
	if _, err := NodePatchFromFields(model.KindSatellite, map[string]string{"latitude": "1"}); !model.IsValidationError(err) {
		t.Fatalf("ground field on SAT err = %v", err)
	}
	if _, err := NodePatchFromFields(model.KindUserTerminal, map[string]string{"latitude": "north"}); !model.IsValidationError(err) {
		t.Fatalf("non-numeric err = %v", err)
	}
	if _, err := NodePatchFromFields(model.KindUserTerminal, map[string]string{"colour": "red"}); err == nil {
		t.Fatalf("unknown field accepted")
	}
	if _, err := NodePatchFromFields(model.KindUserTerminal, map[string]string{"position": "1"}); err == nil {
		t.Fatalf("malformed position accepted")
	}
	if _, err := NodePatchFromFields(model.KindUserTerminal, map[string]string{"pattern": "LINEAER"}); !model.IsValidationError(err) {
		t.Fatalf("unknown pattern err = %v", err)
	}

	p, err := NodePatchFromFields(model.KindSatellite, map[string]string{"eccentricity": "", "semiMajorAxisKm": "7000"})
	if err != nil {
		t.Fatalf("NodePatchFromFields: %v", err)
	}
	if p.Satellite == nil || !p.Satellite.Keplerian.Eccentricity.IsClear() {
		t.Fatalf("empty eccentricity should clear: %+v", p.Satellite)
	}
	if v, ok := p.Satellite.Keplerian.SemiMajorAxisKm.Value(); !ok || v != 7000 {
		t.Fatalf("semi-major axis = %v,%v", v, ok)
	}
}
