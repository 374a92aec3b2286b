package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/signalsfoundry/scenario-editor/model"
)

// Step is one operation of an edit script. Field values are text as an
// operator would type them; an empty value clears a numeric field.
type Step struct {
	Op       string            `json:"op" validate:"required,oneof=addNode removeNode updateNode addEdge removeEdge updateEdge setType rename viewport pattern undo redo"`
	ID       string            `json:"id,omitempty"`
	Node     *model.Node       `json:"node,omitempty"`
	Edge     *model.Edge       `json:"edge,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Value    string            `json:"value,omitempty"`
	Viewport *model.Viewport   `json:"viewport,omitempty"`
}

// Script is an ordered list of steps.
type Script struct {
	Steps []Step `json:"steps" validate:"dive"`
}

var stepValidator = validator.New()

// ParseScript decodes and validates an edit script.
func ParseScript(r io.Reader) (*Script, error) {
	var sc Script
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := stepValidator.Struct(&sc); err != nil {
		return nil, model.NewValidationError("script", "%v", err)
	}
	return &sc, nil
}

// StepError reports the step a script stopped at.
type StepError struct {
	Index int
	Op    string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ErrRejected marks a step the session refused as a no-op.
var ErrRejected = errors.New("rejected")

// Apply runs every step against the session, stopping at the first step
// that is malformed or rejected. Undo and redo at a history boundary are
// not failures.
func (s *Session) Apply(sc *Script) error {
	for i, st := range sc.Steps {
		if err := s.applyStep(st); err != nil {
			return &StepError{Index: i, Op: st.Op, Err: err}
		}
	}
	return nil
}

func (s *Session) applyStep(st Step) error {
	ok := true
	switch st.Op {
	case "addNode":
		if st.Node == nil {
			return model.NewValidationError("node", "is required")
		}
		_, ok = s.AddNode(*st.Node)
	case "removeNode":
		ok = s.RemoveNode(st.ID)
	case "updateNode":
		n, found := s.graph.Node(st.ID)
		if !found {
			return ErrRejected
		}
		p, err := NodePatchFromFields(n.Kind, st.Fields)
		if err != nil {
			return err
		}
		ok = s.UpdateNodeData(st.ID, p)
	case "addEdge":
		if st.Edge == nil {
			return model.NewValidationError("edge", "is required")
		}
		_, ok = s.AddEdge(*st.Edge)
	case "removeEdge":
		ok = s.RemoveEdge(st.ID)
	case "updateEdge":
		p, err := EdgePatchFromFields(st.Fields)
		if err != nil {
			return err
		}
		ok = s.UpdateEdgeData(st.ID, p)
	case "setType":
		t := model.ScenarioType(st.Value)
		if !t.Valid() {
			return model.NewValidationError("value", "unknown scenario type %q", st.Value)
		}
		s.SetScenarioType(t)
	case "rename":
		s.Rename(st.Value)
	case "viewport":
		if st.Viewport == nil {
			return model.NewValidationError("viewport", "is required")
		}
		ok = s.ReportViewport(*st.Viewport)
	case "pattern":
		ok = s.SetMovementPattern(st.ID, model.PatternType(st.Value))
	case "undo":
		s.Undo()
	case "redo":
		s.Redo()
	default:
		return model.NewValidationError("op", "unknown operation %q", st.Op)
	}
	if !ok {
		return ErrRejected
	}
	return nil
}

// NodePatchFromFields turns operator text input into a node patch. Empty
// numeric text clears the field. Satellite fields only apply to SAT nodes
// and ground fields only to GS and UE nodes.
func NodePatchFromFields(kind model.NodeKind, fields map[string]string) (model.NodePatch, error) {
	var p model.NodePatch
	var sat model.SatellitePatch
	var ground model.GroundPatch
	var mv model.MovementPatch
	var hasSat, hasGround, hasMove bool

	float := func(key, raw string, dst *model.Patch[float64]) error {
		v, err := model.ParseOptionalFloat(key, raw)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	for key, raw := range fields {
		var err error
		switch key {
		case "name":
			p.Name = model.Set(raw)
		case "position":
			pos, perr := parsePosition(raw)
			if perr != nil {
				return p, perr
			}
			p.Position = model.Set(pos)

		case "inputMode":
			sat.InputMode, hasSat = model.Set(model.SatInputMode(raw)), true
		case "tle":
			sat.TLE, hasSat = model.Set(raw), true
		case "semiMajorAxisKm":
			err, hasSat = float(key, raw, &sat.Keplerian.SemiMajorAxisKm), true
		case "eccentricity":
			err, hasSat = float(key, raw, &sat.Keplerian.Eccentricity), true
		case "inclinationDeg":
			err, hasSat = float(key, raw, &sat.Keplerian.InclinationDeg), true
		case "raanDeg":
			err, hasSat = float(key, raw, &sat.Keplerian.RAANDeg), true
		case "argPerigeeDeg":
			err, hasSat = float(key, raw, &sat.Keplerian.ArgPerigeeDeg), true
		case "trueAnomalyDeg":
			err, hasSat = float(key, raw, &sat.Keplerian.TrueAnomalyDeg), true

		case "latitude":
			err, hasGround = float(key, raw, &ground.Latitude), true
		case "longitude":
			err, hasGround = float(key, raw, &ground.Longitude), true
		case "altitudeMeters":
			err, hasGround = float(key, raw, &ground.AltitudeMeters), true

		case "pattern":
			switch {
			case raw == "":
				mv.Pattern = model.Clear[model.PatternType]()
			case model.PatternType(raw).Valid():
				mv.Pattern = model.Set(model.PatternType(raw))
			default:
				return p, model.NewValidationError(key, "unknown pattern %q", raw)
			}
			hasMove = true
		case "startLon":
			err, hasMove = float(key, raw, &mv.StartLon), true
		case "startLat":
			err, hasMove = float(key, raw, &mv.StartLat), true
		case "endLon":
			err, hasMove = float(key, raw, &mv.EndLon), true
		case "endLat":
			err, hasMove = float(key, raw, &mv.EndLat), true
		case "speedKmh":
			err, hasMove = float(key, raw, &mv.SpeedKmh), true
		case "directionDeg":
			err, hasMove = float(key, raw, &mv.DirectionDeg), true
		case "altitudeKm":
			err, hasMove = float(key, raw, &mv.AltitudeKm), true
		case "pathBehavior":
			if raw == "" {
				mv.PathBehavior = model.Clear[model.PathBehavior]()
			} else {
				mv.PathBehavior = model.Set(model.PathBehavior(raw))
			}
			hasMove = true
		default:
			return p, model.NewValidationError(key, "unknown field")
		}
		if err != nil {
			return p, err
		}
	}

	if hasSat {
		if kind != model.KindSatellite {
			return p, model.NewValidationError("satellite", "only SAT nodes carry orbital data")
		}
		p.Satellite = &sat
	}
	if hasGround {
		if kind == model.KindSatellite {
			return p, model.NewValidationError("ground", "SAT nodes carry no ground location")
		}
		p.Ground = &ground
	}
	if hasMove {
		p.Movement = &mv
	}
	return p, nil
}

// EdgePatchFromFields turns operator text input into an edge patch.
func EdgePatchFromFields(fields map[string]string) (model.EdgePatch, error) {
	var p model.EdgePatch
	for key, raw := range fields {
		switch key {
		case "channelModel":
			if raw == "" {
				p.ChannelModel = model.Clear[string]()
			} else {
				p.ChannelModel = model.Set(raw)
			}
		case "frequency", "bandwidth":
			v, err := model.ParseOptionalFloat(key, raw)
			if err != nil {
				return p, err
			}
			if key == "frequency" {
				p.Frequency = v
			} else {
				p.Bandwidth = v
			}
		default:
			return p, model.NewValidationError(key, "unknown field")
		}
	}
	return p, nil
}

// parsePosition reads "x,y".
func parsePosition(raw string) (model.Position, error) {
	xs, ys, ok := strings.Cut(raw, ",")
	if !ok {
		return model.Position{}, model.NewValidationError("position", "want x,y")
	}
	x, err := model.ParseOptionalFloat("position", strings.TrimSpace(xs))
	if err != nil {
		return model.Position{}, err
	}
	y, err := model.ParseOptionalFloat("position", strings.TrimSpace(ys))
	if err != nil {
		return model.Position{}, err
	}
	xv, xok := x.Value()
	yv, yok := y.Value()
	if !xok || !yok {
		return model.Position{}, model.NewValidationError("position", "both coordinates are required")
	}
	return model.Position{X: xv, Y: yv}, nil
}
