package movement

import (
	"math"
	"time"

	"github.com/signalsfoundry/scenario-editor/model"
	"github.com/signalsfoundry/scenario-editor/orbit"
)

// Switch returns a movement of the requested pattern. Parameters of the
// previous pattern are dropped, except that speed carries over between
// LINEAR and CIRCULAR_PATH. Switching to the current pattern or to an
// unknown one leaves the movement unchanged.
func Switch(cur *model.Movement, to model.PatternType) *model.Movement {
	if !to.Valid() || (cur != nil && cur.Pattern == to) {
		return clone(cur)
	}

	var speed *float64
	if cur != nil && cur.Pattern != model.PatternStatic {
		if v, ok := EffectiveSpeedKmh(cur); ok {
			speed = model.Float(v)
		}
	}

	switch to {
	case model.PatternLinear:
		return &model.Movement{
			Pattern: model.PatternLinear,
			Linear:  &model.LinearParams{SpeedKmh: speed, PathBehavior: model.BehaviorLoop},
		}
	case model.PatternCircular:
		return &model.Movement{
			Pattern:  model.PatternCircular,
			Circular: &model.CircularPathParams{SpeedKmh: speed, PathBehavior: model.BehaviorLoop},
		}
	default:
		return &model.Movement{Pattern: model.PatternStatic}
	}
}

// ValidPatch reports whether p names a known pattern, if it names one.
func ValidPatch(p model.MovementPatch) bool {
	to, ok := p.Pattern.Value()
	return !ok || to.Valid()
}

// Apply merges a patch into a movement and returns the result; cur is not
// modified. Clearing the pattern removes the movement entirely. A patch
// naming an unknown pattern is not applied.
func Apply(cur *model.Movement, p model.MovementPatch) *model.Movement {
	if p.Pattern.IsClear() {
		return nil
	}
	if !ValidPatch(p) {
		return clone(cur)
	}
	m := clone(cur)
	if to, ok := p.Pattern.Value(); ok {
		m = Switch(m, to)
	}
	if m == nil {
		return nil
	}

	switch m.Pattern {
	case model.PatternLinear:
		if m.Linear == nil {
			m.Linear = &model.LinearParams{PathBehavior: model.BehaviorLoop}
		}
		applyEndpoints(&m.Linear.PathEndpoints, p)
		model.ApplyFloat(&m.Linear.SpeedKmh, p.SpeedKmh)
		model.ApplyFloat(&m.Linear.DirectionDeg, p.DirectionDeg)
		m.Linear.PathBehavior = mergeBehavior(m.Linear.PathBehavior, p.PathBehavior)
		m.Circular = nil
	case model.PatternCircular:
		if m.Circular == nil {
			m.Circular = &model.CircularPathParams{PathBehavior: model.BehaviorLoop}
		}
		applyEndpoints(&m.Circular.PathEndpoints, p)
		model.ApplyFloat(&m.Circular.AltitudeKm, p.AltitudeKm)
		model.ApplyFloat(&m.Circular.SpeedKmh, p.SpeedKmh)
		m.Circular.PathBehavior = mergeBehavior(m.Circular.PathBehavior, p.PathBehavior)
		m.Linear = nil
	default:
		m.Linear, m.Circular = nil, nil
	}
	return m
}

func applyEndpoints(e *model.PathEndpoints, p model.MovementPatch) {
	model.ApplyFloat(&e.StartLon, p.StartLon)
	model.ApplyFloat(&e.StartLat, p.StartLat)
	model.ApplyFloat(&e.EndLon, p.EndLon)
	model.ApplyFloat(&e.EndLat, p.EndLat)
}

func mergeBehavior(cur model.PathBehavior, p model.Patch[model.PathBehavior]) model.PathBehavior {
	b := p.Merge(cur)
	if b == "" {
		return model.BehaviorLoop
	}
	return b
}

// EffectiveSpeedKmh is the speed a moving node travels at. A circular path
// uses the operator override when present and otherwise the vis-viva
// speed for its altitude.
func EffectiveSpeedKmh(m *model.Movement) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch m.Pattern {
	case model.PatternLinear:
		if m.Linear == nil || m.Linear.SpeedKmh == nil {
			return 0, false
		}
		return *m.Linear.SpeedKmh, true
	case model.PatternCircular:
		if m.Circular == nil {
			return 0, false
		}
		if m.Circular.SpeedKmh != nil {
			return *m.Circular.SpeedKmh, true
		}
		if m.Circular.AltitudeKm != nil {
			return orbit.CircularSpeedKmh(*m.Circular.AltitudeKm), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// Endpoints returns the path endpoints of the active pattern, or nil for a
// static node.
func Endpoints(m *model.Movement) *model.PathEndpoints {
	if m == nil {
		return nil
	}
	switch m.Pattern {
	case model.PatternLinear:
		if m.Linear != nil {
			return &m.Linear.PathEndpoints
		}
	case model.PatternCircular:
		if m.Circular != nil {
			return &m.Circular.PathEndpoints
		}
	}
	return nil
}

// PathLengthKm is the great-circle length of the path, measured on the
// surface for LINEAR and at the path altitude for CIRCULAR_PATH.
func PathLengthKm(m *model.Movement) (float64, bool) {
	e := Endpoints(m)
	if e == nil || e.StartLon == nil || e.StartLat == nil || e.EndLon == nil || e.EndLat == nil {
		return 0, false
	}
	radius := orbit.EarthRadiusKm
	if m.Pattern == model.PatternCircular && m.Circular.AltitudeKm != nil {
		radius += *m.Circular.AltitudeKm
	}
	return centralAngle(*e.StartLat, *e.StartLon, *e.EndLat, *e.EndLon) * radius, true
}

// LegDuration is the time one traversal of the path takes.
func LegDuration(m *model.Movement) (time.Duration, bool) {
	length, ok := PathLengthKm(m)
	if !ok {
		return 0, false
	}
	speed, ok := EffectiveSpeedKmh(m)
	if !ok || speed <= 0 {
		return 0, false
	}
	return time.Duration(length / speed * float64(time.Hour)), true
}

// centralAngle is the haversine angle between two points, in radians.
func centralAngle(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

func clone(m *model.Movement) *model.Movement {
	if m == nil {
		return nil
	}
	c := &model.Movement{Pattern: m.Pattern}
	if m.Linear != nil {
		l := *m.Linear
		l.PathEndpoints = cloneEndpoints(m.Linear.PathEndpoints)
		l.SpeedKmh = cloneFloat(m.Linear.SpeedKmh)
		l.DirectionDeg = cloneFloat(m.Linear.DirectionDeg)
		c.Linear = &l
	}
	if m.Circular != nil {
		cp := *m.Circular
		cp.PathEndpoints = cloneEndpoints(m.Circular.PathEndpoints)
		cp.AltitudeKm = cloneFloat(m.Circular.AltitudeKm)
		cp.SpeedKmh = cloneFloat(m.Circular.SpeedKmh)
		c.Circular = &cp
	}
	return c
}

func cloneEndpoints(e model.PathEndpoints) model.PathEndpoints {
	return model.PathEndpoints{
		StartLon: cloneFloat(e.StartLon),
		StartLat: cloneFloat(e.StartLat),
		EndLon:   cloneFloat(e.EndLon),
		EndLat:   cloneFloat(e.EndLat),
	}
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
