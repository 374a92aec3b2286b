package movement

import (
	"github.com/signalsfoundry/scenario-editor/model"
)

// Validate checks that a movement is internally consistent: the variant
// matches the pattern tag and every set value is in range.
func Validate(m *model.Movement) error {
	if m == nil {
		return nil
	}
	switch m.Pattern {
	case model.PatternStatic:
		if m.Linear != nil || m.Circular != nil {
			return model.NewValidationError("movement", "STATIC movement carries parameters")
		}
		return nil

	case model.PatternLinear:
		if m.Linear == nil || m.Circular != nil {
			return model.NewValidationError("movement", "LINEAR movement needs linear parameters only")
		}
		if err := checkEndpoints(m.Linear.PathEndpoints); err != nil {
			return err
		}
		if err := nonNegative("speedKmh", m.Linear.SpeedKmh); err != nil {
			return err
		}
		if d := m.Linear.DirectionDeg; d != nil && (*d < 0 || *d >= 360) {
			return model.NewValidationError("directionDeg", "must be within [0, 360)")
		}
		return checkBehavior(m.Linear.PathBehavior)

	case model.PatternCircular:
		if m.Circular == nil || m.Linear != nil {
			return model.NewValidationError("movement", "CIRCULAR_PATH movement needs circular parameters only")
		}
		if err := checkEndpoints(m.Circular.PathEndpoints); err != nil {
			return err
		}
		if err := nonNegative("altitudeKm", m.Circular.AltitudeKm); err != nil {
			return err
		}
		if err := nonNegative("speedKmh", m.Circular.SpeedKmh); err != nil {
			return err
		}
		return checkBehavior(m.Circular.PathBehavior)

	default:
		return model.NewValidationError("movementPattern", "unknown pattern %q", m.Pattern)
	}
}

func checkEndpoints(e model.PathEndpoints) error {
	for _, f := range []struct {
		name  string
		v     *float64
		limit float64
	}{
		{"startLon", e.StartLon, 180},
		{"startLat", e.StartLat, 90},
		{"endLon", e.EndLon, 180},
		{"endLat", e.EndLat, 90},
	} {
		if f.v != nil && (*f.v < -f.limit || *f.v > f.limit) {
			return model.NewValidationError(f.name, "must be within [-%g, %g]", f.limit, f.limit)
		}
	}
	return nil
}

func nonNegative(name string, v *float64) error {
	if v != nil && *v < 0 {
		return model.NewValidationError(name, "must not be negative")
	}
	return nil
}

func checkBehavior(b model.PathBehavior) error {
	switch b {
	case "", model.BehaviorLoop, model.BehaviorBounce:
		return nil
	}
	return model.NewValidationError("pathBehavior", "unknown behavior %q", b)
}
