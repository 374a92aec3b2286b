package orbit

import (
	"math"
	"strings"

	"github.com/signalsfoundry/scenario-editor/model"
)

const (
	// EarthMu is Earth's standard gravitational parameter (km^3/s^2).
	EarthMu = 398600.4418
	// EarthRadiusKm is the mean Earth radius used for apogee/perigee
	// altitudes (kilometres).
	EarthRadiusKm = 6371.0

	minutesPerDay = 1440.0
	twoPi         = 2 * math.Pi
)

// Params are the derived orbit characteristics shown next to a SAT node.
type Params struct {
	PeriodMin           float64 `json:"periodMin"`
	ApogeeKm            float64 `json:"apogeeKm"`
	PerigeeKm           float64 `json:"perigeeKm"`
	MeanMotionRevPerDay float64 `json:"meanMotionRevPerDay"`
}

// Input is the orbital configuration being edited. Mode selects the
// authoritative representation; when empty it is inferred.
type Input struct {
	Mode      model.SatInputMode
	TLE       string
	Keplerian model.KeplerianElements
}

// InputFrom adapts a node's satellite data.
func InputFrom(d *model.SatelliteData) Input {
	if d == nil {
		return Input{}
	}
	return Input{Mode: d.InputMode, TLE: d.TLE, Keplerian: d.Keplerian}
}

func (in Input) mode() model.SatInputMode {
	if in.Mode != "" {
		return in.Mode
	}
	if strings.TrimSpace(in.TLE) != "" {
		return model.InputTLE
	}
	return model.InputKeplerian
}

// Calculate derives period, apogee, perigee and mean motion. It returns
// (nil, nil) when nothing has been entered yet, and a *model.ValidationError
// when the input is malformed or incomplete.
func Calculate(in Input) (*Params, error) {
	switch in.mode() {
	case model.InputTLE:
		if strings.TrimSpace(in.TLE) == "" {
			return nil, nil
		}
		tle, err := ParseTLE(in.TLE)
		if err != nil {
			return nil, err
		}
		return fromMeanMotion(tle.MeanMotionRevPerDay*twoPi/minutesPerDay, tle.Eccentricity), nil

	case model.InputKeplerian:
		k := in.Keplerian
		if k.Empty() {
			return nil, nil
		}
		a, e, err := checkKeplerian(k)
		if err != nil {
			return nil, err
		}
		nRadPerSec := math.Sqrt(EarthMu / (a * a * a))
		return fromMeanMotion(nRadPerSec*60, e), nil

	default:
		return nil, model.NewValidationError("inputMode", "unknown input mode %q", in.Mode)
	}
}

// fromMeanMotion derives the orbit from mean motion in rad/min.
func fromMeanMotion(nRadPerMin, e float64) *Params {
	nRadPerSec := nRadPerMin / 60
	a := math.Cbrt(EarthMu / (nRadPerSec * nRadPerSec))
	return &Params{
		PeriodMin:           twoPi / nRadPerMin,
		ApogeeKm:            a*(1+e) - EarthRadiusKm,
		PerigeeKm:           a*(1-e) - EarthRadiusKm,
		MeanMotionRevPerDay: nRadPerMin * minutesPerDay / twoPi,
	}
}

func checkKeplerian(k model.KeplerianElements) (a, e float64, err error) {
	switch {
	case k.SemiMajorAxisKm == nil:
		return 0, 0, model.NewValidationError("semiMajorAxisKm", "is required")
	case k.Eccentricity == nil:
		return 0, 0, model.NewValidationError("eccentricity", "is required")
	case k.InclinationDeg == nil:
		return 0, 0, model.NewValidationError("inclinationDeg", "is required")
	}
	a, e, i := *k.SemiMajorAxisKm, *k.Eccentricity, *k.InclinationDeg

	if !(a > EarthRadiusKm) {
		return 0, 0, model.NewValidationError("semiMajorAxisKm", "must exceed Earth radius (%.1f km)", EarthRadiusKm)
	}
	if !(e >= 0 && e < 1) {
		return 0, 0, model.NewValidationError("eccentricity", "must be within [0, 1)")
	}
	if !(i >= 0 && i <= 180) {
		return 0, 0, model.NewValidationError("inclinationDeg", "must be within [0, 180] degrees")
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"raanDeg", k.RAANDeg},
		{"argPerigeeDeg", k.ArgPerigeeDeg},
		{"trueAnomalyDeg", k.TrueAnomalyDeg},
	} {
		if f.v != nil && !(*f.v >= 0 && *f.v <= 360) {
			return 0, 0, model.NewValidationError(f.name, "must be within [0, 360] degrees")
		}
	}
	return a, e, nil
}

// CircularSpeedKmh is the vis-viva speed of a circular orbit at the given
// altitude above the mean Earth radius.
func CircularSpeedKmh(altitudeKm float64) float64 {
	return math.Sqrt(EarthMu/(EarthRadiusKm+altitudeKm)) * 3600
}
