package orbit

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/scenario-editor/model"
)

// SubPoint is the geodetic point directly below a satellite.
type SubPoint struct {
	Latitude   float64
	Longitude  float64
	AltitudeKm float64
}

// GroundTrack places a satellite on the globe at time t. TLE input is
// propagated with SGP4; Keplerian input is taken as osculating elements
// at t. It returns (nil, nil) in the idle state.
func GroundTrack(in Input, t time.Time) (*SubPoint, error) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	gmst := satellite.GSTimeFromDate(year, int(month), day, hour, minute, sec)

	var eci satellite.Vector3
	switch in.mode() {
	case model.InputTLE:
		if strings.TrimSpace(in.TLE) == "" {
			return nil, nil
		}
		tle, err := ParseTLE(in.TLE)
		if err != nil {
			return nil, err
		}
		// go-satellite works in kilometres.
		sat := satellite.TLEToSat(tle.Line1, tle.Line2, satellite.GravityWGS84)
		eci, _ = satellite.Propagate(sat, year, int(month), day, hour, minute, sec)

	case model.InputKeplerian:
		if in.Keplerian.Empty() {
			return nil, nil
		}
		a, e, err := checkKeplerian(in.Keplerian)
		if err != nil {
			return nil, err
		}
		eci = keplerianToECI(a, e, in.Keplerian)

	default:
		return nil, model.NewValidationError("inputMode", "unknown input mode %q", in.Mode)
	}

	if math.IsNaN(eci.X) || math.IsNaN(eci.Y) || math.IsNaN(eci.Z) {
		return nil, fmt.Errorf("orbit: propagation failed at %s", t.Format(time.RFC3339))
	}

	alt, _, ll := satellite.ECIToLLA(eci, gmst)
	return &SubPoint{
		Latitude:   ll.Latitude * 180 / math.Pi,
		Longitude:  wrapLongitude(ll.Longitude * 180 / math.Pi),
		AltitudeKm: alt,
	}, nil
}

// keplerianToECI rotates the perifocal position into the inertial frame.
func keplerianToECI(a, e float64, k model.KeplerianElements) satellite.Vector3 {
	deg := func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v * math.Pi / 180
	}
	inc := deg(k.InclinationDeg)
	raan := deg(k.RAANDeg)
	argp := deg(k.ArgPerigeeDeg)
	nu := deg(k.TrueAnomalyDeg)

	r := a * (1 - e*e) / (1 + e*math.Cos(nu))
	u := argp + nu
	return satellite.Vector3{
		X: r * (math.Cos(raan)*math.Cos(u) - math.Sin(raan)*math.Sin(u)*math.Cos(inc)),
		Y: r * (math.Sin(raan)*math.Cos(u) + math.Cos(raan)*math.Sin(u)*math.Cos(inc)),
		Z: r * math.Sin(u) * math.Sin(inc),
	}
}

func wrapLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
