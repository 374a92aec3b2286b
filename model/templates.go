package model

import "sort"

// Sample TLE of the ISS used by the demo template.
const (
	ISSLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	ISSLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

var templates = map[string]func(id string) *Scenario{
	"empty-custom": func(id string) *Scenario {
		return NewScenario(id, "Untitled scenario", ScenarioCustom)
	},
	"empty-realistic": func(id string) *Scenario {
		return NewScenario(id, "Untitled scenario", ScenarioRealistic)
	},
	"leo-demo":    leoDemo,
	"custom-demo": customDemo,
}

// TemplateNames lists the built-in templates in a stable order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromTemplate builds a fresh scenario from a named template.
func FromTemplate(name, id string) (*Scenario, bool) {
	build, ok := templates[name]
	if !ok {
		return nil, false
	}
	return build(id), true
}

func leoDemo(id string) *Scenario {
	s := NewScenario(id, "LEO demo", ScenarioRealistic)
	s.Nodes = []Node{
		{
			ID:   "sat-iss",
			Kind: KindSatellite,
			Name: "ISS",
			Satellite: &SatelliteData{
				InputMode: InputTLE,
				TLE:       ISSLine1 + "\n" + ISSLine2,
			},
		},
		{
			ID:   "sat-leo-550",
			Kind: KindSatellite,
			Name: "LEO-550",
			Satellite: &SatelliteData{
				InputMode: InputKeplerian,
				Keplerian: KeplerianElements{
					SemiMajorAxisKm: Float(6921),
					Eccentricity:    Float(0.0001),
					InclinationDeg:  Float(53),
					RAANDeg:         Float(0),
					ArgPerigeeDeg:   Float(0),
					TrueAnomalyDeg:  Float(0),
				},
			},
		},
		{
			ID:     "gs-svalbard",
			Kind:   KindGroundStation,
			Name:   "Svalbard",
			Ground: &GroundData{Latitude: Float(78.2298), Longitude: Float(15.4078), AltitudeMeters: Float(500)},
		},
		{
			ID:     "ue-singapore",
			Kind:   KindUserTerminal,
			Name:   "Singapore UE",
			Ground: &GroundData{Latitude: Float(1.3521), Longitude: Float(103.8198)},
		},
	}
	return s
}

func customDemo(id string) *Scenario {
	s := NewScenario(id, "Custom demo", ScenarioCustom)
	s.Nodes = []Node{
		{
			ID:       "sat-1",
			Kind:     KindSatellite,
			Name:     "Relay",
			Position: Position{X: 250, Y: 50},
			Movement: &Movement{
				Pattern: PatternCircular,
				Circular: &CircularPathParams{
					PathEndpoints: PathEndpoints{StartLon: Float(-30), StartLat: Float(0), EndLon: Float(30), EndLat: Float(0)},
					AltitudeKm:    Float(550),
					PathBehavior:  BehaviorLoop,
				},
			},
		},
		{ID: "gs-1", Kind: KindGroundStation, Name: "Gateway", Position: Position{X: 100, Y: 300}, Movement: &Movement{Pattern: PatternStatic}},
		{
			ID:       "ue-1",
			Kind:     KindUserTerminal,
			Name:     "Vehicle",
			Position: Position{X: 400, Y: 300},
			Movement: &Movement{
				Pattern: PatternLinear,
				Linear: &LinearParams{
					PathEndpoints: PathEndpoints{StartLon: Float(10), StartLat: Float(50), EndLon: Float(12), EndLat: Float(51)},
					SpeedKmh:      Float(80),
					PathBehavior:  BehaviorBounce,
				},
			},
		},
	}
	s.Edges = []Edge{
		{ID: "e-gs-sat", Source: "gs-1", Target: "sat-1", ChannelModel: "awgn", Frequency: Float(12e9), Bandwidth: Float(250e6)},
		{ID: "e-sat-ue", Source: "sat-1", Target: "ue-1", ChannelModel: "rician", Frequency: Float(20e9), Bandwidth: Float(100e6)},
	}
	return s
}
