package model

// PatternType tags the active movement variant of a node.
type PatternType string

const (
	PatternStatic   PatternType = "STATIC"
	PatternLinear   PatternType = "LINEAR"
	PatternCircular PatternType = "CIRCULAR_PATH"
)

// Valid reports whether p is one of the known patterns.
func (p PatternType) Valid() bool {
	switch p {
	case PatternStatic, PatternLinear, PatternCircular:
		return true
	}
	return false
}

// PathBehavior selects what happens when a moving node reaches the end of
// its path.
type PathBehavior string

const (
	BehaviorLoop   PathBehavior = "loop"
	BehaviorBounce PathBehavior = "bounce"
)

// PathEndpoints are the geographic start and end of a path.
type PathEndpoints struct {
	StartLon *float64 `json:"startLon,omitempty" validate:"omitempty,gte=-180,lte=180"`
	StartLat *float64 `json:"startLat,omitempty" validate:"omitempty,gte=-90,lte=90"`
	EndLon   *float64 `json:"endLon,omitempty" validate:"omitempty,gte=-180,lte=180"`
	EndLat   *float64 `json:"endLat,omitempty" validate:"omitempty,gte=-90,lte=90"`
}

// LinearParams parameterize constant-speed motion along a straight path.
type LinearParams struct {
	PathEndpoints
	SpeedKmh     *float64     `json:"speedKmh,omitempty" validate:"omitempty,gte=0"`
	DirectionDeg *float64     `json:"directionDeg,omitempty"`
	PathBehavior PathBehavior `json:"pathBehavior,omitempty" validate:"omitempty,oneof=loop bounce"`
}

// CircularPathParams parameterize motion along an arc at a fixed altitude.
// SpeedKmh is an operator override of the vis-viva speed.
type CircularPathParams struct {
	PathEndpoints
	AltitudeKm   *float64     `json:"altitudeKm,omitempty" validate:"omitempty,gte=0"`
	SpeedKmh     *float64     `json:"speedKmh,omitempty" validate:"omitempty,gte=0"`
	PathBehavior PathBehavior `json:"pathBehavior,omitempty" validate:"omitempty,oneof=loop bounce"`
}

// Movement is a tagged variant: Pattern selects which of Linear or
// Circular is populated. STATIC carries no parameters.
type Movement struct {
	Pattern  PatternType         `json:"pattern" validate:"required,oneof=STATIC LINEAR CIRCULAR_PATH"`
	Linear   *LinearParams       `json:"linear,omitempty"`
	Circular *CircularPathParams `json:"circular,omitempty"`
}
