package model

// NodeKind identifies the physical role of a node.
type NodeKind string

const (
	KindSatellite     NodeKind = "SAT"
	KindGroundStation NodeKind = "GS"
	KindUserTerminal  NodeKind = "UE"
)

// Valid reports whether k is one of the known kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case KindSatellite, KindGroundStation, KindUserTerminal:
		return true
	}
	return false
}

// Position is a point on the abstract custom-mode canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SatInputMode selects which orbital representation of a satellite is
// authoritative.
type SatInputMode string

const (
	InputTLE       SatInputMode = "tle"
	InputKeplerian SatInputMode = "keplerian"
)

// KeplerianElements is a partially filled element set as typed by the
// operator. Unset fields are nil.
type KeplerianElements struct {
	SemiMajorAxisKm *float64 `json:"semiMajorAxisKm,omitempty"`
	Eccentricity    *float64 `json:"eccentricity,omitempty"`
	InclinationDeg  *float64 `json:"inclinationDeg,omitempty"`
	RAANDeg         *float64 `json:"raanDeg,omitempty"`
	ArgPerigeeDeg   *float64 `json:"argPerigeeDeg,omitempty"`
	TrueAnomalyDeg  *float64 `json:"trueAnomalyDeg,omitempty"`
}

// Empty reports whether no element has been entered.
func (k KeplerianElements) Empty() bool {
	return k.SemiMajorAxisKm == nil && k.Eccentricity == nil && k.InclinationDeg == nil &&
		k.RAANDeg == nil && k.ArgPerigeeDeg == nil && k.TrueAnomalyDeg == nil
}

// SatelliteData is the orbital configuration of a SAT node.
type SatelliteData struct {
	InputMode SatInputMode      `json:"inputMode" validate:"omitempty,oneof=tle keplerian"`
	TLE       string            `json:"tle,omitempty"`
	Keplerian KeplerianElements `json:"keplerian"`
}

// GroundData is the geographic placement of a GS or UE node.
type GroundData struct {
	Latitude       *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	AltitudeMeters *float64 `json:"altitudeMeters,omitempty"`
}

// Node is a vertex of the scenario graph. Position is authoritative in
// custom mode; Satellite and Ground are authoritative in realistic mode.
type Node struct {
	ID        string         `json:"id" validate:"required"`
	Kind      NodeKind       `json:"kind" validate:"required,oneof=SAT GS UE"`
	Name      string         `json:"name"`
	Position  Position       `json:"position"`
	Satellite *SatelliteData `json:"satellite,omitempty"`
	Ground    *GroundData    `json:"ground,omitempty"`
	Movement  *Movement      `json:"movement,omitempty"`
}
