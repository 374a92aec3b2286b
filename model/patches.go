package model

// NodePatch is a field-level update of a node. Unset members keep their
// current value.
type NodePatch struct {
	Name      Patch[string]
	Position  Patch[Position]
	Satellite *SatellitePatch
	Ground    *GroundPatch
	Movement  *MovementPatch
}

// SatellitePatch updates the orbital configuration of a SAT node.
type SatellitePatch struct {
	InputMode Patch[SatInputMode]
	TLE       Patch[string]
	Keplerian KeplerianPatch
}

// KeplerianPatch updates individual Keplerian elements.
type KeplerianPatch struct {
	SemiMajorAxisKm Patch[float64]
	Eccentricity    Patch[float64]
	InclinationDeg  Patch[float64]
	RAANDeg         Patch[float64]
	ArgPerigeeDeg   Patch[float64]
	TrueAnomalyDeg  Patch[float64]
}

// GroundPatch updates the geographic placement of a GS or UE node.
type GroundPatch struct {
	Latitude       Patch[float64]
	Longitude      Patch[float64]
	AltitudeMeters Patch[float64]
}

// MovementPatch updates a node's movement. A Pattern change is applied
// first, then the parameter patches against the resulting variant;
// parameters that do not belong to the active pattern are ignored.
type MovementPatch struct {
	Pattern      Patch[PatternType]
	StartLon     Patch[float64]
	StartLat     Patch[float64]
	EndLon       Patch[float64]
	EndLat       Patch[float64]
	SpeedKmh     Patch[float64]
	DirectionDeg Patch[float64]
	AltitudeKm   Patch[float64]
	PathBehavior Patch[PathBehavior]
}

// EdgePatch updates link attributes. Endpoints are immutable.
type EdgePatch struct {
	ChannelModel Patch[string]
	Frequency    Patch[float64]
	Bandwidth    Patch[float64]
}

// Apply merges p into the keplerian elements.
func (p KeplerianPatch) Apply(k *KeplerianElements) {
	ApplyFloat(&k.SemiMajorAxisKm, p.SemiMajorAxisKm)
	ApplyFloat(&k.Eccentricity, p.Eccentricity)
	ApplyFloat(&k.InclinationDeg, p.InclinationDeg)
	ApplyFloat(&k.RAANDeg, p.RAANDeg)
	ApplyFloat(&k.ArgPerigeeDeg, p.ArgPerigeeDeg)
	ApplyFloat(&k.TrueAnomalyDeg, p.TrueAnomalyDeg)
}

// Apply merges p into the satellite data.
func (p SatellitePatch) Apply(s *SatelliteData) {
	s.InputMode = p.InputMode.Merge(s.InputMode)
	s.TLE = p.TLE.Merge(s.TLE)
	p.Keplerian.Apply(&s.Keplerian)
}

// Apply merges p into the ground data.
func (p GroundPatch) Apply(g *GroundData) {
	ApplyFloat(&g.Latitude, p.Latitude)
	ApplyFloat(&g.Longitude, p.Longitude)
	ApplyFloat(&g.AltitudeMeters, p.AltitudeMeters)
}

// Apply merges p into the edge.
func (p EdgePatch) Apply(e *Edge) {
	e.ChannelModel = p.ChannelModel.Merge(e.ChannelModel)
	ApplyFloat(&e.Frequency, p.Frequency)
	ApplyFloat(&e.Bandwidth, p.Bandwidth)
}
