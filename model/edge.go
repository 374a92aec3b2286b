package model

// Edge is an explicit link between two nodes. Edges only exist in custom
// scenarios.
type Edge struct {
	ID           string   `json:"id" validate:"required"`
	Source       string   `json:"source" validate:"required"`
	Target       string   `json:"target" validate:"required"`
	ChannelModel string   `json:"channelModel,omitempty"`
	Frequency    *float64 `json:"frequency,omitempty" validate:"omitempty,gt=0"`
	Bandwidth    *float64 `json:"bandwidth,omitempty" validate:"omitempty,gt=0"`
}

// Touches reports whether the edge has nodeID as one of its endpoints.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}
