package orbit

// Tracker holds the values displayed for an orbit being edited. A
// validation error leaves the last good values in place until a valid
// replacement is entered; clearing the input returns to the idle state.
type Tracker struct {
	last *Params
	err  error
}

// Update recalculates from in and returns what should be displayed.
func (t *Tracker) Update(in Input) (*Params, error) {
	p, err := Calculate(in)
	switch {
	case err != nil:
		t.err = err
	case p == nil:
		t.last, t.err = nil, nil
	default:
		t.last, t.err = p, nil
	}
	return t.Params(), t.err
}

// Params returns a copy of the last good values, or nil.
func (t *Tracker) Params() *Params {
	if t.last == nil {
		return nil
	}
	p := *t.last
	return &p
}

// Err returns the current validation error, if any.
func (t *Tracker) Err() error { return t.err }
