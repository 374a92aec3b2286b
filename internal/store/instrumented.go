package store

import (
	"context"
	"errors"
	"time"

	"github.com/signalsfoundry/scenario-editor/model"
)

// OpRecorder receives the outcome of every store call.
type OpRecorder interface {
	ObserveStoreOp(op, result string, d time.Duration)
}

// Result labels passed to OpRecorder.
const (
	ResultOK          = "ok"
	ResultNotFound    = "not_found"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

// Instrumented reports duration and result of each call to a recorder.
type Instrumented struct {
	next Store
	rec  OpRecorder
	now  func() time.Time
}

// NewInstrumented wraps next. A nil recorder makes it a pass-through.
func NewInstrumented(next Store, rec OpRecorder) *Instrumented {
	return &Instrumented{next: next, rec: rec, now: time.Now}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	if i.rec == nil {
		return
	}
	i.rec.ObserveStoreOp(op, ResultOf(err), i.now().Sub(start))
}

// ResultOf maps an error to its result label.
func ResultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrNotFound):
		return ResultNotFound
	case errors.Is(err, ErrUnavailable):
		return ResultUnavailable
	default:
		return ResultError
	}
}

// List implements Store.
func (i *Instrumented) List(ctx context.Context) ([]model.Summary, error) {
	start := i.now()
	out, err := i.next.List(ctx)
	i.observe("list", start, err)
	return out, err
}

// Load implements Store.
func (i *Instrumented) Load(ctx context.Context, id string) (*model.Scenario, error) {
	start := i.now()
	s, err := i.next.Load(ctx, id)
	i.observe("load", start, err)
	return s, err
}

// Save implements Store.
func (i *Instrumented) Save(ctx context.Context, s *model.Scenario) error {
	start := i.now()
	err := i.next.Save(ctx, s)
	i.observe("save", start, err)
	return err
}

// Delete implements Store.
func (i *Instrumented) Delete(ctx context.Context, id string) error {
	start := i.now()
	err := i.next.Delete(ctx, id)
	i.observe("delete", start, err)
	return err
}
