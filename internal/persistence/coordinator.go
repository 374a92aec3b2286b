// Package persistence decides when the scenario being edited is written to
// the store: explicit saves, debounced auto-saves, and opening by key.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/scenario-editor/internal/logging"
	"github.com/signalsfoundry/scenario-editor/internal/observability"
	"github.com/signalsfoundry/scenario-editor/internal/store"
	"github.com/signalsfoundry/scenario-editor/model"
	"github.com/signalsfoundry/scenario-editor/timectrl"
)

const (
	// DefaultQuietPeriod is how long edits must pause before an auto-save.
	DefaultQuietPeriod = 500 * time.Millisecond
	// DefaultMaxAutoSaveRetries bounds how often a failed auto-save is
	// re-armed before it is dropped.
	DefaultMaxAutoSaveRetries = 3
	// DefaultWriteTimeout bounds a single auto-save write.
	DefaultWriteTimeout = 10 * time.Second

	// SessionKeyPrefix marks ephemeral keys generated for unnamed scenarios.
	SessionKeyPrefix = "session-"
)

// Auto-save events passed to Recorder.
const (
	EventScheduled  = "scheduled"
	EventSuppressed = "suppressed"
	EventWritten    = "written"
	EventFailed     = "failed"
	EventRetried    = "retried"
	EventDropped    = "dropped"
	EventSaved      = "saved"
)

// ErrClosed is returned by operations on a closed coordinator.
var ErrClosed = errors.New("persistence: coordinator closed")

// Guard reports whether current changes come from undo/redo replay or a
// programmatic update. Those are not auto-saved.
type Guard interface {
	Suppressed() bool
}

// Recorder counts auto-save lifecycle events.
type Recorder interface {
	AutoSaveEvent(event string)
}

// ErrorHandler is told about every failed auto-save write.
type ErrorHandler func(id string, err error)

// Option customises Coordinator construction.
type Option func(*Coordinator)

// WithClock replaces the wall clock used for debouncing.
func WithClock(c timectrl.Clock) Option {
	return func(co *Coordinator) {
		if c != nil {
			co.clock = c
		}
	}
}

// WithQuietPeriod overrides DefaultQuietPeriod.
func WithQuietPeriod(d time.Duration) Option {
	return func(co *Coordinator) {
		if d > 0 {
			co.quiet = d
		}
	}
}

// WithMaxRetries overrides DefaultMaxAutoSaveRetries. Zero disables retry.
func WithMaxRetries(n int) Option {
	return func(co *Coordinator) {
		if n >= 0 {
			co.maxRetries = n
		}
	}
}

// WithGuard attaches the replay/programmatic guard.
func WithGuard(g Guard) Option {
	return func(co *Coordinator) { co.guard = g }
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(co *Coordinator) {
		if l != nil {
			co.log = l
		}
	}
}

// WithRecorder attaches an auto-save event recorder.
func WithRecorder(r Recorder) Option {
	return func(co *Coordinator) { co.rec = r }
}

// WithErrorHandler attaches a callback for failed auto-saves.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(co *Coordinator) { co.onError = fn }
}

// WithDefaultType sets the type of scenarios created for unknown keys.
func WithDefaultType(t model.ScenarioType) Option {
	return func(co *Coordinator) {
		if t.Valid() {
			co.defaultType = t
		}
	}
}

// WithTracer replaces the module tracer.
func WithTracer(t trace.Tracer) Option {
	return func(co *Coordinator) {
		if t != nil {
			co.tracer = t
		}
	}
}

// pendingSave is a scheduled auto-save. The scenario is a private copy taken
// when the save was scheduled.
type pendingSave struct {
	scenario *model.Scenario
	timer    timectrl.Timer
	attempts int
	gen      uint64
}

// Coordinator owns the save protocol for one editing session.
type Coordinator struct {
	store       store.Store
	clock       timectrl.Clock
	quiet       time.Duration
	maxRetries  int
	defaultType model.ScenarioType
	guard       Guard
	log         logging.Logger
	rec         Recorder
	onError     ErrorHandler
	tracer      trace.Tracer

	mu            sync.Mutex
	pending       map[string]*pendingSave
	// gen counts writes requested per key; a retry is re-armed only while
	// its generation is still the latest.
	gen           map[string]uint64
	viewportReady bool
	closed        bool

	// writeMu keeps writes in schedule order.
	writeMu sync.Mutex
}

// New constructs a coordinator over st.
func New(st store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       st,
		clock:       timectrl.Wall(),
		quiet:       DefaultQuietPeriod,
		maxRetries:  DefaultMaxAutoSaveRetries,
		defaultType: model.ScenarioCustom,
		log:         logging.Noop(),
		tracer:      observability.Tracer(),
		pending:     make(map[string]*pendingSave),
		gen:         make(map[string]uint64),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// NewSessionKey returns a fresh ephemeral scenario key.
func NewSessionKey() string {
	return SessionKeyPrefix + uuid.NewString()
}

// IsSessionKey reports whether id was generated by NewSessionKey.
func IsSessionKey(id string) bool {
	return strings.HasPrefix(id, SessionKeyPrefix)
}

// ReportViewport tells the coordinator the rendering surface has reported
// its pan and zoom. Auto-save stays off until a valid viewport is seen, so
// the placeholder viewport is never written over a stored one.
func (c *Coordinator) ReportViewport(v model.Viewport) bool {
	if !v.Valid() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewportReady = true
	return true
}

// ResetViewportGate turns auto-save off until the next ReportViewport. It
// is called whenever a different scenario is loaded.
func (c *Coordinator) ResetViewportGate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewportReady = false
}

// ScheduleAutoSave arranges for s to be written under id once edits pause
// for the quiet period. Each call restarts the wait and replaces the
// scenario to be written. It reports whether a save was scheduled.
func (c *Coordinator) ScheduleAutoSave(id string, s *model.Scenario) bool {
	if id == "" || s == nil {
		return false
	}
	if c.guard != nil && c.guard.Suppressed() {
		c.record(EventSuppressed)
		return false
	}
	snapshot := s.Clone()
	snapshot.ID = id

	c.mu.Lock()
	if c.closed || !c.viewportReady {
		c.mu.Unlock()
		c.record(EventSuppressed)
		return false
	}
	if old, ok := c.pending[id]; ok {
		old.timer.Stop()
	}
	c.gen[id]++
	p := &pendingSave{scenario: snapshot, gen: c.gen[id]}
	p.timer = c.clock.AfterFunc(c.quiet, func() { c.fire(id, p) })
	c.pending[id] = p
	c.mu.Unlock()

	c.record(EventScheduled)
	return true
}

// fire writes a pending save whose quiet period elapsed.
func (c *Coordinator) fire(id string, p *pendingSave) {
	c.mu.Lock()
	if c.pending[id] != p {
		c.mu.Unlock()
		return
	}
	delete(c.pending, id)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultWriteTimeout)
	defer cancel()
	ctx = logging.ContextWithScenarioID(ctx, id)

	err := c.write(ctx, "persistence.autosave", p.scenario)
	if err == nil {
		c.record(EventWritten)
		c.log.Debug(ctx, "auto-save written")
		return
	}

	c.record(EventFailed)
	p.attempts++
	c.log.Warn(ctx, "auto-save failed", logging.Err(err), logging.Int("attempt", p.attempts))
	if c.onError != nil {
		c.onError(id, err)
	}
	if !store.IsTransient(err) || p.attempts > c.maxRetries {
		c.record(EventDropped)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[id] != p.gen || c.closed {
		// A later edit, save or delete superseded this write.
		return
	}
	p.timer = c.clock.AfterFunc(c.quiet, func() { c.fire(id, p) })
	c.pending[id] = p
	c.record(EventRetried)
}

// Save writes s under id immediately, cancelling any pending auto-save
// for that key.
func (c *Coordinator) Save(ctx context.Context, id string, s *model.Scenario) error {
	if s == nil {
		return fmt.Errorf("save %q: nil scenario", id)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.cancelLocked(id)
	c.gen[id]++
	c.mu.Unlock()

	cp := s.Clone()
	cp.ID = id
	ctx = logging.ContextWithScenarioID(ctx, id)
	if err := c.write(ctx, "persistence.save", cp); err != nil {
		c.log.Error(ctx, "save failed", logging.Err(err))
		return err
	}
	c.record(EventSaved)
	c.log.Info(ctx, "scenario saved", logging.Int("nodes", len(cp.Nodes)), logging.Int("edges", len(cp.Edges)))
	return nil
}

func (c *Coordinator) write(ctx context.Context, spanName string, s *model.Scenario) error {
	ctx, span := c.tracer.Start(ctx, spanName, trace.WithAttributes(observability.ScenarioAttributes(s)...))
	defer span.End()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	err := c.store.Save(ctx, s)
	observability.FailSpan(span, err, "store save failed")
	return err
}

// Open returns the scenario stored under id. An empty id yields a fresh
// scenario under a new session key; an unknown id yields a fresh scenario
// under that id. Only backend failures return an error.
func (c *Coordinator) Open(ctx context.Context, id string) (*model.Scenario, error) {
	c.ResetViewportGate()

	if strings.TrimSpace(id) == "" {
		id = NewSessionKey()
		c.log.Info(logging.ContextWithScenarioID(ctx, id), "opened ephemeral scenario")
		return model.NewScenario(id, "", c.defaultType), nil
	}

	ctx = logging.ContextWithScenarioID(ctx, id)
	ctx, span := c.tracer.Start(ctx, "persistence.open", trace.WithAttributes(attribute.String("scenario.id", id)))
	defer span.End()

	s, err := c.store.Load(ctx, id)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("scenario.created", false))
		c.log.Info(ctx, "opened scenario", logging.Int("nodes", len(s.Nodes)), logging.Int("edges", len(s.Edges)))
		return s, nil
	case errors.Is(err, store.ErrNotFound):
		span.SetAttributes(attribute.Bool("scenario.created", true))
		c.log.Info(ctx, "scenario not found; starting new one")
		return model.NewScenario(id, id, c.defaultType), nil
	default:
		observability.FailSpan(span, err, "store load failed")
		return nil, fmt.Errorf("open %q: %w", id, err)
	}
}

// List returns summaries of every stored scenario.
func (c *Coordinator) List(ctx context.Context) ([]model.Summary, error) {
	ctx, span := c.tracer.Start(ctx, "persistence.list")
	defer span.End()
	out, err := c.store.List(ctx)
	if err != nil {
		observability.FailSpan(span, err, "store list failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("scenario.count", len(out)))
	return out, nil
}

// Delete removes the scenario stored under id and drops any pending
// auto-save for it.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	c.cancelLocked(id)
	c.gen[id]++
	c.mu.Unlock()

	ctx = logging.ContextWithScenarioID(ctx, id)
	ctx, span := c.tracer.Start(ctx, "persistence.delete", trace.WithAttributes(attribute.String("scenario.id", id)))
	defer span.End()
	if err := c.store.Delete(ctx, id); err != nil {
		observability.FailSpan(span, err, "store delete failed")
		return err
	}
	c.log.Info(ctx, "scenario deleted")
	return nil
}

// Cancel drops the pending auto-save for id without writing it. A failing
// write already in flight is not retried.
func (c *Coordinator) Cancel(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[id]++
	return c.cancelLocked(id)
}

func (c *Coordinator) cancelLocked(id string) bool {
	p, ok := c.pending[id]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(c.pending, id)
	return true
}

// Pending reports whether an auto-save is waiting for id.
func (c *Coordinator) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

// Flush writes every pending auto-save now.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	due := c.pending
	c.pending = make(map[string]*pendingSave)
	for _, p := range due {
		p.timer.Stop()
	}
	c.mu.Unlock()

	var errs []error
	for id, p := range due {
		if err := c.write(logging.ContextWithScenarioID(ctx, id), "persistence.flush", p.scenario); err != nil {
			c.record(EventFailed)
			errs = append(errs, fmt.Errorf("flush %q: %w", id, err))
			continue
		}
		c.record(EventWritten)
	}
	return errors.Join(errs...)
}

// Close flushes pending auto-saves and rejects further saves.
func (c *Coordinator) Close(ctx context.Context) error {
	err := c.Flush(ctx)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return err
}

func (c *Coordinator) record(event string) {
	if c.rec != nil {
		c.rec.AutoSaveEvent(event)
	}
}
