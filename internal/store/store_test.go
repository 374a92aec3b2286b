package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/scenario-editor/model"
)

func sample(id string) *model.Scenario {
	s := model.NewScenario(id, "Scenario "+id, model.ScenarioCustom)
	s.Nodes = append(s.Nodes,
		model.Node{ID: "a", Kind: model.KindSatellite, Position: model.Position{X: 10, Y: 20}},
		model.Node{ID: "b", Kind: model.KindGroundStation, Ground: &model.GroundData{Latitude: model.Float(1.5)}},
	)
	s.Edges = append(s.Edges, model.Edge{ID: "ab", Source: "a", Target: "b", Frequency: model.Float(2.4e9)})
	s.Viewport = model.Viewport{X: 5, Y: 6, Zoom: 1.25}
	return s
}

// exerciseStore runs the Store contract against any backend.
func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := st.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(missing) err = %v, want ErrNotFound", err)
	}
	if err := st.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(missing) err = %v, want ErrNotFound", err)
	}
	if err := st.Save(ctx, model.NewScenario("", "x", model.ScenarioCustom)); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("Save(empty id) err = %v, want ErrInvalidID", err)
	}

	for _, id := range []string{"beta", "alpha", "with/slash and space"} {
		if err := st.Save(ctx, sample(id)); err != nil {
			t.Fatalf("Save(%q): %v", id, err)
		}
	}

	got, err := st.Load(ctx, "alpha")
	if err != nil {
		t.Fatalf("Load(alpha): %v", err)
	}
	want := sample("alpha")
	if len(got.Nodes) != 2 || len(got.Edges) != 1 || got.Viewport != want.Viewport {
		t.Fatalf("Load(alpha) = %+v", got)
	}
	if got.Nodes[1].Ground == nil || *got.Nodes[1].Ground.Latitude != 1.5 {
		t.Fatalf("ground data lost: %+v", got.Nodes[1])
	}
	if got.Nodes[0].Satellite != nil || got.Nodes[0].Movement != nil {
		t.Fatalf("unset optionals came back set: %+v", got.Nodes[0])
	}

	list, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || list[0].ID != "alpha" || list[1].ID != "beta" || list[2].ID != "with/slash and space" {
		t.Fatalf("List = %+v", list)
	}
	if list[0].Name != "Scenario alpha" {
		t.Fatalf("summary name = %q", list[0].Name)
	}

	updated := sample("alpha")
	updated.Name = "renamed"
	updated.Nodes = updated.Nodes[:1]
	updated.Edges = nil
	if err := st.Save(ctx, updated); err != nil {
		t.Fatalf("Save(updated): %v", err)
	}
	got, _ = st.Load(ctx, "alpha")
	if got.Name != "renamed" || len(got.Nodes) != 1 || got.Edges == nil || len(got.Edges) != 0 {
		t.Fatalf("overwrite not visible: %+v", got)
	}

	if err := st.Delete(ctx, "beta"); err != nil {
		t.Fatalf("Delete(beta): %v", err)
	}
	if _, err := st.Load(ctx, "beta"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after Delete err = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	s := sample("x")
	st.Save(ctx, s)
	s.Nodes[0].Name = "changed after save"

	got, _ := st.Load(ctx, "x")
	if got.Nodes[0].Name != "" {
		t.Fatalf("memory store aliased the saved scenario")
	}
	got.Nodes[0].Name = "changed after load"
	again, _ := st.Load(ctx, "x")
	if again.Nodes[0].Name != "" {
		t.Fatalf("memory store aliased the loaded scenario")
	}
}

func TestFileStore(t *testing.T) {
	st, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	exerciseStore(t, st)
}

func TestFileStoreCompressed(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFile(dir, WithCompression(true))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	exerciseStore(t, st)

	if _, err := os.Stat(filepath.Join(dir, "alpha"+zstdExt)); err != nil {
		t.Fatalf("compressed document missing: %v", err)
	}
}

func TestFileStoreSwitchingCompression(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	plain, _ := NewFile(dir)
	if err := plain.Save(ctx, sample("s")); err != nil {
		t.Fatalf("plain Save: %v", err)
	}

	zst, _ := NewFile(dir, WithCompression(true))
	if _, err := zst.Load(ctx, "s"); err != nil {
		t.Fatalf("compressed store cannot read plain document: %v", err)
	}
	renamed := sample("s")
	renamed.Name = "zstd"
	if err := zst.Save(ctx, renamed); err != nil {
		t.Fatalf("compressed Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "s"+jsonExt)); !os.IsNotExist(err) {
		t.Fatalf("stale plain document left behind: %v", err)
	}
	got, err := plain.Load(ctx, "s")
	if err != nil || got.Name != "zstd" {
		t.Fatalf("plain store read %+v, %v", got, err)
	}
	list, _ := plain.List(ctx)
	if len(list) != 1 {
		t.Fatalf("List = %+v", list)
	}
}

func TestFileStoreIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	st, _ := NewFile(dir)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644)
	os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("partial"), 0o644)
	os.Mkdir(filepath.Join(dir, "sub.json"), 0o755)

	list, err := st.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("List = %+v, %v", list, err)
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	st, _ := NewFile(dir)
	os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644)

	_, err := st.Load(context.Background(), "bad")
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "load" {
		t.Fatalf("Load(bad) err = %v, want IOError", err)
	}
}

func TestDecodeNormalizes(t *testing.T) {
	s, err := Decode([]byte(`{"id":"r","scenarioType":"realistic","edges":[{"id":"e","source":"a","target":"b"}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(s.Edges) != 0 || s.Nodes == nil || s.Viewport != model.DefaultViewport {
		t.Fatalf("Decode did not normalize: %+v", s)
	}
}

type countingStore struct {
	Store
	loads atomic.Int32
	delay time.Duration
}

func (c *countingStore) Load(ctx context.Context, id string) (*model.Scenario, error) {
	c.loads.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.Store.Load(ctx, id)
}

func TestCachedStore(t *testing.T) {
	cached, err := NewCached(NewMemory(), 8)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	exerciseStore(t, cached)
}

func TestCachedStoreServesFromCache(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: NewMemory()}
	backend.Store.Save(ctx, sample("x"))
	cached, _ := NewCached(backend, 2)

	for range 3 {
		s, err := cached.Load(ctx, "x")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		s.Name = "scribbled"
	}
	if n := backend.loads.Load(); n != 1 {
		t.Fatalf("backend loads = %d, want 1", n)
	}
	s, _ := cached.Load(ctx, "x")
	if s.Name == "scribbled" {
		t.Fatalf("cache handed out an alias")
	}

	if _, err := cached.Load(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(nope) err = %v", err)
	}
	if cached.Len() != 1 {
		t.Fatalf("not-found result cached: Len = %d", cached.Len())
	}
}

func TestCachedStoreCoalescesConcurrentLoads(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: NewMemory(), delay: 50 * time.Millisecond}
	backend.Store.Save(ctx, sample("x"))
	cached, _ := NewCached(backend, 2)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cached.Load(ctx, "x"); err != nil {
				t.Errorf("Load: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := backend.loads.Load(); n != 1 {
		t.Fatalf("backend loads = %d, want 1", n)
	}
}

// slowReadStore reads from the backend at once but holds the result until
// released, so a write can land while the read is in flight.
type slowReadStore struct {
	Store
	entered chan struct{}
	release chan struct{}
}

func (s *slowReadStore) Load(ctx context.Context, id string) (*model.Scenario, error) {
	sc, err := s.Store.Load(ctx, id)
	close(s.entered)
	<-s.release
	return sc, err
}

func TestCachedStoreKeepsSaveOverlappingLoad(t *testing.T) {
	ctx := context.Background()
	backend := &slowReadStore{Store: NewMemory(), entered: make(chan struct{}), release: make(chan struct{})}
	old := sample("x")
	old.Name = "old"
	backend.Store.Save(ctx, old)
	cached, _ := NewCached(backend, 2)

	loaded := make(chan *model.Scenario, 1)
	go func() {
		s, err := cached.Load(ctx, "x")
		if err != nil {
			t.Errorf("Load: %v", err)
		}
		loaded <- s
	}()
	<-backend.entered

	newer := sample("x")
	newer.Name = "new"
	if err := cached.Save(ctx, newer); err != nil {
		t.Fatalf("Save: %v", err)
	}
	close(backend.release)
	if s := <-loaded; s == nil || s.Name != "old" {
		t.Fatalf("in-flight load = %+v", s)
	}

	// Served from the cache without reaching the backend.
	s, err := cached.Load(ctx, "x")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "new" {
		t.Fatalf("cache holds %q after save, want %q", s.Name, "new")
	}
}

type failingStore struct {
	calls atomic.Int32
	err   error
}

func (f *failingStore) List(context.Context) ([]model.Summary, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *failingStore) Load(context.Context, string) (*model.Scenario, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *failingStore) Save(context.Context, *model.Scenario) error {
	f.calls.Add(1)
	return f.err
}

func (f *failingStore) Delete(context.Context, string) error {
	f.calls.Add(1)
	return f.err
}

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	backend := &failingStore{err: &IOError{Op: "save", Err: fmt.Errorf("%w: disk gone", ErrUnavailable)}}
	cfg := DefaultBreakerConfig("test")
	cfg.Timeout = time.Hour
	b := NewBreaker(backend, cfg, nil)

	ctx := context.Background()
	for range 3 {
		b.Save(ctx, sample("x"))
	}
	if b.State() != "open" {
		t.Fatalf("breaker state = %s, want open", b.State())
	}
	err := b.Save(ctx, sample("x"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("open breaker err = %v, want ErrUnavailable", err)
	}
	if n := backend.calls.Load(); n != 3 {
		t.Fatalf("backend called %d times, want 3", n)
	}
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	backend := &failingStore{err: ErrNotFound}
	b := NewBreaker(backend, DefaultBreakerConfig("test"), nil)

	ctx := context.Background()
	for range 10 {
		if _, err := b.Load(ctx, "x"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Load err = %v", err)
		}
	}
	if b.State() != "closed" {
		t.Fatalf("not-found tripped the breaker: %s", b.State())
	}
}

func TestBreakerPassesResults(t *testing.T) {
	b := NewBreaker(NewMemory(), DefaultBreakerConfig("test"), nil)
	exerciseStore(t, b)
}

type opRecord struct {
	op, result string
}

type fakeOpRecorder struct {
	mu   sync.Mutex
	seen []opRecord
}

func (f *fakeOpRecorder) ObserveStoreOp(op, result string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, opRecord{op, result})
}

func TestInstrumentedStore(t *testing.T) {
	rec := &fakeOpRecorder{}
	st := NewInstrumented(NewMemory(), rec)
	ctx := context.Background()

	st.Save(ctx, sample("x"))
	st.Load(ctx, "x")
	st.Load(ctx, "y")
	st.List(ctx)
	st.Delete(ctx, "x")

	want := []opRecord{
		{"save", ResultOK},
		{"load", ResultOK},
		{"load", ResultNotFound},
		{"list", ResultOK},
		{"delete", ResultOK},
	}
	if len(rec.seen) != len(want) {
		t.Fatalf("recorded %+v", rec.seen)
	}
	for i := range want {
		if rec.seen[i] != want[i] {
			t.Fatalf("record %d = %+v, want %+v", i, rec.seen[i], want[i])
		}
	}
}

func TestResultOfAndTransient(t *testing.T) {
	cases := []struct {
		err       error
		result    string
		transient bool
	}{
		{nil, ResultOK, false},
		{ErrNotFound, ResultNotFound, false},
		{&IOError{Op: "load", Err: ErrUnavailable}, ResultUnavailable, true},
		{errors.New("boom"), ResultError, true},
		{ErrInvalidID, ResultError, false},
		{model.NewValidationError("id", "bad"), ResultError, false},
		{context.Canceled, ResultError, false},
	}
	for _, tc := range cases {
		if got := ResultOf(tc.err); got != tc.result {
			t.Fatalf("ResultOf(%v) = %s, want %s", tc.err, got, tc.result)
		}
		if got := IsTransient(tc.err); got != tc.transient {
			t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.transient)
		}
	}
}
