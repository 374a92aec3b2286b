package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/scenario-editor/editor"
	"github.com/signalsfoundry/scenario-editor/history"
	"github.com/signalsfoundry/scenario-editor/internal/config"
	"github.com/signalsfoundry/scenario-editor/internal/logging"
	"github.com/signalsfoundry/scenario-editor/internal/observability"
	"github.com/signalsfoundry/scenario-editor/internal/persistence"
	"github.com/signalsfoundry/scenario-editor/internal/store"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes one CLI invocation and releases everything it opened.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(ctx)
	a.close(ctx)
	return err
}

func newRootCommand(a *app) *cobra.Command {
	var configPath, metricsAddr string

	root := &cobra.Command{
		Use:   "scenario-editor",
		Short: "Inspect and edit network topology scenarios",
		Long: `scenario-editor manages stored scenarios of satellites, ground stations
and user terminals, replays edit scripts through an editing session, and
derives orbital parameters from TLE or Keplerian input.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context(), configPath, metricsAddr, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address while the command runs")

	root.AddCommand(
		newListCommand(a),
		newShowCommand(a),
		newNewCommand(a),
		newDeleteCommand(a),
		newApplyCommand(a),
		newTemplatesCommand(),
		newOrbitCommand(),
		newSpeedCommand(),
	)
	return root
}

// app holds what the commands share: configuration, logger, metrics and
// the store chain.
type app struct {
	cfg       *config.Config
	log       logging.Logger
	collector *observability.EditorCollector
	store     store.Store

	metricsSrv      *http.Server
	shutdownTracing func(context.Context) error
}

func (a *app) init(ctx context.Context, configPath, metricsAddr string, logOut io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	a.cfg = cfg

	lc := cfg.LoggerConfig()
	lc.Output = logOut
	a.log = logging.New(lc)

	a.collector, err = observability.NewEditorCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if cfg.Metrics.Addr != "" {
		a.metricsSrv = serveMetrics(cfg.Metrics.Addr, a.collector, a.log)
	}

	tc := cfg.TracerConfig()
	tc.Output = logOut
	a.shutdownTracing, err = observability.InitTracing(ctx, tc, a.log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	a.store, err = buildStore(ctx, cfg, a.log, a.collector)
	return err
}

func (a *app) close(ctx context.Context) {
	if a.log == nil {
		return
	}
	observability.ShutdownWithTimeout(ctx, a.shutdownTracing, a.log)
	if a.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = a.metricsSrv.Shutdown(shutdownCtx)
	}
	_ = logging.Close(a.log)
}

// buildStore assembles backend, breaker, instrumentation and cache, from
// the inside out.
func buildStore(ctx context.Context, cfg *config.Config, log logging.Logger, rec store.OpRecorder) (store.Store, error) {
	var backend store.Store
	switch cfg.Store.Backend {
	case config.BackendMemory:
		backend = store.NewMemory()
	case config.BackendFile:
		f, err := store.NewFile(cfg.Store.Dir, store.WithCompression(cfg.Store.Compress))
		if err != nil {
			return nil, err
		}
		backend = f
	case config.BackendDynamo:
		d, err := store.NewDynamoFromConfig(ctx, cfg.Store.Dynamo.Table, cfg.Store.Dynamo.Region, cfg.Store.Dynamo.Endpoint)
		if err != nil {
			return nil, err
		}
		backend = d
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	st := backend
	if cfg.Store.Breaker.Enabled {
		st = store.NewBreaker(st, cfg.StoreBreakerConfig(), log)
	}
	st = store.NewInstrumented(st, rec)
	if cfg.Store.CacheSize > 0 {
		cached, err := store.NewCached(st, cfg.Store.CacheSize)
		if err != nil {
			return nil, err
		}
		st = cached
	}
	log.Debug(ctx, "store ready", logging.String("backend", cfg.Store.Backend),
		logging.Bool("breaker", cfg.Store.Breaker.Enabled), logging.Int("cache_size", cfg.Store.CacheSize))
	return st, nil
}

// newSession opens an editing session wired to the app's store, metrics
// and settings.
func (a *app) newSession() *editor.Session {
	return editor.NewSession(a.store,
		editor.WithLogger(a.log),
		editor.WithMetrics(a.collector),
		editor.WithHistoryOptions(
			history.WithLimit(a.cfg.History.Limit),
			history.WithMetricsRecorder(a.collector),
		),
		editor.WithPersistenceOptions(
			persistence.WithQuietPeriod(a.cfg.AutoSave.QuietPeriod),
			persistence.WithMaxRetries(a.cfg.AutoSave.MaxRetries),
			persistence.WithRecorder(a.collector),
			persistence.WithDefaultType(a.cfg.ScenarioType()),
			persistence.WithErrorHandler(func(id string, err error) {
				a.log.Warn(logging.ContextWithScenarioID(context.Background(), id), "auto-save failed", logging.Err(err))
			}),
		),
	)
}

func serveMetrics(addr string, collector *observability.EditorCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
