package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/vango-dev/stakeview/internal/config"
	"github.com/vango-dev/stakeview/internal/errors"
	"github.com/vango-dev/stakeview/internal/logging"
	"github.com/vango-dev/stakeview/pkg/dashboard"
	"github.com/vango-dev/stakeview/pkg/era"
	"github.com/vango-dev/stakeview/pkg/resource"
	"github.com/vango-dev/stakeview/pkg/source/blob"
	"github.com/vango-dev/stakeview/pkg/source/chain"
	"github.com/vango-dev/stakeview/pkg/source/indexer"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		indexerURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server",
		Long: `Run the dashboard server.

Configuration is read from --config, or from stakeview.json in the current
directory when present. Environment variables override the file.

Sources:
  • indexer.url      validator records and rewards (required)
  • indexer.feedUrl  websocket stream of era changes
  • node             local node for pool registrations and the era index
  • blobs            pool metadata from a directory or an S3 bucket

Examples:
  stakeview serve --indexer https://indexer.example
  stakeview serve --config /etc/stakeview.json --listen :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if indexerURL != "" {
				cfg.Indexer.URL = indexerURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.Init(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to stakeview.json")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&indexerURL, "indexer", "", "Indexer base URL (default from config)")
	return cmd
}

// loadConfig reads path, or stakeview.json in the working directory. A
// missing default file is not an error.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.Load(".")
	if errors.HasCode(err, errors.CodeConfigNotFound) {
		cfg = config.New()
		cfg.ApplyEnv(os.LookupEnv)
		return cfg, nil
	}
	return cfg, err
}

// app is the wired set of sources, background loops and the dashboard.
type app struct {
	provider  *era.Provider
	registry  *prometheus.Registry
	dashboard *dashboard.Server
	loops     map[string]func(context.Context) error
	closers   []func() error
}

// Close releases the dashboard and every source connection.
func (a *app) Close() {
	if a.dashboard != nil {
		a.dashboard.Close()
	}
	a.closeSources()
}

// build wires the sources named by cfg into a dashboard.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if cfg.Indexer.URL == "" {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("indexer.url is not set").
			WithSuggestion("Set indexer.url in stakeview.json or pass --indexer")
	}

	a := &app{
		provider: era.NewProvider(logger),
		loops:    map[string]func(context.Context) error{},
	}
	tracer := otel.Tracer(resource.TracerName)

	idx, err := indexer.New(cfg.Indexer.URL, indexer.WithLogger(logger), indexer.WithTracer(tracer))
	if err != nil {
		return nil, err
	}

	interval, err := cfg.Node.Interval()
	if err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	var (
		pools dashboard.PoolSource
		epoch chain.EpochSource = idx
	)
	if cfg.Node.HasNode() {
		node, err := chain.Dial(cfg.Node, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, node.Close)
		pools, epoch = node, node
	}
	a.loops["era poller"] = chain.NewEraPoller(epoch, a.provider, interval, logger).Run

	if cfg.Indexer.FeedURL != "" {
		a.loops["era feed"] = indexer.NewFeed(cfg.Indexer.FeedURL, a.provider, logger).Run
	}

	blobs, err := blob.Open(ctx, cfg.Blobs, logger)
	if err != nil {
		a.closeSources()
		return nil, err
	}

	dcfg := dashboard.Config{
		Validators: idx,
		Pools:      pools,
		Blobs:      blobs,
		Era:        a.provider,
		Tracer:     tracer,
		Logger:     logger,
	}
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		dcfg.Metrics = resource.NewMetrics(
			resource.WithRegistry(a.registry),
			resource.WithNamespace(cfg.Metrics.Namespace),
		)
		dcfg.Registerer = a.registry
		dcfg.Gatherer = a.registry
		dcfg.Namespace = cfg.Metrics.Namespace
	}

	a.dashboard, err = dashboard.New(dcfg)
	if err != nil {
		a.closeSources()
		return nil, err
	}
	return a, nil
}

func (a *app) closeSources() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

// runServe serves the dashboard until ctx is done, with the era loops
// running alongside.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	loopCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for name, loop := range a.loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := loop(loopCtx); err != nil && !stderrors.Is(err, context.Canceled) {
				logger.Error("background loop stopped", "loop", name, "error", err)
			}
		}()
	}

	err = a.dashboard.ListenAndServe(ctx, cfg.Listen)
	cancel()
	wg.Wait()
	return err
}
