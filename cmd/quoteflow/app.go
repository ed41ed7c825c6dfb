package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sirupsen/logrus"

	"github.com/ShayCichocki/quoteflow/internal/api"
	"github.com/ShayCichocki/quoteflow/internal/cache"
	"github.com/ShayCichocki/quoteflow/internal/catalog"
	"github.com/ShayCichocki/quoteflow/internal/config"
	"github.com/ShayCichocki/quoteflow/internal/executor"
	"github.com/ShayCichocki/quoteflow/internal/interpret"
	"github.com/ShayCichocki/quoteflow/internal/logging"
	"github.com/ShayCichocki/quoteflow/internal/metrics"
	"github.com/ShayCichocki/quoteflow/internal/optimizer"
	"github.com/ShayCichocki/quoteflow/internal/state"
	"github.com/ShayCichocki/quoteflow/internal/tools"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	catalog catalog.Catalog
	tree    tools.TreeSource
	watcher *catalog.Watcher

	db     *state.DB
	tools  *tools.Registry
	client *api.Client
}

// appOptions selects the optional parts of newApp.
type appOptions struct {
	// withDB opens the state database and registers the quote tools.
	withDB bool
}

// newApp wires the catalog, state database, tool registry and metrics
// server from cfg. The metrics server stops when ctx is done.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	var log logrus.FieldLogger = logging.Default()
	if logger != nil {
		log = logger
	}
	reg, m := metrics.NewRegistry()

	a := &app{cfg: cfg, log: log, metrics: m}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, metrics.HandlerFor(reg)); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	if err := a.loadCatalog(); err != nil {
		return nil, err
	}

	if opts.withDB {
		db, err := openDB(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = db
	}

	a.tools = tools.NewRegistry()
	if err := tools.RegisterCatalogTools(a.tools, a.tree); err != nil {
		a.Close()
		return nil, fmt.Errorf("register catalog tools: %w", err)
	}
	if a.db != nil {
		if err := tools.RegisterQuoteTools(a.tools, a.db); err != nil {
			a.Close()
			return nil, fmt.Errorf("register quote tools: %w", err)
		}
	}

	return a, nil
}

func (a *app) loadCatalog() error {
	path := a.cfg.Catalog.Path
	switch {
	case path == "":
		t, err := catalog.Bundled()
		if err != nil {
			return err
		}
		a.catalog, a.tree = t, tools.StaticTree(t)
	case a.cfg.Catalog.Watch:
		w, err := catalog.NewWatcher(path,
			catalog.WithWatcherLogger(a.log),
			catalog.WithWatcherMetrics(a.metrics),
		)
		if err != nil {
			return fmt.Errorf("watch catalog: %w", err)
		}
		a.watcher = w
		a.catalog, a.tree = w, w.Tree
	default:
		t, err := catalog.Load(path)
		if err != nil {
			return err
		}
		a.catalog, a.tree = t, tools.StaticTree(t)
	}
	return nil
}

// openDB opens and migrates the configured database.
func openDB(cfg *config.Config) (*state.DB, error) {
	path := cfg.State.DBPath
	if path == "" {
		path = state.GlobalDBPath()
	}
	db, err := state.OpenMigrated(path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	return db, nil
}

// optimizer returns a budget optimizer over the app catalog.
func (a *app) optimizer() *optimizer.Optimizer {
	return optimizer.New(a.catalog,
		optimizer.WithMaxCombinations(a.cfg.Optimizer.MaxCombinations),
		optimizer.WithMetrics(a.metrics),
		optimizer.WithLogger(a.log),
	)
}

// interpreter returns the LLM interpreter when credentials allow it and the
// rule interpreter otherwise.
func (a *app) interpreter() (executor.Interpreter, error) {
	if !config.UseLLM(a.cfg) {
		a.log.Debug("using rule interpreter")
		return interpret.DefaultRules(), nil
	}

	ac := a.cfg.Anthropic
	var key string
	if !ac.Bedrock {
		k, err := config.GetAPIKey(a.cfg)
		if err != nil {
			return nil, err
		}
		if err := config.ValidateAPIKey(k); err != nil {
			return nil, fmt.Errorf("anthropic.api_key: %w", err)
		}
		key = k
	}
	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(ac.Model),
		APIKey:        key,
		MaxTokens:     ac.MaxTokens,
		UseAWSBedrock: ac.Bedrock,
		AWSRegion:     ac.AWSRegion,
		AWSProfile:    ac.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	a.client = client
	a.log.WithField("model", client.Model()).Debug("using LLM interpreter")

	return interpret.NewLLM(client, a.tools.Tools(),
		interpret.WithNativeTools(a.cfg.Interpreter.NativeTools),
		interpret.WithLLMLogger(a.log),
	), nil
}

// quoteCache builds the cache selected by the cache config section.
func (a *app) quoteCache() (*cache.QuoteCache, error) {
	policy, err := a.cfg.Cache.Policy()
	if err != nil {
		return nil, err
	}
	opts := []cache.Option{cache.WithMetrics(a.metrics), cache.WithLogger(a.log)}
	if policy.Scope == cache.ScopePersistent {
		if a.db == nil {
			return nil, errors.New("persistent cache scope needs the state database")
		}
		opts = append(opts, cache.WithStore(a.db))
	}
	return cache.New(policy, opts...)
}

// executor builds a task executor from the executor config section.
func (a *app) executor(extra ...executor.Option) (*executor.Executor, error) {
	interp, err := a.interpreter()
	if err != nil {
		return nil, err
	}
	qc, err := a.quoteCache()
	if err != nil {
		return nil, err
	}

	ec := a.cfg.Executor
	opts := []executor.Option{
		executor.WithCache(qc),
		executor.WithOptimizer(a.optimizer()),
		executor.WithRoomCategories(a.cfg.Optimizer.Room),
		executor.WithMaxParallel(ec.MaxParallel),
		executor.WithRecentWindow(ec.RecentWindow),
		executor.WithRunTimeout(ec.RunTimeout),
		executor.WithSubtaskTimeout(ec.SubtaskTimeout),
		executor.WithLogger(a.log),
		executor.WithMetrics(a.metrics),
	}
	if a.db != nil {
		opts = append(opts, executor.WithQuoteSink(a.db), executor.WithOptimizationSink(a.db))
	}
	opts = append(opts, extra...)

	return executor.New(executor.RequiredConfig{Interpreter: interp, Invoker: a.tools}, opts...)
}

// Close releases the watcher and database.
func (a *app) Close() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.log.WithError(err).Warn("close catalog watcher")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("close state database")
		}
	}
}
