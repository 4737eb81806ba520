// Package commands holds the reviewterms subcommand actions and the
// runtime they share: configuration, logging, metrics, tracing and the
// optional sinks.
package commands

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/collector"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/mapper"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/output"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/sqlite"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/tracing"
)

const configKey = "config"

// env is the per-invocation runtime. close releases everything opened on
// demand, in reverse order.
type env struct {
	cfg     *config.Config
	runID   string
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	closers []func() error
}

// loadConfig is the app's Before hook: it loads the config, applies the
// global flag overrides and installs the logger.
func loadConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	c.App.Metadata[configKey] = cfg
	return nil
}

func newEnv(c *cli.Context) (*env, context.Context, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, nil, errors.New("configuration not loaded")
	}
	runID := c.String("run-id")
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx := logger.WithRunID(c.Context, runID)
	e := &env{
		cfg:     cfg,
		runID:   runID,
		metrics: metrics.New(),
		logger:  logger.FromContext(ctx).With("command", c.Command.Name),
	}
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, e.metrics)
		e.onClose(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(ctx)
		})
	}
	return e, ctx, nil
}

// startTrace opens the run's root span. finish ends it, logs the tree when
// tracing is on and pushes metrics when a Pushgateway is configured.
func (e *env) startTrace(ctx context.Context, name string) (context.Context, func()) {
	ctx, root := tracing.StartSpan(ctx, name, e.runID)
	return ctx, func() {
		root.End()
		if e.cfg.Tracing.Enabled {
			root.Log(e.logger)
		}
		if url := e.cfg.Metrics.PushGatewayURL; url != "" {
			pushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.metrics.Push(pushCtx, url, e.cfg.Metrics.JobName, e.runID); err != nil {
				e.logger.Warn("metrics push failed", "error", err)
			}
		}
	}
}

func (e *env) onClose(fn func() error) {
	e.mu.Lock()
	e.closers = append(e.closers, fn)
	e.mu.Unlock()
}

func (e *env) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("close failed", "error", err)
		}
	}
}

func (e *env) mapper() (*mapper.Mapper, error) {
	stopwords, err := tokenizer.LoadStopwords(e.cfg.Mapper.StopwordsPath)
	if err != nil {
		return nil, err
	}
	return mapper.New(mapper.Options{
		Threshold: e.cfg.Mapper.Threshold,
		Stopwords: stopwords,
		AccentMap: e.cfg.Mapper.AccentMap,
	})
}

// store opens the configured SQL sink, or returns nil when none is set.
func (e *env) store(ctx context.Context) (*sink.Store, error) {
	var driver string
	switch e.cfg.Sink.Kind {
	case "":
		return nil, nil
	case "sqlite":
		driver = sink.DriverSQLite
	case "postgres":
		driver = sink.DriverPostgres
	}
	db, err := e.openDB(ctx, driver)
	if err != nil {
		return nil, err
	}
	e.onClose(db.Close)
	store, err := sink.NewStore(db, driver)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (e *env) openDB(ctx context.Context, driver string) (*sql.DB, error) {
	if driver == sink.DriverPostgres {
		return postgres.Open(ctx, e.cfg.Postgres)
	}
	return sqlite.Open(ctx, e.cfg.SQLite.Path)
}

// notifier returns the Kafka table notifier, or nil when Kafka is off.
func (e *env) notifier() *sink.Notifier {
	if !e.cfg.Kafka.Enabled {
		return nil
	}
	producer := kafka.NewProducer(e.cfg.Kafka)
	e.onClose(producer.Close)
	return sink.NewNotifier(producer)
}

func (e *env) pipeline(ctx context.Context, withSinks bool) (*pipeline.Pipeline, error) {
	m, err := e.mapper()
	if err != nil {
		return nil, err
	}
	w, err := output.NewWriter(e.cfg.Output.Dir, e.cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	opts := pipeline.Options{
		Mapper:     m,
		Writer:     w,
		Workers:    e.cfg.Mapper.Workers,
		Partitions: e.cfg.Reducer.Partitions,
		MaxTerms:   e.cfg.Output.MaxTerms,
		Metrics:    e.metrics,
	}
	if withSinks {
		if opts.Store, err = e.store(ctx); err != nil {
			return nil, err
		}
		opts.Notifier = e.notifier()
	}
	return pipeline.New(opts), nil
}

// pageCache connects to Redis when the cache is enabled.
func (e *env) pageCache(ctx context.Context) (*collector.RedisCache, error) {
	if !e.cfg.Redis.Enabled {
		return nil, nil
	}
	client, err := redis.NewClient(ctx, e.cfg.Redis)
	if err != nil {
		return nil, err
	}
	e.onClose(client.Close)
	return collector.NewRedisCache(client, e.cfg.Redis.CacheTTL), nil
}

func (e *env) client(rc *collector.RedisCache) *collector.Client {
	var cache collector.PageCache
	if rc != nil {
		cache = rc
	}
	f := e.cfg.Fetcher
	return collector.NewClient(collector.ClientConfig{
		BaseURL:             f.BaseURL,
		RequestTimeout:      f.RequestTimeout,
		RetryAttempts:       f.RetryAttempts,
		RetryInitialDelay:   f.RetryInitialDelay,
		BreakerThreshold:    f.BreakerThreshold,
		BreakerResetTimeout: f.BreakerResetTimeout,
	}, cache, e.metrics)
}
