package di

import (
	"context"
	"fmt"
	"time"

	"FinForge/internal/align"
	domrepo "FinForge/internal/domain/repository"
	"FinForge/internal/features"
	"FinForge/internal/handler/api"
	"FinForge/internal/pipeline"
	"FinForge/internal/registry"
	internalrepo "FinForge/internal/repository"
	"FinForge/internal/usecase"
	"FinForge/internal/validate"
	pkgcache "FinForge/pkg/cache"
	pkgch "FinForge/pkg/clickhouse"
	"FinForge/pkg/config"
	xhttp "FinForge/pkg/http"
	pkgkafka "FinForge/pkg/kafka"
	"FinForge/pkg/logger"
	"FinForge/pkg/metrics"
	"FinForge/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return logger.New(&logger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// candle source table exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s.candles_1m (symbol String, bucket DateTime64(3), open Float64, high Float64, low Float64, close Float64, vol Float64) ENGINE=MergeTree ORDER BY (symbol, bucket)",
			db,
		),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRegistry opens the dataset metadata registry.
func ProvideRegistry(cfg *config.Config, l *logger.Logger) (*registry.Registry, error) {
	return registry.New(cfg.Registry.Dir, l)
}

// ProvideCandleSource creates the ClickHouse candle reader.
func ProvideCandleSource(ch *pkgch.Client, cfg *config.Config, l *logger.Logger) domrepo.CandleSource {
	src := internalrepo.NewCHCandleSource(ch, cfg.ClickHouse.Database)
	src.SetLogger(l)
	return src
}

// ProvideDatasetStore creates the ClickHouse dataset writer.
func ProvideDatasetStore(ch *pkgch.Client, cfg *config.Config, reg *registry.Registry, l *logger.Logger) domrepo.DatasetStore {
	store := internalrepo.NewCHDatasetStore(ch, cfg.ClickHouse.Database, reg)
	store.SetLogger(l)
	return store
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideReportPublisher wraps the producer, or nil when Kafka is disabled.
func ProvideReportPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *logger.Logger) domrepo.ReportPublisher {
	if producer == nil {
		return nil
	}
	pub := internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.Topic)
	pub.SetLogger(l)
	return pub
}

// ProvideRedisCache creates a Redis cache client, or nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	cache, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache, nil
}

// ProvideRunCache keeps the latest run report per destination. Falls back
// to an in-process cache when Redis is disabled.
func ProvideRunCache(redis *pkgcache.RedisCache, cfg *config.Config) domrepo.RunCache {
	var backend pkgcache.Service
	if redis != nil {
		backend = redis
	} else {
		backend = pkgcache.NewMemoryCache()
	}
	return internalrepo.NewRedisRunCache(backend, cfg.Redis.TTL)
}

// ProvideAligner builds the configured alignment strategy. The loose preset
// widens the asof tolerance for illiquid assets.
func ProvideAligner(cfg *config.Config, l *logger.Logger) (align.Aligner, error) {
	if cfg.Pipeline.Preset == "loose" && cfg.Pipeline.Method == "asof" {
		return align.Loose(cfg.Pipeline.Tolerance, l)
	}
	return align.New(cfg.Pipeline.Method, cfg.Pipeline.Tolerance, align.Direction(cfg.Pipeline.Direction), l)
}

// ProvideValidator builds the quality gate from the configured preset plus
// per-deployment rule overrides.
func ProvideValidator(cfg *config.Config, l *logger.Logger) (*validate.Validator, error) {
	var base validate.Rules
	switch cfg.Pipeline.Preset {
	case "strict":
		base = validate.StrictRules()
	case "loose":
		base = validate.LooseRules()
	default:
		base = validate.DefaultRules()
	}
	rules, err := base.WithOverrides(cfg.Pipeline.Validation, l)
	if err != nil {
		return nil, fmt.Errorf("validation rules: %w", err)
	}
	return validate.NewValidator(rules, l)
}

// ProvideTransformers builds the feature tiers in dependency order.
func ProvideTransformers(cfg *config.Config, l *logger.Logger) []features.Transformer {
	return []features.Transformer{
		features.NewReturns(l),
		features.NewMicrostructure(cfg.Pipeline.VolWindows, l),
		features.NewStatArb(cfg.Pipeline.BetaWindow, cfg.Pipeline.ZScoreWindow, cfg.Pipeline.Anchor, l),
	}
}

// ProvideOrchestrator assembles the pipeline.
func ProvideOrchestrator(
	aligner align.Aligner,
	validator *validate.Validator,
	transformers []features.Transformer,
	store domrepo.DatasetStore,
	m domrepo.Metrics,
	l *logger.Logger,
) (*pipeline.Orchestrator, error) {
	return pipeline.New(aligner, validator, transformers, l,
		pipeline.WithSink(store),
		pipeline.WithMetrics(m),
	)
}

// ProvideRefiner creates the refinement use case.
func ProvideRefiner(
	source domrepo.CandleSource,
	orchestrator *pipeline.Orchestrator,
	reg *registry.Registry,
	publisher domrepo.ReportPublisher,
	runCache domrepo.RunCache,
	m domrepo.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.Refiner {
	return usecase.NewRefiner(source, orchestrator, reg, publisher, runCache, m, l, usecase.RefinerConfig{
		Timeframe:   domrepo.NormalizeTimeframe(cfg.Source.Timeframe),
		Destination: cfg.Pipeline.Destination,
		Anchor:      cfg.Pipeline.Anchor,
		Strict:      cfg.Pipeline.Strict,
	})
}

// ProvideHTTPHandler creates the echo route handler.
func ProvideHTTPHandler(l *logger.Logger, refiner *usecase.Refiner) xhttp.Handler {
	return api.NewPipelineEchoHandler(l, refiner)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	redis *pkgcache.RedisCache,
) *server.App {
	return server.New(cfg, l, handler, chClient, producer, redis)
}
