package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/prometheus/client_golang/prometheus"

	"RiskLab/internal/domain/models"
	domrepo "RiskLab/internal/domain/repository"
	"RiskLab/internal/handler/api"
	"RiskLab/internal/repository"
	"RiskLab/internal/service/cache"
	"RiskLab/internal/service/fred"
	svcmetrics "RiskLab/internal/service/metrics"
	"RiskLab/internal/service/ratelimit"
	"RiskLab/internal/service/source"
	"RiskLab/internal/service/yahoo"
	"RiskLab/internal/usecase"
	pkgch "RiskLab/pkg/clickhouse"
	"RiskLab/pkg/config"
	xhttp "RiskLab/pkg/http"
	pkgkafka "RiskLab/pkg/kafka"
	applogger "RiskLab/pkg/logger"
	"RiskLab/pkg/metrics"
	"RiskLab/pkg/server"
)

const userAgent = "risklab-ingest/1.0"

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the process-wide Prometheus registry.
func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics creates the pipeline metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

// ProvideSourceMetrics creates provider fetch metrics.
func ProvideSourceMetrics(reg *prometheus.Registry) *svcmetrics.SourceMetrics {
	return svcmetrics.NewSourceMetrics(reg)
}

// ProvideBytesCache creates the fetch cache, or nil when caching is off.
func ProvideBytesCache(cfg *config.Config) (cache.BytesCache, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}
	if cfg.Cache.Backend == "memory" {
		return cache.NewTTLCache(), func() {}, nil
	}

	rc := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	cleanup := func() { _ = rc.Close() }
	if cfg.Cache.Backend == "layered" {
		return cache.NewLayeredCache(rc, time.Minute), cleanup, nil
	}
	return rc, cleanup, nil
}

// ProvideRateLimiter throttles each provider at its configured rate and burst.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(1, 1).
		SetLimit(string(models.ProviderFRED), cfg.Fred.RateLimit, cfg.Fred.Burst).
		SetLimit(string(models.ProviderMarket), cfg.Market.RateLimit, cfg.Market.Burst)
}

// ProvideSourceRegistry builds one decorated adapter per provider:
// cache, then retry, then rate limit, then the HTTP client.
func ProvideSourceRegistry(cfg *config.Config, c cache.BytesCache, lim *ratelimit.Limiter, sm *svcmetrics.SourceMetrics, l *applogger.Logger) *source.Registry {
	policy := source.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}

	fredOpts := []fred.Option{fred.WithHTTPClient(httpClient(cfg.Fred))}
	if cfg.Fred.BaseURL != "" {
		fredOpts = append(fredOpts, fred.WithBaseURL(cfg.Fred.BaseURL))
	}
	yahooOpts := []yahoo.Option{yahoo.WithHTTPClient(httpClient(cfg.Market))}
	if cfg.Market.BaseURL != "" {
		yahooOpts = append(yahooOpts, yahoo.WithBaseURL(cfg.Market.BaseURL))
	}

	decorate := func(p models.Provider, base domrepo.SourceAdapter) domrepo.SourceAdapter {
		var a domrepo.SourceAdapter = source.NewRateLimited(base, p, lim)
		a = source.NewRetrying(a, p, policy, sm, l)
		if c != nil {
			a = source.NewCached(a, p, c, cfg.Cache.TTL, sm, l)
		}
		return a
	}

	return source.NewRegistry().
		Register(models.ProviderFRED, decorate(models.ProviderFRED, fred.New(cfg.Fred.APIKey, fredOpts...))).
		Register(models.ProviderMarket, decorate(models.ProviderMarket, yahoo.New(yahooOpts...)))
}

func httpClient(sc config.SourceConfig) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(sc.Timeout), xhttp.WithUserAgent(userAgent))
}

// ProvideArtifactStore roots the parquet store at storage.data_root.
func ProvideArtifactStore(cfg *config.Config, l *applogger.Logger) *repository.ParquetArtifactStore {
	return repository.NewParquetArtifactStore(osfs.New(cfg.Storage.DataRoot), l)
}

// ProvideCatalog opens the JSON catalog at storage.catalog_path.
func ProvideCatalog(cfg *config.Config, l *applogger.Logger) *repository.JSONCatalog {
	dir, file := filepath.Split(cfg.Storage.CatalogPath)
	if dir == "" {
		dir = "."
	}
	return repository.NewJSONCatalog(osfs.New(dir), file, l)
}

// ProvideClickHouseSink connects the warehouse mirror, or returns nil when disabled.
func ProvideClickHouseSink(cfg *config.Config, l *applogger.Logger) (domrepo.SeriesSink, func(), error) {
	ch := cfg.ClickHouse
	if !ch.Enabled {
		return nil, func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	sink, err := repository.NewCHSeriesSink(client, ch.Table, l)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	if err := sink.Init(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return sink, func() { _ = sink.Close() }, nil
}

// ProvideKafkaProducer creates the producer, or nil when Kafka is disabled.
// With kafka.logs_topic set, aggregated error logs are shipped through it.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithClientID("risklab-"+cfg.Environment),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   10 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
	}
	cleanup := func() {
		l.RemoveCollector()
		_ = producer.Close()
	}
	return producer, cleanup, nil
}

// ProvideRunPublisher announces catalog records on kafka.topic, or returns nil.
func ProvideRunPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.RunPublisher {
	if producer == nil {
		return nil
	}
	return repository.NewKafkaRunPublisher(producer, cfg.Kafka.Topic)
}

// ProvidePipeline assembles the ingestion orchestrator.
func ProvidePipeline(
	cfg *config.Config,
	sources *source.Registry,
	store *repository.ParquetArtifactStore,
	catalog *repository.JSONCatalog,
	sink domrepo.SeriesSink,
	pub domrepo.RunPublisher,
	rec *metrics.Recorder,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(sources, store, catalog,
		usecase.WithSeriesSink(sink),
		usecase.WithRunPublisher(pub),
		usecase.WithPipelineMetrics(rec),
		usecase.WithPipelineLogger(l),
		usecase.WithFetchConcurrency(cfg.Run.FetchConcurrency),
	)
}

// ProvideIngest creates the batch ingestion runner.
func ProvideIngest(cfg *config.Config, p *usecase.Pipeline, rec *metrics.Recorder, l *applogger.Logger) *server.Ingest {
	return server.NewIngest(cfg, p, rec, l)
}

// ProvideRunsHandler creates the catalog HTTP handler.
func ProvideRunsHandler(l *applogger.Logger, catalog *repository.JSONCatalog) *api.RunsEchoHandler {
	return api.NewRunsEchoHandler(l, catalog)
}

// ProvideApp creates the catalog API server.
func ProvideApp(cfg *config.Config, h *api.RunsEchoHandler, reg *prometheus.Registry, l *applogger.Logger) *server.App {
	return server.New(cfg, h, reg, l)
}
