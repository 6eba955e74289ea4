package di

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"Sentinel/internal/domain/repository"
	"Sentinel/internal/handler/api"
	internalrepo "Sentinel/internal/repository"
	"Sentinel/internal/service/analyst"
	"Sentinel/internal/service/notify"
	"Sentinel/internal/service/router"
	"Sentinel/internal/service/sources"
	"Sentinel/internal/usecase"
	"Sentinel/pkg/cache"
	pkgch "Sentinel/pkg/clickhouse"
	"Sentinel/pkg/config"
	xhttp "Sentinel/pkg/http"
	pkgkafka "Sentinel/pkg/kafka"
	applogger "Sentinel/pkg/logger"
	"Sentinel/pkg/metrics"
	"Sentinel/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHTTPClient creates the shared outbound HTTP client.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Sources.Timeout))
}

// ProvideSources builds the ranked adapter chain. Each adapter gets
// its own rate limiter so one throttled provider never slows another.
func ProvideSources(cfg *config.Config, client *xhttp.Client, l *applogger.Logger) ([]repository.QuoteSource, error) {
	limiter := func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(cfg.Sources.RateLimit), cfg.Sources.Burst)
	}

	out := make([]repository.QuoteSource, 0, len(cfg.Sources.Ranking))
	for _, name := range cfg.Sources.Ranking {
		switch name {
		case "eastmoney":
			out = append(out, sources.NewEastmoney(client, limiter(), l))
		case "tencent":
			out = append(out, sources.NewTencent(client, limiter(), l))
		case "sina":
			out = append(out, sources.NewSina(client, limiter(), l))
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	return out, nil
}

// ProvideRouter creates the failover router over the ranked sources.
func ProvideRouter(srcs []repository.QuoteSource, cfg *config.Config, m repository.Metrics, l *applogger.Logger) *router.Router {
	return router.New(srcs, router.Config{
		Timeout:          cfg.Sources.Timeout,
		MaxAttempts:      cfg.Sources.MaxAttempts,
		Backoff:          cfg.Sources.Backoff,
		FailureThreshold: cfg.Sources.FailureThreshold,
		Cooldown:         cfg.Sources.Cooldown,
	}, m, l)
}

// ProvideCache selects Redis when enabled, process-local memory
// otherwise.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if cfg.Cache.Redis.Enabled {
		c, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix("sentinel"),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		l.Info("cache backend: redis")
		return c, nil
	}
	l.Info("cache backend: memory")
	return cache.NewMemoryCache(), nil
}

// ProvideStore selects the record store backend.
func ProvideStore(cfg *config.Config) (repository.RecordStore, error) {
	switch cfg.Storage.Backend {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.Storage.ClickHouse.Host),
			pkgch.WithPort(cfg.Storage.ClickHouse.Port),
			pkgch.WithDatabase(cfg.Storage.ClickHouse.Database),
			pkgch.WithCredentials(cfg.Storage.ClickHouse.User, cfg.Storage.ClickHouse.Password),
			pkgch.WithTimeouts(cfg.Storage.ClickHouse.DialTimeout, cfg.Storage.ClickHouse.ReadTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := internalrepo.NewClickHouseStore(ctx, client)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse store: %w", err)
		}
		return store, nil
	default:
		store, err := internalrepo.NewSQLiteStore(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		return store, nil
	}
}

// ProvidePublisher selects the signal event backend.
func ProvidePublisher(cfg *config.Config) (repository.EventPublisher, error) {
	if cfg.Events.Backend != "kafka" {
		return internalrepo.NewNopPublisher(), nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Events.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Events.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Events.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Events.Kafka.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Events.Kafka.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Events.Kafka.WriteTimeout, cfg.Events.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Events.Kafka.Topic), nil
}

// ProvideAnalyst creates the narrative model client.
func ProvideAnalyst(cfg *config.Config, l *applogger.Logger) repository.Analyst {
	return analyst.NewClient(cfg, l)
}

// ProvideNotifier creates the webhook notifier.
func ProvideNotifier(cfg *config.Config, l *applogger.Logger) repository.Notifier {
	return notify.NewFeishu(cfg, l)
}

// ProvideCollector creates the snapshot collector over the router.
func ProvideCollector(r *router.Router, cfg *config.Config, l *applogger.Logger) *usecase.Collector {
	return usecase.NewCollector(r, cfg, l)
}

// ProvideProcessor creates the indicator processor.
func ProvideProcessor(cfg *config.Config, l *applogger.Logger) *usecase.Processor {
	return usecase.NewProcessor(cfg, l)
}

// ProvideTracker creates the hit-rate tracker.
func ProvideTracker(store repository.RecordStore, c cache.Service, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.Tracker {
	return usecase.NewTracker(store, c, m, cfg, l)
}

// ProvideRunner creates the pipeline runner.
func ProvideRunner(
	collector *usecase.Collector,
	processor *usecase.Processor,
	tracker *usecase.Tracker,
	store repository.RecordStore,
	events repository.EventPublisher,
	an repository.Analyst,
	notifier repository.Notifier,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.Runner {
	return usecase.NewRunner(collector, processor, tracker, store, events, an, notifier, m, cfg, l)
}

// ProvideDashboard creates the monitoring API handler.
func ProvideDashboard(
	runner *usecase.Runner,
	tracker *usecase.Tracker,
	store repository.RecordStore,
	r *router.Router,
	cfg *config.Config,
	l *applogger.Logger,
) *api.DashboardHandler {
	return api.NewDashboardHandler(runner, tracker, store, r, cfg, l)
}

// ProvideLiveHub creates the websocket hub and attaches it to the
// runner so finished runs stream out.
func ProvideLiveHub(runner *usecase.Runner, l *applogger.Logger) *api.LiveHub {
	hub := api.NewLiveHub(l)
	runner.SetBroadcaster(hub)
	return hub
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	runner *usecase.Runner,
	dashboard *api.DashboardHandler,
	hub *api.LiveHub,
	store repository.RecordStore,
	events repository.EventPublisher,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *server.App {
	return server.New(cfg, runner, dashboard, hub, store, events, c, m, l)
}
