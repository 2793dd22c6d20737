package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/apparel-discovery/internal/config"
	"github.com/utafrali/apparel-discovery/internal/event"
	handler "github.com/utafrali/apparel-discovery/internal/handler/http"
	"github.com/utafrali/apparel-discovery/internal/recommend"
	"github.com/utafrali/apparel-discovery/internal/repository"
	esrepo "github.com/utafrali/apparel-discovery/internal/repository/elasticsearch"
	"github.com/utafrali/apparel-discovery/internal/repository/memory"
	"github.com/utafrali/apparel-discovery/internal/repository/postgres"
	"github.com/utafrali/apparel-discovery/internal/repository/productapi"
	redisrepo "github.com/utafrali/apparel-discovery/internal/repository/redis"
	"github.com/utafrali/apparel-discovery/internal/scoring"
	"github.com/utafrali/apparel-discovery/internal/search"
	"github.com/utafrali/apparel-discovery/internal/service"
	"github.com/utafrali/apparel-discovery/pkg/database"
	"github.com/utafrali/apparel-discovery/pkg/health"
	"github.com/utafrali/apparel-discovery/pkg/httpclient"
	pkgkafka "github.com/utafrali/apparel-discovery/pkg/kafka"
	"github.com/utafrali/apparel-discovery/pkg/middleware"
	"github.com/utafrali/apparel-discovery/pkg/tracing"
)

// App wires together all dependencies and runs the discovery service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	healthHandler := health.NewHandler(5 * time.Second)

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	if cfg.UsesPostgres() {
		if err := a.initPostgres(ctx, healthHandler); err != nil {
			_ = a.closeResources()
			return nil, err
		}
	}

	catalog, writer, err := a.buildCatalog(healthHandler)
	if err != nil {
		_ = a.closeResources()
		return nil, err
	}

	// Optional read-through cache in front of the catalog.
	var invalidator event.CacheInvalidator
	if cfg.CacheEnabled {
		cached, err := a.initCache(ctx, catalog, healthHandler)
		if err != nil {
			_ = a.closeResources()
			return nil, err
		}
		catalog, invalidator = cached, cached
	}

	history, searchLog := a.buildHistory(), a.buildSearchLog()

	// Scoring engines.
	scorer, err := scoring.NewScorer(cfg.Weights)
	if err != nil {
		_ = a.closeResources()
		return nil, fmt.Errorf("init scorer: %w", err)
	}
	searchEngine := search.NewEngine(scorer, search.WithSuggestionLimit(cfg.SuggestionLimit))
	recommendEngine := recommend.NewEngine(scorer, cfg.Signals)

	// Kafka producer and product event consumers.
	var publisher service.SearchPublisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = event.NewProducer(a.producer, logger)

		if writer != nil || invalidator != nil {
			a.consumers = newProductConsumers(cfg, event.NewConsumer(invalidator, writer, logger), logger)
		}
		healthHandler.Register("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
		logger.Info("kafka initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.Int("consumer_count", len(a.consumers)),
		)
	}

	discoveryService := service.NewDiscoveryService(
		catalog, history, searchLog, publisher,
		searchEngine, recommendEngine, logger,
	)

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.AllowedOrigins
	cors.Environment = cfg.Environment

	router := handler.NewRouter(discoveryService, healthHandler, handler.RouterConfig{
		ServiceName:       cfg.ServiceName,
		CORS:              cors,
		PprofEnabled:      cfg.PprofEnabled,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		RateLimit: middleware.RateLimitConfig{
			Service: cfg.ServiceName,
			RPS:     cfg.RateLimitRPS,
			Burst:   cfg.RateLimitBurst,
		},
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) initPostgres(ctx context.Context, healthHandler *health.Handler) error {
	cfg := a.cfg
	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		DBName:          cfg.DBName,
		SSLMode:         cfg.DBSSLMode,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
	)
	database.RegisterPoolMetrics(pool, cfg.ServiceName)
	if cfg.DBSlowQueryThresh > 0 {
		database.SetSlowQueryLogging(cfg.DBSlowQueryThresh, a.logger)
	}

	// Only the search history table belongs to this service.
	if cfg.SearchLogBackend == config.BackendPostgres {
		if err := database.RunMigrations(ctx, pool, postgres.Migrations(), a.logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		a.logger.Info("database migrations completed")
	}

	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	return nil
}

// buildCatalog returns the configured catalog and, for backends this service
// keeps in sync from product events, the writer the event consumer feeds.
func (a *App) buildCatalog(healthHandler *health.Handler) (repository.CatalogAccessor, event.CatalogWriter, error) {
	cfg := a.cfg
	switch cfg.CatalogBackend {
	case config.BackendPostgres:
		a.logger.Info("postgres catalog initialized")
		return postgres.NewCatalogRepository(a.pool), nil, nil

	case config.BackendElasticsearch:
		es, err := esrepo.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init elasticsearch catalog: %w", err)
		}
		healthHandler.Register("elasticsearch", es.Ping)
		a.logger.Info("elasticsearch catalog initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
		return es, es, nil

	case config.BackendProductAPI:
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.Config{
				Timeout:         cfg.HTTPClientTimeout,
				MaxRetries:      2,
				RetryWaitMin:    100 * time.Millisecond,
				RetryWaitMax:    time.Second,
				MaxConnsPerHost: 50,
			}),
			httpclient.CircuitBreakerConfig{
				Name:         "product-service",
				MaxRequests:  cfg.CBMaxRequests,
				Interval:     cfg.CBInterval,
				Timeout:      cfg.CBTimeout,
				FailureRatio: cfg.CBFailureRatio,
				MinRequests:  cfg.CBMinRequests,
			},
			a.logger,
		)
		a.logger.Info("product service catalog initialized", slog.String("url", cfg.ProductServiceURL))
		return productapi.NewCatalog(client, cfg.ProductServiceURL), nil, nil

	default:
		catalog, err := loadFixture(cfg.CatalogFixture)
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info("in-memory catalog initialized", slog.String("fixture", cfg.CatalogFixture))
		return catalog, catalog, nil
	}
}

func loadFixture(path string) (*memory.Catalog, error) {
	if path == "" {
		return memory.NewCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog fixture: %w", err)
	}
	defer f.Close()

	catalog, err := memory.LoadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("load catalog fixture: %w", err)
	}
	return catalog, nil
}

func (a *App) initCache(ctx context.Context, next repository.CatalogAccessor, healthHandler *health.Handler) (*redisrepo.CachedCatalog, error) {
	cfg := a.cfg
	client, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client

	cached := redisrepo.NewCachedCatalog(next, client, cfg.CacheTTL, a.logger)
	healthHandler.Register("redis", cached.Ping)
	a.logger.Info("catalog cache enabled",
		slog.String("redis", fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)),
		slog.Duration("ttl", cfg.CacheTTL),
	)
	return cached, nil
}

func (a *App) buildHistory() repository.InteractionHistoryAccessor {
	if a.cfg.HistoryBackend == config.BackendPostgres {
		return postgres.NewHistoryRepository(a.pool)
	}
	return memory.NewHistory()
}

func (a *App) buildSearchLog() repository.SearchHistorySink {
	if a.cfg.SearchLogBackend == config.BackendPostgres {
		return postgres.NewSearchLogRepository(a.pool)
	}
	return memory.NewSearchLog()
}

// newProductConsumers starts one consumer per product topic, all in the same group.
func newProductConsumers(cfg *config.Config, c *event.Consumer, logger *slog.Logger) []*pkgkafka.Consumer {
	topics := event.ProductTopics()
	consumers := make([]*pkgkafka.Consumer, 0, len(topics))
	for _, topic := range topics {
		consumers = append(consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaGroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}, c.Handle, logger))
	}
	return consumers
}

// Handler exposes the HTTP handler for in-process tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and Kafka consumers, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components: the HTTP server first so
// in-flight request spans are flushed, then consumers, producer and stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.closeResources())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases the producer and store connections.
func (a *App) closeResources() error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
