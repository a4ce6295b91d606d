package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/Ramsey-B/trellis/config"
	"github.com/Ramsey-B/trellis/internal/repositories/activity"
	"github.com/Ramsey-B/trellis/internal/repositories/client"
	"github.com/Ramsey-B/trellis/internal/repositories/deal"
	"github.com/Ramsey-B/trellis/internal/repositories/property"
	"github.com/Ramsey-B/trellis/pkg/board"
	"github.com/Ramsey-B/trellis/pkg/database"
	"github.com/Ramsey-B/trellis/pkg/dispatch"
	"github.com/Ramsey-B/trellis/pkg/events"
	"github.com/Ramsey-B/trellis/pkg/kafka"
	"github.com/Ramsey-B/trellis/pkg/middleware"
	"github.com/Ramsey-B/trellis/pkg/redis"
	boardroutes "github.com/Ramsey-B/trellis/pkg/routes/board"
	dealroutes "github.com/Ramsey-B/trellis/pkg/routes/deal"
	"github.com/Ramsey-B/trellis/pkg/routes/health"
	reportroutes "github.com/Ramsey-B/trellis/pkg/routes/report"
	"github.com/Ramsey-B/trellis/pkg/sideeffects"
	"github.com/Ramsey-B/trellis/pkg/stages"
	"github.com/Ramsey-B/trellis/pkg/startup"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logger := newLogger(cfg)

	tp := newTracerProvider(cfg, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	db, err := database.Connect(database.ConnectConfig{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := migrateDatabase(cfg, db, logger); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to redis")
		os.Exit(1)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	registry, err := stages.NewRegistry(cfg.ActiveStages, cfg.TerminalStages)
	if err != nil {
		logger.WithError(err).Error("Invalid pipeline stage configuration")
		os.Exit(1)
	}

	dealRepo := deal.NewRepository(db, logger)
	clientRepo := client.NewRepository(db, logger)
	propertyRepo := property.NewRepository(db, logger)
	activityRepo := activity.NewRepository(db, logger)
	reportCache := redis.NewReportCache(redisClient, cfg.ReportCacheTTL, logger)

	dispatcher := dispatch.NewDispatcher(cfg.DispatchQueueSize, logger)
	dispatcher.Subscribe(sideeffects.NewPersistenceSubscriber(dealRepo, logger))
	dispatcher.Subscribe(sideeffects.NewActivitySubscriber(activityRepo, cfg.DealLinkBaseURL, logger))
	dispatcher.Subscribe(events.NewEmitter(producer, logger))
	dispatcher.Subscribe(sideeffects.NewCacheInvalidator(reportCache, logger))

	engine := board.NewEngine(registry, dispatcher, dealRepo, logger)

	container := ectoinject.NewDIContainer()
	ectoinject.RegisterInstance(container, engine)
	ectoinject.RegisterInstance(container, dealRepo)
	ectoinject.RegisterInstance(container, clientRepo)
	ectoinject.RegisterInstance(container, propertyRepo)
	ectoinject.RegisterInstance(container, activityRepo)
	ectoinject.RegisterInstance(container, reportCache)

	services := startup.New(logger, cfg.StartupMaxAttempts)
	services.AddDependency(&databaseDependency{db: db})
	services.AddDependency(&redisDependency{client: redisClient})
	services.AddDependency(dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := services.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	checker := health.NewChecker(db, redisClient, version)
	e := newServer(cfg, logger, container, checker)
	checker.SetReady(true)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := services.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Dependency shutdown failed")
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func newTracerProvider(cfg config.Config, logger ectologger.Logger) *sdktrace.TracerProvider {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.AppName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		logger.WithError(err).Warn("Failed to build trace resource")
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp
}

func migrateDatabase(cfg config.Config, db database.DB, logger ectologger.Logger) error {
	driver, err := database.MigrationDriver(db)
	if err != nil {
		return err
	}

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return migrations.Migrate(cfg.DatabaseName, driver)
}

func newServer(cfg config.Config, logger ectologger.Logger, container *ectoinject.DIContainer, checker *health.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Inject(container))
	e.HTTPErrorHandler = middleware.Error(logger)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	boardroutes.Register(api.Group("/board"))
	dealroutes.Register(api.Group("/deals"))
	reportroutes.Register(api.Group("/reports"))

	return e
}

// databaseDependency exposes the connection pool to the startup sequencer so
// dependents wait for a reachable database.
type databaseDependency struct {
	db database.DB
}

func (d *databaseDependency) GetName() string {
	return "database"
}

func (d *databaseDependency) DependsOn() []string {
	return nil
}

func (d *databaseDependency) Start(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *databaseDependency) Stop(ctx context.Context) error {
	return nil
}

// redisDependency verifies the report cache is reachable before traffic.
type redisDependency struct {
	client *redis.Client
}

func (d *redisDependency) GetName() string {
	return "redis"
}

func (d *redisDependency) DependsOn() []string {
	return nil
}

func (d *redisDependency) Start(ctx context.Context) error {
	return d.client.Ping()
}

func (d *redisDependency) Stop(ctx context.Context) error {
	return nil
}
