// Package app собирает зависимости сервиса продаж и управляет жизненным циклом серверов и воркеров.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/sales/internal/cache"
	"github.com/vladislavdragonenkov/sales/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/sales/internal/health"
	"github.com/vladislavdragonenkov/sales/internal/metrics"
	"github.com/vladislavdragonenkov/sales/internal/service/auth"
	"github.com/vladislavdragonenkov/sales/internal/service/catalog"
	"github.com/vladislavdragonenkov/sales/internal/service/httpapi"
	"github.com/vladislavdragonenkov/sales/internal/service/idempotency"
	"github.com/vladislavdragonenkov/sales/internal/service/orders"
	"github.com/vladislavdragonenkov/sales/internal/service/outbox"
	"github.com/vladislavdragonenkov/sales/internal/version"
)

const (
	shutdownTimeout    = 5 * time.Second
	grpcHealthInterval = 10 * time.Second
)

// Application — собранный сервис: хранилище, сервисы, HTTP API и фоновые воркеры.
type Application struct {
	cfg    Config
	logger *log.Entry

	storage    *Storage
	publishers *publishers
	redis      *redis.Client
	registry   *prometheus.Registry

	Auth      *auth.Service
	Customers *catalog.CustomerService
	Products  *catalog.ProductService
	Engine    *orders.Engine

	api     *httpapi.Server
	health  *healthcheck.Handler
	outbox  *outbox.Worker
	cleanup *idempotency.CleanupWorker
}

// New создаёт приложение. Вызывающий обязан закрыть его через Close.
func New(ctx context.Context, cfg Config, logger *log.Entry) (*Application, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.JWTSecret == DevJWTSecret {
		logger.Warn("SALES_JWT_SECRET is not set, using development signing key")
	}

	a := &Application{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	storage, err := initStorage(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return nil, err
	}
	a.storage = storage

	pubs, err := initPublishers(ctx, cfg, logger.WithField("layer", "messaging"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.publishers = pubs

	a.health = healthcheck.NewHandler(version.GetVersion())
	a.health.RegisterChecker("storage", healthcheck.NewPingChecker("storage", storage, true))

	if err := a.initServices(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.SeedDemo {
		if err := seedDemo(ctx, a.Auth, a.Customers, a.Products, logger.WithField("layer", "seed")); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *Application) initServices(ctx context.Context) error {
	cfg := a.cfg
	newID := uuid.NewString

	authService, err := auth.NewService(a.storage.Users, auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}, auth.WithLogger(a.logger.WithField("component", "auth")))
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	a.Auth = authService

	a.Engine = orders.NewEngine(a.storage.Orders, a.storage.Products,
		orders.WithIDGenerator(newID),
		orders.WithLogger(a.logger.WithField("component", "order-engine")),
		orders.WithMetrics(metrics.NewOrderMetricsWithRegisterer(a.registry)),
	)

	a.Customers = catalog.NewCustomerService(a.storage.Customers, catalog.WithIDGenerator(newID))
	a.Products = catalog.NewProductService(a.storage.Products, a.Engine,
		catalog.WithIDGenerator(newID),
		catalog.WithProductCache(a.productCache(ctx)),
	)

	a.api = httpapi.NewServer(httpapi.Dependencies{
		Auth:        a.Auth,
		Customers:   a.Customers,
		Products:    a.Products,
		Orders:      a.Engine,
		OrderReader: a.storage.OrderReader,
		Idempotency: idempotency.NewGuard(a.storage.Idempotency, cfg.IdempotencyTTL, a.logger.WithField("component", "idempotency")),
		Metrics:     metrics.NewHTTPMetrics(a.registry),
		Logger:      a.logger.WithField("component", "http-api"),
		CORSOrigins: cfg.CORSOrigins,
	})

	a.outbox = outbox.NewWorker(a.storage.Outbox, a.publishers.events,
		outbox.WithLogger(a.logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(metrics.NewOutboxMetrics(a.registry)),
		outbox.WithDLQPublisher(a.publishers.dlq),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	a.cleanup = idempotency.NewCleanupWorker(a.storage.Idempotency,
		idempotency.WithLogger(a.logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithMetrics(metrics.NewCleanupMetrics(a.registry)),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	return nil
}

// productCache использует Redis, если он задан и доступен, иначе память процесса.
func (a *Application) productCache(ctx context.Context) *cache.Aside[[]domain.Product] {
	cacheLogger := a.logger.WithField("component", "product-cache")
	var backend cache.Backend = cache.NewMemoryBackend()

	if a.cfg.RedisAddr != "" {
		client, err := cache.DialRedis(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
		if err != nil {
			cacheLogger.WithError(err).Warn("redis unavailable, falling back to in-process cache")
		} else {
			a.redis = client
			redisBackend := cache.NewRedisBackend(client, "sales:")
			a.health.RegisterChecker("cache", healthcheck.NewPingChecker("cache", redisBackend, false))
			backend = redisBackend
			cacheLogger.WithField("addr", a.cfg.RedisAddr).Info("redis product cache enabled")
		}
	}
	return cache.NewAside[[]domain.Product](backend, a.cfg.ProductCacheTTL, cacheLogger)
}

// Handler возвращает HTTP API.
func (a *Application) Handler() http.Handler {
	return a.api.Handler()
}

// Storage возвращает хранилище приложения.
func (a *Application) Storage() *Storage {
	return a.storage
}

// OutboxWorker возвращает воркер публикации событий.
func (a *Application) OutboxWorker() *outbox.Worker {
	return a.outbox
}

// Close освобождает брокеры, кэш и хранилище.
func (a *Application) Close() {
	if a.publishers != nil {
		a.publishers.Close(a.logger)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if err := a.storage.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close storage")
	}
}

// Run обслуживает HTTP API, метрики, gRPC health и воркеры до отмены ctx.
func (a *Application) Run(ctx context.Context) error {
	apiListener, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http api: %w", err)
	}
	metricsListener, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		_ = apiListener.Close()
		return fmt.Errorf("listen metrics: %w", err)
	}

	var grpcListener net.Listener
	if a.cfg.GRPCAddr != "" {
		grpcListener, err = net.Listen("tcp", a.cfg.GRPCAddr)
		if err != nil {
			_ = apiListener.Close()
			_ = metricsListener.Close()
			return fmt.Errorf("listen grpc health: %w", err)
		}
	}

	apiSrv := &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 5 * time.Second}
	metricsSrv := &http.Server{Handler: a.metricsMux(), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.WithField("addr", apiListener.Addr().String()).Info("http api listening")
		return serveHTTP(apiSrv, apiListener)
	})
	g.Go(func() error {
		a.logger.WithField("addr", metricsListener.Addr().String()).Info("metrics and health checks listening")
		return serveHTTP(metricsSrv, metricsListener)
	})

	var grpcServer *grpc.Server
	if grpcListener != nil {
		var healthServer *grpchealth.Server
		grpcServer, healthServer = a.newGRPCHealthServer()
		g.Go(func() error {
			a.logger.WithField("addr", grpcListener.Addr().String()).Info("grpc health server listening")
			if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			a.syncGRPCHealth(gctx, healthServer)
			return nil
		})
	}

	g.Go(func() error {
		a.outbox.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.cleanup.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down servers")
		shutdownHTTP(apiSrv, a.logger)
		shutdownHTTP(metricsSrv, a.logger)
		if grpcServer != nil {
			stopGRPC(grpcServer, a.logger)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Run собирает приложение по cfg и обслуживает его до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	application, err := New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer application.Close()
	return application.Run(ctx)
}

func (a *Application) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	mux.Handle("/healthz", a.health)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", a.health.ReadinessHandler)
	return mux
}

func (a *Application) newGRPCHealthServer() (*grpc.Server, *grpchealth.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	a.registry.MustRegister(grpcMetrics)

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	healthServer := grpchealth.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)
	grpcMetrics.InitializeMetrics(server)
	return server, healthServer
}

// syncGRPCHealth переносит результат HTTP health checks в статус gRPC health.
func (a *Application) syncGRPCHealth(ctx context.Context, healthServer *grpchealth.Server) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if a.health.Run(ctx).Status == healthcheck.StatusUnhealthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		healthServer.SetServingStatus("", status)
	}
	update()

	ticker := time.NewTicker(grpcHealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			healthServer.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}

func serveHTTP(srv *http.Server, lis net.Listener) error {
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}
