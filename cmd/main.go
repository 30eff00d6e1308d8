package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	// OpenTelemetry
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	// PostgreSQL Driver
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"

	// Interne
	"github.com/jupiterclapton/socialgraph/config"
	"github.com/jupiterclapton/socialgraph/internal/adapters/primary/events"
	"github.com/jupiterclapton/socialgraph/internal/adapters/primary/rest"
	"github.com/jupiterclapton/socialgraph/internal/adapters/secondary/cache"
	"github.com/jupiterclapton/socialgraph/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/socialgraph/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/socialgraph/internal/core/ports"
	"github.com/jupiterclapton/socialgraph/internal/core/services"
	"github.com/jupiterclapton/socialgraph/internal/observability"
)

func main() {
	// 1. Charger la Config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger (slog JSON pour la prod, Text pour le dev)
	initLogger(cfg)
	slog.Info("🚀 Starting Social Graph Service", "env", cfg.Env, "http_port", cfg.HTTPPort, "edge_store", cfg.EdgeStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (OpenTelemetry)
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Error("Error shutting down tracer", "error", err)
			}
		}()
	}

	// 4. Infrastructure : store d'arêtes + user directory
	store, users, closeStores := mustInitStores(ctx, cfg)
	defer closeStores()

	// 5. Cœur
	metrics := observability.NewFollowMetrics(prometheus.DefaultRegisterer)
	followService := services.NewFollowService(store, users, services.Options{
		FailOpenReads:     cfg.FailOpenReads,
		SuggestionWorkers: cfg.SuggestionWorkers,
	}).WithMetrics(metrics)

	// 6. Infrastructure : Redis (cache de stats, optionnel)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			panic(err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("⚠️ Redis unreachable, stats cache disabled", "error", err)
		} else {
			defer rdb.Close()
			followService.WithCache(cache.NewRedisStatsCache(rdb, cfg.StatsCacheTTL))
			slog.Info("✅ Connected to Redis")
		}
	}

	// 7. Infrastructure : NATS (events de follow, optionnel)
	if cfg.NatsUrl != "" {
		origin := cfg.ServiceName + "-" + uuid.NewString()[:8]
		nc, err := nats.Connect(cfg.NatsUrl, nats.Name(origin))
		if err != nil {
			slog.Warn("⚠️ NATS unreachable, follow events disabled", "error", err)
		} else {
			defer nc.Close()

			broker, err := eventbroker.NewNatsBroker(ctx, nc, origin)
			if err != nil {
				slog.Error("Failed to init JetStream", "error", err)
				os.Exit(1)
			}
			followService.WithPublisher(broker)

			handler := events.NewEventHandler(followService, origin)
			if _, err := handler.Subscribe(nc); err != nil {
				slog.Error("Failed to subscribe to NATS", "error", err)
				os.Exit(1)
			}
			slog.Info("✅ NATS JetStream connected", "origin", origin)
		}
	}

	// 8. HTTP : gin + CORS + OTEL
	srvHTTP := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           newHTTPHandler(cfg, followService, users),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("📡 HTTP API listening", "port", cfg.HTTPPort)
		if err := srvHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// 9. gRPC : Health Check (Standard K8s) + Reflection
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(cfg.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if cfg.Env != "prod" {
		reflection.Register(grpcServer)
		slog.Info("🔍 gRPC Reflection enabled")
	}

	go func() {
		slog.Info("🚀 gRPC health server listening", "address", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("Failed to serve", "error", err)
			os.Exit(1)
		}
	}()

	// 10. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	sig := <-quit
	slog.Info("⚠️  Signal received, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced to shutdown", "error", err)
	}

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("✅ gRPC Server stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("⏳ Timeout reached, forcing server stop")
		grpcServer.Stop()
	}

	slog.Info("👋 Service stopped")
}

// --- HELPERS ---

func initLogger(cfg *config.Config) {
	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(), // En prod, gérez le TLS
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String("1.0.0"),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}

// mustInitStores choisit le backend d'arêtes. Le user directory vit dans Postgres
// (table users du service User), sauf en mode mémoire.
func mustInitStores(ctx context.Context, cfg *config.Config) (ports.EdgeStore, ports.UserDirectory, func()) {
	if cfg.EdgeStore == config.StoreMemory {
		slog.Warn("⚠️ Using in-memory edge store (data is lost on restart)")
		return repository.NewMemoryEdgeStore(), repository.NewMemoryUserDirectory(cfg.MemoryUsers...), func() {}
	}

	dbPool := mustConnectPostgres(ctx, cfg)
	users := repository.NewPostgresUserDirectory(dbPool)

	if cfg.EdgeStore == config.StoreNeo4j {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			slog.Error("Failed to create neo4j driver", "error", err)
			os.Exit(1)
		}
		verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := driver.VerifyConnectivity(verifyCtx); err != nil {
			slog.Error("Failed to connect to Neo4j", "error", err)
			os.Exit(1)
		}
		slog.Info("✅ Connected to Neo4j")

		repo := repository.NewNeo4jRepo(driver)
		if err := repo.EnsureSchema(ctx); err != nil {
			slog.Warn("Schema init failed (might be fine if already exists)", "error", err)
		}
		return repo, users, func() {
			_ = driver.Close(context.Background())
			dbPool.Close()
		}
	}

	repo := repository.NewPostgresRepo(dbPool)
	if err := repo.EnsureSchema(ctx); err != nil {
		slog.Error("Failed to init follows schema", "error", err)
		os.Exit(1)
	}
	return repo, users, dbPool.Close
}

func mustConnectPostgres(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		slog.Error("Unable to parse DB config", "error", err)
		os.Exit(1)
	}
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}

	// Fail Fast
	if err := dbPool.Ping(ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Database connected")
	return dbPool
}

// newHTTPHandler assemble la chaîne : OTEL (racine) -> CORS -> mux (API gin, /metrics, /healthz).
func newHTTPHandler(cfg *config.Config, svc ports.FollowService, users ports.UserDirectory) http.Handler {
	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(cfg.ServiceName))
	rest.NewHandler(svc, users).RegisterRoutes(router)

	mux := http.NewServeMux()
	mux.Handle("/v1/", router)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "baggage", "traceparent"},
		AllowCredentials: true,
	})
	h := c.Handler(mux)

	return otelhttp.NewHandler(h, cfg.ServiceName,
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != "/healthz"
		}),
	)
}
