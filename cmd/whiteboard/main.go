package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/whiteboard/backend/internal/auth"
	"github.com/whiteboard/backend/internal/bus"
	"github.com/whiteboard/backend/internal/config"
	"github.com/whiteboard/backend/internal/health"
	"github.com/whiteboard/backend/internal/httpapi"
	"github.com/whiteboard/backend/internal/logging"
	"github.com/whiteboard/backend/internal/middleware"
	"github.com/whiteboard/backend/internal/ratelimit"
	"github.com/whiteboard/backend/internal/room"
	"github.com/whiteboard/backend/internal/tracing"
	"github.com/whiteboard/backend/internal/transport"
	"github.com/whiteboard/backend/internal/validate"
)

func main() {
	for _, path := range []string{".env", "../../.env", "../../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}
	ctx := context.Background()
	logging.Info(ctx, "configuration validated", zap.String("goEnv", cfg.GoEnv))

	if addr := os.Getenv("OTEL_COLLECTOR_ADDR"); addr != "" {
		tp, err := tracing.InitTracer(ctx, "whiteboard-backend", addr)
		if err != nil {
			logging.Warn(ctx, "tracing disabled: failed to initialize", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	// Exactly one Registry is shared between the WebSocket hub and the
	// administrative HTTP handlers (SPEC_FULL.md §9 — the source kept
	// independent per-feature state stores that could silently diverge).
	registry := room.NewRegistry(cfg.MaxEventsPerRoom, cfg.ClearCooldown)

	var presence *bus.Service
	if cfg.RedisEnabled {
		presence, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Fatal(ctx, "failed to connect to presence bus", zap.Error(err))
		}
		defer presence.Client().Close()
		logging.Info(ctx, "presence bus connected", zap.String("addr", cfg.RedisAddr))
	}

	rateLimiter, err := ratelimit.NewRateLimiter(cfg, presence.Client())
	if err != nil {
		logging.Fatal(ctx, "failed to construct rate limiter", zap.Error(err))
	}

	origins := auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})

	hub := transport.NewHub(registry, cfg, presence, rateLimiter, origins)
	adminHandler := httpapi.NewHandler(registry, validate.Limits{MaxPointsPerEvent: cfg.MaxPointsPerEvent})
	healthHandler := health.NewHandler(presence)

	var authValidator middleware.TokenValidator
	skipAuth := os.Getenv("SKIP_AUTH") == "true"
	if !skipAuth {
		domain, audience := os.Getenv("AUTH0_DOMAIN"), os.Getenv("AUTH0_AUDIENCE")
		if domain != "" && audience != "" {
			v, err := auth.NewValidator(ctx, domain, audience)
			if err != nil {
				logging.Fatal(ctx, "failed to initialize auth validator", zap.Error(err))
			}
			authValidator = v
			logging.Info(ctx, "auth validator initialized", zap.String("domain", domain))
		} else if cfg.GoEnv != "production" {
			authValidator = &auth.MockValidator{}
			logging.Warn(ctx, "AUTH0_DOMAIN/AUTH0_AUDIENCE unset, using mock validator for the admin API")
		} else {
			logging.Fatal(ctx, "AUTH0_DOMAIN and AUTH0_AUDIENCE must be set in production unless SKIP_AUTH=true")
		}
	} else {
		logging.Warn(ctx, "SKIP_AUTH=true: administrative HTTP surface is unauthenticated")
	}

	if cfg.GoEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("whiteboard-backend"))
	router.Use(middleware.CorrelationID())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = origins
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", middleware.HeaderXCorrelationID)
	router.Use(cors.New(corsCfg))

	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", hub.ServeWs)

	admin := router.Group("/")
	admin.Use(rateLimiter.GlobalMiddleware())
	if authValidator != nil {
		admin.Use(middleware.RequireAuth(authValidator))
	}
	admin.Use(rateLimiter.RoomsMiddleware())
	adminHandler.Register(admin)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "whiteboard backend starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "graceful shutdown failed", zap.Error(err))
	}
}
