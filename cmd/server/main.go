package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emporio-pos/internal/ai"
	"emporio-pos/internal/auth"
	"emporio-pos/internal/cart"
	"emporio-pos/internal/catalog"
	"emporio-pos/internal/checkout"
	"emporio-pos/internal/config"
	"emporio-pos/internal/database"
	"emporio-pos/internal/handlers"
	"emporio-pos/internal/logger"
	"emporio-pos/internal/middleware"
	"emporio-pos/internal/payment"
	"emporio-pos/internal/reports"
	"emporio-pos/internal/sales"
	"emporio-pos/internal/telemetry"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	cartIdleTimeout = 2 * time.Hour
	cartSweepEvery  = 10 * time.Minute
)

func main() {
	cfg, envLoaded, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	if !envLoaded {
		logg.Warn("no .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logg.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logg.Error("error shutting down telemetry", zap.Error(err))
		}
	}()

	db, err := database.Connect(cfg.DBDriver, cfg.DBDSN, cfg.Debug, logg)
	if err != nil {
		logg.Fatal("failed to connect to database", zap.Error(err))
	}

	// prices go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	store := catalog.NewStore(db)
	engine := sales.NewEngine(db, store, logg)
	terminal := payment.NewTerminal(cfg.TerminalURL, cfg.TerminalID)
	co := checkout.NewService(engine, payment.NewResolver(terminal, cfg.CardAuthTimeout, logg), store, logg)
	agg := reports.NewAggregator(db, store, engine)
	carts := cart.NewRegistry()
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(middleware.RequestLogger(logg))
	r.Use(middleware.NewHTTPMetrics(prometheus.DefaultRegisterer).Handler())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes := handlers.Routes{
		Tokens:            tokens,
		AllowRegistration: cfg.AllowRegistration,
		Auth:              handlers.NewAuthHandler(db, tokens, logg),
		Products:          handlers.NewProductHandler(store),
		Sales:             handlers.NewSalesHandler(co, engine, cfg.Location),
		Carts:             handlers.NewCartHandler(carts, store, co),
		Reports:           handlers.NewReportHandler(agg, store, cfg.Location),
		Payments:          handlers.NewPaymentHandler(co, cfg.TerminalID),
		AI:                handlers.NewAIHandler(ai.NewAgent(cfg.GeminiAPIKey, cfg.GeminiModel, store, agg, cfg.Location, logg)),
	}
	routes.Register(r)

	if cfg.AllowRegistration {
		logg.Warn("registration route is OPEN, disable this in production")
	}
	if !cfg.CardReaderConnected() {
		logg.Warn("TERMINAL_URL not set, card payments are disabled")
	}

	go sweepCarts(ctx, carts, logg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info("server starting", zap.String("port", cfg.Port), zap.String("db_driver", cfg.DBDriver),
			zap.String("terminal_id", cfg.TerminalID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("graceful shutdown failed", zap.Error(err))
	}
}

// sweepCarts drops register carts abandoned mid-sale.
func sweepCarts(ctx context.Context, carts *cart.Registry, logg *zap.Logger) {
	ticker := time.NewTicker(cartSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := carts.Sweep(cartIdleTimeout); n > 0 {
				logg.Info("abandoned carts dropped", zap.Int("count", n), zap.Int("open", carts.Len()))
			}
		}
	}
}
