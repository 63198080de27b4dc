package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"assetmgt/auth"
	"assetmgt/config"
	"assetmgt/database"
	"assetmgt/handlers"
	"assetmgt/logger"
	"assetmgt/middleware"
	"assetmgt/payment"
	"assetmgt/routes"
	"assetmgt/store"
	"assetmgt/websocket"
	"assetmgt/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatalw("load config", "error", err)
	}

	lg := logger.New(cfg.LogLevel)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	// Database connection
	client, err := database.Connect(ctx, database.Options{
		URI:      cfg.MongoURI,
		Username: cfg.DBUser,
		Password: cfg.DBPass,
	}, lg)
	if err != nil {
		lg.Fatalw("connect to database", "error", err)
	}
	defer database.Disconnect(client, lg)

	if err := database.EnsureIndexes(ctx, client.Database(cfg.DBName)); err != nil {
		lg.Fatalw("ensure indexes", "error", err)
	}

	st := store.NewMongo(client, cfg.DBName)
	if err := store.SeedPackages(ctx, st); err != nil {
		lg.Fatalw("seed packages", "error", err)
	}

	hub := websocket.NewHub(lg.Named("ws"))
	go hub.Run(ctx)

	engine := workflow.New(st, lg.Named("workflow"),
		workflow.WithNotifier(hub),
		workflow.WithDefaultPackageLimit(cfg.DefaultPackageLimit),
	)
	gateway := payment.NewStripeGateway(cfg.StripeAPIURL, cfg.StripeSecretKey, cfg.SiteURL)
	payments := payment.NewService(st, gateway, hub, lg.Named("payment"))

	workflow.RegisterMetrics()
	middleware.InitMetrics()

	h := handlers.New(handlers.Deps{
		Store:    st,
		Engine:   engine,
		Payments: payments,
		Hub:      hub,
		Log:      lg.Named("http"),
		Timeout:  cfg.RequestTimeout,
		Origins:  cfg.AllowedOrigins(),
	})

	verifier := auth.NewJWTVerifier(cfg.AccessTokenSecret, 0)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	if err := limiter.TrustProxies(cfg.TrustedProxyList()); err != nil {
		lg.Fatalw("trusted proxies", "error", err)
	}
	go limiter.Sweep(ctx)

	// Router setup
	router := mux.NewRouter()
	routes.RegisterRoutes(router, h, routes.Guards{
		Authenticate: middleware.Authenticate(verifier, st, lg.Named("auth")),
	})

	// Global middlewares (order matters!)
	router.Use(middleware.Recovery(lg))
	router.Use(middleware.Logging(lg.Named("access")))
	router.Use(middleware.Instrument)
	router.Use(middleware.CORS(cfg.AllowedOrigins()))
	router.Use(limiter.Middleware)

	// HTTP server configuration
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Infow("asset management API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Errorw("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	lg.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warnw("server forced shutdown", "error", err)
	}
	lg.Infow("server stopped")
}
