package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ovaphlow/authhub/internal/auth"
	"github.com/ovaphlow/authhub/internal/config"
	"github.com/ovaphlow/authhub/internal/event"
	"github.com/ovaphlow/authhub/internal/exchange"
	"github.com/ovaphlow/authhub/internal/login"
	"github.com/ovaphlow/authhub/internal/metrics"
	"github.com/ovaphlow/authhub/internal/oauth"
	"github.com/ovaphlow/authhub/internal/router"
	"github.com/ovaphlow/authhub/internal/token"
	"github.com/ovaphlow/authhub/internal/user"
	userrepo "github.com/ovaphlow/authhub/internal/user/repo"
	"github.com/ovaphlow/authhub/pkg/database"
	"github.com/ovaphlow/authhub/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting authhub")

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("load config: %v", err)
	}

	// init db and apply migrations
	sqlDB, err := database.Connect(database.Config{DSN: cfg.DatabaseURL})
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		sugar.Fatalf("migrate: %v", err)
	}

	// wrap with sqlx for convenience in repos
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")
	defer sqlxDB.Close()

	// metrics
	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)

	// event bus and identity-sync consumer
	bus := event.NewMemoryBus(8, sugar)
	defer bus.Close()

	registry := userrepo.NewUserRepo(sqlxDB)
	consumer := user.NewSyncConsumer(registry, bus, collector, sugar)
	if err := consumer.Start(); err != nil {
		sugar.Fatalf("start identity sync consumer: %v", err)
	}

	// auth stack
	tokens := token.NewService(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	codes := exchange.NewStore(cfg.AuthCodeTTL())
	handoff := login.NewHandoff(bus, tokens, codes, cfg.FrontendURL, sugar)
	provider := oauth.NewGoogleProvider(oauth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authHandler := auth.NewHandler(provider, handoff, tokens, codes, auth.Config{
		CookieSecure:      cfg.CookieSecure,
		RefreshTTLSeconds: cfg.RefreshTTLSeconds,
	}, collector, sugar)

	handler := router.New(&router.Deps{
		AuthHandler: authHandler,
		Metrics:     collector,
		Registry:    promReg,
		RateLimiter: router.NewRateLimiter(cfg.AuthRatePerMinute, cfg.AuthRateBurst),
		Logger:      sugar,
	})

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	// run server in background
	go func() {
		sugar.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	// ping db once more
	if err := sqlDB.PingContext(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
