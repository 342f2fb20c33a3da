package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"addressbook/internal/account"
	"addressbook/internal/address"
	"addressbook/internal/cache"
	"addressbook/internal/config"
	"addressbook/internal/database"
	"addressbook/internal/geo"
	"addressbook/internal/handlers"
	"addressbook/internal/logger"
	"addressbook/internal/middleware"
	"addressbook/internal/security"
	"addressbook/internal/session"
	"addressbook/internal/store"
)

func main() {
	config.Load()
	cfg := config.AppEnv
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, lg *zap.Logger) error {
	checks := map[string]handlers.Pinger{}

	var (
		users     store.UserStore
		addresses store.AddressStore
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		lg.Warn("using in-memory store, data is lost on restart")
		users, addresses = store.NewMemory()
	default:
		client, err := database.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		db := client.Database(cfg.DBName)
		lg.Info("MongoDB connected", zap.String("db", db.Name()))

		if err := database.EnsureUserIndexes(ctx, db, lg); err != nil {
			lg.Warn("user index warning", zap.Error(err))
		}
		if err := database.EnsureAddressIndexes(ctx, db, lg); err != nil {
			lg.Warn("address index warning", zap.Error(err))
		}

		users, addresses = store.NewMongoUsers(db), store.NewMongoAddresses(db)
		checks["mongo"] = func(ctx context.Context) error { return database.Ping(ctx, client) }
	}

	var current cache.CurrentAddress = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, lg)
		if err != nil {
			lg.Warn("current address cache disabled", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			current = cache.NewRedis(rdb, "", cfg.CurrentCacheTTL)
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	geoMetrics, err := geo.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	httpMetrics, err := middleware.NewHTTPMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	provider := geo.NewNominatim(cfg.GeocoderBaseURL, cfg.GeocoderUserAgent, cfg.GeocoderCountry, cfg.GeocoderRatePerSec)
	resolver := geo.NewResolver(provider, geo.Options{
		Timeout: cfg.GeocoderTimeout,
		Metrics: geoMetrics,
		Logger:  lg,
	})

	sessions := session.New(users, cfg.JWTSecret, cfg.TokenTTL, lg)

	router := handlers.NewRouter(handlers.Dependencies{
		Production: cfg.IsProduction(),
		Logger:     lg,
		Metrics:    httpMetrics,
		Checks:     checks,
		Sessions:   sessions,
		Accounts:   account.NewService(users, sessions, security.NewHasher(cfg.BcryptCost), lg),
		Addresses:  address.NewService(addresses, resolver, current, lg),
		Geocoder:   resolver,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	lg.Info("starting address book API", zap.String("env", cfg.Env), zap.String("address", srv.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		lg.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
