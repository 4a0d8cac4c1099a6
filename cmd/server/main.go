package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"appregistry/internal/anomaly"
	apphandler "appregistry/internal/application/handler"
	appservice "appregistry/internal/application/service"
	appstore "appregistry/internal/application/store"
	"appregistry/internal/health"
	"appregistry/internal/jwttoken"
	"appregistry/internal/platform/config"
	"appregistry/internal/platform/httpserver"
	"appregistry/internal/platform/logger"
	"appregistry/internal/platform/metrics"
	"appregistry/internal/platform/postgres"
	"appregistry/internal/user"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var (
		db           *sql.DB
		userStore    user.Store
		appStore     appstore.Store
		anomalyStore anomaly.Store
		appTx        appservice.Tx
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("failed to apply schema", "error", err.Error())
			os.Exit(1)
		}
		userStore = user.NewPostgres(db)
		pgAppStore := appstore.NewPostgres(db)
		appStore = pgAppStore
		anomalyStore = anomaly.NewPostgres(db)
		appTx = newApplicationPostgresTx(db)
	} else {
		log.Warn("no database configured, using in-memory stores")
		memStore := appstore.NewInMemoryStore()
		userStore = user.NewInMemoryStore()
		appStore = memStore
		anomalyStore = anomaly.NewInMemoryStore()
		appTx = appservice.PassthroughTx{Store: memStore}
	}

	users := user.NewService(userStore, m, log)
	apps := appservice.NewService(appStore, appTx, users, m, log)
	anomalies := anomaly.NewService(anomalyStore, apps, users, m, log)

	jwt := jwttoken.NewService(cfg.JWTSigningKey)
	validator := jwttoken.NewMiddlewareAdapter(jwt)

	router := chi.NewRouter()
	if db != nil {
		health.New(db, log).Register(router)
	} else {
		health.New(nil, log).Register(router)
	}
	router.Handle("/metrics", promhttp.Handler())
	apphandler.New(apps, log, m, validator, users).Register(router)
	anomaly.NewHandler(anomalies, log, m, validator, users).Register(router)
	user.NewHandler(users, log, m, validator).Register(router)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting application registry", "addr", cfg.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server terminated", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}
