// Command portal runs the identity-linking portal service.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/turner-mzeller/GitHubPortal/pkg/api"
	"github.com/turner-mzeller/GitHubPortal/pkg/config"
	"github.com/turner-mzeller/GitHubPortal/pkg/links"
	portalmiddleware "github.com/turner-mzeller/GitHubPortal/pkg/middleware"
	"github.com/turner-mzeller/GitHubPortal/pkg/observability"
	"github.com/turner-mzeller/GitHubPortal/pkg/platform"
	"github.com/turner-mzeller/GitHubPortal/pkg/session"
	"github.com/turner-mzeller/GitHubPortal/pkg/usercontext"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	log := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.WithError(err).Error("failed to open link store database")
		os.Exit(1)
	}
	defer db.Close()
	store := links.NewPostgresStore(db, metrics)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.WithError(err).Warn("redis is unreachable, sessions and shared caches are degraded")
	}

	client := platform.NewClient(cfg.GitHub, cfg.Organizations, metrics, log)
	gateway := platform.NewCachedGateway(client, redisClient, cfg.Redis.Prefix, metrics, log)
	sessions := session.NewStore(redisClient, cfg.Redis.Prefix, cfg.Redis.TTL)

	var verifier *portalmiddleware.DirectoryVerifier
	if cfg.ActiveDirectory.Issuer != "" {
		verifier, err = portalmiddleware.NewDirectoryVerifier(context.Background(), cfg.ActiveDirectory)
		if err != nil {
			log.WithError(err).Error("failed to prepare the directory token verifier")
			os.Exit(1)
		}
	}

	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	ucMiddleware := portalmiddleware.NewUserContext(cfg, store, gateway, sessions, verifier, log)
	apiRouter := router.PathPrefix("/").Subrouter()
	apiRouter.Use(
		portalmiddleware.RequestID,
		portalmiddleware.Logging(log, metrics),
		portalmiddleware.Session,
		ucMiddleware.Handler,
	)
	api.NewHandlers(cfg, sessions, log).Register(apiRouter)

	scheduler := cron.New()
	// Nightly maintainer census warms the team caches and gives the
	// engineering-systems crew their daily contact list.
	if _, err := scheduler.AddFunc("0 4 * * *", func() {
		runMaintainerSweep(cfg, store, gateway, log)
	}); err != nil {
		log.WithError(err).Error("failed to schedule the maintainer sweep")
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("portal listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// runMaintainerSweep enumerates every team maintainer under a fresh
// tooling context and logs the census.
func runMaintainerSweep(cfg *config.Config, store links.Store, gateway platform.Gateway, log *observability.Logger) {
	primary, ok := cfg.PrimaryOrganization()
	if !ok {
		return
	}
	uc, err := usercontext.New(context.Background(), usercontext.Options{
		Config:  cfg,
		Store:   store,
		Gateway: gateway,
		Logger:  log,
		Link: &links.Link{
			PlatformID:       "0",
			PlatformUsername: "portal-tooling",
			PlatformToken:    primary.OwnerToken,
		},
	})
	if err != nil {
		log.WithError(err).Error("maintainer sweep could not build a context")
		return
	}
	maintainers, err := uc.AllMaintainers(context.Background())
	if err != nil {
		log.WithError(err).Error("maintainer sweep failed")
		return
	}
	linked := 0
	for _, m := range maintainers {
		if m.User.Link() != nil {
			linked++
		}
	}
	log.WithFields(map[string]interface{}{
		"maintainers": len(maintainers),
		"linked":      linked,
	}).Info("maintainer sweep completed")
}
