package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/consultants-web/internal/config"
	"finitefield.org/consultants-web/internal/content"
	"finitefield.org/consultants-web/internal/content/filestore"
	"finitefield.org/consultants-web/internal/content/firestore"
	"finitefield.org/consultants-web/internal/content/sanity"
	"finitefield.org/consultants-web/internal/format"
	"finitefield.org/consultants-web/internal/handlers"
	"finitefield.org/consultants-web/internal/header"
	mw "finitefield.org/consultants-web/internal/middleware"
	"finitefield.org/consultants-web/internal/mount"
	"finitefield.org/consultants-web/internal/observability"
)

const requestTimeout = 30 * time.Second

func main() {
	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("web")
	ctx := observability.WithLogger(context.Background(), logger)

	cfg, err := config.Load()
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			logger.Fatal("invalid configuration", zap.Strings("fields", verr.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise content store", zap.Error(err), zap.String("backend", cfg.Content.Backend))
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("content store close error", zap.Error(err))
		}
	}()

	metrics := observability.NewMetrics()
	registry, err := mount.NewRegistry(
		componentFactory(store, cfg.Header, logger.Named("header"), metrics),
		mount.Config{
			IdleTTL:       cfg.Header.MountIdleTTL,
			SweepInterval: cfg.Header.SweepInterval,
			MaxMounts:     cfg.Header.MaxMounts,
		},
		mount.WithLogger(logger.Named("mount")),
		mount.WithMetrics(metrics),
	)
	if err != nil {
		logger.Fatal("failed to initialise mount registry", zap.Error(err))
	}

	sessions, err := mw.NewSessions(cfg.Session.SigningKey, cfg.Server.IsProduction(), logger.Named("session"))
	if err != nil {
		logger.Fatal("failed to initialise sessions", zap.Error(err))
	}

	site, err := handlers.New(handlers.Options{
		Reader:      store,
		Posts:       store,
		Registry:    registry,
		Markdown:    format.NewMarkdown(),
		SiteName:    cfg.Header.BrandName,
		WaitTimeout: cfg.Header.WaitTimeout,
	})
	if err != nil {
		logger.Fatal("failed to initialise handlers", zap.Error(err))
	}

	router := newRouter(routerDeps{
		logger:    logger.Named("http"),
		sessions:  sessions,
		site:      site,
		metrics:   metrics,
		publicDir: cfg.Server.PublicDir,
	})

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		registry.Run(sweepCtx)
	}()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("consultants web listening",
			zap.String("env", cfg.Server.Environment),
			zap.String("backend", cfg.Content.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	stopSweep()
	<-sweepDone
	registry.Close()
}

type routerDeps struct {
	logger    *zap.Logger
	sessions  *mw.Sessions
	site      *handlers.Site
	metrics   *observability.Metrics
	publicDir string
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// RealIP trusts X-Forwarded-For; deploy only behind a proxy that sets it.
	r.Use(chimw.RealIP)
	r.Use(mw.HTMX)
	r.Use(mw.Logger(d.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	r.Handle("/metrics", d.metrics.Handler())
	r.Handle("/assets/*", mw.AssetsWithCache("/assets/", filepath.Join(d.publicDir, "assets")))

	r.Group(func(r chi.Router) {
		r.Use(d.sessions.Middleware)
		r.Use(d.sessions.CSRF)
		d.site.Routes(r)
	})
	return r
}

func componentFactory(store content.Store, cfg config.HeaderConfig, logger *zap.Logger, metrics *observability.Metrics) mount.Factory {
	return func(id string) (*header.Component, error) {
		return header.New(store,
			header.WithID(id),
			header.WithLogger(logger),
			header.WithMetrics(metrics),
			header.WithSettings(store),
			header.WithBrand(cfg.BrandMark, cfg.BrandName),
		)
	}
}

// openStore builds the configured content backend and its cleanup hook.
func openStore(ctx context.Context, cfg config.Config) (content.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Content.Backend {
	case config.BackendSanity:
		client, err := sanity.NewClient(sanity.Config{
			ProjectID:  cfg.Sanity.ProjectID,
			Dataset:    cfg.Sanity.Dataset,
			APIVersion: cfg.Sanity.APIVersion,
			Token:      cfg.Sanity.Token,
			UseCDN:     cfg.Sanity.UseCDN,
			Timeout:    cfg.Sanity.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		store, err := sanity.NewStore(client)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case config.BackendFirestore:
		provider := firestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			_ = provider.Close()
			return nil, nil, err
		}
		store, err := firestore.NewStore(provider)
		if err != nil {
			_ = provider.Close()
			return nil, nil, err
		}
		return store, provider.Close, nil
	case config.BackendFile:
		store, err := filestore.Open(cfg.Content.File)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown content backend %q", cfg.Content.Backend)
	}
}
