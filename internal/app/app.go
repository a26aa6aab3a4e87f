// Package app wires the session core for a host process and owns its
// lifecycle: the host builds one App, calls Controller().Init, and closes
// it on exit.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-academic-portal/internal/config"
	"go-academic-portal/internal/event"
	"go-academic-portal/internal/gateway"
	"go-academic-portal/internal/metrics"
	"go-academic-portal/internal/mockapi"
	"go-academic-portal/internal/session"
	"go-academic-portal/internal/timer"
	"go-academic-portal/internal/tokenstore"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	controller *session.Controller
	bus        *event.InMemoryBus
	registry   *prometheus.Registry
	store      *tokenstore.Store

	cleanupFuncs []func()
}

type Option func(*options)

type options struct {
	scheduler timer.Scheduler
	logger    *slog.Logger
}

// WithScheduler replaces the wall-clock timer scheduler.
func WithScheduler(s timer.Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{scheduler: timer.RealScheduler(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	kv, err := tokenstore.OpenBoltKV(cfg.SessionFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	store := tokenstore.New(kv, tokenstore.WithLogger(o.logger))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	bus := event.NewBus(o.logger)

	client := gateway.New(cfg.APIBaseURL,
		gateway.WithAPIKey(cfg.APIKey),
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(o.logger),
	)

	controller := session.New(client, store,
		session.WithScheduler(o.scheduler),
		session.WithBus(bus),
		session.WithMetrics(m),
		session.WithLogger(o.logger),
		session.WithDefaultDuration(cfg.DefaultTokenDuration),
	)

	return &App{
		controller: controller,
		bus:        bus,
		registry:   registry,
		store:      store,
		cleanupFuncs: []func(){
			controller.Close,
			bus.Close,
			func() {
				if err := kv.Close(); err != nil {
					o.logger.Warn("failed to close session file", "error", err)
				}
			},
		},
	}, nil
}

func (a *App) Controller() *session.Controller {
	return a.controller
}

func (a *App) Events() event.Bus {
	return a.bus
}

func (a *App) Store() *tokenstore.Store {
	return a.store
}

// MetricsHandler exposes the app registry in the Prometheus text format.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// Close tears down timers, subscribers and the session file, in that order.
func (a *App) Close() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
	a.cleanupFuncs = nil
}

// NewMockServer builds the development auth backend from cfg.
func NewMockServer(cfg *config.Config) (*http.Server, error) {
	if err := cfg.ValidateMockAPI(); err != nil {
		return nil, err
	}

	service, err := mockapi.NewAuthService(mockapi.Options{
		UsersFile:  cfg.MockUsersFile,
		JWTSecret:  cfg.MockJWTSecret,
		AccessTTL:  cfg.MockAccessTTL,
		RefreshTTL: cfg.MockRefreshTTL,
		BcryptCost: cfg.MockBcryptCost,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	handler := mockapi.NewRouter(mockapi.RouterConfig{
		APIKey:           cfg.APIKey,
		CORSOrigins:      cfg.CORSOrigins,
		RateLimitRPM:     cfg.RateLimitRPM,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		RequestTimeout:   cfg.RequestTimeout,
	}, service)

	return &http.Server{
		Addr:              ":" + cfg.MockPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}, nil
}

// Serve runs server until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, server *http.Server) error {
	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", server.Addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped", "addr", server.Addr)
	return nil
}
