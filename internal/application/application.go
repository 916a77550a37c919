package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/pallet-allocator/internal/api"
	"github.com/eugenenazirov/pallet-allocator/internal/config"
	"github.com/eugenenazirov/pallet-allocator/internal/dispatch"
	"github.com/eugenenazirov/pallet-allocator/internal/distributor"
	"github.com/eugenenazirov/pallet-allocator/internal/domain"
	"github.com/eugenenazirov/pallet-allocator/internal/placement"
	"github.com/eugenenazirov/pallet-allocator/internal/planner"
	"github.com/eugenenazirov/pallet-allocator/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	runner  *dispatch.Runner
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := OpenStorage(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	runner, err := NewRunner(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	handler := api.NewHandler(runner, store)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithRunRateLimit(cfg.RunRateLimitRPS, cfg.RunRateLimitBurst),
	)

	return &App{
		storage: store,
		runner:  runner,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter)),
	}, nil
}

// OpenStorage returns SQLite storage when a database path is configured and
// in-memory storage otherwise.
func OpenStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	if cfg.DatabasePath == "" {
		return storage.NewMemoryStorage(), nil
	}
	store, err := storage.OpenSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

// NewRunner builds the allocation pipeline described by cfg.
func NewRunner(cfg config.Config, store dispatch.Store, logger *zap.Logger) (*dispatch.Runner, error) {
	rules := cfg.Rules()
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capacity rules: %w", err)
	}
	channels, err := cfg.ChannelRules()
	if err != nil {
		return nil, fmt.Errorf("invalid channel table: %w", err)
	}

	opts := []dispatch.Option{dispatch.WithPolandUserMax(cfg.PolandUserMax)}
	if directType, ok := rules.Type(domain.CarrierEuro); ok {
		opts = append(opts, dispatch.WithDirectType(directType))
	}
	for code, rule := range channels {
		opts = append(opts, dispatch.WithChannel(code, rule))
	}

	return dispatch.New(
		store,
		planner.New(rules),
		distributor.New(logger, distributor.WithAlphaChannel(cfg.AlphaChannel)),
		placement.New(logger, placement.WithMixedVariety(cfg.MixedVariety)),
		logger,
		opts...,
	), nil
}

// BuildRootHandler mounts the API under /api/.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases the storage backend.
func (a *App) Close() error {
	return a.storage.Close()
}
