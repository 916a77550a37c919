package api

import (
	"net/http"

	"go.uber.org/zap"
)

const (
	defaultReferenceRPS   = 25.0
	defaultReferenceBurst = 50
	defaultRunRPS         = 2.0
	defaultRunBurst       = 4
)

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) RouterOption {
	return func(cfg *routerConfig) {
		cfg.enableLogging = enabled
	}
}

// WithRateLimit limits the tier and numbering endpoints. A non-positive rps
// disables the limit.
func WithRateLimit(rps float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		cfg.reference = newTokenBucket(rps, burst)
	}
}

// WithRunRateLimit limits the allocation endpoints. A non-positive rps
// disables the limit.
func WithRunRateLimit(rps float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		cfg.runs = newTokenBucket(rps, burst)
	}
}

type routerConfig struct {
	enableLogging bool
	logger        *zap.Logger
	reference     limiter
	runs          limiter
}

// routeClass decides which limiter guards a route.
type routeClass int

const (
	unlimited routeClass = iota
	referenceRoute
	runRoute
)

type route struct {
	pattern string
	class   routeClass
	handle  http.HandlerFunc
}

func (h *Handler) routes() []route {
	return []route{
		{pattern: "GET /api/health", class: unlimited, handle: h.handleHealth},
		{pattern: "GET /api/tiers", class: referenceRoute, handle: h.handleGetTiers},
		{pattern: "PUT /api/tiers", class: referenceRoute, handle: h.handlePutTiers},
		{pattern: "GET /api/numbering", class: referenceRoute, handle: h.handleGetNumbering},
		{pattern: "PUT /api/numbering", class: referenceRoute, handle: h.handlePutNumbering},
		{pattern: "POST /api/allocations", class: runRoute, handle: h.handleAllocate},
		{pattern: "POST /api/allocations/workbook", class: runRoute, handle: h.handleAllocateWorkbook},
	}
}

// NewRouter mounts the allocation API. Health checks are never limited;
// allocation runs share a tighter budget than reference reads and updates.
func NewRouter(handler *Handler, logger *zap.Logger, opts ...RouterOption) http.Handler {
	cfg := routerConfig{
		enableLogging: true,
		logger:        logger,
		reference:     newTokenBucket(defaultReferenceRPS, defaultReferenceBurst),
		runs:          newTokenBucket(defaultRunRPS, defaultRunBurst),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mux := http.NewServeMux()
	for _, rt := range handler.routes() {
		var h http.Handler = rt.handle
		switch rt.class {
		case referenceRoute:
			h = limitRoute(cfg.reference, "rate limit exceeded, please retry shortly", h)
		case runRoute:
			h = limitRoute(cfg.runs, "too many allocation runs, please retry shortly", h)
		}
		mux.Handle(rt.pattern, h)
	}

	var root http.Handler = mux
	root = corsMiddleware(root)
	root = recoveryMiddleware(cfg.logger, root)
	if cfg.enableLogging {
		root = loggingMiddleware(cfg.logger, root)
	}
	return requestIDMiddleware(root)
}
