package rest

import (
	"context"
	"net/http"
	"time"

	"kgraph/application/ports"
	"kgraph/interfaces/http/rest/handlers"
	"kgraph/interfaces/http/rest/middleware"
	"kgraph/pkg/common"
	pkgerrors "kgraph/pkg/errors"
	"kgraph/pkg/observability"
	"kgraph/pkg/ratelimit"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options toggles optional parts of the router
type Options struct {
	EnableCORS    bool
	EnableMetrics bool
	// Debug exposes internal error messages in responses
	Debug bool
	// RateLimitPerMinute caps requests per client IP; 0 disables it
	RateLimitPerMinute int
}

// Router creates and configures the HTTP router
type Router struct {
	commands handlers.GraphCommands
	queries  handlers.GraphQueries
	store    ports.AttributeStore
	metrics  *observability.Collector
	opts     Options
	logger   *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commands handlers.GraphCommands,
	queries handlers.GraphQueries,
	store ports.AttributeStore,
	metrics *observability.Collector,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		commands: commands,
		queries:  queries,
		store:    store,
		metrics:  metrics,
		opts:     opts,
		logger:   logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errHandler := pkgerrors.NewErrorHandler(rt.logger, rt.opts.Debug)

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger))
	if rt.opts.EnableMetrics {
		router.Use(middleware.Metrics(rt.metrics))
	}
	router.Use(errHandler.Middleware)
	if rt.opts.RateLimitPerMinute > 0 {
		limiter := ratelimit.NewPerMinuteLimiter(rt.opts.RateLimitPerMinute)
		router.Use(middleware.RateLimit(limiter, 60, errHandler, rt.logger))
	}

	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.opts.EnableMetrics {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	nodeHandler := handlers.NewNodeHandler(rt.commands, rt.queries, errHandler, rt.logger)
	edgeHandler := handlers.NewEdgeHandler(rt.commands, errHandler, rt.logger)
	graphHandler := handlers.NewGraphHandler(rt.commands, rt.queries, errHandler, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", nodeHandler.CreateNode)
			r.Get("/", nodeHandler.ListNodes)
			r.Get("/{nodeID}", nodeHandler.GetNode)
			r.Put("/{nodeID}", nodeHandler.UpdateNode)
			r.Delete("/{nodeID}", nodeHandler.DeleteNode)
			r.Get("/{nodeID}/neighbors", nodeHandler.GetNeighbors)
		})

		r.Route("/edges", func(r chi.Router) {
			r.Post("/", edgeHandler.Link)
			r.Delete("/", edgeHandler.Unlink)
		})

		r.Get("/graph", graphHandler.GetGraph)
		r.Get("/search", graphHandler.Search)
		r.Post("/admin/reindex", graphHandler.Reindex)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errHandler.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})

	return router
}

// healthCheck reports that the process is up
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports whether the attribute store is reachable
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	if err := rt.store.Ping(ctx); err != nil {
		rt.logger.Warn("Readiness check failed", zap.Error(err))
		common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
