// Package rest wires the node API routes onto a chi router.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"ontology/interfaces/http/rest/handlers"
	"ontology/interfaces/http/rest/middleware"
	"ontology/pkg/common"
)

// ReadinessCheck reports whether a dependency can serve requests
type ReadinessCheck func(ctx context.Context) error

// RouterConfig holds the router settings
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Auth           middleware.AuthConfig
	Readiness      ReadinessCheck
}

// Router creates and configures the HTTP router
type Router struct {
	nodes  *handlers.NodeHandler
	config RouterConfig
	logger *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(nodes *handlers.NodeHandler, config RouterConfig, logger *zap.Logger) *Router {
	return &Router{
		nodes:  nodes,
		config: config,
		logger: logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.config.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(rt.config.RequestTimeout))
	}

	origins := rt.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Total-Count", "Location"},
		MaxAge:         300,
	}))

	router.NotFound(rt.nodes.RouteNotFound)
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	router.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.config.Auth, rt.logger))
		r.Use(rt.nodes.Recover)

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", rt.nodes.ListNodes)
			r.Post("/", rt.nodes.CreateNode)
			r.Route("/{nodeID}", func(r chi.Router) {
				r.Get("/", rt.nodes.GetNode)
				r.Put("/", rt.nodes.UpdateNode)
				r.Delete("/", rt.nodes.DeleteNode)
				r.Get("/properties", rt.nodes.GetProperties)
				r.Post("/properties", rt.nodes.AddProperty)
				r.Patch("/properties", rt.nodes.UpdateProperties)
				r.Get("/changelog", rt.nodes.GetChangelog)
			})
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.config.Readiness != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := rt.config.Readiness(ctx); err != nil {
			rt.logger.Warn("readiness check failed", zap.Error(err))
			common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
