package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/autotest-engine/internal/autotest"
	"github.com/terra-clan/autotest-engine/internal/config"
	"github.com/terra-clan/autotest-engine/internal/health"
)

// Server represents the HTTP API server
type Server struct {
	config  config.ServerConfig
	watch   config.WatchConfig
	router  *chi.Mux
	manager autotest.Manager
	health  *health.Registry
	metrics *Metrics
	clock   func() time.Time
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	watch config.WatchConfig,
	manager autotest.Manager,
	registry *health.Registry,
) *Server {
	if watch.PollInterval <= 0 {
		watch.PollInterval = 2 * time.Second
	}
	if registry == nil {
		registry = health.NewRegistry()
	}

	s := &Server{
		config:  cfg,
		watch:   watch,
		manager: manager,
		health:  registry,
		metrics: NewMetrics(),
		clock:   time.Now,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1/autotest", func(r chi.Router) {
		// Watch connections are long-lived and stay outside the request timeout
		r.Get("/task/watch", s.handleWatchTask)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Route("/project", func(r chi.Router) {
				r.Get("/list", s.handleListProjects)
				r.Get("/detail", s.handleGetProject)
				r.Get("/options", s.handleProjectOptions)
				r.Post("/create", s.handleCreateProject)
				r.Put("/update", s.handleUpdateProject)
				r.Delete("/delete", s.handleDeleteProjects)
				r.Post("/export", s.handleExportProjects)
			})

			r.Route("/task", func(r chi.Router) {
				r.Get("/list", s.handleListTasks)
				r.Get("/detail", s.handleGetTask)
				r.Post("/create", s.handleCreateTask)
				r.Put("/update", s.handleUpdateTask)
				r.Delete("/delete", s.handleDeleteTasks)
				r.Put("/result", s.handleReportResult)
				r.Post("/export", s.handleExportTasks)
			})

			r.Route("/environment", func(r chi.Router) {
				r.Get("/list", s.handleListEnvironments)
				r.Get("/detail", s.handleGetEnvironment)
				r.Post("/create", s.handleCreateEnvironment)
				r.Put("/update", s.handleUpdateEnvironment)
				r.Delete("/delete", s.handleDeleteEnvironments)
			})
		})
	})

	s.router = r
}
