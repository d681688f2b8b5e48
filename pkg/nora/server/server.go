// Package server assembles the HTTP router: the JSON API, the staff pages
// and the public selection form.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/apikeys"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/config"
	"github.com/norahq/nora/pkg/nora/database"
	"github.com/norahq/nora/pkg/nora/deliveries"
	"github.com/norahq/nora/pkg/nora/distributions"
	"github.com/norahq/nora/pkg/nora/log"
	"github.com/norahq/nora/pkg/nora/meals"
	"github.com/norahq/nora/pkg/nora/menus"
	"github.com/norahq/nora/pkg/nora/notify"
	"github.com/norahq/nora/pkg/nora/plates"
	"github.com/norahq/nora/pkg/nora/tags"
	"github.com/norahq/nora/pkg/nora/web"
	"gorm.io/gorm"
)

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	db         *gorm.DB
	logger     *log.Logger
	router     *gin.Engine
	httpServer *http.Server
	clock      func() time.Time
}

// New creates a server with every route registered
func New(cfg *config.Config, db *gorm.DB, logger *log.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	loc := cfg.Server.Location()
	s := &Server{
		config: cfg,
		db:     db,
		logger: logger,
		router: gin.New(),
		clock:  func() time.Time { return time.Now().In(loc) },
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
	return s
}

// Router returns the gin engine, mainly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(recovery(s.logger))
	s.router.Use(requestLogger(s.logger))
	s.router.Use(securityHeaders())
	s.router.Use(corsMiddleware(&s.config.Security))
	s.router.Use(web.Sessions(&s.config.Security))
	web.Setup(s.router)
}

func (s *Server) health(c *gin.Context) {
	if err := database.HealthCheck(c.Request.Context(), s.db); err != nil {
		s.logger.WithError(err).Warn("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "nora"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "nora"})
}

func (s *Server) setupRoutes() {
	cfg := s.config
	r := s.router
	limiter := rateLimit(&cfg.Security, s.logger)

	tokens := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.JWTExpirationHours)
	queue := notify.NewDBQueue(s.db)
	scheduler := notify.NewScheduler(queue, s.logger, time.Duration(cfg.Notify.EnqueueTimeout)*time.Second)
	menuService := menus.NewService(s.db, scheduler)

	r.GET("/health", s.health)

	// JSON API
	api := r.Group("/api")
	{
		api.GET("/health", s.health)

		authHandler := auth.NewHandler(s.db, tokens, s.logger, cfg.Security.AllowRegistration)
		authHandler.RegisterRoutes(api.Group("/auth", limiter), auth.AuthMiddleware(tokens))
		authHandler.RegisterTokenRoutes(r.Group("", limiter))

		// API keys are managed with a JWT session only
		apikeys.NewHandler(s.db).RegisterRoutes(api.Group("", auth.AuthMiddleware(tokens)))

		protected := api.Group("", apikeys.CombinedAuthMiddleware(s.db, tokens))
		tags.NewHandler(s.db).RegisterRoutes(protected)
		meals.NewHandler(s.db).RegisterRoutes(protected)
		plates.NewHandler(s.db).RegisterRoutes(protected)
		distributions.NewHandler(s.db).RegisterRoutes(protected)
		menus.NewHandler(s.db, menuService).RegisterRoutes(protected)
		deliveries.NewHandler(s.db, s.clock).RegisterRoutes(protected)
	}

	// Staff pages
	requireLogin := web.RequireLogin(s.db)
	web.NewHandler(s.db, s.logger).RegisterRoutes(r.Group("", limiter), requireLogin)

	pages := r.Group("", requireLogin)
	tags.NewViews(s.db).RegisterRoutes(pages)
	meals.NewViews(s.db).RegisterRoutes(pages)
	plates.NewViews(s.db).RegisterRoutes(pages)
	distributions.NewViews(s.db).RegisterRoutes(pages)
	menus.NewViews(s.db, menuService).RegisterRoutes(pages)
	deliveries.NewHandler(s.db, s.clock).RegisterPages(pages)

	// Public selection form
	deliveries.NewSelection(s.db, s.logger, s.clock).RegisterRoutes(r, limiter)

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		web.NotFound(c)
	})
}

// Start serves HTTP until Stop is called
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}
