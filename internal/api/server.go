// Package api exposes the curation engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/panel-curation-server/internal/domain"
	"github.com/panel-curation-server/internal/middleware"
	"github.com/panel-curation-server/internal/service"
)

// Services bundles everything the HTTP surface needs.
type Services struct {
	Reconciler  *service.Reconciler
	Panels      *service.PanelService
	Transcripts *service.TranscriptIngester
	Review      *service.ReviewService
	Report      *service.ReportService
}

// Server represents the HTTP server
type Server struct {
	cfg      *domain.Config
	services Services
	router   *gin.Engine
	server   *http.Server
	log      *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, services Services, logger *logrus.Logger) *Server {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	if cfg.Server.RateLimit > 0 {
		router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	}

	server := &Server{
		cfg:      cfg,
		services: services,
		router:   router,
		log:      logger,
	}
	server.setupRoutes()
	return server
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.WithField("addr", addr).Info("HTTP server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/imports/test-directory", s.handleImportRelease)
		v1.POST("/imports/transcripts", s.handleImportTranscripts)
		v1.POST("/panels", s.handleImportPanel)
		v1.GET("/reviews/pending", s.handleListPending)
		v1.POST("/links/:id/approve", s.reviewAction(s.services.Review.ApproveLink))
		v1.POST("/links/:id/revert", s.reviewAction(s.services.Review.RevertLink))
		v1.POST("/links/:id/activate", s.reviewAction(s.services.Review.ActivateLink))
		v1.POST("/links/:id/deactivate", s.reviewAction(s.services.Review.DeactivateLink))
		v1.GET("/audit/:entityType/:entityID", s.handleListAuditNotes)
		v1.GET("/report", s.handleReport)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleImportRelease(c *gin.Context) {
	var feed domain.ReleaseFeed
	if err := c.ShouldBindJSON(&feed); err != nil {
		s.badRequest(c, err)
		return
	}
	force := c.Query("force") == "true"

	summary, err := s.services.Reconciler.ImportRelease(c.Request.Context(), &feed, force, actorFrom(c))
	if err != nil {
		s.importError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleImportTranscripts(c *gin.Context) {
	var feed service.TranscriptFeed
	if err := c.ShouldBindJSON(&feed); err != nil {
		s.badRequest(c, err)
		return
	}
	force := c.Query("force") == "true"

	summary, err := s.services.Transcripts.Ingest(c.Request.Context(), &feed, force, actorFrom(c))
	if err != nil {
		var ambiguous *domain.AmbiguousClinicalDataError
		var missing *domain.MissingColumnsError
		if errors.As(err, &ambiguous) || errors.As(err, &missing) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		s.importError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type panelImportRequest struct {
	Panel    domain.PanelDefinition    `json:"panel"`
	Children []*domain.PanelDefinition `json:"children,omitempty"`
}

func (s *Server) handleImportPanel(c *gin.Context) {
	var req panelImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	var (
		panel   *domain.Panel
		created bool
		err     error
	)
	if req.Panel.Super || len(req.Children) > 0 {
		panel, created, err = s.services.Panels.ImportSuperPanel(c.Request.Context(), &req.Panel, req.Children, actorFrom(c))
	} else {
		panel, created, err = s.services.Panels.ImportPanel(c.Request.Context(), &req.Panel, actorFrom(c))
	}
	if err != nil {
		s.internalError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, panel)
}

func (s *Server) handleListPending(c *gin.Context) {
	links, err := s.services.Review.ListPendingLinks(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links, "count": len(links)})
}

func (s *Server) reviewAction(action func(context.Context, string, domain.ActorRef) (*domain.Link, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, err := action(c.Request.Context(), c.Param("id"), actorFrom(c))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
				return
			}
			s.internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"link": link, "state": link.State()})
	}
}

func (s *Server) handleListAuditNotes(c *gin.Context) {
	notes, err := s.services.Review.ListAuditNotes(c.Request.Context(), c.Param("entityType"), c.Param("entityID"))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes, "count": len(notes)})
}

func (s *Server) handleReport(c *gin.Context) {
	rows, err := s.services.Report.GenerateReport(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows, "count": len(rows)})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) importError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrStaleVersion) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.internalError(c, err)
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.log.WithError(err).WithField("correlation_id", c.GetString("correlation_id")).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// actorFrom derives the acting identity from request headers. Imports without
// identity headers run as the system actor.
func actorFrom(c *gin.Context) domain.ActorRef {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return domain.AuthenticatedActor(id)
	}
	if name := c.GetHeader("X-User"); name != "" {
		return domain.NamedActor(name)
	}
	return domain.SystemActor()
}
