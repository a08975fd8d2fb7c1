// Package api implements the gin HTTP surface (monitoring dashboard
// reads, the authenticated Room-2 doctor-decision widget, login, health,
// and prometheus metrics): a Server struct wiring its service
// collaborators, a NewServer constructor, and gin.Context handlers
// returning c.JSON.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carlosapgomes/triage-automation/pkg/auth"
	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/monitoring"
	"github.com/carlosapgomes/triage-automation/pkg/pipeline"
	"github.com/carlosapgomes/triage-automation/pkg/version"
)

// Pinger is the narrow liveness-check port the health handler needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// WidgetDecisionHandler is the narrow Room-2 widget surface the HTTP
// layer depends on, consumer-owned per the pipeline package's own
// ChatClient split, so handlers can be tested against a fake instead of
// wiring a full *pipeline.Dispatcher.
type WidgetDecisionHandler interface {
	GetWidgetDecisionSnapshot(ctx context.Context, caseID string) (*pipeline.WidgetDecisionSnapshot, error)
	HandleWidgetDoctorDecision(ctx context.Context, caseID, doctorUserID string, decision models.DoctorDecision, supportFlag models.SupportFlag, reason string) (pipeline.WidgetDecisionOutcome, error)
}

// Server wires every collaborator the HTTP surface needs and exposes
// the configured gin engine.
type Server struct {
	engine     *gin.Engine
	db         Pinger
	guard      *auth.Guard
	authSvc    *auth.AuthService
	tokens     *auth.TokenService
	monitoring *monitoring.Service
	widget     WidgetDecisionHandler
}

// NewServer builds the gin engine and registers every route.
func NewServer(
	db Pinger,
	guard *auth.Guard,
	authService *auth.AuthService,
	tokens *auth.TokenService,
	monitoringService *monitoring.Service,
	widget WidgetDecisionHandler,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:     gin.New(),
		db:         db,
		guard:      guard,
		authSvc:    authService,
		tokens:     tokens,
		monitoring: monitoringService,
		widget:     widget,
	}
	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.POST("/auth/login", s.handleLogin)

	monitoringGroup := s.engine.Group("/monitoring")
	monitoringGroup.GET("/cases", s.handleListCases)
	monitoringGroup.GET("/cases/:case_id", s.handleGetCaseDetail)

	widgetGroup := s.engine.Group("/widget")
	widgetGroup.POST("/room2/bootstrap", s.handleWidgetBootstrap)
	widgetGroup.POST("/room2/submit", s.handleWidgetSubmit)
}

// Engine exposes the underlying gin engine for serving or testing.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Run starts the HTTP server listening on addr (blocking).
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "version": version.Full(), "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": version.Full()})
}
