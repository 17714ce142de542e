// Package api exposes the engine's command surface over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/drag"
	"github.com/dyluth/lanes/internal/engine"
	boarderrors "github.com/dyluth/lanes/internal/errors"
	"github.com/dyluth/lanes/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Commander is the engine command surface served over HTTP.
type Commander interface {
	Board(ctx context.Context) (board.View, error)
	StartDrag(ctx context.Context, itemID string) (board.View, error)
	HoverOver(ctx context.Context, h drag.Hover) (board.View, error)
	EndDrag(ctx context.Context, overID string) (board.View, error)
	CancelDrag(ctx context.Context) (board.View, error)
	SelectPersonaForItem(ctx context.Context, itemID, personaID string) (board.View, error)
	DeleteItem(ctx context.Context, itemID string) (board.View, error)
	RetryDeposits(ctx context.Context) (board.View, error)
}

// Store is the read side of the durable store the API needs directly.
type Store interface {
	Ping(ctx context.Context) error
	GetPersona(ctx context.Context, personaID string) (board.Persona, error)
	ListPersonas(ctx context.Context) ([]board.Persona, error)
}

// Options configures a Server. CORSOrigins defaults to the local dashboard.
type Options struct {
	Addr        string
	CORSOrigins []string
	Logger      zerolog.Logger
}

// Server serves the board API.
type Server struct {
	engine Commander
	store  Store
	logger zerolog.Logger
	router *gin.Engine
	server *http.Server
}

// NewServer wires the routes and middleware; call Start to listen.
func NewServer(eng Commander, store Store, opts Options) *Server {
	observability.RegisterMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(opts.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CORSOrigins),
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	s := &Server{
		engine: eng,
		store:  store,
		logger: opts.Logger.With().Str("component", "api").Logger(),
		router: r,
	}
	s.routes()

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/personas", s.personas)

	s.router.GET("/board", s.command(func(c *gin.Context) (board.View, error) {
		return s.engine.Board(c.Request.Context())
	}))

	s.router.POST("/drag/start", s.command(func(c *gin.Context) (board.View, error) {
		var req struct {
			ItemID string `json:"item_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return board.View{}, boarderrors.NewInvalidRequest(err.Error())
		}
		return s.engine.StartDrag(c.Request.Context(), req.ItemID)
	}))

	s.router.POST("/drag/hover", s.command(func(c *gin.Context) (board.View, error) {
		var req drag.Hover
		if err := c.ShouldBindJSON(&req); err != nil {
			return board.View{}, boarderrors.NewInvalidRequest(err.Error())
		}
		if req.TargetID == "" {
			return board.View{}, boarderrors.NewInvalidRequest("target_id is required")
		}
		return s.engine.HoverOver(c.Request.Context(), req)
	}))

	// An empty or missing over_id aborts the drag.
	s.router.POST("/drag/end", s.command(func(c *gin.Context) (board.View, error) {
		var req struct {
			OverID string `json:"over_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			return board.View{}, boarderrors.NewInvalidRequest(err.Error())
		}
		return s.engine.EndDrag(c.Request.Context(), req.OverID)
	}))

	s.router.POST("/drag/cancel", s.command(func(c *gin.Context) (board.View, error) {
		return s.engine.CancelDrag(c.Request.Context())
	}))

	s.router.POST("/items/:id/annotation", s.command(func(c *gin.Context) (board.View, error) {
		var req struct {
			PersonaID string `json:"persona_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return board.View{}, boarderrors.NewInvalidRequest(err.Error())
		}
		if _, err := s.store.GetPersona(c.Request.Context(), req.PersonaID); err != nil {
			return board.View{}, err
		}
		return s.engine.SelectPersonaForItem(c.Request.Context(), c.Param("id"), req.PersonaID)
	}))

	s.router.DELETE("/items/:id", s.command(func(c *gin.Context) (board.View, error) {
		return s.engine.DeleteItem(c.Request.Context(), c.Param("id"))
	}))

	s.router.POST("/deposits/retry", s.command(func(c *gin.Context) (board.View, error) {
		return s.engine.RetryDeposits(c.Request.Context())
	}))
}

// command adapts an engine call to a handler that responds with the view.
func (s *Server) command(fn func(c *gin.Context) (board.View, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := fn(c)
		if err != nil {
			status := statusFor(err)
			if status >= 500 {
				s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("command_failed")
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return boarderrors.HTTPStatus(err)
}

// personas lists the persona catalog ordered by name.
func (s *Server) personas(c *gin.Context) {
	personas, err := s.store.ListPersonas(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("personas_failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, personas)
}

// HealthResponse is the JSON body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
	Error  string `json:"error,omitempty"`
}

// health returns 200 when the store answers a ping, 503 otherwise.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Store:  "disconnected",
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Store: "connected"})
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http_server_failed")
		}
	}()
	s.logger.Info().Str("addr", s.server.Addr).Msg("http_server_started")
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
