package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/voicehire-team/voicehire/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg         *config.Config
	callHandler *Call
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, callHandler *Call) *Router {
	return &Router{
		cfg:         cfg,
		callHandler: callHandler,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", rt.healthCheck)

	// API v1 group
	v1 := e.Group("/v1")

	// Live relay endpoint; resource CRUD routes live in the management service
	v1.GET("/call/:token", rt.callHandler.HandleCall)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
