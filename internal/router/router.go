package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/KangDroid/CLMasterServer/internal/handler" // handlers implementing the endpoints
)

// RegisterRoutes wires every endpoint of the master server onto the
// provided Echo instance.  The admin surface lives under /api/admin and
// carries node registration; the client surface under /api/client covers
// account registration, login and container lifecycle calls.  Container
// endpoints authenticate through the X-AUTH-TOKEN header, resolved by
// the orchestrator itself rather than by middleware, so routing errors
// (unknown region) and auth errors keep their contract ordering.
func RegisterRoutes(e *echo.Echo, auth *handler.AuthHandler, nodes *handler.NodeHandler, containers *handler.ContainerHandler, authLimiter echo.MiddlewareFunc) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Admin API: node fleet management.
	admin := e.Group("/api/admin")
	admin.POST("/node/register", nodes.RegisterNode)

	// Client API.
	client := e.Group("/api/client")
	client.GET("/alive", handler.Alive)
	// Credential endpoints sit behind the Redis token bucket so password
	// guessing burns through the per-IP budget quickly.
	client.POST("/register", auth.Register, authLimiter)
	client.POST("/login", auth.Login, authLimiter)
	client.GET("/node", nodes.NodeLoad)
	client.GET("/container", containers.List)
	client.POST("/container", containers.Create)
	client.POST("/restart", containers.Restart)
}
