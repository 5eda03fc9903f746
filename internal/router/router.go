// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adiprasetio/marketplace-payments/internal/handler"
)

// Register wires every route of the service onto the provided Echo
// instance: the gateway webhook, the health check and the Prometheus
// scrape endpoint.
func Register(e *echo.Echo, n *handler.NotificationHandler, h *handler.HealthHandler) {
	e.POST("/v1/payments/notification", n.Notify)
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
