// Package handler contains the HTTP handlers for the payment notification
// service.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/adiprasetio/marketplace-payments/internal/database"
)

// HealthHandler reports liveness of the service and its hard dependencies.
type HealthHandler struct {
	DB    *database.Cluster
	Redis *redis.Client
}

// Health handles GET /healthz.  It pings the database cluster and Redis
// with a short deadline; any failure yields a 503 so load balancers pull
// the instance out of rotation.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.DB.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "database": err.Error()})
	}
	if err := h.Redis.Ping(ctx).Err(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "redis": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
