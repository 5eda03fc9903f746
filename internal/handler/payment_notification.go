package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/adiprasetio/marketplace-payments/internal/provider"
	"github.com/adiprasetio/marketplace-payments/internal/repository"
	"github.com/adiprasetio/marketplace-payments/internal/service"
)

// NotificationEngine is the slice of the service layer this handler needs.
type NotificationEngine interface {
	HandleNotification(ctx context.Context, orderID, claimedStatus string) (*service.Receipt, error)
}

// NotificationHandler receives webhook deliveries from the payment gateway.
// The payload is treated as a hint only: the engine re-fetches the
// canonical status before anything is persisted.
type NotificationHandler struct {
	Engine NotificationEngine
	Log    zerolog.Logger
}

// NewNotificationHandler constructs a NotificationHandler.  The engine must
// be non-nil.
func NewNotificationHandler(engine NotificationEngine, log zerolog.Logger) *NotificationHandler {
	if engine == nil {
		panic("nil engine passed to NewNotificationHandler")
	}
	return &NotificationHandler{Engine: engine, Log: log}
}

// notificationPayload mirrors the gateway's webhook body.  Only order_id
// and transaction_status are consulted here; the rest is bound so malformed
// JSON is rejected up front.
type notificationPayload struct {
	TransactionID     string              `json:"transaction_id"`
	OrderID           string              `json:"order_id"`
	StatusCode        string              `json:"status_code"`
	GrossAmount       string              `json:"gross_amount"`
	Currency          string              `json:"currency"`
	PaymentType       string              `json:"payment_type"`
	TransactionStatus string              `json:"transaction_status"`
	TransactionTime   string              `json:"transaction_time"`
	SettlementTime    string              `json:"settlement_time"`
	ExpiryTime        string              `json:"expiry_time"`
	SignatureKey      string              `json:"signature_key"`
	VANumbers         []provider.VANumber `json:"va_numbers"`
	Actions           []provider.Action   `json:"actions"`
}

// Notify handles POST /v1/payments/notification.  Client rejections map to
// 4xx so the gateway stops retrying them; infrastructure failures map to
// 5xx so it retries later.
func (h *NotificationHandler) Notify(c echo.Context) error {
	var body notificationPayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.OrderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id is required"})
	}
	if body.TransactionStatus == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "transaction_status is required"})
	}

	rcpt, err := h.Engine.HandleNotification(c.Request().Context(), body.OrderID, body.TransactionStatus)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStatusMismatch):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "claimed status does not match gateway status"})
		case errors.Is(err, service.ErrDuplicateStatus):
			return c.JSON(http.StatusConflict, echo.Map{"error": "status already processed"})
		case errors.Is(err, repository.ErrOrderNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		default:
			h.Log.Error().Err(err).Str("order_id", body.OrderID).Msg("notification processing failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, rcpt)
}
