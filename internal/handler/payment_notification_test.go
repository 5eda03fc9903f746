package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/adiprasetio/marketplace-payments/internal/model"
	"github.com/adiprasetio/marketplace-payments/internal/repository"
	"github.com/adiprasetio/marketplace-payments/internal/service"
)

type fakeEngine struct {
	rcpt    *service.Receipt
	err     error
	orderID string
	status  string
}

func (f *fakeEngine) HandleNotification(ctx context.Context, orderID, claimedStatus string) (*service.Receipt, error) {
	f.orderID = orderID
	f.status = claimedStatus
	return f.rcpt, f.err
}

func postNotification(t *testing.T, eng *fakeEngine, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/notification", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewNotificationHandler(eng, zerolog.Nop())
	if err := h.Notify(c); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	return rec
}

const validBody = `{
	"transaction_id": "tx-778",
	"order_id": "ORD-1",
	"transaction_status": "settlement",
	"payment_type": "bank_transfer",
	"gross_amount": "98000.00",
	"signature_key": "abc"
}`

func TestNotifyReturnsReceipt(t *testing.T) {
	eng := &fakeEngine{rcpt: &service.Receipt{OrderID: "ORD-1", Status: model.StatusSettlement, Applied: true}}

	rec := postNotification(t, eng, validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if eng.orderID != "ORD-1" || eng.status != "settlement" {
		t.Fatalf("engine called with (%q, %q)", eng.orderID, eng.status)
	}
	if !strings.Contains(rec.Body.String(), `"applied":true`) {
		t.Fatalf("receipt not echoed: %s", rec.Body.String())
	}
}

func TestNotifyRejectsMissingOrderID(t *testing.T) {
	eng := &fakeEngine{}
	rec := postNotification(t, eng, `{"transaction_status":"settlement"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if eng.orderID != "" {
		t.Fatal("engine invoked for invalid payload")
	}
}

func TestNotifyErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"status mismatch", service.ErrStatusMismatch, http.StatusBadRequest},
		{"duplicate", service.ErrDuplicateStatus, http.StatusConflict},
		{"unknown order", repository.ErrOrderNotFound, http.StatusNotFound},
		{"infrastructure", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postNotification(t, &fakeEngine{err: tc.err}, validBody)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
