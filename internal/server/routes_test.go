package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momo-checkout/internal/domain"
	"momo-checkout/internal/logging"
	"momo-checkout/internal/service"
)

type fakeCheckout struct {
	got domain.CheckoutRequest
	res *domain.CheckoutResult
	err error
}

func (f *fakeCheckout) SubmitCartCheckout(_ context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	f.got = req
	return f.res, f.err
}

type fakePayments struct {
	list      []domain.Payment
	listErr   error
	attachErr error
	attached  [2]uuid.UUID
	buyer     int64
}

func (f *fakePayments) ListPayments(_ context.Context, buyerID int64, _, _ int) ([]domain.Payment, error) {
	f.buyer = buyerID
	return f.list, f.listErr
}

func (f *fakePayments) AttachOrder(_ context.Context, buyerID int64, paymentID, orderID uuid.UUID) error {
	f.buyer = buyerID
	f.attached = [2]uuid.UUID{paymentID, orderID}
	return f.attachErr
}

type fakeHealth map[string]string

func (h fakeHealth) Health() map[string]string { return h }

func newTestServer(checkout *fakeCheckout, payments *fakePayments, health fakeHealth) http.Handler {
	gin.SetMode(gin.TestMode)
	if health == nil {
		health = fakeHealth{"status": "up"}
	}
	s := &Server{
		corsOrigins: []string{"http://localhost:5173"},
		db:          health,
		checkout:    checkout,
		payments:    payments,
		log:         logging.Discard(),
	}
	return s.RegisterRoutes()
}

func do(h http.Handler, method, path, body string, buyer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if buyer != "" {
		req.Header.Set("X-Buyer-ID", buyer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const cartBody = `{
	"amount": 2000,
	"number": "0788000000",
	"items": [{"productId": 10, "price": 500}, {"productId": 20, "price": 1000}],
	"orderDetails": [
		{"productID": 10, "quantity": 2, "shippingAddress": "KG 1 Ave", "number": "0788000000"},
		{"productID": 20, "quantity": 1, "shippingAddress": "KG 1 Ave", "number": "0788000000"}
	]
}`

func TestCartCheckout_Success(t *testing.T) {
	res := &domain.CheckoutResult{PaymentID: uuid.New(), TransactionID: "ref-1", OrderIDs: []uuid.UUID{uuid.New(), uuid.New()}}
	checkout := &fakeCheckout{res: res}
	h := newTestServer(checkout, &fakePayments{}, nil)

	rec := do(h, http.MethodPost, "/payments/cart", cartBody, "7")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ref-1", body["transactionId"])
	assert.Equal(t, res.PaymentID.String(), body["paymentId"])
	assert.Len(t, body["orderIds"], 2)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	assert.Equal(t, int64(7), checkout.got.BuyerID)
	assert.Equal(t, "0788000000", checkout.got.ContactNumber)
	assert.Equal(t, "2000", checkout.got.TotalAmount.String())
	require.Len(t, checkout.got.OrderDetails, 2)
	assert.Equal(t, int64(20), checkout.got.OrderDetails[1].ProductID)
	assert.Equal(t, "1000", checkout.got.CartItems[1].Price.String())
}

func TestCartCheckout_RequestErrors(t *testing.T) {
	cases := []struct {
		name    string
		buyer   string
		body    string
		status  int
		message string
	}{
		{"no buyer", "", cartBody, http.StatusUnauthorized, "unauthenticated"},
		{"bad buyer", "abc", cartBody, http.StatusUnauthorized, "unauthenticated"},
		{"bad json", "7", `{"amount":`, http.StatusBadRequest, "invalid json"},
		{"missing number", "7", `{"items":[{"productId":1,"price":1}],"orderDetails":[{"productID":1}]}`, http.StatusBadRequest, "Missing required payment information"},
		{"missing details", "7", `{"number":"1","items":[{"productId":1,"price":1}]}`, http.StatusBadRequest, "Missing required payment information"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkout := &fakeCheckout{}
			h := newTestServer(checkout, &fakePayments{}, nil)

			rec := do(h, http.MethodPost, "/payments/cart", tc.body, tc.buyer)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, decode(t, rec)["message"])
			assert.Zero(t, checkout.got.BuyerID, "service must not be called")
		})
	}
}

func TestCartCheckout_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &domain.ValidationError{Index: 0, Field: "quantity", Reason: "must be positive"}, http.StatusBadRequest},
		{"payment failed", &domain.PaymentFailedError{Ref: "r", Err: &domain.TimeoutError{Ref: "r", After: time.Second}}, http.StatusPaymentRequired},
		{"persistence", &domain.PersistenceError{Op: "create orders", Err: errors.New("conn reset")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(&fakeCheckout{err: tc.err}, &fakePayments{}, nil)

			rec := do(h, http.MethodPost, "/payments/cart", cartBody, "7")

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, false, decode(t, rec)["success"])
		})
	}
}

func TestCartCheckout_InternalErrorHidesCause(t *testing.T) {
	h := newTestServer(&fakeCheckout{err: &domain.PersistenceError{Op: "settle payment", Err: errors.New("pq: secret detail")}}, &fakePayments{}, nil)

	rec := do(h, http.MethodPost, "/payments/cart", cartBody, "7")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error processing payment", decode(t, rec)["message"])
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestListPayments(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		payments := &fakePayments{list: []domain.Payment{{ID: uuid.New(), BuyerID: 7}}}
		h := newTestServer(&fakeCheckout{}, payments, nil)

		rec := do(h, http.MethodGet, "/payments", "", "7")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode(t, rec)["data"], 1)
		assert.Equal(t, int64(7), payments.buyer)
	})

	t.Run("empty", func(t *testing.T) {
		h := newTestServer(&fakeCheckout{}, &fakePayments{}, nil)

		rec := do(h, http.MethodGet, "/payments", "", "7")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "No payment found", decode(t, rec)["message"])
	})
}

func TestAttachOrder(t *testing.T) {
	paymentID, orderID := uuid.New(), uuid.New()
	body := `{"orderId":"` + orderID.String() + `"}`

	t.Run("ok", func(t *testing.T) {
		payments := &fakePayments{}
		h := newTestServer(&fakeCheckout{}, payments, nil)

		rec := do(h, http.MethodPut, "/payments/"+paymentID.String()+"/order", body, "7")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, [2]uuid.UUID{paymentID, orderID}, payments.attached)
	})

	t.Run("bad payment id", func(t *testing.T) {
		h := newTestServer(&fakeCheckout{}, &fakePayments{}, nil)
		rec := do(h, http.MethodPut, "/payments/nope/order", body, "7")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing order id", func(t *testing.T) {
		h := newTestServer(&fakeCheckout{}, &fakePayments{}, nil)
		rec := do(h, http.MethodPut, "/payments/"+paymentID.String()+"/order", `{}`, "7")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Payment ID and Order ID are required", decode(t, rec)["message"])
	})

	t.Run("not found", func(t *testing.T) {
		h := newTestServer(&fakeCheckout{}, &fakePayments{attachErr: service.ErrPaymentNotFound}, nil)
		rec := do(h, http.MethodPut, "/payments/"+paymentID.String()+"/order", body, "7")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	rec := do(newTestServer(&fakeCheckout{}, &fakePayments{}, fakeHealth{"status": "up"}), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(newTestServer(&fakeCheckout{}, &fakePayments{}, fakeHealth{"status": "down", "error": "db down"}), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "db down", decode(t, rec)["error"])
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(&fakeCheckout{}, &fakePayments{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/payments/cart", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-Buyer-ID")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
