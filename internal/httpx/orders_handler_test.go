package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drinkshop/drinkshop-api/internal/auth"
	"github.com/drinkshop/drinkshop-api/internal/orders"
	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	createFromCart func(ctx context.Context, userID int64, cartItemIDs []int64, paymentMethod string, voucherID *int64) (orders.Order, error)
	createPos      func(ctx context.Context, guestID int64, items []orders.ItemInput, paymentMethod string) (orders.Order, error)
	cancel         func(ctx context.Context, orderID string, userID int64) error
	updateStatus   func(ctx context.Context, orderID string, next orders.Status) (orders.Status, error)
}

func (f *fakeStore) CreateOrderFromCart(ctx context.Context, userID int64, ids []int64, pm string, v *int64) (orders.Order, error) {
	return f.createFromCart(ctx, userID, ids, pm, v)
}
func (f *fakeStore) CreatePosOrder(ctx context.Context, guestID int64, items []orders.ItemInput, pm string) (orders.Order, error) {
	return f.createPos(ctx, guestID, items, pm)
}
func (f *fakeStore) CancelOrder(ctx context.Context, orderID string, userID int64) error {
	return f.cancel(ctx, orderID, userID)
}
func (f *fakeStore) UpdateStatus(ctx context.Context, orderID string, next orders.Status) (orders.Status, error) {
	return f.updateStatus(ctx, orderID, next)
}
func (f *fakeStore) GetStatus(context.Context, string) (orders.Status, error) {
	return orders.StatusPending, nil
}
func (f *fakeStore) GetMyOrders(context.Context, int64, int, int) ([]orders.OrderSummary, error) {
	return nil, nil
}
func (f *fakeStore) GetMyOrder(context.Context, int64, string) (orders.OrderDetail, error) {
	return orders.OrderDetail{}, nil
}
func (f *fakeStore) ListAdminOrders(context.Context, *orders.Status, int, int) ([]orders.AdminOrder, error) {
	return nil, nil
}

type fakePublisher struct {
	events []orders.Envelope
}

func (p *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	var env orders.Envelope
	if err := json.Unmarshal(value, &env); err == nil {
		p.events = append(p.events, env)
	}
}

func asUser(id auth.Identity, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	}
}

var customer = auth.Identity{UserID: 7, Role: auth.RoleCustomer}
var staff = auth.Identity{UserID: 2, Role: auth.RoleStaff}

func newTestRouter(h *OrdersHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/orders", asUser(customer, h.createOrder))
	r.Put("/orders/{id}/cancel", asUser(customer, h.cancelOrder))
	r.Put("/orders/{id}/status", asUser(staff, h.updateStatus))
	r.Post("/pos/orders", asUser(staff, h.createPosOrder))
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestCreateOrder(t *testing.T) {
	var gotUser int64
	var gotIDs []int64
	store := &fakeStore{
		createFromCart: func(_ context.Context, userID int64, ids []int64, pm string, v *int64) (orders.Order, error) {
			gotUser, gotIDs = userID, ids
			assert.Equal(t, "COD", pm)
			assert.Nil(t, v)
			return orders.Order{ID: "ord-1", UserID: userID, Status: orders.StatusPending, TotalCents: 9000}, nil
		},
	}
	pub := &fakePublisher{}
	h := &OrdersHandler{Store: store, ProducerCreated: pub, Service: "test"}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"cart_item_ids":[1,2]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "ord-1", body["order_id"])
	assert.Equal(t, float64(9000), body["total_cents"])
	assert.Equal(t, string(orders.StatusPending), body["status"])

	assert.Equal(t, int64(7), gotUser)
	assert.Equal(t, []int64{1, 2}, gotIDs)

	require.Len(t, pub.events, 1)
	assert.Equal(t, orders.EventOrderCreated, pub.events[0].EventType)
	assert.Equal(t, "ord-1", pub.events[0].CorrelationID)
}

func TestCreateOrderNoSelection(t *testing.T) {
	called := false
	store := &fakeStore{
		createFromCart: func(context.Context, int64, []int64, string, *int64) (orders.Order, error) {
			called = true
			return orders.Order{}, nil
		},
	}
	h := &OrdersHandler{Store: store}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"cart_item_ids":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called, "store must not be hit for an empty selection")
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	store := &fakeStore{
		createFromCart: func(context.Context, int64, []int64, string, *int64) (orders.Order, error) {
			return orders.Order{}, &orders.InsufficientStockError{
				IngredientID: 10,
				Ingredient:   "Milk",
				Have:         decimal.RequireFromString("500"),
				Need:         decimal.RequireFromString("600"),
			}
		},
	}
	pub := &fakePublisher{}
	h := &OrdersHandler{Store: store, ProducerCreated: pub}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"cart_item_ids":[1]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	msg := decodeBody(t, rec)["message"].(string)
	assert.Contains(t, msg, "Milk")
	assert.Contains(t, msg, "500")
	assert.Contains(t, msg, "600")
	assert.Empty(t, pub.events, "no event for a failed order")
}

func TestCancelOrder(t *testing.T) {
	store := &fakeStore{
		cancel: func(_ context.Context, orderID string, userID int64) error {
			assert.Equal(t, "ord-9", orderID)
			assert.Equal(t, int64(7), userID)
			return nil
		},
	}
	pub := &fakePublisher{}
	h := &OrdersHandler{Store: store, ProducerCancelled: pub}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPut, "/orders/ord-9/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.events, 1)
	assert.Equal(t, orders.EventOrderCancelled, pub.events[0].EventType)
}

func TestCancelOrderErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", orders.ErrNotFound, http.StatusNotFound},
		{"not pending", fmt.Errorf("%w: order is Completed, only pending orders can be cancelled", orders.ErrInvalidState), http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{
				cancel: func(context.Context, string, int64) error { return tc.err },
			}
			pub := &fakePublisher{}
			h := &OrdersHandler{Store: store, ProducerCancelled: pub}
			router := newTestRouter(h)

			req := httptest.NewRequest(http.MethodPut, "/orders/ord-9/cancel", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.code, rec.Code)
			assert.Empty(t, pub.events)
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	store := &fakeStore{
		updateStatus: func(_ context.Context, orderID string, next orders.Status) (orders.Status, error) {
			assert.Equal(t, orders.StatusInProcess, next)
			return orders.StatusPending, nil
		},
	}
	pub := &fakePublisher{}
	h := &OrdersHandler{Store: store, ProducerStatus: pub}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPut, "/orders/ord-1/status",
		strings.NewReader(`{"new_status":"InProcess"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.events, 1)
	assert.Equal(t, orders.EventOrderStatusChanged, pub.events[0].EventType)
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	h := &OrdersHandler{Store: &fakeStore{}}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPut, "/orders/ord-1/status",
		strings.NewReader(`{"new_status":"Shipped"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePosOrder(t *testing.T) {
	store := &fakeStore{
		createPos: func(_ context.Context, guestID int64, items []orders.ItemInput, pm string) (orders.Order, error) {
			assert.Equal(t, int64(1), guestID)
			assert.Equal(t, "Cash", pm)
			require.Len(t, items, 1)
			return orders.Order{ID: "pos-1", UserID: guestID, Status: orders.StatusCompleted, TotalCents: 4500}, nil
		},
	}
	pub := &fakePublisher{}
	h := &OrdersHandler{Store: store, ProducerCreated: pub, GuestUserID: 1}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/pos/orders",
		strings.NewReader(`{"items":[{"product_id":1,"qty":1}]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "pos-1", body["order_id"])
	assert.Equal(t, string(orders.StatusCompleted), body["status"])
}
