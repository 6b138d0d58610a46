package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/drinkshop/drinkshop-api/internal/auth"
	kafkax "github.com/drinkshop/drinkshop-api/internal/kafka"
	"github.com/drinkshop/drinkshop-api/internal/orders"
	"github.com/drinkshop/drinkshop-api/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// OrderStore is the transactional order workflow the handlers drive.
type OrderStore interface {
	CreateOrderFromCart(ctx context.Context, userID int64, cartItemIDs []int64, paymentMethod string, voucherID *int64) (orders.Order, error)
	CreatePosOrder(ctx context.Context, guestID int64, items []orders.ItemInput, paymentMethod string) (orders.Order, error)
	CancelOrder(ctx context.Context, orderID string, userID int64) error
	UpdateStatus(ctx context.Context, orderID string, next orders.Status) (orders.Status, error)
	GetStatus(ctx context.Context, orderID string) (orders.Status, error)
	GetMyOrders(ctx context.Context, userID int64, limit, offset int) ([]orders.OrderSummary, error)
	GetMyOrder(ctx context.Context, userID int64, orderID string) (orders.OrderDetail, error)
	ListAdminOrders(ctx context.Context, status *orders.Status, limit, offset int) ([]orders.AdminOrder, error)
}

// Publisher matches the async kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Store             OrderStore
	ProducerCreated   Publisher
	ProducerCancelled Publisher
	ProducerStatus    Publisher
	Redis             *redis.Client
	Service           string
	GuestUserID       int64
}

type CreateOrderReq struct {
	CartItemIDs   []int64 `json:"cart_item_ids"`
	PaymentMethod string  `json:"payment_method"`
	VoucherID     *int64  `json:"voucher_id,omitempty"`
}

type CreateOrderResp struct {
	OrderID    string        `json:"order_id"`
	Status     orders.Status `json:"status"`
	TotalCents int64         `json:"total_cents"`
}

type PosOrderReq struct {
	Items         []orders.ItemInput `json:"items"`
	PaymentMethod string             `json:"payment_method"`
}

type UpdateStatusReq struct {
	NewStatus string `json:"new_status"`
}

func (h *OrdersHandler) Register(r *chi.Mux, a *auth.Service) {
	r.Group(func(g chi.Router) {
		g.Use(a.RequireUser)
		g.Post("/orders", h.createOrder)
		g.Get("/orders", h.listMyOrders)
		g.Get("/orders/{id}", h.getMyOrder)
		g.Get("/orders/{id}/status", h.getOrderStatus)
		g.Put("/orders/{id}/cancel", h.cancelOrder)
	})
	r.Group(func(g chi.Router) {
		g.Use(a.RequireUser, auth.RequireStaff)
		g.Put("/orders/{id}/status", h.updateStatus)
		g.Get("/admin/orders", h.listAdminOrders)
		g.Post("/pos/orders", h.createPosOrder)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.CartItemIDs) == 0 {
		writeMessage(w, http.StatusBadRequest, orders.ErrEmptyCart.Error())
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "COD"
	}
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.CreateOrderFromCart(ctx, id.UserID, req.CartItemIDs, req.PaymentMethod, req.VoucherID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, o.ID, o.Status)
	h.publish(h.ProducerCreated, orders.EventOrderCreated, r.Header.Get("X-Request-Id"), o.ID,
		orders.OrderCreatedPayload{OrderID: o.ID, UserID: o.UserID, Status: o.Status, TotalCents: o.TotalCents})

	writeJSON(w, http.StatusCreated, CreateOrderResp{OrderID: o.ID, Status: o.Status, TotalCents: o.TotalCents})
}

func (h *OrdersHandler) createPosOrder(w http.ResponseWriter, r *http.Request) {
	var req PosOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Items) == 0 {
		writeMessage(w, http.StatusBadRequest, "no items")
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "Cash"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.CreatePosOrder(ctx, h.GuestUserID, req.Items, req.PaymentMethod)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, o.ID, o.Status)
	h.publish(h.ProducerCreated, orders.EventOrderCreated, r.Header.Get("X-Request-Id"), o.ID,
		orders.OrderCreatedPayload{OrderID: o.ID, UserID: o.UserID, Status: o.Status, TotalCents: o.TotalCents})

	writeJSON(w, http.StatusCreated, CreateOrderResp{OrderID: o.ID, Status: o.Status, TotalCents: o.TotalCents})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.CancelOrder(ctx, orderID, id.UserID); err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, orderID, orders.StatusCancelled)
	h.publish(h.ProducerCancelled, orders.EventOrderCancelled, r.Header.Get("X-Request-Id"), orderID,
		orders.OrderCancelledPayload{OrderID: orderID, UserID: id.UserID})

	writeMessage(w, http.StatusOK, "order cancelled")
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	next, err := orders.ParseStatus(req.NewStatus)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	prev, err := h.Store.UpdateStatus(ctx, orderID, next)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, orderID, next)
	h.publish(h.ProducerStatus, orders.EventOrderStatusChanged, r.Header.Get("X-Request-Id"), orderID,
		orders.OrderStatusChangedPayload{OrderID: orderID, OldStatus: prev, NewStatus: next})

	writeMessage(w, http.StatusOK, "status updated")
}

func (h *OrdersHandler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	limit, offset := parsePage(r)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Store.GetMyOrders(ctx, id.UserID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getMyOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	d, err := h.Store.GetMyOrder(ctx, id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// getOrderStatus serves the polling surface: Redis cache first, DB fallback
// with a back-fill.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	status, err := h.Store.GetStatus(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, orderID, status)
	writeJSON(w, http.StatusOK, map[string]orders.Status{"status": status})
}

func (h *OrdersHandler) listAdminOrders(w http.ResponseWriter, r *http.Request) {
	var status *orders.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := orders.ParseStatus(s)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		status = &st
	}
	limit, offset := parsePage(r)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Store.ListAdminOrders(ctx, status, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, status orders.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	val := fmt.Sprintf(`{"status":%q}`, status)
	_ = h.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publish(p Publisher, eventType, traceID, orderID string, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       traceID,
		CorrelationID: orderID,
	}
	ev.Payload = kafkax.MustMarshal(payload)
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
