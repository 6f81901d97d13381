package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/evanshop/storefront/internal/auth"
	kafkax "github.com/evanshop/storefront/internal/kafka"
	"github.com/evanshop/storefront/internal/orders"
	"github.com/evanshop/storefront/internal/redisx"
)

// OrderStore is the slice of orders.Repo the handlers need.
type OrderStore interface {
	PlaceOrder(ctx context.Context, in orders.PlaceOrderInput) (orders.Order, error)
	MarkDone(ctx context.Context, orderID string, doneAt time.Time) (orders.Order, error)
	List(ctx context.Context) ([]orders.Order, error)
	GetByRef(ctx context.Context, ref string) (orders.Order, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Store     OrderStore
	Placed    Publisher // order.placed topic
	Fulfilled Publisher // order.fulfilled topic
	Redis     *redis.Client
	Sessions  auth.SessionStore
	Service   string
}

type PlaceOrderReq struct {
	Name          string            `json:"name"`
	Address       string            `json:"address"`
	ContactNumber string            `json:"contactNumber"`
	CartItems     []orders.LineItem `json:"cartItems"`
	TotalAmount   int64             `json:"totalAmount"`
}

type UpdateStatusReq struct {
	Status        string    `json:"status"`
	OrderDoneDate time.Time `json:"orderDoneDate"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	checkout := auth.Require(h.Sessions, auth.RoleCustomer, auth.RoleAdmin)
	admin := auth.Require(h.Sessions, auth.RoleAdmin)

	r.Route("/orders", func(r chi.Router) {
		r.With(checkout).Post("/", h.placeOrder)
		r.With(checkout).Get("/{ref}", h.getOrder)
		r.With(admin).Get("/", h.listOrders)
		r.With(admin).Put("/{id}/status", h.updateStatus)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// validate rejects malformed checkout payloads before the transaction
// ever begins.
func (req *PlaceOrderReq) validate() error {
	if req.Name == "" || req.Address == "" || req.ContactNumber == "" {
		return errors.New("name, address and contactNumber are required")
	}
	if len(req.CartItems) == 0 {
		return errors.New("cartItems must not be empty")
	}
	for _, it := range req.CartItems {
		if _, err := uuid.Parse(it.ProductID); err != nil {
			return fmt.Errorf("bad productId %q", it.ProductID)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("quantity for product %s must be a positive integer", it.ProductID)
		}
	}
	if req.TotalAmount < 0 {
		return errors.New("totalAmount must not be negative")
	}
	return nil
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.PlaceOrder(ctx, orders.PlaceOrderInput{
		Name:          req.Name,
		Address:       req.Address,
		ContactNumber: req.ContactNumber,
		Items:         req.CartItems,
		TotalCents:    req.TotalAmount,
	})
	switch {
	case err == nil:
	case errors.Is(err, orders.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, orders.ErrTotalMismatch):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to place order"})
		return
	}

	h.cacheOrder(ctx, o)
	h.publishPlaced(r, o, req.CartItems)

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "order placed",
		"orderId": o.Ref,
	})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	os, err := h.Store.List(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if os == nil {
		os = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": os})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	// Pending -> Done is the only transition; Done -> Done is idempotent.
	if !orders.CanTransition(orders.StatusPending, orders.Status(req.Status)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be Done"})
		return
	}
	doneAt := req.OrderDoneDate
	if doneAt.IsZero() {
		doneAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.MarkDone(ctx, orderID, doneAt)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.cacheOrder(ctx, o)
	h.publishFulfilled(r, o)

	writeJSON(w, http.StatusOK, map[string]any{"order": o})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first, DB on miss
	key := fmt.Sprintf(redisx.KeyOrderStatus, ref)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, map[string]any{"order": json.RawMessage(s)})
		return
	}

	o, err := h.Store.GetByRef(ctx, ref)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, map[string]any{"order": orders.StatusViewOf(o)})
}

// cacheOrder refreshes the read cache; failures are non-fatal, the DB
// stays the source of truth. The cached value is always a StatusView —
// the projector writes the same shape, so readers never see the two
// writers disagree.
func (h *OrdersHandler) cacheOrder(ctx context.Context, o orders.Order) {
	b, err := json.Marshal(orders.StatusViewOf(o))
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.Ref)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publishPlaced(r *http.Request, o orders.Order, items []orders.LineItem) {
	qty := make([]orders.ItemQty, 0, len(items))
	for _, it := range items {
		qty = append(qty, orders.ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID:    o.ID,
			OrderRef:   o.Ref,
			Items:      qty,
			TotalCents: o.TotalCents,
			PlacedAt:   o.OrderDate,
		}),
	}
	h.Placed.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) publishFulfilled(r *http.Request, o orders.Order) {
	doneAt := time.Now().UTC()
	if o.OrderDoneDate != nil {
		doneAt = *o.OrderDoneDate
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderFulfilled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderFulfilledPayload{
			OrderID:  o.ID,
			OrderRef: o.Ref,
			DoneAt:   doneAt,
		}),
	}
	h.Fulfilled.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderFulfilled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
