package httpx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/auth"
	"github.com/ariefcatur/little-lemon/internal/orders"
	"github.com/ariefcatur/little-lemon/internal/telemetry"
)

type CartHandler struct {
	Store   CartStore
	Metrics *telemetry.Metrics
	Log     *zap.Logger
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart/menu-items", h.list)
	r.Post("/cart/menu-items", h.add)
	r.Delete("/cart/menu-items", h.clear)
}

type addToCartReq struct {
	MenuItem optInt `json:"menuitem"`
	Quantity optInt `json:"quantity"`
}

func (h *CartHandler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	items, err := h.Store.ListCart(ctx, id.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	var req addToCartReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	qty := int64(1)
	if req.Quantity.Set {
		qty = req.Quantity.Value
	}
	fe := apperr.FieldErrors{}
	if !req.MenuItem.Set {
		fe.Add("menuitem", "This field is required.")
	} else if req.MenuItem.Value <= 0 {
		fe.Add("menuitem", "Invalid pk - object does not exist.")
	}
	if qty < 1 {
		fe.Add("quantity", "Ensure this value is greater than or equal to 1.")
	} else if qty > orders.MaxQuantity {
		fe.Add("quantity", fmt.Sprintf("Ensure this value is less than or equal to %d.", orders.MaxQuantity))
	}
	if err := fe.Err(); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	item, created, err := h.Store.AddToCart(ctx, id.UserID, req.MenuItem.Value, int(qty))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	outcome, code := "merged", http.StatusAccepted
	if created {
		outcome, code = "created", http.StatusCreated
	}
	h.Metrics.CartLinesAdded.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	writeJSON(w, code, item)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	n, err := h.Store.ClearCart(ctx, id.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Log.Debug("cart cleared", zap.Int64("user_id", id.UserID), zap.Int64("lines", n))
	w.WriteHeader(http.StatusNoContent)
}
