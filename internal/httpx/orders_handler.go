package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/auth"
	"github.com/ariefcatur/little-lemon/internal/money"
	"github.com/ariefcatur/little-lemon/internal/orders"
	"github.com/ariefcatur/little-lemon/internal/telemetry"
)

type OrdersHandler struct {
	Store   OrderStore
	Users   UserStore
	Events  OrderEvents
	Metrics *telemetry.Metrics
	Log     *zap.Logger
	Now     func() time.Time
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.list)
	r.Post("/orders", h.create)
	r.Put("/orders", h.missingID)
	r.Patch("/orders", h.missingID)
	r.Delete("/orders", h.missingID)

	r.Get("/orders/{id}", h.get)
	r.Put("/orders/{id}", h.update)
	r.Patch("/orders/{id}", h.update)
	r.Delete("/orders/{id}", h.delete)
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	o, err := h.Store.PlaceOrder(ctx, id.UserID, orders.Today(h.Now()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Metrics.OrdersPlaced.Add(ctx, 1)
	h.Metrics.OrderValueCents.Record(ctx, int64(o.Total))
	if err := h.Events.OrderPlaced(ctx, o, traceID(ctx)); err != nil {
		h.Log.Warn("publish order placed failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
	h.Log.Info("order placed",
		zap.Int64("order_id", o.ID),
		zap.Int64("user_id", o.UserID),
		zap.Int("lines", len(o.Items)),
		zap.Stringer("total", o.Total))
	writeJSON(w, http.StatusCreated, o)
}

// list scopes the listing to the caller: managers see every order, the
// delivery crew its assignments, everyone else their own orders.
func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	f, err := orders.ParseListParams(r.URL.Query())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	switch {
	case auth.IsManager(id):
	case auth.IsDeliveryCrew(id):
		f.DeliveryCrewID = &id.UserID
	default:
		f.UserID = &id.UserID
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	list, err := h.Store.ListOrders(ctx, f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	orderID, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	o, err := h.Store.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if !auth.IsManager(id) && o.UserID != id.UserID {
		writeError(w, r, h.Log, errForbidden)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) update(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	manager := auth.IsManager(id)
	if !manager && !auth.IsDeliveryCrew(id) {
		writeError(w, r, h.Log, errForbidden)
		return
	}
	orderID, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	var raw map[string]json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := decodePatch(raw)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	current, err := h.Store.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if manager {
		err = h.checkManagerPatch(ctx, p)
	} else {
		err = checkCrewPatch(id, current, raw, p)
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if p.Empty() {
		writeJSON(w, http.StatusOK, current)
		return
	}

	o, err := h.Store.UpdateOrder(ctx, orderID, p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	fields := p.Fields()
	if err := h.Events.OrderUpdated(ctx, o, fields, id.UserID, traceID(ctx)); err != nil {
		h.Log.Warn("publish order updated failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
	h.Log.Info("order updated",
		zap.Int64("order_id", o.ID),
		zap.Int64("actor_id", id.UserID),
		zap.Strings("fields", fields))
	writeJSON(w, http.StatusOK, o)
}

func decodePatch(raw map[string]json.RawMessage) (orders.Patch, error) {
	var p orders.Patch
	fe := apperr.FieldErrors{}
	if v, ok := raw["status"]; ok {
		var s orders.Status
		if err := json.Unmarshal(v, &s); err != nil {
			fe.Add("status", "Must be a valid boolean.")
		} else {
			p.Status = &s
		}
	}
	if v, ok := raw["delivery_crew"]; ok {
		if err := json.Unmarshal(v, &p.DeliveryCrew); err != nil {
			fe.Add("delivery_crew", "Incorrect type. Expected pk value.")
		}
	}
	if v, ok := raw["total"]; ok {
		var t money.Amount
		switch err := json.Unmarshal(v, &t); {
		case err != nil:
			fe.Add("total", "A valid number is required.")
		case t < 0:
			fe.Add("total", "Ensure this value is greater than or equal to 0.")
		case t > money.Max:
			fe.Add("total", "Ensure that there are no more than 6 digits in total.")
		default:
			p.Total = &t
		}
	}
	return p, fe.Err()
}

func (h *OrdersHandler) checkManagerPatch(ctx context.Context, p orders.Patch) error {
	if !p.DeliveryCrew.Set || !p.DeliveryCrew.Valid {
		return nil
	}
	crewID := p.DeliveryCrew.Value
	ok, err := h.Users.InGroup(ctx, crewID, auth.GroupDeliveryCrew)
	if err != nil {
		return err
	}
	if !ok {
		return &apperr.Error{
			Kind:    apperr.KindValidation,
			Message: "invalid input",
			Fields: map[string][]string{
				"delivery_crew": {fmt.Sprintf("User %d is not a member of the Delivery crew group.", crewID)},
			},
		}
	}
	return nil
}

// checkCrewPatch lets a delivery crew member flip the status of an order
// assigned to them and nothing else.
func checkCrewPatch(id auth.Identity, o orders.Order, raw map[string]json.RawMessage, p orders.Patch) error {
	for k := range raw {
		if k != "status" {
			return apperr.Forbidden("Delivery crew may only update the status of an order.")
		}
	}
	if o.DeliveryCrewID == nil || *o.DeliveryCrewID != id.UserID {
		return apperr.Forbidden("This order is not assigned to you.")
	}
	if p.Status == nil {
		fe := apperr.FieldErrors{}
		fe.Add("status", "This field is required.")
		return fe.Err()
	}
	return nil
}

func (h *OrdersHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.IsManager(id) {
		writeError(w, r, h.Log, errForbidden)
		return
	}
	orderID, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if err := h.Store.DeleteOrder(ctx, orderID); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.Events.OrderDeleted(ctx, orderID, id.UserID, traceID(ctx)); err != nil {
		h.Log.Warn("publish order deleted failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
	h.Log.Info("order deleted", zap.Int64("order_id", orderID), zap.Int64("actor_id", id.UserID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) missingID(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	allowed := auth.IsManager(id)
	if r.Method != http.MethodDelete {
		allowed = allowed || auth.IsDeliveryCrew(id)
	}
	if !allowed {
		writeError(w, r, h.Log, errForbidden)
		return
	}
	writeError(w, r, h.Log, apperr.Validation("An order id is required."))
}

// traceID is the id of the request span, or "" when tracing is off.
func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
