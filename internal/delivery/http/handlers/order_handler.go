package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/request"
	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/order"
)

// CreateOrder charges the caller and submits the order. The optional
// Idempotency-Key header makes retries return the first order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req request.CreateOrderRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.Orders.CreateOrder(r.Context(), order.CreateOrderInput{
		UserID:         caller(r).UserID,
		ServiceID:      req.ServiceID,
		Link:           req.Link,
		Quantity:       req.Quantity,
		Runs:           req.Runs,
		Interval:       req.Interval,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		// A rejected or unconfirmed submission still leaves an order behind.
		orderID := ""
		if o != nil {
			orderID = o.ID
		}
		h.writeErrorFor(w, r, err, orderID)
		return
	}
	writeJSON(w, http.StatusCreated, response.FromOrder(o))
}

func (h *Handler) ListOwnOrders(w http.ResponseWriter, r *http.Request) {
	list, total, err := h.Orders.ListOrders(r.Context(), domain.OrderFilter{
		UserID:   caller(r).UserID,
		Statuses: queryStatuses(r),
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", 50),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := response.OrderListResponse{Orders: make([]response.OrderResponse, 0, len(list)), Total: total}
	for _, o := range list {
		out.Orders = append(out.Orders, response.FromOrder(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOwnOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetUserOrder(r.Context(), caller(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromOrder(o))
}

func (h *Handler) RequestRefill(w http.ResponseWriter, r *http.Request) {
	req, err := h.Orders.RequestRefill(r.Context(), caller(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, response.FromRefillRequest(req))
}

func (h *Handler) RequestCancel(w http.ResponseWriter, r *http.Request) {
	var body request.CancelOrderRequest
	if r.ContentLength != 0 {
		if err := h.decode(w, r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	req, err := h.Orders.RequestCancel(r.Context(), caller(r).UserID, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, response.FromCancelRequest(req))
}

// WithdrawRequest lets a user cancel their own pending refill or cancel
// request.
func (h *Handler) WithdrawRequest(w http.ResponseWriter, r *http.Request) {
	kind := domain.RequestKind(chi.URLParam(r, "kind"))
	err := h.Orders.CancelOwnRequest(r.Context(), caller(r).UserID, kind, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, total, err := h.Orders.ListOrders(r.Context(), domain.OrderFilter{
		UserID:     q.Get("user_id"),
		ProviderID: q.Get("provider_id"),
		Statuses:   queryStatuses(r),
		Page:       queryInt(r, "page", 1),
		Limit:      queryInt(r, "limit", 50),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := response.AdminOrderListResponse{Orders: make([]response.AdminOrderResponse, 0, len(list)), Total: total}
	for _, o := range list {
		out.Orders = append(out.Orders, response.FromOrderAdmin(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetAnyOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromOrderAdmin(o))
}

func (h *Handler) SyncOrder(w http.ResponseWriter, r *http.Request) {
	o, result, err := h.Sync.SyncOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.SyncOrderResponse{Result: result, Order: response.FromOrder(o)})
}

func (h *Handler) SyncAllDue(w http.ResponseWriter, r *http.Request) {
	res, err := h.Sync.SyncAllDue(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.SyncPassResponse{
		Checked:   res.Checked,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
		Anomalies: res.Anomalies,
		Errors:    res.Errors,
		Conflicts: res.Conflicts,
		Skipped:   res.Skipped,
	})
}

func (h *Handler) ResolveUnconfirmed(w http.ResponseWriter, r *http.Request) {
	var req request.ResolveUnconfirmedRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.Orders.ResolveUnconfirmed(r.Context(), order.ResolveUnconfirmedInput{
		OrderID:       chi.URLParam(r, "id"),
		RemoteOrderID: req.RemoteOrderID,
		ProcessedBy:   caller(r).UserID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromOrderAdmin(o))
}

func (h *Handler) SetManualStatus(w http.ResponseWriter, r *http.Request) {
	var req request.ManualStatusRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.Orders.SetManualStatus(r.Context(), order.ManualStatusInput{
		OrderID:     chi.URLParam(r, "id"),
		Status:      domain.OrderStatus(req.Status),
		Remaining:   req.Remaining,
		StartCount:  req.StartCount,
		ProcessedBy: caller(r).UserID,
		Note:        req.Note,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromOrderAdmin(o))
}
