package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/request"
	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/order"
)

func (h *Handler) ListPendingRefills(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.ListPendingRefills(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]response.RefillRequestResponse, 0, len(list))
	for _, req := range list {
		out = append(out, response.FromRefillRequest(req))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListPendingCancels(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.ListPendingCancels(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]response.CancelRequestResponse, 0, len(list))
	for _, req := range list {
		out = append(out, response.FromCancelRequest(req))
	}
	writeJSON(w, http.StatusOK, out)
}

// decision reads the optional notes body shared by approve and decline.
func (h *Handler) decision(w http.ResponseWriter, r *http.Request) (request.DecisionRequest, bool) {
	var req request.DecisionRequest
	if r.ContentLength == 0 {
		return req, true
	}
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return req, false
	}
	return req, true
}

func (h *Handler) ApproveRefill(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decision(w, r)
	if !ok {
		return
	}
	req, err := h.Orders.ApproveRefill(r.Context(), chi.URLParam(r, "id"), caller(r).UserID, body.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromRefillRequest(req))
}

func (h *Handler) DeclineRefill(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decision(w, r)
	if !ok {
		return
	}
	req, err := h.Orders.DeclineRefill(r.Context(), chi.URLParam(r, "id"), caller(r).UserID, body.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromRefillRequest(req))
}

func (h *Handler) ApproveCancel(w http.ResponseWriter, r *http.Request) {
	var body request.ApproveCancelRequest
	if r.ContentLength != 0 {
		if err := h.decode(w, r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	req, o, err := h.Orders.ApproveCancel(r.Context(), order.ApproveCancelInput{
		RequestID:    chi.URLParam(r, "id"),
		RefundAmount: body.RefundAmount,
		ProcessedBy:  caller(r).UserID,
		Notes:        body.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.CancelApprovalResponse{
		Request: response.FromCancelRequest(req),
		Order:   response.FromOrder(o),
	})
}

func (h *Handler) DeclineCancel(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decision(w, r)
	if !ok {
		return
	}
	req, err := h.Orders.DeclineCancel(r.Context(), chi.URLParam(r, "id"), caller(r).UserID, body.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromCancelRequest(req))
}
