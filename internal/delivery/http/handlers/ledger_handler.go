package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/request"
	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/ledger"
)

func (h *Handler) balanceResponse(b *domain.UserBalance) response.BalanceResponse {
	formatted, err := h.Currencies.Table().Format(b.Balance, b.Currency)
	if err != nil {
		formatted = ""
	}
	return response.FromBalance(b, formatted)
}

func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req request.OpenAccountRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.Ledger.OpenAccount(r.Context(), caller(r).UserID, req.Currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.balanceResponse(b))
}

func (h *Handler) GetOwnBalance(w http.ResponseWriter, r *http.Request) {
	h.writeBalance(w, r, caller(r).UserID)
}

func (h *Handler) GetUserBalance(w http.ResponseWriter, r *http.Request) {
	h.writeBalance(w, r, chi.URLParam(r, "userID"))
}

func (h *Handler) writeBalance(w http.ResponseWriter, r *http.Request, userID string) {
	b, err := h.Ledger.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.balanceResponse(b))
}

func (h *Handler) ListOwnEntries(w http.ResponseWriter, r *http.Request) {
	list, err := h.Ledger.ListEntries(r.Context(), caller(r).UserID, queryInt(r, "limit", 100))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromEntries(list))
}

func (h *Handler) CreditUser(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.Ledger.Credit)
}

func (h *Handler) DebitUser(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.Ledger.Debit)
}

type entryFunc func(ctx context.Context, in ledger.EntryInput) (*domain.UserBalance, error)

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request, apply entryFunc) {
	var req request.AdjustBalanceRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ref := strings.TrimSpace(req.Reference)
	if ref != "" {
		ref = "manual:" + ref
	}
	b, err := apply(r.Context(), ledger.EntryInput{
		UserID:    chi.URLParam(r, "userID"),
		Amount:    req.Amount,
		Reason:    domain.ReasonManualAdjust,
		Reference: ref,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("manual balance adjustment",
		"user_id", b.UserID,
		"amount", req.Amount.String(),
		"by", caller(r).UserID,
		"note", req.Note,
	)
	writeJSON(w, http.StatusOK, h.balanceResponse(b))
}

func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req request.CreateDepositRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := h.Ledger.CreateDeposit(r.Context(), ledger.CreateDepositInput{
		UserID:   caller(r).UserID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Method:   req.Method,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, response.FromDeposit(d))
}

// GetDeposit shows a deposit to its owner or to staff.
func (h *Handler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	d, err := h.Ledger.GetDeposit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := caller(r)
	if d.UserID != id.UserID && id.Role.rank() < RoleModerator.rank() {
		h.writeError(w, r, domain.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, response.FromDeposit(d))
}

func (h *Handler) CancelDeposit(w http.ResponseWriter, r *http.Request) {
	d, err := h.Ledger.CancelDeposit(r.Context(), chi.URLParam(r, "id"), caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromDeposit(d))
}

func (h *Handler) ApproveDeposit(w http.ResponseWriter, r *http.Request) {
	d, err := h.Ledger.ApproveDeposit(r.Context(), chi.URLParam(r, "id"), caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromDeposit(d))
}

func (h *Handler) DeclineDeposit(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decision(w, r)
	if !ok {
		return
	}
	d, err := h.Ledger.DeclineDeposit(r.Context(), chi.URLParam(r, "id"), caller(r).UserID, body.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromDeposit(d))
}
