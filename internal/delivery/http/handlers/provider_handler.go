package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/request"
	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Providers.ListProviders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]response.ProviderResponse, 0, len(list))
	for _, p := range list {
		out = append(out, response.FromProvider(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.Providers.GetProvider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromProvider(p))
}

func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req request.SaveProviderRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p := providerFromRequest(req)
	if err := h.Providers.SaveProvider(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, response.FromProvider(p))
}

// UpdateProvider replaces the provider configuration. An empty api_key keeps
// the stored credential.
func (h *Handler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	var req request.SaveProviderRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	current, err := h.Providers.GetProvider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p := providerFromRequest(req)
	p.ID = current.ID
	if p.APIKey == "" {
		p.APIKey = current.APIKey
	}
	if req.Status == "" {
		p.Status = current.Status
	}
	p.Balance = current.Balance
	p.BalanceCurrency = current.BalanceCurrency
	p.BalanceCheckedAt = current.BalanceCheckedAt
	if err := h.Providers.SaveProvider(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromProvider(p))
}

func providerFromRequest(req request.SaveProviderRequest) *domain.Provider {
	p := &domain.Provider{
		Name:             req.Name,
		Status:           domain.ProviderStatus(req.Status),
		BaseURL:          req.BaseURL,
		APIKey:           req.APIKey,
		KeyParam:         req.KeyParam,
		ActionParam:      req.ActionParam,
		Transport:        domain.TransportMode(req.Transport),
		IdempotencyParam: req.IdempotencyParam,
		BatchStatus:      req.BatchStatus,
		MaxBatch:         req.MaxBatch,
		RateLimit:        req.RateLimit,
		Workers:          req.Workers,
		Timeout:          time.Duration(req.TimeoutMS) * time.Millisecond,
	}
	if len(req.Paths) > 0 {
		p.Paths = make(map[domain.ProviderAction]string, len(req.Paths))
		for k, v := range req.Paths {
			p.Paths[domain.ProviderAction(k)] = v
		}
	}
	if len(req.ActionValues) > 0 {
		p.ActionValues = make(map[domain.ProviderAction]string, len(req.ActionValues))
		for k, v := range req.ActionValues {
			p.ActionValues[domain.ProviderAction(k)] = v
		}
	}
	if len(req.StatusMap) > 0 {
		p.StatusMap = make(map[string]domain.OrderStatus, len(req.StatusMap))
		for k, v := range req.StatusMap {
			p.StatusMap[k] = domain.OrderStatus(v)
		}
	}
	return p
}

func (h *Handler) SetProviderStatus(w http.ResponseWriter, r *http.Request) {
	var req request.ProviderStatusRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Providers.SetProviderStatus(r.Context(), chi.URLParam(r, "id"), domain.ProviderStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromProvider(p))
}

func (h *Handler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.Providers.DeleteProvider(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RefreshProviderBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.Providers.RefreshBalance(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.ProviderBalanceResponse{ProviderID: id, Amount: b.Amount.String(), Currency: b.Currency})
}

// ImportServices returns the provider's catalog for an admin to pick from.
func (h *Handler) ImportServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.Providers.ImportServices(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromRemoteServices(list))
}

func (h *Handler) ListProviderServices(w http.ResponseWriter, r *http.Request) {
	h.writeServices(w, r, chi.URLParam(r, "id"))
}

// ListServices lists the catalog of ?provider_id=, or self-fulfilled
// services when it is empty. Users only see active services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	h.writeServices(w, r, r.URL.Query().Get("provider_id"))
}

func (h *Handler) writeServices(w http.ResponseWriter, r *http.Request, providerID string) {
	list, err := h.Providers.ListServices(r.Context(), providerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	staff := caller(r).Role.rank() >= RoleModerator.rank()
	out := make([]response.ServiceResponse, 0, len(list))
	for _, s := range list {
		if s.Active || staff {
			out = append(out, response.FromService(s))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	s, err := h.Providers.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !s.Active && caller(r).Role.rank() < RoleModerator.rank() {
		h.writeError(w, r, &domain.NotFoundError{Entity: "service", ID: s.ID})
		return
	}
	writeJSON(w, http.StatusOK, response.FromService(s))
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	h.saveService(w, r, "", http.StatusCreated)
}

func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Providers.GetService(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.saveService(w, r, id, http.StatusOK)
}

func (h *Handler) saveService(w http.ResponseWriter, r *http.Request, id string, status int) {
	var req request.SaveServiceRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	s := &domain.Service{
		ID:             id,
		Name:           req.Name,
		ProviderID:     req.ProviderID,
		ProviderRef:    req.ProviderRef,
		Rate:           req.Rate,
		MinQuantity:    req.MinQuantity,
		MaxQuantity:    req.MaxQuantity,
		SupportsRefill: req.SupportsRefill,
		SupportsCancel: req.SupportsCancel,
		RefillDays:     req.RefillDays,
		Active:         req.Active,
	}
	if err := h.Providers.SaveService(r.Context(), s); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, status, response.FromService(s))
}
