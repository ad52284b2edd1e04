package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/request"
	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

func (h *Handler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response.FromCurrencies(h.Currencies.Table().Enabled()))
}

// ConvertAmount converts ?amount= from ?from= into ?to= at the current
// rates, rounded to the target's precision.
func (h *Handler) ConvertAmount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("amount", "amount %q is not a number", q.Get("amount")))
		return
	}
	from := strings.ToUpper(strings.TrimSpace(q.Get("from")))
	to := strings.ToUpper(strings.TrimSpace(q.Get("to")))
	out, err := h.Currencies.ConvertAmount(amount, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	formatted, _ := h.Currencies.Table().Format(out, to)
	writeJSON(w, http.StatusOK, response.ConversionResponse{
		Amount:    amount.String(),
		From:      from,
		To:        to,
		Result:    out.String(),
		Formatted: formatted,
	})
}

func (h *Handler) SaveCurrency(w http.ResponseWriter, r *http.Request) {
	var req request.SaveCurrencyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c := domain.Currency{
		Code:    strings.ToUpper(chi.URLParam(r, "code")),
		Symbol:  req.Symbol,
		Rate:    req.Rate,
		Enabled: req.Enabled,
	}
	if req.Places != nil {
		c.Places = *req.Places
	}
	if err := h.Currencies.SaveCurrency(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}
	saved, err := h.Currencies.Table().Get(c.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromCurrencies([]domain.Currency{saved})[0])
}
