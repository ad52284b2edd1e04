package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 60 * time.Second

// NewRouter builds the public API. metricsHandler may be nil.
func NewRouter(h *Handler, secret []byte, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(secret))

		r.Get("/services", h.ListServices)
		r.Get("/services/{id}", h.GetService)

		r.Get("/currencies", h.ListCurrencies)
		r.Get("/currencies/convert", h.ConvertAmount)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListOwnOrders)
			r.Get("/{id}", h.GetOwnOrder)
			r.Post("/{id}/refill", h.RequestRefill)
			r.Post("/{id}/cancel", h.RequestCancel)
		})
		r.Delete("/requests/{kind}/{id}", h.WithdrawRequest)

		r.Get("/balance", h.GetOwnBalance)
		r.Post("/balance", h.OpenAccount)
		r.Get("/balance/entries", h.ListOwnEntries)

		r.Post("/deposits", h.CreateDeposit)
		r.Get("/deposits/{id}", h.GetDeposit)
		r.Delete("/deposits/{id}", h.CancelDeposit)

		r.Route("/admin", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(RoleModerator))

				r.Get("/orders", h.ListAllOrders)
				r.Get("/orders/{id}", h.GetAnyOrder)
				r.Post("/orders/{id}/sync", h.SyncOrder)
				r.Post("/orders/{id}/resolve", h.ResolveUnconfirmed)
				r.Post("/orders/{id}/status", h.SetManualStatus)

				r.Get("/refills", h.ListPendingRefills)
				r.Post("/refills/{id}/approve", h.ApproveRefill)
				r.Post("/refills/{id}/decline", h.DeclineRefill)
				r.Get("/cancels", h.ListPendingCancels)
				r.Post("/cancels/{id}/approve", h.ApproveCancel)
				r.Post("/cancels/{id}/decline", h.DeclineCancel)

				r.Post("/deposits/{id}/approve", h.ApproveDeposit)
				r.Post("/deposits/{id}/decline", h.DeclineDeposit)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(RoleAdmin))

				r.Post("/sync", h.SyncAllDue)

				r.Get("/providers", h.ListProviders)
				r.Post("/providers", h.CreateProvider)
				r.Get("/providers/{id}", h.GetProvider)
				r.Put("/providers/{id}", h.UpdateProvider)
				r.Delete("/providers/{id}", h.DeleteProvider)
				r.Post("/providers/{id}/status", h.SetProviderStatus)
				r.Post("/providers/{id}/balance", h.RefreshProviderBalance)
				r.Get("/providers/{id}/services", h.ListProviderServices)
				r.Get("/providers/{id}/services/import", h.ImportServices)

				r.Post("/services", h.CreateService)
				r.Put("/services/{id}", h.UpdateService)

				r.Get("/balances/{userID}", h.GetUserBalance)
				r.Post("/balances/{userID}/credit", h.CreditUser)
				r.Post("/balances/{userID}/debit", h.DebitUser)

				r.Put("/currencies/{code}", h.SaveCurrency)
			})
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
