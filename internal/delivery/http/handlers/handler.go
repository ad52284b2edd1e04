package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/LavaJover/shvark-smm-service/internal/currency"
	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/ledger"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/order"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/syncer"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in order.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetUserOrder(ctx context.Context, userID, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int64, error)
	RequestRefill(ctx context.Context, userID, orderID string) (*domain.RefillRequest, error)
	RequestCancel(ctx context.Context, userID, orderID, reason string) (*domain.CancelRequest, error)
	CancelOwnRequest(ctx context.Context, userID string, kind domain.RequestKind, requestID string) error
	ApproveRefill(ctx context.Context, requestID, processedBy, notes string) (*domain.RefillRequest, error)
	DeclineRefill(ctx context.Context, requestID, processedBy, notes string) (*domain.RefillRequest, error)
	ApproveCancel(ctx context.Context, in order.ApproveCancelInput) (*domain.CancelRequest, *domain.Order, error)
	DeclineCancel(ctx context.Context, requestID, processedBy, notes string) (*domain.CancelRequest, error)
	ResolveUnconfirmed(ctx context.Context, in order.ResolveUnconfirmedInput) (*domain.Order, error)
	SetManualStatus(ctx context.Context, in order.ManualStatusInput) (*domain.Order, error)
	ListPendingRefills(ctx context.Context, limit int) ([]*domain.RefillRequest, error)
	ListPendingCancels(ctx context.Context, limit int) ([]*domain.CancelRequest, error)
}

type LedgerService interface {
	OpenAccount(ctx context.Context, userID, code string) (*domain.UserBalance, error)
	GetBalance(ctx context.Context, userID string) (*domain.UserBalance, error)
	ListEntries(ctx context.Context, userID string, limit int) ([]*domain.LedgerEntry, error)
	Debit(ctx context.Context, in ledger.EntryInput) (*domain.UserBalance, error)
	Credit(ctx context.Context, in ledger.EntryInput) (*domain.UserBalance, error)
	CreateDeposit(ctx context.Context, in ledger.CreateDepositInput) (*domain.Deposit, error)
	GetDeposit(ctx context.Context, id string) (*domain.Deposit, error)
	ApproveDeposit(ctx context.Context, id, processedBy string) (*domain.Deposit, error)
	DeclineDeposit(ctx context.Context, id, processedBy, notes string) (*domain.Deposit, error)
	CancelDeposit(ctx context.Context, id, userID string) (*domain.Deposit, error)
}

type ProviderService interface {
	GetProvider(ctx context.Context, id string) (*domain.Provider, error)
	ListProviders(ctx context.Context) ([]*domain.Provider, error)
	SaveProvider(ctx context.Context, p *domain.Provider) error
	SetProviderStatus(ctx context.Context, id string, status domain.ProviderStatus) (*domain.Provider, error)
	DeleteProvider(ctx context.Context, id string) error
	RefreshBalance(ctx context.Context, providerID string) (domain.ProviderBalance, error)
	ImportServices(ctx context.Context, providerID string) ([]domain.RemoteService, error)
	SaveService(ctx context.Context, s *domain.Service) error
	GetService(ctx context.Context, id string) (*domain.Service, error)
	ListServices(ctx context.Context, providerID string) ([]*domain.Service, error)
}

type SyncService interface {
	SyncAllDue(ctx context.Context) (syncer.PassResult, error)
	SyncOrder(ctx context.Context, orderID string) (*domain.Order, string, error)
}

type CurrencyService interface {
	Table() *currency.Table
	ConvertAmount(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
	SaveCurrency(ctx context.Context, c domain.Currency) error
}

type Handler struct {
	Orders     OrderService
	Ledger     LedgerService
	Providers  ProviderService
	Sync       SyncService
	Currencies CurrencyService

	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(orders OrderService, ledgerSvc LedgerService, providers ProviderService, sync SyncService, currencies CurrencyService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		Orders:     orders,
		Ledger:     ledgerSvc,
		Providers:  providers,
		Sync:       sync,
		Currencies: currencies,
		validate:   v,
		logger:     logger.With("component", "http"),
	}
}

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadBody
	}
	return h.validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps domain errors onto HTTP status codes and stable codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"
	case errors.Is(err, domain.ErrSubmissionFailed):
		return http.StatusServiceUnavailable, "submission_unconfirmed"
	case errors.Is(err, domain.ErrProvider):
		return http.StatusBadGateway, "provider_error"
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusServiceUnavailable, "provider_unavailable"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeErrorFor(w, r, err, "")
}

func (h *Handler) writeErrorFor(w http.ResponseWriter, r *http.Request, err error, orderID string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		body := response.ErrorResponse{Error: "request validation failed", Code: "validation_failed"}
		for _, fe := range verrs {
			body.Details = append(body.Details, response.ValidationItem{Field: fe.Field(), Message: validationMessage(fe)})
		}
		writeJSON(w, http.StatusBadRequest, body)
		return
	}

	status, code := statusFor(err)
	body := response.ErrorResponse{Error: err.Error(), Code: code, OrderID: orderID}
	var ve *domain.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		body.Details = []response.ValidationItem{{Field: ve.Field, Message: ve.Message}}
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "uuid":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "alpha":
		return "must contain only letters"
	}
	return "invalid value"
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func queryStatuses(r *http.Request) []domain.OrderStatus {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil
	}
	var out []domain.OrderStatus
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, domain.OrderStatus(s))
		}
	}
	return out
}
