// Package order drives orders through their life cycle: creation and
// provider submission, status sync, refill and cancel requests.
package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/shopspring/decimal"

	"github.com/LavaJover/shvark-smm-service/internal/currency"
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/cache"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/ledger"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/registry"
)

type ProviderRegistry interface {
	Resolve(ctx context.Context, svc *domain.Service) (*registry.Entry, error)
	Adapter(providerID string) (*registry.Entry, bool)
	Wait(ctx context.Context, providerID string) error
}

// CancelLedger applies the ledger side of cancel request decisions.
type CancelLedger interface {
	ApproveCancelRequest(ctx context.Context, in ledger.CancelApprovalInput) (*domain.CancelRequest, *domain.Order, error)
	DeclineCancelRequest(ctx context.Context, requestID, processedBy, notes string) (*domain.CancelRequest, error)
}

type Config struct {
	// RefundPartialRemains credits the undelivered share of partial orders.
	RefundPartialRemains bool
	// DecisionLeaseTTL bounds how long one moderator decision holds its
	// request. It must outlast a provider call.
	DecisionLeaseTTL time.Duration
}

type DefaultOrderUsecase struct {
	OrderRepo   domain.OrderRepository
	RequestRepo domain.RequestRepository
	LedgerRepo  domain.LedgerRepository
	ServiceRepo domain.ServiceRepository
	Registry    ProviderRegistry
	Ledger      CancelLedger
	Currencies  *currency.Book
	Notifier    domain.Notifier
	Metrics     *metrics.SMMMetrics
	// Leases serializes refill and cancel decisions. Defaults to an
	// in-process lease; set a shared one when running several instances.
	Leases cache.Lease
	Config Config

	logger *slog.Logger
	keyGen func() string
	now    func() time.Time
}

func NewDefaultOrderUsecase(
	orderRepo domain.OrderRepository,
	requestRepo domain.RequestRepository,
	ledgerRepo domain.LedgerRepository,
	serviceRepo domain.ServiceRepository,
	providerRegistry ProviderRegistry,
	cancelLedger CancelLedger,
	currencies *currency.Book,
	notifier domain.Notifier,
	smmMetrics *metrics.SMMMetrics,
	cfg Config,
	logger *slog.Logger,
) (*DefaultOrderUsecase, error) {
	keyGen, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("init submission key generator: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DecisionLeaseTTL <= 0 {
		cfg.DecisionLeaseTTL = 90 * time.Second
	}
	return &DefaultOrderUsecase{
		OrderRepo:   orderRepo,
		RequestRepo: requestRepo,
		LedgerRepo:  ledgerRepo,
		ServiceRepo: serviceRepo,
		Registry:    providerRegistry,
		Ledger:      cancelLedger,
		Currencies:  currencies,
		Notifier:    notifier,
		Metrics:     smmMetrics,
		Leases:      cache.NewLocalLease(),
		Config:      cfg,
		logger:      logger.With("component", "order_lifecycle"),
		keyGen:      keyGen,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (uc *DefaultOrderUsecase) notify(ctx context.Context, n domain.Notification) {
	if uc.Notifier == nil {
		return
	}
	if n.OccurredAt.IsZero() {
		n.OccurredAt = uc.now()
	}
	if err := uc.Notifier.Notify(ctx, n); err != nil {
		uc.logger.Error("failed to notify user",
			"kind", string(n.Kind),
			"user_id", n.UserID,
			"order_id", n.OrderID,
			"error", err,
		)
	}
}

// refundEntry builds the credit returning amount of o's charge. It is nil
// when there is nothing to return.
func refundEntry(o *domain.Order, amount decimal.Decimal, reason domain.EntryReason, suffix string) *domain.LedgerEntry {
	if !amount.IsPositive() {
		return nil
	}
	return &domain.LedgerEntry{
		UserID:    o.UserID,
		Reason:    reason,
		Amount:    amount,
		Currency:  o.ChargeCurrency,
		Reference: "order:" + o.ID + ":" + suffix,
	}
}

// holdDecision takes the lease on key for one moderator decision. A held
// lease means another decision on the same request is running.
func (uc *DefaultOrderUsecase) holdDecision(ctx context.Context, key, entity, id string) (func(), error) {
	release, ok, err := uc.Leases.Acquire(ctx, key, uc.Config.DecisionLeaseTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.ConflictError{Entity: entity, ID: id, Reason: "decision already in progress"}
	}
	return release, nil
}

func cancelLeaseKey(orderID string) string { return "cancel:" + orderID }

func refillLeaseKey(requestID string) string { return "refill:" + requestID }

// submissionInFlight reports a provider-backed order whose placement call
// has not returned yet.
func submissionInFlight(o *domain.Order) bool {
	return o.IsProviderBacked() && o.Status == domain.StatusPending && o.RemoteOrderID == nil
}

func providerID(o *domain.Order) string {
	if o.ProviderID == nil {
		return ""
	}
	return *o.ProviderID
}
