package order

import (
	"errors"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

func (uc *DefaultOrderUsecase) recordOrderCreated(o *domain.Order) {
	if uc.Metrics == nil {
		return
	}
	pid := providerID(o)
	if pid == "" {
		pid = "self"
	}
	uc.Metrics.RecordOrderCreated(pid, o.ChargeCurrency, o.ChargeBase)
}

func (uc *DefaultOrderUsecase) recordTransition(from, to domain.OrderStatus, path domain.TransitionPath) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordTransition(string(from), string(to), string(path))
}

// recordDelivery is called when an order reaches completed or partial.
func (uc *DefaultOrderUsecase) recordDelivery(o *domain.Order) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordDelivery(providerID(o), string(o.Status), o.CreatedAt)
}

func (uc *DefaultOrderUsecase) recordSubmissionFailure(providerID, kind string) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordSubmissionFailure(providerID, kind)
}

func (uc *DefaultOrderUsecase) recordSync(providerID, result string) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordSyncResult(providerID, result)
}

func (uc *DefaultOrderUsecase) recordAnomaly(providerID, kind string) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordSyncAnomaly(providerID, kind)
}

func (uc *DefaultOrderUsecase) recordLedger(e *domain.LedgerEntry) {
	if uc.Metrics == nil || e == nil {
		return
	}
	uc.Metrics.RecordLedger(string(e.Kind), string(e.Reason), e.Currency, e.Amount)
}

func (uc *DefaultOrderUsecase) recordRequest(kind domain.RequestKind, status domain.RequestStatus) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordRequestResolved(string(kind), string(status))
}

func (uc *DefaultOrderUsecase) recordError(operation string, err error) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordError(operation, errorType(err))
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrProvider):
		return "provider"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	}
	return "internal"
}
