// Package registry keeps the active provider snapshot every order and sync
// path resolves adapters from.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/metrics"
)

// Entry is one active provider with the adapter and limiter built for it.
// Entries are never mutated after publication.
type Entry struct {
	Provider domain.Provider
	Adapter  domain.ProviderAdapter
	Limiter  *rate.Limiter
}

// Broadcaster tells other instances that a provider changed.
type Broadcaster interface {
	ProviderChanged(ctx context.Context, providerID string) error
}

type snapshot struct {
	entries map[string]*Entry
}

type Options struct {
	Events      Broadcaster
	Metrics     *metrics.SMMMetrics
	DefaultRate float64
	Logger      *slog.Logger
}

type DefaultProviderRegistry struct {
	ProviderRepo domain.ProviderRepository
	ServiceRepo  domain.ServiceRepository
	OrderRepo    domain.OrderRepository
	Factory      domain.AdapterFactory
	Events       Broadcaster
	Metrics      *metrics.SMMMetrics
	DefaultRate  float64

	logger   *slog.Logger
	current  atomic.Pointer[snapshot]
	reloadMu sync.Mutex
}

func NewProviderRegistry(
	providerRepo domain.ProviderRepository,
	serviceRepo domain.ServiceRepository,
	orderRepo domain.OrderRepository,
	factory domain.AdapterFactory,
	opts Options,
) *DefaultProviderRegistry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &DefaultProviderRegistry{
		ProviderRepo: providerRepo,
		ServiceRepo:  serviceRepo,
		OrderRepo:    orderRepo,
		Factory:      factory,
		Events:       opts.Events,
		Metrics:      opts.Metrics,
		DefaultRate:  opts.DefaultRate,
		logger:       logger.With("component", "provider_registry"),
	}
	r.current.Store(&snapshot{entries: map[string]*Entry{}})
	return r
}

// Reload rebuilds the snapshot from storage. Providers whose adapter cannot
// be built are left out and logged.
func (r *DefaultProviderRegistry) Reload(ctx context.Context) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	list, err := r.ProviderRepo.ListProviders(ctx, true)
	if err != nil {
		return fmt.Errorf("list providers: %w", err)
	}

	prev := r.current.Load()
	next := &snapshot{entries: make(map[string]*Entry, len(list))}
	for _, p := range list {
		snap := p.Clone()
		adapter, err := r.Factory.NewAdapter(snap)
		if err != nil {
			r.logger.Error("skip provider with invalid configuration",
				"provider_id", p.ID,
				"error", err,
			)
			continue
		}
		next.entries[p.ID] = &Entry{
			Provider: snap,
			Adapter:  adapter,
			Limiter:  r.limiterFor(prev.entries[p.ID], snap),
		}
	}
	r.current.Store(next)

	r.logger.Info("provider registry reloaded", "active", len(next.entries))
	return nil
}

// limiterFor keeps the previous limiter while the configured rate is unchanged
// so a reload does not reset the token bucket.
func (r *DefaultProviderRegistry) limiterFor(prev *Entry, p domain.Provider) *rate.Limiter {
	limit := p.RateLimit
	if limit == 0 {
		limit = r.DefaultRate
	}
	if prev != nil && prev.Provider.RateLimit == p.RateLimit {
		return prev.Limiter
	}
	if limit <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(limit), max(1, int(limit)))
}

func (r *DefaultProviderRegistry) Adapter(providerID string) (*Entry, bool) {
	e, ok := r.current.Load().entries[providerID]
	return e, ok
}

// Entries lists the active providers ordered by id.
func (r *DefaultProviderRegistry) Entries() []*Entry {
	snap := r.current.Load()
	out := make([]*Entry, 0, len(snap.entries))
	for _, e := range snap.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider.ID < out[j].Provider.ID })
	return out
}

// Resolve returns the entry serving svc, or nil for self-fulfilled services.
func (r *DefaultProviderRegistry) Resolve(ctx context.Context, svc *domain.Service) (*Entry, error) {
	if svc.SelfFulfilled() {
		return nil, nil
	}
	if e, ok := r.Adapter(*svc.ProviderID); ok {
		return e, nil
	}
	p, err := r.ProviderRepo.GetProvider(ctx, *svc.ProviderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("service_id", "service %s has no provider", svc.ID)
		}
		return nil, err
	}
	return nil, domain.NewValidationError("service_id", "provider %s of service %s is %s", p.ID, svc.ID, p.Status)
}

// Wait blocks until the provider's limiter admits one more call.
func (r *DefaultProviderRegistry) Wait(ctx context.Context, providerID string) error {
	e, ok := r.Adapter(providerID)
	if !ok {
		return nil
	}
	return e.Limiter.Wait(ctx)
}

func (r *DefaultProviderRegistry) GetProvider(ctx context.Context, id string) (*domain.Provider, error) {
	return r.ProviderRepo.GetProvider(ctx, id)
}

func (r *DefaultProviderRegistry) ListProviders(ctx context.Context) ([]*domain.Provider, error) {
	return r.ProviderRepo.ListProviders(ctx, false)
}

// SaveProvider persists p and invalidates the snapshot on this and every
// other instance.
func (r *DefaultProviderRegistry) SaveProvider(ctx context.Context, p *domain.Provider) error {
	if p.Transport == "" {
		p.Transport = domain.TransportForm
	}
	if p.Status == "" {
		p.Status = domain.ProviderInactive
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := r.ProviderRepo.SaveProvider(ctx, p); err != nil {
		return fmt.Errorf("save provider: %w", err)
	}
	return r.invalidate(ctx, p.ID)
}

func (r *DefaultProviderRegistry) SetProviderStatus(ctx context.Context, id string, status domain.ProviderStatus) (*domain.Provider, error) {
	p, err := r.ProviderRepo.GetProvider(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = status
	if err := r.SaveProvider(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProvider soft-deletes a provider no open order depends on.
func (r *DefaultProviderRegistry) DeleteProvider(ctx context.Context, id string) error {
	open, err := r.OrderRepo.CountOpenOrdersByProvider(ctx, id)
	if err != nil {
		return fmt.Errorf("count open orders: %w", err)
	}
	if open > 0 {
		return &domain.ConflictError{
			Entity: "provider",
			ID:     id,
			Reason: fmt.Sprintf("%d open orders still reference it", open),
		}
	}
	if err := r.ProviderRepo.SoftDeleteProvider(ctx, id); err != nil {
		return err
	}
	return r.invalidate(ctx, id)
}

func (r *DefaultProviderRegistry) invalidate(ctx context.Context, providerID string) error {
	if err := r.Reload(ctx); err != nil {
		return err
	}
	if r.Events == nil {
		return nil
	}
	if err := r.Events.ProviderChanged(ctx, providerID); err != nil {
		// Other instances catch up on their next reload.
		r.logger.Warn("failed to broadcast provider change",
			"provider_id", providerID,
			"error", err,
		)
	}
	return nil
}

func (r *DefaultProviderRegistry) active(providerID string) (*Entry, error) {
	e, ok := r.Adapter(providerID)
	if !ok {
		return nil, domain.NewValidationError("provider_id", "provider %s is not active", providerID)
	}
	return e, nil
}

// RefreshBalance fetches the vendor balance and caches it on the provider.
func (r *DefaultProviderRegistry) RefreshBalance(ctx context.Context, providerID string) (domain.ProviderBalance, error) {
	e, err := r.active(providerID)
	if err != nil {
		return domain.ProviderBalance{}, err
	}
	if err := e.Limiter.Wait(ctx); err != nil {
		return domain.ProviderBalance{}, err
	}
	bal, err := e.Adapter.GetBalance(ctx)
	if err != nil {
		return domain.ProviderBalance{}, err
	}
	if err := r.ProviderRepo.UpdateProviderBalance(ctx, providerID, bal, time.Now().UTC()); err != nil {
		return domain.ProviderBalance{}, fmt.Errorf("store provider balance: %w", err)
	}
	if r.Metrics != nil {
		r.Metrics.RecordProviderBalance(providerID, bal.Currency, bal.Amount)
	}
	return bal, nil
}

// RefreshAllBalances refreshes every active provider and joins the failures.
func (r *DefaultProviderRegistry) RefreshAllBalances(ctx context.Context) error {
	var errs []error
	for _, e := range r.Entries() {
		if _, err := r.RefreshBalance(ctx, e.Provider.ID); err != nil {
			r.logger.Error("provider balance refresh failed",
				"provider_id", e.Provider.ID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("provider %s: %w", e.Provider.ID, err))
		}
	}
	return errors.Join(errs...)
}

// ImportServices returns the vendor catalogue for admin review. Nothing is
// stored.
func (r *DefaultProviderRegistry) ImportServices(ctx context.Context, providerID string) ([]domain.RemoteService, error) {
	e, err := r.active(providerID)
	if err != nil {
		return nil, err
	}
	if err := e.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.Adapter.ListServices(ctx)
}

func (r *DefaultProviderRegistry) SaveService(ctx context.Context, s *domain.Service) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if !s.SelfFulfilled() {
		if _, err := r.ProviderRepo.GetProvider(ctx, *s.ProviderID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewValidationError("provider_id", "provider %s does not exist", *s.ProviderID)
			}
			return err
		}
	}
	return r.ServiceRepo.SaveService(ctx, s)
}

func (r *DefaultProviderRegistry) GetService(ctx context.Context, id string) (*domain.Service, error) {
	return r.ServiceRepo.GetService(ctx, id)
}

func (r *DefaultProviderRegistry) ListServices(ctx context.Context, providerID string) ([]*domain.Service, error) {
	return r.ServiceRepo.ListServicesByProvider(ctx, providerID)
}
