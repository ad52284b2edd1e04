package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/cache"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/order"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/registry"
)

// OrderSyncer is the part of the order lifecycle the scheduler drives.
type OrderSyncer interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	SyncStatus(ctx context.Context, o *domain.Order, remote domain.RemoteStatus) (*domain.Order, string, error)
	ReconcileUnconfirmed(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type ProviderRegistry interface {
	Adapter(providerID string) (*registry.Entry, bool)
	Wait(ctx context.Context, providerID string) error
	RefreshAllBalances(ctx context.Context) error
}

type Config struct {
	BatchLimit     int
	DefaultWorkers int
	LeaseTTL       time.Duration
	PassTimeout    time.Duration
	UnconfirmedAge time.Duration
}

// PassResult tallies one SyncAllDue pass.
type PassResult struct {
	Checked   int
	Updated   int
	Unchanged int
	Anomalies int
	Errors    int
	Conflicts int
	// Skipped lists providers another instance is already syncing or that
	// are no longer active.
	Skipped []string
}

func (r *PassResult) add(result string) {
	r.Checked++
	switch result {
	case order.SyncUpdated:
		r.Updated++
	case order.SyncUnchanged:
		r.Unchanged++
	case order.SyncAnomaly:
		r.Anomalies++
	case order.SyncConflict:
		r.Conflicts++
	default:
		r.Errors++
	}
}

type DefaultSyncUsecase struct {
	OrderRepo domain.OrderRepository
	Orders    OrderSyncer
	Registry  ProviderRegistry
	Lease     cache.Lease
	Metrics   *metrics.SMMMetrics
	Config    Config

	logger *slog.Logger
	now    func() time.Time
}

func NewDefaultSyncUsecase(
	orderRepo domain.OrderRepository,
	orders OrderSyncer,
	reg ProviderRegistry,
	lease cache.Lease,
	m *metrics.SMMMetrics,
	cfg Config,
	logger *slog.Logger,
) *DefaultSyncUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	if lease == nil {
		lease = cache.NewLocalLease()
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 500
	}
	if cfg.DefaultWorkers <= 0 {
		cfg.DefaultWorkers = 4
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 90 * time.Second
	}
	return &DefaultSyncUsecase{
		OrderRepo: orderRepo,
		Orders:    orders,
		Registry:  reg,
		Lease:     lease,
		Metrics:   m,
		Config:    cfg,
		logger:    logger.With("component", "sync"),
		now:       time.Now,
	}
}

// SyncAllDue polls every provider that has orders in flight. Providers run
// concurrently; inside one provider at most Workers batches are in flight
// and every call waits on the provider's rate limiter. Vendor and network
// failures are counted and leave the orders for the next pass.
func (uc *DefaultSyncUsecase) SyncAllDue(ctx context.Context) (PassResult, error) {
	start := uc.now()
	if uc.Config.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.Config.PassTimeout)
		defer cancel()
	}

	list, err := uc.OrderRepo.ListSyncable(ctx, uc.Config.BatchLimit)
	if err != nil {
		uc.recordPass("status", "error", start)
		return PassResult{}, fmt.Errorf("list syncable orders: %w", err)
	}

	byProvider := make(map[string][]*domain.Order)
	for _, o := range list {
		if o.ProviderID == nil || o.RemoteOrderID == nil {
			continue
		}
		byProvider[*o.ProviderID] = append(byProvider[*o.ProviderID], o)
	}
	ids := make([]string, 0, len(byProvider))
	for pid := range byProvider {
		ids = append(ids, pid)
	}
	sort.Strings(ids)

	var (
		mu  sync.Mutex
		res PassResult
	)
	var wg sync.WaitGroup
	for _, pid := range ids {
		wg.Add(1)
		go func(pid string, orders []*domain.Order) {
			defer wg.Done()
			provRes := uc.syncProvider(ctx, pid, orders)
			mu.Lock()
			defer mu.Unlock()
			res.Checked += provRes.Checked
			res.Updated += provRes.Updated
			res.Unchanged += provRes.Unchanged
			res.Anomalies += provRes.Anomalies
			res.Errors += provRes.Errors
			res.Conflicts += provRes.Conflicts
			res.Skipped = append(res.Skipped, provRes.Skipped...)
		}(pid, byProvider[pid])
	}
	wg.Wait()
	sort.Strings(res.Skipped)

	outcome := "ok"
	if ctx.Err() != nil {
		outcome = "timeout"
	} else if res.Errors > 0 {
		outcome = "partial"
	}
	uc.recordPass("status", outcome, start)
	uc.logger.Info("status sync pass finished",
		"orders", len(list),
		"checked", res.Checked,
		"updated", res.Updated,
		"anomalies", res.Anomalies,
		"errors", res.Errors,
		"skipped_providers", len(res.Skipped),
		"duration", time.Since(start).String(),
	)
	return res, nil
}

func (uc *DefaultSyncUsecase) syncProvider(ctx context.Context, pid string, orders []*domain.Order) PassResult {
	var res PassResult
	log := uc.logger.With("provider_id", pid)

	entry, ok := uc.Registry.Adapter(pid)
	if !ok {
		log.Warn("provider not active, orders left for a later pass", "orders", len(orders))
		res.Skipped = append(res.Skipped, pid)
		return res
	}

	release, acquired, err := uc.Lease.Acquire(ctx, "sync:"+pid, uc.Config.LeaseTTL)
	if err != nil {
		log.Error("failed to take sync lease", "error", err)
		res.Skipped = append(res.Skipped, pid)
		return res
	}
	if !acquired {
		log.Debug("provider is being synced elsewhere")
		res.Skipped = append(res.Skipped, pid)
		return res
	}
	defer release()

	workers := entry.Provider.Workers
	if workers <= 0 {
		workers = uc.Config.DefaultWorkers
	}
	size := entry.Provider.BatchSize()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for from := 0; from < len(orders); from += size {
		to := from + size
		if to > len(orders) {
			to = len(orders)
		}
		batch := orders[from:to]
		g.Go(func() error {
			results := uc.syncBatch(gctx, entry, batch)
			mu.Lock()
			for _, r := range results {
				res.add(r)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// syncBatch queries one batch and applies each answer. It returns one
// result per order.
func (uc *DefaultSyncUsecase) syncBatch(ctx context.Context, entry *registry.Entry, batch []*domain.Order) []string {
	pid := entry.Provider.ID
	results := make([]string, 0, len(batch))
	fail := func() []string {
		for range batch {
			results = append(results, order.SyncError)
			uc.recordResult(pid, order.SyncError)
		}
		return results
	}

	if err := uc.Registry.Wait(ctx, pid); err != nil {
		return fail()
	}
	remoteIDs := make([]string, len(batch))
	for i, o := range batch {
		remoteIDs[i] = *o.RemoteOrderID
	}
	statuses, err := entry.Adapter.GetStatuses(ctx, remoteIDs)
	if err != nil {
		uc.logger.Warn("status query failed",
			"provider_id", pid,
			"orders", len(batch),
			"error", err,
		)
		return fail()
	}

	for _, o := range batch {
		remote, ok := statuses[*o.RemoteOrderID]
		if !ok {
			uc.logger.Warn("provider did not report order",
				"provider_id", pid,
				"order_id", o.ID,
				"remote_order_id", *o.RemoteOrderID,
			)
			uc.recordResult(pid, order.SyncError)
			results = append(results, order.SyncError)
			continue
		}
		_, result, err := uc.Orders.SyncStatus(ctx, o, remote)
		if err != nil && result != order.SyncConflict {
			uc.logger.Warn("order not synced",
				"provider_id", pid,
				"order_id", o.ID,
				"error", err,
			)
		}
		results = append(results, result)
	}
	return results
}

// SyncOrder syncs a single order on demand.
func (uc *DefaultSyncUsecase) SyncOrder(ctx context.Context, orderID string) (*domain.Order, string, error) {
	o, err := uc.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if !o.IsProviderBacked() {
		return nil, "", domain.NewValidationError("order_id", "order %s is self-fulfilled", o.ID)
	}
	if o.RemoteOrderID == nil {
		return nil, "", domain.NewValidationError("order_id", "order %s has no remote order id", o.ID)
	}
	pid := *o.ProviderID
	entry, ok := uc.Registry.Adapter(pid)
	if !ok {
		return nil, "", domain.NewValidationError("provider_id", "provider %s is not active", pid)
	}
	if err := uc.Registry.Wait(ctx, pid); err != nil {
		return nil, "", err
	}
	remote, err := entry.Adapter.GetStatus(ctx, *o.RemoteOrderID)
	if err != nil {
		uc.recordResult(pid, order.SyncError)
		return o, order.SyncError, err
	}
	return uc.Orders.SyncStatus(ctx, o, remote)
}

// ReconcileUnconfirmed retries submissions whose outcome is still unknown
// after UnconfirmedAge.
func (uc *DefaultSyncUsecase) ReconcileUnconfirmed(ctx context.Context) (int, error) {
	start := uc.now()
	release, ok, err := uc.Lease.Acquire(ctx, "reconcile", uc.Config.LeaseTTL)
	if err != nil || !ok {
		return 0, err
	}
	defer release()

	n, err := uc.Orders.ReconcileUnconfirmed(ctx, start.Add(-uc.Config.UnconfirmedAge), uc.Config.BatchLimit)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	uc.recordPass("reconcile", outcome, start)
	if n > 0 {
		uc.logger.Info("unconfirmed orders resolved", "count", n)
	}
	return n, err
}

func (uc *DefaultSyncUsecase) RefreshBalances(ctx context.Context) error {
	start := uc.now()
	release, ok, err := uc.Lease.Acquire(ctx, "balances", uc.Config.LeaseTTL)
	if err != nil || !ok {
		return err
	}
	defer release()

	err = uc.Registry.RefreshAllBalances(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "partial"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	uc.recordPass("balance", outcome, start)
	return err
}

func (uc *DefaultSyncUsecase) recordPass(job, outcome string, start time.Time) {
	if uc.Metrics != nil {
		uc.Metrics.RecordSyncPass(job, outcome, uc.now().Sub(start))
	}
}

func (uc *DefaultSyncUsecase) recordResult(providerID, result string) {
	if uc.Metrics != nil {
		uc.Metrics.RecordSyncResult(providerID, result)
	}
}
