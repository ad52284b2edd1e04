package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavaJover/shvark-smm-service/internal/currency"
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/cache"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/repository"
	"github.com/LavaJover/shvark-smm-service/internal/testutil"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/ledger"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/order"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/registry"
)

type fixture struct {
	sync     *DefaultSyncUsecase
	orders   *order.DefaultOrderUsecase
	ledger   *ledger.DefaultLedgerUsecase
	registry *registry.DefaultProviderRegistry
	factory  *testutil.FakeFactory
	lease    *cache.LocalLease
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	ctx := context.Background()

	book, err := currency.NewBook(repository.NewDefaultCurrencyRepository(db), "USD")
	require.NoError(t, err)
	require.NoError(t, book.Reload(ctx))

	m := metrics.NewSMMMetrics(prometheus.NewRegistry())
	orderRepo := repository.NewDefaultOrderRepository(db)
	requests := repository.NewDefaultRequestRepository(db)
	ledgerRepo := repository.NewDefaultLedgerRepository(db)
	services := repository.NewDefaultServiceRepository(db)
	factory := testutil.NewFakeFactory()
	notifier := &testutil.RecordingNotifier{}

	reg := registry.NewProviderRegistry(repository.NewDefaultProviderRepository(db), services, orderRepo, factory, registry.Options{Metrics: m})
	ledgerUC, err := ledger.NewDefaultLedgerUsecase(ledgerRepo, repository.NewDefaultDepositRepository(db), requests, orderRepo, book, notifier, m, nil)
	require.NoError(t, err)
	orderUC, err := order.NewDefaultOrderUsecase(orderRepo, requests, ledgerRepo, services, reg, ledgerUC, book, notifier, m, order.Config{}, nil)
	require.NoError(t, err)

	lease := cache.NewLocalLease()
	syncUC := NewDefaultSyncUsecase(orderRepo, orderUC, reg, lease, m, Config{
		BatchLimit:     100,
		DefaultWorkers: 2,
		LeaseTTL:       time.Minute,
		PassTimeout:    10 * time.Second,
		UnconfirmedAge: time.Minute,
	}, nil)

	return fixture{sync: syncUC, orders: orderUC, ledger: ledgerUC, registry: reg, factory: factory, lease: lease}
}

func (f fixture) provider(t *testing.T, configure func(p *domain.Provider)) (*domain.Provider, *domain.Service, *testutil.FakeAdapter) {
	t.Helper()
	ctx := context.Background()
	p := &domain.Provider{
		ID:        uuid.NewString(),
		Name:      "Panel",
		Status:    domain.ProviderActive,
		BaseURL:   "https://panel.example/api/v2",
		APIKey:    "secret",
		Transport: domain.TransportForm,
	}
	if configure != nil {
		configure(p)
	}
	adapter := &testutil.FakeAdapter{}
	f.factory.Set(p.ID, adapter)
	require.NoError(t, f.registry.SaveProvider(ctx, p))

	svc := &domain.Service{
		Name:        "Views",
		ProviderID:  &p.ID,
		ProviderRef: "7",
		Rate:        decimal.RequireFromString("0.001"),
		MinQuantity: 100,
		MaxQuantity: 100000,
		Active:      true,
	}
	require.NoError(t, f.registry.SaveService(ctx, svc))
	return p, svc, adapter
}

func (f fixture) placeOrders(t *testing.T, svc *domain.Service, n int) []*domain.Order {
	t.Helper()
	ctx := context.Background()
	if _, err := f.ledger.GetBalance(ctx, "u1"); errors.Is(err, domain.ErrNotFound) {
		_, err = f.ledger.OpenAccount(ctx, "u1", "USD")
		require.NoError(t, err)
		_, err = f.ledger.Credit(ctx, ledger.EntryInput{UserID: "u1", Amount: decimal.NewFromInt(1000), Reason: domain.ReasonDeposit})
		require.NoError(t, err)
	}
	out := make([]*domain.Order, 0, n)
	for i := 0; i < n; i++ {
		o, err := f.orders.CreateOrder(ctx, order.CreateOrderInput{
			UserID:    "u1",
			ServiceID: svc.ID,
			Link:      "https://youtube.com/watch?v=x",
			Quantity:  1000,
		})
		require.NoError(t, err)
		require.Equal(t, domain.StatusProcessing, o.Status)
		out = append(out, o)
	}
	return out
}

func reportAll(status string) func(ctx context.Context, ids []string) (map[string]domain.RemoteStatus, error) {
	return func(ctx context.Context, ids []string) (map[string]domain.RemoteStatus, error) {
		out := make(map[string]domain.RemoteStatus, len(ids))
		for _, id := range ids {
			out[id] = domain.RemoteStatus{Status: status, StartCount: 10}
		}
		return out, nil
	}
}

func TestSyncAllDue_BatchesPerProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, batchSvc, batchAdapter := f.provider(t, func(p *domain.Provider) {
		p.BatchStatus = true
		p.MaxBatch = 2
	})
	_, singleSvc, singleAdapter := f.provider(t, nil)
	batched := f.placeOrders(t, batchSvc, 5)
	f.placeOrders(t, singleSvc, 2)

	batchAdapter.StatusesFunc = reportAll("Completed")
	singleAdapter.StatusesFunc = reportAll("In progress")

	res, err := f.sync.SyncAllDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Checked)
	assert.Equal(t, 7, res.Updated)
	assert.Zero(t, res.Errors)
	assert.Equal(t, int32(3), batchAdapter.StatusCalls.Load())
	assert.Equal(t, int32(2), singleAdapter.StatusCalls.Load())

	for _, o := range batched {
		got, err := f.orders.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, got.Status)
	}

	// Completed orders drop out; in_progress ones stay due.
	res, err = f.sync.SyncAllDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 2, res.Unchanged)
}

func TestSyncAllDue_NetworkFailureLeavesOrdersForNextPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, downSvc, down := f.provider(t, nil)
	_, upSvc, up := f.provider(t, nil)
	stuck := f.placeOrders(t, downSvc, 2)
	f.placeOrders(t, upSvc, 1)

	down.StatusesFunc = func(ctx context.Context, ids []string) (map[string]domain.RemoteStatus, error) {
		return nil, domain.NewNetworkError("down", "status", 0, context.DeadlineExceeded, true)
	}
	up.StatusesFunc = reportAll("Completed")

	res, err := f.sync.SyncAllDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, res.Errors)

	for _, o := range stuck {
		got, err := f.orders.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessing, got.Status)
		assert.Nil(t, got.LastSyncedAt)
	}
}

func TestSyncAllDue_MissingAnswerCountsAsError(t *testing.T) {
	f := newFixture(t)
	_, svc, adapter := f.provider(t, nil)
	f.placeOrders(t, svc, 1)

	res, err := f.sync.SyncAllDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, int32(1), adapter.StatusCalls.Load())
}

func TestSyncAllDue_SkipsProviderLeasedElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, svc, adapter := f.provider(t, nil)
	f.placeOrders(t, svc, 2)

	release, ok, err := f.lease.Acquire(ctx, "sync:"+p.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.sync.SyncAllDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, res.Skipped)
	assert.Zero(t, res.Checked)
	assert.Equal(t, int32(0), adapter.StatusCalls.Load())

	release()
	adapter.StatusesFunc = reportAll("Partial")
	res, err = f.sync.SyncAllDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, 2, res.Updated)
}

func TestSyncAllDue_SuspendedProviderIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, svc, adapter := f.provider(t, nil)
	f.placeOrders(t, svc, 1)
	_, err := f.registry.SetProviderStatus(ctx, p.ID, domain.ProviderSuspended)
	require.NoError(t, err)

	res, err := f.sync.SyncAllDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, res.Skipped)
	assert.Equal(t, int32(0), adapter.StatusCalls.Load())
}

func TestSyncOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, svc, adapter := f.provider(t, nil)
	o := f.placeOrders(t, svc, 1)[0]

	adapter.StatusesFunc = reportAll("Canceled")
	synced, result, err := f.sync.SyncOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.SyncUpdated, result)
	assert.Equal(t, domain.StatusCancelled, synced.Status)

	bal, err := f.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(decimal.NewFromInt(1000)), bal.Balance.String())

	self := &domain.Service{Name: "Manual", Rate: decimal.RequireFromString("0.001"), MinQuantity: 1, MaxQuantity: 10000, Active: true}
	require.NoError(t, f.registry.SaveService(ctx, self))
	manual, err := f.orders.CreateOrder(ctx, order.CreateOrderInput{UserID: "u1", ServiceID: self.ID, Link: "https://x.example", Quantity: 100})
	require.NoError(t, err)
	_, _, err = f.sync.SyncOrder(ctx, manual.ID)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = f.sync.SyncOrder(ctx, uuid.NewString())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReconcileUnconfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, svc, adapter := f.provider(t, func(p *domain.Provider) { p.IdempotencyParam = "request_id" })
	f.placeOrders(t, svc, 0)

	adapter.PlaceFunc = func(ctx context.Context, req domain.PlaceOrderRequest) (string, error) {
		return "", domain.NewNetworkError("p", "order", 0, context.DeadlineExceeded, true)
	}
	o, err := f.orders.CreateOrder(ctx, order.CreateOrderInput{UserID: "u1", ServiceID: svc.ID, Link: "https://x.example", Quantity: 1000})
	require.ErrorIs(t, err, domain.ErrSubmissionFailed)

	// Too young to retry.
	n, err := f.sync.ReconcileUnconfirmed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	adapter.PlaceFunc = nil
	f.sync.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	n, err = f.sync.ReconcileUnconfirmed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
}

func TestRefreshBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, a := f.provider(t, nil)
	_, _, b := f.provider(t, nil)
	b.BalanceFunc = func(ctx context.Context) (domain.ProviderBalance, error) {
		return domain.ProviderBalance{}, &domain.ProviderError{Message: "bad key"}
	}

	err := f.sync.RefreshBalances(ctx)
	require.ErrorIs(t, err, domain.ErrProvider)
	assert.Equal(t, int32(1), a.BalanceCalls.Load())
	assert.Equal(t, int32(1), b.BalanceCalls.Load())

	release, ok, err := f.lease.Acquire(ctx, "balances", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()
	require.NoError(t, f.sync.RefreshBalances(ctx))
	assert.Equal(t, int32(1), a.BalanceCalls.Load())
}
