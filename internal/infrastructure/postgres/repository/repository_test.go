package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/testutil"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

type fixture struct {
	orders   *DefaultOrderRepository
	ledger   *DefaultLedgerRepository
	requests *DefaultRequestRepository
	deposits *DefaultDepositRepository
}

func newFixture(t *testing.T) fixture {
	db := testutil.NewDB(t)
	return fixture{
		orders:   NewDefaultOrderRepository(db),
		ledger:   NewDefaultLedgerRepository(db),
		requests: NewDefaultRequestRepository(db),
		deposits: NewDefaultDepositRepository(db),
	}
}

func (f fixture) fund(t *testing.T, userID, amount string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.ledger.OpenAccount(ctx, userID, "USD")
	require.NoError(t, err)
	_, err = f.ledger.Credit(ctx, &domain.LedgerEntry{
		UserID:    userID,
		Reason:    domain.ReasonDeposit,
		Amount:    dec(amount),
		Currency:  "USD",
		Reference: "seed:" + uuid.NewString(),
	})
	require.NoError(t, err)
}

func newOrder(userID, charge, key string) *domain.Order {
	provider := uuid.NewString()
	return &domain.Order{
		UserID:         userID,
		ServiceID:      uuid.NewString(),
		ProviderID:     &provider,
		Link:           "https://example.com/post/1",
		Quantity:       1000,
		Status:         domain.StatusPending,
		Charge:         dec(charge),
		ChargeCurrency: "USD",
		ChargeBase:     dec(charge),
		Refunded:       decimal.Zero,
		IdempotencyKey: key,
	}
}

func chargeEntry(o *domain.Order) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		UserID:    o.UserID,
		Reason:    domain.ReasonOrderCharge,
		Amount:    o.Charge,
		Currency:  o.ChargeCurrency,
		Reference: "order:" + o.IdempotencyKey + ":charge",
	}
}

func TestCreateOrderWithDebit_DebitsOnceForSameIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "100")

	first := newOrder("u1", "10", "k1")
	created, ok, err := f.orders.CreateOrderWithDebit(ctx, first, chargeEntry(first))
	require.NoError(t, err)
	require.True(t, ok)

	again := newOrder("u1", "10", "k1")
	existing, ok, err := f.orders.CreateOrderWithDebit(ctx, again, chargeEntry(again))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, created.ID, existing.ID)

	bal, err := f.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assertAmount(t, "90", bal.Balance)
	assertAmount(t, "10", bal.TotalSpent)
	assertAmount(t, "100", bal.TotalDeposited)

	entries, err := f.ledger.ListEntries(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCreateOrderWithDebit_InsufficientBalanceLeavesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "5")

	o := newOrder("u1", "10", "k1")
	_, _, err := f.orders.CreateOrderWithDebit(ctx, o, chargeEntry(o))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = f.orders.GetOrder(ctx, o.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	bal, err := f.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assertAmount(t, "5", bal.Balance)
}

func TestCreateOrderWithDebit_NoAccount(t *testing.T) {
	f := newFixture(t)
	o := newOrder("ghost", "1", "")
	_, _, err := f.orders.CreateOrderWithDebit(context.Background(), o, chargeEntry(o))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestApplyTransition_CompareAndSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "100")
	o := newOrder("u1", "10", "k1")
	created, _, err := f.orders.CreateOrderWithDebit(ctx, o, chargeEntry(o))
	require.NoError(t, err)

	remote := "R123"
	moved, err := f.orders.ApplyTransition(ctx, domain.OrderTransition{
		OrderID:       created.ID,
		From:          domain.StatusPending,
		To:            domain.StatusProcessing,
		RemoteOrderID: &remote,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, moved.Status)
	require.NotNil(t, moved.RemoteOrderID)
	assert.Equal(t, "R123", *moved.RemoteOrderID)

	_, err = f.orders.ApplyTransition(ctx, domain.OrderTransition{
		OrderID: created.ID,
		From:    domain.StatusPending,
		To:      domain.StatusFailed,
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	remaining := int64(0)
	done, err := f.orders.ApplyTransition(ctx, domain.OrderTransition{
		OrderID:   created.ID,
		From:      domain.StatusProcessing,
		To:        domain.StatusCompleted,
		Remaining: &remaining,
	})
	require.NoError(t, err)
	assert.NotNil(t, done.CompletedAt)
}

func TestApplyTransition_CreditRefundsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "100")
	o := newOrder("u1", "10", "k1")
	created, _, err := f.orders.CreateOrderWithDebit(ctx, o, chargeEntry(o))
	require.NoError(t, err)

	refund := func(amount string) error {
		_, err := f.orders.ApplyTransition(ctx, domain.OrderTransition{
			OrderID: created.ID,
			From:    domain.StatusPending,
			To:      domain.StatusFailed,
			Credit: &domain.LedgerEntry{
				UserID:    "u1",
				Reason:    domain.ReasonSubmissionFail,
				Amount:    dec(amount),
				Currency:  "USD",
				Reference: "order:" + created.ID + ":rollback",
			},
		})
		return err
	}

	require.ErrorIs(t, refund("10.01"), domain.ErrConflict)
	require.NoError(t, refund("10"))
	require.ErrorIs(t, refund("10"), domain.ErrConflict)

	got, err := f.orders.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assertAmount(t, "10", got.Refunded)
	assert.True(t, got.Refundable().IsZero())

	bal, err := f.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assertAmount(t, "100", bal.Balance)
	assertAmount(t, "0", bal.TotalSpent)
}

func TestLedger_DuplicateReferenceRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "10")

	entry := func() *domain.LedgerEntry {
		return &domain.LedgerEntry{UserID: "u1", Reason: domain.ReasonManualAdjust, Amount: dec("1"), Currency: "USD", Reference: "adj-1"}
	}
	_, err := f.ledger.Credit(ctx, entry())
	require.NoError(t, err)
	_, err = f.ledger.Credit(ctx, entry())
	require.ErrorIs(t, err, domain.ErrConflict)

	bal, err := f.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assertAmount(t, "11", bal.Balance)
}

func TestLedger_CurrencyMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "10")

	_, err := f.ledger.Debit(ctx, &domain.LedgerEntry{UserID: "u1", Reason: domain.ReasonManualAdjust, Amount: dec("1"), Currency: "EUR", Reference: "x"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRequests_OnePendingPerOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := uuid.NewString()

	first := &domain.RefillRequest{OrderID: orderID, UserID: "u1"}
	require.NoError(t, f.requests.CreateRefillRequest(ctx, first))
	err := f.requests.CreateRefillRequest(ctx, &domain.RefillRequest{OrderID: orderID, UserID: "u1"})
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.requests.ResolveRefillRequest(ctx, domain.RequestResolution{
		RequestID: first.ID, To: domain.RequestDeclined, ProcessedBy: "mod", Notes: "not eligible",
	}, nil)
	require.NoError(t, err)

	_, err = f.requests.ResolveRefillRequest(ctx, domain.RequestResolution{
		RequestID: first.ID, To: domain.RequestCompleted, ProcessedBy: "mod",
	}, nil)
	require.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, f.requests.CreateRefillRequest(ctx, &domain.RefillRequest{OrderID: orderID, UserID: "u1"}))

	_, err = f.requests.ResolveRefillRequest(ctx, domain.RequestResolution{RequestID: uuid.NewString(), To: domain.RequestDeclined}, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequests_AppendNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := &domain.CancelRequest{OrderID: uuid.NewString(), UserID: "u1", RefundAmount: decimal.Zero}
	require.NoError(t, f.requests.CreateCancelRequest(ctx, req))

	require.NoError(t, f.requests.AppendCancelNotes(ctx, req.ID, "provider refused"))
	require.NoError(t, f.requests.AppendCancelNotes(ctx, req.ID, "retry later"))

	got, err := f.requests.GetCancelRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "provider refused\nretry later", got.AdminNotes)
	assert.Equal(t, domain.RequestPending, got.Status)
}

func TestApproveCancel_ConcurrentApprovalsCreditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "20")
	o := newOrder("u1", "5", "k1")
	created, _, err := f.orders.CreateOrderWithDebit(ctx, o, chargeEntry(o))
	require.NoError(t, err)

	req := &domain.CancelRequest{OrderID: created.ID, UserID: "u1", RefundAmount: decimal.Zero}
	require.NoError(t, f.requests.CreateCancelRequest(ctx, req))

	const racers = 2
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.ledger.ApproveCancel(ctx, domain.CancelApproval{
				RequestID:    req.ID,
				OrderFrom:    domain.StatusPending,
				OrderTo:      domain.StatusCancelled,
				RefundAmount: dec("5"),
				ProcessedBy:  "admin",
				Entry: &domain.LedgerEntry{
					UserID:    "u1",
					Reason:    domain.ReasonCancelApproved,
					Currency:  "USD",
					Reference: "cancel:" + req.ID,
				},
			})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	bal, err := f.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assertAmount(t, "20", bal.Balance)

	got, err := f.requests.GetCancelRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, got.Status)
	assertAmount(t, "5", got.RefundAmount)

	order, err := f.orders.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, order.Status)
	assertAmount(t, "5", order.Refunded)
}

func TestApplyTransition_SupersedesPendingCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "20")
	o := newOrder("u1", "5", "k1")
	created, _, err := f.orders.CreateOrderWithDebit(ctx, o, chargeEntry(o))
	require.NoError(t, err)

	req := &domain.CancelRequest{OrderID: created.ID, UserID: "u1", RefundAmount: decimal.Zero}
	require.NoError(t, f.requests.CreateCancelRequest(ctx, req))

	_, err = f.orders.ApplyTransition(ctx, domain.OrderTransition{
		OrderID:         created.ID,
		From:            domain.StatusPending,
		To:              domain.StatusCancelled,
		SupersedeCancel: true,
		Credit: &domain.LedgerEntry{
			UserID: "u1", Reason: domain.ReasonProviderCancel, Amount: dec("5"), Currency: "USD",
			Reference: "order:" + created.ID + ":provider_cancel",
		},
	})
	require.NoError(t, err)

	got, err := f.requests.GetCancelRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestCancelled, got.Status)
	assert.Contains(t, got.AdminNotes, "superseded")
}

func TestDeposits_ApproveOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.OpenAccount(ctx, "u1", "USD")
	require.NoError(t, err)

	d := &domain.Deposit{UserID: "u1", Amount: dec("25"), Currency: "USD", Method: "manual"}
	require.NoError(t, f.deposits.CreateDeposit(ctx, d))

	entry := func() *domain.LedgerEntry {
		return &domain.LedgerEntry{UserID: "u1", Reason: domain.ReasonDeposit, Amount: dec("25"), Currency: "USD", Reference: "deposit:" + d.ID}
	}
	approved, err := f.deposits.ApproveDeposit(ctx, d.ID, "admin", entry())
	require.NoError(t, err)
	assert.Equal(t, domain.DepositApproved, approved.Status)

	_, err = f.deposits.ApproveDeposit(ctx, d.ID, "admin", entry())
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.deposits.ResolveDeposit(ctx, d.ID, domain.DepositDeclined, "admin", "late")
	require.ErrorIs(t, err, domain.ErrConflict)

	bal, err := f.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assertAmount(t, "25", bal.Balance)
	assertAmount(t, "25", bal.TotalDeposited)
}

func TestOrders_ListSyncableAndUnconfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "100")

	mk := func(key string, to domain.OrderStatus, remote string) *domain.Order {
		o := newOrder("u1", "1", key)
		created, _, err := f.orders.CreateOrderWithDebit(ctx, o, chargeEntry(o))
		require.NoError(t, err)
		tr := domain.OrderTransition{OrderID: created.ID, From: domain.StatusPending, To: to}
		if remote != "" {
			tr.RemoteOrderID = &remote
		}
		moved, err := f.orders.ApplyTransition(ctx, tr)
		require.NoError(t, err)
		return moved
	}
	processing := mk("a", domain.StatusProcessing, "R1")
	mk("b", domain.StatusCompleted, "R2")
	unconfirmed := mk("c", domain.StatusUnconfirmed, "")

	syncable, err := f.orders.ListSyncable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, syncable, 1)
	assert.Equal(t, processing.ID, syncable[0].ID)

	stale, err := f.orders.ListUnconfirmed(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, unconfirmed.ID, stale[0].ID)

	require.NoError(t, f.orders.TouchSynced(ctx, processing.ID, domain.StatusProcessing, domain.RemoteStatus{Status: "Pending", Remaining: 10}, time.Now()))
	err = f.orders.TouchSynced(ctx, processing.ID, domain.StatusInProgress, domain.RemoteStatus{}, time.Now())
	require.ErrorIs(t, err, domain.ErrConflict)

	list, total, err := f.orders.ListOrders(ctx, domain.OrderFilter{UserID: "u1", Statuses: []domain.OrderStatus{domain.StatusProcessing, domain.StatusCompleted}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	n, err := f.orders.CountOpenOrdersByProvider(ctx, *processing.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestProviders_SaveListSoftDelete(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewDefaultProviderRepository(db)
	services := NewDefaultServiceRepository(db)
	ctx := context.Background()

	p := &domain.Provider{
		Name:      "Panel A",
		Status:    domain.ProviderActive,
		BaseURL:   "https://panel.example/api/v2",
		APIKey:    "k",
		Transport: domain.TransportForm,
		Paths:     map[domain.ProviderAction]string{domain.ActionStatus: "/status"},
		StatusMap: map[string]domain.OrderStatus{"Done": domain.StatusCompleted},
		Timeout:   3 * time.Second,
	}
	require.NoError(t, repo.SaveProvider(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := repo.GetProvider(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "/status", got.Path(domain.ActionStatus))
	assert.Equal(t, domain.StatusCompleted, got.StatusMap["Done"])
	assert.Equal(t, 3*time.Second, got.Timeout)

	got.Name = "Panel A2"
	require.NoError(t, repo.SaveProvider(ctx, got))
	require.NoError(t, repo.UpdateProviderBalance(ctx, p.ID, domain.ProviderBalance{Amount: dec("12.5"), Currency: "USD"}, time.Now()))

	active, err := repo.ListProviders(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Panel A2", active[0].Name)
	assertAmount(t, "12.5", active[0].Balance)

	svc := &domain.Service{Name: "Likes", ProviderID: &p.ID, ProviderRef: "1", Rate: dec("0.01"), MinQuantity: 10, MaxQuantity: 1000, Active: true}
	require.NoError(t, services.SaveService(ctx, svc))
	listed, err := services.ListServicesByProvider(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assertAmount(t, "0.01", listed[0].Rate)

	require.NoError(t, repo.SoftDeleteProvider(ctx, p.ID))
	_, err = repo.GetProvider(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, repo.SoftDeleteProvider(ctx, p.ID), domain.ErrNotFound)
}

func TestCurrencies_SaveUpserts(t *testing.T) {
	repo := NewDefaultCurrencyRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SaveCurrency(ctx, domain.Currency{Code: "USD", Symbol: "$", Rate: dec("1"), Places: 2, Enabled: true, IsBase: true}))
	require.NoError(t, repo.SaveCurrency(ctx, domain.Currency{Code: "EUR", Symbol: "€", Rate: dec("0.9"), Places: 2, Enabled: true}))
	require.NoError(t, repo.SaveCurrency(ctx, domain.Currency{Code: "EUR", Symbol: "€", Rate: dec("0.92"), Places: 2, Enabled: true}))

	list, err := repo.ListCurrencies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "EUR", list[0].Code)
	assertAmount(t, "0.92", list[0].Rate)
}
