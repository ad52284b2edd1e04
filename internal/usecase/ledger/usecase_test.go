package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavaJover/shvark-smm-service/internal/currency"
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/repository"
	"github.com/LavaJover/shvark-smm-service/internal/testutil"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

type fixture struct {
	uc       *DefaultLedgerUsecase
	orders   *repository.DefaultOrderRepository
	requests *repository.DefaultRequestRepository
	notifier *testutil.RecordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	ctx := context.Background()

	book, err := currency.NewBook(repository.NewDefaultCurrencyRepository(db), "USD")
	require.NoError(t, err)
	require.NoError(t, book.SaveCurrency(ctx, domain.Currency{Code: "EUR", Symbol: "€", Rate: dec("0.5"), Enabled: true}))
	require.NoError(t, book.SaveCurrency(ctx, domain.Currency{Code: "GBP", Rate: dec("0.8"), Enabled: false}))

	orders := repository.NewDefaultOrderRepository(db)
	requests := repository.NewDefaultRequestRepository(db)
	notifier := &testutil.RecordingNotifier{}
	uc, err := NewDefaultLedgerUsecase(
		repository.NewDefaultLedgerRepository(db),
		repository.NewDefaultDepositRepository(db),
		requests,
		orders,
		book,
		notifier,
		metrics.NewSMMMetrics(prometheus.NewRegistry()),
		nil,
	)
	require.NoError(t, err)
	return fixture{uc: uc, orders: orders, requests: requests, notifier: notifier}
}

func (f fixture) fund(t *testing.T, userID, code, amount string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.uc.OpenAccount(ctx, userID, code)
	require.NoError(t, err)
	_, err = f.uc.Credit(ctx, EntryInput{UserID: userID, Amount: dec(amount), Reason: domain.ReasonDeposit})
	require.NoError(t, err)
}

// placedOrder stores an order charged at charge and debits the user for it.
func (f fixture) placedOrder(t *testing.T, userID, charge string, status domain.OrderStatus) *domain.Order {
	t.Helper()
	providerID := uuid.NewString()
	remote := "R" + uuid.NewString()[:6]
	o := &domain.Order{
		UserID:         userID,
		ServiceID:      uuid.NewString(),
		ProviderID:     &providerID,
		RemoteOrderID:  &remote,
		Link:           "https://example.com/p/1",
		Quantity:       1000,
		Status:         status,
		Charge:         dec(charge),
		ChargeCurrency: "USD",
		ChargeBase:     dec(charge),
	}
	_, _, err := f.orders.CreateOrderWithDebit(context.Background(), o, &domain.LedgerEntry{
		UserID:    userID,
		Reason:    domain.ReasonOrderCharge,
		Amount:    dec(charge),
		Currency:  "USD",
		Reference: "order:" + uuid.NewString() + ":charge",
	})
	require.NoError(t, err)
	return o
}

func TestOpenAccount_RejectsUnknownOrDisabledCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.OpenAccount(ctx, "u1", "XXX")
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.uc.OpenAccount(ctx, "u1", "GBP")
	require.ErrorIs(t, err, domain.ErrValidation)

	acc, err := f.uc.OpenAccount(ctx, "u1", "eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", acc.Currency)
	assert.True(t, acc.Balance.IsZero())
}

func TestDebit_NeverGoesNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "USD", "10")

	_, err := f.uc.Debit(ctx, EntryInput{UserID: "u1", Amount: dec("10.01")})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	bal, err := f.uc.Debit(ctx, EntryInput{UserID: "u1", Amount: dec("10")})
	require.NoError(t, err)
	assert.True(t, bal.Balance.IsZero())

	_, err = f.uc.Debit(ctx, EntryInput{UserID: "u1", Amount: dec("0")})
	require.ErrorIs(t, err, domain.ErrValidation)

	entries, err := f.uc.ListEntries(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCredit_SameReferenceAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "USD", "1")

	in := EntryInput{UserID: "u1", Amount: dec("2.50"), Reference: "promo:2024"}
	_, err := f.uc.Credit(ctx, in)
	require.NoError(t, err)
	_, err = f.uc.Credit(ctx, in)
	require.ErrorIs(t, err, domain.ErrConflict)

	bal, err := f.uc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assertAmount(t, "3.50", bal.Balance)
}

func TestApproveCancelRequest_ConcurrentApprovalsCreditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "USD", "20")
	order := f.placedOrder(t, "u1", "10", domain.StatusInProgress)

	req := &domain.CancelRequest{OrderID: order.ID, UserID: "u1", Reason: "too slow"}
	require.NoError(t, f.requests.CreateCancelRequest(ctx, req))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for _, admin := range []string{"admin-a", "admin-b"} {
		wg.Add(1)
		go func(admin string) {
			defer wg.Done()
			_, _, err := f.uc.ApproveCancelRequest(ctx, CancelApprovalInput{
				RequestID:    req.ID,
				RefundAmount: dec("5.00"),
				ProcessedBy:  admin,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, domain.ErrConflict):
				conflicts++
			}
		}(admin)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	bal, err := f.uc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assertAmount(t, "15", bal.Balance)

	got, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assertAmount(t, "5", got.Refunded)

	approved, err := f.requests.GetCancelRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, approved.Status)
	assertAmount(t, "5", approved.RefundAmount)

	assert.Equal(t, []domain.NotificationKind{domain.NotifyCancelApproved}, f.notifier.Kinds())
}

func TestApproveCancelRequest_CompletedOrderBecomesRefunded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "USD", "10")
	order := f.placedOrder(t, "u1", "10", domain.StatusCompleted)

	req := &domain.CancelRequest{OrderID: order.ID, UserID: "u1"}
	require.NoError(t, f.requests.CreateCancelRequest(ctx, req))

	_, _, err := f.uc.ApproveCancelRequest(ctx, CancelApprovalInput{RequestID: req.ID, RefundAmount: dec("10.01"), ProcessedBy: "admin"})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, updated, err := f.uc.ApproveCancelRequest(ctx, CancelApprovalInput{RequestID: req.ID, RefundAmount: dec("10"), ProcessedBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, updated.Status)
	assert.True(t, updated.Refundable().IsZero())

	bal, err := f.uc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assertAmount(t, "10", bal.Balance)
}

func TestApproveCancelRequest_ZeroRefundMovesOrderWithoutCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "USD", "10")
	order := f.placedOrder(t, "u1", "4", domain.StatusProcessing)

	req := &domain.CancelRequest{OrderID: order.ID, UserID: "u1"}
	require.NoError(t, f.requests.CreateCancelRequest(ctx, req))

	_, updated, err := f.uc.ApproveCancelRequest(ctx, CancelApprovalInput{RequestID: req.ID, ProcessedBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, updated.Status)

	entries, err := f.uc.ListEntries(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDeclineCancelRequest_LeavesPendingOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "USD", "10")
	order := f.placedOrder(t, "u1", "4", domain.StatusProcessing)

	req := &domain.CancelRequest{OrderID: order.ID, UserID: "u1"}
	require.NoError(t, f.requests.CreateCancelRequest(ctx, req))

	declined, err := f.uc.DeclineCancelRequest(ctx, req.ID, "mod", "already delivering")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestDeclined, declined.Status)
	assert.Contains(t, declined.AdminNotes, "already delivering")

	_, err = f.uc.DeclineCancelRequest(ctx, req.ID, "mod", "again")
	require.ErrorIs(t, err, domain.ErrConflict)
	_, _, err = f.uc.ApproveCancelRequest(ctx, CancelApprovalInput{RequestID: req.ID, ProcessedBy: "admin"})
	require.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.uc.DeclineCancelRequest(ctx, "missing", "mod", "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApproveDeposit_ConvertsIntoAccountCurrencyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.OpenAccount(ctx, "u1", "USD")
	require.NoError(t, err)

	d, err := f.uc.CreateDeposit(ctx, CreateDepositInput{UserID: "u1", Amount: dec("10"), Currency: "EUR", Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, domain.DepositPending, d.Status)

	approved, err := f.uc.ApproveDeposit(ctx, d.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.DepositApproved, approved.Status)

	_, err = f.uc.ApproveDeposit(ctx, d.ID, "admin")
	require.ErrorIs(t, err, domain.ErrConflict)

	bal, err := f.uc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	// 10 EUR at 0.5 EUR per USD.
	assertAmount(t, "20", bal.Balance)
	assertAmount(t, "20", bal.TotalDeposited)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.NotifyDepositApproved, sent[0].Kind)
	assertAmount(t, "20", sent[0].Amount)
}

func TestApproveDeposit_OpensMissingAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.uc.CreateDeposit(ctx, CreateDepositInput{UserID: "new-user", Amount: dec("7.5"), Currency: "EUR"})
	require.NoError(t, err)
	_, err = f.uc.ApproveDeposit(ctx, d.ID, "admin")
	require.NoError(t, err)

	bal, err := f.uc.GetBalance(ctx, "new-user")
	require.NoError(t, err)
	assert.Equal(t, "EUR", bal.Currency)
	assertAmount(t, "7.5", bal.Balance)
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = assert.AnError
	ctx := context.Background()

	d, err := f.uc.CreateDeposit(ctx, CreateDepositInput{UserID: "u1", Amount: dec("3"), Currency: "USD"})
	require.NoError(t, err)
	_, err = f.uc.ApproveDeposit(ctx, d.ID, "admin")
	require.NoError(t, err)

	bal, err := f.uc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assertAmount(t, "3", bal.Balance)
}

func TestDeclineAndCancelDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.CreateDeposit(ctx, CreateDepositInput{UserID: "u1", Amount: dec("-1"), Currency: "USD"})
	require.ErrorIs(t, err, domain.ErrValidation)

	a, err := f.uc.CreateDeposit(ctx, CreateDepositInput{UserID: "u1", Amount: dec("3"), Currency: "USD"})
	require.NoError(t, err)
	declined, err := f.uc.DeclineDeposit(ctx, a.ID, "admin", "no payment received")
	require.NoError(t, err)
	assert.Equal(t, domain.DepositDeclined, declined.Status)

	b, err := f.uc.CreateDeposit(ctx, CreateDepositInput{UserID: "u1", Amount: dec("3"), Currency: "USD"})
	require.NoError(t, err)
	_, err = f.uc.CancelDeposit(ctx, b.ID, "someone-else")
	require.ErrorIs(t, err, domain.ErrForbidden)
	cancelled, err := f.uc.CancelDeposit(ctx, b.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DepositCancelled, cancelled.Status)
	_, err = f.uc.ApproveDeposit(ctx, b.ID, "admin")
	require.ErrorIs(t, err, domain.ErrConflict)

	assert.Equal(t, []domain.NotificationKind{domain.NotifyDepositCancelled}, f.notifier.Kinds())
}
