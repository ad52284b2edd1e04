package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

// FakeAdapter is a scriptable domain.ProviderAdapter. Unset funcs return
// zero values.
type FakeAdapter struct {
	BalanceFunc  func(ctx context.Context) (domain.ProviderBalance, error)
	PlaceFunc    func(ctx context.Context, req domain.PlaceOrderRequest) (string, error)
	StatusesFunc func(ctx context.Context, ids []string) (map[string]domain.RemoteStatus, error)
	RefillFunc   func(ctx context.Context, remoteID string) (string, error)
	CancelFunc   func(ctx context.Context, remoteID string) (bool, error)
	ServicesFunc func(ctx context.Context) ([]domain.RemoteService, error)

	PlaceCalls   atomic.Int32
	StatusCalls  atomic.Int32
	RefillCalls  atomic.Int32
	CancelCalls  atomic.Int32
	BalanceCalls atomic.Int32

	mu     sync.Mutex
	placed []domain.PlaceOrderRequest
}

var _ domain.ProviderAdapter = (*FakeAdapter)(nil)

func (f *FakeAdapter) GetBalance(ctx context.Context) (domain.ProviderBalance, error) {
	f.BalanceCalls.Add(1)
	if f.BalanceFunc != nil {
		return f.BalanceFunc(ctx)
	}
	return domain.ProviderBalance{Amount: decimal.Zero, Currency: "USD"}, nil
}

func (f *FakeAdapter) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (string, error) {
	f.PlaceCalls.Add(1)
	f.mu.Lock()
	f.placed = append(f.placed, req)
	f.mu.Unlock()
	if f.PlaceFunc != nil {
		return f.PlaceFunc(ctx, req)
	}
	return fmt.Sprintf("R%d", f.PlaceCalls.Load()), nil
}

// Placed returns the submissions seen so far.
func (f *FakeAdapter) Placed() []domain.PlaceOrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.PlaceOrderRequest(nil), f.placed...)
}

func (f *FakeAdapter) GetStatus(ctx context.Context, remoteOrderID string) (domain.RemoteStatus, error) {
	out, err := f.GetStatuses(ctx, []string{remoteOrderID})
	if err != nil {
		return domain.RemoteStatus{}, err
	}
	st, ok := out[remoteOrderID]
	if !ok {
		return domain.RemoteStatus{}, &domain.ProviderError{Action: string(domain.ActionStatus), Message: "order not found"}
	}
	if st.Err != nil {
		return domain.RemoteStatus{}, st.Err
	}
	return st, nil
}

func (f *FakeAdapter) GetStatuses(ctx context.Context, ids []string) (map[string]domain.RemoteStatus, error) {
	f.StatusCalls.Add(1)
	if f.StatusesFunc != nil {
		return f.StatusesFunc(ctx, ids)
	}
	return map[string]domain.RemoteStatus{}, nil
}

func (f *FakeAdapter) RequestRefill(ctx context.Context, remoteOrderID string) (string, error) {
	f.RefillCalls.Add(1)
	if f.RefillFunc != nil {
		return f.RefillFunc(ctx, remoteOrderID)
	}
	return "F-" + remoteOrderID, nil
}

func (f *FakeAdapter) RequestCancel(ctx context.Context, remoteOrderID string) (bool, error) {
	f.CancelCalls.Add(1)
	if f.CancelFunc != nil {
		return f.CancelFunc(ctx, remoteOrderID)
	}
	return true, nil
}

func (f *FakeAdapter) ListServices(ctx context.Context) ([]domain.RemoteService, error) {
	if f.ServicesFunc != nil {
		return f.ServicesFunc(ctx)
	}
	return nil, nil
}

// FakeFactory hands out the adapter registered for a provider id.
type FakeFactory struct {
	mu       sync.Mutex
	adapters map[string]*FakeAdapter
	built    map[string]int
}

var _ domain.AdapterFactory = (*FakeFactory)(nil)

func NewFakeFactory() *FakeFactory {
	return &FakeFactory{adapters: map[string]*FakeAdapter{}, built: map[string]int{}}
}

func (f *FakeFactory) Set(providerID string, a *FakeAdapter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adapters[providerID] = a
}

func (f *FakeFactory) NewAdapter(p domain.Provider) (domain.ProviderAdapter, error) {
	if err := p.ValidateActivation(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built[p.ID]++
	a, ok := f.adapters[p.ID]
	if !ok {
		a = &FakeAdapter{}
		f.adapters[p.ID] = a
	}
	return a, nil
}

// Built reports how many adapters were built for providerID.
func (f *FakeFactory) Built(providerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.built[providerID]
}
