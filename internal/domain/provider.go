package domain

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ProviderStatus string

const (
	ProviderActive    ProviderStatus = "active"
	ProviderInactive  ProviderStatus = "inactive"
	ProviderSuspended ProviderStatus = "suspended"
)

type TransportMode string

const (
	TransportForm  TransportMode = "form"
	TransportQuery TransportMode = "query"
	TransportJSON  TransportMode = "json"
)

type ProviderAction string

const (
	ActionBalance  ProviderAction = "balance"
	ActionServices ProviderAction = "services"
	ActionOrder    ProviderAction = "order"
	ActionStatus   ProviderAction = "status"
	ActionRefill   ProviderAction = "refill"
	ActionCancel   ProviderAction = "cancel"
)

var defaultActionValues = map[ProviderAction]string{
	ActionBalance:  "balance",
	ActionServices: "services",
	ActionOrder:    "add",
	ActionStatus:   "status",
	ActionRefill:   "refill",
	ActionCancel:   "cancel",
}

type Provider struct {
	ID               string
	Name             string
	Status           ProviderStatus
	BaseURL          string
	APIKey           string
	KeyParam         string
	ActionParam      string
	Transport        TransportMode
	Paths            map[ProviderAction]string
	ActionValues     map[ProviderAction]string
	IdempotencyParam string
	BatchStatus      bool
	MaxBatch         int
	RateLimit        float64
	Workers          int
	Timeout          time.Duration
	StatusMap        map[string]OrderStatus
	Balance          decimal.Decimal
	BalanceCurrency  string
	BalanceCheckedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ValidateActivation checks the preconditions every adapter call relies on.
func (p *Provider) ValidateActivation() error {
	if strings.TrimSpace(p.APIKey) == "" {
		return NewValidationError("api_key", "credential is required to activate provider")
	}
	u, err := url.Parse(strings.TrimSpace(p.BaseURL))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return NewValidationError("base_url", "base url %q is not a valid absolute url", p.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewValidationError("base_url", "unsupported scheme %q", u.Scheme)
	}
	return nil
}

func (p *Provider) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	switch p.Transport {
	case TransportForm, TransportQuery, TransportJSON:
	default:
		return NewValidationError("transport", "unknown transport mode %q", p.Transport)
	}
	switch p.Status {
	case ProviderActive:
		return p.ValidateActivation()
	case ProviderInactive, ProviderSuspended:
	default:
		return NewValidationError("status", "unknown provider status %q", p.Status)
	}
	for vendor, local := range p.StatusMap {
		if !local.IsValid() {
			return NewValidationError("status_map", "vendor status %q maps to unknown status %q", vendor, local)
		}
	}
	return nil
}

func (p *Provider) ActionValue(action ProviderAction) string {
	if v, ok := p.ActionValues[action]; ok && v != "" {
		return v
	}
	return defaultActionValues[action]
}

func (p *Provider) Path(action ProviderAction) string {
	return p.Paths[action]
}

func (p *Provider) KeyParamName() string {
	if p.KeyParam == "" {
		return "key"
	}
	return p.KeyParam
}

// ActionParamName returns "" for vendors that select the action by path
// only (configured as "-").
func (p *Provider) ActionParamName() string {
	switch p.ActionParam {
	case "":
		return "action"
	case "-":
		return ""
	}
	return p.ActionParam
}

func (p *Provider) BatchSize() int {
	if !p.BatchStatus {
		return 1
	}
	if p.MaxBatch <= 0 {
		return 100
	}
	return p.MaxBatch
}

func (p *Provider) SupportsIdempotency() bool {
	return p.IdempotencyParam != ""
}

// Clone returns a deep copy so snapshots never share maps.
func (p Provider) Clone() Provider {
	out := p
	out.Paths = make(map[ProviderAction]string, len(p.Paths))
	for k, v := range p.Paths {
		out.Paths[k] = v
	}
	out.ActionValues = make(map[ProviderAction]string, len(p.ActionValues))
	for k, v := range p.ActionValues {
		out.ActionValues[k] = v
	}
	out.StatusMap = make(map[string]OrderStatus, len(p.StatusMap))
	for k, v := range p.StatusMap {
		out.StatusMap[k] = v
	}
	return out
}

type ProviderBalance struct {
	Amount   decimal.Decimal
	Currency string
}

type PlaceOrderRequest struct {
	ServiceRef     string
	Link           string
	Quantity       int64
	Runs           int64
	Interval       int64
	IdempotencyKey string
}

type RemoteStatus struct {
	Status     string
	Remaining  int64
	StartCount int64
	Charge     decimal.Decimal
	Currency   string
	Err        error
}

type RemoteService struct {
	ServiceRef string
	Name       string
	Category   string
	Rate       decimal.Decimal
	Min        int64
	Max        int64
	Refill     bool
	Cancel     bool
}

// ProviderAdapter normalizes one vendor protocol.
type ProviderAdapter interface {
	GetBalance(ctx context.Context) (ProviderBalance, error)
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (string, error)
	GetStatus(ctx context.Context, remoteOrderID string) (RemoteStatus, error)
	GetStatuses(ctx context.Context, remoteOrderIDs []string) (map[string]RemoteStatus, error)
	RequestRefill(ctx context.Context, remoteOrderID string) (string, error)
	RequestCancel(ctx context.Context, remoteOrderID string) (bool, error)
	ListServices(ctx context.Context) ([]RemoteService, error)
}

type ProviderRepository interface {
	SaveProvider(ctx context.Context, p *Provider) error
	GetProvider(ctx context.Context, id string) (*Provider, error)
	ListProviders(ctx context.Context, onlyActive bool) ([]*Provider, error)
	UpdateProviderBalance(ctx context.Context, id string, balance ProviderBalance, at time.Time) error
	SoftDeleteProvider(ctx context.Context, id string) error
}

// AdapterFactory builds an adapter bound to one provider snapshot.
type AdapterFactory interface {
	NewAdapter(p Provider) (ProviderAdapter, error)
}
