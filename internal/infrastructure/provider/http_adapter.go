package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

const maxBodyBytes = 4 << 20

// Observer receives one call per HTTP attempt.
type Observer func(providerID, action string, d time.Duration, err error)

type Options struct {
	Client         *http.Client
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Observer       Observer
	Logger         *slog.Logger
}

// HTTPAdapter speaks the common reseller panel protocol. Everything vendor
// specific comes from the provider record, so one implementation serves
// every vendor.
type HTTPAdapter struct {
	cfg      domain.Provider
	client   *http.Client
	timeout  time.Duration
	policy   retryPolicy
	observer Observer
	logger   *slog.Logger
}

var _ domain.ProviderAdapter = (*HTTPAdapter)(nil)

func NewHTTPAdapter(p domain.Provider, opts Options) (*HTTPAdapter, error) {
	if err := p.ValidateActivation(); err != nil {
		return nil, err
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = opts.Timeout
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := retryPolicy{
		maxRetries:     uint64(max(opts.MaxRetries, 0)),
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
	}
	if policy.initialBackoff <= 0 {
		policy.initialBackoff = 200 * time.Millisecond
	}
	if policy.maxBackoff <= 0 {
		policy.maxBackoff = 5 * time.Second
	}
	return &HTTPAdapter{
		cfg:      p.Clone(),
		client:   client,
		timeout:  timeout,
		policy:   policy,
		observer: opts.Observer,
		logger:   logger.With("provider_id", p.ID),
	}, nil
}

func (a *HTTPAdapter) ProviderID() string { return a.cfg.ID }

func (a *HTTPAdapter) observe(action domain.ProviderAction, d time.Duration, err error) {
	if a.observer != nil {
		a.observer(a.cfg.ID, string(action), d, err)
	}
}

// call sends one request and returns the body of a 2xx answer that is not a
// vendor error.
func (a *HTTPAdapter) call(ctx context.Context, action domain.ProviderAction, p params, remoteID string) ([]byte, error) {
	req, err := a.newRequest(ctx, action, p, remoteID)
	if err != nil {
		return nil, a.networkErr(action, 0, err, false)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, a.networkErr(action, 0, err, isTimeout(ctx, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, a.networkErr(action, resp.StatusCode, fmt.Errorf("read body: %w", err), isTimeout(ctx, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, a.networkErr(action, resp.StatusCode, fmt.Errorf("unexpected status: %s", snippet(body)), false)
	}
	if msg, ok := vendorError(body); ok {
		return nil, &domain.ProviderError{ProviderID: a.cfg.ID, Action: string(action), Message: msg, Raw: body}
	}
	return body, nil
}

func (a *HTTPAdapter) decode(action domain.ProviderAction, status int, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return a.networkErr(action, status, fmt.Errorf("malformed response %s: %w", snippet(body), err), false)
	}
	return nil
}

func (a *HTTPAdapter) networkErr(action domain.ProviderAction, status int, err error, timeout bool) error {
	return domain.NewNetworkError(a.cfg.ID, string(action), status, err, timeout)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func (a *HTTPAdapter) GetBalance(ctx context.Context) (domain.ProviderBalance, error) {
	var out domain.ProviderBalance
	err := a.do(ctx, domain.ActionBalance, true, func(ctx context.Context) error {
		body, err := a.call(ctx, domain.ActionBalance, nil, "")
		if err != nil {
			return err
		}
		var resp balanceResponse
		if err := a.decode(domain.ActionBalance, http.StatusOK, body, &resp); err != nil {
			return err
		}
		out = domain.ProviderBalance{Amount: resp.Balance.Decimal, Currency: strings.ToUpper(resp.Currency)}
		return nil
	})
	return out, err
}

// PlaceOrder is retried only when the vendor deduplicates by our key;
// otherwise a lost response could become two remote orders.
func (a *HTTPAdapter) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (string, error) {
	p := params{
		"service":  req.ServiceRef,
		"link":     req.Link,
		"quantity": req.Quantity,
	}
	if req.Runs > 0 {
		p["runs"] = req.Runs
	}
	if req.Interval > 0 {
		p["interval"] = req.Interval
	}
	retryable := a.cfg.SupportsIdempotency() && req.IdempotencyKey != ""
	if retryable {
		p[a.cfg.IdempotencyParam] = req.IdempotencyKey
	}

	var remoteID string
	err := a.do(ctx, domain.ActionOrder, retryable, func(ctx context.Context) error {
		body, err := a.call(ctx, domain.ActionOrder, cloneParams(p), "")
		if err != nil {
			return err
		}
		var resp addResponse
		if err := a.decode(domain.ActionOrder, http.StatusOK, body, &resp); err != nil {
			return err
		}
		id := strings.TrimSpace(string(resp.Order))
		if id == "" {
			return a.networkErr(domain.ActionOrder, http.StatusOK, fmt.Errorf("response has no order id: %s", snippet(body)), false)
		}
		remoteID = id
		return nil
	})
	return remoteID, err
}

func (a *HTTPAdapter) GetStatus(ctx context.Context, remoteOrderID string) (domain.RemoteStatus, error) {
	var out domain.RemoteStatus
	err := a.do(ctx, domain.ActionStatus, true, func(ctx context.Context) error {
		body, err := a.call(ctx, domain.ActionStatus, params{"order": remoteOrderID}, remoteOrderID)
		if err != nil {
			return err
		}
		var resp statusResponse
		if err := a.decode(domain.ActionStatus, http.StatusOK, body, &resp); err != nil {
			return err
		}
		out = resp.toDomain()
		return nil
	})
	return out, err
}

// GetStatuses uses the multi-order status call in chunks of the vendor's
// batch size. Ids missing from a batch answer get a per-item error.
func (a *HTTPAdapter) GetStatuses(ctx context.Context, remoteOrderIDs []string) (map[string]domain.RemoteStatus, error) {
	out := make(map[string]domain.RemoteStatus, len(remoteOrderIDs))
	if len(remoteOrderIDs) == 0 {
		return out, nil
	}
	if !a.cfg.BatchStatus {
		for _, id := range remoteOrderIDs {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			st, err := a.GetStatus(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrNetwork) {
					return out, err
				}
				st = domain.RemoteStatus{Err: err}
			}
			out[id] = st
		}
		return out, nil
	}

	size := a.cfg.BatchSize()
	for start := 0; start < len(remoteOrderIDs); start += size {
		end := min(start+size, len(remoteOrderIDs))
		chunk := remoteOrderIDs[start:end]
		err := a.do(ctx, domain.ActionStatus, true, func(ctx context.Context) error {
			body, err := a.call(ctx, domain.ActionStatus, params{"orders": strings.Join(chunk, ",")}, "")
			if err != nil {
				return err
			}
			var resp map[string]json.RawMessage
			if err := a.decode(domain.ActionStatus, http.StatusOK, body, &resp); err != nil {
				return err
			}
			for _, id := range chunk {
				raw, ok := resp[id]
				if !ok {
					out[id] = domain.RemoteStatus{Err: a.itemErr(id, "missing from batch response", nil)}
					continue
				}
				var item statusResponse
				if err := json.Unmarshal(raw, &item); err != nil {
					out[id] = domain.RemoteStatus{Err: a.itemErr(id, "malformed status item", raw)}
					continue
				}
				if msg := strings.TrimSpace(string(item.Error)); msg != "" {
					out[id] = domain.RemoteStatus{Err: a.itemErr(id, msg, raw)}
					continue
				}
				out[id] = item.toDomain()
			}
			return nil
		})
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (a *HTTPAdapter) itemErr(remoteID, msg string, raw []byte) error {
	return &domain.ProviderError{
		ProviderID: a.cfg.ID,
		Action:     string(domain.ActionStatus),
		Message:    fmt.Sprintf("order %s: %s", remoteID, msg),
		Raw:        raw,
	}
}

func (r statusResponse) toDomain() domain.RemoteStatus {
	return domain.RemoteStatus{
		Status:     strings.TrimSpace(r.Status),
		Remaining:  int64(r.Remains),
		StartCount: int64(r.StartCount),
		Charge:     r.Charge.Decimal,
		Currency:   strings.ToUpper(r.Currency),
	}
}

// RequestRefill is never retried: a second refill request may be billed.
func (a *HTTPAdapter) RequestRefill(ctx context.Context, remoteOrderID string) (string, error) {
	var refillID string
	err := a.do(ctx, domain.ActionRefill, false, func(ctx context.Context) error {
		body, err := a.call(ctx, domain.ActionRefill, params{"order": remoteOrderID}, remoteOrderID)
		if err != nil {
			return err
		}
		var resp refillResponse
		if err := a.decode(domain.ActionRefill, http.StatusOK, body, &resp); err != nil {
			return err
		}
		refillID = strings.TrimSpace(string(resp.Refill))
		if refillID == "" {
			return &domain.ProviderError{ProviderID: a.cfg.ID, Action: string(domain.ActionRefill), Message: "refill not accepted", Raw: body}
		}
		return nil
	})
	return refillID, err
}

// RequestCancel accepts both the single object and the list answer shapes.
func (a *HTTPAdapter) RequestCancel(ctx context.Context, remoteOrderID string) (bool, error) {
	var accepted bool
	err := a.do(ctx, domain.ActionCancel, false, func(ctx context.Context) error {
		body, err := a.call(ctx, domain.ActionCancel, params{"orders": remoteOrderID}, remoteOrderID)
		if err != nil {
			return err
		}
		var items []cancelItem
		trimmed := strings.TrimSpace(string(body))
		if strings.HasPrefix(trimmed, "[") {
			if err := a.decode(domain.ActionCancel, http.StatusOK, body, &items); err != nil {
				return err
			}
		} else {
			var single cancelItem
			if err := a.decode(domain.ActionCancel, http.StatusOK, body, &single); err != nil {
				return err
			}
			items = []cancelItem{single}
		}
		for _, item := range items {
			if id := string(item.Order); id != "" && id != remoteOrderID {
				continue
			}
			ok, reason := cancelAccepted(item.Cancel)
			if !ok {
				return &domain.ProviderError{ProviderID: a.cfg.ID, Action: string(domain.ActionCancel), Message: reason, Raw: body}
			}
			accepted = true
			return nil
		}
		return &domain.ProviderError{ProviderID: a.cfg.ID, Action: string(domain.ActionCancel), Message: "order missing from cancel response", Raw: body}
	})
	return accepted, err
}

func (a *HTTPAdapter) ListServices(ctx context.Context) ([]domain.RemoteService, error) {
	var out []domain.RemoteService
	err := a.do(ctx, domain.ActionServices, true, func(ctx context.Context) error {
		body, err := a.call(ctx, domain.ActionServices, nil, "")
		if err != nil {
			return err
		}
		var items []serviceItem
		if err := a.decode(domain.ActionServices, http.StatusOK, body, &items); err != nil {
			return err
		}
		out = make([]domain.RemoteService, 0, len(items))
		for _, it := range items {
			out = append(out, domain.RemoteService{
				ServiceRef: string(it.Service),
				Name:       it.Name,
				Category:   it.Category,
				Rate:       it.Rate.Decimal,
				Min:        int64(it.Min),
				Max:        int64(it.Max),
				Refill:     bool(it.Refill),
				Cancel:     bool(it.Cancel),
			})
		}
		return nil
	})
	return out, err
}

func cloneParams(p params) params {
	out := make(params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
