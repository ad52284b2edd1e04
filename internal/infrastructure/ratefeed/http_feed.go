// Package ratefeed pulls exchange rates from an HTTP endpoint that answers
// {"base": "USD", "rates": {"EUR": 0.92, ...}}.
package ratefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const maxBody = 1 << 20

type HTTPFeed struct {
	endpoint string
	client   *http.Client
}

type ratesResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func NewHTTPFeed(endpoint string, timeout time.Duration) *HTTPFeed {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPFeed{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFeed) Name() string {
	u, err := url.Parse(f.endpoint)
	if err != nil || u.Host == "" {
		return f.endpoint
	}
	return u.Host
}

// FetchRates asks for rates against base. A feed answering for another
// base is rejected rather than silently rescaled.
func (f *HTTPFeed) FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("base", base)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate feed returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rate feed response: %w", err)
	}
	if parsed.Base != "" && !strings.EqualFold(parsed.Base, base) {
		return nil, fmt.Errorf("rate feed quoted base %s, want %s", parsed.Base, base)
	}

	out := make(map[string]decimal.Decimal, len(parsed.Rates))
	for code, rate := range parsed.Rates {
		if !rate.IsPositive() {
			continue
		}
		out[strings.ToUpper(code)] = rate
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rate feed returned no usable rates")
	}
	return out, nil
}
