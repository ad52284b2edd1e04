package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

func testProvider(baseURL string) domain.Provider {
	return domain.Provider{
		ID:        "prov-1",
		Name:      "panel",
		Status:    domain.ProviderActive,
		BaseURL:   baseURL,
		APIKey:    "secret",
		Transport: domain.TransportForm,
		Timeout:   time.Second,
	}
}

func fastOptions() Options {
	return Options{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func newAdapter(t *testing.T, p domain.Provider, opts Options) *HTTPAdapter {
	t.Helper()
	a, err := NewHTTPAdapter(p, opts)
	require.NoError(t, err)
	return a
}

func TestNewHTTPAdapter_RequiresActivationFields(t *testing.T) {
	p := testProvider("http://example.com")
	p.APIKey = ""
	_, err := NewHTTPAdapter(p, Options{})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetBalance_FormTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("key"))
		assert.Equal(t, "balance", r.PostForm.Get("action"))
		fmt.Fprint(w, `{"balance":"100.84292","currency":"usd"}`)
	}))
	defer srv.Close()

	bal, err := newAdapter(t, testProvider(srv.URL), fastOptions()).GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100.84292", bal.Amount.String())
	assert.Equal(t, "USD", bal.Currency)
}

func TestPlaceOrder_ParsesNumericAndStringIDs(t *testing.T) {
	for name, body := range map[string]string{
		"string":  `{"order":"R123"}`,
		"numeric": `{"order":123}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "add", r.PostForm.Get("action"))
				assert.Equal(t, "1000", r.PostForm.Get("quantity"))
				assert.Equal(t, "svc-7", r.PostForm.Get("service"))
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			id, err := newAdapter(t, testProvider(srv.URL), fastOptions()).PlaceOrder(context.Background(), domain.PlaceOrderRequest{
				ServiceRef: "svc-7", Link: "https://x.test/p", Quantity: 1000,
			})
			require.NoError(t, err)
			assert.Contains(t, []string{"R123", "123"}, id)
		})
	}
}

func TestCall_VendorErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"Incorrect service ID"}`)
	}))
	defer srv.Close()

	_, err := newAdapter(t, testProvider(srv.URL), fastOptions()).PlaceOrder(context.Background(), domain.PlaceOrderRequest{ServiceRef: "1", Quantity: 10})
	require.ErrorIs(t, err, domain.ErrProvider)

	var perr *domain.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Incorrect service ID", perr.Message)
	assert.JSONEq(t, `{"error":"Incorrect service ID"}`, string(perr.Raw))
}

func TestPlaceOrder_NotRetriedWithoutIdempotency(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newAdapter(t, testProvider(srv.URL), fastOptions()).PlaceOrder(context.Background(), domain.PlaceOrderRequest{ServiceRef: "1", Quantity: 10})
	require.ErrorIs(t, err, domain.ErrNetwork)

	var nerr *domain.NetworkError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, http.StatusBadGateway, nerr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestPlaceOrder_RetriedWithIdempotencyParam(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "idem-1", r.PostForm.Get("client_ref"))
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"order":"R9"}`)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	p.IdempotencyParam = "client_ref"
	id, err := newAdapter(t, p, fastOptions()).PlaceOrder(context.Background(), domain.PlaceOrderRequest{
		ServiceRef: "1", Quantity: 10, IdempotencyKey: "idem-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "R9", id)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCall_TimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	p.Timeout = 30 * time.Millisecond
	_, err := newAdapter(t, p, Options{}).PlaceOrder(context.Background(), domain.PlaceOrderRequest{ServiceRef: "1", Quantity: 10})
	require.ErrorIs(t, err, domain.ErrNetwork)

	var nerr *domain.NetworkError
	require.True(t, errors.As(err, &nerr))
	assert.True(t, nerr.Timeout())
}

func TestCall_MalformedBodyIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	}))
	defer srv.Close()

	_, err := newAdapter(t, testProvider(srv.URL), Options{}).GetBalance(context.Background())
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.NotErrorIs(t, err, domain.ErrProvider)
}

func TestGetStatus_RetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "R123", r.PostForm.Get("order"))
		fmt.Fprint(w, `{"charge":"0.27819","start_count":"3572","status":"Completed","remains":"0","currency":"USD"}`)
	}))
	defer srv.Close()

	var observed atomic.Int32
	opts := fastOptions()
	opts.Observer = func(providerID, action string, d time.Duration, err error) {
		assert.Equal(t, "prov-1", providerID)
		assert.Equal(t, "status", action)
		observed.Add(1)
	}
	st, err := newAdapter(t, testProvider(srv.URL), opts).GetStatus(context.Background(), "R123")
	require.NoError(t, err)
	assert.Equal(t, "Completed", st.Status)
	assert.Equal(t, int64(0), st.Remaining)
	assert.Equal(t, int64(3572), st.StartCount)
	assert.Equal(t, "0.27819", st.Charge.String())
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(2), observed.Load())
}

func TestGetStatuses_BatchesAndReportsItemErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		ids := strings.Split(r.PostForm.Get("orders"), ",")
		assert.LessOrEqual(t, len(ids), 2)
		resp := map[string]any{}
		for _, id := range ids {
			switch id {
			case "3":
				resp[id] = map[string]string{"error": "Incorrect order ID"}
			default:
				resp[id] = map[string]any{"status": "In progress", "remains": 10, "start_count": "5"}
			}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	p.BatchStatus = true
	p.MaxBatch = 2
	out, err := newAdapter(t, p, fastOptions()).GetStatuses(context.Background(), []string{"1", "2", "3"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "In progress", out["1"].Status)
	assert.Equal(t, int64(10), out["2"].Remaining)
	assert.ErrorIs(t, out["3"].Err, domain.ErrProvider)
}

func TestJSONTransport_PathTemplateWithoutActionParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/orders/R%2F1/status", r.URL.EscapedPath())
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "secret", body["api_token"])
		_, hasAction := body["action"]
		assert.False(t, hasAction)
		fmt.Fprint(w, `{"status":"Partial","remains":"250"}`)
	}))
	defer srv.Close()

	p := testProvider(srv.URL + "/api/v2")
	p.Transport = domain.TransportJSON
	p.KeyParam = "api_token"
	p.ActionParam = "-"
	p.Paths = map[domain.ProviderAction]string{domain.ActionStatus: "/orders/{id}/status"}
	st, err := newAdapter(t, p, fastOptions()).GetStatus(context.Background(), "R/1")
	require.NoError(t, err)
	assert.Equal(t, "Partial", st.Status)
	assert.Equal(t, int64(250), st.Remaining)
}

func TestQueryTransport_UsesGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "services", r.URL.Query().Get("action"))
		fmt.Fprint(w, `[{"service":1,"name":"Followers","category":"First Category","rate":"0.90","min":"50","max":"10000","refill":true,"cancel":"1"}]`)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	p.Transport = domain.TransportQuery
	services, err := newAdapter(t, p, fastOptions()).ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "1", services[0].ServiceRef)
	assert.Equal(t, "0.9", services[0].Rate.String())
	assert.Equal(t, int64(50), services[0].Min)
	assert.True(t, services[0].Refill)
	assert.True(t, services[0].Cancel)
}

func TestRequestCancel_ResponseShapes(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "list accepted", body: `[{"order":"R1","cancel":1}]`},
		{name: "object accepted", body: `{"order":"R1","cancel":"1"}`},
		{name: "list rejected", body: `[{"order":"R1","cancel":{"error":"Incorrect order ID"}}]`, wantErr: domain.ErrProvider},
		{name: "top level error", body: `{"error":"Cancel is disabled"}`, wantErr: domain.ErrProvider},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			ok, err := newAdapter(t, testProvider(srv.URL), fastOptions()).RequestCancel(context.Background(), "R1")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestRequestRefill_NeverRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newAdapter(t, testProvider(srv.URL), fastOptions()).RequestRefill(context.Background(), "R1")
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRequestRefill_ReturnsRefillID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"refill":"1"}`)
	}))
	defer srv.Close()

	id, err := NewFactory(fastOptions()).NewAdapter(testProvider(srv.URL))
	require.NoError(t, err)
	refillID, err := id.RequestRefill(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "1", refillID)
}
