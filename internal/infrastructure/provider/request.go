package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

// params keeps typed values so the JSON transport can send numbers as numbers.
type params map[string]any

func (p params) values() url.Values {
	out := url.Values{}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.Set(k, fmt.Sprint(p[k]))
	}
	return out
}

// endpoint joins the base url with the action path template. "{id}" in the
// template is replaced by the escaped remote order id.
func endpoint(base, template, remoteID string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if template == "" {
		return u, nil
	}
	path := strings.ReplaceAll(template, "{id}", url.PathEscape(remoteID))
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path template %q: %w", template, err)
	}
	joined := *u
	raw := strings.TrimRight(u.EscapedPath(), "/") + "/" + strings.TrimLeft(ref.EscapedPath(), "/")
	if joined.Path, err = url.PathUnescape(raw); err != nil {
		return nil, fmt.Errorf("path template %q: %w", template, err)
	}
	joined.RawPath = raw
	if ref.RawQuery != "" {
		q := joined.Query()
		for k, vs := range ref.Query() {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		joined.RawQuery = q.Encode()
	}
	return &joined, nil
}

func (a *HTTPAdapter) newRequest(ctx context.Context, action domain.ProviderAction, p params, remoteID string) (*http.Request, error) {
	cfg := a.cfg
	u, err := endpoint(cfg.BaseURL, cfg.Path(action), remoteID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = params{}
	}
	p[cfg.KeyParamName()] = cfg.APIKey
	if name := cfg.ActionParamName(); name != "" {
		p[name] = cfg.ActionValue(action)
	}

	var req *http.Request
	switch cfg.Transport {
	case domain.TransportQuery:
		q := u.Query()
		for k, vs := range p.values() {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	case domain.TransportJSON:
		body, mErr := json.Marshal(p)
		if mErr != nil {
			return nil, fmt.Errorf("marshal request: %w", mErr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(p.values().Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
