package provider

import "github.com/LavaJover/shvark-smm-service/internal/domain"

// Factory builds HTTP adapters sharing one client and retry policy.
type Factory struct {
	opts Options
}

func NewFactory(opts Options) *Factory {
	return &Factory{opts: opts}
}

func (f *Factory) NewAdapter(p domain.Provider) (domain.ProviderAdapter, error) {
	return NewHTTPAdapter(p, f.opts)
}
