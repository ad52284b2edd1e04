package currency

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/shopspring/decimal"
)

// RateFeed quotes market rates as units of each currency per one unit of
// base.
type RateFeed interface {
	Name() string
	FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

// Book keeps the current Table and swaps it on reload.
type Book struct {
	repo    domain.CurrencyRepository
	base    string
	feed    RateFeed
	current atomic.Pointer[Table]
}

func NewBook(repo domain.CurrencyRepository, base string) (*Book, error) {
	b := &Book{repo: repo, base: base}
	t, err := NewTable(base, nil)
	if err != nil {
		return nil, err
	}
	b.current.Store(t)
	return b, nil
}

func (b *Book) Reload(ctx context.Context) error {
	list, err := b.repo.ListCurrencies(ctx)
	if err != nil {
		return fmt.Errorf("list currencies: %w", err)
	}
	t, err := NewTable(b.base, list)
	if err != nil {
		return err
	}
	b.current.Store(t)
	return nil
}

// SetFeed makes Refresh pull rates from f.
func (b *Book) SetFeed(f RateFeed) {
	b.feed = f
}

// Refresh stores fresh feed rates for every enabled currency the feed quotes
// and reloads the table. Without a feed it only reloads.
func (b *Book) Refresh(ctx context.Context) (int, error) {
	if b.feed == nil {
		return 0, b.Reload(ctx)
	}
	rates, err := b.feed.FetchRates(ctx, b.base)
	if err != nil {
		return 0, fmt.Errorf("fetch rates from %s: %w", b.feed.Name(), err)
	}
	updated := 0
	for _, c := range b.Table().Enabled() {
		if c.IsBase {
			continue
		}
		rate, ok := rates[c.Code]
		if !ok || !rate.IsPositive() || rate.Equal(c.Rate) {
			continue
		}
		c.Rate = rate
		if err := b.repo.SaveCurrency(ctx, c); err != nil {
			return updated, fmt.Errorf("save %s rate: %w", c.Code, err)
		}
		updated++
	}
	return updated, b.Reload(ctx)
}

func (b *Book) Table() *Table {
	return b.current.Load()
}

func (b *Book) SaveCurrency(ctx context.Context, c domain.Currency) error {
	c.Code = normalize(c.Code)
	if c.Code == b.current.Load().Base() {
		c.Rate = decimal.NewFromInt(1)
		c.Enabled = true
	} else if !c.Rate.IsPositive() {
		return domain.NewValidationError("rate", "currency %s must have a positive rate", c.Code)
	}
	if err := b.repo.SaveCurrency(ctx, c); err != nil {
		return err
	}
	return b.Reload(ctx)
}

// ConvertAmount converts and rounds to the target's settlement precision.
func (b *Book) ConvertAmount(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	t := b.Table()
	out, err := t.Convert(amount, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return t.Round(out, to), nil
}
