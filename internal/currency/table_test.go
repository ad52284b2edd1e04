package currency

import (
	"context"
	"errors"
	"testing"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable("USD", []domain.Currency{
		{Code: "USD", Symbol: "$", Rate: dec("1"), Enabled: true},
		{Code: "EUR", Symbol: "€", Rate: dec("0.92"), Enabled: true},
		{Code: "TRY", Symbol: "₺", Rate: dec("32.456"), Enabled: true},
		{Code: "JPY", Symbol: "¥", Rate: dec("151.3"), Enabled: true},
		{Code: "RUB", Symbol: "₽", Rate: dec("91.7"), Enabled: false},
	})
	require.NoError(t, err)
	return table
}

func TestNewTableRejectsBaseRateOtherThanOne(t *testing.T) {
	_, err := NewTable("USD", []domain.Currency{{Code: "USD", Rate: dec("1.1")}})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NewTable("USD", []domain.Currency{{Code: "EUR", Rate: dec("0")}})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestNewTableAddsMissingBase(t *testing.T) {
	table, err := NewTable("usd", nil)
	require.NoError(t, err)
	c, err := table.Get("USD")
	require.NoError(t, err)
	assert.True(t, c.IsBase)
	assert.True(t, c.Rate.Equal(dec("1")))
}

func TestConvert(t *testing.T) {
	table := testTable(t)

	got, err := table.Convert(dec("10"), "USD", "EUR")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("9.2")), got.String())

	got, err = table.Convert(dec("9.2"), "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("10")), got.String())

	got, err = table.Convert(dec("9.2"), "EUR", "TRY")
	require.NoError(t, err)
	assert.Equal(t, "324.56", table.Round(got, "TRY").String())

	got, err = table.Convert(dec("5"), "EUR", "EUR")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("5")))
}

func TestConvertRejectsDisabledAndUnknown(t *testing.T) {
	table := testTable(t)

	_, err := table.Convert(dec("1"), "USD", "RUB")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = table.Convert(dec("1"), "USD", "XXX")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRoundTripWithinOneMinorUnit(t *testing.T) {
	table := testTable(t)
	codes := []string{"USD", "EUR", "TRY", "JPY"}
	amounts := []string{"0.01", "1", "9.99", "10.00", "123.45", "1000000.37", "0.07"}

	for _, a := range codes {
		for _, b := range codes {
			for _, raw := range amounts {
				amount := table.Round(dec(raw), a)
				there, err := table.Convert(amount, a, b)
				require.NoError(t, err)
				back, err := table.Convert(there, b, a)
				require.NoError(t, err)
				back = table.Round(back, a)

				tolerance := table.MinorUnit(a)
				diff := back.Sub(amount).Abs()
				assert.True(t, diff.LessThanOrEqual(tolerance), "%s %s->%s->%s: got %s (diff %s)", raw, a, b, a, back, diff)
			}
		}
	}
}

func TestISOPlaces(t *testing.T) {
	table := testTable(t)
	assert.Equal(t, "152", table.Round(dec("151.5"), "JPY").String())
	assert.Equal(t, "10.13", table.Round(dec("10.126"), "USD").String())
	assert.True(t, table.MinorUnit("JPY").Equal(dec("1")))
}

func TestQuote(t *testing.T) {
	table := testTable(t)

	q, err := table.Quote(dec("0.01"), 1000, "USD")
	require.NoError(t, err)
	assert.True(t, q.Base.Equal(dec("10")))
	assert.Equal(t, "10", q.Settlement.String())
	assert.Equal(t, "USD", q.Currency)

	q, err = table.Quote(dec("0.0123"), 777, "EUR")
	require.NoError(t, err)
	assert.True(t, q.Base.Equal(dec("9.5571")))
	assert.Equal(t, "8.79", q.Settlement.String())

	_, err = table.Quote(dec("0.01"), 0, "USD")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestShare(t *testing.T) {
	table := testTable(t)
	assert.Equal(t, "2.5", table.Share(dec("10"), 250, 1000, "USD").String())
	assert.True(t, table.Share(dec("10"), 0, 1000, "USD").IsZero())
	assert.True(t, table.Share(dec("10"), 2000, 1000, "USD").Equal(dec("10")))
}

func TestFormat(t *testing.T) {
	table := testTable(t)

	s, err := table.Format(dec("10"), "USD")
	require.NoError(t, err)
	assert.Equal(t, "$10.00", s)

	s, err = table.Format(dec("1234.5"), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "€1,234.50", s)

	s, err = table.Format(dec("-3.456"), "USD")
	require.NoError(t, err)
	assert.Equal(t, "-$3.46", s)

	s, err = table.Format(dec("123456789012345678.915"), "USD")
	require.NoError(t, err)
	assert.Equal(t, "$123,456,789,012,345,678.92", s)

	s, err = table.Format(dec("999.999"), "USD")
	require.NoError(t, err)
	assert.Equal(t, "$1,000.00", s)

	_, err = table.Format(dec("1"), "XXX")
	assert.Error(t, err)
}

type memCurrencyRepo struct {
	list []domain.Currency
}

func (r *memCurrencyRepo) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	return r.list, nil
}

func (r *memCurrencyRepo) SaveCurrency(ctx context.Context, c domain.Currency) error {
	for i := range r.list {
		if r.list[i].Code == c.Code {
			r.list[i] = c
			return nil
		}
	}
	r.list = append(r.list, c)
	return nil
}

func TestBookSwapsTableOnSave(t *testing.T) {
	repo := &memCurrencyRepo{}
	book, err := NewBook(repo, "USD")
	require.NoError(t, err)

	before := book.Table()
	require.NoError(t, book.SaveCurrency(context.Background(), domain.Currency{Code: "eur", Symbol: "€", Rate: dec("0.5"), Enabled: true}))
	after := book.Table()
	assert.NotSame(t, before, after)

	got, err := book.ConvertAmount(dec("3"), "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "1.5", got.String())

	_, err = before.Get("EUR")
	assert.Error(t, err, "old snapshot stays untouched")

	err = book.SaveCurrency(context.Background(), domain.Currency{Code: "GBP", Rate: dec("-1"), Enabled: true})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

type fakeFeed struct {
	rates map[string]decimal.Decimal
	err   error
	base  string
}

func (f *fakeFeed) Name() string { return "fake" }

func (f *fakeFeed) FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	f.base = base
	return f.rates, f.err
}

func TestBookRefreshFromFeed(t *testing.T) {
	ctx := context.Background()
	repo := &memCurrencyRepo{list: []domain.Currency{
		{Code: "EUR", Symbol: "€", Rate: dec("0.9"), Enabled: true},
		{Code: "TRY", Symbol: "₺", Rate: dec("30"), Enabled: true},
		{Code: "RUB", Symbol: "₽", Rate: dec("90"), Enabled: false},
	}}
	book, err := NewBook(repo, "USD")
	require.NoError(t, err)
	require.NoError(t, book.Reload(ctx))

	// Without a feed Refresh only reloads.
	n, err := book.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	feed := &fakeFeed{rates: map[string]decimal.Decimal{
		"EUR": dec("0.95"),
		"TRY": dec("30"),
		"RUB": dec("95"),
		"GBP": dec("0.8"),
		"USD": dec("2"),
	}}
	book.SetFeed(feed)
	n, err = book.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", feed.base)
	assert.Equal(t, 1, n, "only EUR changed among enabled currencies")

	eur, err := book.Table().Get("EUR")
	require.NoError(t, err)
	assert.True(t, dec("0.95").Equal(eur.Rate))
	rub, err := book.Table().Get("RUB")
	require.NoError(t, err)
	assert.True(t, dec("90").Equal(rub.Rate), "disabled currencies are left alone")
	_, err = book.Table().Get("GBP")
	assert.Error(t, err, "the feed never adds currencies")
	usd, err := book.Table().Get("USD")
	require.NoError(t, err)
	assert.True(t, dec("1").Equal(usd.Rate))

	feed.err = errors.New("feed down")
	_, err = book.Refresh(ctx)
	assert.Error(t, err)
	eur, err = book.Table().Get("EUR")
	require.NoError(t, err)
	assert.True(t, dec("0.95").Equal(eur.Rate), "a failed refresh keeps the last rates")
}
