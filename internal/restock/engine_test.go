package restock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeStore struct {
	candidates []types.RestockCandidate
	history    map[int64]decimal.Decimal
	offers     map[int64][]types.RestockOffer
	saved      []types.RestockDecision
	since      time.Time
	threshold  decimal.Decimal
}

func (s *fakeStore) RestockCandidates(_ context.Context, thresholdPct decimal.Decimal) ([]types.RestockCandidate, error) {
	s.threshold = thresholdPct
	return s.candidates, nil
}

func (s *fakeStore) HistoricalMinPrices(_ context.Context, _ []int64, since time.Time) (map[int64]decimal.Decimal, error) {
	s.since = since
	return s.history, nil
}

func (s *fakeStore) PriceListOffers(_ context.Context, _ []int64) (map[int64][]types.RestockOffer, error) {
	return s.offers, nil
}

func (s *fakeStore) SaveRestockDecisions(_ context.Context, decisions []types.RestockDecision) error {
	s.saved = append(s.saved, decisions...)
	return nil
}

type fakeMarketplace struct {
	offers  map[string][]types.MarketplaceOffer
	failOEM string
	basket  []int
	ordered int
}

func (m *fakeMarketplace) GetOffers(_ context.Context, oem, _ string, withoutCross bool) ([]types.MarketplaceOffer, error) {
	if !withoutCross {
		return nil, errors.New("cross offers requested")
	}
	if oem == m.failOEM {
		return nil, errors.New("marketplace unavailable")
	}
	return m.offers[oem], nil
}

func (m *fakeMarketplace) AddToBasket(_ context.Context, _ types.MarketplaceOffer, quantity int, _ string) (bool, error) {
	m.basket = append(m.basket, quantity)
	return true, nil
}

func (m *fakeMarketplace) OrderBasket(context.Context) (bool, error) {
	m.ordered++
	return true, nil
}

func pricelistOffer(provider int64, price string, qty int) types.RestockOffer {
	return types.RestockOffer{Source: types.OfferFromPriceList, ProviderID: types.Int64Ptr(provider), Price: dec(price), Quantity: qty}
}

func fixture() (*fakeStore, *fakeMarketplace) {
	store := &fakeStore{
		candidates: []types.RestockCandidate{
			{AutoPartID: 1, Brand: "BOSCH", OEM: "A1", CurrentStock: 0, MinimumBalance: 5},
			{AutoPartID: 2, Brand: "MANN", OEM: "B2", CurrentStock: 1, MinimumBalance: 6},
			{AutoPartID: 3, Brand: "NGK", OEM: "C3", CurrentStock: 0, MinimumBalance: 1},
			{AutoPartID: 4, Brand: "FEBI", OEM: "D4", CurrentStock: 3, MinimumBalance: 5},
		},
		history: map[int64]decimal.Decimal{
			1: dec("100"),
			2: dec("50"),
			3: dec("1000"),
			4: dec("10"),
		},
		offers: map[int64][]types.RestockOffer{
			1: {
				pricelistOffer(10, "120", 10),
				pricelistOffer(11, "110", 2),
				pricelistOffer(12, "112", 10),
			},
			3: {pricelistOffer(10, "1000", 1)},
			4: {pricelistOffer(11, "10", 2)},
		},
	}
	market := &fakeMarketplace{offers: map[string][]types.MarketplaceOffer{
		"B2": {
			{Cost: dec("45"), Qnt: 3, MinQnt: 1, HashKey: "h1"},
			{Cost: dec("50"), Qnt: 10, MinQnt: 4, HashKey: "h2"},
			{Cost: dec("70"), Qnt: 100, MinQnt: 1, HashKey: "h3"},
		},
	}}
	return store, market
}

func newTestEngine(store Store, market *fakeMarketplace, cfg Config) *Engine {
	e := NewEngine(store, market, cfg, zerolog.Nop())
	e.now = func() time.Time { return time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC) }
	return e
}

func TestRun(t *testing.T) {
	store, market := fixture()
	e := newTestEngine(store, market, DefaultConfig())

	res, err := e.Run(context.Background(), Request{Budget: dec("1500")})
	require.NoError(t, err)

	require.Len(t, res.Decisions, 3)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 4, res.Candidates)

	first := res.Decisions[0]
	assert.Equal(t, int64(1), first.AutoPartID)
	assert.Equal(t, 5, first.Quantity)
	assert.True(t, first.UnitPrice.Equal(dec("112")))
	assert.True(t, first.PriceCap.Equal(dec("115")))
	assert.True(t, first.Total.Equal(dec("560")))
	assert.Equal(t, types.OfferFromPriceList, first.Offer.Source)

	second := res.Decisions[1]
	assert.Equal(t, int64(2), second.AutoPartID)
	assert.Equal(t, types.OfferFromMarketplace, second.Offer.Source)
	assert.Equal(t, 8, second.Quantity)
	assert.True(t, second.Total.Equal(dec("400")))
	require.NotNil(t, second.Offer.Marketplace)
	assert.Equal(t, "h2", second.Offer.Marketplace.HashKey)

	// part 3 does not fit the remaining budget, part 4 still does
	assert.Equal(t, int64(4), res.Decisions[2].AutoPartID)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, Skip{AutoPartID: 3, Brand: "NGK", OEM: "C3", Reason: SkipBudget}, res.Skipped[0])

	assert.True(t, res.Spent.Equal(dec("980")))
	assert.Len(t, store.saved, 3)
	for _, d := range store.saved {
		assert.Equal(t, res.RunID, d.RunID)
	}
	assert.True(t, store.threshold.Equal(dec("100")))
	assert.Equal(t, time.Date(2025, 12, 15, 9, 0, 0, 0, time.UTC), store.since)

	assert.Zero(t, res.Ordered)
	assert.Empty(t, market.basket)
}

func TestRunSkips(t *testing.T) {
	t.Run("missing history is skipped when required", func(t *testing.T) {
		store, market := fixture()
		delete(store.history, 4)
		cfg := DefaultConfig()
		cfg.RequirePriceHistory = true

		res, err := newTestEngine(store, market, cfg).Run(context.Background(), Request{Budget: dec("10000")})
		require.NoError(t, err)
		assert.Contains(t, res.Skipped, Skip{AutoPartID: 4, Brand: "FEBI", OEM: "D4", Reason: SkipNoHistory})
	})

	t.Run("missing history accepts any price otherwise", func(t *testing.T) {
		store, market := fixture()
		delete(store.history, 4)
		store.offers[4] = []types.RestockOffer{pricelistOffer(11, "99999", 5)}

		res, err := newTestEngine(store, market, DefaultConfig()).Run(context.Background(), Request{Budget: dec("1000000")})
		require.NoError(t, err)
		require.Len(t, res.Decisions, 4)
		assert.True(t, res.Decisions[3].PriceCap.Equal(NoHistoryCap))
	})

	t.Run("marketplace error skips the part", func(t *testing.T) {
		store, market := fixture()
		market.failOEM = "B2"

		res, err := newTestEngine(store, market, DefaultConfig()).Run(context.Background(), Request{Budget: dec("10000")})
		require.NoError(t, err)
		assert.Contains(t, res.Skipped, Skip{AutoPartID: 2, Brand: "MANN", OEM: "B2", Reason: SkipMarketplaceError})
	})

	t.Run("no offer within cap", func(t *testing.T) {
		store, market := fixture()
		cfg := DefaultConfig()
		cfg.UseMarketplace = false

		res, err := newTestEngine(store, market, cfg).Run(context.Background(), Request{Budget: dec("10000")})
		require.NoError(t, err)
		assert.Contains(t, res.Skipped, Skip{AutoPartID: 2, Brand: "MANN", OEM: "B2", Reason: SkipNoOffer})
	})

	t.Run("satisfied candidates are ignored", func(t *testing.T) {
		store := &fakeStore{candidates: []types.RestockCandidate{{AutoPartID: 9, CurrentStock: 5, MinimumBalance: 5}}}
		res, err := newTestEngine(store, &fakeMarketplace{}, DefaultConfig()).Run(context.Background(), Request{Budget: dec("10")})
		require.NoError(t, err)
		assert.Empty(t, res.Decisions)
		assert.Empty(t, res.Skipped)
		assert.Empty(t, store.saved)
	})
}

func TestRunAutoOrder(t *testing.T) {
	store, market := fixture()
	cfg := DefaultConfig()
	cfg.AutoOrder = true

	res, err := newTestEngine(store, market, cfg).Run(context.Background(), Request{Budget: dec("1500")})
	require.NoError(t, err)
	assert.Equal(t, []int{8}, market.basket)
	assert.Equal(t, 1, market.ordered)
	assert.Equal(t, 1, res.Ordered)
}

func TestRunValidation(t *testing.T) {
	store, market := fixture()
	e := newTestEngine(store, market, DefaultConfig())

	_, err := e.Run(context.Background(), Request{Budget: decimal.Zero})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	zero := decimal.Zero
	_, err = e.Run(context.Background(), Request{Budget: dec("10"), ThresholdPercent: &zero})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	custom := dec("80")
	_, err = e.Run(context.Background(), Request{Budget: dec("10"), ThresholdPercent: &custom})
	require.NoError(t, err)
	assert.True(t, store.threshold.Equal(custom))
}

func TestSelectOffer(t *testing.T) {
	offers := []types.RestockOffer{
		pricelistOffer(1, "10.00", 1),
		pricelistOffer(2, "11.50", 4),
		pricelistOffer(3, "11.50", 9),
	}

	tests := []struct {
		name     string
		cap      string
		needed   int
		found    bool
		provider int64
	}{
		{"cheapest with enough stock", "20", 3, true, 2},
		{"price equal to cap accepted", "11.50", 3, true, 2},
		{"stable order on equal price", "20", 5, true, 3},
		{"cap excludes all covering offers", "11.49", 2, false, 0},
		{"nobody has enough", "20", 10, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, qty, ok := SelectOffer(offers, dec(tt.cap), tt.needed)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.needed, qty)
				assert.Equal(t, tt.provider, *o.ProviderID)
			}
		})
	}
}

func TestOrderQuantity(t *testing.T) {
	tests := []struct {
		needed, minQty, want int
	}{
		{5, 0, 5},
		{5, 1, 5},
		{5, 4, 8},
		{8, 4, 8},
		{1, 10, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OrderQuantity(tt.needed, tt.minQty), "needed=%d min=%d", tt.needed, tt.minQty)
	}
}
