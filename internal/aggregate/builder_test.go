package aggregate

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/notify"
	"github.com/partstrade/trade-service/internal/notify/notifytest"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeStore struct {
	fakeSubstitutions
	configs   map[int64]*types.CustomerPriceListConfig
	snapshots map[int64][]types.PriceRow
	parts     map[string]types.AutoPart
	saved     []types.CustomerPriceList
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		configs:   make(map[int64]*types.CustomerPriceListConfig),
		snapshots: make(map[int64][]types.PriceRow),
		parts:     make(map[string]types.AutoPart),
		nextID:    1000,
	}
}

func (s *fakeStore) Synonyms(context.Context, int64) ([]types.Brand, error) { return nil, nil }

func (s *fakeStore) FindBrandByName(context.Context, string) (*types.Brand, error) { return nil, nil }

func (s *fakeStore) FindAutoPart(_ context.Context, brandID int64, oem string) (*types.AutoPart, error) {
	if p, ok := s.parts[fmt.Sprintf("%d|%s", brandID, oem)]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *fakeStore) CreateAutoPart(_ context.Context, p types.AutoPart) (*types.AutoPart, bool, error) {
	s.nextID++
	p.ID = s.nextID
	s.parts[fmt.Sprintf("%d|%s", p.BrandID, p.OEMNumber)] = p
	return &p, true, nil
}

func (s *fakeStore) GetCustomerPriceListConfig(_ context.Context, id int64) (*types.CustomerPriceListConfig, error) {
	cfg, ok := s.configs[id]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "customer config %d not found", id)
	}
	return cfg, nil
}

func (s *fakeStore) LatestPriceRows(_ context.Context, providerConfigID int64) ([]types.PriceRow, error) {
	rows := s.snapshots[providerConfigID]
	return append([]types.PriceRow(nil), rows...), nil
}

func (s *fakeStore) CreateCustomerPriceList(_ context.Context, pl types.CustomerPriceList) (*types.CustomerPriceList, error) {
	s.nextID++
	pl.ID = s.nextID
	s.saved = append(s.saved, pl)
	return &pl, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seededStore() *fakeStore {
	s := newFakeStore()
	email := "buyer@example.com"
	s.configs[1] = &types.CustomerPriceListConfig{
		ID:            1,
		CustomerID:    42,
		Name:          "Main list",
		GeneralMarkup: dec("10"),
		EmailTo:       &email,
		Sources: []types.CustomerPriceListSource{
			{ProviderConfigID: 100, IsOwnPrice: true, Enabled: true},
			{ProviderConfigID: 200, Enabled: true, Markup: dec("5")},
			{ProviderConfigID: 300, Enabled: false},
		},
	}

	own := priceRow(1, "PT100", "PARTSTRADE", 10, "50", false)
	own.BrandID, own.ProviderConfigID = 9, 100
	s.snapshots[100] = []types.PriceRow{own}

	third := priceRow(2, "ABC1", "X", 3, "100", false)
	third.BrandID, third.ProviderConfigID = 4, 200
	cheaperDup := priceRow(5, "PT100", "PARTSTRADE", 1, "1", false)
	cheaperDup.BrandID, cheaperDup.ProviderConfigID = 9, 200
	s.snapshots[200] = []types.PriceRow{third, cheaperDup}

	disabled := priceRow(3, "Q1", "Y", 1, "1", false)
	s.snapshots[300] = []types.PriceRow{disabled}

	s.rules = map[int64][]types.Substitution{
		1: {{SubstitutionBrandID: 7, SubstitutionBrand: "CHERY", SubstitutionOEM: "A11", Priority: 1, QuantityReduction: 2, IsActive: true}},
	}
	return s
}

func TestCompute(t *testing.T) {
	b := NewBuilder(seededStore(), house, nil, zerolog.Nop())

	got, err := b.Compute(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, got.Rows, 3)
	// own-price row beats the cheaper third-party duplicate
	assert.Equal(t, int64(1), got.Rows[0].AutoPartID)
	assert.Equal(t, "55.00", got.Rows[0].Price.StringFixed(2))
	// 100 * 1.05 source markup * 1.10 general
	assert.Equal(t, "ABC1", got.Rows[1].OEM)
	assert.Equal(t, "115.50", got.Rows[1].Price.StringFixed(2))
	// substitution of the own row
	assert.Equal(t, "A11", got.Rows[2].OEM)
	assert.Equal(t, 8, got.Rows[2].Quantity)
	assert.Equal(t, "55.00", got.Rows[2].Price.StringFixed(2))
}

func TestComputeErrors(t *testing.T) {
	s := seededStore()
	s.configs[2] = &types.CustomerPriceListConfig{ID: 2, Name: "empty"}

	b := NewBuilder(s, house, nil, zerolog.Nop())

	_, err := b.Compute(context.Background(), 2)
	assert.Equal(t, apperr.CodeConfig, apperr.CodeOf(err))

	_, err = b.Compute(context.Background(), 99)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestOffersBindsSubstitutionsToParts(t *testing.T) {
	s := seededStore()
	b := NewBuilder(s, house, nil, zerolog.Nop())

	got, err := b.Offers(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, got.Rows, 3)
	sub := got.Rows[2]
	assert.True(t, sub.Substituted)
	assert.NotZero(t, sub.AutoPartID)
	part, ok := s.parts[fmt.Sprintf("%d|%s", sub.BrandID, sub.OEM)]
	require.True(t, ok)
	assert.Equal(t, part.ID, sub.AutoPartID)

	// a second computation reuses the created part
	again, err := b.Offers(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, sub.AutoPartID, again.Rows[2].AutoPartID)
}

func TestBuildPersistsExportsAndEmails(t *testing.T) {
	s := seededStore()
	rec := &notifytest.Recorder{}
	n := notify.NewNotifier(rec, time.Second, zerolog.Nop())

	b := NewBuilder(s, house, n, zerolog.Nop())
	b.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }

	res, err := b.Build(context.Background(), 1, BuildOptions{Email: true})
	require.NoError(t, err)
	n.Wait()

	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, "pricelist_Main_list_2026-03-04.xlsx", res.Filename)
	assert.True(t, res.Emailed)

	require.Len(t, s.saved, 1)
	saved := s.saved[0]
	assert.Equal(t, int64(42), saved.CustomerID)
	assert.True(t, saved.IsActive)
	require.Len(t, saved.Associations, 3)
	// the substitution row got a catalog part
	assert.NotZero(t, saved.Associations[2].AutoPartID)

	sent := rec.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "buyer@example.com", sent[0].To)
	assert.Equal(t, res.Filename, sent[0].Filename)

	f, err := excelize.OpenReader(bytes.NewReader(res.Export))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Brand", "OEM", "Name", "Quantity", "Price"}, rows[0])
	assert.Equal(t, "115.5", rows[2][4])
}
