package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/normalize"
	"github.com/partstrade/trade-service/internal/types"
)

type fakeStore struct {
	*normalize.SynonymGraph

	mu         sync.Mutex
	brands     map[string]types.Brand
	parts      map[string]types.AutoPart
	configs    map[int64]types.ProviderPriceListConfig
	runs       map[string]types.IngestionRun
	priceLists []types.PriceList
	watch      []types.PriceWatchItem
	checks     []types.PriceCheckLog
	freshness  []types.ProviderFreshness
	alerts     []types.PriceListStaleAlert
	nextID     int64

	failCreatePriceList error
}

func newFakeStore(brands ...types.Brand) *fakeStore {
	s := &fakeStore{
		SynonymGraph: normalize.NewSynonymGraph(),
		brands:       make(map[string]types.Brand),
		parts:        make(map[string]types.AutoPart),
		configs:      make(map[int64]types.ProviderPriceListConfig),
		runs:         make(map[string]types.IngestionRun),
		nextID:       100,
	}
	for _, b := range brands {
		s.brands[b.Name] = b
		s.AddBrand(b)
	}
	return s
}

func (s *fakeStore) FindBrandByName(_ context.Context, name string) (*types.Brand, error) {
	b, ok := s.brands[name]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *fakeStore) FindAutoPart(_ context.Context, brandID int64, oem string) (*types.AutoPart, error) {
	p, ok := s.parts[fmt.Sprintf("%d|%s", brandID, oem)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *fakeStore) CreateAutoPart(_ context.Context, p types.AutoPart) (*types.AutoPart, bool, error) {
	key := fmt.Sprintf("%d|%s", p.BrandID, p.OEMNumber)
	if existing, ok := s.parts[key]; ok {
		return &existing, false, nil
	}
	s.nextID++
	p.ID = s.nextID
	s.parts[key] = p
	return &p, true, nil
}

func (s *fakeStore) GetProviderConfig(_ context.Context, id int64) (*types.ProviderPriceListConfig, error) {
	c, ok := s.configs[id]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "config %d not found", id)
	}
	return &c, nil
}

func (s *fakeStore) ListProviderConfigs(_ context.Context, providerID int64) ([]types.ProviderPriceListConfig, error) {
	var out []types.ProviderPriceListConfig
	for _, c := range s.configs {
		if c.ProviderID == providerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) CreateIngestionRun(_ context.Context, run *types.IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *fakeStore) UpdateIngestionRun(_ context.Context, run *types.IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *fakeStore) GetIngestionRun(_ context.Context, id string) (*types.IngestionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (s *fakeStore) FindPersistedRun(_ context.Context, providerID int64, dedupKey, hash string) (*types.IngestionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ProviderID == providerID && r.Status == types.StatusPersisted &&
			r.DedupKey != nil && *r.DedupKey == dedupKey && r.FileHash == hash {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) LatestSnapshotRows(_ context.Context, providerID int64, configID *int64) ([]types.PriceRow, error) {
	for i := len(s.priceLists) - 1; i >= 0; i-- {
		pl := s.priceLists[i]
		if pl.ProviderID != providerID {
			continue
		}
		if configID != nil && (pl.ConfigID == nil || *pl.ConfigID != *configID) {
			continue
		}
		var rows []types.PriceRow
		for _, a := range pl.Associations {
			part := s.partByID(a.AutoPartID)
			rows = append(rows, types.PriceRow{
				AutoPartID: a.AutoPartID,
				BrandID:    part.BrandID,
				Brand:      part.BrandName,
				OEM:        part.OEMNumber,
				Quantity:   a.Quantity,
				Price:      a.Price,
				ProviderID: providerID,
			})
		}
		return rows, nil
	}
	return nil, nil
}

func (s *fakeStore) partByID(id int64) types.AutoPart {
	for _, p := range s.parts {
		if p.ID == id {
			return p
		}
	}
	return types.AutoPart{}
}

func (s *fakeStore) CreatePriceList(_ context.Context, pl types.PriceList) (*types.PriceList, error) {
	if s.failCreatePriceList != nil {
		return nil, s.failCreatePriceList
	}
	s.nextID++
	pl.ID = s.nextID
	s.priceLists = append(s.priceLists, pl)
	return &pl, nil
}

func (s *fakeStore) WatchItems(_ context.Context, ids []int64) ([]types.PriceWatchItem, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []types.PriceWatchItem
	for _, w := range s.watch {
		if want[w.AutoPartID] {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *fakeStore) LastPriceCheck(_ context.Context, watchItemID int64) (*types.PriceCheckLog, error) {
	for i := len(s.checks) - 1; i >= 0; i-- {
		if s.checks[i].WatchItemID == watchItemID {
			c := s.checks[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreatePriceCheckLog(_ context.Context, entry types.PriceCheckLog) error {
	s.checks = append(s.checks, entry)
	return nil
}

func (s *fakeStore) ProviderFreshness(context.Context) ([]types.ProviderFreshness, error) {
	return s.freshness, nil
}

func (s *fakeStore) CreateStaleAlert(_ context.Context, alert types.PriceListStaleAlert) error {
	s.alerts = append(s.alerts, alert)
	for i := range s.freshness {
		if s.freshness[i].Config.ID == alert.ConfigID {
			at := alert.AlertedAt
			s.freshness[i].Config.LastStaleAlertAt = &at
		}
	}
	return nil
}

// WithTx restores parts and pricelists when fn fails.
func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	parts := make(map[string]types.AutoPart, len(s.parts))
	for k, v := range s.parts {
		parts[k] = v
	}
	lists := append([]types.PriceList(nil), s.priceLists...)

	if err := fn(ctx); err != nil {
		s.parts = parts
		s.priceLists = lists
		return err
	}
	return nil
}

var fixedNow = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
