package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRow is the working record of the markup engine, the aggregator and
// the order reconciler. One row is one offer of one part from one source.
type PriceRow struct {
	AutoPartID       int64           `json:"autopartId"`
	BrandID          int64           `json:"brandId"`
	Brand            string          `json:"brand"`
	OEM              string          `json:"oem"`
	Name             string          `json:"name,omitempty"`
	Quantity         int             `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	ProviderID       int64           `json:"providerId"`
	ProviderConfigID int64           `json:"providerConfigId"`
	IsOwnPrice       bool            `json:"isOwnPrice"`
	Substituted      bool            `json:"substituted,omitempty"`
}

// FilterKind names one stage of the markup engine.
type FilterKind string

const (
	FilterBrand            FilterKind = "brand"
	FilterPosition         FilterKind = "position"
	FilterPriceInterval    FilterKind = "price_interval"
	FilterSupplierQuantity FilterKind = "supplier_quantity"
)

// FilterMode selects keep or drop semantics for id-set filters.
type FilterMode string

const (
	ModeInclude FilterMode = "include"
	ModeExclude FilterMode = "exclude"
)

// PriceInterval applies Coefficient percent to prices within [Min, Max].
type PriceInterval struct {
	Min         decimal.Decimal `json:"min"`
	Max         decimal.Decimal `json:"max"`
	Coefficient decimal.Decimal `json:"coefficient"`
}

// QuantityBand keeps rows of ProviderID whose quantity is within [MinQty, MaxQty].
// MaxQty of zero means unbounded.
type QuantityBand struct {
	ProviderID int64 `json:"providerId" validate:"gt=0"`
	MinQty     int   `json:"minQty" validate:"gte=0"`
	MaxQty     int   `json:"maxQty" validate:"gte=0"`
}

// Filter is a tagged descriptor; only the payload matching Kind is read.
type Filter struct {
	Kind      FilterKind      `json:"kind" validate:"required,oneof=brand position price_interval supplier_quantity"`
	Mode      FilterMode      `json:"mode,omitempty" validate:"omitempty,oneof=include exclude"`
	IDs       []int64         `json:"ids,omitempty"`
	Intervals []PriceInterval `json:"intervals,omitempty"`
	Bands     []QuantityBand  `json:"bands,omitempty" validate:"dive"`
}

// CustomerPriceListConfig is a named pricing configuration of a customer.
type CustomerPriceListConfig struct {
	ID                 int64                     `json:"id"`
	CustomerID         int64                     `json:"customerId"`
	Name               string                    `json:"name" validate:"required"`
	GeneralMarkup      decimal.Decimal           `json:"generalMarkup"`
	OwnPriceListMarkup decimal.Decimal           `json:"ownPriceListMarkup"`
	ThirdPartyMarkup   decimal.Decimal           `json:"thirdPartyMarkup"`
	IndividualMarkups  map[int64]decimal.Decimal `json:"individualMarkups,omitempty"`
	Filters            []Filter                  `json:"filters,omitempty" validate:"dive"`
	Schedule           *string                   `json:"schedule,omitempty"`
	EmailTo            *string                   `json:"emailTo,omitempty"`
	IsActive           bool                      `json:"isActive"`
	Sources            []CustomerPriceListSource `json:"sources,omitempty" validate:"dive"`
}

// CustomerPriceListSource composes one provider config into a customer config.
type CustomerPriceListSource struct {
	ID               int64           `json:"id"`
	ProviderConfigID int64           `json:"providerConfigId" validate:"gt=0"`
	ProviderID       int64           `json:"providerId"`
	IsOwnPrice       bool            `json:"isOwnPrice"`
	Enabled          bool            `json:"enabled"`
	Markup           decimal.Decimal `json:"markup"`
	Filters          []Filter        `json:"filters,omitempty" validate:"dive"`
}

// CustomerPriceList is the persisted output of the engine for one customer.
type CustomerPriceList struct {
	ID           int64                  `json:"id"`
	CustomerID   int64                  `json:"customerId"`
	ConfigID     int64                  `json:"configId"`
	Date         time.Time              `json:"date"`
	IsActive     bool                   `json:"isActive"`
	Associations []PriceListAssociation `json:"associations,omitempty"`
}

// Substitution cross-references a house-brand part to another brand+oem.
type Substitution struct {
	ID                  int64  `json:"id"`
	SourceAutoPartID    int64  `json:"sourceAutopartId" validate:"gt=0"`
	SubstitutionBrandID int64  `json:"substitutionBrandId" validate:"gt=0"`
	SubstitutionBrand   string `json:"substitutionBrand"`
	SubstitutionOEM     string `json:"substitutionOem"`
	Priority            int    `json:"priority" validate:"gt=0"`
	MinSourceQuantity   int    `json:"minSourceQuantity" validate:"gte=0"`
	QuantityReduction   int    `json:"quantityReduction" validate:"gte=0"`
	IsActive            bool   `json:"isActive"`
	CustomerConfigID    *int64 `json:"customerConfigId,omitempty"`
}
