package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Brand is a canonical manufacturer name.
type Brand struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	CountryOfOrigin *string `json:"countryOfOrigin,omitempty"`
	MainBrand       bool    `json:"mainBrand"`
}

// AutoPart is one catalog entity, unique per (BrandID, OEMNumber).
type AutoPart struct {
	ID             int64     `json:"id"`
	BrandID        int64     `json:"brandId"`
	BrandName      string    `json:"brandName"`
	OEMNumber      string    `json:"oemNumber"`
	Name           *string   `json:"name,omitempty"`
	Barcode        string    `json:"barcode"`
	MinimumBalance *int      `json:"minimumBalance,omitempty"`
	MinBalanceAuto bool      `json:"minBalanceAuto"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Barcode derives the catalog barcode of a part.
func Barcode(brandName, oem string) string {
	return brandName + oem
}

// Provider is a supplier, or the business itself when IsOwnStock is set.
type Provider struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Email      *string `json:"email,omitempty"`
	IsOwnStock bool    `json:"isOwnStock"`
}

// ProviderPriceListConfig tells the extractor how to read a provider's files.
type ProviderPriceListConfig struct {
	ID                   int64      `json:"id"`
	ProviderID           int64      `json:"providerId"`
	Name                 string     `json:"name"`
	Columns              ColumnMap  `json:"columns"`
	FilenamePattern      *string    `json:"filenamePattern,omitempty"`
	SubjectPattern       *string    `json:"subjectPattern,omitempty"`
	MaxDaysWithoutUpdate int        `json:"maxDaysWithoutUpdate"`
	LastStaleAlertAt     *time.Time `json:"lastStaleAlertAt,omitempty"`
	IsOwnPrice           bool       `json:"isOwnPrice"`
}

// PriceList is an immutable dated supplier snapshot.
type PriceList struct {
	ID           int64                  `json:"id"`
	ProviderID   int64                  `json:"providerId"`
	ConfigID     *int64                 `json:"configId,omitempty"`
	Date         time.Time              `json:"date"`
	IsActive     bool                   `json:"isActive"`
	Associations []PriceListAssociation `json:"associations,omitempty"`
}

// PriceListAssociation is one (part, quantity, price) entry of a snapshot.
type PriceListAssociation struct {
	AutoPartID int64           `json:"autopartId"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// PriceWatchItem asks for an alert when a watched part shows up in a snapshot.
type PriceWatchItem struct {
	ID             int64            `json:"id"`
	AutoPartID     int64            `json:"autopartId"`
	TargetPrice    *decimal.Decimal `json:"targetPrice,omitempty"`
	NotifyOnChange bool             `json:"notifyOnChange"`
}

// PriceCheckLog records one watchlist evaluation.
type PriceCheckLog struct {
	WatchItemID   int64            `json:"watchItemId"`
	ProviderID    int64            `json:"providerId"`
	PriceListID   int64            `json:"priceListId"`
	Price         decimal.Decimal  `json:"price"`
	PreviousPrice *decimal.Decimal `json:"previousPrice,omitempty"`
	Alerted       bool             `json:"alerted"`
	CheckedAt     time.Time        `json:"checkedAt"`
}

// PriceListStaleAlert records a stale-provider notification.
type PriceListStaleAlert struct {
	ProviderID  int64     `json:"providerId"`
	ConfigID    int64     `json:"configId"`
	LastPriceAt time.Time `json:"lastPriceAt"`
	DaysStale   int       `json:"daysStale"`
	AlertedAt   time.Time `json:"alertedAt"`
}

// ProviderFreshness is the latest snapshot date per provider config.
type ProviderFreshness struct {
	Config       ProviderPriceListConfig `json:"config"`
	ProviderName string                  `json:"providerName"`
	LastPriceAt  *time.Time              `json:"lastPriceAt,omitempty"`
}
