package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferSource tells where a restock offer came from.
type OfferSource string

const (
	OfferFromPriceList   OfferSource = "pricelist"
	OfferFromMarketplace OfferSource = "marketplace"
)

// MarketplaceOffer is one record returned by the external offer search.
type MarketplaceOffer struct {
	Cost           decimal.Decimal `json:"cost"`
	Qnt            int             `json:"qnt"`
	MinQnt         int             `json:"min_qnt"`
	SupLogo        string          `json:"sup_logo"`
	DetailName     string          `json:"detail_name"`
	MakeName       string          `json:"make_name"`
	MinDeliveryDay int             `json:"min_delivery_day"`
	MaxDeliveryDay int             `json:"max_delivery_day"`
	HashKey        string          `json:"hash_key"`
	SystemHash     string          `json:"system_hash"`
	PriceListID    string          `json:"pricelist_id"`
}

// RestockCandidate is a part whose stock fell under its trigger level.
type RestockCandidate struct {
	AutoPartID     int64  `json:"autopartId"`
	Brand          string `json:"brand"`
	OEM            string `json:"oem"`
	Name           string `json:"name,omitempty"`
	CurrentStock   int    `json:"currentStock"`
	MinimumBalance int    `json:"minimumBalance"`
}

// NeededQuantity is how many units bring the part back to its minimum balance.
func (c RestockCandidate) NeededQuantity() int {
	if c.MinimumBalance <= c.CurrentStock {
		return 0
	}
	return c.MinimumBalance - c.CurrentStock
}

// RestockOffer is a normalized candidate offer for a part.
type RestockOffer struct {
	Source      OfferSource       `json:"source"`
	ProviderID  *int64            `json:"providerId,omitempty"`
	PriceListID *int64            `json:"priceListId,omitempty"`
	Price       decimal.Decimal   `json:"price"`
	Quantity    int               `json:"quantity"`
	MinOrderQty int               `json:"minOrderQty"`
	Marketplace *MarketplaceOffer `json:"marketplace,omitempty"`
}

// RestockDecision is one sourced purchase of the plan.
type RestockDecision struct {
	ID         int64           `json:"id"`
	RunID      string          `json:"runId"`
	AutoPartID int64           `json:"autopartId"`
	Brand      string          `json:"brand"`
	OEM        string          `json:"oem"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Total      decimal.Decimal `json:"total"`
	PriceCap   decimal.Decimal `json:"priceCap"`
	Offer      RestockOffer    `json:"offer"`
	CreatedAt  time.Time       `json:"createdAt"`
}
