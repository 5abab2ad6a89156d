package orders

import (
	"github.com/partstrade/trade-service/internal/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Severity grades a price deviation.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "none"
	}
}

// Reject reasons recorded on order items.
const (
	ReasonNoOffer        = "no offer"
	ReasonNoExpected     = "no expected price"
	ReasonPriceDeviation = "price deviation above warning threshold"
	ReasonOutOfStock     = "out of stock"
)

// Thresholds are the per-customer price deviation limits, in percent.
type Thresholds struct {
	Tolerance decimal.Decimal
	Warning   decimal.Decimal
}

// Outcome is the reconciliation verdict for one order line.
type Outcome struct {
	Status    types.ItemStatus
	Severity  Severity
	DiffPct   *decimal.Decimal
	ShipQty   int
	RejectQty int
	Reason    string
}

// Accepted reports whether any quantity ships.
func (o Outcome) Accepted() bool {
	return o.Status == types.ItemOwnStock || o.Status == types.ItemSupplier
}

// Classify compares the expected price of a line with the live offer.
// The deviation is (expected - offered) / expected * 100. Above the warning
// threshold only own stock is accepted, and always with a critical warning;
// between tolerance and warning the line is accepted with a warning. An
// accepted line ships min(requested, available) and is rejected when
// nothing ships.
func Classify(requested int, expected *decimal.Decimal, offer *types.PriceRow, th Thresholds) Outcome {
	reject := func(reason string) Outcome {
		return Outcome{Status: types.ItemRejected, RejectQty: requested, Reason: reason}
	}

	if offer == nil {
		return reject(ReasonNoOffer)
	}
	if expected == nil || !expected.IsPositive() {
		return reject(ReasonNoExpected)
	}

	diff := expected.Sub(offer.Price).Div(*expected).Mul(hundred)
	rounded := diff.Round(2)

	out := Outcome{Status: types.ItemSupplier, DiffPct: &rounded}
	if offer.IsOwnPrice {
		out.Status = types.ItemOwnStock
	}

	switch {
	case diff.GreaterThan(th.Warning):
		out.Severity = SeverityCritical
		if !offer.IsOwnPrice {
			out.Status = types.ItemRejected
			out.RejectQty = requested
			out.Reason = ReasonPriceDeviation
			return out
		}
	case diff.GreaterThan(th.Tolerance):
		out.Severity = SeverityWarning
	}

	out.ShipQty = min(requested, max(offer.Quantity, 0))
	out.RejectQty = requested - out.ShipQty
	if out.ShipQty == 0 {
		out.Status = types.ItemRejected
		out.Reason = ReasonOutOfStock
	}
	return out
}
