package pricing

import (
	"errors"
	"math"

	"github.com/ozkimya/pricer/internal/currency"
)

// ErrInvalidQuantity is returned when a computation is requested for a
// non-positive production quantity.
var ErrInvalidQuantity = errors.New("quantity must be greater than zero")

// defaultPackagingCapacity is assumed when a packaging item has no stated
// capacity. Packaging cost is allocated per unit of capacity, not per
// container count.
const defaultPackagingCapacity = 1000.0

// Item carries the purchasable-input fields the engine reads: unit cost in
// the item's own currency, the supplier payment term, and (for packaging)
// the container capacity.
type Item struct {
	Cost            float64
	Currency        currency.Code
	PaymentTermDays float64
	CapacityValue   float64
}

// IngredientLine pairs a resolved inventory item with its percentage by
// weight in the recipe. Item is nil when the inventory lookup found
// nothing; such lines contribute zero cost and zero weight.
type IngredientLine struct {
	Item            *Item
	PercentByWeight float64
}

// Request holds the per-computation parameters. Monetary inputs carry
// their own currency; everything is normalized to USD internally and
// converted to OutputCurrency only at the end.
type Request struct {
	Quantity               float64
	Packaging              *Item
	ShippingCost           float64
	ShippingCurrency       currency.Code
	OverheadPerUnit        float64
	OverheadCurrency       currency.Code
	SaleTermDays           float64
	MonthlyInterestPercent float64
	MarginPercent          float64
	OutputCurrency         currency.Code
}

// Breakdown itemizes the landed cost in the result currency.
type Breakdown struct {
	RawMaterial float64
	Packaging   float64
	Overhead    float64
	Shipping    float64
	Financing   float64
	Profit      float64
}

// Result is the immutable output of one computation. Breakdown is nil for
// manually entered lines, which also report TotalPrice 0.
type Result struct {
	UnitCost   float64
	UnitPrice  float64
	TotalPrice float64
	Breakdown  *Breakdown
	Currency   currency.Code
	Manual     bool
	Lossy      bool
}

// Calculate computes the landed cost and selling price for one production
// batch. All accumulation happens in USD; input amounts are converted on
// ingestion and results on the way out, so mixed-currency line items never
// compound rounding error.
//
// A margin of 100% or more cannot be inverted; the price falls back to
// double the cost instead of going negative or infinite.
func Calculate(ingredients []IngredientLine, req Request, rates currency.Table) (Result, error) {
	if req.Quantity <= 0 {
		return Result{}, ErrInvalidQuantity
	}

	lossy := false
	track := func(v float64, l bool) float64 {
		if l {
			lossy = true
		}
		return v
	}

	// Raw materials: percentage-scaled weights, cost-weighted payment term.
	totalRawUSD := 0.0
	termWeighted := 0.0
	for _, line := range ingredients {
		if line.Item == nil {
			continue
		}
		weight := line.PercentByWeight / 100 * req.Quantity
		lineUSD := track(rates.ToUSD(line.Item.Cost, line.Item.Currency)) * weight
		totalRawUSD += lineUSD
		termWeighted += lineUSD * line.Item.PaymentTermDays
	}
	avgRawTermDays := 0.0
	if totalRawUSD > 0 {
		avgRawTermDays = termWeighted / totalRawUSD
	}

	// Packaging cost is spread over the container capacity and scaled to
	// the batch quantity.
	packagingUSD := 0.0
	if pkg := req.Packaging; pkg != nil {
		capacity := pkg.CapacityValue
		if capacity <= 0 {
			capacity = defaultPackagingCapacity
		}
		packagingUSD = track(rates.ToUSD(pkg.Cost, pkg.Currency)) / capacity * req.Quantity
	}

	shippingUSD := track(rates.ToUSD(req.ShippingCost, req.ShippingCurrency))
	overheadUSD := track(rates.ToUSD(req.OverheadPerUnit, req.OverheadCurrency)) * req.Quantity

	// Raw materials are financed only for the days the sale term exceeds
	// the suppliers' own credit; upfront costs carry no supplier credit
	// and are financed for the whole sale term.
	dailyRate := req.MonthlyInterestPercent / 100 / 30
	rmFinancingUSD := totalRawUSD * math.Max(0, req.SaleTermDays-avgRawTermDays) * dailyRate
	upfrontUSD := packagingUSD + shippingUSD + overheadUSD
	financingUSD := rmFinancingUSD + upfrontUSD*req.SaleTermDays*dailyRate

	totalCostUSD := totalRawUSD + upfrontUSD + financingUSD

	// Margin on price, not on cost: price = cost / (1 - m).
	margin := req.MarginPercent / 100
	var totalPriceUSD float64
	if margin >= 1 {
		totalPriceUSD = totalCostUSD * 2
	} else {
		totalPriceUSD = totalCostUSD / (1 - margin)
	}

	out := func(usd float64) float64 {
		return track(rates.FromUSD(usd, req.OutputCurrency))
	}

	return Result{
		UnitCost:   out(totalCostUSD / req.Quantity),
		UnitPrice:  out(totalPriceUSD / req.Quantity),
		TotalPrice: out(totalPriceUSD),
		Breakdown: &Breakdown{
			RawMaterial: out(totalRawUSD),
			Packaging:   out(packagingUSD),
			Overhead:    out(overheadUSD),
			Shipping:    out(shippingUSD),
			Financing:   out(financingUSD),
			Profit:      out(totalPriceUSD - totalCostUSD),
		},
		Currency: req.OutputCurrency,
		Lossy:    lossy,
	}, nil
}

// ManualEntry builds the result for a freeform quote line with a directly
// supplied unit price: no breakdown, no batch total.
func ManualEntry(unitPrice float64, out currency.Code) Result {
	return Result{
		UnitPrice: unitPrice,
		Currency:  out,
		Manual:    true,
	}
}
