package catalog

import (
	"github.com/shopspring/decimal"

	"supplier-engine-service/internal/models"
)

// Policy holds the admission gates and pricing knobs. Costs and the
// shipping ceiling are in USD; the retail ceiling is in EUR.
type Policy struct {
	Markup          float64
	USDToEUR        float64
	MinScore        float64
	CostCeiling     float64
	ShippingCeiling float64
	RetailCeiling   float64
	Destination     string
	Origin          string
}

// DefaultPolicy returns the storefront defaults: EUR retail, x2.5 markup,
// shipping from China to France.
func DefaultPolicy() Policy {
	return Policy{
		Markup:          2.5,
		USDToEUR:        0.92,
		MinScore:        45,
		CostCeiling:     40,
		ShippingCeiling: 12,
		RetailCeiling:   99.99,
		Destination:     "FR",
		Origin:          "CN",
	}
}

var (
	decOne     = decimal.NewFromInt(1)
	decFive    = decimal.NewFromInt(5)
	decTen     = decimal.NewFromInt(10)
	decThirty  = decimal.NewFromInt(30)
	decHundred = decimal.NewFromInt(100)
	decCent    = decimal.New(1, -2)
)

// CharmPrice snaps a raw retail amount up to the next price point ending
// in .99. Below 10 the step is 1, from 10 to 30 it is 5, above 30 it is 10.
func CharmPrice(raw decimal.Decimal) decimal.Decimal {
	step := decOne
	switch {
	case raw.GreaterThan(decThirty):
		step = decTen
	case raw.GreaterThanOrEqual(decTen):
		step = decFive
	}
	ceiled := raw.Div(step).Ceil().Mul(step)
	if ceiled.LessThan(decOne) {
		ceiled = decOne
	}
	return ceiled.Sub(decCent)
}

// Price computes the pricing block for a product. Landed cost is converted
// to EUR before the markup; the result is deterministic for equal inputs.
func (p Policy) Price(costUSD, shippingUSD float64) models.Pricing {
	cost := decimal.NewFromFloat(costUSD)
	shipping := decimal.NewFromFloat(shippingUSD)
	rate := decimal.NewFromFloat(p.USDToEUR)

	landed := cost.Add(shipping).Mul(rate).Round(2)
	retail := CharmPrice(landed.Mul(decimal.NewFromFloat(p.Markup)))
	margin := retail.Sub(landed)

	marginPct := decimal.Zero
	if retail.IsPositive() {
		marginPct = margin.Div(retail).Mul(decHundred).Round(2)
	}

	pricing := models.Pricing{
		WholesaleCost: cost.Round(2).InexactFloat64(),
		ShippingCost:  shipping.Round(2).InexactFloat64(),
		LandedCost:    landed.InexactFloat64(),
		RetailPrice:   retail.InexactFloat64(),
		Margin:        margin.Round(2).InexactFloat64(),
		MarginPercent: marginPct.InexactFloat64(),
		FreeShipping:  shipping.IsZero(),
	}
	pricing.OpportunityScore = Score(pricing)
	return pricing
}

// Score ranks a priced candidate from 0 to 100: margin percent (40),
// shipping cost (30), absolute margin (20) and a price point bonus (10 or 5).
func Score(p models.Pricing) float64 {
	marginPct := decimal.NewFromFloat(p.MarginPercent)
	marginPart := decimal.Min(marginPct.Div(decimal.NewFromInt(70)), decOne).Mul(decimal.NewFromInt(40))

	var shippingPart decimal.Decimal
	switch {
	case p.FreeShipping || p.ShippingCost == 0:
		shippingPart = decThirty
	case p.ShippingCost < 2:
		shippingPart = decimal.NewFromInt(25)
	case p.ShippingCost < 5:
		shippingPart = decimal.NewFromInt(15)
	}

	margin := decimal.NewFromFloat(p.Margin)
	absPart := decimal.Min(margin.Div(decimal.NewFromInt(20)), decOne).Mul(decimal.NewFromInt(20))

	sweetSpot := decFive
	if p.RetailPrice >= 15 && p.RetailPrice <= 60 {
		sweetSpot = decTen
	}

	total := marginPart.Add(shippingPart).Add(absPart).Add(sweetSpot)
	if total.IsNegative() {
		total = decimal.Zero
	}
	if total.GreaterThan(decHundred) {
		total = decHundred
	}
	return total.Round(1).InexactFloat64()
}
