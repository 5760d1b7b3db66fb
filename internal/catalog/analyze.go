package catalog

import (
	"context"
	"fmt"
	"strings"

	"supplier-engine-service/internal/clients"
	"supplier-engine-service/internal/models"
)

// Rejection names the admission gate a candidate failed. An empty
// Rejection means the candidate was admitted.
type Rejection string

const (
	Admitted           Rejection = ""
	RejectCost         Rejection = "cost"
	RejectImage        Rejection = "image"
	RejectDuplicate    Rejection = "duplicate"
	RejectNoVariant    Rejection = "no_variant"
	RejectNoShipping   Rejection = "no_shipping"
	RejectShippingCost Rejection = "shipping_cost"
	RejectRetailPrice  Rejection = "retail_price"
	RejectScore        Rejection = "score"
)

// Analyze runs a search hit through the admission pipeline. Gates that
// need no network (cost, image, fingerprint) run before any supplier call.
// A gate failure is reported as a Rejection; err is only set when a
// supplier call fails, in which case the candidate is neither admitted
// nor registered as seen.
func (p Policy) Analyze(ctx context.Context, api clients.SupplierAPI, raw clients.ExternalProduct, seen Seen) (*models.CatalogItem, Rejection, error) {
	if raw.SellPrice <= 0 || raw.SellPrice > p.CostCeiling {
		return nil, RejectCost, nil
	}
	if !IsValidImage(raw.Image) {
		return nil, RejectImage, nil
	}
	fp := Fingerprint(raw.NameEn, raw.SellPrice)
	if seen.Has(fp) {
		return nil, RejectDuplicate, nil
	}

	variants, err := api.GetVariants(ctx, raw.PID)
	if err != nil {
		return nil, "", fmt.Errorf("variants for %s: %w", raw.PID, err)
	}
	variant, ok := cheapestVariant(variants)
	if !ok {
		return nil, RejectNoVariant, nil
	}
	cost := variant.SellPrice
	if cost <= 0 {
		cost = raw.SellPrice
	}

	options, err := api.QuoteFreight(ctx, &clients.FreightRequest{
		StartCountryCode: p.Origin,
		EndCountryCode:   p.Destination,
		VID:              variant.VID,
		Quantity:         1,
	})
	if err != nil {
		return nil, "", fmt.Errorf("freight for %s: %w", raw.PID, err)
	}
	option, ok := cheapestFreight(options)
	if !ok {
		return nil, RejectNoShipping, nil
	}
	if option.Price > p.ShippingCeiling {
		return nil, RejectShippingCost, nil
	}

	pricing := p.Price(cost, option.Price)
	if pricing.RetailPrice > p.RetailCeiling {
		return nil, RejectRetailPrice, nil
	}
	if pricing.OpportunityScore < p.MinScore {
		return nil, RejectScore, nil
	}

	local := Translate(raw.NameEn)
	seen.Add(fp)

	return &models.CatalogItem{
		PID:         raw.PID,
		VID:         variant.VID,
		NameEn:      strings.TrimSpace(raw.NameEn),
		Name:        local.Name,
		Description: local.Description,
		Category:    local.Category,
		Tag:         local.Tag,
		AccentColor: local.AccentColor,
		Image:       raw.Image,
		Gallery:     Gallery(raw.Image, raw.Gallery),
		Pricing:     pricing,
		Shipping: models.ShippingInfo{
			Method:   option.LogisticName,
			Cost:     option.Price,
			LeadTime: option.Aging,
		},
		Fingerprint: fp,
	}, Admitted, nil
}

// Reprice recomputes an item's pricing block for a new wholesale cost,
// keeping its shipping cost.
func (p Policy) Reprice(item *models.CatalogItem, costUSD float64) {
	item.Pricing = p.Price(costUSD, item.Pricing.ShippingCost)
}

func cheapestVariant(variants []clients.Variant) (clients.Variant, bool) {
	var best clients.Variant
	found := false
	for _, v := range variants {
		if v.VID == "" {
			continue
		}
		if !found || (v.SellPrice > 0 && (best.SellPrice <= 0 || v.SellPrice < best.SellPrice)) {
			best = v
			found = true
		}
	}
	return best, found
}

func cheapestFreight(options []clients.FreightOption) (clients.FreightOption, bool) {
	var best clients.FreightOption
	found := false
	for _, o := range options {
		if o.Price < 0 {
			continue
		}
		if !found || o.Price < best.Price {
			best = o
			found = true
		}
	}
	return best, found
}
