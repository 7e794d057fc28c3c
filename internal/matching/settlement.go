package matching

import (
	"math"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

// DefaultTolerance is the barter balance tolerance as a fraction of the
// average bundle value. Callers may override per calculation.
const DefaultTolerance = 0.05

// Equivalence is the value balance between two service bundles.
type Equivalence struct {
	TotalOffered     float64 `json:"total_offered"`
	TotalRequested   float64 `json:"total_requested"`
	Balance          float64 `json:"balance"`
	WithinTolerance  bool    `json:"within_tolerance"`
	CurrencyMismatch bool    `json:"currency_mismatch"`
	Tolerance        float64 `json:"tolerance"`
}

// ExchangeEquivalence holds both directions of a barter pair. A barter
// exchange is not guaranteed symmetric, so each direction is settled on its
// own.
type ExchangeEquivalence struct {
	NeedToOffer Equivalence `json:"need_to_offer"`
	OfferToNeed Equivalence `json:"offer_to_need"`
}

// Balanced reports whether both directions settle within tolerance.
func (e ExchangeEquivalence) Balanced() bool {
	return e.NeedToOffer.WithinTolerance && e.OfferToNeed.WithinTolerance
}

// CalculateEquivalence sums reference values on each side and grades the
// balance against the tolerance. A non-positive tolerance selects the
// default. Mixed currencies are flagged, never silently summed as equal.
func CalculateEquivalence(offered, requested []models.ServiceItem, tolerance float64) Equivalence {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	eq := Equivalence{Tolerance: tolerance}
	for _, it := range offered {
		eq.TotalOffered += it.TotalReferenceValue
	}
	for _, it := range requested {
		eq.TotalRequested += it.TotalReferenceValue
	}
	eq.Balance = eq.TotalOffered - eq.TotalRequested
	eq.CurrencyMismatch = mixedCurrencies(offered, requested)

	avg := (eq.TotalOffered + eq.TotalRequested) / 2
	if avg == 0 {
		eq.WithinTolerance = eq.Balance == 0
		return eq
	}
	eq.WithinTolerance = math.Abs(eq.Balance)/avg <= tolerance
	return eq
}

// Exchange settles a Need/Offer barter pair in both directions: what the Need
// provides against what the Offer requests, and the reverse.
func Exchange(need, offer *models.Opportunity, tolerance float64) ExchangeEquivalence {
	return ExchangeEquivalence{
		NeedToOffer: CalculateEquivalence(
			need.ItemsByDirection(models.DirectionOffered),
			offer.ItemsByDirection(models.DirectionRequested),
			tolerance,
		),
		OfferToNeed: CalculateEquivalence(
			offer.ItemsByDirection(models.DirectionOffered),
			need.ItemsByDirection(models.DirectionRequested),
			tolerance,
		),
	}
}

func mixedCurrencies(sides ...[]models.ServiceItem) bool {
	seen := ""
	for _, items := range sides {
		for _, it := range items {
			if it.Currency == "" {
				continue
			}
			if seen == "" {
				seen = it.Currency
				continue
			}
			if it.Currency != seen {
				return true
			}
		}
	}
	return false
}
