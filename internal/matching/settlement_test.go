package matching

import (
	"math"
	"testing"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

func items(values ...float64) []models.ServiceItem {
	out := make([]models.ServiceItem, 0, len(values))
	for _, v := range values {
		out = append(out, models.ServiceItem{
			ServiceName:         "svc",
			Quantity:            1,
			UnitPrice:           v,
			TotalReferenceValue: v,
			Currency:            "SAR",
		})
	}
	return out
}

func TestCalculateEquivalence_BalanceAndTotals(t *testing.T) {
	eq := CalculateEquivalence(items(600, 400), items(950), 0)

	if eq.TotalOffered != 1000 {
		t.Fatalf("expected total offered 1000, got %.2f", eq.TotalOffered)
	}
	if eq.TotalRequested != 950 {
		t.Fatalf("expected total requested 950, got %.2f", eq.TotalRequested)
	}
	if eq.Balance != 50 {
		t.Fatalf("expected balance 50, got %.2f", eq.Balance)
	}
}

func TestCalculateEquivalence_ToleranceBoundary(t *testing.T) {
	// 1000 vs 950: |50| / 975 ≈ 5.13% — just outside the default 5%.
	eq := CalculateEquivalence(items(1000), items(950), 0)
	if eq.WithinTolerance {
		t.Fatalf("expected 1000/950 outside 5%% tolerance (ratio %.4f)", math.Abs(eq.Balance)/975)
	}

	// 1000 vs 952: |48| / 976 ≈ 4.92% — just inside.
	eq = CalculateEquivalence(items(1000), items(952), 0)
	if !eq.WithinTolerance {
		t.Fatal("expected 1000/952 within 5% tolerance")
	}

	// Caller-supplied 6% tolerance admits the first pair.
	eq = CalculateEquivalence(items(1000), items(950), 0.06)
	if !eq.WithinTolerance {
		t.Fatal("expected 1000/950 within 6% tolerance")
	}
}

func TestCalculateEquivalence_AntiSymmetric(t *testing.T) {
	offered, requested := items(1200, 300), items(1400)

	fwd := CalculateEquivalence(offered, requested, 0)
	rev := CalculateEquivalence(requested, offered, 0)

	if fwd.Balance != -rev.Balance {
		t.Fatalf("expected negated balance: %.2f vs %.2f", fwd.Balance, rev.Balance)
	}
	if fwd.WithinTolerance != rev.WithinTolerance {
		t.Fatal("tolerance verdict must not depend on direction")
	}
}

func TestCalculateEquivalence_EmptyBundles(t *testing.T) {
	eq := CalculateEquivalence(nil, nil, 0)
	if !eq.WithinTolerance || eq.Balance != 0 {
		t.Fatalf("empty bundles balance trivially, got %+v", eq)
	}

	eq = CalculateEquivalence(items(100), nil, 0)
	if eq.WithinTolerance {
		t.Fatal("one-sided bundle cannot be within tolerance")
	}
}

func TestCalculateEquivalence_CurrencyMismatchFlagged(t *testing.T) {
	offered := items(500)
	requested := items(500)
	requested[0].Currency = "USD"

	eq := CalculateEquivalence(offered, requested, 0)
	if !eq.CurrencyMismatch {
		t.Fatal("expected currency mismatch flag")
	}
}

func TestExchange_BothDirectionsIndependent(t *testing.T) {
	need := &models.Opportunity{ServiceItems: []models.ServiceItem{
		{ServiceName: "design", Quantity: 1, UnitPrice: 1000, TotalReferenceValue: 1000, Currency: "SAR", Direction: models.DirectionOffered},
		{ServiceName: "steel", Quantity: 1, UnitPrice: 5000, TotalReferenceValue: 5000, Currency: "SAR", Direction: models.DirectionRequested},
	}}
	offer := &models.Opportunity{ServiceItems: []models.ServiceItem{
		{ServiceName: "steel", Quantity: 1, UnitPrice: 4900, TotalReferenceValue: 4900, Currency: "SAR", Direction: models.DirectionOffered},
		{ServiceName: "design", Quantity: 1, UnitPrice: 990, TotalReferenceValue: 990, Currency: "SAR", Direction: models.DirectionRequested},
	}}

	ex := Exchange(need, offer, 0)
	if ex.NeedToOffer.Balance != 10 {
		t.Fatalf("need->offer balance expected 10, got %.2f", ex.NeedToOffer.Balance)
	}
	if ex.OfferToNeed.Balance != -100 {
		t.Fatalf("offer->need balance expected -100, got %.2f", ex.OfferToNeed.Balance)
	}
	if !ex.Balanced() {
		t.Fatal("both directions sit within 5% tolerance")
	}
}
