package matching

import (
	"testing"
	"time"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

func TestMirrorSkills_EmptyRequirementIsVacuouslySatisfied(t *testing.T) {
	res := MirrorSkills(nil, []string{"welding", "crane operation"})
	if res.Score != 100 {
		t.Fatalf("expected 100 for empty requirements, got %d", res.Score)
	}
	if !res.Compatible {
		t.Fatal("expected compatible for empty requirements")
	}

	res = MirrorSkills([]string{}, nil)
	if res.Score != 100 {
		t.Fatalf("expected 100 for empty requirements against empty availability, got %d", res.Score)
	}
}

func TestMirrorSkills_SubstringContainmentBothWays(t *testing.T) {
	// "BIM" matches "BIM Modeling" (required contained in available) and
	// "structural engineering services" matches "structural engineering"
	// (available contained in required).
	required := []string{"BIM", "structural engineering services", "quantity surveying"}
	available := []string{"bim modeling", "Structural Engineering"}

	res := MirrorSkills(required, available)
	if res.Score != 67 {
		t.Fatalf("expected 67 (2/3), got %d", res.Score)
	}
	if !res.Compatible {
		t.Fatal("expected compatible at 67")
	}
}

func TestMirrorSkills_NoMatchScoresZero(t *testing.T) {
	res := MirrorSkills([]string{"hvac design"}, []string{"road paving"})
	if res.Score != 0 {
		t.Fatalf("expected 0, got %d", res.Score)
	}
	if res.Compatible {
		t.Fatal("expected incompatible at 0")
	}
}

func TestMirrorBudget_ContainmentScores100(t *testing.T) {
	budget := &models.BudgetRange{Min: 10_000, Max: 50_000}
	rate := &models.BudgetRange{Min: 20_000, Max: 40_000}

	res := MirrorBudget(budget, rate)
	if res.Score != 100 || !res.Compatible {
		t.Fatalf("expected full containment score 100, got %+v", res)
	}
}

func TestMirrorBudget_PartialOverlapProportional(t *testing.T) {
	budget := &models.BudgetRange{Min: 10_000, Max: 50_000}
	rate := &models.BudgetRange{Min: 40_000, Max: 80_000}

	// Overlap 10k of a 40k budget span.
	res := MirrorBudget(budget, rate)
	if res.Score != 25 {
		t.Fatalf("expected 25, got %d", res.Score)
	}
	if !res.Compatible {
		t.Fatal("overlapping ranges should stay compatible")
	}
}

func TestMirrorBudget_DisjointBeyondCutoffScoresZero(t *testing.T) {
	budget := &models.BudgetRange{Min: 10_000, Max: 20_000}
	rate := &models.BudgetRange{Min: 90_000, Max: 100_000}

	res := MirrorBudget(budget, rate)
	if res.Score != 0 {
		t.Fatalf("expected 0 for far disjoint ranges, got %d", res.Score)
	}
	if res.Compatible {
		t.Fatal("disjoint ranges must be incompatible")
	}
}

func TestMirrorBudget_DisjointWithinCutoffDecays(t *testing.T) {
	// Budget width 10k, cutoff 2k. Rate sits 1k above the budget ceiling:
	// score = (1 - 1/2) * 40 = 20.
	budget := &models.BudgetRange{Min: 10_000, Max: 20_000}
	rate := &models.BudgetRange{Min: 21_000, Max: 23_000}

	got := MirrorBudget(budget, rate)
	if got.Score != 20 {
		t.Fatalf("expected decayed score 20, got %d", got.Score)
	}
	if got.Compatible {
		t.Fatal("near-miss ranges are still incompatible")
	}
}

func TestMirrorBudget_MissingDataIsNeutral(t *testing.T) {
	if res := MirrorBudget(nil, &models.BudgetRange{Min: 1, Max: 2}); res.Score != NeutralScore || !res.Compatible {
		t.Fatalf("expected neutral 50, got %+v", res)
	}
	if res := MirrorBudget(&models.BudgetRange{Min: 1, Max: 2}, nil); res.Score != NeutralScore {
		t.Fatalf("expected neutral 50, got %+v", res)
	}
}

func TestMirrorTimeline_ReadyBeforeStartFullCoverage(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	ready := start.AddDate(0, 0, -7)

	res := MirrorTimeline(
		&models.Timeline{StartDate: &start, DurationDays: 90},
		&models.Availability{AvailableFrom: &ready, WindowDays: 120},
	)
	if res.Score != 100 {
		t.Fatalf("expected 100, got %d", res.Score)
	}
}

func TestMirrorTimeline_StartSlackDecaysLinearly(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	late := start.AddDate(0, 0, 15) // half the slack window

	res := MirrorTimeline(
		&models.Timeline{StartDate: &start, DurationDays: 60},
		&models.Availability{AvailableFrom: &late, WindowDays: 60},
	)
	// start: 50 * (1 - 15/30) = 25, duration: 50 → 75
	if res.Score != 75 {
		t.Fatalf("expected 75, got %d", res.Score)
	}
}

func TestMirrorTimeline_SlackBeyondWindowScoresZeroStart(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	late := start.AddDate(0, 0, 45)

	res := MirrorTimeline(
		&models.Timeline{StartDate: &start, DurationDays: 60},
		&models.Availability{AvailableFrom: &late, WindowDays: 30},
	)
	// start: 0, duration: 50 * 30/60 = 25
	if res.Score != 25 {
		t.Fatalf("expected 25, got %d", res.Score)
	}
	if res.Compatible {
		t.Fatal("expected incompatible below 50")
	}
}

func TestMirrorTimeline_BothAbsentIsNeutral(t *testing.T) {
	res := MirrorTimeline(nil, nil)
	if res.Score != NeutralScore || !res.Compatible {
		t.Fatalf("expected neutral 50, got %+v", res)
	}
}

func TestMirrorLocation_Tiers(t *testing.T) {
	cases := []struct {
		name  string
		need  models.Location
		offer models.Location
		want  int
	}{
		{"city", models.Location{City: "Riyadh", Region: "Central", Country: "SA"}, models.Location{City: "riyadh", Region: "Central", Country: "SA"}, 100},
		{"region", models.Location{City: "Riyadh", Region: "Central", Country: "SA"}, models.Location{City: "Kharj", Region: "central", Country: "SA"}, 80},
		{"country", models.Location{City: "Riyadh", Region: "Central", Country: "SA"}, models.Location{City: "Jeddah", Region: "Western", Country: "sa"}, 50},
		{"mismatch", models.Location{City: "Riyadh", Region: "Central", Country: "SA"}, models.Location{City: "Dubai", Region: "Dubai", Country: "AE"}, 0},
	}
	for _, tc := range cases {
		res := MirrorLocation(&tc.need, &tc.offer)
		if res.Score != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, res.Score)
		}
	}
}

func TestMirrorLocation_RemoteFloorsMismatchAt60(t *testing.T) {
	need := &models.Location{City: "Riyadh", Country: "SA", IsRemoteAllowed: true}
	offer := &models.Location{City: "Berlin", Country: "DE", IsRemoteAllowed: true}

	res := MirrorLocation(need, offer)
	if res.Score != 60 {
		t.Fatalf("expected remote floor 60, got %d", res.Score)
	}
	if !res.Compatible {
		t.Fatal("remote pair should be compatible")
	}
}

func TestMirror_OverallRequiresSkillsAndNoHardIncompatibility(t *testing.T) {
	need := &models.Opportunity{Attributes: models.OpportunityAttributes{
		RequiredSkills: []string{"surveying"},
		BudgetRange:    &models.BudgetRange{Min: 1000, Max: 2000},
	}}
	offer := &models.Opportunity{Attributes: models.OpportunityAttributes{
		AvailableSkills: []string{"land surveying"},
		RateRange:       &models.BudgetRange{Min: 1200, Max: 1800},
	}}

	rep := Mirror(need, offer)
	if !rep.OverallCompatible {
		t.Fatalf("expected overall compatible, got %+v", rep)
	}

	// Push the rate far out of budget: budget axis turns incompatible.
	offer.Attributes.RateRange = &models.BudgetRange{Min: 90_000, Max: 99_000}
	rep = Mirror(need, offer)
	if rep.OverallCompatible {
		t.Fatal("expected overall incompatible with disjoint budget")
	}
}
