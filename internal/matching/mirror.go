package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

// NeutralScore is returned whenever a scoring axis has no data to compare.
// Matching must always produce a rankable result, so missing attributes
// degrade to neutral rather than failing.
const NeutralScore = 50

// AxisResult is the outcome of mirroring one attribute axis.
type AxisResult struct {
	Compatible bool   `json:"compatible"`
	Score      int    `json:"score"`
	Details    string `json:"details"`
}

// CompatibilityReport aggregates the four mirroring axes for a Need/Offer pair.
type CompatibilityReport struct {
	Skills            AxisResult `json:"skills"`
	Budget            AxisResult `json:"budget"`
	Timeline          AxisResult `json:"timeline"`
	Location          AxisResult `json:"location"`
	OverallCompatible bool       `json:"overall_compatible"`
}

// Mirror compares a Need's declared requirements against an Offer's declared
// capabilities across all four axes. Overall compatibility requires a skills
// score of at least 50 and no other axis explicitly incompatible.
func Mirror(need, offer *models.Opportunity) CompatibilityReport {
	r := CompatibilityReport{
		Skills:   MirrorSkills(need.Attributes.RequiredSkills, offer.Attributes.AvailableSkills),
		Budget:   MirrorBudget(need.Attributes.BudgetRange, offer.Attributes.RateRange),
		Timeline: MirrorTimeline(need.Attributes.Timeline, offer.Attributes.Availability),
		Location: MirrorLocation(need.Attributes.Location, offer.Attributes.Location),
	}
	r.OverallCompatible = r.Skills.Score >= 50 &&
		r.Budget.Compatible && r.Timeline.Compatible && r.Location.Compatible
	return r
}

// MirrorSkills scores required vs available skills using case-insensitive
// substring containment in both directions. An empty requirement list is
// vacuously satisfied.
func MirrorSkills(required, available []string) AxisResult {
	if len(required) == 0 {
		return AxisResult{Compatible: true, Score: 100, Details: "no skills required"}
	}

	matched := 0
	for _, req := range required {
		if skillMatched(req, available) {
			matched++
		}
	}

	score := int(math.Round(float64(matched) / float64(len(required)) * 100))
	return AxisResult{
		Compatible: score >= 50,
		Score:      score,
		Details:    fmt.Sprintf("%d of %d required skills covered", matched, len(required)),
	}
}

func skillMatched(required string, available []string) bool {
	req := strings.ToLower(strings.TrimSpace(required))
	if req == "" {
		return false
	}
	for _, av := range available {
		a := strings.ToLower(strings.TrimSpace(av))
		if a == "" {
			continue
		}
		if strings.Contains(a, req) || strings.Contains(req, a) {
			return true
		}
	}
	return false
}

// budgetProximityCutoff: when ranges are disjoint, midpoints further apart
// than this fraction of the need's range score zero.
const budgetProximityCutoff = 0.2

// MirrorBudget compares a Need's budget range to an Offer's rate range.
// Full containment of the rate inside the budget scores 100; partial overlap
// scores proportional to the overlapped share of the budget; disjoint ranges
// score by midpoint proximity with a hard cutoff.
func MirrorBudget(budget, rate *models.BudgetRange) AxisResult {
	if budget == nil || rate == nil {
		return AxisResult{Compatible: true, Score: NeutralScore, Details: "budget data missing on one side"}
	}

	if rate.Min >= budget.Min && rate.Max <= budget.Max {
		return AxisResult{Compatible: true, Score: 100, Details: "rate fully within budget"}
	}

	overlap := math.Min(budget.Max, rate.Max) - math.Max(budget.Min, rate.Min)
	if overlap > 0 {
		width := budget.Width()
		if width <= 0 {
			// Point budget overlapped by the rate range still counts as covered.
			return AxisResult{Compatible: true, Score: 100, Details: "fixed budget within rate range"}
		}
		score := int(math.Round(overlap / width * 100))
		if score > 100 {
			score = 100
		}
		return AxisResult{
			Compatible: true,
			Score:      score,
			Details:    fmt.Sprintf("partial overlap covers %d%% of budget", score),
		}
	}

	// Disjoint: decay by midpoint proximity net of the half-widths (the gap
	// between the range edges), zero beyond 20% of the budget range.
	ref := budget.Width()
	if ref <= 0 {
		ref = math.Max(budget.Midpoint(), 1)
	}
	cutoff := budgetProximityCutoff * ref
	gap := math.Abs(budget.Midpoint()-rate.Midpoint()) - (budget.Width()+rate.Width())/2
	if cutoff <= 0 || gap >= cutoff {
		return AxisResult{Compatible: false, Score: 0, Details: "rate out of budget range"}
	}
	score := int(math.Round((1 - gap/cutoff) * 40))
	return AxisResult{
		Compatible: false,
		Score:      score,
		Details:    "rate near but outside budget range",
	}
}

// startSlackDays is the window past the need's start date over which the
// start-alignment half of the timeline score decays to zero.
const startSlackDays = 30

// MirrorTimeline compares a Need's timeline against an Offer's availability.
// Start alignment and duration coverage contribute up to 50 points each.
func MirrorTimeline(tl *models.Timeline, av *models.Availability) AxisResult {
	if tl == nil && av == nil {
		return AxisResult{Compatible: true, Score: NeutralScore, Details: "timeline data missing on both sides"}
	}
	if tl == nil || av == nil {
		return AxisResult{Compatible: true, Score: NeutralScore, Details: "timeline data missing on one side"}
	}

	score := 0.0

	switch {
	case tl.StartDate == nil || av.AvailableFrom == nil:
		score += 25 // neutral half credit for the start component
	case !av.AvailableFrom.After(*tl.StartDate):
		score += 50
	default:
		slack := av.AvailableFrom.Sub(*tl.StartDate).Hours() / 24
		if slack <= startSlackDays {
			score += 50 * (1 - slack/startSlackDays)
		}
	}

	switch {
	case tl.DurationDays <= 0 || av.WindowDays <= 0:
		score += 25
	case av.WindowDays >= tl.DurationDays:
		score += 50
	default:
		score += 50 * float64(av.WindowDays) / float64(tl.DurationDays)
	}

	total := int(math.Round(score))
	return AxisResult{
		Compatible: total >= 50,
		Score:      total,
		Details:    fmt.Sprintf("timeline alignment %d/100", total),
	}
}

// remoteFloorScore is the minimum location score when both sides explicitly
// allow remote work.
const remoteFloorScore = 60

// MirrorLocation scores geographic alignment: city 100, region 80, country 50,
// otherwise 0, floored at 60 when both sides allow remote work.
func MirrorLocation(needLoc, offerLoc *models.Location) AxisResult {
	if needLoc == nil || offerLoc == nil {
		return AxisResult{Compatible: true, Score: NeutralScore, Details: "location data missing on one side"}
	}

	score := 0
	details := "location mismatch"
	switch {
	case equalFold(needLoc.City, offerLoc.City):
		score, details = 100, "same city"
	case equalFold(needLoc.Region, offerLoc.Region):
		score, details = 80, "same region"
	case equalFold(needLoc.Country, offerLoc.Country):
		score, details = 50, "same country"
	}

	if needLoc.IsRemoteAllowed && offerLoc.IsRemoteAllowed && score < remoteFloorScore {
		score, details = remoteFloorScore, "remote work allowed by both sides"
	}

	return AxisResult{Compatible: score >= 50, Score: score, Details: details}
}

func equalFold(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
