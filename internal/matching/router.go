package matching

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

// CriteriaBreakdown preserves the baseline sub-scores for auditability.
// Topology adjustments blend on top of these but never rewrite them.
type CriteriaBreakdown struct {
	CategoryMatch   int `json:"category_match"`
	SkillsMatch     int `json:"skills_match"`
	ExperienceMatch int `json:"experience_match"`
	LocationMatch   int `json:"location_match"`
}

// MatchResult is the scored outcome for one (Need, Offer) pair. Results are
// never mutated after creation; re-scoring produces a new MatchResult.
type MatchResult struct {
	NeedID        uuid.UUID            `json:"need_id"`
	OfferID       uuid.UUID            `json:"offer_id"`
	FinalScore    int                  `json:"final_score"`
	Criteria      CriteriaBreakdown    `json:"criteria"`
	MatchingModel models.MatchingModel `json:"matching_model"`

	BidirectionalScore *int `json:"bidirectional_score,omitempty"`
	GroupSize          *int `json:"group_size,omitempty"`
	ChainLength        *int `json:"chain_length,omitempty"`

	ComputedAt time.Time `json:"computed_at"`
}

// Baseline criteria weights. Sub-scores accumulate as floats and the final
// score is rounded exactly once.
const (
	weightCategory   = 0.30
	weightSkills     = 0.40
	weightExperience = 0.20
	weightLocation   = 0.10
)

// Router dispatches a (Need, Offer, Provider) triple to the scoring strategy
// matching the Need's classified topology.
type Router struct {
	lookup     OpportunityLookup
	classifier *Classifier
}

func NewRouter(lookup OpportunityLookup) *Router {
	return &Router{lookup: lookup, classifier: NewClassifier(lookup)}
}

// Route computes the baseline one-way score, classifies the Need, and applies
// the topology-specific adjustment. Scoring never fails: graph errors degrade
// to the one-way baseline.
func (r *Router) Route(ctx context.Context, need, offer *models.Opportunity, provider *models.User) MatchResult {
	criteria, baseline := r.baseline(need, offer, provider)

	model := need.MatchingModel
	if !model.Valid() {
		m, err := r.classifier.Classify(ctx, need)
		if err != nil {
			m = models.ModelOneWay
		}
		model = m
	}

	res := MatchResult{
		NeedID:        need.ID,
		OfferID:       offer.ID,
		Criteria:      criteria,
		MatchingModel: model,
		ComputedAt:    time.Now().UTC(),
	}

	switch model {
	case models.ModelTwoWayDependency:
		bidi := r.bidirectionalScore(need, offer)
		res.BidirectionalScore = &bidi
		res.FinalScore = round(baseline*0.7 + float64(bidi)*0.3)
	case models.ModelGroupFormation:
		res.FinalScore = round(baseline)
		if need.HasLinkedOffer(offer.ID) && len(need.LinkedOffers) >= 2 {
			comp := r.complementarityScore(ctx, need)
			size := len(need.LinkedOffers)
			res.GroupSize = &size
			res.FinalScore = round(baseline*0.8 + float64(comp)*0.2)
		}
	case models.ModelCircularExchange:
		res.FinalScore = round(baseline)
		if len(need.LinkedOffers) >= 3 {
			if cyclic, err := r.classifier.HasCircularDependencies(ctx, need); err == nil && cyclic {
				chain := len(need.LinkedOffers) + 1
				res.ChainLength = &chain
				res.FinalScore = clampScore(round(baseline * 1.1))
			}
		}
	case models.ModelOneWay:
		res.FinalScore = round(baseline)
	default:
		res.FinalScore = round(baseline)
	}

	return res
}

// baseline computes the weighted one-way score shared by every topology.
func (r *Router) baseline(need, offer *models.Opportunity, provider *models.User) (CriteriaBreakdown, float64) {
	criteria := CriteriaBreakdown{
		CategoryMatch:   categoryScore(need.Attributes.Category, offer.Attributes.Category),
		SkillsMatch:     MirrorSkills(need.Attributes.RequiredSkills, offer.Attributes.AvailableSkills).Score,
		ExperienceMatch: experienceScore(need, offer, provider),
		LocationMatch:   MirrorLocation(need.Attributes.Location, offer.Attributes.Location).Score,
	}
	weighted := float64(criteria.CategoryMatch)*weightCategory +
		float64(criteria.SkillsMatch)*weightSkills +
		float64(criteria.ExperienceMatch)*weightExperience +
		float64(criteria.LocationMatch)*weightLocation
	return criteria, weighted
}

func categoryScore(needCat, offerCat string) int {
	if needCat == "" || offerCat == "" {
		return NeutralScore
	}
	if equalFold(needCat, offerCat) {
		return 100
	}
	return 0
}

// experienceScore compares the Need's required years of experience with the
// provider's (falling back to the Offer's declared years).
func experienceScore(need, offer *models.Opportunity, provider *models.User) int {
	required := need.Attributes.ExperienceYears
	if required <= 0 {
		return NeutralScore
	}
	years := offer.Attributes.ExperienceYears
	if provider != nil && provider.ExperienceYears > years {
		years = provider.ExperienceYears
	}
	if years <= 0 {
		return NeutralScore
	}
	if years >= required {
		return 100
	}
	return round(float64(years) / float64(required) * 100)
}

// bidirectionalScore validates the barter pair in both directions. Base 50,
// raised to 80 when the reverse mirror is also compatible, lowered to 40 when
// it is not, then maximized against the barter equivalence sub-score.
func (r *Router) bidirectionalScore(need, offer *models.Opportunity) int {
	score := 50
	reverse := Mirror(offer, need)
	if reverse.OverallCompatible {
		score = 80
	} else {
		score = 40
	}

	if barter := barterScore(need, offer); barter > score {
		score = barter
	}
	return score
}

// barterScore grades value balance between the two bundles; zero when either
// side has no priced items or the balance falls outside tolerance.
func barterScore(need, offer *models.Opportunity) int {
	offered := need.ItemsByDirection(models.DirectionOffered)
	requested := offer.ItemsByDirection(models.DirectionRequested)
	if len(offered) == 0 || len(requested) == 0 {
		return 0
	}
	eq := CalculateEquivalence(offered, requested, DefaultTolerance)
	if !eq.WithinTolerance || eq.CurrencyMismatch {
		return 0
	}
	avg := (eq.TotalOffered + eq.TotalRequested) / 2
	if avg <= 0 {
		return 0
	}
	// Perfectly balanced bundles score 100, decaying with imbalance.
	return clampScore(round(100 * (1 - math.Abs(eq.Balance)/avg)))
}

// complementarityScore measures how much of the Need's required skill set the
// whole linked group covers together.
func (r *Router) complementarityScore(ctx context.Context, need *models.Opportunity) int {
	required := need.Attributes.RequiredSkills
	if len(required) == 0 {
		return 100
	}

	var pool []string
	for _, id := range need.LinkedOffers {
		member, err := r.lookup.Opportunity(ctx, id)
		if err != nil || member == nil {
			continue
		}
		pool = append(pool, member.Attributes.AvailableSkills...)
	}

	covered := 0
	for _, req := range required {
		if skillMatched(req, pool) {
			covered++
		}
	}
	return clampScore(round(float64(covered) / float64(len(required)) * 100))
}

func round(f float64) int {
	return int(math.Round(f))
}

func clampScore(s int) int {
	if s > 100 {
		return 100
	}
	if s < 0 {
		return 0
	}
	return s
}
