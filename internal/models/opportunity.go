package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// IntentType says which side of the marketplace a posting sits on.
type IntentType string

const (
	IntentRequestService IntentType = "REQUEST_SERVICE"
	IntentOfferService   IntentType = "OFFER_SERVICE"
)

func (i IntentType) Valid() bool {
	switch i {
	case IntentRequestService, IntentOfferService:
		return true
	}
	return false
}

// PaymentMode is how a posting expects to be compensated.
type PaymentMode string

const (
	PaymentCash          PaymentMode = "CASH"
	PaymentBarter        PaymentMode = "BARTER"
	PaymentEquity        PaymentMode = "EQUITY"
	PaymentProfitSharing PaymentMode = "PROFIT_SHARING"
	PaymentHybrid        PaymentMode = "HYBRID"
)

func (p PaymentMode) Valid() bool {
	switch p {
	case PaymentCash, PaymentBarter, PaymentEquity, PaymentProfitSharing, PaymentHybrid:
		return true
	}
	return false
}

// IsNonCash reports whether the mode involves a barter leg.
func (p PaymentMode) IsNonCash() bool {
	return p == PaymentBarter || p == PaymentHybrid
}

// MatchingModel is the topology of a Need's relationship to its linked Offers.
type MatchingModel string

const (
	ModelOneWay           MatchingModel = "ONE_WAY"
	ModelTwoWayDependency MatchingModel = "TWO_WAY_DEPENDENCY"
	ModelGroupFormation   MatchingModel = "GROUP_FORMATION"
	ModelCircularExchange MatchingModel = "CIRCULAR_EXCHANGE"
)

func (m MatchingModel) Valid() bool {
	switch m {
	case ModelOneWay, ModelTwoWayDependency, ModelGroupFormation, ModelCircularExchange:
		return true
	}
	return false
}

// CollaborationModel is the declared sub-model for multi-party arrangements.
type CollaborationModel string

const (
	CollabBilateral    CollaborationModel = "BILATERAL"
	CollabConsortium   CollaborationModel = "CONSORTIUM"
	CollabJointVenture CollaborationModel = "JOINT_VENTURE"
	CollabSPV          CollaborationModel = "SPV"
)

// IsGroup reports whether the sub-model implies group formation on its own.
func (c CollaborationModel) IsGroup() bool {
	return c == CollabConsortium || c == CollabJointVenture || c == CollabSPV
}

type OpportunityStatus string

const (
	OpportunityOpen     OpportunityStatus = "OPEN"
	OpportunityMatched  OpportunityStatus = "MATCHED"
	OpportunityClosed   OpportunityStatus = "CLOSED"
	OpportunityArchived OpportunityStatus = "ARCHIVED"
)

// BudgetRange is a monetary band; used both for a Need's budget and an Offer's rate.
type BudgetRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Width returns the span of the range. Zero-width ranges are legal (fixed price).
func (b BudgetRange) Width() float64 {
	return b.Max - b.Min
}

func (b BudgetRange) Midpoint() float64 {
	return (b.Min + b.Max) / 2
}

// Timeline is the Need side: when work should start and how long it runs.
type Timeline struct {
	StartDate    *time.Time `json:"start_date"`
	DurationDays int        `json:"duration_days"`
}

// Availability is the Offer side: when the provider is free and for how long.
type Availability struct {
	AvailableFrom *time.Time `json:"available_from"`
	WindowDays    int        `json:"window_days"`
}

type Location struct {
	City            string `json:"city"`
	Region          string `json:"region"`
	Country         string `json:"country"`
	IsRemoteAllowed bool   `json:"is_remote_allowed"`
}

// OpportunityAttributes carries both the demand-side requirements and the
// supply-side capabilities; only the fields matching the posting's intent are
// expected to be populated.
type OpportunityAttributes struct {
	Category        string        `json:"category"`
	RequiredSkills  []string      `json:"required_skills"`
	AvailableSkills []string      `json:"available_skills"`
	ExperienceYears int           `json:"experience_years"`
	BudgetRange     *BudgetRange  `json:"budget_range"`
	RateRange       *BudgetRange  `json:"rate_range"`
	Timeline        *Timeline     `json:"timeline"`
	Availability    *Availability `json:"availability"`
	Location        *Location     `json:"location"`
}

// ItemDirection says which way a ServiceItem flows within a posting.
type ItemDirection string

const (
	DirectionOffered   ItemDirection = "OFFERED"
	DirectionRequested ItemDirection = "REQUESTED"
)

// ServiceItem is a priced line item in a barter bundle. Immutable once the
// contract it belongs to is awarded.
type ServiceItem struct {
	ServiceName         string        `json:"service_name"`
	UnitOfMeasure       string        `json:"unit_of_measure"`
	Quantity            float64       `json:"quantity"`
	UnitPrice           float64       `json:"unit_price"`
	TotalReferenceValue float64       `json:"total_reference_value"`
	Currency            string        `json:"currency"`
	Direction           ItemDirection `json:"direction"`
}

// serviceItemValueTolerance bounds the drift allowed between the declared
// total and quantity*unit_price (floating point entry from forms).
const serviceItemValueTolerance = 0.01

func (s ServiceItem) Validate() error {
	if s.ServiceName == "" {
		return fmt.Errorf("service item requires a service name")
	}
	if s.Quantity < 0 || s.UnitPrice < 0 {
		return fmt.Errorf("service item %q: quantity and unit price must be non-negative", s.ServiceName)
	}
	expected := s.Quantity * s.UnitPrice
	if math.Abs(s.TotalReferenceValue-expected) > serviceItemValueTolerance*math.Max(1, expected) {
		return fmt.Errorf("service item %q: total_reference_value %.2f does not match quantity*unit_price %.2f",
			s.ServiceName, s.TotalReferenceValue, expected)
	}
	return nil
}

// Opportunity is a Need (REQUEST_SERVICE) or an Offer (OFFER_SERVICE).
type Opportunity struct {
	ID            uuid.UUID             `json:"id"`
	CompanyID     uuid.UUID             `json:"company_id"`
	Title         string                `json:"title"`
	Summary       string                `json:"summary"`
	Description   string                `json:"description"`
	IntentType    IntentType            `json:"intent_type"`
	PaymentMode   PaymentMode           `json:"payment_mode"`
	CollabModel   CollaborationModel    `json:"collaboration_model"`
	Attributes    OpportunityAttributes `json:"attributes"`
	ServiceItems  []ServiceItem         `json:"service_items"`
	LinkedOffers  []uuid.UUID           `json:"linked_offers"`
	MatchingModel MatchingModel         `json:"matching_model"`
	Status        OpportunityStatus     `json:"status"`

	// Version increments on every link-set write; the store rejects writes
	// against a stale version so concurrent links never silently drop data.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsNeed reports whether the posting is on the demand side.
func (o *Opportunity) IsNeed() bool {
	return o.IntentType == IntentRequestService
}

// ItemsByDirection filters the posting's service items by flow direction.
func (o *Opportunity) ItemsByDirection(d ItemDirection) []ServiceItem {
	var out []ServiceItem
	for _, it := range o.ServiceItems {
		if it.Direction == d {
			out = append(out, it)
		}
	}
	return out
}

// HasLinkedOffer reports set membership in LinkedOffers.
func (o *Opportunity) HasLinkedOffer(id uuid.UUID) bool {
	for _, l := range o.LinkedOffers {
		if l == id {
			return true
		}
	}
	return false
}
