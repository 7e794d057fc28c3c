package models

import (
	"time"

	"github.com/google/uuid"
)

type ProposalType string

const (
	ProposalProjectBid          ProposalType = "PROJECT_BID"
	ProposalServiceOffer        ProposalType = "SERVICE_OFFER"
	ProposalAdvisoryOffer       ProposalType = "ADVISORY_OFFER"
	ProposalSubContractorToVendor ProposalType = "sub_contractor_to_vendor"
)

func (p ProposalType) Valid() bool {
	switch p {
	case ProposalProjectBid, ProposalServiceOffer, ProposalAdvisoryOffer, ProposalSubContractorToVendor:
		return true
	}
	return false
}

type TargetType string

const (
	TargetProject         TargetType = "PROJECT"
	TargetMegaProject     TargetType = "MEGA_PROJECT"
	TargetServiceRequest  TargetType = "SERVICE_REQUEST"
	TargetAdvisoryRequest TargetType = "ADVISORY_REQUEST"
)

func (t TargetType) Valid() bool {
	switch t {
	case TargetProject, TargetMegaProject, TargetServiceRequest, TargetAdvisoryRequest:
		return true
	}
	return false
}

type ProposalStatus string

const (
	ProposalDraft       ProposalStatus = "DRAFT"
	ProposalSubmitted   ProposalStatus = "SUBMITTED"
	ProposalUnderReview ProposalStatus = "UNDER_REVIEW"
	ProposalShortlisted ProposalStatus = "SHORTLISTED"
	ProposalNegotiation ProposalStatus = "NEGOTIATION"
	ProposalAwarded     ProposalStatus = "AWARDED"
	ProposalRejected    ProposalStatus = "REJECTED"
	ProposalCompleted   ProposalStatus = "COMPLETED"
)

func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalDraft, ProposalSubmitted, ProposalUnderReview, ProposalShortlisted,
		ProposalNegotiation, ProposalAwarded, ProposalRejected, ProposalCompleted:
		return true
	}
	return false
}

// ScopeType constrains what slice of a target a proposal bids on.
type ScopeType string

const (
	ScopeFullProject ScopeType = "full_project"
	ScopeSubProject  ScopeType = "sub_project"
	ScopeMinor       ScopeType = "minor_scope"
)

func (s ScopeType) Valid() bool {
	switch s {
	case ScopeFullProject, ScopeSubProject, ScopeMinor:
		return true
	}
	return false
}

// ScopeBudget is the budget block of a sub-project scope. At least one field
// must be set for the scope to count as structurally complete.
type ScopeBudget struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Total float64 `json:"total"`
}

// SubProjectScope is the structural payload a vendor-type bidder must fully
// describe before bidding on anything narrower than a whole project.
type SubProjectScope struct {
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	Category          string       `json:"category"`
	RequiredServices  []string     `json:"required_services"`
	SkillRequirements []string     `json:"skill_requirements"`
	Budget            *ScopeBudget `json:"budget"`
}

// Complete reports whether every structural element the legality rules demand
// is present: title, description, category, at least one of the service/skill
// lists, and a budget with at least one bound set.
func (s *SubProjectScope) Complete() bool {
	if s == nil {
		return false
	}
	if s.Title == "" || s.Description == "" || s.Category == "" {
		return false
	}
	if len(s.RequiredServices) == 0 && len(s.SkillRequirements) == 0 {
		return false
	}
	if s.Budget == nil {
		return false
	}
	return s.Budget.Min > 0 || s.Budget.Max > 0 || s.Budget.Total > 0
}

// Proposal is a bid by one company on another company's target. Owned by the
// bidder until awarded, then referenced read-only by the contract it produced.
type Proposal struct {
	ID              uuid.UUID        `json:"id"`
	ProposalType    ProposalType     `json:"proposal_type"`
	TargetType      TargetType       `json:"target_type"`
	TargetID        uuid.UUID        `json:"target_id"`
	ScopeType       ScopeType        `json:"scope_type"`
	ScopeID         uuid.UUID        `json:"scope_id"`
	Scope           *SubProjectScope `json:"scope,omitempty"`
	OwnerCompanyID  uuid.UUID        `json:"owner_company_id"`
	BidderCompanyID uuid.UUID        `json:"bidder_company_id"`
	BidderUserID    uuid.UUID        `json:"bidder_user_id"`
	ServiceItems    []ServiceItem    `json:"service_items"`
	Status          ProposalStatus   `json:"status"`
	ContractID      *uuid.UUID       `json:"contract_id,omitempty"`
	// ParentContractID is required when the proposal will award into a
	// SUB_CONTRACT: the vendor contract the minor-scope work hangs under.
	ParentContractID *uuid.UUID `json:"parent_contract_id,omitempty"`
	Notes            string     `json:"notes"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
