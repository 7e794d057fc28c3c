package models

import (
	"time"

	"github.com/google/uuid"
)

type ContractType string

const (
	ContractProject     ContractType = "PROJECT_CONTRACT"
	ContractMegaProject ContractType = "MEGA_PROJECT_CONTRACT"
	ContractService     ContractType = "SERVICE_CONTRACT"
	ContractAdvisory    ContractType = "ADVISORY_CONTRACT"
	ContractSub         ContractType = "SUB_CONTRACT"
)

func (c ContractType) Valid() bool {
	switch c {
	case ContractProject, ContractMegaProject, ContractService, ContractAdvisory, ContractSub:
		return true
	}
	return false
}

type ContractStatus string

const (
	ContractDraft      ContractStatus = "DRAFT"
	ContractSent       ContractStatus = "SENT"
	ContractSigned     ContractStatus = "SIGNED"
	ContractActive     ContractStatus = "ACTIVE"
	ContractCompleted  ContractStatus = "COMPLETED"
	ContractTerminated ContractStatus = "TERMINATED"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractDraft, ContractSent, ContractSigned, ContractActive, ContractCompleted, ContractTerminated:
		return true
	}
	return false
}

// PartyType is the legal character a company acts under in a contract.
type PartyType string

const (
	PartyEntity        PartyType = "ENTITY"
	PartyVendor        PartyType = "VENDOR"
	PartySubContractor PartyType = "SUB_CONTRACTOR"
	PartyBeneficiary   PartyType = "BENEFICIARY"
)

// Contract is created exclusively by the award flow from an AWARDED proposal;
// exactly one contract exists per awarded proposal, keyed by SourceProposalID.
type Contract struct {
	ID                uuid.UUID      `json:"id"`
	ContractType      ContractType   `json:"contract_type"`
	ScopeType         ScopeType      `json:"scope_type"`
	ScopeID           uuid.UUID      `json:"scope_id"`
	BuyerPartyID      uuid.UUID      `json:"buyer_party_id"`
	BuyerPartyType    PartyType      `json:"buyer_party_type"`
	ProviderPartyID   uuid.UUID      `json:"provider_party_id"`
	ProviderPartyType PartyType      `json:"provider_party_type"`
	Status            ContractStatus `json:"status"`
	// ParentContractID is set, and must reference a non-SUB_CONTRACT, only
	// when ContractType is SUB_CONTRACT.
	ParentContractID *uuid.UUID    `json:"parent_contract_id,omitempty"`
	SourceProposalID uuid.UUID     `json:"source_proposal_id"`
	ServiceItems     []ServiceItem `json:"service_items"`
	TermsJSON        []byte        `json:"terms_json,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Executable reports whether engagements may run under this contract.
func (c *Contract) Executable() bool {
	return c.Status == ContractSigned || c.Status == ContractActive
}
