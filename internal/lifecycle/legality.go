package lifecycle

import (
	"fmt"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/rules"
)

// ValidationResult is returned as a value, never raised: batch callers need
// to collect violations and report partial success.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func (v *ValidationResult) addf(format string, args ...any) {
	v.Valid = false
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func okResult() ValidationResult { return ValidationResult{Valid: true} }

// Validator applies role- and scope-based legality rules. The rules registry
// is owned by the caller and injected; the validator holds no hidden state.
type Validator struct {
	rules *rules.Registry
}

func NewValidator(reg *rules.Registry) *Validator {
	return &Validator{rules: reg}
}

// ValidateProposal checks whether a bidder with the given role may legally
// submit the proposal. targetRole is the role of the company being proposed
// to. Rules are evaluated in priority order and every violated rule yields a
// specific reason.
func (v *Validator) ValidateProposal(p *models.Proposal, bidderRole, targetRole models.Role) ValidationResult {
	res := okResult()

	if p.BidderCompanyID == p.OwnerCompanyID {
		res.addf("A company cannot submit a proposal to itself")
		return res
	}

	rc := v.rules.Role(bidderRole)
	if rc == nil {
		res.addf("Unknown bidder role %q", bidderRole)
		return res
	}
	if !rc.CanPropose {
		res.addf("%s accounts receive proposals and can never submit them", bidderRole)
		return res
	}

	if rc.VendorType {
		return v.validateVendorProposal(p, rc, res)
	}
	if rc.MustTargetVendor {
		return v.validateSubContractorProposal(p, targetRole, res)
	}
	return res
}

// validateVendorProposal: vendor-type roles may bid on a full project, or on
// a sub-project only when its scope is structurally complete. Minor scope is
// never theirs.
func (v *Validator) validateVendorProposal(p *models.Proposal, rc *rules.RoleConfig, res ValidationResult) ValidationResult {
	if !rc.AllowsProposalType(p.ProposalType) {
		res.addf("Role %s cannot submit %s proposals", rc.ID, p.ProposalType)
	}

	switch p.ScopeType {
	case models.ScopeFullProject:
		// always structurally valid
	case models.ScopeSubProject:
		if !p.Scope.Complete() {
			res.addf("Sub-project scope is incomplete: it requires title, description, category, at least one of required services or skill requirements, and a budget with min, max or total")
		}
	case models.ScopeMinor:
		res.addf("Vendors cannot bid on minor scope or partial work; only full projects or complete sub-projects")
	default:
		res.addf("Unknown scope type %q", p.ScopeType)
	}
	return res
}

// validateSubContractorProposal: sub-contractors work for vendors on minor
// scope only, under the dedicated proposal type.
func (v *Validator) validateSubContractorProposal(p *models.Proposal, targetRole models.Role, res ValidationResult) ValidationResult {
	targetParty := v.rules.PartyTypeOf(targetRole)
	if targetParty != models.PartyVendor {
		res.addf("Sub_contractors can only propose to vendors, not %s targets", targetParty)
	}
	if p.ProposalType != models.ProposalSubContractorToVendor {
		res.addf("Sub_contractor proposals must use the %s proposal type", models.ProposalSubContractorToVendor)
	}
	if p.ScopeType != models.ScopeMinor {
		res.addf("Sub_contractors can only work on minor scope work under a vendor contract, not %s", p.ScopeType)
	}
	return res
}

// ValidateEngagementCreation gates engagement creation on contract state and
// the contract/engagement type mapping. A PLANNED engagement is tolerated
// against a DRAFT contract awaiting signature; anything else needs the
// contract SIGNED or ACTIVE.
func (v *Validator) ValidateEngagementCreation(contract *models.Contract, et models.EngagementType, initial models.EngagementStatus) ValidationResult {
	res := okResult()
	if contract == nil {
		res.addf("Engagement requires an existing contract")
		return res
	}

	if !contract.Executable() {
		if !(contract.Status == models.ContractDraft && initial == models.EngagementPlanned) {
			res.addf("Engagements require a SIGNED or ACTIVE contract; contract is %s", contract.Status)
		}
	}

	expected, err := DeriveEngagementType(contract.ContractType)
	if err != nil {
		res.addf("Contract type %s cannot host engagements", contract.ContractType)
		return res
	}
	if et != expected {
		res.addf("Contract type %s requires engagement type %s, not %s", contract.ContractType, expected, et)
	}
	return res
}
