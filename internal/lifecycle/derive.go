package lifecycle

import (
	"fmt"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

// DeriveContractType maps an awarded proposal's type and target to the
// contract subtype it produces. The switch is exhaustive over ProposalType;
// a new proposal type cannot silently fall through.
func DeriveContractType(pt models.ProposalType, tt models.TargetType) (models.ContractType, error) {
	switch pt {
	case models.ProposalProjectBid:
		if tt == models.TargetMegaProject {
			return models.ContractMegaProject, nil
		}
		return models.ContractProject, nil
	case models.ProposalServiceOffer:
		return models.ContractService, nil
	case models.ProposalAdvisoryOffer:
		return models.ContractAdvisory, nil
	case models.ProposalSubContractorToVendor:
		return models.ContractSub, nil
	default:
		return "", fmt.Errorf("no contract type for proposal type %q", pt)
	}
}

// DeriveEngagementType maps a contract subtype to the execution unit it
// spawns. Sub-contracts execute as project work under the parent.
func DeriveEngagementType(ct models.ContractType) (models.EngagementType, error) {
	switch ct {
	case models.ContractProject, models.ContractMegaProject, models.ContractSub:
		return models.EngagementProjectExecution, nil
	case models.ContractService:
		return models.EngagementServiceDelivery, nil
	case models.ContractAdvisory:
		return models.EngagementAdvisory, nil
	default:
		return "", fmt.Errorf("no engagement type for contract type %q", ct)
	}
}
