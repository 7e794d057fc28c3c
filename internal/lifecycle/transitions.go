package lifecycle

import (
	"fmt"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

// StateTransitionError reports an illegal status change. It is always a
// top-level, blocking failure, never folded into a partial result.
type StateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.Entity, e.From, e.To)
}

var proposalTransitions = map[models.ProposalStatus][]models.ProposalStatus{
	models.ProposalDraft:       {models.ProposalSubmitted},
	models.ProposalSubmitted:   {models.ProposalUnderReview},
	models.ProposalUnderReview: {models.ProposalShortlisted, models.ProposalRejected},
	models.ProposalShortlisted: {models.ProposalNegotiation, models.ProposalAwarded, models.ProposalRejected},
	models.ProposalNegotiation: {models.ProposalAwarded, models.ProposalRejected},
	models.ProposalAwarded:     {models.ProposalCompleted},
	models.ProposalRejected:    nil,
	models.ProposalCompleted:   nil,
}

var contractTransitions = map[models.ContractStatus][]models.ContractStatus{
	models.ContractDraft:      {models.ContractSent, models.ContractTerminated},
	models.ContractSent:       {models.ContractSigned, models.ContractTerminated},
	models.ContractSigned:     {models.ContractActive, models.ContractTerminated},
	models.ContractActive:     {models.ContractCompleted, models.ContractTerminated},
	models.ContractCompleted:  nil,
	models.ContractTerminated: nil,
}

var engagementTransitions = map[models.EngagementStatus][]models.EngagementStatus{
	models.EngagementPlanned:   {models.EngagementActive, models.EngagementCanceled},
	models.EngagementActive:    {models.EngagementPaused, models.EngagementCompleted, models.EngagementCanceled},
	models.EngagementPaused:    {models.EngagementActive, models.EngagementCanceled},
	models.EngagementCompleted: nil,
	models.EngagementCanceled:  nil,
}

// CanTransitionProposal reports whether a proposal may move between statuses.
func CanTransitionProposal(from, to models.ProposalStatus) bool {
	for _, next := range proposalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionProposal validates and returns the new status.
func TransitionProposal(from, to models.ProposalStatus) (models.ProposalStatus, error) {
	if !CanTransitionProposal(from, to) {
		return from, &StateTransitionError{Entity: "proposal", From: string(from), To: string(to)}
	}
	return to, nil
}

func CanTransitionContract(from, to models.ContractStatus) bool {
	for _, next := range contractTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func TransitionContract(from, to models.ContractStatus) (models.ContractStatus, error) {
	if !CanTransitionContract(from, to) {
		return from, &StateTransitionError{Entity: "contract", From: string(from), To: string(to)}
	}
	return to, nil
}

func CanTransitionEngagement(from, to models.EngagementStatus) bool {
	for _, next := range engagementTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func TransitionEngagement(from, to models.EngagementStatus) (models.EngagementStatus, error) {
	if !CanTransitionEngagement(from, to) {
		return from, &StateTransitionError{Entity: "engagement", From: string(from), To: string(to)}
	}
	return to, nil
}

// AwardableFrom reports whether a proposal in the given status may be
// awarded. Award is only legal from SHORTLISTED or NEGOTIATION.
func AwardableFrom(s models.ProposalStatus) bool {
	return s == models.ProposalShortlisted || s == models.ProposalNegotiation
}
