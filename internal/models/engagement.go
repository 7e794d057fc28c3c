package models

import (
	"time"

	"github.com/google/uuid"
)

type EngagementType string

const (
	EngagementProjectExecution EngagementType = "PROJECT_EXECUTION"
	EngagementServiceDelivery  EngagementType = "SERVICE_DELIVERY"
	EngagementAdvisory         EngagementType = "ADVISORY"
)

func (e EngagementType) Valid() bool {
	switch e {
	case EngagementProjectExecution, EngagementServiceDelivery, EngagementAdvisory:
		return true
	}
	return false
}

type EngagementStatus string

const (
	EngagementPlanned   EngagementStatus = "PLANNED"
	EngagementActive    EngagementStatus = "ACTIVE"
	EngagementPaused    EngagementStatus = "PAUSED"
	EngagementCompleted EngagementStatus = "COMPLETED"
	EngagementCanceled  EngagementStatus = "CANCELED"
)

func (s EngagementStatus) Valid() bool {
	switch s {
	case EngagementPlanned, EngagementActive, EngagementPaused, EngagementCompleted, EngagementCanceled:
		return true
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s EngagementStatus) Terminal() bool {
	return s == EngagementCompleted || s == EngagementCanceled
}

// AssignmentScope narrows an engagement to a slice of the contracted work.
type AssignmentScope string

const (
	AssignSubProject  AssignmentScope = "SUB_PROJECT"
	AssignPhase       AssignmentScope = "PHASE"
	AssignWorkPackage AssignmentScope = "WORK_PACKAGE"
)

// Engagement is the operational execution unit under a contract. It is owned
// by the contract and is trackable and pausable independent of the contract's
// own status.
type Engagement struct {
	ID                  uuid.UUID        `json:"id"`
	ContractID          uuid.UUID        `json:"contract_id"`
	EngagementType      EngagementType   `json:"engagement_type"`
	Status              EngagementStatus `json:"status"`
	AssignedToScopeType AssignmentScope  `json:"assigned_to_scope_type,omitempty"`
	AssignedToScopeID   *uuid.UUID       `json:"assigned_to_scope_id,omitempty"`
	MilestoneIDs        []uuid.UUID      `json:"milestone_ids"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}
