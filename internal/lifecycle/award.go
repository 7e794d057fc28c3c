package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/audit"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/rules"
)

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrContractNotFound = errors.New("contract not found")
	ErrUserNotFound     = errors.New("user not found")
	// ErrNotOwner: only the opportunity owner may award a proposal on it.
	ErrNotOwner = errors.New("only the owning company can award this proposal")
	// ErrMissingParentContract: SUB_CONTRACT awards need the vendor contract
	// the minor-scope work hangs under.
	ErrMissingParentContract = errors.New("sub-contract award requires a parent contract")
	ErrBadParentContract     = errors.New("parent of a sub-contract cannot itself be a sub-contract")
)

// Store is the persistence surface the award flow needs. The production
// implementation is internal/db.Store.
type Store interface {
	Proposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	SetProposalAwarded(ctx context.Context, id uuid.UUID, contractID uuid.UUID) error

	Contract(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	// ContractByProposal resolves the idempotency key: at most one contract
	// exists per source proposal.
	ContractByProposal(ctx context.Context, proposalID uuid.UUID) (*models.Contract, error)
	CreateContract(ctx context.Context, c *models.Contract) error

	CreateEngagement(ctx context.Context, e *models.Engagement) error
	EngagementsByContract(ctx context.Context, contractID uuid.UUID) ([]models.Engagement, error)

	User(ctx context.Context, id uuid.UUID) (*models.User, error)
	// CompanyRole resolves the marketplace role a company is registered
	// under (the role of its users).
	CompanyRole(ctx context.Context, companyID uuid.UUID) (models.Role, error)
}

// RoleOracle resolves a user's marketplace role; implemented by
// internal/auth.Service.
type RoleOracle interface {
	RoleOf(ctx context.Context, userID uuid.UUID) (models.Role, error)
}

// AwardOutcome is what an award produces. Engagement may be nil when its
// creation failed after the contract was durably created.
type AwardOutcome struct {
	Proposal   *models.Proposal   `json:"proposal"`
	Contract   *models.Contract   `json:"contract"`
	Engagement *models.Engagement `json:"engagement,omitempty"`
	// AlreadyAwarded is set when the call was an idempotent replay.
	AlreadyAwarded bool `json:"already_awarded"`
}

// AwardService turns an accepted proposal into a contract and its initial
// engagement.
type AwardService struct {
	store     Store
	roles     RoleOracle
	registry  *rules.Registry
	validator *Validator
	audit     audit.Sink
}

func NewAwardService(store Store, roles RoleOracle, registry *rules.Registry, sink audit.Sink) *AwardService {
	return &AwardService{
		store:     store,
		roles:     roles,
		registry:  registry,
		validator: NewValidator(registry),
		audit:     sink,
	}
}

// Award transitions a SHORTLISTED or NEGOTIATION proposal to AWARDED,
// creating exactly one DRAFT contract and one PLANNED engagement. The
// operation is idempotent on the proposal id: a retried award returns the
// existing contract instead of creating a duplicate. The contract is created
// before the engagement; if engagement creation then fails, the contract is
// kept and the failure logged so a valid contract is never orphaned by a
// rollback.
func (s *AwardService) Award(ctx context.Context, proposalID, actorID uuid.UUID) (*AwardOutcome, error) {
	p, err := s.store.Proposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal: %w", err)
	}
	if p == nil {
		return nil, ErrProposalNotFound
	}

	// Idempotent replay: a contract already exists for this proposal.
	if existing, err := s.store.ContractByProposal(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("failed to check for existing contract: %w", err)
	} else if existing != nil {
		return s.replayOutcome(ctx, p, existing)
	}

	if !AwardableFrom(p.Status) {
		return nil, &StateTransitionError{Entity: "proposal", From: string(p.Status), To: string(models.ProposalAwarded)}
	}

	actor, err := s.store.User(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load awarding user: %w", err)
	}
	if actor == nil {
		return nil, ErrUserNotFound
	}
	if actor.CompanyID != p.OwnerCompanyID {
		return nil, ErrNotOwner
	}

	contract, err := s.buildContract(ctx, p)
	if err != nil {
		return nil, err
	}

	// Contract must be durable before the engagement is attempted.
	if err := s.store.CreateContract(ctx, contract); err != nil {
		return nil, fmt.Errorf("failed to create contract: %w", err)
	}
	s.audit.Record(ctx, "contract.created", "contract", contract.ID,
		fmt.Sprintf("contract created from proposal %s", p.ID), nil, contract)

	outcome := &AwardOutcome{Proposal: p, Contract: contract}

	engagement, engErr := s.createInitialEngagement(ctx, contract)
	if engErr != nil {
		// Tolerated partial failure: the contract stands, the engagement can
		// be recreated later.
		log.Printf("award %s: engagement creation failed, keeping contract %s: %v", p.ID, contract.ID, engErr)
	} else {
		outcome.Engagement = engagement
	}

	if err := s.store.SetProposalAwarded(ctx, p.ID, contract.ID); err != nil {
		return nil, fmt.Errorf("failed to mark proposal awarded: %w", err)
	}
	before := p.Status
	p.Status = models.ProposalAwarded
	p.ContractID = &contract.ID
	s.audit.Record(ctx, "proposal.awarded", "proposal", p.ID,
		fmt.Sprintf("proposal awarded by %s", actorID), before, p.Status)

	return outcome, nil
}

// replayOutcome reconstructs the result of a previous award for a retried
// call, healing the proposal status if the first attempt died between
// contract creation and the status write.
func (s *AwardService) replayOutcome(ctx context.Context, p *models.Proposal, contract *models.Contract) (*AwardOutcome, error) {
	if p.Status != models.ProposalAwarded && AwardableFrom(p.Status) {
		if err := s.store.SetProposalAwarded(ctx, p.ID, contract.ID); err != nil {
			return nil, fmt.Errorf("failed to heal proposal status on replay: %w", err)
		}
		p.Status = models.ProposalAwarded
		p.ContractID = &contract.ID
	}

	outcome := &AwardOutcome{Proposal: p, Contract: contract, AlreadyAwarded: true}
	engagements, err := s.store.EngagementsByContract(ctx, contract.ID)
	if err == nil && len(engagements) > 0 {
		outcome.Engagement = &engagements[0]
	}
	return outcome, nil
}

func (s *AwardService) buildContract(ctx context.Context, p *models.Proposal) (*models.Contract, error) {
	contractType, err := DeriveContractType(p.ProposalType, p.TargetType)
	if err != nil {
		return nil, err
	}

	var parentID *uuid.UUID
	if contractType == models.ContractSub {
		if p.ParentContractID == nil {
			return nil, ErrMissingParentContract
		}
		parent, err := s.store.Contract(ctx, *p.ParentContractID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent contract: %w", err)
		}
		if parent == nil {
			return nil, ErrMissingParentContract
		}
		if parent.ContractType == models.ContractSub {
			return nil, ErrBadParentContract
		}
		parentID = p.ParentContractID
	}

	buyerRole, err := s.store.CompanyRole(ctx, p.OwnerCompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve buyer role: %w", err)
	}
	buyerType := s.registry.PartyTypeOf(buyerRole)
	providerType, err := s.bidderPartyType(ctx, p)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &models.Contract{
		ID:                uuid.New(),
		ContractType:      contractType,
		ScopeType:         p.ScopeType,
		ScopeID:           p.ScopeID,
		BuyerPartyID:      p.OwnerCompanyID,
		BuyerPartyType:    buyerType,
		ProviderPartyID:   p.BidderCompanyID,
		ProviderPartyType: providerType,
		Status:            models.ContractDraft,
		ParentContractID:  parentID,
		SourceProposalID:  p.ID,
		ServiceItems:      p.ServiceItems,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// bidderPartyType derives the provider's party type from the bidding user's
// role via the registry.
func (s *AwardService) bidderPartyType(ctx context.Context, p *models.Proposal) (models.PartyType, error) {
	role, err := s.roles.RoleOf(ctx, p.BidderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve bidder role: %w", err)
	}
	return s.registry.PartyTypeOf(role), nil
}

// CreateEngagement validates and creates an additional engagement under an
// existing contract, for scopes carved out after the award.
func (s *AwardService) CreateEngagement(ctx context.Context, contractID uuid.UUID, et models.EngagementType, initial models.EngagementStatus) (*models.Engagement, error) {
	contract, err := s.store.Contract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contract: %w", err)
	}
	if contract == nil {
		return nil, ErrContractNotFound
	}

	if res := s.validator.ValidateEngagementCreation(contract, et, initial); !res.Valid {
		return nil, fmt.Errorf("engagement creation rejected: %v", res.Errors)
	}

	now := time.Now().UTC()
	e := &models.Engagement{
		ID:             uuid.New(),
		ContractID:     contractID,
		EngagementType: et,
		Status:         initial,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateEngagement(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create engagement: %w", err)
	}
	s.audit.Record(ctx, "engagement.created", "engagement", e.ID,
		fmt.Sprintf("engagement created under contract %s", contractID), nil, e)
	return e, nil
}

func (s *AwardService) createInitialEngagement(ctx context.Context, contract *models.Contract) (*models.Engagement, error) {
	et, err := DeriveEngagementType(contract.ContractType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	e := &models.Engagement{
		ID:             uuid.New(),
		ContractID:     contract.ID,
		EngagementType: et,
		Status:         models.EngagementPlanned,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateEngagement(ctx, e); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "engagement.created", "engagement", e.ID,
		fmt.Sprintf("initial engagement under contract %s", contract.ID), nil, e)
	return e, nil
}
