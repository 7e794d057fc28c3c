package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/audit"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/rules"
)

type fakeStore struct {
	proposals   map[uuid.UUID]*models.Proposal
	contracts   map[uuid.UUID]*models.Contract
	engagements map[uuid.UUID]*models.Engagement
	users       map[uuid.UUID]*models.User

	contractCreates int
	failEngagements bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		proposals:   map[uuid.UUID]*models.Proposal{},
		contracts:   map[uuid.UUID]*models.Contract{},
		engagements: map[uuid.UUID]*models.Engagement{},
		users:       map[uuid.UUID]*models.User{},
	}
}

func (f *fakeStore) Proposal(_ context.Context, id uuid.UUID) (*models.Proposal, error) {
	return f.proposals[id], nil
}

func (f *fakeStore) SetProposalAwarded(_ context.Context, id uuid.UUID, contractID uuid.UUID) error {
	p := f.proposals[id]
	if p == nil {
		return fmt.Errorf("proposal %s missing", id)
	}
	p.Status = models.ProposalAwarded
	p.ContractID = &contractID
	return nil
}

func (f *fakeStore) Contract(_ context.Context, id uuid.UUID) (*models.Contract, error) {
	return f.contracts[id], nil
}

func (f *fakeStore) ContractByProposal(_ context.Context, proposalID uuid.UUID) (*models.Contract, error) {
	for _, c := range f.contracts {
		if c.SourceProposalID == proposalID {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateContract(_ context.Context, c *models.Contract) error {
	f.contractCreates++
	f.contracts[c.ID] = c
	return nil
}

func (f *fakeStore) CreateEngagement(_ context.Context, e *models.Engagement) error {
	if f.failEngagements {
		return fmt.Errorf("engagement storage unavailable")
	}
	f.engagements[e.ID] = e
	return nil
}

func (f *fakeStore) EngagementsByContract(_ context.Context, contractID uuid.UUID) ([]models.Engagement, error) {
	var out []models.Engagement
	for _, e := range f.engagements {
		if e.ContractID == contractID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) User(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeStore) CompanyRole(_ context.Context, companyID uuid.UUID) (models.Role, error) {
	for _, u := range f.users {
		if u.CompanyID == companyID {
			return u.Role, nil
		}
	}
	return models.RoleEntity, nil
}

type fakeOracle map[uuid.UUID]models.Role

func (f fakeOracle) RoleOf(_ context.Context, userID uuid.UUID) (models.Role, error) {
	if r, ok := f[userID]; ok {
		return r, nil
	}
	return "", fmt.Errorf("user %s has no role", userID)
}

// awardFixture wires a SHORTLISTED vendor proposal with its owner and bidder.
func awardFixture(t *testing.T) (*AwardService, *fakeStore, *models.Proposal, uuid.UUID) {
	t.Helper()
	reg, err := rules.Load()
	if err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	store := newFakeStore()
	owner := &models.User{ID: uuid.New(), CompanyID: uuid.New(), Role: models.RoleEntity}
	bidder := &models.User{ID: uuid.New(), CompanyID: uuid.New(), Role: models.RoleVendor}
	store.users[owner.ID] = owner
	store.users[bidder.ID] = bidder

	p := &models.Proposal{
		ID:              uuid.New(),
		ProposalType:    models.ProposalProjectBid,
		TargetType:      models.TargetProject,
		ScopeType:       models.ScopeFullProject,
		ScopeID:         uuid.New(),
		OwnerCompanyID:  owner.CompanyID,
		BidderCompanyID: bidder.CompanyID,
		BidderUserID:    bidder.ID,
		Status:          models.ProposalShortlisted,
	}
	store.proposals[p.ID] = p

	oracle := fakeOracle{owner.ID: owner.Role, bidder.ID: bidder.Role}
	svc := NewAwardService(store, oracle, reg, audit.NopSink{})
	return svc, store, p, owner.ID
}

func TestAward_CreatesContractAndEngagement(t *testing.T) {
	svc, store, p, ownerID := awardFixture(t)

	out, err := svc.Award(context.Background(), p.ID, ownerID)
	if err != nil {
		t.Fatalf("award failed: %v", err)
	}

	if out.Contract == nil || out.Contract.Status != models.ContractDraft {
		t.Fatalf("expected a DRAFT contract, got %+v", out.Contract)
	}
	if out.Contract.ContractType != models.ContractProject {
		t.Fatalf("expected PROJECT_CONTRACT, got %s", out.Contract.ContractType)
	}
	if out.Contract.BuyerPartyType != models.PartyEntity || out.Contract.ProviderPartyType != models.PartyVendor {
		t.Fatalf("party types misderived: buyer=%s provider=%s", out.Contract.BuyerPartyType, out.Contract.ProviderPartyType)
	}
	if out.Engagement == nil || out.Engagement.Status != models.EngagementPlanned {
		t.Fatalf("expected a PLANNED engagement, got %+v", out.Engagement)
	}
	if out.Engagement.EngagementType != models.EngagementProjectExecution {
		t.Fatalf("expected PROJECT_EXECUTION, got %s", out.Engagement.EngagementType)
	}
	if p.Status != models.ProposalAwarded || p.ContractID == nil {
		t.Fatalf("proposal not marked awarded: %+v", p)
	}
	if store.contractCreates != 1 {
		t.Fatalf("expected exactly one contract creation, got %d", store.contractCreates)
	}
}

func TestAward_IllegalFromSubmitted(t *testing.T) {
	svc, store, p, ownerID := awardFixture(t)
	p.Status = models.ProposalSubmitted

	_, err := svc.Award(context.Background(), p.ID, ownerID)
	var ste *StateTransitionError
	if !errors.As(err, &ste) {
		t.Fatalf("expected StateTransitionError, got %v", err)
	}
	if store.contractCreates != 0 {
		t.Fatal("no contract may be created on an illegal award")
	}
}

func TestAward_OnlyOwnerMayAward(t *testing.T) {
	svc, store, p, _ := awardFixture(t)

	stranger := &models.User{ID: uuid.New(), CompanyID: uuid.New(), Role: models.RoleEntity}
	store.users[stranger.ID] = stranger

	_, err := svc.Award(context.Background(), p.ID, stranger.ID)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestAward_IdempotentOnRetry(t *testing.T) {
	svc, store, p, ownerID := awardFixture(t)

	first, err := svc.Award(context.Background(), p.ID, ownerID)
	if err != nil {
		t.Fatalf("first award failed: %v", err)
	}
	second, err := svc.Award(context.Background(), p.ID, ownerID)
	if err != nil {
		t.Fatalf("retried award failed: %v", err)
	}

	if !second.AlreadyAwarded {
		t.Fatal("retry must report the existing award")
	}
	if second.Contract.ID != first.Contract.ID {
		t.Fatal("retry must return the same contract")
	}
	if store.contractCreates != 1 {
		t.Fatalf("retry created a duplicate contract: %d creations", store.contractCreates)
	}
}

func TestAward_EngagementFailureKeepsContract(t *testing.T) {
	svc, store, p, ownerID := awardFixture(t)
	store.failEngagements = true

	out, err := svc.Award(context.Background(), p.ID, ownerID)
	if err != nil {
		t.Fatalf("award must tolerate engagement failure: %v", err)
	}
	if out.Contract == nil {
		t.Fatal("contract must be kept")
	}
	if out.Engagement != nil {
		t.Fatal("no engagement should be reported")
	}
	if p.Status != models.ProposalAwarded {
		t.Fatal("proposal must still be awarded")
	}
	if len(store.contracts) != 1 {
		t.Fatalf("expected the contract to remain, got %d", len(store.contracts))
	}
}

func TestAward_SubContractRequiresParent(t *testing.T) {
	svc, store, p, ownerID := awardFixture(t)
	p.ProposalType = models.ProposalSubContractorToVendor
	p.ScopeType = models.ScopeMinor

	_, err := svc.Award(context.Background(), p.ID, ownerID)
	if !errors.Is(err, ErrMissingParentContract) {
		t.Fatalf("expected ErrMissingParentContract, got %v", err)
	}

	parent := &models.Contract{
		ID:               uuid.New(),
		ContractType:     models.ContractProject,
		Status:           models.ContractActive,
		SourceProposalID: uuid.New(),
	}
	store.contracts[parent.ID] = parent
	p.ParentContractID = &parent.ID

	out, err := svc.Award(context.Background(), p.ID, ownerID)
	if err != nil {
		t.Fatalf("sub-contract award failed: %v", err)
	}
	if out.Contract.ContractType != models.ContractSub {
		t.Fatalf("expected SUB_CONTRACT, got %s", out.Contract.ContractType)
	}
	if out.Contract.ParentContractID == nil || *out.Contract.ParentContractID != parent.ID {
		t.Fatal("sub-contract must reference its parent")
	}
	if out.Engagement.EngagementType != models.EngagementProjectExecution {
		t.Fatalf("sub-contract engagements execute project work, got %s", out.Engagement.EngagementType)
	}
}

func TestAward_SubContractParentCannotBeSubContract(t *testing.T) {
	svc, store, p, ownerID := awardFixture(t)
	p.ProposalType = models.ProposalSubContractorToVendor

	parent := &models.Contract{
		ID:               uuid.New(),
		ContractType:     models.ContractSub,
		Status:           models.ContractActive,
		SourceProposalID: uuid.New(),
	}
	store.contracts[parent.ID] = parent
	p.ParentContractID = &parent.ID

	_, err := svc.Award(context.Background(), p.ID, ownerID)
	if !errors.Is(err, ErrBadParentContract) {
		t.Fatalf("expected ErrBadParentContract, got %v", err)
	}
}

func TestCreateEngagement_RequiresExecutableContract(t *testing.T) {
	svc, store, _, _ := awardFixture(t)

	contract := &models.Contract{
		ID:               uuid.New(),
		ContractType:     models.ContractService,
		Status:           models.ContractDraft,
		SourceProposalID: uuid.New(),
	}
	store.contracts[contract.ID] = contract

	// PLANNED against DRAFT is the one tolerated exception.
	e, err := svc.CreateEngagement(context.Background(), contract.ID, models.EngagementServiceDelivery, models.EngagementPlanned)
	if err != nil {
		t.Fatalf("PLANNED against DRAFT should pass: %v", err)
	}
	if e.Status != models.EngagementPlanned {
		t.Fatalf("expected PLANNED, got %s", e.Status)
	}

	if _, err := svc.CreateEngagement(context.Background(), contract.ID, models.EngagementServiceDelivery, models.EngagementActive); err == nil {
		t.Fatal("ACTIVE against DRAFT must fail")
	}
}
