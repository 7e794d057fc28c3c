package linking

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/audit"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/matching"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

type fakeStore struct {
	opportunities map[uuid.UUID]*models.Opportunity
	updates       int
	failVersion   bool
}

var errVersionConflict = errors.New("version conflict")

func newFakeStore() *fakeStore {
	return &fakeStore{opportunities: map[uuid.UUID]*models.Opportunity{}}
}

func (f *fakeStore) Opportunity(_ context.Context, id uuid.UUID) (*models.Opportunity, error) {
	return f.opportunities[id], nil
}

func (f *fakeStore) UpdateOpportunityLinks(_ context.Context, id uuid.UUID, links []uuid.UUID, model models.MatchingModel, expectedVersion int) error {
	if f.failVersion {
		return errVersionConflict
	}
	o := f.opportunities[id]
	if o == nil {
		return errors.New("missing opportunity")
	}
	if o.Version != expectedVersion {
		return errVersionConflict
	}
	o.LinkedOffers = links
	o.MatchingModel = model
	o.Version++
	f.updates++
	return nil
}

func (f *fakeStore) add(o *models.Opportunity) *models.Opportunity {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	f.opportunities[o.ID] = o
	return o
}

func newNeed(mode models.PaymentMode) *models.Opportunity {
	return &models.Opportunity{
		ID:          uuid.New(),
		IntentType:  models.IntentRequestService,
		PaymentMode: mode,
		Attributes: models.OpportunityAttributes{
			RequiredSkills: []string{"plumbing"},
		},
	}
}

func newOffer(mode models.PaymentMode) *models.Opportunity {
	return &models.Opportunity{
		ID:          uuid.New(),
		IntentType:  models.IntentOfferService,
		PaymentMode: mode,
		Attributes: models.OpportunityAttributes{
			AvailableSkills: []string{"plumbing"},
		},
	}
}

func newLinkService(store *fakeStore) *Service {
	return NewService(store, matching.NewClassifier(store), audit.NopSink{})
}

func TestLink_CompatibleOffer(t *testing.T) {
	store := newFakeStore()
	need := store.add(newNeed(models.PaymentCash))
	offer := store.add(newOffer(models.PaymentCash))

	res, err := newLinkService(store).Link(context.Background(), need.ID, []uuid.UUID{offer.ID})
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	if len(res.LinkedOffers) != 1 || res.LinkedOffers[0] != offer.ID {
		t.Fatalf("unexpected link set: %v", res.LinkedOffers)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if res.MatchingModel != models.ModelOneWay {
		t.Fatalf("expected ONE_WAY for a single cash link, got %s", res.MatchingModel)
	}
	if need.Version != 1 {
		t.Fatalf("version not bumped: %d", need.Version)
	}
}

func TestLink_PaymentMismatchNeverMutates(t *testing.T) {
	store := newFakeStore()
	need := store.add(newNeed(models.PaymentCash))
	offer := store.add(newOffer(models.PaymentEquity))

	_, err := newLinkService(store).Link(context.Background(), need.ID, []uuid.UUID{offer.ID})
	if !errors.Is(err, ErrNoOffersLinked) {
		t.Fatalf("expected ErrNoOffersLinked, got %v", err)
	}
	if len(need.LinkedOffers) != 0 {
		t.Fatalf("incompatible link mutated the need: %v", need.LinkedOffers)
	}
	if store.updates != 0 {
		t.Fatal("no store write should happen when every offer is rejected")
	}
}

func TestLink_CashHybridCompatible(t *testing.T) {
	store := newFakeStore()
	need := store.add(newNeed(models.PaymentCash))
	offer := store.add(newOffer(models.PaymentHybrid))

	res, err := newLinkService(store).Link(context.Background(), need.ID, []uuid.UUID{offer.ID})
	if err != nil {
		t.Fatalf("cash and hybrid must link: %v", err)
	}
	if len(res.LinkedOffers) != 1 {
		t.Fatalf("unexpected link set: %v", res.LinkedOffers)
	}
}

func TestLink_PartialSuccess(t *testing.T) {
	store := newFakeStore()
	need := store.add(newNeed(models.PaymentCash))
	good := store.add(newOffer(models.PaymentCash))
	badMode := store.add(newOffer(models.PaymentBarter))
	missing := uuid.New()
	wrongIntent := store.add(newNeed(models.PaymentCash))
	unmirrored := store.add(&models.Opportunity{
		ID:          uuid.New(),
		IntentType:  models.IntentOfferService,
		PaymentMode: models.PaymentCash,
		Attributes: models.OpportunityAttributes{
			AvailableSkills: []string{"carpentry"},
		},
	})

	res, err := newLinkService(store).Link(context.Background(), need.ID,
		[]uuid.UUID{good.ID, badMode.ID, missing, wrongIntent.ID, unmirrored.ID})
	if err != nil {
		t.Fatalf("partial success must not fail wholesale: %v", err)
	}
	if len(res.LinkedOffers) != 1 || res.LinkedOffers[0] != good.ID {
		t.Fatalf("expected only the compatible offer linked, got %v", res.LinkedOffers)
	}
	if len(res.Errors) != 4 {
		t.Fatalf("expected 4 per-offer errors, got %d: %v", len(res.Errors), res.Errors)
	}
	reasons := map[uuid.UUID]string{}
	for _, e := range res.Errors {
		reasons[e.OfferID] = e.Reason
	}
	if !strings.Contains(reasons[badMode.ID], "payment mode") {
		t.Fatalf("bad-mode reason: %q", reasons[badMode.ID])
	}
	if reasons[missing] != "offer not found" {
		t.Fatalf("missing-offer reason: %q", reasons[missing])
	}
	if !strings.Contains(reasons[wrongIntent.ID], "intent") {
		t.Fatalf("wrong-intent reason: %q", reasons[wrongIntent.ID])
	}
	if !strings.Contains(reasons[unmirrored.ID], "mirror") {
		t.Fatalf("unmirrored reason: %q", reasons[unmirrored.ID])
	}
}

func TestLink_NeedValidation(t *testing.T) {
	store := newFakeStore()
	offer := store.add(newOffer(models.PaymentCash))
	svc := newLinkService(store)

	if _, err := svc.Link(context.Background(), uuid.New(), []uuid.UUID{offer.ID}); !errors.Is(err, ErrNeedNotFound) {
		t.Fatalf("expected ErrNeedNotFound, got %v", err)
	}
	if _, err := svc.Link(context.Background(), offer.ID, []uuid.UUID{offer.ID}); !errors.Is(err, ErrNotANeed) {
		t.Fatalf("expected ErrNotANeed, got %v", err)
	}
}

func TestLink_RecomputesMatchingModel(t *testing.T) {
	store := newFakeStore()
	need := store.add(newNeed(models.PaymentBarter))
	first := store.add(newOffer(models.PaymentBarter))
	second := store.add(newOffer(models.PaymentBarter))
	svc := newLinkService(store)

	res, err := svc.Link(context.Background(), need.ID, []uuid.UUID{first.ID})
	if err != nil {
		t.Fatalf("first link failed: %v", err)
	}
	if res.MatchingModel != models.ModelTwoWayDependency {
		t.Fatalf("one barter link should classify TWO_WAY_DEPENDENCY, got %s", res.MatchingModel)
	}

	res, err = svc.Link(context.Background(), need.ID, []uuid.UUID{second.ID})
	if err != nil {
		t.Fatalf("second link failed: %v", err)
	}
	if res.MatchingModel != models.ModelGroupFormation {
		t.Fatalf("two barter links should classify GROUP_FORMATION, got %s", res.MatchingModel)
	}
	if need.MatchingModel != models.ModelGroupFormation {
		t.Fatalf("model not persisted: %s", need.MatchingModel)
	}
}

func TestLink_DuplicateIsNotAnError(t *testing.T) {
	store := newFakeStore()
	need := store.add(newNeed(models.PaymentCash))
	offer := store.add(newOffer(models.PaymentCash))
	svc := newLinkService(store)

	if _, err := svc.Link(context.Background(), need.ID, []uuid.UUID{offer.ID}); err != nil {
		t.Fatalf("first link failed: %v", err)
	}
	res, err := svc.Link(context.Background(), need.ID, []uuid.UUID{offer.ID})
	if err != nil {
		t.Fatalf("relinking an already linked offer failed: %v", err)
	}
	if len(res.LinkedOffers) != 1 {
		t.Fatalf("duplicate link grew the set: %v", res.LinkedOffers)
	}
}

func TestLink_VersionConflictSurfaces(t *testing.T) {
	store := newFakeStore()
	need := store.add(newNeed(models.PaymentCash))
	offer := store.add(newOffer(models.PaymentCash))
	store.failVersion = true

	_, err := newLinkService(store).Link(context.Background(), need.ID, []uuid.UUID{offer.ID})
	if !errors.Is(err, errVersionConflict) {
		t.Fatalf("expected the store's conflict error, got %v", err)
	}
}

func TestUnlink(t *testing.T) {
	store := newFakeStore()
	need := store.add(newNeed(models.PaymentCash))
	kept := store.add(newOffer(models.PaymentCash))
	dropped := store.add(newOffer(models.PaymentCash))
	svc := newLinkService(store)

	if _, err := svc.Link(context.Background(), need.ID, []uuid.UUID{kept.ID, dropped.ID}); err != nil {
		t.Fatalf("setup link failed: %v", err)
	}

	notLinked := uuid.New()
	res, err := svc.Unlink(context.Background(), need.ID, []uuid.UUID{dropped.ID, notLinked})
	if err != nil {
		t.Fatalf("unlink failed: %v", err)
	}
	if len(res.LinkedOffers) != 1 || res.LinkedOffers[0] != kept.ID {
		t.Fatalf("unexpected remaining links: %v", res.LinkedOffers)
	}
	if len(res.Errors) != 1 || res.Errors[0].OfferID != notLinked {
		t.Fatalf("expected a per-offer error for the unlinked id: %v", res.Errors)
	}

	_, err = svc.Unlink(context.Background(), need.ID, []uuid.UUID{notLinked})
	if !errors.Is(err, ErrNoOffersUnlinked) {
		t.Fatalf("expected ErrNoOffersUnlinked, got %v", err)
	}
}
