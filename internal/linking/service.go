// Package linking maintains the many-to-many Need/Offer graph. Links are
// gated on intent, payment-mode compatibility and semantic mirroring, with
// per-offer rejection so a batch of candidates can partially succeed.
package linking

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/audit"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/matching"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

var (
	ErrNeedNotFound     = errors.New("need not found")
	ErrNotANeed         = errors.New("opportunity is not a need")
	ErrNoOffersLinked   = errors.New("no offers could be linked")
	ErrNoOffersUnlinked = errors.New("no offers could be unlinked")
)

// Store is the persistence surface the linking service needs. The link-set
// write carries the version read alongside the links so concurrent writers
// to the same Need serialize instead of silently losing links.
type Store interface {
	Opportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	UpdateOpportunityLinks(ctx context.Context, id uuid.UUID, links []uuid.UUID, model models.MatchingModel, expectedVersion int) error
}

// LinkError reports why one candidate offer was rejected.
type LinkError struct {
	OfferID uuid.UUID `json:"offer_id"`
	Reason  string    `json:"reason"`
}

// LinkResult is the outcome of a link or unlink call: the full updated link
// set, the recomputed matching model, and any per-offer rejections.
type LinkResult struct {
	LinkedOffers  []uuid.UUID          `json:"linked_offers"`
	MatchingModel models.MatchingModel `json:"matching_model"`
	Errors        []LinkError          `json:"errors,omitempty"`
}

type Service struct {
	store      Store
	classifier *matching.Classifier
	audit      audit.Sink
}

func NewService(store Store, classifier *matching.Classifier, sink audit.Sink) *Service {
	return &Service{store: store, classifier: classifier, audit: sink}
}

// Link attaches the given offers to a Need. Each offer is checked
// independently: it must exist, carry OFFER_SERVICE intent, use a payment
// mode compatible with the Need's, and pass the mirroring gate. Failures are
// collected per offer; the call fails wholesale only when the Need is
// missing or not a Need, or when not a single offer could be linked.
func (s *Service) Link(ctx context.Context, needID uuid.UUID, offerIDs []uuid.UUID) (*LinkResult, error) {
	need, err := s.loadNeed(ctx, needID)
	if err != nil {
		return nil, err
	}

	linked := linkSet(need.LinkedOffers)
	var errs []LinkError
	accepted := 0
	for _, offerID := range offerIDs {
		if _, ok := linked[offerID]; ok {
			accepted++ // already part of the set, nothing to do
			continue
		}
		if reason := s.checkOffer(ctx, need, offerID); reason != "" {
			errs = append(errs, LinkError{OfferID: offerID, Reason: reason})
			continue
		}
		linked[offerID] = struct{}{}
		accepted++
	}
	if accepted == 0 {
		return nil, fmt.Errorf("%w: %d offers rejected", ErrNoOffersLinked, len(errs))
	}

	result, err := s.writeLinks(ctx, need, linked, errs)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "opportunity.link", "opportunity", need.ID,
		fmt.Sprintf("linked %d of %d offers", accepted, len(offerIDs)),
		need.LinkedOffers, result.LinkedOffers)
	return result, nil
}

// Unlink removes offers from a Need's link set and recomputes the matching
// model over what remains. Offers not currently linked are reported per
// offer, matching Link's partial-success shape.
func (s *Service) Unlink(ctx context.Context, needID uuid.UUID, offerIDs []uuid.UUID) (*LinkResult, error) {
	need, err := s.loadNeed(ctx, needID)
	if err != nil {
		return nil, err
	}

	linked := linkSet(need.LinkedOffers)
	var errs []LinkError
	removed := 0
	for _, offerID := range offerIDs {
		if _, ok := linked[offerID]; !ok {
			errs = append(errs, LinkError{OfferID: offerID, Reason: "offer is not linked to this need"})
			continue
		}
		delete(linked, offerID)
		removed++
	}
	if removed == 0 {
		return nil, fmt.Errorf("%w: %d offers rejected", ErrNoOffersUnlinked, len(errs))
	}

	result, err := s.writeLinks(ctx, need, linked, errs)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "opportunity.unlink", "opportunity", need.ID,
		fmt.Sprintf("unlinked %d of %d offers", removed, len(offerIDs)),
		need.LinkedOffers, result.LinkedOffers)
	return result, nil
}

func (s *Service) loadNeed(ctx context.Context, needID uuid.UUID) (*models.Opportunity, error) {
	need, err := s.store.Opportunity(ctx, needID)
	if err != nil {
		return nil, fmt.Errorf("failed to load need: %w", err)
	}
	if need == nil {
		return nil, ErrNeedNotFound
	}
	if !need.IsNeed() {
		return nil, ErrNotANeed
	}
	return need, nil
}

// checkOffer returns an empty string when the offer may be linked, else the
// rejection reason.
func (s *Service) checkOffer(ctx context.Context, need *models.Opportunity, offerID uuid.UUID) string {
	offer, err := s.store.Opportunity(ctx, offerID)
	if err != nil {
		return fmt.Sprintf("failed to load offer: %v", err)
	}
	if offer == nil {
		return "offer not found"
	}
	if offer.IntentType != models.IntentOfferService {
		return fmt.Sprintf("opportunity has intent %s, expected %s", offer.IntentType, models.IntentOfferService)
	}
	if !paymentCompatible(need.PaymentMode, offer.PaymentMode) {
		return fmt.Sprintf("payment mode %s is not compatible with %s", offer.PaymentMode, need.PaymentMode)
	}
	if report := matching.Mirror(need, offer); !report.OverallCompatible {
		return "offer does not mirror the need's requirements"
	}
	return ""
}

// writeLinks recomputes the matching model over the new set and persists it
// against the version the need was read at. A classification failure (graph
// over budget) keeps the previously cached model rather than blocking the
// link itself.
func (s *Service) writeLinks(ctx context.Context, need *models.Opportunity, linked map[uuid.UUID]struct{}, errs []LinkError) (*LinkResult, error) {
	links := make([]uuid.UUID, 0, len(linked))
	for id := range linked {
		links = append(links, id)
	}

	reclassified := *need
	reclassified.LinkedOffers = links
	model, err := s.classifier.Classify(ctx, &reclassified)
	if err != nil {
		log.Printf("link %s: classification failed, keeping model %s: %v", need.ID, need.MatchingModel, err)
		model = need.MatchingModel
		if !model.Valid() {
			model = models.ModelOneWay
		}
	}

	if err := s.store.UpdateOpportunityLinks(ctx, need.ID, links, model, need.Version); err != nil {
		return nil, fmt.Errorf("failed to update links: %w", err)
	}
	return &LinkResult{LinkedOffers: links, MatchingModel: model, Errors: errs}, nil
}

// paymentCompatible allows equal modes, plus cash against hybrid in either
// direction.
func paymentCompatible(a, b models.PaymentMode) bool {
	if a == b {
		return true
	}
	return (a == models.PaymentCash && b == models.PaymentHybrid) ||
		(a == models.PaymentHybrid && b == models.PaymentCash)
}

func linkSet(links []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(links))
	for _, id := range links {
		set[id] = struct{}{}
	}
	return set
}
