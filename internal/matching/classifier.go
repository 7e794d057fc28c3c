package matching

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

// ErrGraphTooLarge is returned when linkage traversal exceeds the node
// budget. Pathological link graphs must not grow the call stack or spin.
var ErrGraphTooLarge = errors.New("linkage graph exceeds traversal budget")

// OpportunityLookup fetches opportunities during graph traversal. A nil
// result with a nil error means the id does not resolve; traversal skips it.
type OpportunityLookup interface {
	Opportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
}

// DefaultMaxGraphNodes bounds cycle-detection traversal.
const DefaultMaxGraphNodes = 10_000

// Classifier assigns one of the four matching topologies to a Need based on
// its payment mode, linked-offer count, declared collaboration sub-model, and
// the shape of the linkage graph.
type Classifier struct {
	lookup   OpportunityLookup
	maxNodes int
}

func NewClassifier(lookup OpportunityLookup) *Classifier {
	return &Classifier{lookup: lookup, maxNodes: DefaultMaxGraphNodes}
}

// Classify decides the matching model for a Need. First rule that applies
// wins; the only error condition is an over-budget linkage graph.
func (c *Classifier) Classify(ctx context.Context, need *models.Opportunity) (models.MatchingModel, error) {
	switch need.PaymentMode {
	case models.PaymentBarter, models.PaymentHybrid:
		cyclic, err := c.HasCircularDependencies(ctx, need)
		if err != nil {
			return "", err
		}
		// A cycle routing back to the Need is a valid topology of its own,
		// not an error state. A chain needs at least three members; shorter
		// loops are just mutual dependencies.
		if cyclic && len(need.LinkedOffers) >= 3 {
			return models.ModelCircularExchange, nil
		}
		if len(need.LinkedOffers) > 1 {
			return models.ModelGroupFormation, nil
		}
		return models.ModelTwoWayDependency, nil
	case models.PaymentCash, models.PaymentEquity, models.PaymentProfitSharing:
		// fall through to the structural rules below
	default:
		// Unknown mode behaves like cash: structure alone decides.
	}

	if len(need.LinkedOffers) > 1 {
		return models.ModelGroupFormation, nil
	}
	if need.CollabModel.IsGroup() {
		return models.ModelGroupFormation, nil
	}
	return models.ModelOneWay, nil
}

// HasCircularDependencies reports whether the directed linkage graph rooted
// at the Need contains a path through linked offers back to the Need itself.
// The walk is an explicit-stack DFS with a per-call visited set, bounded by
// the node budget.
func (c *Classifier) HasCircularDependencies(ctx context.Context, need *models.Opportunity) (bool, error) {
	if len(need.LinkedOffers) == 0 {
		return false, nil
	}

	visited := make(map[uuid.UUID]bool)
	stack := make([]uuid.UUID, 0, len(need.LinkedOffers))
	stack = append(stack, need.LinkedOffers...)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if id == need.ID {
			return true, nil
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		if len(visited) > c.maxNodes {
			return false, ErrGraphTooLarge
		}

		node, err := c.lookup.Opportunity(ctx, id)
		if err != nil {
			return false, err
		}
		if node == nil {
			continue
		}
		stack = append(stack, node.LinkedOffers...)
	}
	return false, nil
}
