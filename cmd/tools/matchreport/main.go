package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/db"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/matching"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

func main() {
	needFlag := flag.String("need", "", "id of the need to score")
	limit := flag.Int("limit", 20, "maximum offers to report")
	tolerance := flag.Float64("tolerance", matching.DefaultTolerance, "barter tolerance fraction")
	flag.Parse()

	needID, err := uuid.Parse(*needFlag)
	if err != nil {
		log.Fatalf("-need must be a valid uuid: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	need, err := store.Opportunity(ctx, needID)
	if err != nil {
		log.Fatal(err)
	}
	if need == nil {
		log.Fatalf("need %s not found", needID)
	}
	if !need.IsNeed() {
		log.Fatalf("%s is not a need", needID)
	}

	offers, err := store.ListOpportunities(ctx, db.ListParams{
		Intent: models.IntentOfferService,
		Status: models.OpportunityOpen,
		Limit:  500,
	})
	if err != nil {
		log.Fatal(err)
	}

	router := matching.NewRouter(store)
	type scored struct {
		offer models.Opportunity
		match matching.MatchResult
	}
	var results []scored
	for i := range offers.Opportunities {
		offer := &offers.Opportunities[i]
		if offer.CompanyID == need.CompanyID {
			continue
		}
		results = append(results, scored{offer: *offer, match: router.Route(ctx, need, offer, nil)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].match.FinalScore > results[j].match.FinalScore
	})
	if len(results) > *limit {
		results = results[:*limit]
	}

	fmt.Printf("Need: %s (%s, %s)\n", need.Title, need.PaymentMode, need.MatchingModel)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Offer", "Model", "Score", "Skills", "Budget", "Location", "Barter"})

	for _, r := range results {
		barter := "-"
		if r.offer.PaymentMode == models.PaymentBarter || r.offer.PaymentMode == models.PaymentHybrid {
			eq := matching.Exchange(need, &r.offer, *tolerance)
			if eq.Balanced() {
				barter = "balanced"
			} else {
				barter = "unbalanced"
			}
		}
		report := matching.Mirror(need, &r.offer)
		t.AppendRow(table.Row{
			r.offer.Title,
			r.match.MatchingModel,
			r.match.FinalScore,
			report.Skills.Score,
			report.Budget.Score,
			report.Location.Score,
			barter,
		})
	}
	t.Render()
}
