package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

// handleSeed loads a small demo marketplace: one buying entity, two vendors,
// a consultant and a sub-contractor, plus a cash need with matching offers
// and a barter pair. Intended for local development and demos only, hence
// admin-gated.
func (s *Server) handleSeed(c echo.Context) error {
	ctx := c.Request().Context()

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	users := []models.User{
		{Email: "entity@pmtwin.local", Role: models.RoleEntity, CompanyName: "Riyadh Development Co"},
		{Email: "vendor1@pmtwin.local", Role: models.RoleVendor, CompanyName: "Alpha Contracting", ExperienceYears: 12},
		{Email: "vendor2@pmtwin.local", Role: models.RoleVendor, CompanyName: "Beta Builders", ExperienceYears: 6},
		{Email: "consultant@pmtwin.local", Role: models.RoleConsultant, CompanyName: "Gulf Advisory Group", ExperienceYears: 15},
		{Email: "subcontractor@pmtwin.local", Role: models.RoleSubContractor, CompanyName: "Delta MEP Works", ExperienceYears: 8},
	}
	created := 0
	companyByEmail := map[string]uuid.UUID{}
	for i := range users {
		u := &users[i]
		existing, err := s.Store.UserByEmail(ctx, u.Email)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		if existing != nil {
			companyByEmail[u.Email] = existing.CompanyID
			continue
		}
		u.ID = uuid.New()
		u.CompanyID = uuid.New()
		u.PasswordHash = string(hash)
		if err := s.Store.CreateUser(ctx, u); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		companyByEmail[u.Email] = u.CompanyID
		created++
	}

	riyadh := &models.Location{City: "Riyadh", Region: "Central", Country: "SA"}
	opportunities := []models.Opportunity{
		{
			CompanyID:   companyByEmail["entity@pmtwin.local"],
			Title:       "Mixed-use tower structural package",
			Summary:     "Structural works for a 30-floor mixed-use tower.",
			IntentType:  models.IntentRequestService,
			PaymentMode: models.PaymentCash,
			Status:      models.OpportunityOpen,
			Attributes: models.OpportunityAttributes{
				Category:        "construction",
				RequiredSkills:  []string{"structural engineering", "concrete works"},
				ExperienceYears: 8,
				BudgetRange:     &models.BudgetRange{Min: 2_000_000, Max: 3_500_000},
				Location:        riyadh,
			},
		},
		{
			CompanyID:   companyByEmail["vendor1@pmtwin.local"],
			Title:       "Structural contracting capacity",
			Summary:     "Full structural delivery, concrete and steel.",
			IntentType:  models.IntentOfferService,
			PaymentMode: models.PaymentCash,
			Status:      models.OpportunityOpen,
			Attributes: models.OpportunityAttributes{
				Category:        "construction",
				AvailableSkills: []string{"structural engineering", "concrete works", "steel erection"},
				ExperienceYears: 12,
				RateRange:       &models.BudgetRange{Min: 2_200_000, Max: 3_000_000},
				Location:        riyadh,
			},
		},
		{
			CompanyID:   companyByEmail["consultant@pmtwin.local"],
			Title:       "Design review and value engineering advisory",
			IntentType:  models.IntentOfferService,
			PaymentMode: models.PaymentBarter,
			Status:      models.OpportunityOpen,
			Attributes: models.OpportunityAttributes{
				Category:        "advisory",
				AvailableSkills: []string{"design review", "value engineering"},
				Location:        riyadh,
			},
			ServiceItems: []models.ServiceItem{
				{ServiceName: "Design review", UnitOfMeasure: "package", Quantity: 1, UnitPrice: 95_000, TotalReferenceValue: 95_000, Currency: "SAR", Direction: models.DirectionOffered},
			},
		},
		{
			CompanyID:   companyByEmail["vendor2@pmtwin.local"],
			Title:       "Facade works sought against design services",
			Summary:     "Barter: facade package against design review support.",
			IntentType:  models.IntentRequestService,
			PaymentMode: models.PaymentBarter,
			Status:      models.OpportunityOpen,
			Attributes: models.OpportunityAttributes{
				Category:       "advisory",
				RequiredSkills: []string{"design review"},
				Location:       riyadh,
			},
			ServiceItems: []models.ServiceItem{
				{ServiceName: "Facade works", UnitOfMeasure: "package", Quantity: 1, UnitPrice: 100_000, TotalReferenceValue: 100_000, Currency: "SAR", Direction: models.DirectionOffered},
				{ServiceName: "Design review", UnitOfMeasure: "package", Quantity: 1, UnitPrice: 95_000, TotalReferenceValue: 95_000, Currency: "SAR", Direction: models.DirectionRequested},
			},
		},
	}

	seeded := 0
	for i := range opportunities {
		if err := s.Store.CreateOpportunity(ctx, &opportunities[i]); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		seeded++
	}

	// Link the barter pair so the classifier has a real topology to chew on.
	barterNeed := opportunities[3].ID
	barterOffer := opportunities[2].ID
	if _, err := s.linker.Link(ctx, barterNeed, []uuid.UUID{barterOffer}); err != nil {
		c.Logger().Warnf("seed: barter link skipped: %v", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"users_created":         created,
		"opportunities_created": seeded,
	})
}
