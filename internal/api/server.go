package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/audit"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/auth"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/db"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/lifecycle"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/linking"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/matching"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/rules"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/sanitize"
)

type Server struct {
	Store       *db.Store
	AuthService *auth.Service
	Echo        *echo.Echo
	DB          *pgxpool.Pool

	rules      *rules.Registry
	classifier *matching.Classifier
	router     *matching.Router
	linker     *linking.Service
	validator  *lifecycle.Validator
	award      *lifecycle.AwardService
	audit      audit.Sink
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool) (*Server, error) {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	registry, err := rules.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load role registry: %w", err)
	}

	store := db.NewStore(pool)
	sink := audit.NewPGSink(pool)
	authService := auth.NewService(store, auth.NewRoleCache())
	classifier := matching.NewClassifier(store)

	s := &Server{
		DB:          pool,
		Store:       store,
		AuthService: authService,
		Echo:        e,
		rules:       registry,
		classifier:  classifier,
		router:      matching.NewRouter(store),
		linker:      linking.NewService(store, classifier, sink),
		validator:   lifecycle.NewValidator(registry),
		award:       lifecycle.NewAwardService(store, authService, registry, sink),
		audit:       sink,
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")

	// Auth
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Public reads
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.GET("/opportunities/:id/matching-model", s.handleMatchingModel)
	api.GET("/opportunities/:id/matches", s.handleMatches)
	api.POST("/matches/score", s.handleScorePair)
	api.POST("/settlement/equivalence", s.handleEquivalence)
	api.GET("/proposals/:id", s.handleGetProposal)

	// Authenticated writes
	authed := api.Group("")
	authed.Use(auth.Middleware)
	authed.POST("/opportunities", s.handleCreateOpportunity)
	authed.POST("/opportunities/:id/links", s.handleLink)
	authed.DELETE("/opportunities/:id/links", s.handleUnlink)
	authed.POST("/proposals", s.handleCreateProposal)
	authed.PATCH("/proposals/:id/status", s.handleProposalStatus)
	authed.POST("/proposals/:id/award", s.handleAward)
	authed.PATCH("/contracts/:id/status", s.handleContractStatus)
	authed.POST("/engagements", s.handleCreateEngagement)
	authed.PATCH("/engagements/:id/status", s.handleEngagementStatus)

	// Admin
	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/seed", s.handleSeed)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		if errors.Is(err, auth.ErrInvalidRole) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	params := db.ListParams{
		Query:         c.QueryParam("q"),
		Intent:        models.IntentType(c.QueryParam("intent")),
		PaymentMode:   models.PaymentMode(c.QueryParam("payment_mode")),
		MatchingModel: models.MatchingModel(c.QueryParam("matching_model")),
		Status:        models.OpportunityStatus(c.QueryParam("status")),
		Category:      c.QueryParam("category"),
		Skill:         c.QueryParam("skill"),
		SortBy:        c.QueryParam("sort"),
		Limit:         20,
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		params.Offset = o
	}
	if v := c.QueryParam("company_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid company_id"})
		}
		params.CompanyID = id
	}

	result, err := s.Store.ListOpportunities(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("Failed to list opportunities: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}
	opp, err := s.Store.Opportunity(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if opp == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, opp)
}

type createOpportunityRequest struct {
	Title        string                       `json:"title"`
	Description  string                       `json:"description"`
	IntentType   models.IntentType            `json:"intent_type"`
	PaymentMode  models.PaymentMode           `json:"payment_mode"`
	CollabModel  models.CollaborationModel    `json:"collaboration_model"`
	Attributes   models.OpportunityAttributes `json:"attributes"`
	ServiceItems []models.ServiceItem         `json:"service_items"`
}

func (s *Server) handleCreateOpportunity(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req createOpportunityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if !req.IntentType.Valid() {
		return c.JSON(http.StatusUnprocessableEntity, validationPayload("intent_type must be REQUEST_SERVICE or OFFER_SERVICE"))
	}
	if !req.PaymentMode.Valid() {
		return c.JSON(http.StatusUnprocessableEntity, validationPayload("unknown payment_mode"))
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.JSON(http.StatusUnprocessableEntity, validationPayload("title is required"))
	}
	for _, item := range req.ServiceItems {
		if err := item.Validate(); err != nil {
			return c.JSON(http.StatusUnprocessableEntity, validationPayload(err.Error()))
		}
	}

	user, err := s.Store.User(c.Request().Context(), userID)
	if err != nil || user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unknown user"})
	}

	description := sanitize.HTML(req.Description)
	opp := models.Opportunity{
		CompanyID:    user.CompanyID,
		Title:        sanitize.Text(req.Title),
		Summary:      sanitize.Truncate(sanitize.Text(req.Description), 280),
		Description:  description,
		IntentType:   req.IntentType,
		PaymentMode:  req.PaymentMode,
		CollabModel:  req.CollabModel,
		Attributes:   req.Attributes,
		ServiceItems: req.ServiceItems,
		Status:       models.OpportunityOpen,
	}
	if err := s.Store.CreateOpportunity(c.Request().Context(), &opp); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	s.audit.Record(c.Request().Context(), "opportunity.create", "opportunity", opp.ID, opp.Title, nil, opp)
	return c.JSON(http.StatusCreated, opp)
}

type linkRequest struct {
	OfferIDs []uuid.UUID `json:"offer_ids"`
}

func (s *Server) handleLink(c echo.Context) error {
	return s.handleLinkChange(c, s.linker.Link)
}

func (s *Server) handleUnlink(c echo.Context) error {
	return s.handleLinkChange(c, s.linker.Unlink)
}

func (s *Server) handleLinkChange(c echo.Context, op func(ctx context.Context, needID uuid.UUID, offerIDs []uuid.UUID) (*linking.LinkResult, error)) error {
	needID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}
	var req linkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if len(req.OfferIDs) == 0 {
		return c.JSON(http.StatusUnprocessableEntity, validationPayload("offer_ids is required"))
	}

	result, err := op(c.Request().Context(), needID, req.OfferIDs)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, result)
	case errors.Is(err, linking.ErrNeedNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, linking.ErrNotANeed):
		return c.JSON(http.StatusUnprocessableEntity, validationPayload(err.Error()))
	case errors.Is(err, linking.ErrNoOffersLinked), errors.Is(err, linking.ErrNoOffersUnlinked):
		return c.JSON(http.StatusUnprocessableEntity, validationPayload(err.Error()))
	case errors.Is(err, db.ErrVersionConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleMatchingModel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}
	need, err := s.Store.Opportunity(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if need == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	model, err := s.classifier.Classify(c.Request().Context(), need)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, validationPayload(err.Error()))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"opportunity_id": need.ID,
		"matching_model": model,
		"linked_offers":  len(need.LinkedOffers),
	})
}

type scoredMatch struct {
	Offer models.Opportunity   `json:"offer"`
	Match matching.MatchResult `json:"match"`
}

func (s *Server) handleMatches(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}
	ctx := c.Request().Context()

	need, err := s.Store.Opportunity(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if need == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if !need.IsNeed() {
		return c.JSON(http.StatusUnprocessableEntity, validationPayload("matches are computed for needs only"))
	}

	limit := 20
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	offers, err := s.Store.ListOpportunities(ctx, db.ListParams{
		Intent: models.IntentOfferService,
		Status: models.OpportunityOpen,
		Limit:  200,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	matches := make([]scoredMatch, 0, len(offers.Opportunities))
	for i := range offers.Opportunities {
		offer := &offers.Opportunities[i]
		if offer.CompanyID == need.CompanyID {
			continue
		}
		result := s.router.Route(ctx, need, offer, nil)
		matches = append(matches, scoredMatch{Offer: *offer, Match: result})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Match.FinalScore > matches[j].Match.FinalScore
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	return c.JSON(http.StatusOK, map[string]any{
		"need_id": need.ID,
		"matches": matches,
	})
}

type scorePairRequest struct {
	NeedID  uuid.UUID `json:"need_id"`
	OfferID uuid.UUID `json:"offer_id"`
}

func (s *Server) handleScorePair(c echo.Context) error {
	var req scorePairRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	ctx := c.Request().Context()

	need, err := s.Store.Opportunity(ctx, req.NeedID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	offer, err := s.Store.Opportunity(ctx, req.OfferID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if need == nil || offer == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Need or offer not found"})
	}

	result := s.router.Route(ctx, need, offer, nil)
	return c.JSON(http.StatusOK, result)
}

type equivalenceRequest struct {
	Offered   []models.ServiceItem `json:"offered"`
	Requested []models.ServiceItem `json:"requested"`
	Tolerance float64              `json:"tolerance"`
}

func (s *Server) handleEquivalence(c echo.Context) error {
	var req equivalenceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	for _, item := range append(append([]models.ServiceItem{}, req.Offered...), req.Requested...) {
		if err := item.Validate(); err != nil {
			return c.JSON(http.StatusUnprocessableEntity, validationPayload(err.Error()))
		}
	}
	eq := matching.CalculateEquivalence(req.Offered, req.Requested, req.Tolerance)
	return c.JSON(http.StatusOK, eq)
}

type createProposalRequest struct {
	ProposalType     models.ProposalType     `json:"proposal_type"`
	TargetType       models.TargetType       `json:"target_type"`
	TargetID         uuid.UUID               `json:"target_id"`
	ScopeType        models.ScopeType        `json:"scope_type"`
	ScopeID          uuid.UUID               `json:"scope_id"`
	Scope            *models.SubProjectScope `json:"scope,omitempty"`
	OwnerCompanyID   uuid.UUID               `json:"owner_company_id"`
	ServiceItems     []models.ServiceItem    `json:"service_items"`
	ParentContractID *uuid.UUID              `json:"parent_contract_id,omitempty"`
	Notes            string                  `json:"notes"`
}

func (s *Server) handleCreateProposal(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req createProposalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if !req.ProposalType.Valid() || !req.TargetType.Valid() || !req.ScopeType.Valid() {
		return c.JSON(http.StatusUnprocessableEntity, validationPayload("unknown proposal, target, or scope type"))
	}
	for _, item := range req.ServiceItems {
		if err := item.Validate(); err != nil {
			return c.JSON(http.StatusUnprocessableEntity, validationPayload(err.Error()))
		}
	}

	ctx := c.Request().Context()
	bidder, err := s.Store.User(ctx, userID)
	if err != nil || bidder == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unknown user"})
	}

	p := models.Proposal{
		ProposalType:     req.ProposalType,
		TargetType:       req.TargetType,
		TargetID:         req.TargetID,
		ScopeType:        req.ScopeType,
		ScopeID:          req.ScopeID,
		Scope:            req.Scope,
		OwnerCompanyID:   req.OwnerCompanyID,
		BidderCompanyID:  bidder.CompanyID,
		BidderUserID:     bidder.ID,
		ServiceItems:     req.ServiceItems,
		Status:           models.ProposalDraft,
		ParentContractID: req.ParentContractID,
		Notes:            sanitize.Text(req.Notes),
	}

	ownerRole, err := s.Store.CompanyRole(ctx, req.OwnerCompanyID)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, validationPayload("target company is unknown"))
	}
	if res := s.validator.ValidateProposal(&p, bidder.Role, ownerRole); !res.Valid {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{"valid": false, "errors": res.Errors})
	}

	if err := s.Store.CreateProposal(ctx, &p); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	s.audit.Record(ctx, "proposal.create", "proposal", p.ID, string(p.ProposalType), nil, p)
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleGetProposal(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}
	p, err := s.Store.Proposal(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if p == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, p)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleProposalStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	target := models.ProposalStatus(req.Status)
	if !target.Valid() {
		return c.JSON(http.StatusUnprocessableEntity, validationPayload("unknown proposal status"))
	}

	ctx := c.Request().Context()
	p, err := s.Store.Proposal(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if p == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	if _, err := lifecycle.TransitionProposal(p.Status, target); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err := s.Store.UpdateProposalStatus(ctx, id, target); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	s.audit.Record(ctx, "proposal.status", "proposal", id, string(target), p.Status, target)
	return c.JSON(http.StatusOK, map[string]any{"id": id, "status": target})
}

func (s *Server) handleAward(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}

	outcome, err := s.award.Award(c.Request().Context(), id, userID)
	if err != nil {
		var ste *lifecycle.StateTransitionError
		switch {
		case errors.As(err, &ste):
			return c.JSON(http.StatusConflict, map[string]string{"error": ste.Error()})
		case errors.Is(err, lifecycle.ErrProposalNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, lifecycle.ErrNotOwner):
			return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
		case errors.Is(err, lifecycle.ErrMissingParentContract), errors.Is(err, lifecycle.ErrBadParentContract):
			return c.JSON(http.StatusUnprocessableEntity, validationPayload(err.Error()))
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	status := http.StatusCreated
	if outcome.AlreadyAwarded {
		status = http.StatusOK
	}
	return c.JSON(status, outcome)
}

func (s *Server) handleContractStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	target := models.ContractStatus(req.Status)
	if !target.Valid() {
		return c.JSON(http.StatusUnprocessableEntity, validationPayload("unknown contract status"))
	}

	ctx := c.Request().Context()
	contract, err := s.Store.Contract(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if contract == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	if _, err := lifecycle.TransitionContract(contract.Status, target); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err := s.Store.UpdateContractStatus(ctx, id, target); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	s.audit.Record(ctx, "contract.status", "contract", id, string(target), contract.Status, target)
	return c.JSON(http.StatusOK, map[string]any{"id": id, "status": target})
}

type createEngagementRequest struct {
	ContractID     uuid.UUID               `json:"contract_id"`
	EngagementType models.EngagementType   `json:"engagement_type"`
	Status         models.EngagementStatus `json:"status"`
}

func (s *Server) handleCreateEngagement(c echo.Context) error {
	var req createEngagementRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Status == "" {
		req.Status = models.EngagementPlanned
	}

	e, err := s.award.CreateEngagement(c.Request().Context(), req.ContractID, req.EngagementType, req.Status)
	if err != nil {
		if errors.Is(err, lifecycle.ErrContractNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusUnprocessableEntity, validationPayload(err.Error()))
	}
	return c.JSON(http.StatusCreated, e)
}

func (s *Server) handleEngagementStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	target := models.EngagementStatus(req.Status)
	if !target.Valid() {
		return c.JSON(http.StatusUnprocessableEntity, validationPayload("unknown engagement status"))
	}

	ctx := c.Request().Context()
	e, err := s.Store.Engagement(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if e == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	if _, err := lifecycle.TransitionEngagement(e.Status, target); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err := s.Store.UpdateEngagementStatus(ctx, id, target); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	s.audit.Record(ctx, "engagement.status", "engagement", id, string(target), e.Status, target)
	return c.JSON(http.StatusOK, map[string]any{"id": id, "status": target})
}

func validationPayload(reasons ...string) map[string]any {
	return map[string]any{"valid": false, "errors": reasons}
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
