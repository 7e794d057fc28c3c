package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

// ErrVersionConflict means a link-set write lost the race against a
// concurrent writer; the caller should re-read and retry.
var ErrVersionConflict = errors.New("opportunity was modified concurrently")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Query         string
	Intent        models.IntentType
	PaymentMode   models.PaymentMode
	MatchingModel models.MatchingModel
	Status        models.OpportunityStatus
	Category      string
	Skill         string
	CompanyID     uuid.UUID
	SortBy        string
	Limit         int
	Offset        int
}

type ListResult struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

// opportunityCols is the comprehensive column list for all opportunity queries.
const opportunityCols = `id, company_id, title, summary, description, intent_type,
	payment_mode, collaboration_model, attributes, service_items, linked_offers,
	matching_model, status, version, created_at, updated_at`

func scanOpportunity(scan func(dest ...any) error) (models.Opportunity, error) {
	var o models.Opportunity
	var attrsRaw, itemsRaw []byte

	err := scan(
		&o.ID, &o.CompanyID, &o.Title, &o.Summary, &o.Description, &o.IntentType,
		&o.PaymentMode, &o.CollabModel, &attrsRaw, &itemsRaw, &o.LinkedOffers,
		&o.MatchingModel, &o.Status, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if len(attrsRaw) > 0 {
		if err := json.Unmarshal(attrsRaw, &o.Attributes); err != nil {
			return o, fmt.Errorf("bad attributes payload: %w", err)
		}
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &o.ServiceItems); err != nil {
			return o, fmt.Errorf("bad service_items payload: %w", err)
		}
	}
	return o, nil
}

func (s *Store) Opportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	sql := fmt.Sprintf("SELECT %s FROM opportunities WHERE id = $1", opportunityCols)
	o, err := scanOpportunity(s.pool.QueryRow(ctx, sql, id).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load opportunity: %w", err)
	}
	return &o, nil
}

func (s *Store) CreateOpportunity(ctx context.Context, o *models.Opportunity) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	if o.LinkedOffers == nil {
		o.LinkedOffers = []uuid.UUID{}
	}

	attrs, err := json.Marshal(o.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	items, err := json.Marshal(o.ServiceItems)
	if err != nil {
		return fmt.Errorf("failed to encode service items: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO opportunities (id, company_id, title, summary, description, intent_type,
			payment_mode, collaboration_model, attributes, service_items, linked_offers,
			matching_model, status, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, o.ID, o.CompanyID, o.Title, o.Summary, o.Description, o.IntentType,
		o.PaymentMode, o.CollabModel, attrs, items, o.LinkedOffers,
		o.MatchingModel, o.Status, o.Version, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert opportunity: %w", err)
	}
	return nil
}

func (s *Store) UpdateOpportunity(ctx context.Context, o *models.Opportunity) error {
	o.UpdatedAt = time.Now().UTC()

	attrs, err := json.Marshal(o.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	items, err := json.Marshal(o.ServiceItems)
	if err != nil {
		return fmt.Errorf("failed to encode service items: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE opportunities
		SET title = $2, summary = $3, description = $4, payment_mode = $5,
			collaboration_model = $6, attributes = $7, service_items = $8,
			status = $9, updated_at = $10
		WHERE id = $1
	`, o.ID, o.Title, o.Summary, o.Description, o.PaymentMode,
		o.CollabModel, attrs, items, o.Status, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update opportunity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("opportunity %s not found", o.ID)
	}
	return nil
}

// UpdateOpportunityLinks writes the link set and matching model recorded
// against the version the caller read. A stale version writes nothing and
// surfaces ErrVersionConflict so concurrent links merge instead of clobber.
func (s *Store) UpdateOpportunityLinks(ctx context.Context, id uuid.UUID, links []uuid.UUID, model models.MatchingModel, expectedVersion int) error {
	if links == nil {
		links = []uuid.UUID{}
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE opportunities
		SET linked_offers = $2, matching_model = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $4
	`, id, links, model, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update links: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM opportunities WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check opportunity: %w", err)
		}
		if exists {
			return ErrVersionConflict
		}
		return fmt.Errorf("opportunity %s not found", id)
	}
	return nil
}

func (s *Store) ListOpportunities(ctx context.Context, params ListParams) (*ListResult, error) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if params.Query != "" {
		where += fmt.Sprintf(" AND (title ILIKE '%%' || $%d || '%%' OR summary ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if params.Intent != "" {
		where += fmt.Sprintf(" AND intent_type = $%d", argIdx)
		args = append(args, params.Intent)
		argIdx++
	}
	if params.PaymentMode != "" {
		where += fmt.Sprintf(" AND payment_mode = $%d", argIdx)
		args = append(args, params.PaymentMode)
		argIdx++
	}
	if params.MatchingModel != "" {
		where += fmt.Sprintf(" AND matching_model = $%d", argIdx)
		args = append(args, params.MatchingModel)
		argIdx++
	}
	if params.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, params.Status)
		argIdx++
	}
	if params.Category != "" {
		where += fmt.Sprintf(" AND attributes->>'category' ILIKE $%d", argIdx)
		args = append(args, params.Category)
		argIdx++
	}
	if params.Skill != "" {
		// Needs declare required_skills, offers available_skills; match either.
		where += fmt.Sprintf(" AND (attributes->'required_skills' @> $%d OR attributes->'available_skills' @> $%d)", argIdx, argIdx)
		skillJSON, _ := json.Marshal([]string{params.Skill})
		args = append(args, skillJSON)
		argIdx++
	}
	if params.CompanyID != uuid.Nil {
		where += fmt.Sprintf(" AND company_id = $%d", argIdx)
		args = append(args, params.CompanyID)
		argIdx++
	}

	var total int
	countSQL := "SELECT COUNT(*) FROM opportunities " + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM opportunities %s", opportunityCols, where)
	switch params.SortBy {
	case "oldest":
		selectSQL += " ORDER BY created_at ASC"
	case "links":
		selectSQL += " ORDER BY cardinality(linked_offers) DESC, created_at DESC"
	default:
		selectSQL += " ORDER BY created_at DESC"
	}

	if params.Limit <= 0 {
		params.Limit = 50
	}
	selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}

	return &ListResult{
		Opportunities: opps,
		Total:         total,
		Limit:         params.Limit,
		Offset:        params.Offset,
	}, nil
}

const proposalCols = `id, proposal_type, target_type, target_id, scope_type, scope_id,
	scope, owner_company_id, bidder_company_id, bidder_user_id, service_items,
	status, contract_id, parent_contract_id, notes, created_at, updated_at`

func scanProposal(scan func(dest ...any) error) (models.Proposal, error) {
	var p models.Proposal
	var scopeRaw, itemsRaw []byte

	err := scan(
		&p.ID, &p.ProposalType, &p.TargetType, &p.TargetID, &p.ScopeType, &p.ScopeID,
		&scopeRaw, &p.OwnerCompanyID, &p.BidderCompanyID, &p.BidderUserID, &itemsRaw,
		&p.Status, &p.ContractID, &p.ParentContractID, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	if len(scopeRaw) > 0 {
		p.Scope = &models.SubProjectScope{}
		if err := json.Unmarshal(scopeRaw, p.Scope); err != nil {
			return p, fmt.Errorf("bad scope payload: %w", err)
		}
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &p.ServiceItems); err != nil {
			return p, fmt.Errorf("bad service_items payload: %w", err)
		}
	}
	return p, nil
}

func (s *Store) Proposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	sql := fmt.Sprintf("SELECT %s FROM proposals WHERE id = $1", proposalCols)
	p, err := scanProposal(s.pool.QueryRow(ctx, sql, id).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal: %w", err)
	}
	return &p, nil
}

func (s *Store) CreateProposal(ctx context.Context, p *models.Proposal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	var scopeJSON []byte
	if p.Scope != nil {
		var err error
		if scopeJSON, err = json.Marshal(p.Scope); err != nil {
			return fmt.Errorf("failed to encode scope: %w", err)
		}
	}
	items, err := json.Marshal(p.ServiceItems)
	if err != nil {
		return fmt.Errorf("failed to encode service items: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO proposals (id, proposal_type, target_type, target_id, scope_type, scope_id,
			scope, owner_company_id, bidder_company_id, bidder_user_id, service_items,
			status, contract_id, parent_contract_id, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, p.ID, p.ProposalType, p.TargetType, p.TargetID, p.ScopeType, p.ScopeID,
		scopeJSON, p.OwnerCompanyID, p.BidderCompanyID, p.BidderUserID, items,
		p.Status, p.ContractID, p.ParentContractID, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert proposal: %w", err)
	}
	return nil
}

func (s *Store) UpdateProposalStatus(ctx context.Context, id uuid.UUID, status models.ProposalStatus) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE proposals SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return fmt.Errorf("failed to update proposal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proposal %s not found", id)
	}
	return nil
}

func (s *Store) SetProposalAwarded(ctx context.Context, id uuid.UUID, contractID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE proposals SET status = $2, contract_id = $3, updated_at = NOW() WHERE id = $1
	`, id, models.ProposalAwarded, contractID)
	if err != nil {
		return fmt.Errorf("failed to mark proposal awarded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proposal %s not found", id)
	}
	return nil
}

func (s *Store) ProposalsByTarget(ctx context.Context, targetType models.TargetType, targetID uuid.UUID) ([]models.Proposal, error) {
	sql := fmt.Sprintf("SELECT %s FROM proposals WHERE target_type = $1 AND target_id = $2 ORDER BY created_at DESC", proposalCols)
	rows, err := s.pool.Query(ctx, sql, targetType, targetID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []models.Proposal
	for rows.Next() {
		p, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const contractCols = `id, contract_type, scope_type, scope_id, buyer_party_id, buyer_party_type,
	provider_party_id, provider_party_type, status, parent_contract_id, source_proposal_id,
	service_items, terms_json, created_at, updated_at`

func scanContract(scan func(dest ...any) error) (models.Contract, error) {
	var c models.Contract
	var itemsRaw []byte

	err := scan(
		&c.ID, &c.ContractType, &c.ScopeType, &c.ScopeID, &c.BuyerPartyID, &c.BuyerPartyType,
		&c.ProviderPartyID, &c.ProviderPartyType, &c.Status, &c.ParentContractID, &c.SourceProposalID,
		&itemsRaw, &c.TermsJSON, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &c.ServiceItems); err != nil {
			return c, fmt.Errorf("bad service_items payload: %w", err)
		}
	}
	return c, nil
}

func (s *Store) Contract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	sql := fmt.Sprintf("SELECT %s FROM contracts WHERE id = $1", contractCols)
	c, err := scanContract(s.pool.QueryRow(ctx, sql, id).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load contract: %w", err)
	}
	return &c, nil
}

func (s *Store) ContractByProposal(ctx context.Context, proposalID uuid.UUID) (*models.Contract, error) {
	sql := fmt.Sprintf("SELECT %s FROM contracts WHERE source_proposal_id = $1", contractCols)
	c, err := scanContract(s.pool.QueryRow(ctx, sql, proposalID).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load contract by proposal: %w", err)
	}
	return &c, nil
}

func (s *Store) CreateContract(ctx context.Context, c *models.Contract) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	items, err := json.Marshal(c.ServiceItems)
	if err != nil {
		return fmt.Errorf("failed to encode service items: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO contracts (id, contract_type, scope_type, scope_id, buyer_party_id, buyer_party_type,
			provider_party_id, provider_party_type, status, parent_contract_id, source_proposal_id,
			service_items, terms_json, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, c.ID, c.ContractType, c.ScopeType, c.ScopeID, c.BuyerPartyID, c.BuyerPartyType,
		c.ProviderPartyID, c.ProviderPartyType, c.Status, c.ParentContractID, c.SourceProposalID,
		items, c.TermsJSON, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contract: %w", err)
	}
	return nil
}

func (s *Store) UpdateContractStatus(ctx context.Context, id uuid.UUID, status models.ContractStatus) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE contracts SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return fmt.Errorf("failed to update contract status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contract %s not found", id)
	}
	return nil
}

const engagementCols = `id, contract_id, engagement_type, status, assigned_to_scope_type,
	assigned_to_scope_id, milestone_ids, created_at, updated_at`

func scanEngagement(scan func(dest ...any) error) (models.Engagement, error) {
	var e models.Engagement
	err := scan(
		&e.ID, &e.ContractID, &e.EngagementType, &e.Status, &e.AssignedToScopeType,
		&e.AssignedToScopeID, &e.MilestoneIDs, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (s *Store) Engagement(ctx context.Context, id uuid.UUID) (*models.Engagement, error) {
	sql := fmt.Sprintf("SELECT %s FROM engagements WHERE id = $1", engagementCols)
	e, err := scanEngagement(s.pool.QueryRow(ctx, sql, id).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load engagement: %w", err)
	}
	return &e, nil
}

func (s *Store) CreateEngagement(ctx context.Context, e *models.Engagement) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.MilestoneIDs == nil {
		e.MilestoneIDs = []uuid.UUID{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engagements (id, contract_id, engagement_type, status, assigned_to_scope_type,
			assigned_to_scope_id, milestone_ids, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, e.ContractID, e.EngagementType, e.Status, e.AssignedToScopeType,
		e.AssignedToScopeID, e.MilestoneIDs, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert engagement: %w", err)
	}
	return nil
}

func (s *Store) EngagementsByContract(ctx context.Context, contractID uuid.UUID) ([]models.Engagement, error) {
	sql := fmt.Sprintf("SELECT %s FROM engagements WHERE contract_id = $1 ORDER BY created_at ASC", engagementCols)
	rows, err := s.pool.Query(ctx, sql, contractID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []models.Engagement
	for rows.Next() {
		e, err := scanEngagement(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) UpdateEngagementStatus(ctx context.Context, id uuid.UUID, status models.EngagementStatus) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE engagements SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return fmt.Errorf("failed to update engagement status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("engagement %s not found", id)
	}
	return nil
}

const userCols = `id, email, password_hash, company_id, company_name, role, experience_years, created_at`

func scanUser(scan func(dest ...any) error) (models.User, error) {
	var u models.User
	err := scan(&u.ID, &u.Email, &u.PasswordHash, &u.CompanyID, &u.CompanyName,
		&u.Role, &u.ExperienceYears, &u.CreatedAt)
	return u, err
}

func (s *Store) User(ctx context.Context, id uuid.UUID) (*models.User, error) {
	sql := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userCols)
	u, err := scanUser(s.pool.QueryRow(ctx, sql, id).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	sql := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userCols)
	u, err := scanUser(s.pool.QueryRow(ctx, sql, email).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user by email: %w", err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, company_id, company_name, role, experience_years, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.ID, u.Email, u.PasswordHash, u.CompanyID, u.CompanyName, u.Role, u.ExperienceYears, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// CompanyRole resolves the role a company acts under. Roles are uniform
// within a company, so any member's role answers for the whole company.
func (s *Store) CompanyRole(ctx context.Context, companyID uuid.UUID) (models.Role, error) {
	var role models.Role
	err := s.pool.QueryRow(ctx,
		"SELECT role FROM users WHERE company_id = $1 ORDER BY created_at ASC LIMIT 1", companyID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("no users registered for company %s", companyID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve company role: %w", err)
	}
	return role, nil
}
