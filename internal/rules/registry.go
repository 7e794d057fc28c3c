package rules

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

//go:embed config/roles.yaml
var rolesYAML embed.FS

// Registry holds the role-capability matrix consulted by the legality
// validator and the award flow. Callers own the loaded value and pass it in
// explicitly; there is no package-level cache.
type Registry struct {
	Roles []RoleConfig `yaml:"roles"`

	byID map[models.Role]*RoleConfig
}

// RoleConfig declares what a marketplace role may legally do.
type RoleConfig struct {
	ID         models.Role      `yaml:"id"`
	PartyType  models.PartyType `yaml:"party_type"`
	CanPropose bool             `yaml:"can_propose"`
	// VendorType marks roles subject to the vendor scope rules (full project
	// or structurally complete sub-project, never minor scope).
	VendorType       bool                  `yaml:"vendor_type"`
	AllowedScopes    []models.ScopeType    `yaml:"allowed_scopes"`
	ProposalTypes    []models.ProposalType `yaml:"proposal_types"`
	MustTargetVendor bool                  `yaml:"must_target_vendor"`
	Description      string                `yaml:"description,omitempty"`
}

func (r *RoleConfig) AllowsScope(s models.ScopeType) bool {
	for _, allowed := range r.AllowedScopes {
		if allowed == s {
			return true
		}
	}
	return false
}

func (r *RoleConfig) AllowsProposalType(p models.ProposalType) bool {
	for _, allowed := range r.ProposalTypes {
		if allowed == p {
			return true
		}
	}
	return false
}

// Load reads the embedded roles.yaml.
func Load() (*Registry, error) {
	data, err := rolesYAML.ReadFile("config/roles.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded roles config: %w", err)
	}
	return parse(data)
}

// LoadFile reads a registry from disk, for local overrides in development.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse roles config: %w", err)
	}
	if len(reg.Roles) == 0 {
		return nil, fmt.Errorf("roles config declares no roles")
	}

	reg.byID = make(map[models.Role]*RoleConfig, len(reg.Roles))
	for i := range reg.Roles {
		rc := &reg.Roles[i]
		if !rc.ID.Valid() {
			return nil, fmt.Errorf("roles config: unknown role %q", rc.ID)
		}
		if _, dup := reg.byID[rc.ID]; dup {
			return nil, fmt.Errorf("roles config: duplicate role %q", rc.ID)
		}
		reg.byID[rc.ID] = rc
	}
	return &reg, nil
}

// Role returns the configuration for a role, or nil if undeclared.
func (r *Registry) Role(id models.Role) *RoleConfig {
	return r.byID[id]
}

// PartyTypeOf maps a role to the party type it contracts under. Unknown
// roles default to ENTITY, the least-capable party.
func (r *Registry) PartyTypeOf(id models.Role) models.PartyType {
	if rc := r.byID[id]; rc != nil {
		return rc.PartyType
	}
	return models.PartyEntity
}
