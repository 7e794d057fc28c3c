package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the marketplace role a user's company acts under. Roles gate who
// may propose to whom and under what scope.
type Role string

const (
	RoleEntity        Role = "entity"
	RoleVendor        Role = "vendor"
	RoleConsultant    Role = "consultant"
	RoleSubContractor Role = "sub_contractor"
	RoleBeneficiary   Role = "beneficiary"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEntity, RoleVendor, RoleConsultant, RoleSubContractor, RoleBeneficiary:
		return true
	}
	return false
}

type User struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	CompanyID       uuid.UUID `json:"company_id"`
	CompanyName     string    `json:"company_name"`
	Role            Role      `json:"role"`
	ExperienceYears int       `json:"experience_years"`
	CreatedAt       time.Time `json:"created_at"`
}
