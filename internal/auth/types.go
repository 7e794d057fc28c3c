package auth

import "github.com/Mabdelmofdy/pmtwin-engine/internal/models"

type SignupRequest struct {
	Email           string      `json:"email"`
	Password        string      `json:"password"`
	CompanyName     string      `json:"company_name"`
	Role            models.Role `json:"role"`
	ExperienceYears int         `json:"experience_years"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}
