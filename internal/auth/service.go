package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/db"
	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrInvalidRole  = errors.New("invalid role")

	jwtSecretOnce    sync.Once
	jwtSecretRuntime []byte
	jwtSecretErr     error
)

func jwtSecretFromEnv() ([]byte, error) {
	jwtSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
		if secret != "" {
			jwtSecretRuntime = []byte(secret)
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			jwtSecretErr = fmt.Errorf("failed to generate JWT fallback secret: %w", err)
			return
		}

		jwtSecretRuntime = []byte(base64.RawURLEncoding.EncodeToString(buf))
		log.Print("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if jwtSecretErr != nil {
		return nil, jwtSecretErr
	}
	if len(jwtSecretRuntime) == 0 {
		return nil, errors.New("JWT secret unavailable")
	}

	return jwtSecretRuntime, nil
}

// RoleCache memoizes user roles. It is caller-owned: construct one per
// server (or per test) and invalidate explicitly when a user's role changes,
// rather than relying on hidden package-level state.
type RoleCache struct {
	mu    sync.RWMutex
	roles map[uuid.UUID]models.Role
}

func NewRoleCache() *RoleCache {
	return &RoleCache{roles: make(map[uuid.UUID]models.Role)}
}

func (c *RoleCache) get(userID uuid.UUID) (models.Role, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.roles[userID]
	return r, ok
}

func (c *RoleCache) put(userID uuid.UUID, role models.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[userID] = role
}

// Invalidate drops a cached role so the next lookup reloads from storage.
func (c *RoleCache) Invalidate(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roles, userID)
}

type Service struct {
	store *db.Store
	cache *RoleCache
}

// NewService builds the auth service. cache may be nil to disable role
// memoization.
func NewService(store *db.Store, cache *RoleCache) *Service {
	return &Service{store: store, cache: cache}
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}

	existing, err := s.store.UserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	user := models.User{
		ID:              uuid.New(),
		Email:           req.Email,
		PasswordHash:    string(hash),
		CompanyID:       uuid.New(),
		CompanyName:     req.CompanyName,
		Role:            req.Role,
		ExperienceYears: req.ExperienceYears,
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		return nil, fmt.Errorf("insert failed: %w", err)
	}

	token, err := generateToken(user.ID)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.store.UserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCreds
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCreds
	}

	token, err := generateToken(user.ID)
	if err != nil {
		return nil, err
	}

	// Clear hash before returning
	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: *user}, nil
}

// RoleOf resolves a user's role, consulting the cache when one is wired.
// This is the role oracle the legality and award flows depend on.
func (s *Service) RoleOf(ctx context.Context, userID uuid.UUID) (models.Role, error) {
	if s.cache != nil {
		if role, ok := s.cache.get(userID); ok {
			return role, nil
		}
	}

	user, err := s.store.User(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("user %s not found", userID)
	}

	if s.cache != nil {
		s.cache.put(userID, user.Role)
	}
	return user.Role, nil
}

func generateToken(userID uuid.UUID) (string, error) {
	secretKey, err := jwtSecretFromEnv()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}
