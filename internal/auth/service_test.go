package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Mabdelmofdy/pmtwin-engine/internal/models"
)

func TestRoleCache(t *testing.T) {
	cache := NewRoleCache()
	userID := uuid.New()

	if _, ok := cache.get(userID); ok {
		t.Fatal("empty cache must miss")
	}

	cache.put(userID, models.RoleVendor)
	role, ok := cache.get(userID)
	if !ok || role != models.RoleVendor {
		t.Fatalf("expected cached vendor role, got %q (hit=%v)", role, ok)
	}

	cache.Invalidate(userID)
	if _, ok := cache.get(userID); ok {
		t.Fatal("invalidated entry must miss")
	}
}

func TestGenerateTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	tokenString, err := generateToken(userID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	secret, err := jwtSecretFromEnv()
	if err != nil {
		t.Fatalf("no secret available: %v", err)
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) { return secret, nil })
	if err != nil || !token.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub != userID.String() {
		t.Fatalf("subject mismatch: %q vs %q (%v)", sub, userID, err)
	}
}
