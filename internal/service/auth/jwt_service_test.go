package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campusiq/campusiq/internal/domain"
)

func TestJWTService(t *testing.T) {
	service, err := NewJWTService(Config{Secret: "test-secret", TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create JWT service: %v", err)
	}

	actor := domain.Actor{
		UserID:          "user123",
		Role:            domain.RoleFaculty,
		DepartmentScope: "CS",
		RoleVersion:     3,
	}

	t.Run("GenerateToken", func(t *testing.T) {
		token, err := service.GenerateToken(actor)
		if err != nil {
			t.Errorf("Failed to generate token: %v", err)
		}
		if token == "" {
			t.Error("Token should not be empty")
		}
	})

	t.Run("ValidateToken", func(t *testing.T) {
		tokenString, err := service.GenerateToken(actor)
		if err != nil {
			t.Fatalf("Failed to generate token: %v", err)
		}

		parsed, err := service.ValidateToken(tokenString)
		if err != nil {
			t.Errorf("Failed to validate token: %v", err)
		}
		if parsed.UserID != "user123" {
			t.Errorf("Expected user ID 'user123', got '%s'", parsed.UserID)
		}
		if parsed.Role != domain.RoleFaculty {
			t.Errorf("Expected role faculty, got '%s'", parsed.Role)
		}
		if parsed.DepartmentScope != "CS" {
			t.Errorf("Expected department scope 'CS', got '%s'", parsed.DepartmentScope)
		}
		if parsed.RoleVersion != 3 {
			t.Errorf("Expected role version 3, got %d", parsed.RoleVersion)
		}
	})

	t.Run("ValidateInvalidToken", func(t *testing.T) {
		_, err := service.ValidateToken("invalid-token")
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("ValidateWrongSecret", func(t *testing.T) {
		other, err := NewJWTService(Config{Secret: "other-secret", TokenTTL: time.Hour})
		if err != nil {
			t.Fatalf("Failed to create JWT service: %v", err)
		}
		tokenString, err := other.GenerateToken(actor)
		if err != nil {
			t.Fatalf("Failed to generate token: %v", err)
		}

		_, err = service.ValidateToken(tokenString)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("ValidateExpiredToken", func(t *testing.T) {
		expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id":      "user123",
			"role":         "faculty",
			"role_version": 3,
			"exp":          time.Now().Add(-time.Hour).Unix(),
			"iat":          time.Now().Add(-2 * time.Hour).Unix(),
			"type":         "access",
		})
		tokenString, err := expired.SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatalf("Failed to sign token: %v", err)
		}

		_, err = service.ValidateToken(tokenString)
		if !errors.Is(err, ErrTokenExpired) {
			t.Errorf("Expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("RejectUnknownRole", func(t *testing.T) {
		tokenString, err := service.GenerateToken(domain.Actor{UserID: "user123", Role: domain.Role("superuser")})
		if err != nil {
			t.Fatalf("Failed to generate token: %v", err)
		}

		_, err = service.ValidateToken(tokenString)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for unknown role, got %v", err)
		}
	})

	t.Run("RequireSecret", func(t *testing.T) {
		if _, err := NewJWTService(Config{}); err == nil {
			t.Error("Should fail without a secret")
		}
	})
}
