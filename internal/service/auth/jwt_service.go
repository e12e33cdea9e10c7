package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campusiq/campusiq/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Config configures token signing and validation.
type Config struct {
	Secret   string
	TokenTTL time.Duration
}

// JWTService issues and validates the access tokens that carry the actor
// snapshot. The role_version claim is frozen at issue time; the governance
// core re-checks it against the directory before any decision applies.
type JWTService struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg Config) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTService{secret: []byte(cfg.Secret), tokenTTL: ttl}, nil
}

// GenerateToken signs an access token for the actor
func (s *JWTService) GenerateToken(actor domain.Actor) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":          actor.UserID,
		"role":             string(actor.Role),
		"department_scope": actor.DepartmentScope,
		"role_version":     actor.RoleVersion,
		"exp":              now.Add(s.tokenTTL).Unix(),
		"iat":              now.Unix(),
		"type":             "access",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a token, returning the actor snapshot
// it carries.
func (s *JWTService) ValidateToken(tokenString string) (domain.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, ErrTokenExpired
		}
		return domain.Actor{}, ErrInvalidToken
	}
	if !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Actor{}, ErrInvalidToken
	}

	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		return domain.Actor{}, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	role, ok := claims["role"].(string)
	if !ok || !domain.Role(role).IsValid() {
		return domain.Actor{}, ErrInvalidToken
	}

	actor := domain.Actor{
		UserID: userID,
		Role:   domain.Role(role),
	}
	if scope, ok := claims["department_scope"].(string); ok {
		actor.DepartmentScope = scope
	}
	if version, ok := claims["role_version"].(float64); ok {
		actor.RoleVersion = int(version)
	}
	return actor, nil
}
