package secondfactor

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusiq/campusiq/internal/ports"
)

const (
	codeLength = 6
	defaultTTL = 5 * time.Minute
)

// RedisVerifier implements the one-shot second factor over Redis. Codes
// are stored bcrypt-hashed with a short TTL and deleted on first
// verification attempt, so a code can never be replayed.
type RedisVerifier struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisVerifier creates a Redis-backed second factor verifier
func NewRedisVerifier(client *redis.Client, ttl time.Duration) ports.SecondFactorVerifier {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisVerifier{redisClient: client, ttl: ttl}
}

func codeKey(userID string) string {
	return fmt.Sprintf("2fa:code:%s", userID)
}

// Issue generates a numeric code for the user, stores its hash, and
// returns the plaintext for out-of-band delivery.
func (v *RedisVerifier) Issue(ctx context.Context, userID string) (string, error) {
	code, err := generateCode(codeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash code: %w", err)
	}

	if err := v.redisClient.Set(ctx, codeKey(userID), hash, v.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store code: %w", err)
	}
	return code, nil
}

// Verify consumes the stored code. The key is deleted before comparison,
// so even a failed attempt spends the code.
func (v *RedisVerifier) Verify(ctx context.Context, userID, code string) (bool, error) {
	hash, err := v.redisClient.GetDel(ctx, codeKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to load code: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return false, nil
	}
	return true, nil
}

func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
