package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/service/auth"
	"github.com/campusiq/campusiq/internal/service/logger"
	"github.com/campusiq/campusiq/internal/service/ratelimit"
)

type actorContextKey struct{}

// ActorFromContext returns the authenticated actor stored by the auth
// middleware.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// AuthMiddleware validates bearer tokens and places the actor snapshot on
// the request context.
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// RequireAuth rejects requests without a valid bearer token
func (m *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			respondError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		actor, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// CorrelationIDHeader carries the request correlation id end to end.
const CorrelationIDHeader = "X-Correlation-ID"

func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(CorrelationIDHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		w.Header().Set(CorrelationIDHeader, cid)
		ctx := logger.WithCorrelationID(r.Context(), cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info(r.Context(), "request handled", map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Correlation-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func recoveryMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(r.Context(), "panic recovered", fmt.Errorf("%v", rec), map[string]interface{}{
						"path": r.URL.Path,
					})
					respondError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware bounds command submissions per actor. Only the
// submit endpoint is limited; reads and decisions are cheap.
type RateLimitMiddleware struct {
	service ratelimit.RateLimitService
	log     logger.Logger
	limit   int
	window  time.Duration
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(service ratelimit.RateLimitService, log logger.Logger, limit int, window time.Duration) *RateLimitMiddleware {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimitMiddleware{service: service, log: log, limit: limit, window: window}
}

// LimitSubmissions enforces the per-actor submission limit
func (m *RateLimitMiddleware) LimitSubmissions(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}
		key := fmt.Sprintf("submit:user:%s", actor.UserID)

		allowed, err := m.service.CheckLimit(r.Context(), key, m.limit, m.window)
		if err != nil {
			// Fail open: classification still runs, governance gates still hold.
			m.log.Error(r.Context(), "rate limit check failed", err, map[string]interface{}{"key": key})
		} else if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(m.window.Seconds())))
			respondDomainError(w, domain.ErrRateLimited)
			return
		}

		if err := m.service.Increment(r.Context(), key, m.window); err != nil {
			m.log.Error(r.Context(), "rate limit increment failed", err, map[string]interface{}{"key": key})
		}
		next.ServeHTTP(w, r)
	}
}
