package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"go.uber.org/zap"

	"ontology/pkg/auth"
)

// AuthConfig configures Authenticate
type AuthConfig struct {
	Validator *auth.JWTValidator

	// TrustGateway accepts identities already verified by an API Gateway authorizer.
	TrustGateway bool

	// IPLimiter and UserLimiter are optional.
	IPLimiter   auth.RateLimiter
	UserLimiter auth.RateLimiter
}

// Authenticate resolves the calling user from an API Gateway authorizer or a
// bearer token and stores it in the request context.
func Authenticate(cfg AuthConfig, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientIP := getClientIP(r)

			if !allow(w, r, cfg.IPLimiter, "ip:"+clientIP, logger) {
				return
			}

			user, ok := gatewayUser(r, cfg.TrustGateway)
			if !ok {
				if cfg.Validator == nil {
					respondUnauthorized(w, "Authentication is not configured")
					return
				}
				token := extractToken(r)
				if token == "" {
					respondUnauthorized(w, "Missing authentication token")
					return
				}

				claims, err := cfg.Validator.ValidateToken(token)
				if err != nil {
					logger.Warn("Invalid token",
						zap.Error(err),
						zap.String("ip", clientIP),
						zap.String("path", r.URL.Path),
					)
					switch {
					case errors.Is(err, auth.ErrExpiredToken):
						respondUnauthorized(w, "Token has expired")
					case errors.Is(err, auth.ErrInvalidSignature):
						respondUnauthorized(w, "Invalid token signature")
					default:
						respondUnauthorized(w, "Invalid token")
					}
					return
				}
				user = &auth.UserContext{UserID: claims.UserID(), Email: claims.Email, Roles: claims.Roles}
			}

			if !allow(w, r, cfg.UserLimiter, "user:"+user.UserID, logger) {
				return
			}

			logger.Debug("Request authenticated",
				zap.String("user_id", user.UserID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)
			next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(ctx, user)))
		})
	}
}

// gatewayUser reads the subject set by an API Gateway JWT or Lambda authorizer.
func gatewayUser(r *http.Request, trust bool) (*auth.UserContext, bool) {
	if !trust {
		return nil, false
	}
	proxyCtx, ok := core.GetAPIGatewayV2ContextFromContext(r.Context())
	if !ok || proxyCtx.Authorizer == nil {
		return nil, false
	}

	if jwtAuth := proxyCtx.Authorizer.JWT; jwtAuth != nil {
		if sub := jwtAuth.Claims["sub"]; sub != "" {
			return &auth.UserContext{UserID: sub, Email: jwtAuth.Claims["email"]}, true
		}
	}
	if sub, ok := proxyCtx.Authorizer.Lambda["sub"].(string); ok && sub != "" {
		email, _ := proxyCtx.Authorizer.Lambda["email"].(string)
		return &auth.UserContext{UserID: sub, Email: email}, true
	}
	return nil, false
}

func allow(w http.ResponseWriter, r *http.Request, limiter auth.RateLimiter, key string, logger *zap.Logger) bool {
	if limiter == nil {
		return true
	}
	allowed, err := limiter.Allow(r.Context(), key)
	if err != nil {
		logger.Warn("Rate limiter error", zap.Error(err), zap.String("key", key))
	}
	if !allowed {
		respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return false
	}
	return true
}

// extractToken reads the bearer token from the Authorization header or the
// auth_token cookie.
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	respondWithError(w, http.StatusUnauthorized, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	errType := "UNAUTHORIZED"
	if code == http.StatusTooManyRequests {
		errType = "RATE_LIMITED"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"type":    errType,
		"message": message,
	})
}
