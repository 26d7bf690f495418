package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/zestlabs/admin-sentinel/pkg/utilities"
)

// SessionIssuer issues and validates the capability token produced by a
// completed gate sequence. The token replaces the original tab-scoped
// session flag and is validated server-side on every protected request.
type SessionIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// SessionFromEnv builds an issuer from SESSION_SECRET and
// SESSION_TTL_MINUTES (default 60).
func SessionFromEnv() (*SessionIssuer, error) {
	secret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if secret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}
	ttl := 60 * time.Minute
	if minutes, err := strconv.Atoi(os.Getenv("SESSION_TTL_MINUTES")); err == nil && minutes > 0 {
		ttl = time.Duration(minutes) * time.Minute
	}
	return &SessionIssuer{secret: []byte(secret), issuer: "admin-sentinel", ttl: ttl}, nil
}

// Issue signs a session token for the authenticated operator email.
func (si *SessionIssuer) Issue(email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": si.issuer,
		"sub": email,
		"jti": utilities.NewRequestID(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(si.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(si.secret)
}

// Validate parses and verifies a session token, returning the operator
// email it was issued for.
func (si *SessionIssuer) Validate(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return si.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(si.issuer))
	if err != nil {
		return "", fmt.Errorf("parse session token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected session claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("session token missing subject")
	}
	return sub, nil
}

// SessionMiddleware rejects requests lacking a valid bearer session token.
func SessionMiddleware(si *SessionIssuer, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				http.Error(w, `{"error":"missing session token"}`, http.StatusUnauthorized)
				return
			}
			if _, err := si.Validate(raw); err != nil {
				logger.Debugw("session token rejected", "err", err)
				http.Error(w, `{"error":"invalid session token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
