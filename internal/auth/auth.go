// Package auth verifies bearer tokens and provides route middleware for
// owner- and admin-scoped endpoints. Token issuance belongs to the
// identity service; this package only consumes tokens.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/exstoreapp/exstore/internal/models"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const identityKey contextKey = "identity"

const minSecretLength = 32

// Identity is the authenticated caller resolved from a token.
type Identity struct {
	UserID uuid.UUID
	Role   models.UserRole
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// Claims is the token payload: the subject is the user ID, the role is a
// private claim.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Parse validates a token string and extracts the caller identity.
func (v *Verifier) Parse(tokenString string) (*Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", err)
	}

	role := models.UserRole(claims.Role)
	if role != models.RoleCustomer && role != models.RoleAdmin {
		return nil, fmt.Errorf("invalid token role %q", claims.Role)
	}

	return &Identity{UserID: userID, Role: role}, nil
}

// Issue signs a token for the given user. Used by tests and operational
// tooling; production tokens come from the identity service sharing the
// same secret.
func (v *Verifier) Issue(userID uuid.UUID, role models.UserRole, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// FromContext retrieves the authenticated identity from the request context.
func FromContext(ctx context.Context) *Identity {
	if ctx == nil {
		return nil
	}
	identity, ok := ctx.Value(identityKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}

// RequireUser is a middleware that requires a valid bearer token.
func (v *Verifier) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := v.identityFromRequest(r)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin is a middleware that requires a valid bearer token with the
// admin role.
func (v *Verifier) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := v.identityFromRequest(r)
		if err != nil {
			writeUnauthorized(w)
			return
		}
		if !identity.IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"message":"admin access required"}`))
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (v *Verifier) identityFromRequest(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("missing bearer token")
	}
	return v.Parse(strings.TrimSpace(token))
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"message":"authentication required"}`))
}
