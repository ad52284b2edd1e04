package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/dto/response"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleModerator:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// Identity is the caller resolved from the bearer token.
type Identity struct {
	UserID string
	Role   Role
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type identityKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// IssueToken signs an HS256 token for userID. Tokens are normally minted by
// the auth service; this is used by tooling and tests.
func IssueToken(secret []byte, userID string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, raw string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, errors.New("token is not valid")
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("token has no subject")
	}
	role := Role(claims.Role)
	if role == "" {
		role = RoleUser
	}
	if role.rank() == 0 {
		return Identity{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return Identity{UserID: claims.Subject, Role: role}, nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, response.ErrorResponse{Error: msg, Code: "unauthorized"})
}

// Authenticate requires a valid bearer token on every request.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw := strings.TrimPrefix(header, "Bearer ")
			if header == "" || raw == header {
				unauthorized(w, "bearer token required")
				return
			}
			id, err := parseToken(secret, raw)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

// RequireRole lets through callers whose role is at least min.
func RequireRole(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				unauthorized(w, "bearer token required")
				return
			}
			if id.Role.rank() < min.rank() {
				writeJSON(w, http.StatusForbidden, response.ErrorResponse{Error: "insufficient role", Code: "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func caller(r *http.Request) Identity {
	id, _ := IdentityFrom(r.Context())
	return id
}
