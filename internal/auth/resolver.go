// Package auth resolves a presented credential into an authenticated
// user.  Resolution is a pure function of the bearer token plus a
// point-in-time user lookup; it has no side effects and keeps no
// state, so the same Resolver can serve every request.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/form-builder/internal/model"
)

// ErrUnauthenticated is returned when the credential is absent,
// malformed, expired, or refers to a blocked account.  Callers on
// optional-auth paths treat this as anonymous; mandatory-auth paths
// reject the request outright.
var ErrUnauthenticated = errors.New("unauthenticated")

// UserLookup is the identity store consulted after token
// verification.  Implemented by repository.UserRepo.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Resolver verifies HS256 access tokens and loads the subject user.
type Resolver struct {
	secret string
	users  UserLookup
}

func NewResolver(secret string, users UserLookup) *Resolver {
	return &Resolver{secret: secret, users: users}
}

// Resolve turns a raw bearer token into the authenticated user.  An
// empty token, a bad signature, a non-HMAC algorithm, an expired
// token, an unknown subject or a blocked account all yield
// ErrUnauthenticated.  Lookup failures other than "no such user" are
// passed through so callers can distinguish an unreachable store
// from a bad credential.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*model.User, error) {
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthenticated
		}
		return []byte(r.secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrUnauthenticated
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnauthenticated
	}
	uid, ok := subjectID(claims)
	if !ok {
		return nil, ErrUnauthenticated
	}
	u, err := r.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if u.IsBlocked {
		return nil, ErrUnauthenticated
	}
	return &u, nil
}

// subjectID extracts the user id from the "sub" claim.  JWT numeric
// values decode as float64; some issuers encode the id as a string.
func subjectID(claims jwt.MapClaims) (uint64, bool) {
	switch v := claims["sub"].(type) {
	case float64:
		return uint64(v), true
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
