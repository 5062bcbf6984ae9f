package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/condoledger/internal/identity"
	"github.com/smallbiznis/condoledger/pkg/errs"
)

// Claims are the bearer token claims issued by the community identity
// provider. Resident tokens carry the resident id and, when known, the
// active residency.
type Claims struct {
	Role        string `json:"role"`
	ResidentID  string `json:"resident_id,omitempty"`
	ResidencyID string `json:"residency_id,omitempty"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errs.New(errs.KindUnauthenticated, "invalid_token")

// TokenVerifier validates HS256 bearer tokens and turns them into principals.
type TokenVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (v *TokenVerifier) Verify(token string) (identity.Principal, error) {
	if len(v.secret) == 0 || strings.TrimSpace(token) == "" {
		return identity.Principal{}, ErrInvalidToken
	}
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Principal{}, errs.New(errs.KindUnauthenticated, "token_expired")
		}
		return identity.Principal{}, ErrInvalidToken
	}
	return principalFromClaims(claims)
}

func principalFromClaims(claims *Claims) (identity.Principal, error) {
	principal := identity.Principal{
		Subject: strings.TrimSpace(claims.Subject),
		Role:    identity.Role(strings.ToLower(strings.TrimSpace(claims.Role))),
	}
	if principal.Subject == "" {
		return identity.Principal{}, ErrInvalidToken
	}

	switch principal.Role {
	case identity.RoleAdmin:
		return principal, nil
	case identity.RoleResident:
		residentID, err := snowflake.ParseString(strings.TrimSpace(claims.ResidentID))
		if err != nil || residentID <= 0 {
			return identity.Principal{}, ErrInvalidToken
		}
		principal.ResidentID = residentID
		if strings.TrimSpace(claims.ResidencyID) != "" {
			residencyID, err := snowflake.ParseString(strings.TrimSpace(claims.ResidencyID))
			if err != nil || residencyID <= 0 {
				return identity.Principal{}, ErrInvalidToken
			}
			principal.ResidencyID = residencyID
		}
		return principal, nil
	default:
		// The system role is reserved for in-process jobs.
		return identity.Principal{}, ErrInvalidToken
	}
}
