package identity

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleResident Role = "resident"
	RoleSystem   Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleResident, RoleSystem:
		return true
	default:
		return false
	}
}

// Principal is the authenticated caller. ResidentID and ResidencyID are set
// only for residents; ResidencyID is the resident's current active residency
// when the identity provider knows it.
type Principal struct {
	Subject     string
	Role        Role
	ResidentID  snowflake.ID
	ResidencyID snowflake.ID
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsResident() bool {
	return p.Role == RoleResident
}

// CasbinSubject is the subject name used for policy evaluation.
func (p Principal) CasbinSubject() string {
	return "role:" + strings.ToLower(string(p.Role))
}

// System is the principal used by scheduled jobs and the admin CLI.
func System() Principal {
	return Principal{Subject: "system", Role: RoleSystem}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || !p.Role.Valid() {
		return Principal{}, false
	}
	return p, true
}
