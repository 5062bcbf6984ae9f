package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{Subject: "u1", Role: RoleResident, ResidentID: 7})

	p, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.True(t, p.IsResident())
	assert.Equal(t, "role:resident", p.CasbinSubject())
}

func TestFromContextRejectsMissingOrInvalid(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	_, ok = FromContext(WithPrincipal(context.Background(), Principal{Role: "guest"}))
	assert.False(t, ok)
}

func TestSystemPrincipal(t *testing.T) {
	p := System()
	assert.Equal(t, RoleSystem, p.Role)
	assert.False(t, p.IsAdmin())
}
