package authorization

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/condoledger/internal/identity"
	"github.com/smallbiznis/condoledger/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func as(role identity.Role) context.Context {
	return identity.WithPrincipal(context.Background(), identity.Principal{Subject: "s", Role: role})
}

func TestAuthorizeResident(t *testing.T) {
	svc := newTestService(t)

	assert.NoError(t, svc.Authorize(as(identity.RoleResident), ObjectReservation, ActionCreate))
	assert.NoError(t, svc.Authorize(as(identity.RoleResident), ObjectReservation, ActionCancel))
	assert.ErrorIs(t, svc.Authorize(as(identity.RoleResident), ObjectReservation, ActionConfirm), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(as(identity.RoleResident), ObjectPayment, ActionPaymentRemove), ErrForbidden)
}

func TestAuthorizeAdminInheritsResident(t *testing.T) {
	svc := newTestService(t)

	assert.NoError(t, svc.Authorize(as(identity.RoleAdmin), ObjectReservation, ActionConfirm))
	assert.NoError(t, svc.Authorize(as(identity.RoleAdmin), ObjectReservation, ActionCreate))
	assert.NoError(t, svc.Authorize(as(identity.RoleAdmin), ObjectRent, ActionRentGenerate))
}

func TestAuthorizeSystem(t *testing.T) {
	svc := newTestService(t)

	assert.NoError(t, svc.Authorize(as(identity.RoleSystem), ObjectRent, ActionRentGenerate))
	assert.ErrorIs(t, svc.Authorize(as(identity.RoleSystem), ObjectReservation, ActionConfirm), ErrForbidden)
}

func TestAuthorizeWithoutPrincipal(t *testing.T) {
	svc := newTestService(t)

	err := svc.Authorize(context.Background(), ObjectLedger, ActionView)
	assert.True(t, errs.Is(err, errs.KindUnauthenticated))
}

func TestAuthorizeRejectsBlankInput(t *testing.T) {
	svc := newTestService(t)

	assert.ErrorIs(t, svc.Authorize(as(identity.RoleAdmin), " ", ActionView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(as(identity.RoleAdmin), ObjectLedger, ""), ErrInvalidAction)
}
