// Package fixtures wires real services over a test database for package
// tests that sit above the ledger.
package fixtures

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/condoledger/internal/audit/domain"
	auditrepo "github.com/smallbiznis/condoledger/internal/audit/repository"
	auditservice "github.com/smallbiznis/condoledger/internal/audit/service"
	"github.com/smallbiznis/condoledger/internal/authorization"
	"github.com/smallbiznis/condoledger/internal/clock"
	"github.com/smallbiznis/condoledger/internal/config"
	directorydomain "github.com/smallbiznis/condoledger/internal/directory/domain"
	directoryrepo "github.com/smallbiznis/condoledger/internal/directory/repository"
	directoryservice "github.com/smallbiznis/condoledger/internal/directory/service"
	"github.com/smallbiznis/condoledger/internal/identity"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/condoledger/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/condoledger/internal/ledger/service"
	"github.com/smallbiznis/condoledger/pkg/lock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Env bundles the collaborators most services depend on.
type Env struct {
	DB         *gorm.DB
	Node       *snowflake.Node
	Clock      *clock.FakeClock
	Billing    *config.BillingConfigHolder
	Locker     lock.Locker
	Audit      auditdomain.Service
	Authorizer authorization.Service
	Directory  directorydomain.Directory
	Ledger     ledgerdomain.Service
}

func New(t *testing.T, conn *gorm.DB, node *snowflake.Node, clk *clock.FakeClock) *Env {
	t.Helper()

	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepo.Provide(),
	})
	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)

	env := &Env{
		DB:         conn,
		Node:       node,
		Clock:      clk,
		Billing:    config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		Locker:     lock.NewKeyedMutex(),
		Audit:      audit,
		Authorizer: authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer, AuditSvc: audit}),
		Directory:  directoryservice.New(directoryservice.Params{DB: conn, Log: zap.NewNop(), Repo: directoryrepo.Provide()}),
	}
	env.Ledger = ledgerservice.NewService(ledgerservice.Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     ledgerrepo.Provide(),
		Locker:   env.Locker,
		Billing:  env.Billing,
		AuditSvc: audit,
	})
	return env
}

func Admin() context.Context {
	return identity.WithPrincipal(context.Background(), identity.Principal{Subject: "admin-1", Role: identity.RoleAdmin})
}

func Resident(residentID snowflake.ID) context.Context {
	return identity.WithPrincipal(context.Background(), identity.Principal{
		Subject:    "resident-" + residentID.String(),
		Role:       identity.RoleResident,
		ResidentID: residentID,
	})
}

func System() context.Context {
	return identity.WithPrincipal(context.Background(), identity.System())
}
