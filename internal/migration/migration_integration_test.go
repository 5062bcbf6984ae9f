//go:build integration

package migration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condoledger/internal/clock"
	"github.com/smallbiznis/condoledger/internal/config"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/condoledger/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/condoledger/internal/ledger/service"
	"github.com/smallbiznis/condoledger/internal/migration"
	"github.com/smallbiznis/condoledger/pkg/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("condoledger"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.RunMigrations(sqlDB))
	require.NoError(t, migration.RunMigrations(sqlDB), "second run is a no-op")
	return conn
}

func TestLedgerOnPostgres(t *testing.T) {
	conn := openPostgres(t)
	ctx := context.Background()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := ledgerservice.NewService(ledgerservice.Params{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)),
		Repo:    ledgerrepo.Provide(),
		Locker:  lock.NewKeyedMutex(),
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})

	category, err := svc.CreateCategory(ctx, ledgerdomain.CreateCategoryRequest{
		Name: "Maintenance Fee",
		Kind: ledgerdomain.CategoryKindOrdinaryFee,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errCh := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddChargeLine(ctx, ledgerdomain.AddChargeLineRequest{
				ResidencyID: 7,
				Period:      "2024-06",
				CategoryID:  category.ID,
				Amount:      decimal.RequireFromString("12.50"),
				Description: "Maintenance",
			})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	period, err := svc.FindPeriod(ctx, 7, "2024-06")
	require.NoError(t, err)
	assert.True(t, period.TotalAmount.Equal(decimal.NewFromInt(125)), period.TotalAmount.String())
	assert.Equal(t, ledgerdomain.PeriodStatusPending, period.Status)

	_, err = svc.ApplyPayment(ctx, ledgerdomain.ApplyPaymentRequest{
		BillingPeriodID: period.ID,
		Amount:          decimal.NewFromInt(125),
		Method:          ledgerdomain.PaymentMethodTransfer,
		RecordedBy:      "admin-1",
	})
	require.NoError(t, err)

	statement, err := svc.GetStatement(ctx, period.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.PeriodStatusPaid, statement.Status)
	assert.Len(t, statement.Lines, 10)
	assert.True(t, statement.Balance.IsZero())
}
