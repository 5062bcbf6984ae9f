package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condoledger/internal/authorization"
	"github.com/smallbiznis/condoledger/internal/clock"
	finedomain "github.com/smallbiznis/condoledger/internal/fine/domain"
	"github.com/smallbiznis/condoledger/internal/fine/repository"
	"github.com/smallbiznis/condoledger/internal/testutil"
	"github.com/smallbiznis/condoledger/internal/testutil/fixtures"
	"github.com/smallbiznis/condoledger/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) (finedomain.Service, *fixtures.Env) {
	t.Helper()
	conn := testutil.OpenDB(t)
	env := fixtures.New(t, conn, testutil.NewNode(t), clock.NewFakeClock(time.Date(2024, time.June, 12, 15, 0, 0, 0, time.UTC)))
	testutil.SeedUnit(t, conn, 10, decimal.NewFromInt(500))
	testutil.SeedResidency(t, conn, testutil.ResidencySeed{ID: 1, ResidentID: 100, UnitID: 10, ContractType: "ownership", Start: testutil.Date(2023, time.January, 1), Active: true})
	testutil.SeedResidency(t, conn, testutil.ResidencySeed{ID: 2, ResidentID: 200, UnitID: 10, ContractType: "rental", Start: testutil.Date(2023, time.January, 1), Active: true})

	svc := NewService(Params{
		DB:         conn,
		Log:        zap.NewNop(),
		GenID:      env.Node,
		Clock:      env.Clock,
		Repo:       repository.Provide(),
		LedgerSvc:  env.Ledger,
		Directory:  env.Directory,
		Billing:    env.Billing,
		Authorizer: env.Authorizer,
		AuditSvc:   env.Audit,
	})
	return svc, env
}

func idPtr(id snowflake.ID) *snowflake.ID { return &id }

func TestCreateAutoConvertsAndConvertIsIdempotent(t *testing.T) {
	svc, env := setup(t)
	ctx := fixtures.Admin()

	result, err := svc.Create(ctx, finedomain.CreateRequest{
		Amount:       decimal.NewFromInt(150),
		Reason:       "noise after hours",
		IncidentDate: testutil.Date(2024, time.June, 10),
		ResidencyID:  idPtr(1),
	})
	require.NoError(t, err)
	assert.Empty(t, result.ConversionError)
	require.NotNil(t, result.Line)
	assert.True(t, result.Line.Amount.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "FINE_"+result.Fine.ID.String(), result.Line.Reference)
	require.NotNil(t, result.Line.DueDate)
	assert.True(t, result.Line.DueDate.Equal(testutil.Date(2024, time.June, 10)))
	require.NotNil(t, result.Fine.ChargeLineID)
	assert.Equal(t, result.Line.ID, *result.Fine.ChargeLineID)
	assert.Equal(t, "admin-1", result.Fine.CreatedBy)

	again, err := svc.Convert(ctx, result.Fine.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Line.ID, again.ID)

	period, err := env.Ledger.FindPeriod(context.Background(), 1, "2024-06")
	require.NoError(t, err)
	lines, err := env.Ledger.ListLines(context.Background(), period.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.True(t, period.TotalAmount.Equal(decimal.NewFromInt(150)))
}

func TestCreateResolvesResidentsActiveResidency(t *testing.T) {
	svc, env := setup(t)

	result, err := svc.Create(fixtures.Admin(), finedomain.CreateRequest{
		Amount:       decimal.NewFromInt(80),
		Reason:       "parking",
		IncidentDate: testutil.Date(2024, time.June, 1),
		ResidentID:   idPtr(200),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Line)

	period, err := env.Ledger.GetPeriod(context.Background(), result.Line.BillingPeriodID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(2), period.ResidencyID)
	assert.Equal(t, "2024-06", period.Period)
}

func TestCreateSucceedsWhenConversionFails(t *testing.T) {
	svc, env := setup(t)
	ctx := fixtures.Admin()

	result, err := svc.Create(ctx, finedomain.CreateRequest{
		Amount:       decimal.NewFromInt(60),
		Reason:       "damaged gate",
		IncidentDate: testutil.Date(2024, time.June, 2),
		ResidentID:   idPtr(300),
	})
	require.NoError(t, err)
	assert.Nil(t, result.Line)
	assert.Contains(t, result.ConversionError, "missing_residency")
	assert.False(t, result.Fine.Converted())
	require.NotNil(t, result.Fine.ConversionError)

	_, err = svc.Convert(ctx, result.Fine.ID)
	require.ErrorIs(t, err, finedomain.ErrMissingResidency)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	testutil.SeedResidency(t, env.DB, testutil.ResidencySeed{ID: 3, ResidentID: 300, UnitID: 10, ContractType: "loan", Start: testutil.Date(2024, time.January, 1), Active: true})
	line, err := svc.Convert(ctx, result.Fine.ID)
	require.NoError(t, err)
	assert.True(t, line.Amount.Equal(decimal.NewFromInt(60)))

	fine, err := svc.Get(ctx, result.Fine.ID)
	require.NoError(t, err)
	require.NotNil(t, fine.ChargeLineID)
	assert.Equal(t, line.ID, *fine.ChargeLineID)
	assert.Nil(t, fine.ConversionError)

	var actions []string
	require.NoError(t, env.DB.Raw(`SELECT action FROM audit_logs WHERE target_type = ? ORDER BY id ASC`, "fine").Scan(&actions).Error)
	assert.Contains(t, actions, "fine.conversion_failed")
	assert.Contains(t, actions, "fine.converted")
}

func TestConvertRelinksOrphanLine(t *testing.T) {
	svc, env := setup(t)
	ctx := fixtures.Admin()

	result, err := svc.Create(ctx, finedomain.CreateRequest{
		Amount:       decimal.NewFromInt(40),
		Reason:       "litter",
		IncidentDate: testutil.Date(2024, time.June, 2),
		ResidencyID:  idPtr(1),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Line)

	// Simulate a crash between adding the line and linking it.
	require.NoError(t, env.DB.Exec(`UPDATE fines SET charge_line_id = NULL WHERE id = ?`, result.Fine.ID).Error)

	line, err := svc.Convert(ctx, result.Fine.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Line.ID, line.ID)

	var count int64
	require.NoError(t, env.DB.Raw(`SELECT COUNT(1) FROM charge_lines`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestConvertRechargesAfterLinkedLineRemoved(t *testing.T) {
	svc, env := setup(t)
	ctx := fixtures.Admin()

	result, err := svc.Create(ctx, finedomain.CreateRequest{
		Amount:       decimal.NewFromInt(90),
		Reason:       "pool after closing",
		IncidentDate: testutil.Date(2024, time.June, 5),
		ResidencyID:  idPtr(1),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Line)
	removed := result.Line.ID
	require.NoError(t, env.Ledger.RemoveChargeLine(context.Background(), removed))

	line, err := svc.Convert(ctx, result.Fine.ID)
	require.NoError(t, err)
	assert.NotEqual(t, removed, line.ID)
	assert.True(t, line.Amount.Equal(decimal.NewFromInt(90)))
	require.NotNil(t, line.IdempotencyKey)
	assert.Equal(t, finedomain.IdempotencyKey(result.Fine.ID), *line.IdempotencyKey)

	stored, err := repository.Provide().FindByID(context.Background(), env.DB, result.Fine.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ChargeLineID)
	assert.Equal(t, line.ID, *stored.ChargeLineID)
	assert.Nil(t, stored.ConversionError)

	again, err := svc.Convert(ctx, result.Fine.ID)
	require.NoError(t, err)
	assert.Equal(t, line.ID, again.ID)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := setup(t)
	ctx := fixtures.Admin()
	base := finedomain.CreateRequest{
		Amount:       decimal.NewFromInt(10),
		Reason:       "noise",
		IncidentDate: testutil.Date(2024, time.June, 1),
		ResidencyID:  idPtr(1),
	}

	req := base
	req.Amount = decimal.Zero
	_, err := svc.Create(ctx, req)
	require.ErrorIs(t, err, finedomain.ErrInvalidAmount)

	req = base
	req.Reason = " "
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, finedomain.ErrInvalidReason)

	req = base
	req.ResidencyID = nil
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, finedomain.ErrMissingTarget)

	_, err = svc.Create(fixtures.Resident(100), base)
	require.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = svc.Convert(ctx, 123)
	require.ErrorIs(t, err, finedomain.ErrFineNotFound)
}

func TestResidentSeesOwnFines(t *testing.T) {
	svc, _ := setup(t)
	ctx := fixtures.Admin()

	mine, err := svc.Create(ctx, finedomain.CreateRequest{Amount: decimal.NewFromInt(10), Reason: "a", IncidentDate: testutil.Date(2024, time.June, 1), ResidencyID: idPtr(1)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, finedomain.CreateRequest{Amount: decimal.NewFromInt(10), Reason: "b", IncidentDate: testutil.Date(2024, time.June, 1), ResidentID: idPtr(200)})
	require.NoError(t, err)

	all, err := svc.List(ctx, finedomain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Fines, 2)

	own, err := svc.List(fixtures.Resident(100), finedomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, own.Fines, 1)
	assert.Equal(t, mine.Fine.ID, own.Fines[0].ID)

	_, err = svc.Get(fixtures.Resident(200), mine.Fine.ID)
	require.ErrorIs(t, err, finedomain.ErrFineNotFound)
	fine, err := svc.Get(fixtures.Resident(100), mine.Fine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.Fine.ID, fine.ID)
}
