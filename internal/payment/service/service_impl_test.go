package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condoledger/internal/authorization"
	"github.com/smallbiznis/condoledger/internal/clock"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/condoledger/internal/payment/domain"
	"github.com/smallbiznis/condoledger/internal/testutil"
	"github.com/smallbiznis/condoledger/internal/testutil/fixtures"
	"github.com/smallbiznis/condoledger/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) (paymentdomain.Service, *fixtures.Env, *ledgerdomain.BillingPeriod) {
	t.Helper()
	conn := testutil.OpenDB(t)
	env := fixtures.New(t, conn, testutil.NewNode(t), clock.NewFakeClock(time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)))

	testutil.SeedUnit(t, conn, 10, decimal.NewFromInt(500))
	testutil.SeedResidency(t, conn, testutil.ResidencySeed{ID: 1, ResidentID: 100, UnitID: 10, ContractType: "rental", Start: testutil.Date(2024, time.January, 1), Active: true})
	testutil.SeedResidency(t, conn, testutil.ResidencySeed{ID: 2, ResidentID: 200, UnitID: 10, ContractType: "ownership", Start: testutil.Date(2024, time.January, 1), Active: true})

	category, err := env.Ledger.EnsureCategory(context.Background(), ledgerdomain.CategoryKindOrdinaryFee, "Maintenance Fee")
	require.NoError(t, err)
	line, err := env.Ledger.AddChargeLine(context.Background(), ledgerdomain.AddChargeLineRequest{
		ResidencyID: 1,
		Period:      "2024-06",
		CategoryID:  category.ID,
		Amount:      decimal.NewFromInt(100),
		Description: "maintenance",
	})
	require.NoError(t, err)
	period, err := env.Ledger.GetPeriod(context.Background(), line.BillingPeriodID)
	require.NoError(t, err)

	svc := NewService(Params{
		Log:        zap.NewNop(),
		LedgerSvc:  env.Ledger,
		Directory:  env.Directory,
		Authorizer: env.Authorizer,
	})
	return svc, env, period
}

func TestPayOwnPeriod(t *testing.T) {
	svc, env, period := setup(t)

	payment, err := svc.Pay(fixtures.Resident(100), paymentdomain.PayRequest{
		BillingPeriodID: period.ID,
		Amount:          decimal.NewFromInt(40),
		Method:          ledgerdomain.PaymentMethodCard,
	})
	require.NoError(t, err)
	assert.Equal(t, "resident-100", payment.RecordedBy)

	updated, err := env.Ledger.GetPeriod(context.Background(), period.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.PeriodStatusPartial, updated.Status)
}

func TestPayRejectsForeignPeriod(t *testing.T) {
	svc, _, period := setup(t)

	_, err := svc.Pay(fixtures.Resident(200), paymentdomain.PayRequest{
		BillingPeriodID: period.ID,
		Amount:          decimal.NewFromInt(40),
		Method:          ledgerdomain.PaymentMethodCash,
	})
	require.ErrorIs(t, err, paymentdomain.ErrNotOwner)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err))
}

func TestPayValidation(t *testing.T) {
	svc, _, period := setup(t)
	ctx := fixtures.Admin()

	_, err := svc.Pay(ctx, paymentdomain.PayRequest{BillingPeriodID: period.ID, Amount: decimal.NewFromInt(-1), Method: ledgerdomain.PaymentMethodCash})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	_, err = svc.Pay(ctx, paymentdomain.PayRequest{BillingPeriodID: period.ID, Amount: decimal.NewFromInt(1), Method: "barter"})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidMethod)

	_, err = svc.Pay(ctx, paymentdomain.PayRequest{BillingPeriodID: 0, Amount: decimal.NewFromInt(1), Method: ledgerdomain.PaymentMethodCash})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidPeriod)

	_, err = svc.Pay(ctx, paymentdomain.PayRequest{BillingPeriodID: 987654, Amount: decimal.NewFromInt(1), Method: ledgerdomain.PaymentMethodCash})
	require.ErrorIs(t, err, ledgerdomain.ErrPeriodNotFound)

	_, err = svc.Pay(context.Background(), paymentdomain.PayRequest{BillingPeriodID: period.ID, Amount: decimal.NewFromInt(1), Method: ledgerdomain.PaymentMethodCash})
	require.ErrorIs(t, err, errs.ErrUnauthenticated)
}

func TestVoidRequiresAdmin(t *testing.T) {
	svc, env, period := setup(t)

	payment, err := svc.Pay(fixtures.Admin(), paymentdomain.PayRequest{
		BillingPeriodID: period.ID,
		Amount:          decimal.NewFromInt(100),
		Method:          ledgerdomain.PaymentMethodTransfer,
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Void(fixtures.Resident(100), payment.ID), authorization.ErrForbidden)
	require.NoError(t, svc.Void(fixtures.Admin(), payment.ID))

	updated, err := env.Ledger.GetPeriod(context.Background(), period.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.PeriodStatusPending, updated.Status)
	require.ErrorIs(t, svc.Void(fixtures.Admin(), payment.ID), ledgerdomain.ErrPaymentNotFound)
}

func TestResidentViewsOnlyOwnPeriods(t *testing.T) {
	svc, _, period := setup(t)

	own, err := svc.ListPeriods(fixtures.Resident(100), ledgerdomain.ListPeriodsRequest{})
	require.NoError(t, err)
	require.Len(t, own.Periods, 1)
	assert.Equal(t, period.ID, own.Periods[0].ID)

	other, err := svc.ListPeriods(fixtures.Resident(200), ledgerdomain.ListPeriodsRequest{ResidencyID: 1})
	require.NoError(t, err)
	assert.Empty(t, other.Periods)

	_, err = svc.Statement(fixtures.Resident(200), period.ID)
	require.ErrorIs(t, err, paymentdomain.ErrNotOwner)

	statement, err := svc.Statement(fixtures.Resident(100), period.ID)
	require.NoError(t, err)
	assert.Len(t, statement.Lines, 1)
}
