package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condoledger/internal/authorization"
	"github.com/smallbiznis/condoledger/internal/clock"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	reservationdomain "github.com/smallbiznis/condoledger/internal/reservation/domain"
	"github.com/smallbiznis/condoledger/internal/reservation/repository"
	"github.com/smallbiznis/condoledger/internal/testutil"
	"github.com/smallbiznis/condoledger/internal/testutil/fixtures"
	"github.com/smallbiznis/condoledger/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var saturday = testutil.Date(2024, time.June, 8)

func setup(t *testing.T, repo reservationdomain.Repository) (reservationdomain.Service, *fixtures.Env, *reservationdomain.CommonArea) {
	t.Helper()
	conn := testutil.OpenDB(t)
	env := fixtures.New(t, conn, testutil.NewNode(t), clock.NewFakeClock(time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)))
	testutil.SeedUnit(t, conn, 10, decimal.NewFromInt(500))
	testutil.SeedResidency(t, conn, testutil.ResidencySeed{ID: 1, ResidentID: 100, UnitID: 10, ContractType: "ownership", Start: testutil.Date(2023, time.January, 1), Active: true})
	testutil.SeedResidency(t, conn, testutil.ResidencySeed{ID: 2, ResidentID: 200, UnitID: 10, ContractType: "rental", Start: testutil.Date(2023, time.January, 1), Active: true})

	if repo == nil {
		repo = repository.Provide()
	}
	svc := NewService(Params{
		DB:         conn,
		Log:        zap.NewNop(),
		GenID:      env.Node,
		Clock:      env.Clock,
		Repo:       repo,
		LedgerSvc:  env.Ledger,
		Directory:  env.Directory,
		Authorizer: env.Authorizer,
		Locker:     env.Locker,
		Billing:    env.Billing,
		AuditSvc:   env.Audit,
	})

	pool, err := svc.CreateArea(fixtures.Admin(), reservationdomain.CreateAreaRequest{
		Name:           "Pool",
		Kind:           "pool",
		Capacity:       20,
		OpensAt:        "08:00",
		ClosesAt:       "22:00",
		HasCost:        true,
		NormalRate:     decimal.NewFromInt(20),
		WeekendRate:    decimal.NewFromInt(40),
		TenantsAllowed: true,
	})
	require.NoError(t, err)
	return svc, env, pool
}

func book(area snowflake.ID, date time.Time, start, end string) reservationdomain.CreateRequest {
	return reservationdomain.CreateRequest{AreaID: area, Date: date, StartTime: start, EndTime: end}
}

func TestReservationLifecycleWithCharge(t *testing.T) {
	svc, env, pool := setup(t, nil)
	resident := fixtures.Resident(100)

	reservation, err := svc.Create(resident, book(pool.ID, saturday, "10:00", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusPending, reservation.Status)
	assert.Equal(t, snowflake.ID(100), reservation.ResidentID)
	assert.Nil(t, reservation.ChargeLineID)

	confirmed, err := svc.Confirm(fixtures.Admin(), reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ChargeLineID)
	require.NotNil(t, confirmed.BillingPeriodID)

	line, err := env.Ledger.GetLine(context.Background(), *confirmed.ChargeLineID)
	require.NoError(t, err)
	assert.True(t, line.Amount.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, "RESERVATION_"+reservation.ID.String(), line.Reference)
	period, err := env.Ledger.GetPeriod(context.Background(), line.BillingPeriodID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(1), period.ResidencyID)
	assert.Equal(t, "2024-06", period.Period)
	assert.True(t, period.TotalAmount.Equal(decimal.NewFromInt(40)))

	cancelled, err := svc.Cancel(resident, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.ChargeLineID)

	_, err = env.Ledger.GetLine(context.Background(), line.ID)
	require.ErrorIs(t, err, ledgerdomain.ErrLineNotFound)
	period, err = env.Ledger.GetPeriod(context.Background(), line.BillingPeriodID)
	require.NoError(t, err)
	assert.True(t, period.TotalAmount.IsZero())

	stored, err := svc.Get(fixtures.Admin(), reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusCancelled, stored.Status)
	assert.Nil(t, stored.ChargeLineID)

	_, err = svc.Confirm(fixtures.Admin(), reservation.ID)
	require.ErrorIs(t, err, reservationdomain.ErrInvalidTransition)
	assert.Equal(t, errs.KindState, errs.KindOf(err))
}

func TestConfirmWeekdayAndFreeArea(t *testing.T) {
	svc, env, pool := setup(t, nil)
	monday := testutil.Date(2024, time.June, 10)

	reservation, err := svc.Create(fixtures.Resident(100), book(pool.ID, monday, "09:00", "10:00"))
	require.NoError(t, err)
	confirmed, err := svc.Confirm(fixtures.Admin(), reservation.ID)
	require.NoError(t, err)
	line, err := env.Ledger.GetLine(context.Background(), *confirmed.ChargeLineID)
	require.NoError(t, err)
	assert.True(t, line.Amount.Equal(decimal.NewFromInt(20)))

	hall, err := svc.CreateArea(fixtures.Admin(), reservationdomain.CreateAreaRequest{
		Name: "Hall", Capacity: 50, OpensAt: "10:00", ClosesAt: "20:00", TenantsAllowed: true,
	})
	require.NoError(t, err)
	free, err := svc.Create(fixtures.Resident(100), book(hall.ID, saturday, "12:00", "14:00"))
	require.NoError(t, err)
	confirmedFree, err := svc.Confirm(fixtures.Admin(), free.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusConfirmed, confirmedFree.Status)
	assert.Nil(t, confirmedFree.ChargeLineID)

	completed, err := svc.Complete(fixtures.Admin(), free.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusCompleted, completed.Status)
	_, err = svc.Cancel(fixtures.Admin(), free.ID)
	require.ErrorIs(t, err, reservationdomain.ErrInvalidTransition)
}

func TestCreateRejectsOverlap(t *testing.T) {
	svc, _, pool := setup(t, nil)

	_, err := svc.Create(fixtures.Resident(100), book(pool.ID, saturday, "10:00", "12:00"))
	require.NoError(t, err)

	_, err = svc.Create(fixtures.Resident(200), book(pool.ID, saturday, "11:00", "13:00"))
	require.ErrorIs(t, err, reservationdomain.ErrSlotConflict)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = svc.Create(fixtures.Resident(200), book(pool.ID, saturday, "12:00", "13:00"))
	require.NoError(t, err, "adjacent slot is free")
	_, err = svc.Create(fixtures.Resident(200), book(pool.ID, saturday.AddDate(0, 0, 1), "10:00", "12:00"))
	require.NoError(t, err, "other date is free")
}

func TestCancelledReservationFreesSlot(t *testing.T) {
	svc, _, pool := setup(t, nil)

	first, err := svc.Create(fixtures.Resident(100), book(pool.ID, saturday, "10:00", "12:00"))
	require.NoError(t, err)
	_, err = svc.Cancel(fixtures.Resident(100), first.ID)
	require.NoError(t, err)

	_, err = svc.Create(fixtures.Resident(200), book(pool.ID, saturday, "10:00", "12:00"))
	require.NoError(t, err)
}

func TestConcurrentOverlappingCreate(t *testing.T) {
	svc, env, pool := setup(t, nil)

	requests := []struct {
		ctx context.Context
		req reservationdomain.CreateRequest
	}{
		{fixtures.Resident(100), book(pool.ID, saturday, "10:00", "11:00")},
		{fixtures.Resident(200), book(pool.ID, saturday, "10:30", "11:30")},
	}

	var wg sync.WaitGroup
	results := make([]error, len(requests))
	start := make(chan struct{})
	for i, r := range requests {
		wg.Add(1)
		go func(i int, ctx context.Context, req reservationdomain.CreateRequest) {
			defer wg.Done()
			<-start
			_, results[i] = svc.Create(ctx, req)
		}(i, r.ctx, r.req)
	}
	close(start)
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, reservationdomain.ErrSlotConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	var count int64
	require.NoError(t, env.DB.Raw(`SELECT COUNT(1) FROM reservations WHERE status = ?`, "pending").Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateValidation(t *testing.T) {
	svc, env, pool := setup(t, nil)
	resident := fixtures.Resident(100)

	cases := map[string]struct {
		req  reservationdomain.CreateRequest
		want error
	}{
		"past date":       {book(pool.ID, testutil.Date(2024, time.June, 2), "10:00", "11:00"), reservationdomain.ErrDateInPast},
		"bad start":       {book(pool.ID, saturday, "10h", "11:00"), reservationdomain.ErrInvalidTime},
		"empty range":     {book(pool.ID, saturday, "11:00", "11:00"), reservationdomain.ErrInvalidTimeRange},
		"reversed range":  {book(pool.ID, saturday, "12:00", "11:00"), reservationdomain.ErrInvalidTimeRange},
		"before opening":  {book(pool.ID, saturday, "07:30", "09:00"), reservationdomain.ErrOutsideOpeningHours},
		"after closing":   {book(pool.ID, saturday, "21:00", "22:30"), reservationdomain.ErrOutsideOpeningHours},
		"unknown area":    {book(999, saturday, "10:00", "11:00"), reservationdomain.ErrAreaNotFound},
		"missing area id": {book(0, saturday, "10:00", "11:00"), reservationdomain.ErrInvalidArea},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(resident, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := svc.Create(resident, book(pool.ID, env.Clock.Now(), "21:00", "22:00"))
	require.NoError(t, err, "today is bookable, closing time is exclusive")

	other := book(pool.ID, saturday, "10:00", "11:00")
	other.ResidentID = 200
	_, err = svc.Create(resident, other)
	require.ErrorIs(t, err, reservationdomain.ErrNotOwner)
}

func TestAreaRestrictions(t *testing.T) {
	svc, _, pool := setup(t, nil)
	admin := fixtures.Admin()

	gym, err := svc.CreateArea(admin, reservationdomain.CreateAreaRequest{
		Name: "Gym", Capacity: 5, OpensAt: "06:00", ClosesAt: "23:00", TenantsAllowed: false,
	})
	require.NoError(t, err)
	_, err = svc.Create(fixtures.Resident(200), book(gym.ID, saturday, "07:00", "08:00"))
	require.ErrorIs(t, err, reservationdomain.ErrTenantsNotAllowed)
	_, err = svc.Create(fixtures.Resident(100), book(gym.ID, saturday, "07:00", "08:00"))
	require.NoError(t, err)

	maintenance := reservationdomain.AreaStatusMaintenance
	_, err = svc.UpdateArea(admin, pool.ID, reservationdomain.UpdateAreaRequest{Status: &maintenance})
	require.NoError(t, err)
	_, err = svc.Create(fixtures.Resident(100), book(pool.ID, saturday, "10:00", "11:00"))
	require.ErrorIs(t, err, reservationdomain.ErrAreaUnavailable)

	_, err = svc.CreateArea(admin, reservationdomain.CreateAreaRequest{Name: "Pool", Capacity: 1, OpensAt: "08:00", ClosesAt: "09:00"})
	require.ErrorIs(t, err, reservationdomain.ErrAreaNameTaken)
	_, err = svc.CreateArea(admin, reservationdomain.CreateAreaRequest{Name: "Court", Capacity: 1, OpensAt: "08:00", ClosesAt: "09:00", HasCost: true})
	require.ErrorIs(t, err, reservationdomain.ErrInvalidRate)
	_, err = svc.CreateArea(fixtures.Resident(100), reservationdomain.CreateAreaRequest{Name: "Court", Capacity: 1, OpensAt: "08:00", ClosesAt: "09:00"})
	require.ErrorIs(t, err, authorization.ErrForbidden)

	areas, err := svc.ListAreas(fixtures.Resident(100))
	require.NoError(t, err)
	assert.Len(t, areas, 2)
}

func TestConfirmAuthorizationAndOwnership(t *testing.T) {
	svc, _, pool := setup(t, nil)

	reservation, err := svc.Create(fixtures.Resident(100), book(pool.ID, saturday, "10:00", "11:00"))
	require.NoError(t, err)

	_, err = svc.Confirm(fixtures.Resident(100), reservation.ID)
	require.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = svc.Cancel(fixtures.Resident(200), reservation.ID)
	require.ErrorIs(t, err, reservationdomain.ErrNotOwner)

	_, err = svc.Get(fixtures.Resident(200), reservation.ID)
	require.ErrorIs(t, err, reservationdomain.ErrReservationNotFound)

	own, err := svc.List(fixtures.Resident(200), reservationdomain.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, own.Reservations)
	all, err := svc.List(fixtures.Admin(), reservationdomain.ListRequest{Date: "2024-06-08", Status: reservationdomain.StatusPending})
	require.NoError(t, err)
	assert.Len(t, all.Reservations, 1)
}

func TestConfirmWithoutResidencyKeepsPending(t *testing.T) {
	svc, env, pool := setup(t, nil)

	reservation, err := svc.Create(fixtures.Admin(), reservationdomain.CreateRequest{
		AreaID: pool.ID, ResidentID: 300, Date: saturday, StartTime: "10:00", EndTime: "11:00",
	})
	require.NoError(t, err)

	_, err = svc.Confirm(fixtures.Admin(), reservation.ID)
	require.ErrorIs(t, err, reservationdomain.ErrMissingResidency)

	stored, err := svc.Get(fixtures.Admin(), reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusPending, stored.Status)

	var lines int64
	require.NoError(t, env.DB.Raw(`SELECT COUNT(1) FROM charge_lines`).Scan(&lines).Error)
	assert.Zero(t, lines)
}

type failingStatusRepo struct {
	reservationdomain.Repository
}

func (failingStatusRepo) UpdateStatus(context.Context, *gorm.DB, reservationdomain.StatusChange) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestConfirmReversesChargeWhenStatusUpdateFails(t *testing.T) {
	svc, env, pool := setup(t, failingStatusRepo{Repository: repository.Provide()})

	reservation, err := svc.Create(fixtures.Resident(100), book(pool.ID, saturday, "10:00", "11:00"))
	require.NoError(t, err)

	_, err = svc.Confirm(fixtures.Admin(), reservation.ID)
	require.Error(t, err)

	var lines int64
	require.NoError(t, env.DB.Raw(`SELECT COUNT(1) FROM charge_lines`).Scan(&lines).Error)
	assert.Zero(t, lines)

	period, err := env.Ledger.FindPeriod(context.Background(), 1, "2024-06")
	require.NoError(t, err)
	assert.True(t, period.TotalAmount.IsZero())
}

type cancelFailingRepo struct {
	reservationdomain.Repository
}

func (r cancelFailingRepo) UpdateStatus(ctx context.Context, db *gorm.DB, change reservationdomain.StatusChange) (int64, error) {
	if change.To == reservationdomain.StatusCancelled {
		return 0, errors.New("connection reset")
	}
	return r.Repository.UpdateStatus(ctx, db, change)
}

func TestCancelKeepsChargeWhenStatusUpdateFails(t *testing.T) {
	svc, env, pool := setup(t, cancelFailingRepo{Repository: repository.Provide()})

	reservation, err := svc.Create(fixtures.Resident(100), book(pool.ID, saturday, "10:00", "11:00"))
	require.NoError(t, err)
	confirmed, err := svc.Confirm(fixtures.Admin(), reservation.ID)
	require.NoError(t, err)
	require.NotNil(t, confirmed.ChargeLineID)

	_, err = svc.Cancel(fixtures.Resident(100), reservation.ID)
	require.Error(t, err)

	stored, err := svc.Get(fixtures.Admin(), reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusConfirmed, stored.Status)
	require.NotNil(t, stored.ChargeLineID)
	assert.Equal(t, *confirmed.ChargeLineID, *stored.ChargeLineID)

	line, err := env.Ledger.GetLine(context.Background(), *stored.ChargeLineID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(line.Amount))

	period, err := env.Ledger.FindPeriod(context.Background(), 1, "2024-06")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(period.TotalAmount))
}

type removeFailingLedger struct {
	ledgerdomain.Service
}

func (removeFailingLedger) RemoveChargeLine(context.Context, snowflake.ID) error {
	return errors.New("ledger unavailable")
}

func TestCancelRestoresStatusWhenChargeRemovalFails(t *testing.T) {
	svc, env, pool := setup(t, nil)

	reservation, err := svc.Create(fixtures.Resident(100), book(pool.ID, saturday, "10:00", "11:00"))
	require.NoError(t, err)
	confirmed, err := svc.Confirm(fixtures.Admin(), reservation.ID)
	require.NoError(t, err)

	failing := NewService(Params{
		DB:         env.DB,
		Log:        zap.NewNop(),
		GenID:      env.Node,
		Clock:      env.Clock,
		Repo:       repository.Provide(),
		LedgerSvc:  removeFailingLedger{Service: env.Ledger},
		Directory:  env.Directory,
		Authorizer: env.Authorizer,
		Locker:     env.Locker,
		Billing:    env.Billing,
		AuditSvc:   env.Audit,
	})
	_, err = failing.Cancel(fixtures.Admin(), reservation.ID)
	require.Error(t, err)

	stored, err := svc.Get(fixtures.Admin(), reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusConfirmed, stored.Status)
	require.NotNil(t, stored.ChargeLineID)
	assert.Equal(t, *confirmed.ChargeLineID, *stored.ChargeLineID)
	require.NotNil(t, stored.BillingPeriodID)
	assert.Equal(t, *confirmed.BillingPeriodID, *stored.BillingPeriodID)

	_, err = env.Ledger.GetLine(context.Background(), *stored.ChargeLineID)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(fixtures.Admin(), reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusCancelled, cancelled.Status)
}
