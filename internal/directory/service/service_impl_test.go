package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condoledger/internal/directory/domain"
	"github.com/smallbiznis/condoledger/internal/directory/repository"
	"github.com/smallbiznis/condoledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDirectory(t *testing.T) (domain.Directory, func(testutil.ResidencySeed)) {
	t.Helper()
	conn := testutil.OpenDB(t)
	testutil.SeedUnit(t, conn, 10, decimal.NewFromInt(500))
	testutil.SeedUnit(t, conn, 11, decimal.Zero)

	dir := New(Params{DB: conn, Log: zap.NewNop(), Repo: repository.Provide()})
	return dir, func(seed testutil.ResidencySeed) { testutil.SeedResidency(t, conn, seed) }
}

func TestGetResidency(t *testing.T) {
	dir, seed := newTestDirectory(t)
	end := testutil.Date(2024, time.December, 31)
	seed(testutil.ResidencySeed{ID: 1, ResidentID: 100, UnitID: 10, ContractType: "rental", Start: testutil.Date(2024, time.January, 1), End: &end, Active: true})

	residency, err := dir.GetResidency(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ContractRental, residency.ContractType)
	assert.True(t, residency.IsActive)
	require.NotNil(t, residency.EndDate)
	assert.True(t, residency.EndDate.Equal(end))

	_, err = dir.GetResidency(context.Background(), 2)
	assert.ErrorIs(t, err, domain.ErrResidencyNotFound)
}

func TestActiveResidencyForResident(t *testing.T) {
	dir, seed := newTestDirectory(t)
	seed(testutil.ResidencySeed{ID: 1, ResidentID: 100, UnitID: 10, ContractType: "rental", Start: testutil.Date(2023, time.January, 1), Active: false})
	seed(testutil.ResidencySeed{ID: 2, ResidentID: 100, UnitID: 10, ContractType: "rental", Start: testutil.Date(2024, time.January, 1), Active: true})
	seed(testutil.ResidencySeed{ID: 3, ResidentID: 200, UnitID: 10, ContractType: "ownership", Start: testutil.Date(2024, time.January, 1), Active: true})
	seed(testutil.ResidencySeed{ID: 4, ResidentID: 200, UnitID: 11, ContractType: "loan", Start: testutil.Date(2024, time.February, 1), Active: true})

	residency, err := dir.ActiveResidencyForResident(context.Background(), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 2, residency.ID)

	_, err = dir.ActiveResidencyForResident(context.Background(), 200)
	assert.ErrorIs(t, err, domain.ErrAmbiguousResidency)

	_, err = dir.ActiveResidencyForResident(context.Background(), 300)
	assert.ErrorIs(t, err, domain.ErrNoActiveResidency)
}

func TestListActiveRentalResidencies(t *testing.T) {
	dir, seed := newTestDirectory(t)
	seed(testutil.ResidencySeed{ID: 1, ResidentID: 100, UnitID: 10, ContractType: "rental", Start: testutil.Date(2024, time.January, 1), Active: true})
	seed(testutil.ResidencySeed{ID: 2, ResidentID: 101, UnitID: 10, ContractType: "rental", Start: testutil.Date(2024, time.January, 1), Active: false})
	seed(testutil.ResidencySeed{ID: 3, ResidentID: 102, UnitID: 10, ContractType: "ownership", Start: testutil.Date(2024, time.January, 1), Active: true})

	items, err := dir.ListActiveRentalResidencies(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.EqualValues(t, 1, items[0].ID)
}

func TestGetUnit(t *testing.T) {
	dir, _ := newTestDirectory(t)

	unit, err := dir.GetUnit(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, unit.RentalPrice.Valid)
	assert.True(t, unit.RentalPrice.Decimal.Equal(decimal.NewFromInt(500)))

	unit, err = dir.GetUnit(context.Background(), 11)
	require.NoError(t, err)
	assert.False(t, unit.RentalPrice.Valid)

	_, err = dir.GetUnit(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)
}
