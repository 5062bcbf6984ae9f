package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condoledger/pkg/errs"
	"github.com/smallbiznis/condoledger/pkg/period"
	"gorm.io/gorm"
)

type ContractType string

const (
	ContractOwnership ContractType = "ownership"
	ContractRental    ContractType = "rental"
	ContractLoan      ContractType = "loan"
)

// Residency links a resident to a unit for a validity window.
type Residency struct {
	ID           snowflake.ID `json:"id"`
	ResidentID   snowflake.ID `json:"resident_id"`
	UnitID       snowflake.ID `json:"unit_id"`
	ContractType ContractType `json:"contract_type"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      *time.Time   `json:"end_date,omitempty"`
	IsActive     bool         `json:"is_active"`
}

// CoversPeriod reports whether the first day of p lies in [start, end).
func (r Residency) CoversPeriod(p period.Period) bool {
	monthStart := p.Start()
	if monthStart.Before(period.Date(r.StartDate)) {
		return false
	}
	if r.EndDate == nil {
		return true
	}
	return monthStart.Before(period.Date(*r.EndDate))
}

type Unit struct {
	ID          snowflake.ID        `json:"id"`
	Code        string              `json:"code"`
	RentalPrice decimal.NullDecimal `json:"rental_price"`
}

// Directory is the read-only view over residencies and units.
type Directory interface {
	GetResidency(ctx context.Context, id snowflake.ID) (*Residency, error)
	ActiveResidencyForResident(ctx context.Context, residentID snowflake.ID) (*Residency, error)
	ListActiveRentalResidencies(ctx context.Context) ([]Residency, error)
	GetUnit(ctx context.Context, id snowflake.ID) (*Unit, error)
}

type Repository interface {
	FindResidency(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Residency, error)
	ListActiveResidenciesForResident(ctx context.Context, db *gorm.DB, residentID snowflake.ID) ([]Residency, error)
	ListActiveByContract(ctx context.Context, db *gorm.DB, contract ContractType) ([]Residency, error)
	FindUnit(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Unit, error)
}

var (
	ErrResidencyNotFound  = errs.New(errs.KindNotFound, "residency_not_found")
	ErrNoActiveResidency  = errs.New(errs.KindNotFound, "no_active_residency")
	ErrAmbiguousResidency = errs.New(errs.KindState, "ambiguous_active_residency")
	ErrUnitNotFound       = errs.New(errs.KindNotFound, "unit_not_found")
	ErrInvalidResidentID  = errs.New(errs.KindValidation, "invalid_resident_id")
	ErrInvalidResidencyID = errs.New(errs.KindValidation, "invalid_residency_id")
)
