package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condoledger/internal/directory/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type residencyRow struct {
	ID           snowflake.ID
	ResidentID   snowflake.ID
	UnitID       snowflake.ID
	ContractType string
	StartDate    time.Time
	EndDate      sql.NullTime
	IsActive     bool
}

const residencyColumns = `id, resident_id, unit_id, contract_type, start_date, end_date, is_active`

func (r *repo) FindResidency(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Residency, error) {
	var rows []residencyRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+residencyColumns+`
		 FROM residencies
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	residency := toResidency(rows[0])
	return &residency, nil
}

func (r *repo) ListActiveResidenciesForResident(ctx context.Context, db *gorm.DB, residentID snowflake.ID) ([]domain.Residency, error) {
	var rows []residencyRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+residencyColumns+`
		 FROM residencies
		 WHERE resident_id = ? AND is_active = ?
		 ORDER BY start_date DESC, id DESC`,
		residentID,
		true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toResidencies(rows), nil
}

func (r *repo) ListActiveByContract(ctx context.Context, db *gorm.DB, contract domain.ContractType) ([]domain.Residency, error) {
	var rows []residencyRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+residencyColumns+`
		 FROM residencies
		 WHERE contract_type = ? AND is_active = ?
		 ORDER BY id ASC`,
		string(contract),
		true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toResidencies(rows), nil
}

func (r *repo) FindUnit(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Unit, error) {
	var rows []struct {
		ID          snowflake.ID
		Code        string
		RentalPrice decimal.NullDecimal
	}
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, rental_price
		 FROM units
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &domain.Unit{
		ID:          rows[0].ID,
		Code:        rows[0].Code,
		RentalPrice: rows[0].RentalPrice,
	}, nil
}

func toResidencies(rows []residencyRow) []domain.Residency {
	items := make([]domain.Residency, 0, len(rows))
	for _, row := range rows {
		items = append(items, toResidency(row))
	}
	return items
}

func toResidency(row residencyRow) domain.Residency {
	residency := domain.Residency{
		ID:           row.ID,
		ResidentID:   row.ResidentID,
		UnitID:       row.UnitID,
		ContractType: domain.ContractType(row.ContractType),
		StartDate:    row.StartDate.UTC(),
		IsActive:     row.IsActive,
	}
	if row.EndDate.Valid {
		end := row.EndDate.Time.UTC()
		residency.EndDate = &end
	}
	return residency
}
