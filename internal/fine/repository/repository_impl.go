package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condoledger/internal/fine/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, fine *domain.Fine) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO fines (
			id, amount, reason, incident_date, created_by, residency_id, resident_id,
			charge_line_id, conversion_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fine.ID,
		fine.Amount,
		fine.Reason,
		fine.IncidentDate,
		fine.CreatedBy,
		fine.ResidencyID,
		fine.ResidentID,
		fine.ChargeLineID,
		fine.ConversionError,
		fine.CreatedAt,
		fine.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Fine, error) {
	var items []domain.Fine
	err := db.WithContext(ctx).Raw(
		`SELECT id, amount, reason, incident_date, created_by, residency_id, resident_id,
			charge_line_id, conversion_error, created_at, updated_at
		 FROM fines
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Fine, error) {
	stmt := db.WithContext(ctx).Model(&domain.Fine{})
	if filter.ResidentID != 0 {
		stmt = stmt.Where("resident_id = ?", filter.ResidentID)
	}
	if filter.ResidencyID != 0 {
		stmt = stmt.Where("residency_id = ?", filter.ResidencyID)
	}
	if filter.OwnerResidentID != 0 {
		stmt = stmt.Where("(resident_id = ? OR residency_id = ?)", filter.OwnerResidentID, filter.OwnerResidencyID)
	}
	if filter.Unconverted {
		stmt = stmt.Where("charge_line_id IS NULL")
	}
	if filter.BeforeID != 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var items []domain.Fine
	if err := stmt.Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) LinkLine(ctx context.Context, db *gorm.DB, id, lineID snowflake.ID, updatedAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE fines
		 SET charge_line_id = ?, conversion_error = NULL, updated_at = ?
		 WHERE id = ? AND charge_line_id IS NULL`,
		lineID,
		updatedAt,
		id,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UnlinkLine(ctx context.Context, db *gorm.DB, id, lineID snowflake.ID, updatedAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE fines
		 SET charge_line_id = NULL, updated_at = ?
		 WHERE id = ? AND charge_line_id = ?`,
		updatedAt,
		id,
		lineID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) SetConversionError(ctx context.Context, db *gorm.DB, id snowflake.ID, message string, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE fines
		 SET conversion_error = ?, updated_at = ?
		 WHERE id = ? AND charge_line_id IS NULL`,
		message,
		updatedAt,
		id,
	).Error
}
