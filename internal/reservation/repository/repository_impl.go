package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condoledger/internal/reservation/domain"
	pkgdb "github.com/smallbiznis/condoledger/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const (
	areaColumns        = `id, name, kind, capacity, opens_at, closes_at, has_cost, normal_rate, weekend_rate, tenants_allowed, status, is_active, created_at, updated_at`
	reservationColumns = `id, area_id, resident_id, date, start_time, end_time, status, billing_period_id, charge_line_id, created_at, updated_at`
)

func (r *repo) InsertArea(ctx context.Context, db *gorm.DB, area *domain.CommonArea) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO common_areas (`+areaColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		area.ID,
		area.Name,
		area.Kind,
		area.Capacity,
		area.OpensAt,
		area.ClosesAt,
		area.HasCost,
		area.NormalRate,
		area.WeekendRate,
		area.TenantsAllowed,
		string(area.Status),
		area.IsActive,
		area.CreatedAt,
		area.UpdatedAt,
	).Error
}

func (r *repo) UpdateArea(ctx context.Context, db *gorm.DB, area *domain.CommonArea) error {
	return db.WithContext(ctx).Exec(
		`UPDATE common_areas
		 SET status = ?, is_active = ?, normal_rate = ?, weekend_rate = ?, updated_at = ?
		 WHERE id = ?`,
		string(area.Status),
		area.IsActive,
		area.NormalRate,
		area.WeekendRate,
		area.UpdatedAt,
		area.ID,
	).Error
}

func (r *repo) FindAreaByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CommonArea, error) {
	var items []domain.CommonArea
	err := db.WithContext(ctx).Raw(
		`SELECT `+areaColumns+`
		 FROM common_areas
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

func (r *repo) ListAreas(ctx context.Context, db *gorm.DB) ([]domain.CommonArea, error) {
	var items []domain.CommonArea
	err := db.WithContext(ctx).Raw(
		`SELECT ` + areaColumns + `
		 FROM common_areas
		 ORDER BY name ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) LockSlot(ctx context.Context, db *gorm.DB, areaID snowflake.ID, date time.Time) error {
	if err := db.WithContext(ctx).Exec(
		`INSERT INTO reservation_slot_locks (area_id, date)
		 VALUES (?, ?)
		 ON CONFLICT (area_id, date) DO NOTHING`,
		areaID,
		date,
	).Error; err != nil {
		return err
	}
	var locked []struct{ AreaID snowflake.ID }
	return db.WithContext(ctx).Raw(
		pkgdb.ForUpdate(db, `SELECT area_id
		 FROM reservation_slot_locks
		 WHERE area_id = ? AND date = ?`),
		areaID,
		date,
	).Scan(&locked).Error
}

func (r *repo) ListHolding(ctx context.Context, db *gorm.DB, areaID snowflake.ID, date time.Time) ([]domain.Reservation, error) {
	var items []domain.Reservation
	err := db.WithContext(ctx).Raw(
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE area_id = ? AND date = ? AND status IN (?, ?)
		 ORDER BY start_time ASC`,
		areaID,
		date,
		string(domain.StatusPending),
		string(domain.StatusConfirmed),
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reservation *domain.Reservation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reservations (`+reservationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reservation.ID,
		reservation.AreaID,
		reservation.ResidentID,
		reservation.Date,
		reservation.StartTime,
		reservation.EndTime,
		string(reservation.Status),
		reservation.BillingPeriodID,
		reservation.ChargeLineID,
		reservation.CreatedAt,
		reservation.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Reservation, error) {
	var items []domain.Reservation
	err := db.WithContext(ctx).Raw(
		`SELECT `+reservationColumns+`
		 FROM reservations
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

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Reservation, error) {
	stmt := db.WithContext(ctx).Model(&domain.Reservation{})
	if filter.AreaID != 0 {
		stmt = stmt.Where("area_id = ?", filter.AreaID)
	}
	if filter.ResidentID != 0 {
		stmt = stmt.Where("resident_id = ?", filter.ResidentID)
	}
	if filter.Date != nil {
		stmt = stmt.Where("date = ?", *filter.Date)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", string(filter.Status))
	}
	if filter.BeforeID != 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var items []domain.Reservation
	if err := stmt.Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, change domain.StatusChange) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE reservations
		 SET status = ?, billing_period_id = ?, charge_line_id = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(change.To),
		change.BillingPeriodID,
		change.ChargeLineID,
		change.UpdatedAt,
		change.ID,
		string(change.From),
	)
	return result.RowsAffected, result.Error
}
