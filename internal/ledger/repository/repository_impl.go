package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condoledger/internal/ledger/domain"
	pkgdb "github.com/smallbiznis/condoledger/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const (
	categoryColumns = `id, name, kind, is_active, is_system, created_at, updated_at`
	periodColumns   = `id, residency_id, period, total_amount, status, issued_on, created_at, updated_at`
	lineColumns     = `id, billing_period_id, category_id, amount, description, reference, due_date, idempotency_key, created_at`
	paymentColumns  = `id, billing_period_id, amount, method, paid_on, recorded_by, created_at`
)

func (r *repo) InsertCategory(ctx context.Context, db *gorm.DB, category *domain.ChargeCategory) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO charge_categories (`+categoryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		category.ID,
		category.Name,
		string(category.Kind),
		category.IsActive,
		category.IsSystem,
		category.CreatedAt,
		category.UpdatedAt,
	).Error
}

func (r *repo) InsertCategoryIfAbsent(ctx context.Context, db *gorm.DB, category *domain.ChargeCategory) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO charge_categories (`+categoryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO NOTHING`,
		category.ID,
		category.Name,
		string(category.Kind),
		category.IsActive,
		category.IsSystem,
		category.CreatedAt,
		category.UpdatedAt,
	).Error
}

func (r *repo) FindCategoryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ChargeCategory, error) {
	var items []domain.ChargeCategory
	err := db.WithContext(ctx).Raw(
		`SELECT `+categoryColumns+`
		 FROM charge_categories
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

func (r *repo) FindCategoryByName(ctx context.Context, db *gorm.DB, name string) (*domain.ChargeCategory, error) {
	var items []domain.ChargeCategory
	err := db.WithContext(ctx).Raw(
		`SELECT `+categoryColumns+`
		 FROM charge_categories
		 WHERE name = ?
		 LIMIT 1`,
		name,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) ListCategories(ctx context.Context, db *gorm.DB) ([]domain.ChargeCategory, error) {
	var items []domain.ChargeCategory
	err := db.WithContext(ctx).Raw(
		`SELECT ` + categoryColumns + `
		 FROM charge_categories
		 ORDER BY name ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateCategory(ctx context.Context, db *gorm.DB, category *domain.ChargeCategory) error {
	return db.WithContext(ctx).Exec(
		`UPDATE charge_categories
		 SET name = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		category.Name,
		category.IsActive,
		category.UpdatedAt,
		category.ID,
	).Error
}

func (r *repo) CategoryInUse(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM charge_lines WHERE category_id = ?`,
		id,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertPeriodIfAbsent(ctx context.Context, db *gorm.DB, period *domain.BillingPeriod) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_periods (`+periodColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (residency_id, period) DO NOTHING`,
		period.ID,
		period.ResidencyID,
		period.Period,
		period.TotalAmount,
		string(period.Status),
		period.IssuedOn,
		period.CreatedAt,
		period.UpdatedAt,
	).Error
}

func (r *repo) FindPeriodByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.BillingPeriod, error) {
	query := `SELECT ` + periodColumns + `
		 FROM billing_periods
		 WHERE id = ?`
	if forUpdate {
		query = pkgdb.ForUpdate(db, query)
	}
	return r.findPeriod(ctx, db, query, id)
}

func (r *repo) FindPeriodByKey(ctx context.Context, db *gorm.DB, residencyID snowflake.ID, period string, forUpdate bool) (*domain.BillingPeriod, error) {
	query := `SELECT ` + periodColumns + `
		 FROM billing_periods
		 WHERE residency_id = ? AND period = ?`
	if forUpdate {
		query = pkgdb.ForUpdate(db, query)
	}
	return r.findPeriod(ctx, db, query, residencyID, period)
}

func (r *repo) findPeriod(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.BillingPeriod, error) {
	var items []domain.BillingPeriod
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) ListPeriods(ctx context.Context, db *gorm.DB, filter domain.PeriodFilter) ([]domain.BillingPeriod, error) {
	stmt := db.WithContext(ctx).Model(&domain.BillingPeriod{})
	if filter.ResidencyID != 0 {
		stmt = stmt.Where("residency_id = ?", filter.ResidencyID)
	}
	if filter.Period != "" {
		stmt = stmt.Where("period = ?", filter.Period)
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

	var items []domain.BillingPeriod
	if err := stmt.Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdatePeriodTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, total decimal.Decimal, status domain.PeriodStatus, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_periods
		 SET total_amount = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		total,
		string(status),
		updatedAt,
		id,
	).Error
}

func (r *repo) InsertLine(ctx context.Context, db *gorm.DB, line *domain.ChargeLine) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO charge_lines (`+lineColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		line.ID,
		line.BillingPeriodID,
		line.CategoryID,
		line.Amount,
		line.Description,
		line.Reference,
		line.DueDate,
		line.IdempotencyKey,
		line.CreatedAt,
	).Error
}

func (r *repo) FindLineByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ChargeLine, error) {
	return r.findLine(ctx, db, `WHERE id = ?`, id)
}

func (r *repo) FindLineByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.ChargeLine, error) {
	return r.findLine(ctx, db, `WHERE idempotency_key = ?`, key)
}

func (r *repo) findLine(ctx context.Context, db *gorm.DB, where string, args ...any) (*domain.ChargeLine, error) {
	var items []domain.ChargeLine
	err := db.WithContext(ctx).Raw(
		`SELECT `+lineColumns+`
		 FROM charge_lines
		 `+where+`
		 LIMIT 1`,
		args...,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) DeleteLine(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM charge_lines WHERE id = ?`, id)
	return result.RowsAffected, result.Error
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, periodID snowflake.ID) ([]domain.ChargeLine, error) {
	var items []domain.ChargeLine
	err := db.WithContext(ctx).Raw(
		`SELECT `+lineColumns+`
		 FROM charge_lines
		 WHERE billing_period_id = ?
		 ORDER BY id ASC`,
		periodID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountLinesOfKind(ctx context.Context, db *gorm.DB, residencyID snowflake.ID, period string, kind domain.CategoryKind) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM charge_lines cl
		 JOIN billing_periods bp ON bp.id = cl.billing_period_id
		 JOIN charge_categories cc ON cc.id = cl.category_id
		 WHERE bp.residency_id = ? AND bp.period = ? AND cc.kind = ?`,
		residencyID,
		period,
		string(kind),
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.BillingPeriodID,
		payment.Amount,
		string(payment.Method),
		payment.PaidOn,
		payment.RecordedBy,
		payment.CreatedAt,
	).Error
}

func (r *repo) FindPaymentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
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

func (r *repo) DeletePayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM payments WHERE id = ?`, id)
	return result.RowsAffected, result.Error
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, periodID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE billing_period_id = ?
		 ORDER BY paid_on ASC, id ASC`,
		periodID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
