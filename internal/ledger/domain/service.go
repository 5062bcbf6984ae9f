package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condoledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type AddChargeLineRequest struct {
	ResidencyID snowflake.ID
	Period      string
	CategoryID  snowflake.ID
	Amount      decimal.Decimal
	Description string
	Reference   string
	DueDate     *time.Time
	// IdempotencyKey makes the insert unique; a second add with the same
	// key fails with ErrDuplicateChargeLine.
	IdempotencyKey string
}

type ApplyPaymentRequest struct {
	BillingPeriodID snowflake.ID
	Amount          decimal.Decimal
	Method          PaymentMethod
	PaidOn          *time.Time
	RecordedBy      string
}

type CreateCategoryRequest struct {
	Name string       `json:"name"`
	Kind CategoryKind `json:"kind"`
}

type UpdateCategoryRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

type ListPeriodsRequest struct {
	pagination.Pagination
	ResidencyID snowflake.ID
	Period      string
	Status      PeriodStatus
}

type ListPeriodsResponse struct {
	pagination.PageInfo
	Periods []BillingPeriod `json:"billing_periods"`
}

type Service interface {
	AddChargeLine(ctx context.Context, req AddChargeLineRequest) (*ChargeLine, error)
	RemoveChargeLine(ctx context.Context, lineID snowflake.ID) error
	ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*Payment, error)
	RemovePayment(ctx context.Context, paymentID snowflake.ID) error

	GetPeriod(ctx context.Context, id snowflake.ID) (*BillingPeriod, error)
	FindPeriod(ctx context.Context, residencyID snowflake.ID, period string) (*BillingPeriod, error)
	ListPeriods(ctx context.Context, req ListPeriodsRequest) (ListPeriodsResponse, error)
	GetStatement(ctx context.Context, periodID snowflake.ID) (*Statement, error)
	ListLines(ctx context.Context, periodID snowflake.ID) ([]ChargeLine, error)
	ListPayments(ctx context.Context, periodID snowflake.ID) ([]Payment, error)
	GetLine(ctx context.Context, id snowflake.ID) (*ChargeLine, error)
	GetPayment(ctx context.Context, id snowflake.ID) (*Payment, error)
	FindLineByIdempotencyKey(ctx context.Context, key string) (*ChargeLine, error)
	HasLineOfKind(ctx context.Context, residencyID snowflake.ID, period string, kind CategoryKind) (bool, error)

	EnsureCategory(ctx context.Context, kind CategoryKind, name string) (*ChargeCategory, error)
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*ChargeCategory, error)
	UpdateCategory(ctx context.Context, id snowflake.ID, req UpdateCategoryRequest) (*ChargeCategory, error)
	ListCategories(ctx context.Context) ([]ChargeCategory, error)
}

type PeriodFilter struct {
	ResidencyID snowflake.ID
	Period      string
	Status      PeriodStatus
	BeforeID    snowflake.ID
	Limit       int
}

type Repository interface {
	InsertCategory(ctx context.Context, db *gorm.DB, category *ChargeCategory) error
	InsertCategoryIfAbsent(ctx context.Context, db *gorm.DB, category *ChargeCategory) error
	FindCategoryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ChargeCategory, error)
	FindCategoryByName(ctx context.Context, db *gorm.DB, name string) (*ChargeCategory, error)
	ListCategories(ctx context.Context, db *gorm.DB) ([]ChargeCategory, error)
	UpdateCategory(ctx context.Context, db *gorm.DB, category *ChargeCategory) error
	CategoryInUse(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)

	InsertPeriodIfAbsent(ctx context.Context, db *gorm.DB, period *BillingPeriod) error
	FindPeriodByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*BillingPeriod, error)
	FindPeriodByKey(ctx context.Context, db *gorm.DB, residencyID snowflake.ID, period string, forUpdate bool) (*BillingPeriod, error)
	ListPeriods(ctx context.Context, db *gorm.DB, filter PeriodFilter) ([]BillingPeriod, error)
	UpdatePeriodTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, total decimal.Decimal, status PeriodStatus, updatedAt time.Time) error

	InsertLine(ctx context.Context, db *gorm.DB, line *ChargeLine) error
	FindLineByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ChargeLine, error)
	FindLineByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*ChargeLine, error)
	DeleteLine(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	ListLines(ctx context.Context, db *gorm.DB, periodID snowflake.ID) ([]ChargeLine, error)
	CountLinesOfKind(ctx context.Context, db *gorm.DB, residencyID snowflake.ID, period string, kind CategoryKind) (int64, error)

	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindPaymentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	DeletePayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	ListPayments(ctx context.Context, db *gorm.DB, periodID snowflake.ID) ([]Payment, error)
}
