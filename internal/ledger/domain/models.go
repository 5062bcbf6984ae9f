package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CategoryKind tags what a charge category bills for.
type CategoryKind string

const (
	CategoryKindRent        CategoryKind = "rent"
	CategoryKindReservation CategoryKind = "reservation"
	CategoryKindOrdinaryFee CategoryKind = "ordinary_fee"
	CategoryKindFine        CategoryKind = "fine"
	CategoryKindService     CategoryKind = "service"
)

func (k CategoryKind) Valid() bool {
	switch k {
	case CategoryKindRent, CategoryKindReservation, CategoryKindOrdinaryFee, CategoryKindFine, CategoryKindService:
		return true
	default:
		return false
	}
}

// System category names used by the generators.
const (
	CategoryNameRent        = "Monthly Rent"
	CategoryNameReservation = "Common Area Reservation"
	CategoryNameFine        = "Fine"
)

// IsReservedCategoryName reports whether name belongs to a generator category.
func IsReservedCategoryName(name string) bool {
	name = strings.TrimSpace(name)
	for _, reserved := range []string{CategoryNameRent, CategoryNameReservation, CategoryNameFine} {
		if strings.EqualFold(name, reserved) {
			return true
		}
	}
	return false
}

type PeriodStatus string

const (
	PeriodStatusPending PeriodStatus = "pending"
	PeriodStatusPartial PeriodStatus = "partial"
	PeriodStatusPaid    PeriodStatus = "paid"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodCard     PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCard:
		return true
	default:
		return false
	}
}

type ChargeCategory struct {
	ID        snowflake.ID `json:"id"`
	Name      string       `json:"name"`
	Kind      CategoryKind `json:"kind"`
	IsActive  bool         `json:"is_active"`
	IsSystem  bool         `json:"is_system"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// BillingPeriod is the monthly bill of one residency. TotalAmount and Status
// are derived from its lines and payments and only written by the ledger.
type BillingPeriod struct {
	ID          snowflake.ID    `json:"id"`
	ResidencyID snowflake.ID    `json:"residency_id"`
	Period      string          `json:"period"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      PeriodStatus    `json:"status"`
	IssuedOn    time.Time       `json:"issued_on"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ChargeLine struct {
	ID              snowflake.ID    `json:"id"`
	BillingPeriodID snowflake.ID    `json:"billing_period_id"`
	CategoryID      snowflake.ID    `json:"category_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Reference       string          `json:"reference"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	IdempotencyKey  *string         `json:"idempotency_key,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Payment struct {
	ID              snowflake.ID    `json:"id"`
	BillingPeriodID snowflake.ID    `json:"billing_period_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          PaymentMethod   `json:"method"`
	PaidOn          time.Time       `json:"paid_on"`
	RecordedBy      string          `json:"recorded_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Statement is a billing period with its children and derived balances.
type Statement struct {
	BillingPeriod
	Lines      []ChargeLine    `json:"lines"`
	Payments   []Payment       `json:"payments"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Balance    decimal.Decimal `json:"balance"`
}

// DeriveStatus maps cumulative payments against a total. Overpayment is paid.
func DeriveStatus(total, paid decimal.Decimal) PeriodStatus {
	switch {
	case !paid.IsPositive():
		return PeriodStatusPending
	case paid.GreaterThanOrEqual(total):
		return PeriodStatusPaid
	default:
		return PeriodStatusPartial
	}
}

// LockKey is the mutual exclusion key for every mutation of one billing period.
func LockKey(residencyID snowflake.ID, period string) string {
	return "billing_period:" + residencyID.String() + ":" + period
}

func (ChargeCategory) TableName() string { return "charge_categories" }
func (BillingPeriod) TableName() string  { return "billing_periods" }
func (ChargeLine) TableName() string     { return "charge_lines" }
func (Payment) TableName() string        { return "payments" }
