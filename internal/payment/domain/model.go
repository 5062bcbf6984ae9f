package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	"github.com/smallbiznis/condoledger/pkg/errs"
)

type PayRequest struct {
	BillingPeriodID snowflake.ID               `json:"billing_period_id"`
	Amount          decimal.Decimal            `json:"amount"`
	Method          ledgerdomain.PaymentMethod `json:"method"`
	PaidOn          *time.Time                 `json:"paid_on,omitempty"`
}

// Service is the caller-facing payment surface. Residents act only on
// billing periods of their own residencies.
type Service interface {
	Pay(ctx context.Context, req PayRequest) (*ledgerdomain.Payment, error)
	Void(ctx context.Context, paymentID snowflake.ID) error
	Statement(ctx context.Context, periodID snowflake.ID) (*ledgerdomain.Statement, error)
	ListPeriods(ctx context.Context, req ledgerdomain.ListPeriodsRequest) (ledgerdomain.ListPeriodsResponse, error)
}

var (
	ErrInvalidPeriod = errs.New(errs.KindValidation, "invalid_billing_period_id")
	ErrInvalidAmount = errs.New(errs.KindValidation, "invalid_amount")
	ErrInvalidMethod = errs.New(errs.KindValidation, "invalid_payment_method")
	ErrNotOwner      = errs.New(errs.KindForbidden, "billing_period_not_owned")
)
