package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	"github.com/smallbiznis/condoledger/pkg/errs"
)

// SkipReason explains why a residency got no rent line for a period.
type SkipReason string

const (
	SkipNotRental        SkipReason = "not_rental"
	SkipInactive         SkipReason = "inactive"
	SkipOutsideContract  SkipReason = "outside_contract"
	SkipAlreadyGenerated SkipReason = "already_generated"
)

// Outcome of one generation attempt. Line is nil when Skipped.
type Outcome struct {
	Line    *ledgerdomain.ChargeLine `json:"line,omitempty"`
	Skipped bool                     `json:"skipped"`
	Reason  SkipReason               `json:"reason,omitempty"`
}

type Failure struct {
	ResidencyID snowflake.ID `json:"residency_id"`
	Code        string       `json:"code"`
	Message     string       `json:"message"`
}

type BatchResult struct {
	Period    string    `json:"period"`
	Processed int       `json:"processed"`
	Generated int       `json:"generated"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures"`
}

type Service interface {
	GenerateForPeriod(ctx context.Context, residencyID snowflake.ID, period string) (Outcome, error)
	GenerateBatch(ctx context.Context, period string) (BatchResult, error)
}

var (
	ErrInvalidResidency   = errs.New(errs.KindValidation, "invalid_residency_id")
	ErrMissingRentalPrice = errs.New(errs.KindPrecondition, "missing_rental_price")
)

func RentReference(residencyID snowflake.ID, period string) string {
	return "RENT_" + residencyID.String() + "_" + period
}

func RentIdempotencyKey(residencyID snowflake.ID, period string) string {
	return "rent:" + residencyID.String() + ":" + period
}
