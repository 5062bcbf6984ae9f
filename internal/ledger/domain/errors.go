package domain

import "github.com/smallbiznis/condoledger/pkg/errs"

var (
	ErrInvalidAmount       = errs.New(errs.KindValidation, "invalid_amount")
	ErrInvalidResidency    = errs.New(errs.KindValidation, "invalid_residency_id")
	ErrInvalidCategory     = errs.New(errs.KindValidation, "invalid_category_id")
	ErrInvalidCategoryKind = errs.New(errs.KindValidation, "invalid_category_kind")
	ErrInvalidCategoryName = errs.New(errs.KindValidation, "invalid_category_name")
	ErrInvalidDescription  = errs.New(errs.KindValidation, "invalid_description")
	ErrInvalidMethod       = errs.New(errs.KindValidation, "invalid_payment_method")
	ErrInvalidStatus       = errs.New(errs.KindValidation, "invalid_status")
	ErrInvalidID           = errs.New(errs.KindValidation, "invalid_id")
	ErrInvalidPageToken    = errs.New(errs.KindValidation, "invalid_page_token")

	ErrCategoryNotFound = errs.New(errs.KindNotFound, "charge_category_not_found")
	ErrPeriodNotFound   = errs.New(errs.KindNotFound, "billing_period_not_found")
	ErrLineNotFound     = errs.New(errs.KindNotFound, "charge_line_not_found")
	ErrPaymentNotFound  = errs.New(errs.KindNotFound, "payment_not_found")

	ErrCategoryInactive     = errs.New(errs.KindState, "charge_category_inactive")
	ErrCategoryInUse        = errs.New(errs.KindState, "charge_category_in_use")
	ErrCategoryKindClash    = errs.New(errs.KindState, "charge_category_kind_mismatch")
	ErrSystemCategory       = errs.New(errs.KindState, "charge_category_system")
	ErrCategoryNameReserved = errs.New(errs.KindConflict, "charge_category_name_reserved")
	ErrCategoryNameTaken    = errs.New(errs.KindConflict, "charge_category_name_taken")
	ErrDuplicateChargeLine  = errs.New(errs.KindConflict, "duplicate_charge_line")
)
