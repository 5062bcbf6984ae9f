package domain

import "github.com/smallbiznis/condoledger/pkg/errs"

var (
	ErrInvalidAmount       = errs.New(errs.KindValidation, "invalid_amount")
	ErrInvalidReason       = errs.New(errs.KindValidation, "invalid_reason")
	ErrInvalidIncidentDate = errs.New(errs.KindValidation, "invalid_incident_date")
	ErrMissingTarget       = errs.New(errs.KindValidation, "missing_residency_or_resident")
	ErrInvalidID           = errs.New(errs.KindValidation, "invalid_fine_id")
	ErrInvalidPageToken    = errs.New(errs.KindValidation, "invalid_page_token")

	ErrFineNotFound     = errs.New(errs.KindNotFound, "fine_not_found")
	ErrMissingResidency = errs.New(errs.KindNotFound, "missing_residency")
)
