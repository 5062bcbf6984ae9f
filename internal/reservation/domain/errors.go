package domain

import "github.com/smallbiznis/condoledger/pkg/errs"

var (
	ErrInvalidArea         = errs.New(errs.KindValidation, "invalid_area_id")
	ErrInvalidResident     = errs.New(errs.KindValidation, "invalid_resident_id")
	ErrInvalidID           = errs.New(errs.KindValidation, "invalid_reservation_id")
	ErrInvalidDate         = errs.New(errs.KindValidation, "invalid_date")
	ErrDateInPast          = errs.New(errs.KindValidation, "date_in_past")
	ErrInvalidTime         = errs.New(errs.KindValidation, "invalid_time")
	ErrInvalidTimeRange    = errs.New(errs.KindValidation, "invalid_time_range")
	ErrOutsideOpeningHours = errs.New(errs.KindValidation, "outside_opening_hours")
	ErrTenantsNotAllowed   = errs.New(errs.KindValidation, "tenants_not_allowed")
	ErrInvalidStatus       = errs.New(errs.KindValidation, "invalid_status")
	ErrInvalidAreaName     = errs.New(errs.KindValidation, "invalid_area_name")
	ErrInvalidCapacity     = errs.New(errs.KindValidation, "invalid_capacity")
	ErrInvalidRate         = errs.New(errs.KindValidation, "invalid_rate")
	ErrInvalidOpeningHours = errs.New(errs.KindValidation, "invalid_opening_hours")
	ErrInvalidPageToken    = errs.New(errs.KindValidation, "invalid_page_token")
	ErrAreaNameTaken       = errs.New(errs.KindConflict, "area_name_taken")
	ErrSlotConflict        = errs.New(errs.KindConflict, "reservation_conflict")
	ErrAreaNotFound        = errs.New(errs.KindNotFound, "area_not_found")
	ErrReservationNotFound = errs.New(errs.KindNotFound, "reservation_not_found")
	ErrMissingResidency    = errs.New(errs.KindNotFound, "missing_residency")
	ErrAreaUnavailable     = errs.New(errs.KindState, "area_unavailable")
	ErrNotOwner            = errs.New(errs.KindForbidden, "reservation_not_owned")
)
