package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condoledger/pkg/db/pagination"
	"github.com/smallbiznis/condoledger/pkg/period"
	"gorm.io/gorm"
)

type AreaStatus string

const (
	AreaStatusAvailable   AreaStatus = "available"
	AreaStatusMaintenance AreaStatus = "maintenance"
)

func (s AreaStatus) Valid() bool {
	return s == AreaStatusAvailable || s == AreaStatusMaintenance
}

type CommonArea struct {
	ID             snowflake.ID    `json:"id"`
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	Capacity       int             `json:"capacity"`
	OpensAt        string          `json:"opens_at"`
	ClosesAt       string          `json:"closes_at"`
	HasCost        bool            `json:"has_cost"`
	NormalRate     decimal.Decimal `json:"normal_rate"`
	WeekendRate    decimal.Decimal `json:"weekend_rate"`
	TenantsAllowed bool            `json:"tenants_allowed"`
	Status         AreaStatus      `json:"status"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (CommonArea) TableName() string { return "common_areas" }

// Bookable reports whether the area accepts new reservations.
func (a CommonArea) Bookable() bool {
	return a.IsActive && a.Status == AreaStatusAvailable
}

// ComputeCost is zero for free areas, the weekend rate on Saturday and
// Sunday, otherwise the normal rate.
func ComputeCost(area CommonArea, date time.Time) decimal.Decimal {
	if !area.HasCost {
		return decimal.Zero
	}
	if period.IsWeekend(date) {
		return area.WeekendRate
	}
	return area.NormalRate
}

type Reservation struct {
	ID              snowflake.ID  `json:"id"`
	AreaID          snowflake.ID  `json:"area_id"`
	ResidentID      snowflake.ID  `json:"resident_id"`
	Date            time.Time     `json:"date"`
	StartTime       string        `json:"start_time"`
	EndTime         string        `json:"end_time"`
	Status          Status        `json:"status"`
	BillingPeriodID *snowflake.ID `json:"billing_period_id,omitempty"`
	ChargeLineID    *snowflake.ID `json:"charge_line_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Reservation) TableName() string { return "reservations" }

// ClockTime is a time of day in minutes after midnight.
type ClockTime int

// ParseClock parses a zero-padded "HH:MM" time of day.
func ParseClock(value string) (ClockTime, error) {
	if len(value) != 5 || value[2] != ':' {
		return 0, ErrInvalidTime
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd ClockTime) bool {
	return aStart < bEnd && aEnd > bStart
}

func SlotLockKey(areaID snowflake.ID, date time.Time) string {
	return "reservation_slot:" + areaID.String() + ":" + date.Format(period.DateLayout)
}

func LockKey(id snowflake.ID) string {
	return "reservation:" + id.String()
}

func ChargeReference(id snowflake.ID) string {
	return "RESERVATION_" + id.String()
}

func ChargeIdempotencyKey(id snowflake.ID) string {
	return "reservation:" + id.String()
}

type CreateRequest struct {
	AreaID     snowflake.ID `json:"area_id"`
	ResidentID snowflake.ID `json:"resident_id"`
	Date       time.Time    `json:"date"`
	StartTime  string       `json:"start_time"`
	EndTime    string       `json:"end_time"`
}

type CreateAreaRequest struct {
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	Capacity       int             `json:"capacity"`
	OpensAt        string          `json:"opens_at"`
	ClosesAt       string          `json:"closes_at"`
	HasCost        bool            `json:"has_cost"`
	NormalRate     decimal.Decimal `json:"normal_rate"`
	WeekendRate    decimal.Decimal `json:"weekend_rate"`
	TenantsAllowed bool            `json:"tenants_allowed"`
}

type UpdateAreaRequest struct {
	Status      *AreaStatus      `json:"status"`
	IsActive    *bool            `json:"is_active"`
	NormalRate  *decimal.Decimal `json:"normal_rate"`
	WeekendRate *decimal.Decimal `json:"weekend_rate"`
}

type ListRequest struct {
	pagination.Pagination
	AreaID     snowflake.ID `form:"area_id"`
	ResidentID snowflake.ID `form:"resident_id"`
	Date       string       `form:"date"`
	Status     Status       `form:"status"`
}

type ListResponse struct {
	pagination.PageInfo
	Reservations []Reservation `json:"reservations"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Reservation, error)
	Confirm(ctx context.Context, id snowflake.ID) (*Reservation, error)
	Cancel(ctx context.Context, id snowflake.ID) (*Reservation, error)
	Complete(ctx context.Context, id snowflake.ID) (*Reservation, error)
	Get(ctx context.Context, id snowflake.ID) (*Reservation, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)

	CreateArea(ctx context.Context, req CreateAreaRequest) (*CommonArea, error)
	UpdateArea(ctx context.Context, id snowflake.ID, req UpdateAreaRequest) (*CommonArea, error)
	GetArea(ctx context.Context, id snowflake.ID) (*CommonArea, error)
	ListAreas(ctx context.Context) ([]CommonArea, error)
}

type ListFilter struct {
	AreaID     snowflake.ID
	ResidentID snowflake.ID
	Date       *time.Time
	Status     Status
	BeforeID   snowflake.ID
	Limit      int
}

// StatusChange is a conditional status update. It applies only while the
// stored status still equals From.
type StatusChange struct {
	ID              snowflake.ID
	From            Status
	To              Status
	BillingPeriodID *snowflake.ID
	ChargeLineID    *snowflake.ID
	UpdatedAt       time.Time
}

type Repository interface {
	InsertArea(ctx context.Context, db *gorm.DB, area *CommonArea) error
	UpdateArea(ctx context.Context, db *gorm.DB, area *CommonArea) error
	FindAreaByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CommonArea, error)
	ListAreas(ctx context.Context, db *gorm.DB) ([]CommonArea, error)

	// LockSlot serializes writers of one (area, date) slot for the rest of
	// the transaction.
	LockSlot(ctx context.Context, db *gorm.DB, areaID snowflake.ID, date time.Time) error
	ListHolding(ctx context.Context, db *gorm.DB, areaID snowflake.ID, date time.Time) ([]Reservation, error)
	Insert(ctx context.Context, db *gorm.DB, reservation *Reservation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Reservation, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Reservation, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, change StatusChange) (int64, error)
}
