package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	"github.com/smallbiznis/condoledger/pkg/db/pagination"
	"gorm.io/gorm"
)

// Fine is a disciplinary charge proposal. It is linked to at most one
// charge line once converted.
type Fine struct {
	ID              snowflake.ID    `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	IncidentDate    time.Time       `json:"incident_date"`
	CreatedBy       string          `json:"created_by"`
	ResidencyID     *snowflake.ID   `json:"residency_id,omitempty"`
	ResidentID      *snowflake.ID   `json:"resident_id,omitempty"`
	ChargeLineID    *snowflake.ID   `json:"charge_line_id,omitempty"`
	ConversionError *string         `json:"conversion_error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Fine) TableName() string { return "fines" }

func (f Fine) Converted() bool { return f.ChargeLineID != nil }

type CreateRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	IncidentDate time.Time       `json:"incident_date"`
	ResidencyID  *snowflake.ID   `json:"residency_id,omitempty"`
	ResidentID   *snowflake.ID   `json:"resident_id,omitempty"`
}

// CreateResult carries the stored fine and the outcome of the automatic
// conversion. ConversionError is set when the line could not be created.
type CreateResult struct {
	Fine            *Fine                    `json:"fine"`
	Line            *ledgerdomain.ChargeLine `json:"line,omitempty"`
	ConversionError string                   `json:"conversion_error,omitempty"`
}

type ListRequest struct {
	pagination.Pagination
	ResidentID  snowflake.ID `form:"resident_id"`
	ResidencyID snowflake.ID `form:"residency_id"`
	Unconverted bool         `form:"unconverted"`
}

type ListResponse struct {
	pagination.PageInfo
	Fines []Fine `json:"fines"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Convert(ctx context.Context, fineID snowflake.ID) (*ledgerdomain.ChargeLine, error)
	Get(ctx context.Context, fineID snowflake.ID) (*Fine, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

// ListFilter narrows fines. When OwnerResidentID is set, fines of that
// resident or of OwnerResidencyID match.
type ListFilter struct {
	ResidentID       snowflake.ID
	ResidencyID      snowflake.ID
	OwnerResidentID  snowflake.ID
	OwnerResidencyID snowflake.ID
	Unconverted      bool
	BeforeID         snowflake.ID
	Limit            int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, fine *Fine) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Fine, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Fine, error)
	// LinkLine sets the charge line only while the fine is unconverted.
	LinkLine(ctx context.Context, db *gorm.DB, id, lineID snowflake.ID, updatedAt time.Time) (int64, error)
	SetConversionError(ctx context.Context, db *gorm.DB, id snowflake.ID, message string, updatedAt time.Time) error
	// UnlinkLine clears the charge line only while it still points at lineID.
	UnlinkLine(ctx context.Context, db *gorm.DB, id, lineID snowflake.ID, updatedAt time.Time) (int64, error)
}

func Reference(id snowflake.ID) string {
	return "FINE_" + id.String()
}

func IdempotencyKey(id snowflake.ID) string {
	return "fine:" + id.String()
}
