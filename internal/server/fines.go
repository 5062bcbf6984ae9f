package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	finedomain "github.com/smallbiznis/condoledger/internal/fine/domain"
	"github.com/smallbiznis/condoledger/pkg/db/pagination"
)

type createFineRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	IncidentDate string          `json:"incident_date"`
	ResidencyID  string          `json:"residency_id"`
	ResidentID   string          `json:"resident_id"`
}

func (s *Server) CreateFine(c *gin.Context) {
	var req createFineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	incidentDate, err := parseOptionalDate(req.IncidentDate, "invalid_incident_date")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if incidentDate == nil {
		AbortWithError(c, newValidationError("invalid_incident_date"))
		return
	}
	residencyID, err := optionalIDPointer(req.ResidencyID, "invalid_residency_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	residentID, err := optionalIDPointer(req.ResidentID, "invalid_resident_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.fineSvc.Create(c.Request.Context(), finedomain.CreateRequest{
		Amount:       req.Amount,
		Reason:       req.Reason,
		IncidentDate: *incidentDate,
		ResidencyID:  residencyID,
		ResidentID:   residentID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListFines(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ResidentID  string `form:"resident_id"`
		ResidencyID string `form:"residency_id"`
		Unconverted bool   `form:"unconverted"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	residentID, err := parseOptionalSnowflakeID(query.ResidentID, "invalid_resident_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	residencyID, err := parseOptionalSnowflakeID(query.ResidencyID, "invalid_residency_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.fineSvc.List(c.Request.Context(), finedomain.ListRequest{
		Pagination:  query.Pagination,
		ResidentID:  residentID,
		ResidencyID: residencyID,
		Unconverted: query.Unconverted,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFine(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.fineSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ConvertFine retries the conversion of a fine into a charge line.
func (s *Server) ConvertFine(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.fineSvc.Convert(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func optionalIDPointer(value, code string) (*snowflake.ID, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	id, err := parseSnowflakeID(value, code)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
