package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	"github.com/smallbiznis/condoledger/pkg/db/pagination"
)

func (s *Server) ListBillingPeriods(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ResidencyID string `form:"residency_id"`
		Period      string `form:"period"`
		Status      string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	residencyID, err := parseOptionalSnowflakeID(query.ResidencyID, "invalid_residency_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.ListPeriods(c.Request.Context(), ledgerdomain.ListPeriodsRequest{
		Pagination:  query.Pagination,
		ResidencyID: residencyID,
		Period:      strings.TrimSpace(query.Period),
		Status:      ledgerdomain.PeriodStatus(strings.TrimSpace(query.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetStatement(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.Statement(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type addChargeLineRequest struct {
	ResidencyID string          `json:"residency_id"`
	Period      string          `json:"period"`
	CategoryID  string          `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	DueDate     string          `json:"due_date"`
}

func (s *Server) AddChargeLine(c *gin.Context) {
	var req addChargeLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	residencyID, err := parseSnowflakeID(req.ResidencyID, "invalid_residency_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	categoryID, err := parseSnowflakeID(req.CategoryID, "invalid_category_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	dueDate, err := parseOptionalDate(req.DueDate, "invalid_due_date")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.AddChargeLine(c.Request.Context(), ledgerdomain.AddChargeLineRequest{
		ResidencyID: residencyID,
		Period:      strings.TrimSpace(req.Period),
		CategoryID:  categoryID,
		Amount:      req.Amount,
		Description: req.Description,
		Reference:   strings.TrimSpace(req.Reference),
		DueDate:     dueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) RemoveChargeLine(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.ledgerSvc.RemoveChargeLine(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListCategories(c *gin.Context) {
	resp, err := s.ledgerSvc.ListCategories(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateCategory(c *gin.Context) {
	var req ledgerdomain.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.ledgerSvc.CreateCategory(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateCategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req ledgerdomain.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.ledgerSvc.UpdateCategory(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
