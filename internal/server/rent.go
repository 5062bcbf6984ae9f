package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type generateRentRequest struct {
	Period      string `json:"period"`
	ResidencyID string `json:"residency_id"`
}

// GenerateRent runs the monthly rent generation for one residency when
// residency_id is given and for every active rental residency otherwise.
func (s *Server) GenerateRent(c *gin.Context) {
	var req generateRentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	residencyID, err := parseOptionalSnowflakeID(req.ResidencyID, "invalid_residency_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	period := strings.TrimSpace(req.Period)

	if residencyID != 0 {
		outcome, err := s.rentSvc.GenerateForPeriod(c.Request.Context(), residencyID, period)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": outcome})
		return
	}

	result, err := s.rentSvc.GenerateBatch(c.Request.Context(), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
