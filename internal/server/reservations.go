package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	reservationdomain "github.com/smallbiznis/condoledger/internal/reservation/domain"
	"github.com/smallbiznis/condoledger/pkg/db/pagination"
)

type createReservationRequest struct {
	AreaID     string `json:"area_id"`
	ResidentID string `json:"resident_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

func (s *Server) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	areaID, err := parseSnowflakeID(req.AreaID, "invalid_area_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	residentID, err := parseOptionalSnowflakeID(req.ResidentID, "invalid_resident_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	date, err := parseOptionalDate(req.Date, "invalid_date")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if date == nil {
		AbortWithError(c, reservationdomain.ErrInvalidDate)
		return
	}

	resp, err := s.reservationSvc.Create(c.Request.Context(), reservationdomain.CreateRequest{
		AreaID:     areaID,
		ResidentID: residentID,
		Date:       *date,
		StartTime:  strings.TrimSpace(req.StartTime),
		EndTime:    strings.TrimSpace(req.EndTime),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListReservations(c *gin.Context) {
	var query struct {
		pagination.Pagination
		AreaID     string `form:"area_id"`
		ResidentID string `form:"resident_id"`
		Date       string `form:"date"`
		Status     string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	areaID, err := parseOptionalSnowflakeID(query.AreaID, "invalid_area_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	residentID, err := parseOptionalSnowflakeID(query.ResidentID, "invalid_resident_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.reservationSvc.List(c.Request.Context(), reservationdomain.ListRequest{
		Pagination: query.Pagination,
		AreaID:     areaID,
		ResidentID: residentID,
		Date:       query.Date,
		Status:     reservationdomain.Status(strings.TrimSpace(query.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReservation(c *gin.Context) {
	s.reservationAction(c, s.reservationSvc.Get)
}

func (s *Server) ConfirmReservation(c *gin.Context) {
	s.reservationAction(c, s.reservationSvc.Confirm)
}

func (s *Server) CancelReservation(c *gin.Context) {
	s.reservationAction(c, s.reservationSvc.Cancel)
}

func (s *Server) CompleteReservation(c *gin.Context) {
	s.reservationAction(c, s.reservationSvc.Complete)
}

type reservationFunc func(ctx context.Context, id snowflake.ID) (*reservationdomain.Reservation, error)

func (s *Server) reservationAction(c *gin.Context, fn reservationFunc) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := fn(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAreas(c *gin.Context) {
	resp, err := s.reservationSvc.ListAreas(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateArea(c *gin.Context) {
	var req reservationdomain.CreateAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.reservationSvc.CreateArea(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetArea(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.reservationSvc.GetArea(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateArea(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req reservationdomain.UpdateAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.reservationSvc.UpdateArea(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
