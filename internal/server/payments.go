package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/condoledger/internal/payment/domain"
)

type createPaymentRequest struct {
	BillingPeriodID string          `json:"billing_period_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"`
	PaidOn          string          `json:"paid_on"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	periodID, err := parseSnowflakeID(req.BillingPeriodID, "invalid_billing_period_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	paidOn, err := parseOptionalDate(req.PaidOn, "invalid_paid_on")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.Pay(c.Request.Context(), paymentdomain.PayRequest{
		BillingPeriodID: periodID,
		Amount:          req.Amount,
		Method:          ledgerdomain.PaymentMethod(req.Method),
		PaidOn:          paidOn,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) VoidPayment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.paymentSvc.Void(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
