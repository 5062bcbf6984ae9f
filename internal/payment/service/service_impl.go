package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condoledger/internal/authorization"
	directorydomain "github.com/smallbiznis/condoledger/internal/directory/domain"
	"github.com/smallbiznis/condoledger/internal/identity"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/condoledger/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	LedgerSvc  ledgerdomain.Service
	Directory  directorydomain.Directory
	Authorizer authorization.Service
}

type Service struct {
	log        *zap.Logger
	ledgerSvc  ledgerdomain.Service
	directory  directorydomain.Directory
	authorizer authorization.Service
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		log:        p.Log.Named("payment.service"),
		ledgerSvc:  p.LedgerSvc,
		directory:  p.Directory,
		authorizer: p.Authorizer,
	}
}

func (s *Service) Pay(ctx context.Context, req paymentdomain.PayRequest) (*ledgerdomain.Payment, error) {
	if err := s.authorizer.Authorize(ctx, authorization.ObjectPayment, authorization.ActionPaymentApply); err != nil {
		return nil, err
	}
	if req.BillingPeriodID == 0 {
		return nil, paymentdomain.ErrInvalidPeriod
	}
	if !req.Amount.IsPositive() {
		return nil, paymentdomain.ErrInvalidAmount
	}
	if !req.Method.Valid() {
		return nil, paymentdomain.ErrInvalidMethod
	}

	principal, _ := identity.FromContext(ctx)
	period, err := s.ledgerSvc.GetPeriod(ctx, req.BillingPeriodID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, principal, period); err != nil {
		return nil, err
	}

	payment, err := s.ledgerSvc.ApplyPayment(ctx, ledgerdomain.ApplyPaymentRequest{
		BillingPeriodID: period.ID,
		Amount:          req.Amount,
		Method:          req.Method,
		PaidOn:          req.PaidOn,
		RecordedBy:      principal.Subject,
	})
	if err != nil {
		return nil, mapLedgerErr(err)
	}

	s.log.Info("payment applied",
		zap.String("payment_id", payment.ID.String()),
		zap.String("billing_period_id", period.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("method", string(payment.Method)),
	)
	return payment, nil
}

func (s *Service) Void(ctx context.Context, paymentID snowflake.ID) error {
	if err := s.authorizer.Authorize(ctx, authorization.ObjectPayment, authorization.ActionPaymentRemove); err != nil {
		return err
	}
	if err := s.ledgerSvc.RemovePayment(ctx, paymentID); err != nil {
		return mapLedgerErr(err)
	}
	s.log.Info("payment voided", zap.String("payment_id", paymentID.String()))
	return nil
}

func (s *Service) Statement(ctx context.Context, periodID snowflake.ID) (*ledgerdomain.Statement, error) {
	if err := s.authorizer.Authorize(ctx, authorization.ObjectLedger, authorization.ActionView); err != nil {
		return nil, err
	}
	principal, _ := identity.FromContext(ctx)
	statement, err := s.ledgerSvc.GetStatement(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, principal, &statement.BillingPeriod); err != nil {
		return nil, err
	}
	return statement, nil
}

// ListPeriods lists billing periods. Residents are pinned to their current
// active residency.
func (s *Service) ListPeriods(ctx context.Context, req ledgerdomain.ListPeriodsRequest) (ledgerdomain.ListPeriodsResponse, error) {
	if err := s.authorizer.Authorize(ctx, authorization.ObjectLedger, authorization.ActionView); err != nil {
		return ledgerdomain.ListPeriodsResponse{}, err
	}
	principal, _ := identity.FromContext(ctx)
	if principal.IsResident() {
		residencyID := principal.ResidencyID
		if residencyID == 0 {
			residency, err := s.directory.ActiveResidencyForResident(ctx, principal.ResidentID)
			if err != nil {
				return ledgerdomain.ListPeriodsResponse{}, err
			}
			residencyID = residency.ID
		}
		req.ResidencyID = residencyID
	}
	return s.ledgerSvc.ListPeriods(ctx, req)
}

func (s *Service) checkOwner(ctx context.Context, principal identity.Principal, period *ledgerdomain.BillingPeriod) error {
	if !principal.IsResident() {
		return nil
	}
	residency, err := s.directory.GetResidency(ctx, period.ResidencyID)
	if err != nil {
		if errors.Is(err, directorydomain.ErrResidencyNotFound) {
			return paymentdomain.ErrNotOwner
		}
		return err
	}
	if residency.ResidentID != principal.ResidentID {
		return paymentdomain.ErrNotOwner
	}
	return nil
}

func mapLedgerErr(err error) error {
	switch {
	case errors.Is(err, ledgerdomain.ErrInvalidAmount):
		return paymentdomain.ErrInvalidAmount
	case errors.Is(err, ledgerdomain.ErrInvalidMethod):
		return paymentdomain.ErrInvalidMethod
	case errors.Is(err, ledgerdomain.ErrInvalidID):
		return paymentdomain.ErrInvalidPeriod
	default:
		return err
	}
}
