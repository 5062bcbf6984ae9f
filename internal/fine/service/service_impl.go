package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/condoledger/internal/audit/domain"
	"github.com/smallbiznis/condoledger/internal/authorization"
	"github.com/smallbiznis/condoledger/internal/clock"
	"github.com/smallbiznis/condoledger/internal/config"
	directorydomain "github.com/smallbiznis/condoledger/internal/directory/domain"
	finedomain "github.com/smallbiznis/condoledger/internal/fine/domain"
	"github.com/smallbiznis/condoledger/internal/identity"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/condoledger/internal/observability/metrics"
	"github.com/smallbiznis/condoledger/pkg/db/pagination"
	"github.com/smallbiznis/condoledger/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       finedomain.Repository
	LedgerSvc  ledgerdomain.Service
	Directory  directorydomain.Directory
	Billing    *config.BillingConfigHolder
	Authorizer authorization.Service
	AuditSvc   auditdomain.Service       `optional:"true"`
	Metrics    *obsmetrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       finedomain.Repository
	ledgerSvc  ledgerdomain.Service
	directory  directorydomain.Directory
	billing    *config.BillingConfigHolder
	authorizer authorization.Service
	auditSvc   auditdomain.Service
	metrics    *obsmetrics.LedgerMetrics
}

func NewService(p Params) finedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("fine.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		ledgerSvc:  p.LedgerSvc,
		directory:  p.Directory,
		billing:    p.Billing,
		authorizer: p.Authorizer,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
	}
}

// Create stores the fine and then converts it. A conversion failure is
// recorded on the fine and returned in the result; creation still succeeds.
func (s *Service) Create(ctx context.Context, req finedomain.CreateRequest) (*finedomain.CreateResult, error) {
	if err := s.authorizer.Authorize(ctx, authorization.ObjectFine, authorization.ActionCreate); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, finedomain.ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, finedomain.ErrInvalidReason
	}
	if req.IncidentDate.IsZero() {
		return nil, finedomain.ErrInvalidIncidentDate
	}
	residencyID := normalizeID(req.ResidencyID)
	residentID := normalizeID(req.ResidentID)
	if residencyID == nil && residentID == nil {
		return nil, finedomain.ErrMissingTarget
	}

	principal, _ := identity.FromContext(ctx)
	now := s.clock.Now().UTC()
	fine := &finedomain.Fine{
		ID:           s.genID.Generate(),
		Amount:       req.Amount,
		Reason:       reason,
		IncidentDate: period.Date(req.IncidentDate),
		CreatedBy:    principal.Subject,
		ResidencyID:  residencyID,
		ResidentID:   residentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, fine); err != nil {
		return nil, err
	}
	s.audit(ctx, "fine.created", fine.ID, map[string]any{
		"amount": fine.Amount.String(),
		"reason": fine.Reason,
	})

	result := &finedomain.CreateResult{Fine: fine}
	line, err := s.convert(ctx, fine)
	if err != nil {
		result.ConversionError = err.Error()
		s.recordFailure(ctx, fine, err)
	} else {
		result.Line = line
	}

	stored, err := s.repo.FindByID(ctx, s.db, fine.ID)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		result.Fine = stored
	}
	return result, nil
}

func (s *Service) Convert(ctx context.Context, fineID snowflake.ID) (*ledgerdomain.ChargeLine, error) {
	if err := s.authorizer.Authorize(ctx, authorization.ObjectFine, authorization.ActionFineConvert); err != nil {
		return nil, err
	}
	if fineID == 0 {
		return nil, finedomain.ErrInvalidID
	}
	fine, err := s.repo.FindByID(ctx, s.db, fineID)
	if err != nil {
		return nil, err
	}
	if fine == nil {
		return nil, finedomain.ErrFineNotFound
	}

	line, err := s.convert(ctx, fine)
	if err != nil {
		s.recordFailure(ctx, fine, err)
		return nil, err
	}
	return line, nil
}

func (s *Service) convert(ctx context.Context, fine *finedomain.Fine) (line *ledgerdomain.ChargeLine, err error) {
	if fine.ChargeLineID != nil {
		line, err := s.ledgerSvc.GetLine(ctx, *fine.ChargeLineID)
		if !errors.Is(err, ledgerdomain.ErrLineNotFound) {
			return line, err
		}
		if err := s.unlinkRemovedLine(ctx, fine); err != nil {
			return nil, err
		}
	}
	defer func() { s.metrics.IncFineConversion(err) }()

	key := finedomain.IdempotencyKey(fine.ID)
	line, err = s.ledgerSvc.FindLineByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if line == nil {
		line, err = s.addLine(ctx, fine, key)
		if err != nil {
			return nil, err
		}
	}

	linked, err := s.repo.LinkLine(ctx, s.db, fine.ID, line.ID, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if linked == 0 {
		current, err := s.repo.FindByID(ctx, s.db, fine.ID)
		if err != nil {
			return nil, err
		}
		if current == nil || current.ChargeLineID == nil {
			return nil, finedomain.ErrFineNotFound
		}
		return s.ledgerSvc.GetLine(ctx, *current.ChargeLineID)
	}

	fine.ChargeLineID = &line.ID
	fine.ConversionError = nil
	s.log.Info("fine converted",
		zap.String("fine_id", fine.ID.String()),
		zap.String("charge_line_id", line.ID.String()),
		zap.String("billing_period_id", line.BillingPeriodID.String()),
	)
	s.audit(ctx, "fine.converted", fine.ID, map[string]any{
		"charge_line_id": line.ID.String(),
	})
	return line, nil
}

// unlinkRemovedLine drops a link to a charge line that no longer exists so
// the fine can be charged again.
func (s *Service) unlinkRemovedLine(ctx context.Context, fine *finedomain.Fine) error {
	stale := *fine.ChargeLineID
	if _, err := s.repo.UnlinkLine(ctx, s.db, fine.ID, stale, s.clock.Now().UTC()); err != nil {
		return err
	}
	s.log.Warn("fine charge line removed, reconverting",
		zap.String("fine_id", fine.ID.String()),
		zap.String("charge_line_id", stale.String()),
	)
	s.audit(ctx, "fine.unlinked", fine.ID, map[string]any{
		"charge_line_id": stale.String(),
	})
	fine.ChargeLineID = nil
	return nil
}

func (s *Service) addLine(ctx context.Context, fine *finedomain.Fine, key string) (*ledgerdomain.ChargeLine, error) {
	residencyID, err := s.resolveResidency(ctx, fine)
	if err != nil {
		return nil, err
	}
	category, err := s.ledgerSvc.EnsureCategory(ctx, ledgerdomain.CategoryKindFine, ledgerdomain.CategoryNameFine)
	if err != nil {
		return nil, err
	}

	p := period.Of(s.clock.Now())
	due := p.Day(s.billing.Get().Fine.DueDay)
	line, err := s.ledgerSvc.AddChargeLine(ctx, ledgerdomain.AddChargeLineRequest{
		ResidencyID:    residencyID,
		Period:         p.String(),
		CategoryID:     category.ID,
		Amount:         fine.Amount,
		Description:    "Fine: " + fine.Reason,
		Reference:      finedomain.Reference(fine.ID),
		DueDate:        &due,
		IdempotencyKey: key,
	})
	if errors.Is(err, ledgerdomain.ErrDuplicateChargeLine) {
		return s.ledgerSvc.FindLineByIdempotencyKey(ctx, key)
	}
	return line, err
}

func (s *Service) resolveResidency(ctx context.Context, fine *finedomain.Fine) (snowflake.ID, error) {
	if fine.ResidencyID != nil {
		residency, err := s.directory.GetResidency(ctx, *fine.ResidencyID)
		if errors.Is(err, directorydomain.ErrResidencyNotFound) {
			return 0, fmt.Errorf("%w: residency %s", finedomain.ErrMissingResidency, *fine.ResidencyID)
		}
		if err != nil {
			return 0, err
		}
		return residency.ID, nil
	}
	if fine.ResidentID != nil {
		residency, err := s.directory.ActiveResidencyForResident(ctx, *fine.ResidentID)
		if errors.Is(err, directorydomain.ErrNoActiveResidency) {
			return 0, fmt.Errorf("%w: resident %s", finedomain.ErrMissingResidency, *fine.ResidentID)
		}
		if err != nil {
			return 0, err
		}
		return residency.ID, nil
	}
	return 0, finedomain.ErrMissingResidency
}

func (s *Service) recordFailure(ctx context.Context, fine *finedomain.Fine, cause error) {
	s.log.Error("fine conversion failed",
		zap.String("fine_id", fine.ID.String()),
		zap.Error(cause),
	)
	if err := s.repo.SetConversionError(ctx, s.db, fine.ID, cause.Error(), s.clock.Now().UTC()); err != nil {
		s.log.Warn("failed to record fine conversion error", zap.String("fine_id", fine.ID.String()), zap.Error(err))
	}
	s.audit(ctx, "fine.conversion_failed", fine.ID, map[string]any{
		"error": cause.Error(),
	})
}

func (s *Service) Get(ctx context.Context, fineID snowflake.ID) (*finedomain.Fine, error) {
	if err := s.authorizer.Authorize(ctx, authorization.ObjectFine, authorization.ActionView); err != nil {
		return nil, err
	}
	if fineID == 0 {
		return nil, finedomain.ErrInvalidID
	}
	fine, err := s.repo.FindByID(ctx, s.db, fineID)
	if err != nil {
		return nil, err
	}
	if fine == nil {
		return nil, finedomain.ErrFineNotFound
	}

	principal, _ := identity.FromContext(ctx)
	if principal.IsResident() && !s.ownedBy(ctx, principal, fine) {
		return nil, finedomain.ErrFineNotFound
	}
	return fine, nil
}

func (s *Service) ownedBy(ctx context.Context, principal identity.Principal, fine *finedomain.Fine) bool {
	if fine.ResidentID != nil && *fine.ResidentID == principal.ResidentID {
		return true
	}
	if fine.ResidencyID == nil {
		return false
	}
	residency, err := s.directory.GetResidency(ctx, *fine.ResidencyID)
	return err == nil && residency.ResidentID == principal.ResidentID
}

// List returns fines newest first. Residents only see fines addressed to
// them or to their current residency.
func (s *Service) List(ctx context.Context, req finedomain.ListRequest) (finedomain.ListResponse, error) {
	if err := s.authorizer.Authorize(ctx, authorization.ObjectFine, authorization.ActionView); err != nil {
		return finedomain.ListResponse{}, err
	}

	filter := finedomain.ListFilter{
		ResidentID:  req.ResidentID,
		ResidencyID: req.ResidencyID,
		Unconverted: req.Unconverted,
		Limit:       req.Size() + 1,
	}
	principal, _ := identity.FromContext(ctx)
	if principal.IsResident() {
		filter.ResidentID = 0
		filter.ResidencyID = 0
		filter.OwnerResidentID = principal.ResidentID
		filter.OwnerResidencyID = principal.ResidencyID
		if filter.OwnerResidencyID == 0 {
			if residency, err := s.directory.ActiveResidencyForResident(ctx, principal.ResidentID); err == nil {
				filter.OwnerResidencyID = residency.ID
			}
		}
	}
	if strings.TrimSpace(req.PageToken) != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return finedomain.ListResponse{}, finedomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return finedomain.ListResponse{}, finedomain.ErrInvalidPageToken
		}
		filter.BeforeID = id
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return finedomain.ListResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, req.Size(), func(item finedomain.Fine) string {
		return item.ID.String()
	})
	return finedomain.ListResponse{PageInfo: pageInfo, Fines: items}, nil
}

func (s *Service) audit(ctx context.Context, action string, fineID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	id := fineID.String()
	if err := s.auditSvc.AuditLog(ctx, action, "fine", &id, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func normalizeID(value *snowflake.ID) *snowflake.ID {
	if value == nil || *value == 0 {
		return nil
	}
	id := *value
	return &id
}
