package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/condoledger/internal/audit/domain"
	"github.com/smallbiznis/condoledger/internal/clock"
	"github.com/smallbiznis/condoledger/internal/config"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/condoledger/internal/observability/metrics"
	pkgdb "github.com/smallbiznis/condoledger/pkg/db"
	"github.com/smallbiznis/condoledger/pkg/db/pagination"
	"github.com/smallbiznis/condoledger/pkg/lock"
	"github.com/smallbiznis/condoledger/pkg/period"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opAddChargeLine    = "add_charge_line"
	opRemoveChargeLine = "remove_charge_line"
	opApplyPayment     = "apply_payment"
	opRemovePayment    = "remove_payment"
)

var tracer = otel.Tracer("condoledger/ledger")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     ledgerdomain.Repository
	Locker   lock.Locker
	Billing  *config.BillingConfigHolder
	AuditSvc auditdomain.Service       `optional:"true"`
	Metrics  *obsmetrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     ledgerdomain.Repository
	locker   lock.Locker
	billing  *config.BillingConfigHolder
	auditSvc auditdomain.Service
	metrics  *obsmetrics.LedgerMetrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ledger.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		locker:   p.Locker,
		billing:  p.Billing,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) AddChargeLine(ctx context.Context, req ledgerdomain.AddChargeLineRequest) (line *ledgerdomain.ChargeLine, err error) {
	ctx, span := tracer.Start(ctx, "ledger.AddChargeLine", trace.WithAttributes(
		attribute.String("residency_id", req.ResidencyID.String()),
		attribute.String("period", req.Period),
	))
	start := time.Now()
	defer func() { s.finish(span, opAddChargeLine, start, err) }()

	if req.ResidencyID == 0 {
		return nil, ledgerdomain.ErrInvalidResidency
	}
	p, err := period.Parse(req.Period)
	if err != nil {
		return nil, err
	}
	if req.CategoryID == 0 {
		return nil, ledgerdomain.ErrInvalidCategory
	}
	if !req.Amount.IsPositive() {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, ledgerdomain.ErrInvalidDescription
	}
	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)

	category, err := s.repo.FindCategoryByID(ctx, s.db, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ledgerdomain.ErrCategoryNotFound
	}
	if !category.IsActive {
		return nil, ledgerdomain.ErrCategoryInactive
	}

	if idempotencyKey != "" {
		existing, err := s.repo.FindLineByIdempotencyKey(ctx, s.db, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ledgerdomain.ErrDuplicateChargeLine
		}
	}

	periodKey := p.String()
	unlock, err := s.acquire(ctx, ledgerdomain.LockKey(req.ResidencyID, periodKey))
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock.Now().UTC()
	line = &ledgerdomain.ChargeLine{
		ID:          s.genID.Generate(),
		CategoryID:  category.ID,
		Amount:      req.Amount,
		Description: description,
		Reference:   strings.TrimSpace(req.Reference),
		CreatedAt:   now,
	}
	if req.DueDate != nil {
		due := period.Date(*req.DueDate)
		line.DueDate = &due
	}
	if idempotencyKey != "" {
		line.IdempotencyKey = &idempotencyKey
	}

	err = pkgdb.Transaction(ctx, s.db, pkgdb.DefaultTxAttempts, func(tx *gorm.DB) error {
		if err := s.repo.InsertPeriodIfAbsent(ctx, tx, &ledgerdomain.BillingPeriod{
			ID:          s.genID.Generate(),
			ResidencyID: req.ResidencyID,
			Period:      periodKey,
			TotalAmount: decimal.Zero,
			Status:      ledgerdomain.PeriodStatusPending,
			IssuedOn:    period.Date(now),
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
		billingPeriod, err := s.repo.FindPeriodByKey(ctx, tx, req.ResidencyID, periodKey, true)
		if err != nil {
			return err
		}
		if billingPeriod == nil {
			return fmt.Errorf("billing period %s/%s missing after upsert", req.ResidencyID, periodKey)
		}

		line.BillingPeriodID = billingPeriod.ID
		if err := s.repo.InsertLine(ctx, tx, line); err != nil {
			if idempotencyKey != "" && pkgdb.IsDuplicateKeyErr(err) {
				return ledgerdomain.ErrDuplicateChargeLine
			}
			return err
		}
		return s.recompute(ctx, tx, billingPeriod.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "ledger.charge_line.added", "charge_line", line.ID, map[string]any{
		"billing_period_id": line.BillingPeriodID.String(),
		"residency_id":      req.ResidencyID.String(),
		"period":            periodKey,
		"category_id":       line.CategoryID.String(),
		"amount":            line.Amount.String(),
		"reference":         line.Reference,
	})
	return line, nil
}

func (s *Service) RemoveChargeLine(ctx context.Context, lineID snowflake.ID) (err error) {
	ctx, span := tracer.Start(ctx, "ledger.RemoveChargeLine", trace.WithAttributes(
		attribute.String("charge_line_id", lineID.String()),
	))
	start := time.Now()
	defer func() { s.finish(span, opRemoveChargeLine, start, err) }()

	if lineID == 0 {
		return ledgerdomain.ErrInvalidID
	}
	line, err := s.repo.FindLineByID(ctx, s.db, lineID)
	if err != nil {
		return err
	}
	if line == nil {
		return ledgerdomain.ErrLineNotFound
	}
	owner, err := s.repo.FindPeriodByID(ctx, s.db, line.BillingPeriodID, false)
	if err != nil {
		return err
	}
	if owner == nil {
		return ledgerdomain.ErrPeriodNotFound
	}

	unlock, err := s.acquire(ctx, ledgerdomain.LockKey(owner.ResidencyID, owner.Period))
	if err != nil {
		return err
	}
	defer unlock()

	now := s.clock.Now().UTC()
	err = pkgdb.Transaction(ctx, s.db, pkgdb.DefaultTxAttempts, func(tx *gorm.DB) error {
		if _, err := s.repo.FindPeriodByID(ctx, tx, owner.ID, true); err != nil {
			return err
		}
		deleted, err := s.repo.DeleteLine(ctx, tx, lineID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ledgerdomain.ErrLineNotFound
		}
		return s.recompute(ctx, tx, owner.ID, now)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, "ledger.charge_line.removed", "charge_line", lineID, map[string]any{
		"billing_period_id": owner.ID.String(),
		"amount":            line.Amount.String(),
		"reference":         line.Reference,
	})
	return nil
}

func (s *Service) ApplyPayment(ctx context.Context, req ledgerdomain.ApplyPaymentRequest) (payment *ledgerdomain.Payment, err error) {
	ctx, span := tracer.Start(ctx, "ledger.ApplyPayment", trace.WithAttributes(
		attribute.String("billing_period_id", req.BillingPeriodID.String()),
	))
	start := time.Now()
	defer func() { s.finish(span, opApplyPayment, start, err) }()

	if req.BillingPeriodID == 0 {
		return nil, ledgerdomain.ErrInvalidID
	}
	if !req.Amount.IsPositive() {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	if !req.Method.Valid() {
		return nil, ledgerdomain.ErrInvalidMethod
	}

	owner, err := s.repo.FindPeriodByID(ctx, s.db, req.BillingPeriodID, false)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ledgerdomain.ErrPeriodNotFound
	}

	unlock, err := s.acquire(ctx, ledgerdomain.LockKey(owner.ResidencyID, owner.Period))
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock.Now().UTC()
	paidOn := period.Date(now)
	if req.PaidOn != nil {
		paidOn = period.Date(*req.PaidOn)
	}
	payment = &ledgerdomain.Payment{
		ID:              s.genID.Generate(),
		BillingPeriodID: owner.ID,
		Amount:          req.Amount,
		Method:          req.Method,
		PaidOn:          paidOn,
		RecordedBy:      strings.TrimSpace(req.RecordedBy),
		CreatedAt:       now,
	}

	err = pkgdb.Transaction(ctx, s.db, pkgdb.DefaultTxAttempts, func(tx *gorm.DB) error {
		if _, err := s.repo.FindPeriodByID(ctx, tx, owner.ID, true); err != nil {
			return err
		}
		if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}
		return s.recompute(ctx, tx, owner.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "ledger.payment.applied", "payment", payment.ID, map[string]any{
		"billing_period_id": owner.ID.String(),
		"amount":            payment.Amount.String(),
		"method":            string(payment.Method),
	})
	return payment, nil
}

func (s *Service) RemovePayment(ctx context.Context, paymentID snowflake.ID) (err error) {
	ctx, span := tracer.Start(ctx, "ledger.RemovePayment", trace.WithAttributes(
		attribute.String("payment_id", paymentID.String()),
	))
	start := time.Now()
	defer func() { s.finish(span, opRemovePayment, start, err) }()

	if paymentID == 0 {
		return ledgerdomain.ErrInvalidID
	}
	payment, err := s.repo.FindPaymentByID(ctx, s.db, paymentID)
	if err != nil {
		return err
	}
	if payment == nil {
		return ledgerdomain.ErrPaymentNotFound
	}
	owner, err := s.repo.FindPeriodByID(ctx, s.db, payment.BillingPeriodID, false)
	if err != nil {
		return err
	}
	if owner == nil {
		return ledgerdomain.ErrPeriodNotFound
	}

	unlock, err := s.acquire(ctx, ledgerdomain.LockKey(owner.ResidencyID, owner.Period))
	if err != nil {
		return err
	}
	defer unlock()

	now := s.clock.Now().UTC()
	err = pkgdb.Transaction(ctx, s.db, pkgdb.DefaultTxAttempts, func(tx *gorm.DB) error {
		if _, err := s.repo.FindPeriodByID(ctx, tx, owner.ID, true); err != nil {
			return err
		}
		deleted, err := s.repo.DeletePayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ledgerdomain.ErrPaymentNotFound
		}
		return s.recompute(ctx, tx, owner.ID, now)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, "ledger.payment.removed", "payment", paymentID, map[string]any{
		"billing_period_id": owner.ID.String(),
		"amount":            payment.Amount.String(),
	})
	return nil
}

// recompute derives total and status of one period from its own children.
// It must run inside the mutating transaction while the period row is locked.
func (s *Service) recompute(ctx context.Context, tx *gorm.DB, periodID snowflake.ID, now time.Time) error {
	lines, err := s.repo.ListLines(ctx, tx, periodID)
	if err != nil {
		return err
	}
	payments, err := s.repo.ListPayments(ctx, tx, periodID)
	if err != nil {
		return err
	}
	total := sumLines(lines)
	paid := sumPayments(payments)
	return s.repo.UpdatePeriodTotals(ctx, tx, periodID, total, ledgerdomain.DeriveStatus(total, paid), now)
}

func (s *Service) GetPeriod(ctx context.Context, id snowflake.ID) (*ledgerdomain.BillingPeriod, error) {
	if id == 0 {
		return nil, ledgerdomain.ErrInvalidID
	}
	item, err := s.repo.FindPeriodByID(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ledgerdomain.ErrPeriodNotFound
	}
	return item, nil
}

func (s *Service) FindPeriod(ctx context.Context, residencyID snowflake.ID, value string) (*ledgerdomain.BillingPeriod, error) {
	if residencyID == 0 {
		return nil, ledgerdomain.ErrInvalidResidency
	}
	p, err := period.Parse(value)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindPeriodByKey(ctx, s.db, residencyID, p.String(), false)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ledgerdomain.ErrPeriodNotFound
	}
	return item, nil
}

func (s *Service) ListPeriods(ctx context.Context, req ledgerdomain.ListPeriodsRequest) (ledgerdomain.ListPeriodsResponse, error) {
	filter := ledgerdomain.PeriodFilter{
		ResidencyID: req.ResidencyID,
		Status:      req.Status,
		Limit:       req.Size() + 1,
	}
	if req.Period != "" {
		p, err := period.Parse(req.Period)
		if err != nil {
			return ledgerdomain.ListPeriodsResponse{}, err
		}
		filter.Period = p.String()
	}
	switch req.Status {
	case "", ledgerdomain.PeriodStatusPending, ledgerdomain.PeriodStatusPartial, ledgerdomain.PeriodStatusPaid:
	default:
		return ledgerdomain.ListPeriodsResponse{}, ledgerdomain.ErrInvalidStatus
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return ledgerdomain.ListPeriodsResponse{}, ledgerdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return ledgerdomain.ListPeriodsResponse{}, ledgerdomain.ErrInvalidPageToken
		}
		filter.BeforeID = id
	}

	items, err := s.repo.ListPeriods(ctx, s.db, filter)
	if err != nil {
		return ledgerdomain.ListPeriodsResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, req.Size(), func(item ledgerdomain.BillingPeriod) string {
		return item.ID.String()
	})
	return ledgerdomain.ListPeriodsResponse{PageInfo: pageInfo, Periods: items}, nil
}

func (s *Service) GetStatement(ctx context.Context, periodID snowflake.ID) (*ledgerdomain.Statement, error) {
	item, err := s.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, s.db, item.ID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, s.db, item.ID)
	if err != nil {
		return nil, err
	}
	paid := sumPayments(payments)
	return &ledgerdomain.Statement{
		BillingPeriod: *item,
		Lines:         lines,
		Payments:      payments,
		PaidAmount:    paid,
		Balance:       item.TotalAmount.Sub(paid),
	}, nil
}

func (s *Service) ListLines(ctx context.Context, periodID snowflake.ID) ([]ledgerdomain.ChargeLine, error) {
	if _, err := s.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	return s.repo.ListLines(ctx, s.db, periodID)
}

func (s *Service) ListPayments(ctx context.Context, periodID snowflake.ID) ([]ledgerdomain.Payment, error) {
	if _, err := s.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, s.db, periodID)
}

func (s *Service) GetLine(ctx context.Context, id snowflake.ID) (*ledgerdomain.ChargeLine, error) {
	if id == 0 {
		return nil, ledgerdomain.ErrInvalidID
	}
	line, err := s.repo.FindLineByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, ledgerdomain.ErrLineNotFound
	}
	return line, nil
}

func (s *Service) GetPayment(ctx context.Context, id snowflake.ID) (*ledgerdomain.Payment, error) {
	if id == 0 {
		return nil, ledgerdomain.ErrInvalidID
	}
	payment, err := s.repo.FindPaymentByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ledgerdomain.ErrPaymentNotFound
	}
	return payment, nil
}

// FindLineByIdempotencyKey returns nil when no line carries key.
func (s *Service) FindLineByIdempotencyKey(ctx context.Context, key string) (*ledgerdomain.ChargeLine, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	return s.repo.FindLineByIdempotencyKey(ctx, s.db, key)
}

func (s *Service) HasLineOfKind(ctx context.Context, residencyID snowflake.ID, value string, kind ledgerdomain.CategoryKind) (bool, error) {
	if !kind.Valid() {
		return false, ledgerdomain.ErrInvalidCategoryKind
	}
	p, err := period.Parse(value)
	if err != nil {
		return false, err
	}
	count, err := s.repo.CountLinesOfKind(ctx, s.db, residencyID, p.String(), kind)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// EnsureCategory returns the category called name, creating it as a system
// category of kind when absent. A category of that name with another kind is
// an error rather than a silent retag.
func (s *Service) EnsureCategory(ctx context.Context, kind ledgerdomain.CategoryKind, name string) (*ledgerdomain.ChargeCategory, error) {
	if !kind.Valid() {
		return nil, ledgerdomain.ErrInvalidCategoryKind
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ledgerdomain.ErrInvalidCategoryName
	}

	existing, err := s.repo.FindCategoryByName(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return ensuredCategory(existing, kind)
	}

	now := s.clock.Now().UTC()
	if err := s.repo.InsertCategoryIfAbsent(ctx, s.db, &ledgerdomain.ChargeCategory{
		ID:        s.genID.Generate(),
		Name:      name,
		Kind:      kind,
		IsActive:  true,
		IsSystem:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, err
	}
	category, err := s.repo.FindCategoryByName(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ledgerdomain.ErrCategoryNotFound
	}
	return ensuredCategory(category, kind)
}

func ensuredCategory(category *ledgerdomain.ChargeCategory, kind ledgerdomain.CategoryKind) (*ledgerdomain.ChargeCategory, error) {
	if category.Kind != kind {
		return nil, fmt.Errorf("%w: %q is %s, want %s", ledgerdomain.ErrCategoryKindClash, category.Name, category.Kind, kind)
	}
	if !category.IsActive {
		return nil, fmt.Errorf("%w: %q", ledgerdomain.ErrCategoryInactive, category.Name)
	}
	return category, nil
}

func (s *Service) CreateCategory(ctx context.Context, req ledgerdomain.CreateCategoryRequest) (*ledgerdomain.ChargeCategory, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ledgerdomain.ErrInvalidCategoryName
	}
	if !req.Kind.Valid() {
		return nil, ledgerdomain.ErrInvalidCategoryKind
	}
	if ledgerdomain.IsReservedCategoryName(name) {
		return nil, ledgerdomain.ErrCategoryNameReserved
	}

	now := s.clock.Now().UTC()
	category := &ledgerdomain.ChargeCategory{
		ID:        s.genID.Generate(),
		Name:      name,
		Kind:      req.Kind,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertCategory(ctx, s.db, category); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, ledgerdomain.ErrCategoryNameTaken
		}
		return nil, err
	}
	s.audit(ctx, "ledger.category.created", "charge_category", category.ID, map[string]any{
		"name": category.Name,
		"kind": string(category.Kind),
	})
	return category, nil
}

// UpdateCategory renames or toggles a category. System categories and
// categories already referenced by a charge line are frozen.
func (s *Service) UpdateCategory(ctx context.Context, id snowflake.ID, req ledgerdomain.UpdateCategoryRequest) (*ledgerdomain.ChargeCategory, error) {
	if id == 0 {
		return nil, ledgerdomain.ErrInvalidID
	}
	category, err := s.repo.FindCategoryByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ledgerdomain.ErrCategoryNotFound
	}
	if category.IsSystem {
		return nil, ledgerdomain.ErrSystemCategory
	}

	updated := *category
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ledgerdomain.ErrInvalidCategoryName
		}
		if ledgerdomain.IsReservedCategoryName(name) {
			return nil, ledgerdomain.ErrCategoryNameReserved
		}
		updated.Name = name
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	if updated.Name == category.Name && updated.IsActive == category.IsActive {
		return category, nil
	}

	inUse, err := s.repo.CategoryInUse(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, ledgerdomain.ErrCategoryInUse
	}

	updated.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.UpdateCategory(ctx, s.db, &updated); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, ledgerdomain.ErrCategoryNameTaken
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]ledgerdomain.ChargeCategory, error) {
	return s.repo.ListCategories(ctx, s.db)
}

func (s *Service) acquire(ctx context.Context, key string) (lock.Unlock, error) {
	timeout := config.DefaultBillingConfig().Locks.Timeout
	if s.billing != nil {
		timeout = s.billing.Get().Locks.Timeout
	}
	unlock, waited, err := lock.Acquire(ctx, s.locker, key, timeout)
	s.metrics.ObserveLockWait(obsmetrics.LockResourceBillingPeriod, waited)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			s.log.Warn("billing period lock timed out", zap.String("key", key), zap.Duration("waited", waited))
		}
		return nil, err
	}
	return unlock, nil
}

func (s *Service) finish(span trace.Span, op string, start time.Time, err error) {
	s.metrics.ObserveMutation(op, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) audit(ctx context.Context, action, targetType string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	id := targetID.String()
	if err := s.auditSvc.AuditLog(ctx, action, targetType, &id, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func sumLines(lines []ledgerdomain.ChargeLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}
	return total
}

func sumPayments(payments []ledgerdomain.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, payment := range payments {
		total = total.Add(payment.Amount)
	}
	return total
}
