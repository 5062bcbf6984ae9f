package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condoledger/internal/authorization"
	"github.com/smallbiznis/condoledger/internal/config"
	directorydomain "github.com/smallbiznis/condoledger/internal/directory/domain"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/condoledger/internal/observability/metrics"
	rentdomain "github.com/smallbiznis/condoledger/internal/rent/domain"
	"github.com/smallbiznis/condoledger/pkg/errs"
	"github.com/smallbiznis/condoledger/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const outcomeGenerated = "generated"

type Params struct {
	fx.In

	Log        *zap.Logger
	LedgerSvc  ledgerdomain.Service
	Directory  directorydomain.Directory
	Billing    *config.BillingConfigHolder
	Authorizer authorization.Service
	Metrics    *obsmetrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	ledgerSvc  ledgerdomain.Service
	directory  directorydomain.Directory
	billing    *config.BillingConfigHolder
	authorizer authorization.Service
	metrics    *obsmetrics.LedgerMetrics
}

func NewService(p Params) rentdomain.Service {
	return &Service{
		log:        p.Log.Named("rent.service"),
		ledgerSvc:  p.LedgerSvc,
		directory:  p.Directory,
		billing:    p.Billing,
		authorizer: p.Authorizer,
		metrics:    p.Metrics,
	}
}

func (s *Service) GenerateForPeriod(ctx context.Context, residencyID snowflake.ID, value string) (rentdomain.Outcome, error) {
	if err := s.authorizer.Authorize(ctx, authorization.ObjectRent, authorization.ActionRentGenerate); err != nil {
		return rentdomain.Outcome{}, err
	}
	if residencyID == 0 {
		return rentdomain.Outcome{}, rentdomain.ErrInvalidResidency
	}
	p, err := period.Parse(value)
	if err != nil {
		return rentdomain.Outcome{}, err
	}
	residency, err := s.directory.GetResidency(ctx, residencyID)
	if err != nil {
		return rentdomain.Outcome{}, err
	}
	return s.generate(ctx, *residency, p)
}

// generate applies the eligibility checks in order and adds the rent line.
// Unmet checks are skips, not errors.
func (s *Service) generate(ctx context.Context, residency directorydomain.Residency, p period.Period) (outcome rentdomain.Outcome, err error) {
	defer func() {
		switch {
		case err != nil:
			s.metrics.IncRentOutcome(string(errs.KindOf(err)))
		case outcome.Skipped:
			s.metrics.IncRentOutcome(string(outcome.Reason))
		default:
			s.metrics.IncRentOutcome(outcomeGenerated)
		}
	}()

	switch {
	case residency.ContractType != directorydomain.ContractRental:
		return skip(rentdomain.SkipNotRental), nil
	case !residency.IsActive:
		return skip(rentdomain.SkipInactive), nil
	case !residency.CoversPeriod(p):
		return skip(rentdomain.SkipOutsideContract), nil
	}

	key := p.String()
	exists, err := s.ledgerSvc.HasLineOfKind(ctx, residency.ID, key, ledgerdomain.CategoryKindRent)
	if err != nil {
		return rentdomain.Outcome{}, err
	}
	if exists {
		return skip(rentdomain.SkipAlreadyGenerated), nil
	}

	unit, err := s.directory.GetUnit(ctx, residency.UnitID)
	if err != nil {
		return rentdomain.Outcome{}, err
	}
	if !unit.RentalPrice.Valid || !unit.RentalPrice.Decimal.IsPositive() {
		return rentdomain.Outcome{}, fmt.Errorf("%w: unit %s", rentdomain.ErrMissingRentalPrice, unit.Code)
	}

	category, err := s.ledgerSvc.EnsureCategory(ctx, ledgerdomain.CategoryKindRent, ledgerdomain.CategoryNameRent)
	if err != nil {
		return rentdomain.Outcome{}, err
	}

	due := p.Day(s.billing.Get().Rent.DueDay)
	line, err := s.ledgerSvc.AddChargeLine(ctx, ledgerdomain.AddChargeLineRequest{
		ResidencyID:    residency.ID,
		Period:         key,
		CategoryID:     category.ID,
		Amount:         unit.RentalPrice.Decimal,
		Description:    fmt.Sprintf("Monthly rent %s, unit %s", key, unit.Code),
		Reference:      rentdomain.RentReference(residency.ID, key),
		DueDate:        &due,
		IdempotencyKey: rentdomain.RentIdempotencyKey(residency.ID, key),
	})
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrDuplicateChargeLine) {
			return skip(rentdomain.SkipAlreadyGenerated), nil
		}
		return rentdomain.Outcome{}, err
	}

	s.log.Info("rent charge generated",
		zap.String("residency_id", residency.ID.String()),
		zap.String("period", key),
		zap.String("amount", line.Amount.String()),
		zap.String("charge_line_id", line.ID.String()),
	)
	return rentdomain.Outcome{Line: line}, nil
}

// GenerateBatch runs generation for every active rental residency. Each
// residency is attempted independently; failures are collected, not fatal.
func (s *Service) GenerateBatch(ctx context.Context, value string) (rentdomain.BatchResult, error) {
	if err := s.authorizer.Authorize(ctx, authorization.ObjectRent, authorization.ActionRentGenerate); err != nil {
		return rentdomain.BatchResult{}, err
	}
	p, err := period.Parse(value)
	if err != nil {
		return rentdomain.BatchResult{}, err
	}
	residencies, err := s.directory.ListActiveRentalResidencies(ctx)
	if err != nil {
		return rentdomain.BatchResult{}, err
	}

	start := time.Now()
	result := rentdomain.BatchResult{Period: p.String(), Failures: []rentdomain.Failure{}}
	var mu sync.Mutex

	limit := s.billing.Get().Rent.BatchConcurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, residency := range residencies {
		residency := residency
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := s.generate(gctx, residency, p)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			switch {
			case err != nil:
				result.Failed++
				result.Failures = append(result.Failures, rentdomain.Failure{
					ResidencyID: residency.ID,
					Code:        errs.CodeOf(err),
					Message:     err.Error(),
				})
				s.log.Warn("rent generation failed",
					zap.String("residency_id", residency.ID.String()),
					zap.String("period", result.Period),
					zap.Error(err),
				)
			case outcome.Skipped:
				result.Skipped++
			default:
				result.Generated++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].ResidencyID < result.Failures[j].ResidencyID
	})
	s.log.Info("rent batch finished",
		zap.String("period", result.Period),
		zap.Int("processed", result.Processed),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func skip(reason rentdomain.SkipReason) rentdomain.Outcome {
	return rentdomain.Outcome{Skipped: true, Reason: reason}
}
