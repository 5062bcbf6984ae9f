package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/condoledger/internal/clock"
	"github.com/smallbiznis/condoledger/internal/config"
	"github.com/smallbiznis/condoledger/internal/identity"
	obsmetrics "github.com/smallbiznis/condoledger/internal/observability/metrics"
	rentdomain "github.com/smallbiznis/condoledger/internal/rent/domain"
	"github.com/smallbiznis/condoledger/pkg/lock"
	"github.com/smallbiznis/condoledger/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobGenerateRent = "generate_rent"

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	RentSvc rentdomain.Service
	Billing *config.BillingConfigHolder
	Locker  lock.Locker
	Metrics *obsmetrics.SchedulerMetrics `optional:"true"`
	Config  Config                       `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	rentSvc rentdomain.Service
	billing *config.BillingConfigHolder
	locker  lock.Locker
	metrics *obsmetrics.SchedulerMetrics

	mu       sync.Mutex
	cron     *cron.Cron
	entry    cron.EntryID
	schedule string
	watching bool
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.RentSvc == nil || p.Billing == nil || p.Locker == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		rentSvc: p.RentSvc,
		billing: p.Billing,
		locker:  p.Locker,
		metrics: p.Metrics,
	}, nil
}

// Start registers the rent job on the configured cron schedule. A panicking
// run is recovered and a run still in progress makes the next tick skip.
// A reloaded billing config moves the job to its new schedule.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	logger := cronLogger{log: s.log.Sugar()}
	c := cron.New(
		cron.WithLocation(s.cfg.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	schedule := s.billing.Get().Rent.Schedule
	entry, err := c.AddFunc(schedule, s.runScheduled)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", JobGenerateRent, err)
	}

	c.Start()
	s.cron = c
	s.entry = entry
	s.schedule = schedule
	if !s.watching {
		s.billing.OnChange(func(cfg config.BillingConfig) { s.reschedule(cfg.Rent.Schedule) })
		s.watching = true
	}
	s.log.Info("scheduler started", zap.String("job", JobGenerateRent), zap.String("schedule", schedule))
	return nil
}

func (s *Scheduler) runScheduled() {
	if err := s.RunRentJob(context.Background()); err != nil {
		s.log.Error("rent job failed", zap.Error(err))
	}
}

// reschedule swaps the rent entry when the schedule changed. The old entry
// stays when the new one cannot be added.
func (s *Scheduler) reschedule(schedule string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil || schedule == s.schedule {
		return
	}

	entry, err := s.cron.AddFunc(schedule, s.runScheduled)
	if err != nil {
		s.log.Error("rent schedule not updated", zap.String("schedule", schedule), zap.Error(err))
		return
	}
	s.cron.Remove(s.entry)
	s.log.Info("rent schedule updated", zap.String("from", s.schedule), zap.String("to", schedule))
	s.entry = entry
	s.schedule = schedule
}

// Stop waits for running jobs to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunRentJob generates rent for the current month. Runs on other instances
// holding the job lock make this one a no-op.
func (s *Scheduler) RunRentJob(ctx context.Context) error {
	return s.runJob(ctx, JobGenerateRent, s.cfg.RentJobTimeout, s.generateRent)
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = identity.WithPrincipal(ctx, identity.System())
	ctx, run := s.startJobRun(ctx, name)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobTimeout(name)
		s.logger(ctx).Warn("job timed out", zap.String("job", name), zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) generateRent(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	target := period.Of(s.clock.Now()).String()

	unlock, _, err := lock.Acquire(ctx, s.locker, "scheduler:"+JobGenerateRent+":"+target, s.cfg.LockWait)
	if errors.Is(err, lock.ErrTimeout) {
		s.logger(ctx).Info("rent job already running elsewhere", zap.String("period", target))
		return nil
	}
	if err != nil {
		return err
	}
	defer unlock()

	result, err := s.rentSvc.GenerateBatch(ctx, target)
	if err != nil {
		return err
	}

	run.AddProcessed(result.Processed)
	s.metrics.AddBatchProcessed(JobGenerateRent, "residency", result.Processed)
	for _, failure := range result.Failures {
		run.IncError()
		s.logger(ctx).Warn("rent generation failed",
			zap.String("period", target),
			zap.String("residency_id", failure.ResidencyID.String()),
			zap.String("code", failure.Code),
			zap.String("message", failure.Message),
		)
	}
	s.logger(ctx).Info("rent batch finished",
		zap.String("period", target),
		zap.Int("processed", result.Processed),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return nil
}
