// internal/service/payout/scheduler_service.go
package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"boda-service/internal/domain/activity"
	domainpayout "boda-service/internal/domain/payout"
	"boda-service/internal/domain/rider"
	xerrors "boda-service/internal/pkg/errors"
	"boda-service/internal/service/ledger"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type RiderSource interface {
	ListEligibleForPayout(ctx context.Context) ([]rider.Rider, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *domainpayout.AutomatedPayment) error
	CreateWithTx(ctx context.Context, tx pgx.Tx, p *domainpayout.AutomatedPayment) error
	List(ctx context.Context, filters *domainpayout.ListFilters) ([]domainpayout.AutomatedPayment, int64, error)
	Stats(ctx context.Context) (*domainpayout.PaymentStats, error)
	PurgeOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type WithdrawalPurger interface {
	PurgeOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type ActivityAppender interface {
	Append(ctx context.Context, e *activity.Entry) error
}

type Ledger interface {
	Debit(ctx context.Context, riderID int64, prepare ledger.PrepareFunc) (*rider.Rider, error)
}

type Config struct {
	DailyHour     int
	DailyMinute   int
	CleanupDay    time.Weekday
	CleanupHour   int
	CleanupMinute int
	RetentionDays int
	PaymentDelay  time.Duration
	Location      *time.Location
}

// Scheduler drives the end-of-day payout sweep and the weekly record
// cleanup. Timers are armed for the exact next fire time rather than
// polling the clock.
type Scheduler struct {
	riders      RiderSource
	payments    PaymentStore
	withdrawals WithdrawalPurger
	activities  ActivityAppender
	ledger      Ledger
	gateway     Gateway
	guard       SweepGuard
	cfg         Config
	logger      *zap.Logger

	// now is swappable so tests can drive the calendar.
	now func() time.Time

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	nextDaily   time.Time
	nextCleanup time.Time
}

func NewScheduler(
	riders RiderSource,
	payments PaymentStore,
	withdrawals WithdrawalPurger,
	activities ActivityAppender,
	ledgerSvc Ledger,
	gateway Gateway,
	guard SweepGuard,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RetentionDays < 1 {
		cfg.RetentionDays = 30
	}
	return &Scheduler{
		riders:      riders,
		payments:    payments,
		withdrawals: withdrawals,
		activities:  activities,
		ledger:      ledgerSvc,
		gateway:     gateway,
		guard:       guard,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Start launches the scheduler loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx)

	s.logger.Info("payout scheduler started",
		zap.Int("daily_hour", s.cfg.DailyHour),
		zap.Int("daily_minute", s.cfg.DailyMinute),
		zap.String("cleanup_day", s.cfg.CleanupDay.String()),
	)
}

// Stop cancels the pending timers. An in-flight sweep is allowed to finish;
// Stop blocks until the loop has exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.nextDaily = time.Time{}
	s.nextCleanup = time.Time{}
	s.mu.Unlock()

	s.logger.Info("payout scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		now := s.now().In(s.cfg.Location)
		nextDaily := nextDailyRun(now, s.cfg.DailyHour, s.cfg.DailyMinute)
		nextCleanup := nextWeeklyRun(now, s.cfg.CleanupDay, s.cfg.CleanupHour, s.cfg.CleanupMinute)

		s.mu.Lock()
		s.nextDaily = nextDaily
		s.nextCleanup = nextCleanup
		s.mu.Unlock()

		next := nextDaily
		if nextCleanup.Before(next) {
			next = nextCleanup
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		fired := s.now().In(s.cfg.Location)
		if !nextDaily.After(fired) {
			if _, err := s.RunSweep(ctx, false, "scheduler"); err != nil {
				if errors.Is(err, xerrors.ErrSweepAlreadyRan) {
					s.logger.Info("daily sweep already ran, skipping")
				} else {
					s.logger.Error("daily sweep failed", zap.Error(err))
				}
			}
		}
		if !nextCleanup.After(fired) {
			s.runCleanup(ctx)
		}
	}
}

// nextDailyRun returns the next wall-clock occurrence of hour:minute
// strictly after now.
func nextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeeklyRun returns the next occurrence of weekday at hour:minute
// strictly after now.
func nextWeeklyRun(now time.Time, day time.Weekday, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	daysAhead := (int(day) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// RunSweep pays out the full balance of every eligible rider, sequentially.
// One rider's failure never aborts the batch. The day guard stops a second
// sweep on the same calendar day; force bypasses it for operator recovery.
func (s *Scheduler) RunSweep(ctx context.Context, force bool, trigger string) (*domainpayout.SweepSummary, error) {
	day := s.now().In(s.cfg.Location).Format("2006-01-02")
	summary := &domainpayout.SweepSummary{Date: day, TriggeredBy: trigger, TotalPaid: decimal.Zero}

	if !force {
		acquired, err := s.guard.Acquire(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire sweep guard: %w", err)
		}
		if !acquired {
			summary.Skipped = true
			return summary, xerrors.ErrSweepAlreadyRan
		}
	}

	riders, err := s.riders.ListEligibleForPayout(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible riders: %w", err)
	}

	s.logger.Info("payout sweep started",
		zap.String("date", day),
		zap.String("triggered_by", trigger),
		zap.Int("eligible_riders", len(riders)),
	)

	for i := range riders {
		r := &riders[i]
		paid, err := s.payRider(ctx, r)
		switch {
		case err != nil:
			summary.Processed++
			summary.Failed++
			s.logger.Error("payout failed",
				zap.Int64("rider_id", r.ID),
				zap.Error(err),
			)
		case paid.IsPositive():
			summary.Processed++
			summary.Successful++
			summary.TotalPaid = summary.TotalPaid.Add(paid)
		default:
			// Balance hit zero between selection and the lock; nothing
			// to pay and nothing to record.
		}

		// Throttle outbound gateway calls. Deliberately sequential so
		// per-rider activity ordering stays deterministic.
		if i < len(riders)-1 && s.cfg.PaymentDelay > 0 {
			time.Sleep(s.cfg.PaymentDelay)
		}
	}

	entry := activity.SweepSummary(day, trigger, summary.Processed, summary.Successful, summary.Failed, summary.TotalPaid)
	if err := s.activities.Append(ctx, entry); err != nil {
		s.logger.Error("failed to log sweep summary", zap.Error(err))
	}

	s.logger.Info("payout sweep finished",
		zap.String("date", day),
		zap.Int("processed", summary.Processed),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.String("total_paid", summary.TotalPaid.StringFixed(2)),
	)

	return summary, nil
}

// payRider pays out one rider's full balance. The gateway call happens
// inside the ledger's per-rider lock so nothing can mutate the balance
// between the read and the debit. Both the scheduled sweep and the manual
// trigger go through this one function.
func (s *Scheduler) payRider(ctx context.Context, r *rider.Rider) (decimal.Decimal, error) {
	paid := decimal.Zero

	_, err := s.ledger.Debit(ctx, r.ID, func(fresh *rider.Rider) (*ledger.DebitIntent, error) {
		if !fresh.CurrentBalance.IsPositive() {
			return nil, nil
		}

		amount := fresh.CurrentBalance
		reference := "PAY-" + ulid.Make().String()

		result, err := s.gateway.Pay(ctx, fresh.Phone, amount)
		if err != nil {
			failed := &domainpayout.AutomatedPayment{
				PaymentReference: reference,
				RiderID:          fresh.ID,
				Amount:           amount,
				Status:           domainpayout.PaymentStatusFailed,
				FailureReason:    nullString(err.Error()),
				ProcessedAt:      s.now(),
			}
			if createErr := s.payments.Create(ctx, failed); createErr != nil {
				s.logger.Error("failed to record failed payout", zap.Error(createErr), zap.Int64("rider_id", fresh.ID))
			}
			return nil, fmt.Errorf("%w: %s", xerrors.ErrGateway, err.Error())
		}

		payment := &domainpayout.AutomatedPayment{
			PaymentReference: reference,
			RiderID:          fresh.ID,
			Amount:           amount,
			Status:           domainpayout.PaymentStatusSuccess,
			TransactionID:    nullString(result.TransactionID),
			ProcessedAt:      s.now(),
		}

		paid = amount
		entry := activity.PaymentReceived(fresh.ID, reference, result.TransactionID, amount, decimal.Zero)
		return &ledger.DebitIntent{
			Amount:           amount,
			Entry:            entry,
			MarkEarningsPaid: true,
			Hook: func(tx pgx.Tx) error {
				return s.payments.CreateWithTx(ctx, tx, payment)
			},
		}, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return paid, nil
}

// runCleanup purges withdrawal and payment records past the retention
// window. The activity log is the audit trail of record and is never
// touched here.
func (s *Scheduler) runCleanup(ctx context.Context) {
	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)

	withdrawals, err := s.withdrawals.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to purge withdrawal requests", zap.Error(err))
	}
	payments, err := s.payments.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to purge automated payments", zap.Error(err))
	}

	s.logger.Info("weekly cleanup finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("withdrawals_purged", withdrawals),
		zap.Int64("payments_purged", payments),
	)
}

// Status reports the scheduler state and aggregate payout statistics.
func (s *Scheduler) Status(ctx context.Context) (*domainpayout.SchedulerStatus, error) {
	s.mu.Lock()
	status := &domainpayout.SchedulerStatus{IsRunning: s.running}
	if s.running {
		nd, nc := s.nextDaily, s.nextCleanup
		status.NextDailyPayout = &nd
		status.NextWeeklyCleanup = &nc
	}
	s.mu.Unlock()

	stats, err := s.payments.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment stats: %w", err)
	}
	status.Stats = stats
	return status, nil
}

// ListPayments retrieves automated payment records with filters.
func (s *Scheduler) ListPayments(ctx context.Context, filters *domainpayout.ListFilters) (*domainpayout.ListResponse, error) {
	if filters.Limit < 1 {
		filters.Limit = 20
	}
	if filters.Limit > 100 {
		filters.Limit = 100
	}

	payments, total, err := s.payments.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &domainpayout.ListResponse{Payments: payments, Total: total}, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
