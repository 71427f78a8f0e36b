// internal/service/withdrawal/withdrawal_service.go
package withdrawal

import (
	"context"
	"fmt"
	"time"

	"boda-service/internal/domain/activity"
	"boda-service/internal/domain/rider"
	domainwithdrawal "boda-service/internal/domain/withdrawal"
	xerrors "boda-service/internal/pkg/errors"
	"boda-service/internal/pkg/keymutex"
	"boda-service/internal/service/fees"
	"boda-service/internal/service/ledger"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Store interface {
	Create(ctx context.Context, req *domainwithdrawal.Request) error
	FindByID(ctx context.Context, id int64) (*domainwithdrawal.Request, error)
	SumPendingForRider(ctx context.Context, riderID int64) (decimal.Decimal, error)
	DecideWithTx(ctx context.Context, tx pgx.Tx, id int64, status domainwithdrawal.Status, adminNotes string, processedAt time.Time) error
	Decide(ctx context.Context, id int64, status domainwithdrawal.Status, adminNotes string, processedAt time.Time) error
	List(ctx context.Context, filters *domainwithdrawal.ListFilters) ([]domainwithdrawal.Request, int64, error)
	Stats(ctx context.Context) (*domainwithdrawal.Stats, error)
}

type RiderReader interface {
	FindByID(ctx context.Context, id int64) (*rider.Rider, error)
}

type Ledger interface {
	Debit(ctx context.Context, riderID int64, prepare ledger.PrepareFunc) (*rider.Rider, error)
}

type ActivityAppender interface {
	Append(ctx context.Context, e *activity.Entry) error
}

// Service manages rider-initiated early withdrawals: validated creation
// while pending-balance headroom exists, then exactly one admin decision.
type Service struct {
	store      Store
	riders     RiderReader
	ledger     Ledger
	activities ActivityAppender
	locks      *keymutex.KeyMutex
	logger     *zap.Logger
}

func NewService(
	store Store,
	riders RiderReader,
	ledgerSvc Ledger,
	activities ActivityAppender,
	locks *keymutex.KeyMutex,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:      store,
		riders:     riders,
		ledger:     ledgerSvc,
		activities: activities,
		locks:      locks,
		logger:     logger,
	}
}

// RequestWithdrawal validates and records a pending withdrawal. The balance
// is not touched until an admin approves. Validation runs under the rider
// lock so two racing requests cannot jointly exceed the balance.
func (s *Service) RequestWithdrawal(ctx context.Context, riderID int64, input *domainwithdrawal.CreateRequestInput) (*domainwithdrawal.CreateRequestResponse, error) {
	if !input.Amount.IsPositive() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "amount must be positive")
	}

	s.locks.Lock(riderID)
	defer s.locks.Unlock(riderID)

	r, err := s.riders.FindByID(ctx, riderID)
	if err != nil {
		return nil, err
	}

	if !r.CurrentBalance.IsPositive() {
		return nil, xerrors.Wrap(xerrors.ErrInsufficientBalance, "no balance available")
	}
	if input.Amount.GreaterThan(r.CurrentBalance) {
		return nil, xerrors.Wrap(xerrors.ErrInsufficientBalance, "amount exceeds current balance")
	}

	pending, err := s.store.SumPendingForRider(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if input.Amount.Add(pending).GreaterThan(r.CurrentBalance) {
		return nil, xerrors.Wrap(xerrors.ErrInsufficientBalance, "amount plus pending requests exceeds current balance")
	}

	fee := fees.CalculateFee(input.Amount)
	net := input.Amount.Sub(fee)
	if !net.IsPositive() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "amount is not enough to cover the withdrawal fee")
	}

	req := &domainwithdrawal.Request{
		RiderID:       riderID,
		Amount:        input.Amount,
		WithdrawalFee: fee,
		NetAmount:     net,
		Status:        domainwithdrawal.StatusPending,
		Notes:         input.Notes,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}

	entry := activity.WithdrawalRequested(riderID, req.ID, req.Amount, fee, net)
	if err := s.activities.Append(ctx, entry); err != nil {
		s.logger.Error("failed to log withdrawal request activity", zap.Error(err), zap.Int64("request_id", req.ID))
		return nil, fmt.Errorf("failed to record withdrawal activity: %w", err)
	}

	s.logger.Info("withdrawal requested",
		zap.Int64("rider_id", riderID),
		zap.Int64("request_id", req.ID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("net_amount", net.StringFixed(2)),
	)

	return &domainwithdrawal.CreateRequestResponse{Request: req, Fee: fee, NetAmount: net}, nil
}

// UpdateStatus applies the admin decision. Approval debits the gross
// requested amount atomically with the request update and a status_change
// activity; the fee stays with the platform. Rejection only flips the row.
func (s *Service) UpdateStatus(ctx context.Context, requestID int64, input *domainwithdrawal.UpdateStatusInput) (*domainwithdrawal.Request, error) {
	if input.Status != domainwithdrawal.StatusApproved && input.Status != domainwithdrawal.StatusRejected {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "status must be approved or rejected")
	}

	req, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domainwithdrawal.StatusPending {
		return nil, xerrors.ErrInvalidTransition
	}

	now := time.Now()

	if input.Status == domainwithdrawal.StatusRejected {
		if err := s.store.Decide(ctx, requestID, domainwithdrawal.StatusRejected, input.AdminNotes, now); err != nil {
			return nil, err
		}
		entry := activity.WithdrawalDecided(req.RiderID, requestID, string(domainwithdrawal.StatusPending), string(domainwithdrawal.StatusRejected), nil)
		if err := s.activities.Append(ctx, entry); err != nil {
			s.logger.Error("failed to log withdrawal rejection activity", zap.Error(err), zap.Int64("request_id", requestID))
		}
		s.logger.Info("withdrawal rejected", zap.Int64("request_id", requestID))
		return s.store.FindByID(ctx, requestID)
	}

	// Approval: the debit, the activity entry, and the status flip commit
	// in one ledger transaction. The pending-status guard in DecideWithTx
	// rolls the debit back if another admin got there first.
	debited := req.Amount
	_, err = s.ledger.Debit(ctx, req.RiderID, func(r *rider.Rider) (*ledger.DebitIntent, error) {
		entry := activity.WithdrawalDecided(req.RiderID, requestID, string(domainwithdrawal.StatusPending), string(domainwithdrawal.StatusApproved), &debited)
		return &ledger.DebitIntent{
			Amount: req.Amount,
			Entry:  entry,
			Hook: func(tx pgx.Tx) error {
				return s.store.DecideWithTx(ctx, tx, requestID, domainwithdrawal.StatusApproved, input.AdminNotes, now)
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal approved",
		zap.Int64("request_id", requestID),
		zap.Int64("rider_id", req.RiderID),
		zap.String("debited", req.Amount.StringFixed(2)),
		zap.String("paid_out", req.NetAmount.StringFixed(2)),
	)

	return s.store.FindByID(ctx, requestID)
}

// List retrieves withdrawal requests with filters plus aggregate stats.
func (s *Service) List(ctx context.Context, filters *domainwithdrawal.ListFilters) (*domainwithdrawal.ListResponse, error) {
	if filters.Limit < 1 {
		filters.Limit = 20
	}
	if filters.Limit > 100 {
		filters.Limit = 100
	}

	requests, total, err := s.store.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal stats: %w", err)
	}

	return &domainwithdrawal.ListResponse{Requests: requests, Total: total, Stats: stats}, nil
}
