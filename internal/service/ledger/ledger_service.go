// internal/service/ledger/ledger_service.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boda-service/internal/domain/activity"
	"boda-service/internal/domain/rider"
	xerrors "boda-service/internal/pkg/errors"
	"boda-service/internal/pkg/keymutex"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RiderStore is the slice of the rider repository the ledger needs.
type RiderStore interface {
	FindByID(ctx context.Context, id int64) (*rider.Rider, error)
	CreditEarningWithTx(ctx context.Context, tx pgx.Tx, e *rider.Earning) (decimal.Decimal, error)
	FindEarningByOrder(ctx context.Context, riderID int64, orderID string) (*rider.Earning, error)
	ListEarnings(ctx context.Context, riderID int64, limit int) ([]rider.Earning, error)
	DebitWithTx(ctx context.Context, tx pgx.Tx, riderID int64, amount decimal.Decimal) (*rider.Rider, error)
	MarkEarningsPaidWithTx(ctx context.Context, tx pgx.Tx, riderID int64) error
}

type ActivityStore interface {
	AppendWithTx(ctx context.Context, tx pgx.Tx, e *activity.Entry) error
	ListAllByRider(ctx context.Context, riderID int64) ([]activity.Entry, error)
}

type TxBeginner interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// Broadcaster pushes newly committed activity entries to live listeners.
type Broadcaster interface {
	Broadcast(v interface{})
}

// DebitIntent is what a caller wants done once the ledger holds the rider
// lock and fresh balance state: debit Amount, append Entry, and run Hook in
// the same transaction (e.g. flip a withdrawal request to approved, or
// insert a payment record).
type DebitIntent struct {
	Amount           decimal.Decimal
	Entry            *activity.Entry
	MarkEarningsPaid bool
	Hook             func(tx pgx.Tx) error
}

// PrepareFunc builds a DebitIntent from the rider's state as read under the
// per-rider lock. Returning (nil, nil) skips the debit as a no-op; gateway
// calls that must be serialized with the balance mutation belong inside it.
type PrepareFunc func(r *rider.Rider) (*DebitIntent, error)

// Service is the earnings ledger: the only writer of rider balance fields.
// Every mutation takes the rider's lock, then commits the balance change and
// its activity entry in one transaction.
type Service struct {
	riders      RiderStore
	activities  ActivityStore
	db          TxBeginner
	locks       *keymutex.KeyMutex
	rate        decimal.Decimal
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewService(
	riders RiderStore,
	activities ActivityStore,
	db TxBeginner,
	locks *keymutex.KeyMutex,
	commissionRate decimal.Decimal,
	logger *zap.Logger,
) *Service {
	return &Service{
		riders:     riders,
		activities: activities,
		db:         db,
		locks:      locks,
		rate:       commissionRate,
		logger:     logger,
	}
}

// SetBroadcaster attaches a live feed for committed activity entries.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Split divides a gross order amount into platform commission and rider
// earning. The commission is rounded to 2dp and the earning is the exact
// remainder, so the two always sum back to the gross amount.
func (s *Service) Split(gross decimal.Decimal) (commission, earning decimal.Decimal) {
	commission = gross.Mul(s.rate).Round(2)
	earning = gross.Sub(commission)
	return commission, earning
}

// CreditDelivery converts a completed delivery into a balance credit.
// Crediting is idempotent per (rider, order): a second call finds the
// existing earning and returns it without touching the balance.
func (s *Service) CreditDelivery(ctx context.Context, riderID int64, req *rider.CreditDeliveryRequest) (*rider.CreditResult, error) {
	if req.OrderID == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "order id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "amount must be positive")
	}

	s.locks.Lock(riderID)
	defer s.locks.Unlock(riderID)

	r, err := s.riders.FindByID(ctx, riderID)
	if err != nil {
		return nil, err
	}

	deliveryDate := req.DeliveryDate
	if deliveryDate.IsZero() {
		deliveryDate = time.Now()
	}

	commission, earning := s.Split(req.Amount)
	e := &rider.Earning{
		RiderID:      riderID,
		OrderID:      req.OrderID,
		Amount:       req.Amount,
		Commission:   commission,
		RiderEarning: earning,
		DeliveryDate: deliveryDate,
		Status:       rider.EarningPending,
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	newBalance, err := s.riders.CreditEarningWithTx(ctx, tx, e)
	if errors.Is(err, xerrors.ErrDuplicateEntry) {
		existing, findErr := s.riders.FindEarningByOrder(ctx, riderID, req.OrderID)
		if findErr != nil {
			return nil, findErr
		}
		s.logger.Warn("duplicate delivery credit ignored",
			zap.Int64("rider_id", riderID),
			zap.String("order_id", req.OrderID),
		)
		return &rider.CreditResult{Earning: existing, NewBalance: r.CurrentBalance, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	entry := activity.DeliveryCompleted(riderID, req.OrderID, req.Amount, commission, earning, newBalance)
	if err := s.activities.AppendWithTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delivery credit: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(entry)
	}

	s.logger.Info("delivery credited",
		zap.Int64("rider_id", riderID),
		zap.String("order_id", req.OrderID),
		zap.String("rider_earning", earning.StringFixed(2)),
		zap.String("new_balance", newBalance.StringFixed(2)),
	)

	return &rider.CreditResult{Earning: e, NewBalance: newBalance, Duplicate: false}, nil
}

// Debit runs a serialized read-prepare-write cycle against a rider balance.
// prepare is invoked with fresh rider state under the per-rider lock; the
// resulting intent's debit, activity entry, and hook commit in one
// transaction. The repository's guarded UPDATE makes overdrafts impossible.
func (s *Service) Debit(ctx context.Context, riderID int64, prepare PrepareFunc) (*rider.Rider, error) {
	s.locks.Lock(riderID)
	defer s.locks.Unlock(riderID)

	r, err := s.riders.FindByID(ctx, riderID)
	if err != nil {
		return nil, err
	}

	intent, err := prepare(r)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return r, nil
	}
	if !intent.Amount.IsPositive() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "debit amount must be positive")
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := s.riders.DebitWithTx(ctx, tx, riderID, intent.Amount)
	if err != nil {
		return nil, err
	}

	if intent.MarkEarningsPaid {
		if err := s.riders.MarkEarningsPaidWithTx(ctx, tx, riderID); err != nil {
			return nil, err
		}
	}

	if err := s.activities.AppendWithTx(ctx, tx, intent.Entry); err != nil {
		return nil, err
	}

	if intent.Hook != nil {
		if err := intent.Hook(tx); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit debit: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(intent.Entry)
	}

	s.logger.Info("balance debited",
		zap.Int64("rider_id", riderID),
		zap.String("amount", intent.Amount.StringFixed(2)),
		zap.String("new_balance", updated.CurrentBalance.StringFixed(2)),
	)

	return updated, nil
}

// Balance returns the rider record with recent earnings.
func (s *Service) Balance(ctx context.Context, riderID int64) (*rider.BalanceResponse, error) {
	r, err := s.riders.FindByID(ctx, riderID)
	if err != nil {
		return nil, err
	}
	earnings, err := s.riders.ListEarnings(ctx, riderID, 50)
	if err != nil {
		return nil, err
	}
	return &rider.BalanceResponse{Rider: r, Earnings: earnings}, nil
}

// Reconcile rebuilds a rider balance by replaying the activity log from
// empty state: delivery_completed entries credit their net earning,
// payment_received entries debit their amount, and status_change entries
// debit their amount when one is set (withdrawal approvals).
func (s *Service) Reconcile(ctx context.Context, riderID int64) (*rider.ReconcileResult, error) {
	r, err := s.riders.FindByID(ctx, riderID)
	if err != nil {
		return nil, err
	}

	entries, err := s.activities.ListAllByRider(ctx, riderID)
	if err != nil {
		return nil, err
	}

	credits := decimal.Zero
	debits := decimal.Zero
	replayed := 0
	for i := range entries {
		e := &entries[i]
		switch e.Type {
		case activity.TypeDeliveryCompleted:
			if e.NetEarning.Valid {
				credits = credits.Add(e.NetEarning.Decimal)
				replayed++
			}
		case activity.TypePaymentReceived:
			if e.Amount.Valid {
				debits = debits.Add(e.Amount.Decimal)
				replayed++
			}
		case activity.TypeStatusChange:
			if e.Amount.Valid {
				debits = debits.Add(e.Amount.Decimal)
				replayed++
			}
		}
	}

	computed := credits.Sub(debits)
	return &rider.ReconcileResult{
		RiderID:         riderID,
		StoredBalance:   r.CurrentBalance,
		ComputedBalance: computed,
		TotalCredits:    credits,
		TotalDebits:     debits,
		EntriesReplayed: replayed,
		Consistent:      computed.Equal(r.CurrentBalance),
	}, nil
}
