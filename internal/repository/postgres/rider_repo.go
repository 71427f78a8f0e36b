// internal/repository/postgres/rider_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boda-service/internal/domain/rider"
	xerrors "boda-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type RiderRepository struct {
	db *pgxpool.Pool
}

func NewRiderRepository(db *pgxpool.Pool) *RiderRepository {
	return &RiderRepository{db: db}
}

const riderColumns = `id, full_name, phone, status, is_active,
	current_balance, total_earnings, total_withdrawn, total_deliveries, last_withdrawal,
	created_at, updated_at`

func scanRider(row pgx.Row) (*rider.Rider, error) {
	var r rider.Rider
	err := row.Scan(
		&r.ID, &r.FullName, &r.Phone, &r.Status, &r.IsActive,
		&r.CurrentBalance, &r.TotalEarnings, &r.TotalWithdrawn, &r.TotalDeliveries, &r.LastWithdrawal,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rider: %w", err)
	}
	return &r, nil
}

// FindByID retrieves a rider balance record by ID.
func (r *RiderRepository) FindByID(ctx context.Context, id int64) (*rider.Rider, error) {
	query := fmt.Sprintf(`SELECT %s FROM riders WHERE id = $1`, riderColumns)
	return scanRider(r.db.QueryRow(ctx, query, id))
}

// ListEligibleForPayout returns approved, active riders with a positive
// balance, the selection the daily sweep operates on.
func (r *RiderRepository) ListEligibleForPayout(ctx context.Context) ([]rider.Rider, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM riders
		WHERE status = $1 AND is_active = true AND current_balance > 0
		ORDER BY id
	`, riderColumns)

	rows, err := r.db.Query(ctx, query, rider.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible riders: %w", err)
	}
	defer rows.Close()

	var riders []rider.Rider
	for rows.Next() {
		rd, err := scanRider(rows)
		if err != nil {
			return nil, err
		}
		riders = append(riders, *rd)
	}
	return riders, rows.Err()
}

// CreditEarningWithTx inserts the earning entry and applies the balance
// credit in one statement pair. A (rider_id, order_id) unique violation is
// reported as xerrors.ErrDuplicateEntry so the ledger can treat the second
// credit of an order as a no-op.
func (r *RiderRepository) CreditEarningWithTx(ctx context.Context, tx pgx.Tx, e *rider.Earning) (decimal.Decimal, error) {
	insert := `
		INSERT INTO rider_earnings (rider_id, order_id, amount, commission, rider_earning, delivery_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := tx.QueryRow(
		ctx, insert,
		e.RiderID, e.OrderID, e.Amount, e.Commission, e.RiderEarning, e.DeliveryDate, e.Status,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return decimal.Zero, xerrors.ErrDuplicateEntry
		}
		return decimal.Zero, fmt.Errorf("failed to insert earning: %w", err)
	}

	update := `
		UPDATE riders
		SET current_balance = current_balance + $1,
		    total_earnings = total_earnings + $1,
		    total_deliveries = total_deliveries + 1,
		    updated_at = $2
		WHERE id = $3
		RETURNING current_balance
	`

	var newBalance decimal.Decimal
	err = tx.QueryRow(ctx, update, e.RiderEarning, time.Now(), e.RiderID).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, xerrors.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit rider balance: %w", err)
	}

	return newBalance, nil
}

// FindEarningByOrder returns the earning already recorded for an order.
func (r *RiderRepository) FindEarningByOrder(ctx context.Context, riderID int64, orderID string) (*rider.Earning, error) {
	query := `
		SELECT id, rider_id, order_id, amount, commission, rider_earning, delivery_date, status, created_at
		FROM rider_earnings
		WHERE rider_id = $1 AND order_id = $2
	`

	var e rider.Earning
	err := r.db.QueryRow(ctx, query, riderID, orderID).Scan(
		&e.ID, &e.RiderID, &e.OrderID, &e.Amount, &e.Commission, &e.RiderEarning,
		&e.DeliveryDate, &e.Status, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find earning: %w", err)
	}
	return &e, nil
}

// ListEarnings returns the most recent earnings for a rider.
func (r *RiderRepository) ListEarnings(ctx context.Context, riderID int64, limit int) ([]rider.Earning, error) {
	if limit < 1 {
		limit = 50
	}
	query := `
		SELECT id, rider_id, order_id, amount, commission, rider_earning, delivery_date, status, created_at
		FROM rider_earnings
		WHERE rider_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, riderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	defer rows.Close()

	var earnings []rider.Earning
	for rows.Next() {
		var e rider.Earning
		if err := rows.Scan(
			&e.ID, &e.RiderID, &e.OrderID, &e.Amount, &e.Commission, &e.RiderEarning,
			&e.DeliveryDate, &e.Status, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan earning: %w", err)
		}
		earnings = append(earnings, e)
	}
	return earnings, rows.Err()
}

// DebitWithTx applies a balance debit guarded against overdraft. The WHERE
// clause is the overdraft check: zero rows means either an unknown rider or
// a balance smaller than the debit.
func (r *RiderRepository) DebitWithTx(ctx context.Context, tx pgx.Tx, riderID int64, amount decimal.Decimal) (*rider.Rider, error) {
	now := time.Now()
	query := fmt.Sprintf(`
		UPDATE riders
		SET current_balance = current_balance - $1,
		    total_withdrawn = total_withdrawn + $1,
		    last_withdrawal = $2,
		    updated_at = $2
		WHERE id = $3 AND current_balance >= $1
		RETURNING %s
	`, riderColumns)

	updated, err := scanRider(tx.QueryRow(ctx, query, amount, now, riderID))
	if errors.Is(err, xerrors.ErrNotFound) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM riders WHERE id = $1)`, riderID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check rider existence: %w", err)
		}
		if exists {
			return nil, xerrors.ErrInsufficientBalance
		}
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkEarningsPaidWithTx retags a rider's pending earnings once the sweep
// has zeroed the balance they belong to.
func (r *RiderRepository) MarkEarningsPaidWithTx(ctx context.Context, tx pgx.Tx, riderID int64) error {
	query := `UPDATE rider_earnings SET status = $1 WHERE rider_id = $2 AND status = $3`
	if _, err := tx.Exec(ctx, query, rider.EarningPaid, riderID, rider.EarningPending); err != nil {
		return fmt.Errorf("failed to mark earnings paid: %w", err)
	}
	return nil
}
