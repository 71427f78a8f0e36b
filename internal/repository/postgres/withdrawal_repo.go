// internal/repository/postgres/withdrawal_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"boda-service/internal/domain/withdrawal"
	xerrors "boda-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type WithdrawalRepository struct {
	db *pgxpool.Pool
}

func NewWithdrawalRepository(db *pgxpool.Pool) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create inserts a new pending withdrawal request.
func (r *WithdrawalRepository) Create(ctx context.Context, req *withdrawal.Request) error {
	query := `
		INSERT INTO withdrawal_requests (rider_id, amount, withdrawal_fee, net_amount, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, requested_at
	`

	err := r.db.QueryRow(
		ctx, query,
		req.RiderID, req.Amount, req.WithdrawalFee, req.NetAmount, req.Status, req.Notes,
	).Scan(&req.ID, &req.RequestedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return nil
}

// FindByID retrieves a withdrawal request by ID.
func (r *WithdrawalRepository) FindByID(ctx context.Context, id int64) (*withdrawal.Request, error) {
	query := `
		SELECT id, rider_id, amount, withdrawal_fee, net_amount, status, notes, admin_notes, requested_at, processed_at
		FROM withdrawal_requests
		WHERE id = $1
	`

	var req withdrawal.Request
	err := r.db.QueryRow(ctx, query, id).Scan(
		&req.ID, &req.RiderID, &req.Amount, &req.WithdrawalFee, &req.NetAmount,
		&req.Status, &req.Notes, &req.AdminNotes, &req.RequestedAt, &req.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find withdrawal request: %w", err)
	}
	return &req, nil
}

// SumPendingForRider sums the amounts of a rider's pending requests. Used to
// stop a rider from holding pending requests that jointly exceed the balance.
func (r *WithdrawalRepository) SumPendingForRider(ctx context.Context, riderID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM withdrawal_requests
		WHERE rider_id = $1 AND status = $2
	`

	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, query, riderID, withdrawal.StatusPending).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum pending withdrawals: %w", err)
	}
	return sum, nil
}

// DecideWithTx moves a pending request to its terminal status. The
// status='pending' guard makes a second decision on the same request fail
// with ErrInvalidTransition even under concurrent admins.
func (r *WithdrawalRepository) DecideWithTx(ctx context.Context, tx pgx.Tx, id int64, status withdrawal.Status, adminNotes string, processedAt time.Time) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, admin_notes = $2, processed_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := tx.Exec(ctx, query, status, adminNotes, processedAt, id, withdrawal.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrInvalidTransition
	}
	return nil
}

// Decide is the non-transactional variant used for rejections, which do not
// touch the balance.
func (r *WithdrawalRepository) Decide(ctx context.Context, id int64, status withdrawal.Status, adminNotes string, processedAt time.Time) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, admin_notes = $2, processed_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.db.Exec(ctx, query, status, adminNotes, processedAt, id, withdrawal.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrInvalidTransition
	}
	return nil
}

// List retrieves withdrawal requests with filters.
func (r *WithdrawalRepository) List(ctx context.Context, filters *withdrawal.ListFilters) ([]withdrawal.Request, int64, error) {
	var conditions []string
	var args []interface{}
	argIdx := 1

	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filters.Status)
		argIdx++
	}
	if filters.RiderID != nil {
		conditions = append(conditions, fmt.Sprintf("rider_id = $%d", argIdx))
		args = append(args, *filters.RiderID)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM withdrawal_requests %s`, where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawal requests: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, rider_id, amount, withdrawal_fee, net_amount, status, notes, admin_notes, requested_at, processed_at
		FROM withdrawal_requests %s
		ORDER BY requested_at DESC
		LIMIT $%d OFFSET $%d
	`, where, argIdx, argIdx+1)
	args = append(args, filters.Limit, filters.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var requests []withdrawal.Request
	for rows.Next() {
		var req withdrawal.Request
		if err := rows.Scan(
			&req.ID, &req.RiderID, &req.Amount, &req.WithdrawalFee, &req.NetAmount,
			&req.Status, &req.Notes, &req.AdminNotes, &req.RequestedAt, &req.ProcessedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}

// Stats aggregates withdrawal request counts and totals.
func (r *WithdrawalRepository) Stats(ctx context.Context) (*withdrawal.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'approved'), 0),
			COALESCE(SUM(withdrawal_fee) FILTER (WHERE status = 'approved'), 0)
		FROM withdrawal_requests
	`

	var stats withdrawal.Stats
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalRequests, &stats.Pending, &stats.Approved, &stats.Rejected,
		&stats.TotalRequested, &stats.TotalApproved, &stats.TotalFees,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal stats: %w", err)
	}
	return &stats, nil
}

// PurgeOlderThan deletes decided requests older than the retention cutoff.
// Pending requests are never purged.
func (r *WithdrawalRepository) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM withdrawal_requests WHERE requested_at < $1 AND status <> $2`

	result, err := r.db.Exec(ctx, query, before, withdrawal.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to purge withdrawal requests: %w", err)
	}
	return result.RowsAffected(), nil
}
