// internal/repository/postgres/automated_payment_repo.go
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"boda-service/internal/domain/payout"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AutomatedPaymentRepository struct {
	db *pgxpool.Pool
}

func NewAutomatedPaymentRepository(db *pgxpool.Pool) *AutomatedPaymentRepository {
	return &AutomatedPaymentRepository{db: db}
}

const paymentInsert = `
	INSERT INTO automated_payments (payment_reference, rider_id, amount, status, transaction_id, failure_reason, processed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at
`

// CreateWithTx records a payout attempt inside the ledger debit transaction,
// so a successful payment record and its balance mutation commit together.
func (r *AutomatedPaymentRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, p *payout.AutomatedPayment) error {
	err := tx.QueryRow(
		ctx, paymentInsert,
		p.PaymentReference, p.RiderID, p.Amount, p.Status, p.TransactionID, p.FailureReason, p.ProcessedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create automated payment: %w", err)
	}
	return nil
}

// Create records a payout attempt outside any transaction (failed attempts
// have no balance mutation to pair with).
func (r *AutomatedPaymentRepository) Create(ctx context.Context, p *payout.AutomatedPayment) error {
	err := r.db.QueryRow(
		ctx, paymentInsert,
		p.PaymentReference, p.RiderID, p.Amount, p.Status, p.TransactionID, p.FailureReason, p.ProcessedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create automated payment: %w", err)
	}
	return nil
}

// List retrieves automated payment records with filters.
func (r *AutomatedPaymentRepository) List(ctx context.Context, filters *payout.ListFilters) ([]payout.AutomatedPayment, int64, error) {
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
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM automated_payments %s`, where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count automated payments: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, payment_reference, rider_id, amount, status, transaction_id, failure_reason, processed_at, created_at
		FROM automated_payments %s
		ORDER BY processed_at DESC
		LIMIT $%d OFFSET $%d
	`, where, argIdx, argIdx+1)
	args = append(args, filters.Limit, filters.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list automated payments: %w", err)
	}
	defer rows.Close()

	var payments []payout.AutomatedPayment
	for rows.Next() {
		var p payout.AutomatedPayment
		if err := rows.Scan(
			&p.ID, &p.PaymentReference, &p.RiderID, &p.Amount, &p.Status,
			&p.TransactionID, &p.FailureReason, &p.ProcessedAt, &p.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan automated payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, total, rows.Err()
}

// Stats aggregates payout attempt counts and the total paid out.
func (r *AutomatedPaymentRepository) Stats(ctx context.Context) (*payout.PaymentStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'success'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'success'), 0)
		FROM automated_payments
	`

	var stats payout.PaymentStats
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalPayments, &stats.Successful, &stats.Failed, &stats.TotalPaid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment stats: %w", err)
	}
	return &stats, nil
}

// PurgeOlderThan deletes payment records older than the retention cutoff.
func (r *AutomatedPaymentRepository) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM automated_payments WHERE processed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge automated payments: %w", err)
	}
	return result.RowsAffected(), nil
}
