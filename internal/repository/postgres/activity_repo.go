// internal/repository/postgres/activity_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"boda-service/internal/domain/activity"
	xerrors "boda-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivityRepository struct {
	db *pgxpool.Pool
}

func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `id, rider_id, type, order_id, description, amount, commission, net_earning, location, metadata, timestamp`

const activityInsert = `
	INSERT INTO activities (rider_id, type, order_id, description, amount, commission, net_earning, location, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, timestamp
`

func marshalMetadata(e *activity.Entry) ([]byte, error) {
	if e.Metadata == nil {
		return nil, nil
	}
	b, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return b, nil
}

func scanActivity(row pgx.Row) (*activity.Entry, error) {
	var e activity.Entry
	var metadataJSON []byte

	err := row.Scan(
		&e.ID, &e.RiderID, &e.Type, &e.OrderID, &e.Description,
		&e.Amount, &e.Commission, &e.NetEarning, &e.Location,
		&metadataJSON, &e.Timestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan activity: %w", err)
	}

	if len(metadataJSON) > 0 {
		json.Unmarshal(metadataJSON, &e.Metadata)
	}
	return &e, nil
}

// AppendWithTx appends an activity entry inside a balance mutation
// transaction, so the audit record and the balance change commit together.
func (r *ActivityRepository) AppendWithTx(ctx context.Context, tx pgx.Tx, e *activity.Entry) error {
	metadataJSON, err := marshalMetadata(e)
	if err != nil {
		return err
	}

	err = tx.QueryRow(
		ctx, activityInsert,
		e.RiderID, e.Type, e.OrderID, e.Description,
		e.Amount, e.Commission, e.NetEarning, e.Location, metadataJSON,
	).Scan(&e.ID, &e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// Append appends a standalone activity entry (events with no paired balance
// mutation, such as withdrawal requests and sweep summaries).
func (r *ActivityRepository) Append(ctx context.Context, e *activity.Entry) error {
	metadataJSON, err := marshalMetadata(e)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(
		ctx, activityInsert,
		e.RiderID, e.Type, e.OrderID, e.Description,
		e.Amount, e.Commission, e.NetEarning, e.Location, metadataJSON,
	).Scan(&e.ID, &e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// FindByID retrieves an activity entry by ID.
func (r *ActivityRepository) FindByID(ctx context.Context, id int64) (*activity.Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities WHERE id = $1`, activityColumns)
	return scanActivity(r.db.QueryRow(ctx, query, id))
}

// List retrieves activity entries with filters, newest first.
func (r *ActivityRepository) List(ctx context.Context, filters *activity.ListFilters) ([]activity.Entry, int64, error) {
	var conditions []string
	var args []interface{}
	argIdx := 1

	if filters.RiderID != nil {
		conditions = append(conditions, fmt.Sprintf("rider_id = $%d", argIdx))
		args = append(args, *filters.RiderID)
		argIdx++
	}
	if filters.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, filters.Type)
		argIdx++
	}
	if filters.OrderID != "" {
		conditions = append(conditions, fmt.Sprintf("order_id = $%d", argIdx))
		args = append(args, filters.OrderID)
		argIdx++
	}
	if filters.From != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argIdx))
		args = append(args, *filters.From)
		argIdx++
	}
	if filters.To != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argIdx))
		args = append(args, *filters.To)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM activities %s`, where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM activities %s
		ORDER BY id DESC
		LIMIT $%d OFFSET $%d
	`, activityColumns, where, argIdx, argIdx+1)
	args = append(args, filters.Limit, filters.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var entries []activity.Entry
	for rows.Next() {
		e, err := scanActivity(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	return entries, total, rows.Err()
}

// ListAllByRider returns every entry for a rider in append order, the shape
// balance replay needs.
func (r *ActivityRepository) ListAllByRider(ctx context.Context, riderID int64) ([]activity.Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities WHERE rider_id = $1 ORDER BY id`, activityColumns)

	rows, err := r.db.Query(ctx, query, riderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rider activities: %w", err)
	}
	defer rows.Close()

	var entries []activity.Entry
	for rows.Next() {
		e, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Stats aggregates activity counts for the admin dashboard.
func (r *ActivityRepository) Stats(ctx context.Context) (*activity.Stats, error) {
	stats := &activity.Stats{ByType: make(map[string]int64)}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE timestamp >= date_trunc('day', now())),
			COUNT(*) FILTER (WHERE timestamp >= date_trunc('week', now())),
			COUNT(DISTINCT rider_id) FILTER (WHERE timestamp >= now() - interval '7 days' AND rider_id IS NOT NULL)
		FROM activities
	`
	err := r.db.QueryRow(ctx, query).Scan(&stats.Total, &stats.Today, &stats.ThisWeek, &stats.ActiveRiders7d)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity stats: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT type, COUNT(*) FROM activities GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity type counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t string
		var count int64
		if err := rows.Scan(&t, &count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		stats.ByType[t] = count
	}
	return stats, rows.Err()
}

// DeleteByID hard-deletes an entry. This deliberately breaks the append-only
// guarantee for admin corrections.
func (r *ActivityRepository) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ReplaceAll swaps the whole log for an imported one, atomically.
func (r *ActivityRepository) ReplaceAll(ctx context.Context, entries []activity.Entry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE activities RESTART IDENTITY`); err != nil {
		return fmt.Errorf("failed to truncate activities: %w", err)
	}

	insert := `
		INSERT INTO activities (rider_id, type, order_id, description, amount, commission, net_earning, location, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for i := range entries {
		e := &entries[i]
		metadataJSON, err := marshalMetadata(e)
		if err != nil {
			return err
		}
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.Exec(
			ctx, insert,
			e.RiderID, e.Type, e.OrderID, e.Description,
			e.Amount, e.Commission, e.NetEarning, e.Location, metadataJSON, ts,
		); err != nil {
			return fmt.Errorf("failed to import activity: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}
