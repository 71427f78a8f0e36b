// internal/service/activity/activity_service.go
package activity

import (
	"context"
	"fmt"

	domainactivity "boda-service/internal/domain/activity"
	xerrors "boda-service/internal/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// exportCap bounds how many entries a single export pulls.
const exportCap = 10000

type Store interface {
	Append(ctx context.Context, e *domainactivity.Entry) error
	FindByID(ctx context.Context, id int64) (*domainactivity.Entry, error)
	List(ctx context.Context, filters *domainactivity.ListFilters) ([]domainactivity.Entry, int64, error)
	ListAllByRider(ctx context.Context, riderID int64) ([]domainactivity.Entry, error)
	Stats(ctx context.Context) (*domainactivity.Stats, error)
	DeleteByID(ctx context.Context, id int64) error
	ReplaceAll(ctx context.Context, entries []domainactivity.Entry) error
}

type Broadcaster interface {
	Broadcast(v interface{})
}

// Service is the audit-trail surface: append, query, stats, export, and the
// two deliberate append-only exceptions (admin delete and bulk import).
type Service struct {
	store       Store
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewService(store Store, broadcaster Broadcaster, logger *zap.Logger) *Service {
	return &Service{store: store, broadcaster: broadcaster, logger: logger}
}

// Log validates and appends an entry, then pushes it to live listeners.
func (s *Service) Log(ctx context.Context, e *domainactivity.Entry) (*domainactivity.Entry, error) {
	if !e.Type.Valid() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("unknown activity type %q", e.Type))
	}
	if e.Description == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "description is required")
	}

	if err := s.store.Append(ctx, e); err != nil {
		return nil, err
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(e)
	}
	return e, nil
}

// List retrieves entries with filters and pagination defaults.
func (s *Service) List(ctx context.Context, filters *domainactivity.ListFilters) (*domainactivity.ListResponse, error) {
	if filters.Limit < 1 {
		filters.Limit = 50
	}
	if filters.Limit > 500 {
		filters.Limit = 500
	}

	entries, total, err := s.store.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &domainactivity.ListResponse{Activities: entries, Total: total}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domainactivity.Entry, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (*domainactivity.Stats, error) {
	return s.store.Stats(ctx)
}

// RiderEarnings summarizes a rider's delivery earnings from the log alone,
// independent of the mutable balance fields.
func (s *Service) RiderEarnings(ctx context.Context, riderID int64) (*domainactivity.EarningsReport, error) {
	entries, err := s.store.ListAllByRider(ctx, riderID)
	if err != nil {
		return nil, err
	}

	report := &domainactivity.EarningsReport{
		RiderID:         riderID,
		TotalGross:      decimal.Zero,
		TotalCommission: decimal.Zero,
		TotalNetEarning: decimal.Zero,
	}
	for i := range entries {
		e := entries[i]
		if e.Type != domainactivity.TypeDeliveryCompleted {
			continue
		}
		report.Deliveries++
		if e.Amount.Valid {
			report.TotalGross = report.TotalGross.Add(e.Amount.Decimal)
		}
		if e.Commission.Valid {
			report.TotalCommission = report.TotalCommission.Add(e.Commission.Decimal)
		}
		if e.NetEarning.Valid {
			report.TotalNetEarning = report.TotalNetEarning.Add(e.NetEarning.Decimal)
		}
		report.Entries = append(report.Entries, e)
	}
	return report, nil
}

// Delete hard-deletes one entry for admin correction.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.logger.Warn("activity entry deleted", zap.Int64("activity_id", id))
	return nil
}

// Import replaces the whole log, used for migration and test seeding.
func (s *Service) Import(ctx context.Context, entries []domainactivity.Entry) error {
	for i := range entries {
		if !entries[i].Type.Valid() {
			return xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("entry %d has unknown type %q", i, entries[i].Type))
		}
	}
	if err := s.store.ReplaceAll(ctx, entries); err != nil {
		return err
	}
	s.logger.Warn("activity log replaced by import", zap.Int("entries", len(entries)))
	return nil
}

// Export renders the log in the requested format. Returns the payload, its
// content type, and a filename.
func (s *Service) Export(ctx context.Context, format string) ([]byte, string, string, error) {
	entries, _, err := s.store.List(ctx, &domainactivity.ListFilters{Limit: exportCap})
	if err != nil {
		return nil, "", "", err
	}

	switch format {
	case "", "json":
		data, err := ExportJSON(entries)
		return data, "application/json", "activities.json", err
	case "csv":
		data, err := ExportCSV(entries)
		return data, "text/csv", "activities.csv", err
	case "xlsx":
		data, err := ExportXLSX(entries)
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "activities.xlsx", err
	default:
		return nil, "", "", xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("unsupported export format %q", format))
	}
}
