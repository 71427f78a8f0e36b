// internal/service/activity/activity_service_test.go
package activity

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	domainactivity "boda-service/internal/domain/activity"
	xerrors "boda-service/internal/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeStore struct {
	entries  []domainactivity.Entry
	replaced bool

	lastFilters *domainactivity.ListFilters
}

func (s *fakeStore) Append(_ context.Context, e *domainactivity.Entry) error {
	e.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, *e)
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id int64) (*domainactivity.Entry, error) {
	for i := range s.entries {
		if s.entries[i].ID == id {
			cp := s.entries[i]
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (s *fakeStore) List(_ context.Context, filters *domainactivity.ListFilters) ([]domainactivity.Entry, int64, error) {
	s.lastFilters = filters
	return s.entries, int64(len(s.entries)), nil
}

func (s *fakeStore) ListAllByRider(_ context.Context, riderID int64) ([]domainactivity.Entry, error) {
	var out []domainactivity.Entry
	for _, e := range s.entries {
		if e.RiderID.Valid && e.RiderID.Int64 == riderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) Stats(context.Context) (*domainactivity.Stats, error) {
	return &domainactivity.Stats{Total: int64(len(s.entries))}, nil
}

func (s *fakeStore) DeleteByID(_ context.Context, id int64) error {
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return xerrors.ErrNotFound
}

func (s *fakeStore) ReplaceAll(_ context.Context, entries []domainactivity.Entry) error {
	s.entries = append([]domainactivity.Entry(nil), entries...)
	s.replaced = true
	return nil
}

type fakeBroadcaster struct {
	messages []interface{}
}

func (b *fakeBroadcaster) Broadcast(v interface{}) {
	b.messages = append(b.messages, v)
}

func TestLogValidatesAndBroadcasts(t *testing.T) {
	store := &fakeStore{}
	broadcaster := &fakeBroadcaster{}
	svc := NewService(store, broadcaster, zap.NewNop())

	entry, err := svc.Log(context.Background(), &domainactivity.Entry{
		Type:        domainactivity.TypeStatusChange,
		Description: "manual correction",
	})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if entry.ID == 0 {
		t.Error("entry was not assigned an ID")
	}
	if len(broadcaster.messages) != 1 {
		t.Errorf("broadcasts = %d, want 1", len(broadcaster.messages))
	}
}

func TestLogRejectsBadInput(t *testing.T) {
	svc := NewService(&fakeStore{}, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Log(ctx, &domainactivity.Entry{Type: "refund", Description: "x"})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("unknown type err = %v, want ErrInvalidInput", err)
	}

	_, err = svc.Log(ctx, &domainactivity.Entry{Type: domainactivity.TypeStatusChange})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("missing description err = %v, want ErrInvalidInput", err)
	}
}

func TestListClampsLimit(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.List(ctx, &domainactivity.ListFilters{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if store.lastFilters.Limit != 50 {
		t.Errorf("default limit = %d, want 50", store.lastFilters.Limit)
	}

	if _, err := svc.List(ctx, &domainactivity.ListFilters{Limit: 9999}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if store.lastFilters.Limit != 500 {
		t.Errorf("clamped limit = %d, want 500", store.lastFilters.Limit)
	}
}

func TestRiderEarningsSumsDeliveriesOnly(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, zap.NewNop())
	ctx := context.Background()

	deliveries := []struct{ gross, commission, net string }{
		{"156", "31.2", "124.8"},
		{"300", "60", "240"},
	}
	for _, d := range deliveries {
		store.Append(ctx, &domainactivity.Entry{
			RiderID:     sql.NullInt64{Int64: 5, Valid: true},
			Type:        domainactivity.TypeDeliveryCompleted,
			OrderID:     sql.NullString{String: "ORD", Valid: true},
			Description: "delivery",
			Amount:      decimal.NullDecimal{Decimal: decimal.RequireFromString(d.gross), Valid: true},
			Commission:  decimal.NullDecimal{Decimal: decimal.RequireFromString(d.commission), Valid: true},
			NetEarning:  decimal.NullDecimal{Decimal: decimal.RequireFromString(d.net), Valid: true},
		})
	}
	// A payout entry must not count toward earnings.
	store.Append(ctx, &domainactivity.Entry{
		RiderID:     sql.NullInt64{Int64: 5, Valid: true},
		Type:        domainactivity.TypePaymentReceived,
		Description: "payout",
		Amount:      decimal.NullDecimal{Decimal: decimal.RequireFromString("364.8"), Valid: true},
	})

	report, err := svc.RiderEarnings(ctx, 5)
	if err != nil {
		t.Fatalf("RiderEarnings: %v", err)
	}
	if report.Deliveries != 2 {
		t.Errorf("Deliveries = %d, want 2", report.Deliveries)
	}
	if !report.TotalGross.Equal(decimal.NewFromInt(456)) {
		t.Errorf("TotalGross = %s, want 456", report.TotalGross)
	}
	if !report.TotalNetEarning.Equal(decimal.RequireFromString("364.8")) {
		t.Errorf("TotalNetEarning = %s, want 364.8", report.TotalNetEarning)
	}
}

func TestImportValidatesTypes(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, zap.NewNop())

	err := svc.Import(context.Background(), []domainactivity.Entry{
		{Type: domainactivity.TypeStatusChange, Description: "ok"},
		{Type: "bogus", Description: "bad"},
	})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if store.replaced {
		t.Error("store replaced despite invalid input")
	}
}

func TestExportDispatch(t *testing.T) {
	svc := NewService(&fakeStore{}, nil, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		format      string
		contentType string
		filename    string
	}{
		{"", "application/json", "activities.json"},
		{"json", "application/json", "activities.json"},
		{"csv", "text/csv", "activities.csv"},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "activities.xlsx"},
	}
	for _, tt := range tests {
		_, contentType, filename, err := svc.Export(ctx, tt.format)
		if err != nil {
			t.Errorf("Export(%q): %v", tt.format, err)
			continue
		}
		if contentType != tt.contentType || filename != tt.filename {
			t.Errorf("Export(%q) = (%s, %s), want (%s, %s)", tt.format, contentType, filename, tt.contentType, tt.filename)
		}
	}

	_, _, _, err := svc.Export(ctx, "pdf")
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("Export(pdf) err = %v, want ErrInvalidInput", err)
	}
}
