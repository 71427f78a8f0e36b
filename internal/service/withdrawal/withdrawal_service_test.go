// internal/service/withdrawal/withdrawal_service_test.go
package withdrawal

import (
	"context"
	"errors"
	"testing"
	"time"

	"boda-service/internal/domain/activity"
	"boda-service/internal/domain/rider"
	domainwithdrawal "boda-service/internal/domain/withdrawal"
	xerrors "boda-service/internal/pkg/errors"
	"boda-service/internal/pkg/keymutex"
	ledgersvc "boda-service/internal/service/ledger"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeStore struct {
	requests map[int64]*domainwithdrawal.Request
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{requests: make(map[int64]*domainwithdrawal.Request)}
}

func (s *fakeStore) Create(_ context.Context, req *domainwithdrawal.Request) error {
	s.nextID++
	req.ID = s.nextID
	req.RequestedAt = time.Now()
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id int64) (*domainwithdrawal.Request, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *fakeStore) SumPendingForRider(_ context.Context, riderID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, req := range s.requests {
		if req.RiderID == riderID && req.Status == domainwithdrawal.StatusPending {
			sum = sum.Add(req.Amount)
		}
	}
	return sum, nil
}

func (s *fakeStore) decide(id int64, status domainwithdrawal.Status, adminNotes string, processedAt time.Time) error {
	req, ok := s.requests[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if req.Status != domainwithdrawal.StatusPending {
		return xerrors.ErrInvalidTransition
	}
	req.Status = status
	req.AdminNotes.String = adminNotes
	req.AdminNotes.Valid = adminNotes != ""
	req.ProcessedAt.Time = processedAt
	req.ProcessedAt.Valid = true
	return nil
}

func (s *fakeStore) DecideWithTx(_ context.Context, _ pgx.Tx, id int64, status domainwithdrawal.Status, adminNotes string, processedAt time.Time) error {
	return s.decide(id, status, adminNotes, processedAt)
}

func (s *fakeStore) Decide(_ context.Context, id int64, status domainwithdrawal.Status, adminNotes string, processedAt time.Time) error {
	return s.decide(id, status, adminNotes, processedAt)
}

func (s *fakeStore) List(_ context.Context, _ *domainwithdrawal.ListFilters) ([]domainwithdrawal.Request, int64, error) {
	var out []domainwithdrawal.Request
	for _, req := range s.requests {
		out = append(out, *req)
	}
	return out, int64(len(out)), nil
}

func (s *fakeStore) Stats(_ context.Context) (*domainwithdrawal.Stats, error) {
	return &domainwithdrawal.Stats{TotalRequests: int64(len(s.requests))}, nil
}

type fakeRiders struct {
	riders map[int64]*rider.Rider
}

func (f *fakeRiders) FindByID(_ context.Context, id int64) (*rider.Rider, error) {
	r, ok := f.riders[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// fakeLedger applies the prepared intent directly against the shared rider
// map, mirroring the real ledger's lock-read-prepare-debit cycle including
// the intent's activity entry.
type fakeLedger struct {
	riders   *fakeRiders
	appender *fakeAppender
}

func (f *fakeLedger) Debit(ctx context.Context, riderID int64, prepare ledgersvc.PrepareFunc) (*rider.Rider, error) {
	r, err := f.riders.FindByID(ctx, riderID)
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
	if r.CurrentBalance.LessThan(intent.Amount) {
		return nil, xerrors.ErrInsufficientBalance
	}
	if intent.Hook != nil {
		if err := intent.Hook(nil); err != nil {
			return nil, err
		}
	}
	if intent.Entry != nil {
		if err := f.appender.Append(ctx, intent.Entry); err != nil {
			return nil, err
		}
	}
	stored := f.riders.riders[riderID]
	stored.CurrentBalance = stored.CurrentBalance.Sub(intent.Amount)
	stored.TotalWithdrawn = stored.TotalWithdrawn.Add(intent.Amount)
	cp := *stored
	return &cp, nil
}

type fakeAppender struct {
	entries []activity.Entry
}

func (a *fakeAppender) Append(_ context.Context, e *activity.Entry) error {
	a.entries = append(a.entries, *e)
	return nil
}

func newTestService(balance string) (*Service, *fakeStore, *fakeRiders, *fakeAppender) {
	riders := &fakeRiders{riders: map[int64]*rider.Rider{
		1: {
			ID:             1,
			Phone:          "254700000001",
			Status:         rider.StatusApproved,
			IsActive:       true,
			CurrentBalance: decimal.RequireFromString(balance),
		},
	}}
	store := newFakeStore()
	appender := &fakeAppender{}
	svc := NewService(store, riders, &fakeLedger{riders: riders, appender: appender}, appender, keymutex.New(), zap.NewNop())
	return svc, store, riders, appender
}

func TestRequestWithdrawal(t *testing.T) {
	svc, _, _, appender := newTestService("1000")

	resp, err := svc.RequestWithdrawal(context.Background(), 1, &domainwithdrawal.CreateRequestInput{
		Amount: decimal.NewFromInt(500),
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal: %v", err)
	}

	if !resp.Fee.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Fee = %s, want 20", resp.Fee)
	}
	if !resp.NetAmount.Equal(decimal.NewFromInt(480)) {
		t.Errorf("NetAmount = %s, want 480", resp.NetAmount)
	}
	if resp.Request.Status != domainwithdrawal.StatusPending {
		t.Errorf("Status = %s, want pending", resp.Request.Status)
	}
	if len(appender.entries) != 1 || appender.entries[0].Type != activity.TypeWithdrawalRequested {
		t.Fatalf("expected one withdrawal_requested entry, got %+v", appender.entries)
	}
}

func TestRequestWithdrawalFeeTier(t *testing.T) {
	svc, _, _, _ := newTestService("5000")

	resp, err := svc.RequestWithdrawal(context.Background(), 1, &domainwithdrawal.CreateRequestInput{
		Amount: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal: %v", err)
	}
	if !resp.Fee.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Fee = %s, want 50 at the 1000 boundary", resp.Fee)
	}
	if !resp.NetAmount.Equal(decimal.NewFromInt(950)) {
		t.Errorf("NetAmount = %s, want 950", resp.NetAmount)
	}
}

func TestRequestWithdrawalValidation(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		amount  string
		wantErr error
	}{
		{"zero amount", "1000", "0", xerrors.ErrInvalidInput},
		{"negative amount", "1000", "-50", xerrors.ErrInvalidInput},
		{"zero balance", "0", "100", xerrors.ErrInsufficientBalance},
		{"exceeds balance", "100", "200", xerrors.ErrInsufficientBalance},
		{"amount below fee", "1000", "15", xerrors.ErrInvalidInput},
		{"amount equals fee", "1000", "20", xerrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newTestService(tt.balance)
			_, err := svc.RequestWithdrawal(context.Background(), 1, &domainwithdrawal.CreateRequestInput{
				Amount: decimal.RequireFromString(tt.amount),
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestWithdrawalCountsPending(t *testing.T) {
	svc, _, _, _ := newTestService("1000")
	ctx := context.Background()

	if _, err := svc.RequestWithdrawal(ctx, 1, &domainwithdrawal.CreateRequestInput{Amount: decimal.NewFromInt(700)}); err != nil {
		t.Fatalf("first request: %v", err)
	}

	// Balance is still 1000 but 700 is already spoken for.
	_, err := svc.RequestWithdrawal(ctx, 1, &domainwithdrawal.CreateRequestInput{Amount: decimal.NewFromInt(400)})
	if !errors.Is(err, xerrors.ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}

	// A request that still fits is fine.
	if _, err := svc.RequestWithdrawal(ctx, 1, &domainwithdrawal.CreateRequestInput{Amount: decimal.NewFromInt(300)}); err != nil {
		t.Errorf("fitting request rejected: %v", err)
	}
}

func TestUpdateStatusApproveDebitsGross(t *testing.T) {
	svc, _, riders, appender := newTestService("1000")
	ctx := context.Background()

	resp, err := svc.RequestWithdrawal(ctx, 1, &domainwithdrawal.CreateRequestInput{Amount: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, resp.Request.ID, &domainwithdrawal.UpdateStatusInput{
		Status:     domainwithdrawal.StatusApproved,
		AdminNotes: "ok",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	if updated.Status != domainwithdrawal.StatusApproved {
		t.Errorf("Status = %s, want approved", updated.Status)
	}
	// The gross amount leaves the balance; the fee is platform revenue.
	r, _ := riders.FindByID(ctx, 1)
	if !r.CurrentBalance.Equal(decimal.NewFromInt(500)) {
		t.Errorf("balance = %s, want 500", r.CurrentBalance)
	}

	var statusEntries int
	for _, e := range appender.entries {
		if e.Type == activity.TypeStatusChange {
			statusEntries++
			if !e.Amount.Valid || !e.Amount.Decimal.Equal(decimal.NewFromInt(500)) {
				t.Errorf("status entry amount = %+v, want 500", e.Amount)
			}
		}
	}
	if statusEntries != 1 {
		t.Errorf("status_change entries = %d, want 1", statusEntries)
	}
}

func TestUpdateStatusRejectLeavesBalance(t *testing.T) {
	svc, _, riders, _ := newTestService("1000")
	ctx := context.Background()

	resp, err := svc.RequestWithdrawal(ctx, 1, &domainwithdrawal.CreateRequestInput{Amount: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, resp.Request.ID, &domainwithdrawal.UpdateStatusInput{
		Status: domainwithdrawal.StatusRejected,
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	if updated.Status != domainwithdrawal.StatusRejected {
		t.Errorf("Status = %s, want rejected", updated.Status)
	}
	r, _ := riders.FindByID(ctx, 1)
	if !r.CurrentBalance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("balance = %s, want untouched 1000", r.CurrentBalance)
	}
}

func TestUpdateStatusOnlyOnce(t *testing.T) {
	svc, _, _, _ := newTestService("1000")
	ctx := context.Background()

	resp, err := svc.RequestWithdrawal(ctx, 1, &domainwithdrawal.CreateRequestInput{Amount: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, resp.Request.ID, &domainwithdrawal.UpdateStatusInput{Status: domainwithdrawal.StatusRejected}); err != nil {
		t.Fatalf("first decision: %v", err)
	}

	_, err = svc.UpdateStatus(ctx, resp.Request.ID, &domainwithdrawal.UpdateStatusInput{Status: domainwithdrawal.StatusApproved})
	if !errors.Is(err, xerrors.ErrInvalidTransition) {
		t.Errorf("second decision err = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateStatusRejectsInvalidTarget(t *testing.T) {
	svc, _, _, _ := newTestService("1000")

	_, err := svc.UpdateStatus(context.Background(), 1, &domainwithdrawal.UpdateStatusInput{Status: domainwithdrawal.StatusPending})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
