// internal/service/ledger/ledger_service_test.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"boda-service/internal/domain/activity"
	"boda-service/internal/domain/rider"
	xerrors "boda-service/internal/pkg/errors"
	"boda-service/internal/pkg/keymutex"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fakeTx satisfies pgx.Tx through embedding; only Commit and Rollback are
// ever called by the service.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	lastTx *fakeTx
}

func (d *fakeDB) BeginTx(context.Context) (pgx.Tx, error) {
	d.lastTx = &fakeTx{}
	return d.lastTx, nil
}

type fakeRiderStore struct {
	riders   map[int64]*rider.Rider
	earnings map[string]*rider.Earning
	nextID   int64

	markedPaid []int64
}

func newFakeRiderStore(riders ...*rider.Rider) *fakeRiderStore {
	s := &fakeRiderStore{
		riders:   make(map[int64]*rider.Rider),
		earnings: make(map[string]*rider.Earning),
	}
	for _, r := range riders {
		s.riders[r.ID] = r
	}
	return s
}

func earningKey(riderID int64, orderID string) string {
	return fmt.Sprintf("%d:%s", riderID, orderID)
}

func (s *fakeRiderStore) FindByID(_ context.Context, id int64) (*rider.Rider, error) {
	r, ok := s.riders[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeRiderStore) CreditEarningWithTx(_ context.Context, _ pgx.Tx, e *rider.Earning) (decimal.Decimal, error) {
	key := earningKey(e.RiderID, e.OrderID)
	if _, ok := s.earnings[key]; ok {
		return decimal.Zero, xerrors.ErrDuplicateEntry
	}
	s.nextID++
	e.ID = s.nextID
	cp := *e
	s.earnings[key] = &cp

	r := s.riders[e.RiderID]
	r.CurrentBalance = r.CurrentBalance.Add(e.RiderEarning)
	r.TotalEarnings = r.TotalEarnings.Add(e.RiderEarning)
	r.TotalDeliveries++
	return r.CurrentBalance, nil
}

func (s *fakeRiderStore) FindEarningByOrder(_ context.Context, riderID int64, orderID string) (*rider.Earning, error) {
	e, ok := s.earnings[earningKey(riderID, orderID)]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeRiderStore) ListEarnings(_ context.Context, riderID int64, _ int) ([]rider.Earning, error) {
	var out []rider.Earning
	for _, e := range s.earnings {
		if e.RiderID == riderID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeRiderStore) DebitWithTx(_ context.Context, _ pgx.Tx, riderID int64, amount decimal.Decimal) (*rider.Rider, error) {
	r, ok := s.riders[riderID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	if r.CurrentBalance.LessThan(amount) {
		return nil, xerrors.ErrInsufficientBalance
	}
	r.CurrentBalance = r.CurrentBalance.Sub(amount)
	r.TotalWithdrawn = r.TotalWithdrawn.Add(amount)
	cp := *r
	return &cp, nil
}

func (s *fakeRiderStore) MarkEarningsPaidWithTx(_ context.Context, _ pgx.Tx, riderID int64) error {
	s.markedPaid = append(s.markedPaid, riderID)
	for _, e := range s.earnings {
		if e.RiderID == riderID {
			e.Status = rider.EarningPaid
		}
	}
	return nil
}

type fakeActivityStore struct {
	entries []activity.Entry
}

func (s *fakeActivityStore) AppendWithTx(_ context.Context, _ pgx.Tx, e *activity.Entry) error {
	e.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, *e)
	return nil
}

func (s *fakeActivityStore) ListAllByRider(_ context.Context, riderID int64) ([]activity.Entry, error) {
	var out []activity.Entry
	for _, e := range s.entries {
		if e.RiderID.Valid && e.RiderID.Int64 == riderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func approvedRider(id int64, balance string) *rider.Rider {
	return &rider.Rider{
		ID:             id,
		FullName:       "Test Rider",
		Phone:          "254700000001",
		Status:         rider.StatusApproved,
		IsActive:       true,
		CurrentBalance: decimal.RequireFromString(balance),
		TotalEarnings:  decimal.RequireFromString(balance),
	}
}

func newTestService(riders *fakeRiderStore, activities *fakeActivityStore, db *fakeDB) *Service {
	return NewService(riders, activities, db, keymutex.New(), decimal.RequireFromString("0.20"), zap.NewNop())
}

func TestSplitSumsBackToGross(t *testing.T) {
	svc := newTestService(newFakeRiderStore(), &fakeActivityStore{}, &fakeDB{})

	tests := []struct {
		gross          string
		wantCommission string
		wantEarning    string
	}{
		{"156", "31.2", "124.8"},
		{"100", "20", "80"},
		{"99.99", "20", "79.99"},
		{"0.01", "0", "0.01"},
	}

	for _, tt := range tests {
		gross := decimal.RequireFromString(tt.gross)
		commission, earning := svc.Split(gross)
		if !commission.Equal(decimal.RequireFromString(tt.wantCommission)) {
			t.Errorf("Split(%s) commission = %s, want %s", tt.gross, commission, tt.wantCommission)
		}
		if !earning.Equal(decimal.RequireFromString(tt.wantEarning)) {
			t.Errorf("Split(%s) earning = %s, want %s", tt.gross, earning, tt.wantEarning)
		}
		if !commission.Add(earning).Equal(gross) {
			t.Errorf("Split(%s) does not sum back to gross", tt.gross)
		}
	}
}

func TestCreditDelivery(t *testing.T) {
	riders := newFakeRiderStore(approvedRider(1, "0"))
	activities := &fakeActivityStore{}
	db := &fakeDB{}
	svc := newTestService(riders, activities, db)

	result, err := svc.CreditDelivery(context.Background(), 1, &rider.CreditDeliveryRequest{
		OrderID: "ORD-100",
		Amount:  decimal.NewFromInt(156),
	})
	if err != nil {
		t.Fatalf("CreditDelivery: %v", err)
	}

	if result.Duplicate {
		t.Error("first credit flagged as duplicate")
	}
	if !result.NewBalance.Equal(decimal.RequireFromString("124.8")) {
		t.Errorf("NewBalance = %s, want 124.8", result.NewBalance)
	}
	if !result.Earning.Commission.Equal(decimal.RequireFromString("31.2")) {
		t.Errorf("Commission = %s, want 31.2", result.Earning.Commission)
	}
	if !db.lastTx.committed {
		t.Error("transaction was not committed")
	}
	if len(activities.entries) != 1 || activities.entries[0].Type != activity.TypeDeliveryCompleted {
		t.Fatalf("expected one delivery_completed entry, got %+v", activities.entries)
	}
}

func TestCreditDeliveryDuplicateIsNoOp(t *testing.T) {
	riders := newFakeRiderStore(approvedRider(1, "0"))
	activities := &fakeActivityStore{}
	svc := newTestService(riders, activities, &fakeDB{})

	req := &rider.CreditDeliveryRequest{OrderID: "ORD-100", Amount: decimal.NewFromInt(200)}
	first, err := svc.CreditDelivery(context.Background(), 1, req)
	if err != nil {
		t.Fatalf("first credit: %v", err)
	}

	second, err := svc.CreditDelivery(context.Background(), 1, req)
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if !second.Duplicate {
		t.Error("second credit not flagged as duplicate")
	}
	if second.Earning.ID != first.Earning.ID {
		t.Errorf("duplicate returned earning %d, want original %d", second.Earning.ID, first.Earning.ID)
	}
	if !second.NewBalance.Equal(first.NewBalance) {
		t.Errorf("duplicate changed balance: %s -> %s", first.NewBalance, second.NewBalance)
	}
	if len(activities.entries) != 1 {
		t.Errorf("duplicate appended an activity entry, have %d", len(activities.entries))
	}
}

func TestCreditDeliveryValidation(t *testing.T) {
	svc := newTestService(newFakeRiderStore(approvedRider(1, "0")), &fakeActivityStore{}, &fakeDB{})

	_, err := svc.CreditDelivery(context.Background(), 1, &rider.CreditDeliveryRequest{Amount: decimal.NewFromInt(100)})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("missing order id: err = %v, want ErrInvalidInput", err)
	}

	_, err = svc.CreditDelivery(context.Background(), 1, &rider.CreditDeliveryRequest{OrderID: "ORD-1", Amount: decimal.NewFromInt(-5)})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("negative amount: err = %v, want ErrInvalidInput", err)
	}

	_, err = svc.CreditDelivery(context.Background(), 99, &rider.CreditDeliveryRequest{OrderID: "ORD-1", Amount: decimal.NewFromInt(100)})
	if !errors.Is(err, xerrors.ErrNotFound) {
		t.Errorf("unknown rider: err = %v, want ErrNotFound", err)
	}
}

func TestDebitRunsHookInTransaction(t *testing.T) {
	riders := newFakeRiderStore(approvedRider(1, "500"))
	activities := &fakeActivityStore{}
	db := &fakeDB{}
	svc := newTestService(riders, activities, db)

	hookRan := false
	debit := decimal.NewFromInt(200)
	updated, err := svc.Debit(context.Background(), 1, func(r *rider.Rider) (*DebitIntent, error) {
		return &DebitIntent{
			Amount: debit,
			Entry:  activity.PaymentReceived(1, "PAY-1", "TX1", debit, r.CurrentBalance.Sub(debit)),
			Hook: func(tx pgx.Tx) error {
				hookRan = true
				return nil
			},
		}, nil
	})
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}

	if !hookRan {
		t.Error("hook did not run")
	}
	if !updated.CurrentBalance.Equal(decimal.NewFromInt(300)) {
		t.Errorf("balance = %s, want 300", updated.CurrentBalance)
	}
	if !db.lastTx.committed {
		t.Error("transaction was not committed")
	}
	if len(activities.entries) != 1 {
		t.Errorf("expected one activity entry, got %d", len(activities.entries))
	}
}

func TestDebitHookFailureRollsBack(t *testing.T) {
	riders := newFakeRiderStore(approvedRider(1, "500"))
	db := &fakeDB{}
	svc := newTestService(riders, &fakeActivityStore{}, db)

	boom := errors.New("hook failed")
	_, err := svc.Debit(context.Background(), 1, func(r *rider.Rider) (*DebitIntent, error) {
		return &DebitIntent{
			Amount: decimal.NewFromInt(100),
			Entry:  activity.PaymentReceived(1, "PAY-1", "TX1", decimal.NewFromInt(100), decimal.NewFromInt(400)),
			Hook:   func(pgx.Tx) error { return boom },
		}, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want hook error", err)
	}
	if !db.lastTx.rolledBack {
		t.Error("transaction was not rolled back")
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	riders := newFakeRiderStore(approvedRider(1, "100"))
	svc := newTestService(riders, &fakeActivityStore{}, &fakeDB{})

	_, err := svc.Debit(context.Background(), 1, func(r *rider.Rider) (*DebitIntent, error) {
		return &DebitIntent{
			Amount: decimal.NewFromInt(150),
			Entry:  activity.PaymentReceived(1, "PAY-1", "TX1", decimal.NewFromInt(150), decimal.Zero),
		}, nil
	})
	if !errors.Is(err, xerrors.ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}

	r, _ := riders.FindByID(context.Background(), 1)
	if !r.CurrentBalance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance changed to %s on failed debit", r.CurrentBalance)
	}
}

func TestDebitNilIntentSkips(t *testing.T) {
	riders := newFakeRiderStore(approvedRider(1, "100"))
	db := &fakeDB{}
	svc := newTestService(riders, &fakeActivityStore{}, db)

	r, err := svc.Debit(context.Background(), 1, func(*rider.Rider) (*DebitIntent, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if !r.CurrentBalance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance = %s, want unchanged 100", r.CurrentBalance)
	}
	if db.lastTx != nil {
		t.Error("skip should not open a transaction")
	}
}

func TestDebitMarkEarningsPaid(t *testing.T) {
	riders := newFakeRiderStore(approvedRider(1, "0"))
	activities := &fakeActivityStore{}
	svc := newTestService(riders, activities, &fakeDB{})

	_, err := svc.CreditDelivery(context.Background(), 1, &rider.CreditDeliveryRequest{OrderID: "ORD-1", Amount: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err = svc.Debit(context.Background(), 1, func(r *rider.Rider) (*DebitIntent, error) {
		return &DebitIntent{
			Amount:           r.CurrentBalance,
			Entry:            activity.PaymentReceived(1, "PAY-1", "TX1", r.CurrentBalance, decimal.Zero),
			MarkEarningsPaid: true,
		}, nil
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}

	if len(riders.markedPaid) != 1 || riders.markedPaid[0] != 1 {
		t.Errorf("markedPaid = %v, want [1]", riders.markedPaid)
	}
	e, _ := riders.FindEarningByOrder(context.Background(), 1, "ORD-1")
	if e.Status != rider.EarningPaid {
		t.Errorf("earning status = %s, want paid", e.Status)
	}
}

func TestReconcileReplaysLog(t *testing.T) {
	riders := newFakeRiderStore(approvedRider(1, "0"))
	activities := &fakeActivityStore{}
	svc := newTestService(riders, activities, &fakeDB{})

	ctx := context.Background()
	for i, amount := range []int64{156, 300} {
		_, err := svc.CreditDelivery(ctx, 1, &rider.CreditDeliveryRequest{
			OrderID: fmt.Sprintf("ORD-%d", i),
			Amount:  decimal.NewFromInt(amount),
		})
		if err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
	}

	// Approve a withdrawal of 100 via a status_change entry.
	debited := decimal.NewFromInt(100)
	_, err := svc.Debit(ctx, 1, func(r *rider.Rider) (*DebitIntent, error) {
		return &DebitIntent{
			Amount: debited,
			Entry:  activity.WithdrawalDecided(1, 1, "pending", "approved", &debited),
		}, nil
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}

	result, err := svc.Reconcile(ctx, 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	// Credits: 124.8 + 240 = 364.8; debit: 100.
	if !result.TotalCredits.Equal(decimal.RequireFromString("364.8")) {
		t.Errorf("TotalCredits = %s, want 364.8", result.TotalCredits)
	}
	if !result.TotalDebits.Equal(decimal.NewFromInt(100)) {
		t.Errorf("TotalDebits = %s, want 100", result.TotalDebits)
	}
	if !result.ComputedBalance.Equal(decimal.RequireFromString("264.8")) {
		t.Errorf("ComputedBalance = %s, want 264.8", result.ComputedBalance)
	}
	if result.EntriesReplayed != 3 {
		t.Errorf("EntriesReplayed = %d, want 3", result.EntriesReplayed)
	}
	if !result.Consistent {
		t.Errorf("Consistent = false, stored %s computed %s", result.StoredBalance, result.ComputedBalance)
	}
}

func TestReconcileDetectsDrift(t *testing.T) {
	riders := newFakeRiderStore(approvedRider(1, "0"))
	activities := &fakeActivityStore{}
	svc := newTestService(riders, activities, &fakeDB{})

	ctx := context.Background()
	if _, err := svc.CreditDelivery(ctx, 1, &rider.CreditDeliveryRequest{OrderID: "ORD-1", Amount: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// Corrupt the stored balance behind the ledger's back.
	riders.riders[1].CurrentBalance = decimal.NewFromInt(999)

	result, err := svc.Reconcile(ctx, 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Consistent {
		t.Error("drifted balance reported as consistent")
	}
}
