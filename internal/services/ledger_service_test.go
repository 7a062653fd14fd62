package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"hazina/internal/core"
	"hazina/internal/storage"
)

var memberSeq atomic.Int64

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "hazina.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func addMember(t *testing.T, store *storage.Store, name string, shares int64) int64 {
	t.Helper()
	n := memberSeq.Add(1)
	id, err := store.CreateMember(context.Background(), core.Member{
		Name:        name,
		Phone:       fmt.Sprintf("+2547%08d", n),
		Email:       fmt.Sprintf("%s-%d@example.com", name, n),
		SharesOwned: shares,
		Role:        core.RoleMember,
		JoinDate:    core.NewDate(2024, 1, 1),
	}, "test")
	if err != nil {
		t.Fatalf("create member %s: %v", name, err)
	}
	return id
}

type countingInvalidator struct {
	calls atomic.Int64
}

func (c *countingInvalidator) InvalidateAll() { c.calls.Add(1) }

func TestLedgerService_RecordContribution(t *testing.T) {
	store := newTestStore(t)
	views := &countingInvalidator{}
	svc := NewLedgerService(store, nil, views) // AMQP absent: publish skipped
	ctx := context.Background()
	memberID := addMember(t, store, "halima", 2)

	w, err := svc.RecordContribution(ctx, core.Contribution{
		MemberID: memberID,
		Amount:   core.Money{Cents: 4000_00},
		Date:     core.NewDate(2025, 3, 1),
	}, "treasurer")
	if err != nil {
		t.Fatalf("record contribution: %v", err)
	}
	if w.TransactionID == 0 {
		t.Error("expected a ledger entry id")
	}
	if views.calls.Load() != 1 {
		t.Errorf("invalidations = %d, want 1", views.calls.Load())
	}

	// A rejected write leaves the views alone.
	_, err = svc.RecordContribution(ctx, core.Contribution{
		MemberID: memberID, Amount: core.Money{}, Date: core.NewDate(2025, 3, 1),
	}, "treasurer")
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("got %v, want %v", err, core.ErrInvalidAmount)
	}
	if views.calls.Load() != 1 {
		t.Errorf("invalidations after rejection = %d, want 1", views.calls.Load())
	}
}

func TestLedgerService_LoanFlow(t *testing.T) {
	store := newTestStore(t)
	views := &countingInvalidator{}
	svc := NewLedgerService(store, nil, views)
	ctx := context.Background()
	memberID := addMember(t, store, "jengo", 1)

	loanID, err := svc.DisburseLoan(ctx, core.Loan{
		MemberID:         memberID,
		Principal:        core.Money{Cents: 10_000_00},
		Rate:             core.NewRate(10),
		DisbursementDate: core.NewDate(2025, 1, 1),
		DueDate:          core.NewDate(2025, 7, 1),
	}, "chair")
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}

	if _, err := svc.RecordRepayment(ctx, core.LoanRepayment{
		LoanID: loanID, Amount: core.Money{Cents: 11_000_00}, Date: core.NewDate(2025, 5, 1),
	}, "treasurer"); err != nil {
		t.Fatalf("repay: %v", err)
	}

	if err := svc.CloseLoan(ctx, loanID, "chair"); err != nil {
		t.Fatalf("close: %v", err)
	}
	loan, err := store.GetLoan(ctx, loanID)
	if err != nil {
		t.Fatal(err)
	}
	if loan.Status != core.LoanPaid {
		t.Errorf("status = %v, want %v", loan.Status, core.LoanPaid)
	}

	if err := svc.DefaultLoan(ctx, loanID, "chair"); !errors.Is(err, core.ErrLoanNotActive) {
		t.Fatalf("default paid loan: got %v, want %v", err, core.ErrLoanNotActive)
	}
}

func TestLedgerService_RecordPenalty(t *testing.T) {
	store := newTestStore(t)
	svc := NewLedgerService(store, nil, nil) // no views wired
	ctx := context.Background()
	memberID := addMember(t, store, "chiku", 1)

	w, err := svc.RecordPenalty(ctx, core.Penalty{
		MemberID: memberID,
		Amount:   core.Money{Cents: 250_00},
		Date:     core.NewDate(2025, 2, 2),
		Reason:   "missed meeting",
	}, "secretary")
	if err != nil {
		t.Fatalf("record penalty: %v", err)
	}
	if w.Type != core.TxPenalty {
		t.Errorf("type = %v, want %v", w.Type, core.TxPenalty)
	}
}
