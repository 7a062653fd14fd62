package services

import (
	"context"
	"errors"
	"testing"

	"hazina/internal/core"
)

func TestBatchService_RunMonthlyContributions(t *testing.T) {
	store := newTestStore(t)
	svc := NewBatchService(store, nil)
	ctx := context.Background()
	memberID := addMember(t, store, "batch-member", 2)

	res, err := svc.RunMonthlyContributions(ctx,
		core.NewDate(2025, 1, 1), core.NewDate(2025, 3, 1), "treasurer")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Created != 3 {
		t.Errorf("created = %d, want 3", res.Created)
	}
	// Seeded share value of 2000.00 at 2 shares.
	if res.Total.Cents != 3*2*2000_00 {
		t.Errorf("total = %d, want %d", res.Total.Cents, 3*2*2000_00)
	}

	m, err := store.GetMember(ctx, memberID)
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalContributed.Cents != res.Total.Cents {
		t.Errorf("running total = %d, want %d", m.TotalContributed.Cents, res.Total.Cents)
	}
}

func TestBatchService_RunUsesSettingsSnapshot(t *testing.T) {
	store := newTestStore(t)
	svc := NewBatchService(store, nil)
	ctx := context.Background()
	addMember(t, store, "snap-member", 1)

	if err := store.SetParam(ctx, core.ParamShareValue, "3000", "raised", "chair"); err != nil {
		t.Fatal(err)
	}

	res, err := svc.RunMonthlyContributions(ctx,
		core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 1), "treasurer")
	if err != nil {
		t.Fatal(err)
	}
	if res.Total.Cents != 3000_00 {
		t.Errorf("total = %d, want the updated share value %d", res.Total.Cents, 3000_00)
	}
}

func TestBatchService_DistributeDividends(t *testing.T) {
	store := newTestStore(t)
	views := &countingInvalidator{}
	svc := NewBatchService(store, views)
	ctx := context.Background()
	addMember(t, store, "div-a", 1)
	addMember(t, store, "div-b", 3)

	res, err := svc.DistributeDividends(ctx, core.NewDate(2025, 12, 31), core.NewRate(5), "treasurer")
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if res.MembersPaid != 2 {
		t.Errorf("members paid = %d, want 2", res.MembersPaid)
	}
	// 2000.00 × 5% = 100.00 per share; 1 + 3 shares.
	if res.Total.Cents != 4*100_00 {
		t.Errorf("total = %d, want %d", res.Total.Cents, 4*100_00)
	}
	if views.calls.Load() != 1 {
		t.Errorf("invalidations = %d, want 1", views.calls.Load())
	}

	_, err = svc.DistributeDividends(ctx, core.NewDate(2025, 12, 31), core.NewRate(5), "treasurer")
	if !errors.Is(err, core.ErrDividendAlreadyRun) {
		t.Fatalf("rerun: got %v, want %v", err, core.ErrDividendAlreadyRun)
	}
}

func TestBatchService_ApplyLatePenalties(t *testing.T) {
	store := newTestStore(t)
	svc := NewBatchService(store, nil)
	ctx := context.Background()
	memberID := addMember(t, store, "late-borrower", 1)

	loanID, err := store.CreateLoan(ctx, core.Loan{
		MemberID:         memberID,
		Principal:        core.Money{Cents: 10_000_00},
		Rate:             core.NewRate(10),
		DisbursementDate: core.NewDate(2025, 1, 1),
		DueDate:          core.NewDate(2025, 6, 1),
	}, "chair")
	if err != nil {
		t.Fatal(err)
	}

	// Before the due date nothing is charged.
	applied, err := svc.ApplyLatePenalties(ctx, core.NewDate(2025, 5, 1), "system")
	if err != nil {
		t.Fatal(err)
	}
	if applied != 0 {
		t.Errorf("applied before due = %d, want 0", applied)
	}

	applied, err = svc.ApplyLatePenalties(ctx, core.NewDate(2025, 6, 15), "system")
	if err != nil {
		t.Fatal(err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}

	// Outstanding 11000.00 at the seeded 5% penalty rate.
	p, err := store.MemberPortfolio(ctx, memberID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Penalties.Cents != 550_00 {
		t.Errorf("penalty = %d, want %d", p.Penalties.Cents, 550_00)
	}

	// The penalty references the loan it punishes.
	penalties, err := store.ListPenalties(ctx, memberID)
	if err != nil {
		t.Fatal(err)
	}
	if len(penalties) != 1 || penalties[0].LoanID != loanID {
		t.Errorf("penalties = %+v, want one for loan %d", penalties, loanID)
	}

	// A same-day rerun charges nothing more.
	applied, err = svc.ApplyLatePenalties(ctx, core.NewDate(2025, 6, 15), "system")
	if err != nil {
		t.Fatal(err)
	}
	if applied != 0 {
		t.Errorf("applied on rerun = %d, want 0", applied)
	}
	p, err = store.MemberPortfolio(ctx, memberID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Penalties.Cents != 550_00 {
		t.Errorf("penalty after rerun = %d, want %d", p.Penalties.Cents, 550_00)
	}
}
