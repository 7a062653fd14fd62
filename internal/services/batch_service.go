package services

import (
	"context"
	"fmt"
	"log/slog"

	"hazina/internal/core"
	"hazina/internal/storage"
)

// BatchService runs the periodic jobs. Each run loads one settings
// snapshot up front, so a parameter change mid-run cannot split the
// batch across two rates.
type BatchService struct {
	store *storage.Store
	views ViewInvalidator
}

func NewBatchService(store *storage.Store, views ViewInvalidator) *BatchService {
	return &BatchService{store: store, views: views}
}

// RunMonthlyContributions generates the month's contributions for every
// active member over the inclusive date range.
func (s *BatchService) RunMonthlyContributions(ctx context.Context, from, to core.Date, actor string) (*storage.MonthlyRunResult, error) {
	set, err := s.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	res, err := s.store.RunMonthlyContributions(ctx, from, to, set, actor)
	if err != nil {
		return nil, err
	}

	if s.views != nil {
		s.views.InvalidateAll()
	}
	slog.InfoContext(ctx, "Monthly contribution batch finished",
		"share_value_cents", set.ShareValue.Cents,
		"created", res.Created)
	return res, nil
}

// DistributeDividends pays a dividend at the given rate to every active
// member, once per run date.
func (s *BatchService) DistributeDividends(ctx context.Context, runDate core.Date, rate core.Rate, actor string) (*storage.DividendRunResult, error) {
	set, err := s.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	res, err := s.store.DistributeDividends(ctx, runDate, rate, set, actor)
	if err != nil {
		return nil, err
	}

	if s.views != nil {
		s.views.InvalidateAll()
	}
	return res, nil
}

// ApplyLatePenalties charges the configured penalty rate on the
// outstanding balance of every overdue active loan, dated to the scan
// date. The penalty reason records the loan and overdue days. A loan
// gets at most one penalty per scan date, so a rerun after a mid-scan
// failure charges only the loans the failed run missed.
func (s *BatchService) ApplyLatePenalties(ctx context.Context, today core.Date, actor string) (int, error) {
	set, err := s.store.LoadSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("load settings: %w", err)
	}
	if set.PenaltyRate.IsZero() {
		slog.InfoContext(ctx, "Penalty rate is zero, skipping late penalties")
		return 0, nil
	}

	loans, err := s.store.ActiveLoans(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("active loans: %w", err)
	}

	applied := 0
	for _, st := range loans {
		if st.DaysOverdue == 0 || !st.Outstanding.IsPositive() {
			continue
		}
		amount := st.Outstanding.ApplyRate(set.PenaltyRate)
		if !amount.IsPositive() {
			continue
		}
		charged, err := s.store.HasPenaltyOn(ctx, st.Loan.ID, today)
		if err != nil {
			return applied, fmt.Errorf("check loan %d: %w", st.Loan.ID, err)
		}
		if charged {
			continue
		}
		_, err = s.store.CreatePenalty(ctx, core.Penalty{
			MemberID: st.Loan.MemberID,
			LoanID:   st.Loan.ID,
			Amount:   amount,
			Date:     today,
			Reason:   fmt.Sprintf("loan %d overdue %d days", st.Loan.ID, st.DaysOverdue),
		}, actor)
		if err != nil {
			return applied, fmt.Errorf("penalize loan %d: %w", st.Loan.ID, err)
		}
		applied++
	}

	if applied > 0 && s.views != nil {
		s.views.InvalidateAll()
	}
	slog.InfoContext(ctx, "Late penalty scan finished",
		"date", today.String(),
		"penalties", applied)
	return applied, nil
}
