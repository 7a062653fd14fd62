package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"hazina/internal/core"
)

// MonthlyRunResult summarizes a monthly contribution generation run.
type MonthlyRunResult struct {
	Months  int
	Created int
	Total   core.Money
}

// RunMonthlyContributions generates one contribution per active member
// per calendar month in the inclusive range, amount = shares_owned ×
// share_value, dated to the first of the month. The whole run is one
// transaction: any failure, including the duplicate-period guard, rolls
// back every insertion.
//
// Members whose join date falls after a month are skipped for that
// month; a contribution may not predate its member.
func (s *Store) RunMonthlyContributions(ctx context.Context, from, to core.Date, set core.Settings, actor string) (*MonthlyRunResult, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if err := to.Validate(); err != nil {
		return nil, err
	}
	if from.After(to.Time) {
		return nil, core.ErrInvalidRange
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	res := &MonthlyRunResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		members, err := activeMembersTx(ctx, tx)
		if err != nil {
			return err
		}

		for month := from.FirstOfMonth(); !month.After(to.Time); month = month.AddMonths(1) {
			res.Months++
			period := month.Period()

			for _, m := range members {
				if m.JoinDate.After(month.Time) {
					continue
				}

				var exists bool
				err := tx.QueryRowContext(ctx,
					`SELECT EXISTS (SELECT 1 FROM contributions WHERE member_id = ? AND period = ?)`,
					m.ID, period).Scan(&exists)
				if err != nil {
					return fmt.Errorf("check period %s for member %d: %w", period, m.ID, err)
				}
				if exists {
					return fmt.Errorf("member %d period %s: %w", m.ID, period, core.ErrPeriodAlreadyPosted)
				}

				amount := set.ShareValue.MulShares(m.SharesOwned)
				ins, err := tx.ExecContext(ctx,
					`INSERT INTO contributions (member_id, amount_cents, date, period)
					 VALUES (?, ?, ?, ?)`,
					m.ID, amount.Cents, month.String(), period)
				if err != nil {
					return fmt.Errorf("insert contribution for member %d period %s: %w", m.ID, period, err)
				}
				contributionID, err := ins.LastInsertId()
				if err != nil {
					return fmt.Errorf("contribution id: %w", err)
				}

				if _, err := mirrorTransaction(ctx, tx,
					core.TxContribution, contributionID, m.ID, amount, month, ""); err != nil {
					return err
				}

				if _, err := tx.ExecContext(ctx,
					`UPDATE members SET total_contributed_cents = total_contributed_cents + ? WHERE id = ?`,
					amount.Cents, m.ID); err != nil {
					return fmt.Errorf("update member total: %w", err)
				}

				res.Created++
				res.Total = res.Total.Add(amount)
			}
		}

		return appendAudit(ctx, tx, "batch", "contributions", 0, actor,
			fmt.Sprintf("monthly run %s..%s: %d contributions, total %s",
				from.Period(), to.Period(), res.Created, res.Total))
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Monthly contribution run committed",
		"from", from.String(),
		"to", to.String(),
		"months", res.Months,
		"created", res.Created,
		"total_cents", res.Total.Cents)
	return res, nil
}

// DividendRunResult summarizes a dividend distribution run.
type DividendRunResult struct {
	RunDate     core.Date
	MembersPaid int
	Total       core.Money
	// ProfitPool is the flat interest outstanding across active loans at
	// run time. Informational: it does not cap the distribution, but it
	// is recorded with the run so an over-distribution is visible.
	ProfitPool core.Money
}

// DistributeDividends pays each active member shares_owned × share_value
// × rate/100, written directly as Dividend ledger entries (a dividend
// has no source record beyond the ledger). One transaction; one run per
// run date.
func (s *Store) DistributeDividends(ctx context.Context, runDate core.Date, rate core.Rate, set core.Settings, actor string) (*DividendRunResult, error) {
	if err := runDate.Validate(); err != nil {
		return nil, err
	}
	if err := rate.Validate(); err != nil {
		return nil, err
	}
	if rate.IsZero() {
		return nil, core.ErrInvalidRate
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	res := &DividendRunResult{RunDate: runDate}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM dividend_runs WHERE run_date = ?)`,
			runDate.String()).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check dividend run: %w", err)
		}
		if exists {
			return core.ErrDividendAlreadyRun
		}

		pool, err := profitPoolTx(ctx, tx)
		if err != nil {
			return err
		}
		res.ProfitPool = pool

		members, err := activeMembersTx(ctx, tx)
		if err != nil {
			return err
		}

		for _, m := range members {
			amount := set.ShareValue.MulShares(m.SharesOwned).ApplyRate(rate)
			if !amount.IsPositive() {
				continue
			}
			if _, err := mirrorTransaction(ctx, tx,
				core.TxDividend, 0, m.ID, amount, runDate, ""); err != nil {
				return err
			}
			res.MembersPaid++
			res.Total = res.Total.Add(amount)
		}

		runRow, err := tx.ExecContext(ctx,
			`INSERT INTO dividend_runs (run_date, rate, share_value_cents, total_distributed_cents,
			                            members_paid, profit_pool_cents, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runDate.String(), rate.String(), set.ShareValue.Cents, res.Total.Cents,
			res.MembersPaid, res.ProfitPool.Cents, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert dividend run: %w", err)
		}
		runID, err := runRow.LastInsertId()
		if err != nil {
			return fmt.Errorf("dividend run id: %w", err)
		}

		return appendAudit(ctx, tx, "batch", "dividend_runs", runID, actor,
			fmt.Sprintf("rate %s%%: %d members, total %s, profit pool %s",
				rate, res.MembersPaid, res.Total, res.ProfitPool))
	})
	if err != nil {
		return nil, err
	}

	if res.Total.Cents > res.ProfitPool.Cents {
		slog.WarnContext(ctx, "Dividend distribution exceeds profit pool",
			"total_cents", res.Total.Cents,
			"profit_pool_cents", res.ProfitPool.Cents)
	}

	slog.InfoContext(ctx, "Dividend distribution committed",
		"run_date", runDate.String(),
		"rate", rate.String(),
		"members_paid", res.MembersPaid,
		"total_cents", res.Total.Cents)
	return res, nil
}

// profitPoolTx sums the flat interest on all active loans.
func profitPoolTx(ctx context.Context, tx *sql.Tx) (core.Money, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE status = ?`, string(core.LoanActive))
	if err != nil {
		return core.Money{}, fmt.Errorf("list active loans: %w", err)
	}
	defer rows.Close()

	var pool core.Money
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return core.Money{}, fmt.Errorf("scan loan: %w", err)
		}
		pool = pool.Add(l.Interest())
	}
	return pool, rows.Err()
}
