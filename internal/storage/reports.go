package storage

import (
	"context"
	"fmt"

	"hazina/internal/core"
)

// Reporting views are derived on every call from the ledger (and loan
// table where the ledger has no entry type), never materialized. They
// cannot drift from the books by construction.

// Portfolio is a member's position as seen from the ledger.
type Portfolio struct {
	Member        core.Member
	Contributions core.Money
	Repayments    core.Money
	Penalties     core.Money
	Dividends     core.Money
	LoansTaken    core.Money // sum of principals; disbursements are not ledger entries
}

// MemberPortfolio aggregates the member's ledger entries by type.
func (s *Store) MemberPortfolio(ctx context.Context, memberID int64) (*Portfolio, error) {
	member, err := s.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	p := &Portfolio{Member: *member}

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COALESCE(SUM(amount_cents), 0)
		 FROM transactions WHERE member_id = ? GROUP BY type`, memberID)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			typ   string
			cents int64
		)
		if err := rows.Scan(&typ, &cents); err != nil {
			return nil, fmt.Errorf("scan ledger total: %w", err)
		}
		switch core.TransactionType(typ) {
		case core.TxContribution:
			p.Contributions = core.Money{Cents: cents}
		case core.TxLoanRepayment:
			p.Repayments = core.Money{Cents: cents}
		case core.TxPenalty:
			p.Penalties = core.Money{Cents: cents}
		case core.TxDividend:
			p.Dividends = core.Money{Cents: cents}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(principal_cents), 0) FROM loans WHERE member_id = ?`,
		memberID).Scan(&p.LoansTaken.Cents)
	if err != nil {
		return nil, fmt.Errorf("sum loans taken: %w", err)
	}

	return p, nil
}

// ActiveLoanStatus is the per-loan view of the active book: everything
// derived, nothing stored.
type ActiveLoanStatus struct {
	Loan        core.Loan
	MemberName  string
	Repaid      core.Money
	Outstanding core.Money
	DaysOverdue int
}

// ActiveLoans reports every Active loan with its repaid total (from the
// ledger), outstanding balance, and days overdue as of today.
func (s *Store) ActiveLoans(ctx context.Context, today core.Date) ([]ActiveLoanStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.id, l.member_id, l.principal_cents, l.rate, l.disbursement_date, l.due_date, l.status,
		        m.name,
		        COALESCE((SELECT SUM(t.amount_cents)
		                  FROM transactions t
		                  JOIN loan_repayments r ON r.id = t.source_ref
		                  WHERE t.type = ? AND r.loan_id = l.id), 0)
		 FROM loans l
		 JOIN members m ON m.id = l.member_id
		 WHERE l.status = ?
		 ORDER BY l.id`,
		string(core.TxLoanRepayment), string(core.LoanActive))
	if err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}
	defer rows.Close()

	var statuses []ActiveLoanStatus
	for rows.Next() {
		var (
			st        ActiveLoanStatus
			rate      string
			disbursed string
			due       string
			status    string
		)
		err := rows.Scan(&st.Loan.ID, &st.Loan.MemberID, &st.Loan.Principal.Cents,
			&rate, &disbursed, &due, &status, &st.MemberName, &st.Repaid.Cents)
		if err != nil {
			return nil, fmt.Errorf("scan active loan: %w", err)
		}
		if st.Loan.Rate, err = core.ParseRate(rate); err != nil {
			return nil, fmt.Errorf("loan %d rate: %w", st.Loan.ID, err)
		}
		if st.Loan.DisbursementDate, err = core.ParseDate(disbursed); err != nil {
			return nil, fmt.Errorf("loan %d disbursement date: %w", st.Loan.ID, err)
		}
		if st.Loan.DueDate, err = core.ParseDate(due); err != nil {
			return nil, fmt.Errorf("loan %d due date: %w", st.Loan.ID, err)
		}
		st.Loan.Status = core.LoanStatus(status)

		st.Outstanding = st.Loan.Outstanding(st.Repaid)
		st.DaysOverdue = st.Loan.DaysOverdue(today)
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// LedgerTotals are group-wide sums per entry type.
type LedgerTotals struct {
	Contributions core.Money
	Repayments    core.Money
	Penalties     core.Money
	Dividends     core.Money
}

// GroupSummary aggregates the whole ledger by entry type.
func (s *Store) GroupSummary(ctx context.Context) (*LedgerTotals, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COALESCE(SUM(amount_cents), 0) FROM transactions GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger: %w", err)
	}
	defer rows.Close()

	var totals LedgerTotals
	for rows.Next() {
		var (
			typ   string
			cents int64
		)
		if err := rows.Scan(&typ, &cents); err != nil {
			return nil, fmt.Errorf("scan ledger total: %w", err)
		}
		switch core.TransactionType(typ) {
		case core.TxContribution:
			totals.Contributions = core.Money{Cents: cents}
		case core.TxLoanRepayment:
			totals.Repayments = core.Money{Cents: cents}
		case core.TxPenalty:
			totals.Penalties = core.Money{Cents: cents}
		case core.TxDividend:
			totals.Dividends = core.Money{Cents: cents}
		}
	}
	return &totals, rows.Err()
}
