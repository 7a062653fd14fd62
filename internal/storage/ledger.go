package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"hazina/internal/core"
)

// mirrorTransaction appends the ledger entry for a source record inside
// the caller's transaction. If this insert fails the whole transaction
// fails, so a source record can never exist without its ledger row.
func mirrorTransaction(ctx context.Context, tx *sql.Tx, typ core.TransactionType,
	sourceRef, memberID int64, amount core.Money, date core.Date, externalRef string) (int64, error) {

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (type, source_ref, member_id, amount_cents, date, external_ref)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(typ), nullInt64(sourceRef), memberID, amount.Cents, date.String(), nullString(externalRef))
	if err != nil {
		return 0, fmt.Errorf("mirror ledger entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ledger entry id: %w", err)
	}
	return id, nil
}

func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

// LedgerWrite reports what a successful financial write produced; the
// services layer publishes it to external subscribers after commit.
type LedgerWrite struct {
	SourceID      int64
	TransactionID int64
	Type          core.TransactionType
	MemberID      int64
	Amount        core.Money
	Date          core.Date
}

// CreateContribution records a share contribution, its ledger mirror,
// the member's running total, and the audit row in one transaction.
func (s *Store) CreateContribution(ctx context.Context, c core.Contribution, actor string) (*LedgerWrite, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var w LedgerWrite
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := memberTx(ctx, tx, c.MemberID)
		if err != nil {
			return err
		}
		if m.ArchivedAt != nil {
			return core.ErrMemberArchived
		}
		if c.Date.Before(m.JoinDate.Time) {
			return core.ErrBeforeJoin
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO contributions (member_id, amount_cents, date, period, external_ref)
			 VALUES (?, ?, ?, ?, ?)`,
			c.MemberID, c.Amount.Cents, c.Date.String(), nullString(c.Period), nullString(c.ExternalRef))
		if uniqueViolation(err, "contributions.external_ref") {
			return core.ErrDuplicateExternalRef
		}
		if uniqueViolation(err, "contributions.member_id, contributions.period") {
			return core.ErrPeriodAlreadyPosted
		}
		if err != nil {
			return fmt.Errorf("insert contribution: %w", err)
		}
		if w.SourceID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("contribution id: %w", err)
		}

		w.TransactionID, err = mirrorTransaction(ctx, tx,
			core.TxContribution, w.SourceID, c.MemberID, c.Amount, c.Date, c.ExternalRef)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE members SET total_contributed_cents = total_contributed_cents + ? WHERE id = ?`,
			c.Amount.Cents, c.MemberID); err != nil {
			return fmt.Errorf("update member total: %w", err)
		}

		return appendAudit(ctx, tx, "create", "contributions", w.SourceID, actor,
			"amount "+c.Amount.String())
	})
	if err != nil {
		return nil, err
	}

	w.Type = core.TxContribution
	w.MemberID = c.MemberID
	w.Amount = c.Amount
	w.Date = c.Date

	slog.InfoContext(ctx, "Contribution recorded",
		"contribution_id", w.SourceID,
		"transaction_id", w.TransactionID,
		"member_id", c.MemberID,
		"amount_cents", c.Amount.Cents,
		"date", c.Date.String())
	return &w, nil
}

// CreateLoan disburses a loan. Disbursement is not one of the ledger's
// event types, so there is no mirror; the loan row and audit entry still
// commit together.
func (s *Store) CreateLoan(ctx context.Context, l core.Loan, actor string) (int64, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := memberTx(ctx, tx, l.MemberID)
		if err != nil {
			return err
		}
		if m.ArchivedAt != nil {
			return core.ErrMemberArchived
		}
		if l.DisbursementDate.Before(m.JoinDate.Time) {
			return core.ErrBeforeJoin
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO loans (member_id, principal_cents, rate, disbursement_date, due_date, status)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			l.MemberID, l.Principal.Cents, l.Rate.String(),
			l.DisbursementDate.String(), l.DueDate.String(), string(core.LoanActive))
		if err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("loan id: %w", err)
		}
		return appendAudit(ctx, tx, "create", "loans", id, actor,
			"principal "+l.Principal.String()+" at "+l.Rate.String()+"%")
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Loan disbursed",
		"loan_id", id,
		"member_id", l.MemberID,
		"principal_cents", l.Principal.Cents,
		"due_date", l.DueDate.String())
	return id, nil
}

// CreateRepayment records a repayment against an active loan, mirrored
// into the ledger under the loan's member.
func (s *Store) CreateRepayment(ctx context.Context, r core.LoanRepayment, actor string) (*LedgerWrite, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var w LedgerWrite
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		loan, err := loanTx(ctx, tx, r.LoanID)
		if err != nil {
			return err
		}
		if loan.Status != core.LoanActive {
			return core.ErrLoanNotActive
		}
		m, err := memberTx(ctx, tx, loan.MemberID)
		if err != nil {
			return err
		}
		if r.Date.Before(m.JoinDate.Time) {
			return core.ErrBeforeJoin
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO loan_repayments (loan_id, amount_cents, date, external_ref)
			 VALUES (?, ?, ?, ?)`,
			r.LoanID, r.Amount.Cents, r.Date.String(), nullString(r.ExternalRef))
		if uniqueViolation(err, "loan_repayments.external_ref") {
			return core.ErrDuplicateExternalRef
		}
		if err != nil {
			return fmt.Errorf("insert repayment: %w", err)
		}
		if w.SourceID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("repayment id: %w", err)
		}

		w.MemberID = loan.MemberID
		w.TransactionID, err = mirrorTransaction(ctx, tx,
			core.TxLoanRepayment, w.SourceID, loan.MemberID, r.Amount, r.Date, r.ExternalRef)
		if err != nil {
			return err
		}

		return appendAudit(ctx, tx, "create", "loan_repayments", w.SourceID, actor,
			fmt.Sprintf("loan %d amount %s", r.LoanID, r.Amount))
	})
	if err != nil {
		return nil, err
	}

	w.Type = core.TxLoanRepayment
	w.Amount = r.Amount
	w.Date = r.Date

	slog.InfoContext(ctx, "Repayment recorded",
		"repayment_id", w.SourceID,
		"transaction_id", w.TransactionID,
		"loan_id", r.LoanID,
		"amount_cents", r.Amount.Cents)
	return &w, nil
}

// CreatePenalty records a penalty, optionally tied to a loan.
func (s *Store) CreatePenalty(ctx context.Context, p core.Penalty, actor string) (*LedgerWrite, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var w LedgerWrite
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := memberTx(ctx, tx, p.MemberID)
		if err != nil {
			return err
		}
		if p.Date.Before(m.JoinDate.Time) {
			return core.ErrBeforeJoin
		}
		if p.LoanID != 0 {
			if _, err := loanTx(ctx, tx, p.LoanID); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO penalties (member_id, loan_id, amount_cents, date, reason)
			 VALUES (?, ?, ?, ?, ?)`,
			p.MemberID, nullInt64(p.LoanID), p.Amount.Cents, p.Date.String(), p.Reason)
		if err != nil {
			return fmt.Errorf("insert penalty: %w", err)
		}
		if w.SourceID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("penalty id: %w", err)
		}

		w.TransactionID, err = mirrorTransaction(ctx, tx,
			core.TxPenalty, w.SourceID, p.MemberID, p.Amount, p.Date, "")
		if err != nil {
			return err
		}

		return appendAudit(ctx, tx, "create", "penalties", w.SourceID, actor, p.Reason)
	})
	if err != nil {
		return nil, err
	}

	w.Type = core.TxPenalty
	w.MemberID = p.MemberID
	w.Amount = p.Amount
	w.Date = p.Date

	slog.InfoContext(ctx, "Penalty recorded",
		"penalty_id", w.SourceID,
		"transaction_id", w.TransactionID,
		"member_id", p.MemberID,
		"amount_cents", p.Amount.Cents,
		"reason", p.Reason)
	return &w, nil
}

func scanLoan(row interface{ Scan(...any) error }) (*core.Loan, error) {
	var (
		l         core.Loan
		rate      string
		disbursed string
		due       string
		status    string
	)
	err := row.Scan(&l.ID, &l.MemberID, &l.Principal.Cents, &rate, &disbursed, &due, &status)
	if err != nil {
		return nil, err
	}
	if l.Rate, err = core.ParseRate(rate); err != nil {
		return nil, fmt.Errorf("loan %d rate: %w", l.ID, err)
	}
	if l.DisbursementDate, err = core.ParseDate(disbursed); err != nil {
		return nil, fmt.Errorf("loan %d disbursement date: %w", l.ID, err)
	}
	if l.DueDate, err = core.ParseDate(due); err != nil {
		return nil, fmt.Errorf("loan %d due date: %w", l.ID, err)
	}
	l.Status = core.LoanStatus(status)
	return &l, nil
}

const loanColumns = `id, member_id, principal_cents, rate, disbursement_date, due_date, status`

func loanTx(ctx context.Context, tx *sql.Tx, id int64) (*core.Loan, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

func (s *Store) GetLoan(ctx context.Context, id int64) (*core.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

// LoanRepaid sums the ledger's repayment entries for a loan. Per the
// read contract the sum comes from the transactions table, joined back
// to repayments only to resolve the loan.
func (s *Store) LoanRepaid(ctx context.Context, loanID int64) (core.Money, error) {
	return loanRepaid(ctx, s.db, loanID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loanRepaid(ctx context.Context, q querier, loanID int64) (core.Money, error) {
	var cents int64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(t.amount_cents), 0)
		 FROM transactions t
		 JOIN loan_repayments r ON r.id = t.source_ref
		 WHERE t.type = ? AND r.loan_id = ?`,
		string(core.TxLoanRepayment), loanID).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum loan repayments: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// MarkLoanPaid closes a loan administratively. The transition is only
// allowed from Active and only once the outstanding balance has reached
// zero.
func (s *Store) MarkLoanPaid(ctx context.Context, id int64, actor string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		loan, err := loanTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !loan.Status.CanTransitionTo(core.LoanPaid) {
			return core.ErrLoanNotActive
		}
		repaid, err := loanRepaid(ctx, tx, id)
		if err != nil {
			return err
		}
		if loan.Outstanding(repaid).IsPositive() {
			return core.ErrLoanOutstanding
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE loans SET status = ? WHERE id = ?`, string(core.LoanPaid), id); err != nil {
			return fmt.Errorf("update loan status: %w", err)
		}
		return appendAudit(ctx, tx, "status", "loans", id, actor, "Active -> Paid")
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Loan marked paid", "loan_id", id)
	return nil
}

// MarkLoanDefaulted records the administrative decision to default a
// loan. It is not derived from overdue days.
func (s *Store) MarkLoanDefaulted(ctx context.Context, id int64, actor string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		loan, err := loanTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !loan.Status.CanTransitionTo(core.LoanDefaulted) {
			return core.ErrLoanNotActive
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE loans SET status = ? WHERE id = ?`, string(core.LoanDefaulted), id); err != nil {
			return fmt.Errorf("update loan status: %w", err)
		}
		return appendAudit(ctx, tx, "status", "loans", id, actor, "Active -> Defaulted")
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Loan marked defaulted", "loan_id", id)
	return nil
}

// HasPenaltyOn reports whether the loan has already been penalized on
// the given date. The late-penalty scan uses it to stay idempotent
// within a day.
func (s *Store) HasPenaltyOn(ctx context.Context, loanID int64, date core.Date) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM penalties WHERE loan_id = ? AND date = ?`,
		loanID, date.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check loan penalty: %w", err)
	}
	return n > 0, nil
}

// ListPenalties returns a member's penalties, newest first.
func (s *Store) ListPenalties(ctx context.Context, memberID int64) ([]core.Penalty, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, member_id, loan_id, amount_cents, date, reason
		 FROM penalties WHERE member_id = ? ORDER BY id DESC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list penalties: %w", err)
	}
	defer rows.Close()

	var penalties []core.Penalty
	for rows.Next() {
		var (
			p      core.Penalty
			loanID sql.NullInt64
			date   string
		)
		if err := rows.Scan(&p.ID, &p.MemberID, &loanID, &p.Amount.Cents, &date, &p.Reason); err != nil {
			return nil, fmt.Errorf("scan penalty: %w", err)
		}
		p.LoanID = loanID.Int64
		if p.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("penalty %d date: %w", p.ID, err)
		}
		penalties = append(penalties, p)
	}
	return penalties, rows.Err()
}

// ListTransactions returns recent ledger entries, newest first. Zero
// memberID means all members.
func (s *Store) ListTransactions(ctx context.Context, memberID int64, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, type, source_ref, member_id, amount_cents, date, external_ref
	          FROM transactions`
	args := []any{}
	if memberID != 0 {
		query += ` WHERE member_id = ?`
		args = append(args, memberID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var entries []core.Transaction
	for rows.Next() {
		var (
			t         core.Transaction
			typ       string
			sourceRef sql.NullInt64
			date      string
			ref       sql.NullString
		)
		if err := rows.Scan(&t.ID, &typ, &sourceRef, &t.MemberID, &t.Amount.Cents, &date, &ref); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TransactionType(typ)
		t.SourceRef = sourceRef.Int64
		t.ExternalRef = ref.String
		if t.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %d date: %w", t.ID, err)
		}
		entries = append(entries, t)
	}
	return entries, rows.Err()
}
