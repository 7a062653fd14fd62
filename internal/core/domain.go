package core

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleChair     Role = "Chair"
	RoleTreasurer Role = "Treasurer"
	RoleSecretary Role = "Secretary"
	RoleMember    Role = "Member"
)

const (
	LoanActive    LoanStatus = "Active"
	LoanPaid      LoanStatus = "Paid"
	LoanDefaulted LoanStatus = "Defaulted"
)

const (
	TxContribution  TransactionType = "Contribution"
	TxLoanRepayment TransactionType = "LoanRepayment"
	TxPenalty       TransactionType = "Penalty"
	TxDividend      TransactionType = "Dividend"
)

type (
	Role            string
	LoanStatus      string
	TransactionType string

	Date struct {
		time.Time
	}

	Member struct {
		ID               int64
		Name             string
		Phone            string
		Email            string
		SharesOwned      int64
		TotalContributed Money
		Role             Role
		JoinDate         Date
		ArchivedAt       *time.Time
	}

	Contribution struct {
		ID          int64
		MemberID    int64
		Amount      Money
		Date        Date
		Period      string // YYYY-MM when generated by the monthly batch, empty otherwise
		ExternalRef string
	}

	Loan struct {
		ID               int64
		MemberID         int64
		Principal        Money
		Rate             Rate
		DisbursementDate Date
		DueDate          Date
		Status           LoanStatus
	}

	LoanRepayment struct {
		ID          int64
		LoanID      int64
		Amount      Money
		Date        Date
		ExternalRef string
	}

	Penalty struct {
		ID       int64
		MemberID int64
		LoanID   int64 // 0 when not tied to a loan
		Amount   Money
		Date     Date
		Reason   string
	}

	// Transaction is a ledger entry. The ledger is append-only and is the
	// single source of truth for all financial reporting.
	Transaction struct {
		ID          int64
		Type        TransactionType
		SourceRef   int64 // id of the originating record, 0 for dividends
		MemberID    int64
		Amount      Money
		Date        Date
		ExternalRef string
	}

	Meeting struct {
		ID          int64
		Date        Date
		Agenda      string
		Minutes     string
		AttendeeIDs []int64
	}

	AuditEntry struct {
		ID         int64
		ActionType string
		TableName  string
		RecordID   int64
		Actor      string
		CreatedAt  time.Time
		Details    string
	}

	ConfigParam struct {
		Key         string
		Value       string
		Description string
	}
)

// Validation errors.
var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidRange  = errors.New("invalid date range")
	ErrInvalidRate   = errors.New("invalid rate")
	ErrInvalidShares = errors.New("shares owned must be at least 1")
	ErrInvalidRole   = errors.New("invalid member role")
	ErrEmptyName     = errors.New("empty member name")
	ErrEmptyPhone    = errors.New("empty member phone")
	ErrEmptyEmail    = errors.New("empty member email")
	ErrEmptyReason   = errors.New("empty penalty reason")
	ErrInvalidDue    = errors.New("due date must be after disbursement date")
	ErrBeforeJoin    = errors.New("record predates member join date")
)

// Referential and state errors surfaced by the storage layer.
var (
	ErrMemberNotFound       = errors.New("member not found")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrMemberArchived       = errors.New("member is archived")
	ErrMemberHasRecords     = errors.New("member has financial records")
	ErrLoanNotActive        = errors.New("loan is not active")
	ErrLoanOutstanding      = errors.New("loan has an outstanding balance")
	ErrPeriodAlreadyPosted  = errors.New("contribution already posted for period")
	ErrDividendAlreadyRun   = errors.New("dividend distribution already run for date")
	ErrDuplicateIdentity    = errors.New("phone or email already registered")
	ErrDuplicateExternalRef = errors.New("external reference already used")
)

func (r Role) Valid() bool {
	switch r {
	case RoleChair, RoleTreasurer, RoleSecretary, RoleMember:
		return true
	}
	return false
}

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanActive, LoanPaid, LoanDefaulted:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status change is allowed.
// Transitions are one-directional: Active may become Paid or Defaulted,
// Paid and Defaulted are terminal.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	return s == LoanActive && (next == LoanPaid || next == LoanDefaulted)
}

func (t TransactionType) Valid() bool {
	switch t {
	case TxContribution, TxLoanRepayment, TxPenalty, TxDividend:
		return true
	}
	return false
}

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Period returns the YYYY-MM key for the date's calendar month.
func (d Date) Period() string {
	return d.Format("2006-01")
}

// FirstOfMonth returns the first day of the date's month.
func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

// AddMonths steps whole calendar months, staying on the first of month.
func (d Date) AddMonths(n int) Date {
	return NewDate(d.Year(), int(d.Month())+n, 1)
}

// DaysUntil returns the number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(m.Phone) == "" {
		return ErrEmptyPhone
	}
	if strings.TrimSpace(m.Email) == "" {
		return ErrEmptyEmail
	}
	if m.SharesOwned < 1 {
		return ErrInvalidShares
	}
	if !m.Role.Valid() {
		return ErrInvalidRole
	}
	return m.JoinDate.Validate()
}

func (c Contribution) Validate() error {
	if err := c.Amount.Validate(); err != nil {
		return err
	}
	return c.Date.Validate()
}

func (l Loan) Validate() error {
	if err := l.Principal.Validate(); err != nil {
		return err
	}
	if err := l.Rate.Validate(); err != nil {
		return err
	}
	if err := l.DisbursementDate.Validate(); err != nil {
		return err
	}
	if err := l.DueDate.Validate(); err != nil {
		return err
	}
	if !l.DueDate.After(l.DisbursementDate.Time) {
		return ErrInvalidDue
	}
	return nil
}

// Interest is the flat interest charged on the loan, applied once at
// computation time rather than accrued.
func (l Loan) Interest() Money {
	return l.Principal.ApplyRate(l.Rate)
}

// TotalOwed is principal plus flat interest.
func (l Loan) TotalOwed() Money {
	return l.Principal.Add(l.Interest())
}

// Outstanding is the total owed minus repayments recorded to date.
// It may go negative on overpayment; callers decide how to treat that.
func (l Loan) Outstanding(repaid Money) Money {
	return l.TotalOwed().Sub(repaid)
}

// DaysOverdue is derived on every query, never stored. Zero when the
// loan is not yet past due.
func (l Loan) DaysOverdue(today Date) int {
	days := l.DueDate.DaysUntil(today)
	if days < 0 {
		return 0
	}
	return days
}

func (r LoanRepayment) Validate() error {
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	return r.Date.Validate()
}

func (p Penalty) Validate() error {
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Reason) == "" {
		return ErrEmptyReason
	}
	return nil
}

func (m Meeting) Validate() error {
	return m.Date.Validate()
}
