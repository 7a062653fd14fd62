package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"hazina/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "hazina.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var memberSeq atomic.Int64

func addMember(t *testing.T, store *Store, name string, shares int64) int64 {
	t.Helper()
	id, err := store.CreateMember(context.Background(), core.Member{
		Name:        name,
		Phone:       fmt.Sprintf("+2547%08d", memberSeq.Add(1)),
		Email:       fmt.Sprintf("%s-%d@example.com", name, memberSeq.Load()),
		SharesOwned: shares,
		Role:        core.RoleMember,
		JoinDate:    core.NewDate(2024, 1, 1),
	}, "test")
	if err != nil {
		t.Fatalf("create member %s: %v", name, err)
	}
	return id
}

// countMirrors returns how many ledger entries exist for a source record.
func countMirrors(t *testing.T, store *Store, typ core.TransactionType, sourceRef int64) int {
	t.Helper()
	var n int
	err := store.db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE type = ? AND source_ref = ?`,
		string(typ), sourceRef).Scan(&n)
	if err != nil {
		t.Fatalf("count mirrors: %v", err)
	}
	return n
}

func TestContributionMirroredExactlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	memberID := addMember(t, store, "wanjiku", 2)

	w, err := store.CreateContribution(ctx, core.Contribution{
		MemberID:    memberID,
		Amount:      core.Money{Cents: 4000_00},
		Date:        core.NewDate(2025, 2, 1),
		ExternalRef: "MPESA-XY12",
	}, "treasurer")
	if err != nil {
		t.Fatalf("create contribution: %v", err)
	}

	if got := countMirrors(t, store, core.TxContribution, w.SourceID); got != 1 {
		t.Fatalf("ledger entries for contribution = %d, want exactly 1", got)
	}

	// The mirror copies type, member, amount, date, and reference.
	var (
		memID, cents int64
		date, ref    string
	)
	err = store.db.QueryRow(
		`SELECT member_id, amount_cents, date, external_ref FROM transactions WHERE id = ?`,
		w.TransactionID).Scan(&memID, &cents, &date, &ref)
	if err != nil {
		t.Fatalf("read ledger entry: %v", err)
	}
	if memID != memberID || cents != 4000_00 || date != "2025-02-01" || ref != "MPESA-XY12" {
		t.Errorf("mirror mismatch: member=%d cents=%d date=%s ref=%s", memID, cents, date, ref)
	}

	// Member running total tracks contributions.
	m, err := store.GetMember(ctx, memberID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m.TotalContributed.Cents != 4000_00 {
		t.Errorf("total contributed = %d, want %d", m.TotalContributed.Cents, 4000_00)
	}
}

func TestContributionValidationRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	memberID := addMember(t, store, "otieno", 1)

	cases := []struct {
		name string
		c    core.Contribution
		want error
	}{
		{"zero amount", core.Contribution{MemberID: memberID, Amount: core.Money{}, Date: core.NewDate(2025, 1, 1)}, core.ErrInvalidAmount},
		{"negative amount", core.Contribution{MemberID: memberID, Amount: core.Money{Cents: -5}, Date: core.NewDate(2025, 1, 1)}, core.ErrInvalidAmount},
		{"missing member", core.Contribution{MemberID: 999, Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 1, 1)}, core.ErrMemberNotFound},
		{"predates join", core.Contribution{MemberID: memberID, Amount: core.Money{Cents: 100}, Date: core.NewDate(2023, 6, 1)}, core.ErrBeforeJoin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.CreateContribution(ctx, tc.c, "test"); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	// Nothing leaked into the ledger.
	var n int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("ledger has %d entries after rejected writes, want 0", n)
	}
}

func TestDuplicateExternalRefRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	memberID := addMember(t, store, "njeri", 1)

	first := core.Contribution{MemberID: memberID, Amount: core.Money{Cents: 100_00}, Date: core.NewDate(2025, 1, 5), ExternalRef: "RCPT-1"}
	if _, err := store.CreateContribution(ctx, first, "test"); err != nil {
		t.Fatalf("first contribution: %v", err)
	}
	if _, err := store.CreateContribution(ctx, first, "test"); !errors.Is(err, core.ErrDuplicateExternalRef) {
		t.Fatalf("duplicate ref: got %v, want %v", err, core.ErrDuplicateExternalRef)
	}
}

func TestDuplicateIdentityRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := core.Member{
		Name: "kamau", Phone: "+254711111111", Email: "kamau@example.com",
		SharesOwned: 1, Role: core.RoleMember, JoinDate: core.NewDate(2024, 1, 1),
	}
	if _, err := store.CreateMember(ctx, m, "test"); err != nil {
		t.Fatalf("create member: %v", err)
	}
	m.Email = "other@example.com" // same phone
	if _, err := store.CreateMember(ctx, m, "test"); !errors.Is(err, core.ErrDuplicateIdentity) {
		t.Fatalf("duplicate phone: got %v, want %v", err, core.ErrDuplicateIdentity)
	}
}

func TestLoanLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	memberID := addMember(t, store, "moraa", 1)

	loanID, err := store.CreateLoan(ctx, core.Loan{
		MemberID:         memberID,
		Principal:        core.Money{Cents: 100_000_00},
		Rate:             core.NewRate(10),
		DisbursementDate: core.NewDate(2025, 1, 1),
		DueDate:          core.NewDate(2025, 7, 1),
	}, "chair")
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	// Paid is refused while the balance is outstanding.
	if err := store.MarkLoanPaid(ctx, loanID, "chair"); !errors.Is(err, core.ErrLoanOutstanding) {
		t.Fatalf("premature paid: got %v, want %v", err, core.ErrLoanOutstanding)
	}

	// Repay principal plus the 10% flat interest.
	for i, cents := range []int64{60_000_00, 50_000_00} {
		w, err := store.CreateRepayment(ctx, core.LoanRepayment{
			LoanID: loanID,
			Amount: core.Money{Cents: cents},
			Date:   core.NewDate(2025, 3+i, 1),
		}, "treasurer")
		if err != nil {
			t.Fatalf("repayment %d: %v", i, err)
		}
		if got := countMirrors(t, store, core.TxLoanRepayment, w.SourceID); got != 1 {
			t.Fatalf("ledger entries for repayment = %d, want exactly 1", got)
		}
		if w.MemberID != memberID {
			t.Errorf("repayment mirrored under member %d, want %d", w.MemberID, memberID)
		}
	}

	repaid, err := store.LoanRepaid(ctx, loanID)
	if err != nil {
		t.Fatalf("loan repaid: %v", err)
	}
	if repaid.Cents != 110_000_00 {
		t.Errorf("repaid = %d, want %d", repaid.Cents, 110_000_00)
	}

	loan, err := store.GetLoan(ctx, loanID)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if got := loan.Outstanding(repaid).Cents; got != 0 {
		t.Errorf("outstanding = %d, want 0", got)
	}

	if err := store.MarkLoanPaid(ctx, loanID, "chair"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	// Paid is terminal: no more repayments, no default.
	if _, err := store.CreateRepayment(ctx, core.LoanRepayment{
		LoanID: loanID, Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 6, 1),
	}, "treasurer"); !errors.Is(err, core.ErrLoanNotActive) {
		t.Fatalf("repayment on paid loan: got %v, want %v", err, core.ErrLoanNotActive)
	}
	if err := store.MarkLoanDefaulted(ctx, loanID, "chair"); !errors.Is(err, core.ErrLoanNotActive) {
		t.Fatalf("default on paid loan: got %v, want %v", err, core.ErrLoanNotActive)
	}
}

func TestRepaymentPredatingJoinRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	memberID := addMember(t, store, "chebet", 1)

	loanID, err := store.CreateLoan(ctx, core.Loan{
		MemberID:         memberID,
		Principal:        core.Money{Cents: 20_000_00},
		Rate:             core.NewRate(10),
		DisbursementDate: core.NewDate(2025, 1, 1),
		DueDate:          core.NewDate(2025, 7, 1),
	}, "chair")
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	// The member joined 2024-01-01; no financial record may predate that.
	if _, err := store.CreateRepayment(ctx, core.LoanRepayment{
		LoanID: loanID, Amount: core.Money{Cents: 100_00}, Date: core.NewDate(2023, 6, 1),
	}, "treasurer"); !errors.Is(err, core.ErrBeforeJoin) {
		t.Fatalf("repayment predating join: got %v, want %v", err, core.ErrBeforeJoin)
	}

	var n int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("ledger has %d entries after rejected repayment, want 0", n)
	}
}

func TestLoanCreationRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	memberID := addMember(t, store, "baraka", 1)

	base := core.Loan{
		MemberID:         memberID,
		Principal:        core.Money{Cents: 10_000_00},
		Rate:             core.NewRate(10),
		DisbursementDate: core.NewDate(2025, 1, 1),
		DueDate:          core.NewDate(2025, 6, 1),
	}

	cases := []struct {
		name   string
		mutate func(*core.Loan)
		want   error
	}{
		{"due equals disbursement", func(l *core.Loan) { l.DueDate = l.DisbursementDate }, core.ErrInvalidDue},
		{"due before disbursement", func(l *core.Loan) { l.DueDate = core.NewDate(2024, 12, 1) }, core.ErrInvalidDue},
		{"zero principal", func(l *core.Loan) { l.Principal = core.Money{} }, core.ErrInvalidAmount},
		{"missing member", func(l *core.Loan) { l.MemberID = 999 }, core.ErrMemberNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := base
			tc.mutate(&l)
			if _, err := store.CreateLoan(ctx, l, "test"); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := store.CreateRepayment(ctx, core.LoanRepayment{
		LoanID: 42, Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 1, 1),
	}, "test"); !errors.Is(err, core.ErrLoanNotFound) {
		t.Fatalf("repayment on missing loan: got %v, want %v", err, core.ErrLoanNotFound)
	}
}

func TestPenaltyMirrored(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	memberID := addMember(t, store, "zawadi", 1)

	w, err := store.CreatePenalty(ctx, core.Penalty{
		MemberID: memberID,
		Amount:   core.Money{Cents: 500_00},
		Date:     core.NewDate(2025, 4, 2),
		Reason:   "late contribution",
	}, "secretary")
	if err != nil {
		t.Fatalf("create penalty: %v", err)
	}
	if got := countMirrors(t, store, core.TxPenalty, w.SourceID); got != 1 {
		t.Fatalf("ledger entries for penalty = %d, want exactly 1", got)
	}

	// A penalty tied to a loan requires the loan to exist.
	if _, err := store.CreatePenalty(ctx, core.Penalty{
		MemberID: memberID, LoanID: 77, Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 4, 2), Reason: "late repayment",
	}, "secretary"); !errors.Is(err, core.ErrLoanNotFound) {
		t.Fatalf("penalty on missing loan: got %v, want %v", err, core.ErrLoanNotFound)
	}
}

func TestMemberDeletionGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	memberID := addMember(t, store, "pendo", 1)

	if _, err := store.CreateContribution(ctx, core.Contribution{
		MemberID: memberID, Amount: core.Money{Cents: 2000_00}, Date: core.NewDate(2025, 1, 1),
	}, "test"); err != nil {
		t.Fatalf("contribution: %v", err)
	}

	// A member with financial history cannot be deleted, only archived.
	if err := store.DeleteMember(ctx, memberID, "chair"); !errors.Is(err, core.ErrMemberHasRecords) {
		t.Fatalf("delete with records: got %v, want %v", err, core.ErrMemberHasRecords)
	}

	if err := store.ArchiveMember(ctx, memberID, "chair"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	// History survives the archive.
	p, err := store.MemberPortfolio(ctx, memberID)
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if p.Contributions.Cents != 2000_00 {
		t.Errorf("archived member contributions = %d, want %d", p.Contributions.Cents, 2000_00)
	}

	// Archived members take no new contributions.
	if _, err := store.CreateContribution(ctx, core.Contribution{
		MemberID: memberID, Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 2, 1),
	}, "test"); !errors.Is(err, core.ErrMemberArchived) {
		t.Fatalf("contribution to archived: got %v, want %v", err, core.ErrMemberArchived)
	}

	// A member with no records can be deleted.
	cleanID := addMember(t, store, "freshjoin", 1)
	if err := store.DeleteMember(ctx, cleanID, "chair"); err != nil {
		t.Fatalf("delete clean member: %v", err)
	}
	if _, err := store.GetMember(ctx, cleanID); !errors.Is(err, core.ErrMemberNotFound) {
		t.Fatalf("deleted member still present: %v", err)
	}
}

func TestAuditTrailWritten(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	memberID := addMember(t, store, "amani", 1)

	if _, err := store.CreateContribution(ctx, core.Contribution{
		MemberID: memberID, Amount: core.Money{Cents: 2000_00}, Date: core.NewDate(2025, 1, 1),
	}, "treasurer"); err != nil {
		t.Fatalf("contribution: %v", err)
	}

	entries, err := store.ListAuditLog(ctx, 10)
	if err != nil {
		t.Fatalf("list audit log: %v", err)
	}
	if len(entries) != 2 { // member registration + contribution
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	if entries[0].TableName != "contributions" || entries[0].Actor != "treasurer" {
		t.Errorf("unexpected newest entry: %+v", entries[0])
	}
}

func TestLoadSettingsFromSeededParams(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	set, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if set.ShareValue.Cents != 2000_00 {
		t.Errorf("share value = %d, want %d", set.ShareValue.Cents, 2000_00)
	}

	if err := store.SetParam(ctx, core.ParamShareValue, "2500", "raised at AGM", "chair"); err != nil {
		t.Fatalf("set param: %v", err)
	}
	set, err = store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("reload settings: %v", err)
	}
	if set.ShareValue.Cents != 2500_00 {
		t.Errorf("share value after update = %d, want %d", set.ShareValue.Cents, 2500_00)
	}
}

func TestMeetingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := addMember(t, store, "attendee-one", 1)
	b := addMember(t, store, "attendee-two", 2)

	id, err := store.CreateMeeting(ctx, core.Meeting{
		Date:        core.NewDate(2025, 6, 14),
		Agenda:      "loan applications",
		Minutes:     "two loans approved",
		AttendeeIDs: []int64{a, b},
	}, "secretary")
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}

	meetings, err := store.ListMeetings(ctx)
	if err != nil {
		t.Fatalf("list meetings: %v", err)
	}
	if len(meetings) != 1 || meetings[0].ID != id || len(meetings[0].AttendeeIDs) != 2 {
		t.Fatalf("unexpected meetings: %+v", meetings)
	}

	// Unknown attendee aborts the whole meeting write.
	if _, err := store.CreateMeeting(ctx, core.Meeting{
		Date:        core.NewDate(2025, 7, 1),
		AttendeeIDs: []int64{999},
	}, "secretary"); !errors.Is(err, core.ErrMemberNotFound) {
		t.Fatalf("meeting with ghost attendee: got %v, want %v", err, core.ErrMemberNotFound)
	}
	meetings, _ = store.ListMeetings(ctx)
	if len(meetings) != 1 {
		t.Fatalf("rolled-back meeting committed: %d meetings", len(meetings))
	}
}
