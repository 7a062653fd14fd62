package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"hazina/internal/core"
)

func loanCommands() []subcommands.Command {
	return []subcommands.Command{
		&loanAddCmd{},
		&loanListCmd{},
		&loanPaidCmd{},
		&loanDefaultCmd{},
	}
}

type loanAddCmd struct {
	member    int64
	principal string
	rate      string
	disbursed string
	due       string
	actor     string
}

func (*loanAddCmd) Name() string     { return "loan-add" }
func (*loanAddCmd) Synopsis() string { return "disburse a loan to a member" }
func (*loanAddCmd) Usage() string {
	return `loan-add -member <id> -principal <value> -due <date> [-rate <pct>] [-disbursed <date>]

  Disburses a loan with flat interest. The due date must fall after the
  disbursement date. Without -rate, the configured loan_interest_rate
  applies.
`
}

func (c *loanAddCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.member, "member", 0, "Member id (required)")
	f.StringVar(&c.principal, "principal", "", "Principal amount (required)")
	f.StringVar(&c.rate, "rate", "", "Flat interest percentage (default from config params)")
	f.StringVar(&c.disbursed, "disbursed", "", "Disbursement date YYYY-MM-DD (default today)")
	f.StringVar(&c.due, "due", "", "Due date YYYY-MM-DD (required)")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *loanAddCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	principal, err := core.ParseAmount(c.principal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid principal '%s': %v\n", c.principal, err)
		return subcommands.ExitUsageError
	}

	rateStr := c.rate
	if rateStr == "" {
		rateStr, err = a.store.GetParam(ctx, core.ParamInterestRate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: load interest rate: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	rate, err := core.ParseRate(rateStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid rate '%s': %v\n", rateStr, err)
		return subcommands.ExitUsageError
	}

	disbursed, err := dateOrToday(c.disbursed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid disbursement date '%s': %v\n", c.disbursed, err)
		return subcommands.ExitUsageError
	}
	due, err := core.ParseDate(c.due)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid due date '%s': %v\n", c.due, err)
		return subcommands.ExitUsageError
	}

	loan := core.Loan{
		MemberID:         c.member,
		Principal:        principal,
		Rate:             rate,
		DisbursementDate: disbursed,
		DueDate:          due,
	}
	id, err := a.ledger.DisburseLoan(ctx, loan, actorOr(a, c.actor))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Loan %d disbursed: principal %s at %s%%, total owed %s, due %s\n",
		id, principal, rate, loan.TotalOwed(), due)
	return subcommands.ExitSuccess
}

type loanListCmd struct {
	asOf string
}

func (*loanListCmd) Name() string     { return "loans" }
func (*loanListCmd) Synopsis() string { return "show the active loan book" }
func (*loanListCmd) Usage() string {
	return `loans [-as-of <date>]

  Shows every active loan with its repaid total, outstanding balance,
  and days overdue, all derived from the ledger.
`
}

func (c *loanListCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "as-of", "", "Reference date YYYY-MM-DD (default today)")
}

func (c *loanListCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	asOf, err := dateOrToday(c.asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid date '%s': %v\n", c.asOf, err)
		return subcommands.ExitUsageError
	}

	statuses, err := a.reports.ActiveLoans(ctx, asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMEMBER\tPRINCIPAL\tOWED\tREPAID\tOUTSTANDING\tDUE\tOVERDUE")
	for _, st := range statuses {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			st.Loan.ID, st.MemberName, st.Loan.Principal, st.Loan.TotalOwed(),
			st.Repaid, st.Outstanding, st.Loan.DueDate, st.DaysOverdue)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type loanPaidCmd struct {
	id    int64
	actor string
}

func (*loanPaidCmd) Name() string     { return "loan-paid" }
func (*loanPaidCmd) Synopsis() string { return "close a fully repaid loan" }
func (*loanPaidCmd) Usage() string {
	return `loan-paid -id <id>

  Marks a loan Paid. Refused while any balance is outstanding.
`
}

func (c *loanPaidCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Loan id (required)")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *loanPaidCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	if err := a.ledger.CloseLoan(ctx, c.id, actorOr(a, c.actor)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Loan %d closed\n", c.id)
	return subcommands.ExitSuccess
}

type loanDefaultCmd struct {
	id    int64
	actor string
}

func (*loanDefaultCmd) Name() string     { return "loan-default" }
func (*loanDefaultCmd) Synopsis() string { return "mark a loan as defaulted" }
func (*loanDefaultCmd) Usage() string {
	return `loan-default -id <id>

  Records the group's decision to write a loan off as defaulted. Never
  applied automatically, however overdue the loan is.
`
}

func (c *loanDefaultCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Loan id (required)")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *loanDefaultCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	if err := a.ledger.DefaultLoan(ctx, c.id, actorOr(a, c.actor)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Loan %d marked defaulted\n", c.id)
	return subcommands.ExitSuccess
}
