package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
)

func reportCommands() []subcommands.Command {
	return []subcommands.Command{
		&portfolioCmd{},
		&statementCmd{},
		&transactionsCmd{},
	}
}

type portfolioCmd struct {
	member int64
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "show a member's position" }
func (*portfolioCmd) Usage() string {
	return `portfolio -member <id>

  Shows a member's totals per ledger entry type, plus loans taken.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.member, "member", 0, "Member id (required)")
}

func (c *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	p, err := a.reports.MemberPortfolio(ctx, c.member)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("%s (%s, %d shares, joined %s)\n",
		p.Member.Name, p.Member.Role, p.Member.SharesOwned, p.Member.JoinDate)
	fmt.Printf("  Contributions: %s\n", p.Contributions)
	fmt.Printf("  Repayments:    %s\n", p.Repayments)
	fmt.Printf("  Penalties:     %s\n", p.Penalties)
	fmt.Printf("  Dividends:     %s\n", p.Dividends)
	fmt.Printf("  Loans taken:   %s\n", p.LoansTaken)
	return subcommands.ExitSuccess
}

type statementCmd struct {
	asOf string
}

func (*statementCmd) Name() string     { return "statement" }
func (*statementCmd) Synopsis() string { return "show the group-wide statement" }
func (*statementCmd) Usage() string {
	return `statement [-as-of <date>]

  Shows the group's ledger totals, active loan book, and member roll,
  the view read out at meetings.
`
}

func (c *statementCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "as-of", "", "Reference date YYYY-MM-DD (default today)")
}

func (c *statementCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	asOf, err := dateOrToday(c.asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid date '%s': %v\n", c.asOf, err)
		return subcommands.ExitUsageError
	}

	st, err := a.reports.GroupStatement(ctx, asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Group statement as of %s\n", st.AsOf)
	fmt.Printf("  Contributions: %s\n", st.Totals.Contributions)
	fmt.Printf("  Repayments:    %s\n", st.Totals.Repayments)
	fmt.Printf("  Penalties:     %s\n", st.Totals.Penalties)
	fmt.Printf("  Dividends:     %s\n", st.Totals.Dividends)
	fmt.Printf("  Members:       %d active\n", len(st.Members))
	fmt.Printf("  Active loans:  %d\n", len(st.Loans))

	if len(st.Loans) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tMEMBER\tOUTSTANDING\tDUE\tOVERDUE")
		for _, l := range st.Loans {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%d\n",
				l.Loan.ID, l.MemberName, l.Outstanding, l.Loan.DueDate, l.DaysOverdue)
		}
		w.Flush()
	}
	return subcommands.ExitSuccess
}

type transactionsCmd struct {
	member int64
	limit  int
}

func (*transactionsCmd) Name() string     { return "transactions" }
func (*transactionsCmd) Synopsis() string { return "list ledger entries" }
func (*transactionsCmd) Usage() string {
	return `transactions [-member <id>] [-limit <n>]

  Lists ledger entries newest first, optionally for one member.
`
}

func (c *transactionsCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.member, "member", 0, "Member id (0 = all)")
	f.IntVar(&c.limit, "limit", 50, "Maximum entries")
}

func (c *transactionsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	entries, err := a.store.ListTransactions(ctx, c.member, c.limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tMEMBER\tAMOUNT\tDATE\tREF")
	for _, t := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
			t.ID, t.Type, t.MemberID, t.Amount, t.Date, t.ExternalRef)
	}
	w.Flush()
	return subcommands.ExitSuccess
}
