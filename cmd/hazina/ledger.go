package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"hazina/internal/core"
)

func ledgerCommands() []subcommands.Command {
	return []subcommands.Command{
		&contributeCmd{},
		&repayCmd{},
		&penaltyCmd{},
	}
}

type contributeCmd struct {
	member int64
	amount string
	date   string
	ref    string
	actor  string
}

func (*contributeCmd) Name() string     { return "contribute" }
func (*contributeCmd) Synopsis() string { return "record a share contribution" }
func (*contributeCmd) Usage() string {
	return `contribute -member <id> -amount <value> [-date <date>] [-ref <receipt>]

  Records a contribution and its ledger entry in one transaction. The
  optional -ref ties the posting to an external receipt and rejects
  duplicates.
`
}

func (c *contributeCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.member, "member", 0, "Member id (required)")
	f.StringVar(&c.amount, "amount", "", "Amount, e.g. 2000 or 2000.50 (required)")
	f.StringVar(&c.date, "date", "", "Posting date YYYY-MM-DD (default today)")
	f.StringVar(&c.ref, "ref", "", "External receipt reference")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *contributeCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	amount, err := core.ParseAmount(c.amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid amount '%s': %v\n", c.amount, err)
		return subcommands.ExitUsageError
	}
	date, err := dateOrToday(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid date '%s': %v\n", c.date, err)
		return subcommands.ExitUsageError
	}

	w, err := a.ledger.RecordContribution(ctx, core.Contribution{
		MemberID:    c.member,
		Amount:      amount,
		Date:        date,
		ExternalRef: c.ref,
	}, actorOr(a, c.actor))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Contribution %d posted, ledger entry %d, amount %s\n",
		w.SourceID, w.TransactionID, w.Amount)
	return subcommands.ExitSuccess
}

type repayCmd struct {
	loan   int64
	amount string
	date   string
	ref    string
	actor  string
}

func (*repayCmd) Name() string     { return "repay" }
func (*repayCmd) Synopsis() string { return "record a loan repayment" }
func (*repayCmd) Usage() string {
	return `repay -loan <id> -amount <value> [-date <date>] [-ref <receipt>]

  Records a repayment against an active loan, mirrored into the ledger
  under the borrowing member.
`
}

func (c *repayCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.loan, "loan", 0, "Loan id (required)")
	f.StringVar(&c.amount, "amount", "", "Amount (required)")
	f.StringVar(&c.date, "date", "", "Posting date YYYY-MM-DD (default today)")
	f.StringVar(&c.ref, "ref", "", "External receipt reference")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *repayCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	amount, err := core.ParseAmount(c.amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid amount '%s': %v\n", c.amount, err)
		return subcommands.ExitUsageError
	}
	date, err := dateOrToday(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid date '%s': %v\n", c.date, err)
		return subcommands.ExitUsageError
	}

	w, err := a.ledger.RecordRepayment(ctx, core.LoanRepayment{
		LoanID:      c.loan,
		Amount:      amount,
		Date:        date,
		ExternalRef: c.ref,
	}, actorOr(a, c.actor))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	repaid, err := a.store.LoanRepaid(ctx, c.loan)
	if err == nil {
		if loan, lerr := a.store.GetLoan(ctx, c.loan); lerr == nil {
			fmt.Printf("Repayment %d posted, outstanding %s\n", w.SourceID, loan.Outstanding(repaid))
			return subcommands.ExitSuccess
		}
	}
	fmt.Printf("Repayment %d posted, amount %s\n", w.SourceID, w.Amount)
	return subcommands.ExitSuccess
}

type penaltyCmd struct {
	member int64
	loan   int64
	amount string
	date   string
	reason string
	actor  string
}

func (*penaltyCmd) Name() string     { return "penalty" }
func (*penaltyCmd) Synopsis() string { return "charge a penalty" }
func (*penaltyCmd) Usage() string {
	return `penalty -member <id> -amount <value> -reason <text> [-loan <id>] [-date <date>]

  Charges a penalty, optionally tied to a loan.
`
}

func (c *penaltyCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.member, "member", 0, "Member id (required)")
	f.Int64Var(&c.loan, "loan", 0, "Related loan id")
	f.StringVar(&c.amount, "amount", "", "Amount (required)")
	f.StringVar(&c.date, "date", "", "Posting date YYYY-MM-DD (default today)")
	f.StringVar(&c.reason, "reason", "", "Reason (required)")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *penaltyCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	amount, err := core.ParseAmount(c.amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid amount '%s': %v\n", c.amount, err)
		return subcommands.ExitUsageError
	}
	date, err := dateOrToday(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid date '%s': %v\n", c.date, err)
		return subcommands.ExitUsageError
	}

	w, err := a.ledger.RecordPenalty(ctx, core.Penalty{
		MemberID: c.member,
		LoanID:   c.loan,
		Amount:   amount,
		Date:     date,
		Reason:   c.reason,
	}, actorOr(a, c.actor))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Penalty %d posted, amount %s\n", w.SourceID, w.Amount)
	return subcommands.ExitSuccess
}
