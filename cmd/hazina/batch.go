package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"hazina/internal/core"
)

func batchCommands() []subcommands.Command {
	return []subcommands.Command{
		&runContributionsCmd{},
		&runDividendsCmd{},
		&runPenaltiesCmd{},
	}
}

type runContributionsCmd struct {
	from  string
	to    string
	actor string
}

func (*runContributionsCmd) Name() string { return "run-contributions" }
func (*runContributionsCmd) Synopsis() string {
	return "generate monthly contributions for a date range"
}
func (*runContributionsCmd) Usage() string {
	return `run-contributions -from <date> -to <date>

  Generates one contribution per active member per calendar month in the
  inclusive range, amount = shares × share_value. The run is atomic and
  idempotent: a month already posted for any member aborts the whole run
  with nothing written.
`
}

func (c *runContributionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "First month, any date within it (required)")
	f.StringVar(&c.to, "to", "", "Last month, any date within it (required)")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *runContributionsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	from, err := core.ParseDate(c.from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid -from date '%s': %v\n", c.from, err)
		return subcommands.ExitUsageError
	}
	to, err := core.ParseDate(c.to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid -to date '%s': %v\n", c.to, err)
		return subcommands.ExitUsageError
	}

	res, err := a.batch.RunMonthlyContributions(ctx, from, to, actorOr(a, c.actor))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Run complete: %d months, %d contributions, total %s\n",
		res.Months, res.Created, res.Total)
	return subcommands.ExitSuccess
}

type runDividendsCmd struct {
	date  string
	rate  string
	actor string
}

func (*runDividendsCmd) Name() string     { return "run-dividends" }
func (*runDividendsCmd) Synopsis() string { return "distribute a dividend to all active members" }
func (*runDividendsCmd) Usage() string {
	return `run-dividends -rate <pct> [-date <date>]

  Pays each active member shares × share_value × rate/100, posted as
  Dividend ledger entries. One run per run date; reruns are refused.
`
}

func (c *runDividendsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "Run date YYYY-MM-DD (default today)")
	f.StringVar(&c.rate, "rate", "", "Dividend percentage (required)")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *runDividendsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	rate, err := core.ParseRate(c.rate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid rate '%s': %v\n", c.rate, err)
		return subcommands.ExitUsageError
	}
	runDate, err := dateOrToday(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid date '%s': %v\n", c.date, err)
		return subcommands.ExitUsageError
	}

	res, err := a.batch.DistributeDividends(ctx, runDate, rate, actorOr(a, c.actor))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Distributed %s to %d members (profit pool %s)\n",
		res.Total, res.MembersPaid, res.ProfitPool)
	if res.Total.Cents > res.ProfitPool.Cents {
		fmt.Println("Warning: distribution exceeds the current profit pool")
	}
	return subcommands.ExitSuccess
}

type runPenaltiesCmd struct {
	date  string
	actor string
}

func (*runPenaltiesCmd) Name() string     { return "run-penalties" }
func (*runPenaltiesCmd) Synopsis() string { return "charge late penalties on overdue loans" }
func (*runPenaltiesCmd) Usage() string {
	return `run-penalties [-date <date>]

  Charges the configured penalty_rate on the outstanding balance of
  every overdue active loan as of the given date.
`
}

func (c *runPenaltiesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "Scan date YYYY-MM-DD (default today)")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *runPenaltiesCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	date, err := dateOrToday(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid date '%s': %v\n", c.date, err)
		return subcommands.ExitUsageError
	}

	applied, err := a.batch.ApplyLatePenalties(ctx, date, actorOr(a, c.actor))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Charged %d late penalties\n", applied)
	return subcommands.ExitSuccess
}
