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

func memberCommands() []subcommands.Command {
	return []subcommands.Command{
		&memberAddCmd{},
		&memberListCmd{},
		&memberSharesCmd{},
		&memberArchiveCmd{},
		&memberRemoveCmd{},
	}
}

type memberAddCmd struct {
	name     string
	phone    string
	email    string
	shares   int64
	role     string
	joinDate string
	actor    string
}

func (*memberAddCmd) Name() string     { return "member-add" }
func (*memberAddCmd) Synopsis() string { return "register a new member" }
func (*memberAddCmd) Usage() string {
	return `member-add -name <name> -phone <phone> -email <email> [-shares <n>] [-role <role>] [-join <date>]

  Registers a member. Phone and email must be unique across the group.
  Role is one of Chair, Treasurer, Secretary, Member.
`
}

func (c *memberAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Member name (required)")
	f.StringVar(&c.phone, "phone", "", "Phone number (required)")
	f.StringVar(&c.email, "email", "", "Email address (required)")
	f.Int64Var(&c.shares, "shares", 1, "Shares owned")
	f.StringVar(&c.role, "role", string(core.RoleMember), "Member role")
	f.StringVar(&c.joinDate, "join", "", "Join date YYYY-MM-DD (default today)")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *memberAddCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	join, err := dateOrToday(c.joinDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid join date '%s': %v\n", c.joinDate, err)
		return subcommands.ExitUsageError
	}

	id, err := a.store.CreateMember(ctx, core.Member{
		Name:        c.name,
		Phone:       c.phone,
		Email:       c.email,
		SharesOwned: c.shares,
		Role:        core.Role(c.role),
		JoinDate:    join,
	}, actorOr(a, c.actor))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Registered member %d: %s (%s, %d shares)\n", id, c.name, c.role, c.shares)
	return subcommands.ExitSuccess
}

type memberListCmd struct {
	all bool
}

func (*memberListCmd) Name() string     { return "member-list" }
func (*memberListCmd) Synopsis() string { return "list members" }
func (*memberListCmd) Usage() string {
	return `member-list [-all]

  Lists members. With -all, archived members are included.
`
}

func (c *memberListCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "Include archived members")
}

func (c *memberListCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	members, err := a.store.ListMembers(ctx, c.all)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE\tSHARES\tJOINED\tCONTRIBUTED\tSTATUS")
	for _, m := range members {
		status := "active"
		if m.ArchivedAt != nil {
			status = "archived"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			m.ID, m.Name, m.Role, m.SharesOwned, m.JoinDate, m.TotalContributed, status)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type memberSharesCmd struct {
	id     int64
	shares int64
	actor  string
}

func (*memberSharesCmd) Name() string     { return "member-shares" }
func (*memberSharesCmd) Synopsis() string { return "update a member's share count" }
func (*memberSharesCmd) Usage() string {
	return `member-shares -id <id> -shares <n>

  Sets a member's share count. Affects future contribution and dividend
  batches only; posted ledger entries are untouched.
`
}

func (c *memberSharesCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Member id (required)")
	f.Int64Var(&c.shares, "shares", 0, "New share count (required)")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *memberSharesCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	if err := a.store.UpdateMemberShares(ctx, c.id, c.shares, actorOr(a, c.actor)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Member %d now holds %d shares\n", c.id, c.shares)
	return subcommands.ExitSuccess
}

type memberArchiveCmd struct {
	id    int64
	actor string
}

func (*memberArchiveCmd) Name() string     { return "member-archive" }
func (*memberArchiveCmd) Synopsis() string { return "archive a member, keeping their history" }
func (*memberArchiveCmd) Usage() string {
	return `member-archive -id <id>

  Marks a member as left. Their ledger history stays on the books, and
  batch jobs skip them from now on.
`
}

func (c *memberArchiveCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Member id (required)")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *memberArchiveCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	if err := a.store.ArchiveMember(ctx, c.id, actorOr(a, c.actor)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Archived member %d\n", c.id)
	return subcommands.ExitSuccess
}

type memberRemoveCmd struct {
	id    int64
	actor string
}

func (*memberRemoveCmd) Name() string     { return "member-rm" }
func (*memberRemoveCmd) Synopsis() string { return "delete a member with no financial history" }
func (*memberRemoveCmd) Usage() string {
	return `member-rm -id <id>

  Deletes a member. Refused once the member has any contribution, loan,
  penalty, or ledger entry; archive instead.
`
}

func (c *memberRemoveCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Member id (required)")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *memberRemoveCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	if err := a.store.DeleteMember(ctx, c.id, actorOr(a, c.actor)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted member %d\n", c.id)
	return subcommands.ExitSuccess
}
