package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"hazina/internal/core"
)

func adminCommands() []subcommands.Command {
	return []subcommands.Command{
		&paramSetCmd{},
		&paramListCmd{},
		&meetingAddCmd{},
		&meetingListCmd{},
		&auditCmd{},
	}
}

type paramSetCmd struct {
	key   string
	value string
	desc  string
	actor string
}

func (*paramSetCmd) Name() string     { return "param-set" }
func (*paramSetCmd) Synopsis() string { return "set a group parameter" }
func (*paramSetCmd) Usage() string {
	return `param-set -key <key> -value <value> [-desc <text>]

  Sets a group parameter (share_value, penalty_rate,
  loan_interest_rate). Running batches are unaffected; the next batch
  reads the new value.
`
}

func (c *paramSetCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.key, "key", "", "Parameter key (required)")
	f.StringVar(&c.value, "value", "", "Parameter value (required)")
	f.StringVar(&c.desc, "desc", "", "Description")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *paramSetCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	if err := a.store.SetParam(ctx, c.key, c.value, c.desc, actorOr(a, c.actor)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Set %s = %s\n", c.key, c.value)
	return subcommands.ExitSuccess
}

type paramListCmd struct{}

func (*paramListCmd) Name() string     { return "param-list" }
func (*paramListCmd) Synopsis() string { return "list group parameters" }
func (*paramListCmd) Usage() string {
	return `param-list

  Lists the group's parameters.
`
}

func (*paramListCmd) SetFlags(f *flag.FlagSet) {}

func (c *paramListCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	params, err := a.store.ListParams(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE\tDESCRIPTION")
	for _, p := range params {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Key, p.Value, p.Description)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type meetingAddCmd struct {
	date      string
	agenda    string
	minutes   string
	attendees string
	actor     string
}

func (*meetingAddCmd) Name() string     { return "meeting-add" }
func (*meetingAddCmd) Synopsis() string { return "record a meeting with attendance" }
func (*meetingAddCmd) Usage() string {
	return `meeting-add -date <date> [-agenda <text>] [-minutes <text>] [-attendees <id,id,...>]

  Records a meeting and its attendance in one transaction.
`
}

func (c *meetingAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "Meeting date YYYY-MM-DD (default today)")
	f.StringVar(&c.agenda, "agenda", "", "Agenda")
	f.StringVar(&c.minutes, "minutes", "", "Minutes")
	f.StringVar(&c.attendees, "attendees", "", "Comma-separated member ids")
	f.StringVar(&c.actor, "actor", "", "Audit actor (default from config)")
}

func (c *meetingAddCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	date, err := dateOrToday(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid date '%s': %v\n", c.date, err)
		return subcommands.ExitUsageError
	}

	var attendees []int64
	if c.attendees != "" {
		for _, part := range strings.Split(c.attendees, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid attendee id '%s'\n", part)
				return subcommands.ExitUsageError
			}
			attendees = append(attendees, id)
		}
	}

	id, err := a.store.CreateMeeting(ctx, core.Meeting{
		Date:        date,
		Agenda:      c.agenda,
		Minutes:     c.minutes,
		AttendeeIDs: attendees,
	}, actorOr(a, c.actor))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Meeting %d recorded with %d attendees\n", id, len(attendees))
	return subcommands.ExitSuccess
}

type meetingListCmd struct{}

func (*meetingListCmd) Name() string     { return "meeting-list" }
func (*meetingListCmd) Synopsis() string { return "list meetings" }
func (*meetingListCmd) Usage() string {
	return `meeting-list

  Lists meetings with attendance counts, newest first.
`
}

func (*meetingListCmd) SetFlags(f *flag.FlagSet) {}

func (c *meetingListCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	meetings, err := a.store.ListMeetings(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tATTENDEES\tAGENDA")
	for _, m := range meetings {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", m.ID, m.Date, len(m.AttendeeIDs), m.Agenda)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type auditCmd struct {
	limit int
}

func (*auditCmd) Name() string     { return "audit" }
func (*auditCmd) Synopsis() string { return "show the audit trail" }
func (*auditCmd) Usage() string {
	return `audit [-limit <n>]

  Shows the audit trail, newest first. Every mutating operation appends
  here; nothing is ever removed.
`
}

func (c *auditCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 50, "Maximum entries")
}

func (c *auditCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)

	entries, err := a.store.ListAuditLog(ctx, c.limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTOR\tACTION\tTABLE\tRECORD\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.Actor, e.ActionType, e.TableName, e.RecordID, e.Details)
	}
	w.Flush()
	return subcommands.ExitSuccess
}
