// Command hazina is the treasurer's tool: it keeps the group's books
// in SQLite and exposes every ledger operation as a subcommand.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"hazina/internal/amqp"
	"hazina/internal/cli"
	"hazina/internal/config"
	"hazina/internal/log"
	"hazina/internal/services"
	"hazina/internal/storage"
)

// app carries the wired services into each subcommand's Execute.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   *storage.Store
	ledger  *services.LedgerService
	reports *services.ReportService
	batch   *services.BatchService
}

func appFrom(args []interface{}) *app {
	return args[0].(*app)
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitStore(logger, cfg.DBPath)
	defer store.Close()

	var amqpClient *amqp.Client
	if needsPublisher(os.Args) {
		amqpClient = cli.InitAMQP(logger, cfg, cfg.AMQPLedgerQueue)
		if amqpClient != nil {
			defer amqpClient.Close()
		}
	}

	reports := services.NewReportService(store)
	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		ledger:  services.NewLedgerService(store, amqpClient, reports),
		reports: reports,
		batch:   services.NewBatchService(store, reports),
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	for _, c := range memberCommands() {
		commander.Register(c, "members")
	}
	for _, c := range ledgerCommands() {
		commander.Register(c, "ledger")
	}
	for _, c := range loanCommands() {
		commander.Register(c, "loans")
	}
	for _, c := range batchCommands() {
		commander.Register(c, "batch")
	}
	for _, c := range reportCommands() {
		commander.Register(c, "reports")
	}
	for _, c := range adminCommands() {
		commander.Register(c, "admin")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background(), a)))
}

// needsPublisher avoids dialing the broker for read-only commands.
func needsPublisher(args []string) bool {
	for _, arg := range args[1:] {
		switch arg {
		case "contribute", "repay", "penalty":
			return true
		}
	}
	return false
}
