// Command overdue-worker periodically scans the active loan book and
// publishes a notice for every loan past its due date.
package main

import (
	"context"
	"time"

	"hazina/internal/cli"
	"hazina/internal/core"
	"hazina/internal/log"
	"hazina/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("Starting overdue-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	store := cli.InitStore(logger, cfg.DBPath)
	defer store.Close()

	amqpClient := cli.InitAMQP(logger, cfg, cfg.AMQPOverdueQueue)
	if amqpClient != nil {
		defer amqpClient.Close()
		logger.Info("AMQP client initialized, overdue notices will be published")
	}

	var scanner *worker.OverdueScanner
	if amqpClient != nil {
		scanner = worker.NewOverdueScanner(store, amqpClient, logger)
	} else {
		scanner = worker.NewOverdueScanner(store, nil, logger)
	}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	logger.Info("Overdue scanner configured",
		"interval", cfg.OverdueScanInterval,
		"db", cfg.DBPath)

	ticker := time.NewTicker(cfg.OverdueScanInterval)
	defer ticker.Stop()

	runScan(ctx, scanner, logger, time.Now())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runScan(ctx, scanner, logger, now)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("overdue-worker stopped")
}

func runScan(ctx context.Context, scanner *worker.OverdueScanner, logger *log.Logger, now time.Time) {
	today := core.NewDate(now.Year(), int(now.Month()), now.Day())
	if overdue, err := scanner.Scan(ctx, today); err != nil {
		logger.Error("Overdue scan failed", log.FieldError, err)
	} else if overdue > 0 {
		logger.Info("Overdue scan found late loans", "overdue", overdue)
	}
}
