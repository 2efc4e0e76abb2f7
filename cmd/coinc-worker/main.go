package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"coinc/internal/amqp"
	"coinc/internal/cli"
	applog "coinc/internal/log"
	gsheet "coinc/internal/sheets/google"
	"coinc/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateWorkerConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(applog.ComponentWorker)

	logger.Info("Starting coinc-worker")

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	journal, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		CredentialsFile: cfg.GoogleCredentialsFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err,
			applog.FieldComponent, applog.ComponentSheets)
		os.Exit(1)
	}
	if err := journal.EnsureHeader(ctx); err != nil {
		// Rows still append; the sheet just has no header.
		logger.Warn("Cannot write journal header", applog.FieldError, err,
			applog.FieldComponent, applog.ComponentSheets)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err,
			applog.FieldComponent, applog.ComponentAMQP, applog.FieldErrorType, applog.ErrorTypeNetwork)
		os.Exit(1)
	}

	jw := worker.NewJournalWorker(journal)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming transaction events", "queue", cfg.AMQPQueue)
		if err := client.Consume(gctx, jw.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	runErr := g.Wait()
	cli.RunCleanup(logger, 10*time.Second, func(context.Context) error { return client.Close() })

	if runErr != nil {
		logger.Error("Message consumption failed", applog.FieldError, runErr,
			applog.FieldOperation, applog.OpConsume)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
