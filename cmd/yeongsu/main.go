package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"yeongsu/internal/amqp"
	"yeongsu/internal/cli"
	apphttp "yeongsu/internal/http"
	"yeongsu/internal/parser"
	"yeongsu/internal/services"
	"yeongsu/internal/stats"
	"yeongsu/internal/taxonomy"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	tax := taxonomy.Default()
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath, tax)

	// AMQP is optional. Without a broker the export worker's pending
	// sweep still picks everything up.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, export messages disabled", "error", err)
		}
	}

	svc := services.NewReceiptService(repo, parser.New(tax), amqpClient)
	engine := stats.NewEngine(repo)

	srv := apphttp.NewServer(":"+cfg.Port, svc, engine, cfg.CacheTTL)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := svc.Close(); err != nil {
			logger.Error("Service close error", "error", err)
		}
	})

	logger.Info("Starting yeongsu server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
