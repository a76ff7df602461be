package worker

import (
	"context"
	"fmt"
	"log/slog"

	"yeongsu/internal/amqp"
	"yeongsu/internal/sheets"
	"yeongsu/internal/storage"
)

// ExportWorker moves saved receipts from SQLite to the spreadsheet.
// It is driven by AMQP messages, with a pending sweep as a backup in
// case messages are lost.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	appender  sheets.ReceiptAppender
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, appender sheets.ReceiptAppender, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		storage:   storage,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleSavedMessage exports the receipt named by one AMQP message.
func (w *ExportWorker) HandleSavedMessage(ctx context.Context, msg *amqp.ReceiptSavedMessage) error {
	slog.InfoContext(ctx, "Processing export message", "id", msg.ID)

	if err := w.exportReceipt(ctx, msg.ID); err != nil {
		return fmt.Errorf("export receipt %d: %w", msg.ID, err)
	}
	return nil
}

// ProcessPending exports receipts still marked pending. Backup for
// lost AMQP messages.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	ids, err := w.storage.PendingExportReceipts(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending receipts: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending receipts", "count", len(ids))

	for _, id := range ids {
		if err := w.exportReceipt(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to export receipt", "id", id, "error", err)
		}
	}
	return nil
}

// StartupCheck drains a larger pending batch once at worker startup to
// recover from downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	ids, err := w.storage.PendingExportReceipts(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending receipts for startup check: %w", err)
	}
	if len(ids) == 0 {
		slog.InfoContext(ctx, "No pending receipts found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending receipts on startup, processing...", "count", len(ids))

	exported := 0
	failed := 0
	for _, id := range ids {
		if err := w.exportReceipt(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to export receipt during startup", "id", id, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(ids),
		"exported", exported,
		"errors", failed)

	return nil
}

func (w *ExportWorker) exportReceipt(ctx context.Context, id int64) error {
	receipt, err := w.storage.GetReceipt(ctx, id)
	if err != nil {
		if markErr := w.storage.MarkExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", id, "error", markErr)
		}
		return fmt.Errorf("get receipt: %w", err)
	}

	ref, err := w.appender.Append(ctx, receipt)
	if err != nil {
		if markErr := w.storage.MarkExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.storage.MarkExported(ctx, id); err != nil {
		// The export itself worked, only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark as exported", "id", id, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Receipt exported",
		"id", id,
		"sheet_ref", ref,
		"store_name", receipt.StoreName,
		"total_won", receipt.Total.Won)

	return nil
}
