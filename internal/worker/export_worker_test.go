package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"yeongsu/internal/amqp"
	"yeongsu/internal/core"
	"yeongsu/internal/sheets/memory"
	"yeongsu/internal/storage"
	"yeongsu/internal/taxonomy"
)

func newTestWorker(t *testing.T) (*ExportWorker, *storage.SQLiteRepository, *memory.Appender) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "receipts.db"), taxonomy.Default())
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	appender := memory.New()
	return NewExportWorker(repo, appender, 10), repo, appender
}

func addReceipt(t *testing.T, repo *storage.SQLiteRepository) int64 {
	t.Helper()
	date, _ := core.ParseDate("2024-03-15")
	id, err := repo.AddReceipt(context.Background(), core.Draft{
		StoreName: "스타벅스",
		Date:      date,
		Items: []core.Item{
			{Name: "아메리카노", Category: "음식", Subcategory: "음료", Amount: core.Money{Won: 4500}},
		},
		Total: core.Money{Won: 4500},
	})
	if err != nil {
		t.Fatalf("AddReceipt: %v", err)
	}
	return id
}

func TestHandleSavedMessageExportsAndMarks(t *testing.T) {
	w, repo, appender := newTestWorker(t)
	ctx := context.Background()
	id := addReceipt(t, repo)

	if err := w.HandleSavedMessage(ctx, amqp.NewReceiptSavedMessage(id)); err != nil {
		t.Fatalf("HandleSavedMessage: %v", err)
	}

	got := appender.Receipts()
	if len(got) != 1 || got[0].StoreName != "스타벅스" {
		t.Fatalf("appended receipts = %+v, want one 스타벅스", got)
	}

	pending, err := repo.PendingExportReceipts(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExportReceipts: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after export = %v, want none", pending)
	}
}

func TestHandleSavedMessageUnknownReceipt(t *testing.T) {
	w, _, appender := newTestWorker(t)

	err := w.HandleSavedMessage(context.Background(), amqp.NewReceiptSavedMessage(999))
	if !errors.Is(err, storage.ErrReceiptNotFound) {
		t.Fatalf("err = %v, want ErrReceiptNotFound", err)
	}
	if len(appender.Receipts()) != 0 {
		t.Error("nothing should be appended for an unknown receipt")
	}
}

func TestProcessPendingSweepsQueue(t *testing.T) {
	w, repo, appender := newTestWorker(t)
	ctx := context.Background()
	addReceipt(t, repo)
	addReceipt(t, repo)

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if len(appender.Receipts()) != 2 {
		t.Fatalf("appended = %d, want 2", len(appender.Receipts()))
	}

	// A second sweep finds nothing left.
	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending second run: %v", err)
	}
	if len(appender.Receipts()) != 2 {
		t.Errorf("appended after second sweep = %d, want 2", len(appender.Receipts()))
	}
}

func TestProcessPendingKeepsFailedReceiptOutOfQueue(t *testing.T) {
	w, repo, appender := newTestWorker(t)
	ctx := context.Background()
	addReceipt(t, repo)

	appender.FailNext(errors.New("sheet unavailable"))
	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	// The failed receipt is marked error, not retried by the sweep.
	pending, err := repo.PendingExportReceipts(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExportReceipts: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after failure = %v, want none (marked error)", pending)
	}
	if len(appender.Receipts()) != 0 {
		t.Errorf("appended = %d, want 0", len(appender.Receipts()))
	}
}

func TestStartupCheckDrainsBacklog(t *testing.T) {
	w, repo, appender := newTestWorker(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		addReceipt(t, repo)
	}

	if err := w.StartupCheck(ctx); err != nil {
		t.Fatalf("StartupCheck: %v", err)
	}
	if len(appender.Receipts()) != 3 {
		t.Errorf("appended = %d, want 3", len(appender.Receipts()))
	}
}
