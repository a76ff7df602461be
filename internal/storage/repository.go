// Package storage persists receipts and their classified items in
// SQLite. Category reference tables are seeded once from the canonical
// taxonomy and never mutated afterwards.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"yeongsu/internal/core"
	"yeongsu/internal/taxonomy"

	_ "modernc.org/sqlite"
)

// Export states of a receipt row.
const (
	ExportPending = "pending"
	ExportDone    = "exported"
	ExportError   = "error"
)

var ErrReceiptNotFound = errors.New("receipt not found")

type SQLiteRepository struct {
	db  *sql.DB
	tax *taxonomy.Taxonomy
}

func NewSQLiteRepository(dbPath string, tax *taxonomy.Taxonomy) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db, tax: tax}

	if err := repo.seedTaxonomy(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed taxonomy: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// seedTaxonomy inserts the category reference rows with the taxonomy's
// own identifiers. Idempotent; the taxonomy is the single source of
// truth for both ids and names.
func (r *SQLiteRepository) seedTaxonomy(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, cat := range r.tax.Categories() {
		mainID, _ := r.tax.MainID(cat)
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO main_categories (id, name) VALUES (?, ?)`,
			mainID, cat); err != nil {
			return fmt.Errorf("seed main category %s: %w", cat, err)
		}
		for _, sub := range r.tax.Subcategories(cat) {
			_, subID, err := r.tax.Resolve(cat, sub)
			if err != nil {
				return fmt.Errorf("resolve seed pair %s:%s: %w", cat, sub, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO sub_categories (id, main_category_id, name) VALUES (?, ?, ?)`,
				subID, mainID, sub); err != nil {
				return fmt.Errorf("seed sub category %s:%s: %w", cat, sub, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}
	return nil
}

// AddReceipt inserts the receipt and all of its items in one
// transaction. Every item's category pair is resolved through the
// taxonomy, fuzzy-correcting near misses; the first unresolvable pair
// rolls the whole call back.
func (r *SQLiteRepository) AddReceipt(ctx context.Context, d core.Draft) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &core.OperationFailedError{Op: "add receipt", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO receipts (store_name, date, total_amount) VALUES (?, ?, ?)`,
		d.StoreName, d.Date.String(), d.Total.Won)
	if err != nil {
		return 0, &core.OperationFailedError{Op: "add receipt", Err: err}
	}
	receiptID, err := res.LastInsertId()
	if err != nil {
		return 0, &core.OperationFailedError{Op: "add receipt", Err: err}
	}

	if err := r.insertItems(ctx, tx, receiptID, d.Items); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, &core.OperationFailedError{Op: "add receipt", Err: err}
	}

	slog.InfoContext(ctx, "Receipt saved",
		"receipt_id", receiptID,
		"store_name", d.StoreName,
		"date", d.Date.String(),
		"items", len(d.Items),
		"total_won", d.Total.Won)

	return receiptID, nil
}

// UpdateReceipt replaces the receipt's scalar fields and its whole item
// set in one transaction. Updating a nonexistent id performs zero row
// changes and returns nil. A successful update re-queues the receipt
// for export.
func (r *SQLiteRepository) UpdateReceipt(ctx context.Context, receiptID int64, d core.Draft) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.OperationFailedError{Op: "update receipt", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE receipts
		 SET store_name = ?, date = ?, total_amount = ?, export_status = ?, exported_at = NULL
		 WHERE id = ?`,
		d.StoreName, d.Date.String(), d.Total.Won, ExportPending, receiptID)
	if err != nil {
		return &core.OperationFailedError{Op: "update receipt", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &core.OperationFailedError{Op: "update receipt", Err: err}
	}
	if affected == 0 {
		slog.WarnContext(ctx, "Update of unknown receipt ignored", "receipt_id", receiptID)
		return nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE receipt_id = ?`, receiptID); err != nil {
		return &core.OperationFailedError{Op: "update receipt", Err: err}
	}

	if err := r.insertItems(ctx, tx, receiptID, d.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &core.OperationFailedError{Op: "update receipt", Err: err}
	}

	slog.InfoContext(ctx, "Receipt updated", "receipt_id", receiptID, "items", len(d.Items))
	return nil
}

func (r *SQLiteRepository) insertItems(ctx context.Context, tx *sql.Tx, receiptID int64, items []core.Item) error {
	for _, item := range items {
		mainID, subID, err := r.tax.Resolve(item.Category, item.Subcategory)
		if err != nil {
			// ValidationError aborts the whole transaction.
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (receipt_id, name, main_category_id, sub_category_id, amount)
			 VALUES (?, ?, ?, ?, ?)`,
			receiptID, item.Name, mainID, subID, item.Amount.Won); err != nil {
			return &core.OperationFailedError{Op: "insert item", Err: err}
		}
	}
	return nil
}

// GetReceipt loads one receipt with its items, category names resolved
// back from the reference tables.
func (r *SQLiteRepository) GetReceipt(ctx context.Context, receiptID int64) (core.Receipt, error) {
	var (
		rec  core.Receipt
		date string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, store_name, date, total_amount FROM receipts WHERE id = ?`,
		receiptID).Scan(&rec.ID, &rec.StoreName, &date, &rec.Total.Won)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Receipt{}, ErrReceiptNotFound
	}
	if err != nil {
		return core.Receipt{}, &core.OperationFailedError{Op: "get receipt", Err: err}
	}
	if rec.Date, err = core.ParseDate(date); err != nil {
		return core.Receipt{}, &core.OperationFailedError{Op: "get receipt", Err: err}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT i.name, mc.name, sc.name, i.amount
		 FROM items i
		 JOIN main_categories mc ON i.main_category_id = mc.id
		 JOIN sub_categories sc ON i.sub_category_id = sc.id
		 WHERE i.receipt_id = ?
		 ORDER BY i.id`,
		receiptID)
	if err != nil {
		return core.Receipt{}, &core.OperationFailedError{Op: "get receipt items", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var it core.Item
		if err := rows.Scan(&it.Name, &it.Category, &it.Subcategory, &it.Amount.Won); err != nil {
			return core.Receipt{}, &core.OperationFailedError{Op: "get receipt items", Err: err}
		}
		rec.Items = append(rec.Items, it)
	}
	if err := rows.Err(); err != nil {
		return core.Receipt{}, &core.OperationFailedError{Op: "get receipt items", Err: err}
	}

	return rec, nil
}

// ListReceipts returns all receipts, newest date first, without items.
func (r *SQLiteRepository) ListReceipts(ctx context.Context) ([]core.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, store_name, date, total_amount FROM receipts ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, &core.OperationFailedError{Op: "list receipts", Err: err}
	}
	defer rows.Close()

	var out []core.Receipt
	for rows.Next() {
		var (
			rec  core.Receipt
			date string
		)
		if err := rows.Scan(&rec.ID, &rec.StoreName, &date, &rec.Total.Won); err != nil {
			return nil, &core.OperationFailedError{Op: "list receipts", Err: err}
		}
		if rec.Date, err = core.ParseDate(date); err != nil {
			return nil, &core.OperationFailedError{Op: "list receipts", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.OperationFailedError{Op: "list receipts", Err: err}
	}
	return out, nil
}

// PendingExportReceipts lists ids of receipts not yet exported, oldest
// first.
func (r *SQLiteRepository) PendingExportReceipts(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM receipts WHERE export_status = ? ORDER BY id LIMIT ?`,
		ExportPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pending export receipts: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending export receipt: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MarkExported records a successful export.
func (r *SQLiteRepository) MarkExported(ctx context.Context, receiptID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE receipts SET export_status = ?, exported_at = CURRENT_TIMESTAMP WHERE id = ?`,
		ExportDone, receiptID); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	slog.InfoContext(ctx, "Receipt marked as exported", "receipt_id", receiptID)
	return nil
}

// MarkExportError records a failed export attempt.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, receiptID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE receipts SET export_status = ? WHERE id = ?`,
		ExportError, receiptID); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	slog.WarnContext(ctx, "Receipt marked with export error", "receipt_id", receiptID)
	return nil
}
