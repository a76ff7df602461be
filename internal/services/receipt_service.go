package services

import (
	"context"
	"fmt"
	"log/slog"

	"yeongsu/internal/amqp"
	"yeongsu/internal/core"
	"yeongsu/internal/parser"
	"yeongsu/internal/storage"
)

// ReceiptService orchestrates receipt operations across the parser,
// SQLite and AMQP.
type ReceiptService struct {
	storage    *storage.SQLiteRepository
	parser     *parser.Parser
	amqpClient *amqp.Client
}

func NewReceiptService(storage *storage.SQLiteRepository, p *parser.Parser, amqpClient *amqp.Client) *ReceiptService {
	return &ReceiptService{
		storage:    storage,
		parser:     p,
		amqpClient: amqpClient,
	}
}

// Process parses a model response, persists the extracted receipt and
// publishes an export message.
func (s *ReceiptService) Process(ctx context.Context, modelText, ocrText string) (int64, error) {
	draft, err := s.parser.Parse(modelText, ocrText)
	if err != nil {
		return 0, err
	}

	return s.saveDraft(ctx, draft)
}

// Save persists an already-extracted draft. A zero receiptID inserts a
// new receipt, a nonzero one replaces the stored receipt and its items.
func (s *ReceiptService) Save(ctx context.Context, receiptID int64, draft core.Draft) (int64, error) {
	if receiptID != 0 {
		if err := s.storage.UpdateReceipt(ctx, receiptID, draft); err != nil {
			return 0, fmt.Errorf("update receipt: %w", err)
		}
		s.publishSaved(ctx, receiptID)
		return receiptID, nil
	}

	return s.saveDraft(ctx, draft)
}

func (s *ReceiptService) saveDraft(ctx context.Context, draft core.Draft) (int64, error) {
	id, err := s.storage.AddReceipt(ctx, draft)
	if err != nil {
		return 0, fmt.Errorf("save receipt: %w", err)
	}

	s.publishSaved(ctx, id)
	return id, nil
}

// publishSaved is best effort. The receipt is already in SQLite, the
// worker's pending sweep picks up anything the broker missed.
func (s *ReceiptService) publishSaved(ctx context.Context, id int64) {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping export message", "id", id)
		return
	}

	if err := s.amqpClient.PublishReceiptSaved(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish export message",
			"id", id, "error", err)
	}
}

// Get returns one stored receipt with items.
func (s *ReceiptService) Get(ctx context.Context, receiptID int64) (core.Receipt, error) {
	return s.storage.GetReceipt(ctx, receiptID)
}

// List returns stored receipts newest first, without items.
func (s *ReceiptService) List(ctx context.Context) ([]core.Receipt, error) {
	return s.storage.ListReceipts(ctx)
}

// Close closes both storage and AMQP connections.
func (s *ReceiptService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close receipt service: %v", errs)
	}

	return nil
}
