package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"yeongsu/internal/core"
	"yeongsu/internal/parser"
	"yeongsu/internal/storage"
	"yeongsu/internal/taxonomy"
)

func newTestService(t *testing.T) *ReceiptService {
	t.Helper()
	tax := taxonomy.Default()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "receipts.db"), tax)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	svc := NewReceiptService(repo, parser.New(tax), nil)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestProcessParsesAndPersists(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	text := "가게명: 스타벅스\n날짜: 2024-03-15\n아메리카노: 음식:음료 (4,500원)\n총액: 4,500원"
	id, err := svc.Process(ctx, text, "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.StoreName != "스타벅스" || got.Total.Won != 4500 {
		t.Errorf("receipt = %+v, want 스타벅스 / 4500", got)
	}
	if len(got.Items) != 1 || got.Items[0].Name != "아메리카노" {
		t.Errorf("items = %+v, want one 아메리카노", got.Items)
	}
}

func TestProcessReturnsExtractionError(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Process(context.Background(), "날짜: 2024-03-15\n커피: 음식:음료 (4,500원)\n총액: 4,500원", "")
	var incomplete *core.IncompleteExtractionError
	if !errors.As(err, &incomplete) {
		t.Fatalf("err = %v, want IncompleteExtractionError", err)
	}
	if incomplete.Missing != core.MissingStore {
		t.Errorf("Missing = %q, want %q", incomplete.Missing, core.MissingStore)
	}
}

func TestSaveInsertsWhenIDZero(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	date, _ := core.ParseDate("2024-03-15")
	draft := core.Draft{
		StoreName: "김밥천국",
		Date:      date,
		Items: []core.Item{
			{Name: "참치김밥", Category: "음식", Subcategory: "점심", Amount: core.Money{Won: 4000}},
		},
		Total: core.Money{Won: 4000},
	}

	id, err := svc.Save(ctx, 0, draft)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == 0 {
		t.Fatal("Save returned zero id for insert")
	}
}

func TestSaveUpdatesExistingReceipt(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	date, _ := core.ParseDate("2024-03-15")
	draft := core.Draft{
		StoreName: "김밥천국",
		Date:      date,
		Items: []core.Item{
			{Name: "참치김밥", Category: "음식", Subcategory: "점심", Amount: core.Money{Won: 4000}},
		},
		Total: core.Money{Won: 4000},
	}
	id, err := svc.Save(ctx, 0, draft)
	if err != nil {
		t.Fatalf("Save insert: %v", err)
	}

	draft.StoreName = "김밥나라"
	draft.Items = []core.Item{
		{Name: "김치찌개", Category: "음식", Subcategory: "저녁", Amount: core.Money{Won: 8000}},
	}
	draft.Total = core.Money{Won: 8000}

	updatedID, err := svc.Save(ctx, id, draft)
	if err != nil {
		t.Fatalf("Save update: %v", err)
	}
	if updatedID != id {
		t.Errorf("updated id = %d, want %d", updatedID, id)
	}

	got, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.StoreName != "김밥나라" || len(got.Items) != 1 || got.Items[0].Name != "김치찌개" {
		t.Errorf("receipt after update = %+v", got)
	}
}

func TestSaveRejectsUnresolvableItem(t *testing.T) {
	svc := newTestService(t)

	date, _ := core.ParseDate("2024-03-15")
	draft := core.Draft{
		StoreName: "전자마트",
		Date:      date,
		Items: []core.Item{
			{Name: "노트북", Category: "쇼핑", Subcategory: "전자제품", Amount: core.Money{Won: 1200000}},
		},
		Total: core.Money{Won: 1200000},
	}

	_, err := svc.Save(context.Background(), 0, draft)
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
