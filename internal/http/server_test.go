package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"yeongsu/internal/parser"
	"yeongsu/internal/services"
	"yeongsu/internal/stats"
	"yeongsu/internal/storage"
	"yeongsu/internal/taxonomy"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	tax := taxonomy.Default()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "receipts.db"), tax)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	svc := services.NewReceiptService(repo, parser.New(tax), nil)
	s := NewServer(":0", svc, stats.NewEngine(repo), time.Minute)
	t.Cleanup(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		svc.Close()
	})
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

const wellFormedResponse = "가게명: 스타벅스\n날짜: 2024-03-15\n아메리카노: 음식:음료 (4,500원)\n총액: 4,500원"

func TestProcessReceiptEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, nethttp.MethodPost, "/api/receipts/process", map[string]any{
		"model_text": wellFormedResponse,
	})
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["receipt_id"] == nil {
		t.Fatal("response missing receipt_id")
	}
	receipt, ok := body["receipt"].(map[string]any)
	if !ok {
		t.Fatalf("response missing receipt object: %v", body)
	}
	if receipt["store_name"] != "스타벅스" {
		t.Errorf("store_name = %v, want 스타벅스", receipt["store_name"])
	}
	if receipt["total_amount"] != float64(4500) {
		t.Errorf("total_amount = %v, want 4500", receipt["total_amount"])
	}
}

func TestProcessReceiptIncompleteExtraction(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, nethttp.MethodPost, "/api/receipts/process", map[string]any{
		"model_text": "날짜: 2024-03-15\n커피: 음식:음료 (4,500원)\n총액: 4,500원",
	})
	if rec.Code != nethttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["error"] != "incomplete_extraction" {
		t.Errorf("error = %v, want incomplete_extraction", body["error"])
	}
	if body["missing"] != "store" {
		t.Errorf("missing = %v, want store", body["missing"])
	}
}

func TestProcessReceiptRequiresModelText(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, nethttp.MethodPost, "/api/receipts/process", map[string]any{})
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSaveReceiptInsertAndUpdate(t *testing.T) {
	s := newTestServer(t)

	payload := map[string]any{
		"store_name": "김밥천국",
		"date":       "2024-03-15",
		"items": []map[string]any{
			{"name": "참치김밥", "category": "음식", "subcategory": "점심", "amount": 4000},
		},
		"total_amount": 4000,
	}

	rec := doJSON(t, s, nethttp.MethodPost, "/api/receipts", payload)
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("insert status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["db_saved"] != true {
		t.Errorf("db_saved = %v, want true", body["db_saved"])
	}
	id := int64(body["receipt_id"].(float64))

	payload["receipt_id"] = id
	payload["store_name"] = "김밥나라"
	rec = doJSON(t, s, nethttp.MethodPost, "/api/receipts", payload)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, nethttp.MethodGet, fmt.Sprintf("/api/receipts/%d", id), nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decodeBody(t, rec)
	if got["store_name"] != "김밥나라" {
		t.Errorf("store_name after update = %v, want 김밥나라", got["store_name"])
	}
}

func TestSaveReceiptValidationError(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, nethttp.MethodPost, "/api/receipts", map[string]any{
		"store_name": "전자마트",
		"date":       "2024-03-15",
		"items": []map[string]any{
			{"name": "노트북", "category": "쇼핑", "subcategory": "전자제품", "amount": 1200000},
		},
		"total_amount": 1200000,
	})
	if rec.Code != nethttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body = %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["error"] != "validation_error" {
		t.Errorf("error = %v, want validation_error", body["error"])
	}
}

func TestGetReceiptNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, nethttp.MethodGet, "/api/receipts/999", nil)
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStatisticsReflectNewWrites(t *testing.T) {
	s := newTestServer(t)

	save := func(store string, amount int) {
		rec := doJSON(t, s, nethttp.MethodPost, "/api/receipts", map[string]any{
			"store_name": store,
			"date":       "2024-03-15",
			"items": []map[string]any{
				{"name": "아메리카노", "category": "음식", "subcategory": "음료", "amount": amount},
			},
			"total_amount": amount,
		})
		if rec.Code != nethttp.StatusCreated {
			t.Fatalf("save status = %d, body = %s", rec.Code, rec.Body.String())
		}
	}

	save("가게1", 10000)

	rec := doJSON(t, s, nethttp.MethodGet, "/api/statistics?period=monthly", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("statistics status = %d", rec.Code)
	}
	first := decodeBody(t, rec)
	periods := first["periods"].([]any)
	if len(periods) != 1 {
		t.Fatalf("periods = %v, want one bucket", periods)
	}
	if total := periods[0].(map[string]any)["total"]; total != float64(10000) {
		t.Errorf("total = %v, want 10000", total)
	}

	// A second write must show up even though the first read was cached.
	save("가게2", 5000)

	rec = doJSON(t, s, nethttp.MethodGet, "/api/statistics?period=monthly", nil)
	second := decodeBody(t, rec)
	periods = second["periods"].([]any)
	if total := periods[0].(map[string]any)["total"]; total != float64(15000) {
		t.Errorf("total after second write = %v, want 15000", total)
	}
}

func TestStatisticsUnknownPeriodFallsBackToMonthly(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, nethttp.MethodGet, "/api/statistics?period=weekly", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["period_type"] != "monthly" {
		t.Errorf("period_type = %v, want monthly", body["period_type"])
	}
}

func TestTrendsEndpoint(t *testing.T) {
	s := newTestServer(t)

	for _, r := range []struct {
		date   string
		amount int
	}{
		{"2024-01-05", 4000},
		{"2024-02-05", 9000},
	} {
		rec := doJSON(t, s, nethttp.MethodPost, "/api/receipts", map[string]any{
			"store_name": "가게",
			"date":       r.date,
			"items": []map[string]any{
				{"name": "점심", "category": "음식", "subcategory": "점심", "amount": r.amount},
			},
			"total_amount": r.amount,
		})
		if rec.Code != nethttp.StatusCreated {
			t.Fatalf("save status = %d", rec.Code)
		}
	}

	rec := doJSON(t, s, nethttp.MethodGet, "/api/trends?period=monthly&category=음식", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["total"] != float64(13000) {
		t.Errorf("total = %v, want 13000", body["total"])
	}
	points := body["points"].([]any)
	if len(points) != 2 {
		t.Fatalf("points = %v, want 2", points)
	}
	if points[0].(map[string]any)["period"] != "2024-01" {
		t.Errorf("first point = %v, want 2024-01", points[0])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, nethttp.MethodDelete, "/api/receipts", nil)
	if rec.Code != nethttp.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
