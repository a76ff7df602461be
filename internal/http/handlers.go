package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"yeongsu/internal/core"
)

type itemPayload struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Amount      int64  `json:"amount"`
}

type receiptPayload struct {
	ID        int64         `json:"id,omitempty"`
	StoreName string        `json:"store_name"`
	Date      string        `json:"date"`
	Items     []itemPayload `json:"items"`
	Total     int64         `json:"total_amount"`
}

func receiptToPayload(r core.Receipt) receiptPayload {
	items := make([]itemPayload, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, itemPayload{
			Name:        it.Name,
			Category:    it.Category,
			Subcategory: it.Subcategory,
			Amount:      it.Amount.Won,
		})
	}
	return receiptPayload{
		ID:        r.ID,
		StoreName: r.StoreName,
		Date:      r.Date.String(),
		Items:     items,
		Total:     r.Total.Won,
	}
}

func (p receiptPayload) toDraft() (core.Draft, error) {
	date, err := core.ParseDate(p.Date)
	if err != nil {
		return core.Draft{}, err
	}
	items := make([]core.Item, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, core.Item{
			Name:        it.Name,
			Category:    it.Category,
			Subcategory: it.Subcategory,
			Amount:      core.Money{Won: it.Amount},
		})
	}
	draft := core.Draft{
		StoreName: p.StoreName,
		Date:      date,
		Items:     items,
		Total:     core.Money{Won: p.Total},
	}
	if err := draft.Validate(); err != nil {
		return core.Draft{}, err
	}
	return draft, nil
}

// handleProcessReceipt parses a model response and persists the
// extracted receipt.
func (s *Server) handleProcessReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelText string `json:"model_text"`
		OCRText   string `json:"ocr_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", map[string]any{"detail": "malformed JSON body"})
		return
	}
	if req.ModelText == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", map[string]any{"detail": "model_text is required"})
		return
	}

	id, err := s.receipts.Process(r.Context(), req.ModelText, req.OCRText)
	if err != nil {
		slog.ErrorContext(r.Context(), "Receipt processing failed", "error", err)
		writeDomainError(w, err)
		return
	}

	s.invalidateAggregates()

	receipt, err := s.receipts.Get(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load saved receipt", "receipt_id", id, "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"receipt_id": id,
		"receipt":    receiptToPayload(receipt),
	})
}

// handleSaveReceipt inserts a draft, or replaces a stored receipt when
// receipt_id is given.
func (s *Server) handleSaveReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiptID int64 `json:"receipt_id"`
		receiptPayload
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", map[string]any{"detail": "malformed JSON body"})
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	id, err := s.receipts.Save(r.Context(), req.ReceiptID, draft)
	if err != nil {
		slog.ErrorContext(r.Context(), "Receipt save failed", "receipt_id", req.ReceiptID, "error", err)
		writeDomainError(w, err)
		return
	}

	s.invalidateAggregates()

	status := http.StatusCreated
	if req.ReceiptID != 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"db_saved":   true,
		"receipt_id": id,
	})
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.receipts.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Receipt list failed", "error", err)
		writeDomainError(w, err)
		return
	}

	payload := make([]receiptPayload, 0, len(receipts))
	for _, rec := range receipts {
		payload = append(payload, receiptToPayload(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipts": payload})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", map[string]any{"detail": "receipt id must be a number"})
		return
	}

	receipt, err := s.receipts.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, receiptToPayload(receipt))
}

// queryPeriod reads the period parameter, defaulting to monthly.
// Unknown values also fall back to monthly.
func queryPeriod(r *http.Request) core.Period {
	p := core.Period(r.URL.Query().Get("period"))
	if !p.IsValid() {
		return core.Monthly
	}
	return p
}

type subcategoryStatsPayload struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Total int64  `json:"total"`
}

type categoryStatsPayload struct {
	Name          string                    `json:"name"`
	Total         int64                     `json:"total"`
	Subcategories []subcategoryStatsPayload `json:"subcategories"`
}

type periodStatsPayload struct {
	Period     string                 `json:"period"`
	Total      int64                  `json:"total"`
	Categories []categoryStatsPayload `json:"categories"`
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	period := queryPeriod(r)
	key := "stats:" + string(period)

	periods, found := s.statsCache.Get(key)
	if !found {
		var err error
		periods, err = s.stats.Statistics(r.Context(), period)
		if err != nil {
			slog.ErrorContext(r.Context(), "Statistics query failed", "period", period, "error", err)
			writeDomainError(w, err)
			return
		}
		s.statsCache.Set(key, periods)
	}

	payload := make([]periodStatsPayload, 0, len(periods))
	for _, p := range periods {
		cats := make([]categoryStatsPayload, 0, len(p.Categories))
		for _, c := range p.Categories {
			subs := make([]subcategoryStatsPayload, 0, len(c.Subcategories))
			for _, sc := range c.Subcategories {
				subs = append(subs, subcategoryStatsPayload{
					Name:  sc.Name,
					Count: sc.Count,
					Total: sc.Total.Won,
				})
			}
			cats = append(cats, categoryStatsPayload{
				Name:          c.Name,
				Total:         c.Total.Won,
				Subcategories: subs,
			})
		}
		payload = append(payload, periodStatsPayload{
			Period:     p.Period,
			Total:      p.Total.Won,
			Categories: cats,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"period_type": period,
		"periods":     payload,
	})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	period := queryPeriod(r)
	category := r.URL.Query().Get("category")
	key := "trends:" + string(period) + ":" + category

	report, found := s.trendsCache.Get(key)
	if !found {
		var err error
		report, err = s.stats.Trends(r.Context(), category, period)
		if err != nil {
			slog.ErrorContext(r.Context(), "Trends query failed", "period", period, "category", category, "error", err)
			writeDomainError(w, err)
			return
		}
		s.trendsCache.Set(key, report)
	}

	type pointPayload struct {
		Period string `json:"period"`
		Total  int64  `json:"total"`
	}
	points := make([]pointPayload, 0, len(report.Points))
	for _, p := range report.Points {
		points = append(points, pointPayload{Period: p.Period, Total: p.Total.Won})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"period_type": period,
		"category":    category,
		"points":      points,
		"total":       report.Total.Won,
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	const key = "insights"

	insights, found := s.insightsCache.Get(key)
	if !found {
		var err error
		insights, err = s.stats.Insights(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Insights query failed", "error", err)
			writeDomainError(w, err)
			return
		}
		s.insightsCache.Set(key, insights)
	}

	type insightPayload struct {
		Category string  `json:"category"`
		Count    int64   `json:"count"`
		Total    int64   `json:"total"`
		Average  float64 `json:"average"`
		Min      int64   `json:"min"`
		Max      int64   `json:"max"`
	}
	payload := make([]insightPayload, 0, len(insights))
	for _, in := range insights {
		payload = append(payload, insightPayload{
			Category: in.Name,
			Count:    in.Count,
			Total:    in.Total.Won,
			Average:  in.Average,
			Min:      in.Min.Won,
			Max:      in.Max.Won,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"categories": payload})
}
