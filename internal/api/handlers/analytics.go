package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/spendbook/internal/analytics"
	"github.com/dvloznov/spendbook/internal/api/middleware"
	"github.com/dvloznov/spendbook/internal/logger"
)

// AnalyticsHandler serves aggregates over reviewed transactions. Every
// endpoint takes a start/end window in epoch milliseconds.
type AnalyticsHandler struct {
	analytics *analytics.Service
	now       func() time.Time
}

func NewAnalyticsHandler(a *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: a, now: time.Now}
}

// Expenses handles GET /api/analytics/expenses
func (h *AnalyticsHandler) Expenses(w http.ResponseWriter, r *http.Request) {
	start, end, err := window(r, h.now())
	if err != nil {
		middleware.WriteServiceError(w, r, "Invalid window", err)
		return
	}
	totals, err := h.analytics.SummarizeExpensesByParent(r.Context(), start, end)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to summarize expenses", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expenses": totals,
		"start":    start,
		"end":      end,
	})
}

// Metrics handles GET /api/analytics/metrics?income=a,b&savings=c
func (h *AnalyticsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	start, end, err := window(r, h.now())
	if err != nil {
		middleware.WriteServiceError(w, r, "Invalid window", err)
		return
	}
	q := r.URL.Query()
	m, err := h.analytics.ComputeKeyMetrics(r.Context(), start, end, idList(q.Get("income")), idList(q.Get("savings")))
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to compute metrics", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, m)
}

// ReviewedCount handles GET /api/analytics/reviewed-count
func (h *AnalyticsHandler) ReviewedCount(w http.ResponseWriter, r *http.Request) {
	start, end, err := window(r, h.now())
	if err != nil {
		middleware.WriteServiceError(w, r, "Invalid window", err)
		return
	}
	n, err := h.analytics.CountReviewed(r.Context(), start, end)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to count transactions", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"count": n})
}

// Banks handles GET /api/analytics/banks
func (h *AnalyticsHandler) Banks(w http.ResponseWriter, r *http.Request) {
	start, end, err := window(r, h.now())
	if err != nil {
		middleware.WriteServiceError(w, r, "Invalid window", err)
		return
	}
	banks, err := h.analytics.SummarizeBanks(r.Context(), start, end)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to summarize banks", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"banks": banks,
		"count": len(banks),
	})
}

// Export handles GET /api/export.csv
func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	start, end, err := window(r, h.now())
	if err != nil {
		middleware.WriteServiceError(w, r, "Invalid window", err)
		return
	}
	var buf bytes.Buffer
	n, err := h.analytics.ExportCSV(r.Context(), &buf, start, end)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to export transactions", err)
		return
	}
	log := logger.FromContext(r.Context())
	log.Debug().Int("rows", n).Msg("Exported CSV")

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=transactions-%d-%d.csv", start, end))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
