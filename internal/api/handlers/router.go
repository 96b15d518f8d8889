package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/spendbook/internal/analytics"
	"github.com/dvloznov/spendbook/internal/api/middleware"
	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/gcs"
	"github.com/dvloznov/spendbook/internal/jobs"
	"github.com/dvloznov/spendbook/internal/statements"
	"github.com/dvloznov/spendbook/internal/transactions"
)

// Deps are the services behind the API. Documents and Sink are optional.
type Deps struct {
	Catalog      *catalog.Service
	Statements   *statements.Service
	Transactions *transactions.Service
	Analytics    *analytics.Service
	Jobs         jobs.JobStore
	Queue        JobQueue
	Documents    gcs.DocumentStore
	Sink         statements.Sink
	Log          zerolog.Logger
}

// NewRouter builds the API mux wrapped in the middleware chain.
func NewRouter(d Deps) http.Handler {
	entities := NewEntitiesHandler(d.Catalog)
	stmts := NewStatementsHandler(d.Statements, d.Transactions, d.Documents, d.Sink)
	txs := NewTransactionsHandler(d.Transactions)
	jobsH := NewJobsHandler(d.Queue, d.Jobs, d.Statements)
	an := NewAnalyticsHandler(d.Analytics)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	mux.HandleFunc("GET /api/entities", entities.List)
	mux.HandleFunc("POST /api/entities", entities.Create)
	mux.HandleFunc("GET /api/entities/{id}", entities.Get)
	mux.HandleFunc("PUT /api/entities/{id}", entities.Update)
	mux.HandleFunc("DELETE /api/entities/{id}", entities.Delete)
	mux.HandleFunc("GET /api/entities/{id}/root", entities.Root)

	mux.HandleFunc("GET /api/statements", stmts.List)
	mux.HandleFunc("POST /api/statements", stmts.Create)
	mux.HandleFunc("POST /api/statements/upload", stmts.Upload)
	mux.HandleFunc("GET /api/statements/{id}", stmts.Get)
	mux.HandleFunc("DELETE /api/statements/{id}", stmts.Delete)
	mux.HandleFunc("POST /api/statements/{id}/reprocess", stmts.Reprocess)
	mux.HandleFunc("POST /api/statements/{id}/archive", stmts.Archive)
	mux.HandleFunc("POST /api/statements/{id}/unarchive", stmts.Unarchive)
	mux.HandleFunc("POST /api/statements/{id}/review", stmts.Review)
	mux.HandleFunc("POST /api/statements/{id}/publish", stmts.Publish)
	mux.HandleFunc("GET /api/statements/{id}/transactions", stmts.Transactions)
	mux.HandleFunc("POST /api/statements/{id}/ingest", jobsH.Enqueue)

	mux.HandleFunc("GET /api/transactions/{id}", txs.Get)
	mux.HandleFunc("PATCH /api/transactions/{id}", txs.Patch)

	mux.HandleFunc("GET /api/jobs", jobsH.List)
	mux.HandleFunc("GET /api/jobs/{id}", jobsH.Get)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", jobsH.Cancel)

	mux.HandleFunc("GET /api/analytics/expenses", an.Expenses)
	mux.HandleFunc("GET /api/analytics/metrics", an.Metrics)
	mux.HandleFunc("GET /api/analytics/reviewed-count", an.ReviewedCount)
	mux.HandleFunc("GET /api/analytics/banks", an.Banks)
	mux.HandleFunc("GET /api/export.csv", an.Export)

	return middleware.Chain(mux, d.Log)
}
