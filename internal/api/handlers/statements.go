package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/spendbook/internal/api/middleware"
	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/gcs"
	"github.com/dvloznov/spendbook/internal/statements"
	"github.com/dvloznov/spendbook/internal/store"
	"github.com/dvloznov/spendbook/internal/transactions"
)

const maxUploadBytes = 32 << 20

// StatementsHandler handles statement lifecycle endpoints.
type StatementsHandler struct {
	statements   *statements.Service
	transactions *transactions.Service
	documents    gcs.DocumentStore
	sink         statements.Sink
}

// NewStatementsHandler creates the handler. documents and sink may be nil;
// the endpoints that need them then answer 503.
func NewStatementsHandler(s *statements.Service, t *transactions.Service, documents gcs.DocumentStore, sink statements.Sink) *StatementsHandler {
	return &StatementsHandler{statements: s, transactions: t, documents: documents, sink: sink}
}

type createStatementRequest struct {
	BankID    string `json:"bank_id"`
	SourceURI string `json:"source_uri"`
}

type reviewRequest struct {
	Reviewed bool `json:"reviewed"`
}

// List handles GET /api/statements?bank_id=&status=&archived=
func (h *StatementsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	archived, err := optionalBool(q.Get("archived"))
	if err != nil {
		middleware.WriteServiceError(w, r, "Invalid archived flag", err)
		return
	}
	filter := store.StatementFilter{
		BankID:   q.Get("bank_id"),
		Status:   domain.StatementStatus(q.Get("status")),
		Archived: archived,
	}

	list, err := h.statements.List(r.Context(), filter)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to list statements", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"statements": list,
		"count":      len(list),
	})
}

// Create handles POST /api/statements
func (h *StatementsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createStatementRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteServiceError(w, r, "Invalid request body", err)
		return
	}
	if isBlank(req.BankID) {
		middleware.WriteError(w, http.StatusBadRequest, "bank_id is required")
		return
	}

	st, err := h.statements.Create(r.Context(), req.BankID, req.SourceURI)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to create statement", err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, st)
}

// Upload handles POST /api/statements/upload as multipart form data with
// a bank_id field and a file part. The file is stored in the document bucket.
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.documents == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Document storage is not configured")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	bankID := r.FormValue("bank_id")
	if isBlank(bankID) {
		middleware.WriteError(w, http.StatusBadRequest, "bank_id is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := fmt.Sprintf("statements/%s/%s-%s", bankID, uuid.New().String(), filepath.Base(header.Filename))
	uri, err := h.documents.Upload(r.Context(), name, file)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to upload document", fmt.Errorf("%w: %v", domain.ErrNetwork, err))
		return
	}

	st, err := h.statements.Create(r.Context(), bankID, uri)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to create statement", err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, st)
}

// Get handles GET /api/statements/{id}
func (h *StatementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.statements.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to get statement", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}

// Delete handles DELETE /api/statements/{id}
func (h *StatementsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.statements.Delete(r.Context(), r.PathValue("id")); err != nil {
		middleware.WriteServiceError(w, r, "Failed to delete statement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reprocess handles POST /api/statements/{id}/reprocess
func (h *StatementsHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	st, err := h.statements.Reprocess(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to reprocess statement", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}

// Archive handles POST /api/statements/{id}/archive
func (h *StatementsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.toggleArchive(w, r, true)
}

// Unarchive handles POST /api/statements/{id}/unarchive
func (h *StatementsHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.toggleArchive(w, r, false)
}

func (h *StatementsHandler) toggleArchive(w http.ResponseWriter, r *http.Request, archive bool) {
	id := r.PathValue("id")
	op := h.statements.Unarchive
	if archive {
		op = h.statements.Archive
	}
	if err := op(r.Context(), id); err != nil {
		middleware.WriteServiceError(w, r, "Failed to update archive flag", err)
		return
	}
	st, err := h.statements.Get(r.Context(), id)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to get statement", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}

// Review handles POST /api/statements/{id}/review
func (h *StatementsHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteServiceError(w, r, "Invalid request body", err)
		return
	}
	st, err := h.transactions.ReviewStatement(r.Context(), r.PathValue("id"), req.Reviewed)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to review statement", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}

// Publish handles POST /api/statements/{id}/publish
func (h *StatementsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if h.sink == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "No publish sink is configured")
		return
	}
	st, err := h.statements.Publish(r.Context(), r.PathValue("id"), h.sink)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to publish statement", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}

// Transactions handles GET /api/statements/{id}/transactions
func (h *StatementsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.statements.Get(r.Context(), id); err != nil {
		middleware.WriteServiceError(w, r, "Failed to get statement", err)
		return
	}
	txs, err := h.transactions.ListByStatement(r.Context(), id)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to list transactions", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
